package signalr

import (
	"context"
	"encoding/json"

	"github.com/pkg/errors"
	sonnet "github.com/sugawarayuuta/sonnet"
)

// maxNegotiateRedirects bounds the redirect chain a negotiate call will
// follow before giving up. spec.md's boundary test requires the 100th
// redirect to succeed and the 101st to fail, so redirects counts up and
// only the 101st increment trips the limit.
const maxNegotiateRedirects = 100

// availableTransport is one entry of a negotiate response's
// availableTransports array.
type availableTransport struct {
	Transport       string   `json:"transport"`
	TransferFormats []string `json:"transferFormats"`
}

func hasWebSocketsTransport(transports []availableTransport) bool {
	for _, t := range transports {
		if t.Transport == "WebSockets" {
			return true
		}
	}
	return false
}

type negotiateResponseBody struct {
	ConnectionID        string               `json:"connectionId"`
	AvailableTransports []availableTransport `json:"availableTransports"`
	URL                 string               `json:"url"`
	AccessToken         string               `json:"accessToken"`
	Error               string               `json:"error"`
	ProtocolVersion     *json.RawMessage     `json:"ProtocolVersion"`
}

// negotiationResult is what a successful negotiate call hands back to the
// connection core: the URL to connect to (the final URL in the redirect
// chain), the assigned connection id, the advertised transports, and the
// config to use for the subsequent connect (which may carry a redirect-scoped
// Authorization header the caller's own config never sees).
type negotiationResult struct {
	FinalURL     string
	ConnectionID string
	Transports   []availableTransport
	Config       ClientConfig
}

// negotiate drives the negotiate sub-protocol described in spec.md 4.3:
// POST negotiate, follow "url" redirects (bounded, token-scoped), reject
// legacy ASP.NET SignalR servers and servers that report an error or don't
// support WebSockets.
func negotiate(ctx context.Context, sender *httpSender, baseURL string, cfg ClientConfig) (negotiationResult, error) {
	redirects := 0
	currentURL := baseURL
	activeCfg := cfg.clone()

	for {
		negotiateURL, err := buildNegotiateURL(currentURL)
		if err != nil {
			return negotiationResult{}, errors.Wrap(err, "build negotiate url")
		}

		body, err := sender.post(ctx, negotiateURL, activeCfg.Headers)
		if err != nil {
			return negotiationResult{}, err
		}

		var parsed negotiateResponseBody
		if err := sonnet.Unmarshal(body, &parsed); err != nil {
			return negotiationResult{}, &ProtocolError{Message: "Could not parse negotiate response."}
		}

		if parsed.ProtocolVersion != nil {
			return negotiationResult{}, &ProtocolError{Message: "Detected a connection attempt to an ASP.NET SignalR Server. " +
				"This client only supports connecting to an ASP.NET Core SignalR Server. " +
				"See https://aka.ms/signalr-core-differences for details."}
		}

		if parsed.Error != "" {
			return negotiationResult{}, &ProtocolError{Message: parsed.Error}
		}

		if parsed.URL != "" {
			redirects++
			if redirects > maxNegotiateRedirects {
				return negotiationResult{}, &ProtocolError{Message: "Negotiate redirection limit exceeded."}
			}

			if parsed.AccessToken != "" {
				activeCfg = activeCfg.withAuthorization(parsed.AccessToken)
			}

			nextURL, err := buildWithRedirect(currentURL, parsed.URL)
			if err != nil {
				return negotiationResult{}, errors.Wrap(err, "build redirect url")
			}
			currentURL = nextURL
			continue
		}

		if !hasWebSocketsTransport(parsed.AvailableTransports) {
			return negotiationResult{}, &ProtocolError{
				Message: "The server does not support WebSockets which is currently the only transport supported by this client.",
			}
		}

		return negotiationResult{
			FinalURL:     currentURL,
			ConnectionID: parsed.ConnectionID,
			Transports:   parsed.AvailableTransports,
			Config:       activeCfg,
		}, nil
	}
}
