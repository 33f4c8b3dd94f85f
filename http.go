package signalr

import (
	"context"
	"io"
	"net/http"

	scraper "github.com/carterjones/go-cloudflare-scraper"
	"github.com/pkg/errors"
)

// httpSender issues the negotiate POST requests. Its default HTTP client
// tunnels through a Cloudflare-scraper transport, the same default the
// teacher repo's Client.HTTPClient carries, so a SignalR server sitting
// behind Cloudflare's bot-check negotiates successfully out of the box.
type httpSender struct {
	client *http.Client
}

func newHTTPSender(client *http.Client) *httpSender {
	if client == nil {
		client = defaultHTTPClient()
	}
	return &httpSender{client: client}
}

func defaultHTTPClient() *http.Client {
	cfTransport := scraper.NewTransport(http.DefaultTransport)
	return &http.Client{
		Transport: cfTransport,
		Jar:       cfTransport.Cookies,
	}
}

// post issues a header-only POST to url and returns the body on a 2xx
// response. A non-2xx response is reported as a *WebError.
func (s *httpSender) post(ctx context.Context, url string, headers map[string]string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, nil)
	if err != nil {
		return nil, errors.Wrap(err, "request creation failed")
	}

	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, errors.Wrap(err, "request failed")
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrap(err, "read failed")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &WebError{Status: resp.StatusCode, Reason: resp.Status}
	}

	return body, nil
}
