package signalr

import (
	"net/url"
	"strings"

	"github.com/pkg/errors"
)

// buildNegotiateURL appends "/negotiate" to base, preserving base's query
// string untouched.
func buildNegotiateURL(base string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrap(err, "parse base url")
	}
	u.Path = strings.TrimSuffix(u.Path, "/") + "/negotiate"
	return u.String(), nil
}

// buildConnectURL appends "?id=<connectionID>" (or "&id=<connectionID>" if a
// query string is already present) to base and maps its scheme from
// http/https to ws/wss. The existing query string, whatever it is, is
// preserved verbatim and the id parameter is appended after it -- not
// re-sorted alongside it -- so this deliberately does not go through
// url.Values.Encode, which would reorder parameters alphabetically.
func buildConnectURL(base, connectionID string) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", errors.Wrap(err, "parse negotiated url")
	}

	mapToWebsocketScheme(u)
	if u.Path == "" {
		u.Path = "/"
	}

	idParam := "id=" + url.QueryEscape(connectionID)
	if u.RawQuery == "" {
		u.RawQuery = idParam
	} else {
		u.RawQuery = u.RawQuery + "&" + idParam
	}

	return u.String(), nil
}

// buildWithRedirect resolves a negotiate response's "url" field into the
// next URL to negotiate against. Per the redirect contract, the redirect
// target carries its own query string; the original base's query is
// intentionally dropped rather than merged in.
func buildWithRedirect(base, redirectURL string) (string, error) {
	if _, err := url.Parse(redirectURL); err != nil {
		return "", errors.Wrapf(err, "parse redirect url %q (from base %q)", redirectURL, base)
	}
	return redirectURL, nil
}

func mapToWebsocketScheme(u *url.URL) {
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http":
		u.Scheme = "ws"
	}
}
