package signalr

import (
	"context"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/pkg/errors"
)

// recordSeparator is the ASCII 0x1E byte ASP.NET Core SignalR uses to
// delimit text-protocol frames on the wire.
const recordSeparator = 0x1e

// Transport is the wire-level duplex the connection core drives. The only
// implementation shipped is the websocket transport; it is an interface so
// tests can substitute an in-memory fake without opening a real socket.
type Transport interface {
	Send(ctx context.Context, data []byte) error
	Receive() ([]byte, error)
	Close() error
}

type websocketTransport struct {
	conn *websocket.Conn
}

// dialWebsocket opens a websocket connection to url, applying headers to the
// upgrade request.
func dialWebsocket(ctx context.Context, url string, headers map[string]string) (Transport, error) {
	dialer := websocket.Dialer{
		HandshakeTimeout: 45 * time.Second,
	}

	h := make(http.Header, len(headers))
	for k, v := range headers {
		h.Set(k, v)
	}

	conn, resp, err := dialer.DialContext(ctx, url, h)
	if err != nil {
		if resp != nil {
			return nil, &WebError{Status: resp.StatusCode, Reason: resp.Status}
		}
		return nil, &TransportError{Cause: err}
	}

	return &websocketTransport{conn: conn}, nil
}

func (t *websocketTransport) Send(ctx context.Context, data []byte) error {
	if deadline, ok := ctx.Deadline(); ok {
		if err := t.conn.SetWriteDeadline(deadline); err != nil {
			return errors.Wrap(err, "set write deadline")
		}
	}
	if err := t.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		return &TransportError{Cause: err}
	}
	return nil
}

// Receive blocks until the next websocket message arrives and returns its
// payload. It returns a *TransportError when the underlying connection is
// closed or errors.
func (t *websocketTransport) Receive() ([]byte, error) {
	_, data, err := t.conn.ReadMessage()
	if err != nil {
		return nil, &TransportError{Cause: err}
	}
	return data, nil
}

func (t *websocketTransport) Close() error {
	return t.conn.Close()
}

// buildHandshakeFrame frames the ASP.NET Core SignalR handshake request:
// a JSON envelope selecting the "json" hub protocol at version 1, terminated
// by the record separator.
func buildHandshakeFrame() []byte {
	return append([]byte(`{"protocol":"json","version":1}`), recordSeparator)
}
