package signalr

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"
)

// TestCompleteHandler combines the negotiate and websocket-upgrade handlers
// into one complete handler suitable for httptest.NewServer, dispatching on
// the request path the way a real ASP.NET Core hub endpoint would.
func TestCompleteHandler(w http.ResponseWriter, r *http.Request) {
	if strings.HasSuffix(r.URL.Path, "/negotiate") {
		TestNegotiateHandler(w, r)
		return
	}
	TestConnectHandler(w, r)
}

// TestNegotiateHandler provides a sample "/negotiate" response advertising
// a single WebSockets transport, the minimum a client accepts.
//
// If an error occurs while writing the response, it panics: this is test
// scaffolding, not production error-handling code.
func TestNegotiateHandler(w http.ResponseWriter, r *http.Request) {
	body := fmt.Sprintf(`{"connectionId":%q,"availableTransports":[{"transport":"WebSockets","transferFormats":["Text"]}]}`, "test-connection-id")
	if _, err := w.Write([]byte(body)); err != nil {
		panic(err)
	}
}

// TestConnectHandler upgrades the request to a websocket and plays the
// server side of the protocol handshake: it reads (and discards) the
// client's handshake request frame, replies with the empty-object success
// frame, and then keeps the socket open, echoing nothing further, until the
// client closes it.
func TestConnectHandler(w http.ResponseWriter, r *http.Request) {
	upgrader := websocket.Upgrader{}
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		panic(err)
	}

	if _, _, err := conn.ReadMessage(); err != nil {
		return
	}

	if err := conn.WriteMessage(websocket.TextMessage, append([]byte("{}"), recordSeparator)); err != nil {
		return
	}

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// TestNegotiateErrorHandler responds with a negotiate error, exercising the
// path where the server refuses the connection outright.
func TestNegotiateErrorHandler(reason string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := fmt.Sprintf(`{"error":%q}`, reason)
		if _, err := w.Write([]byte(body)); err != nil {
			panic(err)
		}
	}
}

// TestLegacyNegotiateHandler responds the way a classic ASP.NET SignalR
// server (not SignalR Core) does, so tests can assert this client refuses
// to connect to it.
func TestLegacyNegotiateHandler(w http.ResponseWriter, r *http.Request) {
	body := `{"ConnectionToken":"legacy","ConnectionId":"legacy-id","ProtocolVersion":"1.5"}`
	if _, err := w.Write([]byte(body)); err != nil {
		panic(err)
	}
}

// TestRedirectNegotiateHandler responds with a negotiate redirect to
// target, optionally carrying an access token.
func TestRedirectNegotiateHandler(target, accessToken string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body := fmt.Sprintf(`{"url":%q,"accessToken":%q}`, target, accessToken)
		if _, err := w.Write([]byte(body)); err != nil {
			panic(err)
		}
	}
}
