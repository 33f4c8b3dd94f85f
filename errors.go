package signalr

import "fmt"

// InvalidStateError is returned when an operation is attempted while the
// connection is in a state that does not permit it. Operation names the
// method that rejected the call (e.g. "Start", "Send", "SetOnMessage");
// Error renders the exact message text spec.md §4.6 specifies for that
// operation's family.
type InvalidStateError struct {
	Operation string
	State     State
}

// settingNames maps a setter's Operation to the noun phrase spec.md's
// message template names it by.
var settingNames = map[string]string{
	"SetOnMessage":      "the on_message callback",
	"SetOnDisconnected": "the on_disconnected callback",
	"SetTraceLevel":     "the trace level",
	"SetLogWriter":      "the log writer",
	"SetClientConfig":   "the client config",
}

func (e *InvalidStateError) Error() string {
	switch e.Operation {
	case "Start":
		return "cannot start a connection that is not in the disconnected state"
	case "Send":
		return fmt.Sprintf("cannot send data when the connection is not in the connected state. current connection state: %s", e.State)
	default:
		name, ok := settingNames[e.Operation]
		if !ok {
			name = e.Operation
		}
		return fmt.Sprintf("cannot set %s when the connection is not in the disconnected state. current connection state: %s", name, e.State)
	}
}

// WebError is returned when an HTTP call made during negotiation returns a
// non-2xx status code.
type WebError struct {
	Status int
	Reason string
}

func (e *WebError) Error() string {
	return fmt.Sprintf("web exception - %s", e.Reason)
}

// ProtocolError is returned when the negotiate sub-protocol is violated: a
// legacy server, a redirect loop, an unsupported transport list, a malformed
// body, a server-reported error, or a handshake timeout.
type ProtocolError struct {
	Message string
}

func (e *ProtocolError) Error() string {
	return e.Message
}

// TransportError wraps a failure raised by the underlying transport during
// connect, send, receive, or close.
type TransportError struct {
	Cause error
}

func (e *TransportError) Error() string {
	return e.Cause.Error()
}

func (e *TransportError) Unwrap() error {
	return e.Cause
}

// canceledError is returned when a start attempt is aborted by a concurrent
// stop, or when a stop is superseded by another in-flight stop.
type canceledError struct{}

func (canceledError) Error() string {
	return "the operation was canceled"
}

// ErrCanceled is the sentinel comparing true for any canceled outcome. Use
// errors.Is(err, ErrCanceled) to detect it.
var ErrCanceled error = canceledError{}
