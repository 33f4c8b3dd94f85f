package signalr

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
)

// Connection is a single ASP.NET Core SignalR connection: negotiate,
// websocket connect, protocol handshake, then a bidirectional stream of
// framed messages. Its exported methods are safe for concurrent use; a
// single mutex guards state and configuration, and every user-supplied
// callback runs outside that lock so a slow or panicking callback can never
// deadlock the connection or another goroutine calling into it.
type Connection struct {
	mu           sync.Mutex
	state        State
	id           string
	connectionID string

	traceLevel TraceLevel
	logWriter  LogWriter

	cfg     ClientConfig
	baseURL string
	sender  *httpSender

	transport Transport

	onMessage      func(string)
	onDisconnected func(error)

	cancelStart     context.CancelFunc
	receiveDone     chan struct{}
	startCompletion chan<- startOutcome
}

// startOutcome is what receiveLoop reports back to Start once the
// handshake response has been parsed. ack is closed by Start once it has
// finished acting on the outcome (transitioning to StateConnected, or
// tearing the attempt down on failure); receiveLoop waits on it before
// dispatching the handshake frame to onMessage, so that frame can never
// reach a user callback before Start itself has resolved.
type startOutcome struct {
	err error
	ack chan struct{}
}

// New returns a disconnected Connection targeting baseURL, the HTTP(S) URL
// of the hub; "/negotiate" is appended to it for the negotiate request.
func New(baseURL string) *Connection {
	return &Connection{
		state:      StateDisconnected,
		id:         uuid.New().String(),
		traceLevel: TraceNone,
		logWriter:  NewStdLogWriter(),
		cfg:        NewClientConfig(),
		baseURL:    baseURL,
		sender:     newHTTPSender(nil),
	}
}

// ID returns the correlation id generated for this Connection at
// construction time. It never changes for the lifetime of the value and is
// independent of the connectionId ASP.NET Core assigns during negotiate.
func (c *Connection) ID() string {
	return c.id
}

// ConnectionID returns the connectionId ASP.NET Core assigned during the
// most recent negotiate call, or "" if Start has never negotiated
// successfully. It is set as soon as negotiate succeeds, regardless of
// whether the subsequent websocket connect or handshake goes on to fail,
// and it is preserved after Stop; only a new Start call clears it, at the
// point it begins negotiating again.
func (c *Connection) ConnectionID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connectionID
}

// State returns the connection's current state.
func (c *Connection) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// SetOnMessage registers the callback invoked for every frame received
// after the connection is established, including the handshake response
// frame itself. It may only be called while disconnected.
func (c *Connection) SetOnMessage(cb func(string)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected {
		return &InvalidStateError{Operation: "SetOnMessage", State: c.state}
	}
	c.onMessage = cb
	return nil
}

// SetOnDisconnected registers the callback invoked once a previously
// established connection tears down, whether cleanly via Stop or because
// the transport failed. It is never invoked for a start canceled before
// reaching StateConnected. It may only be called while disconnected.
func (c *Connection) SetOnDisconnected(cb func(error)) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected {
		return &InvalidStateError{Operation: "SetOnDisconnected", State: c.state}
	}
	c.onDisconnected = cb
	return nil
}

// SetTraceLevel controls which categories of diagnostic lines are written
// to the LogWriter. It may only be called while disconnected.
func (c *Connection) SetTraceLevel(level TraceLevel) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected {
		return &InvalidStateError{Operation: "SetTraceLevel", State: c.state}
	}
	c.traceLevel = level
	return nil
}

// SetLogWriter overrides the destination diagnostic lines are written to.
// It may only be called while disconnected.
func (c *Connection) SetLogWriter(w LogWriter) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected {
		return &InvalidStateError{Operation: "SetLogWriter", State: c.state}
	}
	c.logWriter = w
	return nil
}

// SetClientConfig replaces the headers and handshake timeout applied to
// future negotiate/connect attempts. cfg is cloned, so mutating it after
// this call has no further effect. It may only be called while
// disconnected.
func (c *Connection) SetClientConfig(cfg ClientConfig) error {
	if err := validateClientConfig(cfg); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateDisconnected {
		return &InvalidStateError{Operation: "SetClientConfig", State: c.state}
	}
	c.cfg = cfg.clone()
	return nil
}

// Start negotiates, connects and completes the protocol handshake. It
// blocks until the connection reaches StateConnected, the attempt fails, or
// ctx is canceled (including by a concurrent Stop). A Stop-induced
// cancellation resolves as ErrCanceled, never as a generic error.
func (c *Connection) Start(ctx context.Context) error {
	c.mu.Lock()
	if c.state != StateDisconnected {
		state := c.state
		c.mu.Unlock()
		return &InvalidStateError{Operation: "Start", State: state}
	}
	c.state = StateConnecting
	c.connectionID = ""
	cfg := c.cfg
	baseURL := c.baseURL
	startCtx, cancel := context.WithCancel(ctx)
	c.cancelStart = cancel
	c.mu.Unlock()

	c.logTransition(StateDisconnected, StateConnecting)

	spanCtx, span := c.startSpan(startCtx, "start")
	defer span.End()
	startAttempts.Add(spanCtx, 1)

	transport, connectionID, negErr := c.negotiateAndDial(startCtx, baseURL, cfg)
	if negErr != nil {
		startFailures.Add(spanCtx, 1)
		span.RecordError(negErr)
		return c.failStart(startCtx, negErr)
	}

	if err := transport.Send(startCtx, buildHandshakeFrame()); err != nil {
		transport.Close()
		startFailures.Add(spanCtx, 1)
		span.RecordError(err)
		return c.failStart(startCtx, err)
	}

	c.mu.Lock()
	c.transport = transport
	c.receiveDone = make(chan struct{})
	c.mu.Unlock()

	completion := make(chan startOutcome, 1)
	go c.receiveLoopUntil(completion)

	timeout := cfg.HandshakeTimeout
	if timeout <= 0 {
		timeout = defaultHandshakeTimeout
	}
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case outcome := <-completion:
		if outcome.err != nil {
			transport.Close()
			startFailures.Add(spanCtx, 1)
			span.RecordError(outcome.err)
			result := c.failStart(startCtx, outcome.err)
			if outcome.ack != nil {
				close(outcome.ack)
			}
			return result
		}
		c.mu.Lock()
		c.state = StateConnected
		c.mu.Unlock()
		c.logTransition(StateConnecting, StateConnected)
		c.log(TraceStateChanges, "[connection id] %s", connectionID)
		if outcome.ack != nil {
			close(outcome.ack)
		}
		return nil

	case <-timer.C:
		transport.Close()
		c.abortStart(completion)
		startFailures.Add(spanCtx, 1)
		return c.failStart(startCtx, &ProtocolError{Message: "Handshake timed out."})

	case <-startCtx.Done():
		transport.Close()
		c.abortStart(completion)
		startFailures.Add(spanCtx, 1)
		return c.failStart(startCtx, ErrCanceled)
	}
}

// abortStart waits for receiveLoop to exit after Start has already given up
// on it (a timeout or a canceled context won it over the completion
// channel). If receiveLoop is instead blocked handing off a successful
// handshake outcome, nothing will ever read completion or close its ack, so
// this drains any outcome that arrives and closes its ack itself, letting
// receiveLoop continue toward the closed transport and its own exit rather
// than hang forever on an ack nobody is waiting to close.
func (c *Connection) abortStart(completion <-chan startOutcome) {
	for {
		select {
		case outcome := <-completion:
			if outcome.ack != nil {
				close(outcome.ack)
			}
		case <-c.receiveDone:
			return
		}
	}
}

// receiveLoopUntil runs the ordinary receive loop but also reports the
// handshake outcome on completion, once, before falling through to normal
// per-frame dispatch for the remainder of the connection's life.
func (c *Connection) receiveLoopUntil(completion chan<- startOutcome) {
	c.startCompletion = completion
	c.receiveLoop()
}

// completeStart is called by receiveLoop exactly once, with the handshake
// outcome, and returns the ack channel Start will close once it has
// finished acting on that outcome. Later calls (there should be none) are
// ignored rather than blocking forever on a channel nothing still reads.
func (c *Connection) completeStart(err error) chan struct{} {
	c.mu.Lock()
	ch := c.startCompletion
	c.startCompletion = nil
	c.mu.Unlock()

	if ch == nil {
		return nil
	}

	ack := make(chan struct{})
	select {
	case ch <- startOutcome{err: err, ack: ack}:
		return ack
	default:
		return nil
	}
}

// failStart tears the attempt down and returns the error Start should
// report. If startCtx was canceled (a concurrent Stop), the combined
// "connecting -> disconnected" transition is logged as a single line and
// ErrCanceled is returned regardless of the underlying error, matching the
// observed behavior of an in-flight start torn down before ever reaching
// StateConnected: no intermediate "connecting -> disconnecting" line, and
// onDisconnected is not invoked.
func (c *Connection) failStart(startCtx context.Context, cause error) error {
	c.mu.Lock()
	c.state = StateDisconnected
	c.transport = nil
	c.mu.Unlock()

	if startCtx.Err() == context.Canceled {
		c.logTransition(StateConnecting, StateDisconnected)
		return ErrCanceled
	}

	c.log(TraceErrors, "[error] connection could not be started due to: %s", cause)
	c.logTransition(StateConnecting, StateDisconnected)
	return errors.Wrap(cause, "start failed")
}

func (c *Connection) negotiateAndDial(ctx context.Context, baseURL string, cfg ClientConfig) (Transport, string, error) {
	negotiateCtx, span := c.startSpan(ctx, "negotiate")
	result, err := negotiate(negotiateCtx, c.sender, baseURL, cfg)
	if err != nil {
		span.RecordError(err)
		span.End()
		return nil, "", err
	}
	span.End()

	// Set as soon as negotiate hands back a connectionId: ConnectionID must
	// report it even if the websocket connect or handshake that follows
	// goes on to fail.
	c.mu.Lock()
	c.connectionID = result.ConnectionID
	c.mu.Unlock()

	connectURL, err := buildConnectURL(result.FinalURL, result.ConnectionID)
	if err != nil {
		return nil, "", err
	}

	transport, err := dialWebsocket(ctx, connectURL, result.Config.Headers)
	if err != nil {
		return nil, "", err
	}

	return transport, result.ConnectionID, nil
}

// Stop tears an established connection down, or cancels an attempt still
// in progress. Calling it while already disconnected is a no-op. Calling it
// again while a prior Stop is still tearing the connection down resolves as
// ErrCanceled: the second caller did not get to run its own teardown, the
// first one already claimed it.
func (c *Connection) Stop() error {
	_, span := c.startSpan(context.Background(), "stop")
	defer span.End()

	c.log(TraceStateChanges, "stopping connection")

	c.mu.Lock()
	c.log(TraceStateChanges, "acquired lock in shutdown()")
	state := c.state
	cancel := c.cancelStart
	transport := c.transport
	receiveDone := c.receiveDone
	if state == StateConnected {
		c.state = StateDisconnecting
	}
	c.mu.Unlock()

	switch state {
	case StateDisconnected:
		return nil

	case StateConnecting:
		if cancel != nil {
			c.log(TraceStateChanges, "starting the connection has been canceled.")
			cancel()
		}
		return nil

	case StateConnected:
		c.logTransition(StateConnected, StateDisconnecting)

		if transport != nil {
			transport.Close()
		}
		if receiveDone != nil {
			<-receiveDone
		}
		c.handleTransportClosed(nil)
		return nil

	case StateDisconnecting:
		span.RecordError(ErrCanceled)
		return ErrCanceled

	default:
		return nil
	}
}

// handleTransportClosed finishes tearing down a connection that reached
// StateConnected and then lost its transport, whether because Stop closed
// it or because the server or network did. onDisconnected is invoked
// exactly once, outside the lock, with the cause (nil for a clean Stop).
func (c *Connection) handleTransportClosed(cause error) {
	c.mu.Lock()
	priorState := c.state
	if priorState == StateDisconnected {
		c.mu.Unlock()
		return
	}
	wasConnected := priorState == StateConnected || priorState == StateDisconnecting
	c.state = StateDisconnected
	c.transport = nil
	cb := c.onDisconnected
	c.mu.Unlock()

	// Stop already logged "connected -> disconnecting" for a clean
	// shutdown; a transport failure detected straight from StateConnected
	// (the server or network went away with no Stop call) has no
	// intermediate line to follow, so it logs a single combined
	// transition instead.
	c.logTransition(priorState, StateDisconnected)

	if !wasConnected || cb == nil {
		return
	}

	func() {
		defer func() {
			if r := recover(); r != nil {
				c.log(TraceErrors, "[error] on_disconnected callback panicked: %v", r)
			}
		}()
		cb(cause)
	}()
}

// Send transmits data as a single frame. It is only valid while connected.
func (c *Connection) Send(ctx context.Context, data string) error {
	c.mu.Lock()
	if c.state != StateConnected {
		state := c.state
		c.mu.Unlock()
		return &InvalidStateError{Operation: "Send", State: state}
	}
	transport := c.transport
	c.mu.Unlock()

	frame := append([]byte(data), recordSeparator)
	if err := transport.Send(ctx, frame); err != nil {
		c.log(TraceErrors, "error sending data: %s", err)
		return err
	}
	messagesSent.Add(ctx, 1)
	c.log(TraceMessages, "[send] %s", data)
	return nil
}
