package signalr

import (
	"context"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

// instrumentationName identifies this package's spans and instruments to
// whatever otel SDK the host process wires up. Unlike gowse's decorator
// approach, which wraps a websocket engine in a separate instrumentation
// layer, these calls are inlined directly into the connection core: the
// core is small enough that a decorator would mostly forward calls, and the
// span boundaries line up exactly with Start/Stop/negotiate rather than
// with a generic engine interface.
const instrumentationName = "github.com/carterjones/signalrcore"

var (
	tracer = otel.Tracer(instrumentationName)
	meter  = otel.Meter(instrumentationName)

	startAttempts, _ = meter.Int64Counter(
		"signalrcore.start.attempts",
		metric.WithDescription("Number of Start calls, regardless of outcome."),
	)
	startFailures, _ = meter.Int64Counter(
		"signalrcore.start.failures",
		metric.WithDescription("Number of Start calls that did not reach StateConnected."),
	)
	messagesSent, _ = meter.Int64Counter(
		"signalrcore.messages.sent",
		metric.WithDescription("Number of frames sent via Send."),
	)
	messagesReceived, _ = meter.Int64Counter(
		"signalrcore.messages.received",
		metric.WithDescription("Number of frames delivered to onMessage."),
	)
	stateTransitions, _ = meter.Int64Counter(
		"signalrcore.state.transitions",
		metric.WithDescription("Number of state transitions, keyed by the (from, to) state pair."),
	)
)

func connectionAttr(id string) attribute.KeyValue {
	return attribute.String("signalrcore.connection_id", id)
}

// startSpan opens a span named "signalr.start", "signalr.stop", or
// "signalr.negotiate" -- callers pass the operation name, not the full
// span name, since the "signalr." prefix and the connection id attribute
// are common to all three.
func (c *Connection) startSpan(ctx context.Context, operation string) (context.Context, trace.Span) {
	return tracer.Start(ctx, "signalr."+operation, trace.WithAttributes(connectionAttr(c.id)))
}

// recordTransition increments the per-(from, to) state transition counter.
// It is called alongside every logTransition call so the two never drift
// apart.
func recordTransition(ctx context.Context, from, to State) {
	stateTransitions.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("from", from.String()),
			attribute.String("to", to.String()),
		),
	)
}
