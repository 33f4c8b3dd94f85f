package signalr

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionHappyPath(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(TestCompleteHandler))
	defer server.Close()

	conn := New(server.URL)
	require.NoError(t, conn.SetTraceLevel(TraceAll))

	var received []string
	var mu sync.Mutex
	require.NoError(t, conn.SetOnMessage(func(msg string) {
		mu.Lock()
		received = append(received, msg)
		mu.Unlock()
	}))

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, conn.Start(ctx))
	assert.Equal(t, StateConnected, conn.State())

	require.NoError(t, conn.Stop())
	assert.Equal(t, StateDisconnected, conn.State())

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, received, 1)
	assert.True(t, strings.HasPrefix(received[0], "{}"))
}

func TestConnectionIDSetOnNegotiateSurvivesConnectFailureAndStop(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/negotiate") {
			TestNegotiateHandler(w, r)
			return
		}
		http.Error(w, "connect refused", http.StatusInternalServerError)
	}))
	defer server.Close()

	conn := New(server.URL)
	assert.Equal(t, "", conn.ConnectionID())

	err := conn.Start(context.Background())
	require.Error(t, err)
	assert.Equal(t, "test-connection-id", conn.ConnectionID())
	assert.Equal(t, StateDisconnected, conn.State())

	require.NoError(t, conn.Stop())
	assert.Equal(t, "test-connection-id", conn.ConnectionID())
}

func TestConnectionIDClearedByNextStart(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(TestCompleteHandler))
	defer server.Close()

	conn := New(server.URL)
	require.NoError(t, conn.Start(context.Background()))
	assert.Equal(t, "test-connection-id", conn.ConnectionID())

	require.NoError(t, conn.Stop())
	assert.Equal(t, "test-connection-id", conn.ConnectionID())

	blocked := make(chan struct{})
	badServer := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-blocked
	}))
	defer badServer.Close()

	conn2 := New(badServer.URL)
	conn2.connectionID = "stale"
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- conn2.Start(ctx) }()

	require.Eventually(t, func() bool { return conn2.ConnectionID() == "" }, time.Second, time.Millisecond)
	cancel()
	close(blocked)
	<-done
}

func TestConnectionStopCancelsInFlightStart(t *testing.T) {
	blocked := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "/negotiate") {
			<-blocked
			TestNegotiateHandler(w, r)
			return
		}
		TestConnectHandler(w, r)
	}))
	defer server.Close()

	conn := New(server.URL)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- conn.Start(ctx) }()

	require.Eventually(t, func() bool { return conn.State() == StateConnecting }, time.Second, time.Millisecond)
	require.NoError(t, conn.Stop())
	close(blocked)

	err := <-done
	assert.ErrorIs(t, err, ErrCanceled)
	assert.Equal(t, StateDisconnected, conn.State())
}

// blockingCloseTransport holds Close until release is closed, so a test can
// observe the connection while a Stop is still tearing it down.
type blockingCloseTransport struct {
	Transport
	release chan struct{}
}

func (t *blockingCloseTransport) Close() error {
	<-t.release
	return t.Transport.Close()
}

func TestConnectionConcurrentStopResolvesAsCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(TestCompleteHandler))
	defer server.Close()

	conn := New(server.URL)
	require.NoError(t, conn.Start(context.Background()))

	release := make(chan struct{})
	conn.mu.Lock()
	conn.transport = &blockingCloseTransport{Transport: conn.transport, release: release}
	conn.mu.Unlock()

	firstDone := make(chan error, 1)
	go func() { firstDone <- conn.Stop() }()

	require.Eventually(t, func() bool { return conn.State() == StateDisconnecting }, time.Second, time.Millisecond)

	secondErr := conn.Stop()
	assert.ErrorIs(t, secondErr, ErrCanceled)

	close(release)
	firstErr := <-firstDone
	assert.NoError(t, firstErr)
	assert.Equal(t, StateDisconnected, conn.State())
}

func TestConnectionSetterGuardsRejectWhileConnected(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(TestCompleteHandler))
	defer server.Close()

	conn := New(server.URL)
	require.NoError(t, conn.Start(context.Background()))
	defer conn.Stop()

	err := conn.SetTraceLevel(TraceAll)
	var invalidState *InvalidStateError
	require.ErrorAs(t, err, &invalidState)
}

func TestConnectionOnMessageCallbackPanicIsContained(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(TestCompleteHandler))
	defer server.Close()

	conn := New(server.URL)
	require.NoError(t, conn.SetOnMessage(func(string) { panic("boom") }))

	require.NoError(t, conn.Start(context.Background()))
	assert.Equal(t, StateConnected, conn.State())
	require.NoError(t, conn.Stop())
}
