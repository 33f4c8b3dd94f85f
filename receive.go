package signalr

import (
	"context"

	sonnet "github.com/sugawarayuuta/sonnet"
)

// splitFrames splits a raw websocket message payload on the record
// separator byte. ASP.NET Core SignalR may batch several frames into a
// single websocket message, so a receive loop must not assume one frame per
// message. A trailing empty fragment (the normal case, since every frame
// ends with the separator) is dropped.
func splitFrames(data []byte) [][]byte {
	var frames [][]byte
	start := 0
	for i, b := range data {
		if b == recordSeparator {
			frames = append(frames, data[start:i])
			start = i + 1
		}
	}
	if start < len(data) {
		frames = append(frames, data[start:])
	}
	return frames
}

type handshakeResponse struct {
	Error string `json:"error"`
}

// parseHandshakeFrame reports the error the server sent back in a failed
// handshake response, or nil on success.
func parseHandshakeFrame(frame []byte) error {
	var resp handshakeResponse
	if err := sonnet.Unmarshal(frame, &resp); err != nil {
		return &ProtocolError{Message: "Could not parse handshake response."}
	}
	if resp.Error != "" {
		return &ProtocolError{Message: resp.Error}
	}
	return nil
}

// receiveLoop owns the transport's read side for the lifetime of a
// connected session. It runs on its own goroutine, started right after the
// handshake request is sent, and exits when the transport itself errors or
// is closed by Stop, or when the handshake response reports an error.
//
// The first frame it ever sees is always the handshake response; per spec
// it still reaches onMessage afterward, the same as every later frame, so
// that a server that piggybacks application data onto the handshake message
// is not silently dropped.
func (c *Connection) receiveLoop() {
	defer close(c.receiveDone)

	awaitingHandshake := true

	for {
		data, err := c.transport.Receive()
		if err != nil {
			c.handleReceiveError(err, awaitingHandshake)
			return
		}

		for _, frame := range splitFrames(data) {
			if awaitingHandshake {
				awaitingHandshake = false
				hsErr := parseHandshakeFrame(frame)
				ack := c.completeStart(hsErr)
				if hsErr != nil {
					c.log(TraceErrors, "[error] handshake failed: %s", hsErr)
					return
				}
				// Wait for Start to finish acting on the outcome (it
				// transitions to StateConnected under this same signal)
				// before this frame reaches onMessage, so the handshake
				// frame can never beat Start's own return to the caller.
				if ack != nil {
					<-ack
				}
				c.log(TraceStateChanges, "[handshake] completed")
			}

			c.dispatchMessage(frame)
		}
	}
}

func (c *Connection) handleReceiveError(err error, awaitingHandshake bool) {
	c.log(TraceErrors, "[error] connection lost: %s", err)
	if awaitingHandshake {
		// Start's own select owns teardown and logging for a failure
		// that happens before the handshake completes.
		c.completeStart(err)
		return
	}
	c.mu.Lock()
	stopping := c.state == StateDisconnecting
	c.mu.Unlock()
	if stopping {
		// Stop closed the transport and finishes the teardown itself,
		// with a nil cause, once this loop has exited.
		return
	}
	c.handleTransportClosed(err)
}

// dispatchMessage invokes the user's onMessage callback outside of any
// lock, recovering a panic so that a broken callback can never take down
// the receive loop or leave the connection's internal state inconsistent.
func (c *Connection) dispatchMessage(payload []byte) {
	c.log(TraceMessages, "[receive] %s", payload)

	c.mu.Lock()
	cb := c.onMessage
	c.mu.Unlock()

	if cb == nil {
		return
	}
	messagesReceived.Add(context.Background(), 1)

	defer func() {
		if r := recover(); r != nil {
			if err, ok := r.(error); ok {
				c.log(TraceErrors, "message_received callback threw an exception: %s", err)
				return
			}
			c.log(TraceErrors, "message_received callback threw an unknown exception")
		}
	}()

	cb(string(payload))
}
