package signalr

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSplitFramesSingle(t *testing.T) {
	frames := splitFrames([]byte("{}\x1e"))
	assert.Equal(t, [][]byte{[]byte("{}")}, frames)
}

func TestSplitFramesBatched(t *testing.T) {
	frames := splitFrames([]byte(`{"a":1}` + "\x1e" + `{"b":2}` + "\x1e"))
	assert.Len(t, frames, 2)
	assert.Equal(t, `{"a":1}`, string(frames[0]))
	assert.Equal(t, `{"b":2}`, string(frames[1]))
}

func TestSplitFramesTrailingPartialFragmentKept(t *testing.T) {
	frames := splitFrames([]byte(`{"a":1}` + "\x1e" + `partial`))
	assert.Len(t, frames, 2)
	assert.Equal(t, "partial", string(frames[1]))
}

func TestParseHandshakeFrameSuccess(t *testing.T) {
	assert.NoError(t, parseHandshakeFrame([]byte("{}")))
}

func TestParseHandshakeFrameError(t *testing.T) {
	err := parseHandshakeFrame([]byte(`{"error":"Requested protocol 'foo' is not available."}`))
	var protoErr *ProtocolError
	assert.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "Requested protocol 'foo' is not available.", protoErr.Message)
}
