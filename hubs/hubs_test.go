package hubs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeInvocation(t *testing.T) {
	msg := NewInvocation("1", "Send", "hello", 42)
	data, err := Encode(msg)
	require.NoError(t, err)

	decoded, err := Decode(data)
	require.NoError(t, err)

	inv, ok := decoded.(InvocationMessage)
	require.True(t, ok)
	assert.Equal(t, "Send", inv.Target)
	assert.Equal(t, "1", inv.InvocationID)
	assert.Equal(t, []interface{}{"hello", float64(42)}, inv.Arguments)
}

func TestDecodePing(t *testing.T) {
	decoded, err := Decode([]byte(`{"type":6}`))
	require.NoError(t, err)
	assert.Equal(t, PingMessage{Type: TypePing}, decoded)
}

func TestDecodeCompletionWithError(t *testing.T) {
	decoded, err := Decode([]byte(`{"type":3,"invocationId":"1","error":"method not found"}`))
	require.NoError(t, err)
	completion, ok := decoded.(CompletionMessage)
	require.True(t, ok)
	assert.Equal(t, "method not found", completion.Error)
}

func TestDecodeUnknownTypeErrors(t *testing.T) {
	_, err := Decode([]byte(`{"type":99}`))
	assert.Error(t, err)
}
