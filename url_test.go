package signalr

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildNegotiateURL(t *testing.T) {
	got, err := buildNegotiateURL("https://example.com/chatHub?foo=bar")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/chatHub/negotiate?foo=bar", got)
}

func TestBuildNegotiateURLTrimsTrailingSlash(t *testing.T) {
	got, err := buildNegotiateURL("https://example.com/chatHub/")
	require.NoError(t, err)
	assert.Equal(t, "https://example.com/chatHub/negotiate", got)
}

func TestBuildConnectURLAppendsID(t *testing.T) {
	got, err := buildConnectURL("https://example.com/chatHub", "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "wss://example.com/chatHub?id=conn-1", got)
}

func TestBuildConnectURLPreservesExistingQueryOrder(t *testing.T) {
	got, err := buildConnectURL("http://example.com/chatHub?a=b&c=d", "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "ws://example.com/chatHub?a=b&c=d&id=conn-1", got)
}

func TestBuildConnectURLDefaultsToRootPath(t *testing.T) {
	got, err := buildConnectURL("http://redirected", "conn-1")
	require.NoError(t, err)
	assert.Equal(t, "ws://redirected/?id=conn-1", got)
}

func TestBuildWithRedirectDropsBaseQuery(t *testing.T) {
	got, err := buildWithRedirect("https://example.com/chatHub?a=b&c=d", "https://other.example.com/chatHub?customQuery=1")
	require.NoError(t, err)
	assert.Equal(t, "https://other.example.com/chatHub?customQuery=1", got)
}

func TestMapToWebsocketScheme(t *testing.T) {
	cases := map[string]string{
		"http":  "ws",
		"https": "wss",
	}
	for in, out := range cases {
		got, err := buildConnectURL(in+"://example.com", "id")
		require.NoError(t, err)
		assert.Contains(t, got, out+"://")
	}
}
