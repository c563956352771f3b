package ws

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestNewConn_Defaults(t *testing.T) {
	c := NewConn(Config{URL: "wss://example.com/ws"})

	assert.NotNil(t, c)
	assert.False(t, c.IsConnected())
	assert.Equal(t, 10*time.Second, c.config.PingInterval)
	assert.Equal(t, 20*time.Second, c.config.PongWait)
	assert.Equal(t, 1024, c.config.BufferSize)
}

func TestConn_StateTransitions(t *testing.T) {
	s := &State{}
	s.Store(StateDisconnected)

	assert.True(t, s.CompareAndSwap(StateDisconnected, StateConnecting))
	assert.False(t, s.CompareAndSwap(StateDisconnected, StateConnecting))
	assert.Equal(t, StateConnecting, s.Load())
	assert.Equal(t, "connecting", s.Load().String())
}

func TestConn_WriteMessage_NotConnected(t *testing.T) {
	c := NewConn(Config{URL: "wss://example.com/ws"})

	err := c.WriteMessage([]byte("test"))
	assert.Error(t, err)
}

func TestConn_SendJSON_NotConnected(t *testing.T) {
	c := NewConn(Config{URL: "wss://example.com/ws"})

	err := c.SendJSON(map[string]any{"method": "SUBSCRIBE"})
	assert.Error(t, err)
}

func TestConn_CloseIsIdempotent(t *testing.T) {
	c := NewConn(Config{URL: "wss://example.com/ws"})

	assert.NoError(t, c.Close())
	assert.NoError(t, c.Close())
	assert.Equal(t, StateClosed, c.State())
}
