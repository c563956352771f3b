package feed

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestStateString(t *testing.T) {
	assert.Equal(t, "disconnected", StateDisconnected.String())
	assert.Equal(t, "awaiting_snapshot", StateAwaitingSnapshot.String())
	assert.Equal(t, "streaming", StateStreaming.String())
	assert.Equal(t, "terminated", StateTerminated.String())
}
