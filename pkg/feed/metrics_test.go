package feed

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMetricsObserveUpdate(t *testing.T) {
	m := NewMetrics()

	m.observeUpdate(10 * time.Millisecond)
	m.observeUpdate(20 * time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, int64(2), snap.UpdatesProcessed)
	assert.Equal(t, 20*time.Millisecond, snap.LastUpdateLatency)
	assert.Equal(t, 20*time.Millisecond, snap.MaxUpdateLatency)
	assert.Equal(t, 15*time.Millisecond, snap.AvgUpdateLatency)
}

func TestMetricsMaxLatencyRetained(t *testing.T) {
	m := NewMetrics()

	m.observeUpdate(30 * time.Millisecond)
	m.observeUpdate(5 * time.Millisecond)

	snap := m.Snapshot()
	assert.Equal(t, 5*time.Millisecond, snap.LastUpdateLatency)
	assert.Equal(t, 30*time.Millisecond, snap.MaxUpdateLatency)
}

func TestMetricsCounters(t *testing.T) {
	m := NewMetrics()

	m.recordGap()
	m.recordReconnect()
	m.recordReconnect()

	snap := m.Snapshot()
	assert.Equal(t, int64(1), snap.GapsDetected)
	assert.Equal(t, int64(2), snap.Reconnects)
	assert.Equal(t, int64(0), snap.UpdatesProcessed)
}
