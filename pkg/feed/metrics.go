package feed

import (
	"sync"
	"time"
)

// Metrics tracks per-feed statistics. One instance lives for the
// lifetime of a Coordinator; the feed goroutine writes, any goroutine
// may take a Snapshot.
type Metrics struct {
	mu sync.Mutex

	updatesProcessed int64
	gapsDetected     int64
	reconnects       int64

	lastLatency time.Duration
	maxLatency  time.Duration
	avgLatency  float64 // nanoseconds, running mean
}

// NewMetrics creates an empty Metrics.
func NewMetrics() *Metrics {
	return &Metrics{}
}

func (m *Metrics) observeUpdate(latency time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.lastLatency = latency
	if latency > m.maxLatency {
		m.maxLatency = latency
	}
	n := float64(m.updatesProcessed)
	m.avgLatency = (m.avgLatency*n + float64(latency)) / (n + 1)
	m.updatesProcessed++
}

func (m *Metrics) recordGap() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gapsDetected++
}

func (m *Metrics) recordReconnect() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reconnects++
}

// Snapshot returns a read-only copy of the current statistics.
func (m *Metrics) Snapshot() MetricsSnapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	return MetricsSnapshot{
		UpdatesProcessed:  m.updatesProcessed,
		GapsDetected:      m.gapsDetected,
		Reconnects:        m.reconnects,
		LastUpdateLatency: m.lastLatency,
		AvgUpdateLatency:  time.Duration(m.avgLatency),
		MaxUpdateLatency:  m.maxLatency,
	}
}

// MetricsSnapshot is a point-in-time capture of feed statistics.
type MetricsSnapshot struct {
	// UpdatesProcessed is the number of deltas applied to the book.
	UpdatesProcessed int64
	// GapsDetected is the number of sequence gaps that forced a resync.
	GapsDetected int64
	// Reconnects is the number of full reconnect cycles.
	Reconnects int64
	// LastUpdateLatency is the apply time of the most recent delta.
	LastUpdateLatency time.Duration
	// AvgUpdateLatency is the running mean apply time.
	AvgUpdateLatency time.Duration
	// MaxUpdateLatency is the worst apply time observed.
	MaxUpdateLatency time.Duration
}
