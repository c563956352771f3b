// Package circuitbreaker trips repeated failing calls to a venue
// endpoint so retry cycles fail fast instead of hammering the venue.
package circuitbreaker

import (
	"sync"
	"sync/atomic"
	"time"
)

// State is the breaker state.
type State int32

// Breaker states.
const (
	// StateClosed admits all calls.
	StateClosed State = iota
	// StateOpen rejects calls until the cooldown elapses.
	StateOpen
	// StateHalfOpen admits probe calls after the cooldown.
	StateHalfOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "CLOSED"
	case StateOpen:
		return "OPEN"
	case StateHalfOpen:
		return "HALF_OPEN"
	default:
		return "UNKNOWN"
	}
}

// Config holds breaker thresholds.
type Config struct {
	// FailThreshold is the number of consecutive failures that opens the breaker.
	FailThreshold int
	// SuccessThreshold is the number of consecutive probe successes that closes it again.
	SuccessThreshold int
	// Cooldown is how long the breaker stays open before admitting probes.
	Cooldown time.Duration
}

// DefaultConfig returns thresholds suited to one-shot REST calls:
// 5 failures to open, 2 successes to close, 30s cooldown.
func DefaultConfig() Config {
	return Config{
		FailThreshold:    5,
		SuccessThreshold: 2,
		Cooldown:         30 * time.Second,
	}
}

// Breaker is a three-state circuit breaker. It is safe for concurrent use.
type Breaker struct {
	mu        sync.Mutex
	config    Config
	state     State
	failures  int
	successes int
	openedAt  time.Time

	stateChanges atomic.Int32
}

// New creates a closed Breaker with the given thresholds.
func New(config Config) *Breaker {
	return &Breaker{config: config, state: StateClosed}
}

// Allow reports whether a call may proceed. An open breaker whose
// cooldown has elapsed transitions to half-open and admits the call as
// a probe.
func (b *Breaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed, StateHalfOpen:
		return true
	case StateOpen:
		if time.Since(b.openedAt) >= b.config.Cooldown {
			b.transition(StateHalfOpen)
			b.successes = 0
			return true
		}
		return false
	}
	return false
}

// Record reports the outcome of a call admitted by Allow.
func (b *Breaker) Record(success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	switch b.state {
	case StateClosed:
		if success {
			b.failures = 0
			return
		}
		b.failures++
		if b.failures >= b.config.FailThreshold {
			b.openedAt = time.Now()
			b.transition(StateOpen)
		}
	case StateHalfOpen:
		if success {
			b.successes++
			if b.successes >= b.config.SuccessThreshold {
				b.failures = 0
				b.successes = 0
				b.transition(StateClosed)
			}
			return
		}
		b.openedAt = time.Now()
		b.successes = 0
		b.transition(StateOpen)
	case StateOpen:
		// A call recorded against an open breaker raced the trip; the
		// outcome carries no new information.
	}
}

func (b *Breaker) transition(next State) {
	b.state = next
	b.stateChanges.Add(1)
}

// State returns the current breaker state.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// Reset forces the breaker closed and clears its counters.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.state = StateClosed
	b.failures = 0
	b.successes = 0
}

// StateChanges returns the number of state transitions since creation.
func (b *Breaker) StateChanges() int32 {
	return b.stateChanges.Load()
}
