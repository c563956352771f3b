package ratelimit

import (
	"errors"
	"time"
)

// ErrBackoffExhausted is returned by Backoff.Next once the configured
// attempt ceiling is reached. The caller must treat the underlying
// condition as fatal rather than retry indefinitely.
var ErrBackoffExhausted = errors.New("backoff attempts exhausted")

// BackoffConfig controls reconnect pacing: exponential growth from an
// initial delay, capped at a maximum, bounded by a maximum attempt count.
type BackoffConfig struct {
	Initial     time.Duration `validate:"min=1ms"`
	Max         time.Duration `validate:"min=1ms"`
	Multiplier  float64       `validate:"min=1"`
	MaxAttempts int           `validate:"min=1"`
}

// DefaultBackoffConfig mirrors the usual reconnect pacing for market
// data feeds: 1s initial, 30s ceiling, doubling, 5 attempts.
func DefaultBackoffConfig() BackoffConfig {
	return BackoffConfig{
		Initial:     1 * time.Second,
		Max:         30 * time.Second,
		Multiplier:  2.0,
		MaxAttempts: 5,
	}
}

// Backoff tracks retry state for one failure-prone operation. It is not
// safe for concurrent use; each caller owns its own Backoff.
type Backoff struct {
	config   BackoffConfig
	attempts int
	delay    time.Duration
}

// NewBackoff creates a Backoff in its reset state.
func NewBackoff(config BackoffConfig) *Backoff {
	return &Backoff{
		config: config,
		delay:  config.Initial,
	}
}

// Next records a failure and returns the delay to wait before the next
// attempt: Initial on the first failure, multiplied on each subsequent
// one, never exceeding Max. Once MaxAttempts failures have been recorded
// it returns ErrBackoffExhausted.
func (b *Backoff) Next() (time.Duration, error) {
	if b.attempts >= b.config.MaxAttempts {
		return 0, ErrBackoffExhausted
	}

	wait := b.delay
	b.attempts++

	next := time.Duration(float64(b.delay) * b.config.Multiplier)
	if next > b.config.Max {
		next = b.config.Max
	}
	b.delay = next

	return wait, nil
}

// Attempts returns the number of failures recorded since the last reset.
func (b *Backoff) Attempts() int {
	return b.attempts
}

// Exhausted reports whether the attempt ceiling has been reached.
func (b *Backoff) Exhausted() bool {
	return b.attempts >= b.config.MaxAttempts
}

// Reset clears the retry state after a successful, sustained connection.
func (b *Backoff) Reset() {
	b.attempts = 0
	b.delay = b.config.Initial
}
