package feed

import "fmt"

// StreamError is a transport-level failure on the subscription:
// connection drop, malformed frame, or the delta channel closing.
// The coordinator recovers by a full reconnect.
type StreamError struct {
	Err error
}

// Error implements the error interface.
func (e *StreamError) Error() string {
	return fmt.Sprintf("stream error: %v", e.Err)
}

// Unwrap returns the underlying transport error.
func (e *StreamError) Unwrap() error {
	return e.Err
}

// SnapshotError is a failure of the one-shot depth fetch. The
// coordinator recovers by backing off and retrying the whole connect
// cycle.
type SnapshotError struct {
	Err error
}

// Error implements the error interface.
func (e *SnapshotError) Error() string {
	return fmt.Sprintf("snapshot fetch: %v", e.Err)
}

// Unwrap returns the underlying fetch error.
func (e *SnapshotError) Unwrap() error {
	return e.Err
}

// SequenceGapError reports a delta whose update ids do not continue the
// book's applied sequence. The book state is discarded and re-seeded
// from a fresh snapshot before any row of the offending delta is applied.
type SequenceGapError struct {
	ExpectedID int64
	FirstID    int64
	FinalID    int64
}

// Error implements the error interface.
func (e *SequenceGapError) Error() string {
	return fmt.Sprintf("sequence gap: expected %d, got updates %d..%d",
		e.ExpectedID, e.FirstID, e.FinalID)
}

// ExhaustedError is fatal: the reconnect attempt count reached the
// configured ceiling. It is the only error Run surfaces for transient
// failures; Last carries the failure that ended the final attempt.
type ExhaustedError struct {
	Attempts int
	Last     error
}

// Error implements the error interface.
func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("feed terminated after %d reconnect attempts: %v", e.Attempts, e.Last)
}

// Unwrap returns the failure from the final attempt.
func (e *ExhaustedError) Unwrap() error {
	return e.Last
}
