// Package feed maintains a live order book for one instrument.
//
// A Coordinator owns the connect → snapshot → subscribe → apply loop
// for a single instrument and restarts the whole cycle under
// exponential backoff when the stream fails or a sequence gap is
// detected. Venue specifics stay behind two narrow interfaces: a
// SnapshotSource for the one-shot depth fetch and a DeltaStream for the
// incremental subscription, so the core is venue-agnostic and testable
// with fakes.
package feed

import (
	"context"

	"bookfeed/pkg/book"
)

// Snapshot is a full replacement view of the order book at a point in
// time, tagged with the venue's update id.
type Snapshot struct {
	Bids         []book.Level
	Asks         []book.Level
	LastUpdateID int64
}

// Delta is one incremental depth message. A row with size 0 removes its
// level. FirstUpdateID and FinalUpdateID bound the venue update ids the
// message covers; venues without a range report the same id for both.
type Delta struct {
	Bids          []book.Level
	Asks          []book.Level
	FirstUpdateID int64
	FinalUpdateID int64
}

// SnapshotSource fetches a one-shot full-depth snapshot. Implementations
// perform their own rate-limiter admission and surface a denial as a
// *ratelimit.LimitError so the caller can wait and retry the same fetch.
type SnapshotSource interface {
	Snapshot(ctx context.Context, symbol string, depth int) (*Snapshot, error)
}

// DeltaStream is a restartable incremental-update subscription. Connect
// establishes a fresh transport session; Subscribe returns a channel
// that yields deltas in exact arrival order plus an error channel that
// reports the session's end. Close tears down the current session and
// may be followed by another Connect.
type DeltaStream interface {
	Connect(ctx context.Context) error
	Subscribe(ctx context.Context, symbol string) (<-chan Delta, <-chan error, error)
	Close() error
}

// Continuity is the verdict of a ContinuityRule for one delta.
type Continuity int

const (
	// ContinuityApply means the delta continues the sequence and must be applied.
	ContinuityApply Continuity = iota
	// ContinuitySkip means the delta predates the snapshot and is dropped.
	ContinuitySkip
	// ContinuityGap means updates were missed; the book must be rebuilt
	// from a fresh snapshot.
	ContinuityGap
)

// ContinuityRule decides whether a delta continues the applied sequence.
// lastUpdateID is the book's last applied id and synced reports whether
// any delta has been applied since the snapshot. The rule is supplied by
// the venue glue, since continuation semantics differ per venue protocol.
type ContinuityRule func(lastUpdateID int64, synced bool, d *Delta) Continuity

// ExactContinuity is the strict default rule: every delta must start at
// exactly lastUpdateID+1. Deltas entirely at or before lastUpdateID are
// skipped as stale.
func ExactContinuity(lastUpdateID int64, _ bool, d *Delta) Continuity {
	if d.FinalUpdateID <= lastUpdateID {
		return ContinuitySkip
	}
	if d.FirstUpdateID != lastUpdateID+1 {
		return ContinuityGap
	}
	return ContinuityApply
}
