package feed

import "sync/atomic"

// State is the coordinator's position in the feed lifecycle.
type State int32

// Feed lifecycle states.
const (
	// StateDisconnected is the initial state; no resources are held.
	StateDisconnected State = iota
	// StateConnecting means the stream session is being established.
	StateConnecting
	// StateAwaitingSnapshot means the one-shot depth fetch is in flight.
	StateAwaitingSnapshot
	// StateStreaming means deltas are being applied to the book.
	StateStreaming
	// StateBackoff means the feed is waiting out a reconnect delay.
	StateBackoff
	// StateTerminated is terminal: reconnect attempts were exhausted.
	StateTerminated
)

// String returns the string representation of the state.
func (s State) String() string {
	return [...]string{
		"disconnected",
		"connecting",
		"awaiting_snapshot",
		"streaming",
		"backoff",
		"terminated",
	}[s]
}

type stateVar struct {
	v atomic.Int32
}

func (s *stateVar) load() State {
	return State(s.v.Load())
}

func (s *stateVar) store(state State) {
	s.v.Store(int32(state))
}
