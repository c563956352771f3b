package binance

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"bookfeed/internal/ws"
	"bookfeed/pkg/feed"
)

const spotStreamURL = "wss://stream.binance.com:9443/ws"

// StreamConfig holds settings for the spot depth stream.
type StreamConfig struct {
	// URL is the websocket endpoint.
	URL string
	// UpdateSpeed selects the depth stream cadence ("100ms" or "1000ms").
	UpdateSpeed string
	// BufferSize is the capacity of the delta channel. Deltas queue here
	// while the snapshot fetch is in flight.
	BufferSize int
}

// DefaultStreamConfig returns the production spot stream settings with
// the 100ms depth cadence.
func DefaultStreamConfig() StreamConfig {
	return StreamConfig{
		URL:         spotStreamURL,
		UpdateSpeed: "100ms",
		BufferSize:  1024,
	}
}

// subscribeFrame is the venue's stream management request.
type subscribeFrame struct {
	Method string   `json:"method"`
	Params []string `json:"params"`
	ID     int64    `json:"id"`
}

// streamEnvelope distinguishes depth events from subscription acks and
// other control frames.
type streamEnvelope struct {
	Event string `json:"e"`
	ID    *int64 `json:"id,omitempty"`
}

// depthUpdateEvent is the raw depthUpdate payload.
type depthUpdateEvent struct {
	Event         string     `json:"e"`
	EventTime     int64      `json:"E"`
	Symbol        string     `json:"s"`
	FirstUpdateID int64      `json:"U"`
	FinalUpdateID int64      `json:"u"`
	Bids          [][]string `json:"b"`
	Asks          [][]string `json:"a"`
}

// Stream is the incremental depth subscription for one instrument. It
// implements feed.DeltaStream: each Connect opens a fresh transport
// session, and Close ends it so the coordinator can run another cycle.
type Stream struct {
	config    StreamConfig
	logger    zerolog.Logger
	requestID atomic.Int64

	mu   sync.Mutex
	conn *ws.Conn
	done chan struct{}
	wg   sync.WaitGroup
}

// NewStream creates a depth stream with the given configuration.
func NewStream(config StreamConfig) *Stream {
	if config.URL == "" {
		config.URL = spotStreamURL
	}
	if config.UpdateSpeed == "" {
		config.UpdateSpeed = "100ms"
	}
	if config.BufferSize == 0 {
		config.BufferSize = 1024
	}
	return &Stream{config: config}
}

// SetLogger configures the stream's logger.
func (s *Stream) SetLogger(logger zerolog.Logger) {
	s.logger = logger
}

// Connect opens a fresh websocket session.
func (s *Stream) Connect(ctx context.Context) error {
	conn := ws.NewConn(ws.Config{
		URL:        s.config.URL,
		BufferSize: s.config.BufferSize,
	})
	conn.SetLogger(s.logger)

	if err := conn.Connect(ctx); err != nil {
		return fmt.Errorf("connect depth stream: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.done = make(chan struct{})
	s.mu.Unlock()
	return nil
}

// Close tears down the current session. The stream may be reconnected
// afterwards with Connect.
func (s *Stream) Close() error {
	s.mu.Lock()
	conn := s.conn
	done := s.done
	s.conn = nil
	s.done = nil
	s.mu.Unlock()

	if conn == nil {
		return nil
	}
	close(done)
	err := conn.Close()
	s.wg.Wait()
	return err
}

// Subscribe issues the depth channel subscription for a symbol and
// returns the ordered delta channel plus an error channel reporting the
// session's end. Malformed frames end the session: a parse failure is
// indistinguishable from a protocol break and the book must resync.
func (s *Stream) Subscribe(ctx context.Context, symbol string) (<-chan feed.Delta, <-chan error, error) {
	s.mu.Lock()
	conn := s.conn
	done := s.done
	s.mu.Unlock()

	if conn == nil {
		return nil, nil, fmt.Errorf("stream not connected")
	}

	channel := fmt.Sprintf("%s@depth@%s", strings.ToLower(symbol), s.config.UpdateSpeed)
	frame := subscribeFrame{
		Method: "SUBSCRIBE",
		Params: []string{channel},
		ID:     s.requestID.Add(1),
	}
	if err := conn.SendJSON(frame); err != nil {
		return nil, nil, fmt.Errorf("subscribe %s: %w", channel, err)
	}

	s.logger.Debug().Str("channel", channel).Msg("depth subscription sent")

	deltas := make(chan feed.Delta, s.config.BufferSize)
	errs := make(chan error, 1)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer close(deltas)
		s.readLoop(ctx, conn, done, deltas, errs)
	}()

	return deltas, errs, nil
}

// readLoop parses frames from one session in arrival order. It is the
// only goroutine writing to deltas, so delivery order matches transport
// order.
func (s *Stream) readLoop(ctx context.Context, conn *ws.Conn, done <-chan struct{}, deltas chan<- feed.Delta, errs chan<- error) {
	for {
		select {
		case <-ctx.Done():
			return
		case <-done:
			return
		case err := <-conn.Errs():
			errs <- fmt.Errorf("depth stream: %w", err)
			return
		case data, ok := <-conn.Messages():
			if !ok {
				errs <- fmt.Errorf("depth stream closed")
				return
			}

			delta, ok, err := s.parseFrame(data)
			if err != nil {
				errs <- err
				return
			}
			if !ok {
				continue
			}

			select {
			case deltas <- delta:
			case <-ctx.Done():
				return
			case <-done:
				return
			}
		}
	}
}

// parseFrame decodes one frame. The second return is false for control
// frames (subscription acks) that carry no depth data.
func (s *Stream) parseFrame(data []byte) (feed.Delta, bool, error) {
	var env streamEnvelope
	if err := sonic.Unmarshal(data, &env); err != nil {
		return feed.Delta{}, false, fmt.Errorf("decode stream frame: %w", err)
	}

	if env.Event != "depthUpdate" {
		if env.ID == nil {
			s.logger.Debug().Str("frame", string(data)).Msg("unhandled stream frame")
		}
		return feed.Delta{}, false, nil
	}

	var evt depthUpdateEvent
	if err := sonic.Unmarshal(data, &evt); err != nil {
		return feed.Delta{}, false, fmt.Errorf("decode depth update: %w", err)
	}

	bids, err := parseLevels(evt.Bids)
	if err != nil {
		return feed.Delta{}, false, fmt.Errorf("depth update bids: %w", err)
	}
	asks, err := parseLevels(evt.Asks)
	if err != nil {
		return feed.Delta{}, false, fmt.Errorf("depth update asks: %w", err)
	}

	return feed.Delta{
		Bids:          bids,
		Asks:          asks,
		FirstUpdateID: evt.FirstUpdateID,
		FinalUpdateID: evt.FinalUpdateID,
	}, true, nil
}

// SpotContinuity is the Binance spot continuation rule. The first delta
// after a snapshot must straddle lastUpdateId+1 (U <= lastUpdateId+1 <= u);
// every subsequent delta must start at exactly lastUpdateId+1. Deltas
// entirely at or before the snapshot id are stale and skipped.
func SpotContinuity(lastUpdateID int64, synced bool, d *feed.Delta) feed.Continuity {
	if d.FinalUpdateID <= lastUpdateID {
		return feed.ContinuitySkip
	}
	if !synced {
		if d.FirstUpdateID <= lastUpdateID+1 && d.FinalUpdateID >= lastUpdateID+1 {
			return feed.ContinuityApply
		}
		return feed.ContinuityGap
	}
	if d.FirstUpdateID == lastUpdateID+1 {
		return feed.ContinuityApply
	}
	return feed.ContinuityGap
}
