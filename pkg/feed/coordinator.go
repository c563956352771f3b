package feed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"bookfeed/internal/ratelimit"
	"bookfeed/pkg/book"
)

// Quote is a read-only top-of-book view for display and alerting.
// Spread and Mid are meaningful only when both HasBid and HasAsk hold.
type Quote struct {
	Symbol       string
	BestBid      book.Level
	BestAsk      book.Level
	HasBid       bool
	HasAsk       bool
	Spread       float64
	Mid          float64
	LastUpdateID int64
	At           time.Time
}

// Coordinator drives the feed state machine for one instrument. The
// order book it maintains is touched only by the Run goroutine; readers
// observe it through Quote and Metrics snapshots.
type Coordinator struct {
	config *Config
	source SnapshotSource
	stream DeltaStream
	rule   ContinuityRule

	book    *book.Book
	metrics *Metrics
	state   stateVar
	logger  zerolog.Logger

	synced bool

	quoteMu sync.RWMutex
	quote   Quote
}

// New creates a Coordinator for one instrument. The continuity rule
// defaults to ExactContinuity; venues with range-based update ids
// install their own rule via SetContinuityRule.
func New(config *Config, source SnapshotSource, stream DeltaStream) (*Coordinator, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	c := &Coordinator{
		config:  config,
		source:  source,
		stream:  stream,
		rule:    ExactContinuity,
		book:    book.New(config.Precision),
		metrics: NewMetrics(),
		logger:  zerolog.Nop(),
	}
	c.state.store(StateDisconnected)
	c.quote = Quote{Symbol: config.Symbol}
	return c, nil
}

// SetLogger configures the coordinator's logger.
func (c *Coordinator) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// SetContinuityRule replaces the delta continuation predicate. It must
// be called before Run.
func (c *Coordinator) SetContinuityRule(rule ContinuityRule) {
	c.rule = rule
}

// State returns the coordinator's current lifecycle state.
func (c *Coordinator) State() State {
	return c.state.load()
}

// Metrics returns a snapshot of the feed's statistics.
func (c *Coordinator) Metrics() MetricsSnapshot {
	return c.metrics.Snapshot()
}

// Quote returns the most recent top-of-book view.
func (c *Coordinator) Quote() Quote {
	c.quoteMu.RLock()
	defer c.quoteMu.RUnlock()
	return c.quote
}

// Book returns the underlying order book. It is owned by the Run
// goroutine while the feed is active; callers may inspect it freely
// once Run has returned.
func (c *Coordinator) Book() *book.Book {
	return c.book
}

// Run executes the feed until the context is cancelled or reconnect
// attempts are exhausted. Transient failures — stream errors, sequence
// gaps, snapshot fetch errors — are absorbed by the backoff cycle; the
// only fatal return is an *ExhaustedError (or the context's error on
// shutdown).
func (c *Coordinator) Run(ctx context.Context) error {
	backoff := ratelimit.NewBackoff(c.config.Backoff)

	for {
		err := c.session(ctx, backoff)

		if ctx.Err() != nil {
			c.state.store(StateDisconnected)
			return ctx.Err()
		}

		c.logSessionEnd(err)
		c.metrics.recordReconnect()
		c.state.store(StateBackoff)

		wait, berr := backoff.Next()
		if berr != nil {
			c.state.store(StateTerminated)
			c.logger.Error().
				Str("symbol", c.config.Symbol).
				Int("attempts", backoff.Attempts()).
				Err(err).
				Msg("reconnect attempts exhausted, feed terminated")
			return &ExhaustedError{Attempts: backoff.Attempts(), Last: err}
		}

		c.logger.Warn().
			Str("symbol", c.config.Symbol).
			Dur("wait", wait).
			Int("attempt", backoff.Attempts()).
			Msg("reconnecting after backoff")

		select {
		case <-time.After(wait):
		case <-ctx.Done():
			c.state.store(StateDisconnected)
			return ctx.Err()
		}
	}
}

// session runs one connect → snapshot → stream cycle and returns the
// failure that ended it.
func (c *Coordinator) session(ctx context.Context, backoff *ratelimit.Backoff) error {
	c.state.store(StateConnecting)
	c.synced = false

	if err := c.stream.Connect(ctx); err != nil {
		return &StreamError{Err: err}
	}
	defer func() {
		if err := c.stream.Close(); err != nil {
			c.logger.Debug().Err(err).Msg("stream close")
		}
	}()

	deltas, errs, err := c.stream.Subscribe(ctx, c.config.Symbol)
	if err != nil {
		return &StreamError{Err: err}
	}

	// Deltas that arrive while the snapshot fetch is in flight queue up
	// on the subscription channel and replay through the same
	// continuity path once the book is seeded.
	c.state.store(StateAwaitingSnapshot)
	snap, err := c.fetchSnapshot(ctx)
	if err != nil {
		return err
	}

	c.book.ApplySnapshot(snap.Bids, snap.Asks, snap.LastUpdateID)
	c.publishQuote()
	backoff.Reset()
	c.state.store(StateStreaming)

	c.logger.Info().
		Str("symbol", c.config.Symbol).
		Int64("last_update_id", snap.LastUpdateID).
		Int("bid_levels", c.book.BidLen()).
		Int("ask_levels", c.book.AskLen()).
		Msg("book seeded from snapshot")

	ticker := time.NewTicker(c.config.ReportInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			c.report()
		case err := <-errs:
			return &StreamError{Err: err}
		case d, ok := <-deltas:
			if !ok {
				return &StreamError{Err: errors.New("delta channel closed")}
			}
			if err := c.applyDelta(&d); err != nil {
				return err
			}
		}
	}
}

// fetchSnapshot retries the one-shot fetch through rate-limit denials:
// a *ratelimit.LimitError is waited out locally and the same request
// reissued, never escalated to a reconnect.
func (c *Coordinator) fetchSnapshot(ctx context.Context) (*Snapshot, error) {
	for {
		snap, err := c.source.Snapshot(ctx, c.config.Symbol, c.config.SnapshotDepth)
		if err == nil {
			return snap, nil
		}

		var limitErr *ratelimit.LimitError
		if !errors.As(err, &limitErr) {
			return nil, &SnapshotError{Err: err}
		}

		c.logger.Warn().
			Str("symbol", c.config.Symbol).
			Dur("retry_after", limitErr.RetryAfter).
			Msg("snapshot fetch rate limited")

		select {
		case <-time.After(limitErr.RetryAfter):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
}

// applyDelta runs the continuity check and, only if it passes, applies
// every row of the delta in order. No row of a gapped delta touches the
// book.
func (c *Coordinator) applyDelta(d *Delta) error {
	start := time.Now()

	switch c.rule(c.book.LastUpdateID(), c.synced, d) {
	case ContinuitySkip:
		return nil
	case ContinuityGap:
		c.metrics.recordGap()
		return &SequenceGapError{
			ExpectedID: c.book.LastUpdateID() + 1,
			FirstID:    d.FirstUpdateID,
			FinalID:    d.FinalUpdateID,
		}
	}

	c.book.ApplyDelta(d.Bids, d.Asks, d.FinalUpdateID)
	c.synced = true
	c.metrics.observeUpdate(time.Since(start))
	c.publishQuote()
	return nil
}

func (c *Coordinator) publishQuote() {
	bid, hasBid := c.book.BestBid()
	ask, hasAsk := c.book.BestAsk()

	q := Quote{
		Symbol:       c.config.Symbol,
		BestBid:      bid,
		BestAsk:      ask,
		HasBid:       hasBid,
		HasAsk:       hasAsk,
		LastUpdateID: c.book.LastUpdateID(),
		At:           time.Now(),
	}
	if hasBid && hasAsk {
		q.Spread = ask.Price - bid.Price
		q.Mid = (ask.Price + bid.Price) / 2
	}

	c.quoteMu.Lock()
	c.quote = q
	c.quoteMu.Unlock()
}

func (c *Coordinator) report() {
	snap := c.metrics.Snapshot()

	evt := c.logger.Info().
		Str("symbol", c.config.Symbol).
		Int64("last_update_id", c.book.LastUpdateID()).
		Int("bid_levels", c.book.BidLen()).
		Int("ask_levels", c.book.AskLen()).
		Int64("updates", snap.UpdatesProcessed).
		Int64("gaps", snap.GapsDetected).
		Int64("reconnects", snap.Reconnects).
		Dur("avg_latency", snap.AvgUpdateLatency).
		Dur("max_latency", snap.MaxUpdateLatency)

	if bid, ok := c.book.BestBid(); ok {
		evt = evt.Float64("best_bid", bid.Price).Float64("bid_size", bid.Size)
	}
	if ask, ok := c.book.BestAsk(); ok {
		evt = evt.Float64("best_ask", ask.Price).Float64("ask_size", ask.Size)
	}
	if spread, ok := c.book.Spread(); ok {
		evt = evt.Float64("spread", spread)
	}

	evt.Msg("book status")
}

func (c *Coordinator) logSessionEnd(err error) {
	var gapErr *SequenceGapError
	var snapErr *SnapshotError

	switch {
	case errors.As(err, &gapErr):
		c.logger.Warn().
			Str("symbol", c.config.Symbol).
			Int64("expected", gapErr.ExpectedID).
			Int64("first", gapErr.FirstID).
			Int64("final", gapErr.FinalID).
			Msg("sequence gap, resyncing from snapshot")
	case errors.As(err, &snapErr):
		c.logger.Warn().
			Str("symbol", c.config.Symbol).
			Err(snapErr.Err).
			Msg("snapshot fetch failed")
	default:
		c.logger.Warn().
			Str("symbol", c.config.Symbol).
			Err(err).
			Msg("stream session ended")
	}
}
