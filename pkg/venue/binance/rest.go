package binance

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/bytedance/sonic"
	"github.com/rs/zerolog"

	"bookfeed/internal/circuitbreaker"
	"bookfeed/internal/http"
	"bookfeed/internal/ratelimit"
	"bookfeed/pkg/feed"
)

const (
	spotAPIURL    = "https://api.binance.com"
	depthPath     = "/api/v3/depth"
	maxDepthLimit = 5000
)

// ErrCircuitOpen is returned when the snapshot circuit breaker rejects
// a fetch; the caller's backoff cycle absorbs it like any fetch failure.
var ErrCircuitOpen = errors.New("snapshot circuit breaker open")

// DefaultLimits returns the Binance spot request budgets per endpoint
// category: 6000 request weight per minute for public and account
// endpoints, 100 orders per 10 seconds.
func DefaultLimits() ratelimit.Limits {
	return ratelimit.Limits{
		ratelimit.CategoryMarketData: {Requests: 6000, Period: time.Minute},
		ratelimit.CategoryOrders:     {Requests: 100, Period: 10 * time.Second},
		ratelimit.CategoryAccount:    {Requests: 6000, Period: time.Minute},
	}
}

// DefaultRESTConfig returns transport settings for the spot REST API.
func DefaultRESTConfig() *http.Config {
	return http.DefaultConfig(spotAPIURL)
}

// depthWeight returns the documented request weight for a depth fetch
// of the given limit.
func depthWeight(limit int) int {
	switch {
	case limit <= 100:
		return 5
	case limit <= 500:
		return 25
	case limit <= 1000:
		return 50
	default:
		return 250
	}
}

// depthSnapshot is the raw GET /api/v3/depth response.
type depthSnapshot struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// SnapshotClient fetches full-depth snapshots from the spot REST API.
// It implements feed.SnapshotSource. Admission runs against the shared
// venue rate limiter; repeated fetch failures trip a circuit breaker so
// reconnect cycles fail fast instead of hammering the venue.
type SnapshotClient struct {
	http    *http.Client
	limiter *ratelimit.Limiter
	breaker *circuitbreaker.Breaker
	logger  zerolog.Logger
}

// NewSnapshotClient creates a snapshot client over the given transport
// config and the venue's shared rate limiter.
func NewSnapshotClient(config *http.Config, limiter *ratelimit.Limiter) (*SnapshotClient, error) {
	client, err := http.NewClient(config)
	if err != nil {
		return nil, fmt.Errorf("rest client: %w", err)
	}
	return &SnapshotClient{
		http:    client,
		limiter: limiter,
		breaker: circuitbreaker.New(circuitbreaker.DefaultConfig()),
		logger:  zerolog.Nop(),
	}, nil
}

// SetLogger configures the client's logger.
func (c *SnapshotClient) SetLogger(logger zerolog.Logger) {
	c.logger = logger
	c.http.SetLogger(logger)
}

// Close releases the REST transport.
func (c *SnapshotClient) Close() error {
	return c.http.Close()
}

// Snapshot fetches the order book for a symbol with up to depth levels
// per side. A rate-limit denial is returned as a *ratelimit.LimitError
// so the caller can wait the suggested duration and retry the same
// fetch.
func (c *SnapshotClient) Snapshot(ctx context.Context, symbol string, depth int) (*feed.Snapshot, error) {
	if depth > maxDepthLimit {
		depth = maxDepthLimit
	}

	if !c.breaker.Allow() {
		return nil, ErrCircuitOpen
	}

	if err := c.limiter.Check(ratelimit.CategoryMarketData, depthWeight(depth)); err != nil {
		// A limit denial is not a venue failure; the breaker stays untouched.
		return nil, err
	}

	resp, err := c.http.Get(ctx, depthPath, http.WithQueryParams(map[string]string{
		"symbol": symbol,
		"limit":  strconv.Itoa(depth),
	}))
	if err != nil {
		c.breaker.Record(false)
		return nil, fmt.Errorf("depth request: %w", err)
	}

	if !resp.IsSuccess() {
		c.breaker.Record(false)
		return nil, fmt.Errorf("depth request: status %d: %s", resp.StatusCode(), resp.String())
	}

	var raw depthSnapshot
	if err := sonic.Unmarshal(resp.Bytes(), &raw); err != nil {
		c.breaker.Record(false)
		return nil, fmt.Errorf("decode depth response: %w", err)
	}

	bids, err := parseLevels(raw.Bids)
	if err != nil {
		c.breaker.Record(false)
		return nil, fmt.Errorf("snapshot bids: %w", err)
	}
	asks, err := parseLevels(raw.Asks)
	if err != nil {
		c.breaker.Record(false)
		return nil, fmt.Errorf("snapshot asks: %w", err)
	}

	c.breaker.Record(true)

	c.logger.Debug().
		Str("symbol", symbol).
		Int64("last_update_id", raw.LastUpdateID).
		Int("bids", len(bids)).
		Int("asks", len(asks)).
		Msg("depth snapshot fetched")

	return &feed.Snapshot{
		Bids:         bids,
		Asks:         asks,
		LastUpdateID: raw.LastUpdateID,
	}, nil
}
