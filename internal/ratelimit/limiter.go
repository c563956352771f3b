// Package ratelimit bounds the rate of outbound venue requests and the
// cadence of reconnect attempts.
//
// A Limiter holds one token budget per endpoint category, since venues
// impose separate limits per endpoint class. One Limiter is shared per
// venue and passed explicitly to every component that issues requests;
// it is safe for concurrent use.
package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// Category identifies a venue endpoint class with its own rate budget.
type Category string

// Endpoint categories used across venue clients.
const (
	// CategoryMarketData covers public market data endpoints (depth, trades, tickers).
	CategoryMarketData Category = "market_data"
	// CategoryOrders covers order placement and cancellation endpoints.
	CategoryOrders Category = "orders"
	// CategoryAccount covers private account data endpoints.
	CategoryAccount Category = "account"
)

// Limit describes one category's budget: Requests replenish over Period,
// with at most Burst tokens accumulated. A zero Burst defaults to Requests.
type Limit struct {
	Requests int
	Period   time.Duration
	Burst    int
}

func (l Limit) limiter() *rate.Limiter {
	rps := float64(l.Requests) / l.Period.Seconds()
	burst := l.Burst
	if burst <= 0 {
		burst = l.Requests
	}
	return rate.NewLimiter(rate.Limit(rps), burst)
}

// Limits maps each category to its budget.
type Limits map[Category]Limit

// LimitError reports a denied admission check along with how long the
// caller should wait before retrying the same request.
type LimitError struct {
	Category   Category
	Weight     int
	RetryAfter time.Duration
}

// Error implements the error interface.
func (e *LimitError) Error() string {
	return fmt.Sprintf("rate limit exceeded for %s (weight %d), retry after %s",
		e.Category, e.Weight, e.RetryAfter)
}

// Limiter provides per-category admission control backed by token buckets.
type Limiter struct {
	mu      sync.RWMutex
	buckets map[Category]*rate.Limiter
	limits  Limits
	metrics limiterMetrics
}

type limiterMetrics struct {
	totalRequests   atomic.Int64
	allowedRequests atomic.Int64
	deniedRequests  atomic.Int64
}

// New creates a Limiter with the given per-category budgets.
func New(limits Limits) *Limiter {
	buckets := make(map[Category]*rate.Limiter, len(limits))
	for cat, lim := range limits {
		buckets[cat] = lim.limiter()
	}
	return &Limiter{
		buckets: buckets,
		limits:  limits,
	}
}

func (l *Limiter) bucket(category Category) (*rate.Limiter, error) {
	l.mu.RLock()
	bucket, ok := l.buckets[category]
	l.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no rate limit configured for category %s", category)
	}
	return bucket, nil
}

// Acquire blocks until the category's budget admits a request of the
// given weight, or the context is cancelled.
func (l *Limiter) Acquire(ctx context.Context, category Category, weight int) error {
	l.metrics.totalRequests.Add(1)

	bucket, err := l.bucket(category)
	if err != nil {
		l.metrics.deniedRequests.Add(1)
		return err
	}

	if err := bucket.WaitN(ctx, weight); err != nil {
		l.metrics.deniedRequests.Add(1)
		return fmt.Errorf("acquire %s: %w", category, err)
	}

	l.metrics.allowedRequests.Add(1)
	return nil
}

// Check performs a non-blocking admission check. A denial returns a
// *LimitError carrying the suggested retry-after duration; the request
// itself stays valid and should be retried after waiting, not abandoned.
func (l *Limiter) Check(category Category, weight int) error {
	l.metrics.totalRequests.Add(1)

	bucket, err := l.bucket(category)
	if err != nil {
		l.metrics.deniedRequests.Add(1)
		return err
	}

	now := time.Now()
	res := bucket.ReserveN(now, weight)
	if !res.OK() {
		l.metrics.deniedRequests.Add(1)
		return fmt.Errorf("weight %d exceeds burst for category %s", weight, category)
	}

	if delay := res.DelayFrom(now); delay > 0 {
		res.CancelAt(now)
		l.metrics.deniedRequests.Add(1)
		return &LimitError{Category: category, Weight: weight, RetryAfter: delay}
	}

	l.metrics.allowedRequests.Add(1)
	return nil
}

// Allow reports whether a request of the given weight is admitted
// immediately, consuming the tokens if so.
func (l *Limiter) Allow(category Category, weight int) bool {
	l.metrics.totalRequests.Add(1)

	bucket, err := l.bucket(category)
	if err != nil {
		l.metrics.deniedRequests.Add(1)
		return false
	}

	allowed := bucket.AllowN(time.Now(), weight)
	if allowed {
		l.metrics.allowedRequests.Add(1)
	} else {
		l.metrics.deniedRequests.Add(1)
	}
	return allowed
}

// SetLimit replaces the budget for a category, creating it if absent.
func (l *Limiter) SetLimit(category Category, limit Limit) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.limits[category] = limit
	l.buckets[category] = limit.limiter()
}

// Metrics returns a snapshot of admission statistics.
func (l *Limiter) Metrics() MetricsSnapshot {
	return MetricsSnapshot{
		TotalRequests:   l.metrics.totalRequests.Load(),
		AllowedRequests: l.metrics.allowedRequests.Load(),
		DeniedRequests:  l.metrics.deniedRequests.Load(),
	}
}

// MetricsSnapshot is a point-in-time capture of limiter statistics.
type MetricsSnapshot struct {
	// TotalRequests is the total number of admission checks performed.
	TotalRequests int64
	// AllowedRequests is the number of requests that were admitted.
	AllowedRequests int64
	// DeniedRequests is the number of requests that were denied.
	DeniedRequests int64
}
