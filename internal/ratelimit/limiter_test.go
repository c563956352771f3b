package ratelimit

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testLimits() Limits {
	return Limits{
		CategoryMarketData: {Requests: 5, Period: time.Second},
		CategoryOrders:     {Requests: 2, Period: time.Second},
	}
}

func TestLimiter_Allow(t *testing.T) {
	limiter := New(testLimits())

	for i := 0; i < 5; i++ {
		assert.True(t, limiter.Allow(CategoryMarketData, 1), "request %d should be allowed", i+1)
	}

	assert.False(t, limiter.Allow(CategoryMarketData, 1), "request 6 should be denied")
}

func TestLimiter_CategoriesAreIndependent(t *testing.T) {
	limiter := New(testLimits())

	for i := 0; i < 5; i++ {
		require.True(t, limiter.Allow(CategoryMarketData, 1))
	}
	assert.False(t, limiter.Allow(CategoryMarketData, 1))

	assert.True(t, limiter.Allow(CategoryOrders, 1), "orders budget is untouched")
}

func TestLimiter_WeightedAdmission(t *testing.T) {
	limiter := New(Limits{
		CategoryMarketData: {Requests: 10, Period: time.Second},
	})

	assert.True(t, limiter.Allow(CategoryMarketData, 10))
	assert.False(t, limiter.Allow(CategoryMarketData, 1), "budget consumed by the weighted request")
}

func TestLimiter_Check_RetryAfter(t *testing.T) {
	limiter := New(Limits{
		CategoryMarketData: {Requests: 1, Period: time.Second, Burst: 1},
	})

	require.NoError(t, limiter.Check(CategoryMarketData, 1))

	err := limiter.Check(CategoryMarketData, 1)
	require.Error(t, err)

	var limitErr *LimitError
	require.ErrorAs(t, err, &limitErr)
	assert.Equal(t, CategoryMarketData, limitErr.Category)
	assert.Greater(t, limitErr.RetryAfter, time.Duration(0))
}

func TestLimiter_Check_WeightOverBurst(t *testing.T) {
	limiter := New(Limits{
		CategoryMarketData: {Requests: 5, Period: time.Second, Burst: 5},
	})

	err := limiter.Check(CategoryMarketData, 50)
	require.Error(t, err)

	var limitErr *LimitError
	assert.False(t, errors.As(err, &limitErr), "an impossible weight is not a retryable denial")
}

func TestLimiter_UnknownCategory(t *testing.T) {
	limiter := New(testLimits())

	err := limiter.Acquire(context.Background(), Category("custody"), 1)
	assert.Error(t, err)
}

func TestLimiter_Acquire_ContextCancellation(t *testing.T) {
	limiter := New(Limits{
		CategoryMarketData: {Requests: 1, Period: time.Minute, Burst: 1},
	})

	require.NoError(t, limiter.Acquire(context.Background(), CategoryMarketData, 1))

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	err := limiter.Acquire(ctx, CategoryMarketData, 1)
	assert.Error(t, err)
}

func TestLimiter_Concurrent(t *testing.T) {
	limiter := New(Limits{
		CategoryMarketData: {Requests: 100, Period: time.Second},
	})

	var wg sync.WaitGroup
	results := make(chan bool, 200)

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- limiter.Allow(CategoryMarketData, 1)
		}()
	}

	wg.Wait()
	close(results)

	allowed := 0
	for ok := range results {
		if ok {
			allowed++
		}
	}

	assert.LessOrEqual(t, allowed, 100, "should not admit more than the burst")
}

func TestLimiter_SetLimit(t *testing.T) {
	limiter := New(Limits{
		CategoryMarketData: {Requests: 1, Period: time.Minute, Burst: 1},
	})

	assert.True(t, limiter.Allow(CategoryMarketData, 1))
	assert.False(t, limiter.Allow(CategoryMarketData, 1))

	limiter.SetLimit(CategoryMarketData, Limit{Requests: 1000, Period: time.Second})

	assert.True(t, limiter.Allow(CategoryMarketData, 1), "fresh budget after limit change")
}

func TestLimiter_Metrics(t *testing.T) {
	limiter := New(testLimits())

	limiter.Allow(CategoryMarketData, 1)
	limiter.Allow(CategoryMarketData, 1)

	snap := limiter.Metrics()
	assert.Equal(t, int64(2), snap.TotalRequests)
	assert.Equal(t, int64(2), snap.AllowedRequests)
}
