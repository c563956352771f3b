package feed

import (
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"

	"bookfeed/internal/ratelimit"
)

// Config holds the settings for one feed.
type Config struct {
	// Symbol is the venue-format instrument identifier (e.g. "BTCUSDT").
	Symbol string `validate:"required"`
	// Precision is the number of decimal places used to normalize prices
	// into book keys.
	Precision int `validate:"min=0,max=12"`
	// SnapshotDepth is the number of levels requested per side in the
	// one-shot snapshot.
	SnapshotDepth int `validate:"min=1"`
	// ReportInterval is how often book state and metrics are logged
	// while streaming.
	ReportInterval time.Duration `validate:"min=1ms"`
	// Backoff controls reconnect pacing after stream failures and gaps.
	Backoff ratelimit.BackoffConfig
}

// DefaultConfig returns feed settings matching common venue depth
// streams: 1000-level snapshot, 8 decimal places, 5s status reports.
func DefaultConfig(symbol string) *Config {
	return &Config{
		Symbol:         symbol,
		Precision:      8,
		SnapshotDepth:  1000,
		ReportInterval: 5 * time.Second,
		Backoff:        ratelimit.DefaultBackoffConfig(),
	}
}

var validate = validator.New()

// Validate checks the configuration, including the backoff policy.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}
	if err := validate.Struct(c.Backoff); err != nil {
		return fmt.Errorf("backoff: %w", err)
	}
	return nil
}

// WithPrecision sets the price key precision and returns the config for chaining.
func (c *Config) WithPrecision(precision int) *Config {
	c.Precision = precision
	return c
}

// WithSnapshotDepth sets the snapshot depth and returns the config for chaining.
func (c *Config) WithSnapshotDepth(depth int) *Config {
	c.SnapshotDepth = depth
	return c
}

// WithBackoff sets the reconnect policy and returns the config for chaining.
func (c *Config) WithBackoff(backoff ratelimit.BackoffConfig) *Config {
	c.Backoff = backoff
	return c
}

// WithReportInterval sets the status logging cadence and returns the config for chaining.
func (c *Config) WithReportInterval(interval time.Duration) *Config {
	c.ReportInterval = interval
	return c
}
