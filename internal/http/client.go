// Package http wraps a resty client for venue REST endpoints.
package http

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"resty.dev/v3"
)

// Client is a thin REST client with sonic JSON codecs, request logging,
// and bounded retries. It is safe for concurrent use.
type Client struct {
	client *resty.Client
	logger zerolog.Logger
	mu     sync.RWMutex
	closed bool
}

// Config holds the REST client settings.
type Config struct {
	BaseURL      string            `validate:"required,url"`
	Timeout      time.Duration     `validate:"min=1ms"`
	MaxRetries   int               `validate:"min=0"`
	RetryWaitMin time.Duration     `validate:"min=0"`
	RetryWaitMax time.Duration     `validate:"min=0"`
	Headers      map[string]string `validate:"omitempty"`
}

// DefaultConfig returns a Config with conservative transport defaults
// for the given base URL.
func DefaultConfig(baseURL string) *Config {
	return &Config{
		BaseURL:      baseURL,
		Timeout:      10 * time.Second,
		MaxRetries:   3,
		RetryWaitMin: 100 * time.Millisecond,
		RetryWaitMax: 1 * time.Second,
	}
}

// RequestOption customizes a single request.
type RequestOption func(*resty.Request)

// NewClient creates a REST client from the given configuration.
func NewClient(config *Config) (*Client, error) {
	if err := validator.New().Struct(config); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	client := resty.New()
	client.SetBaseURL(config.BaseURL)
	client.SetTimeout(config.Timeout)
	client.SetRetryCount(config.MaxRetries)
	client.SetRetryWaitTime(config.RetryWaitMin)
	client.SetRetryMaxWaitTime(config.RetryWaitMax)
	client.AddContentTypeEncoder("application/json", func(w io.Writer, v any) error {
		data, err := sonic.Marshal(v)
		if err != nil {
			return err
		}
		_, err = w.Write(data)
		return err
	})
	client.AddContentTypeDecoder("application/json", func(r io.Reader, v any) error {
		data, err := io.ReadAll(r)
		if err != nil {
			return err
		}
		return sonic.Unmarshal(data, v)
	})

	for k, v := range config.Headers {
		client.SetHeader(k, v)
	}

	c := &Client{
		client: client,
		logger: zerolog.Nop(),
	}

	client.AddRequestMiddleware(func(_ *resty.Client, req *resty.Request) error {
		c.logger.Debug().
			Str("method", req.Method).
			Str("url", req.URL).
			Msg("http request")
		return nil
	})

	client.AddResponseMiddleware(func(_ *resty.Client, resp *resty.Response) error {
		c.logger.Debug().
			Str("method", resp.Request.Method).
			Str("url", resp.Request.URL).
			Int("status", resp.StatusCode()).
			Int("size", len(resp.Bytes())).
			Msg("http response")
		return nil
	})

	return c, nil
}

// SetLogger configures the logger used by the request middleware.
func (c *Client) SetLogger(logger zerolog.Logger) {
	c.logger = logger
}

// Close releases the underlying transport. Further requests fail.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.client.Close()
}

// Get performs a GET request against the given path.
func (c *Client) Get(ctx context.Context, url string, opts ...RequestOption) (*resty.Response, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return nil, fmt.Errorf("client is closed")
	}

	req := c.client.R().SetContext(ctx)
	for _, opt := range opts {
		opt(req)
	}
	return req.Get(url)
}

// WithQueryParam adds a single query parameter to the request.
func WithQueryParam(key, value string) RequestOption {
	return func(r *resty.Request) {
		r.SetQueryParam(key, value)
	}
}

// WithQueryParams adds multiple query parameters to the request.
func WithQueryParams(params map[string]string) RequestOption {
	return func(r *resty.Request) {
		r.SetQueryParams(params)
	}
}

// WithHeader adds a header to the request.
func WithHeader(key, value string) RequestOption {
	return func(r *resty.Request) {
		r.SetHeader(key, value)
	}
}
