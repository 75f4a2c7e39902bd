// Package proxyclient is the engine's only means of reaching external
// market-data providers: every call goes through a credential-injecting
// proxy (spec.md §6.5) at a fixed base URL, identified by provider name and
// an endpoint path such as "/api/finnhub/profile". The engine never holds a
// provider API key.
package proxyclient

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/skeptomenos/portfolio-prism-engine/internal/circuit"
	"github.com/skeptomenos/portfolio-prism-engine/internal/quota"
	"github.com/skeptomenos/portfolio-prism-engine/internal/ratelimit"
)

// Client issues proxy-fronted GET requests with rate limiting, circuit
// breaking, and daily-quota enforcement layered in front of the transport,
// mirroring the pack's HTTP wrapper but trimmed to one read-only verb. The
// transport itself is a Pool, giving every provider call the same bounded
// concurrency, retry, and backoff behavior.
type Client struct {
	baseURL   string
	pool      *Pool
	rateLimit *ratelimit.Manager
	breakers  *circuit.Manager
	quotas    *quota.Manager
}

// Option configures a Client at construction.
type Option func(*Client)

// WithTimeout overrides the default 10s per-request timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) { c.pool.SetTimeout(d) }
}

// WithPoolConfig replaces the default retry/backoff/jitter configuration.
func WithPoolConfig(cfg PoolConfig) Option {
	return func(c *Client) { c.pool.cfg = cfg }
}

// New builds a proxy client. baseURL points at the credential-injecting
// proxy (e.g. "http://127.0.0.1:8801"), not at the upstream provider.
func New(baseURL string, rateLimit *ratelimit.Manager, breakers *circuit.Manager, quotas *quota.Manager, opts ...Option) *Client {
	userAgent := "portfolio-prism-engine/1.0"
	httpClient := &http.Client{Timeout: 10 * time.Second}
	c := &Client{
		baseURL:   baseURL,
		pool:      NewPool(httpClient, DefaultPoolConfig(userAgent)),
		rateLimit: rateLimit,
		breakers:  breakers,
		quotas:    quotas,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// ErrHTTPStatus wraps a non-2xx proxy response.
type ErrHTTPStatus struct {
	Provider   string
	Path       string
	StatusCode int
}

func (e *ErrHTTPStatus) Error() string {
	return fmt.Sprintf("proxyclient: %s %s returned HTTP %d", e.Provider, e.Path, e.StatusCode)
}

// Get issues a GET to path (e.g. "/api/finnhub/profile?symbol=AAPL") under
// the named provider's rate, quota, and circuit budgets, in that order: a
// throttled or quota-exhausted provider never touches the breaker, so
// quota exhaustion (an expected, recoverable condition) never counts as a
// breaker failure.
func (c *Client) Get(ctx context.Context, provider, path string) ([]byte, error) {
	if err := c.rateLimit.Wait(ctx, provider, c.baseURL); err != nil {
		return nil, fmt.Errorf("proxyclient: rate limit wait: %w", err)
	}
	if err := c.quotas.Consume(provider); err != nil {
		return nil, err
	}

	result, err := c.breakers.Execute(ctx, provider, func(ctx context.Context) (interface{}, error) {
		return c.doGet(ctx, provider, path)
	})
	if err != nil {
		return nil, err
	}
	return result.([]byte), nil
}

func (c *Client) doGet(ctx context.Context, provider, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("proxyclient: build request: %w", err)
	}

	resp, err := c.pool.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("proxyclient: %s request: %w", provider, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("proxyclient: %s read response: %w", provider, err)
	}

	if resp.StatusCode >= 400 {
		log.Warn().Str("provider", provider).Str("path", path).Int("status", resp.StatusCode).Msg("proxy returned error status")
		return nil, &ErrHTTPStatus{Provider: provider, Path: path, StatusCode: resp.StatusCode}
	}
	return body, nil
}
