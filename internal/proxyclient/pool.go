package proxyclient

import (
	"context"
	"math/rand"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// PoolConfig tunes the retry/backoff/jitter behavior shared by every caller
// of a Pool (the proxy client itself and the Hive client).
type PoolConfig struct {
	MaxConcurrency int
	RequestTimeout time.Duration
	JitterRange    [2]int // min/max pre-request jitter, milliseconds
	MaxRetries     int
	BackoffBase    time.Duration
	BackoffMax     time.Duration
	UserAgent      string
}

// DefaultPoolConfig is a conservative default for a proxy-fronted provider:
// up to 4 concurrent in-flight requests, 2 retries with exponential backoff,
// a small jitter window to avoid synchronized retry storms against the proxy.
func DefaultPoolConfig(userAgent string) PoolConfig {
	return PoolConfig{
		MaxConcurrency: 4,
		RequestTimeout: 10 * time.Second,
		JitterRange:    [2]int{0, 50},
		MaxRetries:     2,
		BackoffBase:    200 * time.Millisecond,
		BackoffMax:     2 * time.Second,
		UserAgent:      userAgent,
	}
}

// Pool bounds concurrency and layers retry/backoff/jitter in front of a
// shared *http.Client, so every provider call (proxyclient.Client,
// hive.Client) gets the same resilience characteristics without each
// reimplementing it.
type Pool struct {
	cfg    PoolConfig
	sem    chan struct{}
	client *http.Client

	mu    sync.Mutex
	stats Stats
}

// Stats is a running tally of request outcomes across every caller of a Pool.
type Stats struct {
	TotalRequests   int64
	SuccessRequests int64
	FailedRequests  int64
	RetriedRequests int64
}

// NewPool wraps client with the given config. client is shared, not copied —
// its Timeout should already reflect cfg.RequestTimeout.
func NewPool(client *http.Client, cfg PoolConfig) *Pool {
	if cfg.MaxConcurrency <= 0 {
		cfg.MaxConcurrency = 1
	}
	return &Pool{cfg: cfg, sem: make(chan struct{}, cfg.MaxConcurrency), client: client}
}

// Do issues req with a concurrency limit, optional pre-request jitter, and
// bounded retries on transient transport errors (timeouts, connection
// resets). HTTP status codes are returned to the caller uninterpreted.
func (p *Pool) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if p.cfg.UserAgent != "" {
		req.Header.Set("User-Agent", p.cfg.UserAgent)
	}
	if err := p.applyJitter(ctx); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt <= p.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			p.record(func(s *Stats) { s.RetriedRequests++ })
			backoff := p.calculateBackoff(attempt)
			log.Debug().Dur("backoff", backoff).Int("attempt", attempt).Str("url", req.URL.String()).
				Msg("retrying proxy request")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		resp, err := p.client.Do(req.WithContext(ctx))
		p.record(func(s *Stats) { s.TotalRequests++ })
		if err != nil {
			lastErr = err
			p.record(func(s *Stats) { s.FailedRequests++ })
			if isRetryableError(err) {
				continue
			}
			break
		}

		// Status-code interpretation (including whether a status counts as
		// retryable-at-a-higher-layer) is left entirely to the caller: the
		// caller owns the response body and a mid-pool retry here would
		// either leak it or require buffering every response just in case.
		p.record(func(s *Stats) { s.SuccessRequests++ })
		return resp, nil
	}

	p.record(func(s *Stats) { s.FailedRequests++ })
	return nil, lastErr
}

func (p *Pool) record(mutate func(*Stats)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	mutate(&p.stats)
}

// Stats returns a point-in-time snapshot across every caller sharing this pool.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

// SetTimeout overrides the per-request timeout of the pool's underlying
// *http.Client.
func (p *Pool) SetTimeout(d time.Duration) { p.client.Timeout = d }

func (p *Pool) applyJitter(ctx context.Context) error {
	lo, hi := p.cfg.JitterRange[0], p.cfg.JitterRange[1]
	if lo >= hi {
		return nil
	}
	jitter := time.Duration(rand.Intn(hi-lo)+lo) * time.Millisecond
	select {
	case <-time.After(jitter):
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *Pool) calculateBackoff(attempt int) time.Duration {
	backoff := p.cfg.BackoffBase * time.Duration(1<<uint(attempt))
	if backoff > p.cfg.BackoffMax {
		backoff = p.cfg.BackoffMax
	}
	jitter := time.Duration(rand.Float64() * 0.1 * float64(backoff))
	return backoff + jitter
}

func isRetryableError(err error) bool {
	if err == nil {
		return false
	}
	lower := strings.ToLower(err.Error())
	for _, substr := range []string{"timeout", "connection refused", "connection reset", "temporary failure", "network is unreachable", "no such host"} {
		if strings.Contains(lower, substr) {
			return true
		}
	}
	return false
}
