// Package ratelimit provides per-provider, per-host token-bucket limiting
// for the proxy-fronted external APIs and the Hive client (spec.md §6.5).
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Limiter buckets requests per host under one provider's RPS/burst budget.
type Limiter struct {
	mu       sync.RWMutex
	limiters map[string]*rate.Limiter
	rps      float64
	burst    int
}

// NewLimiter builds a limiter template shared by every host under a provider.
func NewLimiter(rps float64, burst int) *Limiter {
	return &Limiter{limiters: make(map[string]*rate.Limiter), rps: rps, burst: burst}
}

func (l *Limiter) getLimiter(host string) *rate.Limiter {
	l.mu.RLock()
	limiter, exists := l.limiters[host]
	l.mu.RUnlock()
	if exists {
		return limiter
	}

	l.mu.Lock()
	defer l.mu.Unlock()
	if limiter, exists := l.limiters[host]; exists {
		return limiter
	}
	limiter = rate.NewLimiter(rate.Limit(l.rps), l.burst)
	l.limiters[host] = limiter
	return limiter
}

// Allow reports whether a request for host may proceed right now.
func (l *Limiter) Allow(host string) bool {
	return l.getLimiter(host).Allow()
}

// Wait blocks until a request for host is allowed or ctx is done.
func (l *Limiter) Wait(ctx context.Context, host string) error {
	return l.getLimiter(host).Wait(ctx)
}

// Stats reports current bucket state for every host seen so far.
func (l *Limiter) Stats() map[string]Stats {
	l.mu.RLock()
	defer l.mu.RUnlock()

	out := make(map[string]Stats, len(l.limiters))
	now := time.Now()
	for host, limiter := range l.limiters {
		reservation := limiter.Reserve()
		delay := reservation.Delay()
		reservation.Cancel()
		out[host] = Stats{
			Host:          host,
			TokensLeft:    limiter.Tokens(),
			NextAllowedAt: now.Add(delay),
		}
	}
	return out
}

// Stats is a point-in-time view of one host's bucket.
type Stats struct {
	Host          string    `json:"host"`
	TokensLeft    float64   `json:"tokens_left"`
	NextAllowedAt time.Time `json:"next_allowed_at"`
}

// Throttled reports whether the bucket is presently exhausted.
func (s Stats) Throttled() bool { return s.TokensLeft < 1 }

// Manager owns one Limiter per external provider (wikidata, openfigi,
// finnhub, yfinance, hive, and each ETF adapter's own host).
type Manager struct {
	mu       sync.RWMutex
	limiters map[string]*Limiter
}

// NewManager returns an empty provider-keyed manager.
func NewManager() *Manager {
	return &Manager{limiters: make(map[string]*Limiter)}
}

// Register installs an explicit rate budget for a provider ahead of first use.
func (m *Manager) Register(provider string, rps float64, burst int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.limiters[provider]; !exists {
		m.limiters[provider] = NewLimiter(rps, burst)
	}
}

func (m *Manager) limiter(provider string) *Limiter {
	m.mu.RLock()
	l, exists := m.limiters[provider]
	m.mu.RUnlock()
	if exists {
		return l
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if l, exists := m.limiters[provider]; exists {
		return l
	}
	// Unregistered providers default to a conservative 1 rps / burst 1 —
	// the proxy is the one that actually owns provider-side rate contracts;
	// this is a local backstop against runaway retry loops.
	l = NewLimiter(1, 1)
	m.limiters[provider] = l
	return l
}

// Wait blocks until provider/host may proceed or ctx is done.
func (m *Manager) Wait(ctx context.Context, provider, host string) error {
	return m.limiter(provider).Wait(ctx, host)
}

// Allow reports whether provider/host may proceed right now.
func (m *Manager) Allow(provider, host string) bool {
	return m.limiter(provider).Allow(host)
}

// Stats returns the per-host bucket state for every provider seen so far.
func (m *Manager) Stats() map[string]map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make(map[string]map[string]Stats, len(m.limiters))
	for provider, l := range m.limiters {
		out[provider] = l.Stats()
	}
	return out
}
