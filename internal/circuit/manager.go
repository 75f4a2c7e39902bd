// Package circuit wraps sony/gobreaker with a per-provider manager, the same
// shape the pack uses for exchange API resilience, generalized to this
// engine's identity-resolution and ETF-adapter providers (Hive, Wikidata,
// OpenFIGI, Finnhub, yFinance, and each registered ETF adapter).
package circuit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/sony/gobreaker"
)

// Config tunes one provider's breaker.
type Config struct {
	MaxHalfOpenRequests uint32
	ClearCountsAfter    time.Duration
	OpenFor             time.Duration
	ConsecutiveFailures uint32
}

// DefaultConfig is a reasonable default for an external data provider: trip
// after 5 consecutive failures, stay open 30s, allow 1 probe in half-open.
func DefaultConfig() Config {
	return Config{
		MaxHalfOpenRequests: 1,
		ClearCountsAfter:    60 * time.Second,
		OpenFor:             30 * time.Second,
		ConsecutiveFailures: 5,
	}
}

// Manager owns one gobreaker.CircuitBreaker per named provider, created
// lazily under double-checked locking the first time that provider is used.
type Manager struct {
	mu       sync.RWMutex
	breakers map[string]*gobreaker.CircuitBreaker
	configs  map[string]Config
}

// NewManager returns an empty manager; providers register via Register or
// are created on first Execute with DefaultConfig.
func NewManager() *Manager {
	return &Manager{
		breakers: make(map[string]*gobreaker.CircuitBreaker),
		configs:  make(map[string]Config),
	}
}

// Register installs an explicit Config for a provider before first use.
// Calling Register after the breaker has already been created is a no-op —
// configuration is fixed at creation time, mirroring gobreaker's own design.
func (m *Manager) Register(provider string, cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.breakers[provider]; exists {
		return
	}
	m.configs[provider] = cfg
	m.breakers[provider] = newBreaker(provider, cfg)
}

func newBreaker(provider string, cfg Config) *gobreaker.CircuitBreaker {
	return gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        provider,
		MaxRequests: cfg.MaxHalfOpenRequests,
		Interval:    cfg.ClearCountsAfter,
		Timeout:     cfg.OpenFor,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.ConsecutiveFailures
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			log.Warn().
				Str("provider", name).
				Str("from", from.String()).
				Str("to", to.String()).
				Msg("circuit breaker state change")
		},
	})
}

func (m *Manager) breaker(provider string) *gobreaker.CircuitBreaker {
	m.mu.RLock()
	b, exists := m.breakers[provider]
	m.mu.RUnlock()
	if exists {
		return b
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if b, exists := m.breakers[provider]; exists {
		return b
	}
	cfg := DefaultConfig()
	b = newBreaker(provider, cfg)
	m.configs[provider] = cfg
	m.breakers[provider] = b
	return b
}

// Execute runs fn through the named provider's breaker. ctx is honored by fn
// itself; the breaker only tracks success/failure outcomes.
func (m *Manager) Execute(ctx context.Context, provider string, fn func(context.Context) (interface{}, error)) (interface{}, error) {
	b := m.breaker(provider)
	return b.Execute(func() (interface{}, error) {
		return fn(ctx)
	})
}

// State reports the current open/closed/half-open state for a provider that
// has already been used at least once.
func (m *Manager) State(provider string) (gobreaker.State, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, exists := m.breakers[provider]
	if !exists {
		return gobreaker.StateClosed, false
	}
	return b.State(), true
}

// Snapshot is a point-in-time health record for one provider's breaker.
// The pipeline health report does not include these records.
type Snapshot struct {
	Provider  string  `json:"provider"`
	State     string  `json:"state"`
	Requests  uint32  `json:"requests"`
	Failures  uint32  `json:"failures"`
	ErrorRate float64 `json:"error_rate"`
}

// Snapshots returns the current stats for every provider that has been used.
func (m *Manager) Snapshots() []Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()

	out := make([]Snapshot, 0, len(m.breakers))
	for provider, b := range m.breakers {
		counts := b.Counts()
		var rate float64
		if counts.Requests > 0 {
			rate = float64(counts.TotalFailures) / float64(counts.Requests)
		}
		out = append(out, Snapshot{
			Provider:  provider,
			State:     b.State().String(),
			Requests:  counts.Requests,
			Failures:  counts.TotalFailures,
			ErrorRate: rate,
		})
	}
	return out
}

// ErrProviderOpen is returned by gobreaker.ErrOpenState when the breaker is
// open; re-exported so callers need not import gobreaker directly.
var ErrProviderOpen = gobreaker.ErrOpenState

// String describes a Snapshot for log lines.
func (s Snapshot) String() string {
	return fmt.Sprintf("%s: %s (%d/%d failed)", s.Provider, s.State, s.Failures, s.Requests)
}
