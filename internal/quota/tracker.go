// Package quota tracks daily request budgets for proxy-fronted providers
// with a hard free-tier cap (OpenFIGI's batch-lookup quota being the
// motivating case) so the engine backs off locally instead of letting the
// proxy return a provider-side 429.
package quota

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"
)

// ExhaustedError reports that a provider's daily budget has been used up.
type ExhaustedError struct {
	Provider string
	Used     int64
	Limit    int64
	ResetAt  time.Time
}

func (e *ExhaustedError) Error() string {
	return fmt.Sprintf("quota: %s exhausted (%d/%d used, resets at %s)",
		e.Provider, e.Used, e.Limit, e.ResetAt.Format(time.RFC3339))
}

// Tracker counts requests against a single provider's daily limit, resetting
// at a fixed UTC hour.
type Tracker struct {
	limit     int64
	used      int64 // atomic
	resetHour int
	mu        sync.RWMutex
	lastReset time.Time
}

// NewTracker builds a tracker for limit requests/day, resetting at resetHour
// UTC (clamped to 0-23).
func NewTracker(limit int64, resetHour int) *Tracker {
	if resetHour < 0 || resetHour > 23 {
		resetHour = 0
	}
	return &Tracker{
		limit:     limit,
		resetHour: resetHour,
		lastReset: lastResetBefore(time.Now().UTC(), resetHour),
	}
}

func lastResetBefore(now time.Time, resetHour int) time.Time {
	today := time.Date(now.Year(), now.Month(), now.Day(), resetHour, 0, 0, 0, time.UTC)
	if now.Hour() >= resetHour {
		return today
	}
	return today.AddDate(0, 0, -1)
}

func (t *Tracker) nextReset() time.Time {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.lastReset.Add(24 * time.Hour)
}

func (t *Tracker) rolloverIfDue() {
	now := time.Now().UTC()
	if !now.After(t.nextReset()) {
		return
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	if now.After(t.lastReset.Add(24 * time.Hour)) {
		atomic.StoreInt64(&t.used, 0)
		t.lastReset = lastResetBefore(now, t.resetHour)
	}
}

// Consume records one request against the budget, returning ExhaustedError
// (without recording it) if the limit has already been reached.
func (t *Tracker) Consume(provider string) error {
	t.rolloverIfDue()

	newUsed := atomic.AddInt64(&t.used, 1)
	if newUsed > t.limit {
		atomic.AddInt64(&t.used, -1)
		return &ExhaustedError{Provider: provider, Used: newUsed - 1, Limit: t.limit, ResetAt: t.nextReset()}
	}
	return nil
}

// Stats reports the tracker's current usage.
func (t *Tracker) Stats() Stats {
	t.rolloverIfDue()
	used := atomic.LoadInt64(&t.used)
	return Stats{
		Used:      used,
		Limit:     t.limit,
		Remaining: t.limit - used,
		ResetAt:   t.nextReset(),
	}
}

// Stats is a point-in-time usage snapshot.
type Stats struct {
	Used      int64     `json:"used"`
	Limit     int64     `json:"limit"`
	Remaining int64     `json:"remaining"`
	ResetAt   time.Time `json:"reset_at"`
}

// Exhausted reports whether the budget has been fully consumed.
func (s Stats) Exhausted() bool { return s.Remaining <= 0 }

// Manager owns one Tracker per provider, keyed by name.
type Manager struct {
	mu       sync.RWMutex
	trackers map[string]*Tracker
}

// NewManager returns an empty provider-keyed quota manager.
func NewManager() *Manager {
	return &Manager{trackers: make(map[string]*Tracker)}
}

// Register installs a daily budget for provider. Calling it twice for the
// same provider replaces the tracker (and its accumulated usage).
func (m *Manager) Register(provider string, dailyLimit int64, resetHourUTC int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trackers[provider] = NewTracker(dailyLimit, resetHourUTC)
}

// Consume records usage against provider's budget. Providers with no
// registered tracker are unmetered and always allowed.
func (m *Manager) Consume(provider string) error {
	m.mu.RLock()
	tracker, exists := m.trackers[provider]
	m.mu.RUnlock()
	if !exists {
		return nil
	}
	return tracker.Consume(provider)
}

// Stats returns the current usage for every registered provider.
func (m *Manager) Stats() map[string]Stats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make(map[string]Stats, len(m.trackers))
	for provider, tracker := range m.trackers {
		out[provider] = tracker.Stats()
	}
	return out
}
