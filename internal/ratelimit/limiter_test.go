package ratelimit

import (
	"context"
	"testing"
	"time"
)

func TestLimiter_AllowRespectsBurst(t *testing.T) {
	l := NewLimiter(1, 2)
	if !l.Allow("api.example.com") {
		t.Fatal("expected first request to be allowed")
	}
	if !l.Allow("api.example.com") {
		t.Fatal("expected second request (within burst) to be allowed")
	}
	if l.Allow("api.example.com") {
		t.Fatal("expected third immediate request to be throttled")
	}
}

func TestLimiter_PerHostIsolation(t *testing.T) {
	l := NewLimiter(1, 1)
	if !l.Allow("host-a") {
		t.Fatal("expected host-a first request allowed")
	}
	if !l.Allow("host-b") {
		t.Fatal("expected host-b to have its own independent bucket")
	}
}

func TestManager_UnregisteredProviderGetsConservativeDefault(t *testing.T) {
	m := NewManager()
	if !m.Allow("unregistered", "host") {
		t.Fatal("expected first request to an unregistered provider to be allowed")
	}
	if m.Allow("unregistered", "host") {
		t.Fatal("expected default burst of 1 to throttle the second immediate request")
	}
}

func TestManager_WaitHonorsContextCancellation(t *testing.T) {
	m := NewManager()
	m.Register("slow", 0.001, 1)
	_ = m.Allow("slow", "host") // consume the only token

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if err := m.Wait(ctx, "slow", "host"); err == nil {
		t.Fatal("expected context deadline to abort the wait")
	}
}
