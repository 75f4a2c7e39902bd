package adapters

import (
	"context"
	"testing"
	"time"

	"github.com/skeptomenos/portfolio-prism-engine/internal/cache"
)

func TestCached_FetchHoldings_OnlyCallsInnerOnce(t *testing.T) {
	inner := &stubAdapter{name: "ishares", holdings: []Holding{{Name: "Apple", Weight: 0.5}}}
	c := NewCached(inner, cache.New[[]Holding](100, time.Minute))

	if _, err := c.FetchHoldings(context.Background(), "US0378331005"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := c.FetchHoldings(context.Background(), "US0378331005"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if inner.calls != 1 {
		t.Errorf("expected inner adapter to be called exactly once, got %d", inner.calls)
	}
}

func TestCached_FetchHoldings_KeysByAdapterAndISIN(t *testing.T) {
	inner := &stubAdapter{name: "ishares", holdings: []Holding{{Name: "Apple"}}}
	shared := cache.New[[]Holding](100, time.Minute)
	c := NewCached(inner, shared)

	c.FetchHoldings(context.Background(), "US0378331005")
	c.FetchHoldings(context.Background(), "US5949181045")
	if inner.calls != 2 {
		t.Errorf("expected a separate cache entry per isin, got %d calls", inner.calls)
	}
}
