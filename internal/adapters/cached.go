package adapters

import (
	"context"
	"time"

	"github.com/skeptomenos/portfolio-prism-engine/internal/cache"
)

// holdingsTTL is the fixed 24-hour holdings cache lifetime (spec.md §4.4).
const holdingsTTL = 24 * time.Hour

// Cached wraps an Adapter with a 24-hour TTL cache keyed by
// {adapter_name, isin}, so repeated decompositions of the same ETF
// position within a day never re-hit the issuer's feed.
type Cached struct {
	inner Adapter
	cache *cache.TTLCache[[]Holding]
}

// NewCached wraps inner with store as the shared holdings cache (typically
// one cache instance shared across every adapter in a Registry).
func NewCached(inner Adapter, store *cache.TTLCache[[]Holding]) *Cached {
	return &Cached{inner: inner, cache: store}
}

func (c *Cached) Name() string { return c.inner.Name() }

func (c *Cached) FetchHoldings(ctx context.Context, isin string) ([]Holding, error) {
	key := c.inner.Name() + "|" + isin
	if holdings, ok := c.cache.Get(key); ok {
		return holdings, nil
	}

	holdings, err := c.inner.FetchHoldings(ctx, isin)
	if err != nil {
		return nil, err
	}
	c.cache.Set(key, holdings, holdingsTTL)
	return holdings, nil
}
