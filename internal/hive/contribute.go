package hive

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
)

// Contribution is one queued write-back to the Hive, captured at the
// moment a resolution cascade step succeeds (spec.md §4.5 step 6:
// "fire-and-forget contribution to Hive").
type Contribution struct {
	Method   string
	Params   map[string]interface{}
	QueuedAt time.Time
	Attempts int
}

// ContributionQueue holds contributions that could not be delivered
// immediately because the Hive was unreachable (spec.md §6.4 "Offline
// fallback: ... contribute RPCs queue locally for retry"). It is in-memory
// only — a crash loses unflushed contributions, which is acceptable since
// every contribution is re-derivable the next time the same identity is
// resolved.
type ContributionQueue struct {
	mu    sync.Mutex
	items []Contribution
}

// NewContributionQueue returns an empty queue.
func NewContributionQueue() *ContributionQueue {
	return &ContributionQueue{}
}

// Enqueue appends a contribution for later retry.
func (q *ContributionQueue) Enqueue(method string, params map[string]interface{}) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, Contribution{Method: method, Params: params, QueuedAt: time.Now()})
}

// Len reports the number of pending contributions.
func (q *ContributionQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// drain removes and returns every currently queued contribution.
func (q *ContributionQueue) drain() []Contribution {
	q.mu.Lock()
	defer q.mu.Unlock()
	drained := q.items
	q.items = nil
	return drained
}

// requeue re-appends contributions that failed delivery again, in order,
// ahead of anything enqueued meanwhile.
func (q *ContributionQueue) requeue(items []Contribution) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(items, q.items...)
}

// contribute issues one write-back RPC; on failure it queues method+params
// for later retry instead of propagating the error, since contributions
// are fire-and-forget by design (spec.md §4.5 step 6).
func (c *Client) contribute(ctx context.Context, method string, params map[string]interface{}) {
	if err := c.call(ctx, method, params, nil); err != nil {
		log.Debug().Err(err).Str("method", method).Msg("hive contribution failed, queuing for retry")
		c.queue.Enqueue(method, params)
	}
}

// ContributeAsset reports a newly-resolved security to the Hive.
func (c *Client) ContributeAsset(ctx context.Context, isin, ticker, exchange, name, assetClass, baseCurrency, tradingCurrency string) {
	c.contribute(ctx, "contribute_asset", map[string]interface{}{
		"isin": isin, "ticker": ticker, "exchange": exchange, "name": name,
		"asset_class": assetClass, "base_currency": baseCurrency, "trading_currency": tradingCurrency,
	})
}

// ContributeListing reports an ISIN/exchange/ticker pairing.
func (c *Client) ContributeListing(ctx context.Context, isin, ticker, exchange string) {
	c.contribute(ctx, "contribute_listing", map[string]interface{}{
		"isin": isin, "ticker": ticker, "exchange": exchange,
	})
}

// ContributeAlias reports an alias-to-ISIN mapping discovered during
// resolution.
func (c *Client) ContributeAlias(ctx context.Context, alias, isin, aliasType, language string) {
	c.contribute(ctx, "contribute_alias", map[string]interface{}{
		"alias": alias, "isin": isin, "alias_type": aliasType, "language": language,
	})
}

// ContributeMapping reports a generic source→ISIN mapping (the metadata
// spec.md §4.5 step 6 calls out: "source, confidence, timestamp").
func (c *Client) ContributeMapping(ctx context.Context, source, isin string, confidence float64, observedAt time.Time) {
	c.contribute(ctx, "contribute_mapping", map[string]interface{}{
		"source": source, "isin": isin, "confidence": confidence, "observed_at": observedAt,
	})
}

// RetryQueued attempts redelivery of every queued contribution. Items that
// fail again are requeued in their original order. Nothing in the engine
// calls it on its own (the pipeline orchestrator does not), so redelivery
// happens only when a caller invokes it.
func (c *Client) RetryQueued(ctx context.Context) (delivered, failed int) {
	pending := c.queue.drain()
	if len(pending) == 0 {
		return 0, 0
	}

	var retryFailed []Contribution
	for _, item := range pending {
		item.Attempts++
		if err := c.call(ctx, item.Method, item.Params, nil); err != nil {
			retryFailed = append(retryFailed, item)
			continue
		}
		delivered++
	}
	if len(retryFailed) > 0 {
		c.queue.requeue(retryFailed)
	}
	return delivered, len(retryFailed)
}
