package hive

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
)

// maxBatchTickers bounds batch_resolve_tickers_rpc (spec.md §6.4: "max
// 100").
const maxBatchTickers = 100

// ResolveTicker looks up a single ticker, optionally scoped to an exchange.
// A miss (including any transport failure) returns ok=false, never an
// error — the resolution cascade treats a Hive miss exactly like an empty
// result and moves to the next step.
func (c *Client) ResolveTicker(ctx context.Context, ticker, exchange string) (Asset, bool) {
	params := map[string]interface{}{"ticker": ticker}
	if exchange != "" {
		params["exchange"] = exchange
	}

	var asset Asset
	if err := c.call(ctx, "resolve_ticker_rpc", params, &asset); err != nil {
		log.Debug().Err(err).Str("ticker", ticker).Msg("hive resolve_ticker_rpc miss")
		return Asset{}, false
	}
	if asset.ISIN == "" {
		return Asset{}, false
	}
	return asset, true
}

// BatchResolveTickers resolves up to 100 tickers in one round trip. Callers
// with more than 100 must chunk themselves; BatchResolveTickers refuses to
// silently truncate.
func (c *Client) BatchResolveTickers(ctx context.Context, tickers []string) (map[string]Asset, error) {
	if len(tickers) > maxBatchTickers {
		return nil, fmt.Errorf("hive: batch_resolve_tickers_rpc accepts at most %d tickers, got %d", maxBatchTickers, len(tickers))
	}

	var assets []Asset
	if err := c.call(ctx, "batch_resolve_tickers_rpc", map[string]interface{}{"tickers": tickers}, &assets); err != nil {
		log.Debug().Err(err).Int("count", len(tickers)).Msg("hive batch_resolve_tickers_rpc miss")
		return map[string]Asset{}, nil
	}

	byTicker := make(map[string]Asset, len(assets))
	for _, a := range assets {
		byTicker[a.Ticker] = a
	}
	return byTicker, nil
}

// LookupAlias is the resolution cascade's Hive step (spec.md §4.5 step 4):
// a free-text alias (company name variant, legacy ticker) resolved to an
// ISIN.
func (c *Client) LookupAlias(ctx context.Context, alias string) (Alias, bool) {
	var result Alias
	if err := c.call(ctx, "lookup_alias_rpc", map[string]interface{}{"alias": alias}, &result); err != nil {
		log.Debug().Err(err).Str("alias", alias).Msg("hive lookup_alias_rpc miss")
		return Alias{}, false
	}
	if result.ISIN == "" {
		return Alias{}, false
	}
	return result, true
}

// GetAllAssets returns the full asset table, used to warm a local mirror.
func (c *Client) GetAllAssets(ctx context.Context) ([]Asset, error) {
	var assets []Asset
	if err := c.call(ctx, "get_all_assets_rpc", map[string]interface{}{}, &assets); err != nil {
		return nil, err
	}
	return assets, nil
}

// GetAllListings returns the full listing table.
func (c *Client) GetAllListings(ctx context.Context) ([]Listing, error) {
	var listings []Listing
	if err := c.call(ctx, "get_all_listings_rpc", map[string]interface{}{}, &listings); err != nil {
		return nil, err
	}
	return listings, nil
}

// GetAllAliases returns the full alias table.
func (c *Client) GetAllAliases(ctx context.Context) ([]Alias, error) {
	var aliases []Alias
	if err := c.call(ctx, "get_all_aliases_rpc", map[string]interface{}{}, &aliases); err != nil {
		return nil, err
	}
	return aliases, nil
}
