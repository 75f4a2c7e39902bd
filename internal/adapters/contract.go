// Package adapters implements the ETF adapter contract (spec.md §4.4): one
// interchangeable fetch_holdings capability per ETF issuer, a registry
// mapping ISIN to adapter, weight normalization, and a 24-hour holdings
// cache keyed by {adapter_name, isin}.
package adapters

import (
	"context"
	"errors"
	"fmt"

	"github.com/skeptomenos/portfolio-prism-engine/internal/identity"
)

// Holding is one constituent returned by an adapter, pre-enrichment. ISIN
// and Ticker are optional — some issuer feeds only publish a name.
type Holding struct {
	Name     string
	ISIN     string
	Ticker   string
	Weight   float64
	Location string
	Exchange string
}

// Sentinel errors an Adapter.FetchHoldings may return (spec.md §4.4).
var (
	ErrAdapterNetwork       = errors.New("adapters: network failure fetching holdings")
	ErrAdapterFormat        = errors.New("adapters: holdings feed did not parse")
	ErrManualUploadRequired = errors.New("adapters: no adapter available, manual upload required")
)

// Adapter fetches the current constituent holdings of one ETF.
type Adapter interface {
	// Name identifies the adapter for cache keys and logging.
	Name() string
	// FetchHoldings returns the ordered constituent list for isin. Callers
	// must validate isin before calling — an adapter validates again
	// defensively but should never be the first line of defense.
	FetchHoldings(ctx context.Context, isin string) ([]Holding, error)
}

// requireValidISIN enforces spec.md §4.4's "must validate the input ISIN
// before any URL construction" rule, shared by every concrete adapter.
func requireValidISIN(isin string) error {
	if !identity.ValidateISIN(isin) {
		return fmt.Errorf("adapters: refusing to build a request URL for invalid ISIN %q", isin)
	}
	return nil
}
