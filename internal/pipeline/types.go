// Package pipeline runs the three-phase analytics orchestrator — ETF
// decomposition, metadata enrichment, and in-memory aggregation (spec.md
// §4.8) — and reports progress over an internal/transport.Broadcaster.
package pipeline

import "github.com/shopspring/decimal"

// Leaf is one fully-decomposed holding: either a direct position or one
// constituent at the bottom of an ETF look-through tree. Weight is already
// an absolute fraction of the enclosing portfolio (parent weights
// multiplied through).
type Leaf struct {
	ISIN        string
	Name        string
	Ticker      string
	Weight      float64
	Value       decimal.Decimal
	Sector      string
	Region      string
	Currency    string
	Source      string // "direct", the ISIN of the ETF it was unwrapped from, or "depth_cutoff"/"fetch_failed" for an ETF kept as an opaque leaf
	NeedsReview bool
}

// Summary is the top-level portfolio summary (spec.md §4.8 aggregation).
type Summary struct {
	TotalValue       decimal.Decimal
	TotalGain        decimal.Decimal
	DayChange        decimal.Decimal
	DayChangePercent float64
}

// Breakdown is the full aggregation output.
type Breakdown struct {
	Leaves         []Leaf
	SectorExposure map[string]float64
	RegionExposure map[string]float64
	TopHoldings    []Leaf
	Summary        Summary
	Warnings       []string
}

// Metadata is what the enrichment phase fetches for a leaf missing
// sector/region/currency.
type Metadata struct {
	Sector   string
	Region   string
	Currency string
}
