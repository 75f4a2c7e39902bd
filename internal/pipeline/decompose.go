package pipeline

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"github.com/skeptomenos/portfolio-prism-engine/internal/adapters"
	"github.com/skeptomenos/portfolio-prism-engine/internal/store"
)

// defaultMaxDepth bounds ETF-of-ETF recursion (spec.md §4.8: "configurable
// depth (default 3)").
const defaultMaxDepth = 3

// decompose partitions positions into direct leaves and recursively
// unwrapped ETF leaves, multiplying parent weight through the tree so every
// leaf's Weight is an absolute fraction of the whole portfolio.
func (o *Orchestrator) decompose(ctx context.Context, positions []store.Position) ([]Leaf, []string) {
	var leaves []Leaf
	var warnings []string

	totalValue := decimal.Zero
	for _, p := range positions {
		totalValue = totalValue.Add(p.NetValue())
	}
	if totalValue.IsZero() {
		return leaves, warnings
	}

	for _, p := range positions {
		weight, _ := p.NetValue().Div(totalValue).Float64()
		if !p.IsETF {
			leaves = append(leaves, Leaf{
				ISIN: p.ISIN, Name: p.Name, Weight: weight, Value: p.NetValue(), Source: "direct",
			})
			continue
		}

		visited := map[string]bool{p.ISIN: true}
		constituents, ws := o.unwrapETF(ctx, p.ISIN, p.NetValue(), weight, 1, visited)
		leaves = append(leaves, constituents...)
		warnings = append(warnings, ws...)
	}

	return leaves, warnings
}

// unwrapETF recursively fetches and flattens one ETF position's holdings.
// depth is the current recursion level (1 = the portfolio's direct ETF
// position); recursion stops at o.maxDepth. visited guards against cycles
// within this single position's unwrap tree.
func (o *Orchestrator) unwrapETF(ctx context.Context, isin string, parentValue decimal.Decimal, parentWeight float64, depth int, visited map[string]bool) ([]Leaf, []string) {
	var leaves []Leaf
	var warnings []string

	if depth > o.maxDepth {
		msg := fmt.Sprintf("etf decomposition: max depth %d reached at %s, treating as leaf", o.maxDepth, isin)
		log.Warn().Str("isin", isin).Int("depth", depth).Msg(msg)
		warnings = append(warnings, msg)
		return []Leaf{{ISIN: isin, Weight: parentWeight, Value: parentValue, Source: "depth_cutoff"}}, warnings
	}

	holdings, err := o.registry.FetchHoldings(ctx, isin)
	if err != nil {
		msg := fmt.Sprintf("etf decomposition: failed to fetch holdings for %s: %v", isin, err)
		log.Warn().Err(err).Str("isin", isin).Msg("etf decomposition failed, treating position as an opaque leaf")
		warnings = append(warnings, msg)
		return []Leaf{{ISIN: isin, Weight: parentWeight, Value: parentValue, Source: "fetch_failed"}}, warnings
	}

	for _, h := range holdings {
		leafWeight := parentWeight * h.Weight
		leafValue := parentValue.Mul(decimal.NewFromFloat(h.Weight))

		if h.ISIN != "" && h.ISIN != isin && isETFAdapter(o.registry, h.ISIN) {
			if visited[h.ISIN] {
				msg := fmt.Sprintf("etf decomposition: cycle detected at %s (via %s), cutting edge", h.ISIN, isin)
				log.Warn().Str("isin", h.ISIN).Str("via", isin).Msg("etf decomposition cycle detected")
				warnings = append(warnings, msg)
				leaves = append(leaves, Leaf{ISIN: h.ISIN, Name: h.Name, Weight: leafWeight, Value: leafValue, Source: isin})
				continue
			}
			childVisited := make(map[string]bool, len(visited)+1)
			for k := range visited {
				childVisited[k] = true
			}
			childVisited[h.ISIN] = true

			childLeaves, childWarnings := o.unwrapETF(ctx, h.ISIN, leafValue, leafWeight, depth+1, childVisited)
			leaves = append(leaves, childLeaves...)
			warnings = append(warnings, childWarnings...)
			continue
		}

		leaves = append(leaves, Leaf{
			ISIN: h.ISIN, Name: h.Name, Ticker: h.Ticker, Weight: leafWeight, Value: leafValue, Source: isin,
		})
	}
	return leaves, warnings
}

// isETFAdapter reports whether isin has a registered (non-fallback)
// adapter — the decomposition's signal that a constituent is itself an ETF
// worth recursing into.
func isETFAdapter(reg *adapters.Registry, isin string) bool {
	adapter := reg.Lookup(isin)
	_, isManual := adapter.(*adapters.ManualUploadAdapter)
	return !isManual
}
