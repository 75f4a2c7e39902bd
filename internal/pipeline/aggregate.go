package pipeline

import (
	"sort"

	"github.com/shopspring/decimal"
)

// topHoldingsCount bounds the top-N holdings list (spec.md §4.8
// aggregation: "top-N holdings by absolute value").
const topHoldingsCount = 10

// aggregate rolls enriched leaves up into sector/region exposure, the
// top-N holdings list, and the summary block. Pure function: no I/O, no
// mutation of leaves.
func (o *Orchestrator) aggregate(leaves []Leaf, priorTotalValue decimal.Decimal) Breakdown {
	total := decimal.Zero
	for _, l := range leaves {
		total = total.Add(l.Value)
	}

	sectorExposure := exposureBy(leaves, total, func(l Leaf) string { return l.Sector })
	regionExposure := exposureBy(leaves, total, func(l Leaf) string { return l.Region })

	top := make([]Leaf, len(leaves))
	copy(top, leaves)
	sort.SliceStable(top, func(i, j int) bool { return top[i].Value.GreaterThan(top[j].Value) })
	if len(top) > topHoldingsCount {
		top = top[:topHoldingsCount]
	}

	dayChange := decimal.Zero
	dayChangePercent := 0.0
	if !priorTotalValue.IsZero() {
		dayChange = total.Sub(priorTotalValue)
		pct, _ := dayChange.Div(priorTotalValue).Float64()
		dayChangePercent = pct * 100
	}

	return Breakdown{
		Leaves:         leaves,
		SectorExposure: sectorExposure,
		RegionExposure: regionExposure,
		TopHoldings:    top,
		Summary: Summary{
			TotalValue:       total,
			DayChange:        dayChange,
			DayChangePercent: dayChangePercent,
		},
	}
}

// exposureBy sums leaf value grouped by keyFn, normalized by portfolio
// total, with an "" bucket for leaves missing the dimension entirely.
func exposureBy(leaves []Leaf, total decimal.Decimal, keyFn func(Leaf) string) map[string]float64 {
	sums := make(map[string]decimal.Decimal)
	for _, l := range leaves {
		key := keyFn(l)
		sums[key] = sums[key].Add(l.Value)
	}

	exposure := make(map[string]float64, len(sums))
	for key, sum := range sums {
		if total.IsZero() {
			exposure[key] = 0
			continue
		}
		pct, _ := sum.Div(total).Float64()
		exposure[key] = pct
	}
	return exposure
}
