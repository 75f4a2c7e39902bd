package adapters

import "github.com/rs/zerolog/log"

// Weight-unit detection thresholds (spec.md §4.4): a holdings sum at or
// below 1.05 is decimal fractions; at or above 50 is percent; anything
// between is ambiguous and assumed percent with a warning.
const (
	decimalSumCeiling = 1.05
	percentSumFloor   = 50.0

	// maxWeightSum is the §3/§8 invariant "Σ weight ≤ 1.001" for a single
	// parent's holdings — a 0.001 tolerance over the theoretical 1.0 sum.
	maxWeightSum = 1.001
)

// NormalizeWeights rewrites holdings in place so Weight is always a
// decimal fraction of 1.0, clips negative weights to 0 (counting how many),
// rescales the whole set down to sum to 1.0 if it exceeds the §3 tolerance,
// and reports whether the percent-vs-decimal detection was ambiguous.
func NormalizeWeights(adapterName string, holdings []Holding) (ambiguous bool) {
	sum := 0.0
	for _, h := range holdings {
		sum += h.Weight
	}

	isPercent := false
	switch {
	case sum <= decimalSumCeiling:
		isPercent = false
	case sum >= percentSumFloor:
		isPercent = true
	default:
		ambiguous = true
		isPercent = true
		log.Warn().Str("adapter", adapterName).Float64("weight_sum", sum).
			Msg("adapters: ambiguous weight sum, assuming percent")
	}

	clipped := 0
	for i := range holdings {
		if isPercent {
			holdings[i].Weight /= 100.0
		}
		if holdings[i].Weight < 0 {
			holdings[i].Weight = 0
			clipped++
		}
	}
	if clipped > 0 {
		log.Warn().Str("adapter", adapterName).Int("clipped_count", clipped).
			Msg("adapters: clipped negative weights to 0")
	}

	normalizedSum := 0.0
	for _, h := range holdings {
		normalizedSum += h.Weight
	}
	if normalizedSum > maxWeightSum {
		log.Warn().Str("adapter", adapterName).Float64("weight_sum", normalizedSum).
			Msg("adapters: holdings weights exceed the 1.001 sum tolerance, rescaling to 1.0")
		scale := 1.0 / normalizedSum
		for i := range holdings {
			holdings[i].Weight *= scale
		}
	}
	return ambiguous
}
