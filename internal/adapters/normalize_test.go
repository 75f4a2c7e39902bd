package adapters

import "testing"

func TestNormalizeWeights_DetectsDecimalFractions(t *testing.T) {
	holdings := []Holding{{Weight: 0.4}, {Weight: 0.35}, {Weight: 0.2}}
	if ambiguous := NormalizeWeights("test", holdings); ambiguous {
		t.Error("expected unambiguous decimal detection")
	}
	if holdings[0].Weight != 0.4 {
		t.Errorf("decimal weights should pass through unchanged, got %v", holdings[0].Weight)
	}
}

func TestNormalizeWeights_DetectsPercent(t *testing.T) {
	holdings := []Holding{{Weight: 40}, {Weight: 35}, {Weight: 25}}
	if ambiguous := NormalizeWeights("test", holdings); ambiguous {
		t.Error("expected unambiguous percent detection")
	}
	if holdings[0].Weight != 0.4 {
		t.Errorf("expected percent converted to decimal, got %v", holdings[0].Weight)
	}
}

func TestNormalizeWeights_AmbiguousSumAssumesPercentAndWarns(t *testing.T) {
	holdings := []Holding{{Weight: 10}, {Weight: 10}}
	ambiguous := NormalizeWeights("test", holdings)
	if !ambiguous {
		t.Error("expected ambiguous sum (between 1.05 and 50) to be flagged")
	}
	if holdings[0].Weight != 0.1 {
		t.Errorf("expected ambiguous sum treated as percent, got %v", holdings[0].Weight)
	}
}

func TestNormalizeWeights_ClipsNegativeWeightsToZero(t *testing.T) {
	holdings := []Holding{{Weight: 60}, {Weight: -5}, {Weight: 45}}
	NormalizeWeights("test", holdings)
	if holdings[1].Weight != 0 {
		t.Errorf("expected negative weight clipped to 0, got %v", holdings[1].Weight)
	}
}

func TestNormalizeWeights_RescalesSumExceedingTolerance(t *testing.T) {
	holdings := []Holding{{Weight: 0.5}, {Weight: 0.3}, {Weight: 0.24}} // sum 1.04, already decimal
	NormalizeWeights("test", holdings)

	sum := 0.0
	for _, h := range holdings {
		sum += h.Weight
		if h.Weight < 0 || h.Weight > 1 {
			t.Errorf("expected every weight within [0, 1], got %v", h.Weight)
		}
	}
	if sum > maxWeightSum {
		t.Errorf("expected rescaled sum within tolerance, got %v", sum)
	}
}
