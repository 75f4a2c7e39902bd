package identity

import "strings"

// tickerSuffixes are market-qualifier suffixes stripped to build the
// variant list a ticker is looked up under (spec.md §4.5 step 2).
var tickerSuffixes = []string{" US", " UN", ".OQ"}

// companySuffixTokens are trailing legal-entity tokens stripped when
// normalizing a company name (spec.md §4.5 step 2).
var companySuffixTokens = []string{
	"CORP", "INC", "AG", "PLC", "NV", "SA", "CLASS A", "CLASS B", "CLASS C",
}

// NormalizeTicker returns the uppercased input plus every suffix-stripped
// variant, in the order they should be tried. "/B" is rewritten to ".B"
// before suffix stripping, matching the share-class notation the cascade
// expects downstream.
func NormalizeTicker(ticker string) []string {
	upper := strings.ToUpper(strings.TrimSpace(ticker))
	upper = strings.ReplaceAll(upper, "/B", ".B")

	variants := []string{upper}
	for _, suffix := range tickerSuffixes {
		if strings.HasSuffix(upper, suffix) {
			stripped := strings.TrimSuffix(upper, suffix)
			variants = append(variants, stripped)
		}
	}
	return dedupe(variants)
}

// NormalizeName uppercases a company name and strips trailing legal-entity
// suffix tokens, so "Apple Inc" and "APPLE" land on the same cache key.
func NormalizeName(name string) string {
	upper := strings.ToUpper(strings.TrimSpace(name))
	fields := strings.Fields(upper)

	for changed := true; changed && len(fields) > 0; {
		changed = false
		for _, token := range companySuffixTokens {
			tokenFields := strings.Fields(token)
			if len(fields) >= len(tokenFields) && joined(fields[len(fields)-len(tokenFields):]) == token {
				fields = fields[:len(fields)-len(tokenFields)]
				changed = true
				break
			}
		}
	}
	return strings.Join(fields, " ")
}

func joined(fields []string) string {
	return strings.Join(fields, " ")
}

func dedupe(items []string) []string {
	seen := make(map[string]bool, len(items))
	out := make([]string, 0, len(items))
	for _, item := range items {
		if seen[item] {
			continue
		}
		seen[item] = true
		out = append(out, item)
	}
	return out
}
