package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
)

// HoldingRow is one line of the breakdown CSV — deliberately independent of
// internal/pipeline's Leaf type so this package has no reason to import it
// back (pipeline already imports report to write its output).
type HoldingRow struct {
	ISIN        string
	Name        string
	Ticker      string
	Weight      float64
	Value       string
	Sector      string
	Region      string
	Currency    string
	Source      string
	NeedsReview bool
}

var csvHeader = []string{"isin", "name", "ticker", "weight", "value", "sector", "region", "currency", "source", "needs_review"}

// WriteBreakdownCSV atomically writes rows as the holdings breakdown report
// (spec.md §6.6).
func WriteBreakdownCSV(path string, rows []HoldingRow) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write(csvHeader); err != nil {
		return fmt.Errorf("report: write csv header: %w", err)
	}
	for _, r := range rows {
		record := []string{
			r.ISIN, r.Name, r.Ticker,
			strconv.FormatFloat(r.Weight, 'f', 6, 64),
			r.Value, r.Sector, r.Region, r.Currency, r.Source,
			strconv.FormatBool(r.NeedsReview),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("report: write csv row for %s: %w", r.ISIN, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("report: flush csv: %w", err)
	}

	return writeAtomic(path, buf.Bytes())
}
