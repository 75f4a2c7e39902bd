package adapters

import (
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// columnMap names the header cell (case-insensitive) each Holding field is
// read from in a given issuer's CSV export. An empty entry means that
// field is left at its zero value for this issuer.
type columnMap struct {
	name, isin, ticker, weight, location, exchange string
}

// issuerAdapter fetches one issuer's public holdings CSV export over plain
// HTTPS — these are unauthenticated static files, not rate-limited keyed
// APIs, so they bypass internal/proxyclient's credential-injecting proxy
// (spec.md §6.5 scopes the proxy to Wikidata/OpenFIGI/Finnhub/yFinance
// specifically).
type issuerAdapter struct {
	name       string
	urlForISIN func(isin string) string
	columns    columnMap
	httpClient *http.Client
}

func newIssuerAdapter(name string, urlForISIN func(string) string, columns columnMap) *issuerAdapter {
	return &issuerAdapter{
		name:       name,
		urlForISIN: urlForISIN,
		columns:    columns,
		httpClient: &http.Client{Timeout: 10 * time.Second},
	}
}

func (a *issuerAdapter) Name() string { return a.name }

func (a *issuerAdapter) FetchHoldings(ctx context.Context, isin string) ([]Holding, error) {
	if err := requireValidISIN(isin); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.urlForISIN(isin), nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: build request: %v", ErrAdapterNetwork, a.name, err)
	}

	resp, err := a.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAdapterNetwork, a.name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, fmt.Errorf("%w: %s returned HTTP %d", ErrAdapterNetwork, a.name, resp.StatusCode)
	}

	holdings, err := parseHoldingsCSV(resp.Body, a.columns)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrAdapterFormat, a.name, err)
	}
	return holdings, nil
}

// parseHoldingsCSV reads a header-first CSV export and maps its columns
// per cols. Rows missing a required name or weight are skipped rather than
// aborting the whole fetch.
func parseHoldingsCSV(r io.Reader, cols columnMap) ([]Holding, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header row: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, col := range header {
		index[strings.ToLower(strings.TrimSpace(col))] = i
	}

	get := func(record []string, name string) string {
		if name == "" {
			return ""
		}
		i, ok := index[strings.ToLower(name)]
		if !ok || i >= len(record) {
			return ""
		}
		return strings.TrimSpace(record[i])
	}

	var holdings []Holding
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read row: %w", err)
		}

		name := get(record, cols.name)
		weightStr := strings.TrimSuffix(get(record, cols.weight), "%")
		if name == "" || weightStr == "" {
			continue
		}
		weight, err := strconv.ParseFloat(weightStr, 64)
		if err != nil {
			continue
		}

		holdings = append(holdings, Holding{
			Name:     name,
			ISIN:     get(record, cols.isin),
			Ticker:   get(record, cols.ticker),
			Weight:   weight,
			Location: get(record, cols.location),
			Exchange: get(record, cols.exchange),
		})
	}
	return holdings, nil
}
