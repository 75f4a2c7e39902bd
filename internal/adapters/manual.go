package adapters

import (
	"context"
	"io"
	"sync"
)

// uploadColumns maps a user-supplied holdings CSV's header to Holding
// fields. Manual uploads have no issuer-specific header convention to
// honor, so the columns are simply the Holding field names themselves.
var uploadColumns = columnMap{
	name:     "name",
	isin:     "isin",
	ticker:   "ticker",
	weight:   "weight",
	location: "location",
	exchange: "exchange",
}

// ParseUploadedHoldingsCSV parses a user-supplied holdings file (the
// upload_holdings command, spec.md §4.3) using the same header-mapped CSV
// reader the issuer adapters use for their own exports.
func ParseUploadedHoldingsCSV(r io.Reader) ([]Holding, error) {
	return parseHoldingsCSV(r, uploadColumns)
}

// ManualUploadAdapter is the registry fallback for any ETF without a
// working issuer adapter: FetchHoldings always signals
// ErrManualUploadRequired, and a previously uploaded holdings set (the
// upload_holdings command, spec.md §4.3) is served back verbatim until
// replaced.
type ManualUploadAdapter struct {
	mu       sync.RWMutex
	uploaded map[string][]Holding
}

// NewManualUploadAdapter returns an empty manual-upload adapter.
func NewManualUploadAdapter() *ManualUploadAdapter {
	return &ManualUploadAdapter{uploaded: make(map[string][]Holding)}
}

func (m *ManualUploadAdapter) Name() string { return "manual_upload" }

// FetchHoldings returns a previously uploaded holdings set for isin, or
// ErrManualUploadRequired if none has been uploaded yet.
func (m *ManualUploadAdapter) FetchHoldings(ctx context.Context, isin string) ([]Holding, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	holdings, ok := m.uploaded[isin]
	if !ok {
		return nil, ErrManualUploadRequired
	}
	return holdings, nil
}

// Upload ingests a user-supplied holdings file for isin (the
// upload_holdings command handler). Weights are normalized immediately so
// later reads never repeat the percent-vs-decimal detection.
func (m *ManualUploadAdapter) Upload(isin string, holdings []Holding) {
	NormalizeWeights(m.Name(), holdings)
	m.mu.Lock()
	defer m.mu.Unlock()
	m.uploaded[isin] = holdings
}
