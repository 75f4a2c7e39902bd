package application

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skeptomenos/portfolio-prism-engine/internal/adapters"
	appconfig "github.com/skeptomenos/portfolio-prism-engine/internal/config"
	"github.com/skeptomenos/portfolio-prism-engine/internal/dispatch"
	"github.com/skeptomenos/portfolio-prism-engine/internal/identity"
	"github.com/skeptomenos/portfolio-prism-engine/internal/protocol"
)

func TestHandleUploadHoldings_RejectsInvalidISIN(t *testing.T) {
	d := &Dependencies{ManualUpload: adapters.NewManualUploadAdapter()}

	_, err := d.handleUploadHoldings(context.Background(), protocol.Command{
		Payload: map[string]interface{}{"isin": "not-an-isin"},
	})

	var ce *dispatch.CodedError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, protocol.CodeTickerInvalid, ce.Code)
}

func TestHandleUploadHoldings_RejectsEmptyHoldings(t *testing.T) {
	d := &Dependencies{ManualUpload: adapters.NewManualUploadAdapter()}
	isin := "IE00B4L5Y983"
	require.True(t, identity.ValidateISIN(isin))

	_, err := d.handleUploadHoldings(context.Background(), protocol.Command{
		Payload: map[string]interface{}{"isin": isin, "holdings": []interface{}{}},
	})

	var ce *dispatch.CodedError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, protocol.CodeInvalidCommand, ce.Code)
}

func TestHandleUploadHoldings_StoresValidHoldings(t *testing.T) {
	manual := adapters.NewManualUploadAdapter()
	d := &Dependencies{ManualUpload: manual}
	isin := "IE00B4L5Y983"

	result, err := d.handleUploadHoldings(context.Background(), protocol.Command{
		Payload: map[string]interface{}{
			"isin": isin,
			"holdings": []interface{}{
				map[string]interface{}{"name": "Apple Inc", "isin": "US0378331005", "weight": 5.2},
			},
		},
	})
	require.NoError(t, err)
	require.Equal(t, isin, result["isin"])
	require.Equal(t, 1, result["holding_count"])

	holdings, err := manual.FetchHoldings(context.Background(), isin)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	require.Equal(t, "Apple Inc", holdings[0].Name)
}

func TestHandleUploadHoldings_RejectsPathTraversalFilename(t *testing.T) {
	d := &Dependencies{
		ManualUpload: adapters.NewManualUploadAdapter(),
		Config:       appconfig.Config{DataDir: t.TempDir()},
	}
	isin := "IE00B4L5Y983"

	_, err := d.handleUploadHoldings(context.Background(), protocol.Command{
		Payload: map[string]interface{}{"isin": isin, "filename": "../../../etc/passwd"},
	})

	var ce *dispatch.CodedError
	require.ErrorAs(t, err, &ce)
	require.Equal(t, protocol.CodeInvalidCommand, ce.Code)
}

func TestHandleUploadHoldings_ReadsHoldingsFromFile(t *testing.T) {
	dataDir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dataDir, "uploads"), 0o700))
	csv := "name,isin,weight\nApple Inc,US0378331005,5.2\n"
	require.NoError(t, os.WriteFile(filepath.Join(dataDir, "uploads", "holdings.csv"), []byte(csv), 0o600))

	manual := adapters.NewManualUploadAdapter()
	d := &Dependencies{ManualUpload: manual, Config: appconfig.Config{DataDir: dataDir}}
	isin := "IE00B4L5Y983"

	result, err := d.handleUploadHoldings(context.Background(), protocol.Command{
		Payload: map[string]interface{}{"isin": isin, "filename": "holdings.csv"},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result["holding_count"])

	holdings, err := manual.FetchHoldings(context.Background(), isin)
	require.NoError(t, err)
	require.Len(t, holdings, 1)
	require.Equal(t, "Apple Inc", holdings[0].Name)
}

func TestHandleSetHiveContribution_TogglesResolver(t *testing.T) {
	resolver := identity.NewResolver(nil, nil, nil, nil)
	d := &Dependencies{Resolver: resolver}

	result, err := d.handleSetHiveContribution(context.Background(), protocol.Command{
		Payload: map[string]interface{}{"enabled": false},
	})
	require.NoError(t, err)
	require.Equal(t, false, result["hive_contribution_enabled"])
}
