package application

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/skeptomenos/portfolio-prism-engine/internal/adapters"
	"github.com/skeptomenos/portfolio-prism-engine/internal/pipeline"
)

type stubAdapter struct{ name string }

func (s stubAdapter) Name() string { return s.name }
func (s stubAdapter) FetchHoldings(ctx context.Context, isin string) ([]adapters.Holding, error) {
	return nil, nil
}

func TestDependencies_DashboardCache_RoundTrips(t *testing.T) {
	d := &Dependencies{dashboard: make(map[int64]pipeline.Breakdown)}

	_, ok := d.lastBreakdown(1)
	require.False(t, ok)

	want := pipeline.Breakdown{Warnings: []string{"partial"}}
	d.setLastBreakdown(1, want)

	got, ok := d.lastBreakdown(1)
	require.True(t, ok)
	require.Equal(t, want, got)

	_, ok = d.lastBreakdown(2)
	require.False(t, ok)
}

func TestDependencies_IsETF(t *testing.T) {
	manual := adapters.NewManualUploadAdapter()
	reg := adapters.NewRegistry(manual)
	reg.Register("IE00B4L5Y983", stubAdapter{name: "ishares"})

	d := &Dependencies{Adapters: reg, ManualUpload: manual}

	require.True(t, d.isETF("IE00B4L5Y983"))
	require.False(t, d.isETF("US0378331005"))
}
