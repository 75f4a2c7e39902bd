package identity

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/skeptomenos/portfolio-prism-engine/internal/cache"
	"github.com/skeptomenos/portfolio-prism-engine/internal/circuit"
	"github.com/skeptomenos/portfolio-prism-engine/internal/hive"
	"github.com/skeptomenos/portfolio-prism-engine/internal/quota"
	"github.com/skeptomenos/portfolio-prism-engine/internal/ratelimit"
)

type fakeProvider struct {
	source Source
	isin   string
	err    error
}

func (f *fakeProvider) Source() Source { return f.source }

func (f *fakeProvider) Lookup(ctx context.Context, query string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.isin, nil
}

func newMissingHive(t *testing.T) *hive.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return hive.New(srv.URL, "anon", ratelimit.NewManager(), circuit.NewManager(), quota.NewManager())
}

func newHiveReturning(t *testing.T, isin string) *hive.Client {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if strings.HasSuffix(r.URL.Path, "lookup_alias_rpc") {
			w.Write([]byte(`{"isin":"` + isin + `","alias_type":"NAME"}`))
			return
		}
		w.Write([]byte(`{}`))
	}))
	t.Cleanup(srv.Close)
	return hive.New(srv.URL, "anon", ratelimit.NewManager(), circuit.NewManager(), quota.NewManager())
}

func TestResolve_Step1_AlreadyValidISIN(t *testing.T) {
	r := NewResolver(cache.New[Result](100, time.Minute), nil, nil, nil)

	result, err := r.Resolve(context.Background(), "US0378331005")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Source != SourceISINDirect || result.Confidence != 1.0 {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestResolve_Step3_CacheHit(t *testing.T) {
	memCache := cache.New[Result](100, time.Minute)
	memCache.Set("AAPL", Result{ISIN: "US0378331005"}, time.Minute)
	r := NewResolver(memCache, nil, nil, nil)

	result, err := r.Resolve(context.Background(), "aapl")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Source != SourceCache || result.ISIN != "US0378331005" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestResolve_Step4_HiveHit(t *testing.T) {
	r := NewResolver(cache.New[Result](100, time.Minute), nil, newHiveReturning(t, "US0378331005"), nil)

	result, err := r.Resolve(context.Background(), "apple inc")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Source != SourceHive || result.ISIN != "US0378331005" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestResolve_Step5_ExternalCascadeSkipsToNextOnMiss(t *testing.T) {
	externals := []ExternalProvider{
		&fakeProvider{source: SourceWikidata, err: ErrMiss},
		&fakeProvider{source: SourceOpenFIGI, isin: "US5949181045"},
	}
	r := NewResolver(cache.New[Result](100, time.Minute), nil, newMissingHive(t), externals)

	result, err := r.Resolve(context.Background(), "microsoft corp")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Source != SourceOpenFIGI || result.ISIN != "US5949181045" {
		t.Errorf("unexpected result: %+v", result)
	}
}

func TestResolve_NegativeCache_Unresolved(t *testing.T) {
	memCache := cache.New[Result](100, time.Minute)
	externals := []ExternalProvider{&fakeProvider{source: SourceWikidata, err: ErrMiss}}
	r := NewResolver(memCache, nil, newMissingHive(t), externals)

	result, err := r.Resolve(context.Background(), "nonexistent widgets ltd")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Source != SourceUnresolved {
		t.Errorf("expected unresolved, got %+v", result)
	}

	cached, ok := memCache.Get("NONEXISTENT WIDGETS LTD")
	if !ok || cached.Source != SourceUnresolved {
		t.Errorf("expected unresolved result negative-cached under the canonical normalized key, got %+v ok=%v", cached, ok)
	}
}

func TestResolve_RateLimitedProviderNegativeCachesDistinctly(t *testing.T) {
	externals := []ExternalProvider{&fakeProvider{source: SourceOpenFIGI, err: ErrRateLimited}}
	r := NewResolver(cache.New[Result](100, time.Minute), nil, newMissingHive(t), externals)

	result, err := r.Resolve(context.Background(), "ratelimitedquery")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Source != SourceRateLimited {
		t.Errorf("expected rate limited, got %+v", result)
	}
}

func TestSelectBest_TieBreaksLexicographically(t *testing.T) {
	best, ok := SelectBest([]Candidate{
		{ISIN: "US5949181045", Confidence: 0.9},
		{ISIN: "US0378331005", Confidence: 0.9},
	})
	if !ok || best.ISIN != "US0378331005" {
		t.Errorf("expected lexicographically smallest ISIN to win tie, got %+v", best)
	}
}

func TestSelectBest_HighestConfidenceWinsOverLexicographic(t *testing.T) {
	best, ok := SelectBest([]Candidate{
		{ISIN: "US5949181045", Confidence: 0.95},
		{ISIN: "US0378331005", Confidence: 0.80},
	})
	if !ok || best.ISIN != "US5949181045" {
		t.Errorf("expected higher-confidence candidate to win, got %+v", best)
	}
}

func TestClassify_LowConfidenceFlagBetweenThresholds(t *testing.T) {
	r := &Resolver{}
	result := r.classify(Result{ISIN: "US0378331005", Confidence: 0.6, Source: SourceYFinance})
	if !result.LowConfidence {
		t.Error("expected low_confidence flag for confidence between 0.50 and 0.70")
	}
}

func TestClassify_BelowRejectThresholdBecomesUnresolved(t *testing.T) {
	r := &Resolver{}
	result := r.classify(Result{ISIN: "US0378331005", Confidence: 0.4, Source: SourceYFinance})
	if result.Source != SourceUnresolved {
		t.Errorf("expected unresolved below reject threshold, got %+v", result)
	}
}
