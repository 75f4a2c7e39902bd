package metadata

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skeptomenos/portfolio-prism-engine/internal/circuit"
	"github.com/skeptomenos/portfolio-prism-engine/internal/proxyclient"
	"github.com/skeptomenos/portfolio-prism-engine/internal/quota"
	"github.com/skeptomenos/portfolio-prism-engine/internal/ratelimit"
)

func TestProvider_FetchMetadata(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Query().Get("isin") != "IE00B4L5Y983" {
			t.Errorf("unexpected isin in request: %s", r.URL.RawQuery)
		}
		w.Write([]byte(`{"sector":"Technology","region":"Europe","currency":"EUR"}`))
	}))
	defer srv.Close()

	client := proxyclient.New(srv.URL, ratelimit.NewManager(), circuit.NewManager(), quota.NewManager())
	p := New(client)

	meta, err := p.FetchMetadata(context.Background(), "IE00B4L5Y983")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if meta.Sector != "Technology" || meta.Region != "Europe" || meta.Currency != "EUR" {
		t.Errorf("unexpected metadata: %+v", meta)
	}
}

func TestProvider_FetchMetadata_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := proxyclient.New(srv.URL, ratelimit.NewManager(), circuit.NewManager(), quota.NewManager())
	p := New(client)

	if _, err := p.FetchMetadata(context.Background(), "IE00B4L5Y983"); err == nil {
		t.Fatal("expected error for 500 response")
	}
}
