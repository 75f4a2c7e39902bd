package proxyclient

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/skeptomenos/portfolio-prism-engine/internal/circuit"
	"github.com/skeptomenos/portfolio-prism-engine/internal/quota"
	"github.com/skeptomenos/portfolio-prism-engine/internal/ratelimit"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := New(srv.URL, ratelimit.NewManager(), circuit.NewManager(), quota.NewManager())
	return c, srv.Close
}

func TestClient_Get_Success(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"ok":true}`))
	})
	defer closeFn()

	body, err := c.Get(context.Background(), "finnhub", "/api/finnhub/profile?symbol=AAPL")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(body) != `{"ok":true}` {
		t.Errorf("unexpected body: %s", body)
	}
}

func TestClient_Get_HTTPError(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})
	defer closeFn()

	_, err := c.Get(context.Background(), "wikidata", "/api/wikidata/entity?isin=US0000000000")
	var statusErr *ErrHTTPStatus
	if !errors.As(err, &statusErr) {
		t.Fatalf("expected ErrHTTPStatus, got %v", err)
	}
	if statusErr.StatusCode != http.StatusBadGateway {
		t.Errorf("expected 502, got %d", statusErr.StatusCode)
	}
}

func TestClient_Get_QuotaExhausted(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	defer closeFn()
	c.quotas.Register("openfigi", 1, 0)

	if _, err := c.Get(context.Background(), "openfigi", "/api/openfigi/map"); err != nil {
		t.Fatalf("unexpected error on first call: %v", err)
	}

	var exhausted *quota.ExhaustedError
	_, err := c.Get(context.Background(), "openfigi", "/api/openfigi/map")
	if !errors.As(err, &exhausted) {
		t.Fatalf("expected ExhaustedError on second call, got %v", err)
	}
}
