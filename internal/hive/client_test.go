package hive

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/skeptomenos/portfolio-prism-engine/internal/circuit"
	"github.com/skeptomenos/portfolio-prism-engine/internal/quota"
	"github.com/skeptomenos/portfolio-prism-engine/internal/ratelimit"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(handler)
	c := New(srv.URL, "anon-key", ratelimit.NewManager(), circuit.NewManager(), quota.NewManager())
	return c, srv.Close
}

func TestResolveTicker_Hit(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/resolve_ticker_rpc") {
			t.Errorf("unexpected path: %s", r.URL.Path)
		}
		if r.Header.Get("apikey") != "anon-key" {
			t.Errorf("missing anon key header")
		}
		w.Write([]byte(`{"isin":"US0378331005","ticker":"AAPL","name":"Apple Inc"}`))
	})
	defer closeFn()

	asset, ok := c.ResolveTicker(context.Background(), "AAPL", "")
	if !ok {
		t.Fatal("expected hit")
	}
	if asset.ISIN != "US0378331005" {
		t.Errorf("unexpected isin: %s", asset.ISIN)
	}
}

func TestResolveTicker_MissOnUnreachableHive(t *testing.T) {
	c := New("http://127.0.0.1:1", "anon-key", ratelimit.NewManager(), circuit.NewManager(), quota.NewManager(), WithTimeout(0))

	_, ok := c.ResolveTicker(context.Background(), "AAPL", "")
	if ok {
		t.Fatal("expected miss when hive is unreachable")
	}
}

func TestBatchResolveTickers_RejectsOversizeBatch(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("handler should not be called for an oversize batch")
	})
	defer closeFn()

	tickers := make([]string, 101)
	for i := range tickers {
		tickers[i] = "T"
	}
	_, err := c.BatchResolveTickers(context.Background(), tickers)
	if err == nil {
		t.Fatal("expected error for batch over 100 tickers")
	}
}

func TestBatchResolveTickers_IndexesByTicker(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"isin":"US0378331005","ticker":"AAPL"},{"isin":"US5949181045","ticker":"MSFT"}]`))
	})
	defer closeFn()

	byTicker, err := c.BatchResolveTickers(context.Background(), []string{"AAPL", "MSFT"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if byTicker["AAPL"].ISIN != "US0378331005" || byTicker["MSFT"].ISIN != "US5949181045" {
		t.Errorf("unexpected mapping: %+v", byTicker)
	}
}

func TestLookupAlias_Miss(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{}`))
	})
	defer closeFn()

	_, ok := c.LookupAlias(context.Background(), "apple inc")
	if ok {
		t.Fatal("expected miss on empty isin")
	}
}

func TestContributeAsset_QueuesOnFailure(t *testing.T) {
	var calls int32
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer closeFn()

	c.ContributeAsset(context.Background(), "US0378331005", "AAPL", "NASDAQ", "Apple Inc", "EQUITY", "USD", "USD")
	if c.Queue().Len() != 1 {
		t.Fatalf("expected 1 queued contribution, got %d", c.Queue().Len())
	}
}

func TestRetryQueued_DeliversAndDrainsOnSuccess(t *testing.T) {
	var fail int32 = 1
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if atomic.LoadInt32(&fail) == 1 {
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		w.Write([]byte(`{}`))
	})
	defer closeFn()

	c.ContributeAsset(context.Background(), "US0378331005", "AAPL", "NASDAQ", "Apple Inc", "EQUITY", "USD", "USD")
	if c.Queue().Len() != 1 {
		t.Fatalf("expected 1 queued contribution before retry")
	}

	atomic.StoreInt32(&fail, 0)
	delivered, failed := c.RetryQueued(context.Background())
	if delivered != 1 || failed != 0 {
		t.Fatalf("expected 1 delivered 0 failed, got %d/%d", delivered, failed)
	}
	if c.Queue().Len() != 0 {
		t.Fatalf("expected empty queue after successful retry, got %d", c.Queue().Len())
	}
}

func TestRetryQueued_RequeuesOnRepeatedFailure(t *testing.T) {
	c, closeFn := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	defer closeFn()

	c.ContributeAsset(context.Background(), "US0378331005", "AAPL", "NASDAQ", "Apple Inc", "EQUITY", "USD", "USD")
	delivered, failed := c.RetryQueued(context.Background())
	if delivered != 0 || failed != 1 {
		t.Fatalf("expected 0 delivered 1 failed, got %d/%d", delivered, failed)
	}
	if c.Queue().Len() != 1 {
		t.Fatalf("expected contribution to remain queued, got %d", c.Queue().Len())
	}
}
