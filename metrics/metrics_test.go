package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObserveLookup(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveLookup("zanox_merchant_id", "miss")
	m.ObserveLookup("zanox_merchant_id", "hit")
	m.ObserveLookup("zanox_merchant_id", "hit")

	if got := testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("zanox_merchant_id", "hit")); got != 2 {
		t.Errorf("expected 2 hits, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheLookupsTotal.WithLabelValues("zanox_merchant_id", "miss")); got != 1 {
		t.Errorf("expected 1 miss, got %v", got)
	}
}

func TestObserveSearch(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveSearch("ids", "ok", 3, 20*time.Millisecond)
	m.ObserveSearch("query", "error", 0, time.Millisecond)

	if got := testutil.ToFloat64(m.SearchesTotal.WithLabelValues("ids", "ok")); got != 1 {
		t.Errorf("expected 1 ok search, got %v", got)
	}
	if got := testutil.CollectAndCount(m.SearchResultsCount); got != 1 {
		t.Errorf("expected results histogram only for the successful mode, got %d series", got)
	}
}

func TestObserveErrorAndClear(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveError(301)
	m.ObserveClear(4)

	if got := testutil.ToFloat64(m.RemoteErrorsTotal.WithLabelValues("301")); got != 1 {
		t.Errorf("expected 1 quota error, got %v", got)
	}
	if got := testutil.ToFloat64(m.CacheKeysCleared); got != 4 {
		t.Errorf("expected 4 cleared keys, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)
	m.ObserveLookup("networks", "hit")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "feedcache_cache_lookups_total") {
		t.Errorf("expected lookup counter in scrape output")
	}
}
