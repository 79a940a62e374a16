// Package metrics defines the Prometheus collectors for cache lookups,
// searches and remote failures.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "feedcache"

// Metrics holds all collectors of the module.
type Metrics struct {
	CacheLookupsTotal  *prometheus.CounterVec
	SearchesTotal      *prometheus.CounterVec
	SearchLatency      *prometheus.HistogramVec
	SearchResultsCount *prometheus.HistogramVec
	RemoteErrorsTotal  *prometheus.CounterVec
	CacheKeysCleared   prometheus.Counter
}

// New creates the collectors and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		CacheLookupsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_lookups_total",
				Help:      "Memoized lookups by resolver and outcome (hit, negative_hit, miss, failure).",
			},
			[]string{"lookup", "outcome"},
		),
		SearchesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Product searches by mode (ids, query) and outcome (ok, empty, error).",
			},
			[]string{"mode", "outcome"},
		),
		SearchLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_latency_seconds",
				Help:      "Remote search latency in seconds.",
				Buckets:   []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
			},
			[]string{"mode"},
		),
		SearchResultsCount: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_results_count",
				Help:      "Number of products returned per search.",
				Buckets:   []float64{0, 1, 5, 10, 25, 50, 100},
			},
			[]string{"mode"},
		),
		RemoteErrorsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "remote_errors_total",
				Help:      "Errors returned to callers by error code.",
			},
			[]string{"code"},
		),
		CacheKeysCleared: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "cache_keys_cleared_total",
				Help:      "Cache keys deleted by bulk clears.",
			},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.CacheLookupsTotal,
			m.SearchesTotal,
			m.SearchLatency,
			m.SearchResultsCount,
			m.RemoteErrorsTotal,
			m.CacheKeysCleared,
		)
	}

	return m
}

// ObserveLookup records one memoized lookup outcome.
func (m *Metrics) ObserveLookup(lookup, outcome string) {
	m.CacheLookupsTotal.WithLabelValues(lookup, outcome).Inc()
}

// ObserveSearch records one search.
func (m *Metrics) ObserveSearch(mode, outcome string, results int, elapsed time.Duration) {
	m.SearchesTotal.WithLabelValues(mode, outcome).Inc()
	m.SearchLatency.WithLabelValues(mode).Observe(elapsed.Seconds())
	if outcome != "error" {
		m.SearchResultsCount.WithLabelValues(mode).Observe(float64(results))
	}
}

// ObserveError records an error returned to a caller.
func (m *Metrics) ObserveError(code int) {
	m.RemoteErrorsTotal.WithLabelValues(strconv.Itoa(code)).Inc()
}

// ObserveClear records a bulk clear.
func (m *Metrics) ObserveClear(keys int) {
	m.CacheKeysCleared.Add(float64(keys))
}

// Handler returns the scrape handler for gatherer.
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}
