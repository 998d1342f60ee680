package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// refresh pipeline and caches.
type Metrics struct {
	RefreshCycles  prometheus.Counter
	StoreRefreshes *prometheus.CounterVec // labels: outcome={refreshed,skipped,failed}
	FetchDuration  prometheus.Histogram

	ReadingsDropped *prometheus.CounterVec // labels: reason={window,hours,range,delivery}
	ResultCache     *prometheus.CounterVec // labels: result={hit,miss}

	CacheEntries    prometheus.Gauge
	StaleEntries    prometheus.Gauge
	PersistFailures prometheus.Counter
}

// NewMetrics creates and registers all metrics with the default registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		RefreshCycles: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tankwatch",
			Name:      "refresh_cycles_total",
			Help:      "Refresh cycles started by the background loop or a manual trigger.",
		}),
		StoreRefreshes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tankwatch",
			Name:      "store_refreshes_total",
			Help:      "Per-store refresh attempts by outcome.",
		}, []string{"outcome"}),
		FetchDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "tankwatch",
			Name:      "fetch_duration_seconds",
			Help:      "Upstream telemetry fetch duration per store.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 15, 30, 60, 120},
		}),
		ReadingsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tankwatch",
			Name:      "readings_dropped_total",
			Help:      "Readings discarded by the sanitizer, by reason.",
		}, []string{"reason"}),
		ResultCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "tankwatch",
			Name:      "result_cache_total",
			Help:      "Analytics result cache lookups by result.",
		}, []string{"result"}),
		CacheEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tankwatch",
			Name:      "store_cache_entries",
			Help:      "Store snapshots currently held by the tiered cache.",
		}),
		StaleEntries: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "tankwatch",
			Name:      "store_cache_stale_entries",
			Help:      "Cached store snapshots past the staleness threshold.",
		}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tankwatch",
			Name:      "persist_failures_total",
			Help:      "Backing store writes that failed even after the retry.",
		}),
	}

	prometheus.MustRegister(
		m.RefreshCycles,
		m.StoreRefreshes,
		m.FetchDuration,
		m.ReadingsDropped,
		m.ResultCache,
		m.CacheEntries,
		m.StaleEntries,
		m.PersistFailures,
	)

	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics across tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		RefreshCycles:   prometheus.NewCounter(prometheus.CounterOpts{Namespace: "tankwatch", Name: "refresh_cycles_total"}),
		StoreRefreshes:  prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "tankwatch", Name: "store_refreshes_total"}, []string{"outcome"}),
		FetchDuration:   prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "tankwatch", Name: "fetch_duration_seconds"}),
		ReadingsDropped: prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "tankwatch", Name: "readings_dropped_total"}, []string{"reason"}),
		ResultCache:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "tankwatch", Name: "result_cache_total"}, []string{"result"}),
		CacheEntries:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "tankwatch", Name: "store_cache_entries"}),
		StaleEntries:    prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "tankwatch", Name: "store_cache_stale_entries"}),
		PersistFailures: prometheus.NewCounter(prometheus.CounterOpts{Namespace: "tankwatch", Name: "persist_failures_total"}),
	}
}
