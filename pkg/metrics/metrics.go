package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheLookups counts query cache reads by outcome (hit|miss|pending|retry|stale|exhausted).
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userdash_cache_lookups_total",
			Help: "Total number of query cache lookups",
		},
		[]string{"result"},
	)

	// CacheFetches counts settled cache fetches by status (success|error).
	CacheFetches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userdash_cache_fetches_total",
			Help: "Total number of query cache fetches",
		},
		[]string{"status"},
	)

	// CacheEntries tracks the number of entries held by the query cache.
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "userdash_cache_entries",
			Help: "Number of entries in the query cache",
		},
	)

	// CacheEvictions counts entries removed by the LRU policy or pruning.
	CacheEvictions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userdash_cache_evictions_total",
			Help: "Total number of query cache evictions",
		},
		[]string{"reason"},
	)

	// DebounceEmissions counts values propagated by debouncers.
	DebounceEmissions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "userdash_debounce_emissions_total",
			Help: "Total number of debounced values emitted",
		},
	)

	// APIRequests counts outbound API attempts by endpoint and outcome.
	APIRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "userdash_api_requests_total",
			Help: "Total number of admin API requests",
		},
		[]string{"endpoint", "status"},
	)

	// APILatency measures outbound API request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "userdash_api_latency_seconds",
			Help:    "Admin API request latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	// StatusLatency measures latencies of the local status server.
	StatusLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "userdash_status_latency_seconds",
			Help:    "Local status endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
