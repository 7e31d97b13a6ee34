package cacheinfra

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CacheHits tracks reads served from a present entry
	CacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_hits_total",
			Help: "Total number of cache hits",
		},
	)

	// CacheMisses tracks reads that started a fetch
	CacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_misses_total",
			Help: "Total number of cache misses that started a fetch",
		},
	)

	// CacheShared tracks reads that joined another caller's fetch
	CacheShared = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_shared_total",
			Help: "Total number of reads that waited on an in-flight fetch",
		},
	)

	// CacheDiscards tracks fetch results dropped because a tag was
	// invalidated (or the flight abandoned) while they were computing
	CacheDiscards = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_discards_total",
			Help: "Total number of fetch results not installed",
		},
	)

	// CacheFallbacks tracks waiters that gave up and computed directly
	CacheFallbacks = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "catalog_cache_fallbacks_total",
			Help: "Total number of direct computes after a wait timeout",
		},
	)

	// CacheInvalidations tracks invalidated tags
	CacheInvalidations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_invalidations_total",
			Help: "Total number of tag invalidations",
		},
		[]string{"tag"},
	)

	// CacheEntries tracks present entries across stores
	CacheEntries = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "catalog_cache_entries",
			Help: "Current number of present cache entries",
		},
	)

	// CacheBackendErrors tracks backend failures the store failed open on
	CacheBackendErrors = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "catalog_cache_backend_errors_total",
			Help: "Total number of cache backend errors",
		},
		[]string{"operation"}, // "get", "set", "delete"
	)
)
