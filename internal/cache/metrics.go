package cache

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	cacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelstats_cache_hits_total",
			Help: "Cache-aside lookups served from the backend",
		},
		[]string{"kind"}, // first key component: "user-stats", "tmdb", ...
	)

	cacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelstats_cache_misses_total",
			Help: "Cache-aside lookups that had to compute",
		},
		[]string{"kind"},
	)

	cacheWrites = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelstats_cache_writes_total",
			Help: "Computed payloads written back to the backend",
		},
		[]string{"kind"},
	)

	computeDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelstats_cache_compute_duration_seconds",
			Help:    "Time spent computing a missed entry",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"kind"},
	)

	invalidatedKeys = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "reelstats_cache_invalidated_keys_total",
			Help: "Keys removed by pattern invalidation",
		},
	)
)
