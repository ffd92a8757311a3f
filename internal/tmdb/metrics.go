package tmdb

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	requestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reelstats_tmdb_requests_total",
			Help: "TMDB requests by endpoint and outcome (HTTP status, error or rejected)",
		},
		[]string{"endpoint", "outcome"},
	)

	requestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "reelstats_tmdb_request_duration_seconds",
			Help:    "TMDB response latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	breakerState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "reelstats_tmdb_circuit_breaker_state",
			Help: "TMDB circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)
