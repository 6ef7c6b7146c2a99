// Package metrics declares the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Recommendation cache
	CacheHits = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marquee_cache_hits_total",
		Help: "Total number of fresh recommendation cache hits",
	})
	CacheMisses = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marquee_cache_misses_total",
		Help: "Total number of recommendation cache misses, including stale entries",
	})
	CacheWrites = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_cache_writes_total",
		Help: "Total number of recommendation cache writes by outcome",
	}, []string{"outcome"}) // "ok", "error"
	CachePurged = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_cache_purged_total",
		Help: "Total number of expired entries removed by the purge job",
	}, []string{"backend"})

	// Pipeline
	Recommendations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "marquee_recommendations_total",
		Help: "Total number of recommendation requests by result source",
	}, []string{"source"})
	RetrievalDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "marquee_retrieval_duration_seconds",
		Help:    "Duration of vector retrieval including post-filtering",
		Buckets: prometheus.DefBuckets,
	})
	ComposerDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marquee_composer_duration_seconds",
		Help:    "Duration of answer composition calls",
		Buckets: []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
	}, []string{"outcome"})
	RetrievalErrors = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marquee_retrieval_errors_total",
		Help: "Total number of vector searches that failed and degraded to no results",
	})

	// HTTP
	RateLimited = promauto.NewCounter(prometheus.CounterOpts{
		Name: "marquee_rate_limited_total",
		Help: "Total number of requests rejected by the rate limiter",
	})
	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "marquee_http_request_duration_seconds",
		Help:    "Duration of HTTP requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"route", "status"})
)
