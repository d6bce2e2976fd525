// Watif Recommender - Social Graph Recommendation Service
// Copyright 2026 Watif Social
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/watif-social/recommender

package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the recommender:
// - API endpoint latency and throughput
// - Recommendation engine calls per engine and kind
// - Embedding cache efficiency
// - Sync projector step progress

var (
	// HTTP metrics
	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Duration of HTTP requests in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route", "status"},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_active_requests",
			Help: "Number of HTTP requests currently in flight",
		},
	)

	// Recommendation engine metrics
	EngineRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "engine_requests_total",
			Help: "Total recommendation requests by engine code and entity kind",
		},
		[]string{"engine", "kind", "outcome"},
	)

	EngineRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "engine_request_duration_seconds",
			Help:    "Duration of recommendation scoring in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"engine", "kind"},
	)

	// Embedding cache metrics
	EmbeddingCacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_cache_hits_total",
			Help: "Cached embeddings served without recomputation",
		},
		[]string{"collection"},
	)

	EmbeddingCacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "embedding_cache_misses_total",
			Help: "Embeddings recomputed because the cache was absent or stale",
		},
		[]string{"collection"},
	)

	// Sync projector metrics
	ProjectorStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "projector_steps_total",
			Help: "Projector steps executed, by step name and outcome",
		},
		[]string{"step", "outcome"},
	)

	ProjectorRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "projector_run_duration_seconds",
			Help:    "Duration of full projector runs in seconds",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		},
	)

	// Store transport metrics
	StoreRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "store_retries_total",
			Help: "Transient store failures that triggered a retry",
		},
		[]string{"store"},
	)
)

// RecordAPIRequest records one completed HTTP request.
func RecordAPIRequest(method, route string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	APIRequestsTotal.WithLabelValues(method, route, code).Inc()
	APIRequestDuration.WithLabelValues(method, route, code).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the in-flight request gauge.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordEngineRequest records one recommendation call.
func RecordEngineRequest(engine, kind string, err error, duration time.Duration) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	EngineRequestsTotal.WithLabelValues(engine, kind, outcome).Inc()
	EngineRequestDuration.WithLabelValues(engine, kind).Observe(duration.Seconds())
}

// RecordEmbeddingCacheHit counts a fresh cached vector being served.
func RecordEmbeddingCacheHit(collection string) {
	EmbeddingCacheHits.WithLabelValues(collection).Inc()
}

// RecordEmbeddingCacheMiss counts a recomputation.
func RecordEmbeddingCacheMiss(collection string) {
	EmbeddingCacheMisses.WithLabelValues(collection).Inc()
}

// RecordProjectorStep records one projector step completion.
func RecordProjectorStep(step string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "error"
	}
	ProjectorStepsTotal.WithLabelValues(step, outcome).Inc()
}

// RecordProjectorRun records a full projector run duration.
func RecordProjectorRun(duration time.Duration) {
	ProjectorRunDuration.Observe(duration.Seconds())
}

// RecordStoreRetry counts a retried transient failure for a store ("mongo"
// or "neo4j").
func RecordStoreRetry(store string) {
	StoreRetriesTotal.WithLabelValues(store).Inc()
}
