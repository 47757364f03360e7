// Quillfeed - Personalization and Recommendation Engine for Reading Content
// Copyright 2026 Quillfeed Authors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/quillfeed/quillfeed

package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus instrumentation for the engine:
// - API endpoint latency and throughput
// - Feedback pipeline folds and failures
// - Cache efficiency (response, analysis, candidate)
// - Recommendation relaxation and degradation signals
// - Analyzer circuit breaker state

var (
	// API Endpoint Metrics
	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"method", "endpoint"},
	)

	APIActiveRequests = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "api_active_requests",
			Help: "Current number of active API requests",
		},
	)

	APIRateLimitHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_rate_limit_hits_total",
			Help: "Total number of rate limit rejections",
		},
		[]string{"endpoint"},
	)

	// Feedback Pipeline Metrics
	FeedbackEventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feedback_events_total",
			Help: "Total number of feedback events accepted for folding",
		},
		[]string{"signal_type"},
	)

	FeedbackDuplicatesTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedback_duplicates_total",
			Help: "Total number of feedback events dropped as duplicates",
		},
	)

	FeedbackFoldDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feedback_fold_duration_seconds",
			Help:    "Time to fold one feedback event into a profile",
			Buckets: prometheus.DefBuckets,
		},
	)

	FeedbackFoldFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "feedback_fold_failures_total",
			Help: "Total number of feedback events that failed to fold",
		},
	)

	// Recommendation Metrics
	RecommendationRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_requests_total",
			Help: "Total number of recommendation requests served",
		},
		[]string{"mode"}, // "personalized", "exploratory", "discovery"
	)

	RecommendationRelaxations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recommendation_relaxations_total",
			Help: "Total number of filter relaxation steps applied",
		},
		[]string{"step"},
	)

	RecommendationIncomplete = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_incomplete_total",
			Help: "Total number of recommendation sets served from stale candidates",
		},
	)

	RecommendationSuperseded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "recommendation_superseded_total",
			Help: "Total number of requests cancelled by a newer session request",
		},
	)

	// Cache Metrics
	CacheHits = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_hits_total",
			Help: "Total number of cache hits",
		},
		[]string{"cache"}, // "response", "analysis", "candidate"
	)

	CacheMisses = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_misses_total",
			Help: "Total number of cache misses",
		},
		[]string{"cache"},
	)

	// Analyzer Metrics
	AnalysisRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "analysis_requests_total",
			Help: "Total number of content analysis requests",
		},
		[]string{"language", "outcome"}, // outcome: "primary", "fallback", "error"
	)

	AnalysisDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "analysis_duration_seconds",
			Help:    "Content analysis duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"language"},
	)

	AnalyzerBreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "analyzer_breaker_state",
			Help: "Analyzer circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"language"},
	)

	// Store Metrics
	StoreProfiles = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_profiles",
			Help: "Current number of stored user profiles",
		},
	)

	StoreLSMBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_lsm_bytes",
			Help: "Badger LSM tree size in bytes",
		},
	)

	StoreVlogBytes = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "store_vlog_bytes",
			Help: "Badger value log size in bytes",
		},
	)

	// Evolution Metrics
	EvolutionSnapshots = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evolution_snapshots_total",
			Help: "Total number of preference snapshots recorded",
		},
		[]string{"trigger"},
	)

	EvolutionSweepDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "evolution_sweep_duration_seconds",
			Help:    "Duration of scheduled evolution sweeps in seconds",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 300},
		},
	)
)

// RecordAPIRequest records one completed API request.
func RecordAPIRequest(method, endpoint, statusCode string, duration time.Duration) {
	APIRequestsTotal.WithLabelValues(method, endpoint, statusCode).Inc()
	APIRequestDuration.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// TrackActiveRequest adjusts the active-request gauge around a request.
func TrackActiveRequest(inc bool) {
	if inc {
		APIActiveRequests.Inc()
	} else {
		APIActiveRequests.Dec()
	}
}

// RecordFold records a feedback fold attempt.
func RecordFold(duration time.Duration, err error) {
	FeedbackFoldDuration.Observe(duration.Seconds())
	if err != nil {
		FeedbackFoldFailures.Inc()
	}
}

// RecordCacheLookup records a hit or miss against a named cache.
func RecordCacheLookup(cache string, hit bool) {
	if hit {
		CacheHits.WithLabelValues(cache).Inc()
	} else {
		CacheMisses.WithLabelValues(cache).Inc()
	}
}

// SetBreakerState publishes an analyzer breaker state by language.
// State strings come from gobreaker's State.String.
func SetBreakerState(language, state string) {
	var v float64
	switch state {
	case "half-open":
		v = 1
	case "open":
		v = 2
	}
	AnalyzerBreakerState.WithLabelValues(language).Set(v)
}
