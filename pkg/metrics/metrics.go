// Package metrics provides Prometheus metrics instrumentation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// RequestDuration tracks HTTP request duration.
	RequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "api_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
		},
		[]string{"method", "path", "status"},
	)

	// RequestsTotal tracks total HTTP requests.
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "api_requests_total",
			Help: "Total HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	// SessionsStartedTotal tracks chat sessions started per portal.
	SessionsStartedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_sessions_started_total",
			Help: "Total chat sessions started",
		},
	)

	// MessagesTotal tracks messages appended to sessions, by author.
	MessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total chat messages persisted",
		},
		[]string{"author"},
	)

	// RateLimitedTotal tracks message sends rejected by the session window.
	RateLimitedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_rate_limited_total",
			Help: "Message sends rejected by the per-session rate limit",
		},
	)

	// GenerationDuration tracks AI response generation duration.
	GenerationDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "generation_duration_seconds",
			Help:    "AI response generation duration",
			Buckets: []float64{.25, .5, 1, 2, 5, 10, 20, 30, 45, 60},
		},
		[]string{"provider", "status"},
	)

	// FallbacksTotal tracks exchanges answered by the fallback template.
	FallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "generation_fallbacks_total",
			Help: "Exchanges answered with the deterministic fallback response",
		},
	)

	// IndexBuildsTotal tracks retrieval index constructions by outcome.
	IndexBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retrieval_index_builds_total",
			Help: "Retrieval index builds",
		},
		[]string{"status"},
	)

	// PortalBuildsTotal tracks portal build completions by outcome.
	PortalBuildsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_builds_total",
			Help: "Portal builds finished",
		},
		[]string{"status"},
	)

	// AnalyticsQueryDuration tracks analytics rollup computation time.
	AnalyticsQueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "analytics_query_duration_seconds",
			Help:    "Analytics rollup computation duration",
			Buckets: []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordGeneration records metrics for one AI generation attempt.
func RecordGeneration(provider, status string, seconds float64) {
	GenerationDuration.WithLabelValues(provider, status).Observe(seconds)
}
