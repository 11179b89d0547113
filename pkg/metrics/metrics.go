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

	// ReflectionsTotal tracks reflection mutations by operation.
	ReflectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "reflections_total",
			Help: "Total reflection store mutations",
		},
		[]string{"operation"},
	)

	// ReflectionStatus tracks current reflections by lifecycle status.
	ReflectionStatus = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "reflection_status",
			Help: "Current reflections by status",
		},
		[]string{"status"},
	)

	// EvaluationsTotal tracks evaluation calls by outcome.
	EvaluationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "evaluations_total",
			Help: "Total reflection evaluations",
		},
		[]string{"outcome"},
	)

	// ModerationFlagsTotal tracks moderation pre-check flags.
	ModerationFlagsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "moderation_flags_total",
			Help: "Total submissions flagged by moderation",
		},
		[]string{"surface"},
	)

	// ChatMessagesTotal tracks chat messages by role.
	ChatMessagesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "chat_messages_total",
			Help: "Total chat messages appended",
		},
		[]string{"role"},
	)

	// ChatFallbacksTotal tracks assistant fallback turns.
	ChatFallbacksTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "chat_fallbacks_total",
			Help: "Total chat turns answered with the fallback message",
		},
	)

	// LLMRequestDuration tracks LLM round-trip duration.
	LLMRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "llm_request_duration_seconds",
			Help:    "LLM completion round-trip duration",
			Buckets: []float64{1, 2, 5, 10, 20, 30, 45, 60, 90, 120},
		},
		[]string{"model", "status"},
	)

	// LLMTokensTotal tracks total LLM tokens processed.
	LLMTokensTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_tokens_total",
			Help: "Total LLM tokens processed",
		},
		[]string{"model", "direction"},
	)

	// ContextSwitchesTotal tracks UI context transitions.
	ContextSwitchesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "context_switches_total",
			Help: "Total context navigator transitions",
		},
		[]string{"target", "result"},
	)

	// PersistErrorsTotal tracks best-effort persistence failures.
	PersistErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persist_errors_total",
			Help: "Total background persistence failures",
		},
		[]string{"key"},
	)
)

// RecordRequest records metrics for an HTTP request.
func RecordRequest(method, path, status string, duration float64) {
	RequestDuration.WithLabelValues(method, path, status).Observe(duration)
	RequestsTotal.WithLabelValues(method, path, status).Inc()
}

// RecordLLMRequest records metrics for an LLM round trip.
func RecordLLMRequest(model, status string, duration float64, tokensIn, tokensOut int) {
	LLMRequestDuration.WithLabelValues(model, status).Observe(duration)
	LLMTokensTotal.WithLabelValues(model, "in").Add(float64(tokensIn))
	LLMTokensTotal.WithLabelValues(model, "out").Add(float64(tokensOut))
}
