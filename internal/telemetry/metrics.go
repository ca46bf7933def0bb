// Package telemetry holds the Prometheus collectors and OpenTelemetry tracing
// used across the portal.
package telemetry

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	fetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_fetch_attempts_total",
			Help: "Upstream fetch attempts, labeled by source and outcome.",
		},
		[]string{"source", "outcome"},
	)

	fetchRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_fetch_retries_total",
			Help: "Upstream fetch retries scheduled after a transient failure.",
		},
		[]string{"source"},
	)

	fetchFallbacksTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_fetch_fallbacks_total",
			Help: "Responses served from canned data, labeled by source and reason.",
		},
		[]string{"source", "reason"},
	)

	httpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests, labeled by method and code.",
		},
		[]string{"method", "code"},
	)

	httpRequestDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request latencies, labeled by method and route.",
			Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 30},
		},
		[]string{"method", "route"},
	)

	rateLimitDelaySeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_rate_limit_delay_seconds",
			Help:    "Time spent waiting on the per-host upstream limiter.",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
		},
		[]string{"domain"},
	)

	workflowStepsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_workflow_steps_total",
			Help: "Workflow steps executed, labeled by step type and result.",
		},
		[]string{"type", "result"},
	)

	workflowStepDurationSeconds = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "portal_workflow_step_duration_seconds",
			Help:    "Duration of workflow step calls.",
			Buckets: []float64{0.1, 0.5, 1, 5, 15, 60, 120},
		},
		[]string{"type"},
	)

	activeWorkers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "portal_active_workers",
			Help: "Number of workers currently running an execution.",
		},
	)

	recordsNormalizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_records_normalized_total",
			Help: "Records passed through the normalizer, labeled by source and result.",
		},
		[]string{"source", "result"},
	)

	recordsValidatedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "portal_records_validated_total",
			Help: "Records checked by the validator, labeled by source and result.",
		},
		[]string{"source", "result"},
	)
)

// SanitizeSite extracts the lower-cased hostname from a URL.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// ObserveFetchAttempt records one upstream attempt.
func ObserveFetchAttempt(source, outcome string) {
	fetchAttemptsTotal.WithLabelValues(source, outcome).Inc()
}

// ObserveFetchRetry records a retry scheduled for source.
func ObserveFetchRetry(source string) {
	fetchRetriesTotal.WithLabelValues(source).Inc()
}

// ObserveFallback records a degraded response.
func ObserveFallback(source, reason string) {
	fetchFallbacksTotal.WithLabelValues(source, reason).Inc()
}

// ObserveHTTPRequest records metrics for an HTTP request.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	rateLimitDelaySeconds.WithLabelValues(domain).Observe(duration.Seconds())
}

// ObserveStep records a finished workflow step.
func ObserveStep(stepType, result string, duration time.Duration) {
	workflowStepsTotal.WithLabelValues(stepType, result).Inc()
	workflowStepDurationSeconds.WithLabelValues(stepType).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active worker count.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active worker count.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveNormalized records normalization outcomes for a source.
func ObserveNormalized(source string, ok, failed int) {
	if ok > 0 {
		recordsNormalizedTotal.WithLabelValues(source, "success").Add(float64(ok))
	}
	if failed > 0 {
		recordsNormalizedTotal.WithLabelValues(source, "error").Add(float64(failed))
	}
}

// ObserveValidated records validation outcomes for a source.
func ObserveValidated(source string, valid, invalid int) {
	if valid > 0 {
		recordsValidatedTotal.WithLabelValues(source, "valid").Add(float64(valid))
	}
	if invalid > 0 {
		recordsValidatedTotal.WithLabelValues(source, "invalid").Add(float64(invalid))
	}
}
