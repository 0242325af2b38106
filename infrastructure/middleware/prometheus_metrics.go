// Package middleware provides the observability backends of the evaluator.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/thefonseca/concept-guidelines/infrastructure/llm"
	"github.com/thefonseca/concept-guidelines/internal/application"
	"github.com/thefonseca/concept-guidelines/internal/ports"
)

const namespace = "guideval"

// PrometheusMetrics implements ports.MetricsCollector with Prometheus. It
// knows the metrics emitted by the evaluation driver and the LLM metrics
// middleware; anything else lands in generic per-name vectors.
type PrometheusMetrics struct {
	permutations *prometheus.CounterVec
	runAccuracy  *prometheus.GaugeVec
	distance     *prometheus.HistogramVec

	llmRequests *prometheus.CounterVec
	llmTokens   *prometheus.CounterVec
	llmLatency  *prometheus.HistogramVec

	operationLatency *prometheus.HistogramVec
	operationCounter *prometheus.CounterVec
	systemGauges     *prometheus.GaugeVec
}

var (
	runLabels = []string{"domain", "concept", "policy"}
	llmLabels = []string{"provider", "model"}
)

// NewPrometheusMetrics registers the evaluator's metrics with reg. Use a
// fresh prometheus.NewRegistry() in tests to avoid duplicate registration.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	factory := promauto.With(reg)
	return &PrometheusMetrics{
		permutations: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "permutations_total",
			Help:      "Candidate label permutations by outcome (accepted or discarded).",
		}, append(runLabels, "outcome")),
		runAccuracy: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "run_accuracy",
			Help:      "Exact-match accuracy of the most recent accepted run.",
		}, runLabels),
		distance: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "permutation_distance",
			Help:      "Definition distance of accepted permutations.",
			Buckets:   prometheus.LinearBuckets(0, 0.1, 11),
		}, runLabels),

		llmRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM completion requests by status.",
		}, append(llmLabels, "status")),
		llmTokens: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_tokens_total",
			Help:      "Tokens consumed by LLM completions.",
		}, append(llmLabels, "token_type")),
		llmLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_latency_seconds",
			Help:      "Latency of LLM completion requests.",
			Buckets:   prometheus.DefBuckets,
		}, append(llmLabels, "status")),

		operationLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "operation_duration_seconds",
			Help:      "Duration of evaluator operations such as classifier runs.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 14),
		}, []string{"operation"}),
		operationCounter: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Counters without a dedicated series.",
		}, []string{"metric"}),
		systemGauges: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "state",
			Help:      "Gauges without a dedicated series.",
		}, []string{"metric"}),
	}
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// RecordLatency observes an operation duration in seconds.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, _ map[string]string) {
	pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter adds value to the counter named by metric.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	switch metric {
	case application.MetricPermutationsAccepted:
		pm.permutations.WithLabelValues(append(values(labels, runLabels...), "accepted")...).Add(value)
	case application.MetricPermutationsDiscarded:
		pm.permutations.WithLabelValues(append(values(labels, runLabels...), "discarded")...).Add(value)
	case llm.MetricLLMRequests:
		pm.llmRequests.WithLabelValues(values(labels, "provider", "model", "status")...).Add(value)
	case llm.MetricLLMTokens:
		pm.llmTokens.WithLabelValues(values(labels, "provider", "model", "token_type")...).Add(value)
	default:
		pm.operationCounter.WithLabelValues(metric).Add(value)
	}
}

// RecordGauge sets the gauge named by metric.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, labels map[string]string) {
	switch metric {
	case application.MetricRunAccuracy:
		pm.runAccuracy.WithLabelValues(values(labels, runLabels...)...).Set(value)
	default:
		pm.systemGauges.WithLabelValues(metric).Set(value)
	}
}

// RecordHistogram observes value in the histogram named by metric.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	switch metric {
	case application.MetricPermutationDistance:
		pm.distance.WithLabelValues(values(labels, runLabels...)...).Observe(value)
	case llm.MetricLLMLatency:
		pm.llmLatency.WithLabelValues(values(labels, "provider", "model", "status")...).Observe(value)
	default:
		pm.operationLatency.WithLabelValues(metric).Observe(value)
	}
}

// values reads keys from labels in order; missing or empty values become
// "unknown".
func values(labels map[string]string, keys ...string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		v := labels[k]
		if v == "" {
			v = "unknown"
		}
		out[i] = v
	}
	return out
}
