// Package middleware provides the cross-cutting pieces wired around the
// discovery service: the Prometheus metrics collector and the tracing
// wrapper for agent runs.
package middleware

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/ahrav/shinise-scout/internal/ports"
)

const namespace = "shinise"

// unknownLabel replaces missing or empty label values.
const unknownLabel = "unknown"

// series describes one known metric and the label keys it is exported with.
type series struct {
	help   string
	labels []string
}

var (
	llmLabels = []string{"provider", "model", "task", "status"}

	counterSeries = map[string]series{
		"llm_requests_total":          {"Model requests by provider, task and status.", llmLabels},
		"llm_tokens_total":            {"Tokens consumed by model requests.", append(append([]string{}, llmLabels...), "token_type")},
		"llm_grounding_queries_total": {"Web search queries issued by grounded requests.", llmLabels},
		"executor_attempts_total":     {"Model calls made by the executor, retries included.", []string{"task"}},
		"executor_retries_total":      {"Rate-limited calls retried by the executor.", []string{"task"}},
		"executor_outcomes_total":     {"Final executor outcomes per task.", []string{"task", "outcome"}},
		"agent_runs_total":            {"Agent runs by outcome.", []string{"task", "outcome"}},
		"cache_hits_total":            {"Fresh cache reads.", []string{"collection"}},
		"cache_misses_total":          {"Cache reads that found nothing.", []string{"collection"}},
		"cache_stale_total":           {"Cache reads that found an expired document.", []string{"collection"}},
		"cache_writes_total":          {"Cache writes.", []string{"collection"}},
		"cache_errors_total":          {"Swallowed cache store failures.", []string{"collection", "operation"}},
		"pipeline_searches_total":     {"Completed searches by discovery source.", []string{"source"}},
	}

	histogramSeries = map[string]series{
		"llm_latency_seconds": {"Model request latency.", llmLabels},
		"executor_complete":   {"Executor call latency including retries.", []string{"task"}},
		"pipeline_stage":      {"Latency of each discovery pipeline stage.", []string{"stage"}},
		"places_request":      {"Places and geocoding request latency.", []string{"operation", "status"}},
		"agent_run":           {"Agent run latency including cache reads.", []string{"task"}},
		"http_request":        {"HTTP handler latency.", []string{"route", "status"}},
	}
)

// PrometheusMetrics implements ports.MetricsCollector on Prometheus. Known
// metrics get their own vectors and label sets; anything else lands in the
// generic operation series.
type PrometheusMetrics struct {
	counters   map[string]*prometheus.CounterVec
	histograms map[string]*prometheus.HistogramVec

	operationCounter *prometheus.CounterVec
	operationLatency *prometheus.HistogramVec
	gauges           *prometheus.GaugeVec
}

var _ ports.MetricsCollector = (*PrometheusMetrics)(nil)

// NewPrometheusMetrics registers every series on reg. A nil reg uses the
// default registerer.
func NewPrometheusMetrics(reg prometheus.Registerer) *PrometheusMetrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	pm := &PrometheusMetrics{
		counters:   make(map[string]*prometheus.CounterVec, len(counterSeries)),
		histograms: make(map[string]*prometheus.HistogramVec, len(histogramSeries)),
	}
	for name, s := range counterSeries {
		pm.counters[name] = factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      name,
			Help:      s.help,
		}, s.labels)
	}
	for name, s := range histogramSeries {
		metricName := name
		if name != "llm_latency_seconds" {
			metricName = name + "_duration_seconds"
		}
		pm.histograms[name] = factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      metricName,
			Help:      s.help,
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12),
		}, s.labels)
	}

	pm.operationCounter = factory.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "operations_total",
		Help:      "Counters without a dedicated series.",
	}, []string{"metric"})
	pm.operationLatency = factory.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "operation_duration_seconds",
		Help:      "Latencies without a dedicated series.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"operation"})
	pm.gauges = factory.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "state",
		Help:      "Current values reported as gauges.",
	}, []string{"metric"})
	return pm
}

// labelValues picks the values for keys out of labels.
func labelValues(keys []string, labels map[string]string) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		v := labels[k]
		if v == "" {
			v = unknownLabel
		}
		out[i] = v
	}
	return out
}

// RecordLatency observes duration in the operation's histogram.
func (pm *PrometheusMetrics) RecordLatency(operation string, duration time.Duration, labels map[string]string) {
	if h, ok := pm.histograms[operation]; ok {
		h.WithLabelValues(labelValues(histogramSeries[operation].labels, labels)...).Observe(duration.Seconds())
		return
	}
	pm.operationLatency.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordCounter adds value to the metric's counter.
func (pm *PrometheusMetrics) RecordCounter(metric string, value float64, labels map[string]string) {
	if value < 0 {
		return
	}
	if c, ok := pm.counters[metric]; ok {
		c.WithLabelValues(labelValues(counterSeries[metric].labels, labels)...).Add(value)
		return
	}
	pm.operationCounter.WithLabelValues(metric).Add(value)
}

// RecordGauge sets the metric's gauge.
func (pm *PrometheusMetrics) RecordGauge(metric string, value float64, _ map[string]string) {
	pm.gauges.WithLabelValues(metric).Set(value)
}

// RecordHistogram observes value in the metric's histogram.
func (pm *PrometheusMetrics) RecordHistogram(metric string, value float64, labels map[string]string) {
	if h, ok := pm.histograms[metric]; ok {
		h.WithLabelValues(labelValues(histogramSeries[metric].labels, labels)...).Observe(value)
		return
	}
	pm.operationLatency.WithLabelValues(metric).Observe(value)
}
