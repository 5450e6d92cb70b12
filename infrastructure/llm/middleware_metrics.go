package llm

import (
	"context"
	"errors"
	"time"

	"github.com/ahrav/shinise-scout/internal/ports"
)

// metricsLLM records latency, request status and token usage per call.
type metricsLLM struct {
	next      CoreLLM
	provider  string
	collector ports.MetricsCollector
}

// MetricsMiddleware reports every request to collector.
func MetricsMiddleware(provider string, collector ports.MetricsCollector) Middleware {
	if collector == nil {
		collector = ports.NopMetrics{}
	}
	return func(next CoreLLM) CoreLLM {
		return &metricsLLM{next: next, provider: provider, collector: collector}
	}
}

func (m *metricsLLM) DoRequest(ctx context.Context, prompt string, opts map[string]any) (Response, error) {
	start := time.Now()
	resp, err := m.next.DoRequest(ctx, prompt, opts)

	labels := map[string]string{
		"provider": m.provider,
		"model":    m.next.GetModel(),
		"task":     ExtractOptionalString(opts, "label", "unlabeled", IsNonEmptyString),
		"status":   requestStatus(err),
	}

	m.collector.RecordHistogram("llm_latency_seconds", time.Since(start).Seconds(), labels)
	m.collector.RecordCounter("llm_requests_total", 1, labels)
	if err == nil {
		m.collector.RecordCounter("llm_tokens_total", float64(resp.TokensIn), withLabel(labels, "token_type", "input"))
		m.collector.RecordCounter("llm_tokens_total", float64(resp.TokensOut), withLabel(labels, "token_type", "output"))
		if len(resp.SearchQueries) > 0 {
			m.collector.RecordCounter("llm_grounding_queries_total", float64(len(resp.SearchQueries)), labels)
		}
	}

	return resp, err
}

func requestStatus(err error) string {
	if err == nil {
		return "success"
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	var pe *ProviderError
	if errors.As(err, &pe) && pe.Type == ErrorTypeRateLimit {
		return "rate_limited"
	}
	return "error"
}

func withLabel(labels map[string]string, key, value string) map[string]string {
	out := make(map[string]string, len(labels)+1)
	for k, v := range labels {
		out[k] = v
	}
	out[key] = value
	return out
}

func (m *metricsLLM) GetModel() string      { return m.next.GetModel() }
func (m *metricsLLM) SetModel(model string) { m.next.SetModel(model) }
