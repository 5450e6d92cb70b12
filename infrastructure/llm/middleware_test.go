package llm

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"
	"golang.org/x/time/rate"
)

func TestRateLimitMiddleware_DelaysRequestsExceedingRate(t *testing.T) {
	// Given a limiter allowing 10 requests per second with burst 1
	mock := NewMockCoreLLM()
	wrapped := RateLimitMiddleware(rate.Limit(10), 1)(mock)
	ctx := context.Background()

	// When sending two requests back to back
	_, err := wrapped.DoRequest(ctx, "first", nil)
	require.NoError(t, err)
	start := time.Now()
	_, err = wrapped.DoRequest(ctx, "second", nil)
	require.NoError(t, err)

	// Then the second waits for a token
	assert.GreaterOrEqual(t, time.Since(start), 80*time.Millisecond)
	assert.Equal(t, 2, mock.GetCallCount())
}

func TestRateLimitMiddleware_RespectsContextCancellation(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := RateLimitMiddleware(rate.Limit(0.1), 1)(mock)

	_, err := wrapped.DoRequest(context.Background(), "drains the bucket", nil)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = wrapped.DoRequest(ctx, "blocked", nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "rate limit wait")
	assert.Equal(t, 1, mock.GetCallCount(), "blocked request never reaches the provider")
}

func TestTimeoutMiddleware(t *testing.T) {
	tests := []struct {
		name    string
		delay   time.Duration
		timeout time.Duration
		wantErr error
	}{
		{name: "completes within timeout", delay: 0, timeout: time.Second},
		{name: "exceeds timeout", delay: 200 * time.Millisecond, timeout: 20 * time.Millisecond, wantErr: context.DeadlineExceeded},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mock := NewMockCoreLLM()
			mock.ResponseDelay = tt.delay
			wrapped := TimeoutMiddleware(tt.timeout)(mock)

			resp, err := wrapped.DoRequest(context.Background(), "prompt", nil)
			if tt.wantErr != nil {
				require.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotEmpty(t, resp.Text)
		})
	}
}

func TestMetricsMiddleware_RecordsOutcomes(t *testing.T) {
	t.Run("success records tokens and grounding queries", func(t *testing.T) {
		mock := NewMockCoreLLM()
		mock.Response = Response{Text: "{}", TokensIn: 12, TokensOut: 30, SearchQueries: []string{"a", "b"}}
		metrics := newRecordingMetrics()
		wrapped := MetricsMiddleware("google", metrics)(mock)

		_, err := wrapped.DoRequest(context.Background(), "prompt", map[string]any{"label": "smoking"})

		require.NoError(t, err)
		assert.Equal(t, 1.0, metrics.counters["llm_requests_total"])
		assert.Equal(t, 42.0, metrics.counters["llm_tokens_total"])
		assert.Equal(t, 2.0, metrics.counters["llm_grounding_queries_total"])
		require.Len(t, metrics.histograms["llm_latency_seconds"], 1)
		labels := metrics.labels["llm_requests_total"][0]
		assert.Equal(t, "smoking", labels["task"])
		assert.Equal(t, "success", labels["status"])
	})

	t.Run("rate limit failure is labeled", func(t *testing.T) {
		mock := NewMockCoreLLM()
		mock.Error = NewProviderError("google", ErrorTypeRateLimit, 429, "busy", nil)
		metrics := newRecordingMetrics()
		wrapped := MetricsMiddleware("google", metrics)(mock)

		_, err := wrapped.DoRequest(context.Background(), "prompt", nil)

		require.Error(t, err)
		assert.Equal(t, "rate_limited", metrics.labels["llm_requests_total"][0]["status"])
		assert.Equal(t, "unlabeled", metrics.labels["llm_requests_total"][0]["task"])
		assert.NotContains(t, metrics.counters, "llm_tokens_total")
	})

	t.Run("nil collector is tolerated", func(t *testing.T) {
		wrapped := MetricsMiddleware("google", nil)(NewMockCoreLLM())
		_, err := wrapped.DoRequest(context.Background(), "prompt", nil)
		assert.NoError(t, err)
	})
}

type recordingSpan struct {
	noop.Span
	errs   []error
	status codes.Code
}

func (s *recordingSpan) RecordError(err error, _ ...trace.EventOption) { s.errs = append(s.errs, err) }
func (s *recordingSpan) SetStatus(code codes.Code, _ string)           { s.status = code }

type recordingTracer struct {
	noop.Tracer
	names []string
	span  *recordingSpan
}

func (t *recordingTracer) Start(ctx context.Context, name string, _ ...trace.SpanStartOption) (context.Context, trace.Span) {
	t.names = append(t.names, name)
	t.span = &recordingSpan{}
	return ctx, t.span
}

func TestTracingMiddleware_RecordsErrors(t *testing.T) {
	// Given a failing provider and a recording tracer
	mock := NewMockCoreLLM()
	mock.Error = errors.New("provider down")
	tracer := &recordingTracer{}
	wrapped := TracingMiddlewareWithTracer(tracer)(mock)

	// When the request fails
	_, err := wrapped.DoRequest(context.Background(), "prompt", map[string]any{"label": "score"})

	// Then the span carries the error
	require.Error(t, err)
	assert.Equal(t, []string{"llm.request"}, tracer.names)
	require.Len(t, tracer.span.errs, 1)
	assert.Equal(t, codes.Error, tracer.span.status)
}

func TestTracingMiddleware_PassesThrough(t *testing.T) {
	mock := NewMockCoreLLM()
	wrapped := TracingMiddleware("shinise-test")(mock)

	resp, err := wrapped.DoRequest(context.Background(), "prompt", nil)

	require.NoError(t, err)
	assert.Equal(t, mock.Response.Text, resp.Text)
	assert.Equal(t, "test-model", wrapped.GetModel())
}
