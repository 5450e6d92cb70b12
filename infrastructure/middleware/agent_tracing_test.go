package middleware

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/shinise-scout/infrastructure/agents"
	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/testutils"
)

// stubRunner returns a fixed result.
type stubRunner struct {
	result domain.AgentResult
	calls  int
}

func (s *stubRunner) RunTask(context.Context, *agents.Task, domain.Shop, bool) domain.AgentResult {
	s.calls++
	return s.result
}

func TestTracedRunner(t *testing.T) {
	tests := []struct {
		name    string
		result  domain.AgentResult
		outcome string
	}{
		{name: "ok", result: domain.AgentResult{AgentType: domain.TaskMenu, Summary: "天丼"}, outcome: "ok"},
		{name: "degraded", result: domain.AgentResult{AgentType: domain.TaskMenu, Summary: domain.SummaryBusy}, outcome: "degraded"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			next := &stubRunner{result: tt.result}
			metrics := testutils.NewRecordingMetrics()
			r := NewTracedRunnerWithTracer(next, noop.NewTracerProvider().Tracer("test"), metrics)

			got := r.RunTask(context.Background(), agents.Menu, domain.Shop{ID: "p1"}, false)

			assert.Equal(t, tt.result, got)
			assert.Equal(t, 1, next.calls)
			assert.Equal(t, 1, metrics.CounterWith("agent_runs_total", map[string]string{"outcome": tt.outcome}))
			assert.Len(t, metrics.Observations("agent_run"), 1)
		})
	}
}
