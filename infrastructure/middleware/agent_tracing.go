package middleware

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/ahrav/shinise-scout/infrastructure/agents"
	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/ports"
)

// TaskRunner matches the dispatcher's runner contract.
type TaskRunner interface {
	RunTask(ctx context.Context, task *agents.Task, shop domain.Shop, force bool) domain.AgentResult
}

// TracedRunner wraps a TaskRunner in an "agent.run" span per call and
// counts runs by outcome. Degraded results mark the span as failed and add
// a "degraded" event carrying the summary shown to the user.
type TracedRunner struct {
	next    TaskRunner
	tracer  trace.Tracer
	metrics ports.MetricsCollector
}

// NewTracedRunner uses the global tracer provider. metrics may be nil.
func NewTracedRunner(next TaskRunner, metrics ports.MetricsCollector) *TracedRunner {
	return NewTracedRunnerWithTracer(next, otel.Tracer("github.com/ahrav/shinise-scout/agents"), metrics)
}

// NewTracedRunnerWithTracer is NewTracedRunner with an explicit tracer.
func NewTracedRunnerWithTracer(next TaskRunner, tracer trace.Tracer, metrics ports.MetricsCollector) *TracedRunner {
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	return &TracedRunner{next: next, tracer: tracer, metrics: metrics}
}

// RunTask implements TaskRunner.
func (r *TracedRunner) RunTask(ctx context.Context, task *agents.Task, shop domain.Shop, force bool) domain.AgentResult {
	ctx, span := r.tracer.Start(ctx, "agent.run", trace.WithAttributes(
		attribute.String("agent.type", string(task.ID())),
		attribute.String("shop.id", shop.ID),
		attribute.String("shop.name", shop.Name),
		attribute.Bool("force", force),
	))
	defer span.End()

	start := time.Now()
	result := r.next.RunTask(ctx, task, shop, force)
	labels := map[string]string{"task": string(task.ID())}
	r.metrics.RecordLatency("agent_run", time.Since(start), labels)

	outcome := "ok"
	if result.IsDegraded() {
		outcome = "degraded"
		span.AddEvent("degraded", trace.WithAttributes(
			attribute.String("summary", result.Summary),
			attribute.String("risk_level", string(result.RiskLevel)),
		))
		span.SetStatus(codes.Error, result.Summary)
	}
	if result.Score != nil {
		span.SetAttributes(attribute.Int("agent.score", *result.Score))
	}
	r.metrics.RecordCounter("agent_runs_total", 1, map[string]string{"task": string(task.ID()), "outcome": outcome})
	return result
}
