package application

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"time"

	"github.com/ahrav/shinise-scout/infrastructure/agents"
	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/logger"
	"github.com/ahrav/shinise-scout/internal/ports"
)

const (
	// DefaultMaxRetries is the number of retries after the first attempt.
	DefaultMaxRetries = 5

	// DefaultBaseDelay is the wait before the first retry.
	DefaultBaseDelay = 2 * time.Second

	// DefaultJitter bounds the random delay added to every wait.
	DefaultJitter = time.Second
)

// Degraded result details.
const (
	detailNoClient = "APIキーが設定されていません"
	detailBusy1    = "現在アクセスが集中しており、AIが応答できませんでした。"
	detailBusy2    = "少し時間をおいて再度お試しください。"
	detailFailedF  = "エラーが発生しました: %s"
)

// RetryConfig controls how rate-limited calls are retried. Only
// rate-limit failures are retried; every other error ends the call.
type RetryConfig struct {
	// MaxRetries is the number of retries after the first attempt.
	MaxRetries int

	// BaseDelay is the wait before retry 1; retry n waits BaseDelay·2^(n-1).
	BaseDelay time.Duration

	// Jitter is the exclusive upper bound of the uniform random delay added
	// to every wait.
	Jitter time.Duration
}

// DefaultRetryConfig returns 5 retries starting at 2s with up to 1s jitter.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		Jitter:     DefaultJitter,
	}
}

// Executor runs catalog tasks against the model, retrying rate-limited
// calls with exponential backoff and checking answers against the task's
// shape.
type Executor struct {
	model   ports.ModelClient
	retry   RetryConfig
	log     logger.Logger
	metrics ports.MetricsCollector

	sleep  func(ctx context.Context, d time.Duration) error
	jitter func(limit time.Duration) time.Duration
	now    func() time.Time
}

// NewExecutor creates an executor. log and metrics may be nil.
func NewExecutor(model ports.ModelClient, retry RetryConfig, log logger.Logger, metrics ports.MetricsCollector) *Executor {
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	if metrics == nil {
		metrics = ports.NopMetrics{}
	}
	if retry.MaxRetries < 0 {
		retry.MaxRetries = 0
	}
	return &Executor{
		model:   model,
		retry:   retry,
		log:     log,
		metrics: metrics,
		sleep:   sleepContext,
		jitter:  uniformJitter,
		now:     time.Now,
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func uniformJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	return rand.N(limit)
}

// backoff returns the wait before the given retry, counted from 1.
func (e *Executor) backoff(retry int) time.Duration {
	return e.retry.BaseDelay*time.Duration(1<<(retry-1)) + e.jitter(e.retry.Jitter)
}

// Complete renders task for in, calls the model and validates the answer.
// Rate-limited calls are retried; the last RateLimitError is returned once
// retries run out.
func (e *Executor) Complete(ctx context.Context, task *agents.Task, in agents.PromptInput) (json.RawMessage, error) {
	if in.Now.IsZero() {
		in.Now = e.now()
	}
	prompt, err := task.Prompt(in)
	if err != nil {
		e.recordOutcome(task, "failed")
		return nil, err
	}

	opts := ports.CompleteOptions{Grounding: task.Grounded(), Label: string(task.ID())}
	labels := map[string]string{"task": string(task.ID())}
	start := time.Now()
	defer func() { e.metrics.RecordLatency("executor_complete", time.Since(start), labels) }()

	for attempt := 0; ; attempt++ {
		e.metrics.RecordCounter("executor_attempts_total", 1, labels)

		raw, err := e.model.Complete(ctx, prompt, opts)
		if err == nil {
			if verr := task.Shape().Validate(raw); verr != nil {
				e.recordOutcome(task, "failed")
				return nil, fmt.Errorf("task %s: %w", task.ID(), verr)
			}
			e.recordOutcome(task, "success")
			return raw, nil
		}

		if !errors.Is(err, ports.ErrRateLimited) || attempt >= e.retry.MaxRetries {
			e.recordOutcome(task, outcomeOf(err))
			return nil, err
		}

		delay := e.backoff(attempt + 1)
		e.metrics.RecordCounter("executor_retries_total", 1, labels)
		e.log.Warn("rate limited, retrying", map[string]any{
			"task":        task.ID(),
			"shop":        in.Shop.Name,
			"retry":       attempt + 1,
			"max_retries": e.retry.MaxRetries,
			"delay_ms":    delay.Milliseconds(),
		})
		if serr := e.sleep(ctx, delay); serr != nil {
			e.recordOutcome(task, "failed")
			return nil, fmt.Errorf("waiting to retry %s: %w", task.ID(), serr)
		}
	}
}

func isNoClient(err error) bool {
	var ce *ports.ConfigError
	return errors.Is(err, ports.ErrModelDisabled) || errors.As(err, &ce)
}

func outcomeOf(err error) string {
	switch {
	case isNoClient(err):
		return "no_client"
	case errors.Is(err, ports.ErrRateLimited):
		return "busy"
	default:
		return "failed"
	}
}

func (e *Executor) recordOutcome(task *agents.Task, outcome string) {
	e.metrics.RecordCounter("executor_outcomes_total", 1, map[string]string{
		"task":    string(task.ID()),
		"outcome": outcome,
	})
}

// agentAnswer is the JSON every analysis agent returns.
type agentAnswer struct {
	Summary   *string  `json:"summary"`
	Details   []string `json:"details"`
	Score     *float64 `json:"score"`
	RiskLevel *string  `json:"riskLevel"`
}

// Run executes an analysis agent for shop. It never fails: configuration,
// rate-limit and other errors become degraded results.
func (e *Executor) Run(ctx context.Context, task *agents.Task, shop domain.Shop) domain.AgentResult {
	raw, err := e.Complete(ctx, task, agents.PromptInput{Shop: shop})
	if err != nil {
		e.log.Error("agent failed", map[string]any{
			"task":  task.ID(),
			"shop":  shop.ID,
			"error": err.Error(),
		})
		return DegradedResult(task, err)
	}

	var ans agentAnswer
	if err := json.Unmarshal(raw, &ans); err != nil {
		return DegradedResult(task, ports.NewParseError(string(raw), err))
	}

	result := newResult(task)
	result.Summary = domain.SummaryEmpty
	if ans.Summary != nil && *ans.Summary != "" {
		result.Summary = *ans.Summary
	}
	result.Details = []string{}
	if ans.Details != nil {
		result.Details = ans.Details
	}
	if ans.Score != nil {
		s := domain.ScoreNotApplicable
		if *ans.Score >= 0 {
			s = clampScore(*ans.Score)
		}
		result.Score = &s
	}
	if ans.RiskLevel != nil && domain.RiskLevel(*ans.RiskLevel).Valid() {
		result.RiskLevel = domain.RiskLevel(*ans.RiskLevel)
	}
	return result
}

// clampScore rounds v into 0..100.
func clampScore(v float64) int {
	return int(math.Round(min(max(v, 0), 100)))
}

func newResult(task *agents.Task) domain.AgentResult {
	meta := task.Meta()
	return domain.AgentResult{AgentType: task.ID(), AgentName: meta.Name, Icon: meta.Icon}
}

// DegradedResult converts a task failure into the result clients display.
func DegradedResult(task *agents.Task, err error) domain.AgentResult {
	result := newResult(task)
	switch {
	case isNoClient(err):
		result.Summary = domain.SummaryNoClient
		result.Details = []string{detailNoClient}
		result.RiskLevel = domain.RiskDanger
	case errors.Is(err, ports.ErrRateLimited):
		result.Summary = domain.SummaryBusy
		result.Details = []string{detailBusy1, detailBusy2}
		result.RiskLevel = domain.RiskCaution
	default:
		result.Summary = domain.SummaryFailed
		result.Details = []string{fmt.Sprintf(detailFailedF, err.Error())}
		result.RiskLevel = domain.RiskCaution
	}
	return result
}
