package application

import (
	"context"
	"sync"

	"github.com/ahrav/shinise-scout/infrastructure/agents"
	"github.com/ahrav/shinise-scout/internal/domain"
	"github.com/ahrav/shinise-scout/internal/logger"
)

// DefaultConcurrency is the number of agents run at once for one shop.
const DefaultConcurrency = 3

// TaskRunner produces the result of one agent for one shop. Implementations
// never fail; errors are reported as degraded results.
type TaskRunner interface {
	RunTask(ctx context.Context, task *agents.Task, shop domain.Shop, force bool) domain.AgentResult
}

// Emission is one finished agent run.
type Emission struct {
	ShopID string
	Result domain.AgentResult
}

// Dispatcher fans a set of agents out over a bounded worker pool.
type Dispatcher struct {
	runner TaskRunner
	limit  int
	log    logger.Logger
}

// NewDispatcher creates a dispatcher running at most limit agents at once.
func NewDispatcher(runner TaskRunner, limit int, log logger.Logger) *Dispatcher {
	if limit <= 0 {
		limit = DefaultConcurrency
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Dispatcher{runner: runner, limit: limit, log: log}
}

// Dispatch runs tasks for shop and emits results in completion order. The
// channel closes once every task has emitted.
func (d *Dispatcher) Dispatch(ctx context.Context, tasks []*agents.Task, shop domain.Shop, force bool) <-chan Emission {
	d.log.Debug("dispatching agents", map[string]any{
		"shop":  shop.ID,
		"tasks": len(tasks),
		"limit": d.limit,
	})

	done := RunPool(ctx, d.limit, tasks, func(ctx context.Context, t *agents.Task) domain.AgentResult {
		return d.runner.RunTask(ctx, t, shop, force)
	})

	out := make(chan Emission, len(tasks))
	go func() {
		defer close(out)
		for c := range done {
			out <- Emission{ShopID: shop.ID, Result: c.Result}
		}
	}()
	return out
}

// Board holds the latest result per shop and agent plus the set of agents
// still running. It is owned by a single consumer; the mutex only guards
// concurrent readers such as a status endpoint.
type Board struct {
	mu      sync.RWMutex
	results map[string]map[domain.TaskID]domain.AgentResult
	pending map[string]map[domain.TaskID]struct{}
}

// NewBoard returns an empty board.
func NewBoard() *Board {
	return &Board{
		results: make(map[string]map[domain.TaskID]domain.AgentResult),
		pending: make(map[string]map[domain.TaskID]struct{}),
	}
}

// MarkPending records that tasks were dispatched for shopID.
func (b *Board) MarkPending(shopID string, tasks []*agents.Task) {
	b.mu.Lock()
	defer b.mu.Unlock()
	set, ok := b.pending[shopID]
	if !ok {
		set = make(map[domain.TaskID]struct{}, len(tasks))
		b.pending[shopID] = set
	}
	for _, t := range tasks {
		set[t.ID()] = struct{}{}
	}
}

// Apply stores one emission, replacing any earlier result for the same
// shop and agent, and clears its pending flag.
func (b *Board) Apply(e Emission) {
	b.mu.Lock()
	defer b.mu.Unlock()
	byTask, ok := b.results[e.ShopID]
	if !ok {
		byTask = make(map[domain.TaskID]domain.AgentResult)
		b.results[e.ShopID] = byTask
	}
	byTask[e.Result.AgentType] = e.Result
	if set, ok := b.pending[e.ShopID]; ok {
		delete(set, e.Result.AgentType)
		if len(set) == 0 {
			delete(b.pending, e.ShopID)
		}
	}
}

// Consume applies emissions serially until the channel closes, calling
// onApply after each one when it is non-nil.
func (b *Board) Consume(emissions <-chan Emission, onApply func(Emission)) {
	for e := range emissions {
		b.Apply(e)
		if onApply != nil {
			onApply(e)
		}
	}
}

// Result returns the stored result for a shop and agent.
func (b *Board) Result(shopID string, id domain.TaskID) (domain.AgentResult, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	r, ok := b.results[shopID][id]
	return r, ok
}

// Results returns a copy of every stored result for shopID.
func (b *Board) Results(shopID string) map[domain.TaskID]domain.AgentResult {
	b.mu.RLock()
	defer b.mu.RUnlock()
	out := make(map[domain.TaskID]domain.AgentResult, len(b.results[shopID]))
	for k, v := range b.results[shopID] {
		out[k] = v
	}
	return out
}

// Pending reports whether id is still running for shopID.
func (b *Board) Pending(shopID string, id domain.TaskID) bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	_, ok := b.pending[shopID][id]
	return ok
}

// PendingCount returns how many agents are still running for shopID.
func (b *Board) PendingCount(shopID string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.pending[shopID])
}
