package application

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/ahrav/shinise-scout/infrastructure/cache"
	"github.com/ahrav/shinise-scout/internal/logger"
	"github.com/ahrav/shinise-scout/internal/testutils"
)

// sleepRecorder replaces the executor's backoff wait.
type sleepRecorder struct {
	mu     sync.Mutex
	delays []time.Duration
}

func (s *sleepRecorder) sleep(ctx context.Context, d time.Duration) error {
	s.mu.Lock()
	s.delays = append(s.delays, d)
	s.mu.Unlock()
	return ctx.Err()
}

func (s *sleepRecorder) recorded() []time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]time.Duration(nil), s.delays...)
}

// newTestExecutor returns an executor that never really sleeps and adds no
// jitter.
func newTestExecutor(t *testing.T, model *testutils.MockModelClient) (*Executor, *sleepRecorder, *testutils.RecordingMetrics) {
	t.Helper()
	metrics := testutils.NewRecordingMetrics()
	exec := NewExecutor(model, DefaultRetryConfig(), logger.NewTestLogger(t), metrics)
	rec := &sleepRecorder{}
	exec.sleep = rec.sleep
	exec.jitter = func(time.Duration) time.Duration { return 0 }
	exec.now = func() time.Time { return time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC) }
	return exec, rec, metrics
}

// newTestCache returns a cache layer over a fresh in-memory store.
func newTestCache(t *testing.T) (*cache.Layer, *cache.MemoryStore) {
	t.Helper()
	store := cache.NewMemoryStore()
	return cache.NewLayer(store, cache.DefaultTTL, logger.NewTestLogger(t), nil), store
}
