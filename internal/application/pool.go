package application

import (
	"context"
	"sync"
)

// Completion pairs a finished job with its result.
type Completion[J, R any] struct {
	// Index is the job's position in the submitted slice.
	Index  int
	Job    J
	Result R
}

// RunPool runs fn over jobs with at most limit in flight and emits each
// completion as soon as it finishes. Workers pull from one shared queue, so
// a slow job never holds back the ones behind it. Every job is emitted
// exactly once and the channel closes after the last one.
//
// fn is responsible for honoring ctx; RunPool itself never abandons a job.
func RunPool[J, R any](ctx context.Context, limit int, jobs []J, fn func(context.Context, J) R) <-chan Completion[J, R] {
	out := make(chan Completion[J, R], len(jobs))
	if len(jobs) == 0 {
		close(out)
		return out
	}
	if limit <= 0 {
		limit = 1
	}
	workers := min(limit, len(jobs))

	queue := make(chan int, len(jobs))
	for i := range jobs {
		queue <- i
	}
	close(queue)

	var wg sync.WaitGroup
	wg.Add(workers)
	for range workers {
		go func() {
			defer wg.Done()
			for i := range queue {
				out <- Completion[J, R]{Index: i, Job: jobs[i], Result: fn(ctx, jobs[i])}
			}
		}()
	}

	go func() {
		wg.Wait()
		close(out)
	}()
	return out
}
