package concurrency

import (
	"context"
	"errors"
	"sync"

	"golang.org/x/time/rate"
)

// ThrottledWorker runs a job per argument, starting at most perSecond jobs a second.
// The limiter is shared by every Run call on the same worker.
type ThrottledWorker[T any] struct {
	limiter     *rate.Limiter
	jobCallback func(ctx context.Context, arg T) error
}

// NewThrottledWorker creates a worker, perSecond <= 0 disables throttling
func NewThrottledWorker[T any](perSecond float64, jobCallback func(ctx context.Context, arg T) error) *ThrottledWorker[T] {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	return &ThrottledWorker[T]{
		limiter:     rate.NewLimiter(limit, 1),
		jobCallback: jobCallback,
	}
}

// Run starts the jobs without waiting for one to finish before starting the
// next, then blocks until all have returned. Jobs not started before ctx is
// done are skipped.
func (w *ThrottledWorker[T]) Run(ctx context.Context, jobArgs []T) error {
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		errs []error
	)

	for _, arg := range jobArgs {
		if err := w.limiter.Wait(ctx); err != nil {
			mu.Lock()
			errs = append(errs, err)
			mu.Unlock()
			break
		}

		wg.Add(1)
		go func(arg T) {
			defer wg.Done()
			if err := w.jobCallback(ctx, arg); err != nil {
				mu.Lock()
				errs = append(errs, err)
				mu.Unlock()
			}
		}(arg)
	}

	wg.Wait()
	return errors.Join(errs...)
}
