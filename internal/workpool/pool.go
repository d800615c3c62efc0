// Package workpool provides the process-wide bounded concurrency limiter used
// to fan out external lookups. One Pool is constructed at startup and shared
// by every request; requests contend for the same width.
package workpool

import (
	"context"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"
)

const (
	// DefaultWidth is the number of tasks allowed to run at once.
	DefaultWidth = 20

	// DefaultTaskTimeout bounds each individual task.
	DefaultTaskTimeout = 5 * time.Second
)

// Config holds pool settings.
type Config struct {
	// Width is the maximum number of concurrently running tasks.
	// Default: 20
	Width int

	// TaskTimeout is applied to the context of every task.
	// Default: 5 seconds
	TaskTimeout time.Duration
}

// Pool limits the number of concurrently running tasks.
type Pool struct {
	sem         *semaphore.Weighted
	width       int
	taskTimeout time.Duration
}

// New creates a pool.
func New(cfg Config) *Pool {
	if cfg.Width <= 0 {
		cfg.Width = DefaultWidth
	}
	if cfg.TaskTimeout <= 0 {
		cfg.TaskTimeout = DefaultTaskTimeout
	}
	return &Pool{
		sem:         semaphore.NewWeighted(int64(cfg.Width)),
		width:       cfg.Width,
		taskTimeout: cfg.TaskTimeout,
	}
}

// Width returns the configured width.
func (p *Pool) Width() int {
	return p.width
}

// TaskTimeout returns the per-task timeout.
func (p *Pool) TaskTimeout() time.Duration {
	return p.taskTimeout
}

// Result is the outcome of a single task.
type Result[R any] struct {
	Value R
	Err   error
}

// OK reports whether the task succeeded.
func (r Result[R]) OK() bool {
	return r.Err == nil
}

// Map runs fn for every item on the pool and blocks until all tasks have
// finished. Results are aligned with items. A task that cannot acquire a slot
// before ctx is done reports ctx.Err(). Each task runs under its own timeout.
//
// Tasks must not call Map on the same pool themselves.
func Map[T, R any](ctx context.Context, p *Pool, items []T, fn func(context.Context, T) (R, error)) []Result[R] {
	results := make([]Result[R], len(items))
	if len(items) == 0 {
		return results
	}

	var wg sync.WaitGroup
	for i, item := range items {
		if err := p.sem.Acquire(ctx, 1); err != nil {
			// Everything not yet started is reported as cancelled.
			for j := i; j < len(items); j++ {
				results[j].Err = err
			}
			break
		}

		wg.Add(1)
		go func(i int, item T) {
			defer wg.Done()
			defer p.sem.Release(1)

			taskCtx, cancel := context.WithTimeout(ctx, p.taskTimeout)
			defer cancel()

			v, err := fn(taskCtx, item)
			results[i] = Result[R]{Value: v, Err: err}
		}(i, item)
	}

	wg.Wait()
	return results
}

// Successes returns the values of all successful results in input order.
func Successes[R any](results []Result[R]) []R {
	out := make([]R, 0, len(results))
	for _, r := range results {
		if r.Err == nil {
			out = append(out, r.Value)
		}
	}
	return out
}
