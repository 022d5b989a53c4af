// ABOUTME: Per-key coalescing job queue: one job in flight per key, bursts collapse into one re-run.
// ABOUTME: Used by the reconciler so a storm of kicks for an instance runs at most twice.

package coalesce

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
)

// Job is one unit of work for a key.
type Job[T any] func(ctx context.Context) (T, error)

type slot[T any] struct {
	job    Job[T]
	future *Future[T]
}

type entry[T any] struct {
	current *slot[T]
	pending *slot[T]
	running bool
}

// Queue serialises jobs per key. Different keys run independently.
type Queue[T any] struct {
	mu      sync.Mutex
	entries map[string]*entry[T]
	wg      sync.WaitGroup

	ctx    context.Context
	logger *slog.Logger
}

// New creates a queue whose jobs run with ctx.
func New[T any](ctx context.Context, logger *slog.Logger) *Queue[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Queue[T]{
		entries: make(map[string]*entry[T]),
		ctx:     ctx,
		logger:  logger,
	}
}

// Enqueue schedules job for key and returns a future for its result.
//
// With nothing queued for key the job runs next. While a job runs, the
// first new job fills the pending slot; any further job before that
// pending one starts is discarded and its caller receives the pending
// job's future, so callers should enqueue interchangeable jobs per key.
func (q *Queue[T]) Enqueue(key string, job Job[T]) *Future[T] {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[key]
	if !ok {
		s := &slot[T]{job: job, future: newFuture[T]()}
		e = &entry[T]{current: s, running: true}
		q.entries[key] = e
		q.wg.Add(1)
		go q.run(key, e)
		return s.future
	}

	if e.pending == nil {
		e.pending = &slot[T]{job: job, future: newFuture[T]()}
		return e.pending.future
	}

	q.logger.Debug("job coalesced into pending run", "key", key)
	return e.pending.future
}

// run drains the entry for key: the current job, then the pending one if
// present, until nothing is left.
func (q *Queue[T]) run(key string, e *entry[T]) {
	defer q.wg.Done()

	for {
		q.mu.Lock()
		s := e.current
		q.mu.Unlock()

		value, err := q.execute(s.job)
		if err != nil {
			q.logger.Warn("queued job failed", "key", key, "error", err)
		}
		s.future.resolve(value, err)

		q.mu.Lock()
		if e.pending == nil {
			e.current = nil
			e.running = false
			delete(q.entries, key)
			q.mu.Unlock()
			return
		}
		e.current = e.pending
		e.pending = nil
		q.mu.Unlock()
	}
}

func (q *Queue[T]) execute(job Job[T]) (value T, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("job panicked: %v", p)
		}
	}()
	return job(q.ctx)
}

// Keys returns the keys that currently have a job running or pending.
func (q *Queue[T]) Keys() []string {
	q.mu.Lock()
	defer q.mu.Unlock()

	keys := make([]string, 0, len(q.entries))
	for k := range q.entries {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Wait blocks until every runner has drained.
func (q *Queue[T]) Wait() {
	q.wg.Wait()
}

// Busy reports whether a job for key is running.
func (q *Queue[T]) Busy(key string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	e, ok := q.entries[key]
	return ok && e.running
}
