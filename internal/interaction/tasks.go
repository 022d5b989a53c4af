// ABOUTME: Interaction task table: start/await/cancel/status over background work.
// ABOUTME: Every face kind routes its interaction operations through one Tasks value.

package interaction

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
)

// ErrUnknown indicates the interaction id is not live: never issued,
// already consumed by Await, or discarded.
var ErrUnknown = errors.New("unknown interaction id")

// ErrDuplicate indicates a caller-supplied interaction id is already live.
var ErrDuplicate = errors.New("duplicate interaction id")

// ErrCancelled is recorded on interactions cancelled before settling.
var ErrCancelled = errors.New("interaction cancelled")

// ErrClosed indicates the task table no longer accepts work.
var ErrClosed = errors.New("interaction table closed")

// State is the lifecycle state of one interaction.
type State string

const (
	StatePending   State = "pending"
	StateCompleted State = "completed"
	StateCancelled State = "cancelled"

	// StateUnknown is what Status reports for ids that are not live.
	StateUnknown State = "unknown"
)

// CancelResult reports the outcome of Cancel.
type CancelResult struct {
	Cancelled bool `json:"cancelled"`
	WasActive bool `json:"wasActive"`
}

// Runner is the execution body of one interaction. The context is
// cancelled when the interaction is cancelled; work already dispatched
// to the outside world is not undone.
type Runner[T any] func(ctx context.Context) (T, error)

type record[T any] struct {
	state  State
	value  T
	err    error
	cancel context.CancelFunc
	done   chan struct{}
}

// settle moves a pending record to a terminal state. Caller holds the
// table lock. Returns false when the record was already terminal.
func (r *record[T]) settle(state State, value T, err error) bool {
	if r.state != StatePending {
		return false
	}
	r.state = state
	r.value = value
	r.err = err
	r.cancel()
	close(r.done)
	return true
}

// Tasks tracks the interactions of a single owner (usually one face).
type Tasks[T any] struct {
	mu      sync.Mutex
	records map[string]*record[T]
	counter atomic.Uint64
	closed  bool
	logger  *slog.Logger
}

// NewTasks creates an empty task table.
func NewTasks[T any](logger *slog.Logger) *Tasks[T] {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tasks[T]{
		records: make(map[string]*record[T]),
		logger:  logger,
	}
}

// NextID allocates a fresh interaction id.
func (t *Tasks[T]) NextID() string {
	return "i-" + strconv.FormatUint(t.counter.Add(1), 10)
}

// Start registers a new pending interaction and runs fn in the background.
// Failures of fn are recorded for Await; they never surface here.
func (t *Tasks[T]) Start(ctx context.Context, fn Runner[T]) (string, error) {
	id := t.NextID()
	if err := t.StartWithID(ctx, id, fn); err != nil {
		return "", err
	}
	return id, nil
}

// StartWithID is Start with a caller-chosen id. A live id is rejected
// with ErrDuplicate and the existing record is left untouched.
func (t *Tasks[T]) StartWithID(ctx context.Context, id string, fn Runner[T]) error {
	// The run outlives the request that started it.
	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	rec := &record[T]{
		state:  StatePending,
		cancel: cancel,
		done:   make(chan struct{}),
	}

	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		cancel()
		return ErrClosed
	}
	if _, exists := t.records[id]; exists {
		t.mu.Unlock()
		cancel()
		return fmt.Errorf("%w: %s", ErrDuplicate, id)
	}
	t.records[id] = rec
	t.mu.Unlock()

	t.logger.Debug("interaction started", "interaction_id", id)
	go t.run(runCtx, id, rec, fn)
	return nil
}

func (t *Tasks[T]) run(ctx context.Context, id string, rec *record[T], fn Runner[T]) {
	var (
		value T
		err   error
	)
	func() {
		defer func() {
			if p := recover(); p != nil {
				err = fmt.Errorf("interaction panicked: %v", p)
			}
		}()
		value, err = fn(ctx)
	}()

	t.mu.Lock()
	settled := rec.settle(StateCompleted, value, err)
	t.mu.Unlock()

	if !settled {
		t.logger.Debug("interaction finished after cancellation", "interaction_id", id)
		return
	}
	if err != nil {
		t.logger.Debug("interaction failed", "interaction_id", id, "error", err)
	} else {
		t.logger.Debug("interaction completed", "interaction_id", id)
	}
}

// Await blocks until the interaction settles, then returns its value or
// failure and forgets it. A cancelled interaction returns ErrCancelled.
// If ctx ends first the record stays live and ctx's error is returned.
func (t *Tasks[T]) Await(ctx context.Context, id string) (T, error) {
	var zero T

	t.mu.Lock()
	rec, ok := t.records[id]
	t.mu.Unlock()
	if !ok {
		return zero, fmt.Errorf("%w: %s", ErrUnknown, id)
	}

	select {
	case <-rec.done:
	case <-ctx.Done():
		return zero, ctx.Err()
	}

	t.mu.Lock()
	current, ok := t.records[id]
	if !ok || current != rec {
		// Another awaiter consumed it first.
		t.mu.Unlock()
		return zero, fmt.Errorf("%w: %s", ErrUnknown, id)
	}
	delete(t.records, id)
	t.mu.Unlock()

	if rec.state == StateCancelled {
		return zero, rec.err
	}
	return rec.value, rec.err
}

// Cancel marks a pending interaction cancelled and cancels its context.
// An interaction that already completed keeps its result.
func (t *Tasks[T]) Cancel(id string) CancelResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	rec, ok := t.records[id]
	if !ok {
		return CancelResult{}
	}
	switch rec.state {
	case StatePending:
		var zero T
		rec.settle(StateCancelled, zero, ErrCancelled)
		t.logger.Debug("interaction cancelled", "interaction_id", id)
		return CancelResult{Cancelled: true, WasActive: true}
	case StateCancelled:
		return CancelResult{Cancelled: true, WasActive: true}
	default:
		return CancelResult{Cancelled: false, WasActive: true}
	}
}

// Status reports the state of a live interaction, or StateUnknown.
func (t *Tasks[T]) Status(id string) State {
	t.mu.Lock()
	defer t.mu.Unlock()

	if rec, ok := t.records[id]; ok {
		return rec.state
	}
	return StateUnknown
}

// Len returns the number of live interactions.
func (t *Tasks[T]) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.records)
}

// Close cancels every pending interaction and rejects further starts.
// Settled records stay awaitable.
func (t *Tasks[T]) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed {
		return
	}
	t.closed = true

	var zero T
	cancelled := 0
	for _, rec := range t.records {
		if rec.settle(StateCancelled, zero, ErrCancelled) {
			cancelled++
		}
	}
	t.logger.Debug("interaction table closed", "cancelled", cancelled)
}
