// ABOUTME: Base implements the Face interface over an interaction table and lifecycle hooks.
// ABOUTME: Kinds supply a run function and optional destroy hook; Base does the bookkeeping.

package face

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/2389/face-gateway/internal/interaction"
)

// RunFunc executes one interaction's input and returns its output.
type RunFunc func(ctx context.Context, input string) (string, error)

// BaseConfig configures a Base.
type BaseConfig struct {
	Run       RunFunc
	OnDestroy func(ctx context.Context) error
	Views     []View
	Logger    *slog.Logger

	// Now overrides the start timestamp source, for tests.
	Now func() time.Time
}

// Base is a ready-made Face for kinds whose interactions are a single
// function call.
type Base struct {
	tasks     *interaction.Tasks[string]
	run       RunFunc
	onDestroy func(ctx context.Context) error
	startedAt time.Time
	logger    *slog.Logger

	mu      sync.Mutex
	closed  bool
	count   int
	lastID  string
	views   []View
	details map[string]any

	ready    chan struct{}
	readyErr error
}

// NewBase creates a Base that is immediately ready. Kinds with
// asynchronous setup call Initialising before returning it.
func NewBase(cfg BaseConfig) *Base {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	now := time.Now
	if cfg.Now != nil {
		now = cfg.Now
	}
	ready := make(chan struct{})
	close(ready)
	return &Base{
		tasks:     interaction.NewTasks[string](logger),
		run:       cfg.Run,
		onDestroy: cfg.OnDestroy,
		startedAt: now(),
		logger:    logger,
		views:     append([]View(nil), cfg.Views...),
		ready:     ready,
	}
}

// Initialising marks the face as not ready and returns the function that
// completes initialisation. Passing a non-nil error fails every pending
// and future interaction and Status call.
func (b *Base) Initialising() func(err error) {
	b.mu.Lock()
	ready := make(chan struct{})
	b.ready = ready
	b.mu.Unlock()

	var once sync.Once
	return func(err error) {
		once.Do(func() {
			b.mu.Lock()
			b.readyErr = err
			b.mu.Unlock()
			close(ready)
			if err != nil {
				b.logger.Warn("face initialisation failed", "error", err)
			}
		})
	}
}

// WaitReady blocks until initialisation finished or ctx ends.
func (b *Base) WaitReady(ctx context.Context) error {
	b.mu.Lock()
	ready := b.ready
	b.mu.Unlock()

	select {
	case <-ready:
	case <-ctx.Done():
		return ctx.Err()
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	if b.readyErr != nil {
		return fmt.Errorf("face initialisation: %w", b.readyErr)
	}
	return nil
}

// InteractionStart begins running input in the background.
func (b *Base) InteractionStart(ctx context.Context, input string) (string, error) {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return "", ErrFaceClosed
	}
	b.mu.Unlock()

	id, err := b.tasks.Start(ctx, func(runCtx context.Context) (string, error) {
		if err := b.WaitReady(runCtx); err != nil {
			return "", err
		}
		return b.run(runCtx, input)
	})
	if err != nil {
		if b.isClosed() {
			return "", ErrFaceClosed
		}
		return "", err
	}

	b.mu.Lock()
	b.count++
	b.lastID = id
	b.mu.Unlock()
	return id, nil
}

// InteractionAwait waits for and consumes the result of an interaction.
func (b *Base) InteractionAwait(ctx context.Context, id string) (string, error) {
	return b.tasks.Await(ctx, id)
}

// InteractionCancel cancels a pending interaction.
func (b *Base) InteractionCancel(id string) interaction.CancelResult {
	return b.tasks.Cancel(id)
}

// InteractionStatus reports an interaction's state.
func (b *Base) InteractionStatus(id string) interaction.State {
	return b.tasks.Status(id)
}

// Status waits for initialisation, then snapshots the face.
func (b *Base) Status(ctx context.Context) (Status, error) {
	if err := b.WaitReady(ctx); err != nil {
		return Status{}, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	st := Status{
		StartedAt:         b.startedAt,
		Closed:            b.closed,
		Interactions:      b.count,
		LastInteractionID: b.lastID,
		Views:             append([]View(nil), b.views...),
	}
	if len(b.details) > 0 {
		st.Details = make(map[string]any, len(b.details))
		for k, v := range b.details {
			st.Details[k] = v
		}
	}
	return st, nil
}

// Views returns the published views.
func (b *Base) Views() []View {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]View(nil), b.views...)
}

// SetViews replaces the published views.
func (b *Base) SetViews(views []View) {
	b.mu.Lock()
	b.views = append([]View(nil), views...)
	b.mu.Unlock()
}

// SetDetail records a kind-specific status field.
func (b *Base) SetDetail(key string, value any) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.details == nil {
		b.details = make(map[string]any)
	}
	b.details[key] = value
}

// Destroy closes the face, cancels pending interactions and runs the
// kind's destroy hook once initialisation has settled, so the hook sees
// whatever setup created. Destroying twice is a no-op.
func (b *Base) Destroy(ctx context.Context) error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	b.tasks.Close()
	if b.onDestroy != nil {
		// A failed setup still runs the hook; only ctx ending skips the wait.
		_ = b.WaitReady(ctx)
		if err := b.onDestroy(ctx); err != nil {
			return fmt.Errorf("destroying face: %w", err)
		}
	}
	return nil
}

func (b *Base) isClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}
