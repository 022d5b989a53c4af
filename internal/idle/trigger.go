// ABOUTME: Reference-counted activity tracker that fires a one-shot signal after a quiet period.
// ABOUTME: The gateway brackets every inbound request with Busy/Idle and shuts down on Done.

package idle

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/2389/face-gateway/internal/clock"
)

// Token identifies one outstanding unit of activity.
type Token string

// Trigger fires once no activity has been outstanding for the timeout.
type Trigger struct {
	mu      sync.Mutex
	active  map[Token]struct{}
	timer   clock.Timer
	gen     uint64
	timeout time.Duration
	fired   bool

	ctx    context.Context
	cancel context.CancelFunc
	clock  clock.Clock
	logger *slog.Logger
}

// Option configures a Trigger.
type Option func(*Trigger)

// WithClock injects the clock used for the quiet-period timer.
func WithClock(c clock.Clock) Option {
	return func(t *Trigger) { t.clock = c }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(t *Trigger) { t.logger = logger }
}

// WithParent derives the trigger's signal from parent, so cancelling the
// parent also fires the trigger.
func WithParent(parent context.Context) Option {
	return func(t *Trigger) { t.ctx = parent }
}

// New creates a Trigger and arms the first quiet-period timer, so a
// process that never sees activity still goes idle. A timeout <= 0
// disables the timer; only Abort fires the signal then.
func New(timeout time.Duration, opts ...Option) *Trigger {
	t := &Trigger{
		active:  make(map[Token]struct{}),
		timeout: timeout,
		ctx:     context.Background(),
		clock:   clock.Real(),
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	t.ctx, t.cancel = context.WithCancel(t.ctx)

	// However the signal fires, later activity must not arm new timers.
	context.AfterFunc(t.ctx, func() {
		t.mu.Lock()
		t.fired = true
		t.stopLocked()
		t.mu.Unlock()
	})

	t.mu.Lock()
	t.armLocked()
	t.mu.Unlock()
	return t
}

// Busy records the start of an activity and returns its token.
func (t *Trigger) Busy() Token {
	tok := Token(uuid.New().String())

	t.mu.Lock()
	defer t.mu.Unlock()

	t.active[tok] = struct{}{}
	t.stopLocked()
	return tok
}

// Idle records the end of the activity identified by tok. Calling it with
// a token that was never issued, or twice with the same token, is a
// programming error and panics.
func (t *Trigger) Idle(tok Token) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.active[tok]; !ok {
		panic(fmt.Sprintf("idle: Idle called with invalid or duplicate token %q", tok))
	}
	delete(t.active, tok)
	if len(t.active) == 0 {
		t.armLocked()
	}
}

// Touch restarts the quiet period without changing the outstanding set.
// It has no effect while any activity is outstanding.
func (t *Trigger) Touch() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.active) == 0 {
		t.armLocked()
	}
}

// Abort fires the signal immediately and stops the timer. Repeated calls
// are harmless.
func (t *Trigger) Abort() {
	t.mu.Lock()
	t.stopLocked()
	already := t.fired
	t.fired = true
	t.mu.Unlock()

	if !already {
		t.logger.Info("idle trigger aborted")
	}
	t.cancel()
}

// Track brackets fn with Busy and Idle. Idle runs even when fn panics.
func (t *Trigger) Track(fn func() error) error {
	tok := t.Busy()
	defer t.Idle(tok)
	return fn()
}

// Context returns a context that is cancelled when the trigger fires.
func (t *Trigger) Context() context.Context {
	return t.ctx
}

// Done is shorthand for Context().Done().
func (t *Trigger) Done() <-chan struct{} {
	return t.ctx.Done()
}

// Outstanding returns the number of activities currently in flight.
func (t *Trigger) Outstanding() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.active)
}

// Timeout returns the configured quiet period.
func (t *Trigger) Timeout() time.Duration {
	return t.timeout
}

// armLocked replaces any pending timer with a fresh one. Caller holds t.mu.
func (t *Trigger) armLocked() {
	t.stopLocked()
	if t.fired || t.timeout <= 0 {
		return
	}
	t.gen++
	gen := t.gen
	t.timer = t.clock.AfterFunc(t.timeout, func() { t.fire(gen) })
}

// stopLocked cancels the pending timer. Caller holds t.mu.
func (t *Trigger) stopLocked() {
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}

// fire runs when a timer expires. A timer that was replaced or stopped
// after it began firing is ignored.
func (t *Trigger) fire(gen uint64) {
	t.mu.Lock()
	if t.fired || t.timer == nil || t.gen != gen || len(t.active) > 0 {
		t.mu.Unlock()
		return
	}
	t.fired = true
	t.timer = nil
	t.mu.Unlock()

	t.logger.Info("idle timeout reached", "timeout", t.timeout)
	t.cancel()
}
