// ABOUTME: Tests for Base: readiness gating, closed faces, and status bookkeeping.
// ABOUTME: Interaction semantics themselves are covered in the interaction package.

package face

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/face-gateway/internal/interaction"
)

func upper(_ context.Context, input string) (string, error) {
	return input + "!", nil
}

func TestBaseInteractionRoundTrip(t *testing.T) {
	b := NewBase(BaseConfig{Run: upper})
	ctx := context.Background()

	id, err := b.InteractionStart(ctx, "hi")
	require.NoError(t, err)
	out, err := b.InteractionAwait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hi!", out)
	assert.Equal(t, interaction.StateUnknown, b.InteractionStatus(id))
}

func TestBaseStatusWaitsForReady(t *testing.T) {
	b := NewBase(BaseConfig{Run: upper})
	done := b.Initialising()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := b.Status(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	done(nil)
	st, err := b.Status(context.Background())
	require.NoError(t, err)
	assert.False(t, st.Closed)
}

func TestBaseInteractionWaitsForReady(t *testing.T) {
	b := NewBase(BaseConfig{Run: upper})
	done := b.Initialising()
	ctx := context.Background()

	id, err := b.InteractionStart(ctx, "early")
	require.NoError(t, err)
	assert.Equal(t, interaction.StatePending, b.InteractionStatus(id))

	done(nil)
	out, err := b.InteractionAwait(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "early!", out)
}

func TestBaseFailedInitialisation(t *testing.T) {
	b := NewBase(BaseConfig{Run: upper})
	done := b.Initialising()
	boom := errors.New("no tmux")
	done(boom)

	_, err := b.Status(context.Background())
	assert.ErrorIs(t, err, boom)

	id, err := b.InteractionStart(context.Background(), "x")
	require.NoError(t, err)
	_, err = b.InteractionAwait(context.Background(), id)
	assert.ErrorIs(t, err, boom)
}

func TestBaseDestroy(t *testing.T) {
	hookCalls := 0
	b := NewBase(BaseConfig{
		Run: func(ctx context.Context, _ string) (string, error) {
			<-ctx.Done()
			return "", ctx.Err()
		},
		OnDestroy: func(context.Context) error {
			hookCalls++
			return nil
		},
	})
	ctx := context.Background()

	pending, err := b.InteractionStart(ctx, "wait")
	require.NoError(t, err)

	require.NoError(t, b.Destroy(ctx))
	require.NoError(t, b.Destroy(ctx))
	assert.Equal(t, 1, hookCalls)

	assert.Equal(t, interaction.StateCancelled, b.InteractionStatus(pending))
	_, err = b.InteractionStart(ctx, "late")
	assert.ErrorIs(t, err, ErrFaceClosed)

	st, err := b.Status(ctx)
	require.NoError(t, err)
	assert.True(t, st.Closed)
}

func TestBaseDestroyWaitsForInitialisation(t *testing.T) {
	hooked := make(chan struct{})
	b := NewBase(BaseConfig{
		Run: upper,
		OnDestroy: func(context.Context) error {
			close(hooked)
			return nil
		},
	})
	done := b.Initialising()

	destroyed := make(chan error, 1)
	go func() { destroyed <- b.Destroy(context.Background()) }()

	select {
	case <-hooked:
		t.Fatal("destroy hook ran before initialisation settled")
	case <-time.After(20 * time.Millisecond):
	}

	done(errors.New("setup failed"))
	require.NoError(t, <-destroyed)
	select {
	case <-hooked:
	default:
		t.Fatal("destroy hook did not run")
	}
}

func TestBaseDestroyGivesUpWaitingWithContext(t *testing.T) {
	calls := 0
	b := NewBase(BaseConfig{
		Run: upper,
		OnDestroy: func(context.Context) error {
			calls++
			return nil
		},
	})
	b.Initialising()

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	require.NoError(t, b.Destroy(ctx))
	assert.Equal(t, 1, calls)
}

func TestBaseDetailsAndViews(t *testing.T) {
	b := NewBase(BaseConfig{Run: upper, Views: []View{{Name: "a", Port: 1}}})
	b.SetDetail("socket", "/tmp/x.sock")
	b.SetViews([]View{{Name: "b", Port: 2}})

	st, err := b.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "/tmp/x.sock", st.Details["socket"])
	require.Len(t, st.Views, 1)
	assert.Equal(t, "b", st.Views[0].Name)
}
