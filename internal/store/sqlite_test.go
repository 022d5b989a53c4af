// ABOUTME: Tests for SQLite store implementation
// ABOUTME: Covers schema creation, event recording, filtering, and ordering

package store

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/face-gateway/internal/face"
)

func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func TestNewSQLiteStore_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", "ledger.db")

	s, err := NewSQLiteStore(dbPath)
	if err != nil {
		t.Fatalf("NewSQLiteStore failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		t.Error("database file was not created in nested directory")
	}
}

func TestRecordAndListFaceEvents(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	require.NoError(t, s.RecordFaceEvent(ctx, face.Event{FaceID: "f1", Kind: "cmd", Type: face.EventCreated, Detail: "/h/1", At: at}))
	require.NoError(t, s.RecordFaceEvent(ctx, face.Event{FaceID: "f2", Kind: "test", Type: face.EventCreated, At: at}))
	require.NoError(t, s.RecordFaceEvent(ctx, face.Event{FaceID: "f1", Kind: "cmd", Type: face.EventDestroyed, At: at.Add(time.Minute)}))

	all, err := s.ListFaceEvents(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, face.EventDestroyed, all[0].Type, "newest first")
	assert.Equal(t, at.Add(time.Minute), all[0].CreatedAt)

	f1, err := s.ListFaceEvents(ctx, EventFilter{FaceID: "f1"})
	require.NoError(t, err)
	require.Len(t, f1, 2)
	assert.Equal(t, "/h/1", f1[1].Detail)

	byKind, err := s.ListFaceEvents(ctx, EventFilter{Kind: "test"})
	require.NoError(t, err)
	require.Len(t, byKind, 1)
	assert.Equal(t, "f2", byKind[0].FaceID)

	limited, err := s.ListFaceEvents(ctx, EventFilter{Limit: 1})
	require.NoError(t, err)
	assert.Len(t, limited, 1)
}

func TestGetFaceEvent(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	require.NoError(t, s.RecordFaceEvent(ctx, face.Event{FaceID: "f", Kind: "cmd", Type: face.EventCreated}))
	events, err := s.ListFaceEvents(ctx, EventFilter{})
	require.NoError(t, err)
	require.Len(t, events, 1)

	got, err := s.GetFaceEvent(ctx, events[0].ID)
	require.NoError(t, err)
	assert.Equal(t, "f", got.FaceID)
	assert.False(t, got.CreatedAt.IsZero())

	_, err = s.GetFaceEvent(ctx, 9999)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRegistryWritesToStore(t *testing.T) {
	s := newTestStore(t)
	reg, err := face.NewRegistry(face.RegistryConfig{
		Kinds: []face.Kind{{
			ID: "noop",
			Create: func(context.Context, face.Options) (face.Face, error) {
				return face.NewBase(face.BaseConfig{Run: func(context.Context, string) (string, error) { return "", nil }}), nil
			},
		}},
		BaseDir: t.TempDir(),
		Ledger:  s,
	})
	require.NoError(t, err)
	ctx := context.Background()

	id, err := reg.CreateFace(ctx, face.CreateRequest{KindID: "noop"})
	require.NoError(t, err)
	require.NoError(t, reg.DestroyFace(ctx, id))

	events, err := s.ListFaceEvents(ctx, EventFilter{FaceID: id})
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, face.EventDestroyed, events[0].Type)
	assert.Equal(t, face.EventCreated, events[1].Type)
}
