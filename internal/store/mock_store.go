// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite

package store

import (
	"context"
	"sync"
	"time"

	"github.com/2389/face-gateway/internal/face"
)

// MockStore is an in-memory Store implementation for testing.
type MockStore struct {
	mu     sync.RWMutex
	events []*FaceEvent
	nextID int64
}

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{}
}

// RecordFaceEvent appends an event.
func (m *MockStore) RecordFaceEvent(_ context.Context, ev face.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	m.nextID++
	m.events = append(m.events, &FaceEvent{
		ID:        m.nextID,
		FaceID:    ev.FaceID,
		Kind:      ev.Kind,
		Type:      ev.Type,
		Detail:    ev.Detail,
		CreatedAt: at,
	})
	return nil
}

// ListFaceEvents returns matching events newest first.
func (m *MockStore) ListFaceEvents(_ context.Context, filter EventFilter) ([]*FaceEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultEventLimit
	}

	var out []*FaceEvent
	for i := len(m.events) - 1; i >= 0 && len(out) < limit; i-- {
		ev := m.events[i]
		if filter.FaceID != "" && ev.FaceID != filter.FaceID {
			continue
		}
		if filter.Kind != "" && ev.Kind != filter.Kind {
			continue
		}
		copied := *ev
		out = append(out, &copied)
	}
	return out, nil
}

// GetFaceEvent returns an event by id.
func (m *MockStore) GetFaceEvent(_ context.Context, id int64) (*FaceEvent, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, ev := range m.events {
		if ev.ID == id {
			copied := *ev
			return &copied, nil
		}
	}
	return nil, ErrNotFound
}

// Close is a no-op.
func (m *MockStore) Close() error { return nil }

// Compile-time interface checks
var (
	_ Store = (*SQLiteStore)(nil)
	_ Store = (*MockStore)(nil)
)
