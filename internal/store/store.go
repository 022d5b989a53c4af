// ABOUTME: Store interface and data types for face-gateway persistence
// ABOUTME: Defines the face lifecycle ledger kept alongside the in-memory registry

package store

import (
	"context"
	"errors"
	"time"

	"github.com/2389/face-gateway/internal/face"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// DefaultEventLimit caps ListFaceEvents when no limit is given
const DefaultEventLimit = 100

// FaceEvent is one persisted face lifecycle transition
type FaceEvent struct {
	ID        int64     `json:"id"`
	FaceID    string    `json:"faceId"`
	Kind      string    `json:"kind"`
	Type      string    `json:"type"`
	Detail    string    `json:"detail,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
}

// EventFilter narrows ListFaceEvents. Zero values match everything.
type EventFilter struct {
	FaceID string
	Kind   string
	Limit  int
}

// Store is the persistence interface used by the gateway.
// The registry itself stays in memory; the store only keeps history.
type Store interface {
	face.Ledger

	// ListFaceEvents returns events newest first
	ListFaceEvents(ctx context.Context, filter EventFilter) ([]*FaceEvent, error)

	// GetFaceEvent returns a single event by id
	GetFaceEvent(ctx context.Context, id int64) (*FaceEvent, error)

	Close() error
}
