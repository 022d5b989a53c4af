// ABOUTME: Core face types: the Face interface, kinds, views, status, and error sentinels.
// ABOUTME: Concrete kinds live in internal/kinds; the registry composes them.

package face

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/2389/face-gateway/internal/interaction"
)

// ErrFaceNotFound indicates no live face has the given id.
var ErrFaceNotFound = errors.New("face not found")

// ErrUnknownKind indicates the kind id is not registered or not enabled.
var ErrUnknownKind = errors.New("unknown face kind")

// ErrFaceClosed indicates the face has been destroyed.
var ErrFaceClosed = errors.New("face is closed")

// ErrProtected indicates an operation on the self kind or self face that
// is not allowed.
var ErrProtected = errors.New("operation not permitted on self")

// ErrInvalidPath indicates a home or workspace path that cannot be used.
var ErrInvalidPath = errors.New("invalid face path")

// ErrDuplicateKind indicates two kinds share an id.
var ErrDuplicateKind = errors.New("duplicate face kind")

// Face is a live interactive session.
type Face interface {
	InteractionStart(ctx context.Context, input string) (string, error)
	InteractionAwait(ctx context.Context, id string) (string, error)
	InteractionCancel(id string) interaction.CancelResult
	InteractionStatus(id string) interaction.State

	// Status waits for asynchronous initialisation before reporting.
	Status(ctx context.Context) (Status, error)

	// Views lists published views without waiting for initialisation.
	Views() []View

	Destroy(ctx context.Context) error
}

// View is an endpoint a face publishes for observing it.
type View struct {
	Name     string `json:"name"`
	Protocol string `json:"protocol"`
	Port     int    `json:"port,omitempty"`
	Path     string `json:"path,omitempty"`
	URL      string `json:"url,omitempty"`
}

// Status is a point-in-time snapshot of a face.
type Status struct {
	StartedAt         time.Time      `json:"startedAt"`
	Closed            bool           `json:"closed"`
	Interactions      int            `json:"interactions"`
	LastInteractionID string         `json:"lastInteractionId,omitempty"`
	Views             []View         `json:"views,omitempty"`
	Details           map[string]any `json:"details,omitempty"`
}

// Options are the resolved inputs handed to a kind's factory.
type Options struct {
	ID        string
	Home      string
	Workspace string
	Hostname  string
	Config    map[string]any
	Logger    *slog.Logger
}

// Factory builds a face. It may return before asynchronous initialisation
// finishes; Status waits for it.
type Factory func(ctx context.Context, opts Options) (Face, error)

// Kind describes a family of faces.
type Kind struct {
	ID          string
	Title       string
	Description string

	// Create is nil only for the self kind.
	Create Factory
}

// KindInfo is the listing form of a Kind.
type KindInfo struct {
	ID          string `json:"id"`
	Title       string `json:"title"`
	Description string `json:"description"`
}
