// ABOUTME: The synthetic self kind and self face representing the hosting process.
// ABOUTME: Self is always listed, can be read, and refuses creation, destruction, and interactions.

package face

import (
	"context"
	"fmt"
	"time"

	"github.com/2389/face-gateway/internal/interaction"
)

// SelfID is both the self kind id and the self face id.
const SelfID = "self"

var selfKind = Kind{
	ID:          SelfID,
	Title:       "Self",
	Description: "The process hosting this registry.",
}

type selfFace struct {
	startedAt time.Time
	views     []View
	details   func() map[string]any
}

func (s *selfFace) InteractionStart(context.Context, string) (string, error) {
	return "", ErrProtected
}

func (s *selfFace) InteractionAwait(_ context.Context, id string) (string, error) {
	return "", fmt.Errorf("%w: %s", interaction.ErrUnknown, id)
}

func (s *selfFace) InteractionCancel(string) interaction.CancelResult {
	return interaction.CancelResult{}
}

func (s *selfFace) InteractionStatus(string) interaction.State {
	return interaction.StateUnknown
}

func (s *selfFace) Status(context.Context) (Status, error) {
	st := Status{
		StartedAt: s.startedAt,
		Views:     append([]View(nil), s.views...),
	}
	if s.details != nil {
		st.Details = s.details()
	}
	return st, nil
}

func (s *selfFace) Views() []View {
	return append([]View(nil), s.views...)
}

func (s *selfFace) Destroy(context.Context) error {
	return ErrProtected
}
