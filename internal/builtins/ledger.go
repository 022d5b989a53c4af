// ABOUTME: Ledger pack: read the persisted history of face lifecycle events.
// ABOUTME: Requires the "faces" capability and a store.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/2389/face-gateway/internal/packs"
	"github.com/2389/face-gateway/internal/store"
)

// LedgerPack creates the pack exposing face_events.
func LedgerPack(s store.Store) *packs.BuiltinPack {
	h := &ledgerHandlers{store: s}
	return &packs.BuiltinPack{
		ID: "builtin:ledger",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:                 "face_events",
					Description:          "List recorded face lifecycle events, newest first",
					InputSchemaJSON:      `{"type":"object","properties":{"faceId":{"type":"string"},"kind":{"type":"string"},"limit":{"type":"integer"}}}`,
					RequiredCapabilities: []string{CapabilityFaces},
				},
				Handler: h.FaceEvents,
			},
		},
	}
}

type ledgerHandlers struct {
	store store.Store
}

type faceEventsInput struct {
	FaceID string `json:"faceId"`
	Kind   string `json:"kind"`
	Limit  int    `json:"limit"`
}

type faceEventsOutput struct {
	Events []*store.FaceEvent `json:"events"`
}

func (h *ledgerHandlers) FaceEvents(ctx context.Context, scope string, input json.RawMessage) (json.RawMessage, error) {
	var in faceEventsInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	faceID := in.FaceID
	if faceID == "" {
		faceID = scope
	}

	events, err := h.store.ListFaceEvents(ctx, store.EventFilter{
		FaceID: faceID,
		Kind:   in.Kind,
		Limit:  in.Limit,
	})
	if err != nil {
		return nil, err
	}
	if events == nil {
		events = []*store.FaceEvent{}
	}
	return json.Marshal(faceEventsOutput{Events: events})
}
