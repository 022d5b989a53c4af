// ABOUTME: Interaction pack: start, await, cancel, and inspect interactions on a face.
// ABOUTME: The face comes from the faceId argument or the endpoint the caller connected to.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/2389/face-gateway/internal/face"
	"github.com/2389/face-gateway/internal/interaction"
	"github.com/2389/face-gateway/internal/packs"
)

// AwaitTimeout bounds a single interaction_await call. An await that
// times out leaves the interaction live, so callers can await again.
const AwaitTimeout = 10 * time.Minute

// InteractionPack creates the pack that drives interactions on faces.
func InteractionPack(reg *face.Registry) *packs.BuiltinPack {
	h := &interactionHandlers{registry: reg}
	return &packs.BuiltinPack{
		ID: "builtin:interaction",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:                 "interaction_start",
					Description:          "Start an interaction on a face and return its id",
					InputSchemaJSON:      `{"type":"object","properties":{"faceId":{"type":"string"},"input":{"type":"string"}},"required":["input"]}`,
					RequiredCapabilities: []string{CapabilityFaces},
				},
				Handler: h.Start,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:                 "interaction_await",
					Description:          "Wait for an interaction to finish and return its result",
					InputSchemaJSON:      `{"type":"object","properties":{"faceId":{"type":"string"},"interactionId":{"type":"string"}},"required":["interactionId"]}`,
					RequiredCapabilities: []string{CapabilityFaces},
					Timeout:              AwaitTimeout,
				},
				Handler: h.Await,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:                 "interaction_cancel",
					Description:          "Cancel a pending interaction",
					InputSchemaJSON:      `{"type":"object","properties":{"faceId":{"type":"string"},"interactionId":{"type":"string"}},"required":["interactionId"]}`,
					RequiredCapabilities: []string{CapabilityFaces},
				},
				Handler: h.Cancel,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:                 "interaction_status",
					Description:          "Report the state of an interaction",
					InputSchemaJSON:      `{"type":"object","properties":{"faceId":{"type":"string"},"interactionId":{"type":"string"}},"required":["interactionId"]}`,
					RequiredCapabilities: []string{CapabilityFaces},
				},
				Handler: h.Status,
			},
		},
	}
}

type interactionHandlers struct {
	registry *face.Registry
}

type interactionInput struct {
	FaceID        string `json:"faceId"`
	InteractionID string `json:"interactionId"`
	Input         string `json:"input"`
}

type interactionOutput struct {
	InteractionID string            `json:"interactionId"`
	Value         *string           `json:"value,omitempty"`
	State         interaction.State `json:"state,omitempty"`
}

// target decodes the input and resolves the face it addresses.
func (h *interactionHandlers) target(scope string, raw json.RawMessage, needID bool) (face.Face, interactionInput, error) {
	var in interactionInput
	if err := json.Unmarshal(raw, &in); err != nil {
		return nil, in, fmt.Errorf("invalid input: %w", err)
	}
	if needID && in.InteractionID == "" {
		return nil, in, fmt.Errorf("interactionId is required")
	}
	id, err := resolveFaceID(in.FaceID, scope)
	if err != nil {
		return nil, in, err
	}
	f, err := h.registry.Face(id)
	if err != nil {
		return nil, in, err
	}
	return f, in, nil
}

func (h *interactionHandlers) Start(ctx context.Context, scope string, raw json.RawMessage) (json.RawMessage, error) {
	f, in, err := h.target(scope, raw, false)
	if err != nil {
		return nil, err
	}
	id, err := f.InteractionStart(ctx, in.Input)
	if err != nil {
		return nil, err
	}
	return json.Marshal(interactionOutput{InteractionID: id})
}

func (h *interactionHandlers) Await(ctx context.Context, scope string, raw json.RawMessage) (json.RawMessage, error) {
	f, in, err := h.target(scope, raw, true)
	if err != nil {
		return nil, err
	}
	value, err := f.InteractionAwait(ctx, in.InteractionID)
	if err != nil {
		return nil, err
	}
	return json.Marshal(interactionOutput{InteractionID: in.InteractionID, Value: &value})
}

func (h *interactionHandlers) Cancel(ctx context.Context, scope string, raw json.RawMessage) (json.RawMessage, error) {
	f, in, err := h.target(scope, raw, true)
	if err != nil {
		return nil, err
	}
	return json.Marshal(f.InteractionCancel(in.InteractionID))
}

func (h *interactionHandlers) Status(ctx context.Context, scope string, raw json.RawMessage) (json.RawMessage, error) {
	f, in, err := h.target(scope, raw, true)
	if err != nil {
		return nil, err
	}
	return json.Marshal(interactionOutput{
		InteractionID: in.InteractionID,
		State:         f.InteractionStatus(in.InteractionID),
	})
}
