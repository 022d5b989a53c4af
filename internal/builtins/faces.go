// ABOUTME: Faces pack: list, create, read, and destroy faces in the registry.
// ABOUTME: Requires the "faces" capability.

package builtins

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/2389/face-gateway/internal/face"
	"github.com/2389/face-gateway/internal/packs"
)

// CapabilityFaces gates every tool that touches faces.
const CapabilityFaces = "faces"

// FacesPack creates the pack that manages the face registry.
func FacesPack(reg *face.Registry) *packs.BuiltinPack {
	h := &faceHandlers{registry: reg}
	return &packs.BuiltinPack{
		ID: "builtin:faces",
		Tools: []*packs.BuiltinTool{
			{
				Definition: &packs.ToolDefinition{
					Name:                 "list_faces",
					Description:          "List face kinds and live faces",
					InputSchemaJSON:      `{"type":"object","properties":{}}`,
					RequiredCapabilities: []string{CapabilityFaces},
				},
				Handler: h.ListFaces,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:                 "create_face",
					Description:          "Create a face of the given kind",
					InputSchemaJSON:      `{"type":"object","properties":{"faceKindId":{"type":"string"},"home":{"type":"string"},"workspace":{"type":"string"},"hostname":{"type":"string"},"config":{"type":"object"}},"required":["faceKindId"]}`,
					RequiredCapabilities: []string{CapabilityFaces},
					Timeout:              time.Minute,
				},
				Handler: h.CreateFace,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:                 "read_face",
					Description:          "Read a face's record and status",
					InputSchemaJSON:      `{"type":"object","properties":{"faceId":{"type":"string"}},"required":["faceId"]}`,
					RequiredCapabilities: []string{CapabilityFaces},
				},
				Handler: h.ReadFace,
			},
			{
				Definition: &packs.ToolDefinition{
					Name:                 "destroy_face",
					Description:          "Destroy a face",
					InputSchemaJSON:      `{"type":"object","properties":{"faceId":{"type":"string"}},"required":["faceId"]}`,
					RequiredCapabilities: []string{CapabilityFaces},
				},
				Handler: h.DestroyFace,
			},
		},
	}
}

type faceHandlers struct {
	registry *face.Registry
}

type listFacesOutput struct {
	FaceKinds []face.KindInfo `json:"face_kinds"`
	LiveFaces []face.Detail   `json:"live_faces"`
}

func (h *faceHandlers) ListFaces(ctx context.Context, scope string, input json.RawMessage) (json.RawMessage, error) {
	return json.Marshal(listFacesOutput{
		FaceKinds: h.registry.ListFaceKinds(),
		LiveFaces: h.registry.ListLiveFaces(ctx),
	})
}

type createFaceOutput struct {
	FaceID string `json:"faceId"`
}

func (h *faceHandlers) CreateFace(ctx context.Context, scope string, input json.RawMessage) (json.RawMessage, error) {
	var req face.CreateRequest
	if err := json.Unmarshal(input, &req); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if req.KindID == "" {
		return nil, fmt.Errorf("faceKindId is required")
	}

	id, err := h.registry.CreateFace(ctx, req)
	if err != nil {
		return nil, err
	}
	return json.Marshal(createFaceOutput{FaceID: id})
}

type faceIDInput struct {
	FaceID string `json:"faceId"`
}

func (h *faceHandlers) ReadFace(ctx context.Context, scope string, input json.RawMessage) (json.RawMessage, error) {
	var in faceIDInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	id, err := resolveFaceID(in.FaceID, scope)
	if err != nil {
		return nil, err
	}

	detail, err := h.registry.ReadFace(ctx, id)
	if err != nil {
		return nil, err
	}
	return json.Marshal(detail)
}

type destroyFaceOutput struct {
	Deleted bool `json:"deleted"`
}

func (h *faceHandlers) DestroyFace(ctx context.Context, scope string, input json.RawMessage) (json.RawMessage, error) {
	var in faceIDInput
	if err := json.Unmarshal(input, &in); err != nil {
		return nil, fmt.Errorf("invalid input: %w", err)
	}
	if in.FaceID == "" {
		return nil, fmt.Errorf("faceId is required")
	}

	if err := h.registry.DestroyFace(ctx, in.FaceID); err != nil {
		return nil, err
	}
	return json.Marshal(destroyFaceOutput{Deleted: true})
}

// resolveFaceID prefers the explicit id and falls back to the endpoint scope.
func resolveFaceID(explicit, scope string) (string, error) {
	if explicit != "" {
		return explicit, nil
	}
	if scope != "" {
		return scope, nil
	}
	return "", fmt.Errorf("faceId is required")
}
