// ABOUTME: Tests for the faces, interaction, and ledger tool packs.
// ABOUTME: Drives handlers directly against a registry with the test kind.

package builtins

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/face-gateway/internal/face"
	"github.com/2389/face-gateway/internal/interaction"
	"github.com/2389/face-gateway/internal/kinds"
	"github.com/2389/face-gateway/internal/packs"
	"github.com/2389/face-gateway/internal/store"
)

type fixture struct {
	registry *face.Registry
	store    *store.MockStore
	handlers map[string]packs.ToolHandler
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	t.Setenv(face.HomeEnv, "")
	s := store.NewMockStore()
	reg, err := face.NewRegistry(face.RegistryConfig{
		Kinds:    []face.Kind{kinds.TestKind()},
		BaseDir:  t.TempDir(),
		Hostname: "agent.local",
		Ledger:   s,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = reg.Close(context.Background()) })

	handlers := make(map[string]packs.ToolHandler)
	for _, p := range []*packs.BuiltinPack{FacesPack(reg), InteractionPack(reg), LedgerPack(s)} {
		for _, tool := range p.Tools {
			handlers[tool.Definition.Name] = tool.Handler
		}
	}
	return &fixture{registry: reg, store: s, handlers: handlers}
}

func (f *fixture) call(t *testing.T, tool, scope, input string, out any) error {
	t.Helper()
	h, ok := f.handlers[tool]
	require.True(t, ok, "tool %s not registered", tool)
	raw, err := h(context.Background(), scope, json.RawMessage(input))
	if err != nil {
		return err
	}
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out))
	}
	return nil
}

func (f *fixture) createTestFace(t *testing.T) string {
	t.Helper()
	var out struct {
		FaceID string `json:"faceId"`
	}
	require.NoError(t, f.call(t, "create_face", "", `{"faceKindId":"test"}`, &out))
	require.NotEmpty(t, out.FaceID)
	return out.FaceID
}

func TestPacksRegisterWithoutCollisions(t *testing.T) {
	f := newFixture(t)
	registry := packs.NewRegistry(nil)
	require.NoError(t, registry.RegisterBuiltinPack(FacesPack(f.registry)))
	require.NoError(t, registry.RegisterBuiltinPack(InteractionPack(f.registry)))
	require.NoError(t, registry.RegisterBuiltinPack(LedgerPack(f.store)))
	assert.Len(t, registry.GetAllTools(), 9)
	assert.Empty(t, registry.GetToolsForCapabilities(nil))
}

func TestListFacesIncludesSelf(t *testing.T) {
	f := newFixture(t)

	var out struct {
		FaceKinds []face.KindInfo `json:"face_kinds"`
		LiveFaces []face.Detail   `json:"live_faces"`
	}
	require.NoError(t, f.call(t, "list_faces", "", `{}`, &out))
	require.Len(t, out.FaceKinds, 2)
	assert.Equal(t, face.SelfID, out.FaceKinds[0].ID)
	require.Len(t, out.LiveFaces, 1)
	assert.Equal(t, face.SelfID, out.LiveFaces[0].ID)
}

func TestListFacesReportsStatus(t *testing.T) {
	f := newFixture(t)
	faceID := f.createTestFace(t)

	var started struct {
		InteractionID string `json:"interactionId"`
	}
	require.NoError(t, f.call(t, "interaction_start", "", `{"faceId":"`+faceID+`","input":"hi"}`, &started))

	var out struct {
		LiveFaces []face.Detail `json:"live_faces"`
	}
	require.NoError(t, f.call(t, "list_faces", "", `{}`, &out))
	require.Len(t, out.LiveFaces, 2)
	listed := out.LiveFaces[1]
	assert.Equal(t, faceID, listed.ID)
	assert.Empty(t, listed.StatusError)
	assert.Equal(t, 1, listed.Status.Interactions)
	assert.Equal(t, started.InteractionID, listed.Status.LastInteractionID)
}

func TestCreateFaceHostnameOverridesRegistry(t *testing.T) {
	f := newFixture(t)

	var created struct {
		FaceID string `json:"faceId"`
	}
	require.NoError(t, f.call(t, "create_face", "",
		`{"faceKindId":"test","hostname":"h.example","config":{"view_port":8080}}`, &created))

	var detail face.Detail
	require.NoError(t, f.call(t, "read_face", "", `{"faceId":"`+created.FaceID+`"}`, &detail))
	require.Len(t, detail.Views, 1)
	assert.Equal(t, "http://h.example:8080/"+kinds.TestLogName, detail.Views[0].URL)

	err := f.call(t, "create_face", "", `{"kind":"test"}`, nil)
	assert.EqualError(t, err, "faceKindId is required")
}

func TestCreateInteractDestroy(t *testing.T) {
	f := newFixture(t)
	faceID := f.createTestFace(t)

	var started struct {
		InteractionID string `json:"interactionId"`
	}
	require.NoError(t, f.call(t, "interaction_start", "", `{"faceId":"`+faceID+`","input":"hello"}`, &started))
	require.NotEmpty(t, started.InteractionID)

	var awaited struct {
		Value string `json:"value"`
	}
	require.NoError(t, f.call(t, "interaction_await", "", `{"faceId":"`+faceID+`","interactionId":"`+started.InteractionID+`"}`, &awaited))
	assert.Equal(t, "ok", awaited.Value)

	var status struct {
		State interaction.State `json:"state"`
	}
	require.NoError(t, f.call(t, "interaction_status", "", `{"faceId":"`+faceID+`","interactionId":"`+started.InteractionID+`"}`, &status))
	assert.Equal(t, interaction.StateUnknown, status.State)

	err := f.call(t, "interaction_await", "", `{"faceId":"`+faceID+`","interactionId":"`+started.InteractionID+`"}`, nil)
	assert.ErrorIs(t, err, interaction.ErrUnknown)

	var detail face.Detail
	require.NoError(t, f.call(t, "read_face", "", `{"faceId":"`+faceID+`"}`, &detail))
	assert.Equal(t, 1, detail.Status.Interactions)

	var destroyed map[string]any
	require.NoError(t, f.call(t, "destroy_face", "", `{"faceId":"`+faceID+`"}`, &destroyed))
	assert.Equal(t, map[string]any{"deleted": true}, destroyed)

	err = f.call(t, "read_face", "", `{"faceId":"`+faceID+`"}`, nil)
	assert.ErrorIs(t, err, face.ErrFaceNotFound)
}

func TestScopeSuppliesFaceID(t *testing.T) {
	f := newFixture(t)
	faceID := f.createTestFace(t)

	var started struct {
		InteractionID string `json:"interactionId"`
	}
	require.NoError(t, f.call(t, "interaction_start", faceID, `{"input":"scoped"}`, &started))

	var cancelled interaction.CancelResult
	require.NoError(t, f.call(t, "interaction_cancel", faceID, `{"interactionId":"nope"}`, &cancelled))
	assert.Equal(t, interaction.CancelResult{}, cancelled)

	var detail face.Detail
	require.NoError(t, f.call(t, "read_face", faceID, `{}`, &detail))
	assert.Equal(t, faceID, detail.ID)
}

func TestInputValidation(t *testing.T) {
	f := newFixture(t)

	assert.Error(t, f.call(t, "create_face", "", `{}`, nil))
	assert.Error(t, f.call(t, "create_face", "", `not json`, nil))
	assert.Error(t, f.call(t, "read_face", "", `{}`, nil))
	assert.Error(t, f.call(t, "destroy_face", "", `{}`, nil))
	assert.Error(t, f.call(t, "interaction_await", "self", `{}`, nil))

	err := f.call(t, "create_face", "", `{"faceKindId":"nope"}`, nil)
	assert.ErrorIs(t, err, face.ErrUnknownKind)
}

func TestSelfProtection(t *testing.T) {
	f := newFixture(t)

	err := f.call(t, "destroy_face", "", `{"faceId":"self"}`, nil)
	assert.True(t, errors.Is(err, face.ErrProtected))

	err = f.call(t, "create_face", "", `{"faceKindId":"self"}`, nil)
	assert.ErrorIs(t, err, face.ErrProtected)

	err = f.call(t, "interaction_start", "", `{"faceId":"self","input":"x"}`, nil)
	assert.ErrorIs(t, err, face.ErrProtected)
}

func TestFaceEvents(t *testing.T) {
	f := newFixture(t)
	faceID := f.createTestFace(t)
	require.NoError(t, f.call(t, "destroy_face", "", `{"faceId":"`+faceID+`"}`, nil))

	var out struct {
		Events []store.FaceEvent `json:"events"`
	}
	require.NoError(t, f.call(t, "face_events", faceID, `{}`, &out))
	require.Len(t, out.Events, 2)
	assert.Equal(t, face.EventDestroyed, out.Events[0].Type)

	require.NoError(t, f.call(t, "face_events", "", `{"faceId":"missing"}`, &out))
	assert.Empty(t, out.Events)
}
