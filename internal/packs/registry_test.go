// ABOUTME: Tests for the pack registry including registration, collision detection, and capability filtering.
// ABOUTME: Validates thread-safe operations and tool lookup functionality.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"testing"
)

func okHandler(ctx context.Context, scope string, input json.RawMessage) (json.RawMessage, error) {
	return json.RawMessage(`{"ok":true}`), nil
}

// createTestTool creates a builtin tool for testing.
func createTestTool(name string, requiredCaps ...string) *BuiltinTool {
	return &BuiltinTool{
		Definition: &ToolDefinition{
			Name:                 name,
			Description:          name + " description",
			InputSchemaJSON:      `{"type": "object"}`,
			RequiredCapabilities: requiredCaps,
		},
		Handler: okHandler,
	}
}

func TestRegistryRegisterBuiltinPack(t *testing.T) {
	t.Run("registers pack successfully", func(t *testing.T) {
		registry := NewRegistry(slog.Default())
		err := registry.RegisterBuiltinPack(&BuiltinPack{
			ID:    "builtin:faces",
			Tools: []*BuiltinTool{createTestTool("tool-a"), createTestTool("tool-b")},
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if registry.GetBuiltinTool("tool-a") == nil {
			t.Error("expected tool-a to be registered")
		}
		tool := registry.GetBuiltinTool("tool-b")
		if tool == nil || tool.Definition.Name != "tool-b" {
			t.Fatalf("expected to find tool-b, got %+v", tool)
		}

		packs := registry.Packs()
		if len(packs) != 1 || packs[0] != "builtin:faces" {
			t.Errorf("unexpected pack listing: %v", packs)
		}
		if names := registry.PackTools("builtin:faces"); fmt.Sprint(names) != "[tool-a tool-b]" {
			t.Errorf("unexpected pack tools: %v", names)
		}
	})

	t.Run("rejects duplicate pack ID", func(t *testing.T) {
		registry := NewRegistry(slog.Default())
		if err := registry.RegisterBuiltinPack(&BuiltinPack{ID: "p", Tools: []*BuiltinTool{createTestTool("a")}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err := registry.RegisterBuiltinPack(&BuiltinPack{ID: "p", Tools: []*BuiltinTool{createTestTool("b")}})
		if !errors.Is(err, ErrPackAlreadyRegistered) {
			t.Errorf("expected ErrPackAlreadyRegistered, got %v", err)
		}
	})

	t.Run("rejects tool collision across packs", func(t *testing.T) {
		registry := NewRegistry(slog.Default())
		if err := registry.RegisterBuiltinPack(&BuiltinPack{ID: "p1", Tools: []*BuiltinTool{createTestTool("shared")}}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		err := registry.RegisterBuiltinPack(&BuiltinPack{ID: "p2", Tools: []*BuiltinTool{createTestTool("other"), createTestTool("shared")}})
		if !errors.Is(err, ErrToolCollision) {
			t.Errorf("expected ErrToolCollision, got %v", err)
		}
		if registry.GetBuiltinTool("other") != nil {
			t.Error("failed registration must not leave partial tools behind")
		}
	})

	t.Run("rejects malformed tools", func(t *testing.T) {
		registry := NewRegistry(slog.Default())

		noHandler := createTestTool("no-handler")
		noHandler.Handler = nil
		badSchema := createTestTool("bad-schema")
		badSchema.Definition.InputSchemaJSON = `"string"`

		for _, tool := range []*BuiltinTool{createTestTool(""), noHandler, badSchema} {
			err := registry.RegisterBuiltinPack(&BuiltinPack{ID: "p", Tools: []*BuiltinTool{tool}})
			if !errors.Is(err, ErrInvalidTool) {
				t.Errorf("expected ErrInvalidTool, got %v", err)
			}
		}
		if len(registry.Packs()) != 0 {
			t.Error("rejected packs must not be registered")
		}
	})

	t.Run("rejects duplicate tool within pack", func(t *testing.T) {
		registry := NewRegistry(slog.Default())
		err := registry.RegisterBuiltinPack(&BuiltinPack{ID: "p", Tools: []*BuiltinTool{createTestTool("x"), createTestTool("x")}})
		if !errors.Is(err, ErrToolCollision) {
			t.Errorf("expected ErrToolCollision, got %v", err)
		}
	})
}

func TestRegistryGetToolsForCapabilities(t *testing.T) {
	registry := NewRegistry(slog.Default())
	err := registry.RegisterBuiltinPack(&BuiltinPack{
		ID: "p",
		Tools: []*BuiltinTool{
			createTestTool("open"),
			createTestTool("needs-faces", "faces"),
			createTestTool("needs-both", "faces", "admin"),
		},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	tests := []struct {
		caps []string
		want []string
	}{
		{nil, []string{"open"}},
		{[]string{"faces"}, []string{"needs-faces", "open"}},
		{[]string{"faces", "admin"}, []string{"needs-both", "needs-faces", "open"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprintf("%v", tt.caps), func(t *testing.T) {
			tools := registry.GetToolsForCapabilities(tt.caps)
			var names []string
			for _, d := range tools {
				names = append(names, d.Name)
			}
			if fmt.Sprint(names) != fmt.Sprint(tt.want) {
				t.Errorf("got %v, want %v", names, tt.want)
			}
		})
	}

	if all := registry.GetAllTools(); len(all) != 3 || all[0].Name != "needs-both" {
		t.Errorf("GetAllTools should return all tools sorted, got %d", len(all))
	}
}

func TestRegistryConcurrentAccess(t *testing.T) {
	registry := NewRegistry(slog.Default())
	var wg sync.WaitGroup

	for i := 0; i < 20; i++ {
		wg.Add(2)
		go func(i int) {
			defer wg.Done()
			_ = registry.RegisterBuiltinPack(&BuiltinPack{
				ID:    fmt.Sprintf("pack-%d", i),
				Tools: []*BuiltinTool{createTestTool(fmt.Sprintf("tool-%d", i))},
			})
		}(i)
		go func() {
			defer wg.Done()
			_ = registry.GetAllTools()
		}()
	}
	wg.Wait()

	if got := len(registry.GetAllTools()); got != 20 {
		t.Errorf("expected 20 tools, got %d", got)
	}
}

func TestRegistryClose(t *testing.T) {
	registry := NewRegistry(slog.Default())
	_ = registry.RegisterBuiltinPack(&BuiltinPack{ID: "p", Tools: []*BuiltinTool{createTestTool("a")}})

	registry.Close()
	if registry.GetBuiltinTool("a") != nil {
		t.Error("expected registry to be empty after Close")
	}
	if len(registry.Packs()) != 0 {
		t.Error("expected no packs after Close")
	}
}
