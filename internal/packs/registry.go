// ABOUTME: Thread-safe registry of builtin tool packs.
// ABOUTME: Rejects malformed tools and name collisions, filters tools by capability.

package packs

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sort"
	"strings"
	"sync"
)

var (
	// ErrToolCollision indicates a tool name already exists from another pack.
	ErrToolCollision = errors.New("tool name collision")

	// ErrPackAlreadyRegistered indicates a pack with the same ID is already registered.
	ErrPackAlreadyRegistered = errors.New("pack already registered")

	// ErrInvalidTool is returned for tools without a name, handler or object schema.
	ErrInvalidTool = errors.New("invalid tool")
)

type entry struct {
	tool *BuiltinTool
	pack string
}

// Registry maintains the registered builtin packs and their tools.
type Registry struct {
	mu     sync.RWMutex
	packs  map[string][]string // pack ID -> tool names
	tools  map[string]entry
	logger *slog.Logger
}

func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.Default()
	}
	return &Registry{
		packs:  make(map[string][]string),
		tools:  make(map[string]entry),
		logger: logger.With("component", "packs"),
	}
}

func validateTool(t *BuiltinTool) error {
	if t == nil || t.Definition == nil || t.Definition.Name == "" {
		return fmt.Errorf("%w: missing name", ErrInvalidTool)
	}
	name := t.Definition.Name
	if t.Handler == nil {
		return fmt.Errorf("%w: %s has no handler", ErrInvalidTool, name)
	}
	var schema map[string]any
	if err := json.Unmarshal([]byte(t.Definition.InputSchemaJSON), &schema); err != nil {
		return fmt.Errorf("%w: %s input schema is not a JSON object: %v", ErrInvalidTool, name, err)
	}
	return nil
}

// RegisterBuiltinPack adds every tool of pack, or none of them.
func (r *Registry) RegisterBuiltinPack(pack *BuiltinPack) error {
	names := make([]string, 0, len(pack.Tools))
	for _, t := range pack.Tools {
		if err := validateTool(t); err != nil {
			return fmt.Errorf("pack %s: %w", pack.ID, err)
		}
		if slices.Contains(names, t.Definition.Name) {
			return fmt.Errorf("%w: %q listed twice in pack %s", ErrToolCollision, t.Definition.Name, pack.ID)
		}
		names = append(names, t.Definition.Name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.packs[pack.ID]; exists {
		return fmt.Errorf("%w: %s", ErrPackAlreadyRegistered, pack.ID)
	}
	for _, name := range names {
		if e, exists := r.tools[name]; exists {
			return fmt.Errorf("%w: %q already registered by pack %s", ErrToolCollision, name, e.pack)
		}
	}

	for _, t := range pack.Tools {
		r.tools[t.Definition.Name] = entry{tool: t, pack: pack.ID}
	}
	r.packs[pack.ID] = names

	r.logger.Info("pack registered", "pack_id", pack.ID, "tools", strings.Join(names, ","))
	return nil
}

// GetBuiltinTool returns a builtin tool by name, or nil if not found.
func (r *Registry) GetBuiltinTool(name string) *BuiltinTool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.tools[name].tool
}

// Packs returns the registered pack IDs, sorted.
func (r *Registry) Packs() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ids := make([]string, 0, len(r.packs))
	for id := range r.packs {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// PackTools returns the tool names of one pack in registration order.
func (r *Registry) PackTools(id string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.packs[id])
}

// GetAllTools returns every tool definition sorted by name.
func (r *Registry) GetAllTools() []*ToolDefinition {
	return r.filter(func(*ToolDefinition) bool { return true })
}

// GetToolsForCapabilities returns the tools whose every required capability
// is in caps. Tools without requirements are always included.
func (r *Registry) GetToolsForCapabilities(caps []string) []*ToolDefinition {
	return r.filter(func(d *ToolDefinition) bool {
		for _, c := range d.RequiredCapabilities {
			if !slices.Contains(caps, c) {
				return false
			}
		}
		return true
	})
}

func (r *Registry) filter(keep func(*ToolDefinition) bool) []*ToolDefinition {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var defs []*ToolDefinition
	for _, e := range r.tools {
		if keep(e.tool.Definition) {
			defs = append(defs, e.tool.Definition)
		}
	}
	sort.Slice(defs, func(i, j int) bool { return defs[i].Name < defs[j].Name })
	return defs
}

// Close forgets every pack. Called during shutdown.
func (r *Registry) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()

	n := len(r.tools)
	clear(r.packs)
	clear(r.tools)
	r.logger.Info("registry closed", "tools_cleared", n)
}
