// ABOUTME: Tool definitions and in-process tool handlers grouped into packs.
// ABOUTME: Every tool exposed over MCP is a builtin tool registered here.

package packs

import (
	"context"
	"encoding/json"
	"time"
)

// ToolDefinition describes a tool to callers.
type ToolDefinition struct {
	Name                 string
	Description          string
	InputSchemaJSON      string
	RequiredCapabilities []string

	// Timeout overrides the router default when positive.
	Timeout time.Duration
}

// ToolHandler executes a built-in tool.
// scope is the face id bound by the caller's endpoint, or empty.
type ToolHandler func(ctx context.Context, scope string, input json.RawMessage) (json.RawMessage, error)

type BuiltinTool struct {
	Definition *ToolDefinition
	Handler    ToolHandler
}

// BuiltinPack is a named group of tools registered together.
type BuiltinPack struct {
	ID    string
	Tools []*BuiltinTool
}
