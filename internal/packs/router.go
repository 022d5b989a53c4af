// ABOUTME: Runs builtin tools by name under a per-tool timeout.
// ABOUTME: Handler failures become tool results; lookup and context failures are errors.

package packs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"
)

// ErrToolNotFound indicates the requested tool is not registered.
var ErrToolNotFound = errors.New("tool not found")

// DefaultTimeout is the default timeout for tool execution.
const DefaultTimeout = 30 * time.Second

// ToolResult is the outcome of one tool call. Exactly one of OutputJSON
// and Error is set.
type ToolResult struct {
	RequestID  string
	OutputJSON string
	Error      string

	// Err is the handler's error, kept for callers that classify failures.
	Err      error
	Duration time.Duration
}

// RouterStats are cumulative counters since the router was created.
type RouterStats struct {
	Calls    int64 `json:"calls"`
	Failures int64 `json:"failures"`
	InFlight int64 `json:"inFlight"`
}

type Router struct {
	registry *Registry
	logger   *slog.Logger
	timeout  time.Duration

	inFlight atomic.Int64
	calls    atomic.Int64
	failures atomic.Int64
}

type RouterConfig struct {
	Registry *Registry
	Logger   *slog.Logger
	Timeout  time.Duration
}

func NewRouter(cfg RouterConfig) *Router {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{
		registry: cfg.Registry,
		logger:   logger.With("component", "router"),
		timeout:  timeout,
	}
}

// RouteToolCall runs a builtin tool. Returns ErrToolNotFound for unknown
// tools and the context error if the call timed out or was cancelled.
func (r *Router) RouteToolCall(ctx context.Context, toolName, inputJSON, requestID, scope string) (*ToolResult, error) {
	tool := r.registry.GetBuiltinTool(toolName)
	if tool == nil {
		return nil, fmt.Errorf("%w: %s", ErrToolNotFound, toolName)
	}

	timeout := r.timeout
	if tool.Definition.Timeout > 0 {
		timeout = tool.Definition.Timeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	logger := r.logger.With("tool", toolName, "request_id", requestID, "scope", scope)

	if inputJSON == "" {
		inputJSON = "{}"
	}

	r.calls.Add(1)
	r.inFlight.Add(1)
	start := time.Now()
	out, err := r.invoke(ctx, tool, scope, json.RawMessage(inputJSON))
	elapsed := time.Since(start)
	r.inFlight.Add(-1)

	if err != nil {
		r.failures.Add(1)
		if ctxErr := ctx.Err(); ctxErr != nil && errors.Is(err, ctxErr) {
			logger.Warn("tool call abandoned", "timeout", timeout, "error", err)
			return nil, ctxErr
		}
		logger.Info("tool failed", "duration", elapsed, "error", err)
		return &ToolResult{RequestID: requestID, Error: err.Error(), Err: err, Duration: elapsed}, nil
	}

	logger.Debug("tool finished", "duration", elapsed)
	return &ToolResult{RequestID: requestID, OutputJSON: string(out), Duration: elapsed}, nil
}

func (r *Router) invoke(ctx context.Context, tool *BuiltinTool, scope string, input json.RawMessage) (out json.RawMessage, err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("tool panicked: %v", p)
		}
	}()
	return tool.Handler(ctx, scope, input)
}

// GetToolDefinition returns nil if the tool is not registered.
func (r *Router) GetToolDefinition(toolName string) *ToolDefinition {
	if tool := r.registry.GetBuiltinTool(toolName); tool != nil {
		return tool.Definition
	}
	return nil
}

// InFlight returns the number of tool calls currently executing.
func (r *Router) InFlight() int64 {
	return r.inFlight.Load()
}

func (r *Router) Stats() RouterStats {
	return RouterStats{
		Calls:    r.calls.Load(),
		Failures: r.failures.Load(),
		InFlight: r.inFlight.Load(),
	}
}
