// ABOUTME: MCP Streamable HTTP endpoint serving the face tool packs.
// ABOUTME: Routes initialize, ping, tools/list and tools/call through a method table.

package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/2389/face-gateway/internal/packs"
)

// ProtocolVersion is advertised in initialize results.
const ProtocolVersion = "2025-11-25"

var knownVersions = map[string]bool{
	"2025-03-26":    true,
	"2025-06-18":    true,
	ProtocolVersion: true,
}

// MaxBodyBytes bounds a single POSTed message.
const MaxBodyBytes = 1 << 20

// DefaultSessionTTL is how long an unused session survives.
const DefaultSessionTTL = time.Hour

const (
	sessionHeader = "Mcp-Session-Id"
	versionHeader = "Mcp-Protocol-Version"
)

// Config holds configuration for the MCP server.
type Config struct {
	Registry *packs.Registry
	Router   *packs.Router
	Logger   *slog.Logger

	// Capabilities granted to every session.
	Capabilities []string

	// FaceExists validates the face id of scoped endpoints. Nil accepts any id.
	FaceExists func(id string) bool

	ServerName string

	// SessionTTL drops sessions unused for this long. Zero means DefaultSessionTTL,
	// negative keeps sessions until deleted.
	SessionTTL time.Duration
}

type method func(ctx context.Context, sess *session, params json.RawMessage) (any, *RPCError)

// Server answers MCP requests for one tool registry.
type Server struct {
	registry   *packs.Registry
	router     *packs.Router
	logger     *slog.Logger
	caps       []string
	faceExists func(string) bool
	name       string
	sessions   *sessions
	methods    map[string]method
}

// NewServer creates a new MCP server with the given configuration.
func NewServer(cfg Config) (*Server, error) {
	if cfg.Registry == nil {
		return nil, errors.New("registry is required")
	}
	if cfg.Router == nil {
		return nil, errors.New("router is required")
	}

	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	name := cfg.ServerName
	if name == "" {
		name = "face-gateway"
	}
	ttl := cfg.SessionTTL
	if ttl == 0 {
		ttl = DefaultSessionTTL
	}

	s := &Server{
		registry:   cfg.Registry,
		router:     cfg.Router,
		logger:     logger.With("component", "mcp"),
		caps:       append([]string(nil), cfg.Capabilities...),
		faceExists: cfg.FaceExists,
		name:       name,
		sessions:   newSessions(ttl, time.Now),
	}
	s.methods = map[string]method{
		"ping":       func(context.Context, *session, json.RawMessage) (any, *RPCError) { return struct{}{}, nil },
		"tools/list": s.listTools,
		"tools/call": s.callTool,
	}
	return s, nil
}

// RegisterRoutes mounts the endpoints. /mcp/faces/{faceID} makes that face
// the default target of face and interaction tools.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /mcp", s.serveRPC)
	mux.HandleFunc("POST /mcp/faces/{faceID}", s.serveRPC)
	mux.HandleFunc("DELETE /mcp", s.endSession)
	mux.HandleFunc("DELETE /mcp/faces/{faceID}", s.endSession)
}

// SessionCount returns the number of open sessions.
func (s *Server) SessionCount() int {
	return s.sessions.len()
}

func (s *Server) endSession(w http.ResponseWriter, r *http.Request) {
	id := r.Header.Get(sessionHeader)
	if id == "" {
		http.Error(w, "missing "+sessionHeader, http.StatusBadRequest)
		return
	}
	if !s.sessions.close(id) {
		http.NotFound(w, r)
		return
	}
	s.logger.Info("session closed", "session_id", id)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) serveRPC(w http.ResponseWriter, r *http.Request) {
	scope := r.PathValue("faceID")

	body, err := io.ReadAll(io.LimitReader(r.Body, MaxBodyBytes+1))
	if err != nil {
		writeResponse(w, s.logger, nil, nil, rpcError(CodeParseError, "reading body: %v", err))
		return
	}
	if len(body) > MaxBodyBytes {
		writeResponse(w, s.logger, nil, nil, rpcError(CodeInvalidRequest, "message exceeds %d bytes", MaxBodyBytes))
		return
	}

	var req Request
	if err := json.Unmarshal(body, &req); err != nil {
		writeResponse(w, s.logger, nil, nil, rpcError(CodeParseError, "invalid JSON"))
		return
	}
	if req.JSONRPC != jsonrpcVersion {
		writeResponse(w, s.logger, req.ID, nil, rpcError(CodeInvalidRequest, "jsonrpc must be %q", jsonrpcVersion))
		return
	}

	if req.Method == "initialize" {
		s.initialize(w, r, &req, scope)
		return
	}

	if v := r.Header.Get(versionHeader); v != "" && !knownVersions[v] {
		http.Error(w, "unsupported "+versionHeader, http.StatusBadRequest)
		return
	}
	id := r.Header.Get(sessionHeader)
	if id == "" {
		http.Error(w, "missing "+sessionHeader, http.StatusBadRequest)
		return
	}
	sess, ok := s.sessions.lookup(id)
	if !ok {
		// Unknown or expired: the client has to initialize again.
		http.NotFound(w, r)
		return
	}

	if req.notification() {
		s.logger.Debug("notification", "method", req.Method, "session_id", id)
		w.WriteHeader(http.StatusAccepted)
		return
	}

	m, ok := s.methods[req.Method]
	if !ok {
		writeResponse(w, s.logger, req.ID, nil, rpcError(CodeMethodNotFound, "method not found: %s", req.Method))
		return
	}
	result, rerr := m(r.Context(), sess, req.Params)
	writeResponse(w, s.logger, req.ID, result, rerr)
}

func (s *Server) initialize(w http.ResponseWriter, r *http.Request, req *Request, scope string) {
	if scope != "" && s.faceExists != nil && !s.faceExists(scope) {
		http.Error(w, "unknown face", http.StatusNotFound)
		return
	}

	sess := s.sessions.open(ProtocolVersion, scope, s.caps)
	s.logger.Info("session opened", "session_id", sess.id, "scope", scope)

	w.Header().Set(sessionHeader, sess.id)
	writeResponse(w, s.logger, req.ID, map[string]any{
		"protocolVersion": ProtocolVersion,
		"capabilities":    map[string]any{"tools": map[string]any{}},
		"serverInfo":      map[string]any{"name": s.name, "version": "1.0.0"},
	}, nil)
}

func (s *Server) listTools(_ context.Context, sess *session, _ json.RawMessage) (any, *RPCError) {
	caps := make([]string, 0, len(sess.caps))
	for c := range sess.caps {
		caps = append(caps, c)
	}
	defs := s.registry.GetToolsForCapabilities(caps)

	list := ToolList{Tools: make([]Tool, 0, len(defs))}
	for _, d := range defs {
		list.Tools = append(list.Tools, Tool{
			Name:        d.Name,
			Description: d.Description,
			InputSchema: json.RawMessage(d.InputSchemaJSON),
		})
	}
	return list, nil
}

func (s *Server) callTool(ctx context.Context, sess *session, raw json.RawMessage) (any, *RPCError) {
	var params CallParams
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &params); err != nil {
			return nil, rpcError(CodeInvalidParams, "invalid params")
		}
	}
	if params.Name == "" {
		return nil, rpcError(CodeInvalidParams, "tool name is required")
	}

	def := s.router.GetToolDefinition(params.Name)
	if def == nil {
		return nil, rpcError(CodeInvalidParams, "tool not found: %s", params.Name)
	}
	if !sess.allows(def.RequiredCapabilities) {
		return nil, rpcError(CodeInvalidRequest, "session lacks capabilities for %s", params.Name)
	}

	input := string(params.Arguments)
	if input == "" || input == "null" {
		input = "{}"
	}
	requestID := uuid.NewString()
	logger := s.logger.With("tool", params.Name, "request_id", requestID, "scope", sess.scope)

	res, err := s.router.RouteToolCall(ctx, params.Name, input, requestID, sess.scope)
	switch {
	case err == nil:
	case errors.Is(err, packs.ErrToolNotFound):
		return nil, rpcError(CodeInvalidParams, "tool not found: %s", params.Name)
	case errors.Is(err, context.DeadlineExceeded):
		logger.Warn("tool timed out")
		return nil, rpcError(CodeInternalError, "tool execution timed out")
	case errors.Is(err, context.Canceled):
		return nil, rpcError(CodeInternalError, "request cancelled")
	default:
		logger.Warn("tool failed", "error", err)
		return nil, rpcError(CodeInternalError, "tool execution failed")
	}

	if res.Error != "" {
		logger.Debug("tool returned error", "error", res.Error)
		return textResult(res.Error, true), nil
	}
	return textResult(res.OutputJSON, false), nil
}
