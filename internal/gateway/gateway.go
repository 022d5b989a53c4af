// ABOUTME: Gateway orchestrator that coordinates gRPC and HTTP servers around the face registry
// ABOUTME: Owns the idle trigger, ledger store, tool packs, and listener lifecycle

package gateway

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"golang.org/x/sync/errgroup"
	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"
	"tailscale.com/tsnet"

	"github.com/2389/face-gateway/internal/builtins"
	"github.com/2389/face-gateway/internal/config"
	"github.com/2389/face-gateway/internal/face"
	"github.com/2389/face-gateway/internal/idle"
	"github.com/2389/face-gateway/internal/kinds"
	"github.com/2389/face-gateway/internal/mcp"
	"github.com/2389/face-gateway/internal/packs"
	"github.com/2389/face-gateway/internal/rpc"
	"github.com/2389/face-gateway/internal/store"
)

// Gateway orchestrates the face-gateway server components.
type Gateway struct {
	config      *config.Config
	store       store.Store
	registry    *face.Registry
	trigger     *idle.Trigger
	grpcServer  *grpc.Server
	httpServer  *http.Server
	tsnetServer *tsnet.Server
	logger      *slog.Logger

	packRegistry *packs.Registry
	packRouter   *packs.Router
	mcpServer    *mcp.Server

	startedAt time.Time
}

// initStore creates the ledger store. FACE_DB_PATH overrides the config.
func initStore(cfg *config.Config) (store.Store, error) {
	dbPath := cfg.Database.Path
	if envPath := os.Getenv("FACE_DB_PATH"); envPath != "" {
		dbPath = envPath
	}
	if dbPath != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}
	s, err := store.NewSQLiteStore(dbPath)
	if err != nil {
		return nil, fmt.Errorf("initializing store: %w", err)
	}
	return s, nil
}

// selectKinds resolves the enabled face kinds from config and FACE_KINDS.
func selectKinds(cfg *config.Config) ([]face.Kind, error) {
	enabled, err := cfg.EnabledKinds(kinds.Names())
	if err != nil {
		return nil, err
	}
	return kinds.Select(enabled)
}

// createGRPCServer creates the gRPC server. Every unary call is tracked by
// the idle trigger.
func createGRPCServer(trigger *idle.Trigger) *grpc.Server {
	return grpc.NewServer(
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:    15 * time.Second,
			Timeout: 5 * time.Second,
		}),
		grpc.KeepaliveEnforcementPolicy(keepalive.EnforcementPolicy{
			MinTime:             5 * time.Second,
			PermitWithoutStream: true,
		}),
		grpc.ChainUnaryInterceptor(idleUnaryInterceptor(trigger)),
	)
}

// registerBuiltinPacks registers all builtin packs with the registry.
func registerBuiltinPacks(registry *packs.Registry, faces *face.Registry, s store.Store) error {
	if err := registry.RegisterBuiltinPack(builtins.FacesPack(faces)); err != nil {
		return fmt.Errorf("registering faces pack: %w", err)
	}
	if err := registry.RegisterBuiltinPack(builtins.InteractionPack(faces)); err != nil {
		return fmt.Errorf("registering interaction pack: %w", err)
	}
	if err := registry.RegisterBuiltinPack(builtins.LedgerPack(s)); err != nil {
		return fmt.Errorf("registering ledger pack: %w", err)
	}
	return nil
}

// listenPort extracts the port of a listen address, or fallback.
func listenPort(addr string, fallback int) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return fallback
	}
	port, err := strconv.Atoi(portStr)
	if err != nil || port == 0 {
		return fallback
	}
	return port
}

// determineHostname picks the host used in view URLs.
func determineHostname(cfg *config.Config) string {
	if cfg.Faces.Hostname != "" {
		return cfg.Faces.Hostname
	}
	if cfg.Tailscale.Enabled {
		return cfg.Tailscale.Hostname
	}
	host, _, err := net.SplitHostPort(cfg.Server.HTTPAddr)
	if err != nil || host == "" || host == "0.0.0.0" || host == "::" {
		return "localhost"
	}
	return host
}

// selfViews are the endpoints the gateway itself publishes.
func selfViews(cfg *config.Config) []face.View {
	httpPort, grpcPort := tailnetHTTPPort, tailnetGRPCPort
	if !cfg.Tailscale.Enabled {
		httpPort = listenPort(cfg.Server.HTTPAddr, 0)
		grpcPort = listenPort(cfg.Server.GRPCAddr, 0)
	}
	var views []face.View
	if httpPort != 0 {
		views = append(views, face.View{Name: "mcp", Protocol: "http", Port: httpPort, Path: "/mcp"})
	}
	if grpcPort != 0 {
		views = append(views, face.View{Name: "grpc", Protocol: "grpc", Port: grpcPort})
	}
	return views
}

// New creates a new Gateway instance with the given configuration. The
// idle timer starts counting once every component is built.
func New(cfg *config.Config, logger *slog.Logger) (*Gateway, error) {
	enabled, err := selectKinds(cfg)
	if err != nil {
		return nil, err
	}

	s, err := initStore(cfg)
	if err != nil {
		return nil, err
	}

	gw := &Gateway{
		config:    cfg,
		store:     s,
		logger:    logger.With("component", "gateway"),
		startedAt: time.Now(),
	}
	if err := gw.build(enabled, logger); err != nil {
		_ = s.Close()
		return nil, err
	}

	gw.trigger = idle.New(cfg.Idle.Timeout, idle.WithLogger(logger.With("component", "idle")))

	gw.grpcServer = createGRPCServer(gw.trigger)
	rpc.RegisterFaceServiceServer(gw.grpcServer, rpc.NewServer(gw.registry, logger.With("component", "grpc")))

	mux := http.NewServeMux()
	mux.HandleFunc("/health", gw.handleHealth)
	mux.HandleFunc("/health/ready", gw.handleReady)
	gw.mcpServer.RegisterRoutes(mux)

	gw.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           idleMiddleware(gw.trigger, mux),
		ReadHeaderTimeout: 10 * time.Second,
	}

	return gw, nil
}

// build creates the components that can fail: the face registry, the tool
// packs and the MCP server.
func (g *Gateway) build(enabled []face.Kind, logger *slog.Logger) error {
	registry, err := face.NewRegistry(face.RegistryConfig{
		Kinds:       enabled,
		BaseDir:     g.config.Faces.BaseDir,
		Hostname:    determineHostname(g.config),
		SelfViews:   selfViews(g.config),
		SelfDetails: g.selfDetails,
		Ledger:      g.store,
		Logger:      logger.With("component", "faces"),
	})
	if err != nil {
		return fmt.Errorf("creating face registry: %w", err)
	}
	g.registry = registry

	g.packRegistry = packs.NewRegistry(logger.With("component", "pack-registry"))
	g.packRouter = packs.NewRouter(packs.RouterConfig{
		Registry: g.packRegistry,
		Logger:   logger.With("component", "pack-router"),
	})
	if err := registerBuiltinPacks(g.packRegistry, registry, g.store); err != nil {
		return err
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Registry:     g.packRegistry,
		Router:       g.packRouter,
		Logger:       logger.With("component", "mcp"),
		Capabilities: []string{builtins.CapabilityFaces},
		FaceExists: func(id string) bool {
			_, ok := registry.KindOf(id)
			return ok
		},
		ServerName: "face-gateway",
	})
	if err != nil {
		return fmt.Errorf("creating MCP server: %w", err)
	}
	g.mcpServer = mcpServer
	return nil
}

// Registry exposes the face registry.
func (g *Gateway) Registry() *face.Registry {
	return g.registry
}

// Trigger exposes the idle trigger.
func (g *Gateway) Trigger() *idle.Trigger {
	return g.trigger
}

// selfDetails feeds the self face status.
func (g *Gateway) selfDetails() map[string]any {
	return map[string]any{
		"uptime":         time.Since(g.startedAt).Round(time.Second).String(),
		"activeRequests": g.trigger.Outstanding(),
		"idleTimeout":    g.trigger.Timeout().String(),
		"mcpSessions":    g.mcpServer.SessionCount(),
		"tools":          g.packRouter.Stats(),
	}
}

// shutdownTimeout bounds Shutdown when Run stops the gateway.
const shutdownTimeout = 5 * time.Second

// Run serves until ctx is cancelled, the idle trigger fires, or a server
// fails, then shuts everything down. Returns nil on a clean stop.
func (g *Gateway) Run(ctx context.Context) error {
	ls, err := g.listen(ctx)
	if err != nil {
		return err
	}

	grp, gctx := errgroup.WithContext(ctx)
	grp.Go(func() error {
		g.logger.Info("gRPC server listening", "addr", ls.grpc.Addr().String())
		// ErrServerStopped means Shutdown won the race to the server.
		if err := g.grpcServer.Serve(ls.grpc); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
			return fmt.Errorf("gRPC server: %w", err)
		}
		return nil
	})
	grp.Go(func() error {
		g.logger.Info("HTTP server listening", "addr", ls.http.Addr().String())
		if err := g.httpServer.Serve(ls.http); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})
	grp.Go(func() error {
		select {
		case <-gctx.Done():
			if ctx.Err() != nil {
				g.logger.Info("context canceled, shutting down")
			}
		case <-g.trigger.Done():
			g.logger.Info("idle, shutting down", "timeout", g.trigger.Timeout())
		}
		sctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()
		return g.Shutdown(sctx)
	})
	return grp.Wait()
}

// Shutdown stops both servers, destroys every live face and releases the
// store and tailnet node. Every step runs; failures are joined.
func (g *Gateway) Shutdown(ctx context.Context) error {
	g.logger.Info("shutting down gateway")

	// Late callers see the process as going away.
	g.trigger.Abort()

	steps := []struct {
		name string
		run  func() error
	}{
		{"http", func() error { return g.httpServer.Shutdown(ctx) }},
		{"grpc", func() error { g.stopGRPC(ctx); return nil }},
		{"faces", func() error { return g.registry.Close(ctx) }},
		{"tailscale", func() error {
			if g.tsnetServer == nil {
				return nil
			}
			return g.tsnetServer.Close()
		}},
		{"store", g.store.Close},
		{"packs", func() error { g.packRegistry.Close(); return nil }},
	}

	var errs []error
	for _, step := range steps {
		if err := step.run(); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", step.name, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown: %w", errors.Join(errs...))
	}
	return nil
}

// stopGRPC drains in-flight calls, or cuts them off when ctx ends first.
func (g *Gateway) stopGRPC(ctx context.Context) {
	done := make(chan struct{})
	go func() {
		g.grpcServer.GracefulStop()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		g.grpcServer.Stop()
	}
}

// handleHealth returns 200 OK if the server is alive.
func (g *Gateway) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("OK"))
}

// handleReady returns 200 OK until the idle trigger has fired.
func (g *Gateway) handleReady(w http.ResponseWriter, r *http.Request) {
	select {
	case <-g.trigger.Done():
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte("shutting down"))
		return
	default:
	}
	faces := g.registry.Len()
	w.WriteHeader(http.StatusOK)
	_, _ = fmt.Fprintf(w, "ready (%d faces)", faces)
}
