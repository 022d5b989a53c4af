// ABOUTME: Tests for the Gateway orchestrator: lifecycle, health, idle shutdown, and the face service
// ABOUTME: Runs real listeners on loopback ports with an in-memory ledger

package gateway

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"

	"github.com/2389/face-gateway/internal/config"
	"github.com/2389/face-gateway/internal/face"
	"github.com/2389/face-gateway/internal/idle"
	"github.com/2389/face-gateway/internal/rpc"
	"github.com/2389/face-gateway/internal/store"
)

// freeAddr finds an available loopback address.
func freeAddr(t *testing.T) string {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := ln.Addr().String()
	require.NoError(t, ln.Close())
	return addr
}

// testConfig creates a minimal config for testing with available ports.
func testConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv(config.KindsEnv, "")
	os.Unsetenv(config.KindsEnv)
	t.Setenv(face.HomeEnv, "")
	t.Setenv("FACE_DB_PATH", "")

	return &config.Config{
		Server: config.ServerConfig{
			GRPCAddr: freeAddr(t),
			HTTPAddr: freeAddr(t),
		},
		Faces: config.FacesConfig{
			Kinds:   []string{"test"},
			BaseDir: t.TempDir(),
		},
		Database: config.DatabaseConfig{
			Path: ":memory:",
		},
	}
}

// testLogger creates a silent logger for tests.
func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// runGateway starts gw in the background and waits for HTTP to answer.
func runGateway(t *testing.T, gw *Gateway) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + gw.config.Server.HTTPAddr + "/health")
		if err != nil {
			return false
		}
		resp.Body.Close()
		return resp.StatusCode == http.StatusOK
	}, 5*time.Second, 20*time.Millisecond)

	t.Cleanup(cancel)
	return cancel, errCh
}

func TestGatewayNew(t *testing.T) {
	cfg := testConfig(t)

	gw, err := New(cfg, testLogger())
	require.NoError(t, err)
	defer gw.Shutdown(context.Background())

	assert.Same(t, cfg, gw.config)
	assert.NotNil(t, gw.store)
	assert.NotNil(t, gw.Registry())
	assert.NotNil(t, gw.Trigger())

	kinds := gw.Registry().ListFaceKinds()
	require.Len(t, kinds, 2)
	assert.Equal(t, face.SelfID, kinds[0].ID)
	assert.Equal(t, "test", kinds[1].ID)
}

func TestGatewayNewRejectsUnknownKinds(t *testing.T) {
	cfg := testConfig(t)
	t.Setenv(config.KindsEnv, "test,test")

	_, err := New(cfg, testLogger())
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestGatewayBuildFailureLeavesNoTrigger(t *testing.T) {
	cfg := testConfig(t)
	gw := &Gateway{config: cfg, store: store.NewMockStore(), startedAt: time.Now()}

	dup := face.Kind{ID: "dup", Create: func(context.Context, face.Options) (face.Face, error) { return nil, nil }}
	err := gw.build([]face.Kind{dup, dup}, testLogger())
	require.ErrorIs(t, err, face.ErrDuplicateKind)
	assert.Nil(t, gw.trigger)
	assert.Nil(t, gw.registry)
}

func TestGatewayRunAndShutdown(t *testing.T) {
	gw, err := New(testConfig(t), testLogger())
	require.NoError(t, err)

	cancel, errCh := runGateway(t, gw)
	cancel()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, context.Canceled) {
			t.Errorf("Run() returned unexpected error: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Error("gateway did not shutdown in time")
	}
}

func TestHealthEndpoints(t *testing.T) {
	gw, err := New(testConfig(t), testLogger())
	require.NoError(t, err)
	runGateway(t, gw)

	resp, err := http.Get("http://" + gw.config.Server.HTTPAddr + "/health/ready")
	require.NoError(t, err)
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ready (1 faces)", string(body))
}

func TestIdleTimeoutShutsDown(t *testing.T) {
	cfg := testConfig(t)
	cfg.Idle.Timeout = 300 * time.Millisecond

	gw, err := New(cfg, testLogger())
	require.NoError(t, err)

	errCh := make(chan error, 1)
	go func() {
		errCh <- gw.Run(context.Background())
	}()

	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("gateway did not go idle")
	}

	select {
	case <-gw.Trigger().Done():
	default:
		t.Error("trigger should have fired")
	}
}

func TestFaceServiceThroughGateway(t *testing.T) {
	gw, err := New(testConfig(t), testLogger())
	require.NoError(t, err)
	runGateway(t, gw)

	client, err := rpc.Dial(gw.config.Server.GRPCAddr)
	require.NoError(t, err)
	defer client.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	id, err := client.CreateFace(ctx, rpc.CreateFaceRequest{KindID: "test", Workspace: t.TempDir()})
	require.NoError(t, err)

	iid, err := client.InteractionStart(ctx, id, "echo hello")
	require.NoError(t, err)
	value, err := client.InteractionAwait(ctx, id, iid)
	require.NoError(t, err)
	assert.Equal(t, "ok", value)

	self, err := client.ReadFace(ctx, face.SelfID)
	require.NoError(t, err)
	assert.Contains(t, self.Status.Details, "activeRequests")
	require.NotEmpty(t, self.Status.Views)
	assert.True(t, strings.HasPrefix(self.Status.Views[0].URL, "http://127.0.0.1:"))

	// The create event reached the ledger.
	events, err := gw.store.ListFaceEvents(ctx, store.EventFilter{FaceID: id})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, face.EventCreated, events[0].Type)
}

func TestIdleInterceptorHoldsTrigger(t *testing.T) {
	trigger := idle.New(0)
	interceptor := idleUnaryInterceptor(trigger)

	var during int
	resp, err := interceptor(context.Background(), "req", &grpc.UnaryServerInfo{FullMethod: "/x/y"},
		func(ctx context.Context, req any) (any, error) {
			during = trigger.Outstanding()
			return "resp", nil
		})
	require.NoError(t, err)
	assert.Equal(t, "resp", resp)
	assert.Equal(t, 1, during)
	assert.Equal(t, 0, trigger.Outstanding())
}

func TestSelfViews(t *testing.T) {
	cfg := &config.Config{Server: config.ServerConfig{GRPCAddr: "localhost:50061", HTTPAddr: "localhost:8090"}}
	views := selfViews(cfg)
	require.Len(t, views, 2)
	assert.Equal(t, face.View{Name: "mcp", Protocol: "http", Port: 8090, Path: "/mcp"}, views[0])
	assert.Equal(t, 50061, views[1].Port)

	cfg.Tailscale.Enabled = true
	views = selfViews(cfg)
	assert.Equal(t, tailnetHTTPPort, views[0].Port)

	assert.Equal(t, "localhost", determineHostname(&config.Config{Server: config.ServerConfig{HTTPAddr: "0.0.0.0:80"}}))
	assert.Equal(t, "pinned", determineHostname(&config.Config{Faces: config.FacesConfig{Hostname: "pinned"}}))
}
