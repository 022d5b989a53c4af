// ABOUTME: Daemon wiring for face-exec: HTTP kick server, record watcher, and startup resync.
// ABOUTME: The pieces run under one errgroup and stop together.

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"
)

// DaemonConfig configures Serve.
type DaemonConfig struct {
	Addr       string
	Reconciler *Reconciler
	Logger     *slog.Logger

	// Watch enables the records directory watcher.
	Watch bool

	KickRate  float64
	KickBurst int

	// Listener, when set, is used instead of listening on Addr.
	Listener net.Listener
}

// Serve runs the daemon until ctx ends or a component fails. Every record
// gets one pass at startup.
func Serve(ctx context.Context, cfg DaemonConfig) error {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	ln := cfg.Listener
	if ln == nil {
		var err error
		ln, err = net.Listen("tcp", cfg.Addr)
		if err != nil {
			return fmt.Errorf("listening on %s: %w", cfg.Addr, err)
		}
	}

	srv := &http.Server{
		Handler: NewHandler(HandlerConfig{
			Reconciler: cfg.Reconciler,
			Logger:     logger.With("component", "kick"),
			KickRate:   cfg.KickRate,
			KickBurst:  cfg.KickBurst,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("kick endpoint listening", "addr", ln.Addr().String())
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("HTTP server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if cfg.Watch {
		g.Go(func() error {
			return Watch(gctx, cfg.Reconciler, logger.With("component", "watch"))
		})
	}

	g.Go(func() error {
		if err := cfg.Reconciler.KickAll(); err != nil {
			logger.Warn("startup resync skipped unreadable records", "error", err)
		}
		return nil
	})

	return g.Wait()
}
