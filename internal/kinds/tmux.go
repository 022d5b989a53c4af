// ABOUTME: The "tmux" face kind: a dedicated tmux server per face, driven with send-keys.
// ABOUTME: The session starts in the background; interactions wait for it via the ready future.

package kinds

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/2389/face-gateway/internal/face"
)

const (
	tmuxSession        = "face"
	defaultTmuxSettle  = 300 * time.Millisecond
	tmuxSocketFileName = "tmux.sock"
)

// TmuxKind returns the tmux kind.
//
// Config keys: "settle" (duration to wait after sending keys before
// capturing, default 300ms), "command" (program for the session instead
// of the default shell) and "view_port" (port of a terminal viewer to
// publish).
func TmuxKind() face.Kind {
	return face.Kind{
		ID:          "tmux",
		Title:       "Terminal",
		Description: "A private tmux session; each input is typed into it and the pane is captured.",
		Create:      newTmuxFace,
	}
}

func newTmuxFace(ctx context.Context, opts face.Options) (face.Face, error) {
	if _, err := exec.LookPath("tmux"); err != nil {
		return nil, fmt.Errorf("tmux not available: %w", err)
	}

	settle := defaultTmuxSettle
	if raw := configString(opts.Config, "settle", ""); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return nil, fmt.Errorf("invalid settle duration: %w", err)
		}
		settle = d
	}

	srv := &tmuxServer{
		socket: filepath.Join(opts.Home, tmuxSocketFileName),
		home:   opts.Home,
	}

	var views []face.View
	if port, ok := opts.Config["view_port"].(float64); ok && port > 0 {
		views = append(views, face.View{Name: "terminal", Protocol: "http", Port: int(port)})
	}

	b := face.NewBase(face.BaseConfig{
		Logger: opts.Logger,
		Views:  views,
		Run: func(ctx context.Context, input string) (string, error) {
			return srv.interact(ctx, input, settle)
		},
		OnDestroy: func(ctx context.Context) error {
			return srv.kill(ctx)
		},
	})
	b.SetDetail("socket", srv.socket)
	b.SetDetail("attach", fmt.Sprintf("tmux -S %s attach -t %s", srv.socket, tmuxSession))

	ready := b.Initialising()
	command := configString(opts.Config, "command", "")
	startCtx := context.WithoutCancel(ctx)
	go func() {
		ready(srv.start(startCtx, opts.Workspace, command))
	}()
	return b, nil
}

// tmuxServer targets one private tmux server by socket path. The user's
// configuration is never loaded.
type tmuxServer struct {
	socket string
	home   string
}

func (s *tmuxServer) exec(ctx context.Context, args ...string) (string, error) {
	full := append([]string{"-S", s.socket}, args...)
	cmd := exec.CommandContext(ctx, "tmux", full...)
	cmd.Env = append(os.Environ(), "HOME="+s.home)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("tmux %s: %w (%s)", args[0], err, strings.TrimSpace(string(out)))
	}
	return string(out), nil
}

func (s *tmuxServer) start(ctx context.Context, workspace, command string) error {
	args := []string{"-f", "/dev/null", "-S", s.socket, "new-session", "-d", "-s", tmuxSession, "-c", workspace}
	if command != "" {
		args = append(args, command)
	}
	cmd := exec.CommandContext(ctx, "tmux", args...)
	cmd.Env = append(os.Environ(), "HOME="+s.home)
	if out, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("tmux new-session: %w (%s)", err, strings.TrimSpace(string(out)))
	}
	return nil
}

func (s *tmuxServer) interact(ctx context.Context, input string, settle time.Duration) (string, error) {
	if _, err := s.exec(ctx, "send-keys", "-t", tmuxSession, "-l", input); err != nil {
		return "", err
	}
	if _, err := s.exec(ctx, "send-keys", "-t", tmuxSession, "Enter"); err != nil {
		return "", err
	}

	select {
	case <-time.After(settle):
	case <-ctx.Done():
		return "", ctx.Err()
	}

	out, err := s.exec(ctx, "capture-pane", "-t", tmuxSession, "-p")
	if err != nil {
		return "", err
	}
	return strings.TrimRight(out, "\n"), nil
}

// kill stops the server. A server that is already gone is not an error.
func (s *tmuxServer) kill(ctx context.Context) error {
	_, err := s.exec(ctx, "kill-server")
	if err != nil && (strings.Contains(err.Error(), "no server running") ||
		strings.Contains(err.Error(), "server exited unexpectedly") ||
		strings.Contains(err.Error(), "error connecting")) {
		return nil
	}
	return err
}
