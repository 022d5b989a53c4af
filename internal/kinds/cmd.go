// ABOUTME: The "cmd" face kind: each interaction runs its input as a shell command.
// ABOUTME: Commands run in the workspace with HOME set to the face home, optionally under a pty.

package kinds

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"strings"
	"syscall"

	"github.com/creack/pty"

	"github.com/2389/face-gateway/internal/face"
)

// CmdKind returns the cmd kind.
//
// Config keys: "shell" (default /bin/sh) and "tty" (run under a
// pseudo-terminal).
func CmdKind() face.Kind {
	return face.Kind{
		ID:          "cmd",
		Title:       "Command",
		Description: "Runs each input with the shell in the face workspace.",
		Create:      newCmdFace,
	}
}

func newCmdFace(_ context.Context, opts face.Options) (face.Face, error) {
	shell := configString(opts.Config, "shell", "/bin/sh")
	if _, err := exec.LookPath(shell); err != nil {
		return nil, fmt.Errorf("shell %s: %w", shell, err)
	}
	tty := configBool(opts.Config, "tty")

	r := &cmdRunner{
		shell:     shell,
		tty:       tty,
		home:      opts.Home,
		workspace: opts.Workspace,
	}
	b := face.NewBase(face.BaseConfig{Logger: opts.Logger, Run: r.run})
	b.SetDetail("shell", shell)
	b.SetDetail("tty", tty)
	return b, nil
}

type cmdRunner struct {
	shell     string
	tty       bool
	home      string
	workspace string
}

func (r *cmdRunner) command(ctx context.Context, input string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, r.shell, "-c", input)
	cmd.Dir = r.workspace
	cmd.Env = append(os.Environ(), "HOME="+r.home)
	return cmd
}

func (r *cmdRunner) run(ctx context.Context, input string) (string, error) {
	if strings.TrimSpace(input) == "" {
		return "", errors.New("empty command")
	}
	if r.tty {
		return r.runTTY(ctx, input)
	}

	cmd := r.command(ctx, input)
	out, err := cmd.CombinedOutput()
	if err != nil {
		return string(out), fmt.Errorf("command failed: %w", err)
	}
	return string(out), nil
}

func (r *cmdRunner) runTTY(ctx context.Context, input string) (string, error) {
	cmd := r.command(ctx, input)
	ptmx, err := pty.StartWithSize(cmd, &pty.Winsize{Cols: 120, Rows: 40})
	if err != nil {
		return "", fmt.Errorf("starting pty: %w", err)
	}
	defer ptmx.Close()

	var buf bytes.Buffer
	_, copyErr := io.Copy(&buf, ptmx)
	waitErr := cmd.Wait()

	// Reading a pty whose child exited reports EIO on Linux.
	if copyErr != nil && !errors.Is(copyErr, syscall.EIO) {
		return buf.String(), fmt.Errorf("reading pty: %w", copyErr)
	}
	if waitErr != nil {
		return buf.String(), fmt.Errorf("command failed: %w", waitErr)
	}
	return buf.String(), nil
}
