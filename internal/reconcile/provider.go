// ABOUTME: Machine lifecycle behind the reconciler: the Provider interface and a local process provider.
// ABOUTME: Process machines run in their own process group so Stop takes down the whole tree.

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"syscall"
	"time"
)

// Provider starts and stops the machine backing an instance.
type Provider interface {
	// Start launches a machine for inst and returns its id.
	Start(ctx context.Context, inst *Instance) (string, error)

	// Stop terminates the machine. Stopping a machine that is already gone
	// succeeds.
	Stop(ctx context.Context, machineID string) error

	// Running reports whether the machine is alive.
	Running(ctx context.Context, machineID string) (bool, error)
}

const machinePrefix = "pid-"

// DefaultStopGrace is how long Stop waits after SIGTERM before SIGKILL.
const DefaultStopGrace = 5 * time.Second

type process struct {
	cmd  *exec.Cmd
	done chan struct{}
}

// ProcessProvider runs each instance as a local child process. The image
// is the executable path.
type ProcessProvider struct {
	mu     sync.Mutex
	procs  map[string]*process
	logDir string
	grace  time.Duration
	logger *slog.Logger
}

// NewProcessProvider creates a provider. When logDir is set each machine's
// output goes to <logDir>/<instance>.log.
func NewProcessProvider(logDir string, logger *slog.Logger) *ProcessProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProcessProvider{
		procs:  make(map[string]*process),
		logDir: logDir,
		grace:  DefaultStopGrace,
		logger: logger,
	}
}

func (p *ProcessProvider) Start(ctx context.Context, inst *Instance) (string, error) {
	if inst.Image == "" {
		return "", fmt.Errorf("%w: %s: image is required", ErrInvalidInstance, inst.ID)
	}

	// Not CommandContext: the machine outlives the reconcile pass.
	cmd := exec.Command(inst.Image, inst.Args...)
	cmd.Env = os.Environ()
	for k, v := range inst.Env {
		cmd.Env = append(cmd.Env, k+"="+v)
	}
	cmd.Env = append(cmd.Env, "FACE_INSTANCE_ID="+inst.ID)
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var logFile *os.File
	if p.logDir != "" {
		if err := os.MkdirAll(p.logDir, 0o755); err != nil {
			return "", fmt.Errorf("creating log dir: %w", err)
		}
		f, err := os.OpenFile(filepath.Join(p.logDir, inst.ID+".log"), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0o644)
		if err != nil {
			return "", fmt.Errorf("opening machine log: %w", err)
		}
		logFile = f
		cmd.Stdout = f
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		if logFile != nil {
			logFile.Close()
		}
		return "", fmt.Errorf("starting %s: %w", inst.Image, err)
	}

	id := machinePrefix + strconv.Itoa(cmd.Process.Pid)
	proc := &process{cmd: cmd, done: make(chan struct{})}

	p.mu.Lock()
	p.procs[id] = proc
	p.mu.Unlock()

	go func() {
		err := cmd.Wait()
		if logFile != nil {
			logFile.Close()
		}
		close(proc.done)
		p.logger.Info("machine exited", "instance", inst.ID, "machine", id, "error", err)
	}()

	p.logger.Info("machine started", "instance", inst.ID, "machine", id, "image", inst.Image)
	return id, nil
}

func (p *ProcessProvider) Stop(ctx context.Context, machineID string) error {
	pid, err := parseMachineID(machineID)
	if err != nil {
		return err
	}

	p.mu.Lock()
	proc := p.procs[machineID]
	p.mu.Unlock()

	if proc == nil {
		// Started by an earlier run; signal whatever is left of the group.
		if err := syscall.Kill(-pid, syscall.SIGTERM); err != nil && !errors.Is(err, syscall.ESRCH) {
			return fmt.Errorf("stopping %s: %w", machineID, err)
		}
		return nil
	}

	_ = syscall.Kill(-pid, syscall.SIGTERM)

	timer := time.NewTimer(p.grace)
	defer timer.Stop()
	select {
	case <-proc.done:
	case <-timer.C:
		p.logger.Warn("machine ignored SIGTERM, killing", "machine", machineID)
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		<-proc.done
	case <-ctx.Done():
		_ = syscall.Kill(-pid, syscall.SIGKILL)
		return ctx.Err()
	}

	p.mu.Lock()
	delete(p.procs, machineID)
	p.mu.Unlock()
	return nil
}

func (p *ProcessProvider) Running(_ context.Context, machineID string) (bool, error) {
	pid, err := parseMachineID(machineID)
	if err != nil {
		return false, err
	}

	p.mu.Lock()
	proc := p.procs[machineID]
	p.mu.Unlock()

	if proc != nil {
		select {
		case <-proc.done:
			p.mu.Lock()
			delete(p.procs, machineID)
			p.mu.Unlock()
			return false, nil
		default:
			return true, nil
		}
	}

	// Signal 0 probes a process started by an earlier run.
	err = syscall.Kill(pid, 0)
	return err == nil || errors.Is(err, syscall.EPERM), nil
}

func parseMachineID(machineID string) (int, error) {
	pid, err := strconv.Atoi(strings.TrimPrefix(machineID, machinePrefix))
	if err != nil || !strings.HasPrefix(machineID, machinePrefix) || pid <= 0 {
		return 0, fmt.Errorf("%w: machine id %q", ErrInvalidInstance, machineID)
	}
	return pid, nil
}
