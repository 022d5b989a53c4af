// ABOUTME: Entry point for face-exec, the face instance reconciler
// ABOUTME: Runs the reconcile daemon and edits instance records from the command line

package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/face-gateway/internal/config"
	"github.com/2389/face-gateway/internal/logging"
	"github.com/2389/face-gateway/internal/reconcile"
)

const banner = `
    ╭──────────────────────────────╮
    │                              │
    │    ┏━╸┏━┓┏━╸┏━╸   ┏━╸╻ ╻┏━╸┏━╸ │
    │    ┣╸ ┣━┫┃  ┣╸ ╺━╸┣╸ ┏╋┛┣╸ ┃   │
    │    ╹  ╹ ╹┗━╸┗━╸   ┗━╸╹ ╹┗━╸┗━╸ │
    │                              │
    │       instance reconciler    │
    │                              │
    ╰──────────────────────────────╯
`

// getConfigPath returns the path to the face-exec config file.
// Priority: FACE_EXEC_CONFIG env var > XDG_CONFIG_HOME/face/exec.toml > ~/.config/face/exec.toml
func getConfigPath() string {
	if envPath := os.Getenv("FACE_EXEC_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "exec.toml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "face", "exec.toml")
}

// getDataPath returns the face-exec data directory.
// Priority: XDG_DATA_HOME/face/exec > ~/.local/share/face/exec
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "face", "exec")
}

func usage() {
	fmt.Println("Usage: face-exec <command> [flags]")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve                         Run the reconcile daemon")
	fmt.Println("  create [-wait] [-env K=V] <id> <image> [args...]")
	fmt.Println("                                Create an instance that should run")
	fmt.Println("  start [-wait] <id>            Mark an instance as desired running")
	fmt.Println("  stop [-wait] <id>             Mark an instance as desired stopped")
	fmt.Println("  destroy [-wait] <id>          Stop an instance and remove its record")
	fmt.Println("  kick [-wait] <id>             Schedule a reconcile pass")
	fmt.Println("  list                          List instances known to the daemon")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := Load(getConfigPath(), getDataPath())
	if err != nil {
		fail(err)
	}

	args := os.Args[2:]
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, cfg)
	case "create":
		err = runCreate(ctx, cfg, args)
	case "start":
		err = runSetDesired(ctx, cfg, "start", args, reconcile.DesiredRunning, false)
	case "stop":
		err = runSetDesired(ctx, cfg, "stop", args, reconcile.DesiredStopped, false)
	case "destroy":
		err = runSetDesired(ctx, cfg, "destroy", args, reconcile.DesiredStopped, true)
	case "kick":
		err = runKick(ctx, cfg, args)
	case "list":
		err = runList(ctx, cfg)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	if errors.Is(err, config.ErrConfiguration) {
		fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
	} else {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	}
	os.Exit(1)
}

func runServe(ctx context.Context, cfg *Config) error {
	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	records, err := reconcile.NewRecords(cfg.Records.Dir)
	if err != nil {
		return err
	}
	provider := reconcile.NewProcessProvider(cfg.Provider.LogDir, logger)

	green := color.New(color.FgGreen)
	green.Print("    ▶ ")
	fmt.Printf("Listening: %s\n", cfg.Server.Addr)
	green.Print("    ▶ ")
	fmt.Printf("Records:   %s\n", records.Dir())
	green.Print("    ▶ ")
	fmt.Printf("Logs:      %s\n\n", cfg.Provider.LogDir)

	r := reconcile.NewReconciler(ctx, records, provider, logger)
	return reconcile.Serve(ctx, reconcile.DaemonConfig{
		Addr:       cfg.Server.Addr,
		Reconciler: r,
		Logger:     logger,
		Watch:      cfg.Records.Watch,
		KickRate:   cfg.Kick.Rate,
		KickBurst:  cfg.Kick.Burst,
	})
}

// envFlag collects repeated -env K=V flags.
type envFlag map[string]string

func (e envFlag) String() string { return fmt.Sprint(map[string]string(e)) }

func (e envFlag) Set(v string) error {
	k, val, ok := strings.Cut(v, "=")
	if !ok || k == "" {
		return fmt.Errorf("expected KEY=VALUE, got %q", v)
	}
	e[k] = val
	return nil
}

func runCreate(ctx context.Context, cfg *Config, args []string) error {
	fs := flag.NewFlagSet("create", flag.ContinueOnError)
	wait := fs.Bool("wait", false, "Wait for the instance to converge")
	env := envFlag{}
	fs.Var(env, "env", "Environment variable KEY=VALUE (repeatable)")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() < 2 {
		return errors.New("usage: face-exec create [-wait] [-env K=V] <id> <image> [args...]")
	}

	records, err := reconcile.NewRecords(cfg.Records.Dir)
	if err != nil {
		return err
	}
	inst := &reconcile.Instance{
		ID:    fs.Arg(0),
		Image: fs.Arg(1),
		Args:  fs.Args()[2:],
	}
	if len(env) > 0 {
		inst.Env = env
	}
	if err := reconcile.CreateRecord(records, inst, time.Now()); err != nil {
		return err
	}
	return kick(ctx, cfg, inst.ID, *wait)
}

func runSetDesired(ctx context.Context, cfg *Config, name string, args []string, desired reconcile.DesiredState, remove bool) error {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	wait := fs.Bool("wait", false, "Wait for the instance to converge")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return fmt.Errorf("usage: face-exec %s [-wait] <id>", name)
	}

	records, err := reconcile.NewRecords(cfg.Records.Dir)
	if err != nil {
		return err
	}
	id := fs.Arg(0)
	if err := reconcile.SetDesiredRecord(records, id, desired, remove, time.Now()); err != nil {
		return err
	}
	return kick(ctx, cfg, id, *wait)
}

func runKick(ctx context.Context, cfg *Config, args []string) error {
	fs := flag.NewFlagSet("kick", flag.ContinueOnError)
	wait := fs.Bool("wait", false, "Wait for the pass to finish")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if fs.NArg() != 1 {
		return errors.New("usage: face-exec kick [-wait] <id>")
	}
	return kick(ctx, cfg, fs.Arg(0), *wait)
}

// kick notifies the daemon. A daemon that is not running picks the record
// up on its next startup, so an unreachable daemon is reported but not fatal.
func kick(ctx context.Context, cfg *Config, id string, wait bool) error {
	inst, err := reconcile.NewKicker(cfg.KickURL()).Kick(ctx, id, wait)
	if err != nil {
		if errors.Is(err, reconcile.ErrInstanceNotFound) || wait {
			return err
		}
		yellow := color.New(color.FgYellow)
		yellow.Fprintf(os.Stderr, "warning: %v\n", err)
		return nil
	}
	if inst != nil {
		printInstance(inst)
	} else {
		fmt.Printf("%s queued\n", id)
	}
	return nil
}

func runList(ctx context.Context, cfg *Config) error {
	insts, err := reconcile.NewKicker(cfg.KickURL()).Instances(ctx)
	if err != nil {
		return err
	}
	for _, inst := range insts {
		printInstance(inst)
	}
	return nil
}

func printInstance(inst *reconcile.Instance) {
	state := color.New(color.FgGreen)
	if !inst.Converged() {
		state = color.New(color.FgYellow)
	}
	if inst.LastError != "" {
		state = color.New(color.FgRed)
	}
	fmt.Printf("%-24s %-8s ", inst.ID, inst.Desired)
	state.Printf("%-9s", inst.Actual)
	fmt.Printf(" %-12s %s", inst.MachineID, inst.Image)
	if inst.LastError != "" {
		color.New(color.FgHiBlack).Printf("  (%s)", inst.LastError)
	}
	fmt.Println()
}
