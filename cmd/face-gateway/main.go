// ABOUTME: Entry point for the face-gateway control server
// ABOUTME: Serves the face registry over gRPC and MCP and shuts down when idle

package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/fatih/color"

	"github.com/2389/face-gateway/internal/config"
	"github.com/2389/face-gateway/internal/gateway"
	"github.com/2389/face-gateway/internal/kinds"
	"github.com/2389/face-gateway/internal/logging"
	"github.com/2389/face-gateway/internal/rpc"
	"github.com/2389/face-gateway/internal/store"
)

// Version is set at build time.
var version = "dev"

const banner = `
  __                                 _
 / _| __ _  ___ ___        __ _  __ _| |_ _____      ____ _ _   _
| |_ / _' |/ __/ _ \_____ / _' |/ _' | __/ _ \ \ /\ / / _' | | | |
|  _| (_| | (_|  __/_____| (_| | (_| | ||  __/\ V  V / (_| | |_| |
|_|  \__,_|\___\___|      \__, |\__,_|\__\___| \_/\_/ \__,_|\__, |
                          |___/                             |___/
`

// getConfigPath returns the path to the gateway config file.
// Priority: FACE_GATEWAY_CONFIG env var > XDG_CONFIG_HOME/face/gateway.yaml > ~/.config/face/gateway.yaml
func getConfigPath() string {
	if envPath := os.Getenv("FACE_GATEWAY_CONFIG"); envPath != "" {
		return envPath
	}

	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "gateway.yaml"
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	return filepath.Join(configDir, "face", "gateway.yaml")
}

// getDataPath returns the face data directory.
// Priority: XDG_DATA_HOME/face > ~/.local/share/face
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data"
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	return filepath.Join(dataDir, "face")
}

func usage() {
	fmt.Println("Usage: face-gateway <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve     Start the gateway server")
	fmt.Println("  init      Create a new config file interactively")
	fmt.Println("  health    Check gateway health")
	fmt.Println("  faces     List face kinds and live faces")
	fmt.Println("  events    Show recent face lifecycle events from the ledger")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx)
	case "init":
		err = runInit()
	case "health":
		err = runHealth(ctx)
	case "faces":
		err = runFaces(ctx)
	case "events":
		err = runEvents(ctx)
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		usage()
		os.Exit(1)
	}

	if err != nil {
		if errors.Is(err, config.ErrConfiguration) {
			fmt.Fprintf(os.Stderr, "Configuration error: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		}
		os.Exit(1)
	}
}

func runServe(ctx context.Context) error {
	configPath := getConfigPath()

	cyan := color.New(color.FgCyan)
	cyan.Print(banner)

	gray := color.New(color.FgHiBlack)
	gray.Printf("    version: %s\n\n", version)

	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := logging.New(cfg.Logging.Level, cfg.Logging.Format)

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	green.Print("    ▶ ")
	fmt.Printf("Config:    %s\n", configPath)
	green.Print("    ▶ ")
	fmt.Printf("gRPC:      %s\n", cfg.Server.GRPCAddr)
	green.Print("    ▶ ")
	fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
	green.Print("    ▶ ")
	fmt.Printf("Homes:     %s\n", cfg.Faces.BaseDir)
	green.Print("    ▶ ")
	if cfg.Idle.Timeout > 0 {
		fmt.Printf("Idle:      %s\n", cfg.Idle.Timeout)
	} else {
		fmt.Print("Idle:      ")
		yellow.Println("disabled")
	}

	if cfg.Tailscale.Enabled {
		green.Print("    ▶ ")
		fmt.Printf("Tailscale: ")
		cyan.Print(cfg.Tailscale.Hostname)
		if cfg.Tailscale.Ephemeral {
			gray.Print(" (ephemeral)")
		}
		fmt.Println()
	}

	fmt.Println()

	logger.Info("starting face-gateway",
		"config", configPath,
		"grpc_addr", cfg.Server.GRPCAddr,
		"http_addr", cfg.Server.HTTPAddr,
	)

	gw, err := gateway.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("creating gateway: %w", err)
	}

	return gw.Run(ctx)
}

func runHealth(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	url := fmt.Sprintf("http://%s/health/ready", cfg.Server.HTTPAddr)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return fmt.Errorf("creating request: %w", err)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	fmt.Println(strings.TrimSpace(string(body)))
	return nil
}

func runFaces(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	client, err := rpc.Dial(cfg.Server.GRPCAddr)
	if err != nil {
		return err
	}
	defer client.Close()

	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	list, err := client.ListFaces(ctx)
	if err != nil {
		return fmt.Errorf("listing faces: %w", err)
	}

	cyan := color.New(color.FgCyan)
	gray := color.New(color.FgHiBlack)

	cyan.Println("Kinds")
	for _, k := range list.FaceKinds {
		fmt.Printf("  %-8s %s\n", k.ID, k.Title)
	}
	fmt.Println()
	cyan.Println("Faces")
	for _, f := range list.LiveFaces {
		fmt.Printf("  %-36s %-6s ", f.ID, f.Kind)
		gray.Printf("%s", f.CreatedAt.Local().Format(time.DateTime))
		if f.StatusError != "" {
			color.New(color.FgYellow).Printf("  %s\n", f.StatusError)
		} else {
			fmt.Printf("  %d interactions\n", f.Status.Interactions)
		}
		for _, v := range f.Views {
			fmt.Printf("      %s: %s\n", v.Name, v.URL)
		}
	}
	return nil
}

func runEvents(ctx context.Context) error {
	cfg, err := config.Load(getConfigPath())
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	s, err := store.NewSQLiteStore(cfg.Database.Path)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer s.Close()

	filter := store.EventFilter{Limit: 20}
	if len(os.Args) > 2 {
		filter.FaceID = os.Args[2]
	}
	events, err := s.ListFaceEvents(ctx, filter)
	if err != nil {
		return fmt.Errorf("listing events: %w", err)
	}

	for _, ev := range events {
		fmt.Printf("%s  %-14s %-6s %s  %s\n",
			ev.CreatedAt.Local().Format(time.DateTime), ev.Type, ev.Kind, ev.FaceID, ev.Detail)
	}
	return nil
}

func runInit() error {
	in := bufio.NewReader(os.Stdin)

	fmt.Println("face-gateway configuration setup")
	fmt.Println("================================")
	fmt.Println()

	outputFile := prompt(in, "Config file path", getConfigPath())
	if _, err := os.Stat(outputFile); err == nil {
		if !isYes(prompt(in, "File exists. Overwrite?", "no")) {
			fmt.Println("Aborted.")
			return nil
		}
	}

	dataPath := getDataPath()
	var cfg config.Config

	fmt.Println("\n--- Server ---")
	cfg.Server.GRPCAddr = prompt(in, "gRPC address", "localhost:50061")
	cfg.Server.HTTPAddr = prompt(in, "HTTP address", "localhost:8090")

	fmt.Println("\n--- Faces ---")
	kindIDs, err := config.ParseKinds(prompt(in, "Enabled kinds", strings.Join(kinds.Names(), ",")), kinds.Names())
	if err != nil {
		return err
	}
	cfg.Faces.Kinds = kindIDs
	cfg.Faces.BaseDir = prompt(in, "Face home directory", filepath.Join(dataPath, "homes"))
	idleRaw := prompt(in, "Idle shutdown timeout (0 disables)", "0s")
	if cfg.Idle.Timeout, err = time.ParseDuration(idleRaw); err != nil {
		return fmt.Errorf("%w: idle timeout %q: %v", config.ErrConfiguration, idleRaw, err)
	}

	fmt.Println("\n--- Ledger ---")
	cfg.Database.Path = prompt(in, "SQLite ledger path", filepath.Join(dataPath, "ledger.db"))

	fmt.Println("\n--- Tailscale ---")
	if cfg.Tailscale.Enabled = isYes(prompt(in, "Enable Tailscale?", "no")); cfg.Tailscale.Enabled {
		cfg.Tailscale.Hostname = prompt(in, "Tailscale hostname", "faces")
		cfg.Tailscale.AuthKey = prompt(in, "Tailscale auth key (leave empty to use TS_AUTHKEY)", "")
		cfg.Tailscale.Ephemeral = isYes(prompt(in, "Ephemeral node?", "no"))
	}

	fmt.Println("\n--- Logging ---")
	cfg.Logging.Level = prompt(in, "Log level (debug/info/warn/error)", "info")
	cfg.Logging.Format = prompt(in, "Log format (text/json)", "text")

	if err := cfg.Validate(); err != nil {
		return err
	}
	if err := cfg.Save(outputFile); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(cfg.Database.Path), 0o755); err != nil {
		return fmt.Errorf("creating data directory: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("\nConfig written to %s\n", outputFile)
	fmt.Println("\nTo start the server:")
	fmt.Println("  face-gateway serve")
	return nil
}

func isYes(s string) bool {
	s = strings.ToLower(s)
	return s == "yes" || s == "y"
}

func prompt(reader *bufio.Reader, question, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", question, defaultVal)
	} else {
		fmt.Printf("%s: ", question)
	}

	input, err := reader.ReadString('\n')
	if err != nil {
		fmt.Println()
		return defaultVal
	}
	input = strings.TrimSpace(input)

	if input == "" {
		return defaultVal
	}
	return input
}
