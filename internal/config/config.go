// ABOUTME: Configuration loading and parsing for face-gateway
// ABOUTME: Supports YAML files with environment variable expansion, duration parsing, and FACE_KINDS

package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"slices"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// KindsEnv names the environment setting that enumerates enabled face kinds.
const KindsEnv = "FACE_KINDS"

// ErrConfiguration marks startup settings that are missing, invalid, or
// inconsistent. Callers treat it as fatal.
var ErrConfiguration = errors.New("configuration error")

// Config represents the complete face-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	Faces     FacesConfig     `yaml:"faces"`
	Idle      IdleConfig      `yaml:"idle"`
	Database  DatabaseConfig  `yaml:"database"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key,omitempty"`
	StateDir  string `yaml:"state_dir,omitempty"`
	Ephemeral bool   `yaml:"ephemeral"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	GRPCAddr string `yaml:"grpc_addr"`
	HTTPAddr string `yaml:"http_addr"`
}

// FacesConfig controls which kinds are offered and where faces live.
type FacesConfig struct {
	// Kinds lists enabled kind ids. FACE_KINDS overrides it; empty means all.
	Kinds []string `yaml:"kinds"`

	// BaseDir holds generated face home directories.
	BaseDir string `yaml:"base_dir"`

	// Hostname is used for view URLs that only carry a port.
	Hostname string `yaml:"hostname,omitempty"`
}

// IdleConfig holds the idle shutdown timer
type IdleConfig struct {
	// Timeout of zero disables idle shutdown.
	Timeout time.Duration `yaml:"-"`

	TimeoutRaw string `yaml:"timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `yaml:"path"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	if err := expandPaths(&cfg); err != nil {
		return nil, fmt.Errorf("expanding paths: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// expandPaths resolves a leading ~ in file system settings. Face paths in
// create requests are never expanded; only the operator's own config is.
func expandPaths(cfg *Config) error {
	for _, p := range []*string{&cfg.Faces.BaseDir, &cfg.Database.Path, &cfg.Tailscale.StateDir} {
		expanded, err := ExpandHome(*p)
		if err != nil {
			return err
		}
		*p = expanded
	}
	return nil
}

// ExpandHome replaces a leading "~/" with the user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// Server addresses are required unless Tailscale is enabled
	if !c.Tailscale.Enabled {
		if c.Server.GRPCAddr == "" {
			return fmt.Errorf("%w: server.grpc_addr is required (or enable tailscale)", ErrConfiguration)
		}
		if c.Server.HTTPAddr == "" {
			return fmt.Errorf("%w: server.http_addr is required (or enable tailscale)", ErrConfiguration)
		}
	}

	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("%w: tailscale.hostname is required when tailscale is enabled", ErrConfiguration)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("%w: database.path is required", ErrConfiguration)
	}

	if c.Faces.BaseDir == "" {
		return fmt.Errorf("%w: faces.base_dir is required", ErrConfiguration)
	}

	if c.Idle.Timeout < 0 {
		return fmt.Errorf("%w: idle.timeout must not be negative", ErrConfiguration)
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("%w: logging.format must be text or json, got %q", ErrConfiguration, c.Logging.Format)
	}

	return nil
}

// EnabledKinds resolves the enabled kind ids against known. FACE_KINDS,
// when set, wins over faces.kinds; when neither is set every known kind
// is enabled.
func (c *Config) EnabledKinds(known []string) ([]string, error) {
	if raw, ok := os.LookupEnv(KindsEnv); ok {
		return ParseKinds(raw, known)
	}
	if len(c.Faces.Kinds) == 0 {
		return slices.Clone(known), nil
	}
	return validateKinds(c.Faces.Kinds, known)
}

// ParseKinds parses a comma separated kind list. The list must be
// non-empty, every id must be known, and ids may not repeat.
func ParseKinds(raw string, known []string) ([]string, error) {
	var ids []string
	for _, part := range strings.Split(raw, ",") {
		if id := strings.TrimSpace(part); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: %s must list at least one face kind", ErrConfiguration, KindsEnv)
	}
	return validateKinds(ids, known)
}

func validateKinds(ids, known []string) ([]string, error) {
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if !slices.Contains(known, id) {
			return nil, fmt.Errorf("%w: unknown face kind %q (known: %s)", ErrConfiguration, id, strings.Join(known, ", "))
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: face kind %q listed more than once", ErrConfiguration, id)
		}
		seen[id] = true
	}
	return slices.Clone(ids), nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Idle.TimeoutRaw != "" {
		cfg.Idle.Timeout, err = time.ParseDuration(cfg.Idle.TimeoutRaw)
		if err != nil {
			return fmt.Errorf("%w: parsing idle.timeout %q: %v", ErrConfiguration, cfg.Idle.TimeoutRaw, err)
		}
	}

	return nil
}

// Save writes cfg as YAML to path, creating the parent directory.
func (c *Config) Save(path string) error {
	out := *c
	if out.Idle.Timeout != 0 || out.Idle.TimeoutRaw == "" {
		out.Idle.TimeoutRaw = out.Idle.Timeout.String()
	}

	data, err := yaml.Marshal(&out)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	header := "# face-gateway configuration\n# Generated by face-gateway init\n\n"
	if err := os.WriteFile(path, append([]byte(header), data...), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}
	return nil
}
