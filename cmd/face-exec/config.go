// ABOUTME: Configuration loading for the face-exec reconciler daemon
// ABOUTME: Loads TOML config from XDG path with environment variable expansion

package main

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"

	"github.com/2389/face-gateway/internal/config"
)

type Config struct {
	Server   ServerConfig   `toml:"server"`
	Records  RecordsConfig  `toml:"records"`
	Provider ProviderConfig `toml:"provider"`
	Kick     KickConfig     `toml:"kick"`
	Logging  LoggingConfig  `toml:"logging"`
}

type ServerConfig struct {
	Addr string `toml:"addr"`
}

type RecordsConfig struct {
	Dir   string `toml:"dir"`
	Watch bool   `toml:"watch"`
}

type ProviderConfig struct {
	Kind   string `toml:"kind"`
	LogDir string `toml:"log_dir"`
}

type KickConfig struct {
	Rate  float64 `toml:"rate"`
	Burst int     `toml:"burst"`
}

type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
}

// defaultConfig is used when no config file exists.
func defaultConfig(dataPath string) *Config {
	return &Config{
		Server:   ServerConfig{Addr: "127.0.0.1:8091"},
		Records:  RecordsConfig{Dir: filepath.Join(dataPath, "instances"), Watch: true},
		Provider: ProviderConfig{Kind: "process", LogDir: filepath.Join(dataPath, "logs")},
		Kick:     KickConfig{Rate: 20, Burst: 40},
		Logging:  LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load reads config from the given path, expanding environment variables.
// Values missing from the file keep their defaults.
func Load(path, dataPath string) (*Config, error) {
	cfg := defaultConfig(dataPath)

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, cfg.Validate()
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	expanded := expandEnvVars(string(data))

	if _, err := toml.Decode(expanded, cfg); err != nil {
		return nil, fmt.Errorf("%w: parsing config: %v", config.ErrConfiguration, err)
	}

	for _, p := range []*string{&cfg.Records.Dir, &cfg.Provider.LogDir} {
		expandedPath, err := config.ExpandHome(*p)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", config.ErrConfiguration, err)
		}
		*p = expandedPath
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// expandEnvVars replaces ${VAR} with environment variable values.
func expandEnvVars(s string) string {
	re := regexp.MustCompile(`\$\{([^}]+)\}`)
	return re.ReplaceAllStringFunc(s, func(match string) string {
		varName := strings.TrimSuffix(strings.TrimPrefix(match, "${"), "}")
		return os.Getenv(varName)
	})
}

// Validate checks that required config fields are present and valid.
func (c *Config) Validate() error {
	if c.Server.Addr == "" {
		return fmt.Errorf("%w: server.addr is required", config.ErrConfiguration)
	}
	if c.Records.Dir == "" {
		return fmt.Errorf("%w: records.dir is required", config.ErrConfiguration)
	}
	if c.Provider.Kind != "process" {
		return fmt.Errorf("%w: provider.kind %q is not supported", config.ErrConfiguration, c.Provider.Kind)
	}
	if c.Kick.Rate < 0 || c.Kick.Burst < 0 {
		return fmt.Errorf("%w: kick.rate and kick.burst must not be negative", config.ErrConfiguration)
	}
	return nil
}

// KickURL is the base URL clients use to reach the daemon.
func (c *Config) KickURL() string {
	u := url.URL{Scheme: "http", Host: c.Server.Addr}
	return u.String()
}
