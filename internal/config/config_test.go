// ABOUTME: Tests for configuration loading and parsing
// ABOUTME: Covers YAML loading, env var expansion, duration parsing, and FACE_KINDS validation

package config

import (
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return configPath
}

func TestLoad_ValidConfig(t *testing.T) {
	configPath := writeConfig(t, `
server:
  grpc_addr: "localhost:50061"
  http_addr: "localhost:8090"

faces:
  kinds: [test, cmd]
  base_dir: "/var/lib/face/homes"
  hostname: "faces.example"

idle:
  timeout: "10m"

database:
  path: "./ledger.db"

logging:
  level: "debug"
  format: "json"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Server.GRPCAddr != "localhost:50061" {
		t.Errorf("Server.GRPCAddr = %q, want %q", cfg.Server.GRPCAddr, "localhost:50061")
	}
	if cfg.Server.HTTPAddr != "localhost:8090" {
		t.Errorf("Server.HTTPAddr = %q, want %q", cfg.Server.HTTPAddr, "localhost:8090")
	}
	if !reflect.DeepEqual(cfg.Faces.Kinds, []string{"test", "cmd"}) {
		t.Errorf("Faces.Kinds = %v, want [test cmd]", cfg.Faces.Kinds)
	}
	if cfg.Faces.BaseDir != "/var/lib/face/homes" {
		t.Errorf("Faces.BaseDir = %q", cfg.Faces.BaseDir)
	}
	if cfg.Faces.Hostname != "faces.example" {
		t.Errorf("Faces.Hostname = %q", cfg.Faces.Hostname)
	}
	if cfg.Idle.Timeout != 10*time.Minute {
		t.Errorf("Idle.Timeout = %v, want %v", cfg.Idle.Timeout, 10*time.Minute)
	}
	if cfg.Database.Path != "./ledger.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "./ledger.db")
	}
	if cfg.Logging.Level != "debug" || cfg.Logging.Format != "json" {
		t.Errorf("Logging = %+v", cfg.Logging)
	}
}

func TestLoad_EnvVarExpansion(t *testing.T) {
	t.Setenv("TEST_FACE_BASE", "/srv/faces")
	t.Setenv("TEST_TS_KEY", "tskey-from-env")

	configPath := writeConfig(t, `
tailscale:
  enabled: true
  hostname: "faces"
  auth_key: "${TEST_TS_KEY}"
faces:
  base_dir: "${TEST_FACE_BASE}/homes"
database:
  path: "${TEST_FACE_BASE}/ledger.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Tailscale.AuthKey != "tskey-from-env" {
		t.Errorf("Tailscale.AuthKey = %q, want %q", cfg.Tailscale.AuthKey, "tskey-from-env")
	}
	if cfg.Faces.BaseDir != "/srv/faces/homes" {
		t.Errorf("Faces.BaseDir = %q, want %q", cfg.Faces.BaseDir, "/srv/faces/homes")
	}
	if cfg.Database.Path != "/srv/faces/ledger.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/srv/faces/ledger.db")
	}
}

func TestLoad_ExpandsHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	configPath := writeConfig(t, `
server:
  grpc_addr: "localhost:50061"
  http_addr: "localhost:8090"
faces:
  base_dir: "~/faces"
database:
  path: "~/ledger.db"
`)

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Faces.BaseDir != filepath.Join(home, "faces") {
		t.Errorf("Faces.BaseDir = %q", cfg.Faces.BaseDir)
	}
	if cfg.Database.Path != filepath.Join(home, "ledger.db") {
		t.Errorf("Database.Path = %q", cfg.Database.Path)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	configPath := writeConfig(t, "server: [unterminated")

	_, err := Load(configPath)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_InvalidDuration(t *testing.T) {
	configPath := writeConfig(t, `
server:
  grpc_addr: "localhost:50061"
  http_addr: "localhost:8090"
faces:
  base_dir: "/tmp/faces"
idle:
  timeout: "soon"
database:
  path: "./ledger.db"
`)

	_, err := Load(configPath)
	if !errors.Is(err, ErrConfiguration) {
		t.Errorf("Load() error = %v, want ErrConfiguration", err)
	}
}

func TestLoad_MissingRequiredFields(t *testing.T) {
	tests := []struct {
		name          string
		configContent string
		wantErrSubstr string
	}{
		{
			name: "missing grpc_addr",
			configContent: `
server:
  http_addr: "localhost:8090"
faces:
  base_dir: "/tmp/faces"
database:
  path: "./ledger.db"
`,
			wantErrSubstr: "server.grpc_addr is required",
		},
		{
			name: "missing http_addr",
			configContent: `
server:
  grpc_addr: "localhost:50061"
faces:
  base_dir: "/tmp/faces"
database:
  path: "./ledger.db"
`,
			wantErrSubstr: "server.http_addr is required",
		},
		{
			name: "missing database path",
			configContent: `
server:
  grpc_addr: "localhost:50061"
  http_addr: "localhost:8090"
faces:
  base_dir: "/tmp/faces"
`,
			wantErrSubstr: "database.path is required",
		},
		{
			name: "missing base dir",
			configContent: `
server:
  grpc_addr: "localhost:50061"
  http_addr: "localhost:8090"
database:
  path: "./ledger.db"
`,
			wantErrSubstr: "faces.base_dir is required",
		},
		{
			name: "bad log format",
			configContent: `
server:
  grpc_addr: "localhost:50061"
  http_addr: "localhost:8090"
faces:
  base_dir: "/tmp/faces"
database:
  path: "./ledger.db"
logging:
  format: "xml"
`,
			wantErrSubstr: "logging.format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.configContent))
			if err == nil {
				t.Errorf("Load() expected error containing %q, got nil", tt.wantErrSubstr)
				return
			}
			if !errors.Is(err, ErrConfiguration) {
				t.Errorf("Load() error = %v, want ErrConfiguration", err)
			}
			if !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Load() error = %q, want error containing %q", err.Error(), tt.wantErrSubstr)
			}
		})
	}
}

func TestExpandEnvVars(t *testing.T) {
	t.Setenv("FOO", "bar")
	t.Setenv("BAZ", "qux")

	tests := []struct {
		name     string
		input    string
		expected string
	}{
		{name: "single env var", input: "${FOO}", expected: "bar"},
		{name: "env var with surrounding text", input: "prefix-${FOO}-suffix", expected: "prefix-bar-suffix"},
		{name: "multiple env vars", input: "${FOO}/${BAZ}", expected: "bar/qux"},
		{name: "no env vars", input: "no-vars-here", expected: "no-vars-here"},
		{name: "unset env var", input: "${UNSET_VAR_FOR_FACE_TEST}", expected: ""},
		{name: "empty string", input: "", expected: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := expandEnvVars(tt.input)
			if result != tt.expected {
				t.Errorf("expandEnvVars(%q) = %q, want %q", tt.input, result, tt.expected)
			}
		})
	}
}

func TestValidate_TailscaleConfig(t *testing.T) {
	base := FacesConfig{BaseDir: "/tmp/faces"}
	tests := []struct {
		name          string
		cfg           Config
		wantErrSubstr string
	}{
		{
			name: "tailscale enabled allows empty server addresses",
			cfg: Config{
				Tailscale: TailscaleConfig{Enabled: true, Hostname: "faces"},
				Faces:     base,
				Database:  DatabaseConfig{Path: "./ledger.db"},
			},
		},
		{
			name: "tailscale enabled requires hostname",
			cfg: Config{
				Tailscale: TailscaleConfig{Enabled: true},
				Faces:     base,
				Database:  DatabaseConfig{Path: "./ledger.db"},
			},
			wantErrSubstr: "tailscale.hostname is required",
		},
		{
			name: "tailscale disabled requires server addresses",
			cfg: Config{
				Tailscale: TailscaleConfig{Hostname: "faces"},
				Faces:     base,
				Database:  DatabaseConfig{Path: "./ledger.db"},
			},
			wantErrSubstr: "server.grpc_addr is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cfg.Validate()
			if tt.wantErrSubstr == "" {
				if err != nil {
					t.Errorf("Validate() unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErrSubstr) {
				t.Errorf("Validate() error = %v, want error containing %q", err, tt.wantErrSubstr)
			}
		})
	}
}

func TestParseKinds(t *testing.T) {
	known := []string{"test", "cmd", "tmux"}

	tests := []struct {
		name    string
		raw     string
		want    []string
		wantErr string
	}{
		{name: "single", raw: "test", want: []string{"test"}},
		{name: "spaces trimmed", raw: " cmd , tmux ", want: []string{"cmd", "tmux"}},
		{name: "empty", raw: "", wantErr: "at least one"},
		{name: "only commas", raw: " , ,", wantErr: "at least one"},
		{name: "unknown", raw: "test,browser", wantErr: `unknown face kind "browser"`},
		{name: "duplicate", raw: "cmd,test,cmd", wantErr: `"cmd" listed more than once`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseKinds(tt.raw, known)
			if tt.wantErr != "" {
				if !errors.Is(err, ErrConfiguration) || !strings.Contains(err.Error(), tt.wantErr) {
					t.Errorf("ParseKinds(%q) error = %v, want %q", tt.raw, err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseKinds(%q) error = %v", tt.raw, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("ParseKinds(%q) = %v, want %v", tt.raw, got, tt.want)
			}
		})
	}
}

func TestEnabledKinds(t *testing.T) {
	known := []string{"test", "cmd", "tmux"}

	t.Run("defaults to all known", func(t *testing.T) {
		t.Setenv(KindsEnv, "")
		os.Unsetenv(KindsEnv)
		got, err := (&Config{}).EnabledKinds(known)
		if err != nil || !reflect.DeepEqual(got, known) {
			t.Errorf("EnabledKinds() = %v, %v", got, err)
		}
	})

	t.Run("config list", func(t *testing.T) {
		t.Setenv(KindsEnv, "")
		os.Unsetenv(KindsEnv)
		cfg := &Config{Faces: FacesConfig{Kinds: []string{"tmux"}}}
		got, err := cfg.EnabledKinds(known)
		if err != nil || !reflect.DeepEqual(got, []string{"tmux"}) {
			t.Errorf("EnabledKinds() = %v, %v", got, err)
		}
	})

	t.Run("environment wins", func(t *testing.T) {
		t.Setenv(KindsEnv, "cmd")
		cfg := &Config{Faces: FacesConfig{Kinds: []string{"tmux"}}}
		got, err := cfg.EnabledKinds(known)
		if err != nil || !reflect.DeepEqual(got, []string{"cmd"}) {
			t.Errorf("EnabledKinds() = %v, %v", got, err)
		}
	})

	t.Run("empty environment is fatal", func(t *testing.T) {
		t.Setenv(KindsEnv, "")
		_, err := (&Config{}).EnabledKinds(known)
		if !errors.Is(err, ErrConfiguration) {
			t.Errorf("EnabledKinds() error = %v, want ErrConfiguration", err)
		}
	})
}

func TestSave_LoadsBack(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "gateway.yaml")
	cfg := &Config{
		Server:   ServerConfig{GRPCAddr: "localhost:50061", HTTPAddr: "localhost:8090"},
		Faces:    FacesConfig{Kinds: []string{"test"}, BaseDir: "/tmp/homes"},
		Idle:     IdleConfig{Timeout: 90 * time.Second},
		Database: DatabaseConfig{Path: "/tmp/ledger.db"},
		Logging:  LoggingConfig{Level: "debug", Format: "text"},
	}

	if err := cfg.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("reading saved config: %v", err)
	}
	if strings.Contains(string(data), "auth_key") {
		t.Errorf("empty tailscale fields should be omitted:\n%s", data)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("Load after Save failed: %v", err)
	}
	if loaded.Idle.Timeout != 90*time.Second {
		t.Errorf("idle timeout = %v, want 90s", loaded.Idle.Timeout)
	}
	if !reflect.DeepEqual(loaded.Faces.Kinds, []string{"test"}) {
		t.Errorf("kinds = %v", loaded.Faces.Kinds)
	}
	if loaded.Server != cfg.Server || loaded.Logging != cfg.Logging {
		t.Errorf("loaded %+v, want %+v", loaded, cfg)
	}
}
