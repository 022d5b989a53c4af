// ABOUTME: Tests for face-exec TOML configuration loading
// ABOUTME: Covers defaults, overrides, env expansion, and validation errors

package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/2389/face-gateway/internal/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "exec.toml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("writing config: %v", err)
	}
	return path
}

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	data := t.TempDir()
	cfg, err := Load(filepath.Join(data, "missing.toml"), data)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Records.Dir != filepath.Join(data, "instances") {
		t.Errorf("records dir = %q", cfg.Records.Dir)
	}
	if cfg.Provider.Kind != "process" {
		t.Errorf("provider kind = %q", cfg.Provider.Kind)
	}
	if !cfg.Records.Watch {
		t.Error("watch should default to true")
	}
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("FACE_EXEC_TEST_ADDR", "127.0.0.1:9999")
	path := writeConfig(t, `
[server]
addr = "${FACE_EXEC_TEST_ADDR}"

[records]
dir = "/var/lib/face/instances"
watch = false

[kick]
rate = 5.5
burst = 3
`)
	cfg, err := Load(path, t.TempDir())
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Server.Addr != "127.0.0.1:9999" {
		t.Errorf("addr = %q", cfg.Server.Addr)
	}
	if cfg.Records.Dir != "/var/lib/face/instances" || cfg.Records.Watch {
		t.Errorf("records = %+v", cfg.Records)
	}
	if cfg.Kick.Rate != 5.5 || cfg.Kick.Burst != 3 {
		t.Errorf("kick = %+v", cfg.Kick)
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("logging level should keep default, got %q", cfg.Logging.Level)
	}
	if cfg.KickURL() != "http://127.0.0.1:9999" {
		t.Errorf("kick url = %q", cfg.KickURL())
	}
}

func TestLoadValidation(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unknown provider", "[provider]\nkind = \"docker\"\n"},
		{"empty addr", "[server]\naddr = \"\"\n"},
		{"negative burst", "[kick]\nburst = -1\n"},
		{"bad toml", "[server\n"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, tt.content), t.TempDir())
			if err == nil {
				t.Fatal("expected error")
			}
			if !errors.Is(err, config.ErrConfiguration) {
				t.Errorf("expected ErrConfiguration, got %v", err)
			}
		})
	}
}
