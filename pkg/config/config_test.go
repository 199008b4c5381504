package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write config file: %v", err)
	}
	return path
}

func TestLoad_DefaultConfig(t *testing.T) {
	path := writeConfig(t, `
logging:
  level: "debug"

content:
  type: "memory"

uploads:
  session_ttl: "2h"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}

	if cfg.Logging.Level != "DEBUG" {
		t.Errorf("Expected normalized level 'DEBUG', got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "text" {
		t.Errorf("Expected default format 'text', got %q", cfg.Logging.Format)
	}
	if cfg.Uploads.SessionTTL != 2*time.Hour {
		t.Errorf("Expected session_ttl 2h, got %v", cfg.Uploads.SessionTTL)
	}
	if cfg.API.Port != 8080 {
		t.Errorf("Expected default API port 8080, got %d", cfg.API.Port)
	}
	if !cfg.GC.Enabled || !cfg.GC.Reclaim {
		t.Errorf("Expected collector enabled with reclaim by default, got %+v", cfg.GC)
	}
	if cfg.Content.Type != "memory" {
		t.Errorf("Expected content type 'memory', got %q", cfg.Content.Type)
	}
}

func TestLoad_NoConfigFile(t *testing.T) {
	// Point the default location at an empty directory so the user's own
	// ~/.config/dittovault is never read
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Expected defaults without a config file, got error: %v", err)
	}
	if cfg.Content.Type != "filesystem" {
		t.Errorf("Expected default content type 'filesystem', got %q", cfg.Content.Type)
	}
	if cfg.Metadata.Type != "memory" {
		t.Errorf("Expected default metadata type 'memory', got %q", cfg.Metadata.Type)
	}
}

func TestLoad_EnvironmentOverrides(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	t.Setenv("DITTOVAULT_API_PORT", "9000")
	t.Setenv("DITTOVAULT_GC_RECLAIM", "false")
	t.Setenv("DITTOVAULT_CONTENT_COMPRESSION", "zstd")

	cfg, err := Load("")
	if err != nil {
		t.Fatalf("Failed to load config: %v", err)
	}
	if cfg.API.Port != 9000 {
		t.Errorf("Expected API port 9000 from environment, got %d", cfg.API.Port)
	}
	if cfg.GC.Reclaim {
		t.Error("Expected gc.reclaim=false from environment")
	}
	if cfg.Content.Compression != "zstd" {
		t.Errorf("Expected compression 'zstd' from environment, got %q", cfg.Content.Compression)
	}
}

func TestLoad_InvalidConfig(t *testing.T) {
	t.Run("BadYAML", func(t *testing.T) {
		path := writeConfig(t, "logging: [unclosed")
		if _, err := Load(path); err == nil {
			t.Fatal("Expected error for malformed YAML")
		}
	})

	t.Run("FailsValidation", func(t *testing.T) {
		path := writeConfig(t, `
content:
  type: "tape"
`)
		if _, err := Load(path); err == nil {
			t.Fatal("Expected validation error for unknown content type")
		}
	})
}

func TestWatch(t *testing.T) {
	path := writeConfig(t, "logging:\n  level: INFO\ncontent:\n  type: memory\n")

	changes := make(chan *Config, 16)
	if err := Watch(path, func(cfg *Config) { changes <- cfg }); err != nil {
		t.Fatalf("Watch failed: %v", err)
	}

	if err := os.WriteFile(path, []byte("logging:\n  level: DEBUG\ncontent:\n  type: memory\n"), 0644); err != nil {
		t.Fatalf("Failed to rewrite config: %v", err)
	}

	timeout := time.After(5 * time.Second)
	for {
		select {
		case cfg := <-changes:
			// A rewrite may surface as several events; wait for the final content
			if cfg.Logging.Level == "DEBUG" {
				return
			}
		case <-timeout:
			t.Fatal("Timed out waiting for configuration reload")
		}
	}
}
