package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestInitConfig(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())

	configPath, err := InitConfig(false)
	if err != nil {
		t.Fatalf("InitConfig failed: %v", err)
	}
	if configPath != GetDefaultConfigPath() {
		t.Errorf("Expected %s, got %s", GetDefaultConfigPath(), configPath)
	}
	if !ConfigExists() {
		t.Fatal("Config file was not created at the default location")
	}

	content, err := os.ReadFile(configPath)
	if err != nil {
		t.Fatalf("Failed to read config file: %v", err)
	}

	contentStr := string(content)
	for _, section := range []string{
		"# DittoVault Configuration File",
		"logging:",
		"api:",
		"metadata:",
		"content:",
		"uploads:",
		"gc:",
	} {
		if !strings.Contains(contentStr, section) {
			t.Errorf("Config file missing section: %s", section)
		}
	}

	var tree map[string]any
	if err := yaml.Unmarshal(content, &tree); err != nil {
		t.Fatalf("Generated config is not valid YAML: %v", err)
	}

	t.Run("AlreadyExists", func(t *testing.T) {
		if _, err := InitConfig(false); err == nil {
			t.Fatal("Expected error when config already exists")
		}
		if _, err := InitConfig(true); err != nil {
			t.Fatalf("Expected force to overwrite, got: %v", err)
		}
	})
}

func TestInitConfig_LoadsBackToDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	if err := InitConfigToPath(path, false); err != nil {
		t.Fatalf("InitConfigToPath failed: %v", err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Generated config does not load: %v", err)
	}

	want := GetDefaultConfig()
	if cfg.API != want.API {
		t.Errorf("API section differs:\n got %+v\nwant %+v", cfg.API, want.API)
	}
	if cfg.GC != want.GC {
		t.Errorf("GC section differs:\n got %+v\nwant %+v", cfg.GC, want.GC)
	}
	if cfg.Content.Retry != want.Content.Retry {
		t.Errorf("Retry policy differs:\n got %+v\nwant %+v", cfg.Content.Retry, want.Content.Retry)
	}
	if cfg.Uploads != want.Uploads {
		t.Errorf("Uploads section differs:\n got %+v\nwant %+v", cfg.Uploads, want.Uploads)
	}
	if cfg.Content.Filesystem["path"] != want.Content.Filesystem["path"] {
		t.Errorf("Content path differs: got %v", cfg.Content.Filesystem["path"])
	}
}
