package config

import (
	"testing"
	"time"

	"github.com/marmos91/dittovault/pkg/events"
)

func TestApplyDefaults_Empty(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)

	if cfg.Logging.Level != "INFO" || cfg.Logging.Output != "stdout" {
		t.Errorf("Unexpected logging defaults: %+v", cfg.Logging)
	}
	if cfg.API.MaxChunkSize != 16<<20 {
		t.Errorf("Expected default max chunk size 16MB, got %d", cfg.API.MaxChunkSize)
	}
	if cfg.Metadata.Type != "memory" {
		t.Errorf("Expected default metadata type 'memory', got %q", cfg.Metadata.Type)
	}
	if cfg.Content.Filesystem["path"] != "/tmp/dittovault-content" {
		t.Errorf("Expected default content path, got %v", cfg.Content.Filesystem["path"])
	}
	if cfg.Content.Compression != "none" {
		t.Errorf("Expected default compression 'none', got %q", cfg.Content.Compression)
	}
	if cfg.Content.Retry.Attempts != 3 {
		t.Errorf("Expected 3 retry attempts, got %d", cfg.Content.Retry.Attempts)
	}
	if cfg.Uploads.SessionTTL != 24*time.Hour {
		t.Errorf("Expected session TTL 24h, got %v", cfg.Uploads.SessionTTL)
	}
	if cfg.Events.QueueSize != events.DefaultQueueSize {
		t.Errorf("Expected queue size %d, got %d", events.DefaultQueueSize, cfg.Events.QueueSize)
	}
	if cfg.GC.Grace != 24*time.Hour || cfg.GC.Interval != time.Hour {
		t.Errorf("Unexpected collector defaults: %+v", cfg.GC)
	}

	// Booleans are left alone
	if cfg.GC.Enabled || cfg.Metrics.Enabled {
		t.Error("ApplyDefaults must not flip booleans")
	}
}

func TestApplyDefaults_PreservesExplicitValues(t *testing.T) {
	cfg := &Config{
		Content: ContentConfig{
			Type:        "s3",
			Compression: "lz4",
			Filesystem:  map[string]any{"path": "/data"},
		},
		Uploads: UploadsConfig{SessionTTL: time.Minute},
	}
	ApplyDefaults(cfg)

	if cfg.Content.Type != "s3" || cfg.Content.Compression != "lz4" {
		t.Errorf("Explicit content settings overwritten: %+v", cfg.Content)
	}
	if cfg.Content.Filesystem["path"] != "/data" {
		t.Errorf("Explicit path overwritten: %v", cfg.Content.Filesystem["path"])
	}
	if cfg.Uploads.SessionTTL != time.Minute {
		t.Errorf("Explicit TTL overwritten: %v", cfg.Uploads.SessionTTL)
	}
}

func TestGetDefaultConfig(t *testing.T) {
	cfg := GetDefaultConfig()

	if !cfg.Metrics.Enabled || !cfg.Events.Log || !cfg.GC.Enabled || !cfg.GC.Reclaim {
		t.Errorf("Expected boolean defaults to be on: metrics=%v events.log=%v gc=%+v",
			cfg.Metrics.Enabled, cfg.Events.Log, cfg.GC)
	}
	if err := Validate(cfg); err != nil {
		t.Errorf("Default config must validate: %v", err)
	}
}

func TestToMap(t *testing.T) {
	tree, err := toMap(GetDefaultConfig())
	if err != nil {
		t.Fatalf("toMap failed: %v", err)
	}

	api, ok := tree["api"].(map[string]any)
	if !ok {
		t.Fatalf("Expected nested map for api, got %T", tree["api"])
	}
	if api["port"] != 8080 {
		t.Errorf("Expected api.port 8080, got %v", api["port"])
	}
	if _, ok := api["rate_limit"].(map[string]any); !ok {
		t.Errorf("Expected nested map for api.rate_limit, got %T", api["rate_limit"])
	}
}
