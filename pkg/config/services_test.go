package config

import (
	"context"
	"testing"

	"github.com/marmos91/dittovault/pkg/namespace"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

func TestInitializeVault(t *testing.T) {
	ctx := context.Background()

	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = false
	cfg.Content.Type = "memory"
	cfg.Events.Log = false

	vault, err := InitializeVault(ctx, cfg)
	if err != nil {
		t.Fatalf("InitializeVault failed: %v", err)
	}

	node, err := vault.Namespace.CreateNode(ctx, namespace.CreateNodeRequest{
		RepositoryID: "repo-1",
		Name:         "drawings",
		Kind:         metadata.KindDirectory,
	})
	if err != nil {
		t.Fatalf("CreateNode failed: %v", err)
	}
	if node.Path != "/drawings" {
		t.Errorf("Expected path /drawings, got %s", node.Path)
	}

	stats, err := vault.Collector.RunNow(ctx)
	if err != nil {
		t.Fatalf("Collector run failed: %v", err)
	}
	if stats.SessionsSwept != 0 || stats.ChunksReclaimed != 0 {
		t.Errorf("Expected an empty collection, got %s", stats.Summary())
	}

	if vault.API.Handler() == nil {
		t.Error("Expected an API handler")
	}

	if err := vault.Close(ctx); err != nil {
		t.Errorf("Close failed: %v", err)
	}
}

func TestInitializeVault_Errors(t *testing.T) {
	ctx := context.Background()

	if _, err := InitializeVault(ctx, nil); err == nil {
		t.Fatal("Expected error for nil configuration")
	}

	cfg := GetDefaultConfig()
	cfg.Metrics.Enabled = false
	cfg.Content.Type = "filesystem"
	cfg.Content.Filesystem = map[string]any{}
	if _, err := InitializeVault(ctx, cfg); err == nil {
		t.Fatal("Expected error for filesystem backend without a path")
	}
}
