package config

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

func TestCreateMetadataStore(t *testing.T) {
	ctx := context.Background()

	t.Run("Memory", func(t *testing.T) {
		store, err := CreateMetadataStore(ctx, &MetadataConfig{Type: "memory"})
		if err != nil {
			t.Fatalf("Failed to create memory metadata store: %v", err)
		}
		defer func() { _ = store.Close() }()

		if err := store.Healthcheck(ctx); err != nil {
			t.Errorf("Healthcheck failed: %v", err)
		}
	})

	t.Run("BadgerInMemory", func(t *testing.T) {
		store, err := CreateMetadataStore(ctx, &MetadataConfig{
			Type:   "badger",
			Badger: map[string]any{"in_memory": true, "block_cache_size_mb": "16"},
		})
		if err != nil {
			t.Fatalf("Failed to create badger metadata store: %v", err)
		}
		defer func() { _ = store.Close() }()

		err = store.View(ctx, func(tx metadata.Tx) error {
			_, err := tx.GetNode("missing")
			return err
		})
		if !metadata.IsNotFound(err) {
			t.Errorf("Expected not found from an empty store, got: %v", err)
		}
	})

	t.Run("BadgerOnDisk", func(t *testing.T) {
		store, err := CreateMetadataStore(ctx, &MetadataConfig{
			Type:   "badger",
			Badger: map[string]any{"db_path": t.TempDir()},
		})
		if err != nil {
			t.Fatalf("Failed to create badger metadata store: %v", err)
		}
		_ = store.Close()
	})

	t.Run("BadgerMissingPath", func(t *testing.T) {
		_, err := CreateMetadataStore(ctx, &MetadataConfig{Type: "badger", Badger: map[string]any{}})
		if err == nil || !strings.Contains(err.Error(), "db_path is required") {
			t.Fatalf("Expected 'db_path is required' error, got: %v", err)
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := CreateMetadataStore(ctx, &MetadataConfig{Type: "postgres"})
		if err == nil {
			t.Fatal("Expected error for unknown metadata store type")
		}
	})
}

func TestCreateContentStore(t *testing.T) {
	ctx := context.Background()

	roundTrip := func(t *testing.T, store content.ContentStore) {
		t.Helper()
		data := []byte(strings.Repeat("IFCWALLSTANDARDCASE;", 64))
		if err := store.Put(ctx, "objects/ab/cd/abcd", data); err != nil {
			t.Fatalf("Put failed: %v", err)
		}
		got, err := store.Get(ctx, "objects/ab/cd/abcd")
		if err != nil {
			t.Fatalf("Get failed: %v", err)
		}
		if string(got) != string(data) {
			t.Fatal("Round trip returned different bytes")
		}
	}

	t.Run("Filesystem", func(t *testing.T) {
		store, err := CreateContentStore(ctx, &ContentConfig{
			Type:        "filesystem",
			Filesystem:  map[string]any{"path": t.TempDir()},
			Compression: "zstd",
		}, nil)
		if err != nil {
			t.Fatalf("Failed to create filesystem content store: %v", err)
		}
		roundTrip(t, store)
	})

	t.Run("FilesystemMissingPath", func(t *testing.T) {
		_, err := CreateContentStore(ctx, &ContentConfig{Type: "filesystem", Filesystem: map[string]any{}}, nil)
		if err == nil || !strings.Contains(err.Error(), "path is required") {
			t.Fatalf("Expected 'path is required' error, got: %v", err)
		}
	})

	t.Run("MemoryWithLZ4", func(t *testing.T) {
		store, err := CreateContentStore(ctx, &ContentConfig{Type: "memory", Compression: "lz4"}, nil)
		if err != nil {
			t.Fatalf("Failed to create memory content store: %v", err)
		}
		roundTrip(t, store)

		_, err = store.Get(ctx, "objects/00/00/missing")
		if !errors.Is(err, content.ErrContentNotFound) {
			t.Errorf("Expected ErrContentNotFound, got: %v", err)
		}
	})

	t.Run("S3MissingBucket", func(t *testing.T) {
		_, err := CreateContentStore(ctx, &ContentConfig{Type: "s3", S3: map[string]any{"region": "eu-west-1"}}, nil)
		if err == nil || !strings.Contains(err.Error(), "bucket is required") {
			t.Fatalf("Expected 'bucket is required' error, got: %v", err)
		}
	})

	t.Run("UnknownCompression", func(t *testing.T) {
		_, err := CreateContentStore(ctx, &ContentConfig{Type: "memory", Compression: "brotli"}, nil)
		if err == nil {
			t.Fatal("Expected error for unknown compression")
		}
	})

	t.Run("UnknownType", func(t *testing.T) {
		_, err := CreateContentStore(ctx, &ContentConfig{Type: "tape"}, nil)
		if err == nil {
			t.Fatal("Expected error for unknown content store type")
		}
	})
}
