package config

import (
	"context"
	"fmt"

	"github.com/mitchellh/mapstructure"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/store/content"
	contentfs "github.com/marmos91/dittovault/pkg/store/content/fs"
	contentmemory "github.com/marmos91/dittovault/pkg/store/content/memory"
	contents3 "github.com/marmos91/dittovault/pkg/store/content/s3"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/store/metadata/badger"
	metadatamemory "github.com/marmos91/dittovault/pkg/store/metadata/memory"
)

// decodeOptions decodes a type-specific section into out, accepting
// duration strings such as "30s".
func decodeOptions(options map[string]any, out any) error {
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		DecodeHook:       mapstructure.StringToTimeDurationHookFunc(),
		WeaklyTypedInput: true,
		Result:           out,
	})
	if err != nil {
		return fmt.Errorf("failed to create decoder: %w", err)
	}
	return decoder.Decode(options)
}

// CreateMetadataStore creates a metadata store based on configuration.
//
// Supported types:
//   - "memory": in-memory storage, ephemeral
//   - "badger": BadgerDB storage, persistent
func CreateMetadataStore(ctx context.Context, cfg *MetadataConfig) (metadata.Store, error) {
	switch cfg.Type {
	case "memory":
		return createMemoryMetadataStore(ctx, cfg.Memory)
	case "badger":
		return createBadgerMetadataStore(ctx, cfg.Badger)
	default:
		return nil, fmt.Errorf("unknown metadata store type: %q (supported: memory, badger)", cfg.Type)
	}
}

func createMemoryMetadataStore(ctx context.Context, options map[string]any) (metadata.Store, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var storeCfg metadatamemory.MemoryMetadataStoreConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode memory metadata store options: %w", err)
	}
	return metadatamemory.NewMemoryMetadataStore(storeCfg), nil
}

func createBadgerMetadataStore(ctx context.Context, options map[string]any) (metadata.Store, error) {
	var storeCfg badger.BadgerMetadataStoreConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode badger metadata store options: %w", err)
	}

	store, err := badger.NewBadgerMetadataStore(ctx, storeCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create badger metadata store: %w", err)
	}
	logger.Info("Badger metadata store opened: path=%s", storeCfg.DBPath)
	return store, nil
}

// CreateContentStore creates the object backend based on configuration and
// wraps it with compression and bounded retries.
//
// Supported types:
//   - "filesystem": local filesystem storage
//   - "memory": in-memory storage (tests and demos)
//   - "s3": Amazon S3 or any S3-compatible service
//
// s3Metrics may be nil.
func CreateContentStore(ctx context.Context, cfg *ContentConfig, s3Metrics contents3.S3Metrics) (content.ContentStore, error) {
	compression, err := content.ParseCompression(cfg.Compression)
	if err != nil {
		return nil, err
	}

	var backend content.ContentStore
	switch cfg.Type {
	case "filesystem":
		backend, err = createFilesystemContentStore(ctx, cfg.Filesystem)
	case "memory":
		backend, err = contentmemory.NewMemoryContentStore(ctx)
	case "s3":
		backend, err = createS3ContentStore(ctx, cfg.S3, s3Metrics)
	default:
		return nil, fmt.Errorf("unknown content store type: %q", cfg.Type)
	}
	if err != nil {
		return nil, err
	}

	// Retries sit outside compression so a retried Put does not compress twice
	// and a corrupted frame is reported without being retried.
	var store content.ContentStore = content.NewCompressedStore(backend, compression)
	store = content.NewRetryingStore(store, cfg.Retry)

	logger.Info("Content store initialized: type=%s compression=%s retry_attempts=%d",
		cfg.Type, compression, cfg.Retry.Attempts)
	return store, nil
}

func createFilesystemContentStore(ctx context.Context, options map[string]any) (content.ContentStore, error) {
	type FilesystemContentStoreConfig struct {
		Path string `mapstructure:"path"`
	}

	var storeCfg FilesystemContentStoreConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode filesystem content store config: %w", err)
	}
	if storeCfg.Path == "" {
		return nil, fmt.Errorf("filesystem content store: path is required")
	}

	store, err := contentfs.NewFSContentStore(ctx, storeCfg.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to create filesystem content store: %w", err)
	}
	return store, nil
}

func createS3ContentStore(ctx context.Context, options map[string]any, metrics contents3.S3Metrics) (content.ContentStore, error) {
	type S3ContentStoreConfig struct {
		Region          string `mapstructure:"region"`
		Bucket          string `mapstructure:"bucket"`
		KeyPrefix       string `mapstructure:"key_prefix"`
		Endpoint        string `mapstructure:"endpoint"`
		AccessKeyID     string `mapstructure:"access_key_id"`
		SecretAccessKey string `mapstructure:"secret_access_key"`
		MaxRetries      int    `mapstructure:"max_retries"`
	}

	var storeCfg S3ContentStoreConfig
	if err := decodeOptions(options, &storeCfg); err != nil {
		return nil, fmt.Errorf("failed to decode S3 content store config: %w", err)
	}
	if storeCfg.Bucket == "" {
		return nil, fmt.Errorf("S3 content store: bucket is required")
	}
	if storeCfg.Region == "" {
		return nil, fmt.Errorf("S3 content store: region is required")
	}

	client, err := contents3.NewS3ClientFromConfig(ctx, contents3.S3ClientConfig{
		Region:          storeCfg.Region,
		Endpoint:        storeCfg.Endpoint,
		AccessKeyID:     storeCfg.AccessKeyID,
		SecretAccessKey: storeCfg.SecretAccessKey,
		MaxRetries:      storeCfg.MaxRetries,
	})
	if err != nil {
		return nil, err
	}

	store, err := contents3.NewS3ContentStore(ctx, contents3.S3ContentStoreConfig{
		Client:    client,
		Bucket:    storeCfg.Bucket,
		KeyPrefix: storeCfg.KeyPrefix,
		Metrics:   metrics,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create S3 content store: %w", err)
	}

	logger.Info("S3 content store initialized: bucket=%s, region=%s, prefix=%s",
		storeCfg.Bucket, storeCfg.Region, storeCfg.KeyPrefix)
	return store, nil
}
