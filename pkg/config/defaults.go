package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/mitchellh/mapstructure"
	"github.com/spf13/viper"

	"github.com/marmos91/dittovault/pkg/events"
	"github.com/marmos91/dittovault/pkg/gc"
	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// ApplyDefaults sets default values for any unspecified configuration fields.
//
// This function is called after loading configuration from file and environment
// variables to fill in any missing values with sensible defaults.
//
// Default Strategy:
//   - Zero values (0, "", nil) are replaced with defaults
//   - Explicit values are preserved
//   - Booleans that default to true are set by GetDefaultConfig, since a zero
//     false cannot be told apart from an explicit one
func ApplyDefaults(cfg *Config) {
	applyLoggingDefaults(&cfg.Logging)
	applyAPIDefaults(cfg)
	applyMetadataDefaults(&cfg.Metadata)
	applyContentDefaults(&cfg.Content)
	applyUploadsDefaults(&cfg.Uploads)

	if cfg.Chunks.CacheMaxBytes == 0 {
		cfg.Chunks.CacheMaxBytes = 256 << 20 // 256MB
	}
	if cfg.Events.QueueSize == 0 {
		cfg.Events.QueueSize = events.DefaultQueueSize
	}
	if cfg.GC.Interval == 0 {
		cfg.GC.Interval = time.Hour
	}
	if cfg.GC.Grace == 0 {
		cfg.GC.Grace = 24 * time.Hour
	}
	if cfg.GC.BatchSize == 0 {
		cfg.GC.BatchSize = 1000
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	// Normalize log level to uppercase for consistent internal representation
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyAPIDefaults(cfg *Config) {
	api := &cfg.API
	if api.Port == 0 {
		api.Port = 8080
	}
	if api.MaxChunkSize == 0 {
		api.MaxChunkSize = 16 << 20 // 16MB
	}
	if api.ReadTimeout == 0 {
		api.ReadTimeout = 2 * time.Minute
	}
	if api.IdleTimeout == 0 {
		api.IdleTimeout = 2 * time.Minute
	}
	if api.ShutdownTimeout == 0 {
		api.ShutdownTimeout = 30 * time.Second
	}
}

// applyMetadataDefaults sets metadata store defaults.
func applyMetadataDefaults(cfg *MetadataConfig) {
	if cfg.Type == "" {
		cfg.Type = "memory"
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.Badger == nil {
		cfg.Badger = make(map[string]any)
	}
	if cfg.ConflictRetries == 0 {
		cfg.ConflictRetries = metadata.DefaultConflictRetries
	}

	// Apply defaults for all store types (for config file generation)
	if _, ok := cfg.Badger["db_path"]; !ok {
		cfg.Badger["db_path"] = "/tmp/dittovault-metadata"
	}
}

// applyContentDefaults sets object backend defaults.
func applyContentDefaults(cfg *ContentConfig) {
	if cfg.Type == "" {
		cfg.Type = "filesystem"
	}
	if cfg.Filesystem == nil {
		cfg.Filesystem = make(map[string]any)
	}
	if cfg.Memory == nil {
		cfg.Memory = make(map[string]any)
	}
	if cfg.S3 == nil {
		cfg.S3 = make(map[string]any)
	}
	if cfg.Compression == "" {
		cfg.Compression = "none"
	}

	if _, ok := cfg.Filesystem["path"]; !ok {
		cfg.Filesystem["path"] = "/tmp/dittovault-content"
	}

	d := content.DefaultRetryPolicy()
	if cfg.Retry.Attempts == 0 {
		cfg.Retry.Attempts = d.Attempts
	}
	if cfg.Retry.BaseDelay == 0 {
		cfg.Retry.BaseDelay = d.BaseDelay
	}
	if cfg.Retry.MaxDelay == 0 {
		cfg.Retry.MaxDelay = d.MaxDelay
	}
}

func applyUploadsDefaults(cfg *UploadsConfig) {
	if cfg.SessionTTL == 0 {
		cfg.SessionTTL = 24 * time.Hour
	}
	if cfg.MaxManifestEntries == 0 {
		cfg.MaxManifestEntries = 100_000
	}
}

// GetDefaultConfig returns a Config struct with all default values applied.
//
// This is useful for:
//   - Generating sample configuration files
//   - Seeding viper so environment variables can override every key
//   - Testing
func GetDefaultConfig() *Config {
	cfg := &Config{
		Metrics: MetricsConfig{Enabled: true},
		Events:  EventsConfig{Log: true},
		GC:      gc.Config{Enabled: true, Reclaim: true},
	}
	ApplyDefaults(cfg)
	return cfg
}

// toMap flattens cfg into the nested map form used by viper and the YAML
// writer, keyed by mapstructure tags.
func toMap(cfg *Config) (map[string]any, error) {
	out := make(map[string]any)
	if err := mapstructure.Decode(cfg, &out); err != nil {
		return nil, fmt.Errorf("failed to encode config: %w", err)
	}
	return out, nil
}

// setViperDefaults registers every default key with viper. Besides filling
// gaps this makes AutomaticEnv aware of nested keys, so
// DITTOVAULT_API_PORT overrides api.port without a config file.
func setViperDefaults(v *viper.Viper) {
	defaults, err := toMap(GetDefaultConfig())
	if err != nil {
		// The default config always encodes
		panic(err)
	}
	setLeaves(v, "", defaults)
}

func setLeaves(v *viper.Viper, prefix string, m map[string]any) {
	for key, value := range m {
		full := key
		if prefix != "" {
			full = prefix + "." + key
		}
		if nested, ok := value.(map[string]any); ok && len(nested) > 0 {
			setLeaves(v, full, nested)
			continue
		}
		v.SetDefault(full, value)
	}
}
