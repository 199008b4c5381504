package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/api"
	"github.com/marmos91/dittovault/pkg/gc"
	"github.com/marmos91/dittovault/pkg/store/content"
)

// Config represents the complete DittoVault configuration.
//
// Configuration sources (in order of precedence):
//  1. CLI flags (highest priority)
//  2. Environment variables (DITTOVAULT_*)
//  3. Configuration file (YAML)
//  4. Default values (lowest priority)
//
// Store Configuration Pattern:
// Each store implementation defines its own configuration type. The Config
// struct carries type-specific sections (e.g., content.filesystem,
// content.s3) and only the section matching the selected type is decoded.
type Config struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging"`

	// API configures the REST server
	API api.Config `mapstructure:"api"`

	// Metrics configures the Prometheus endpoint
	Metrics MetricsConfig `mapstructure:"metrics"`

	// Metadata specifies the metadata store type and type-specific configuration
	Metadata MetadataConfig `mapstructure:"metadata"`

	// Content specifies the object backend type and type-specific configuration
	Content ContentConfig `mapstructure:"content"`

	// Chunks configures the chunk store on top of the object backend
	Chunks ChunksConfig `mapstructure:"chunks"`

	// Uploads configures upload sessions
	Uploads UploadsConfig `mapstructure:"uploads"`

	// Events configures the version event bus
	Events EventsConfig `mapstructure:"events"`

	// GC configures the background collector
	GC gc.Config `mapstructure:"gc"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is case-insensitive and normalized to uppercase
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error"`

	Format string `mapstructure:"format" validate:"required,oneof=text json"`

	// Output is stdout, stderr or a file path
	Output string `mapstructure:"output" validate:"required"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	// Enabled turns on metric collection. When disabled every component gets
	// a no-op collector.
	Enabled bool `mapstructure:"enabled"`

	// Port serves /metrics on a dedicated listener. Zero serves it from the
	// API server only.
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`
}

// MetadataConfig selects the metadata store. Only the section named by
// Type is decoded.
type MetadataConfig struct {
	Type   string         `mapstructure:"type" validate:"required,oneof=memory badger"`
	Memory map[string]any `mapstructure:"memory"`

	// Badger is decoded into badger.BadgerMetadataStoreConfig
	Badger map[string]any `mapstructure:"badger"`

	// ConflictRetries bounds re-runs of a transaction that lost a commit
	// race (default: 5)
	ConflictRetries int `mapstructure:"conflict_retries" validate:"gte=0,lte=100"`
}

// ContentConfig selects the object backend holding chunk bytes. Only the
// section named by Type is decoded.
type ContentConfig struct {
	Type       string         `mapstructure:"type" validate:"required,oneof=filesystem memory s3"`
	Filesystem map[string]any `mapstructure:"filesystem"`
	Memory     map[string]any `mapstructure:"memory"`
	S3         map[string]any `mapstructure:"s3"`

	// Compression applied to new objects: none, lz4 or zstd. Objects are
	// self-describing, so the setting can change without a migration.
	Compression string `mapstructure:"compression" validate:"oneof=none lz4 zstd"`

	// Retry bounds the backoff applied to backend calls
	Retry content.RetryPolicy `mapstructure:"retry"`
}

// ChunksConfig configures the chunk store.
type ChunksConfig struct {
	// CacheMaxBytes bounds the chunk read cache; 0 disables it
	CacheMaxBytes int64 `mapstructure:"cache_max_bytes" validate:"gte=0"`
}

// UploadsConfig configures upload sessions.
type UploadsConfig struct {
	// SessionTTL is how long an idle session lives (default: 24h)
	SessionTTL time.Duration `mapstructure:"session_ttl" validate:"gte=0"`

	// MaxManifestEntries bounds the declared manifest (default: 100000)
	MaxManifestEntries int `mapstructure:"max_manifest_entries" validate:"gte=0"`
}

// EventsConfig configures the event bus.
type EventsConfig struct {
	// QueueSize is the per-subscriber buffer (default: 256). A full queue
	// drops events rather than blocking commits.
	QueueSize int `mapstructure:"queue_size" validate:"gte=0"`

	// Log subscribes a logger to every committed version
	Log bool `mapstructure:"log"`
}

// Load reads configPath (or config.yaml in the default directory when
// empty), overlays DITTOVAULT_* environment variables, fills defaults and
// validates the result. A missing file is not an error.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setupViper(v, configPath)

	if err := readConfigFile(v); err != nil {
		return nil, err
	}
	return decode(v)
}

func decode(v *viper.Viper) (*Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	ApplyDefaults(&cfg)

	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// setupViper configures viper with environment variables and config file settings.
func setupViper(v *viper.Viper, configPath string) {
	// Environment variables use DITTOVAULT_ prefix and underscores
	// Example: DITTOVAULT_LOGGING_LEVEL=DEBUG
	v.SetEnvPrefix("DITTOVAULT")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// AutomaticEnv only applies to keys viper already knows about
	setViperDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Default location: $XDG_CONFIG_HOME/dittovault/config.yaml
		v.AddConfigPath(getConfigDir())
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}
}

// readConfigFile reads the configuration file if it exists.
func readConfigFile(v *viper.Viper) error {
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found is acceptable - use defaults
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}
	return nil
}

// Watch reloads the configuration whenever the file changes and hands the
// new, validated configuration to onChange. Invalid edits are logged and
// ignored.
//
// Only settings that can change at runtime should be applied by onChange;
// stores and listeners keep the configuration they were built with.
func Watch(configPath string, onChange func(*Config)) error {
	v := viper.New()
	setupViper(v, configPath)
	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) {
			return
		}
		cfg, err := decode(v)
		if err != nil {
			logger.Warn("Ignoring invalid configuration change in %s: %v", e.Name, err)
			return
		}
		logger.Info("Configuration reloaded from %s", e.Name)
		onChange(cfg)
	})
	v.WatchConfig()
	return nil
}

// getConfigDir returns the configuration directory path.
//
// Uses XDG_CONFIG_HOME if set, otherwise ~/.config, or falls back to current
// directory (.) if home directory cannot be determined.
func getConfigDir() string {
	if xdgConfig := os.Getenv("XDG_CONFIG_HOME"); xdgConfig != "" {
		return filepath.Join(xdgConfig, "dittovault")
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".config", "dittovault")
}

// GetDefaultConfigPath returns the default configuration file path.
func GetDefaultConfigPath() string {
	return filepath.Join(getConfigDir(), "config.yaml")
}

// ConfigExists checks if a config file exists at the default location.
func ConfigExists() bool {
	_, err := os.Stat(GetDefaultConfigPath())
	return err == nil
}

// GetConfigDir returns the configuration directory path (exposed for init command).
func GetConfigDir() string {
	return getConfigDir()
}
