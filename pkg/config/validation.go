package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// validate is the singleton validator instance
var validate *validator.Validate

func init() {
	validate = validator.New()
}

// Validate validates the configuration using struct tags and custom rules.
//
// Note: Log level normalization is handled in ApplyDefaults, not here.
// Validation accepts both uppercase and lowercase log levels.
func Validate(cfg *Config) error {
	if err := validate.Struct(cfg); err != nil {
		return formatValidationError(err)
	}
	return validateCustomRules(cfg)
}

// validateCustomRules performs custom validation beyond struct tags.
func validateCustomRules(cfg *Config) error {
	switch cfg.Content.Type {
	case "filesystem":
		if path, _ := cfg.Content.Filesystem["path"].(string); path == "" {
			return fmt.Errorf("content.filesystem.path is required for the filesystem backend")
		}
	case "s3":
		for _, key := range []string{"bucket", "region"} {
			if value, _ := cfg.Content.S3[key].(string); value == "" {
				return fmt.Errorf("content.s3.%s is required for the s3 backend", key)
			}
		}
	}

	if cfg.Metadata.Type == "badger" {
		inMemory, _ := cfg.Metadata.Badger["in_memory"].(bool)
		if path, _ := cfg.Metadata.Badger["db_path"].(string); path == "" && !inMemory {
			return fmt.Errorf("metadata.badger.db_path is required for the badger store")
		}
	}

	if cfg.Metrics.Enabled && cfg.Metrics.Port != 0 && cfg.Metrics.Port == cfg.API.Port {
		return fmt.Errorf("metrics.port %d collides with api.port", cfg.Metrics.Port)
	}

	if cfg.GC.Reclaim && cfg.GC.Grace < cfg.Uploads.SessionTTL {
		return fmt.Errorf("gc.grace (%s) must be at least uploads.session_ttl (%s) so chunks of live sessions are not reclaimed",
			cfg.GC.Grace, cfg.Uploads.SessionTTL)
	}

	return nil
}

// formatValidationError converts validator errors into user-friendly messages.
func formatValidationError(err error) error {
	if validationErrs, ok := err.(validator.ValidationErrors); ok {
		if len(validationErrs) > 0 {
			e := validationErrs[0]
			return fmt.Errorf("%s: validation failed on '%s' tag (value: %v)",
				e.Namespace(), e.Tag(), e.Value())
		}
	}
	return err
}
