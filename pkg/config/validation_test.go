package config

import (
	"strings"
	"testing"
	"time"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"Defaults", func(*Config) {}, ""},
		{"InvalidLogLevel", func(c *Config) { c.Logging.Level = "INVALID" }, "oneof"},
		{"InvalidLogFormat", func(c *Config) { c.Logging.Format = "xml" }, "oneof"},
		{"InvalidContentType", func(c *Config) { c.Content.Type = "tape" }, "oneof"},
		{"InvalidMetadataType", func(c *Config) { c.Metadata.Type = "postgres" }, "oneof"},
		{"InvalidCompression", func(c *Config) { c.Content.Compression = "brotli" }, "oneof"},
		{"InvalidPort", func(c *Config) { c.API.Port = 70000 }, "lte"},
		{"NegativeBatch", func(c *Config) { c.GC.BatchSize = -1 }, "gte"},
		{
			"FilesystemWithoutPath",
			func(c *Config) { c.Content.Filesystem["path"] = "" },
			"content.filesystem.path",
		},
		{
			"S3WithoutBucket",
			func(c *Config) {
				c.Content.Type = "s3"
				c.Content.S3 = map[string]any{"region": "eu-west-1"}
			},
			"content.s3.bucket",
		},
		{
			"S3Complete",
			func(c *Config) {
				c.Content.Type = "s3"
				c.Content.S3 = map[string]any{"region": "eu-west-1", "bucket": "vault"}
			},
			"",
		},
		{
			"BadgerWithoutPath",
			func(c *Config) {
				c.Metadata.Type = "badger"
				c.Metadata.Badger = map[string]any{}
			},
			"db_path",
		},
		{
			"BadgerInMemory",
			func(c *Config) {
				c.Metadata.Type = "badger"
				c.Metadata.Badger = map[string]any{"in_memory": true}
			},
			"",
		},
		{
			"MetricsPortCollision",
			func(c *Config) { c.Metrics.Port = c.API.Port },
			"collides",
		},
		{
			"GraceShorterThanSessionTTL",
			func(c *Config) { c.GC.Grace = time.Hour },
			"gc.grace",
		},
		{
			"ShortGraceWithoutReclaim",
			func(c *Config) {
				c.GC.Grace = time.Hour
				c.GC.Reclaim = false
			},
			"",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := GetDefaultConfig()
			tt.mutate(cfg)

			err := Validate(cfg)
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("Expected config to validate, got: %v", err)
				}
				return
			}
			if err == nil {
				t.Fatalf("Expected validation error containing %q", tt.wantErr)
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Expected error containing %q, got: %v", tt.wantErr, err)
			}
		})
	}
}
