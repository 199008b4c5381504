package config

import (
	"github.com/marmos91/dittovault/pkg/cas"
	"github.com/marmos91/dittovault/pkg/metrics"
	contents3 "github.com/marmos91/dittovault/pkg/store/content/s3"
	"github.com/marmos91/dittovault/pkg/upload"
)

// MetricsResult contains all metrics-related components created from configuration.
type MetricsResult struct {
	// Server is the dedicated HTTP server exposing Prometheus metrics (nil if
	// disabled or when no port is configured)
	Server *metrics.Server

	// Collectors for each component. Nil values mean metrics are disabled;
	// every consumer treats nil as a no-op.
	CAS    cas.Metrics
	Upload upload.Metrics
	S3     contents3.S3Metrics
	API    metrics.APIMetrics
}

// InitializeMetrics creates and initializes all metrics components based on configuration.
//
// If metrics are enabled in the configuration:
//   - Initializes the global Prometheus registry
//   - Creates the metrics HTTP server when a port is set
//   - Creates Prometheus-backed metrics instances for all components
//
// If metrics are disabled it returns no-op implementations.
//
// Collectors register with the global registry, so this must be called at
// most once per process.
func InitializeMetrics(cfg *Config) *MetricsResult {
	if !cfg.Metrics.Enabled {
		return &MetricsResult{API: metrics.NewNoopAPIMetrics()}
	}

	metrics.InitRegistry()

	result := &MetricsResult{
		CAS:    metrics.NewCASMetrics(),
		Upload: metrics.NewUploadMetrics(),
		API:    metrics.NewAPIMetrics(),
	}
	if cfg.Content.Type == "s3" {
		result.S3 = metrics.NewS3Metrics()
	}
	if cfg.Metrics.Port != 0 {
		result.Server = metrics.NewServer(metrics.ServerConfig{Port: cfg.Metrics.Port})
	}
	return result
}
