// Package metrics implements the Prometheus collectors for the chunk store,
// upload sessions, the S3 backend and the REST API. Nothing is collected
// until InitRegistry runs; before that every constructor returns nil and
// components use their no-op implementations.
//
// Usage:
//
//	// Initialize global registry (typically in main.go)
//	metrics.InitRegistry()
//
//	// Create metrics instances for components
//	chunks, err := cas.New(meta, backend, cas.Config{Metrics: metrics.NewCASMetrics()})
//	uploads := upload.New(meta, chunks, graph, bus, upload.Config{Metrics: metrics.NewUploadMetrics()})
package metrics

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	registry     *prometheus.Registry
	registryOnce sync.Once
)

// InitRegistry creates the global registry with the Go runtime and process
// collectors. Later calls are no-ops. Constructors called before it return
// nil.
func InitRegistry() {
	registryOnce.Do(func() {
		registry = prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
	})
}

// GetRegistry returns the global registry, or nil when metrics are disabled.
func GetRegistry() *prometheus.Registry {
	return registry
}

// IsEnabled reports whether InitRegistry has run.
func IsEnabled() bool {
	return GetRegistry() != nil
}

// Handler returns the scrape handler for the global registry, or nil when
// metrics are disabled.
func Handler() http.Handler {
	reg := GetRegistry()
	if reg == nil {
		return nil
	}
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func status(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
