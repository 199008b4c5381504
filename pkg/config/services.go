package config

import (
	"context"
	"errors"
	"fmt"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/api"
	"github.com/marmos91/dittovault/pkg/api/handlers"
	"github.com/marmos91/dittovault/pkg/cas"
	"github.com/marmos91/dittovault/pkg/events"
	"github.com/marmos91/dittovault/pkg/gc"
	"github.com/marmos91/dittovault/pkg/namespace"
	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/upload"
	"github.com/marmos91/dittovault/pkg/versions"
)

// Vault holds every component built from a configuration.
type Vault struct {
	Metadata  metadata.Store
	Content   content.ContentStore
	Chunks    *cas.Store
	Versions  *versions.Graph
	Namespace *namespace.Manager
	Uploads   *upload.Manager
	Events    *events.Bus
	Collector *gc.Collector
	API       *api.Server
	Metrics   *MetricsResult
}

// InitializeVault creates a fully wired vault from the provided configuration.
//
// This function orchestrates the complete initialization process:
//  1. Creates metrics collectors (or no-ops)
//  2. Creates the metadata store and the object backend
//  3. Builds the chunk store, version graph, namespace and upload manager
//  4. Creates the event bus, the collector and the API server
//
// Nothing is started: the caller starts the collector and the servers. On
// error every store opened so far is closed.
//
// Collectors register with the global Prometheus registry, so with metrics
// enabled this may be called once per process.
func InitializeVault(ctx context.Context, cfg *Config) (*Vault, error) {
	if cfg == nil {
		return nil, fmt.Errorf("configuration is nil")
	}
	logger.Debug("Initializing vault from configuration")

	m := InitializeMetrics(cfg)

	meta, err := CreateMetadataStore(ctx, &cfg.Metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to create metadata store: %w", err)
	}

	backend, err := CreateContentStore(ctx, &cfg.Content, m.S3)
	if err != nil {
		_ = meta.Close()
		return nil, fmt.Errorf("failed to create content store: %w", err)
	}

	chunks, err := cas.New(meta, backend, cas.Config{
		CacheMaxBytes: cfg.Chunks.CacheMaxBytes,
		Metrics:       m.CAS,
	})
	if err != nil {
		_ = backend.Close()
		_ = meta.Close()
		return nil, fmt.Errorf("failed to create chunk store: %w", err)
	}

	graph := versions.New(meta, chunks)
	ns := namespace.New(meta, graph)

	bus := events.NewBus(cfg.Events.QueueSize)
	if cfg.Events.Log {
		bus.Subscribe("log", events.LogSubscriber())
	}

	uploads := upload.New(meta, chunks, graph, bus, upload.Config{
		SessionTTL:         cfg.Uploads.SessionTTL,
		MaxManifestEntries: cfg.Uploads.MaxManifestEntries,
		FinalizeRetries:    cfg.Metadata.ConflictRetries,
		Metrics:            m.Upload,
	})

	var reclaimer gc.ChunkReclaimer
	if cfg.GC.Reclaim {
		reclaimer = chunks
	}
	collector, err := gc.NewCollector(uploads, reclaimer, cfg.GC)
	if err != nil {
		_ = bus.Close(ctx)
		chunks.Close()
		_ = backend.Close()
		_ = meta.Close()
		return nil, fmt.Errorf("failed to create collector: %w", err)
	}

	server := api.NewServer(api.Services{
		Namespace: ns,
		Chunks:    chunks,
		Versions:  graph,
		Uploads:   uploads,
		HealthChecks: map[string]handlers.HealthChecker{
			"metadata": meta,
			"content":  backend,
		},
	}, cfg.API, m.API)

	return &Vault{
		Metadata:  meta,
		Content:   backend,
		Chunks:    chunks,
		Versions:  graph,
		Namespace: ns,
		Uploads:   uploads,
		Events:    bus,
		Collector: collector,
		API:       server,
		Metrics:   m,
	}, nil
}

// Close stops background work and releases the stores, in reverse order of
// creation. It does not stop the API server.
func (v *Vault) Close(ctx context.Context) error {
	var errs []error
	if err := v.Collector.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("collector: %w", err))
	}
	if err := v.Events.Close(ctx); err != nil {
		errs = append(errs, fmt.Errorf("events: %w", err))
	}
	v.Chunks.Close()
	if err := v.Content.Close(); err != nil {
		errs = append(errs, fmt.Errorf("content store: %w", err))
	}
	if err := v.Metadata.Close(); err != nil {
		errs = append(errs, fmt.Errorf("metadata store: %w", err))
	}
	return errors.Join(errs...)
}
