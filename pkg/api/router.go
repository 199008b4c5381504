package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/marmos91/dittovault/internal/ratelimiter"
	"github.com/marmos91/dittovault/pkg/api/handlers"
	apimiddleware "github.com/marmos91/dittovault/pkg/api/middleware"
	"github.com/marmos91/dittovault/pkg/cas"
	"github.com/marmos91/dittovault/pkg/metrics"
	"github.com/marmos91/dittovault/pkg/namespace"
	"github.com/marmos91/dittovault/pkg/upload"
	"github.com/marmos91/dittovault/pkg/versions"
)

// Services are the components the API exposes.
type Services struct {
	Namespace *namespace.Manager
	Chunks    *cas.Store
	Versions  *versions.Graph
	Uploads   *upload.Manager

	// HealthChecks are probed by GET /health, keyed by display name
	HealthChecks map[string]handlers.HealthChecker
}

// NewRouter builds the chi router with every route mounted under /api/v1,
// plus /health and, when metrics are enabled, /metrics.
func NewRouter(svc Services, cfg Config, apiMetrics metrics.APIMetrics) http.Handler {
	cfg.applyDefaults()
	return newRouter(svc, cfg, apiMetrics, ratelimiter.New(cfg.RateLimit.RequestsPerSecond, cfg.RateLimit.Burst))
}

func newRouter(svc Services, cfg Config, apiMetrics metrics.APIMetrics, limiter *ratelimiter.RateLimiter) http.Handler {
	router := chi.NewRouter()

	// Standard middleware
	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(apimiddleware.RequestLogger(apiMetrics))
	router.Use(middleware.Recoverer)
	router.Use(middleware.GetHead)

	// Initialize handlers
	healthHandler := handlers.NewHealthHandler(svc.HealthChecks)
	nodeHandler := handlers.NewNodeHandler(svc.Namespace)
	uploadHandler := handlers.NewUploadHandler(svc.Uploads, cfg.MaxChunkSize)
	versionHandler := handlers.NewVersionHandler(svc.Versions, svc.Namespace)
	chunkHandler := handlers.NewChunkHandler(svc.Chunks)

	chunkLimit := apimiddleware.RateLimit(limiter, apiMetrics)

	router.Get("/health", healthHandler.HealthCheck)
	if handler := metrics.Handler(); handler != nil {
		router.Handle("/metrics", handler)
	}

	router.Route("/api/v1", func(api chi.Router) {
		// Namespace
		api.Route("/nodes", func(nodes chi.Router) {
			nodes.Post("/", nodeHandler.CreateNode)
			nodes.Get("/{id}", nodeHandler.GetNode)
			nodes.Delete("/{id}", nodeHandler.DeleteNode)
			nodes.Post("/{id}/move", nodeHandler.MoveNode)
			nodes.Get("/{id}/children", nodeHandler.ListChildren)
		})

		api.Route("/repositories/{repositoryId}", func(repo chi.Router) {
			repo.Get("/children", nodeHandler.ListRoot)
			repo.Get("/resolve", nodeHandler.ResolvePath)
			repo.Get("/nodes", nodeHandler.ListRepository)
			repo.Get("/uploads", uploadHandler.ListSessions)
		})

		// Upload sessions
		api.Route("/uploads", func(uploads chi.Router) {
			uploads.Post("/", uploadHandler.InitSession)
			uploads.Get("/{id}", uploadHandler.Progress)
			uploads.Delete("/{id}", uploadHandler.Cancel)
			uploads.Post("/{id}/check", uploadHandler.CheckMissing)
			uploads.Post("/{id}/finalize", uploadHandler.Finalize)
			uploads.With(chunkLimit).Put("/{id}/chunks/{hash}", uploadHandler.UploadChunk)
		})

		// Version history
		api.Route("/files/{nodeId}", func(files chi.Router) {
			files.Get("/versions", versionHandler.ListVersions)
			files.Post("/checkout", versionHandler.Checkout)
			files.Get("/content", versionHandler.FileContent)
		})

		api.Route("/versions", func(v chi.Router) {
			v.Get("/by-fingerprint/{fingerprint}", versionHandler.GetByFingerprint)
			v.Get("/{id}", versionHandler.GetVersion)
			v.Get("/{id}/chunks", versionHandler.ListChunks)
			v.Get("/{id}/content", versionHandler.VersionContent)
			v.Post("/{id}/lock", versionHandler.Lock)
		})

		// Raw chunks
		api.Get("/chunks/{hash}", chunkHandler.GetChunk)
		api.Head("/chunks/{hash}", chunkHandler.HeadChunk)
	})

	return router
}

// pruneLimiter drops idle per-client buckets until done is closed.
func pruneLimiter(limiter *ratelimiter.RateLimiter, done <-chan struct{}) {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			limiter.Prune(10 * time.Minute)
		case <-done:
			return
		}
	}
}
