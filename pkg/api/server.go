// Package api serves the vault's REST interface.
package api

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/internal/ratelimiter"
	"github.com/marmos91/dittovault/pkg/metrics"
)

// Config configures the API server.
type Config struct {
	// Port to listen on (default: 8080)
	Port int `mapstructure:"port" validate:"gte=0,lte=65535"`

	// MaxChunkSize bounds one chunk upload body in bytes (default: 16MiB)
	MaxChunkSize int64 `mapstructure:"max_chunk_size" validate:"gte=0"`

	// ReadTimeout bounds reading a full request, chunk bodies included
	// (default: 2m)
	ReadTimeout time.Duration `mapstructure:"read_timeout"`

	// WriteTimeout bounds writing a response. Zero disables it so large
	// version downloads can stream.
	WriteTimeout time.Duration `mapstructure:"write_timeout"`

	// IdleTimeout closes idle keep-alive connections (default: 2m)
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`

	// ShutdownTimeout bounds graceful shutdown (default: 30s)
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

// RateLimitConfig throttles chunk uploads per client IP.
type RateLimitConfig struct {
	// RequestsPerSecond is the sustained rate; 0 disables limiting
	RequestsPerSecond uint `mapstructure:"requests_per_second"`

	// Burst is the bucket size; 0 means RequestsPerSecond
	Burst uint `mapstructure:"burst"`
}

func (c *Config) applyDefaults() {
	if c.Port == 0 {
		c.Port = 8080
	}
	if c.MaxChunkSize <= 0 {
		c.MaxChunkSize = 16 << 20
	}
	if c.ReadTimeout == 0 {
		c.ReadTimeout = 2 * time.Minute
	}
	if c.IdleTimeout == 0 {
		c.IdleTimeout = 2 * time.Minute
	}
	if c.ShutdownTimeout == 0 {
		c.ShutdownTimeout = 30 * time.Second
	}
}

// Server serves the REST API.
//
// The server supports graceful shutdown: Stop waits for in-flight requests
// up to ShutdownTimeout.
type Server struct {
	server       *http.Server
	config       Config
	limiter      *ratelimiter.RateLimiter
	done         chan struct{}
	doneOnce     sync.Once
	shutdownOnce sync.Once
}

// NewServer creates the API server in a stopped state. Call Start to begin
// serving requests. apiMetrics may be nil.
func NewServer(svc Services, config Config, apiMetrics metrics.APIMetrics) *Server {
	config.applyDefaults()

	limiter := ratelimiter.New(config.RateLimit.RequestsPerSecond, config.RateLimit.Burst)
	handler := newRouter(svc, config, apiMetrics, limiter)

	return &Server{
		server: &http.Server{
			Addr:              fmt.Sprintf(":%d", config.Port),
			Handler:           handler,
			ReadHeaderTimeout: 10 * time.Second,
			ReadTimeout:       config.ReadTimeout,
			WriteTimeout:      config.WriteTimeout,
			IdleTimeout:       config.IdleTimeout,
		},
		config:  config,
		limiter: limiter,
		done:    make(chan struct{}),
	}
}

// Handler returns the router, for embedding and tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start listens and serves until ctx is cancelled or the listener fails.
// Cancellation triggers graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return fmt.Errorf("api server listen: %w", err)
	}
	return s.Serve(ctx, ln)
}

// Serve is Start on an existing listener.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	go pruneLimiter(s.limiter, s.done)

	errChan := make(chan error, 1)
	go func() {
		logger.Info("API server listening on %s", ln.Addr())
		if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- err
		}
	}()

	select {
	case <-ctx.Done():
		logger.Info("API server shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.config.ShutdownTimeout)
		defer cancel()
		return s.Stop(shutdownCtx)
	case err := <-errChan:
		s.closeDone()
		return fmt.Errorf("api server failed: %w", err)
	}
}

// Stop gracefully shuts the server down. Safe to call multiple times and
// concurrently with Start.
func (s *Server) Stop(ctx context.Context) error {
	var shutdownErr error
	s.shutdownOnce.Do(func() {
		s.closeDone()
		if err := s.server.Shutdown(ctx); err != nil {
			shutdownErr = fmt.Errorf("api server shutdown error: %w", err)
			logger.Error("API server shutdown error: %v", err)
			return
		}
		logger.Info("API server stopped gracefully")
	})
	return shutdownErr
}

func (s *Server) closeDone() {
	s.doneOnce.Do(func() { close(s.done) })
}
