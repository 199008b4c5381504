// Package gc runs the vault's periodic background maintenance.
//
// Two kinds of garbage accumulate in normal operation:
//   - Upload sessions that were abandoned and outlived their TTL
//   - Chunks whose last citing version was deleted, or that were uploaded
//     into a session that never finalized
//
// The collector sweeps the first and, when reclamation is enabled, deletes
// the second once they have been unreferenced for the grace period.
package gc

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/cas"
)

// SessionSweeper deletes expired upload sessions.
type SessionSweeper interface {
	SweepExpired(ctx context.Context, limit int) (int, error)
}

// ChunkReclaimer deletes chunks with no references.
type ChunkReclaimer interface {
	Reclaim(ctx context.Context, grace time.Duration, limit int, dryRun bool) (cas.ReclaimStats, error)
}

// Config contains configuration for the collector.
type Config struct {
	// Enabled controls whether the background loop runs (default: true).
	// RunNow works either way.
	Enabled bool `mapstructure:"enabled"`

	// Interval is how often to run (default: 1h)
	Interval time.Duration `mapstructure:"interval"`

	// Reclaim enables deletion of unreferenced chunks. Session sweeping is
	// always on.
	Reclaim bool `mapstructure:"reclaim"`

	// Grace is how long a chunk must stay unreferenced before it is
	// reclaimed (default: 24h). It must exceed the longest expected gap
	// between a chunk upload and its finalize.
	Grace time.Duration `mapstructure:"grace" validate:"gte=0"`

	// BatchSize bounds sessions and chunks handled per run (default: 1000)
	BatchSize int `mapstructure:"batch_size" validate:"gte=0"`

	// DryRun reports reclaimable chunks without deleting them
	DryRun bool `mapstructure:"dry_run"`
}

// Collector performs periodic session sweeps and chunk reclamation.
//
// Thread Safety: Safe for concurrent use. Runs never overlap.
type Collector struct {
	sessions SessionSweeper
	chunks   ChunkReclaimer
	config   Config

	runMu    sync.Mutex
	stopOnce sync.Once
	started  bool
	stopCh   chan struct{}
	doneCh   chan struct{}
}

// NewCollector creates a collector. It is initialized but not started; call
// Start to begin background collection. chunks may be nil when reclamation
// is disabled.
func NewCollector(sessions SessionSweeper, chunks ChunkReclaimer, config Config) (*Collector, error) {
	if sessions == nil {
		return nil, fmt.Errorf("session sweeper is required")
	}
	if config.Reclaim && chunks == nil {
		return nil, fmt.Errorf("chunk reclaimer is required when reclaim is enabled")
	}

	if config.Interval == 0 {
		config.Interval = time.Hour
	}
	if config.Grace == 0 {
		config.Grace = 24 * time.Hour
	}
	if config.BatchSize == 0 {
		config.BatchSize = 1000
	}

	return &Collector{
		sessions: sessions,
		chunks:   chunks,
		config:   config,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins background collection. Calling it on a disabled collector
// only logs.
func (c *Collector) Start() {
	if !c.config.Enabled {
		logger.Info("Background collector disabled")
		return
	}

	logger.Info("Starting collector: interval=%s reclaim=%v grace=%s batch_size=%d dry_run=%v",
		c.config.Interval, c.config.Reclaim, c.config.Grace, c.config.BatchSize, c.config.DryRun)

	c.started = true
	go c.worker()
}

// Stop signals the worker and waits for an in-progress run to finish or for
// ctx to expire. Safe to call multiple times.
func (c *Collector) Stop(ctx context.Context) error {
	if !c.started {
		return nil
	}

	c.stopOnce.Do(func() {
		logger.Info("Stopping collector...")
		close(c.stopCh)
	})

	select {
	case <-c.doneCh:
		logger.Info("Collector stopped")
		return nil
	case <-ctx.Done():
		logger.Warn("Collector shutdown timeout")
		return ctx.Err()
	}
}

// RunNow performs one collection run and blocks until it completes.
func (c *Collector) RunNow(ctx context.Context) (*Stats, error) {
	logger.Info("Running collection (manual trigger)...")
	return c.collect(ctx)
}

func (c *Collector) worker() {
	defer close(c.doneCh)

	ticker := time.NewTicker(c.config.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
			stats, err := c.collect(ctx)
			cancel()

			if err != nil {
				logger.Error("Collection failed: %v", err)
			} else {
				logger.Info("Collection completed: %s", stats.Summary())
			}

		case <-c.stopCh:
			return
		}
	}
}

// collect sweeps sessions first so chunks released by them start their
// grace period as early as possible.
func (c *Collector) collect(ctx context.Context) (*Stats, error) {
	c.runMu.Lock()
	defer c.runMu.Unlock()

	stats := &Stats{StartTime: time.Now(), DryRun: c.config.DryRun}
	defer func() { stats.EndTime = time.Now() }()

	swept, err := c.sessions.SweepExpired(ctx, c.config.BatchSize)
	stats.SessionsSwept = swept
	if err != nil {
		return stats, fmt.Errorf("sweep sessions: %w", err)
	}

	if !c.config.Reclaim {
		return stats, nil
	}

	reclaim, err := c.chunks.Reclaim(ctx, c.config.Grace, c.config.BatchSize, c.config.DryRun)
	stats.ChunkCandidates = reclaim.Candidates
	stats.ChunksReclaimed = reclaim.Reclaimed
	stats.BytesFreed = reclaim.BytesFreed
	stats.Errors = reclaim.Errors
	if err != nil {
		return stats, fmt.Errorf("reclaim chunks: %w", err)
	}

	if c.config.DryRun && reclaim.Candidates > 0 {
		logger.Info("Collector: DRY RUN - would reclaim %d chunks (%d bytes)",
			reclaim.Candidates, reclaim.BytesFreed)
	}
	return stats, nil
}

// Stats contains statistics from one collection run.
type Stats struct {
	StartTime       time.Time // When collection started
	EndTime         time.Time // When collection ended
	SessionsSwept   int       // Expired upload sessions deleted
	ChunkCandidates int       // Unreferenced chunks past the grace period
	ChunksReclaimed int       // Chunks deleted
	BytesFreed      int64     // Bytes released (or releasable in dry run)
	Errors          int       // Backend deletes that failed
	DryRun          bool
}

// Duration returns the total collection duration.
func (s *Stats) Duration() time.Duration {
	if s.EndTime.IsZero() {
		return time.Since(s.StartTime)
	}
	return s.EndTime.Sub(s.StartTime)
}

// Summary returns a human-readable summary of the collection.
func (s *Stats) Summary() string {
	return fmt.Sprintf("sessions=%d candidates=%d reclaimed=%d freed=%d errors=%d dry_run=%v duration=%s",
		s.SessionsSwept, s.ChunkCandidates, s.ChunksReclaimed, s.BytesFreed,
		s.Errors, s.DryRun, s.Duration())
}
