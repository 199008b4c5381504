package cas

import (
	"context"
	"fmt"
	"time"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// ReclaimStats summarizes one reclaimer pass.
type ReclaimStats struct {
	// Candidates is the number of unreferenced chunks past the grace period
	Candidates int

	// Reclaimed is the number of chunk records deleted
	Reclaimed int

	// BytesFreed is the total size of reclaimed chunks
	BytesFreed int64

	// Errors counts backend deletes that failed after the record was gone.
	// The orphaned bytes are harmless: a later Put of the same hash
	// rewrites them.
	Errors int
}

// Reclaim deletes up to limit chunks that have had no references for at
// least grace. With dryRun it only counts candidates.
//
// Each chunk is re-checked and deleted in its own transaction, so a chunk
// that gained a reference since the scan is left alone.
func (s *Store) Reclaim(ctx context.Context, grace time.Duration, limit int, dryRun bool) (ReclaimStats, error) {
	var stats ReclaimStats
	cutoff := time.Now().UTC().Add(-grace)

	var candidates []*metadata.Chunk
	err := s.meta.View(ctx, func(tx metadata.Tx) error {
		var err error
		candidates, err = tx.ListUnreferencedChunks(cutoff, limit)
		return err
	})
	if err != nil {
		return stats, fmt.Errorf("scan unreferenced chunks: %w", err)
	}
	stats.Candidates = len(candidates)
	if dryRun {
		for _, c := range candidates {
			stats.BytesFreed += c.Size
		}
		return stats, nil
	}

	for _, candidate := range candidates {
		if err := ctx.Err(); err != nil {
			return stats, err
		}

		err := s.reclaimOne(ctx, candidate.Hash, cutoff, &stats)
		if metadata.IsTxnConflict(err) {
			// Someone touched it; it is no longer a candidate
			continue
		}
		if err != nil {
			return stats, err
		}
	}

	s.metrics.RecordReclaim(stats.Reclaimed, stats.BytesFreed)
	if stats.Reclaimed > 0 {
		logger.Info("Reclaim: removed %d chunks (%d bytes), %d backend errors",
			stats.Reclaimed, stats.BytesFreed, stats.Errors)
	}
	return stats, nil
}

// reclaimOne deletes the record of hash if it is still unreferenced and
// past cutoff, then its bytes. Both happen under the hash lock so a
// concurrent Put cannot recreate the record in between.
func (s *Store) reclaimOne(ctx context.Context, hash string, cutoff time.Time, stats *ReclaimStats) error {
	defer s.lockHash(hash)()

	var deleted *metadata.Chunk
	err := s.meta.Update(ctx, func(tx metadata.Tx) error {
		deleted = nil
		chunk, err := tx.GetChunk(hash)
		if metadata.IsNotFound(err) {
			return nil
		}
		if err != nil {
			return err
		}
		if chunk.RefCount > 0 || !chunk.UpdatedAt.Before(cutoff) {
			return nil
		}
		deleted = chunk
		return tx.DeleteChunk(hash)
	})
	if err != nil || deleted == nil {
		return err
	}

	if s.cache != nil {
		s.cache.Del(hash)
	}
	stats.Reclaimed++
	stats.BytesFreed += deleted.Size

	if err := s.backend.Delete(ctx, deleted.StorageKey); err != nil {
		stats.Errors++
		logger.Warn("Reclaim: chunk %s record removed but bytes not deleted: %v", hash, err)
	}
	return nil
}
