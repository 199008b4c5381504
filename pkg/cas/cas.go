// Package cas implements the content-addressable chunk store.
//
// Chunk bytes live in an object backend (content.ContentStore) under a key
// derived from their SHA-256. Chunk records, including reference counts,
// live in the metadata store so they can change atomically together with
// version and namespace rows.
//
// Ordering rule: bytes are written to the backend before the record is
// created, and records are deleted before the bytes. A chunk record therefore
// always implies its bytes are present.
package cas

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"sync"
	"time"

	"github.com/dgraph-io/ristretto/v2"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// Config configures a chunk Store.
type Config struct {
	// CacheMaxBytes bounds the read cache. Zero disables caching.
	CacheMaxBytes int64

	// Metrics receives observations. Nil disables metrics.
	Metrics Metrics
}

// Store is the chunk store.
//
// Thread Safety:
// Safe for concurrent use. Concurrent Puts of the same hash converge: both
// write identical bytes and only one record is created.
type Store struct {
	meta    metadata.Store
	backend content.ContentStore
	cache   *ristretto.Cache[string, []byte]
	metrics Metrics

	// hashLocks serializes Put and Reclaim of the same hash so a reclaimer
	// cannot delete bytes a concurrent Put has just rewritten
	hashLocks [256]sync.Mutex
}

func (s *Store) lockHash(hash string) func() {
	h := fnv.New32a()
	_, _ = h.Write([]byte(hash))
	mu := &s.hashLocks[h.Sum32()%uint32(len(s.hashLocks))]
	mu.Lock()
	return mu.Unlock
}

// New creates a chunk store over the given metadata store and object backend.
// The backend should already be wrapped in content.RetryingStore.
func New(meta metadata.Store, backend content.ContentStore, cfg Config) (*Store, error) {
	s := &Store{
		meta:    meta,
		backend: backend,
		metrics: cfg.Metrics,
	}
	if s.metrics == nil {
		s.metrics = noopMetrics{}
	}

	if cfg.CacheMaxBytes > 0 {
		// Assume ~1MiB average chunks; ristretto wants ~10 counters per item
		counters := max(cfg.CacheMaxBytes/(1<<20)*10, 1000)
		cache, err := ristretto.NewCache(&ristretto.Config[string, []byte]{
			NumCounters: counters,
			MaxCost:     cfg.CacheMaxBytes,
			BufferItems: 64,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create chunk cache: %w", err)
		}
		s.cache = cache
	}

	return s, nil
}

// Close releases the read cache. The metadata store and backend are owned
// by the caller.
func (s *Store) Close() {
	if s.cache != nil {
		s.cache.Close()
	}
}

// Exists reports whether a chunk record exists for hash.
func (s *Store) Exists(ctx context.Context, hash string) (bool, error) {
	if err := metadata.ValidateHash(hash); err != nil {
		return false, err
	}

	err := s.meta.View(ctx, func(tx metadata.Tx) error {
		_, err := tx.GetChunk(hash)
		return err
	})
	if metadata.IsNotFound(err) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Stat returns the chunk record for hash.
func (s *Store) Stat(ctx context.Context, hash string) (*metadata.Chunk, error) {
	if err := metadata.ValidateHash(hash); err != nil {
		return nil, err
	}

	var chunk *metadata.Chunk
	err := s.meta.View(ctx, func(tx metadata.Tx) error {
		var err error
		chunk, err = tx.GetChunk(hash)
		return err
	})
	return chunk, err
}

// CheckMissing returns the hashes that have no chunk record, de-duplicated
// and in first-seen order. Each hash costs one point lookup.
func (s *Store) CheckMissing(ctx context.Context, hashes []string) ([]string, error) {
	distinct := metadata.Distinct(hashes)
	for _, h := range distinct {
		if err := metadata.ValidateHash(h); err != nil {
			return nil, err
		}
	}

	var missing []string
	err := s.meta.View(ctx, func(tx metadata.Tx) error {
		var err error
		missing, err = s.MissingIn(tx, distinct)
		return err
	})
	if err != nil {
		return nil, err
	}
	return missing, nil
}

// MissingIn is CheckMissing inside the caller's transaction. hashes must
// already be validated.
func (s *Store) MissingIn(tx metadata.Tx, hashes []string) ([]string, error) {
	missing := make([]string, 0)
	if err := s.collectMissing(tx, metadata.Distinct(hashes), &missing); err != nil {
		return nil, err
	}
	return missing, nil
}

func (s *Store) collectMissing(tx metadata.Tx, distinct []string, missing *[]string) error {
	for _, h := range distinct {
		_, err := tx.GetChunk(h)
		if metadata.IsNotFound(err) {
			*missing = append(*missing, h)
			continue
		}
		if err != nil {
			return err
		}
	}
	return nil
}

// Put stores data under hash.
//
// The digest of data must equal hash. Putting a chunk that already exists
// does not rewrite the bytes and never changes its reference count; for a
// chunk with no references it restarts the reclaim grace period.
func (s *Store) Put(ctx context.Context, hash string, data []byte) (err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("put", time.Since(start), err) }()

	if err := metadata.ValidateHash(hash); err != nil {
		return err
	}
	if actual := metadata.HashBytes(data); actual != hash {
		return metadata.NewValidationError(hash, "chunk digest mismatch (got %s)", actual)
	}

	defer s.lockHash(hash)()

	exists, err := s.touchIfExists(ctx, hash)
	if err != nil {
		return err
	}
	if exists {
		s.metrics.RecordDedup()
		return nil
	}

	key := metadata.ObjectKey(hash)
	if err := s.backend.Put(ctx, key, data); err != nil {
		return backendError(hash, "put", err)
	}
	s.metrics.RecordBytes("put", int64(len(data)))

	return metadata.UpdateWithRetry(ctx, s.meta, 0, func(tx metadata.Tx) error {
		existing, err := tx.GetChunk(hash)
		if err == nil {
			// A concurrent Put registered it first
			return touch(tx, existing)
		}
		if !metadata.IsNotFound(err) {
			return err
		}

		now := time.Now().UTC()
		return tx.PutChunk(&metadata.Chunk{
			Hash:       hash,
			Size:       int64(len(data)),
			StorageKey: key,
			RefCount:   0,
			CreatedAt:  now,
			UpdatedAt:  now,
		})
	})
}

// touchIfExists refreshes UpdatedAt on an existing unreferenced chunk and
// reports whether the record exists.
func (s *Store) touchIfExists(ctx context.Context, hash string) (bool, error) {
	exists := false
	err := metadata.UpdateWithRetry(ctx, s.meta, 0, func(tx metadata.Tx) error {
		existing, err := tx.GetChunk(hash)
		if metadata.IsNotFound(err) {
			exists = false
			return nil
		}
		if err != nil {
			return err
		}
		exists = true
		return touch(tx, existing)
	})
	return exists, err
}

func touch(tx metadata.Tx, chunk *metadata.Chunk) error {
	if chunk.RefCount > 0 {
		return nil
	}
	chunk.UpdatedAt = time.Now().UTC()
	return tx.PutChunk(chunk)
}

// Get returns the bytes of a chunk, verifying their digest.
func (s *Store) Get(ctx context.Context, hash string) (data []byte, err error) {
	start := time.Now()
	defer func() { s.metrics.ObserveOperation("get", time.Since(start), err) }()

	if err := metadata.ValidateHash(hash); err != nil {
		return nil, err
	}

	if s.cache != nil {
		if cached, ok := s.cache.Get(hash); ok {
			s.metrics.RecordCacheHit(true)
			return bytes.Clone(cached), nil
		}
		s.metrics.RecordCacheHit(false)
	}

	chunk, err := s.Stat(ctx, hash)
	if err != nil {
		return nil, err
	}

	data, err = s.backend.Get(ctx, chunk.StorageKey)
	if err != nil {
		return nil, backendError(hash, "get", err)
	}
	if actual := metadata.HashBytes(data); actual != hash {
		logger.Error("Chunk %s failed digest verification (backend returned %s)", hash, actual)
		return nil, fmt.Errorf("chunk %s: %w", hash, content.ErrCorrupted)
	}
	s.metrics.RecordBytes("get", int64(len(data)))

	if s.cache != nil {
		s.cache.Set(hash, bytes.Clone(data), int64(len(data)))
	}
	return data, nil
}

// IncrementRef adds one reference to hash inside the caller's transaction.
// The chunk must exist.
func (s *Store) IncrementRef(tx metadata.Tx, hash string) error {
	chunk, err := tx.GetChunk(hash)
	if err != nil {
		return err
	}
	chunk.RefCount++
	chunk.UpdatedAt = time.Now().UTC()
	return tx.PutChunk(chunk)
}

// DecrementRef removes one reference from hash inside the caller's
// transaction. The count never drops below zero; a missing record is
// tolerated.
func (s *Store) DecrementRef(tx metadata.Tx, hash string) error {
	chunk, err := tx.GetChunk(hash)
	if metadata.IsNotFound(err) {
		logger.Warn("Releasing reference to unknown chunk %s", hash)
		return nil
	}
	if err != nil {
		return err
	}
	if chunk.RefCount <= 0 {
		logger.Warn("Chunk %s reference count already zero", hash)
		return nil
	}
	chunk.RefCount--
	chunk.UpdatedAt = time.Now().UTC()
	return tx.PutChunk(chunk)
}

// backendError converts a backend failure into the vault error taxonomy.
func backendError(hash, op string, err error) error {
	switch {
	case errors.Is(err, content.ErrUnavailable):
		return metadata.NewStorageUnavailableError(hash, err)
	case errors.Is(err, content.ErrContentNotFound):
		logger.Error("Chunk %s has a record but no bytes in the backend", hash)
		return fmt.Errorf("chunk %s bytes missing: %w", hash, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	}
	return fmt.Errorf("chunk %s %s: %w", hash, op, err)
}
