package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/marmos91/dittovault/pkg/store/content"
)

// MemoryContentStore implements content.ContentStore using in-memory storage.
//
// This implementation is designed for:
//   - Testing and development
//   - Small ephemeral deployments
//
// Thread Safety:
// All operations are protected by a sync.RWMutex. Data is copied on the way
// in and out so callers can reuse their buffers.
type MemoryContentStore struct {
	// data stores object bytes keyed by object key
	data map[string][]byte

	// mu protects concurrent access to data map
	mu sync.RWMutex
}

// NewMemoryContentStore creates a new empty in-memory content store.
func NewMemoryContentStore(ctx context.Context) (*MemoryContentStore, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &MemoryContentStore{data: make(map[string][]byte)}, nil
}

func (s *MemoryContentStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	buf := make([]byte, len(data))
	copy(buf, data)

	s.mu.Lock()
	s.data[key] = buf
	s.mu.Unlock()
	return nil
}

func (s *MemoryContentStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	s.mu.RLock()
	data, ok := s.data[key]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("object %s: %w", key, content.ErrContentNotFound)
	}

	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

func (s *MemoryContentStore) Exists(ctx context.Context, key string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	s.mu.RLock()
	_, ok := s.data[key]
	s.mu.RUnlock()
	return ok, nil
}

func (s *MemoryContentStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.data, key)
	s.mu.Unlock()
	return nil
}

func (s *MemoryContentStore) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

func (s *MemoryContentStore) Close() error {
	return nil
}

// Len returns the number of stored objects.
func (s *MemoryContentStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
