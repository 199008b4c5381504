package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// errReadOnly is returned by write methods called inside View.
var errReadOnly = errors.New("metadata: write in read-only transaction")

var (
	_ metadata.Store = (*MemoryMetadataStore)(nil)
	_ metadata.Tx    = (*memoryTx)(nil)
)

// MemoryMetadataStore implements metadata.Store using in-memory maps.
//
// This implementation is designed for:
//   - Testing and development
//   - Ephemeral single-process deployments
//
// Thread Safety:
// Readers share a read lock and writers hold the write lock for the whole
// Update, so transactions never interleave. Writes inside Update are applied
// in place and recorded in an undo log; a failing Update replays the log in
// reverse, so no reader ever observes a partial transaction.
type MemoryMetadataStore struct {
	mu sync.RWMutex

	nodes    map[string]*metadata.Node
	children map[childKey]map[string]string // (repo, parent) -> name -> id
	paths    map[string]map[string]string   // repo -> path -> id

	chunks map[string]*metadata.Chunk

	versions     map[string]*metadata.Version
	fileVersions map[string]map[uint64]string // fileID -> sequence -> id
	fingerprints map[string]string

	sessions      map[string]*metadata.Session
	confirmations map[string]map[string]*metadata.Confirmation // session -> hash
}

type childKey struct {
	repositoryID string
	parentID     string
}

// MemoryMetadataStoreConfig contains configuration for the memory store.
//
// It is empty today and exists so the config factory can decode the memory
// section the same way it does for every other store.
type MemoryMetadataStoreConfig struct{}

// NewMemoryMetadataStore creates an empty in-memory metadata store.
func NewMemoryMetadataStore(_ MemoryMetadataStoreConfig) *MemoryMetadataStore {
	return &MemoryMetadataStore{
		nodes:         make(map[string]*metadata.Node),
		children:      make(map[childKey]map[string]string),
		paths:         make(map[string]map[string]string),
		chunks:        make(map[string]*metadata.Chunk),
		versions:      make(map[string]*metadata.Version),
		fileVersions:  make(map[string]map[uint64]string),
		fingerprints:  make(map[string]string),
		sessions:      make(map[string]*metadata.Session),
		confirmations: make(map[string]map[string]*metadata.Confirmation),
	}
}

// NewMemoryMetadataStoreWithDefaults creates an in-memory store with the
// default configuration.
func NewMemoryMetadataStoreWithDefaults() *MemoryMetadataStore {
	return NewMemoryMetadataStore(MemoryMetadataStoreConfig{})
}

// View implements metadata.Store.
func (s *MemoryMetadataStore) View(ctx context.Context, fn func(tx metadata.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return fn(&memoryTx{store: s, readOnly: true})
}

// Update implements metadata.Store.
func (s *MemoryMetadataStore) Update(ctx context.Context, fn func(tx metadata.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	tx := &memoryTx{store: s}
	err := fn(tx)
	if err == nil {
		// Honor cancellation that happened while fn ran, matching badger
		// which never commits a transaction for a cancelled request.
		err = ctx.Err()
	}
	if err != nil {
		tx.rollback()
		return err
	}
	return nil
}

// Healthcheck implements metadata.Store.
func (s *MemoryMetadataStore) Healthcheck(ctx context.Context) error {
	return ctx.Err()
}

// Close implements metadata.Store. The memory store holds no resources.
func (s *MemoryMetadataStore) Close() error {
	return nil
}

// memoryTx is a transaction over the store maps. The store lock is held by
// the caller for the lifetime of the transaction.
type memoryTx struct {
	store    *MemoryMetadataStore
	readOnly bool
	undo     []func()
}

func (tx *memoryTx) rollback() {
	for i := len(tx.undo) - 1; i >= 0; i-- {
		tx.undo[i]()
	}
	tx.undo = nil
}

func (tx *memoryTx) writable() error {
	if tx.readOnly {
		return errReadOnly
	}
	return nil
}

// setKey assigns m[k] = v and records how to restore the previous state.
func setKey[K comparable, V any](tx *memoryTx, m map[K]V, k K, v V) {
	old, had := m[k]
	tx.undo = append(tx.undo, func() {
		if had {
			m[k] = old
		} else {
			delete(m, k)
		}
	})
	m[k] = v
}

// deleteKey removes m[k] and records how to restore it.
func deleteKey[K comparable, V any](tx *memoryTx, m map[K]V, k K) {
	old, had := m[k]
	if !had {
		return
	}
	tx.undo = append(tx.undo, func() { m[k] = old })
	delete(m, k)
}
