package badger

import (
	"context"
	"testing"

	"github.com/marmos91/dittovault/pkg/store/metadata"
	storetest "github.com/marmos91/dittovault/pkg/store/metadata/testing"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *BadgerMetadataStore {
	t.Helper()

	store, err := NewBadgerMetadataStore(context.Background(), BadgerMetadataStoreConfig{
		DBPath:           t.TempDir(),
		BlockCacheSizeMB: 8,
		IndexCacheSizeMB: 8,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func TestBadgerMetadataStore(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.Store {
			return newTestStore(t)
		},
	}
	suite.Run(t)
}

func TestBadgerConflictMapsToConflictError(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	chunk := &metadata.Chunk{Hash: metadata.HashBytes([]byte("x")), Size: 1}
	chunk.StorageKey = metadata.ObjectKey(chunk.Hash)
	require.NoError(t, store.Update(ctx, func(tx metadata.Tx) error { return tx.PutChunk(chunk) }))

	// The outer transaction reads the chunk, an inner one commits a write
	// to the same key, and the outer commit must lose.
	err := store.Update(ctx, func(tx metadata.Tx) error {
		c, err := tx.GetChunk(chunk.Hash)
		require.NoError(t, err)

		require.NoError(t, store.Update(ctx, func(inner metadata.Tx) error {
			bumped := c.Clone()
			bumped.RefCount = 5
			return inner.PutChunk(bumped)
		}))

		c.RefCount++
		return tx.PutChunk(c)
	})
	require.True(t, metadata.IsConflict(err), "expected conflict, got %v", err)
	require.True(t, metadata.IsTxnConflict(err))

	require.NoError(t, store.View(ctx, func(tx metadata.Tx) error {
		c, err := tx.GetChunk(chunk.Hash)
		require.NoError(t, err)
		require.Equal(t, int64(5), c.RefCount)
		return nil
	}))
}

func TestBadgerPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	store, err := NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dir, BlockCacheSizeMB: 8, IndexCacheSizeMB: 8})
	require.NoError(t, err)

	session := &metadata.Session{ID: "s1", RepositoryID: "repo", Path: "/a", Manifest: []string{}}
	require.NoError(t, store.Update(ctx, func(tx metadata.Tx) error { return tx.PutSession(session) }))
	require.NoError(t, store.Close())

	store, err = NewBadgerMetadataStore(ctx, BadgerMetadataStoreConfig{DBPath: dir, BlockCacheSizeMB: 8, IndexCacheSizeMB: 8})
	require.NoError(t, err)
	defer func() { _ = store.Close() }()

	require.NoError(t, store.View(ctx, func(tx metadata.Tx) error {
		got, err := tx.GetSession("s1")
		require.NoError(t, err)
		require.Equal(t, "/a", got.Path)
		return nil
	}))
}
