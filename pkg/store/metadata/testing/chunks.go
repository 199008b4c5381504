package testing

import (
	"testing"
	"time"

	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunChunkTests executes chunk record tests.
func (suite *StoreTestSuite) RunChunkTests(t *testing.T) {
	t.Run("PutAndGet", suite.testPutAndGetChunk)
	t.Run("Unreferenced", suite.testUnreferencedChunks)
	t.Run("Delete", suite.testDeleteChunk)
}

func testChunk(data string, refs int64, updated time.Time) *metadata.Chunk {
	hash := metadata.HashBytes([]byte(data))
	return &metadata.Chunk{
		Hash:       hash,
		Size:       int64(len(data)),
		StorageKey: metadata.ObjectKey(hash),
		RefCount:   refs,
		CreatedAt:  updated,
		UpdatedAt:  updated,
	}
}

func (suite *StoreTestSuite) testPutAndGetChunk(t *testing.T) {
	store := suite.NewStore(t)
	chunk := testChunk("hello", 0, now())

	update(t, store, func(tx metadata.Tx) error { return tx.PutChunk(chunk) })

	view(t, store, func(tx metadata.Tx) error {
		got, err := tx.GetChunk(chunk.Hash)
		require.NoError(t, err)
		assert.Equal(t, chunk.Size, got.Size)
		assert.Equal(t, chunk.StorageKey, got.StorageKey)
		assert.Equal(t, int64(0), got.RefCount)

		_, err = tx.GetChunk(metadata.HashBytes([]byte("other")))
		assert.True(t, metadata.IsNotFound(err))
		return nil
	})
}

func (suite *StoreTestSuite) testUnreferencedChunks(t *testing.T) {
	store := suite.NewStore(t)
	old := now().Add(-time.Hour)
	orphan := testChunk("orphan", 0, old)
	fresh := testChunk("fresh", 0, now())
	used := testChunk("used", 2, old)

	update(t, store, func(tx metadata.Tx) error {
		for _, c := range []*metadata.Chunk{orphan, fresh, used} {
			require.NoError(t, tx.PutChunk(c))
		}
		return nil
	})

	view(t, store, func(tx metadata.Tx) error {
		chunks, err := tx.ListUnreferencedChunks(now().Add(-time.Minute), 0)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, orphan.Hash, chunks[0].Hash)
		return nil
	})

	// Referencing the orphan removes it from the unreferenced set
	orphan.RefCount = 1
	update(t, store, func(tx metadata.Tx) error { return tx.PutChunk(orphan) })

	view(t, store, func(tx metadata.Tx) error {
		chunks, err := tx.ListUnreferencedChunks(now().Add(time.Minute), 0)
		require.NoError(t, err)
		require.Len(t, chunks, 1)
		assert.Equal(t, fresh.Hash, chunks[0].Hash)
		return nil
	})
}

func (suite *StoreTestSuite) testDeleteChunk(t *testing.T) {
	store := suite.NewStore(t)
	chunk := testChunk("bye", 0, now().Add(-time.Hour))

	update(t, store, func(tx metadata.Tx) error { return tx.PutChunk(chunk) })
	update(t, store, func(tx metadata.Tx) error { return tx.DeleteChunk(chunk.Hash) })

	view(t, store, func(tx metadata.Tx) error {
		_, err := tx.GetChunk(chunk.Hash)
		assert.True(t, metadata.IsNotFound(err))

		chunks, err := tx.ListUnreferencedChunks(now(), 0)
		require.NoError(t, err)
		assert.Empty(t, chunks)
		return nil
	})
}
