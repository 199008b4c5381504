package testing

import (
	"fmt"
	"testing"

	"github.com/google/uuid"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunVersionTests executes version and version index tests.
func (suite *StoreTestSuite) RunVersionTests(t *testing.T) {
	t.Run("PutAndGet", suite.testPutAndGetVersion)
	t.Run("SequenceOrder", suite.testVersionSequenceOrder)
	t.Run("Delete", suite.testDeleteVersion)
}

func testVersion(fileID string, seq uint64) *metadata.Version {
	hash := metadata.HashBytes([]byte(fmt.Sprintf("%s-%d", fileID, seq)))
	return &metadata.Version{
		ID:          uuid.NewString(),
		FileID:      fileID,
		Sequence:    seq,
		Fingerprint: fmt.Sprintf("fp-%s-%d", fileID, seq),
		AuthorID:    "alice",
		Message:     "commit",
		Size:        4,
		Manifest:    []metadata.ChunkRef{{Hash: hash, Index: 0, Length: 4}},
		CreatedAt:   now(),
	}
}

func (suite *StoreTestSuite) testPutAndGetVersion(t *testing.T) {
	store := suite.NewStore(t)
	v := testVersion("file", 1)

	update(t, store, func(tx metadata.Tx) error { return tx.PutVersion(v) })

	view(t, store, func(tx metadata.Tx) error {
		got, err := tx.GetVersion(v.ID)
		require.NoError(t, err)
		assert.Equal(t, v.Fingerprint, got.Fingerprint)
		assert.Equal(t, v.Manifest, got.Manifest)
		assert.False(t, got.Locked)
		assert.Nil(t, got.LockedAt)

		id, err := tx.LookupFingerprint(v.Fingerprint)
		require.NoError(t, err)
		assert.Equal(t, v.ID, id)

		_, err = tx.LookupFingerprint("nope")
		assert.True(t, metadata.IsNotFound(err))
		return nil
	})
}

func (suite *StoreTestSuite) testVersionSequenceOrder(t *testing.T) {
	store := suite.NewStore(t)

	view(t, store, func(tx metadata.Tx) error {
		seq, err := tx.LatestSequence("file")
		require.NoError(t, err)
		assert.Equal(t, uint64(0), seq)
		return nil
	})

	// Sequences past 255 check that ordering is numeric, not lexical
	var want []string
	update(t, store, func(tx metadata.Tx) error {
		for _, seq := range []uint64{1, 2, 10, 256, 300} {
			v := testVersion("file", seq)
			want = append(want, v.ID)
			require.NoError(t, tx.PutVersion(v))
		}
		return tx.PutVersion(testVersion("other", 7))
	})

	view(t, store, func(tx metadata.Tx) error {
		ids, err := tx.ListVersionIDs("file")
		require.NoError(t, err)
		assert.Equal(t, want, ids)

		seq, err := tx.LatestSequence("file")
		require.NoError(t, err)
		assert.Equal(t, uint64(300), seq)
		return nil
	})
}

func (suite *StoreTestSuite) testDeleteVersion(t *testing.T) {
	store := suite.NewStore(t)
	v1 := testVersion("file", 1)
	v2 := testVersion("file", 2)

	update(t, store, func(tx metadata.Tx) error {
		require.NoError(t, tx.PutVersion(v1))
		return tx.PutVersion(v2)
	})
	update(t, store, func(tx metadata.Tx) error { return tx.DeleteVersion(v2.ID) })

	view(t, store, func(tx metadata.Tx) error {
		_, err := tx.GetVersion(v2.ID)
		assert.True(t, metadata.IsNotFound(err))
		_, err = tx.LookupFingerprint(v2.Fingerprint)
		assert.True(t, metadata.IsNotFound(err))

		seq, err := tx.LatestSequence("file")
		require.NoError(t, err)
		assert.Equal(t, uint64(1), seq)
		return nil
	})
}
