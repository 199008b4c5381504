package testing

import (
	"context"
	"errors"
	"testing"

	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunTransactionTests checks all-or-nothing semantics.
func (suite *StoreTestSuite) RunTransactionTests(t *testing.T) {
	t.Run("RollbackOnError", suite.testRollbackOnError)
	t.Run("RollbackRestoresIndexes", suite.testRollbackRestoresIndexes)
	t.Run("ReadYourWrites", suite.testReadYourWrites)
	t.Run("ViewIsReadOnly", suite.testViewIsReadOnly)
	t.Run("CancelledContext", suite.testCancelledContext)
}

func (suite *StoreTestSuite) testRollbackOnError(t *testing.T) {
	store := suite.NewStore(t)
	root := newNode("repo", "", "", "proj", metadata.KindDirectory)
	boom := errors.New("boom")

	err := store.Update(testContext(), func(tx metadata.Tx) error {
		require.NoError(t, tx.PutNode(root))
		require.NoError(t, tx.PutChunk(testChunk("x", 1, now())))
		return boom
	})
	require.ErrorIs(t, err, boom)

	view(t, store, func(tx metadata.Tx) error {
		_, err := tx.GetNode(root.ID)
		assert.True(t, metadata.IsNotFound(err))
		_, err = tx.LookupPath("repo", "/proj")
		assert.True(t, metadata.IsNotFound(err))
		_, err = tx.GetChunk(metadata.HashBytes([]byte("x")))
		assert.True(t, metadata.IsNotFound(err))
		return nil
	})
}

func (suite *StoreTestSuite) testRollbackRestoresIndexes(t *testing.T) {
	store := suite.NewStore(t)
	root := newNode("repo", "", "", "proj", metadata.KindDirectory)
	update(t, store, func(tx metadata.Tx) error { return tx.PutNode(root) })

	err := store.Update(testContext(), func(tx metadata.Tx) error {
		moved := root.Clone()
		moved.Name = "archive"
		moved.Path = "/archive"
		require.NoError(t, tx.PutNode(moved))
		return errors.New("abort")
	})
	require.Error(t, err)

	view(t, store, func(tx metadata.Tx) error {
		id, err := tx.LookupPath("repo", "/proj")
		require.NoError(t, err)
		assert.Equal(t, root.ID, id)
		_, err = tx.LookupPath("repo", "/archive")
		assert.True(t, metadata.IsNotFound(err))

		got, err := tx.GetNode(root.ID)
		require.NoError(t, err)
		assert.Equal(t, "proj", got.Name)
		return nil
	})
}

func (suite *StoreTestSuite) testReadYourWrites(t *testing.T) {
	store := suite.NewStore(t)
	root := newNode("repo", "", "", "proj", metadata.KindDirectory)
	child := newNode("repo", root.ID, root.Path, "sub", metadata.KindDirectory)

	update(t, store, func(tx metadata.Tx) error {
		require.NoError(t, tx.PutNode(root))
		require.NoError(t, tx.PutNode(child))

		ids, err := tx.ListDescendantIDs("repo", "/proj")
		require.NoError(t, err)
		assert.Equal(t, []string{child.ID}, ids)

		id, err := tx.LookupChild("repo", root.ID, "sub")
		require.NoError(t, err)
		assert.Equal(t, child.ID, id)
		return nil
	})
}

func (suite *StoreTestSuite) testViewIsReadOnly(t *testing.T) {
	store := suite.NewStore(t)
	root := newNode("repo", "", "", "proj", metadata.KindDirectory)

	err := store.View(testContext(), func(tx metadata.Tx) error {
		return tx.PutNode(root)
	})
	assert.Error(t, err)
}

func (suite *StoreTestSuite) testCancelledContext(t *testing.T) {
	store := suite.NewStore(t)
	root := newNode("repo", "", "", "proj", metadata.KindDirectory)

	ctx, cancel := context.WithCancel(testContext())
	cancel()

	err := store.Update(ctx, func(tx metadata.Tx) error { return tx.PutNode(root) })
	require.ErrorIs(t, err, context.Canceled)

	view(t, store, func(tx metadata.Tx) error {
		_, err := tx.GetNode(root.ID)
		assert.True(t, metadata.IsNotFound(err))
		return nil
	})
}
