package testing

import (
	"testing"

	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunNodeTests executes node and index tests.
func (suite *StoreTestSuite) RunNodeTests(t *testing.T) {
	t.Run("PutAndGet", suite.testPutAndGetNode)
	t.Run("Indexes", suite.testNodeIndexes)
	t.Run("ReindexOnRename", suite.testNodeReindex)
	t.Run("Delete", suite.testDeleteNode)
	t.Run("Descendants", suite.testDescendants)
	t.Run("RepositoryIsolation", suite.testRepositoryIsolation)
}

// testRepositoryIsolation uses repository ids where one is a prefix of
// another, including the separators a store might use in its keys.
func (suite *StoreTestSuite) testRepositoryIsolation(t *testing.T) {
	store := suite.NewStore(t)
	acmeRoot := newNode("acme", "", "", "-:x", metadata.KindDirectory)
	acmeFile := newNode("acme", acmeRoot.ID, acmeRoot.Path, "mine", metadata.KindFile)
	secret := newNode("acme:secret", "", "", "theirs", metadata.KindFile)
	dashRoot := newNode("acme:-", "", "", "x", metadata.KindDirectory)

	update(t, store, func(tx metadata.Tx) error {
		for _, n := range []*metadata.Node{acmeRoot, acmeFile, secret, dashRoot} {
			require.NoError(t, tx.PutNode(n))
		}
		return nil
	})

	view(t, store, func(tx metadata.Tx) error {
		ids, err := tx.ListRepositoryNodeIDs("acme")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{acmeRoot.ID, acmeFile.ID}, ids)

		ids, err = tx.ListChildIDs("acme", "")
		require.NoError(t, err)
		assert.Equal(t, []string{acmeRoot.ID}, ids)

		ids, err = tx.ListChildIDs("acme:-", "")
		require.NoError(t, err)
		assert.Equal(t, []string{dashRoot.ID}, ids)

		id, err := tx.LookupChild("acme", "", "-:x")
		require.NoError(t, err)
		assert.Equal(t, acmeRoot.ID, id)

		id, err = tx.LookupChild("acme:-", "", "x")
		require.NoError(t, err)
		assert.Equal(t, dashRoot.ID, id)

		_, err = tx.LookupPath("acme", "/theirs")
		assert.True(t, metadata.IsNotFound(err))

		ids, err = tx.ListDescendantIDs("acme", "/-:x")
		require.NoError(t, err)
		assert.Equal(t, []string{acmeFile.ID}, ids)
		return nil
	})
}

func (suite *StoreTestSuite) testPutAndGetNode(t *testing.T) {
	store := suite.NewStore(t)
	root := newNode("repo", "", "", "proj", metadata.KindDirectory)

	update(t, store, func(tx metadata.Tx) error { return tx.PutNode(root) })

	view(t, store, func(tx metadata.Tx) error {
		got, err := tx.GetNode(root.ID)
		require.NoError(t, err)
		assert.Equal(t, root.ID, got.ID)
		assert.Equal(t, "/proj", got.Path)
		assert.Equal(t, metadata.KindDirectory, got.Kind)
		assert.True(t, root.AttachedAt.Equal(got.AttachedAt))

		_, err = tx.GetNode("missing")
		assert.True(t, metadata.IsNotFound(err))
		return nil
	})
}

func (suite *StoreTestSuite) testNodeIndexes(t *testing.T) {
	store := suite.NewStore(t)
	root := newNode("repo", "", "", "proj", metadata.KindDirectory)
	file := newNode("repo", root.ID, root.Path, "a.txt", metadata.KindFile)
	other := newNode("other", "", "", "proj", metadata.KindDirectory)

	update(t, store, func(tx metadata.Tx) error {
		require.NoError(t, tx.PutNode(root))
		require.NoError(t, tx.PutNode(file))
		return tx.PutNode(other)
	})

	view(t, store, func(tx metadata.Tx) error {
		id, err := tx.LookupChild("repo", root.ID, "a.txt")
		require.NoError(t, err)
		assert.Equal(t, file.ID, id)

		id, err = tx.LookupChild("repo", "", "proj")
		require.NoError(t, err)
		assert.Equal(t, root.ID, id)

		id, err = tx.LookupPath("repo", "/proj/a.txt")
		require.NoError(t, err)
		assert.Equal(t, file.ID, id)

		// Same root name in another repository resolves independently
		id, err = tx.LookupPath("other", "/proj")
		require.NoError(t, err)
		assert.Equal(t, other.ID, id)

		ids, err := tx.ListChildIDs("repo", root.ID)
		require.NoError(t, err)
		assert.Equal(t, []string{file.ID}, ids)

		ids, err = tx.ListRepositoryNodeIDs("repo")
		require.NoError(t, err)
		assert.Equal(t, []string{root.ID, file.ID}, ids)

		_, err = tx.LookupPath("repo", "/nope")
		assert.True(t, metadata.IsNotFound(err))
		return nil
	})
}

func (suite *StoreTestSuite) testNodeReindex(t *testing.T) {
	store := suite.NewStore(t)
	root := newNode("repo", "", "", "proj", metadata.KindDirectory)
	file := newNode("repo", root.ID, root.Path, "a.txt", metadata.KindFile)

	update(t, store, func(tx metadata.Tx) error {
		require.NoError(t, tx.PutNode(root))
		return tx.PutNode(file)
	})

	renamed := file.Clone()
	renamed.Name = "b.txt"
	renamed.Path = "/proj/b.txt"
	update(t, store, func(tx metadata.Tx) error { return tx.PutNode(renamed) })

	view(t, store, func(tx metadata.Tx) error {
		_, err := tx.LookupChild("repo", root.ID, "a.txt")
		assert.True(t, metadata.IsNotFound(err))
		_, err = tx.LookupPath("repo", "/proj/a.txt")
		assert.True(t, metadata.IsNotFound(err))

		id, err := tx.LookupPath("repo", "/proj/b.txt")
		require.NoError(t, err)
		assert.Equal(t, file.ID, id)
		return nil
	})
}

func (suite *StoreTestSuite) testDeleteNode(t *testing.T) {
	store := suite.NewStore(t)
	root := newNode("repo", "", "", "proj", metadata.KindDirectory)

	update(t, store, func(tx metadata.Tx) error { return tx.PutNode(root) })
	update(t, store, func(tx metadata.Tx) error { return tx.DeleteNode(root.ID) })

	view(t, store, func(tx metadata.Tx) error {
		_, err := tx.GetNode(root.ID)
		assert.True(t, metadata.IsNotFound(err))
		_, err = tx.LookupPath("repo", "/proj")
		assert.True(t, metadata.IsNotFound(err))
		return nil
	})

	err := store.Update(testContext(), func(tx metadata.Tx) error { return tx.DeleteNode(root.ID) })
	assert.True(t, metadata.IsNotFound(err))
}

func (suite *StoreTestSuite) testDescendants(t *testing.T) {
	store := suite.NewStore(t)
	a := newNode("repo", "", "", "a", metadata.KindDirectory)
	b := newNode("repo", a.ID, a.Path, "b", metadata.KindDirectory)
	c := newNode("repo", b.ID, b.Path, "c.txt", metadata.KindFile)
	// Sibling whose name shares a prefix with "a" must not match
	ab := newNode("repo", "", "", "ab", metadata.KindDirectory)

	update(t, store, func(tx metadata.Tx) error {
		for _, n := range []*metadata.Node{a, b, c, ab} {
			require.NoError(t, tx.PutNode(n))
		}
		return nil
	})

	view(t, store, func(tx metadata.Tx) error {
		ids, err := tx.ListDescendantIDs("repo", "/a")
		require.NoError(t, err)
		assert.ElementsMatch(t, []string{b.ID, c.ID}, ids)
		return nil
	})
}
