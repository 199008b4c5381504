package testing

import (
	"testing"
	"time"

	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// RunSessionTests executes upload session tests.
func (suite *StoreTestSuite) RunSessionTests(t *testing.T) {
	t.Run("PutAndGet", suite.testPutAndGetSession)
	t.Run("Confirmations", suite.testConfirmations)
	t.Run("List", suite.testListSessions)
}

func testSession(id, repo string) *metadata.Session {
	ts := now()
	return &metadata.Session{
		ID:           id,
		RepositoryID: repo,
		Path:         "/proj/a.txt",
		Manifest:     []string{metadata.HashBytes([]byte("a")), metadata.HashBytes([]byte("b"))},
		CreatedAt:    ts,
		ExpiresAt:    ts.Add(time.Hour),
	}
}

func (suite *StoreTestSuite) testPutAndGetSession(t *testing.T) {
	store := suite.NewStore(t)
	session := testSession("s1", "repo")

	update(t, store, func(tx metadata.Tx) error { return tx.PutSession(session) })

	view(t, store, func(tx metadata.Tx) error {
		got, err := tx.GetSession("s1")
		require.NoError(t, err)
		assert.Equal(t, session.Manifest, got.Manifest)
		assert.Equal(t, session.Path, got.Path)
		assert.True(t, session.ExpiresAt.Equal(got.ExpiresAt))
		return nil
	})
}

func (suite *StoreTestSuite) testConfirmations(t *testing.T) {
	store := suite.NewStore(t)
	session := testSession("s1", "repo")
	hash := session.Manifest[0]

	update(t, store, func(tx metadata.Tx) error {
		require.NoError(t, tx.PutSession(session))
		return tx.PutConfirmation("s1", &metadata.Confirmation{Hash: hash, Size: 1, ConfirmedAt: now()})
	})

	// Confirming twice keeps a single entry
	update(t, store, func(tx metadata.Tx) error {
		return tx.PutConfirmation("s1", &metadata.Confirmation{Hash: hash, Size: 1, ConfirmedAt: now()})
	})

	view(t, store, func(tx metadata.Tx) error {
		confirmations, err := tx.ListConfirmations("s1")
		require.NoError(t, err)
		require.Len(t, confirmations, 1)
		assert.Equal(t, hash, confirmations[0].Hash)
		return nil
	})

	update(t, store, func(tx metadata.Tx) error { return tx.DeleteSession("s1") })

	view(t, store, func(tx metadata.Tx) error {
		_, err := tx.GetSession("s1")
		assert.True(t, metadata.IsNotFound(err))

		confirmations, err := tx.ListConfirmations("s1")
		require.NoError(t, err)
		assert.Empty(t, confirmations)
		return nil
	})
}

func (suite *StoreTestSuite) testListSessions(t *testing.T) {
	store := suite.NewStore(t)

	update(t, store, func(tx metadata.Tx) error {
		require.NoError(t, tx.PutSession(testSession("s1", "repo")))
		require.NoError(t, tx.PutSession(testSession("s2", "repo")))
		return tx.PutSession(testSession("s3", "other"))
	})

	view(t, store, func(tx metadata.Tx) error {
		sessions, err := tx.ListSessions("repo")
		require.NoError(t, err)
		assert.Len(t, sessions, 2)

		all, err := tx.ListSessions("")
		require.NoError(t, err)
		assert.Len(t, all, 3)
		return nil
	})
}
