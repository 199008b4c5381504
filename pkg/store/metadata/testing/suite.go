// Package testing provides a reusable conformance suite for metadata.Store
// implementations.
package testing

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/stretchr/testify/require"
)

// StoreTestSuite tests the metadata.Store contract, not implementation
// details, so the same suite runs against every backend.
//
// Usage:
//
//	func TestMyStore(t *testing.T) {
//	    suite := &testing.StoreTestSuite{
//	        NewStore: func(t *testing.T) metadata.Store {
//	            return mystore.New()
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh, empty store for each test.
	NewStore func(t *testing.T) metadata.Store
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("Nodes", suite.RunNodeTests)
	t.Run("Chunks", suite.RunChunkTests)
	t.Run("Versions", suite.RunVersionTests)
	t.Run("Sessions", suite.RunSessionTests)
	t.Run("Transactions", suite.RunTransactionTests)
}

func testContext() context.Context {
	return context.Background()
}

func now() time.Time {
	return time.Now().UTC()
}

// update runs fn in a write transaction and fails the test on error.
func update(t *testing.T, store metadata.Store, fn func(tx metadata.Tx) error) {
	t.Helper()
	require.NoError(t, store.Update(testContext(), fn))
}

// view runs fn in a read transaction and fails the test on error.
func view(t *testing.T, store metadata.Store, fn func(tx metadata.Tx) error) {
	t.Helper()
	require.NoError(t, store.View(testContext(), fn))
}

func newNode(repo, parentID, parentPath, name string, kind metadata.NodeKind) *metadata.Node {
	ts := now()
	return &metadata.Node{
		ID:           uuid.NewString(),
		RepositoryID: repo,
		ParentID:     parentID,
		Name:         name,
		Path:         metadata.JoinPath(parentPath, name),
		Kind:         kind,
		CreatedAt:    ts,
		UpdatedAt:    ts,
		AttachedAt:   ts,
	}
}
