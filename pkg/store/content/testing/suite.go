package testing

import (
	"context"
	"fmt"
	"testing"

	"github.com/marmos91/dittovault/pkg/store/content"
)

// StoreTestSuite is a test suite for ContentStore implementations. It tests
// the interface contract, not implementation details, so it runs unchanged
// against memory, filesystem and wrapped stores.
//
// Usage:
//
//	func TestMyContentStore(t *testing.T) {
//	    suite := &storetesting.StoreTestSuite{
//	        NewStore: func(t *testing.T) content.ContentStore {
//	            return mystore.New(t.TempDir())
//	        },
//	    }
//	    suite.Run(t)
//	}
type StoreTestSuite struct {
	// NewStore creates a fresh ContentStore for each test.
	NewStore func(t *testing.T) content.ContentStore
}

// Run executes all tests in the suite.
func (suite *StoreTestSuite) Run(t *testing.T) {
	t.Run("BasicOperations", suite.RunBasicTests)
	t.Run("Cancellation", suite.RunCancellationTests)
}

func testContext() context.Context {
	return context.Background()
}

// testKey returns an object key in the chunk store's fan-out layout.
func testKey(name string) string {
	return fmt.Sprintf("objects/te/st/%s", name)
}
