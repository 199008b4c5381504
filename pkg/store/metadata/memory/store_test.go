package memory

import (
	"testing"

	"github.com/marmos91/dittovault/pkg/store/metadata"
	storetest "github.com/marmos91/dittovault/pkg/store/metadata/testing"
)

func TestMemoryMetadataStore(t *testing.T) {
	suite := &storetest.StoreTestSuite{
		NewStore: func(t *testing.T) metadata.Store {
			return NewMemoryMetadataStoreWithDefaults()
		},
	}
	suite.Run(t)
}
