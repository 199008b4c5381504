package testing

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovault/pkg/store/content"
)

// RunBasicTests executes the put/get/exists/delete contract tests.
func (suite *StoreTestSuite) RunBasicTests(t *testing.T) {
	t.Run("Get_NotFound", suite.testGetNotFound)
	t.Run("PutGet_RoundTrip", suite.testPutGet)
	t.Run("PutGet_Empty", suite.testPutGetEmpty)
	t.Run("PutGet_Large", suite.testPutGetLarge)
	t.Run("Put_Overwrite", suite.testPutOverwrite)
	t.Run("Put_CallerBufferReuse", suite.testCallerBufferReuse)
	t.Run("Exists", suite.testExists)
	t.Run("Delete", suite.testDelete)
	t.Run("Delete_Missing", suite.testDeleteMissing)
	t.Run("Healthcheck", suite.testHealthcheck)
}

// RunCancellationTests checks that a cancelled context stops every call.
func (suite *StoreTestSuite) RunCancellationTests(t *testing.T) {
	store := suite.NewStore(t)
	ctx, cancel := context.WithCancel(testContext())
	cancel()

	assert.ErrorIs(t, store.Put(ctx, testKey("cancelled"), []byte("x")), context.Canceled)
	_, err := store.Get(ctx, testKey("cancelled"))
	assert.ErrorIs(t, err, context.Canceled)
	_, err = store.Exists(ctx, testKey("cancelled"))
	assert.ErrorIs(t, err, context.Canceled)
	assert.ErrorIs(t, store.Delete(ctx, testKey("cancelled")), context.Canceled)
}

func (suite *StoreTestSuite) testGetNotFound(t *testing.T) {
	store := suite.NewStore(t)

	_, err := store.Get(testContext(), testKey("missing"))
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testPutGet(t *testing.T) {
	store := suite.NewStore(t)
	data := []byte("Hello, World!")

	require.NoError(t, store.Put(testContext(), testKey("roundtrip"), data))

	got, err := store.Get(testContext(), testKey("roundtrip"))
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func (suite *StoreTestSuite) testPutGetEmpty(t *testing.T) {
	store := suite.NewStore(t)

	require.NoError(t, store.Put(testContext(), testKey("empty"), []byte{}))

	got, err := store.Get(testContext(), testKey("empty"))
	require.NoError(t, err)
	assert.Len(t, got, 0)
}

func (suite *StoreTestSuite) testPutGetLarge(t *testing.T) {
	store := suite.NewStore(t)

	// Mix of repetitive and varied bytes so compressing wrappers take both paths
	data := bytes.Repeat([]byte("IFC4;#12=IFCWALL('0x',$,$);"), 40000)
	for i := range 4096 {
		data[i] = byte(i * 31)
	}

	require.NoError(t, store.Put(testContext(), testKey("large"), data))

	got, err := store.Get(testContext(), testKey("large"))
	require.NoError(t, err)
	assert.True(t, bytes.Equal(data, got), "large object differs after round trip")
}

func (suite *StoreTestSuite) testPutOverwrite(t *testing.T) {
	store := suite.NewStore(t)
	key := testKey("overwrite")

	require.NoError(t, store.Put(testContext(), key, []byte("first")))
	require.NoError(t, store.Put(testContext(), key, []byte("second")))

	got, err := store.Get(testContext(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("second"), got)
}

func (suite *StoreTestSuite) testCallerBufferReuse(t *testing.T) {
	store := suite.NewStore(t)
	key := testKey("reuse")
	buf := []byte("original")

	require.NoError(t, store.Put(testContext(), key, buf))
	copy(buf, "mutated!")

	got, err := store.Get(testContext(), key)
	require.NoError(t, err)
	assert.Equal(t, []byte("original"), got)
}

func (suite *StoreTestSuite) testExists(t *testing.T) {
	store := suite.NewStore(t)
	key := testKey("exists")

	ok, err := store.Exists(testContext(), key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Put(testContext(), key, []byte("x")))

	ok, err = store.Exists(testContext(), key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func (suite *StoreTestSuite) testDelete(t *testing.T) {
	store := suite.NewStore(t)
	key := testKey("delete")

	require.NoError(t, store.Put(testContext(), key, []byte("x")))
	require.NoError(t, store.Delete(testContext(), key))

	ok, err := store.Exists(testContext(), key)
	require.NoError(t, err)
	assert.False(t, ok)

	_, err = store.Get(testContext(), key)
	assert.ErrorIs(t, err, content.ErrContentNotFound)
}

func (suite *StoreTestSuite) testDeleteMissing(t *testing.T) {
	store := suite.NewStore(t)

	assert.NoError(t, store.Delete(testContext(), testKey("never-written")))
}

func (suite *StoreTestSuite) testHealthcheck(t *testing.T) {
	store := suite.NewStore(t)

	assert.NoError(t, store.Healthcheck(testContext()))
}
