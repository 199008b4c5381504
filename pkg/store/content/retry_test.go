package content_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovault/pkg/store/content"
	storetesting "github.com/marmos91/dittovault/pkg/store/content/testing"
)

// flakyStore fails the first failures calls of every operation with err.
type flakyStore struct {
	content.ContentStore
	failures int32
	err      error
	calls    atomic.Int32
}

func (f *flakyStore) fail() error {
	if f.calls.Add(1) <= f.failures {
		return f.err
	}
	return nil
}

func (f *flakyStore) Put(ctx context.Context, key string, data []byte) error {
	if err := f.fail(); err != nil {
		return err
	}
	return f.ContentStore.Put(ctx, key, data)
}

func (f *flakyStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := f.fail(); err != nil {
		return nil, err
	}
	return f.ContentStore.Get(ctx, key)
}

var fastPolicy = content.RetryPolicy{Attempts: 3, BaseDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}

func TestRetryingStoreSuite(t *testing.T) {
	suite := &storetesting.StoreTestSuite{
		NewStore: func(t *testing.T) content.ContentStore {
			return content.NewRetryingStore(newMemory(t), fastPolicy)
		},
	}
	suite.Run(t)
}

func TestRetryingStoreRecoversFromTransientFailure(t *testing.T) {
	flaky := &flakyStore{ContentStore: newMemory(t), failures: 2, err: errors.New("503 slow down")}
	store := content.NewRetryingStore(flaky, fastPolicy)

	require.NoError(t, store.Put(context.Background(), "k", []byte("v")))
	assert.Equal(t, int32(3), flaky.calls.Load())
}

func TestRetryingStoreExhaustsToUnavailable(t *testing.T) {
	flaky := &flakyStore{ContentStore: newMemory(t), failures: 100, err: errors.New("connection refused")}
	store := content.NewRetryingStore(flaky, fastPolicy)

	err := store.Put(context.Background(), "k", []byte("v"))
	assert.ErrorIs(t, err, content.ErrUnavailable)
	assert.Equal(t, int32(3), flaky.calls.Load())
}

func TestRetryingStoreDoesNotRetryNotFound(t *testing.T) {
	flaky := &flakyStore{ContentStore: newMemory(t)}
	store := content.NewRetryingStore(flaky, fastPolicy)

	_, err := store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, content.ErrContentNotFound)
	assert.NotErrorIs(t, err, content.ErrUnavailable)
	assert.Equal(t, int32(1), flaky.calls.Load())
}

func TestRetryingStoreStopsOnCancel(t *testing.T) {
	flaky := &flakyStore{ContentStore: newMemory(t), failures: 100, err: errors.New("timeout")}
	store := content.NewRetryingStore(flaky, content.RetryPolicy{Attempts: 5, BaseDelay: time.Hour, MaxDelay: time.Hour})

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := store.Put(ctx, "k", []byte("v"))
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, int32(1), flaky.calls.Load())
}

func TestDefaultRetryPolicy(t *testing.T) {
	p := content.DefaultRetryPolicy()
	assert.Equal(t, 3, p.Attempts)
	assert.Equal(t, 500*time.Millisecond, p.BaseDelay)
	assert.Equal(t, 5*time.Second, p.MaxDelay)
}

func TestRetryingStoreDoesNotRetryCorruption(t *testing.T) {
	flaky := &flakyStore{ContentStore: newMemory(t), failures: 100, err: content.ErrCorrupted}
	store := content.NewRetryingStore(flaky, fastPolicy)

	_, err := store.Get(context.Background(), "k")
	assert.ErrorIs(t, err, content.ErrCorrupted)
	assert.NotErrorIs(t, err, content.ErrUnavailable)
	assert.Equal(t, int32(1), flaky.calls.Load())
}
