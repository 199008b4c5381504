package metadata_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// conflictingStore fails the first conflicts Update calls with err.
type conflictingStore struct {
	metadata.Store
	conflicts int
	err       error
	calls     int
}

func (s *conflictingStore) Update(ctx context.Context, fn func(tx metadata.Tx) error) error {
	s.calls++
	if s.calls <= s.conflicts {
		return s.err
	}
	return fn(nil)
}

func TestUpdateWithRetryRetriesTxnConflicts(t *testing.T) {
	store := &conflictingStore{conflicts: 2, err: metadata.NewTxnConflictError()}

	ran := false
	err := metadata.UpdateWithRetry(context.Background(), store, 5, func(metadata.Tx) error {
		ran = true
		return nil
	})
	require.NoError(t, err)
	assert.True(t, ran)
	assert.Equal(t, 3, store.calls)
}

func TestUpdateWithRetryGivesUp(t *testing.T) {
	store := &conflictingStore{conflicts: 100, err: metadata.NewTxnConflictError()}

	err := metadata.UpdateWithRetry(context.Background(), store, 3, func(metadata.Tx) error { return nil })
	assert.True(t, metadata.IsConflict(err))
	assert.Equal(t, 3, store.calls)
}

func TestUpdateWithRetryDoesNotRetryDomainConflicts(t *testing.T) {
	store := &conflictingStore{conflicts: 100, err: metadata.NewConflictError("/a", "name taken")}

	err := metadata.UpdateWithRetry(context.Background(), store, 3, func(metadata.Tx) error { return nil })
	assert.True(t, metadata.IsConflict(err))
	assert.False(t, metadata.IsTxnConflict(err))
	assert.Equal(t, 1, store.calls)
}

func TestUpdateWithRetryStopsOnCancel(t *testing.T) {
	store := &conflictingStore{conflicts: 100, err: metadata.NewTxnConflictError()}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := metadata.UpdateWithRetry(ctx, store, 5, func(metadata.Tx) error { return nil })
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, store.calls)
}
