package metadata

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// DefaultConflictRetries is the number of attempts UpdateWithRetry makes
// before surfacing a conflict.
const DefaultConflictRetries = 5

// UpdateWithRetry runs store.Update and re-runs fn when the commit loses a
// concurrency race (IsTxnConflict), up to attempts times in total. fn must be
// safe to re-run: it is called with a fresh transaction each time.
//
// Only operations whose outcome does not depend on what the caller last read
// (finalize, ref count updates, chunk registration) use this; move and delete
// surface conflicts to the client instead.
func UpdateWithRetry(ctx context.Context, store Store, attempts int, fn func(tx Tx) error) error {
	if attempts <= 0 {
		attempts = DefaultConflictRetries
	}

	// 1ms doubling with wide jitter so retried writers spread out
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Millisecond
	b.MaxInterval = 50 * time.Millisecond
	b.RandomizationFactor = 0.75
	b.Multiplier = 2
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		err := store.Update(ctx, fn)
		if err != nil && !IsTxnConflict(err) {
			return backoff.Permanent(err)
		}
		return err
	}, backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx))
}
