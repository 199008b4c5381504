// Package content defines the object backend that holds chunk bytes.
//
// Backends are dumb key/value blob stores: they know nothing about hashes,
// reference counts or versions. The chunk store in pkg/cas derives keys from
// content hashes and owns every other concern.
package content

import (
	"context"
)

// ============================================================================
// ContentStore Interface
// ============================================================================

// ContentStore stores immutable objects under string keys.
//
// Objects are written once and never modified in place; Put of an existing
// key must leave the store holding identical bytes, so concurrent writers of
// the same content converge.
//
// Implementations return errors wrapping ErrContentNotFound for missing keys
// and wrapping ErrUnavailable for transient backend failures. Any other
// error is treated as transient by RetryingStore.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type ContentStore interface {
	// Put writes data under key, replacing any existing object.
	Put(ctx context.Context, key string, data []byte) error

	// Get reads the full object stored under key.
	Get(ctx context.Context, key string) ([]byte, error)

	// Exists reports whether an object is stored under key.
	Exists(ctx context.Context, key string) (bool, error)

	// Delete removes the object stored under key. Deleting a missing key
	// is not an error.
	Delete(ctx context.Context, key string) error

	// Healthcheck verifies the backend is reachable.
	Healthcheck(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}
