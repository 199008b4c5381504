package content

import "errors"

// ============================================================================
// Standard Content Store Errors
// ============================================================================

// These errors provide a consistent way to indicate common failure conditions
// across all content store implementations.
//
// Error Wrapping:
// Implementations should wrap these errors with additional context:
//
//	if !exists {
//	    return fmt.Errorf("object %s: %w", key, content.ErrContentNotFound)
//	}

var (
	// ErrContentNotFound indicates no object is stored under the key.
	//
	// Never retried: absence is an answer, not a failure.
	ErrContentNotFound = errors.New("content not found")

	// ErrUnavailable indicates the backend could not be reached or kept
	// failing. RetryingStore returns it once its attempts are exhausted.
	ErrUnavailable = errors.New("content store unavailable")

	// ErrCorrupted indicates stored bytes could not be decoded, for example
	// an unknown compression tag or a truncated frame.
	ErrCorrupted = errors.New("content corrupted")
)
