package metadata

import (
	"errors"
	"fmt"
)

// StoreError represents a domain error from vault operations.
//
// These are business logic errors (node not found, locked version, name
// collision) as opposed to infrastructure errors. The REST layer translates
// StoreError codes into HTTP status codes; anything that is not a StoreError
// is reported as an internal failure.
type StoreError struct {
	// Code is the error category
	Code ErrorCode

	// Message is a human-readable error description
	Message string

	// Path is the namespace path, node id, or chunk hash related to the error
	// (if applicable)
	Path string

	// txn marks conflicts raised by the store at commit time, as opposed to
	// domain conflicts such as a name collision
	txn bool
}

// Error implements the error interface.
func (e *StoreError) Error() string {
	if e.Path != "" {
		return e.Message + ": " + e.Path
	}
	return e.Message
}

// ErrorCode represents the category of a StoreError.
type ErrorCode int

const (
	// ErrValidation indicates malformed input: bad manifest, hash mismatch,
	// cyclic move, undeclared chunk. Never retried server-side.
	ErrValidation ErrorCode = iota

	// ErrNotFound indicates the requested node, version, chunk or session
	// doesn't exist
	ErrNotFound

	// ErrConflict indicates a name collision, a fingerprint collision or a
	// concurrent structural mutation. Clients should refetch and retry.
	ErrConflict

	// ErrForbidden indicates an attempt to mutate locked content
	ErrForbidden

	// ErrStorageUnavailable indicates the object backend kept failing after
	// bounded retries. Transient, safe to retry later.
	ErrStorageUnavailable
)

// String returns the wire name of the error code.
func (c ErrorCode) String() string {
	switch c {
	case ErrValidation:
		return "validation"
	case ErrNotFound:
		return "not_found"
	case ErrConflict:
		return "conflict"
	case ErrForbidden:
		return "forbidden"
	case ErrStorageUnavailable:
		return "storage_unavailable"
	default:
		return "unknown"
	}
}

// NewValidationError builds an ErrValidation StoreError.
func NewValidationError(path, format string, args ...any) *StoreError {
	return &StoreError{Code: ErrValidation, Message: fmt.Sprintf(format, args...), Path: path}
}

// NewNotFoundError builds an ErrNotFound StoreError.
func NewNotFoundError(path, format string, args ...any) *StoreError {
	return &StoreError{Code: ErrNotFound, Message: fmt.Sprintf(format, args...), Path: path}
}

// NewConflictError builds an ErrConflict StoreError.
func NewConflictError(path, format string, args ...any) *StoreError {
	return &StoreError{Code: ErrConflict, Message: fmt.Sprintf(format, args...), Path: path}
}

// NewTxnConflictError builds the ErrConflict StoreError a Store returns when
// a transaction lost an optimistic concurrency race at commit.
func NewTxnConflictError() *StoreError {
	return &StoreError{Code: ErrConflict, Message: "concurrent update, retry against fresh state", txn: true}
}

// IsTxnConflict reports whether err is a commit-time conflict. Re-running
// the same transaction against fresh state may succeed.
func IsTxnConflict(err error) bool {
	var storeErr *StoreError
	return errors.As(err, &storeErr) && storeErr.txn
}

// NewForbiddenError builds an ErrForbidden StoreError.
func NewForbiddenError(path, format string, args ...any) *StoreError {
	return &StoreError{Code: ErrForbidden, Message: fmt.Sprintf(format, args...), Path: path}
}

// NewStorageUnavailableError builds an ErrStorageUnavailable StoreError
// carrying the last backend failure in its message.
func NewStorageUnavailableError(path string, cause error) *StoreError {
	return &StoreError{Code: ErrStorageUnavailable, Message: fmt.Sprintf("storage unavailable (%v)", cause), Path: path}
}

// CodeOf extracts the ErrorCode of err. ok is false when err does not wrap a
// StoreError.
func CodeOf(err error) (code ErrorCode, ok bool) {
	var storeErr *StoreError
	if errors.As(err, &storeErr) {
		return storeErr.Code, true
	}
	return 0, false
}

func hasCode(err error, code ErrorCode) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}

func IsValidation(err error) bool         { return hasCode(err, ErrValidation) }
func IsNotFound(err error) bool           { return hasCode(err, ErrNotFound) }
func IsConflict(err error) bool           { return hasCode(err, ErrConflict) }
func IsForbidden(err error) bool          { return hasCode(err, ErrForbidden) }
func IsStorageUnavailable(err error) bool { return hasCode(err, ErrStorageUnavailable) }
