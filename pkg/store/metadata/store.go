package metadata

import (
	"context"
	"time"
)

// ============================================================================
// Store Interface
// ============================================================================

// Store is the transactional metadata layer shared by the namespace, chunk,
// version and upload components.
//
// Every structural mutation in the vault (move, delete, finalize) runs inside
// a single Update call, which is the unit of atomicity: either every write in
// fn becomes visible or none does. Implementations surface concurrent
// conflicting updates as ErrConflict StoreErrors.
//
// Thread Safety:
// Implementations must be safe for concurrent use by multiple goroutines.
type Store interface {
	// View runs fn in a read-only transaction. Write methods on the Tx fail.
	View(ctx context.Context, fn func(tx Tx) error) error

	// Update runs fn in a read-write transaction and commits if fn returns
	// nil. Any error from fn discards every write made through tx.
	Update(ctx context.Context, fn func(tx Tx) error) error

	// Healthcheck verifies the store can serve requests.
	Healthcheck(ctx context.Context) error

	// Close releases resources held by the store.
	Close() error
}

// Tx exposes typed access to the metadata tables within one transaction.
//
// Getters return ErrNotFound StoreErrors for missing rows. Returned values
// are copies owned by the caller.
type Tx interface {
	// ========================================================================
	// Nodes
	// ========================================================================

	GetNode(id string) (*Node, error)

	// PutNode inserts or replaces a node and keeps the sibling-name and path
	// indexes consistent with it. It does not check for collisions; callers
	// use LookupChild first.
	PutNode(node *Node) error

	// DeleteNode removes the node row and its index entries.
	DeleteNode(id string) error

	// LookupChild resolves a sibling name. An empty parentID addresses the
	// repository root level.
	LookupChild(repositoryID, parentID, name string) (string, error)

	// LookupPath resolves a canonical path within a repository.
	LookupPath(repositoryID, path string) (string, error)

	// ListChildIDs returns the ids of the immediate children of parentID in
	// no particular order.
	ListChildIDs(repositoryID, parentID string) ([]string, error)

	// ListDescendantIDs returns the ids of every node whose path lies
	// strictly below path.
	ListDescendantIDs(repositoryID, path string) ([]string, error)

	// ListRepositoryNodeIDs returns every node id of a repository ordered by
	// path.
	ListRepositoryNodeIDs(repositoryID string) ([]string, error)

	// ========================================================================
	// Chunks
	// ========================================================================

	GetChunk(hash string) (*Chunk, error)
	PutChunk(chunk *Chunk) error
	DeleteChunk(hash string) error

	// ListUnreferencedChunks returns up to limit chunks whose RefCount is
	// zero and whose UpdatedAt is before the given time.
	ListUnreferencedChunks(before time.Time, limit int) ([]*Chunk, error)

	// ========================================================================
	// Versions
	// ========================================================================

	GetVersion(id string) (*Version, error)

	// PutVersion inserts or replaces a version and indexes it by file
	// sequence and fingerprint.
	PutVersion(version *Version) error

	DeleteVersion(id string) error

	// LookupFingerprint resolves a commit fingerprint to a version id.
	LookupFingerprint(fingerprint string) (string, error)

	// ListVersionIDs returns a file's version ids by ascending sequence.
	ListVersionIDs(fileID string) ([]string, error)

	// LatestSequence returns the highest sequence recorded for a file, or 0.
	LatestSequence(fileID string) (uint64, error)

	// ========================================================================
	// Upload Sessions
	// ========================================================================

	GetSession(id string) (*Session, error)
	PutSession(session *Session) error

	// DeleteSession removes the session and all its confirmations.
	DeleteSession(id string) error

	// ListSessions returns every session of a repository, or of all
	// repositories when repositoryID is empty.
	ListSessions(repositoryID string) ([]*Session, error)

	PutConfirmation(sessionID string, confirmation *Confirmation) error
	ListConfirmations(sessionID string) ([]*Confirmation, error)
}
