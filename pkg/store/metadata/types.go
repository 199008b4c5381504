package metadata

import (
	"time"
)

// ============================================================================
// Namespace Nodes
// ============================================================================

// NodeKind distinguishes files from directories.
type NodeKind string

const (
	KindFile      NodeKind = "file"
	KindDirectory NodeKind = "directory"
)

// Valid reports whether k is a known node kind.
func (k NodeKind) Valid() bool {
	return k == KindFile || k == KindDirectory
}

// Node is one entry in a repository's tree.
//
// Parent and current-version links are plain identifiers resolved through the
// store; nodes never hold pointers to each other.
type Node struct {
	ID           string   `json:"id" cbor:"1,keyasint"`
	RepositoryID string   `json:"repositoryId" cbor:"2,keyasint"`
	ParentID     string   `json:"parentId,omitempty" cbor:"3,keyasint,omitempty"`
	Name         string   `json:"name" cbor:"4,keyasint"`
	Path         string   `json:"path" cbor:"5,keyasint"`
	Kind         NodeKind `json:"kind" cbor:"6,keyasint"`

	// CurrentVersionID is empty for directories and for files that were
	// created explicitly and never committed.
	CurrentVersionID string `json:"currentVersionId,omitempty" cbor:"7,keyasint,omitempty"`

	CreatedAt time.Time `json:"createdAt" cbor:"8,keyasint"`
	UpdatedAt time.Time `json:"updatedAt" cbor:"9,keyasint"`

	// AttachedAt is when the node was placed under its current parent.
	// Children are listed in AttachedAt order by default.
	AttachedAt time.Time `json:"attachedAt" cbor:"10,keyasint"`
}

// IsDir reports whether the node is a directory.
func (n *Node) IsDir() bool { return n.Kind == KindDirectory }

// Clone returns a copy that can be mutated without affecting n.
func (n *Node) Clone() *Node {
	c := *n
	return &c
}

// ============================================================================
// Chunks
// ============================================================================

// Chunk is the metadata record of one content-addressed object.
type Chunk struct {
	// Hash is the lowercase hex SHA-256 of the chunk bytes
	Hash string `json:"hash" cbor:"1,keyasint"`

	Size int64 `json:"size" cbor:"2,keyasint"`

	// StorageKey is the backend object key, derived from Hash
	StorageKey string `json:"storageKey" cbor:"3,keyasint"`

	// RefCount is the number of distinct version manifests citing the chunk
	RefCount int64 `json:"refCount" cbor:"4,keyasint"`

	CreatedAt time.Time `json:"createdAt" cbor:"5,keyasint"`

	// UpdatedAt changes on every ref count transition and on re-puts of an
	// unreferenced chunk. The reclaimer measures its grace period from here.
	UpdatedAt time.Time `json:"updatedAt" cbor:"6,keyasint"`
}

// Clone returns a copy that can be mutated without affecting c.
func (c *Chunk) Clone() *Chunk {
	cp := *c
	return &cp
}

// ============================================================================
// Versions
// ============================================================================

// ChunkRef is one manifest entry of a version.
type ChunkRef struct {
	Hash   string `json:"hash" cbor:"1,keyasint"`
	Index  int    `json:"index" cbor:"2,keyasint"`
	Length int64  `json:"length" cbor:"3,keyasint"`
}

// Version is an immutable commit of one file's content.
type Version struct {
	ID          string     `json:"id" cbor:"1,keyasint"`
	FileID      string     `json:"fileId" cbor:"2,keyasint"`
	Sequence    uint64     `json:"sequence" cbor:"3,keyasint"`
	Fingerprint string     `json:"fingerprint" cbor:"4,keyasint"`
	ParentID    string     `json:"parentId,omitempty" cbor:"5,keyasint,omitempty"`
	AuthorID    string     `json:"authorId" cbor:"6,keyasint"`
	Message     string     `json:"message" cbor:"7,keyasint"`
	Size        int64      `json:"size" cbor:"8,keyasint"`
	Manifest    []ChunkRef `json:"manifest" cbor:"9,keyasint"`
	Locked      bool       `json:"locked" cbor:"10,keyasint"`
	LockedAt    *time.Time `json:"lockedAt,omitempty" cbor:"11,keyasint,omitempty"`
	CreatedAt   time.Time  `json:"createdAt" cbor:"12,keyasint"`
}

// DistinctHashes returns the manifest's hashes with duplicates removed, in
// first-occurrence order.
func (v *Version) DistinctHashes() []string {
	return Distinct(manifestHashes(v.Manifest))
}

// Clone returns a deep copy of v.
func (v *Version) Clone() *Version {
	c := *v
	c.Manifest = append([]ChunkRef(nil), v.Manifest...)
	if v.LockedAt != nil {
		t := *v.LockedAt
		c.LockedAt = &t
	}
	return &c
}

func manifestHashes(refs []ChunkRef) []string {
	out := make([]string, len(refs))
	for i, r := range refs {
		out[i] = r.Hash
	}
	return out
}

// ============================================================================
// Upload Sessions
// ============================================================================

// Session is the staging record of an in-progress upload.
type Session struct {
	ID           string `json:"id" cbor:"1,keyasint"`
	RepositoryID string `json:"repositoryId" cbor:"2,keyasint"`
	Path         string `json:"path" cbor:"3,keyasint"`

	// Manifest is the declared ordered list of chunk hashes. A hash may
	// appear more than once.
	Manifest []string `json:"manifest" cbor:"4,keyasint"`

	CreatedAt time.Time `json:"createdAt" cbor:"5,keyasint"`

	// ExpiresAt is the expiry computed at creation. The effective expiry
	// also accounts for later confirmations, see upload.Manager.
	ExpiresAt time.Time `json:"expiresAt" cbor:"6,keyasint"`
}

// DeclaredSet returns the manifest's hashes as a set.
func (s *Session) DeclaredSet() map[string]struct{} {
	set := make(map[string]struct{}, len(s.Manifest))
	for _, h := range s.Manifest {
		set[h] = struct{}{}
	}
	return set
}

// Clone returns a deep copy of s.
func (s *Session) Clone() *Session {
	c := *s
	c.Manifest = append([]string(nil), s.Manifest...)
	return &c
}

// Confirmation records that one declared chunk was uploaded into a session.
type Confirmation struct {
	Hash        string    `json:"hash" cbor:"1,keyasint"`
	Size        int64     `json:"size" cbor:"2,keyasint"`
	ConfirmedAt time.Time `json:"confirmedAt" cbor:"3,keyasint"`
}

// Distinct removes duplicates from hashes, keeping first-occurrence order.
func Distinct(hashes []string) []string {
	seen := make(map[string]struct{}, len(hashes))
	out := make([]string, 0, len(hashes))
	for _, h := range hashes {
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	return out
}
