// Package versions maintains the per-file history of immutable commits.
//
// Each file node points at its current version by id. Versions point at
// their parent (the current version at commit time) and carry the ordered
// chunk manifest of the file's bytes. A version's chunks hold one reference
// each for as long as the version exists.
package versions

import (
	"context"
	"encoding/binary"
	"encoding/hex"
	"io"
	"iter"
	"time"

	"github.com/google/uuid"
	"github.com/zeebo/blake3"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/cas"
	"github.com/marmos91/dittovault/pkg/namespace"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// Graph implements the version operations.
//
// Graph also satisfies namespace.FileContent, which is how moves and deletes
// in the namespace respect version locks.
type Graph struct {
	meta   metadata.Store
	chunks *cas.Store
}

var _ namespace.FileContent = (*Graph)(nil)

// New creates a version graph.
func New(meta metadata.Store, chunks *cas.Store) *Graph {
	return &Graph{meta: meta, chunks: chunks}
}

// CreateRequest describes a new version.
type CreateRequest struct {
	FileID   string
	Manifest []metadata.ChunkRef
	AuthorID string
	Message  string

	// ParentID is the file's current version at commit time, empty for a
	// first commit.
	ParentID string
}

// CreateVersion records a new version inside the caller's transaction.
//
// The sequence is one past the file's latest. Each distinct chunk of the
// manifest gains exactly one reference, however often it repeats. The
// file's current-version pointer is not changed; the caller advances it.
func (g *Graph) CreateVersion(tx metadata.Tx, req CreateRequest) (*metadata.Version, error) {
	if req.AuthorID == "" {
		return nil, metadata.NewValidationError(req.FileID, "author is required")
	}

	var size int64
	for i, ref := range req.Manifest {
		if ref.Index != i {
			return nil, metadata.NewValidationError(ref.Hash, "manifest entry %d has index %d", i, ref.Index)
		}
		if ref.Length < 0 {
			return nil, metadata.NewValidationError(ref.Hash, "negative chunk length")
		}
		if err := metadata.ValidateHash(ref.Hash); err != nil {
			return nil, err
		}
		size += ref.Length
	}

	if _, err := namespace.LoadFile(tx, req.FileID); err != nil {
		return nil, err
	}

	latest, err := tx.LatestSequence(req.FileID)
	if err != nil {
		return nil, err
	}

	fingerprint := Fingerprint(req.FileID, req.ParentID, req.Manifest)
	if _, err := tx.LookupFingerprint(fingerprint); err == nil {
		return nil, metadata.NewConflictError(fingerprint, "a version with this fingerprint already exists")
	} else if !metadata.IsNotFound(err) {
		return nil, err
	}

	version := &metadata.Version{
		ID:          uuid.New().String(),
		FileID:      req.FileID,
		Sequence:    latest + 1,
		Fingerprint: fingerprint,
		ParentID:    req.ParentID,
		AuthorID:    req.AuthorID,
		Message:     req.Message,
		Size:        size,
		Manifest:    append([]metadata.ChunkRef(nil), req.Manifest...),
		CreatedAt:   time.Now().UTC(),
	}

	for _, hash := range version.DistinctHashes() {
		if err := g.chunks.IncrementRef(tx, hash); err != nil {
			if metadata.IsNotFound(err) {
				return nil, metadata.NewValidationError(hash, "manifest references a chunk that is not stored")
			}
			return nil, err
		}
	}

	if err := tx.PutVersion(version); err != nil {
		return nil, err
	}
	return version, nil
}

// Fingerprint derives the commit fingerprint: BLAKE3-256 over the file id,
// the parent version id and the ordered manifest, as lowercase hex. Every
// field is length-prefixed so distinct inputs cannot collide by
// concatenation.
func Fingerprint(fileID, parentID string, manifest []metadata.ChunkRef) string {
	h := blake3.New()
	var buf [binary.MaxVarintLen64]byte

	writeString := func(s string) {
		n := binary.PutUvarint(buf[:], uint64(len(s)))
		_, _ = h.Write(buf[:n])
		_, _ = h.Write([]byte(s))
	}
	writeInt := func(v int64) {
		n := binary.PutVarint(buf[:], v)
		_, _ = h.Write(buf[:n])
	}

	writeString(fileID)
	writeString(parentID)
	writeInt(int64(len(manifest)))
	for _, ref := range manifest {
		writeString(ref.Hash)
		writeInt(int64(ref.Index))
		writeInt(ref.Length)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// GetVersion returns a version by id.
func (g *Graph) GetVersion(ctx context.Context, versionID string) (*metadata.Version, error) {
	var version *metadata.Version
	err := g.meta.View(ctx, func(tx metadata.Tx) error {
		var err error
		version, err = tx.GetVersion(versionID)
		return err
	})
	return version, err
}

// GetByFingerprint returns the version with the given commit fingerprint.
func (g *Graph) GetByFingerprint(ctx context.Context, fingerprint string) (*metadata.Version, error) {
	var version *metadata.Version
	err := g.meta.View(ctx, func(tx metadata.Tx) error {
		id, err := tx.LookupFingerprint(fingerprint)
		if err != nil {
			return err
		}
		version, err = tx.GetVersion(id)
		return err
	})
	return version, err
}

// ListVersions lists a file's versions by ascending sequence.
//
// Like namespace listings the sequence is lazy and takes a fresh snapshot
// on every range.
func (g *Graph) ListVersions(ctx context.Context, fileID string) iter.Seq2[*metadata.Version, error] {
	return func(yield func(*metadata.Version, error) bool) {
		var versions []*metadata.Version
		err := g.meta.View(ctx, func(tx metadata.Tx) error {
			if _, err := namespace.LoadFile(tx, fileID); err != nil {
				return err
			}
			ids, err := tx.ListVersionIDs(fileID)
			if err != nil {
				return err
			}
			versions = make([]*metadata.Version, 0, len(ids))
			for _, id := range ids {
				v, err := tx.GetVersion(id)
				if err != nil {
					return err
				}
				versions = append(versions, v)
			}
			return nil
		})
		if err != nil {
			yield(nil, err)
			return
		}
		for _, v := range versions {
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Lock makes a version permanently immutable. Locking is one-way; locking
// an already locked version is a conflict.
func (g *Graph) Lock(ctx context.Context, versionID string) (*metadata.Version, error) {
	var version *metadata.Version
	err := g.meta.Update(ctx, func(tx metadata.Tx) error {
		v, err := tx.GetVersion(versionID)
		if err != nil {
			return err
		}
		if v.Locked {
			return metadata.NewConflictError(versionID, "version is already locked")
		}
		now := time.Now().UTC()
		v.Locked = true
		v.LockedAt = &now
		version = v
		return tx.PutVersion(v)
	})
	if err != nil {
		return nil, err
	}

	logger.Info("Locked version %s (file=%s, seq=%d)", version.ID, version.FileID, version.Sequence)
	return version, nil
}

// Checkout moves a file's current-version pointer to one of its versions.
// It is refused when the current version is locked and is not the target.
func (g *Graph) Checkout(ctx context.Context, fileID, versionID string) (*metadata.Node, error) {
	var node *metadata.Node
	err := g.meta.Update(ctx, func(tx metadata.Tx) error {
		file, err := namespace.LoadFile(tx, fileID)
		if err != nil {
			return err
		}
		target, err := tx.GetVersion(versionID)
		if err != nil {
			return err
		}
		if target.FileID != fileID {
			return metadata.NewNotFoundError(versionID, "version does not belong to file %s", fileID)
		}

		node = file
		if file.CurrentVersionID == versionID {
			return nil
		}
		if err := g.EnsureMutable(tx, file); err != nil {
			return err
		}
		return namespace.SetCurrentVersion(tx, file, versionID)
	})
	if err != nil {
		return nil, err
	}

	logger.Debug("Checked out %s at version %s", node.Path, versionID)
	return node, nil
}

// OpenContent streams the bytes of a version.
func (g *Graph) OpenContent(ctx context.Context, versionID string) (*metadata.Version, io.ReadCloser, error) {
	version, err := g.GetVersion(ctx, versionID)
	if err != nil {
		return nil, nil, err
	}
	return version, g.chunks.OpenReader(ctx, version.Manifest), nil
}

// EnsureMutable implements namespace.FileContent.
func (g *Graph) EnsureMutable(tx metadata.Tx, node *metadata.Node) error {
	if node.CurrentVersionID == "" {
		return nil
	}
	current, err := tx.GetVersion(node.CurrentVersionID)
	if err != nil {
		return err
	}
	if current.Locked {
		return metadata.NewForbiddenError(node.Path, "current version %d is locked", current.Sequence)
	}
	return nil
}

// Release implements namespace.FileContent. It deletes every version of the
// file, dropping one reference per distinct chunk of each manifest.
func (g *Graph) Release(tx metadata.Tx, node *metadata.Node) error {
	ids, err := tx.ListVersionIDs(node.ID)
	if err != nil {
		return err
	}

	versions := make([]*metadata.Version, 0, len(ids))
	for _, id := range ids {
		v, err := tx.GetVersion(id)
		if err != nil {
			return err
		}
		if v.Locked {
			return metadata.NewForbiddenError(node.Path, "version %d is locked", v.Sequence)
		}
		versions = append(versions, v)
	}

	for _, v := range versions {
		for _, hash := range v.DistinctHashes() {
			if err := g.chunks.DecrementRef(tx, hash); err != nil {
				return err
			}
		}
		if err := tx.DeleteVersion(v.ID); err != nil {
			return err
		}
	}
	return nil
}
