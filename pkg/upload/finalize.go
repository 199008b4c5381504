package upload

import (
	"context"
	"time"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/events"
	"github.com/marmos91/dittovault/pkg/namespace"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/versions"
)

// FinalizeRequest carries the commit metadata.
type FinalizeRequest struct {
	AuthorID string `json:"authorId"`
	Message  string `json:"message"`
}

// Finalize commits a session as a new version of the file at the session's
// path.
//
// In one transaction it creates the file node (and missing parent
// directories) if needed, checks that the current version is not locked,
// creates the version, advances the file's pointer and deletes the session.
// Every declared chunk must be stored, whether uploaded through this session
// or already present.
//
// Lost optimistic-concurrency races are retried a bounded number of times
// and then reported as ErrConflict.
func (m *Manager) Finalize(ctx context.Context, sessionID string, req FinalizeRequest) (version *metadata.Version, err error) {
	start := time.Now()
	defer func() { m.metrics.ObserveFinalize(time.Since(start), err) }()

	if req.AuthorID == "" {
		return nil, metadata.NewValidationError(sessionID, "author is required")
	}

	var (
		session *metadata.Session
		file    *metadata.Node
	)
	err = metadata.UpdateWithRetry(ctx, m.meta, m.cfg.FinalizeRetries, func(tx metadata.Tx) error {
		var err error
		session, _, err = m.loadSession(tx, sessionID)
		if err != nil {
			return err
		}

		missing, err := m.chunks.MissingIn(tx, session.Manifest)
		if err != nil {
			return err
		}
		if len(missing) > 0 {
			return metadata.NewValidationError(sessionID, "%d declared chunks are not uploaded (first: %s)",
				len(missing), missing[0])
		}

		node, created, err := namespace.EnsureFile(tx, session.RepositoryID, session.Path)
		if err != nil {
			return err
		}
		if !created {
			if err := m.graph.EnsureMutable(tx, node); err != nil {
				return err
			}
		}

		manifest, err := buildManifest(tx, session.Manifest)
		if err != nil {
			return err
		}

		version, err = m.graph.CreateVersion(tx, versions.CreateRequest{
			FileID:   node.ID,
			Manifest: manifest,
			AuthorID: req.AuthorID,
			Message:  req.Message,
			ParentID: node.CurrentVersionID,
		})
		if err != nil {
			return err
		}

		if err := namespace.SetCurrentVersion(tx, node, version.ID); err != nil {
			return err
		}
		file = node
		return tx.DeleteSession(sessionID)
	})
	if err != nil {
		return nil, err
	}

	m.declared.forget(sessionID)
	m.metrics.RecordSession("finalize")
	logger.Info("Committed %s version %d (%d chunks, %d bytes) by %s",
		file.Path, version.Sequence, len(version.Manifest), version.Size, version.AuthorID)

	if m.publisher != nil {
		m.publisher.Publish(events.VersionCreated{
			RepositoryID: file.RepositoryID,
			FileID:       file.ID,
			Path:         file.Path,
			VersionID:    version.ID,
			Sequence:     version.Sequence,
			Fingerprint:  version.Fingerprint,
			AuthorID:     version.AuthorID,
			Size:         version.Size,
			CreatedAt:    version.CreatedAt,
		})
	}
	return version, nil
}

// buildManifest turns declared hashes into indexed chunk references using
// the stored chunk sizes.
func buildManifest(tx metadata.Tx, hashes []string) ([]metadata.ChunkRef, error) {
	sizes := make(map[string]int64, len(hashes))
	refs := make([]metadata.ChunkRef, len(hashes))
	for i, h := range hashes {
		size, ok := sizes[h]
		if !ok {
			chunk, err := tx.GetChunk(h)
			if err != nil {
				return nil, err
			}
			size = chunk.Size
			sizes[h] = size
		}
		refs[i] = metadata.ChunkRef{Hash: h, Index: i, Length: size}
	}
	return refs, nil
}
