// Package upload implements the resumable incremental-sync protocol.
//
// A client declares the ordered chunk manifest of a file (InitSession), asks
// which chunks the vault lacks (CheckMissing), uploads only those
// (UploadChunk) and commits (Finalize). Every step is idempotent, so a client
// that loses its connection resumes by calling CheckMissing again.
package upload

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/cas"
	"github.com/marmos91/dittovault/pkg/events"
	"github.com/marmos91/dittovault/pkg/namespace"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/versions"
)

// Config configures the upload manager.
type Config struct {
	// SessionTTL is how long a session lives after its latest activity
	// (creation or a confirmed chunk upload). Default: 24h.
	SessionTTL time.Duration

	// MaxManifestEntries bounds the declared manifest. Default: 100000.
	MaxManifestEntries int

	// FinalizeRetries bounds re-runs of the finalize transaction after a
	// concurrency conflict. Default: metadata.DefaultConflictRetries.
	FinalizeRetries int

	// Metrics receives observations. Nil disables metrics.
	Metrics Metrics
}

func (c *Config) applyDefaults() {
	if c.SessionTTL <= 0 {
		c.SessionTTL = 24 * time.Hour
	}
	if c.MaxManifestEntries <= 0 {
		c.MaxManifestEntries = 100_000
	}
	if c.FinalizeRetries <= 0 {
		c.FinalizeRetries = metadata.DefaultConflictRetries
	}
}

// Manager implements the upload session operations.
type Manager struct {
	meta      metadata.Store
	chunks    *cas.Store
	graph     *versions.Graph
	publisher events.Publisher
	metrics   Metrics
	cfg       Config
	declared  *declaredSets

	now func() time.Time
}

// New creates an upload manager. publisher may be nil.
func New(meta metadata.Store, chunks *cas.Store, graph *versions.Graph, publisher events.Publisher, cfg Config) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		meta:      meta,
		chunks:    chunks,
		graph:     graph,
		publisher: publisher,
		metrics:   cfg.Metrics,
		cfg:       cfg,
		declared:  newDeclaredSets(),
		now:       func() time.Time { return time.Now().UTC() },
	}
	if m.metrics == nil {
		m.metrics = noopMetrics{}
	}
	return m
}

// InitRequest declares a file to upload.
type InitRequest struct {
	RepositoryID string   `json:"repositoryId"`
	Path         string   `json:"path"`
	Manifest     []string `json:"manifestHashes"`
}

// InitSession opens an upload session. The manifest may be empty, which
// commits an empty file.
func (m *Manager) InitSession(ctx context.Context, req InitRequest) (*metadata.Session, error) {
	if err := metadata.ValidateRepositoryID(req.RepositoryID); err != nil {
		return nil, err
	}
	if err := metadata.ValidatePath(req.Path); err != nil {
		return nil, err
	}
	if len(req.Manifest) > m.cfg.MaxManifestEntries {
		return nil, metadata.NewValidationError(req.Path, "manifest has %d entries, limit is %d",
			len(req.Manifest), m.cfg.MaxManifestEntries)
	}
	for _, h := range req.Manifest {
		if err := metadata.ValidateHash(h); err != nil {
			return nil, err
		}
	}

	now := m.now()
	session := &metadata.Session{
		ID:           uuid.New().String(),
		RepositoryID: req.RepositoryID,
		Path:         metadata.CleanPath(req.Path),
		Manifest:     append([]string{}, req.Manifest...),
		CreatedAt:    now,
		ExpiresAt:    now.Add(m.cfg.SessionTTL),
	}

	err := m.meta.Update(ctx, func(tx metadata.Tx) error {
		return tx.PutSession(session)
	})
	if err != nil {
		return nil, err
	}

	m.metrics.RecordSession("init")
	logger.Debug("Upload session %s opened for %s (%d chunks)", session.ID, session.Path, len(session.Manifest))
	return session, nil
}

// CheckMissing returns the declared chunks the vault does not hold yet,
// de-duplicated in manifest order. It has no side effects; in particular it
// does not extend the session.
func (m *Manager) CheckMissing(ctx context.Context, sessionID string) ([]string, error) {
	var missing []string
	err := m.meta.View(ctx, func(tx metadata.Tx) error {
		session, _, err := m.loadSession(tx, sessionID)
		if err != nil {
			return err
		}
		missing, err = m.chunks.MissingIn(tx, session.Manifest)
		return err
	})
	return missing, err
}

// UploadChunk stores one declared chunk and confirms it in the session.
// Uploading the same chunk again is harmless.
func (m *Manager) UploadChunk(ctx context.Context, sessionID, hash string, data []byte) error {
	if err := metadata.ValidateHash(hash); err != nil {
		return err
	}

	err := m.meta.View(ctx, func(tx metadata.Tx) error {
		session, _, err := m.loadSession(tx, sessionID)
		if err != nil {
			return err
		}
		if !m.declared.contains(session, hash) {
			return metadata.NewValidationError(hash, "chunk is not declared in the session manifest")
		}
		return nil
	})
	if err != nil {
		return err
	}

	if err := m.chunks.Put(ctx, hash, data); err != nil {
		return err
	}

	err = metadata.UpdateWithRetry(ctx, m.meta, 0, func(tx metadata.Tx) error {
		if _, _, err := m.loadSession(tx, sessionID); err != nil {
			return err
		}
		return tx.PutConfirmation(sessionID, &metadata.Confirmation{
			Hash:        hash,
			Size:        int64(len(data)),
			ConfirmedAt: m.now(),
		})
	})
	if err != nil {
		return err
	}

	m.metrics.RecordChunkUpload(int64(len(data)))
	return nil
}

// Cancel discards a session. Uploaded chunks stay in the store unreferenced
// until the reclaimer removes them.
func (m *Manager) Cancel(ctx context.Context, sessionID string) error {
	err := m.meta.Update(ctx, func(tx metadata.Tx) error {
		if _, _, err := m.loadSession(tx, sessionID); err != nil {
			return err
		}
		return tx.DeleteSession(sessionID)
	})
	if err != nil {
		return err
	}

	m.declared.forget(sessionID)
	m.metrics.RecordSession("cancel")
	logger.Debug("Upload session %s cancelled", sessionID)
	return nil
}

// ListSessions returns the live sessions of a repository (all repositories
// when repositoryID is empty). ExpiresAt carries the effective expiry.
func (m *Manager) ListSessions(ctx context.Context, repositoryID string) ([]*metadata.Session, error) {
	if repositoryID != "" {
		if err := metadata.ValidateRepositoryID(repositoryID); err != nil {
			return nil, err
		}
	}

	var live []*metadata.Session
	err := m.meta.View(ctx, func(tx metadata.Tx) error {
		sessions, err := tx.ListSessions(repositoryID)
		if err != nil {
			return err
		}
		now := m.now()
		for _, s := range sessions {
			expiry, err := m.effectiveExpiry(tx, s)
			if err != nil {
				return err
			}
			if now.After(expiry) {
				continue
			}
			s.ExpiresAt = expiry
			live = append(live, s)
		}
		return nil
	})
	return live, err
}

// loadSession returns a live session and its confirmations. Expired
// sessions are reported as not found.
func (m *Manager) loadSession(tx metadata.Tx, sessionID string) (*metadata.Session, []*metadata.Confirmation, error) {
	session, err := tx.GetSession(sessionID)
	if err != nil {
		return nil, nil, err
	}
	confirmations, err := tx.ListConfirmations(sessionID)
	if err != nil {
		return nil, nil, err
	}
	if m.now().After(m.expiryOf(session, confirmations)) {
		return nil, nil, metadata.NewNotFoundError(sessionID, "upload session expired")
	}
	return session, confirmations, nil
}

func (m *Manager) effectiveExpiry(tx metadata.Tx, session *metadata.Session) (time.Time, error) {
	confirmations, err := tx.ListConfirmations(session.ID)
	if err != nil {
		return time.Time{}, err
	}
	return m.expiryOf(session, confirmations), nil
}

// expiryOf is TTL after the latest activity: creation or the newest
// confirmation.
func (m *Manager) expiryOf(session *metadata.Session, confirmations []*metadata.Confirmation) time.Time {
	last := session.CreatedAt
	for _, c := range confirmations {
		if c.ConfirmedAt.After(last) {
			last = c.ConfirmedAt
		}
	}
	return last.Add(m.cfg.SessionTTL)
}
