package upload

import (
	"context"
	"time"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// Status summarizes how far a session is from being finalizable.
type Status string

const (
	// StatusPending means nothing has been uploaded through the session yet
	// and some chunks are still missing.
	StatusPending Status = "pending"

	// StatusInProgress means some chunks were uploaded and some are missing.
	StatusInProgress Status = "in_progress"

	// StatusReady means every declared chunk is stored; Finalize will
	// succeed barring a lock or a conflict.
	StatusReady Status = "ready"
)

// Progress reports the state of an upload session.
type Progress struct {
	SessionID    string `json:"sessionId"`
	RepositoryID string `json:"repositoryId"`
	Path         string `json:"path"`

	// TotalChunks counts manifest entries, DistinctChunks unique hashes
	TotalChunks    int `json:"totalChunks"`
	DistinctChunks int `json:"distinctChunks"`

	// ConfirmedChunks and ConfirmedBytes cover chunks uploaded through this
	// session
	ConfirmedChunks int   `json:"confirmedChunks"`
	ConfirmedBytes  int64 `json:"confirmedBytes"`

	// MissingChunks is the number of distinct chunks still not stored
	MissingChunks int `json:"missingChunks"`

	// Percent is the share of distinct chunks already stored
	Percent float64 `json:"percent"`

	Status    Status    `json:"status"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Progress returns the state of a session.
func (m *Manager) Progress(ctx context.Context, sessionID string) (*Progress, error) {
	var p *Progress
	err := m.meta.View(ctx, func(tx metadata.Tx) error {
		session, confirmations, err := m.loadSession(tx, sessionID)
		if err != nil {
			return err
		}
		missing, err := m.chunks.MissingIn(tx, session.Manifest)
		if err != nil {
			return err
		}

		distinct := len(metadata.Distinct(session.Manifest))
		p = &Progress{
			SessionID:       session.ID,
			RepositoryID:    session.RepositoryID,
			Path:            session.Path,
			TotalChunks:     len(session.Manifest),
			DistinctChunks:  distinct,
			ConfirmedChunks: len(confirmations),
			MissingChunks:   len(missing),
			Percent:         100,
			ExpiresAt:       m.expiryOf(session, confirmations),
		}
		for _, c := range confirmations {
			p.ConfirmedBytes += c.Size
		}
		if distinct > 0 {
			p.Percent = float64(distinct-len(missing)) * 100 / float64(distinct)
		}

		switch {
		case len(missing) == 0:
			p.Status = StatusReady
		case len(confirmations) > 0:
			p.Status = StatusInProgress
		default:
			p.Status = StatusPending
		}
		return nil
	})
	return p, err
}
