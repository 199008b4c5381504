package upload

import (
	"context"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// SweepExpired deletes up to limit expired sessions (all when limit <= 0)
// and returns how many were removed. Chunks are never touched; chunks
// uploaded into an abandoned session are left for the reclaimer.
func (m *Manager) SweepExpired(ctx context.Context, limit int) (int, error) {
	var expired []string
	err := m.meta.View(ctx, func(tx metadata.Tx) error {
		sessions, err := tx.ListSessions("")
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
				expired = append(expired, s.ID)
				if limit > 0 && len(expired) >= limit {
					break
				}
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	removed := 0
	for _, id := range expired {
		err := m.meta.Update(ctx, func(tx metadata.Tx) error {
			session, err := tx.GetSession(id)
			if err != nil {
				return err
			}
			// Re-check: a confirmation may have landed since the scan
			expiry, err := m.effectiveExpiry(tx, session)
			if err != nil {
				return err
			}
			if !m.now().After(expiry) {
				return nil
			}
			removed++
			return tx.DeleteSession(id)
		})
		switch {
		case err == nil, metadata.IsNotFound(err):
			m.declared.forget(id)
		case metadata.IsTxnConflict(err):
			logger.Debug("Sweep: session %s changed concurrently, skipping", id)
		default:
			return removed, err
		}
	}

	if removed > 0 {
		m.metrics.RecordExpired(removed)
		logger.Info("Swept %d expired upload sessions", removed)
	}
	return removed, nil
}
