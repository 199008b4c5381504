package memory

import (
	"sort"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

func (tx *memoryTx) GetSession(id string) (*metadata.Session, error) {
	session, ok := tx.store.sessions[id]
	if !ok {
		return nil, metadata.NewNotFoundError(id, "upload session not found")
	}
	return session.Clone(), nil
}

func (tx *memoryTx) PutSession(session *metadata.Session) error {
	if err := tx.writable(); err != nil {
		return err
	}
	setKey(tx, tx.store.sessions, session.ID, session.Clone())
	return nil
}

func (tx *memoryTx) DeleteSession(id string) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if _, ok := tx.store.sessions[id]; !ok {
		return metadata.NewNotFoundError(id, "upload session not found")
	}
	deleteKey(tx, tx.store.sessions, id)
	deleteKey(tx, tx.store.confirmations, id)
	return nil
}

func (tx *memoryTx) ListSessions(repositoryID string) ([]*metadata.Session, error) {
	var out []*metadata.Session
	for _, session := range tx.store.sessions {
		if repositoryID == "" || session.RepositoryID == repositoryID {
			out = append(out, session.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (tx *memoryTx) PutConfirmation(sessionID string, confirmation *metadata.Confirmation) error {
	if err := tx.writable(); err != nil {
		return err
	}

	byHash, ok := tx.store.confirmations[sessionID]
	if !ok {
		byHash = make(map[string]*metadata.Confirmation)
		setKey(tx, tx.store.confirmations, sessionID, byHash)
	}
	c := *confirmation
	setKey(tx, byHash, c.Hash, &c)
	return nil
}

func (tx *memoryTx) ListConfirmations(sessionID string) ([]*metadata.Confirmation, error) {
	byHash := tx.store.confirmations[sessionID]
	out := make([]*metadata.Confirmation, 0, len(byHash))
	for _, c := range byHash {
		cp := *c
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out, nil
}
