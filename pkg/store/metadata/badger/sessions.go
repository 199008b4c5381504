package badger

import (
	"sort"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

func (tx *badgerTx) GetSession(id string) (*metadata.Session, error) {
	var session metadata.Session
	if err := tx.getRow(keySession(id), &session, metadata.NewNotFoundError(id, "upload session not found")); err != nil {
		return nil, err
	}
	return &session, nil
}

func (tx *badgerTx) PutSession(session *metadata.Session) error {
	return tx.putRow(keySession(session.ID), session)
}

func (tx *badgerTx) DeleteSession(id string) error {
	if _, err := tx.GetSession(id); err != nil {
		return err
	}

	var keys [][]byte
	err := tx.scanValues(keyConfirmationPrefix(id), func(key, _ []byte) error {
		keys = append(keys, key)
		return nil
	})
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := tx.txn.Delete(key); err != nil {
			return err
		}
	}
	return tx.txn.Delete(keySession(id))
}

func (tx *badgerTx) ListSessions(repositoryID string) ([]*metadata.Session, error) {
	var out []*metadata.Session
	err := tx.scanValues([]byte(prefixSession), func(_, val []byte) error {
		var session metadata.Session
		if err := decode(val, &session); err != nil {
			return err
		}
		if repositoryID == "" || session.RepositoryID == repositoryID {
			out = append(out, &session)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (tx *badgerTx) PutConfirmation(sessionID string, confirmation *metadata.Confirmation) error {
	return tx.putRow(keyConfirmation(sessionID, confirmation.Hash), confirmation)
}

func (tx *badgerTx) ListConfirmations(sessionID string) ([]*metadata.Confirmation, error) {
	var out []*metadata.Confirmation
	err := tx.scanValues(keyConfirmationPrefix(sessionID), func(_, val []byte) error {
		var c metadata.Confirmation
		if err := decode(val, &c); err != nil {
			return err
		}
		out = append(out, &c)
		return nil
	})
	return out, err
}
