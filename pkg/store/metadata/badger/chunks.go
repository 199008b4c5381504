package badger

import (
	"time"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

func (tx *badgerTx) GetChunk(hash string) (*metadata.Chunk, error) {
	var chunk metadata.Chunk
	if err := tx.getRow(keyChunk(hash), &chunk, metadata.NewNotFoundError(hash, "chunk not found")); err != nil {
		return nil, err
	}
	return &chunk, nil
}

func (tx *badgerTx) PutChunk(chunk *metadata.Chunk) error {
	if err := tx.putRow(keyChunk(chunk.Hash), chunk); err != nil {
		return err
	}
	if chunk.RefCount == 0 {
		return tx.txn.Set(keyUnreferenced(chunk.Hash), []byte{})
	}
	return tx.txn.Delete(keyUnreferenced(chunk.Hash))
}

func (tx *badgerTx) DeleteChunk(hash string) error {
	if _, err := tx.GetChunk(hash); err != nil {
		return err
	}
	if err := tx.txn.Delete(keyUnreferenced(hash)); err != nil {
		return err
	}
	return tx.txn.Delete(keyChunk(hash))
}

func (tx *badgerTx) ListUnreferencedChunks(before time.Time, limit int) ([]*metadata.Chunk, error) {
	var hashes []string
	err := tx.scanValues([]byte(prefixUnreferenced), func(key, _ []byte) error {
		hashes = append(hashes, string(key[len(prefixUnreferenced):]))
		return nil
	})
	if err != nil {
		return nil, err
	}

	var out []*metadata.Chunk
	for _, hash := range hashes {
		chunk, err := tx.GetChunk(hash)
		if metadata.IsNotFound(err) {
			continue
		}
		if err != nil {
			return nil, err
		}
		if chunk.RefCount != 0 || !chunk.UpdatedAt.Before(before) {
			continue
		}
		out = append(out, chunk)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
