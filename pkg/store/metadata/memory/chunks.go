package memory

import (
	"sort"
	"time"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

func (tx *memoryTx) GetChunk(hash string) (*metadata.Chunk, error) {
	chunk, ok := tx.store.chunks[hash]
	if !ok {
		return nil, metadata.NewNotFoundError(hash, "chunk not found")
	}
	return chunk.Clone(), nil
}

func (tx *memoryTx) PutChunk(chunk *metadata.Chunk) error {
	if err := tx.writable(); err != nil {
		return err
	}
	setKey(tx, tx.store.chunks, chunk.Hash, chunk.Clone())
	return nil
}

func (tx *memoryTx) DeleteChunk(hash string) error {
	if err := tx.writable(); err != nil {
		return err
	}
	if _, ok := tx.store.chunks[hash]; !ok {
		return metadata.NewNotFoundError(hash, "chunk not found")
	}
	deleteKey(tx, tx.store.chunks, hash)
	return nil
}

func (tx *memoryTx) ListUnreferencedChunks(before time.Time, limit int) ([]*metadata.Chunk, error) {
	var out []*metadata.Chunk
	for _, chunk := range tx.store.chunks {
		if chunk.RefCount == 0 && chunk.UpdatedAt.Before(before) {
			out = append(out, chunk.Clone())
		}
	}

	// Stable order keeps batches deterministic across runs.
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
