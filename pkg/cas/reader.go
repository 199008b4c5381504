package cas

import (
	"context"
	"fmt"
	"io"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

// OpenReader streams the concatenated bytes of a manifest in order. Chunks
// are fetched one at a time as the reader drains, so memory use is bounded
// by the largest chunk.
func (s *Store) OpenReader(ctx context.Context, manifest []metadata.ChunkRef) io.ReadCloser {
	return &manifestReader{ctx: ctx, store: s, refs: manifest}
}

type manifestReader struct {
	ctx    context.Context
	store  *Store
	refs   []metadata.ChunkRef
	next   int
	buf    []byte
	closed bool
}

func (r *manifestReader) Read(p []byte) (int, error) {
	if r.closed {
		return 0, io.ErrClosedPipe
	}
	for len(r.buf) == 0 {
		if r.next >= len(r.refs) {
			return 0, io.EOF
		}
		ref := r.refs[r.next]
		data, err := r.store.Get(r.ctx, ref.Hash)
		if err != nil {
			return 0, err
		}
		if int64(len(data)) != ref.Length {
			return 0, fmt.Errorf("chunk %s at index %d: length %d, manifest says %d",
				ref.Hash, ref.Index, len(data), ref.Length)
		}
		r.buf = data
		r.next++
	}

	n := copy(p, r.buf)
	r.buf = r.buf[n:]
	return n, nil
}

func (r *manifestReader) Close() error {
	r.closed = true
	r.buf = nil
	return nil
}
