package client

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/restic/chunker"
	"golang.org/x/sync/errgroup"

	"github.com/marmos91/dittovault/internal/logger"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/upload"
)

// PushRequest describes content to commit as a new version of a file.
type PushRequest struct {
	RepositoryID string
	Path         string

	// Content is read once from its current position. When it also
	// implements io.ReaderAt (an *os.File does) missing chunks are re-read
	// from it instead of being kept in memory.
	Content io.Reader

	AuthorID string
	Message  string
}

// PushResult summarizes a push.
type PushResult struct {
	Version *metadata.Version

	// Chunks is the manifest length, DistinctChunks the number of distinct
	// hashes in it
	Chunks         int
	DistinctChunks int

	// Uploaded counts the chunks the server did not already hold
	Uploaded      int
	UploadedBytes int64
}

// span locates a chunk in the pushed content.
type span struct {
	offset int64
	length int
	data   []byte // nil when re-read through io.ReaderAt
}

// Push chunks the content, declares the manifest, uploads only the chunks
// the server reports missing and finalizes the session.
//
// A failed push cancels its session so the server does not keep it until
// expiry.
func (c *Client) Push(ctx context.Context, req PushRequest) (*PushResult, error) {
	if req.Content == nil {
		return nil, fmt.Errorf("content is required")
	}

	readerAt, seekable, err := rereader(req.Content)
	if err != nil {
		return nil, err
	}
	manifest, spans, err := c.split(req.Content, !seekable)
	if err != nil {
		return nil, err
	}

	session, err := c.InitUpload(ctx, upload.InitRequest{
		RepositoryID: req.RepositoryID,
		Path:         req.Path,
		Manifest:     manifest,
	})
	if err != nil {
		return nil, err
	}

	version, uploaded, bytesSent, err := c.pushSession(ctx, session.SessionID, req, spans, readerAt)
	if err != nil {
		cancelCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if cerr := c.CancelUpload(cancelCtx, session.SessionID); cerr != nil && !metadata.IsNotFound(cerr) {
			logger.Debug("Failed to cancel upload session %s: %v", session.SessionID, cerr)
		}
		return nil, err
	}

	return &PushResult{
		Version:        version,
		Chunks:         len(manifest),
		DistinctChunks: len(spans),
		Uploaded:       uploaded,
		UploadedBytes:  bytesSent,
	}, nil
}

func (c *Client) pushSession(
	ctx context.Context,
	sessionID string,
	req PushRequest,
	spans map[string]span,
	readerAt io.ReaderAt,
) (*metadata.Version, int, int64, error) {
	missing, err := c.CheckMissing(ctx, sessionID)
	if err != nil {
		return nil, 0, 0, err
	}

	for _, hash := range missing {
		if _, ok := spans[hash]; !ok {
			return nil, 0, 0, fmt.Errorf("server reported unknown chunk %s", hash)
		}
	}

	var sent atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.config.Concurrency)
	for _, hash := range missing {
		sp := spans[hash]
		g.Go(func() error {
			data := sp.data
			if data == nil {
				data = make([]byte, sp.length)
				if _, err := readerAt.ReadAt(data, sp.offset); err != nil && !errors.Is(err, io.EOF) {
					return fmt.Errorf("re-read chunk %s: %w", hash, err)
				}
				if metadata.HashBytes(data) != hash {
					return fmt.Errorf("content changed while pushing (chunk %s)", hash)
				}
			}
			if err := c.uploadWithRetry(gctx, sessionID, hash, data); err != nil {
				return err
			}
			sent.Add(int64(len(data)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, 0, err
	}

	version, err := c.Finalize(ctx, sessionID, upload.FinalizeRequest{
		AuthorID: req.AuthorID,
		Message:  req.Message,
	})
	if err != nil {
		return nil, 0, 0, err
	}
	return version, len(missing), sent.Load(), nil
}

// rereader returns a view of r for re-reading chunks by offset. Offsets are
// relative to r's current position, so a file that was partly read or
// seeked before the push re-reads the same bytes the chunker saw.
func rereader(r io.Reader) (io.ReaderAt, bool, error) {
	ra, ok := r.(io.ReaderAt)
	if !ok {
		return nil, false, nil
	}
	seeker, ok := r.(io.Seeker)
	if !ok {
		return ra, true, nil
	}
	start, err := seeker.Seek(0, io.SeekCurrent)
	if err != nil {
		return nil, false, fmt.Errorf("content position: %w", err)
	}
	if start == 0 {
		return ra, true, nil
	}
	return io.NewSectionReader(ra, start, math.MaxInt64-start), true, nil
}

// split runs content-defined chunking over r. It returns the manifest and
// the location of each distinct chunk; with keep set the chunk bytes are
// retained.
func (c *Client) split(r io.Reader, keep bool) ([]string, map[string]span, error) {
	ch := chunker.NewWithBoundaries(r, c.config.Polynomial, c.config.MinChunkSize, c.config.MaxChunkSize)
	buf := make([]byte, c.config.MaxChunkSize)

	manifest := []string{}
	spans := make(map[string]span)
	var offset int64
	for {
		chunk, err := ch.Next(buf)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, nil, fmt.Errorf("chunk content: %w", err)
		}

		hash := metadata.HashBytes(chunk.Data)
		manifest = append(manifest, hash)
		if _, seen := spans[hash]; !seen {
			sp := span{offset: offset, length: len(chunk.Data)}
			if keep {
				sp.data = bytes.Clone(chunk.Data)
			}
			spans[hash] = sp
		}
		offset += int64(len(chunk.Data))
	}
	return manifest, spans, nil
}

// retryAfterBackOff prefers the server's Retry-After hint over the
// wrapped schedule for the next wait.
type retryAfterBackOff struct {
	backoff.BackOff
	hint time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	next := b.BackOff.NextBackOff()
	if next == backoff.Stop || b.hint <= 0 {
		return next
	}
	next, b.hint = b.hint, 0
	return next
}

// uploadBackOff is the schedule for one chunk upload: UploadRetries tries
// in total, one second doubling up to thirty.
func (c *Client) uploadBackOff() *retryAfterBackOff {
	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = time.Second
	exp.MaxInterval = 30 * time.Second
	exp.MaxElapsedTime = 0
	retries := c.config.UploadRetries - 1
	if retries < 0 {
		retries = 0
	}
	return &retryAfterBackOff{BackOff: backoff.WithMaxRetries(exp, uint64(retries))}
}

// uploadWithRetry retries uploads the server turned away with 429 or 503,
// honoring its Retry-After hint.
func (c *Client) uploadWithRetry(ctx context.Context, sessionID, hash string, data []byte) error {
	b := c.uploadBackOff()
	return backoff.RetryNotify(func() error {
		err := c.UploadChunk(ctx, sessionID, hash, data)
		var apiErr *APIError
		if err == nil {
			return nil
		}
		if !errors.As(err, &apiErr) || !apiErr.retryable() {
			return backoff.Permanent(err)
		}
		b.hint = apiErr.RetryAfter
		return err
	}, backoff.WithContext(b, ctx), func(err error, wait time.Duration) {
		logger.Debug("Chunk %s rejected, retrying in %s: %v", hash, wait, err)
	})
}

// Pull writes the current version of a file to w and returns the number of
// bytes written.
func (c *Client) Pull(ctx context.Context, fileID string, w io.Writer) (int64, error) {
	resp, err := c.send(ctx, http.MethodGet, "/files/"+url.PathEscape(fileID)+"/content", nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	n, err := io.Copy(w, resp.Body)
	if err != nil {
		return n, fmt.Errorf("read content of %s: %w", fileID, err)
	}
	if resp.ContentLength >= 0 && n != resp.ContentLength {
		return n, fmt.Errorf("short read of %s: got %d of %d bytes", fileID, n, resp.ContentLength)
	}
	return n, nil
}

// PullPath resolves a path and pulls its current version.
func (c *Client) PullPath(ctx context.Context, repositoryID, path string, w io.Writer) (int64, error) {
	node, err := c.ResolvePath(ctx, repositoryID, path)
	if err != nil {
		return 0, err
	}
	if node.Kind != metadata.KindFile {
		return 0, &metadata.StoreError{Code: metadata.ErrValidation, Message: "not a file", Path: path}
	}
	return c.Pull(ctx, node.ID, w)
}
