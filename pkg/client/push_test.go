package client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushFromFilePosition(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	header := []byte("DVHDR-v1\n")
	data := randomBytes(7, 96*kiB)
	path := filepath.Join(t.TempDir(), "model.bin")
	require.NoError(t, os.WriteFile(path, append(bytes.Clone(header), data...), 0o600))

	t.Run("AfterPartialRead", func(t *testing.T) {
		f, err := os.Open(path)
		require.NoError(t, err)
		defer func() { _ = f.Close() }()

		_, err = io.ReadFull(f, make([]byte, len(header)))
		require.NoError(t, err)

		res, err := c.Push(ctx, PushRequest{RepositoryID: repo, Path: "/read.bin", Content: f, AuthorID: "alice"})
		require.NoError(t, err)
		assert.Equal(t, int64(len(data)), res.Version.Size)
		assert.Equal(t, data, pull(t, c, res.Version.FileID))
	})

	t.Run("AfterSeek", func(t *testing.T) {
		f, err := os.Open(path)
		require.NoError(t, err)
		defer func() { _ = f.Close() }()

		_, err = f.Seek(int64(len(header))+kiB, io.SeekStart)
		require.NoError(t, err)

		res, err := c.Push(ctx, PushRequest{RepositoryID: repo, Path: "/seek.bin", Content: f, AuthorID: "alice"})
		require.NoError(t, err)
		assert.Equal(t, data[kiB:], pull(t, c, res.Version.FileID))
	})
}

func TestRetryAfterBackOff(t *testing.T) {
	c, err := New(Config{BaseURL: "http://localhost", UploadRetries: 3})
	require.NoError(t, err)

	b := c.uploadBackOff()
	b.hint = 7 * time.Second
	assert.Equal(t, 7*time.Second, b.NextBackOff())

	// the hint is used once, then the exponential schedule resumes
	next := b.NextBackOff()
	assert.Greater(t, next, time.Duration(0))
	assert.LessOrEqual(t, next, 30*time.Second)

	b.hint = time.Second
	assert.Equal(t, backoff.Stop, b.NextBackOff(), "retries exhausted")
}

func TestUploadWithRetry(t *testing.T) {
	newServer := func(t *testing.T, rejections int32, status int) (*Client, *atomic.Int32) {
		var calls atomic.Int32
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if calls.Add(1) <= rejections {
				w.Header().Set("Retry-After", "0.01")
				w.WriteHeader(status)
				return
			}
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":null}`))
		}))
		t.Cleanup(srv.Close)

		c, err := New(Config{BaseURL: srv.URL, UploadRetries: 3})
		require.NoError(t, err)
		return c, &calls
	}

	t.Run("HonorsRetryAfter", func(t *testing.T) {
		c, calls := newServer(t, 2, http.StatusServiceUnavailable)

		start := time.Now()
		require.NoError(t, c.uploadWithRetry(context.Background(), "s", "h", []byte("x")))
		assert.Equal(t, int32(3), calls.Load())
		assert.Less(t, time.Since(start), time.Second)
	})

	t.Run("GivesUpAfterAttempts", func(t *testing.T) {
		c, calls := newServer(t, 100, http.StatusTooManyRequests)

		err := c.uploadWithRetry(context.Background(), "s", "h", []byte("x"))
		var apiErr *APIError
		require.ErrorAs(t, err, &apiErr)
		assert.Equal(t, http.StatusTooManyRequests, apiErr.Status)
		assert.Equal(t, int32(3), calls.Load())
	})

	t.Run("DoesNotRetryClientErrors", func(t *testing.T) {
		c, calls := newServer(t, 100, http.StatusBadRequest)

		err := c.uploadWithRetry(context.Background(), "s", "h", []byte("x"))
		require.Error(t, err)
		assert.Equal(t, int32(1), calls.Load())
	})
}
