package client

import (
	"bytes"
	"context"
	"errors"
	"io"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovault/pkg/api"
	"github.com/marmos91/dittovault/pkg/api/handlers"
	"github.com/marmos91/dittovault/pkg/cas"
	"github.com/marmos91/dittovault/pkg/namespace"
	contentmemory "github.com/marmos91/dittovault/pkg/store/content/memory"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/store/metadata/memory"
	"github.com/marmos91/dittovault/pkg/upload"
	"github.com/marmos91/dittovault/pkg/versions"
)

const repo = "repo-1"

func newTestClient(t *testing.T) *Client {
	t.Helper()
	ctx := context.Background()

	meta := memory.NewMemoryMetadataStoreWithDefaults()
	backend, err := contentmemory.NewMemoryContentStore(ctx)
	require.NoError(t, err)
	chunks, err := cas.New(meta, backend, cas.Config{})
	require.NoError(t, err)
	graph := versions.New(meta, chunks)

	router := api.NewRouter(api.Services{
		Namespace: namespace.New(meta, graph),
		Chunks:    chunks,
		Versions:  graph,
		Uploads:   upload.New(meta, chunks, graph, nil, upload.Config{}),
		HealthChecks: map[string]handlers.HealthChecker{
			"metadata": meta,
			"content":  backend,
		},
	}, api.Config{}, nil)

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	c, err := New(Config{
		BaseURL:      srv.URL,
		MinChunkSize: 2 * kiB,
		MaxChunkSize: 16 * kiB,
	})
	require.NoError(t, err)
	return c
}

// randomBytes returns deterministic pseudo-random content.
func randomBytes(seed int64, n int) []byte {
	buf := make([]byte, n)
	_, _ = rand.New(rand.NewSource(seed)).Read(buf)
	return buf
}

// streamOnly hides io.ReaderAt so Push has to buffer chunks.
type streamOnly struct{ io.Reader }

func pull(t *testing.T, c *Client, fileID string) []byte {
	t.Helper()
	var buf bytes.Buffer
	n, err := c.Pull(context.Background(), fileID, &buf)
	require.NoError(t, err)
	require.Equal(t, int64(buf.Len()), n)
	return buf.Bytes()
}

func TestNew(t *testing.T) {
	t.Run("RequiresBaseURL", func(t *testing.T) {
		_, err := New(Config{})
		require.Error(t, err)
	})

	t.Run("RejectsInvertedBoundaries", func(t *testing.T) {
		_, err := New(Config{BaseURL: "http://localhost", MinChunkSize: 2 * miB, MaxChunkSize: miB})
		require.Error(t, err)
	})

	t.Run("Defaults", func(t *testing.T) {
		c, err := New(Config{BaseURL: "http://localhost:8080/"})
		require.NoError(t, err)
		assert.Equal(t, "http://localhost:8080", c.base)
		assert.Equal(t, 4, c.config.Concurrency)
		assert.Equal(t, uint(DefaultMinChunkSize), c.config.MinChunkSize)
		assert.Equal(t, uint(DefaultMaxChunkSize), c.config.MaxChunkSize)
		assert.Equal(t, DefaultPolynomial, c.config.Polynomial)
	})
}

func TestPushPull(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	data := randomBytes(1, 256*kiB)

	first, err := c.Push(ctx, PushRequest{
		RepositoryID: repo,
		Path:         "/models/tower.ifc",
		Content:      bytes.NewReader(data),
		AuthorID:     "alice",
		Message:      "initial import",
	})
	require.NoError(t, err)
	require.Greater(t, first.Chunks, 1)
	assert.Equal(t, first.DistinctChunks, first.Uploaded)
	assert.Equal(t, int64(len(data)), first.UploadedBytes)
	assert.Equal(t, uint64(1), first.Version.Sequence)
	assert.Equal(t, int64(len(data)), first.Version.Size)

	assert.Equal(t, data, pull(t, c, first.Version.FileID))

	t.Run("SecondPushUploadsNothing", func(t *testing.T) {
		second, err := c.Push(ctx, PushRequest{
			RepositoryID: repo,
			Path:         "/models/tower.ifc",
			Content:      bytes.NewReader(data),
			AuthorID:     "alice",
		})
		require.NoError(t, err)
		assert.Equal(t, 0, second.Uploaded)
		assert.Equal(t, uint64(2), second.Version.Sequence)
		assert.Equal(t, first.Version.ID, second.Version.ParentID)
	})

	t.Run("LocalEditUploadsFewChunks", func(t *testing.T) {
		edited := bytes.Clone(data)
		copy(edited[100*kiB:], []byte("revised beam schedule"))

		third, err := c.Push(ctx, PushRequest{
			RepositoryID: repo,
			Path:         "/models/tower.ifc",
			Content:      streamOnly{bytes.NewReader(edited)},
			AuthorID:     "bob",
		})
		require.NoError(t, err)
		assert.GreaterOrEqual(t, third.Uploaded, 1)
		assert.LessOrEqual(t, third.Uploaded, 3)
		assert.Equal(t, edited, pull(t, c, third.Version.FileID))
	})

	t.Run("PullPath", func(t *testing.T) {
		var buf bytes.Buffer
		_, err := c.PullPath(ctx, repo, "/models/tower.ifc", &buf)
		require.NoError(t, err)
		assert.Len(t, buf.Bytes(), len(data))

		_, err = c.PullPath(ctx, repo, "/models", &buf)
		assert.True(t, metadata.IsValidation(err))
	})
}

func TestPushEmpty(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	res, err := c.Push(ctx, PushRequest{
		RepositoryID: repo,
		Path:         "/empty.txt",
		Content:      bytes.NewReader(nil),
		AuthorID:     "alice",
	})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Chunks)
	assert.Equal(t, int64(0), res.Version.Size)
	assert.Empty(t, pull(t, c, res.Version.FileID))
}

func TestPushFailureCancelsSession(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	_, err := c.Push(ctx, PushRequest{
		RepositoryID: repo,
		Path:         "/doc.txt",
		Content:      bytes.NewReader([]byte("no author")),
	})
	require.Error(t, err)
	assert.True(t, metadata.IsValidation(err))

	sessions, err := c.ListUploads(ctx, repo)
	require.NoError(t, err)
	assert.Empty(t, sessions)
}

func TestNamespaceCalls(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)

	docs, err := c.CreateNode(ctx, namespace.CreateNodeRequest{RepositoryID: repo, Name: "docs", Kind: metadata.KindDirectory})
	require.NoError(t, err)
	archive, err := c.CreateNode(ctx, namespace.CreateNodeRequest{RepositoryID: repo, Name: "archive", Kind: metadata.KindDirectory})
	require.NoError(t, err)
	notes, err := c.CreateNode(ctx, namespace.CreateNodeRequest{RepositoryID: repo, ParentID: docs.ID, Name: "notes.md", Kind: metadata.KindFile})
	require.NoError(t, err)
	assert.Equal(t, "/docs/notes.md", notes.Path)

	t.Run("DuplicateNameConflicts", func(t *testing.T) {
		_, err := c.CreateNode(ctx, namespace.CreateNodeRequest{RepositoryID: repo, ParentID: docs.ID, Name: "notes.md", Kind: metadata.KindFile})
		assert.True(t, metadata.IsConflict(err))
	})

	t.Run("ListRoot", func(t *testing.T) {
		nodes, err := c.ListRoot(ctx, repo, namespace.OrderByName)
		require.NoError(t, err)
		require.Len(t, nodes, 2)
		assert.Equal(t, "archive", nodes[0].Name)
		assert.Equal(t, "docs", nodes[1].Name)
	})

	t.Run("MoveAndResolve", func(t *testing.T) {
		moved, err := c.Move(ctx, docs.ID, archive.ID, "")
		require.NoError(t, err)
		assert.Equal(t, "/archive/docs", moved.Path)

		node, err := c.ResolvePath(ctx, repo, "/archive/docs/notes.md")
		require.NoError(t, err)
		assert.Equal(t, notes.ID, node.ID)

		children, err := c.ListChildren(ctx, archive.ID, "")
		require.NoError(t, err)
		require.Len(t, children, 1)
		assert.Equal(t, docs.ID, children[0].ID)
	})

	t.Run("CyclicMoveIsValidation", func(t *testing.T) {
		_, err := c.Move(ctx, archive.ID, docs.ID, "")
		assert.True(t, metadata.IsValidation(err))
	})

	t.Run("Delete", func(t *testing.T) {
		require.NoError(t, c.Delete(ctx, archive.ID))

		_, err := c.GetNode(ctx, notes.ID)
		require.True(t, metadata.IsNotFound(err))

		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.Equal(t, http.StatusNotFound, apiErr.Status)

		nodes, err := c.ListRepository(ctx, repo)
		require.NoError(t, err)
		assert.Empty(t, nodes)
	})
}

func TestVersionCalls(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	v1Data := randomBytes(2, 40*kiB)
	v2Data := randomBytes(3, 40*kiB)

	push := func(data []byte) *metadata.Version {
		res, err := c.Push(ctx, PushRequest{RepositoryID: repo, Path: "/plan.dwg", Content: bytes.NewReader(data), AuthorID: "alice"})
		require.NoError(t, err)
		return res.Version
	}
	v1 := push(v1Data)
	v2 := push(v2Data)

	list, err := c.ListVersions(ctx, v1.FileID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, v1.ID, list[0].ID)
	assert.Equal(t, v2.ID, list[1].ID)

	got, err := c.GetByFingerprint(ctx, v2.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, v2.ID, got.ID)

	rc, err := c.OpenVersion(ctx, v1.ID)
	require.NoError(t, err)
	body, err := io.ReadAll(rc)
	require.NoError(t, rc.Close())
	require.NoError(t, err)
	assert.Equal(t, v1Data, body)

	raw, err := c.GetChunk(ctx, v1.Manifest[0].Hash)
	require.NoError(t, err)
	assert.Equal(t, v1Data[:v1.Manifest[0].Length], raw)

	node, err := c.Checkout(ctx, v1.FileID, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, node.CurrentVersionID)
	assert.Equal(t, v1Data, pull(t, c, v1.FileID))

	locked, err := c.Lock(ctx, v1.ID)
	require.NoError(t, err)
	assert.True(t, locked.Locked)

	_, err = c.Push(ctx, PushRequest{RepositoryID: repo, Path: "/plan.dwg", Content: bytes.NewReader(v2Data), AuthorID: "bob"})
	assert.True(t, metadata.IsForbidden(err))
}

func TestUploadCalls(t *testing.T) {
	ctx := context.Background()
	c := newTestClient(t)
	data := []byte("hello vault")
	hash := metadata.HashBytes(data)

	session, err := c.InitUpload(ctx, upload.InitRequest{RepositoryID: repo, Path: "/hello.txt", Manifest: []string{hash}})
	require.NoError(t, err)

	progress, err := c.Progress(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Equal(t, upload.StatusPending, progress.Status)

	require.NoError(t, c.UploadChunk(ctx, session.SessionID, hash, data))

	missing, err := c.CheckMissing(ctx, session.SessionID)
	require.NoError(t, err)
	assert.Empty(t, missing)

	err = c.UploadChunk(ctx, session.SessionID, hash, []byte("tampered"))
	assert.True(t, metadata.IsValidation(err))

	require.NoError(t, c.CancelUpload(ctx, session.SessionID))
	_, err = c.Progress(ctx, session.SessionID)
	assert.True(t, metadata.IsNotFound(err))
}

func TestHealth(t *testing.T) {
	c := newTestClient(t)

	health, err := c.Health(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "ok", health.Status)
	assert.Equal(t, "ok", health.Checks["metadata"])
}
