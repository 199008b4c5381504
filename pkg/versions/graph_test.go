package versions

import (
	"context"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovault/pkg/cas"
	"github.com/marmos91/dittovault/pkg/namespace"
	contentmemory "github.com/marmos91/dittovault/pkg/store/content/memory"
	"github.com/marmos91/dittovault/pkg/store/metadata"
	"github.com/marmos91/dittovault/pkg/store/metadata/memory"
)

const repo = "repo-1"

type fixture struct {
	meta   metadata.Store
	chunks *cas.Store
	graph  *Graph
	ns     *namespace.Manager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	meta := memory.NewMemoryMetadataStoreWithDefaults()
	backend, err := contentmemory.NewMemoryContentStore(context.Background())
	require.NoError(t, err)
	chunks, err := cas.New(meta, backend, cas.Config{})
	require.NoError(t, err)

	graph := New(meta, chunks)
	return &fixture{meta: meta, chunks: chunks, graph: graph, ns: namespace.New(meta, graph)}
}

func (f *fixture) chunk(t *testing.T, data string) metadata.ChunkRef {
	t.Helper()
	hash := metadata.HashBytes([]byte(data))
	require.NoError(t, f.chunks.Put(context.Background(), hash, []byte(data)))
	return metadata.ChunkRef{Hash: hash, Length: int64(len(data))}
}

func manifest(refs ...metadata.ChunkRef) []metadata.ChunkRef {
	out := make([]metadata.ChunkRef, len(refs))
	for i, r := range refs {
		r.Index = i
		out[i] = r
	}
	return out
}

func (f *fixture) file(t *testing.T, parentID, name string) *metadata.Node {
	t.Helper()
	n, err := f.ns.CreateNode(context.Background(), namespace.CreateNodeRequest{
		RepositoryID: repo, ParentID: parentID, Name: name, Kind: metadata.KindFile,
	})
	require.NoError(t, err)
	return n
}

func (f *fixture) dir(t *testing.T, parentID, name string) *metadata.Node {
	t.Helper()
	n, err := f.ns.CreateNode(context.Background(), namespace.CreateNodeRequest{
		RepositoryID: repo, ParentID: parentID, Name: name, Kind: metadata.KindDirectory,
	})
	require.NoError(t, err)
	return n
}

// commit creates a version from the file's current state and advances the
// pointer, the way upload finalize does.
func (f *fixture) commit(t *testing.T, fileID string, refs []metadata.ChunkRef) *metadata.Version {
	t.Helper()
	var v *metadata.Version
	require.NoError(t, f.meta.Update(context.Background(), func(tx metadata.Tx) error {
		node, err := namespace.LoadFile(tx, fileID)
		if err != nil {
			return err
		}
		v, err = f.graph.CreateVersion(tx, CreateRequest{
			FileID: fileID, Manifest: refs, AuthorID: "alice", Message: "edit", ParentID: node.CurrentVersionID,
		})
		if err != nil {
			return err
		}
		return namespace.SetCurrentVersion(tx, node, v.ID)
	}))
	return v
}

func (f *fixture) refCount(t *testing.T, hash string) int64 {
	t.Helper()
	c, err := f.chunks.Stat(context.Background(), hash)
	require.NoError(t, err)
	return c.RefCount
}

func (f *fixture) list(t *testing.T, fileID string) []*metadata.Version {
	t.Helper()
	var out []*metadata.Version
	for v, err := range f.graph.ListVersions(context.Background(), fileID) {
		require.NoError(t, err)
		out = append(out, v)
	}
	return out
}

func TestVersionSequencesAreDense(t *testing.T) {
	f := newFixture(t)
	file := f.file(t, "", "model.ifc")

	const n = 5
	for i := range n {
		f.commit(t, file.ID, manifest(f.chunk(t, string(rune('a'+i)))))
	}

	versions := f.list(t, file.ID)
	require.Len(t, versions, n)

	seen := map[string]bool{}
	for i, v := range versions {
		assert.Equal(t, uint64(i+1), v.Sequence)
		assert.NotEmpty(t, v.AuthorID)
		assert.False(t, v.CreatedAt.IsZero())
		assert.False(t, seen[v.Fingerprint], "fingerprint repeated")
		seen[v.Fingerprint] = true
		if i > 0 {
			assert.Equal(t, versions[i-1].ID, v.ParentID)
		}
	}

	node, err := f.ns.GetNode(context.Background(), file.ID)
	require.NoError(t, err)
	assert.Equal(t, versions[n-1].ID, node.CurrentVersionID)
}

func TestCreateVersionCountsDistinctHashesOnce(t *testing.T) {
	f := newFixture(t)
	file := f.file(t, "", "a.bin")
	h1 := f.chunk(t, "one")
	h2 := f.chunk(t, "two")

	v := f.commit(t, file.ID, manifest(h1, h2, h1))

	assert.Equal(t, int64(1), f.refCount(t, h1.Hash))
	assert.Equal(t, int64(1), f.refCount(t, h2.Hash))
	assert.Equal(t, int64(3+3+3), v.Size)
}

func TestCreateVersionValidation(t *testing.T) {
	f := newFixture(t)
	file := f.file(t, "", "a.bin")
	h1 := f.chunk(t, "one")
	ghost := metadata.ChunkRef{Hash: metadata.HashBytes([]byte("never stored")), Length: 1}
	dir := f.dir(t, "", "d")

	tests := []struct {
		name  string
		req   CreateRequest
		check func(error) bool
	}{
		{"NoAuthor", CreateRequest{FileID: file.ID, Manifest: manifest(h1)}, metadata.IsValidation},
		{"UnknownChunk", CreateRequest{FileID: file.ID, Manifest: manifest(ghost), AuthorID: "a"}, metadata.IsValidation},
		{"BadIndex", CreateRequest{FileID: file.ID, Manifest: []metadata.ChunkRef{{Hash: h1.Hash, Index: 3, Length: 3}}, AuthorID: "a"}, metadata.IsValidation},
		{"UnknownFile", CreateRequest{FileID: "ghost", Manifest: manifest(h1), AuthorID: "a"}, metadata.IsNotFound},
		{"Directory", CreateRequest{FileID: dir.ID, Manifest: manifest(h1), AuthorID: "a"}, metadata.IsValidation},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := f.meta.Update(context.Background(), func(tx metadata.Tx) error {
				_, err := f.graph.CreateVersion(tx, tt.req)
				return err
			})
			assert.True(t, tt.check(err), "unexpected error %v", err)
		})
	}

	// Failed creates leave no trace
	assert.Equal(t, int64(0), f.refCount(t, h1.Hash))
	assert.Empty(t, f.list(t, file.ID))
}

func TestCreateVersionFingerprintCollision(t *testing.T) {
	f := newFixture(t)
	file := f.file(t, "", "a.bin")
	refs := manifest(f.chunk(t, "one"))

	create := func() error {
		return f.meta.Update(context.Background(), func(tx metadata.Tx) error {
			_, err := f.graph.CreateVersion(tx, CreateRequest{FileID: file.ID, Manifest: refs, AuthorID: "a"})
			return err
		})
	}
	require.NoError(t, create())
	assert.True(t, metadata.IsConflict(create()))
}

func TestEmptyManifest(t *testing.T) {
	f := newFixture(t)
	file := f.file(t, "", "empty.txt")

	v := f.commit(t, file.ID, nil)
	assert.Zero(t, v.Size)

	_, r, err := f.graph.OpenContent(context.Background(), v.ID)
	require.NoError(t, err)
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Empty(t, data)
}

func TestFingerprint(t *testing.T) {
	refs := []metadata.ChunkRef{{Hash: metadata.HashBytes([]byte("x")), Index: 0, Length: 1}}

	fp := Fingerprint("file", "parent", refs)
	assert.Len(t, fp, 64)
	assert.Equal(t, fp, Fingerprint("file", "parent", refs))
	assert.NotEqual(t, fp, Fingerprint("file", "other", refs))
	assert.NotEqual(t, fp, Fingerprint("other", "parent", refs))
	assert.NotEqual(t, fp, Fingerprint("file", "parent", nil))

	// Field boundaries matter
	assert.NotEqual(t, Fingerprint("ab", "c", nil), Fingerprint("a", "bc", nil))
}

func TestLockedVersionBlocksDelete(t *testing.T) {
	f := newFixture(t)
	file := f.file(t, "", "contract.pdf")
	v := f.commit(t, file.ID, manifest(f.chunk(t, "signed")))

	locked, err := f.graph.Lock(context.Background(), v.ID)
	require.NoError(t, err)
	assert.True(t, locked.Locked)
	require.NotNil(t, locked.LockedAt)

	err = f.ns.Delete(context.Background(), file.ID)
	assert.True(t, metadata.IsForbidden(err))

	after, err := f.graph.GetVersion(context.Background(), v.ID)
	require.NoError(t, err)
	assert.Equal(t, locked.ID, after.ID)
	assert.Equal(t, locked.Fingerprint, after.Fingerprint)
	assert.Equal(t, locked.Manifest, after.Manifest)
	assert.Equal(t, locked.Sequence, after.Sequence)
	assert.True(t, after.Locked)
	assert.True(t, locked.LockedAt.Equal(*after.LockedAt))
	assert.Equal(t, int64(1), f.refCount(t, v.Manifest[0].Hash))

	_, err = f.graph.Lock(context.Background(), v.ID)
	assert.True(t, metadata.IsConflict(err))
}

func TestLockedCurrentVersionBlocksMove(t *testing.T) {
	f := newFixture(t)
	dst := f.dir(t, "", "dst")
	file := f.file(t, "", "contract.pdf")
	v := f.commit(t, file.ID, manifest(f.chunk(t, "signed")))
	_, err := f.graph.Lock(context.Background(), v.ID)
	require.NoError(t, err)

	_, err = f.ns.Move(context.Background(), file.ID, dst.ID, "")
	assert.True(t, metadata.IsForbidden(err))
}

func TestDeleteReleasesEveryManifestOnce(t *testing.T) {
	f := newFixture(t)
	proj := f.dir(t, "", "proj")
	a := f.file(t, proj.ID, "a.ifc")
	b := f.file(t, proj.ID, "b.ifc")
	common := f.chunk(t, "common header")
	elsewhere := f.file(t, "", "other.ifc")

	f.commit(t, a.ID, manifest(common, f.chunk(t, "a1")))
	f.commit(t, a.ID, manifest(common, f.chunk(t, "a2"), common))
	f.commit(t, b.ID, manifest(common, f.chunk(t, "b1")))
	f.commit(t, b.ID, manifest(common, f.chunk(t, "b2")))
	f.commit(t, elsewhere.ID, manifest(common))
	require.Equal(t, int64(5), f.refCount(t, common.Hash))

	require.NoError(t, f.ns.Delete(context.Background(), proj.ID))

	assert.Equal(t, int64(1), f.refCount(t, common.Hash))
	assert.Equal(t, int64(0), f.refCount(t, metadata.HashBytes([]byte("a1"))))

	n, err := f.ns.GetNode(context.Background(), elsewhere.ID)
	require.NoError(t, err)
	_, err = f.graph.GetVersion(context.Background(), n.CurrentVersionID)
	assert.NoError(t, err)
}

func TestCheckout(t *testing.T) {
	f := newFixture(t)
	file := f.file(t, "", "plan.dwg")
	v1 := f.commit(t, file.ID, manifest(f.chunk(t, "v1")))
	v2 := f.commit(t, file.ID, manifest(f.chunk(t, "v2")))

	node, err := f.graph.Checkout(context.Background(), file.ID, v1.ID)
	require.NoError(t, err)
	assert.Equal(t, v1.ID, node.CurrentVersionID)

	// A commit after checkout branches from v1
	v3 := f.commit(t, file.ID, manifest(f.chunk(t, "v3")))
	assert.Equal(t, v1.ID, v3.ParentID)
	assert.Equal(t, uint64(3), v3.Sequence)

	t.Run("ForeignVersion", func(t *testing.T) {
		other := f.file(t, "", "other.dwg")
		ov := f.commit(t, other.ID, manifest(f.chunk(t, "o")))
		_, err := f.graph.Checkout(context.Background(), file.ID, ov.ID)
		assert.True(t, metadata.IsNotFound(err))
	})

	t.Run("MissingVersion", func(t *testing.T) {
		_, err := f.graph.Checkout(context.Background(), file.ID, "ghost")
		assert.True(t, metadata.IsNotFound(err))
	})

	t.Run("LockedCurrent", func(t *testing.T) {
		_, err := f.graph.Lock(context.Background(), v3.ID)
		require.NoError(t, err)

		_, err = f.graph.Checkout(context.Background(), file.ID, v2.ID)
		assert.True(t, metadata.IsForbidden(err))

		// Checking out the locked current version itself is a no-op
		node, err := f.graph.Checkout(context.Background(), file.ID, v3.ID)
		require.NoError(t, err)
		assert.Equal(t, v3.ID, node.CurrentVersionID)
	})
}

func TestListVersionsUnknownFile(t *testing.T) {
	f := newFixture(t)

	for v, err := range f.graph.ListVersions(context.Background(), "ghost") {
		assert.Nil(t, v)
		assert.True(t, metadata.IsNotFound(err))
	}
}

func TestGetByFingerprintAndOpenContent(t *testing.T) {
	f := newFixture(t)
	file := f.file(t, "", "notes.txt")
	v := f.commit(t, file.ID, manifest(f.chunk(t, "hello "), f.chunk(t, "world")))

	byFP, err := f.graph.GetByFingerprint(context.Background(), v.Fingerprint)
	require.NoError(t, err)
	assert.Equal(t, v.ID, byFP.ID)

	_, err = f.graph.GetByFingerprint(context.Background(), "00")
	assert.True(t, metadata.IsNotFound(err))

	_, r, err := f.graph.OpenContent(context.Background(), v.ID)
	require.NoError(t, err)
	defer func() { _ = r.Close() }()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	assert.Equal(t, "hello world", string(data))
}
