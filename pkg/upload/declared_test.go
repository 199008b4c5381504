package upload

import (
	"context"
	"strconv"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

func TestDeclaredSets(t *testing.T) {
	session := &metadata.Session{ID: "s1", Manifest: []string{hashOf("a"), hashOf("b"), hashOf("a")}}

	t.Run("Membership", func(t *testing.T) {
		d := newDeclaredSets()
		assert.True(t, d.contains(session, hashOf("a")))
		assert.True(t, d.contains(session, hashOf("b")))
		assert.False(t, d.contains(session, hashOf("c")))
		assert.Equal(t, 1, d.len())

		d.forget(session.ID)
		assert.Zero(t, d.len())
	})

	t.Run("Bounded", func(t *testing.T) {
		d := newDeclaredSets()
		for i := range maxDeclaredSets + 10 {
			s := &metadata.Session{ID: strconv.Itoa(i), Manifest: session.Manifest}
			assert.True(t, d.contains(s, hashOf("b")))
		}
		assert.LessOrEqual(t, d.len(), maxDeclaredSets)
	})
}

func TestUploadChunkLargeManifest(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	const n = 50_000
	chunks := make([]string, n)
	for i := range chunks {
		chunks[i] = "chunk-" + strconv.Itoa(i)
	}
	s := f.init(t, "/large.bin", chunks...)

	for _, c := range chunks[n-50:] {
		require.NoError(t, f.uploads.UploadChunk(ctx, s.ID, hashOf(c), []byte(c)))
	}
	err := f.uploads.UploadChunk(ctx, s.ID, hashOf("undeclared"), []byte("undeclared"))
	assert.True(t, metadata.IsValidation(err))
	assert.Equal(t, 1, f.uploads.declared.len())

	require.NoError(t, f.uploads.Cancel(ctx, s.ID))
	assert.Zero(t, f.uploads.declared.len(), "cancel drops the cached manifest")
}
