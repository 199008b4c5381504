package namespace

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovault/pkg/store/metadata"
)

func TestEnsureFileCreatesIntermediateDirectories(t *testing.T) {
	f := newFixture(t)

	var file *metadata.Node
	require.NoError(t, f.meta.Update(context.Background(), func(tx metadata.Tx) error {
		var created bool
		var err error
		file, created, err = EnsureFile(tx, repo, "/site/level-1/model.ifc")
		assert.True(t, created)
		return err
	}))
	assert.Equal(t, "/site/level-1/model.ifc", file.Path)
	assert.Equal(t, metadata.KindFile, file.Kind)

	dir, err := f.mgr.ResolvePath(context.Background(), repo, "/site/level-1")
	require.NoError(t, err)
	assert.True(t, dir.IsDir())
	assert.Equal(t, dir.ID, file.ParentID)

	// Second call finds the same node
	require.NoError(t, f.meta.Update(context.Background(), func(tx metadata.Tx) error {
		again, created, err := EnsureFile(tx, repo, "site/level-1/model.ifc")
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, file.ID, again.ID)
		return nil
	}))
}

func TestEnsureFileRejectsDirectoryAndFileComponents(t *testing.T) {
	f := newFixture(t)
	dir := f.mkdir(t, "", "dir")
	f.touch(t, dir.ID, "file.txt")

	err := f.meta.Update(context.Background(), func(tx metadata.Tx) error {
		_, _, err := EnsureFile(tx, repo, "/dir")
		return err
	})
	assert.True(t, metadata.IsValidation(err))

	err = f.meta.Update(context.Background(), func(tx metadata.Tx) error {
		_, _, err := EnsureFile(tx, repo, "/dir/file.txt/child")
		return err
	})
	assert.True(t, metadata.IsValidation(err))
}

func TestLoadFileAndSetCurrentVersion(t *testing.T) {
	f := newFixture(t)
	dir := f.mkdir(t, "", "dir")
	file := f.touch(t, dir.ID, "a.txt")

	require.NoError(t, f.meta.Update(context.Background(), func(tx metadata.Tx) error {
		n, err := LoadFile(tx, file.ID)
		require.NoError(t, err)
		return SetCurrentVersion(tx, n, "v-1")
	}))

	n, err := f.mgr.GetNode(context.Background(), file.ID)
	require.NoError(t, err)
	assert.Equal(t, "v-1", n.CurrentVersionID)

	err = f.meta.View(context.Background(), func(tx metadata.Tx) error {
		_, err := LoadFile(tx, dir.ID)
		return err
	})
	assert.True(t, metadata.IsValidation(err))
}
