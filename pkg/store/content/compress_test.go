package content_test

import (
	"bytes"
	"context"
	"crypto/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marmos91/dittovault/pkg/store/content"
	"github.com/marmos91/dittovault/pkg/store/content/memory"
	storetesting "github.com/marmos91/dittovault/pkg/store/content/testing"
)

func newMemory(t *testing.T) *memory.MemoryContentStore {
	t.Helper()
	store, err := memory.NewMemoryContentStore(context.Background())
	require.NoError(t, err)
	return store
}

func TestCompressedStoreSuite(t *testing.T) {
	for _, algorithm := range []content.Compression{
		content.CompressionNone,
		content.CompressionLZ4,
		content.CompressionZstd,
	} {
		t.Run(algorithm.String(), func(t *testing.T) {
			suite := &storetesting.StoreTestSuite{
				NewStore: func(t *testing.T) content.ContentStore {
					return content.NewCompressedStore(newMemory(t), algorithm)
				},
			}
			suite.Run(t)
		})
	}
}

func TestCompressedStoreShrinksText(t *testing.T) {
	inner := newMemory(t)
	store := content.NewCompressedStore(inner, content.CompressionZstd)
	data := bytes.Repeat([]byte("#42=IFCCARTESIANPOINT((0.,0.,0.));\n"), 1000)

	require.NoError(t, store.Put(context.Background(), "k", data))

	raw, err := inner.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Less(t, len(raw), len(data)/4)
	assert.Equal(t, byte(content.CompressionZstd), raw[0])
}

func TestCompressedStoreIncompressibleFallsBackToNone(t *testing.T) {
	inner := newMemory(t)
	store := content.NewCompressedStore(inner, content.CompressionLZ4)
	data := make([]byte, 4096)
	_, _ = rand.Read(data)

	require.NoError(t, store.Put(context.Background(), "k", data))

	raw, err := inner.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, byte(content.CompressionNone), raw[0])

	got, err := store.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCompressedStoreReadsOtherAlgorithms(t *testing.T) {
	inner := newMemory(t)
	data := bytes.Repeat([]byte("abc"), 500)

	require.NoError(t, content.NewCompressedStore(inner, content.CompressionLZ4).Put(context.Background(), "k", data))

	got, err := content.NewCompressedStore(inner, content.CompressionZstd).Get(context.Background(), "k")
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCompressedStoreCorruptFrame(t *testing.T) {
	inner := newMemory(t)
	store := content.NewCompressedStore(inner, content.CompressionNone)

	tests := map[string][]byte{
		"TooShort":   {0},
		"UnknownTag": {9, 1, 'x'},
		"BadLength":  {0, 5, 'x'},
		"BadLZ4":     {1, 100, 0xff, 0xff},
	}
	for name, raw := range tests {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, inner.Put(context.Background(), name, raw))
			_, err := store.Get(context.Background(), name)
			assert.ErrorIs(t, err, content.ErrCorrupted)
		})
	}
}

func TestParseCompression(t *testing.T) {
	for name, want := range map[string]content.Compression{
		"":     content.CompressionNone,
		"none": content.CompressionNone,
		"lz4":  content.CompressionLZ4,
		"zstd": content.CompressionZstd,
	} {
		got, err := content.ParseCompression(name)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	_, err := content.ParseCompression("brotli")
	assert.Error(t, err)
}
