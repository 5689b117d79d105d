package storage

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
	"testing"

	"github.com/l3montree-dev/trustgraph/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sha(s string) string {
	sum := sha256.Sum256([]byte(s))
	return hex.EncodeToString(sum[:])
}

func readAll(t *testing.T, store *FileSystem, key string) string {
	t.Helper()
	r, ok, err := store.Retrieve(context.Background(), key)
	require.NoError(t, err)
	require.True(t, ok)
	defer r.Close()
	data, err := io.ReadAll(r)
	require.NoError(t, err)
	return string(data)
}

func TestFileSystem(t *testing.T) {
	for _, compression := range []Compression{CompressionNone, CompressionXZ} {
		t.Run(map[Compression]string{CompressionNone: "plain", CompressionXZ: "xz"}[compression], func(t *testing.T) {
			ctx := context.Background()
			store, err := NewFileSystem(t.TempDir(), compression)
			require.NoError(t, err)

			content := `{"spdxVersion": "SPDX-2.3"}`
			key, err := store.Store(ctx, strings.NewReader(content))
			require.NoError(t, err)
			assert.Equal(t, sha(content), key)
			assert.Equal(t, content, readAll(t, store, key))

			again, err := store.Store(ctx, strings.NewReader(content))
			require.NoError(t, err)
			assert.Equal(t, key, again)

			require.NoError(t, store.Delete(ctx, key))
			_, ok, err := store.Retrieve(ctx, key)
			require.NoError(t, err)
			assert.False(t, ok)

			// deleting twice is fine
			require.NoError(t, store.Delete(ctx, key))
		})
	}
}

func TestFileSystemFindsBlobsOfOtherCompression(t *testing.T) {
	root := t.TempDir()
	ctx := context.Background()

	compressed, err := NewFileSystem(root, CompressionXZ)
	require.NoError(t, err)
	key, err := compressed.Store(ctx, strings.NewReader("document"))
	require.NoError(t, err)

	plain, err := NewFileSystem(root, CompressionNone)
	require.NoError(t, err)
	assert.Equal(t, "document", readAll(t, plain, key))

	entries, err := os.ReadDir(root + "/tmp")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestFileSystemRejectsInvalidKeys(t *testing.T) {
	store, err := NewFileSystem(t.TempDir(), CompressionNone)
	require.NoError(t, err)

	_, _, err = store.Retrieve(context.Background(), "../../etc/passwd")
	assert.Equal(t, shared.KindStorage, shared.KindOf(err))
}

func TestFileSystemStoreHonorsCancellation(t *testing.T) {
	store, err := NewFileSystem(t.TempDir(), CompressionNone)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = store.Store(ctx, strings.NewReader("document"))
	assert.True(t, shared.IsCanceled(err))
}

func TestParseCompression(t *testing.T) {
	c, err := ParseCompression("XZ")
	require.NoError(t, err)
	assert.Equal(t, CompressionXZ, c)

	_, err = ParseCompression("zstd")
	assert.Error(t, err)
}
