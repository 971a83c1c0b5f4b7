package cache

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachePaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	c := NewCache(root)
	assert.Equal(t, root, c.GetCacheDir())
	assert.Equal(t, filepath.Join(root, "index.db"), c.GetDatabasePath())
	assert.Equal(t, filepath.Join("out", "My_Mod"), c.GetExtractDir("out", "/mods/My Mod.pak"))
	assert.Equal(t, ".lspak", filepath.Base(CacheManager().GetCacheDir()))
}

func TestCacheFiles(t *testing.T) {
	t.Parallel()

	c := NewCache(t.TempDir())
	dir := filepath.Join(c.GetCacheDir(), "a", "b")
	require.NoError(t, c.EnsureDir(dir))

	name := filepath.Join(dir, "f.bin")
	assert.False(t, c.FileExists(name))
	assert.Zero(t, c.GetFileSize(name))

	require.NoError(t, os.WriteFile(name, []byte("12345"), 0o644))
	assert.True(t, c.FileExists(name))
	assert.Equal(t, int64(5), c.GetFileSize(name))
}
