package fsutil

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWriteIfChanged_PreservesModTime(t *testing.T) {
	path := filepath.Join(t.TempDir(), "a", "b", "index.html")

	changed, err := WriteIfChanged(path, []byte("hello"))
	require.NoError(t, err)
	assert.True(t, changed)

	past := time.Now().Add(-time.Hour).Truncate(time.Second)
	require.NoError(t, os.Chtimes(path, past, past))

	changed, err = WriteIfChanged(path, []byte("hello"))
	require.NoError(t, err)
	assert.False(t, changed)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.True(t, info.ModTime().Equal(past))

	changed, err = WriteIfChanged(path, []byte("hello, world"))
	require.NoError(t, err)
	assert.True(t, changed)
}

func TestWriteAtomic_ReplacesContent(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "state", "manifest.json")

	require.NoError(t, WriteAtomic(path, []byte("one")))
	require.NoError(t, WriteAtomic(path, []byte("two")))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "two", string(data))

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestCopyIfChanged(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src.txt")
	dst := filepath.Join(dir, "out", "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o600))

	changed, err := CopyIfChanged(src, dst)
	require.NoError(t, err)
	assert.True(t, changed)
	assert.True(t, Exists(dst))

	changed, err = CopyIfChanged(src, dst)
	require.NoError(t, err)
	assert.False(t, changed)

	_, err = CopyIfChanged(filepath.Join(dir, "missing"), dst)
	require.Error(t, err)
}

func TestRemoveEmptyParents(t *testing.T) {
	root := t.TempDir()
	deep := filepath.Join(root, "blog", "old-post")
	require.NoError(t, os.MkdirAll(deep, 0o750))
	require.NoError(t, os.WriteFile(filepath.Join(root, "blog", "keep.txt"), []byte("x"), 0o600))

	RemoveEmptyParents(deep, root)

	assert.NoDirExists(t, deep)
	assert.DirExists(t, filepath.Join(root, "blog"))
	assert.DirExists(t, root)
}
