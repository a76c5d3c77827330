package fsutil

import (
	"io"
	"io/fs"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOSFileSystemRoundTrip(t *testing.T) {
	t.Parallel()

	osfs := OSFileSystem{}
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "file.txt")

	require.NoError(t, osfs.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, osfs.WriteFile(path, []byte("hello"), 0644))

	assert.True(t, osfs.Exists(path))
	assert.False(t, osfs.Exists(filepath.Join(dir, "missing")))

	data, err := osfs.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), data)

	info, err := osfs.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())

	f, err := osfs.Open(path)
	require.NoError(t, err)
	defer f.Close()
	read, err := io.ReadAll(f)
	require.NoError(t, err)
	assert.Equal(t, []byte("hello"), read)
}

func TestMemoryFileSystem(t *testing.T) {
	t.Parallel()

	t.Run("write then read", func(t *testing.T) {
		t.Parallel()
		m := NewMemoryFileSystem()
		require.NoError(t, m.WriteFile("a/b.txt", []byte("data"), 0644))

		data, err := m.ReadFile("a/b.txt")
		require.NoError(t, err)
		assert.Equal(t, []byte("data"), data)
		assert.True(t, m.Exists("a/b.txt"))
	})

	t.Run("missing file errors", func(t *testing.T) {
		t.Parallel()
		m := NewMemoryFileSystem()

		_, err := m.ReadFile("nope")
		assert.ErrorIs(t, err, fs.ErrNotExist)

		_, err = m.Stat("nope")
		assert.ErrorIs(t, err, fs.ErrNotExist)

		_, err = m.Open("nope")
		assert.ErrorIs(t, err, fs.ErrNotExist)
	})

	t.Run("open reads to EOF", func(t *testing.T) {
		t.Parallel()
		m := NewMemoryFileSystem()
		require.NoError(t, m.WriteFile("f", []byte("stream me"), 0644))

		f, err := m.Open("f")
		require.NoError(t, err)
		defer f.Close()

		data, err := io.ReadAll(f)
		require.NoError(t, err)
		assert.Equal(t, []byte("stream me"), data)
	})

	t.Run("mkdirall records parents", func(t *testing.T) {
		t.Parallel()
		m := NewMemoryFileSystem()
		require.NoError(t, m.MkdirAll("x/y/z", 0755))

		assert.True(t, m.Exists("x"))
		assert.True(t, m.Exists("x/y"))
		assert.True(t, m.Exists("x/y/z"))

		info, err := m.Stat("x/y")
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	})

	t.Run("write copies data", func(t *testing.T) {
		t.Parallel()
		m := NewMemoryFileSystem()
		buf := []byte("original")
		require.NoError(t, m.WriteFile("f", buf, 0644))
		buf[0] = 'X'

		data, err := m.ReadFile("f")
		require.NoError(t, err)
		assert.Equal(t, []byte("original"), data)
	})
}
