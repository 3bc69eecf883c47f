package mirror

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFileDigest(t *testing.T) {
	tmp := t.TempDir()
	path := filepath.Join(tmp, "f.txt")
	require.NoError(t, os.WriteFile(path, []byte("hello"), 0o644))

	digest, err := FileDigest(path)
	require.NoError(t, err)
	// md5("hello")
	assert.Equal(t, "5d41402abc4b2a76b9719d911017c592", digest)

	_, err = FileDigest(filepath.Join(tmp, "missing"))
	assert.Error(t, err)
}

func TestFilesEqual(t *testing.T) {
	tmp := t.TempDir()
	a := filepath.Join(tmp, "a")
	b := filepath.Join(tmp, "b")
	c := filepath.Join(tmp, "c")

	require.NoError(t, os.WriteFile(a, []byte("same content"), 0o644))
	require.NoError(t, os.WriteFile(b, []byte("same content"), 0o644))
	require.NoError(t, os.WriteFile(c, []byte("same length!"), 0o644))

	assert.True(t, FilesEqual(a, b))
	assert.False(t, FilesEqual(a, c))
}

func TestFilesEqual_ReadFailureMeansDifferent(t *testing.T) {
	tmp := t.TempDir()
	a := filepath.Join(tmp, "a")
	require.NoError(t, os.WriteFile(a, []byte("x"), 0o644))

	// fail-open: an unreadable side triggers an overwrite, never a silent skip
	assert.False(t, FilesEqual(a, filepath.Join(tmp, "missing")))
	assert.False(t, FilesEqual(filepath.Join(tmp, "missing"), a))
}

func TestCopyFile_CreatesParentsAndReplaces(t *testing.T) {
	tmp := t.TempDir()
	src := filepath.Join(tmp, "src.txt")
	dst := filepath.Join(tmp, "deep", "nested", "dst.txt")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	n, err := copyFile(src, dst)
	require.NoError(t, err)
	assert.EqualValues(t, 7, n)

	data, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))

	// full replace of a longer existing destination
	require.NoError(t, os.WriteFile(dst, []byte("much longer stale content"), 0o644))
	_, err = copyFile(src, dst)
	require.NoError(t, err)

	data, err = os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, "payload", string(data))
}
