package platform

import (
	"crypto/rand"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sys/unix"
)

func copyInto(t *testing.T, fn func(CopyFileParams) (CopyResult, error), src, dst string, size int64) CopyResult {
	t.Helper()
	dstFd, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	require.NoError(t, err)
	defer dstFd.Close()

	result, err := fn(CopyFileParams{
		SrcPath: src,
		DstFd:   dstFd,
		SrcSize: size,
	})
	require.NoError(t, err)
	return result
}

func TestCopyFileBasic(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	data := []byte("hello, cpdd!")
	require.NoError(t, os.WriteFile(src, data, 0o644))

	result := copyInto(t, CopyFile, src, dst, int64(len(data)))
	assert.Equal(t, int64(len(data)), result.BytesWritten)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCopyFileLarge(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	// 4 MiB, larger than the 1 MiB buffer.
	size := 4 * 1024 * 1024
	data := make([]byte, size)
	_, err := rand.Read(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(src, data, 0o644))

	result := copyInto(t, CopyFile, src, dst, int64(size))
	assert.Equal(t, int64(size), result.BytesWritten)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCopyFileEmpty(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	require.NoError(t, os.WriteFile(src, nil, 0o644))

	result := copyInto(t, CopyFile, src, dst, 0)
	assert.Equal(t, int64(0), result.BytesWritten)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, int64(0), info.Size())
}

func TestCopyReadWrite(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")

	data := make([]byte, bufferSize+17)
	_, err := rand.Read(data)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(src, data, 0o644))

	result := copyInto(t, CopyReadWrite, src, dst, int64(len(data)))
	assert.Equal(t, ReadWrite, result.Method)
	assert.Equal(t, int64(len(data)), result.BytesWritten)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestCopyMissingSource(t *testing.T) {
	dir := t.TempDir()
	dstFd, err := os.Create(filepath.Join(dir, "dst"))
	require.NoError(t, err)
	defer dstFd.Close()

	_, err = CopyFile(CopyFileParams{SrcPath: filepath.Join(dir, "nope"), DstFd: dstFd, SrcSize: 1})
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestCopyMethodString(t *testing.T) {
	assert.Equal(t, "read_write", ReadWrite.String())
	assert.Equal(t, "copy_file_range", CopyFileRange.String())
	assert.Equal(t, "sendfile", Sendfile.String())
	assert.Equal(t, "reflink", Reflink.String())
	assert.Equal(t, "unknown", CopyMethod(99).String())
}

func TestReflinkFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	data := []byte("shared extents")
	require.NoError(t, os.WriteFile(src, data, 0o644))

	err := ReflinkFile(src, dst, 0o444)
	if IsReflinkUnsupported(err) {
		t.Skipf("filesystem cannot clone: %v", err)
	}
	require.NoError(t, err)

	got, err := os.ReadFile(dst)
	require.NoError(t, err)
	assert.Equal(t, data, got)
}

func TestReflinkFileUnsupportedLeavesNoFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("x"), 0o644))

	err := ReflinkFile(src, dst, 0o644)
	if err == nil {
		t.Skip("filesystem supports cloning")
	}
	_, statErr := os.Lstat(dst)
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestIsReflinkUnsupported(t *testing.T) {
	tests := []struct {
		err  error
		want bool
	}{
		{ErrReflinkUnsupported, true},
		{&os.PathError{Op: "ficlone", Path: "x", Err: unix.EOPNOTSUPP}, true},
		{unix.EXDEV, true},
		{unix.EINVAL, true},
		{unix.ENOTTY, true},
		{unix.ENOSYS, true},
		{unix.EIO, false},
		{unix.ENOSPC, false},
		{errors.New("other"), false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, IsReflinkUnsupported(tt.err), "%v", tt.err)
	}
}

func TestCopyFileShrunkSource(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "src")
	dst := filepath.Join(dir, "dst")
	require.NoError(t, os.WriteFile(src, []byte("short"), 0o644))

	// The size hint is stale; preallocation must not pad the copy.
	result := copyInto(t, CopyFile, src, dst, 1<<20)
	assert.Equal(t, int64(5), result.BytesWritten)

	info, err := os.Stat(dst)
	require.NoError(t, err)
	assert.Equal(t, int64(5), info.Size())
}
