package engine

import (
	"bytes"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fixture struct {
	srcDir   string
	dstDir   string
	storeDir string
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	root := t.TempDir()
	f := fixture{
		srcDir:   filepath.Join(root, "src"),
		dstDir:   filepath.Join(root, "dst"),
		storeDir: filepath.Join(root, "store"),
	}
	require.NoError(t, os.Mkdir(f.srcDir, 0o755))
	require.NoError(t, os.Mkdir(f.dstDir, 0o755))
	return f
}

func (f fixture) config(sources ...string) Config {
	return Config{
		Sources:      sources,
		DstDir:       f.dstDir,
		StoreDir:     f.storeDir,
		BackupSuffix: "~",
		Logger:       discardLogger(),
	}
}

func (f fixture) src(parts ...string) string {
	return filepath.Join(append([]string{f.srcDir}, parts...)...)
}

func (f fixture) dst(parts ...string) string {
	return filepath.Join(append([]string{f.dstDir}, parts...)...)
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path)
	require.NoError(t, err)
	return string(b)
}

// createTestTree populates root with:
//
//	root.txt          (17 bytes)
//	big.bin           (320KB)
//	empty             (0 bytes)
//	dup.txt           (same content as root.txt)
//	sub/mid.txt       (19 bytes, mode 0600)
//	sub/deep/leaf.txt (17 bytes)
//	sub/empty-dir/
//	link.txt          -> root.txt
//	sub/up            -> ../elsewhere (dangling)
func createTestTree(t *testing.T, root string) {
	t.Helper()

	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "deep"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub", "empty-dir"), 0o700))

	writeFile(t, filepath.Join(root, "root.txt"), "root file content")
	writeFile(t, filepath.Join(root, "dup.txt"), "root file content")
	writeFile(t, filepath.Join(root, "empty"), "")
	require.NoError(t, os.WriteFile(
		filepath.Join(root, "big.bin"),
		bytes.Repeat([]byte("ABCDEFGHIJKLMNOP"), 20000),
		0o644,
	))
	writeFile(t, filepath.Join(root, "sub", "mid.txt"), "middle file content")
	require.NoError(t, os.Chmod(filepath.Join(root, "sub", "mid.txt"), 0o600))
	writeFile(t, filepath.Join(root, "sub", "deep", "leaf.txt"), "leaf file content")

	require.NoError(t, os.Symlink("root.txt", filepath.Join(root, "link.txt")))
	require.NoError(t, os.Symlink("../elsewhere", filepath.Join(root, "sub", "up")))

	old := time.Date(2019, 5, 6, 7, 8, 9, 123456789, time.UTC)
	require.NoError(t, os.Chtimes(filepath.Join(root, "sub", "deep", "leaf.txt"), old, old))
	require.NoError(t, os.Chtimes(filepath.Join(root, "sub", "deep"), old, old))
}

// assertMirrors checks that dstRoot is a kind-for-kind copy of srcRoot with
// equal content, link text, permissions and modification times.
func assertMirrors(t *testing.T, srcRoot, dstRoot string) {
	t.Helper()
	err := filepath.WalkDir(srcRoot, func(path string, d fs.DirEntry, err error) error {
		require.NoError(t, err)
		rel, err := filepath.Rel(srcRoot, path)
		require.NoError(t, err)
		dstPath := filepath.Join(dstRoot, rel)

		srcInfo, err := os.Lstat(path)
		require.NoError(t, err)
		dstInfo, err := os.Lstat(dstPath)
		require.NoError(t, err, "missing %s", rel)

		assert.Equal(t, srcInfo.Mode().Type(), dstInfo.Mode().Type(), "kind of %s", rel)
		assert.True(t, srcInfo.ModTime().Equal(dstInfo.ModTime()), "mtime of %s: %v != %v",
			rel, srcInfo.ModTime(), dstInfo.ModTime())

		switch {
		case srcInfo.Mode()&fs.ModeSymlink != 0:
			srcTarget, err := os.Readlink(path)
			require.NoError(t, err)
			dstTarget, err := os.Readlink(dstPath)
			require.NoError(t, err)
			assert.Equal(t, srcTarget, dstTarget, "target of %s", rel)
		case srcInfo.Mode().IsRegular():
			assert.Equal(t, srcInfo.Mode().Perm(), dstInfo.Mode().Perm(), "mode of %s", rel)
			assert.Equal(t, readFile(t, path), readFile(t, dstPath), "content of %s", rel)
		case srcInfo.IsDir():
			assert.Equal(t, srcInfo.Mode().Perm(), dstInfo.Mode().Perm(), "mode of %s", rel)
		}
		return nil
	})
	require.NoError(t, err)
}

// storeNames lists the store directory.
func storeNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}
