package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// SyncPath flushes path to stable storage. Symlinks cannot be opened without
// following them, so for a symlink (and for anything that is neither a regular
// file nor a directory) the containing directory is synced instead.
func SyncPath(path string) error {
	info, err := os.Lstat(path)
	if err != nil {
		return err
	}
	if !info.Mode().IsRegular() && !info.IsDir() {
		return SyncDir(filepath.Dir(path))
	}
	err = fsync(path)
	if errors.Is(err, fs.ErrPermission) {
		// Unreadable object: its directory entry is the most we can pin down.
		return SyncDir(filepath.Dir(path))
	}
	return err
}

// SyncDir flushes a directory's entries to stable storage.
func SyncDir(path string) error {
	return fsync(path)
}

func fsync(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("fsync %s: %w", path, err)
	}
	return f.Close()
}
