package platform

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sys/unix"
)

// TempSuffix marks in-progress files written next to their final name.
const TempSuffix = ".cpdd-tmp"

// TempPath returns a unique hidden sibling of final for staging its content.
func TempPath(final string) string {
	dir, base := filepath.Split(final)
	return filepath.Join(dir, fmt.Sprintf(".%s.%s%s", base, uuid.New().String()[:8], TempSuffix))
}

// IsTempName reports whether a base name was produced by TempPath.
func IsTempName(name string) bool {
	return strings.HasPrefix(name, ".") && strings.HasSuffix(name, TempSuffix)
}

// CommitNoReplace publishes tmp under final without ever replacing an
// existing final. tmp is gone afterwards unless the commit failed for a
// reason other than final already existing. An existing final is reported
// as an error matching fs.ErrExist.
func CommitNoReplace(tmp, final string) error {
	err := os.Link(tmp, final)
	if err != nil && linkUnsupported(err) {
		// Filesystems without hard links: check for the target, then
		// rename. This is racy against other writers, which the store
		// lock excludes.
		if _, statErr := os.Lstat(final); statErr == nil {
			err = &os.LinkError{Op: "link", Old: tmp, New: final, Err: fs.ErrExist}
		} else {
			err = os.Rename(tmp, final)
			if err == nil {
				DeregisterTemp(tmp)
				return nil
			}
		}
	}
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			removeTemp(tmp)
		}
		return err
	}
	removeTemp(tmp)
	return nil
}

func linkUnsupported(err error) bool {
	return errors.Is(err, unix.EPERM) || errors.Is(err, unix.ENOTSUP) ||
		errors.Is(err, unix.EOPNOTSUPP) || errors.Is(err, unix.ENOSYS)
}

func removeTemp(path string) {
	_ = os.Remove(path)
	DeregisterTemp(path)
}

// tempRegistry tracks in-progress temporary files so they can be removed on
// exit or interruption.
var globalTempRegistry = &tempRegistry{}

type tempRegistry struct {
	mu    sync.Mutex
	paths map[string]struct{}
}

// RegisterTemp adds a temporary file path to the global registry.
func RegisterTemp(path string) {
	globalTempRegistry.mu.Lock()
	defer globalTempRegistry.mu.Unlock()
	if globalTempRegistry.paths == nil {
		globalTempRegistry.paths = make(map[string]struct{})
	}
	globalTempRegistry.paths[path] = struct{}{}
}

// DeregisterTemp removes a temporary file path from the global registry.
func DeregisterTemp(path string) {
	globalTempRegistry.mu.Lock()
	defer globalTempRegistry.mu.Unlock()
	delete(globalTempRegistry.paths, path)
}

// CleanupTempFiles removes all registered temporary files and returns how
// many were registered.
func CleanupTempFiles() int {
	globalTempRegistry.mu.Lock()
	paths := make([]string, 0, len(globalTempRegistry.paths))
	for p := range globalTempRegistry.paths {
		paths = append(paths, p)
	}
	globalTempRegistry.paths = nil
	globalTempRegistry.mu.Unlock()

	for _, p := range paths {
		_ = os.Remove(p)
	}
	return len(paths)
}

// RemoveStaleTemps deletes leftover TempPath files directly inside dir and
// returns their names.
func RemoveStaleTemps(dir string) ([]string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var removed []string
	for _, e := range entries {
		if !IsTempName(e.Name()) {
			continue
		}
		if err := os.Remove(filepath.Join(dir, e.Name())); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return removed, err
		}
		removed = append(removed, e.Name())
	}
	return removed, nil
}
