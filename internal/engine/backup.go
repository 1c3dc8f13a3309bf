package engine

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bamsammich/cpdd/internal/event"
	"github.com/bamsammich/cpdd/internal/platform"
)

// MaxBackupDepth caps how many suffixes vacate will stack onto a name.
const MaxBackupDepth = 64

// vacate moves whatever is at path out of the way and returns where it went.
// Existing backups shift one suffix further along the chain
// (path+s becomes path+s+s, and so on) so that nothing is overwritten or
// deleted. suffix must not be empty.
func vacate(path, suffix string) (string, error) {
	if suffix == "" {
		panic("engine: vacate with empty backup suffix")
	}

	// chain[i] is path with i suffixes; the last element is free.
	chain := []string{path}
	for depth := 1; ; depth++ {
		candidate := path + strings.Repeat(suffix, depth)
		_, err := os.Lstat(candidate)
		if errors.Is(err, fs.ErrNotExist) {
			chain = append(chain, candidate)
			break
		}
		if err != nil {
			return "", err
		}
		if depth == MaxBackupDepth {
			return "", fmt.Errorf("%w: %s (%d backups of %q)", ErrBackupChainTooLong, path, depth, suffix)
		}
		chain = append(chain, candidate)
	}

	for i := len(chain) - 1; i > 0; i-- {
		if err := os.Rename(chain[i-1], chain[i]); err != nil {
			return "", err
		}
		if err := platform.SyncPath(chain[i]); err != nil {
			return "", err
		}
	}
	if err := platform.SyncDir(filepath.Dir(path)); err != nil {
		return "", err
	}
	return chain[1], nil
}

// remove deletes the non-directory at dst to make room for src.
func (c *copier) remove(src, dst string, info fs.FileInfo) error {
	c.logger.Info("removing destination path", "dst", dst, "kind", fileTypeOf(info.Mode()).String())
	if err := os.Remove(dst); err != nil {
		return err
	}
	if err := platform.SyncDir(filepath.Dir(dst)); err != nil {
		return err
	}
	c.stats.AddRemoved(1)
	c.emit(event.Event{Type: event.Removed, Path: src, Dst: dst})
	return nil
}

// backup moves dst into its backup chain to make room for src.
func (c *copier) backup(src, dst string) error {
	backupPath, err := vacate(dst, c.cfg.BackupSuffix)
	if err != nil {
		return err
	}
	c.logger.Info("renamed destination path", "dst", dst, "backup", backupPath)
	c.stats.AddBackups(1)
	c.emit(event.Event{Type: event.BackedUp, Path: src, Dst: backupPath})
	return nil
}
