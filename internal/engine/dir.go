package engine

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/bamsammich/cpdd/internal/event"
	"github.com/bamsammich/cpdd/internal/platform"
)

// copyDir makes dst a directory. An existing directory is merged into; any
// other existing object is removed or backed up first.
func (c *copier) copyDir(src, dst string) error {
	info, err := os.Lstat(dst)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.logger.Debug("destination directory not found, creating", "dst", dst)
	case err != nil:
		return err
	case c.cfg.Overwrite && !info.IsDir():
		if err := c.remove(src, dst, info); err != nil {
			return err
		}
	case info.IsDir():
		c.logger.Info("destination directory exists, merging", "dst", dst)
		c.stats.AddDirsMerged(1)
		c.emit(event.Event{Type: event.DirMerged, Path: src, Dst: dst})
		return nil
	default:
		if err := c.backup(src, dst); err != nil {
			return err
		}
	}

	if err := os.Mkdir(dst, 0o755); err != nil {
		return err
	}
	if err := platform.SyncDir(dst); err != nil {
		return err
	}
	if err := platform.SyncDir(filepath.Dir(dst)); err != nil {
		return err
	}
	c.stats.AddDirsCreated(1)
	c.emit(event.Event{Type: event.DirCreated, Path: src, Dst: dst})
	return nil
}
