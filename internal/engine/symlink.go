package engine

import (
	"errors"
	"io/fs"
	"os"

	"github.com/bamsammich/cpdd/internal/event"
	"github.com/bamsammich/cpdd/internal/platform"
)

// copySymlink recreates src's link text at dst. The target is never
// resolved.
func (c *copier) copySymlink(src, dst string) error {
	target, err := os.Readlink(src)
	if err != nil {
		return err
	}

	dstInfo, err := os.Lstat(dst)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		c.logger.Debug("destination symlink not found, creating", "dst", dst)
	case err != nil:
		return err
	case c.cfg.Overwrite && !dstInfo.IsDir():
		if err := c.remove(src, dst, dstInfo); err != nil {
			return err
		}
	default:
		if dstInfo.Mode()&fs.ModeSymlink != 0 {
			dstTarget, err := os.Readlink(dst)
			if err != nil {
				return err
			}
			if dstTarget == target {
				c.logger.Info("destination symlink already exists, skipping", "dst", dst)
				c.stats.AddSymlinksUpToDate(1)
				c.emit(event.Event{Type: event.SymlinkUpToDate, Path: src, Dst: dst})
				return nil
			}
		}
		if err := c.backup(src, dst); err != nil {
			return err
		}
	}

	if err := os.Symlink(target, dst); err != nil {
		return err
	}
	if err := platform.SyncPath(dst); err != nil {
		return err
	}
	c.stats.AddSymlinksCreated(1)
	c.emit(event.Event{Type: event.SymlinkCreated, Path: src, Dst: dst})
	return nil
}
