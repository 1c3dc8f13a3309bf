package engine

import (
	"io/fs"
	"os"

	"github.com/bamsammich/cpdd/internal/platform"
)

const permBits = fs.ModePerm | fs.ModeSetuid | fs.ModeSetgid | fs.ModeSticky

// replicate copies permissions (not for symlinks) and access/modification
// times from src to dst, then syncs dst. Both must be the same kind.
func (c *copier) replicate(src, dst string) error {
	srcInfo, err := os.Lstat(src)
	if err != nil {
		return err
	}
	dstInfo, err := os.Lstat(dst)
	if err != nil {
		return err
	}
	kind := fileTypeOf(srcInfo.Mode())
	if fileTypeOf(dstInfo.Mode()) != kind {
		return &FileTypeError{Path: dst, Mode: dstInfo.Mode(), Want: kind}
	}

	c.logger.Debug("copying metadata", "path", src, "dst", dst)
	if kind != Symlink {
		if err := os.Chmod(dst, srcInfo.Mode()&permBits); err != nil {
			return err
		}
	}
	if err := platform.SetTimes(dst, platform.Atime(srcInfo), srcInfo.ModTime()); err != nil {
		return err
	}
	return platform.SyncPath(dst)
}
