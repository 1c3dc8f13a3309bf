//go:build linux

package platform

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ReflinkFile clones src into a new file at dst with FICLONE. dst must not
// exist; on failure it is removed again.
func ReflinkFile(src, dst string, perm os.FileMode) error {
	srcFd, err := os.Open(src)
	if err != nil {
		return err
	}
	defer srcFd.Close()

	dstFd, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, perm)
	if err != nil {
		return err
	}

	//nolint:gosec // G115: fd values are small non-negative integers
	if err := unix.IoctlFileClone(int(dstFd.Fd()), int(srcFd.Fd())); err != nil {
		dstFd.Close()
		_ = os.Remove(dst)
		return fmt.Errorf("ficlone %s -> %s: %w", src, dst, err)
	}
	return dstFd.Close()
}
