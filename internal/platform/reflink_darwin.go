//go:build darwin

package platform

import (
	"fmt"
	"os"

	"golang.org/x/sys/unix"
)

// ReflinkFile clones src into a new file at dst with clonefile(2). The clone
// inherits the source mode; perm is applied afterwards.
func ReflinkFile(src, dst string, perm os.FileMode) error {
	if err := unix.Clonefile(src, dst, unix.CLONE_NOFOLLOW); err != nil {
		return fmt.Errorf("clonefile %s -> %s: %w", src, dst, err)
	}
	if err := os.Chmod(dst, perm); err != nil {
		_ = os.Remove(dst)
		return err
	}
	return nil
}
