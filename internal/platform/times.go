package platform

import (
	"fmt"
	"os"
	"time"

	"golang.org/x/sys/unix"
)

// SetTimes sets atime and mtime on path without following a final symlink.
func SetTimes(path string, atime, mtime time.Time) error {
	times := []unix.Timespec{
		unix.NsecToTimespec(atime.UnixNano()),
		unix.NsecToTimespec(mtime.UnixNano()),
	}
	if err := unix.UtimesNanoAt(unix.AT_FDCWD, path, times, unix.AT_SYMLINK_NOFOLLOW); err != nil {
		return fmt.Errorf("utimensat %s: %w", path, err)
	}
	return nil
}

// Atime returns the access time recorded in info, or the modification time
// when the platform stat is unavailable.
func Atime(info os.FileInfo) time.Time {
	if t, ok := atimeFromSys(info.Sys()); ok {
		return t
	}
	return info.ModTime()
}
