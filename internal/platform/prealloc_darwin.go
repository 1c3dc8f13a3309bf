//go:build darwin

package platform

import (
	"os"

	"golang.org/x/sys/unix"
)

// preallocate asks APFS/HFS+ for size contiguous bytes past the current end
// of fd. The file length is unchanged; failure is ignored.
func preallocate(fd *os.File, size int64) {
	if size <= 0 {
		return
	}
	fst := unix.Fstore_t{
		Flags:   unix.F_ALLOCATECONTIG,
		Posmode: unix.F_PEOFPOSMODE,
		Length:  size,
	}
	if err := unix.FcntlFstore(fd.Fd(), unix.F_PREALLOCATE, &fst); err == nil {
		return
	}
	fst.Flags = unix.F_ALLOCATEALL
	_ = unix.FcntlFstore(fd.Fd(), unix.F_PREALLOCATE, &fst)
}
