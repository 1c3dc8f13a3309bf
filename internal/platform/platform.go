// Package platform wraps the filesystem primitives the copy engine is built
// on: copy-on-write clones, full-copy fallbacks, durability syncs and
// timestamp replication.
package platform

import (
	"errors"
	"os"

	"golang.org/x/sys/unix"
)

// CopyMethod identifies which syscall/strategy produced a file's content.
type CopyMethod int

const (
	ReadWrite     CopyMethod = iota
	CopyFileRange            // Linux copy_file_range(2)
	Sendfile                 // Linux sendfile(2)
	Reflink                  // FICLONE ioctl or macOS clonefile(2)
)

func (m CopyMethod) String() string {
	switch m {
	case ReadWrite:
		return "read_write"
	case CopyFileRange:
		return "copy_file_range"
	case Sendfile:
		return "sendfile"
	case Reflink:
		return "reflink"
	default:
		return "unknown"
	}
}

// CopyResult reports the outcome of a copy operation.
type CopyResult struct {
	BytesWritten int64
	Method       CopyMethod
}

// CopyFileParams describes a whole-file copy into an open destination.
type CopyFileParams struct {
	DstFd   *os.File
	SrcPath string
	SrcSize int64
}

// ErrReflinkUnsupported is returned by Reflink on platforms without a clone
// primitive.
var ErrReflinkUnsupported = errors.New("reflink not supported on this platform")

// IsReflinkUnsupported reports whether a Reflink error means "this
// filesystem pair cannot share extents" and a full copy should be used.
func IsReflinkUnsupported(err error) bool {
	if errors.Is(err, ErrReflinkUnsupported) {
		return true
	}
	for _, errno := range []unix.Errno{
		unix.EOPNOTSUPP, unix.ENOTSUP, unix.EXDEV, unix.EINVAL, unix.ENOTTY, unix.ENOSYS,
	} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}

// isFallbackErr returns true if err should trigger a fallback to the next
// copy strategy.
func isFallbackErr(err error) bool {
	for _, errno := range []unix.Errno{unix.ENOSYS, unix.EXDEV, unix.EINVAL, unix.ENOTSUP, unix.EOPNOTSUPP} {
		if errors.Is(err, errno) {
			return true
		}
	}
	return false
}
