package engine

import "io/fs"

// FileType identifies the kind of filesystem entry.
type FileType int

const (
	Unknown FileType = iota
	Regular
	Dir
	Symlink
	Other // device, FIFO, socket
)

func (t FileType) String() string {
	switch t {
	case Regular:
		return "file"
	case Dir:
		return "directory"
	case Symlink:
		return "symlink"
	case Other:
		return "other"
	default:
		return "unknown"
	}
}

// fileTypeOf classifies a non-following stat result.
func fileTypeOf(mode fs.FileMode) FileType {
	switch {
	case mode.IsRegular():
		return Regular
	case mode.IsDir():
		return Dir
	case mode&fs.ModeSymlink != 0:
		return Symlink
	default:
		return Other
	}
}

// task is one unit of the depth-first walk. A task with post set replicates
// directory metadata once all of the directory's children are done.
type task struct {
	src  string
	dst  string
	post bool
}
