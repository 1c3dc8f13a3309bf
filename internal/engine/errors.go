package engine

import (
	"errors"
	"fmt"
	"io/fs"
)

var (
	// ErrInvalidInput marks errors caused by the arguments or by the kind of
	// a filesystem object rather than by I/O.
	ErrInvalidInput = errors.New("invalid input")
	// ErrBackupChainTooLong is returned when every backup name up to
	// MaxBackupDepth suffixes is already taken.
	ErrBackupChainTooLong = errors.New("backup chain too long")
)

// FileTypeError reports a filesystem object of the wrong kind. Want is
// Unknown when the kind is not supported as a source at all; otherwise Path
// is a destination that does not match its source's kind.
type FileTypeError struct {
	Path string
	Mode fs.FileMode
	Want FileType
}

// Kind returns the observed kind.
func (e *FileTypeError) Kind() FileType { return fileTypeOf(e.Mode) }

func (e *FileTypeError) Error() string {
	if e.Want == Unknown {
		return fmt.Sprintf("invalid source file type: not a directory, file, or symlink: %s (%s, mode %v)",
			e.Path, e.Kind(), e.Mode.Type())
	}
	return fmt.Sprintf("invalid destination file type: %s is a %s, source is a %s", e.Path, e.Kind(), e.Want)
}

// Is makes every FileTypeError match ErrInvalidInput.
func (e *FileTypeError) Is(target error) bool {
	return target == ErrInvalidInput
}

func invalidInput(format string, args ...any) error {
	return fmt.Errorf("%w: "+format, append([]any{ErrInvalidInput}, args...)...)
}
