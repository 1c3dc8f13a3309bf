package ui

import (
	"io"
	"os"

	"golang.org/x/term"
)

const defaultWidth = 80

// IsTTY reports whether the given file descriptor refers to a terminal.
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd))
}

// TermWidth returns the terminal width in columns, or 80 if it cannot be determined.
func TermWidth(fd uintptr) int {
	w, _, err := term.GetSize(int(fd))
	if err != nil || w <= 0 {
		return defaultWidth
	}
	return w
}

// Terminal reports whether w is a terminal and, if so, its width. Anything
// that is not an *os.File (a buffer, a pipe wrapper) is treated as a plain
// stream.
func Terminal(w io.Writer) (isTTY bool, width int) {
	f, ok := w.(*os.File)
	if !ok || !IsTTY(f.Fd()) {
		return false, defaultWidth
	}
	return true, TermWidth(f.Fd())
}
