package ui

import (
	"os"

	"golang.org/x/term"
)

// IsTTY reports whether the given file descriptor refers to a terminal.
func IsTTY(fd uintptr) bool {
	return term.IsTerminal(int(fd)) //nolint:gosec // G115: fds fit in int
}

// StderrIsTTY reports whether progress drawn on stderr would reach a
// terminal.
func StderrIsTTY() bool {
	return IsTTY(os.Stderr.Fd())
}

// TermWidth returns the terminal width in columns, or 80 if it cannot be determined.
func TermWidth(fd uintptr) int {
	w, _, err := term.GetSize(int(fd)) //nolint:gosec // G115: fds fit in int
	if err != nil || w <= 0 {
		return 80
	}
	return w
}
