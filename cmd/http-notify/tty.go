package main

import (
	"io"
	"os"

	"golang.org/x/term"
)

const fallbackWidth = 60

// terminalWidth reports whether w is a terminal and, if so, a toast width
// that fits it.
func terminalWidth(w io.Writer) (bool, int) {
	f, ok := w.(*os.File)
	if !ok {
		return false, 0
	}

	fd := int(f.Fd()) // #nosec G115 -- file descriptors fit in int
	if !term.IsTerminal(fd) {
		return false, 0
	}

	width, _, err := term.GetSize(fd)
	if err != nil || width <= 0 {
		return true, fallbackWidth
	}
	return true, min(width-2, fallbackWidth)
}
