// Package term writes rendered RGBA frames to the terminal through one of
// three encoders, and wraps the raw-mode and geometry helpers the viewer
// needs.
package term

import (
	"fmt"
	"io"
	"os"

	"golang.org/x/term"
)

// Encoder turns an RGBA pixel buffer into terminal escape output. pix is
// width*height*4 bytes, row-major.
type Encoder interface {
	// Name returns the encoder's config name.
	Name() string
	// Encode writes one frame to w.
	Encode(w io.Writer, pix []byte, width, height int) error
	// PixelSize maps a terminal cell grid to the pixel dimensions this
	// encoder can display in it.
	PixelSize(cols, rows int) (int, int)
}

// NewEncoder returns the encoder for a config name.
func NewEncoder(name string) (Encoder, error) {
	switch name {
	case "halfblock":
		return &HalfblockEncoder{}, nil
	case "sixel":
		return &SixelEncoder{}, nil
	case "kitty":
		return &KittyEncoder{}, nil
	default:
		return nil, fmt.Errorf("unknown encoder %q", name)
	}
}

// RawMode puts stdin into raw mode and returns a restore function.
func RawMode() (func(), error) {
	fd := int(os.Stdin.Fd())
	state, err := term.MakeRaw(fd)
	if err != nil {
		return nil, fmt.Errorf("entering raw mode: %w", err)
	}
	return func() { _ = term.Restore(fd, state) }, nil
}

// Size returns the terminal dimensions in cells.
func Size() (cols, rows int, err error) {
	cols, rows, err = term.GetSize(int(os.Stdout.Fd()))
	if err != nil {
		return 0, 0, fmt.Errorf("reading terminal size: %w", err)
	}
	return cols, rows, nil
}

// IsTerminal reports whether stdout is attached to a tty.
func IsTerminal() bool {
	return term.IsTerminal(int(os.Stdout.Fd()))
}

// Screen control sequences shared by all encoders.
const (
	enterAltScreen = "\x1b[?1049h"
	leaveAltScreen = "\x1b[?1049l"
	hideCursor     = "\x1b[?25l"
	showCursor     = "\x1b[?25h"
	cursorHome     = "\x1b[H"
	resetStyle     = "\x1b[0m"
)

// EnterScreen switches to the alternate screen and hides the cursor.
func EnterScreen(w io.Writer) {
	fmt.Fprint(w, enterAltScreen, hideCursor)
}

// LeaveScreen restores the main screen and cursor.
func LeaveScreen(w io.Writer) {
	fmt.Fprint(w, resetStyle, showCursor, leaveAltScreen)
}

// Home moves the cursor to the top-left corner before drawing a frame.
func Home(w io.Writer) {
	fmt.Fprint(w, cursorHome)
}
