package term

import (
	"bufio"
	"fmt"
	"io"
)

// HalfblockEncoder packs two vertical pixels into every terminal cell using
// the upper-half-block glyph with 24-bit foreground and background colors.
// It works in any truecolor terminal.
type HalfblockEncoder struct{}

func (e *HalfblockEncoder) Name() string { return "halfblock" }

// PixelSize gives one pixel per column and two per row.
func (e *HalfblockEncoder) PixelSize(cols, rows int) (int, int) {
	return cols, rows * 2
}

func (e *HalfblockEncoder) Encode(w io.Writer, pix []byte, width, height int) error {
	bw := bufio.NewWriterSize(w, width*height)

	for y := 0; y+1 < height; y += 2 {
		for x := 0; x < width; x++ {
			top := (y*width + x) * 4
			bottom := ((y+1)*width + x) * 4

			fmt.Fprintf(bw, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm▀",
				pix[top], pix[top+1], pix[top+2],
				pix[bottom], pix[bottom+1], pix[bottom+2])
		}
		fmt.Fprint(bw, resetStyle, "\r\n")
	}

	return bw.Flush()
}
