package term

import (
	"bufio"
	"fmt"
	"io"
)

// SixelEncoder emits DEC sixel graphics with a fixed 6x7x6 RGB color cube
// (252 entries). Quantizing to a fixed palette keeps encoding one pass and
// avoids re-sending a palette per frame.
type SixelEncoder struct{}

const (
	sixelLevelsR = 6
	sixelLevelsG = 7
	sixelLevelsB = 6

	// Assumed cell geometry for sizing the render target.
	sixelCellW = 10
	sixelCellH = 20
)

func (e *SixelEncoder) Name() string { return "sixel" }

// PixelSize converts cells to pixels, trimming the height to a whole number
// of six-pixel bands.
func (e *SixelEncoder) PixelSize(cols, rows int) (int, int) {
	w := cols * sixelCellW
	h := rows * sixelCellH
	return w, h - h%6
}

// paletteIndex quantizes an RGB triple into the color cube.
func paletteIndex(r, g, b byte) int {
	ri := int(r) * sixelLevelsR / 256
	gi := int(g) * sixelLevelsG / 256
	bi := int(b) * sixelLevelsB / 256
	return (ri*sixelLevelsG+gi)*sixelLevelsB + bi
}

func (e *SixelEncoder) Encode(w io.Writer, pix []byte, width, height int) error {
	bw := bufio.NewWriterSize(w, width*height/2)

	// Enter sixel mode; 1:1 aspect, background fill.
	fmt.Fprintf(bw, "\x1bPq\"1;1;%d;%d", width, height)

	// Palette definition. Sixel color components are percentages.
	idx := 0
	for ri := 0; ri < sixelLevelsR; ri++ {
		for gi := 0; gi < sixelLevelsG; gi++ {
			for bi := 0; bi < sixelLevelsB; bi++ {
				fmt.Fprintf(bw, "#%d;2;%d;%d;%d", idx,
					ri*100/(sixelLevelsR-1),
					gi*100/(sixelLevelsG-1),
					bi*100/(sixelLevelsB-1))
				idx++
			}
		}
	}

	bandColors := make([]int, width*6)
	present := make(map[int]bool)

	for bandY := 0; bandY < height; bandY += 6 {
		bandRows := height - bandY
		if bandRows > 6 {
			bandRows = 6
		}

		// Quantize the band once.
		for k := range present {
			delete(present, k)
		}
		for row := 0; row < bandRows; row++ {
			for x := 0; x < width; x++ {
				off := ((bandY+row)*width + x) * 4
				c := paletteIndex(pix[off], pix[off+1], pix[off+2])
				bandColors[row*width+x] = c
				present[c] = true
			}
		}

		// One pass over the band per color present, run-length encoded.
		first := true
		for color := range present {
			if !first {
				fmt.Fprint(bw, "$") // carriage return within the band
			}
			first = false

			fmt.Fprintf(bw, "#%d", color)

			runChar := byte(0)
			runLen := 0
			flush := func() {
				if runLen == 0 {
					return
				}
				if runLen > 3 {
					fmt.Fprintf(bw, "!%d%c", runLen, runChar)
				} else {
					for i := 0; i < runLen; i++ {
						bw.WriteByte(runChar)
					}
				}
				runLen = 0
			}

			for x := 0; x < width; x++ {
				var bits byte
				for row := 0; row < bandRows; row++ {
					if bandColors[row*width+x] == color {
						bits |= 1 << uint(row)
					}
				}
				ch := byte(63 + bits)
				if runLen > 0 && ch == runChar {
					runLen++
					continue
				}
				flush()
				runChar = ch
				runLen = 1
			}
			flush()
		}

		fmt.Fprint(bw, "-") // next band
	}

	fmt.Fprint(bw, "\x1b\\")
	return bw.Flush()
}
