package assets

import (
	"fmt"

	"github.com/sfenley/meshterm/internal/engine/model"
)

// TGA image type constants.
const (
	tgaTypeUncompressed = 2  // Uncompressed true-color
	tgaTypeRLE          = 10 // RLE compressed true-color
)

// decodeTGA decodes a TGA file into an RGBA texture. Supports uncompressed
// true-color (type 2) and RLE compressed (type 10) at 24 or 32 bpp, which
// covers what texture authoring tools emit.
func decodeTGA(data []byte) (*model.Texture, error) {
	if len(data) < 18 {
		return nil, fmt.Errorf("TGA data too short")
	}

	idLength := int(data[0])
	colorMapType := data[1]
	imageType := data[2]
	width := int(data[12]) | int(data[13])<<8
	height := int(data[14]) | int(data[15])<<8
	bpp := int(data[16])
	descriptor := data[17]

	if colorMapType != 0 {
		return nil, fmt.Errorf("color-mapped TGA not supported")
	}
	if imageType != tgaTypeUncompressed && imageType != tgaTypeRLE {
		return nil, fmt.Errorf("unsupported TGA type %d (only uncompressed/RLE true-color supported)", imageType)
	}
	if bpp != 24 && bpp != 32 {
		return nil, fmt.Errorf("unsupported TGA bit depth %d (only 24/32 supported)", bpp)
	}
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid TGA dimensions %dx%d", width, height)
	}

	offset := 18 + idLength
	if offset > len(data) {
		return nil, fmt.Errorf("TGA data truncated")
	}
	pixelData := data[offset:]

	tex := &model.Texture{Width: width, Height: height, Pixels: make([]byte, width*height*4)}
	bytesPerPixel := bpp / 8

	// Bit 5 of the descriptor means rows are stored top-to-bottom; the
	// default is bottom-to-top and needs flipping.
	topToBottom := descriptor&0x20 != 0

	if imageType == tgaTypeUncompressed {
		if len(pixelData) < width*height*bytesPerPixel {
			return nil, fmt.Errorf("TGA pixel data truncated")
		}
		for y := 0; y < height; y++ {
			destY := y
			if !topToBottom {
				destY = height - 1 - y
			}
			for x := 0; x < width; x++ {
				src := (y*width + x) * bytesPerPixel
				writeTGAPixel(tex, x, destY, pixelData[src:], bytesPerPixel)
			}
		}
		return tex, nil
	}

	if err := decodeTGARLE(tex, pixelData, bytesPerPixel, topToBottom); err != nil {
		return nil, err
	}
	return tex, nil
}

// writeTGAPixel stores one BGR(A) source pixel as RGBA.
func writeTGAPixel(tex *model.Texture, x, y int, src []byte, bytesPerPixel int) {
	dst := (y*tex.Width + x) * 4
	tex.Pixels[dst+0] = src[2]
	tex.Pixels[dst+1] = src[1]
	tex.Pixels[dst+2] = src[0]
	if bytesPerPixel == 4 {
		tex.Pixels[dst+3] = src[3]
	} else {
		tex.Pixels[dst+3] = 255
	}
}

func decodeTGARLE(tex *model.Texture, pixelData []byte, bytesPerPixel int, topToBottom bool) error {
	width, height := tex.Width, tex.Height
	pixelCount := width * height
	pixelIdx := 0
	dataIdx := 0

	place := func(src []byte) {
		x := pixelIdx % width
		y := pixelIdx / width
		if !topToBottom {
			y = height - 1 - y
		}
		writeTGAPixel(tex, x, y, src, bytesPerPixel)
		pixelIdx++
	}

	for pixelIdx < pixelCount && dataIdx < len(pixelData) {
		packet := pixelData[dataIdx]
		dataIdx++
		count := int(packet&0x7f) + 1

		if packet&0x80 != 0 {
			// RLE packet: one pixel repeated count times
			if dataIdx+bytesPerPixel > len(pixelData) {
				break
			}
			src := pixelData[dataIdx : dataIdx+bytesPerPixel]
			dataIdx += bytesPerPixel
			for i := 0; i < count && pixelIdx < pixelCount; i++ {
				place(src)
			}
		} else {
			// Raw packet: count literal pixels
			for i := 0; i < count && pixelIdx < pixelCount; i++ {
				if dataIdx+bytesPerPixel > len(pixelData) {
					return nil
				}
				place(pixelData[dataIdx : dataIdx+bytesPerPixel])
				dataIdx += bytesPerPixel
			}
		}
	}

	return nil
}
