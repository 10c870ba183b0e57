package assets

import (
	"bytes"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"strings"

	xdraw "golang.org/x/image/draw"

	"github.com/sfenley/meshterm/internal/engine/model"
	"github.com/sfenley/meshterm/internal/logger"
	"go.uber.org/zap"
)

// maxTextureDim caps texture dimensions. Terminal output never resolves
// more than this, and it bounds staging upload size.
const maxTextureDim = 1024

// LoadTexture reads and decodes a PNG, JPEG or TGA file into an RGBA texture.
func LoadTexture(path string) (*model.Texture, error) {
	data, err := readFile(path)
	if err != nil {
		return nil, err
	}

	// TGA carries no magic bytes, so it is routed by extension.
	if strings.EqualFold(filepath.Ext(path), ".tga") {
		tex, err := decodeTGA(data)
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		return tex, nil
	}

	tex, err := DecodeTexture(data)
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", path, err)
	}
	return tex, nil
}

// DecodeTexture decodes encoded image bytes into an RGBA texture, downscaling
// anything larger than maxTextureDim per side.
func DecodeTexture(data []byte) (*model.Texture, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}

	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()
	if w == 0 || h == 0 {
		return nil, fmt.Errorf("empty %s image", format)
	}

	if w > maxTextureDim || h > maxTextureDim {
		scale := float64(maxTextureDim) / float64(w)
		if sh := float64(maxTextureDim) / float64(h); sh < scale {
			scale = sh
		}
		nw, nh := int(float64(w)*scale), int(float64(h)*scale)
		if nw < 1 {
			nw = 1
		}
		if nh < 1 {
			nh = 1
		}
		logger.Debug("downscaling texture",
			zap.Int("width", w), zap.Int("height", h),
			zap.Int("newWidth", nw), zap.Int("newHeight", nh))

		scaled := image.NewRGBA(image.Rect(0, 0, nw, nh))
		xdraw.ApproxBiLinear.Scale(scaled, scaled.Bounds(), img, bounds, xdraw.Src, nil)
		return textureFromRGBA(scaled), nil
	}

	rgba, ok := img.(*image.RGBA)
	if !ok {
		rgba = image.NewRGBA(bounds)
		xdraw.Copy(rgba, image.Point{}, img, bounds, xdraw.Src, nil)
	}
	return textureFromRGBA(rgba), nil
}

func textureFromRGBA(img *image.RGBA) *model.Texture {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()

	tex := &model.Texture{Width: w, Height: h, Pixels: make([]byte, w*h*4)}
	for y := 0; y < h; y++ {
		row := img.Pix[y*img.Stride : y*img.Stride+w*4]
		copy(tex.Pixels[y*w*4:], row)
	}
	return tex
}

func readFile(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	return data, nil
}
