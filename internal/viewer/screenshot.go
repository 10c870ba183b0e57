package viewer

import (
	"fmt"
	"image"
	"image/png"
	"os"
	"time"
)

// saveFrame writes one rendered frame to a timestamped PNG in the working
// directory and returns the filename. Frames come off the GPU top-to-bottom,
// so rows copy straight through.
func saveFrame(pixels []byte, width, height int) (string, error) {
	if len(pixels) != width*height*4 {
		return "", fmt.Errorf("pixel data size mismatch: expected %d, got %d", width*height*4, len(pixels))
	}

	img := image.NewRGBA(image.Rect(0, 0, width, height))
	rowSize := width * 4
	for y := 0; y < height; y++ {
		copy(img.Pix[y*img.Stride:y*img.Stride+rowSize], pixels[y*rowSize:])
	}

	filename := fmt.Sprintf("meshterm_%s.png", time.Now().Format("2006-01-02_15-04-05"))
	file, err := os.Create(filename)
	if err != nil {
		return "", fmt.Errorf("creating file: %w", err)
	}
	defer file.Close()

	if err := png.Encode(file, img); err != nil {
		return "", fmt.Errorf("encoding PNG: %w", err)
	}
	return filename, nil
}
