package service

import (
	"fmt"

	"github.com/h2non/bimg"
)

// ImageProcessor resizes source photos into JPEG thumbnails.
// It uses bimg (Go bindings for libvips), a C library that's extremely fast
// at image manipulation. The trade-off: requires libvips as a system dependency.
type ImageProcessor struct {
	quality int
}

// NewImageProcessor creates a processor writing JPEGs at the given quality
// (1-100; 0 means 82).
func NewImageProcessor(quality int) *ImageProcessor {
	if quality <= 0 || quality > 100 {
		quality = 82
	}
	return &ImageProcessor{quality: quality}
}

// ResizeToWidth scales an image (any format bimg supports: JPEG, PNG, WebP,
// GIF) to the given width, keeping the aspect ratio, and encodes it as JPEG.
// Images narrower than width are re-encoded but never upscaled.
// Transparent areas are flattened onto white.
func (p *ImageProcessor) ResizeToWidth(imageData []byte, width int) ([]byte, error) {
	img := bimg.NewImage(imageData)

	size, err := img.Size()
	if err != nil {
		return nil, fmt.Errorf("reading image size: %w", err)
	}
	if size.Width < width {
		width = size.Width
	}

	// bimg.Options is a struct with many fields; set only the ones needed.
	resized, err := img.Process(bimg.Options{
		Width:          width,
		Type:           bimg.JPEG,
		Quality:        p.quality,
		StripMetadata:  true,
		Background:     bimg.Color{R: 255, G: 255, B: 255},
		Interpretation: bimg.InterpretationSRGB,
	})
	if err != nil {
		return nil, fmt.Errorf("resizing to %dpx: %w", width, err)
	}
	return resized, nil
}
