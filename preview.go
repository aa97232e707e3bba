// PNG preview generation for extracted DDS textures
package main

import (
	"fmt"
	"image/png"
	"os"
	"strings"

	"github.com/anthonynsimon/bild/transform"

	"ytd-unpacker/internal/dds"
)

// writePNGPreview decodes an in-memory DDS file and writes a PNG preview
// next to it, scaled to fit within a size x size box while preserving the
// texture's aspect ratio.
func writePNGPreview(ddsData []byte, ddsPath string, size int) error {
	img, err := dds.Decode(ddsData)
	if err != nil {
		return fmt.Errorf("failed to decode texture: %w", err)
	}

	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	if width > size || height > size {
		if width >= height {
			height = height * size / width
			width = size
		} else {
			width = width * size / height
			height = size
		}
		if width < 1 {
			width = 1
		}
		if height < 1 {
			height = 1
		}
		img = transform.Resize(img, width, height, transform.Linear)
	}

	pngPath := strings.TrimSuffix(ddsPath, ".dds") + ".png"
	f, err := os.Create(pngPath)
	if err != nil {
		return fmt.Errorf("failed to create preview file: %w", err)
	}
	defer f.Close()

	if err := png.Encode(f, img); err != nil {
		return fmt.Errorf("failed to encode preview: %w", err)
	}
	Verbosef("  Wrote %s\n", pngPath)
	return nil
}
