// Package imageio decodes uploaded raster images into the opaque RGB
// bitmaps the analyzer and compositor work on, and encodes results as PNG.
package imageio

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"  // Register GIF format decoder
	_ "image/jpeg" // Register JPEG format decoder
	_ "image/png"  // Register PNG format decoder
	"io"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/bmp"  // Register BMP format decoder
	_ "golang.org/x/image/tiff" // Register TIFF format decoder
	_ "golang.org/x/image/webp" // Register WebP format decoder
)

const (
	// MaxDimension caps the width and height of any decoded image.
	MaxDimension = 32768
	// DefaultMaxPixels bounds the pixel count Decode accepts, keeping one
	// NRGBA bitmap under 256 MB.
	DefaultMaxPixels int64 = 64 * 1024 * 1024
)

var (
	// ErrUndecodable marks input that is not an image in a supported format.
	ErrUndecodable = errors.New("unsupported or corrupt image")
	// ErrImageTooLarge marks images whose header declares more pixels than allowed.
	ErrImageTooLarge = errors.New("image dimensions exceed limit")
)

// Decode is DecodeLimited with DefaultMaxPixels.
func Decode(r io.Reader) (*image.NRGBA, error) {
	return DecodeLimited(r, DefaultMaxPixels)
}

// DecodeLimited reads any registered raster format, applies the EXIF
// orientation tag and returns an opaque RGB bitmap anchored at (0,0).
// The header is checked against CheckBounds before any pixel data is
// decoded. maxPixels <= 0 only enforces MaxDimension.
func DecodeLimited(r io.Reader, maxPixels int64) (*image.NRGBA, error) {
	var header bytes.Buffer
	cfg, _, err := image.DecodeConfig(io.TeeReader(r, &header))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	if err := CheckBounds(cfg.Width, cfg.Height, maxPixels); err != nil {
		return nil, err
	}

	img, err := imaging.Decode(io.MultiReader(&header, r), imaging.AutoOrientation(true))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUndecodable, err)
	}
	return ToRGB(img), nil
}

// CheckBounds reports ErrImageTooLarge when either side exceeds
// MaxDimension or the pixel count exceeds maxPixels (when positive).
func CheckBounds(width, height int, maxPixels int64) error {
	if width > MaxDimension || height > MaxDimension {
		return fmt.Errorf("%w: %dx%d exceeds %d per side", ErrImageTooLarge, width, height, MaxDimension)
	}
	pixels := int64(width) * int64(height)
	if maxPixels > 0 && pixels > maxPixels {
		return fmt.Errorf("%w: %d pixels exceeds %d", ErrImageTooLarge, pixels, maxPixels)
	}
	return nil
}

// ToRGB returns a new bitmap holding img's color channels with alpha
// discarded (every pixel forced opaque). img is never modified.
func ToRGB(img image.Image) *image.NRGBA {
	dst := imaging.Clone(img)
	for i := 3; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = 0xff
	}
	return dst
}

// EncodePNG writes img to w as PNG.
func EncodePNG(w io.Writer, img image.Image) error {
	if err := imaging.Encode(w, img, imaging.PNG); err != nil {
		return fmt.Errorf("failed to encode png: %w", err)
	}
	return nil
}
