package imaging

import (
	"bytes"
	"fmt"
	"image"
	"strings"

	// Registered decoders for the formats served by the catalog CDN.
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	_ "golang.org/x/image/webp"
)

const (
	// MinDimension is the smallest accepted width or height in pixels.
	// Anything smaller is a spacer, icon or tracking pixel.
	MinDimension = 50

	// MaxPixels guards against decompression bombs.
	MaxPixels = 80_000_000
)

// denylist holds URL substrings of known non-content images.
var denylist = []string{"logo", "icon", "button", "tracker", "pixel", "sns", "banner"}

// Denied reports whether the URL matches the non-content denylist (case-insensitive).
func Denied(url string) bool {
	lower := strings.ToLower(url)
	for _, s := range denylist {
		if strings.Contains(lower, s) {
			return true
		}
	}
	return false
}

// Accept reports whether a decoded image from url is worth sending to a model.
// Rejection is silent.
func Accept(url string, img image.Image) bool {
	if img == nil || Denied(url) {
		return false
	}
	b := img.Bounds()
	return b.Dx() >= MinDimension && b.Dy() >= MinDimension
}

// Decoded is a source image normalized to opaque RGB.
type Decoded struct {
	// Image is the normalized pixel data with its origin at (0, 0).
	Image *image.RGBA

	// Format is the registered decoder name ("jpeg", "png", "gif", "webp").
	Format string

	// Raw holds the original bytes.
	Raw []byte
}

// Width of the image in pixels
func (d *Decoded) Width() int { return d.Image.Bounds().Dx() }

// Height of the image in pixels
func (d *Decoded) Height() int { return d.Image.Bounds().Dy() }

// Decode decodes raw bytes and collapses palette and alpha formats onto an
// opaque white background. Failures are *FetchFailure of kind DecodeError.
func Decode(data []byte) (*Decoded, error) {
	cfg, _, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, &FetchFailure{Kind: DecodeError, Err: err}
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, &FetchFailure{Kind: DecodeError, Err: fmt.Errorf("image too large: %dx%d", cfg.Width, cfg.Height)}
	}

	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, &FetchFailure{Kind: DecodeError, Err: err}
	}

	return &Decoded{Image: toRGB(img), Format: format, Raw: data}, nil
}

// toRGB returns an opaque copy of img with its origin at (0, 0).
func toRGB(img image.Image) *image.RGBA {
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Over)
	return dst
}

// toGray renders img as 8-bit grayscale.
func toGray(img image.Image) *image.Gray {
	b := img.Bounds()
	dst := image.NewGray(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}
