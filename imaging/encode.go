// Package imaging downloads product images, filters out non-content images and
// cuts tall detail-page images into model-sized tiles.
package imaging

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/jpeg"
	"strings"
)

// EncodedImage is an image payload ready for inline transport to a model.
// It is never mutated after creation.
type EncodedImage struct {
	MIMEType string
	Data     []byte
}

// ImageBatch is an ordered list of encoded images. Order is top-to-bottom
// reading order and is preserved end to end.
type ImageBatch []EncodedImage

// Base64 returns the standard base64 encoding of the image data.
func (e EncodedImage) Base64() string {
	return base64.StdEncoding.EncodeToString(e.Data)
}

// DataURI returns the image as data:{mime};base64,{content}.
func (e EncodedImage) DataURI() string {
	return "data:" + e.MIMEType + ";base64," + e.Base64()
}

// Size returns the payload size in bytes.
func (e EncodedImage) Size() int {
	return len(e.Data)
}

// ParseDataURI decodes a data:{mime};base64,{content} string.
func ParseDataURI(s string) (EncodedImage, error) {
	rest, ok := strings.CutPrefix(s, "data:")
	if !ok {
		return EncodedImage{}, fmt.Errorf("not a data URI")
	}
	header, payload, ok := strings.Cut(rest, ",")
	if !ok {
		return EncodedImage{}, fmt.Errorf("data URI has no payload")
	}
	mime, ok := strings.CutSuffix(header, ";base64")
	if !ok {
		return EncodedImage{}, fmt.Errorf("data URI is not base64 encoded")
	}
	if mime == "" {
		mime = "application/octet-stream"
	}

	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return EncodedImage{}, fmt.Errorf("failed to decode data URI payload: %w", err)
	}
	return EncodedImage{MIMEType: mime, Data: data}, nil
}

// Profile controls how tiles are re-encoded for a model family.
type Profile struct {
	// MaxFidelity passes single images through untouched when their format
	// allows it and uses near-lossless JPEG otherwise.
	MaxFidelity bool

	// Quality is the JPEG quality for re-encoded output.
	Quality int
}

var (
	// HighFidelity is used for model families that handle large images well.
	HighFidelity = Profile{MaxFidelity: true, Quality: 90}

	// Standard is used for every other family.
	Standard = Profile{Quality: 85}
)

// singleQuality is the quality used for one-tile output.
func (p Profile) singleQuality() int {
	if p.MaxFidelity {
		return 100
	}
	return p.quality()
}

func (p Profile) quality() int {
	if p.Quality <= 0 || p.Quality > 100 {
		return jpeg.DefaultQuality
	}
	return p.Quality
}

func encodeJPEG(img image.Image, quality int) (EncodedImage, error) {
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality}); err != nil {
		return EncodedImage{}, fmt.Errorf("failed to encode jpeg: %w", err)
	}
	return EncodedImage{MIMEType: "image/jpeg", Data: buf.Bytes()}, nil
}
