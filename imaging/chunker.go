package imaging

import (
	"image"
	"math"
	"slices"

	"golang.org/x/image/draw"
)

const (
	// DetailRatio is the height/width ratio above which an image is treated
	// as a long detail page.
	DetailRatio = 2.0

	// MaxTileWidth is the width detail pages are downscaled to.
	MaxTileWidth = 1024

	// MaxTiles caps tiles per source image.
	MaxTiles = 5

	// CutLookback is how many rows above a provisional cut are searched for whitespace.
	CutLookback = 200

	// CutStride is the row step used while searching.
	CutStride = 4

	// FlatRowStdDev is the intensity standard deviation below which a row is
	// considered blank enough to cut through.
	FlatRowStdDev = 2.0
)

// anchorFractions place tiles roughly at the head shot, the upper-body shot
// and the lower-body or detail shot of a typical product page. A fourth
// anchor at the bottom catches the size chart.
var anchorFractions = []float64{0, 0.33, 0.66}

// Tile is one encoded slice of a source image.
type Tile struct {
	EncodedImage

	// Offset is the top row of the tile in the (possibly resized) source.
	Offset int

	Width  int
	Height int
}

// IsDetailPage reports whether an image of the given size gets multi-tile treatment.
func IsDetailPage(width, height int) bool {
	return float64(height) > float64(width)*DetailRatio
}

// Chunk encodes d as one or more tiles in top-to-bottom order.
// It never panics and returns an empty batch on failure.
func Chunk(d *Decoded, p Profile) ImageBatch {
	tiles := ChunkTiles(d, p)
	batch := make(ImageBatch, 0, len(tiles))
	for _, t := range tiles {
		batch = append(batch, t.EncodedImage)
	}
	return batch
}

// ChunkTiles is Chunk with tile geometry attached.
func ChunkTiles(d *Decoded, p Profile) (tiles []Tile) {
	defer func() {
		if r := recover(); r != nil {
			tiles = nil
		}
	}()

	if d == nil || d.Image == nil {
		return nil
	}
	w, h := d.Width(), d.Height()
	if w == 0 || h == 0 {
		return nil
	}

	if !IsDetailPage(w, h) {
		enc, err := encodeSingle(d, p)
		if err != nil {
			return nil
		}
		return []Tile{{EncodedImage: enc, Width: w, Height: h}}
	}

	return detailTiles(d.Image, p)
}

func encodeSingle(d *Decoded, p Profile) (EncodedImage, error) {
	if p.MaxFidelity && len(d.Raw) > 0 {
		switch d.Format {
		case "jpeg":
			return EncodedImage{MIMEType: "image/jpeg", Data: d.Raw}, nil
		case "png":
			return EncodedImage{MIMEType: "image/png", Data: d.Raw}, nil
		case "webp":
			return EncodedImage{MIMEType: "image/webp", Data: d.Raw}, nil
		}
	}
	return encodeJPEG(d.Image, p.singleQuality())
}

func detailTiles(img *image.RGBA, p Profile) []Tile {
	src := img
	if src.Bounds().Dx() > MaxTileWidth {
		src = resizeToWidth(src, MaxTileWidth)
	}
	w, h := src.Bounds().Dx(), src.Bounds().Dy()
	tileHeight := w

	offsets := RefineOffsets(toGray(src), TileOffsets(h, tileHeight))
	if len(offsets) > MaxTiles {
		offsets = offsets[:MaxTiles]
	}

	tiles := make([]Tile, 0, len(offsets))
	for i, off := range offsets {
		bottom := min(off+tileHeight, h)
		if i == len(offsets)-1 {
			// The tail start may have moved up to a whitespace row; the
			// last tile still runs to the bottom so the footer is kept.
			bottom = h
		}
		crop := src.SubImage(image.Rect(0, off, w, bottom))
		enc, err := encodeJPEG(crop, p.quality())
		if err != nil {
			return nil
		}
		tiles = append(tiles, Tile{EncodedImage: enc, Offset: off, Width: w, Height: bottom - off})
	}
	return tiles
}

// TileOffsets returns the sorted, de-duplicated anchor offsets for an image
// of the given height.
func TileOffsets(height, tileHeight int) []int {
	offsets := make([]int, 0, len(anchorFractions)+1)
	for _, f := range anchorFractions {
		offsets = append(offsets, int(f*float64(height)))
	}
	offsets = append(offsets, max(height-tileHeight, 0))

	slices.Sort(offsets)
	return slices.Compact(offsets)
}

// RefineOffsets moves every non-zero offset to a nearby whitespace row.
// The result is sorted and de-duplicated, and 0 stays 0.
func RefineOffsets(g *image.Gray, offsets []int) []int {
	out := make([]int, 0, len(offsets))
	for _, off := range offsets {
		out = append(out, FindSafeCut(g, off))
	}
	slices.Sort(out)
	return slices.Compact(out)
}

// FindSafeCut scans up to CutLookback rows above cut and returns the flattest
// row whose standard deviation is below FlatRowStdDev, preferring the row
// closest to cut on ties. It returns cut unchanged when no row qualifies.
func FindSafeCut(g *image.Gray, cut int) int {
	height := g.Bounds().Dy()
	if cut <= 0 || cut >= height {
		return cut
	}

	stop := max(cut-CutLookback, 1)
	best, bestDev := cut, math.Inf(1)
	for y := cut; y >= stop; y -= CutStride {
		dev := rowStdDev(g, y)
		if dev < FlatRowStdDev && dev < bestDev {
			best, bestDev = y, dev
			if dev == 0 {
				break
			}
		}
	}
	return best
}

func rowStdDev(g *image.Gray, y int) float64 {
	w := g.Bounds().Dx()
	if w == 0 {
		return 0
	}
	start := y * g.Stride
	row := g.Pix[start : start+w]

	var sum float64
	for _, v := range row {
		sum += float64(v)
	}
	mean := sum / float64(w)

	var sq float64
	for _, v := range row {
		d := float64(v) - mean
		sq += d * d
	}
	return math.Sqrt(sq / float64(w))
}

func resizeToWidth(src *image.RGBA, width int) *image.RGBA {
	b := src.Bounds()
	height := int(math.Round(float64(b.Dy()) * float64(width) / float64(b.Dx())))
	if height < 1 {
		height = 1
	}
	dst := image.NewRGBA(image.Rect(0, 0, width, height))
	draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Src, nil)
	return dst
}
