package imaging

import (
	"context"
	"errors"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"productlens/metrics"
)

// DefaultWorkers is the number of concurrent downloads per request.
const DefaultWorkers = 4

// ImageRef describes which part of which source image a tile came from.
type ImageRef struct {
	URL    string `json:"url"`
	Width  int    `json:"width"`
	Height int    `json:"height"`
	Offset int    `json:"offset"`
	Tile   int    `json:"tile"`
}

// Collector runs the fetch, filter and chunk stages over a list of URLs.
type Collector struct {
	fetcher *Fetcher
	workers int
	logger  *slog.Logger
}

// NewCollector creates a Collector. workers <= 0 selects DefaultWorkers.
func NewCollector(fetcher *Fetcher, workers int, logger *slog.Logger) *Collector {
	if fetcher == nil {
		fetcher = NewFetcher()
	}
	if workers <= 0 {
		workers = DefaultWorkers
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Collector{fetcher: fetcher, workers: workers, logger: logger}
}

// Collect returns the tiles for urls in source order, then tile order, and a
// ref per tile. At most maxImages tiles are returned. Downloads run in
// parallel windows no larger than the remaining cap, so sources past the
// point where the cap fills are never fetched. Unusable images are skipped.
func (c *Collector) Collect(ctx context.Context, urls []string, p Profile, maxImages int) (ImageBatch, []ImageRef) {
	batch := ImageBatch{}
	refs := []ImageRef{}
	if maxImages <= 0 || len(urls) == 0 {
		return batch, refs
	}

	candidates := make([]string, 0, len(urls))
	for _, u := range urls {
		if Denied(u) {
			c.logger.Debug("image skipped by denylist", "url", u)
			metrics.ImageOutcome("denied")
			continue
		}
		candidates = append(candidates, u)
	}

	fetched := 0
	for fetched < len(candidates) && len(batch) < maxImages && ctx.Err() == nil {
		n := min(c.workers, maxImages-len(batch), len(candidates)-fetched)
		window := candidates[fetched : fetched+n]
		fetched += n

		raw := c.fetchAll(ctx, window)
		for i, u := range window {
			if len(batch) >= maxImages {
				break
			}
			if raw[i] == nil {
				continue
			}
			for n, t := range c.tiles(u, raw[i], p) {
				if len(batch) >= maxImages {
					break
				}
				batch = append(batch, t.EncodedImage)
				refs = append(refs, ImageRef{URL: u, Width: t.Width, Height: t.Height, Offset: t.Offset, Tile: n})
			}
		}
	}

	c.logger.Debug("images collected", "sources", len(urls), "fetched", fetched, "tiles", len(batch))
	return batch, refs
}

// fetchAll downloads urls concurrently. A failed download leaves a nil entry.
func (c *Collector) fetchAll(ctx context.Context, urls []string) [][]byte {
	raw := make([][]byte, len(urls))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.workers)
	for i, u := range urls {
		g.Go(func() error {
			data, err := c.fetcher.Fetch(gctx, u)
			if err != nil {
				c.logger.Info("image skipped", "url", u, "error", err)
				metrics.ImageOutcome(NetworkError.String())
				return nil
			}
			raw[i] = data
			return nil
		})
	}
	_ = g.Wait()
	return raw
}

// tiles decodes, filters and chunks one downloaded image.
func (c *Collector) tiles(u string, data []byte, p Profile) []Tile {
	decoded, err := Decode(data)
	if err != nil {
		var ff *FetchFailure
		if errors.As(err, &ff) {
			ff.URL = u
		}
		c.logger.Info("image skipped", "url", u, "error", err)
		metrics.ImageOutcome(DecodeError.String())
		return nil
	}
	if !Accept(u, decoded.Image) {
		c.logger.Debug("image filtered", "url", u, "width", decoded.Width(), "height", decoded.Height())
		metrics.ImageOutcome("filtered")
		return nil
	}

	tiles := ChunkTiles(decoded, p)
	if len(tiles) == 0 {
		c.logger.Info("image produced no tiles", "url", u)
		metrics.ImageOutcome("chunk_error")
		return nil
	}
	metrics.ImageOutcome("ok")
	metrics.ImageTiles(len(tiles))
	return tiles
}
