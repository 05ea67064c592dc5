// Package analysis turns a catalog product into a structured product
// schema by combining its text, its images and a model backend.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"productlens/catalog"
	"productlens/imaging"
	"productlens/provider"
	"productlens/schema"
)

// DefaultMaxImages is the tile budget per analysis.
const DefaultMaxImages = 6

// ImageCollector downloads, filters and chunks product images.
type ImageCollector interface {
	Collect(ctx context.Context, urls []string, p imaging.Profile, maxImages int) (imaging.ImageBatch, []imaging.ImageRef)
}

// AdapterSource resolves a model identifier to a backend.
type AdapterSource interface {
	ForModel(ctx context.Context, model string) (provider.Adapter, error)
}

// Stage names a step of an analysis for progress reporting.
type Stage string

const (
	StageText   Stage = "text"
	StageImages Stage = "images"
	StageModel  Stage = "model"
	StageRetry  Stage = "retry"
	StageDone   Stage = "done"
	StageFailed Stage = "failed"
)

// ProgressUpdate is sent as an analysis advances.
type ProgressUpdate struct {
	RequestID string
	Stage     Stage
	Message   string
}

// ProgressCallback receives progress updates. It runs on the analysing
// goroutine and must not block.
type ProgressCallback func(ProgressUpdate)

// Analyzer runs analyses. It is safe for concurrent use.
type Analyzer struct {
	collector ImageCollector
	adapters  AdapterSource
	prompts   *Prompts
	cdnURL    string
	imageDims string
	maxImages int
	logger    *slog.Logger
	progress  ProgressCallback
}

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithPrompts replaces the embedded prompt set.
func WithPrompts(p *Prompts) Option {
	return func(a *Analyzer) {
		if p != nil {
			a.prompts = p
		}
	}
}

// WithImageCDN sets where catalog image keys are resolved.
func WithImageCDN(cdnURL, dims string) Option {
	return func(a *Analyzer) {
		if cdnURL != "" {
			a.cdnURL = cdnURL
		}
		if dims != "" {
			a.imageDims = dims
		}
	}
}

// WithMaxImages sets the tile budget. Zero disables images.
func WithMaxImages(n int) Option {
	return func(a *Analyzer) {
		if n >= 0 {
			a.maxImages = n
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(a *Analyzer) {
		a.logger = logger
	}
}

// WithProgress sets the callback for progress updates.
func WithProgress(cb ProgressCallback) Option {
	return func(a *Analyzer) {
		a.progress = cb
	}
}

// NewAnalyzer creates an Analyzer.
func NewAnalyzer(collector ImageCollector, adapters AdapterSource, opts ...Option) *Analyzer {
	a := &Analyzer{
		collector: collector,
		adapters:  adapters,
		prompts:   DefaultPrompts(),
		cdnURL:    catalog.DefaultCDNURL,
		imageDims: catalog.DefaultImageDims,
		maxImages: DefaultMaxImages,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Prompts returns the prompt set in use.
func (a *Analyzer) Prompts() *Prompts {
	return a.prompts
}

// Request is one analysis.
type Request struct {
	Product   *catalog.Product
	Model     string
	UseImages bool

	// SystemPrompt overrides the configured system prompt when set.
	SystemPrompt string
}

// AnalysisResult is the outcome of one analysis. On failure Result is nil,
// Failure says why and no images are reported.
type AnalysisResult struct {
	RequestID string
	Model     string
	Family    provider.Family
	Product   *catalog.Product

	Result *schema.ProductSchema

	// UsedImageRefs has one entry per tile in Batch.
	UsedImageRefs []imaging.ImageRef
	Batch         imaging.ImageBatch

	ExtractedText string
	Metadata      string

	Failure       string
	TextOnlyRetry bool
	BlockReason   string
	Attempts      int
	Elapsed       time.Duration

	err error
}

// OK reports whether the analysis produced a result.
func (r *AnalysisResult) OK() bool {
	return r.Result != nil
}

// Err returns the error behind Failure.
func (r *AnalysisResult) Err() error {
	return r.err
}

// Analyze prepares the text and images of req.Product, sends them to the
// backend serving req.Model and returns the result. Failures are reported
// in the result rather than as an error.
func (a *Analyzer) Analyze(ctx context.Context, req Request) *AnalysisResult {
	start := time.Now()
	family := provider.Dispatch(req.Model)
	res := &AnalysisResult{
		RequestID:     uuid.NewString(),
		Model:         req.Model,
		Family:        family,
		Product:       req.Product,
		UsedImageRefs: []imaging.ImageRef{},
		Batch:         imaging.ImageBatch{},
	}
	logger := a.logger.With("request_id", res.RequestID, "model", req.Model, "family", string(family))

	finish := func(err error) *AnalysisResult {
		res.Elapsed = time.Since(start)
		if err != nil {
			res.err = err
			res.Failure = err.Error()
			res.Result = nil
			res.UsedImageRefs = []imaging.ImageRef{}
			res.Batch = imaging.ImageBatch{}
			logger.Warn("analysis failed", "error", err, "elapsed", res.Elapsed)
			a.report(res.RequestID, StageFailed, res.Failure)
			return res
		}
		logger.Info("analysis complete",
			"prd_no", req.Product.PrdNo,
			"images", len(res.Batch),
			"text_only_retry", res.TextOnlyRetry,
			"elapsed", res.Elapsed)
		a.report(res.RequestID, StageDone, "analysis complete")
		return res
	}

	if req.Product == nil {
		return finish(errors.New("no product to analyze"))
	}
	if strings.TrimSpace(req.Model) == "" {
		return finish(errors.New("model is required"))
	}

	a.report(res.RequestID, StageText, "preparing product text")
	res.Metadata = FormatMetadata(req.Product)
	res.ExtractedText = ExtractText(req.Product.DescriptionHTML)

	adapter, err := a.adapters.ForModel(ctx, req.Model)
	if err != nil {
		return finish(fmt.Errorf("resolve %s backend: %w", family, err))
	}

	if req.UseImages && a.maxImages > 0 && a.collector != nil {
		urls := mergeURLs(
			req.Product.ImageURLs(a.cdnURL, a.imageDims),
			ExtractImageURLs(req.Product.DescriptionHTML),
		)
		a.report(res.RequestID, StageImages, fmt.Sprintf("fetching %d images", len(urls)))
		batch, refs := a.collector.Collect(ctx, urls, family.ImageProfile(), a.maxImages)
		res.Batch, res.UsedImageRefs = batch, refs
		logger.Debug("images collected", "candidates", len(urls), "tiles", len(batch))
	}
	if err := ctx.Err(); err != nil {
		return finish(err)
	}

	system := req.SystemPrompt
	if strings.TrimSpace(system) == "" {
		system = a.prompts.System
	}
	preq := provider.Request{
		System:   system,
		UserText: a.prompts.UserText(res.Metadata, res.ExtractedText),
		Images:   res.Batch,
		Model:    req.Model,
	}
	preq.OnRetry = func(reason string) {
		a.report(res.RequestID, StageRetry, "blocked ("+reason+"), retrying text-only")
	}

	a.report(res.RequestID, StageModel, fmt.Sprintf("calling %s with %d images", family.DisplayName(), len(res.Batch)))
	out, err := adapter.Generate(ctx, preq)
	if err != nil {
		return finish(err)
	}

	res.Result = out.Product
	res.Attempts = out.Attempts
	res.TextOnlyRetry = out.TextOnlyRetry
	res.BlockReason = out.BlockReason
	return finish(nil)
}

func (a *Analyzer) report(id string, stage Stage, msg string) {
	if a.progress != nil {
		a.progress(ProgressUpdate{RequestID: id, Stage: stage, Message: msg})
	}
}
