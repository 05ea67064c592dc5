package main

import (
	"fmt"
	"log/slog"

	"productlens/analysis"
	"productlens/catalog"
	"productlens/config"
	"productlens/imaging"
	"productlens/provider"
)

// app holds the components shared by every command.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	catalog  *catalog.Client
	registry *provider.Registry
	prompts  *analysis.Prompts
	images   *imaging.Collector
}

func newApp(cfg *config.Config, logger *slog.Logger) (*app, error) {
	prompts := analysis.DefaultPrompts()
	if cfg.PromptsFile != "" {
		p, err := analysis.LoadPrompts(cfg.PromptsFile)
		if err != nil {
			return nil, err
		}
		prompts = p
	}

	catalogOpts := []catalog.ClientOption{
		catalog.WithBaseURL(cfg.Catalog.BaseURL),
		catalog.WithSiteCd(cfg.Catalog.SiteCd),
		catalog.WithTimeout(cfg.Catalog.Timeout),
		catalog.WithLogger(logger),
	}
	for site, u := range cfg.Catalog.SearchBaseURLs {
		catalogOpts = append(catalogOpts, catalog.WithSearchBaseURL(site, u))
	}

	fetcher := imaging.NewFetcher(
		imaging.WithTimeout(cfg.Images.FetchTimeout),
		imaging.WithLogger(logger),
	)

	return &app{
		cfg:      cfg,
		logger:   logger,
		catalog:  catalog.NewClient(catalogOpts...),
		registry: provider.NewRegistry(cfg, logger),
		prompts:  prompts,
		images:   imaging.NewCollector(fetcher, cfg.Images.Workers, logger),
	}, nil
}

// analyzer returns an Analyzer reporting progress to cb, which may be nil.
func (a *app) analyzer(cb analysis.ProgressCallback) *analysis.Analyzer {
	return analysis.NewAnalyzer(a.images, a.registry,
		analysis.WithPrompts(a.prompts),
		analysis.WithImageCDN(a.cfg.Catalog.CDNURL, a.cfg.Catalog.ImageDims),
		analysis.WithMaxImages(a.cfg.Images.MaxImages),
		analysis.WithLogger(a.logger),
		analysis.WithProgress(cb),
	)
}

func (a *app) Close() error {
	if err := a.registry.Close(); err != nil {
		return fmt.Errorf("close providers: %w", err)
	}
	return nil
}
