package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/huh"
	"github.com/charmbracelet/huh/spinner"

	"productlens/analysis"
	"productlens/catalog"
	"productlens/config"
	"productlens/provider"
	"productlens/tui"
)

const (
	cardWidth       = 76
	searchTimeout   = 30 * time.Second
	analysisTimeout = 3 * time.Minute

	customModel = "custom"
)

// modelChoices are offered in the model picker, in display order.
var modelChoices = []string{"gpt-4o", "gpt-4o-mini", "gemini-2.5-flash", "qwen-vl-max"}

// siteChoices are the storefronts the search API serves.
var siteChoices = []struct {
	name   string
	siteCd string
}{
	{"하프클럽", "1"},
	{"보리보리", "2"},
}

func runInteractive(cfg *config.Config) error {
	logger := newLogger(cfg, os.Stderr, slog.LevelWarn)
	slog.SetDefault(logger)

	fmt.Println(titleStyle.Render(productLensLogo))

	if !cfg.AnyProvider() {
		fmt.Println(errorStyle.Render("Error: no model provider is configured"))
		fmt.Println(infoStyle.Render(config.GetAPIKeyHelp()))
		return nil
	}

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	for {
		if !runAnalyzeWorkflow(a) {
			break
		}
	}

	fmt.Println(subtitleStyle.Render("\nThanks for using ProductLens!"))
	return nil
}

func runAnalyzeWorkflow(a *app) bool {
	// Step 1: keyword and site
	var keyword string
	siteCd := a.cfg.Catalog.SiteCd

	siteOptions := make([]huh.Option[string], 0, len(siteChoices))
	for _, s := range siteChoices {
		siteOptions = append(siteOptions, huh.NewOption(s.name, s.siteCd))
	}

	err := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("검색어").
			Description("Product keyword, e.g. 린넨 셔츠").
			Placeholder("검색어를 입력하세요").
			Validate(func(s string) error {
				if strings.TrimSpace(s) == "" {
					return errors.New("keyword is required")
				}
				return nil
			}).
			Value(&keyword),
		huh.NewSelect[string]().
			Title("사이트").
			Options(siteOptions...).
			Value(&siteCd),
	)).
		WithTheme(huh.ThemeCatppuccin()).
		Run()
	if err != nil {
		if errors.Is(err, huh.ErrUserAborted) {
			return false
		}
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return false
	}

	// Step 2: search
	var hits []catalog.SearchHit
	var searchErr error
	err = spinner.New().
		Title("Searching products...").
		Action(func() {
			ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
			defer cancel()
			hits, searchErr = a.catalog.Search(ctx, siteCd, strings.TrimSpace(keyword))
		}).
		Run()
	if err != nil || searchErr != nil {
		fmt.Println(errorStyle.Render("Search failed: " + firstErr(searchErr, err).Error()))
		return askToContinue()
	}
	if len(hits) == 0 {
		fmt.Println(infoStyle.Render("검색 결과가 없습니다."))
		return askToContinue()
	}

	// Step 3: pick a product
	var prdNo string
	productOptions := make([]huh.Option[string], 0, len(hits))
	for _, h := range hits {
		productOptions = append(productOptions, huh.NewOption(h.Label(), h.PrdNo))
	}
	err = huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title(fmt.Sprintf("검색 결과 (%d건)", len(hits))).
			Options(productOptions...).
			Height(12).
			Value(&prdNo),
	)).
		WithTheme(huh.ThemeCatppuccin()).
		Run()
	if err != nil {
		return askToContinue()
	}

	var product *catalog.Product
	var fetchErr error
	err = spinner.New().
		Title("Loading product " + prdNo + "...").
		Action(func() {
			ctx, cancel := context.WithTimeout(context.Background(), searchTimeout)
			defer cancel()
			product, fetchErr = a.catalog.GetProduct(ctx, prdNo)
		}).
		Run()
	if err != nil || fetchErr != nil {
		fmt.Println(errorStyle.Render("Error: " + firstErr(fetchErr, err).Error()))
		return askToContinue()
	}

	imageCount := len(product.Image.Keys()) + len(analysis.ExtractImageURLs(product.DescriptionHTML))
	fmt.Println(tui.ProductCard(product, imageCount, cardWidth))

	// Step 4: model and image toggle
	model, useImages, ok := askModel(a.cfg)
	if !ok {
		return askToContinue()
	}

	// Step 5: analyze
	feed := tui.NewFeed()
	analyzer := a.analyzer(feed.Progress)
	var res *analysis.AnalysisResult
	err = spinner.New().
		Title(fmt.Sprintf("Analyzing with %s...", model)).
		Action(func() {
			ctx, cancel := context.WithTimeout(context.Background(), analysisTimeout)
			defer cancel()
			res = analyzer.Analyze(ctx, analysis.Request{
				Product:   product,
				Model:     model,
				UseImages: useImages,
			})
		}).
		Run()
	if err != nil {
		fmt.Println(errorStyle.Render("Error: " + err.Error()))
		return askToContinue()
	}

	fmt.Println(tui.RenderFeedBox(feed, "Activity", cardWidth))
	fmt.Println(tui.ResultCard(res, cardWidth))

	// Step 6: full report
	var openReport bool
	err = huh.NewForm(huh.NewGroup(
		huh.NewConfirm().
			Title("Open the full report?").
			Affirmative("Yes").
			Negative("No").
			Value(&openReport),
	)).
		WithTheme(huh.ThemeCatppuccin()).
		Run()
	if err == nil && openReport {
		if err := tui.RunReport(res); err != nil {
			fmt.Println(errorStyle.Render("Error: " + err.Error()))
		}
	}

	return askToContinue()
}

// askModel asks for the model and whether images are sent.
func askModel(cfg *config.Config) (model string, useImages bool, ok bool) {
	configured := make(map[string]bool)
	for _, s := range cfg.CheckProviders() {
		configured[s.Name] = s.Configured
	}

	options := make([]huh.Option[string], 0, len(modelChoices)+1)
	for _, m := range modelChoices {
		options = append(options, huh.NewOption(modelLabel(m, configured[string(provider.Dispatch(m))]), m))
	}
	options = append(options, huh.NewOption("Other model id...", customModel))

	useImages = true
	err := huh.NewForm(huh.NewGroup(
		huh.NewSelect[string]().
			Title("모델 선택").
			Options(options...).
			Value(&model),
		huh.NewConfirm().
			Title("이미지 분석 포함").
			Description("Send product images along with the text").
			Affirmative("Yes").
			Negative("Text only").
			Value(&useImages),
	)).
		WithTheme(huh.ThemeCatppuccin()).
		Run()
	if err != nil {
		return "", false, false
	}

	if model == customModel {
		err = huh.NewForm(huh.NewGroup(
			huh.NewInput().
				Title("Model id").
				Description("Routed by name: gemini*, qwen*, anything else goes to OpenAI").
				Value(&model),
		)).
			WithTheme(huh.ThemeCatppuccin()).
			Run()
		model = strings.TrimSpace(model)
		if err != nil || model == "" {
			return "", false, false
		}
	}
	return model, useImages, true
}

func modelLabel(model string, configured bool) string {
	family := provider.Dispatch(model)
	label := fmt.Sprintf("%s · %s", model, family.DisplayName())
	if !configured {
		label += " (not configured)"
	}
	return label
}

func askToContinue() bool {
	var choice string
	selectNext := huh.NewSelect[string]().
		Title("What next?").
		Options(
			huh.NewOption("Analyze another product", "another"),
			huh.NewOption("Exit", "exit"),
		).
		Value(&choice)

	err := huh.NewForm(huh.NewGroup(selectNext)).
		WithTheme(huh.ThemeCatppuccin()).
		Run()

	if err != nil {
		return false
	}

	return choice == "another"
}

// firstErr returns the first non-nil error.
func firstErr(errs ...error) error {
	for _, err := range errs {
		if err != nil {
			return err
		}
	}
	return nil
}
