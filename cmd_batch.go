package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/bytedance/sonic"
	"github.com/schollz/progressbar/v3"

	"productlens/analysis"
	"productlens/catalog"
	"productlens/config"
	"productlens/imaging"
)

// batchOptions holds the flags of the batch command.
type batchOptions struct {
	In          string
	Out         string
	Model       string
	UseImages   bool
	IncludeText bool
}

func parseBatchFlags(args []string) (*batchOptions, error) {
	opts := &batchOptions{}
	fs := flag.NewFlagSet("batch", flag.ContinueOnError)
	fs.StringVar(&opts.In, "in", "", "File with one product number per line (- for stdin)")
	fs.StringVar(&opts.Out, "out", "", "JSON lines output file (default stdout)")
	fs.StringVar(&opts.Model, "model", "gpt-4o-mini", "Model id")
	fs.BoolVar(&opts.UseImages, "images", true, "Send product images")
	fs.BoolVar(&opts.IncludeText, "text", false, "Include the extracted detail text")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	if opts.In == "" {
		return nil, errors.New("batch: -in is required")
	}
	if strings.TrimSpace(opts.Model) == "" {
		return nil, errors.New("batch: -model must not be empty")
	}
	return opts, nil
}

// readProductNumbers returns the non-blank, non-comment lines of r with
// duplicates removed.
func readProductNumbers(r io.Reader) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") || seen[line] {
			continue
		}
		seen[line] = true
		out = append(out, line)
	}
	return out, sc.Err()
}

type productGetter interface {
	GetProduct(ctx context.Context, prdNo string) (*catalog.Product, error)
}

type productAnalyzer interface {
	Analyze(ctx context.Context, req analysis.Request) *analysis.AnalysisResult
}

// batchSummary counts batch outcomes.
type batchSummary struct {
	Total    int
	OK       int
	Failed   int
	TextOnly int
}

// processBatch analyzes every product in order and writes one JSON line per
// product to w. A failing product is written with its error and does not
// stop the batch.
func processBatch(ctx context.Context, products productGetter, a productAnalyzer, prdNos []string, opts *batchOptions, w io.Writer, progress func()) (batchSummary, error) {
	sum := batchSummary{Total: len(prdNos)}
	enc := sonic.ConfigDefault.NewEncoder(w)

	for _, prdNo := range prdNos {
		if err := ctx.Err(); err != nil {
			return sum, err
		}

		var rep analysis.Report
		product, err := products.GetProduct(ctx, prdNo)
		if err != nil {
			rep = analysis.Report{PrdNo: prdNo, Model: opts.Model, Error: err.Error(), Images: []imaging.ImageRef{}}
		} else {
			res := a.Analyze(ctx, analysis.Request{Product: product, Model: opts.Model, UseImages: opts.UseImages})
			rep = res.Report(opts.IncludeText)
		}

		if rep.OK {
			sum.OK++
			if rep.TextOnlyRetry {
				sum.TextOnly++
			}
		} else {
			sum.Failed++
		}

		if err := enc.Encode(rep); err != nil {
			return sum, fmt.Errorf("write result for %s: %w", prdNo, err)
		}
		if progress != nil {
			progress()
		}
	}
	return sum, nil
}

func runBatch(cfg *config.Config, args []string) error {
	opts, err := parseBatchFlags(args)
	if err != nil {
		return err
	}

	logger := newLogger(cfg, os.Stderr, slog.LevelWarn)
	slog.SetDefault(logger)

	in := os.Stdin
	if opts.In != "-" {
		f, err := os.Open(opts.In)
		if err != nil {
			return fmt.Errorf("open input: %w", err)
		}
		defer f.Close()
		in = f
	}
	prdNos, err := readProductNumbers(in)
	if err != nil {
		return fmt.Errorf("read input: %w", err)
	}
	if len(prdNos) == 0 {
		return errors.New("batch: no product numbers in input")
	}

	out := io.Writer(os.Stdout)
	if opts.Out != "" {
		f, err := os.Create(opts.Out)
		if err != nil {
			return fmt.Errorf("create output: %w", err)
		}
		defer f.Close()
		out = f
	}
	bw := bufio.NewWriter(out)
	defer bw.Flush()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	bar := progressbar.NewOptions(
		len(prdNos),
		progressbar.OptionSetWriter(os.Stderr),
		progressbar.OptionSetDescription("Analyzing with "+opts.Model),
		progressbar.OptionThrottle(100*time.Millisecond),
		progressbar.OptionShowCount(),
		progressbar.OptionOnCompletion(func() { fmt.Fprintln(os.Stderr) }),
	)

	sum, err := processBatch(ctx, a.catalog, a.analyzer(nil), prdNos, opts, bw, func() { bar.Add(1) })
	bar.Finish()

	fmt.Fprintln(os.Stderr, infoStyle.Render(fmt.Sprintf(
		"%d analyzed: %d ok (%d text-only), %d failed", sum.Total, sum.OK, sum.TextOnly, sum.Failed)))
	return err
}
