//go:build integration
// +build integration

package main

import (
	"context"
	"os"
	"os/exec"
	"runtime"
	"strings"
	"testing"
	"time"

	"github.com/joho/godotenv"

	"productlens/analysis"
	"productlens/config"
)

func liveApp(t *testing.T) *app {
	t.Helper()
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		t.Fatalf("config.Load() error = %v", err)
	}
	a, err := newApp(cfg, newLogger(cfg, os.Stderr, 0))
	if err != nil {
		t.Fatalf("newApp() error = %v", err)
	}
	t.Cleanup(func() { a.Close() })
	return a
}

// TestIntegration_SearchAndFetch hits the live catalog API.
func TestIntegration_SearchAndFetch(t *testing.T) {
	if os.Getenv("TEST_CATALOG_LIVE") == "" {
		t.Skip("TEST_CATALOG_LIVE not set, skipping live catalog test")
	}
	a := liveApp(t)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	hits, err := a.catalog.Search(ctx, "1", "티셔츠")
	if err != nil {
		t.Fatalf("Search() error = %v", err)
	}
	if len(hits) == 0 {
		t.Skip("no search hits")
	}

	p, err := a.catalog.GetProduct(ctx, hits[0].PrdNo)
	if err != nil {
		t.Fatalf("GetProduct(%s) error = %v", hits[0].PrdNo, err)
	}
	t.Logf("product %s: %s (%d image keys)", p.PrdNo, p.PrdNm, len(p.Image.Keys()))
}

// TestIntegration_Analyze runs a full analysis against a live provider.
func TestIntegration_Analyze(t *testing.T) {
	prdNo := os.Getenv("TEST_PRD_NO")
	model := os.Getenv("TEST_MODEL")
	if prdNo == "" || model == "" {
		t.Skip("TEST_PRD_NO and TEST_MODEL not set, skipping live analysis")
	}
	a := liveApp(t)

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Minute)
	defer cancel()

	p, err := a.catalog.GetProduct(ctx, prdNo)
	if err != nil {
		t.Fatalf("GetProduct() error = %v", err)
	}

	res := a.analyzer(nil).Analyze(ctx, analysis.Request{Product: p, Model: model, UseImages: true})
	if !res.OK() {
		t.Fatalf("analysis failed: %s", res.Failure)
	}
	if len(res.UsedImageRefs) != len(res.Batch) {
		t.Errorf("refs = %d, tiles = %d", len(res.UsedImageRefs), len(res.Batch))
	}
	if err := res.Result.Validate(); err != nil {
		t.Errorf("result does not validate: %v", err)
	}
	t.Logf("%s: %s > %s > %s, %d images, text-only retry %v",
		model, res.Result.CategoryL, res.Result.CategoryM, res.Result.CategoryS, len(res.Batch), res.TextOnlyRetry)
}

// TestIntegration_CLIVersion tests the version flag of a built binary
func TestIntegration_CLIVersion(t *testing.T) {
	binaryName := "productlens"
	if runtime.GOOS == "windows" {
		binaryName = "productlens.exe"
	}

	if _, err := os.Stat(binaryName); os.IsNotExist(err) {
		t.Skip("Binary not found, skipping CLI integration test. Run 'go build' first.")
	}

	output, err := exec.Command("./"+binaryName, "-version").CombinedOutput()
	if err != nil {
		t.Fatalf("Version command failed: %v\nOutput: %s", err, string(output))
	}
	if !strings.Contains(string(output), "productlens") {
		t.Error("Version output should contain 'productlens'")
	}
}
