package main

import (
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"productlens/config"
)

// Build info - set via ldflags
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// Styles
var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#F472B6")).
			MarginBottom(1)

	subtitleStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#4ECDC4")).
			MarginBottom(1)

	errorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FF6B6B"))

	infoStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#A8A8A8"))

	productLensLogo = `
    ╭─────────────────────────────────────────╮
    │  ProductLens - AI Product Attributes    │
    ╰─────────────────────────────────────────╯`
)

const usage = `Usage:
  productlens                 interactive search and analysis
  productlens serve           HTTP API (see SERVER_* variables)
  productlens batch -in FILE  analyze product numbers listed in FILE
  productlens -version        print version information
`

func main() {
	versionFlag := flag.Bool("version", false, "Print version information")
	shortVersionFlag := flag.Bool("v", false, "Print version information (short)")
	flag.Usage = func() {
		fmt.Fprint(flag.CommandLine.Output(), usage)
		flag.PrintDefaults()
	}
	flag.Parse()

	if *versionFlag || *shortVersionFlag {
		printVersion(os.Stdout)
		os.Exit(0)
	}

	// Load .env file if it exists (won't error if missing)
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Println(errorStyle.Render("Configuration error: " + err.Error()))
		os.Exit(1)
	}

	args := flag.Args()
	cmd := ""
	if len(args) > 0 {
		cmd, args = args[0], args[1:]
	}

	switch cmd {
	case "":
		err = runInteractive(cfg)
	case "serve":
		err = runServe(cfg, args)
	case "batch":
		err = runBatch(cfg, args)
	case "help":
		flag.Usage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command %q\n\n", cmd)
		flag.Usage()
		os.Exit(2)
	}

	if err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func printVersion(w io.Writer) {
	fmt.Fprintf(w, "productlens %s\n", version)
	fmt.Fprintf(w, "  commit: %s\n", commit)
	fmt.Fprintf(w, "  built:  %s\n", date)
	fmt.Fprintf(w, "  go:     %s\n", runtime.Version())
	fmt.Fprintf(w, "  os/arch: %s/%s\n", runtime.GOOS, runtime.GOARCH)
}

// newLogger builds the process logger. floor raises the minimum level
// unless debug logging was requested.
func newLogger(cfg *config.Config, w io.Writer, floor slog.Level) *slog.Logger {
	level := cfg.Level()
	if !cfg.Debug && level < floor {
		level = floor
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
