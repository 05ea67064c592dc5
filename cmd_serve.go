package main

import (
	"context"
	"flag"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"productlens/config"
	"productlens/server"
)

func runServe(cfg *config.Config, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	port := fs.String("port", cfg.Server.Port, "Listen port")
	if err := fs.Parse(args); err != nil {
		return err
	}
	cfg.Server.Port = *port

	logger := newLogger(cfg, os.Stderr, slog.LevelDebug)
	slog.SetDefault(logger)

	for _, s := range cfg.CheckProviders() {
		if !s.Configured {
			logger.Warn("provider not configured", "family", s.Name, "env", s.EnvVar)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	h := server.NewHandler(a.catalog, a.analyzer(nil), cfg.Catalog.SiteCd, logger)
	return server.Run(ctx, cfg.Server, h.Routes(cfg.Server), logger)
}
