package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/JakeFAU/blogharvest/internal/app"
	"github.com/JakeFAU/blogharvest/internal/config"
	"github.com/JakeFAU/blogharvest/internal/logging"
)

func main() {
	os.Exit(run())
}

func run() int {
	cfgPath := flag.String("config", "", "Path to config file")
	flag.Parse()

	cfg, err := config.Load(*cfgPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config failed: %v\n", err)
		return 1
	}
	logger, err := logging.New(logging.Config{
		Development: cfg.Logging.Development,
		File:        cfg.Logging.File,
		MaxSizeMB:   cfg.Logging.MaxSizeMB,
		MaxBackups:  cfg.Logging.MaxBackups,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "logger init failed: %v\n", err)
		return 1
	}
	defer func() {
		_ = logger.Sync()
	}()
	zap.ReplaceGlobals(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	stats, err := app.Run(ctx, cfg, logger, app.Options{})
	if err != nil {
		logger.Error("crawl failed", zap.Error(err), zap.Int("pages", stats.Pages))
		return 1
	}
	if stats.Failures() > 0 {
		logger.Warn("crawl completed with post failures",
			zap.Int("extract_failures", stats.ExtractFailures),
			zap.Int("persist_failures", stats.PersistFailures),
		)
	}
	return 0
}
