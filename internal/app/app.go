// Package app assembles the harvester's services for a single crawl run.
package app

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/blogharvest/internal/api"
	"github.com/JakeFAU/blogharvest/internal/blog"
	"github.com/JakeFAU/blogharvest/internal/clock/system"
	"github.com/JakeFAU/blogharvest/internal/config"
	collyfetcher "github.com/JakeFAU/blogharvest/internal/fetcher/colly"
	"github.com/JakeFAU/blogharvest/internal/harvest"
	"github.com/JakeFAU/blogharvest/internal/hash/sha256"
	"github.com/JakeFAU/blogharvest/internal/id/uuid"
	"github.com/JakeFAU/blogharvest/internal/policy/ratelimit"
	"github.com/JakeFAU/blogharvest/internal/storage"
)

// Options overrides collaborators for tests. Zero values use the real ones.
type Options struct {
	Clock harvest.Clock
	IDGen harvest.IDGenerator
}

// Run performs one crawl. The store is opened here and closed before Run
// returns on every path. Per-post failures are reported in Stats; the returned
// error covers startup and index-page failures.
func Run(ctx context.Context, cfg config.Config, logger *zap.Logger, opts Options) (stats harvest.Stats, err error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if opts.Clock == nil {
		opts.Clock = system.New()
	}
	if opts.IDGen == nil {
		opts.IDGen = uuid.New()
	}

	runID, err := opts.IDGen.NewID()
	if err != nil {
		return stats, fmt.Errorf("run id: %w", err)
	}
	logger = logger.With(zap.String("run_id", runID))

	window, err := ratelimit.NewWindow(cfg.RateLimit.Calls, cfg.RateLimitPeriod())
	if err != nil {
		return stats, fmt.Errorf("rate limiter: %w", err)
	}
	limiter := ratelimit.Chain{window}
	if cfg.CrawlDelay() > 0 {
		limiter = append(limiter, ratelimit.NewHostLimiter(cfg.CrawlDelay()))
	}

	store, err := storage.Open(ctx, cfg.StoreConfig(), opts.Clock, logger.Named("storage"))
	if err != nil {
		return stats, err
	}
	defer func() {
		if closeErr := store.Close(); closeErr != nil {
			logger.Warn("store close failed", zap.Error(closeErr))
			err = errors.Join(err, fmt.Errorf("close store: %w", closeErr))
		}
	}()

	fetcher := collyfetcher.New(collyfetcher.Config{
		UserAgent:     cfg.Crawl.UserAgent,
		RespectRobots: cfg.Crawl.RespectRobots,
		Timeout:       cfg.HTTPTimeout(),
	}, limiter, logger.Named("fetcher"))

	driver := harvest.NewDriver(
		fetcher,
		blog.NewParser(cfg.Selectors, logger.Named("parser")),
		blog.NewExtractor(fetcher, sha256.New(), cfg.Selectors, logger.Named("extractor")),
		store,
		harvest.DriverConfig{
			StartURL: cfg.Crawl.BaseURL,
			MaxPages: cfg.Crawl.MaxPages,
			RunID:    runID,
			Clock:    opts.Clock,
		},
		logger.Named("driver"),
	)

	if cfg.Metrics.Addr != "" {
		serveCtx, stopServer := context.WithCancel(ctx)
		serverDone := make(chan struct{})
		go func() {
			defer close(serverDone)
			if serveErr := api.NewServer(driver, logger.Named("api")).Serve(serveCtx, cfg.Metrics.Addr); serveErr != nil {
				logger.Error("status endpoint failed", zap.Error(serveErr))
			}
		}()
		defer func() {
			stopServer()
			<-serverDone
		}()
	}

	logger.Info("crawl starting",
		zap.String("base_url", cfg.Crawl.BaseURL),
		zap.Int("max_pages", cfg.Crawl.MaxPages),
		zap.String("storage_driver", cfg.Storage.Driver),
		zap.Int("rate_limit_calls", cfg.RateLimit.Calls),
		zap.Duration("rate_limit_period", cfg.RateLimitPeriod()),
	)
	return driver.Run(ctx)
}
