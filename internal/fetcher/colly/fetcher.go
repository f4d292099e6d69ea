// Package collyfetcher implements harvest.Fetcher using gocolly.
package collyfetcher

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gocolly/colly/v2"
	"go.uber.org/zap"

	"github.com/JakeFAU/blogharvest/internal/harvest"
	"github.com/JakeFAU/blogharvest/internal/metrics"
	"github.com/JakeFAU/blogharvest/internal/policy/ratelimit"
)

const defaultTimeout = 15 * time.Second

// Config controls collector behavior.
type Config struct {
	UserAgent     string
	RespectRobots bool
	Timeout       time.Duration
}

// Fetcher implements harvest.Fetcher using the Colly collector. Every fetch
// first waits on the limiter, so the call budget covers index and detail pages
// alike.
type Fetcher struct {
	cfg           Config
	limiter       ratelimit.Waiter
	baseCollector *colly.Collector
	logger        *zap.Logger
}

type collectorHooks interface {
	OnResponse(colly.ResponseCallback)
	OnError(colly.ErrorCallback)
}

// New builds a Fetcher. A nil limiter disables throttling.
func New(cfg Config, limiter ratelimit.Waiter, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultTimeout
	}
	c := colly.NewCollector(
		colly.Async(false),
		colly.AllowURLRevisit(),
	)
	c.WithTransport(newHTTPTransport())
	if cfg.UserAgent != "" {
		c.UserAgent = cfg.UserAgent
	}
	c.IgnoreRobotsTxt = !cfg.RespectRobots
	c.SetRequestTimeout(cfg.Timeout)

	return &Fetcher{
		cfg:           cfg,
		limiter:       limiter,
		baseCollector: c,
		logger:        logger,
	}
}

// Fetch executes a single HTTP GET. Non-success statuses and transport
// failures are returned as *harvest.FetchError.
func (f *Fetcher) Fetch(ctx context.Context, url string) (harvest.Page, error) {
	if f.limiter != nil {
		if err := f.limiter.Wait(ctx, url); err != nil {
			return harvest.Page{}, fmt.Errorf("wait for fetch budget: %w", err)
		}
	}

	var (
		result   harvest.Page
		fetchErr *harvest.FetchError
	)
	start := time.Now()
	collector := f.baseCollector.Clone()
	f.configureCollectorHooks(collector, url, start, &result, &fetchErr)

	canceled, err := f.runCollector(ctx, collector, url, &fetchErr)
	if canceled {
		// The visit goroutine may still be writing result and fetchErr.
		metrics.ObserveFetch(url, 0, 0, time.Since(start))
		f.logger.Debug("fetch canceled", zap.String("url", url), zap.Error(err))
		return harvest.Page{}, err
	}
	metrics.ObserveFetch(url, statusOf(result, fetchErr), len(result.Body), time.Since(start))
	if err != nil {
		f.logger.Debug("fetch failed", zap.String("url", url), zap.Error(err))
		return harvest.Page{}, err
	}
	f.logger.Debug("fetched",
		zap.String("url", url),
		zap.String("final_url", result.URL),
		zap.Int("status_code", result.StatusCode),
		zap.Int("bytes", len(result.Body)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

func (f *Fetcher) configureCollectorHooks(
	hooks collectorHooks,
	requested string,
	start time.Time,
	result *harvest.Page,
	fetchErr **harvest.FetchError,
) {
	hooks.OnResponse(func(r *colly.Response) {
		*result = harvest.Page{
			RequestedURL: requested,
			URL:          r.Request.URL.String(),
			StatusCode:   r.StatusCode,
			Body:         append([]byte(nil), r.Body...),
			Duration:     time.Since(start),
		}
	})

	hooks.OnError(func(r *colly.Response, err error) {
		fe := &harvest.FetchError{URL: requested, Err: err}
		if r != nil {
			fe.StatusCode = r.StatusCode
		}
		*fetchErr = fe
	})
}

func (f *Fetcher) runCollector(
	ctx context.Context,
	collector *colly.Collector,
	url string,
	fetchErr **harvest.FetchError,
) (canceled bool, err error) {
	done := make(chan error, 1)
	go func() {
		done <- collector.Visit(url)
	}()

	select {
	case <-ctx.Done():
		return true, &harvest.FetchError{URL: url, Err: fmt.Errorf("colly fetch canceled: %w", ctx.Err())}
	case err := <-done:
		if *fetchErr != nil {
			return false, *fetchErr
		}
		if err != nil {
			var fe *harvest.FetchError
			if errors.As(err, &fe) {
				return false, fe
			}
			return false, &harvest.FetchError{URL: url, Err: fmt.Errorf("colly visit failed: %w", err)}
		}
		return false, nil
	}
}

func statusOf(page harvest.Page, fetchErr *harvest.FetchError) int {
	if fetchErr != nil {
		return fetchErr.StatusCode
	}
	return page.StatusCode
}

func newHTTPTransport() *http.Transport {
	return &http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   10 * time.Second,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		TLSHandshakeTimeout:   15 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
	}
}
