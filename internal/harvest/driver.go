package harvest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/JakeFAU/blogharvest/internal/metrics"
)

// DriverConfig bounds a crawl run.
type DriverConfig struct {
	StartURL string
	// MaxPages caps the number of index pages scanned; values <= 0 disable the cap.
	MaxPages int
	RunID    string
	// Clock stamps run start and finish; nil uses wall time.
	Clock Clock
}

// Driver walks the "older entries" chain one index page at a time and
// reconciles every post it finds. Pages and posts are processed strictly
// sequentially.
type Driver struct {
	fetcher   Fetcher
	parser    PageParser
	extractor Extractor
	sink      Sink
	cfg       DriverConfig
	logger    *zap.Logger

	mu     sync.RWMutex
	status RunStatus
}

// NewDriver constructs a Driver.
func NewDriver(
	fetcher Fetcher,
	parser PageParser,
	extractor Extractor,
	sink Sink,
	cfg DriverConfig,
	logger *zap.Logger,
) *Driver {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.RunID != "" {
		logger = logger.With(zap.String("run_id", cfg.RunID))
	}
	return &Driver{
		fetcher:   fetcher,
		parser:    parser,
		extractor: extractor,
		sink:      sink,
		cfg:       cfg,
		logger:    logger,
		status:    RunStatus{RunID: cfg.RunID, State: RunPending},
	}
}

// Status returns a snapshot of the run's progress. It is safe to call while
// Run is executing.
func (d *Driver) Status() RunStatus {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.status
}

func (d *Driver) update(fn func(*RunStatus)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	fn(&d.status)
}

func (d *Driver) now() time.Time {
	if d.cfg.Clock == nil {
		return time.Now().UTC()
	}
	return d.cfg.Clock.Now()
}

// Run scans index pages until the chain ends, the page ceiling is reached or
// the chain loops back on itself. The only error returned is a failure to
// fetch an index page (or context cancellation); per-post failures are logged
// and counted in Stats.
func (d *Driver) Run(ctx context.Context) (stats Stats, err error) {
	d.update(func(s *RunStatus) {
		s.State = RunScanning
		s.StartedAt = d.now()
	})
	defer func() {
		d.update(func(s *RunStatus) {
			s.State = RunDone
			if err != nil {
				s.State = RunFailed
				s.Error = err.Error()
			}
			s.Stats = stats
			s.CurrentURL = ""
			s.FinishedAt = d.now()
		})
	}()

	if d.cfg.StartURL == "" {
		return stats, errors.New("start url is required")
	}

	visited := make(map[string]struct{})
	cursor := d.cfg.StartURL
	for cursor != "" {
		if d.cfg.MaxPages > 0 && stats.Pages >= d.cfg.MaxPages {
			stats.StoppedAtCeiling = true
			d.logger.Info("page ceiling reached",
				zap.Int("max_pages", d.cfg.MaxPages),
				zap.String("next_url", cursor),
			)
			break
		}
		if _, seen := visited[cursor]; seen {
			d.logger.Warn("index chain revisits a scanned page; stopping", zap.String("url", cursor))
			break
		}
		visited[cursor] = struct{}{}
		d.update(func(s *RunStatus) { s.CurrentURL = cursor })

		next, err := d.scanPage(ctx, cursor, &stats)
		if err != nil {
			return stats, err
		}
		cursor = next
	}

	d.logger.Info("crawl finished",
		zap.Int("pages", stats.Pages),
		zap.Int("summaries", stats.Summaries),
		zap.Int("inserted", stats.Inserted),
		zap.Int("updated", stats.Updated),
		zap.Int("unchanged", stats.Unchanged),
		zap.Int("failures", stats.Failures()),
		zap.Bool("stopped_at_ceiling", stats.StoppedAtCeiling),
	)
	return stats, nil
}

func (d *Driver) scanPage(ctx context.Context, pageURL string, stats *Stats) (string, error) {
	page, err := d.fetcher.Fetch(ctx, pageURL)
	if err != nil {
		metrics.ObservePage(metrics.PageStatusFetchFailed)
		d.logger.Error("index page fetch failed", zap.String("url", pageURL), zap.Error(err))
		return "", fmt.Errorf("fetch index page %s: %w", pageURL, err)
	}
	stats.Pages++

	result := d.parser.Parse(page)
	metrics.ObservePage(result.Status.String())
	logger := d.logger.With(zap.String("page_url", page.URL), zap.Int("page", stats.Pages))
	switch result.Status {
	case PageMalformed:
		stats.MalformedPages++
		logger.Warn("index page is missing its post container", zap.Bool("has_next", result.HasNext()))
	case PageEmpty:
		logger.Info("index page lists no posts", zap.Bool("has_next", result.HasNext()))
	default:
		logger.Info("scanning index page",
			zap.Int("summaries", len(result.Summaries)),
			zap.Bool("has_next", result.HasNext()),
		)
	}

	for i, summary := range result.Summaries {
		if err := ctx.Err(); err != nil {
			return "", fmt.Errorf("crawl canceled: %w", err)
		}
		stats.Summaries++
		d.processSummary(ctx, logger.With(zap.Int("position", i)), summary, stats)
		snapshot := *stats
		d.update(func(s *RunStatus) { s.Stats = snapshot })
	}
	return result.NextURL, nil
}

func (d *Driver) processSummary(ctx context.Context, logger *zap.Logger, summary PostSummary, stats *Stats) {
	record, err := d.extractor.Extract(ctx, summary)
	if err != nil {
		stats.ExtractFailures++
		metrics.ObserveRecord(metrics.RecordExtractFailed)
		logger.Error("post extraction failed",
			zap.String("link", summary.Link),
			zap.String("title", summary.Title),
			zap.Error(err),
		)
		return
	}

	outcome, err := d.sink.Upsert(ctx, record)
	if err != nil {
		stats.PersistFailures++
		metrics.ObserveRecord(metrics.RecordPersistFailed)
		var perr *PersistenceError
		if !errors.As(err, &perr) {
			err = &PersistenceError{Identity: record.Identity, Title: record.Title, Err: err}
		}
		logger.Error("post upsert failed",
			zap.String("identity", record.Identity),
			zap.String("title", record.Title),
			zap.String("link", record.Link),
			zap.Error(err),
		)
		return
	}

	switch outcome {
	case OutcomeInserted:
		stats.Inserted++
	case OutcomeUpdated:
		stats.Updated++
	default:
		stats.Unchanged++
	}
	metrics.ObserveRecord(string(outcome))
	logger.Info("post reconciled",
		zap.String("identity", record.Identity),
		zap.String("title", record.Title),
		zap.String("outcome", string(outcome)),
	)
}
