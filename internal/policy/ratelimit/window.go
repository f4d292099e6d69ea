package ratelimit

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/JakeFAU/blogharvest/internal/metrics"
)

// Window admits at most Limit calls within any rolling Period. Callers over
// budget are suspended until the oldest admitted call leaves the window; the
// budget alone never causes a call to fail.
type Window struct {
	mu     sync.Mutex
	limit  int
	period time.Duration
	calls  []time.Time
	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
}

// NewWindow builds a sliding-window limiter.
func NewWindow(limit int, period time.Duration) (*Window, error) {
	return newWindow(limit, period, time.Now, sleepContext)
}

func newWindow(
	limit int,
	period time.Duration,
	now func() time.Time,
	sleep func(context.Context, time.Duration) error,
) (*Window, error) {
	if limit <= 0 {
		return nil, fmt.Errorf("rate limit calls must be > 0, got %d", limit)
	}
	if period <= 0 {
		return nil, fmt.Errorf("rate limit period must be > 0, got %s", period)
	}
	return &Window{
		limit:  limit,
		period: period,
		calls:  make([]time.Time, 0, limit),
		now:    now,
		sleep:  sleep,
	}, nil
}

// Wait blocks until the window has room for one more call and records it.
// The URL is ignored; the budget is global to the crawl.
func (w *Window) Wait(ctx context.Context, _ string) error {
	var waited time.Duration
	for {
		delay := w.reserve()
		if delay <= 0 {
			if waited > 0 {
				metrics.ObserveRateLimitDelay("window", waited)
			}
			return nil
		}
		if err := w.sleep(ctx, delay); err != nil {
			return fmt.Errorf("rate limit wait: %w", err)
		}
		waited += delay
	}
}

// reserve records a call and returns zero when there is room, otherwise it
// returns how long until the oldest call expires.
func (w *Window) reserve() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()

	now := w.now()
	cutoff := now.Add(-w.period)
	expired := 0
	for expired < len(w.calls) && !w.calls[expired].After(cutoff) {
		expired++
	}
	if expired > 0 {
		w.calls = append(w.calls[:0], w.calls[expired:]...)
	}

	if len(w.calls) < w.limit {
		w.calls = append(w.calls, now)
		return 0
	}
	return w.calls[0].Add(w.period).Sub(now)
}

// InFlight returns the number of calls currently counted against the window.
func (w *Window) InFlight() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	cutoff := w.now().Add(-w.period)
	n := 0
	for _, c := range w.calls {
		if c.After(cutoff) {
			n++
		}
	}
	return n
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
