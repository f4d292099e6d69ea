// Package ratelimit implements the throttles consulted before every fetch: a
// sliding-window call budget and an optional per-host politeness delay.
package ratelimit

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/JakeFAU/blogharvest/internal/metrics"
)

// Waiter blocks until a request to url may proceed.
type Waiter interface {
	Wait(ctx context.Context, url string) error
}

// HostLimiter spaces out requests to the same host.
type HostLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	every    rate.Limit
}

// NewHostLimiter returns a limiter that allows one request per host every delay.
// A non-positive delay disables spacing.
func NewHostLimiter(delay time.Duration) *HostLimiter {
	every := rate.Inf
	if delay > 0 {
		every = rate.Every(delay)
	}
	return &HostLimiter{
		limiters: make(map[string]*rate.Limiter),
		every:    every,
	}
}

// Wait blocks until a token is available for the URL's host, respecting the context.
func (l *HostLimiter) Wait(ctx context.Context, rawURL string) error {
	host := "unknown"
	if u, err := url.Parse(rawURL); err == nil && u.Hostname() != "" {
		host = u.Hostname()
	}
	l.mu.Lock()
	limiter, exists := l.limiters[host]
	if !exists {
		limiter = rate.NewLimiter(l.every, 1)
		l.limiters[host] = limiter
	}
	l.mu.Unlock()

	start := time.Now()
	if err := limiter.Wait(ctx); err != nil {
		return fmt.Errorf("host limiter wait: %w", err)
	}
	if waited := time.Since(start); waited > time.Millisecond {
		metrics.ObserveRateLimitDelay("host", waited)
	}
	return nil
}

// Chain consults each waiter in order.
type Chain []Waiter

// Wait implements Waiter.
func (c Chain) Wait(ctx context.Context, rawURL string) error {
	for _, w := range c {
		if w == nil {
			continue
		}
		if err := w.Wait(ctx, rawURL); err != nil {
			return err
		}
	}
	return nil
}
