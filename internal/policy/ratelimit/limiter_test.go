package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestHostLimiter_Wait(t *testing.T) {
	l := NewHostLimiter(100 * time.Millisecond)
	ctx := context.Background()

	// First call should be immediate.
	start := time.Now()
	if err := l.Wait(ctx, "https://test.com/a"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if time.Since(start) > 20*time.Millisecond {
		t.Logf("warning: first wait took %v", time.Since(start))
	}

	// Next one on the same host should wait ~100ms.
	start = time.Now()
	if err := l.Wait(ctx, "https://test.com/b"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestHostLimiter_DifferentHosts(t *testing.T) {
	l := NewHostLimiter(time.Second)
	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.com/1"); err != nil {
		t.Fatal(err)
	}

	// Host B should not be blocked by A.
	start := time.Now()
	if err := l.Wait(ctx, "https://b.com/1"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 20*time.Millisecond {
		t.Errorf("host B blocked unexpectedly")
	}
}

func TestHostLimiter_DisabledNeverBlocks(t *testing.T) {
	l := NewHostLimiter(0)
	ctx := context.Background()
	start := time.Now()
	for i := 0; i < 20; i++ {
		if err := l.Wait(ctx, "https://a.com/1"); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("disabled limiter blocked for %v", time.Since(start))
	}
}

type recordingWaiter struct {
	calls []string
	err   error
}

func (r *recordingWaiter) Wait(_ context.Context, url string) error {
	r.calls = append(r.calls, url)
	return r.err
}

func TestChainStopsAtFirstError(t *testing.T) {
	first := &recordingWaiter{}
	failing := &recordingWaiter{err: errors.New("boom")}
	last := &recordingWaiter{}

	err := Chain{first, nil, failing, last}.Wait(context.Background(), "https://a.com")
	if err == nil {
		t.Fatal("expected error from chain")
	}
	if len(first.calls) != 1 || len(failing.calls) != 1 || len(last.calls) != 0 {
		t.Fatalf("unexpected calls: first=%v failing=%v last=%v", first.calls, failing.calls, last.calls)
	}
}
