package ratelimit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fakeTime struct {
	now    time.Time
	sleeps []time.Duration
}

func (f *fakeTime) Now() time.Time {
	return f.now
}

func (f *fakeTime) Sleep(_ context.Context, d time.Duration) error {
	f.sleeps = append(f.sleeps, d)
	f.now = f.now.Add(d)
	return nil
}

func TestNewWindowValidates(t *testing.T) {
	t.Parallel()

	_, err := NewWindow(0, time.Second)
	require.Error(t, err)
	_, err = NewWindow(1, 0)
	require.Error(t, err)
	w, err := NewWindow(3, time.Second)
	require.NoError(t, err)
	require.NotNil(t, w)
}

func TestWindowAdmitsUpToLimitWithoutWaiting(t *testing.T) {
	t.Parallel()

	clock := &fakeTime{now: time.Unix(1000, 0)}
	w, err := newWindow(3, time.Minute, clock.Now, clock.Sleep)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		require.NoError(t, w.Wait(context.Background(), "https://example.com"))
	}
	require.Empty(t, clock.sleeps)
	require.Equal(t, 3, w.InFlight())
}

func TestWindowBlocksInsteadOfFailing(t *testing.T) {
	t.Parallel()

	clock := &fakeTime{now: time.Unix(1000, 0)}
	w, err := newWindow(3, time.Minute, clock.Now, clock.Sleep)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		require.NoError(t, w.Wait(context.Background(), "https://example.com"))
	}
	// The 4th call waits for the first batch to age out; the 5th fits in the freed window.
	require.Equal(t, []time.Duration{time.Minute}, clock.sleeps)
	require.Equal(t, 2, w.InFlight())
}

func TestWindowSlidesRatherThanResetting(t *testing.T) {
	t.Parallel()

	clock := &fakeTime{now: time.Unix(1000, 0)}
	w, err := newWindow(2, 10*time.Second, clock.Now, clock.Sleep)
	require.NoError(t, err)

	require.NoError(t, w.Wait(context.Background(), ""))
	clock.now = clock.now.Add(6 * time.Second)
	require.NoError(t, w.Wait(context.Background(), ""))

	// Window holds calls at t=0 and t=6; the third call must wait until t=10.
	require.NoError(t, w.Wait(context.Background(), ""))
	require.Equal(t, []time.Duration{4 * time.Second}, clock.sleeps)

	// The next call waits for the t=6 call to expire at t=16.
	require.NoError(t, w.Wait(context.Background(), ""))
	require.Equal(t, []time.Duration{4 * time.Second, 6 * time.Second}, clock.sleeps)
}

func TestWindowRealClockDelays(t *testing.T) {
	t.Parallel()

	w, err := NewWindow(2, 150*time.Millisecond)
	require.NoError(t, err)

	ctx := context.Background()
	start := time.Now()
	require.NoError(t, w.Wait(ctx, ""))
	require.NoError(t, w.Wait(ctx, ""))
	require.Less(t, time.Since(start), 100*time.Millisecond)

	require.NoError(t, w.Wait(ctx, ""))
	require.GreaterOrEqual(t, time.Since(start), 140*time.Millisecond)
}

func TestWindowWaitHonorsCancellation(t *testing.T) {
	t.Parallel()

	w, err := NewWindow(1, time.Hour)
	require.NoError(t, err)
	require.NoError(t, w.Wait(context.Background(), ""))

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err = w.Wait(ctx, "")
	require.Error(t, err)
	require.True(t, errors.Is(err, context.DeadlineExceeded))
}
