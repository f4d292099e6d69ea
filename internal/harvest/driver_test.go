package harvest

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

type fetcherFunc func(ctx context.Context, url string) (Page, error)

func (f fetcherFunc) Fetch(ctx context.Context, url string) (Page, error) { return f(ctx, url) }

type parserFunc func(page Page) PageResult

func (f parserFunc) Parse(page Page) PageResult { return f(page) }

type extractorFunc func(ctx context.Context, summary PostSummary) (PostRecord, error)

func (f extractorFunc) Extract(ctx context.Context, summary PostSummary) (PostRecord, error) {
	return f(ctx, summary)
}

type recordingSink struct {
	records map[string]PostRecord
	fail    map[string]error
}

func newRecordingSink() *recordingSink {
	return &recordingSink{records: map[string]PostRecord{}, fail: map[string]error{}}
}

func (s *recordingSink) Upsert(_ context.Context, record PostRecord) (Outcome, error) {
	if err, ok := s.fail[record.Identity]; ok {
		return "", err
	}
	if existing, ok := s.records[record.Identity]; ok {
		s.records[record.Identity] = record
		if existing.Title == record.Title {
			return OutcomeUnchanged, nil
		}
		return OutcomeUpdated, nil
	}
	s.records[record.Identity] = record
	return OutcomeInserted, nil
}

// echoFetcher serves every URL successfully and records the call order.
func echoFetcher(calls *[]string) Fetcher {
	return fetcherFunc(func(_ context.Context, url string) (Page, error) {
		*calls = append(*calls, url)
		return Page{RequestedURL: url, URL: url, StatusCode: 200}, nil
	})
}

// chainParser gives each page in order one post and a link to the next page.
func chainParser(pages ...string) PageParser {
	next := map[string]string{}
	for i := 0; i+1 < len(pages); i++ {
		next[pages[i]] = pages[i+1]
	}
	return parserFunc(func(page Page) PageResult {
		return PageResult{
			Status:    PageOK,
			Summaries: []PostSummary{{Link: page.URL + "post", Title: "post on " + page.URL}},
			NextURL:   next[page.URL],
		}
	})
}

// identityExtractor uses the link as identity.
var identityExtractor = extractorFunc(func(_ context.Context, s PostSummary) (PostRecord, error) {
	return PostRecord{Identity: s.Link, Title: s.Title, Link: s.Link}, nil
})

func TestDriverStopsWhenChainEnds(t *testing.T) {
	t.Parallel()

	var calls []string
	sink := newRecordingSink()
	driver := NewDriver(
		echoFetcher(&calls),
		chainParser("https://b/1/", "https://b/2/", "https://b/3/"),
		identityExtractor,
		sink,
		DriverConfig{StartURL: "https://b/1/", MaxPages: 500, RunID: "run-1"},
		nil,
	)

	stats, err := driver.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, []string{"https://b/1/", "https://b/2/", "https://b/3/"}, calls)
	require.Equal(t, 3, stats.Pages)
	require.Equal(t, 3, stats.Inserted)
	require.False(t, stats.StoppedAtCeiling)
	require.Len(t, sink.records, 3)
}

func TestDriverHonorsPageCeiling(t *testing.T) {
	t.Parallel()

	var calls []string
	endless := parserFunc(func(page Page) PageResult {
		return PageResult{Status: PageEmpty, NextURL: fmt.Sprintf("%s%d/", page.URL, len(page.URL))}
	})
	driver := NewDriver(echoFetcher(&calls), endless, identityExtractor, newRecordingSink(),
		DriverConfig{StartURL: "https://b/", MaxPages: 5}, nil)

	stats, err := driver.Run(context.Background())
	require.NoError(t, err)
	require.Len(t, calls, 5)
	require.Equal(t, 5, stats.Pages)
	require.True(t, stats.StoppedAtCeiling)
}

func TestDriverIsolatesExtractionFailures(t *testing.T) {
	t.Parallel()

	var calls []string
	parser := parserFunc(func(Page) PageResult {
		return PageResult{Status: PageOK, Summaries: []PostSummary{
			{Link: "https://b/p1", Title: "one"},
			{Link: "https://b/p2", Title: "two"},
			{Link: "https://b/p3", Title: "three"},
		}}
	})
	extractor := extractorFunc(func(ctx context.Context, s PostSummary) (PostRecord, error) {
		if s.Link == "https://b/p2" {
			return PostRecord{}, &ExtractionError{Link: s.Link, Reason: "detail fetch failed",
				Err: &FetchError{URL: s.Link, StatusCode: 500}}
		}
		return identityExtractor(ctx, s)
	})
	sink := newRecordingSink()
	driver := NewDriver(echoFetcher(&calls), parser, extractor, sink, DriverConfig{StartURL: "https://b/"}, nil)

	stats, err := driver.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, stats.Summaries)
	require.Equal(t, 2, stats.Inserted)
	require.Equal(t, 1, stats.ExtractFailures)
	require.Equal(t, 1, stats.Failures())
	require.Contains(t, sink.records, "https://b/p1")
	require.Contains(t, sink.records, "https://b/p3")
	require.NotContains(t, sink.records, "https://b/p2")
}

func TestDriverIsolatesPersistenceFailures(t *testing.T) {
	t.Parallel()

	var calls []string
	sink := newRecordingSink()
	sink.fail["https://b/2/post"] = errors.New("deadlock")
	driver := NewDriver(echoFetcher(&calls), chainParser("https://b/1/", "https://b/2/", "https://b/3/"),
		identityExtractor, sink, DriverConfig{StartURL: "https://b/1/"}, nil)

	stats, err := driver.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 3, stats.Pages)
	require.Equal(t, 2, stats.Inserted)
	require.Equal(t, 1, stats.PersistFailures)
}

func TestDriverIndexFetchFailureIsFatal(t *testing.T) {
	t.Parallel()

	fetcher := fetcherFunc(func(_ context.Context, url string) (Page, error) {
		if url == "https://b/2/" {
			return Page{}, &FetchError{URL: url, StatusCode: 503}
		}
		return Page{RequestedURL: url, URL: url, StatusCode: 200}, nil
	})
	driver := NewDriver(fetcher, chainParser("https://b/1/", "https://b/2/", "https://b/3/"),
		identityExtractor, newRecordingSink(), DriverConfig{StartURL: "https://b/1/"}, nil)

	stats, err := driver.Run(context.Background())
	var ferr *FetchError
	require.ErrorAs(t, err, &ferr)
	require.Equal(t, 503, ferr.StatusCode)
	require.Equal(t, 1, stats.Pages)
	require.Equal(t, 1, stats.Inserted)
}

func TestDriverContinuesPastMalformedPage(t *testing.T) {
	t.Parallel()

	var calls []string
	parser := parserFunc(func(page Page) PageResult {
		if page.URL == "https://b/1/" {
			return PageResult{Status: PageMalformed, NextURL: "https://b/2/"}
		}
		return PageResult{Status: PageOK, Summaries: []PostSummary{{Link: "https://b/p", Title: "p"}}}
	})
	driver := NewDriver(echoFetcher(&calls), parser, identityExtractor, newRecordingSink(),
		DriverConfig{StartURL: "https://b/1/"}, nil)

	stats, err := driver.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Pages)
	require.Equal(t, 1, stats.MalformedPages)
	require.Equal(t, 1, stats.Inserted)
}

func TestDriverStopsOnCycle(t *testing.T) {
	t.Parallel()

	var calls []string
	parser := parserFunc(func(page Page) PageResult {
		next := map[string]string{"https://b/1/": "https://b/2/", "https://b/2/": "https://b/1/"}
		return PageResult{Status: PageEmpty, NextURL: next[page.URL]}
	})
	driver := NewDriver(echoFetcher(&calls), parser, identityExtractor, newRecordingSink(),
		DriverConfig{StartURL: "https://b/1/", MaxPages: 100}, nil)

	stats, err := driver.Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Pages)
	require.False(t, stats.StoppedAtCeiling)
}

func TestDriverRerunIsIdempotent(t *testing.T) {
	t.Parallel()

	sink := newRecordingSink()
	newDriver := func(calls *[]string) *Driver {
		return NewDriver(echoFetcher(calls), chainParser("https://b/1/", "https://b/2/"),
			identityExtractor, sink, DriverConfig{StartURL: "https://b/1/"}, nil)
	}

	var first, second []string
	stats, err := newDriver(&first).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 2, stats.Inserted)

	stats, err = newDriver(&second).Run(context.Background())
	require.NoError(t, err)
	require.Equal(t, 0, stats.Inserted)
	require.Equal(t, 2, stats.Unchanged)
	require.Len(t, sink.records, 2)
}

func TestDriverHonorsCancellation(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var calls []string
	_, err := NewDriver(echoFetcher(&calls), chainParser("https://b/1/"), identityExtractor, newRecordingSink(),
		DriverConfig{StartURL: "https://b/1/"}, nil).Run(ctx)
	require.ErrorIs(t, err, context.Canceled)
}

func TestDriverRequiresStartURL(t *testing.T) {
	t.Parallel()

	_, err := NewDriver(nil, nil, nil, nil, DriverConfig{}, nil).Run(context.Background())
	require.Error(t, err)
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

func TestDriverStatusTracksRun(t *testing.T) {
	t.Parallel()

	var calls []string
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	driver := NewDriver(echoFetcher(&calls), chainParser("https://b/1/", "https://b/2/"), identityExtractor,
		newRecordingSink(), DriverConfig{StartURL: "https://b/1/", RunID: "run-7", Clock: fixedClock{at}}, nil)

	before := driver.Status()
	require.Equal(t, RunPending, before.State)
	require.Equal(t, "run-7", before.RunID)

	stats, err := driver.Run(context.Background())
	require.NoError(t, err)

	after := driver.Status()
	require.Equal(t, RunDone, after.State)
	require.Equal(t, stats, after.Stats)
	require.Empty(t, after.CurrentURL)
	require.Equal(t, at, after.StartedAt)
	require.Equal(t, at, after.FinishedAt)
}

func TestDriverStatusRecordsFailure(t *testing.T) {
	t.Parallel()

	fetcher := fetcherFunc(func(_ context.Context, url string) (Page, error) {
		return Page{}, &FetchError{URL: url, StatusCode: 502}
	})
	driver := NewDriver(fetcher, chainParser("https://b/1/"), identityExtractor, newRecordingSink(),
		DriverConfig{StartURL: "https://b/1/"}, nil)

	_, err := driver.Run(context.Background())
	require.Error(t, err)

	status := driver.Status()
	require.Equal(t, RunFailed, status.State)
	require.Contains(t, status.Error, "status 502")
}
