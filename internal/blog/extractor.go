package blog

import (
	"bytes"
	"context"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/blogharvest/internal/harvest"
)

// Extractor implements harvest.Extractor by fetching each post's detail page.
type Extractor struct {
	fetcher harvest.Fetcher
	hasher  harvest.Hasher
	sel     Selectors
	logger  *zap.Logger
}

// NewExtractor builds an Extractor.
func NewExtractor(fetcher harvest.Fetcher, hasher harvest.Hasher, sel Selectors, logger *zap.Logger) *Extractor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		fetcher: fetcher,
		hasher:  hasher,
		sel:     sel.WithDefaults(),
		logger:  logger,
	}
}

// Extract fetches the detail page for summary and assembles a PostRecord.
// Index-page fields win; the detail page fills in whatever the index lacked.
// The identity is derived from the URL actually served, after redirects.
func (e *Extractor) Extract(ctx context.Context, summary harvest.PostSummary) (harvest.PostRecord, error) {
	if summary.Link == "" {
		return harvest.PostRecord{}, &harvest.ExtractionError{Reason: "summary has no link"}
	}

	page, err := e.fetcher.Fetch(ctx, summary.Link)
	if err != nil {
		return harvest.PostRecord{}, &harvest.ExtractionError{
			Link:   summary.Link,
			Reason: "fetch detail page",
			Err:    err,
		}
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return harvest.PostRecord{}, &harvest.ExtractionError{Link: summary.Link, Reason: "parse detail page", Err: err}
	}

	body := doc.Find(e.sel.Body).First()
	if body.Length() == 0 {
		return harvest.PostRecord{}, &harvest.ExtractionError{
			Link:   summary.Link,
			Reason: "body container " + e.sel.Body + " missing",
		}
	}

	title := firstNonEmpty(summary.Title, cleanText(doc.Find(e.sel.DetailTitle).First()))
	if title == "" {
		return harvest.PostRecord{}, &harvest.ExtractionError{Link: summary.Link, Reason: "post has no title"}
	}

	publishedText := firstNonEmpty(summary.PublishedText, cleanText(doc.Find(e.sel.DetailPublished).First()))
	published, err := ParsePublished(publishedText)
	if err != nil {
		return harvest.PostRecord{}, &harvest.ExtractionError{Link: summary.Link, Reason: "published date", Err: err}
	}

	tags := summary.Tags
	if len(tags) == 0 {
		tags = texts(doc.Find(e.sel.DetailTags))
	}

	followed := firstNonEmpty(page.URL, summary.Link)
	identity, canonical, err := harvest.DeriveIdentity(e.hasher, followed)
	if err != nil {
		return harvest.PostRecord{}, &harvest.ExtractionError{Link: followed, Reason: "derive identity", Err: err}
	}
	if followed != summary.Link {
		e.logger.Debug("post link redirected",
			zap.String("link", summary.Link),
			zap.String("final_url", followed),
		)
	}

	return harvest.PostRecord{
		Identity:      identity,
		Title:         title,
		PublishedDate: published,
		Link:          canonical,
		Tags:          append([]string(nil), tags...),
		Body:          strings.TrimSpace(body.Text()),
	}, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
