package blog

import (
	"bytes"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"go.uber.org/zap"

	"github.com/JakeFAU/blogharvest/internal/harvest"
)

// Parser implements harvest.PageParser for blog index pages.
type Parser struct {
	sel    Selectors
	logger *zap.Logger
}

// NewParser builds a Parser; empty selectors fall back to the defaults.
func NewParser(sel Selectors, logger *zap.Logger) *Parser {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Parser{sel: sel.WithDefaults(), logger: logger}
}

// Parse extracts the ordered post summaries and the older-entries link.
// A missing post container yields PageMalformed with no summaries; the next
// link is still looked up so the crawl can move past the bad page.
func (p *Parser) Parse(page harvest.Page) harvest.PageResult {
	base := page.URL
	if base == "" {
		base = page.RequestedURL
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		p.logger.Warn("index page could not be parsed",
			zap.String("url", base),
			zap.Error(err),
		)
		return harvest.PageResult{Status: harvest.PageMalformed}
	}

	result := harvest.PageResult{NextURL: p.nextLink(doc, base)}

	container := doc.Find(p.sel.Container).First()
	if container.Length() == 0 {
		p.logger.Warn("post container missing from index page",
			zap.String("url", base),
			zap.String("selector", p.sel.Container),
			zap.Int("bytes", len(page.Body)),
		)
		result.Status = harvest.PageMalformed
		return result
	}

	container.Find(p.sel.Post).Each(func(i int, s *goquery.Selection) {
		summary, ok := p.summary(s, base)
		if !ok {
			p.logger.Warn("post without a link skipped",
				zap.String("url", base),
				zap.Int("position", i),
			)
			return
		}
		result.Summaries = append(result.Summaries, summary)
	})

	if len(result.Summaries) == 0 {
		result.Status = harvest.PageEmpty
	} else {
		result.Status = harvest.PageOK
	}
	return result
}

func (p *Parser) summary(s *goquery.Selection, base string) (harvest.PostSummary, bool) {
	href, _ := s.Find(p.sel.Link).First().Attr("href")
	link, err := harvest.ResolveLink(base, href)
	if err != nil || link == "" {
		return harvest.PostSummary{}, false
	}
	return harvest.PostSummary{
		Link:          link,
		Title:         cleanText(s.Find(p.sel.Title).First()),
		PublishedText: cleanText(s.Find(p.sel.Published).First()),
		Tags:          texts(s.Find(p.sel.Tags)),
	}, true
}

func (p *Parser) nextLink(doc *goquery.Document, base string) string {
	label := strings.TrimSpace(p.sel.NextLabel)
	next := doc.Find("a[href]").FilterFunction(func(_ int, a *goquery.Selection) bool {
		return strings.TrimSpace(a.Text()) == label
	}).First()
	if next.Length() == 0 {
		return ""
	}
	href, _ := next.Attr("href")
	link, err := harvest.ResolveLink(base, href)
	if err != nil {
		p.logger.Warn("next page link is not a valid url",
			zap.String("url", base),
			zap.String("href", href),
			zap.Error(err),
		)
		return ""
	}
	return link
}

func cleanText(s *goquery.Selection) string {
	return strings.Join(strings.Fields(s.Text()), " ")
}

func texts(s *goquery.Selection) []string {
	var out []string
	s.Each(func(_ int, item *goquery.Selection) {
		if t := cleanText(item); t != "" {
			out = append(out, t)
		}
	})
	return out
}
