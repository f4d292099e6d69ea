package blog

import (
	"fmt"
	"strings"
)

// Selectors locates each field in index and post markup.
type Selectors struct {
	// Container wraps the post list on an index page. Its absence marks the page malformed.
	Container string `mapstructure:"container"`
	Post      string `mapstructure:"post"`
	Title     string `mapstructure:"title"`
	Link      string `mapstructure:"link"`
	Published string `mapstructure:"published"`
	Tags      string `mapstructure:"tags"`
	// NextLabel is the exact text of the link to the next (older) index page.
	NextLabel string `mapstructure:"next_label"`

	// Body wraps the full post text on a detail page.
	Body string `mapstructure:"body"`
	// Detail* selectors are fallbacks read from the post page when the index lacks a field.
	DetailTitle     string `mapstructure:"detail_title"`
	DetailPublished string `mapstructure:"detail_published"`
	DetailTags      string `mapstructure:"detail_tags"`
}

// DefaultSelectors returns selectors for the Divi blog module layout.
func DefaultSelectors() Selectors {
	return Selectors{
		Container:       "div.et_pb_salvattore_content",
		Post:            "article",
		Title:           "h2",
		Link:            "h2 a",
		Published:       "span.published",
		Tags:            "p.post-meta a",
		NextLabel:       "« Older Entries",
		Body:            "div.et_pb_row.et_pb_row_2_tb_body",
		DetailTitle:     "h1.entry-title",
		DetailPublished: "span.published",
		DetailTags:      "p.post-meta a[rel~=tag], p.post-meta a[rel~=category]",
	}
}

// WithDefaults fills empty fields from DefaultSelectors.
func (s Selectors) WithDefaults() Selectors {
	d := DefaultSelectors()
	fill := func(v *string, def string) {
		if strings.TrimSpace(*v) == "" {
			*v = def
		}
	}
	fill(&s.Container, d.Container)
	fill(&s.Post, d.Post)
	fill(&s.Title, d.Title)
	fill(&s.Link, d.Link)
	fill(&s.Published, d.Published)
	fill(&s.Tags, d.Tags)
	fill(&s.NextLabel, d.NextLabel)
	fill(&s.Body, d.Body)
	fill(&s.DetailTitle, d.DetailTitle)
	fill(&s.DetailPublished, d.DetailPublished)
	fill(&s.DetailTags, d.DetailTags)
	return s
}

// Validate reports selectors that cannot work.
func (s Selectors) Validate() error {
	required := map[string]string{
		"selectors.container":  s.Container,
		"selectors.post":       s.Post,
		"selectors.link":       s.Link,
		"selectors.next_label": s.NextLabel,
		"selectors.body":       s.Body,
	}
	for key, v := range required {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("%s must be set", key)
		}
	}
	return nil
}
