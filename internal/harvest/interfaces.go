package harvest

import (
	"context"
	"time"
)

// Fetcher retrieves a URL and returns its body plus metadata.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (Page, error)
}

// PageParser turns an index page into post summaries and the next page link.
type PageParser interface {
	Parse(page Page) PageResult
}

// Extractor resolves a summary into a complete record.
type Extractor interface {
	Extract(ctx context.Context, summary PostSummary) (PostRecord, error)
}

// Sink persists records keyed by identity.
type Sink interface {
	Upsert(ctx context.Context, record PostRecord) (Outcome, error)
}

// Store is a Sink whose handle must be released.
type Store interface {
	Sink
	Get(ctx context.Context, identity string) (PostRecord, error)
	Close() error
}

// Hasher computes digests for identities.
type Hasher interface {
	Hash(data []byte) (string, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces run IDs.
type IDGenerator interface {
	NewID() (string, error)
}
