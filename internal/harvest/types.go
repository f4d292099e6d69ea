package harvest

import "time"

// IdentityLength is the number of hex characters kept from the link digest.
const IdentityLength = 16

// Page is the raw result of fetching one URL.
type Page struct {
	RequestedURL string
	// URL is the final URL after redirects.
	URL        string
	StatusCode int
	Body       []byte
	Duration   time.Duration
}

// PostSummary is what an index page exposes about a single post.
type PostSummary struct {
	Link          string
	Title         string
	PublishedText string
	Tags          []string
}

// PostRecord is the unit of persistence.
type PostRecord struct {
	Identity      string
	Title         string
	PublishedDate time.Time
	Link          string
	Tags          []string
	Body          string
	// InsertedAt and UpdatedAt are populated by stores on read only.
	InsertedAt time.Time
	UpdatedAt  time.Time
}

// PageStatus classifies the outcome of parsing an index page.
type PageStatus int

// Index page classifications.
const (
	// PageOK means at least one summary was found.
	PageOK PageStatus = iota
	// PageEmpty means the listing container exists but holds no posts.
	PageEmpty
	// PageMalformed means the listing container is missing from the markup.
	PageMalformed
)

func (s PageStatus) String() string {
	switch s {
	case PageOK:
		return "ok"
	case PageEmpty:
		return "empty"
	case PageMalformed:
		return "malformed"
	default:
		return "unknown"
	}
}

// PageResult is returned by a PageParser. NextURL is empty when the chain ends.
type PageResult struct {
	Status    PageStatus
	Summaries []PostSummary
	NextURL   string
}

// HasNext reports whether the index chain continues past this page.
func (r PageResult) HasNext() bool {
	return r.NextURL != ""
}

// Outcome reports what an upsert did to the stored row.
type Outcome string

// Upsert outcomes.
const (
	OutcomeInserted  Outcome = "inserted"
	OutcomeUpdated   Outcome = "updated"
	OutcomeUnchanged Outcome = "unchanged"
)

// Stats summarizes a crawl run.
type Stats struct {
	Pages            int  `json:"pages"`
	MalformedPages   int  `json:"malformed_pages"`
	Summaries        int  `json:"summaries"`
	Inserted         int  `json:"inserted"`
	Updated          int  `json:"updated"`
	Unchanged        int  `json:"unchanged"`
	ExtractFailures  int  `json:"extract_failures"`
	PersistFailures  int  `json:"persist_failures"`
	StoppedAtCeiling bool `json:"stopped_at_ceiling"`
}

// Failures returns the number of summaries that did not reach the store.
func (s Stats) Failures() int {
	return s.ExtractFailures + s.PersistFailures
}

// RunState is the coarse lifecycle of a crawl run.
type RunState string

// Run states.
const (
	RunPending  RunState = "pending"
	RunScanning RunState = "scanning"
	RunDone     RunState = "done"
	RunFailed   RunState = "failed"
)

// RunStatus is a point-in-time view of a run, safe to share across goroutines.
type RunStatus struct {
	RunID      string    `json:"run_id"`
	State      RunState  `json:"state"`
	CurrentURL string    `json:"current_url,omitempty"`
	Stats      Stats     `json:"stats"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}
