package harvest

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by stores when no row matches an identity.
var ErrNotFound = errors.New("record not found")

// FetchError reports a transport failure or a non-success HTTP status.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0 && e.Err == nil:
		return fmt.Sprintf("fetch %s: status %d", e.URL, e.StatusCode)
	case e.StatusCode != 0:
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ExtractionError reports that a summary could not be turned into a record.
type ExtractionError struct {
	Link   string
	Reason string
	Err    error
}

func (e *ExtractionError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("extract %s: %s: %v", e.Link, e.Reason, e.Err)
	}
	return fmt.Sprintf("extract %s: %s", e.Link, e.Reason)
}

func (e *ExtractionError) Unwrap() error {
	return e.Err
}

// PersistenceError carries enough context to replay a failed upsert by hand.
type PersistenceError struct {
	Identity string
	Title    string
	Err      error
}

func (e *PersistenceError) Error() string {
	return fmt.Sprintf("persist %s (%q): %v", e.Identity, e.Title, e.Err)
}

func (e *PersistenceError) Unwrap() error {
	return e.Err
}
