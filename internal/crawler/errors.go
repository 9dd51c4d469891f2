package crawler

import (
	"errors"
	"fmt"
)

var (
	// ErrCycle marks a pagination step that would revisit a URL.
	ErrCycle = errors.New("pagination cycle")
	// ErrOutsideOrigin marks a URL that falls outside the allowed origin.
	ErrOutsideOrigin = errors.New("url outside allowed origin")
)

// FetchError reports a transport failure, timeout, or non-success status.
type FetchError struct {
	URL        string
	StatusCode int
	Err        error
}

func (e *FetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("fetch %s: status %d: %v", e.URL, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("fetch %s: %v", e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// ExtractionError reports an expected field or link missing from a page that
// was fetched successfully. Index is the zero-based record container, or -1
// when the field belongs to the page itself.
type ExtractionError struct {
	URL   string
	Field string
	Index int
}

func (e *ExtractionError) Error() string {
	if e.Index >= 0 {
		return fmt.Sprintf("extract %s: record %d: missing %s", e.URL, e.Index, e.Field)
	}
	return fmt.Sprintf("extract %s: missing %s", e.URL, e.Field)
}

// CrawlError reports a crawl-integrity violation such as a pagination cycle.
type CrawlError struct {
	URL    string
	Reason error
}

func (e *CrawlError) Error() string {
	return fmt.Sprintf("crawl %s: %v", e.URL, e.Reason)
}

func (e *CrawlError) Unwrap() error {
	return e.Reason
}
