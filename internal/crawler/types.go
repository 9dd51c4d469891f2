// Package crawler defines core types shared across subsystems.
package crawler

import (
	"errors"
	"net/http"
	"time"
)

// AuthorReference is the relative link identifying an author detail page.
// Two references are equal only when their strings are equal.
type AuthorReference string

// Page is one fetched document.
type Page struct {
	URL        string
	FinalURL   string
	StatusCode int
	Headers    http.Header
	Body       []byte
	Duration   time.Duration
}

// ContentLength reports the size of the fetched body.
func (p Page) ContentLength() int {
	return len(p.Body)
}

// Record is one quote extracted from a listing page.
type Record struct {
	Tags       []string `json:"tags"`
	AuthorName string   `json:"author_name"`
	Text       string   `json:"text"`
}

// ExtractedRecord pairs a Record with the author reference found in the same
// record container.
type ExtractedRecord struct {
	Record    Record
	Reference AuthorReference
}

// AuthorRecord is the author detail extracted from an author page.
type AuthorRecord struct {
	FullName     string `json:"fullname"`
	BornDate     string `json:"born_date"`
	BornLocation string `json:"born_location"`
	Description  string `json:"description"`
}

// AuthorFailure records a reference that could not be resolved.
type AuthorFailure struct {
	Reference AuthorReference `json:"reference"`
	URL       string          `json:"url,omitempty"`
	Err       error           `json:"-"`
	Message   string          `json:"error"`
}

// CrawlResult is the unit handed to the output boundary.
type CrawlResult struct {
	CrawlID          string          `json:"crawl_id"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	PagesWalked      int             `json:"pages_walked"`
	UniqueReferences int             `json:"unique_references"`
	Records          []Record        `json:"-"`
	Authors          []AuthorRecord  `json:"-"`
	Failures         []AuthorFailure `json:"failures,omitempty"`
}

// Err joins every author resolution failure, or returns nil when all
// references resolved.
func (r CrawlResult) Err() error {
	if len(r.Failures) == 0 {
		return nil
	}
	errs := make([]error, 0, len(r.Failures))
	for _, f := range r.Failures {
		errs = append(errs, f.Err)
	}
	return errors.Join(errs...)
}
