package crawler

import (
	"context"
	"time"
)

// PageFetcher resolves a URL to a document or a *FetchError.
type PageFetcher interface {
	Fetch(ctx context.Context, rawURL string) (Page, error)
}

// Clock returns the current time (useful for testing).
type Clock interface {
	Now() time.Time
}

// IDGenerator produces crawl IDs (UUIDs).
type IDGenerator interface {
	NewID() (string, error)
}

// Observer receives crawl progress; the Prometheus collectors satisfy it.
type Observer interface {
	ObservePage(url string, records int, d time.Duration)
	ObserveAuthor(ref AuthorReference, ok bool, d time.Duration)
}

type nopObserver struct{}

func (nopObserver) ObservePage(string, int, time.Duration) {}
func (nopObserver) ObserveAuthor(AuthorReference, bool, time.Duration) {}
