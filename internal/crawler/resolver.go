package crawler

import (
	"context"
	"time"
)

// AuthorResolver turns one author reference into an AuthorRecord. Calls share
// no state, so any number may run at once.
type AuthorResolver struct {
	fetcher   PageFetcher
	extractor *Extractor
	origin    Origin
	timeout   time.Duration
}

// NewAuthorResolver constructs an AuthorResolver.
func NewAuthorResolver(fetcher PageFetcher, extractor *Extractor, origin Origin, timeout time.Duration) *AuthorResolver {
	return &AuthorResolver{
		fetcher:   fetcher,
		extractor: extractor,
		origin:    origin,
		timeout:   timeout,
	}
}

// URL returns the absolute detail page URL for ref.
func (r *AuthorResolver) URL(ref AuthorReference) (string, error) {
	return r.origin.Resolve(string(ref))
}

// Resolve fetches and extracts the author detail page for ref.
func (r *AuthorResolver) Resolve(ctx context.Context, ref AuthorReference) (AuthorRecord, error) {
	target, err := r.URL(ref)
	if err != nil {
		return AuthorRecord{}, err
	}
	page, err := fetchPage(ctx, r.fetcher, target, r.timeout)
	if err != nil {
		return AuthorRecord{}, err
	}
	return r.extractor.ExtractAuthor(page)
}
