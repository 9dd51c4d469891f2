package crawler

import (
	"context"
	"errors"
	"time"
)

// fetchPage bounds a single fetch by timeout and guarantees failures surface
// as *FetchError.
func fetchPage(ctx context.Context, f PageFetcher, rawURL string, timeout time.Duration) (Page, error) {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	page, err := f.Fetch(ctx, rawURL)
	if err != nil {
		var fetchErr *FetchError
		if errors.As(err, &fetchErr) {
			return Page{}, err
		}
		return Page{}, &FetchError{URL: rawURL, Err: err}
	}
	if page.URL == "" {
		page.URL = rawURL
	}
	return page, nil
}
