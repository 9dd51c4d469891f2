package crawler

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
)

// Walker follows "next" links from a start URL until a page has none.
// It is strictly sequential: each fetch depends on the previous page.
type Walker struct {
	fetcher   PageFetcher
	extractor *Extractor
	origin    Origin
	timeout   time.Duration
	observer  Observer
	logger    *zap.Logger
}

// NewWalker constructs a Walker. A nil observer or logger is replaced by a no-op.
func NewWalker(
	fetcher PageFetcher,
	extractor *Extractor,
	origin Origin,
	timeout time.Duration,
	observer Observer,
	logger *zap.Logger,
) *Walker {
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Walker{
		fetcher:   fetcher,
		extractor: extractor,
		origin:    origin,
		timeout:   timeout,
		observer:  observer,
		logger:    logger,
	}
}

// WalkResult is what a completed walk produced.
type WalkResult struct {
	Records []Record
	Pages   int
}

// Walk visits every listing page reachable through next links, appending
// records in page order and adding each record's author reference to refs.
// Any fetch or extraction failure aborts the walk; revisiting a URL fails
// with a *CrawlError wrapping ErrCycle.
func (w *Walker) Walk(ctx context.Context, startURL string, refs *AuthorReferenceSet) (WalkResult, error) {
	current, err := w.origin.Resolve(startURL)
	if err != nil {
		return WalkResult{}, err
	}

	var result WalkResult
	visited := make(map[string]struct{})
	for {
		if err := ctx.Err(); err != nil {
			return WalkResult{}, fmt.Errorf("walk canceled at %s: %w", current, err)
		}
		key, err := NormalizeURL(current)
		if err != nil {
			return WalkResult{}, &CrawlError{URL: current, Reason: err}
		}
		if _, seen := visited[key]; seen {
			return WalkResult{}, &CrawlError{URL: current, Reason: ErrCycle}
		}
		visited[key] = struct{}{}

		start := time.Now()
		page, err := fetchPage(ctx, w.fetcher, current, w.timeout)
		if err != nil {
			return WalkResult{}, err
		}
		extracted, next, hasNext, err := w.extractor.ExtractListing(page)
		if err != nil {
			return WalkResult{}, err
		}
		for _, rec := range extracted {
			result.Records = append(result.Records, rec.Record)
			refs.Add(rec.Reference)
		}
		result.Pages++
		w.observer.ObservePage(current, len(extracted), time.Since(start))
		w.logger.Debug("listing page walked",
			zap.String("url", current),
			zap.Int("records", len(extracted)),
			zap.Bool("has_next", hasNext),
		)

		if !hasNext {
			return result, nil
		}
		current, err = w.origin.Resolve(next)
		if err != nil {
			return WalkResult{}, err
		}
	}
}
