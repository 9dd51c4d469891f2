package crawler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Engine runs one crawl: the listing walk, then the bounded author fan-out.
type Engine struct {
	cfg      Config
	walker   *Walker
	resolver *AuthorResolver
	ids      IDGenerator
	clock    Clock
	observer Observer
	logger   *zap.Logger
}

// NewEngine wires an Engine. ids, clock, observer and logger may be nil.
func NewEngine(
	cfg Config,
	fetcher PageFetcher,
	ids IDGenerator,
	clock Clock,
	observer Observer,
	logger *zap.Logger,
) (*Engine, error) {
	if fetcher == nil {
		return nil, fmt.Errorf("page fetcher is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	origin, err := cfg.Origin()
	if err != nil {
		return nil, err
	}
	if observer == nil {
		observer = nopObserver{}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	extractor := NewExtractor(cfg.Selectors)
	return &Engine{
		cfg:      cfg,
		walker:   NewWalker(fetcher, extractor, origin, cfg.FetchTimeout, observer, logger.Named("walker")),
		resolver: NewAuthorResolver(fetcher, extractor, origin, cfg.FetchTimeout),
		ids:      ids,
		clock:    clock,
		observer: observer,
		logger:   logger,
	}, nil
}

// Run walks the listing to its last page, then resolves every unique author
// reference concurrently. A walk failure discards all records and is returned
// as is. Author failures do not stop sibling resolutions; they are reported in
// CrawlResult.Failures and Run still returns a nil error.
func (e *Engine) Run(ctx context.Context) (CrawlResult, error) {
	crawlID, err := e.newID()
	if err != nil {
		return CrawlResult{}, err
	}
	logger := e.logger.With(zap.String("crawl_id", crawlID))
	started := e.now()
	logger.Info("crawl started", zap.String("start_url", e.cfg.StartURL))

	refs := NewAuthorReferenceSet()
	walk, err := e.walker.Walk(ctx, e.cfg.StartURL, refs)
	if err != nil {
		logger.Error("listing walk failed", zap.Error(err))
		return CrawlResult{}, fmt.Errorf("walk listing: %w", err)
	}
	unique := refs.Drain()
	logger.Info("listing walk finished",
		zap.Int("pages", walk.Pages),
		zap.Int("records", len(walk.Records)),
		zap.Int("unique_authors", len(unique)),
	)

	authors, failures := e.resolveAuthors(ctx, unique, logger)
	result := CrawlResult{
		CrawlID:          crawlID,
		StartedAt:        started,
		FinishedAt:       e.now(),
		PagesWalked:      walk.Pages,
		UniqueReferences: len(unique),
		Records:          walk.Records,
		Authors:          authors,
		Failures:         failures,
	}
	logger.Info("crawl finished",
		zap.Int("authors", len(authors)),
		zap.Int("author_failures", len(failures)),
		zap.Duration("elapsed", result.FinishedAt.Sub(started)),
	)
	if err := ctx.Err(); err != nil {
		return result, fmt.Errorf("crawl canceled: %w", err)
	}
	return result, nil
}

func (e *Engine) resolveAuthors(
	ctx context.Context,
	refs []AuthorReference,
	logger *zap.Logger,
) ([]AuthorRecord, []AuthorFailure) {
	var (
		mu       sync.Mutex
		resolved = make([]resolvedAuthor, 0, len(refs))
		failures []AuthorFailure
		g        errgroup.Group
	)
	g.SetLimit(e.cfg.authorConcurrency())

	for _, ref := range refs {
		g.Go(func() error {
			start := time.Now()
			author, err := e.resolver.Resolve(ctx, ref)
			e.observer.ObserveAuthor(ref, err == nil, time.Since(start))

			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				target, _ := e.resolver.URL(ref)
				logger.Warn("author resolution failed",
					zap.String("reference", string(ref)),
					zap.Error(err),
				)
				failures = append(failures, AuthorFailure{
					Reference: ref,
					URL:       target,
					Err:       err,
					Message:   err.Error(),
				})
				return nil
			}
			resolved = append(resolved, resolvedAuthor{ref: ref, author: author})
			return nil
		})
	}
	_ = g.Wait()

	// Distinct references may share a display name; the reference breaks the tie.
	sort.Slice(resolved, func(i, j int) bool {
		if resolved[i].author.FullName != resolved[j].author.FullName {
			return resolved[i].author.FullName < resolved[j].author.FullName
		}
		return resolved[i].ref < resolved[j].ref
	})
	sort.Slice(failures, func(i, j int) bool { return failures[i].Reference < failures[j].Reference })

	authors := make([]AuthorRecord, 0, len(resolved))
	for _, r := range resolved {
		authors = append(authors, r.author)
	}
	return authors, failures
}

type resolvedAuthor struct {
	ref    AuthorReference
	author AuthorRecord
}

func (e *Engine) newID() (string, error) {
	if e.ids == nil {
		return "", nil
	}
	id, err := e.ids.NewID()
	if err != nil {
		return "", fmt.Errorf("crawl id: %w", err)
	}
	return id, nil
}

func (e *Engine) now() time.Time {
	if e.clock == nil {
		return time.Now().UTC()
	}
	return e.clock.Now()
}
