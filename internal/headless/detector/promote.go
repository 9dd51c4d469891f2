package detector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

// PromotingFetcher fetches with a cheap probe and repeats the fetch through a
// headless browser when the Heuristic judges the probe's body to be rendered
// client-side.
type PromotingFetcher struct {
	probe     crawler.PageFetcher
	headless  crawler.PageFetcher
	heuristic *Heuristic
	logger    *zap.Logger
}

// NewPromotingFetcher wires the probe and headless fetchers.
func NewPromotingFetcher(probe, headless crawler.PageFetcher, h *Heuristic, logger *zap.Logger) (*PromotingFetcher, error) {
	if probe == nil || headless == nil {
		return nil, fmt.Errorf("probe and headless fetchers are required")
	}
	if h == nil {
		h = NewHeuristic(0)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PromotingFetcher{probe: probe, headless: headless, heuristic: h, logger: logger}, nil
}

// Fetch implements crawler.PageFetcher. Probe failures are returned as is.
func (f *PromotingFetcher) Fetch(ctx context.Context, rawURL string) (crawler.Page, error) {
	page, err := f.probe.Fetch(ctx, rawURL)
	if err != nil {
		return page, err
	}
	reason := f.heuristic.Evaluate(page)
	if reason == ReasonNone {
		return page, nil
	}
	f.logger.Debug("promoting to headless fetch",
		zap.String("url", rawURL),
		zap.String("reason", string(reason)),
		zap.Int("probe_bytes", page.ContentLength()),
	)
	probeTime := page.Duration
	rendered, err := f.headless.Fetch(ctx, rawURL)
	if err != nil {
		return rendered, err
	}
	rendered.Duration += probeTime
	return rendered, nil
}

var _ crawler.PageFetcher = (*PromotingFetcher)(nil)
