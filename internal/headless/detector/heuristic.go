// Package detector decides when a page fetched over plain HTTP must be
// fetched again through a headless browser.
package detector

import (
	"bytes"
	"net/http"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

// DefaultBodyLengthThreshold bounds the size of pages judged by script density.
const DefaultBodyLengthThreshold = 16 << 10

// Reason names the signal that triggered a promotion.
type Reason string

// Promotion reasons. ReasonNone means the probe page is used as fetched.
const (
	ReasonNone         Reason = ""
	ReasonEmptyBody    Reason = "empty_body"
	ReasonUnparsable   Reason = "unparsable"
	ReasonAppShell     Reason = "app_shell"
	ReasonScriptedData Reason = "scripted_data"
	ReasonScriptHeavy  Reason = "script_heavy"
)

var appShellMarkers = [][]byte{
	[]byte("__next"),
	[]byte(`id="root"`),
	[]byte(`id="app"`),
	[]byte("data-reactroot"),
}

// Heuristic judges whether a listing or author page was rendered
// client-side. A page holding any content container is never promoted.
type Heuristic struct {
	BodyLengthThreshold int
	// ContentSelectors match server-rendered content, such as a record
	// container or an author title.
	ContentSelectors []string
}

// NewHeuristic creates a detector. A zero threshold uses
// DefaultBodyLengthThreshold; no selectors means the default record and
// author title selectors.
func NewHeuristic(threshold int, contentSelectors ...string) *Heuristic {
	if threshold <= 0 {
		threshold = DefaultBodyLengthThreshold
	}
	selectors := make([]string, 0, len(contentSelectors))
	for _, s := range contentSelectors {
		if s = strings.TrimSpace(s); s != "" {
			selectors = append(selectors, s)
		}
	}
	if len(selectors) == 0 {
		def := crawler.DefaultSelectors()
		selectors = []string{def.Quote, def.FullName}
	}
	return &Heuristic{BodyLengthThreshold: threshold, ContentSelectors: selectors}
}

// ShouldPromote reports whether a headless fetch is required.
func (h *Heuristic) ShouldPromote(page crawler.Page) bool {
	return h.Evaluate(page) != ReasonNone
}

// Evaluate returns the promotion reason for page, or ReasonNone.
func (h *Heuristic) Evaluate(page crawler.Page) Reason {
	if page.StatusCode != http.StatusOK {
		return ReasonNone
	}
	body := page.Body
	if len(bytes.TrimSpace(body)) == 0 {
		return ReasonEmptyBody
	}
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return ReasonUnparsable
	}
	for _, sel := range h.ContentSelectors {
		if doc.Find(sel).Length() > 0 {
			return ReasonNone
		}
	}
	for _, marker := range appShellMarkers {
		if bytes.Contains(body, marker) {
			return ReasonAppShell
		}
	}

	inline := 0
	doc.Find("script").Each(func(_ int, s *goquery.Selection) {
		inline += len(strings.TrimSpace(s.Text()))
	})
	if inline == 0 {
		// No content and nothing to run: a genuinely empty page.
		return ReasonNone
	}
	if bytes.Contains(body, []byte("document.write")) || bytes.Contains(body, []byte("var data")) {
		return ReasonScriptedData
	}
	if len(body) < h.BodyLengthThreshold && inline*100/len(body) >= 25 {
		return ReasonScriptHeavy
	}
	return ReasonNone
}
