package crawler

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

const testOrigin = "https://quotes.test/"

type testQuote struct {
	text   string
	author string
	link   string
	tags   []string
}

func listingHTML(quotes []testQuote, next string) string {
	var b strings.Builder
	b.WriteString(`<html><body><div class="col-md-8">`)
	for _, q := range quotes {
		b.WriteString(`<div class="quote">`)
		fmt.Fprintf(&b, `<span class="text">%s</span>`, q.text)
		fmt.Fprintf(&b, `<span>by <small class="author">%s</small> <a href="%s">(about)</a></span>`, q.author, q.link)
		b.WriteString(`<div class="tags">Tags:`)
		for _, t := range q.tags {
			fmt.Fprintf(&b, ` <a class="tag" href="/tag/%s/">%s</a>`, t, t)
		}
		b.WriteString(`</div></div>`)
	}
	if next != "" {
		fmt.Fprintf(&b, `<nav><ul class="pager"><li class="next"><a href="%s">Next</a></li></ul></nav>`, next)
	}
	b.WriteString(`</div></body></html>`)
	return b.String()
}

func authorHTML(name, born, location, description string) string {
	return fmt.Sprintf(`<html><body><div class="author-details">
<h3 class="author-title">%s</h3>
<p><strong>Born:</strong> <span class="author-born-date">%s</span>
<span class="author-born-location">%s</span></p>
<div class="author-description">%s</div>
</div></body></html>`, name, born, location, description)
}

// mapFetcher serves canned bodies by absolute URL and counts requests.
type mapFetcher struct {
	mu     sync.Mutex
	pages  map[string]string
	errs   map[string]error
	stalls map[string]bool
	calls  map[string]int
	order  []string
	delay  time.Duration
	active int
	peak   int
}

func newMapFetcher() *mapFetcher {
	return &mapFetcher{
		pages: make(map[string]string),
		errs:   make(map[string]error),
		stalls: make(map[string]bool),
		calls:  make(map[string]int),
	}
}

func (f *mapFetcher) add(rawURL, body string) *mapFetcher {
	f.pages[rawURL] = body
	return f
}

func (f *mapFetcher) fail(rawURL string, err error) *mapFetcher {
	f.errs[rawURL] = err
	return f
}

// stall makes rawURL block until the caller's context ends.
func (f *mapFetcher) stall(rawURL string) *mapFetcher {
	f.stalls[rawURL] = true
	return f
}

func (f *mapFetcher) Fetch(ctx context.Context, rawURL string) (Page, error) {
	f.mu.Lock()
	f.calls[rawURL]++
	f.order = append(f.order, rawURL)
	f.active++
	if f.active > f.peak {
		f.peak = f.active
	}
	body, ok := f.pages[rawURL]
	failErr := f.errs[rawURL]
	stalled := f.stalls[rawURL]
	f.mu.Unlock()

	defer func() {
		f.mu.Lock()
		f.active--
		f.mu.Unlock()
	}()

	if stalled {
		<-ctx.Done()
		return Page{}, ctx.Err()
	}
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return Page{}, ctx.Err()
		}
	}
	if failErr != nil {
		return Page{}, failErr
	}
	if !ok {
		return Page{}, &FetchError{URL: rawURL, StatusCode: http.StatusNotFound, Err: errors.New("not found")}
	}
	return Page{
		URL:        rawURL,
		FinalURL:   rawURL,
		StatusCode: http.StatusOK,
		Headers:    http.Header{"Content-Type": []string{"text/html"}},
		Body:       []byte(body),
	}, nil
}

func (f *mapFetcher) callCount(rawURL string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[rawURL]
}

func (f *mapFetcher) requested() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.order...)
}

func (f *mapFetcher) peakConcurrency() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.peak
}

type fixedClock struct{ t time.Time }

func (c fixedClock) Now() time.Time { return c.t }

type staticID string

func (s staticID) NewID() (string, error) { return string(s), nil }
