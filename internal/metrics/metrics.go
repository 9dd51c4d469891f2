// Package metrics exposes Prometheus collectors for the crawler.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

// Fetch phases used as the "phase" label.
const (
	PhaseListing = "listing"
	PhaseAuthor  = "author"
)

var fetchBuckets = []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 15}

// Recorder owns the crawl collectors and satisfies crawler.Observer.
type Recorder struct {
	pagesTotal           *prometheus.CounterVec
	recordsTotal         prometheus.Counter
	authorsTotal         *prometheus.CounterVec
	fetchDuration        *prometheus.HistogramVec
	crawlsTotal          *prometheus.CounterVec
	lastSuccess          prometheus.Gauge
	httpRequestsTotal    *prometheus.CounterVec
	httpRequestDurations *prometheus.HistogramVec

	gatherer prometheus.Gatherer

	mu       sync.RWMutex
	progress Progress
}

// Progress is a point-in-time view of the running crawl.
type Progress struct {
	PagesWalked      int       `json:"pages_walked"`
	RecordsExtracted int       `json:"records_extracted"`
	AuthorsResolved  int       `json:"authors_resolved"`
	AuthorsFailed    int       `json:"authors_failed"`
	LastPage         string    `json:"last_page,omitempty"`
	UpdatedAt        time.Time `json:"updated_at"`
}

// NewRecorder registers the collectors on reg. A nil reg uses a private
// registry so tests and repeated runs never collide.
func NewRecorder(reg *prometheus.Registry) *Recorder {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	factory := promauto.With(reg)
	return &Recorder{
		pagesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotes_crawler_pages_total",
				Help: "Listing pages walked, labeled by site.",
			},
			[]string{"site"},
		),
		recordsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "quotes_crawler_records_total",
				Help: "Quote records extracted from listing pages.",
			},
		),
		authorsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotes_crawler_author_resolutions_total",
				Help: "Author resolutions, labeled by outcome.",
			},
			[]string{"outcome"},
		),
		fetchDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "quotes_crawler_fetch_duration_seconds",
				Help:    "Fetch plus extraction latency, labeled by phase.",
				Buckets: fetchBuckets,
			},
			[]string{"phase"},
		),
		crawlsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "quotes_crawler_runs_total",
				Help: "Completed crawl runs, labeled by status.",
			},
			[]string{"status"},
		),
		lastSuccess: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "quotes_crawler_last_success_timestamp_seconds",
				Help: "Unix time the last crawl finished without failures.",
			},
		),
		httpRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		),
		httpRequestDurations: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		),
		gatherer: reg,
	}
}

// ObservePage records one walked listing page.
func (r *Recorder) ObservePage(pageURL string, records int, d time.Duration) {
	r.pagesTotal.WithLabelValues(SanitizeSite(pageURL)).Inc()
	r.recordsTotal.Add(float64(records))
	r.fetchDuration.WithLabelValues(PhaseListing).Observe(d.Seconds())

	r.mu.Lock()
	r.progress.PagesWalked++
	r.progress.RecordsExtracted += records
	r.progress.LastPage = pageURL
	r.progress.UpdatedAt = time.Now().UTC()
	r.mu.Unlock()
}

// ObserveAuthor records one author resolution.
func (r *Recorder) ObserveAuthor(_ crawler.AuthorReference, ok bool, d time.Duration) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	r.authorsTotal.WithLabelValues(outcome).Inc()
	r.fetchDuration.WithLabelValues(PhaseAuthor).Observe(d.Seconds())

	r.mu.Lock()
	if ok {
		r.progress.AuthorsResolved++
	} else {
		r.progress.AuthorsFailed++
	}
	r.progress.UpdatedAt = time.Now().UTC()
	r.mu.Unlock()
}

// ObserveRun records the outcome of a finished crawl.
func (r *Recorder) ObserveRun(result crawler.CrawlResult, err error) {
	switch {
	case err != nil:
		r.crawlsTotal.WithLabelValues("failed").Inc()
	case len(result.Failures) > 0:
		r.crawlsTotal.WithLabelValues("partial").Inc()
	default:
		r.crawlsTotal.WithLabelValues("succeeded").Inc()
		r.lastSuccess.Set(float64(result.FinishedAt.Unix()))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func (r *Recorder) ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	r.httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	r.httpRequestDurations.WithLabelValues(method, route).Observe(duration.Seconds())
}

// Progress returns a snapshot of the running crawl.
func (r *Recorder) Progress() Progress {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.progress
}

// Handler returns an http.Handler exposing the recorder's registry.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}
