package collyfetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/gocolly/colly/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

func newQuotesServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/html")
		w.Header().Set("X-Agent", r.UserAgent())
		w.Header().Set("X-Trace-Echo", r.Header.Get("X-Trace"))
		_, _ = w.Write([]byte(`<html><body><div class="quote">hi</div></body></html>`))
	})
	mux.HandleFunc("/boom", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	})
	mux.HandleFunc("/slow", func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-time.After(2 * time.Second):
		case <-r.Context().Done():
		}
		_, _ = w.Write([]byte("late"))
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv
}

func TestFetchSuccess(t *testing.T) {
	t.Parallel()
	srv := newQuotesServer(t)

	f := New(Config{
		UserAgent: "quotes-test",
		Headers:   http.Header{"X-Trace": {"yes"}},
	})
	page, err := f.Fetch(context.Background(), srv.URL+"/")
	require.NoError(t, err)

	assert.Equal(t, srv.URL+"/", page.URL)
	assert.Equal(t, http.StatusOK, page.StatusCode)
	assert.Contains(t, string(page.Body), `class="quote"`)
	assert.Equal(t, "quotes-test", page.Headers.Get("X-Agent"))
	assert.Equal(t, "yes", page.Headers.Get("X-Trace-Echo"))
}

func TestFetchRepeatedURL(t *testing.T) {
	t.Parallel()
	srv := newQuotesServer(t)
	f := New(Config{})

	for i := 0; i < 2; i++ {
		_, err := f.Fetch(context.Background(), srv.URL+"/")
		require.NoError(t, err, "attempt %d", i)
	}
}

func TestFetchNonSuccessStatus(t *testing.T) {
	t.Parallel()
	srv := newQuotesServer(t)

	_, err := New(Config{}).Fetch(context.Background(), srv.URL+"/missing")
	var fetchErr *crawler.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusNotFound, fetchErr.StatusCode)
	assert.Equal(t, srv.URL+"/missing", fetchErr.URL)

	_, err = New(Config{}).Fetch(context.Background(), srv.URL+"/boom")
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, http.StatusInternalServerError, fetchErr.StatusCode)
}

func TestFetchRejectsOtherHosts(t *testing.T) {
	t.Parallel()
	srv := newQuotesServer(t)

	_, err := New(Config{AllowedHost: "quotes.test"}).Fetch(context.Background(), srv.URL+"/")
	var fetchErr *crawler.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.ErrorIs(t, err, colly.ErrForbiddenDomain)
}

func TestFetchHonorsContext(t *testing.T) {
	t.Parallel()
	srv := newQuotesServer(t)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := New(Config{}).Fetch(ctx, srv.URL+"/slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestConfigureCollectorHooks(t *testing.T) {
	t.Parallel()

	f := New(Config{Headers: http.Header{"X-Trace": {"yes"}}})
	var (
		result   crawler.Page
		fetchErr error
		status   int
	)

	hooks := &stubHooks{}
	f.configureCollectorHooks(hooks, time.Unix(0, 0), &result, &fetchErr, &status)
	require.NotNil(t, hooks.onRequest)
	require.NotNil(t, hooks.onResponse)
	require.NotNil(t, hooks.onError)

	collyReq := &colly.Request{Headers: &http.Header{}}
	hooks.onRequest(collyReq)
	assert.Equal(t, "yes", collyReq.Headers.Get("X-Trace"))

	hooks.onResponse(&colly.Response{
		StatusCode: http.StatusOK,
		Body:       []byte("body"),
		Headers:    &http.Header{"X-Resp": {"ok"}},
		Request:    &colly.Request{URL: mustParseURL(t, "https://example.com/page/2/")},
	})
	assert.Equal(t, http.StatusOK, result.StatusCode)
	assert.Equal(t, "body", string(result.Body))
	assert.Equal(t, "https://example.com/page/2/", result.FinalURL)
	assert.Equal(t, "ok", result.Headers.Get("X-Resp"))

	hooks.onError(&colly.Response{StatusCode: http.StatusTooManyRequests}, errors.New("Too Many Requests"))
	assert.EqualError(t, fetchErr, "Too Many Requests")
	assert.Equal(t, http.StatusTooManyRequests, status)
}

func TestCopyHeadersHandlesNil(t *testing.T) {
	t.Parallel()

	collyReq := &colly.Request{Headers: &http.Header{}}
	New(Config{}).copyHeaders(collyReq)
	assert.Empty(t, *collyReq.Headers)
}

func mustParseURL(t *testing.T, raw string) *url.URL {
	t.Helper()
	u, err := url.Parse(raw)
	require.NoError(t, err)
	return u
}

type stubHooks struct {
	onRequest  colly.RequestCallback
	onResponse colly.ResponseCallback
	onError    colly.ErrorCallback
}

func (s *stubHooks) OnRequest(cb colly.RequestCallback) {
	s.onRequest = cb
}

func (s *stubHooks) OnResponse(cb colly.ResponseCallback) {
	s.onResponse = cb
}

func (s *stubHooks) OnError(cb colly.ErrorCallback) {
	s.onError = cb
}
