package crawler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractRecordsScopesFieldsToEachContainer(t *testing.T) {
	page := Page{URL: testOrigin, Body: []byte(listingHTML([]testQuote{
		{text: "“First.”", author: "Alpha", link: "/author/Alpha/", tags: []string{"one", "two"}},
		{text: "“Second.”", author: "Beta", link: "/author/Beta/"},
		{text: "“Third.”", author: "Gamma", link: "/author/Gamma/", tags: []string{"three"}},
	}, ""))}

	got, err := NewExtractor(Selectors{}).ExtractRecords(page)
	require.NoError(t, err)
	require.Len(t, got, 3)

	assert.Equal(t, Record{Tags: []string{"one", "two"}, AuthorName: "Alpha", Text: `"First."`}, got[0].Record)
	assert.Equal(t, AuthorReference("/author/Alpha/"), got[0].Reference)

	assert.Equal(t, "Beta", got[1].Record.AuthorName)
	assert.NotNil(t, got[1].Record.Tags)
	assert.Empty(t, got[1].Record.Tags)
	assert.Equal(t, AuthorReference("/author/Beta/"), got[1].Reference)

	assert.Equal(t, []string{"three"}, got[2].Record.Tags)
	assert.Equal(t, AuthorReference("/author/Gamma/"), got[2].Reference)
}

func TestExtractRecordsEmptyPage(t *testing.T) {
	got, err := NewExtractor(Selectors{}).ExtractRecords(Page{URL: testOrigin, Body: []byte(listingHTML(nil, ""))})
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestExtractRecordsMissingAuthorLink(t *testing.T) {
	body := `<html><body>
<div class="quote"><span class="text">ok</span><span>by <small class="author">A</small> <a href="/author/A/">(about)</a></span></div>
<div class="quote"><span class="text">broken</span><span>by <small class="author">B</small></span></div>
</body></html>`

	_, err := NewExtractor(Selectors{}).ExtractRecords(Page{URL: testOrigin, Body: []byte(body)})
	require.Error(t, err)

	var extractErr *ExtractionError
	require.True(t, errors.As(err, &extractErr))
	assert.Equal(t, "author_link", extractErr.Field)
	assert.Equal(t, 1, extractErr.Index)
	assert.Equal(t, testOrigin, extractErr.URL)
}

func TestExtractRecordsMissingText(t *testing.T) {
	body := `<div class="quote"><span>by <small class="author">A</small> <a href="/author/A/">(about)</a></span></div>`

	_, err := NewExtractor(Selectors{}).ExtractRecords(Page{URL: testOrigin, Body: []byte(body)})
	var extractErr *ExtractionError
	require.True(t, errors.As(err, &extractErr))
	assert.Equal(t, "text", extractErr.Field)
	assert.Equal(t, 0, extractErr.Index)
}

func TestExtractNextLink(t *testing.T) {
	ex := NewExtractor(Selectors{})

	next, ok, err := ex.ExtractNextLink(Page{Body: []byte(listingHTML(nil, "/page/2/"))})
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/page/2/", next)

	_, ok, err = ex.ExtractNextLink(Page{Body: []byte(listingHTML(nil, ""))})
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestExtractNextLinkWithoutHref(t *testing.T) {
	body := `<ul class="pager"><li class="next"><a>Next</a></li></ul>`
	ex := NewExtractor(Selectors{})

	_, _, err := ex.ExtractNextLink(Page{URL: testOrigin, Body: []byte(body)})
	var extractErr *ExtractionError
	require.True(t, errors.As(err, &extractErr))
	assert.Equal(t, "next_link", extractErr.Field)
	assert.Equal(t, -1, extractErr.Index)
}

func TestExtractAuthor(t *testing.T) {
	page := Page{URL: testOrigin + "author/Alpha/", Body: []byte(authorHTML(
		"Alpha Author", "March 14, 1879", "in Ulm, Germany", "  Physicist’s “life” — short.  ",
	))}

	got, err := NewExtractor(Selectors{}).ExtractAuthor(page)
	require.NoError(t, err)
	assert.Equal(t, AuthorRecord{
		FullName:     "Alpha Author",
		BornDate:     "March 14, 1879",
		BornLocation: "in Ulm, Germany",
		Description:  `Physicist's "life" -- short.`,
	}, got)
}

func TestExtractAuthorMissingField(t *testing.T) {
	body := `<h3 class="author-title">Alpha</h3><span class="author-born-date">1900</span>`

	_, err := NewExtractor(Selectors{}).ExtractAuthor(Page{URL: "u", Body: []byte(body)})
	var extractErr *ExtractionError
	require.True(t, errors.As(err, &extractErr))
	assert.Equal(t, "born_location", extractErr.Field)
	assert.Equal(t, "extract u: missing born_location", extractErr.Error())
}

func TestSelectorsWithDefaultsKeepsOverrides(t *testing.T) {
	got := Selectors{Quote: "article.q"}.withDefaults()
	assert.Equal(t, "article.q", got.Quote)
	assert.Equal(t, DefaultSelectors().Text, got.Text)
}
