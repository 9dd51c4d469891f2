package crawler

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors locates fields in listing and author pages. Record-level
// selectors are evaluated inside each Quote container.
type Selectors struct {
	Quote        string `mapstructure:"quote"`
	Text         string `mapstructure:"text"`
	Author       string `mapstructure:"author"`
	Tags         string `mapstructure:"tags"`
	AuthorLink   string `mapstructure:"author_link"`
	NextLink     string `mapstructure:"next_link"`
	FullName     string `mapstructure:"fullname"`
	BornDate     string `mapstructure:"born_date"`
	BornLocation string `mapstructure:"born_location"`
	Description  string `mapstructure:"description"`
}

// DefaultSelectors matches the quotes.toscrape.com layout.
func DefaultSelectors() Selectors {
	return Selectors{
		Quote:        "div.quote",
		Text:         "span.text",
		Author:       "small.author",
		Tags:         "div.tags a.tag",
		AuthorLink:   "span:has(small.author) a[href]",
		NextLink:     "li.next > a",
		FullName:     "h3.author-title",
		BornDate:     "span.author-born-date",
		BornLocation: "span.author-born-location",
		Description:  "div.author-description",
	}
}

// withDefaults fills every empty selector from DefaultSelectors.
func (s Selectors) withDefaults() Selectors {
	def := DefaultSelectors()
	fill := func(dst *string, v string) {
		if strings.TrimSpace(*dst) == "" {
			*dst = v
		}
	}
	fill(&s.Quote, def.Quote)
	fill(&s.Text, def.Text)
	fill(&s.Author, def.Author)
	fill(&s.Tags, def.Tags)
	fill(&s.AuthorLink, def.AuthorLink)
	fill(&s.NextLink, def.NextLink)
	fill(&s.FullName, def.FullName)
	fill(&s.BornDate, def.BornDate)
	fill(&s.BornLocation, def.BornLocation)
	fill(&s.Description, def.Description)
	return s
}

// Extractor pulls records, author references and pagination links out of
// fetched documents.
type Extractor struct {
	sel Selectors
}

// NewExtractor builds an Extractor; empty selectors fall back to defaults.
func NewExtractor(sel Selectors) *Extractor {
	return &Extractor{sel: sel.withDefaults()}
}

func parseDocument(page Page) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(page.Body))
	if err != nil {
		return nil, fmt.Errorf("parse html %s: %w", page.URL, err)
	}
	return doc, nil
}

// ExtractRecords returns every record container in document order, each
// paired with the author reference found inside that same container.
func (e *Extractor) ExtractRecords(page Page) ([]ExtractedRecord, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, err
	}
	return e.extractRecords(doc, page.URL)
}

func (e *Extractor) extractRecords(doc *goquery.Document, pageURL string) ([]ExtractedRecord, error) {
	containers := doc.Find(e.sel.Quote)
	out := make([]ExtractedRecord, 0, containers.Length())
	var extractErr error
	containers.EachWithBreak(func(i int, quote *goquery.Selection) bool {
		rec, err := e.extractRecord(quote, pageURL, i)
		if err != nil {
			extractErr = err
			return false
		}
		out = append(out, rec)
		return true
	})
	if extractErr != nil {
		return nil, extractErr
	}
	return out, nil
}

func (e *Extractor) extractRecord(quote *goquery.Selection, pageURL string, index int) (ExtractedRecord, error) {
	missing := func(field string) error {
		return &ExtractionError{URL: pageURL, Field: field, Index: index}
	}

	text := quote.Find(e.sel.Text).First()
	if text.Length() == 0 {
		return ExtractedRecord{}, missing("text")
	}
	author := quote.Find(e.sel.Author).First()
	if author.Length() == 0 {
		return ExtractedRecord{}, missing("author")
	}
	authorName := strings.TrimSpace(author.Text())
	if authorName == "" {
		return ExtractedRecord{}, missing("author")
	}
	href, ok := quote.Find(e.sel.AuthorLink).First().Attr("href")
	href = strings.TrimSpace(href)
	if !ok || href == "" {
		return ExtractedRecord{}, missing("author_link")
	}

	tags := make([]string, 0)
	quote.Find(e.sel.Tags).Each(func(_ int, tag *goquery.Selection) {
		if t := strings.TrimSpace(tag.Text()); t != "" {
			tags = append(tags, t)
		}
	})

	return ExtractedRecord{
		Record: Record{
			Tags:       tags,
			AuthorName: authorName,
			Text:       Normalize(text.Text()),
		},
		Reference: AuthorReference(href),
	}, nil
}

// ExtractNextLink returns the raw "next page" link, or false when the page has
// none. A next affordance without an href is an ExtractionError.
func (e *Extractor) ExtractNextLink(page Page) (string, bool, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return "", false, err
	}
	return e.extractNextLink(doc, page.URL)
}

func (e *Extractor) extractNextLink(doc *goquery.Document, pageURL string) (string, bool, error) {
	next := doc.Find(e.sel.NextLink).First()
	if next.Length() == 0 {
		return "", false, nil
	}
	href := strings.TrimSpace(next.AttrOr("href", ""))
	if href == "" {
		return "", false, &ExtractionError{URL: pageURL, Field: "next_link", Index: -1}
	}
	return href, true, nil
}

// ExtractListing parses a listing page once and returns both its records and
// its next link.
func (e *Extractor) ExtractListing(page Page) ([]ExtractedRecord, string, bool, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return nil, "", false, err
	}
	records, err := e.extractRecords(doc, page.URL)
	if err != nil {
		return nil, "", false, err
	}
	next, ok, err := e.extractNextLink(doc, page.URL)
	if err != nil {
		return nil, "", false, err
	}
	return records, next, ok, nil
}

// ExtractAuthor reads an author detail page.
func (e *Extractor) ExtractAuthor(page Page) (AuthorRecord, error) {
	doc, err := parseDocument(page)
	if err != nil {
		return AuthorRecord{}, err
	}
	field := func(selector, name string) (string, error) {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			return "", &ExtractionError{URL: page.URL, Field: name, Index: -1}
		}
		v := strings.TrimSpace(sel.Text())
		if v == "" {
			return "", &ExtractionError{URL: page.URL, Field: name, Index: -1}
		}
		return v, nil
	}

	var rec AuthorRecord
	if rec.FullName, err = field(e.sel.FullName, "fullname"); err != nil {
		return AuthorRecord{}, err
	}
	if rec.BornDate, err = field(e.sel.BornDate, "born_date"); err != nil {
		return AuthorRecord{}, err
	}
	if rec.BornLocation, err = field(e.sel.BornLocation, "born_location"); err != nil {
		return AuthorRecord{}, err
	}
	description, err := field(e.sel.Description, "description")
	if err != nil {
		return AuthorRecord{}, err
	}
	rec.Description = Normalize(description)
	return rec, nil
}
