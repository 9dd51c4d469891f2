// Package output serializes crawl results into JSON documents and hands them
// to a blob store.
package output

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"path"

	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/hash/sha256"
)

// ContentType is attached to every stored document.
const ContentType = "application/json; charset=utf-8"

// BlobStore persists one named object and returns its URI.
type BlobStore interface {
	PutObject(ctx context.Context, path string, contentType string, r io.Reader) (string, error)
}

// Object describes one stored document.
type Object struct {
	Name   string `json:"name"`
	URI    string `json:"uri"`
	SHA256 string `json:"sha256"`
	Bytes  int64  `json:"bytes"`
}

// Config names the documents and an optional path prefix.
type Config struct {
	QuotesName  string
	AuthorsName string
	Prefix      string
}

// Writer stores the records and authors documents of a CrawlResult.
type Writer struct {
	store  BlobStore
	cfg    Config
	logger *zap.Logger
}

// NewWriter builds a Writer. Empty names default to quotes.json and authors.json.
func NewWriter(store BlobStore, cfg Config, logger *zap.Logger) *Writer {
	if cfg.QuotesName == "" {
		cfg.QuotesName = "quotes.json"
	}
	if cfg.AuthorsName == "" {
		cfg.AuthorsName = "authors.json"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Writer{store: store, cfg: cfg, logger: logger}
}

// Write stores the records document, then the authors document.
func (w *Writer) Write(ctx context.Context, result crawler.CrawlResult) ([]Object, error) {
	records := result.Records
	if records == nil {
		records = []crawler.Record{}
	}
	authors := result.Authors
	if authors == nil {
		authors = []crawler.AuthorRecord{}
	}

	docs := []struct {
		name  string
		value any
	}{
		{w.cfg.QuotesName, records},
		{w.cfg.AuthorsName, authors},
	}
	objects := make([]Object, 0, len(docs))
	for _, doc := range docs {
		obj, err := w.put(ctx, doc.name, doc.value)
		if err != nil {
			return objects, err
		}
		w.logger.Info("document stored",
			zap.String("name", obj.Name),
			zap.String("uri", obj.URI),
			zap.Int64("bytes", obj.Bytes),
		)
		objects = append(objects, obj)
	}
	return objects, nil
}

func (w *Writer) put(ctx context.Context, name string, v any) (Object, error) {
	var buf bytes.Buffer
	hw := sha256.NewWriter(&buf)
	if err := WriteJSON(hw, v); err != nil {
		return Object{}, fmt.Errorf("encode %s: %w", name, err)
	}
	objectPath := name
	if w.cfg.Prefix != "" {
		objectPath = path.Join(w.cfg.Prefix, name)
	}
	uri, err := w.store.PutObject(ctx, objectPath, ContentType, &buf)
	if err != nil {
		return Object{}, fmt.Errorf("store %s: %w", name, err)
	}
	return Object{Name: name, URI: uri, SHA256: hw.Digest(), Bytes: hw.Len()}, nil
}

// WriteJSON encodes v indented by four spaces, without HTML escaping.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "    ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	return nil
}
