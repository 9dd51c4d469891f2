// Package publisher announces finished crawls to downstream consumers.
package publisher

import (
	"context"
	"time"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
	"github.com/JakeFAU/quotes-crawler/internal/output"
)

// Publisher sends one payload to a topic and returns the broker's message ID.
type Publisher interface {
	Publish(ctx context.Context, topic string, payload any) (string, error)
}

// Failure is the wire form of one unresolved author reference.
type Failure struct {
	Reference string `json:"reference"`
	URL       string `json:"url,omitempty"`
	Error     string `json:"error"`
}

// CrawlCompleted is published after the output documents are stored.
type CrawlCompleted struct {
	CrawlID          string          `json:"crawl_id"`
	StartedAt        time.Time       `json:"started_at"`
	FinishedAt       time.Time       `json:"finished_at"`
	PagesWalked      int             `json:"pages_walked"`
	Quotes           int             `json:"quotes"`
	Authors          int             `json:"authors"`
	UniqueReferences int             `json:"unique_references"`
	Failures         []Failure       `json:"failures"`
	Outputs          []output.Object `json:"outputs"`
}

// NewCrawlCompleted summarizes result and the documents written for it.
func NewCrawlCompleted(result crawler.CrawlResult, objects []output.Object) CrawlCompleted {
	failures := make([]Failure, 0, len(result.Failures))
	for _, f := range result.Failures {
		msg := f.Message
		if msg == "" && f.Err != nil {
			msg = f.Err.Error()
		}
		failures = append(failures, Failure{Reference: string(f.Reference), URL: f.URL, Error: msg})
	}
	outputs := objects
	if outputs == nil {
		outputs = []output.Object{}
	}
	return CrawlCompleted{
		CrawlID:          result.CrawlID,
		StartedAt:        result.StartedAt,
		FinishedAt:       result.FinishedAt,
		PagesWalked:      result.PagesWalked,
		Quotes:           len(result.Records),
		Authors:          len(result.Authors),
		UniqueReferences: result.UniqueReferences,
		Failures:         failures,
		Outputs:          outputs,
	}
}

// Attributes are attached to the message so subscribers can filter without
// decoding the body.
func (c CrawlCompleted) Attributes() map[string]string {
	status := "succeeded"
	if len(c.Failures) > 0 {
		status = "partial"
	}
	return map[string]string{
		"crawl_id": c.CrawlID,
		"status":   status,
	}
}
