package crawler

import (
	"fmt"
	"time"
)

// DefaultAuthorConcurrency bounds simultaneous author page fetches.
const DefaultAuthorConcurrency = 16

// Config holds the settings for a crawl session.
// This struct is decoupled from Viper, making the crawler and its configuration
// more modular and easier to test independently.
type Config struct {
	StartURL          string
	AllowedOrigin     string
	AuthorConcurrency int
	FetchTimeout      time.Duration
	Selectors         Selectors
}

// Validate checks the start URL against the allowed origin and the
// concurrency ceiling.
func (c Config) Validate() error {
	if c.StartURL == "" {
		return fmt.Errorf("crawler.start_url must be set")
	}
	origin, err := c.Origin()
	if err != nil {
		return err
	}
	if !origin.Contains(c.StartURL) {
		return fmt.Errorf("crawler.start_url %q is outside allowed origin %s", c.StartURL, origin)
	}
	if c.AuthorConcurrency < 0 {
		return fmt.Errorf("crawler.author_concurrency must be >= 0")
	}
	if c.FetchTimeout < 0 {
		return fmt.Errorf("http.timeout_seconds must be >= 0")
	}
	return nil
}

// Origin returns the allowed origin, derived from StartURL when unset.
func (c Config) Origin() (Origin, error) {
	raw := c.AllowedOrigin
	if raw == "" {
		raw = c.StartURL
	}
	origin, err := ParseOrigin(raw)
	if err != nil {
		return Origin{}, fmt.Errorf("crawler.allowed_origin: %w", err)
	}
	return origin, nil
}

func (c Config) authorConcurrency() int {
	if c.AuthorConcurrency <= 0 {
		return DefaultAuthorConcurrency
	}
	return c.AuthorConcurrency
}
