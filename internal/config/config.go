// Package config loads and validates crawler configuration via Viper.
package config

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

// Fetcher modes.
const (
	FetcherColly    = "colly"
	FetcherHeadless = "headless"
	// FetcherAuto probes with colly and promotes script-rendered pages to
	// the headless fetcher.
	FetcherAuto = "auto"
)

// StdoutDir makes the output writer stream both documents to stdout.
const StdoutDir = "-"

// Config captures all knobs loaded via Viper.
type Config struct {
	Server    ServerConfig      `mapstructure:"server"`
	Crawler   CrawlerConfig     `mapstructure:"crawler"`
	HTTP      HTTPConfig        `mapstructure:"http"`
	Fetcher   FetcherConfig     `mapstructure:"fetcher"`
	Selectors crawler.Selectors `mapstructure:"selectors"`
	Output    OutputConfig      `mapstructure:"output"`
	Storage   StorageConfig     `mapstructure:"storage"`
	DB        DBConfig          `mapstructure:"db"`
	PubSub    PubSubConfig      `mapstructure:"pubsub"`
	Logging   LoggingConfig     `mapstructure:"logging"`
}

// ServerConfig controls the optional metrics/health listener.
type ServerConfig struct {
	MetricsAddr string `mapstructure:"metrics_addr"`
}

// CrawlerConfig governs the walk and the author fan-out.
type CrawlerConfig struct {
	StartURL          string `mapstructure:"start_url"`
	AllowedOrigin     string `mapstructure:"allowed_origin"`
	AuthorConcurrency int    `mapstructure:"author_concurrency"`
	UserAgent         string `mapstructure:"user_agent"`
}

// HTTPConfig configures per-request behavior.
type HTTPConfig struct {
	TimeoutSeconds int               `mapstructure:"timeout_seconds"`
	Headers        map[string]string `mapstructure:"headers"`
}

// FetcherConfig picks the PageFetcher implementation.
type FetcherConfig struct {
	Mode     string         `mapstructure:"mode"`
	Headless HeadlessConfig `mapstructure:"headless"`
}

// HeadlessConfig configures the chromedp fetcher.
type HeadlessConfig struct {
	MaxParallel        int    `mapstructure:"max_parallel"`
	NavTimeoutSec      int    `mapstructure:"nav_timeout_seconds"`
	WaitSelector       string `mapstructure:"wait_selector"`
	PromotionThreshold int    `mapstructure:"promotion_threshold"`
}

// OutputConfig names the result documents.
type OutputConfig struct {
	Dir         string `mapstructure:"dir"`
	QuotesName  string `mapstructure:"quotes_name"`
	AuthorsName string `mapstructure:"authors_name"`
}

// StorageConfig switches output to a GCS bucket when set.
type StorageConfig struct {
	GCSBucket string `mapstructure:"gcs_bucket"`
	Prefix    string `mapstructure:"prefix"`
}

// DBConfig controls the optional Postgres result store.
type DBConfig struct {
	DSN          string `mapstructure:"dsn"`
	QuotesTable  string `mapstructure:"quotes_table"`
	AuthorsTable string `mapstructure:"authors_table"`
	MaxConns     int32  `mapstructure:"max_conns"`
}

// PubSubConfig holds metadata for completion notifications.
type PubSubConfig struct {
	ProjectID string `mapstructure:"project_id"`
	TopicName string `mapstructure:"topic_name"`
}

// LoggingConfig toggles zap development features.
type LoggingConfig struct {
	Development bool   `mapstructure:"development"`
	Level       string `mapstructure:"level"`
}

// Load builds a Config from disk/environment.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("QUOTES")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.metrics_addr", "")
	v.SetDefault("crawler.start_url", "https://quotes.toscrape.com/")
	v.SetDefault("crawler.allowed_origin", "")
	v.SetDefault("crawler.author_concurrency", crawler.DefaultAuthorConcurrency)
	v.SetDefault("crawler.user_agent", "quotes-crawler/0.1")
	v.SetDefault("http.timeout_seconds", 15)
	v.SetDefault("fetcher.mode", FetcherColly)
	v.SetDefault("fetcher.headless.max_parallel", 2)
	v.SetDefault("fetcher.headless.nav_timeout_seconds", 30)
	v.SetDefault("fetcher.headless.wait_selector", "body")
	v.SetDefault("fetcher.headless.promotion_threshold", 16384)

	sel := crawler.DefaultSelectors()
	v.SetDefault("selectors.quote", sel.Quote)
	v.SetDefault("selectors.text", sel.Text)
	v.SetDefault("selectors.author", sel.Author)
	v.SetDefault("selectors.tags", sel.Tags)
	v.SetDefault("selectors.author_link", sel.AuthorLink)
	v.SetDefault("selectors.next_link", sel.NextLink)
	v.SetDefault("selectors.fullname", sel.FullName)
	v.SetDefault("selectors.born_date", sel.BornDate)
	v.SetDefault("selectors.born_location", sel.BornLocation)
	v.SetDefault("selectors.description", sel.Description)

	v.SetDefault("output.dir", ".")
	v.SetDefault("output.quotes_name", "quotes.json")
	v.SetDefault("output.authors_name", "authors.json")
	v.SetDefault("storage.gcs_bucket", "")
	v.SetDefault("storage.prefix", "crawls")
	v.SetDefault("db.dsn", "")
	v.SetDefault("db.quotes_table", "quotes")
	v.SetDefault("db.authors_table", "authors")
	v.SetDefault("db.max_conns", 4)
	v.SetDefault("pubsub.project_id", "")
	v.SetDefault("pubsub.topic_name", "")
	v.SetDefault("logging.development", true)
	v.SetDefault("logging.level", "")
}

// Validate enforces required values and reasonable limits.
func (c Config) Validate() error {
	if c.HTTP.TimeoutSeconds <= 0 {
		return fmt.Errorf("http.timeout_seconds must be > 0")
	}
	if c.Crawler.AuthorConcurrency <= 0 {
		return fmt.Errorf("crawler.author_concurrency must be > 0")
	}
	switch c.Fetcher.Mode {
	case FetcherColly:
	case FetcherHeadless, FetcherAuto:
		if c.Fetcher.Headless.MaxParallel <= 0 {
			return fmt.Errorf("fetcher.headless.max_parallel must be > 0 in %s mode", c.Fetcher.Mode)
		}
	default:
		return fmt.Errorf("fetcher.mode must be one of %q, %q or %q, got %q",
			FetcherColly, FetcherHeadless, FetcherAuto, c.Fetcher.Mode)
	}
	if c.Output.QuotesName == "" || c.Output.AuthorsName == "" {
		return fmt.Errorf("output.quotes_name and output.authors_name must be set")
	}
	if c.Output.QuotesName == c.Output.AuthorsName {
		return fmt.Errorf("output.quotes_name and output.authors_name must differ")
	}
	if c.Storage.GCSBucket == "" && c.Output.Dir == "" {
		return fmt.Errorf("output.dir must be set when storage.gcs_bucket is empty")
	}
	if c.PubSub.TopicName != "" && c.PubSub.ProjectID == "" {
		return fmt.Errorf("pubsub.project_id must be set when pubsub.topic_name is set")
	}
	return c.CrawlerConfig().Validate()
}

// CrawlerConfig converts the loaded settings into the crawl engine's config.
func (c Config) CrawlerConfig() crawler.Config {
	return crawler.Config{
		StartURL:          c.Crawler.StartURL,
		AllowedOrigin:     c.Crawler.AllowedOrigin,
		AuthorConcurrency: c.Crawler.AuthorConcurrency,
		FetchTimeout:      c.RequestTimeout(),
		Selectors:         c.Selectors,
	}
}

// RequestTimeout bounds a single fetch.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.HTTP.TimeoutSeconds) * time.Second
}

// NavTimeout bounds a single headless navigation.
func (c Config) NavTimeout() time.Duration {
	return time.Duration(c.Fetcher.Headless.NavTimeoutSec) * time.Second
}

// RequestHeaders returns the configured extra request headers.
func (c Config) RequestHeaders() http.Header {
	if len(c.HTTP.Headers) == 0 {
		return nil
	}
	h := make(http.Header, len(c.HTTP.Headers))
	for k, v := range c.HTTP.Headers {
		h.Set(k, v)
	}
	return h
}

// WritesToStdout reports whether both documents go to stdout.
func (c Config) WritesToStdout() bool {
	return c.Storage.GCSBucket == "" && c.Output.Dir == StdoutDir
}
