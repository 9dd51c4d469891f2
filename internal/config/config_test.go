package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "https://quotes.toscrape.com/", cfg.Crawler.StartURL)
	assert.Equal(t, crawler.DefaultAuthorConcurrency, cfg.Crawler.AuthorConcurrency)
	assert.Equal(t, FetcherColly, cfg.Fetcher.Mode)
	assert.Equal(t, 16384, cfg.Fetcher.Headless.PromotionThreshold)
	assert.Equal(t, "quotes.json", cfg.Output.QuotesName)
	assert.Equal(t, "authors.json", cfg.Output.AuthorsName)
	assert.Equal(t, crawler.DefaultSelectors(), cfg.Selectors)
	assert.Equal(t, 15*time.Second, cfg.RequestTimeout())
	assert.False(t, cfg.WritesToStdout())
	assert.Nil(t, cfg.RequestHeaders())
}

func TestLoadWithFileOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	configYAML := `
server:
  metrics_addr: ":9090"
crawler:
  start_url: https://quotes.example/page/1/
  author_concurrency: 4
  user_agent: real-agent
http:
  timeout_seconds: 45
  headers:
    X-Trace: abc
fetcher:
  mode: headless
  headless:
    max_parallel: 3
    nav_timeout_seconds: 10
selectors:
  quote: article.q
output:
  dir: "-"
db:
  dsn: postgres://localhost/quotes
pubsub:
  project_id: proj
  topic_name: crawls
logging:
  development: false
`
	require.NoError(t, os.WriteFile(path, []byte(configYAML), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, ":9090", cfg.Server.MetricsAddr)
	assert.Equal(t, FetcherHeadless, cfg.Fetcher.Mode)
	assert.Equal(t, 3, cfg.Fetcher.Headless.MaxParallel)
	assert.Equal(t, 10*time.Second, cfg.NavTimeout())
	assert.Equal(t, "article.q", cfg.Selectors.Quote)
	assert.Equal(t, crawler.DefaultSelectors().Text, cfg.Selectors.Text)
	assert.True(t, cfg.WritesToStdout())
	assert.Equal(t, "abc", cfg.RequestHeaders().Get("X-Trace"))
	assert.False(t, cfg.Logging.Development)
	assert.Equal(t, "quotes", cfg.DB.QuotesTable)

	cc := cfg.CrawlerConfig()
	assert.Equal(t, "https://quotes.example/page/1/", cc.StartURL)
	assert.Equal(t, 4, cc.AuthorConcurrency)
	assert.Equal(t, 45*time.Second, cc.FetchTimeout)
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("QUOTES_CRAWLER_AUTHOR_CONCURRENCY", "7")
	t.Setenv("QUOTES_OUTPUT_DIR", "/tmp/out")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 7, cfg.Crawler.AuthorConcurrency)
	assert.Equal(t, "/tmp/out", cfg.Output.Dir)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.ErrorContains(t, err, "read config")
}

func TestConfigValidateErrors(t *testing.T) {
	t.Parallel()

	base := Config{
		Crawler: CrawlerConfig{StartURL: "https://quotes.test/", AuthorConcurrency: 2},
		HTTP:    HTTPConfig{TimeoutSeconds: 10},
		Fetcher: FetcherConfig{Mode: FetcherColly},
		Output:  OutputConfig{Dir: ".", QuotesName: "quotes.json", AuthorsName: "authors.json"},
	}
	require.NoError(t, base.Validate())

	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"invalid timeout", func(c *Config) { c.HTTP.TimeoutSeconds = 0 }, "http.timeout_seconds"},
		{"invalid concurrency", func(c *Config) { c.Crawler.AuthorConcurrency = 0 }, "crawler.author_concurrency"},
		{"unknown fetcher", func(c *Config) { c.Fetcher.Mode = "curl" }, "fetcher.mode"},
		{"headless without slots", func(c *Config) { c.Fetcher.Mode = FetcherHeadless }, "fetcher.headless.max_parallel"},
		{"auto without slots", func(c *Config) { c.Fetcher.Mode = FetcherAuto }, "in auto mode"},
		{"same output names", func(c *Config) { c.Output.AuthorsName = "quotes.json" }, "must differ"},
		{"no output dir", func(c *Config) { c.Output.Dir = "" }, "output.dir"},
		{"topic without project", func(c *Config) { c.PubSub.TopicName = "t" }, "pubsub.project_id"},
		{"start outside origin", func(c *Config) { c.Crawler.AllowedOrigin = "https://other.test/" }, "outside allowed origin"},
		{"missing start url", func(c *Config) { c.Crawler.StartURL = "" }, "crawler.start_url"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			c := base
			tt.mutate(&c)
			assert.ErrorContains(t, c.Validate(), tt.want)
		})
	}
}
