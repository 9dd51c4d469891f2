package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/config"
	"github.com/JakeFAU/quotes-crawler/internal/server"
	"github.com/JakeFAU/quotes-crawler/internal/storage/memory"
)

var errAuthorFailures = errors.New("some author pages could not be resolved")

// newApp is replaced in tests.
var newApp = server.Build

type crawlFlags struct {
	output      string
	concurrency int
	metricsAddr string
	fetcher     string
	dryRun      bool
}

func newCrawlCmd() *cobra.Command {
	var flags crawlFlags
	cmd := &cobra.Command{
		Use:   "crawl",
		Short: "Run one crawl and write the result documents",
		Long: `Walks the listing from crawler.start_url to its last page, resolves every
unique author page, and writes quotes.json and authors.json. Exits non-zero if
the walk fails or any author page could not be resolved.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runCrawl(cmd, flags)
		},
	}
	cmd.Flags().StringVarP(&flags.output, "output", "o", "", `output directory, or "-" for stdout`)
	cmd.Flags().IntVarP(&flags.concurrency, "concurrency", "c", 0, "maximum concurrent author fetches")
	cmd.Flags().StringVar(&flags.metricsAddr, "metrics-addr", "", "serve /metrics and /v1/progress on this address during the crawl")
	cmd.Flags().StringVar(&flags.fetcher, "fetcher", "", `page fetcher: "colly", "headless" or "auto"`)
	cmd.Flags().BoolVar(&flags.dryRun, "dry-run", false, "keep documents in memory instead of writing them")
	return cmd
}

func runCrawl(cmd *cobra.Command, flags crawlFlags) error {
	cfgPath, err := cmd.Flags().GetString("config")
	if err != nil {
		return fmt.Errorf("read --config: %w", err)
	}
	cfg, err := loadConfig(cfgPath, flags)
	if err != nil {
		return err
	}

	opts := []server.Option{server.WithVersion(version)}
	if flags.dryRun {
		opts = append(opts, server.WithBlobStore(memory.NewBlobStore()))
	}
	app, err := newApp(cmd.Context(), cfg, opts...)
	if err != nil {
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	defer app.Close(cmd.Context())

	result, err := app.Run(cmd.Context())
	if err != nil {
		return fmt.Errorf("crawl failed: %w", err)
	}
	app.Logger().Info("crawl complete",
		zap.String("crawl_id", result.CrawlID),
		zap.Int("pages", result.PagesWalked),
		zap.Int("quotes", len(result.Records)),
		zap.Int("authors", len(result.Authors)),
	)
	if failErr := result.Err(); failErr != nil {
		for _, f := range result.Failures {
			app.Logger().Warn("author unresolved",
				zap.String("reference", string(f.Reference)),
				zap.String("error", f.Message),
			)
		}
		return fmt.Errorf("%w: %d of %d", errAuthorFailures, len(result.Failures), result.UniqueReferences)
	}
	return nil
}

func loadConfig(path string, flags crawlFlags) (config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	if flags.output != "" {
		cfg.Output.Dir = flags.output
	}
	if flags.concurrency > 0 {
		cfg.Crawler.AuthorConcurrency = flags.concurrency
	}
	if flags.metricsAddr != "" {
		cfg.Server.MetricsAddr = flags.metricsAddr
	}
	if flags.fetcher != "" {
		cfg.Fetcher.Mode = flags.fetcher
	}
	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
