// Package postgres persists crawl results in Postgres.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/JakeFAU/quotes-crawler/internal/crawler"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// Config controls the connection pool and destination tables.
type Config struct {
	DSN             string
	QuotesTable     string
	AuthorsTable    string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type beginCloser interface {
	Begin(context.Context) (pgx.Tx, error)
	Ping(context.Context) error
	Close()
}

// ResultStore upserts quotes and authors rows keyed by crawl ID.
type ResultStore struct {
	pool         beginCloser
	quotesTable  string
	authorsTable string
	logger       *zap.Logger
}

// NewResultStore connects a pool using cfg.
func NewResultStore(ctx context.Context, cfg Config, logger *zap.Logger) (*ResultStore, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("db.dsn is required")
	}
	poolCfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("parse postgres dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		poolCfg.MaxConns = cfg.MaxConns
	}
	if cfg.MinConns > 0 {
		poolCfg.MinConns = cfg.MinConns
	}
	if cfg.MaxConnLifetime > 0 {
		poolCfg.MaxConnLifetime = cfg.MaxConnLifetime
	}
	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewResultStoreWithPool(pool, cfg.QuotesTable, cfg.AuthorsTable, logger)
	if err != nil {
		pool.Close()
		return nil, err
	}
	return store, nil
}

// NewResultStoreWithPool builds a store around an existing pool.
func NewResultStoreWithPool(pool beginCloser, quotesTable, authorsTable string, logger *zap.Logger) (*ResultStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if quotesTable == "" {
		quotesTable = "quotes"
	}
	if authorsTable == "" {
		authorsTable = "authors"
	}
	for _, table := range []string{quotesTable, authorsTable} {
		if !validTableName.MatchString(table) {
			return nil, fmt.Errorf("invalid table name %q", table)
		}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ResultStore{
		pool:         pool,
		quotesTable:  quotesTable,
		authorsTable: authorsTable,
		logger:       logger.Named("postgres"),
	}, nil
}

// Close releases the underlying pool resources.
func (s *ResultStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// Ping checks that the database is reachable.
func (s *ResultStore) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return fmt.Errorf("ping postgres: %w", err)
	}
	return nil
}

// SaveResult writes every record and author of result in one transaction.
// Re-saving the same crawl ID replaces its rows.
func (s *ResultStore) SaveResult(ctx context.Context, result crawler.CrawlResult) (err error) {
	if s == nil || s.pool == nil {
		return fmt.Errorf("result store is not configured")
	}
	if result.CrawlID == "" {
		return fmt.Errorf("crawl id is required")
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, pgx.ErrTxClosed) {
				s.logger.Warn("rollback failed", zap.String("crawl_id", result.CrawlID), zap.Error(rbErr))
			}
		}
	}()

	quotesSQL := fmt.Sprintf(`
INSERT INTO %s (crawl_id, position, author_name, text, tags, crawled_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (crawl_id, position) DO UPDATE SET
	author_name = EXCLUDED.author_name,
	text = EXCLUDED.text,
	tags = EXCLUDED.tags,
	crawled_at = EXCLUDED.crawled_at`, s.quotesTable)
	for i, rec := range result.Records {
		tags := rec.Tags
		if tags == nil {
			tags = []string{}
		}
		if _, err = tx.Exec(ctx, quotesSQL, result.CrawlID, i, rec.AuthorName, rec.Text, tags, result.FinishedAt); err != nil {
			return fmt.Errorf("upsert quote %d: %w", i, err)
		}
	}

	authorsSQL := fmt.Sprintf(`
INSERT INTO %s (crawl_id, fullname, born_date, born_location, description, crawled_at)
VALUES ($1,$2,$3,$4,$5,$6)
ON CONFLICT (crawl_id, fullname) DO UPDATE SET
	born_date = EXCLUDED.born_date,
	born_location = EXCLUDED.born_location,
	description = EXCLUDED.description,
	crawled_at = EXCLUDED.crawled_at`, s.authorsTable)
	for _, a := range result.Authors {
		if _, err = tx.Exec(ctx, authorsSQL, result.CrawlID, a.FullName, a.BornDate, a.BornLocation, a.Description, result.FinishedAt); err != nil {
			return fmt.Errorf("upsert author %q: %w", a.FullName, err)
		}
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	s.logger.Info("crawl persisted",
		zap.String("crawl_id", result.CrawlID),
		zap.Int("quotes", len(result.Records)),
		zap.Int("authors", len(result.Authors)),
	)
	return nil
}
