// Package postgres provides the Postgres-backed dataset sink.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/critic-review-crawler/internal/crawler"
)

const defaultTable = "critic_reviews"

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

var reviewColumns = []string{
	"run_id",
	"harvested_at",
	"critic_id",
	"movie_id",
	"fresh",
	"score",
	"review",
}

// ReviewStoreConfig controls the Postgres connection pool used for dataset rows.
type ReviewStoreConfig struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	CopyFrom(context.Context, pgx.Identifier, []string, pgx.CopyFromSource) (int64, error)
	Close()
}

// ReviewStore writes dataset rows into Postgres.
type ReviewStore struct {
	pool  pool
	table string
	clock crawler.Clock
}

// NewReviewStore connects to Postgres and ensures the review table exists.
func NewReviewStore(ctx context.Context, cfg ReviewStoreConfig, clock crawler.Clock) (*ReviewStore, error) {
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
	p, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect postgres: %w", err)
	}
	store, err := NewReviewStoreWithPool(p, cfg.Table, clock)
	if err != nil {
		p.Close()
		return nil, err
	}
	if err := store.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return store, nil
}

// NewReviewStoreWithPool constructs a store from an existing pool (primarily for testing).
func NewReviewStoreWithPool(p pool, table string, clock crawler.Clock) (*ReviewStore, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return nil, fmt.Errorf("invalid table name %q", table)
	}
	return &ReviewStore{pool: p, table: table, clock: clock}, nil
}

// EnsureSchema creates the review table when it does not exist.
func (s *ReviewStore) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %s (
	run_id       TEXT        NOT NULL,
	harvested_at TIMESTAMPTZ NOT NULL,
	critic_id    TEXT        NOT NULL,
	movie_id     TEXT        NOT NULL,
	fresh        TEXT        NOT NULL,
	score        SMALLINT    NOT NULL CHECK (score BETWEEN 1 AND 5),
	review       TEXT        NOT NULL
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("create review table: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *ReviewStore) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// WriteDataset implements crawler.DatasetSink by copying every row, tagged
// with the run id, into the review table.
func (s *ReviewStore) WriteDataset(ctx context.Context, runID string, reviews []crawler.Review) (string, error) {
	if s == nil || s.pool == nil {
		return "", fmt.Errorf("review store is not configured")
	}
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}
	location := fmt.Sprintf("postgres:%s?run_id=%s", s.table, runID)
	if len(reviews) == 0 {
		return location, nil
	}

	harvestedAt := s.clock.Now().UTC()
	rows := make([][]any, 0, len(reviews))
	for _, r := range reviews {
		rows = append(rows, []any{runID, harvestedAt, r.CriticID, r.MovieID, r.Fresh, r.Score, r.Review})
	}
	n, err := s.pool.CopyFrom(ctx, pgx.Identifier{s.table}, reviewColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return "", fmt.Errorf("copy reviews: %w", err)
	}
	if int(n) != len(rows) {
		return "", fmt.Errorf("copy reviews: wrote %d of %d rows", n, len(rows))
	}
	return location, nil
}
