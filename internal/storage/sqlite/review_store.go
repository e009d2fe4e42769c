// Package sqlite keeps harvested datasets in a local SQLite database so
// several runs can be compared without a Postgres server.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/JakeFAU/critic-review-crawler/internal/crawler"
)

const schema = `
CREATE TABLE IF NOT EXISTS critic_reviews (
    id           INTEGER PRIMARY KEY AUTOINCREMENT,
    run_id       TEXT    NOT NULL,
    harvested_at TEXT    NOT NULL,
    critic_id    TEXT    NOT NULL,
    movie_id     TEXT    NOT NULL,
    fresh        TEXT    NOT NULL,
    score        INTEGER NOT NULL CHECK (score BETWEEN 1 AND 5),
    review       TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_critic_reviews_run ON critic_reviews(run_id);
`

// ReviewStore persists dataset rows in SQLite.
type ReviewStore struct {
	db    *sql.DB
	path  string
	clock crawler.Clock
}

// Open creates or opens the database at path and applies the schema.
func Open(ctx context.Context, path string, clock crawler.Clock) (*ReviewStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if clock == nil {
		return nil, fmt.Errorf("clock is required")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create sqlite dir: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.ExecContext(ctx, pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &ReviewStore{db: db, path: path, clock: clock}, nil
}

// Path returns the database file location.
func (s *ReviewStore) Path() string { return s.path }

// Close closes the underlying database connection.
func (s *ReviewStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// WriteDataset implements crawler.DatasetSink. All rows of a run are written
// in one transaction.
func (s *ReviewStore) WriteDataset(ctx context.Context, runID string, reviews []crawler.Review) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO critic_reviews (
            run_id, harvested_at, critic_id, movie_id, fresh, score, review
        ) VALUES (?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	harvestedAt := s.clock.Now().UTC().Format(time.RFC3339Nano)
	for _, r := range reviews {
		if _, err := stmt.ExecContext(ctx, runID, harvestedAt, r.CriticID, r.MovieID, r.Fresh, r.Score, r.Review); err != nil {
			return "", fmt.Errorf("insert review %s/%s: %w", r.CriticID, r.MovieID, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit reviews: %w", err)
	}
	return fmt.Sprintf("sqlite://%s?run_id=%s", s.path, runID), nil
}

// ListRun returns the rows stored for runID in insertion order.
func (s *ReviewStore) ListRun(ctx context.Context, runID string) ([]crawler.Review, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT critic_id, movie_id, fresh, score, review
        FROM critic_reviews WHERE run_id = ? ORDER BY id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []crawler.Review
	for rows.Next() {
		var r crawler.Review
		if err := rows.Scan(&r.CriticID, &r.MovieID, &r.Fresh, &r.Score, &r.Review); err != nil {
			return nil, fmt.Errorf("scan review: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reviews: %w", err)
	}
	return out, nil
}
