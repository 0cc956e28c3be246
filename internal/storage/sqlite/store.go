// Package sqlite persists crawl runs and credits in a local SQLite database.
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	_ "modernc.org/sqlite" // SQLite driver

	"github.com/JakeFAU/castcrawler/internal/credit"
	"github.com/JakeFAU/castcrawler/internal/storage"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	seed_url TEXT NOT NULL,
	seed_title TEXT,
	started_at DATETIME NOT NULL,
	finished_at DATETIME NOT NULL,
	pages INTEGER NOT NULL DEFAULT 0,
	failures INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS idx_runs_finished ON runs(finished_at);

CREATE TABLE IF NOT EXISTS credits (
	run_id TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	actor TEXT NOT NULL,
	title TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
);
`

// Store implements storage.Store on top of SQLite.
type Store struct {
	db     *sql.DB
	logger *zap.Logger
}

// Open opens (creating if needed) the database at path and applies the schema.
// Use ":memory:" for an ephemeral database.
func Open(ctx context.Context, path string, logger *zap.Logger) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	dsn := path
	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
		dsn = "file:" + path + "?mode=rwc&_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return &Store{db: db, logger: logger.Named("store")}, nil
}

// SaveRun inserts the run and its credits in a single transaction.
func (s *Store) SaveRun(ctx context.Context, run credit.Run, credits []credit.Credit) (err error) {
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if len(credits) == 0 {
		return storage.ErrNoCredits
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if _, err = tx.ExecContext(ctx, `
	INSERT INTO runs (id, seed_url, seed_title, started_at, finished_at, pages, failures)
	VALUES (?, ?, ?, ?, ?, ?, ?)`,
		run.ID, run.SeedURL, run.SeedTitle, run.StartedAt.UTC(), run.FinishedAt.UTC(), run.Pages, run.Failures,
	); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO credits (run_id, position, actor, title) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare credit insert: %w", err)
	}
	defer stmt.Close()
	for i, c := range credits {
		if _, err = stmt.ExecContext(ctx, run.ID, i, c.Actor, c.Title); err != nil {
			return fmt.Errorf("insert credit %d: %w", i, err)
		}
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit run: %w", err)
	}
	s.logger.Info("Run saved", zap.String("run_id", run.ID), zap.Int("credits", len(credits)))
	return nil
}

// ListCredits returns the credits of runID in insertion order, or of the most
// recently finished run when runID is empty.
func (s *Store) ListCredits(ctx context.Context, runID string) ([]credit.Credit, error) {
	resolved, err := s.resolveRun(ctx, runID)
	if err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT actor, title FROM credits WHERE run_id = ? ORDER BY position`, resolved)
	if err != nil {
		return nil, fmt.Errorf("query credits: %w", err)
	}
	defer rows.Close()

	credits := make([]credit.Credit, 0)
	for rows.Next() {
		var c credit.Credit
		if err := rows.Scan(&c.Actor, &c.Title); err != nil {
			return nil, fmt.Errorf("scan credit: %w", err)
		}
		credits = append(credits, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate credits: %w", err)
	}
	return credits, nil
}

func (s *Store) resolveRun(ctx context.Context, runID string) (string, error) {
	query := `SELECT id FROM runs WHERE id = ?`
	args := []any{runID}
	if runID == "" {
		query = `SELECT id FROM runs ORDER BY finished_at DESC, id DESC LIMIT 1`
		args = nil
	}
	var id string
	if err := s.db.QueryRowContext(ctx, query, args...).Scan(&id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", storage.ErrRunNotFound
		}
		return "", fmt.Errorf("resolve run: %w", err)
	}
	return id, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
