// Package postgres persists crawl runs and credits in Postgres.
package postgres

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JakeFAU/castcrawler/internal/credit"
	"github.com/JakeFAU/castcrawler/internal/storage"
)

var validTableName = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

const defaultTable = "credits"

// Config controls the Postgres connection pool used for credit rows.
type Config struct {
	DSN             string
	Table           string
	MaxConns        int32
	MinConns        int32
	MaxConnLifetime time.Duration
}

type pool interface {
	Exec(context.Context, string, ...any) (pgconn.CommandTag, error)
	Query(context.Context, string, ...any) (pgx.Rows, error)
	Close()
}

// Store writes runs into <table>_runs and credits into <table>.
type Store struct {
	pool  pool
	table string
}

// New creates a Postgres-backed Store using the provided config and applies the schema.
func New(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("storage.postgres_dsn is required")
	}
	table, err := tableName(cfg.Table)
	if err != nil {
		return nil, err
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
	s := &Store{pool: p, table: table}
	if err := s.EnsureSchema(ctx); err != nil {
		p.Close()
		return nil, err
	}
	return s, nil
}

// NewWithPool constructs a store from an existing pool (primarily for testing).
func NewWithPool(p pool, table string) (*Store, error) {
	if p == nil {
		return nil, fmt.Errorf("pool is required")
	}
	name, err := tableName(table)
	if err != nil {
		return nil, err
	}
	return &Store{pool: p, table: name}, nil
}

func tableName(table string) (string, error) {
	if table == "" {
		table = defaultTable
	}
	if !validTableName.MatchString(table) {
		return "", fmt.Errorf("invalid table name %q", table)
	}
	return table, nil
}

// EnsureSchema creates the run and credit tables if they do not exist.
func (s *Store) EnsureSchema(ctx context.Context) error {
	query := fmt.Sprintf(`
CREATE TABLE IF NOT EXISTS %[1]s_runs (
	id TEXT PRIMARY KEY,
	seed_url TEXT NOT NULL,
	seed_title TEXT,
	started_at TIMESTAMPTZ NOT NULL,
	finished_at TIMESTAMPTZ NOT NULL,
	pages INTEGER NOT NULL DEFAULT 0,
	failures INTEGER NOT NULL DEFAULT 0
);
CREATE TABLE IF NOT EXISTS %[1]s (
	run_id TEXT NOT NULL REFERENCES %[1]s_runs(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	actor TEXT NOT NULL,
	title TEXT NOT NULL,
	PRIMARY KEY (run_id, position)
)`, s.table)
	if _, err := s.pool.Exec(ctx, query); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// Close releases the underlying pool resources.
func (s *Store) Close() error {
	if s == nil || s.pool == nil {
		return nil
	}
	s.pool.Close()
	return nil
}

// SaveRun writes the run row and all credit rows in a single statement.
func (s *Store) SaveRun(ctx context.Context, run credit.Run, credits []credit.Credit) error {
	if s == nil || s.pool == nil {
		return fmt.Errorf("credit store is not configured")
	}
	if run.ID == "" {
		return fmt.Errorf("run id is required")
	}
	if len(credits) == 0 {
		return storage.ErrNoCredits
	}
	query, args := s.saveRunQuery(run, credits)
	if _, err := s.pool.Exec(ctx, query, args...); err != nil {
		return fmt.Errorf("insert run: %w", err)
	}
	return nil
}

func (s *Store) saveRunQuery(run credit.Run, credits []credit.Credit) (string, []any) {
	positions := make([]int32, len(credits))
	actors := make([]string, len(credits))
	titles := make([]string, len(credits))
	for i, c := range credits {
		positions[i] = int32(i)
		actors[i] = c.Actor
		titles[i] = c.Title
	}
	// Credits travel as three parallel arrays to stay under the bind parameter limit.
	query := fmt.Sprintf(`
WITH run AS (
	INSERT INTO %[1]s_runs (id, seed_url, seed_title, started_at, finished_at, pages, failures)
	VALUES ($1,$2,$3,$4,$5,$6,$7)
	RETURNING id
)
INSERT INTO %[1]s (run_id, position, actor, title)
SELECT run.id, c.position, c.actor, c.title
FROM run, unnest($8::int[], $9::text[], $10::text[]) AS c(position, actor, title)`, s.table)
	args := []any{
		run.ID,
		run.SeedURL,
		run.SeedTitle,
		run.StartedAt.UTC(),
		run.FinishedAt.UTC(),
		run.Pages,
		run.Failures,
		positions,
		actors,
		titles,
	}
	return query, args
}

// ListCredits returns the credits of runID in insertion order, or of the most
// recently finished run when runID is empty.
func (s *Store) ListCredits(ctx context.Context, runID string) ([]credit.Credit, error) {
	if s == nil || s.pool == nil {
		return nil, fmt.Errorf("credit store is not configured")
	}
	query := fmt.Sprintf(`
SELECT actor, title FROM %[1]s
WHERE run_id = COALESCE(NULLIF($1, ''), (
	SELECT id FROM %[1]s_runs ORDER BY finished_at DESC, id DESC LIMIT 1
))
ORDER BY position`, s.table)
	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query credits: %w", err)
	}
	credits, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (credit.Credit, error) {
		var c credit.Credit
		err := row.Scan(&c.Actor, &c.Title)
		return c, err
	})
	if err != nil {
		return nil, fmt.Errorf("scan credits: %w", err)
	}
	// Every saved run has at least one credit, so no rows means no such run.
	if len(credits) == 0 {
		return nil, storage.ErrRunNotFound
	}
	return credits, nil
}
