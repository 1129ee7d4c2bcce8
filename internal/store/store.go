// Package store persists jobs, applications, and run history in Postgres.
package store

import (
	"context"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"go.uber.org/zap"

	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/logging"
	"github.com/seekerworks/jobpilot/internal/resilience"
)

// Store wraps a pgx connection pool with the queries the pipeline needs.
type Store struct {
	pool *pgxpool.Pool
	log  *logging.Logger
	now  func() time.Time
}

// Connect opens the pool, retrying with backoff so the service survives a
// database that comes up after it does, then applies migrations.
func Connect(ctx context.Context, databaseURL string, log *logging.Logger) (*Store, error) {
	cfg, err := pgxpool.ParseConfig(databaseURL)
	if err != nil {
		return nil, faults.Wrap(faults.KindValidation, "store.connect", err)
	}
	cfg.MaxConns = 10
	cfg.MinConns = 2
	cfg.MaxConnLifetime = time.Hour

	slog := log.Component("store")

	var pool *pgxpool.Pool
	err = resilience.Retry(ctx, resilience.RetryConfig{
		MaxAttempts:    5,
		InitialBackoff: time.Second,
		MaxBackoff:     15 * time.Second,
	}, func() error {
		p, err := pgxpool.NewWithConfig(ctx, cfg)
		if err != nil {
			return err
		}
		if err := p.Ping(ctx); err != nil {
			p.Close()
			slog.Warn("database not ready", zap.Error(err))
			return err
		}
		pool = p
		return nil
	})
	if err != nil {
		return nil, faults.Wrap(faults.KindNetwork, "store.connect", err)
	}

	s := &Store{pool: pool, log: slog, now: time.Now}
	if err := s.migrate(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	slog.Info("database connected")
	return s, nil
}

// migrate applies the schema. Every statement is idempotent so startup can
// run it unconditionally.
func (s *Store) migrate(ctx context.Context) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS jobs (
			id           BIGSERIAL PRIMARY KEY,
			title        TEXT NOT NULL,
			company      TEXT NOT NULL,
			link         TEXT NOT NULL,
			location     TEXT NOT NULL DEFAULT '',
			salary       TEXT NOT NULL DEFAULT '',
			tags         TEXT[] NOT NULL DEFAULT '{}',
			source       TEXT NOT NULL,
			description  TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL DEFAULT 'scraped',
			score        DOUBLE PRECISION NOT NULL DEFAULT 0,
			score_reason TEXT NOT NULL DEFAULT '',
			provenance   TEXT NOT NULL DEFAULT '',
			scraped_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
			updated_at   TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS jobs_natural_key
			ON jobs (title, company, link)`,
		`CREATE TABLE IF NOT EXISTS applications (
			id           TEXT PRIMARY KEY,
			job_id       BIGINT REFERENCES jobs(id),
			job_title    TEXT NOT NULL,
			company      TEXT NOT NULL,
			link         TEXT NOT NULL,
			source       TEXT NOT NULL,
			score        DOUBLE PRECISION NOT NULL DEFAULT 0,
			message      TEXT NOT NULL DEFAULT '',
			status       TEXT NOT NULL,
			detail       TEXT NOT NULL DEFAULT '',
			submitted_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)`,
		`CREATE INDEX IF NOT EXISTS applications_natural_key
			ON applications (job_title, company, link)`,
		`CREATE TABLE IF NOT EXISTS runs (
			id          TEXT PRIMARY KEY,
			status      TEXT NOT NULL,
			trigger     TEXT NOT NULL,
			scraped     INT NOT NULL DEFAULT 0,
			new_jobs    INT NOT NULL DEFAULT 0,
			evaluated   INT NOT NULL DEFAULT 0,
			matched     INT NOT NULL DEFAULT 0,
			applied     INT NOT NULL DEFAULT 0,
			failed      INT NOT NULL DEFAULT 0,
			llm_cost    DOUBLE PRECISION NOT NULL DEFAULT 0,
			error       TEXT NOT NULL DEFAULT '',
			started_at  TIMESTAMPTZ NOT NULL,
			finished_at TIMESTAMPTZ
		)`,
	}
	for _, stmt := range statements {
		if _, err := s.pool.Exec(ctx, stmt); err != nil {
			return faults.Wrap(faults.KindValidation, "store.migrate", err)
		}
	}
	return nil
}

// Ping reports pool health for the health endpoint.
func (s *Store) Ping(ctx context.Context) error {
	if err := s.pool.Ping(ctx); err != nil {
		return faults.Wrap(faults.KindNetwork, "store.ping", err)
	}
	return nil
}

// Close releases the pool.
func (s *Store) Close() {
	s.pool.Close()
}
