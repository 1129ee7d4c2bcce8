package store

import (
	"context"
	"time"

	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/faults"
)

const runColumns = `id, status, trigger, scraped, new_jobs, evaluated, matched,
	applied, failed, llm_cost, error, started_at, finished_at`

// InsertRun records a run at start.
func (s *Store) InsertRun(ctx context.Context, run domain.Run) error {
	const q = `
		INSERT INTO runs (id, status, trigger, started_at)
		VALUES ($1, $2, $3, $4)`
	_, err := s.pool.Exec(ctx, q, run.ID, run.Status, run.Trigger, run.StartedAt)
	if err != nil {
		return faults.Wrap(faults.Classify(err), "store.insert_run", err)
	}
	return nil
}

// FinishRun writes the run's terminal state and counters.
func (s *Store) FinishRun(ctx context.Context, run domain.Run) error {
	const q = `
		UPDATE runs SET status = $1, scraped = $2, new_jobs = $3, evaluated = $4,
			matched = $5, applied = $6, failed = $7, llm_cost = $8, error = $9,
			finished_at = $10
		WHERE id = $11`
	_, err := s.pool.Exec(ctx, q, run.Status, run.Counters.Scraped, run.Counters.New,
		run.Counters.Evaluated, run.Counters.Matched, run.Counters.Applied,
		run.Counters.Failed, run.LLMCost, run.Error, run.FinishedAt, run.ID)
	if err != nil {
		return faults.Wrap(faults.Classify(err), "store.finish_run", err)
	}
	return nil
}

func scanRun(scan func(...interface{}) error) (domain.Run, error) {
	var r domain.Run
	var finished *time.Time
	err := scan(&r.ID, &r.Status, &r.Trigger, &r.Counters.Scraped, &r.Counters.New,
		&r.Counters.Evaluated, &r.Counters.Matched, &r.Counters.Applied,
		&r.Counters.Failed, &r.LLMCost, &r.Error, &r.StartedAt, &finished)
	if finished != nil {
		r.FinishedAt = *finished
	}
	return r, err
}

// ListRuns returns run history, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]domain.Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC`
	args := []interface{}{}
	if limit > 0 {
		args = append(args, limit)
		q += ` LIMIT $1`
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, faults.Wrap(faults.Classify(err), "store.list_runs", err)
	}
	defer rows.Close()

	var runs []domain.Run
	for rows.Next() {
		r, err := scanRun(rows.Scan)
		if err != nil {
			return nil, faults.Wrap(faults.Classify(err), "store.list_runs", err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}
