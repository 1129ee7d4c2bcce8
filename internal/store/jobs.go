package store

import (
	"context"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/faults"
)

const jobColumns = `id, title, company, link, location, salary, tags, source,
	description, status, score, score_reason, provenance, scraped_at, updated_at`

func scanJob(row pgx.Row) (domain.Job, error) {
	var j domain.Job
	err := row.Scan(&j.ID, &j.Title, &j.Company, &j.Link, &j.Location, &j.Salary,
		&j.Tags, &j.Source, &j.Description, &j.Status, &j.Score, &j.ScoreReason,
		&j.Provenance, &j.ScrapedAt, &j.UpdatedAt)
	return j, err
}

// UpsertJob inserts a job or refreshes the mutable fields of the existing
// row with the same natural key. It returns the stored job and whether the
// row was newly inserted.
func (s *Store) UpsertJob(ctx context.Context, job domain.Job) (domain.Job, bool, error) {
	job.Normalize()
	if !job.Valid() {
		return domain.Job{}, false, faults.New(faults.KindValidation, "store.upsert_job", "job missing title, company, or link")
	}

	const q = `
		INSERT INTO jobs (title, company, link, location, salary, tags, source, description, status, scraped_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $10)
		ON CONFLICT (title, company, link) DO UPDATE SET
			location = EXCLUDED.location,
			salary = EXCLUDED.salary,
			tags = EXCLUDED.tags,
			description = EXCLUDED.description,
			updated_at = EXCLUDED.updated_at
		RETURNING ` + jobColumns + `, (xmax = 0) AS inserted`

	now := s.now()
	tags := job.Tags
	if tags == nil {
		tags = []string{}
	}
	var stored domain.Job
	var inserted bool
	err := s.pool.QueryRow(ctx, q, job.Title, job.Company, job.Link, job.Location,
		job.Salary, tags, job.Source, job.Description, domain.JobScraped, now).
		Scan(&stored.ID, &stored.Title, &stored.Company, &stored.Link, &stored.Location,
			&stored.Salary, &stored.Tags, &stored.Source, &stored.Description, &stored.Status,
			&stored.Score, &stored.ScoreReason, &stored.Provenance, &stored.ScrapedAt,
			&stored.UpdatedAt, &inserted)
	if err != nil {
		return domain.Job{}, false, faults.Wrap(faults.Classify(err), "store.upsert_job", err)
	}
	return stored, inserted, nil
}

// UpdateEvaluation records the scoring outcome on a job row.
func (s *Store) UpdateEvaluation(ctx context.Context, jobID int64, eval domain.Evaluation, status domain.JobStatus) error {
	const q = `UPDATE jobs SET score = $1, score_reason = $2, provenance = $3, status = $4, updated_at = $5 WHERE id = $6`
	_, err := s.pool.Exec(ctx, q, eval.Score, eval.Reason, eval.Provenance, status, s.now(), jobID)
	if err != nil {
		return faults.Wrap(faults.Classify(err), "store.update_evaluation", err)
	}
	return nil
}

// UpdateJobStatus moves a job through the pipeline states.
func (s *Store) UpdateJobStatus(ctx context.Context, jobID int64, status domain.JobStatus) error {
	_, err := s.pool.Exec(ctx, `UPDATE jobs SET status = $1, updated_at = $2 WHERE id = $3`, status, s.now(), jobID)
	if err != nil {
		return faults.Wrap(faults.Classify(err), "store.update_job_status", err)
	}
	return nil
}

// JobFilter narrows ListJobs. Zero values mean "any".
type JobFilter struct {
	Status   domain.JobStatus
	Source   string
	MinScore float64
	Limit    int
}

// ListJobs returns jobs matching the filter, newest first.
func (s *Store) ListJobs(ctx context.Context, f JobFilter) ([]domain.Job, error) {
	var (
		conds []string
		args  []interface{}
	)
	add := func(cond string, val interface{}) {
		args = append(args, val)
		conds = append(conds, cond+placeholder(len(args)))
	}
	if f.Status != "" {
		add("status = ", f.Status)
	}
	if f.Source != "" {
		add("source = ", f.Source)
	}
	if f.MinScore > 0 {
		add("score >= ", f.MinScore)
	}

	q := `SELECT ` + jobColumns + ` FROM jobs`
	if len(conds) > 0 {
		q += ` WHERE ` + strings.Join(conds, " AND ")
	}
	q += ` ORDER BY scraped_at DESC`
	if f.Limit > 0 {
		args = append(args, f.Limit)
		q += ` LIMIT ` + placeholder(len(args))
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, faults.Wrap(faults.Classify(err), "store.list_jobs", err)
	}
	defer rows.Close()

	var jobs []domain.Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, faults.Wrap(faults.Classify(err), "store.list_jobs", err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

// CountJobsByStatus returns per-status totals for the stats endpoint.
func (s *Store) CountJobsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM jobs GROUP BY status`)
	if err != nil {
		return nil, faults.Wrap(faults.Classify(err), "store.count_jobs", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, faults.Wrap(faults.Classify(err), "store.count_jobs", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

// JobScores returns all non-zero scores, for distribution stats.
func (s *Store) JobScores(ctx context.Context) ([]float64, error) {
	rows, err := s.pool.Query(ctx, `SELECT score FROM jobs WHERE score > 0`)
	if err != nil {
		return nil, faults.Wrap(faults.Classify(err), "store.job_scores", err)
	}
	defer rows.Close()

	var scores []float64
	for rows.Next() {
		var v float64
		if err := rows.Scan(&v); err != nil {
			return nil, faults.Wrap(faults.Classify(err), "store.job_scores", err)
		}
		scores = append(scores, v)
	}
	return scores, rows.Err()
}

func placeholder(n int) string {
	return "$" + strconv.Itoa(n)
}
