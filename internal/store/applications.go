package store

import (
	"context"

	"github.com/google/uuid"

	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/faults"
)

const appColumns = `id, job_id, job_title, company, link, source, score, message, status, detail, submitted_at`

// InsertApplication records one submission attempt. A missing ID is
// assigned.
func (s *Store) InsertApplication(ctx context.Context, app domain.Application) (domain.Application, error) {
	if app.ID == "" {
		app.ID = uuid.NewString()
	}
	if app.SubmittedAt.IsZero() {
		app.SubmittedAt = s.now()
	}

	const q = `
		INSERT INTO applications (id, job_id, job_title, company, link, source, score, message, status, detail, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`
	_, err := s.pool.Exec(ctx, q, app.ID, nullableID(app.JobID), app.JobTitle, app.Company,
		app.Link, app.Source, app.Score, app.Message, app.Status, app.Detail, app.SubmittedAt)
	if err != nil {
		return domain.Application{}, faults.Wrap(faults.Classify(err), "store.insert_application", err)
	}
	return app, nil
}

// HasApplied reports whether a submission was ever recorded for the job's
// natural key, regardless of which run or source produced it.
func (s *Store) HasApplied(ctx context.Context, job domain.Job) (bool, error) {
	const q = `SELECT EXISTS (
		SELECT 1 FROM applications
		WHERE job_title = $1 AND company = $2 AND link = $3 AND status = $4)`
	var applied bool
	err := s.pool.QueryRow(ctx, q, job.Title, job.Company, job.Link, domain.AppApplied).Scan(&applied)
	if err != nil {
		return false, faults.Wrap(faults.Classify(err), "store.has_applied", err)
	}
	return applied, nil
}

// ListApplications returns submissions, newest first.
func (s *Store) ListApplications(ctx context.Context, limit int) ([]domain.Application, error) {
	q := `SELECT ` + appColumns + ` FROM applications ORDER BY submitted_at DESC`
	args := []interface{}{}
	if limit > 0 {
		args = append(args, limit)
		q += ` LIMIT $1`
	}

	rows, err := s.pool.Query(ctx, q, args...)
	if err != nil {
		return nil, faults.Wrap(faults.Classify(err), "store.list_applications", err)
	}
	defer rows.Close()

	var apps []domain.Application
	for rows.Next() {
		var a domain.Application
		var jobID *int64
		if err := rows.Scan(&a.ID, &jobID, &a.JobTitle, &a.Company, &a.Link, &a.Source,
			&a.Score, &a.Message, &a.Status, &a.Detail, &a.SubmittedAt); err != nil {
			return nil, faults.Wrap(faults.Classify(err), "store.list_applications", err)
		}
		if jobID != nil {
			a.JobID = *jobID
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}

// CountApplicationsByStatus returns per-status totals.
func (s *Store) CountApplicationsByStatus(ctx context.Context) (map[string]int, error) {
	rows, err := s.pool.Query(ctx, `SELECT status, count(*) FROM applications GROUP BY status`)
	if err != nil {
		return nil, faults.Wrap(faults.Classify(err), "store.count_applications", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var status string
		var n int
		if err := rows.Scan(&status, &n); err != nil {
			return nil, faults.Wrap(faults.Classify(err), "store.count_applications", err)
		}
		counts[status] = n
	}
	return counts, rows.Err()
}

func nullableID(id int64) interface{} {
	if id == 0 {
		return nil
	}
	return id
}
