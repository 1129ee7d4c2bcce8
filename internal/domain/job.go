// Package domain holds the core records the pipeline moves between stages.
package domain

import (
	"strings"
	"time"
)

// JobStatus tracks a job through the pipeline.
type JobStatus string

const (
	JobScraped   JobStatus = "scraped"
	JobEvaluated JobStatus = "evaluated"
	JobMatched   JobStatus = "matched"
	JobApplied   JobStatus = "applied"
	JobSkipped   JobStatus = "skipped"
	JobFailed    JobStatus = "failed"
)

// Job is a scraped posting. Title+Company+Link is the natural key used for
// deduplication across runs and sources.
type Job struct {
	ID          int64     `json:"id,omitempty"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Link        string    `json:"link"`
	Location    string    `json:"location,omitempty"`
	Salary      string    `json:"salary,omitempty"`
	Tags        []string  `json:"tags,omitempty"`
	Source      string    `json:"source"`
	Description string    `json:"description,omitempty"`
	Status      JobStatus `json:"status"`
	Score       float64   `json:"score,omitempty"`
	ScoreReason string    `json:"score_reason,omitempty"`
	Provenance  string    `json:"provenance,omitempty"`
	ScrapedAt   time.Time `json:"scraped_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// Normalize trims whitespace on the natural-key fields so dedup does not
// split on formatting noise.
func (j *Job) Normalize() {
	j.Title = strings.TrimSpace(j.Title)
	j.Company = strings.TrimSpace(j.Company)
	j.Link = strings.TrimSpace(j.Link)
	j.Location = strings.TrimSpace(j.Location)
	j.Salary = strings.TrimSpace(j.Salary)
}

// Valid reports whether the job carries a complete natural key.
func (j *Job) Valid() bool {
	return j.Title != "" && j.Company != "" && j.Link != ""
}

// Text returns the free-text blob used for evaluation prompts and the
// heuristic scorer.
func (j *Job) Text() string {
	parts := []string{j.Title, j.Company, j.Location, strings.Join(j.Tags, " "), j.Description}
	return strings.Join(parts, "\n")
}
