package domain

import "time"

// ApplicationStatus is the outcome of one submission attempt.
type ApplicationStatus string

const (
	AppApplied      ApplicationStatus = "applied"
	AppFailed       ApplicationStatus = "failed"
	AppSkipped      ApplicationStatus = "skipped"
	AppNeedsCaptcha ApplicationStatus = "needs_captcha"
)

// Application records one submission attempt against a job posting. The
// natural-key triple is denormalized so the "already applied" check works
// without a join.
type Application struct {
	ID          string            `json:"id"`
	JobID       int64             `json:"job_id,omitempty"`
	JobTitle    string            `json:"job_title"`
	Company     string            `json:"company"`
	Link        string            `json:"link"`
	Source      string            `json:"source"`
	Score       float64           `json:"score,omitempty"`
	Message     string            `json:"message,omitempty"`
	Status      ApplicationStatus `json:"status"`
	Detail      string            `json:"detail,omitempty"`
	SubmittedAt time.Time         `json:"submitted_at"`
}
