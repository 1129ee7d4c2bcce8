package domain

import "time"

// RunStatus is the lifecycle state of one pipeline execution.
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// RunCounters aggregates per-stage outcomes for one run.
type RunCounters struct {
	Scraped   int `json:"scraped"`
	New       int `json:"new"`
	Evaluated int `json:"evaluated"`
	Matched   int `json:"matched"`
	Applied   int `json:"applied"`
	Failed    int `json:"failed"`
}

// Run is one pipeline execution. Item-level failures only bump counters;
// Error is set when the run itself aborted.
type Run struct {
	ID         string      `json:"id"`
	Status     RunStatus   `json:"status"`
	Trigger    string      `json:"trigger"` // "api", "cli", "schedule"
	Counters   RunCounters `json:"counters"`
	LLMCost    float64     `json:"llm_cost"`
	Error      string      `json:"error,omitempty"`
	StartedAt  time.Time   `json:"started_at"`
	FinishedAt time.Time   `json:"finished_at,omitempty"`
}

// Duration returns the run's wall time; for a running run, time so far.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return time.Since(r.StartedAt)
	}
	return r.FinishedAt.Sub(r.StartedAt)
}
