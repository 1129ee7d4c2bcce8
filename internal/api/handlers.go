package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/seekerworks/jobpilot/internal/browser"
	"github.com/seekerworks/jobpilot/internal/cache"
	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/governor"
	"github.com/seekerworks/jobpilot/internal/monitoring"
	"github.com/seekerworks/jobpilot/internal/pipeline"
	"github.com/seekerworks/jobpilot/internal/resilience"
	"github.com/seekerworks/jobpilot/internal/scraper/registry"
	"github.com/seekerworks/jobpilot/internal/store"
)

// Store is the read surface the handlers need.
type Store interface {
	Ping(ctx context.Context) error
	ListJobs(ctx context.Context, f store.JobFilter) ([]domain.Job, error)
	ListApplications(ctx context.Context, limit int) ([]domain.Application, error)
	ListRuns(ctx context.Context, limit int) ([]domain.Run, error)
	CountJobsByStatus(ctx context.Context) (map[string]int, error)
	CountApplicationsByStatus(ctx context.Context) (map[string]int, error)
	JobScores(ctx context.Context) ([]float64, error)
}

// Runner is the pipeline control surface.
type Runner interface {
	Trigger(ctx context.Context, trigger string) (string, error)
	Current() (domain.Run, bool)
	Subscribe() (<-chan pipeline.Event, func())
}

// Handlers binds the HTTP surface to the pipeline and its telemetry.
// selectors, browsers, tracker, breakers, and counters may be nil; their
// stats sections are omitted.
type Handlers struct {
	store     Store
	runner    Runner
	tracker   *governor.Tracker
	breakers  *resilience.Registry
	selectors *registry.Registry
	browsers  *browser.Manager
	counters  *cache.Counters
	metrics   *monitoring.Metrics
}

// NewHandlers wires the handler set.
func NewHandlers(st Store, runner Runner, tracker *governor.Tracker, breakers *resilience.Registry,
	selectors *registry.Registry, browsers *browser.Manager, counters *cache.Counters,
	metrics *monitoring.Metrics) *Handlers {
	return &Handlers{
		store:     st,
		runner:    runner,
		tracker:   tracker,
		breakers:  breakers,
		selectors: selectors,
		browsers:  browsers,
		counters:  counters,
		metrics:   metrics,
	}
}

// Health reports service and database liveness.
func (h *Handlers) Health(c *gin.Context) {
	status := http.StatusOK
	dbStatus := "ok"
	if err := h.store.Ping(c.Request.Context()); err != nil {
		status = http.StatusServiceUnavailable
		dbStatus = err.Error()
	}
	_, running := h.runner.Current()
	c.JSON(status, gin.H{
		"status":     statusWord(status),
		"database":   dbStatus,
		"run_active": running,
	})
}

// ListJobs serves stored jobs with optional status/source/min_score
// filters.
func (h *Handlers) ListJobs(c *gin.Context) {
	filter := store.JobFilter{
		Status: domain.JobStatus(c.Query("status")),
		Source: c.Query("source"),
		Limit:  intQuery(c, "limit", 100),
	}
	if v := c.Query("min_score"); v != "" {
		score, err := strconv.ParseFloat(v, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_score must be a number"})
			return
		}
		filter.MinScore = score
	}

	jobs, err := h.store.ListJobs(c.Request.Context(), filter)
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"jobs": jobs, "count": len(jobs)})
}

// ListApplications serves the submission log.
func (h *Handlers) ListApplications(c *gin.Context) {
	apps, err := h.store.ListApplications(c.Request.Context(), intQuery(c, "limit", 100))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"applications": apps, "count": len(apps)})
}

// ListRuns serves run history.
func (h *Handlers) ListRuns(c *gin.Context) {
	runs, err := h.store.ListRuns(c.Request.Context(), intQuery(c, "limit", 50))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// TriggerRun starts a pipeline run; 202 with the run ID, or 409 when one
// is already in flight.
func (h *Handlers) TriggerRun(c *gin.Context) {
	id, err := h.runner.Trigger(c.Request.Context(), "api")
	if err != nil {
		if errors.Is(err, pipeline.ErrBusy) {
			current, _ := h.runner.Current()
			c.JSON(http.StatusConflict, gin.H{"error": "a run is already in progress", "run_id": current.ID})
			return
		}
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"run_id": id})
}

// Stats aggregates pipeline, governor, breaker, cache, selector, and
// browser state into one operational snapshot.
func (h *Handlers) Stats(c *gin.Context) {
	ctx := c.Request.Context()
	out := gin.H{}

	if jobCounts, err := h.store.CountJobsByStatus(ctx); err == nil {
		out["jobs"] = jobCounts
	}
	if appCounts, err := h.store.CountApplicationsByStatus(ctx); err == nil {
		out["applications"] = appCounts
	}
	if scores, err := h.store.JobScores(ctx); err == nil {
		out["scores"] = monitoring.Distribution(scores)
	}
	if h.tracker != nil {
		out["governor"] = h.tracker.Stats()
	}
	if h.breakers != nil {
		out["breakers"] = h.breakers.Snapshot()
	}
	if h.selectors != nil {
		out["selectors"] = h.selectors.Health()
	}
	if h.browsers != nil {
		out["browser"] = h.browsers.Stats()
	}
	if h.counters != nil {
		hits, misses := h.counters.Snapshot()
		out["cache"] = gin.H{"hits": hits, "misses": misses}
	}
	if h.metrics != nil {
		out["totals"] = h.metrics.CurrentSnapshot()
	}
	if current, running := h.runner.Current(); running {
		out["current_run"] = current
	}

	c.JSON(http.StatusOK, out)
}

func intQuery(c *gin.Context, name string, def int) int {
	v := c.Query(name)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return def
	}
	return n
}

func statusWord(code int) string {
	if code == http.StatusOK {
		return "ok"
	}
	return "degraded"
}
