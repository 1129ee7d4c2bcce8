// Package monitoring holds the Prometheus metrics and the JSON stats
// snapshot served by the API.
package monitoring

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics.
type Metrics struct {
	// HTTP metrics
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	// Scraping metrics
	JobsScraped    *prometheus.CounterVec
	ScrapeErrors   *prometheus.CounterVec
	ScrapeDuration *prometheus.HistogramVec

	// LLM metrics
	LLMRequests *prometheus.CounterVec
	LLMCost     prometheus.Counter
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// Breaker metrics
	BreakerState *prometheus.GaugeVec

	// Application metrics
	Applications *prometheus.CounterVec

	// Run metrics
	RunsTotal   *prometheus.CounterVec
	RunDuration prometheus.Histogram

	// System metrics
	Uptime    prometheus.Gauge
	startTime time.Time

	// Snapshot for the JSON API — track current values.
	snapshot Snapshot
	mu       sync.RWMutex
}

// Snapshot holds current values for the JSON stats endpoint.
type Snapshot struct {
	TotalRequests int64   `json:"total_requests"`
	TotalErrors   int64   `json:"total_errors"`
	JobsScraped   int64   `json:"jobs_scraped"`
	LLMRequests   int64   `json:"llm_requests"`
	LLMCost       float64 `json:"llm_cost"`
	CacheHits     int64   `json:"cache_hits"`
	CacheMisses   int64   `json:"cache_misses"`
	Applications  int64   `json:"applications"`
	RunsCompleted int64   `json:"runs_completed"`
	RunsFailed    int64   `json:"runs_failed"`
}

// NewMetrics creates the metric set on the given registerer. Tests pass a
// fresh registry so packages never collide on registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	m := &Metrics{
		startTime: time.Now(),

		RequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobpilot_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		RequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobpilot_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5, 10},
			},
			[]string{"method", "path"},
		),

		JobsScraped: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobpilot_jobs_scraped_total",
				Help: "Total number of jobs scraped",
			},
			[]string{"source"},
		),
		ScrapeErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobpilot_scrape_errors_total",
				Help: "Total number of scrape failures",
			},
			[]string{"source", "kind"},
		),
		ScrapeDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "jobpilot_scrape_duration_seconds",
				Help:    "Scrape duration per source in seconds",
				Buckets: []float64{.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"source"},
		),

		LLMRequests: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobpilot_llm_requests_total",
				Help: "Total number of LLM requests",
			},
			[]string{"tier", "status"},
		),
		LLMCost: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "jobpilot_llm_cost_dollars_total",
				Help: "Cumulative LLM spend in dollars",
			},
		),
		CacheHits: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "jobpilot_evaluation_cache_hits_total",
				Help: "Evaluation cache hits",
			},
		),
		CacheMisses: factory.NewCounter(
			prometheus.CounterOpts{
				Name: "jobpilot_evaluation_cache_misses_total",
				Help: "Evaluation cache misses",
			},
		),

		BreakerState: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "jobpilot_breaker_state",
				Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
			},
			[]string{"name"},
		),

		Applications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobpilot_applications_total",
				Help: "Application attempts by outcome",
			},
			[]string{"source", "status"},
		),

		RunsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "jobpilot_runs_total",
				Help: "Pipeline runs by terminal status",
			},
			[]string{"status"},
		),
		RunDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "jobpilot_run_duration_seconds",
				Help:    "Pipeline run duration in seconds",
				Buckets: []float64{10, 30, 60, 120, 300, 600, 1800, 3600},
			},
		),

		Uptime: factory.NewGauge(
			prometheus.GaugeOpts{
				Name: "jobpilot_uptime_seconds",
				Help: "Service uptime in seconds",
			},
		),
	}
	return m
}

// StartUptimeLoop updates the uptime gauge once a second until the context
// would normally end the process; callers run it as a goroutine.
func (m *Metrics) StartUptimeLoop() {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for range ticker.C {
		m.Uptime.Set(time.Since(m.startTime).Seconds())
	}
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path, status string, duration time.Duration) {
	m.RequestsTotal.WithLabelValues(method, path, status).Inc()
	m.RequestDuration.WithLabelValues(method, path).Observe(duration.Seconds())

	m.mu.Lock()
	m.snapshot.TotalRequests++
	if len(status) > 0 && (status[0] == '4' || status[0] == '5') {
		m.snapshot.TotalErrors++
	}
	m.mu.Unlock()
}

// RecordScrape records one source's scrape outcome.
func (m *Metrics) RecordScrape(source string, jobs int, duration time.Duration, errKind string) {
	m.ScrapeDuration.WithLabelValues(source).Observe(duration.Seconds())
	if errKind != "" {
		m.ScrapeErrors.WithLabelValues(source, errKind).Inc()
		return
	}
	m.JobsScraped.WithLabelValues(source).Add(float64(jobs))

	m.mu.Lock()
	m.snapshot.JobsScraped += int64(jobs)
	m.mu.Unlock()
}

// RecordLLMRequest records one model call and its spend.
func (m *Metrics) RecordLLMRequest(tier string, success bool, cost float64) {
	status := "success"
	if !success {
		status = "failure"
	}
	m.LLMRequests.WithLabelValues(tier, status).Inc()
	m.LLMCost.Add(cost)

	m.mu.Lock()
	m.snapshot.LLMRequests++
	m.snapshot.LLMCost += cost
	m.mu.Unlock()
}

// RecordCache records an evaluation cache lookup.
func (m *Metrics) RecordCache(hit bool) {
	m.mu.Lock()
	if hit {
		m.snapshot.CacheHits++
	} else {
		m.snapshot.CacheMisses++
	}
	m.mu.Unlock()
	if hit {
		m.CacheHits.Inc()
	} else {
		m.CacheMisses.Inc()
	}
}

// SetBreakerState publishes a breaker's current state.
func (m *Metrics) SetBreakerState(name string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// RecordApplication records one submission attempt.
func (m *Metrics) RecordApplication(source, status string) {
	m.Applications.WithLabelValues(source, status).Inc()
	m.mu.Lock()
	m.snapshot.Applications++
	m.mu.Unlock()
}

// RecordRun records a finished run.
func (m *Metrics) RecordRun(status string, duration time.Duration) {
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(duration.Seconds())

	m.mu.Lock()
	if status == "completed" {
		m.snapshot.RunsCompleted++
	} else {
		m.snapshot.RunsFailed++
	}
	m.mu.Unlock()
}

// CurrentSnapshot returns the JSON-facing view.
func (m *Metrics) CurrentSnapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}
