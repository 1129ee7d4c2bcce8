package governor

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/logging"
	"go.uber.org/zap"
)

// RequestRecord is one completed request against the metered endpoint.
// Immutable once appended; used only for windowed aggregate queries.
type RequestRecord struct {
	Timestamp   time.Time   `json:"timestamp"`
	Tier        string      `json:"tier"`
	InputUnits  int         `json:"input_units"`
	OutputUnits int         `json:"output_units"`
	Cost        float64     `json:"cost"`
	Success     bool        `json:"success"`
	ErrorKind   faults.Kind `json:"error_kind,omitempty"`
}

// Limits are the ceilings CanProceed enforces, in check order.
type Limits struct {
	MaxConcurrent     int
	RequestsPerMinute int
	RequestsPerHour   int
	DailyCostLimit    float64
	MinInterval       time.Duration
	// Retention bounds how far back history is kept.
	Retention time.Duration
	// HistoryPath is where history snapshots persist. Empty disables
	// persistence.
	HistoryPath string
}

// DefaultLimits returns the production ceilings.
func DefaultLimits() Limits {
	return Limits{
		MaxConcurrent:     3,
		RequestsPerMinute: 50,
		RequestsPerHour:   1000,
		DailyCostLimit:    10.0,
		MinInterval:       time.Second,
		Retention:         7 * 24 * time.Hour,
	}
}

// Stats is a point-in-time view of tracker state for /stats and logs.
type Stats struct {
	RequestsLastMinute int     `json:"requests_last_minute"`
	RequestsLastHour   int     `json:"requests_last_hour"`
	RequestsToday      int     `json:"requests_today"`
	CostToday          float64 `json:"cost_today"`
	CostRemaining      float64 `json:"cost_remaining"`
	DailyCostLimit     float64 `json:"daily_cost_limit"`
	Concurrent         int     `json:"concurrent"`
	TotalRequests      int     `json:"total_requests"`
	SuccessRateToday   float64 `json:"success_rate_today"`
}

// Tracker answers "can I spend N now?" for a metered dependency. It never
// returns errors from its decision methods; every refusal is a
// (false, reason) pair, leaving retry policy to the caller.
type Tracker struct {
	limits  Limits
	pricing map[string]Pricing
	log     *logging.Logger

	// now is swapped in tests to drive the clock.
	now func() time.Time

	mu          sync.Mutex
	history     []RequestRecord
	concurrent  int
	lastRequest time.Time
}

// NewTracker creates a tracker and loads any persisted history.
func NewTracker(limits Limits, log *logging.Logger) *Tracker {
	t := &Tracker{
		limits:  limits,
		pricing: DefaultPricing(),
		log:     log,
		now:     time.Now,
	}
	t.loadHistory()
	return t
}

// Reason strings returned by CanProceed. Stable because WaitUntilAllowed
// keys its sleep target off them.
const (
	reasonConcurrent = "too many concurrent requests"
	reasonPerMinute  = "rate limit exceeded (requests per minute)"
	reasonPerHour    = "rate limit exceeded (requests per hour)"
	reasonTooSoon    = "request too soon after last request"
)

// ClearsWithinMinute reports whether a refusal reason clears on its own
// within roughly a minute, making a bounded wait worthwhile. Hourly and
// daily-cost refusals do not; callers should fall back instead of
// blocking.
func ClearsWithinMinute(reason string) bool {
	switch reason {
	case reasonConcurrent, reasonPerMinute, reasonTooSoon:
		return true
	}
	return false
}

// CanProceed reports whether a request estimated at estimatedCost may start
// now. Constraints are evaluated in a fixed order and the first violation
// wins: concurrency, per-minute ceiling, per-hour ceiling, daily cost cap,
// minimum spacing.
func (t *Tracker) CanProceed(estimatedCost float64) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.canProceedLocked(estimatedCost)
}

func (t *Tracker) canProceedLocked(estimatedCost float64) (bool, string) {
	now := t.now()

	if t.concurrent >= t.limits.MaxConcurrent {
		return false, reasonConcurrent
	}
	if t.countSinceLocked(now.Add(-time.Minute)) >= t.limits.RequestsPerMinute {
		return false, reasonPerMinute
	}
	if t.countSinceLocked(now.Add(-time.Hour)) >= t.limits.RequestsPerHour {
		return false, reasonPerHour
	}
	if daily := t.dailyCostLocked(now); daily+estimatedCost > t.limits.DailyCostLimit {
		return false, fmt.Sprintf("daily cost limit exceeded ($%.4f + $%.4f > $%.2f)",
			daily, estimatedCost, t.limits.DailyCostLimit)
	}
	if !t.lastRequest.IsZero() && now.Sub(t.lastRequest) < t.limits.MinInterval {
		return false, reasonTooSoon
	}
	return true, "ok"
}

// Acquire reserves an in-flight slot if the request may proceed. The check
// and the reservation happen under one lock so two callers cannot both be
// admitted against the same remaining budget.
func (t *Tracker) Acquire(estimatedCost float64) (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	ok, reason := t.canProceedLocked(estimatedCost)
	if !ok {
		return false, reason
	}
	t.concurrent++
	return true, "ok"
}

// Release frees an in-flight slot taken by Acquire.
func (t *Tracker) Release() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.concurrent > 0 {
		t.concurrent--
	}
}

// Record appends a completed request. This is the only mutator of history.
// Old entries are pruned every 100 records and a snapshot is persisted every
// 10 records.
func (t *Tracker) Record(tier string, inputUnits, outputUnits int, cost float64, success bool, errKind faults.Kind) {
	t.mu.Lock()

	rec := RequestRecord{
		Timestamp:   t.now(),
		Tier:        tier,
		InputUnits:  inputUnits,
		OutputUnits: outputUnits,
		Cost:        cost,
		Success:     success,
		ErrorKind:   errKind,
	}
	t.history = append(t.history, rec)
	t.lastRequest = rec.Timestamp

	if len(t.history)%100 == 0 {
		t.pruneLocked()
	}

	var snapshot []RequestRecord
	if len(t.history)%10 == 0 && t.limits.HistoryPath != "" {
		snapshot = make([]RequestRecord, len(t.history))
		copy(snapshot, t.history)
	}
	t.mu.Unlock()

	if snapshot != nil {
		t.persist(snapshot)
	}

	if t.log != nil {
		t.log.Info("recorded request",
			zap.String("tier", tier),
			zap.Float64("cost", cost),
			zap.Bool("success", success),
		)
	}
}

// WaitUntilAllowed blocks until CanProceed admits the estimated cost,
// sleeping toward the boundary that clears the violated constraint. Sleeps
// run in chunks of at most a minute and honor ctx cancellation; a drained
// daily budget can keep the caller here until midnight.
func (t *Tracker) WaitUntilAllowed(ctx context.Context, estimatedCost float64) (time.Duration, error) {
	var waited time.Duration

	for {
		ok, reason := t.CanProceed(estimatedCost)
		if ok {
			return waited, nil
		}

		wait := t.waitFor(reason)
		if t.log != nil {
			t.log.Warn("rate limit hit",
				zap.String("reason", reason),
				zap.Duration("wait", wait),
			)
		}

		if wait > time.Minute {
			wait = time.Minute
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return waited, ctx.Err()
		case <-timer.C:
			waited += wait
		}
	}
}

// waitFor maps a refusal reason to the duration until that constraint can
// clear: the next minute boundary, the next hour boundary, midnight for the
// cost cap, the spacing remainder, or a short poll for concurrency.
func (t *Tracker) waitFor(reason string) time.Duration {
	now := t.now()

	switch reason {
	case reasonPerMinute:
		return now.Truncate(time.Minute).Add(time.Minute).Sub(now)
	case reasonPerHour:
		return now.Truncate(time.Hour).Add(time.Hour).Sub(now)
	case reasonConcurrent:
		return time.Second
	case reasonTooSoon:
		t.mu.Lock()
		rem := t.limits.MinInterval - now.Sub(t.lastRequest)
		t.mu.Unlock()
		if rem <= 0 {
			rem = 10 * time.Millisecond
		}
		return rem
	default:
		// Cost cap: nothing clears before the day rolls over.
		year, month, day := now.Date()
		midnight := time.Date(year, month, day, 0, 0, 0, 0, now.Location()).AddDate(0, 0, 1)
		return midnight.Sub(now)
	}
}

// Stats returns a snapshot of tracker state.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	var todayCount, todaySuccess int
	var todayCost float64
	year, month, day := now.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	for _, rec := range t.history {
		if rec.Timestamp.Before(dayStart) {
			continue
		}
		todayCount++
		todayCost += rec.Cost
		if rec.Success {
			todaySuccess++
		}
	}

	successRate := 0.0
	if todayCount > 0 {
		successRate = float64(todaySuccess) / float64(todayCount)
	}

	remaining := t.limits.DailyCostLimit - todayCost
	if remaining < 0 {
		remaining = 0
	}

	return Stats{
		RequestsLastMinute: t.countSinceLocked(now.Add(-time.Minute)),
		RequestsLastHour:   t.countSinceLocked(now.Add(-time.Hour)),
		RequestsToday:      todayCount,
		CostToday:          todayCost,
		CostRemaining:      remaining,
		DailyCostLimit:     t.limits.DailyCostLimit,
		Concurrent:         t.concurrent,
		TotalRequests:      len(t.history),
		SuccessRateToday:   successRate,
	}
}

// CostToday returns the day's accumulated spend.
func (t *Tracker) CostToday() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.dailyCostLocked(t.now())
}

func (t *Tracker) countSinceLocked(cutoff time.Time) int {
	n := 0
	for _, rec := range t.history {
		if rec.Timestamp.After(cutoff) {
			n++
		}
	}
	return n
}

func (t *Tracker) dailyCostLocked(now time.Time) float64 {
	year, month, day := now.Date()
	dayStart := time.Date(year, month, day, 0, 0, 0, 0, now.Location())

	var total float64
	for _, rec := range t.history {
		if !rec.Timestamp.Before(dayStart) {
			total += rec.Cost
		}
	}
	return total
}

func (t *Tracker) pruneLocked() {
	cutoff := t.now().Add(-t.limits.Retention)
	kept := t.history[:0]
	for _, rec := range t.history {
		if rec.Timestamp.After(cutoff) {
			kept = append(kept, rec)
		}
	}
	t.history = kept
}

type historyFile struct {
	Requests    []RequestRecord `json:"requests"`
	LastUpdated time.Time       `json:"last_updated"`
}

func (t *Tracker) loadHistory() {
	if t.limits.HistoryPath == "" {
		return
	}

	data, err := os.ReadFile(t.limits.HistoryPath)
	if err != nil {
		if !os.IsNotExist(err) && t.log != nil {
			t.log.Error("failed to load request history", zap.Error(err))
		}
		return
	}

	var f historyFile
	if err := json.Unmarshal(data, &f); err != nil {
		if t.log != nil {
			t.log.Error("corrupt request history, starting empty", zap.Error(err))
		}
		return
	}

	t.history = f.Requests
	if n := len(t.history); n > 0 {
		t.lastRequest = t.history[n-1].Timestamp
		if t.log != nil {
			t.log.Info("loaded request history", zap.Int("requests", n))
		}
	}
}

// persist writes a history snapshot atomically: write a temp file, then
// rename over the target, so a crash mid-write never corrupts history.
// Re-running with the same snapshot is a no-op by content.
func (t *Tracker) persist(snapshot []RequestRecord) {
	path := t.limits.HistoryPath

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		if t.log != nil {
			t.log.Error("failed to create history dir", zap.Error(err))
		}
		return
	}

	data, err := json.MarshalIndent(historyFile{
		Requests:    snapshot,
		LastUpdated: t.now(),
	}, "", "  ")
	if err != nil {
		return
	}

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		if t.log != nil {
			t.log.Error("failed to persist request history", zap.Error(err))
		}
		return
	}
	if err := os.Rename(tmp, path); err != nil && t.log != nil {
		t.log.Error("failed to replace request history", zap.Error(err))
	}
}
