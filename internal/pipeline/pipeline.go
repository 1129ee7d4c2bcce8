// Package pipeline orchestrates one end-to-end run: scrape every source,
// dedup into the store, evaluate new jobs under the governor, apply to
// matches, and export the results. Item failures bump counters and move
// on; only infrastructure failures abort a run.
package pipeline

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/export"
	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/logging"
	"github.com/seekerworks/jobpilot/internal/monitoring"
	"github.com/seekerworks/jobpilot/internal/notify"
	"github.com/seekerworks/jobpilot/internal/scraper"
)

// ErrBusy is returned when a trigger arrives while a run is in flight.
var ErrBusy = faults.New(faults.KindValidation, "pipeline.trigger", "a run is already in progress")

// Store is the persistence surface the pipeline needs.
type Store interface {
	UpsertJob(ctx context.Context, job domain.Job) (domain.Job, bool, error)
	UpdateEvaluation(ctx context.Context, jobID int64, eval domain.Evaluation, status domain.JobStatus) error
	UpdateJobStatus(ctx context.Context, jobID int64, status domain.JobStatus) error
	HasApplied(ctx context.Context, job domain.Job) (bool, error)
	InsertApplication(ctx context.Context, app domain.Application) (domain.Application, error)
	InsertRun(ctx context.Context, run domain.Run) error
	FinishRun(ctx context.Context, run domain.Run) error
}

// Evaluator scores one job against the loaded resume.
type Evaluator interface {
	Evaluate(ctx context.Context, job domain.Job, resumeText string) (domain.Evaluation, error)
}

// Applicator submits applications for matched jobs.
type Applicator interface {
	Apply(ctx context.Context, jobs []domain.Job) []domain.Application
}

// CostReporter exposes the day's LLM spend so runs can report their share.
type CostReporter interface {
	CostToday() float64
}

// Config tunes one runner.
type Config struct {
	ScoreThreshold   float64
	MaxJobsPerSource int
	EvalWorkers      int
}

// Runner owns the run lifecycle. At most one run executes at a time.
type Runner struct {
	cfg        Config
	sources    []scraper.Source
	store      Store
	evaluator  Evaluator
	applicator Applicator
	sinks      []export.Sink
	notifier   *notify.Notifier
	metrics    *monitoring.Metrics
	costs      CostReporter
	resume     string
	log        *logging.Logger
	events     *hub
	onStart    []func()

	mu      sync.Mutex
	running bool
	current domain.Run
}

// New wires a runner. notifier and metrics must be non-nil (use the no-op
// notifier and a fresh metrics set when unused); costs may be nil.
func New(cfg Config, sources []scraper.Source, store Store, evaluator Evaluator,
	applicator Applicator, sinks []export.Sink, notifier *notify.Notifier,
	metrics *monitoring.Metrics, costs CostReporter, resumeText string, log *logging.Logger) *Runner {
	if cfg.ScoreThreshold <= 0 {
		cfg.ScoreThreshold = 7
	}
	if cfg.EvalWorkers <= 0 {
		cfg.EvalWorkers = 3
	}
	return &Runner{
		cfg:        cfg,
		sources:    sources,
		store:      store,
		evaluator:  evaluator,
		applicator: applicator,
		sinks:      sinks,
		notifier:   notifier,
		metrics:    metrics,
		costs:      costs,
		resume:     resumeText,
		log:        log.Component("pipeline"),
		events:     newHub(),
	}
}

// OnRunStart registers fn to run at the start of every run, before any
// stage. Used to reset per-run budgets (browser CAPTCHA escalations).
// Not safe to call once runs have started.
func (r *Runner) OnRunStart(fn func()) {
	r.onStart = append(r.onStart, fn)
}

// Subscribe returns a channel of run events and its cancel func.
func (r *Runner) Subscribe() (<-chan Event, func()) {
	return r.events.subscribe()
}

// Current returns the in-flight run, if any.
func (r *Runner) Current() (domain.Run, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.current, r.running
}

// Trigger starts a run in the background and returns its ID, or ErrBusy
// when one is already in flight.
func (r *Runner) Trigger(ctx context.Context, trigger string) (string, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return "", ErrBusy
	}
	run := domain.Run{
		ID:        uuid.NewString(),
		Status:    domain.RunRunning,
		Trigger:   trigger,
		StartedAt: time.Now(),
	}
	r.running = true
	r.current = run
	r.mu.Unlock()

	// The caller's context dies when its HTTP handler returns; the run
	// keeps the values but must outlive the request.
	go r.execute(context.WithoutCancel(ctx), run)
	return run.ID, nil
}

// Run executes synchronously, for the one-shot CLI.
func (r *Runner) Run(ctx context.Context, trigger string) (domain.Run, error) {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return domain.Run{}, ErrBusy
	}
	run := domain.Run{
		ID:        uuid.NewString(),
		Status:    domain.RunRunning,
		Trigger:   trigger,
		StartedAt: time.Now(),
	}
	r.running = true
	r.current = run
	r.mu.Unlock()

	return r.execute(ctx, run), nil
}

func (r *Runner) execute(ctx context.Context, run domain.Run) domain.Run {
	defer func() {
		r.mu.Lock()
		r.running = false
		r.current = run
		r.mu.Unlock()
	}()

	for _, fn := range r.onStart {
		fn()
	}

	log := r.log.WithRun(run.ID)
	log.Info("run started", zap.String("trigger", run.Trigger))
	if err := r.store.InsertRun(ctx, run); err != nil {
		log.Error("failed to record run", zap.Error(err))
	}
	r.publish(run, "started", "")

	costBefore := 0.0
	if r.costs != nil {
		costBefore = r.costs.CostToday()
	}

	err := r.stages(ctx, &run, log)

	run.FinishedAt = time.Now()
	if r.costs != nil {
		run.LLMCost = r.costs.CostToday() - costBefore
	}
	if err != nil {
		run.Status = domain.RunFailed
		run.Error = err.Error()
		log.Error("run failed", zap.Error(err))
	} else {
		run.Status = domain.RunCompleted
		log.Info("run completed",
			zap.Int("scraped", run.Counters.Scraped),
			zap.Int("new", run.Counters.New),
			zap.Int("matched", run.Counters.Matched),
			zap.Int("applied", run.Counters.Applied))
	}

	if err := r.store.FinishRun(ctx, run); err != nil {
		log.Error("failed to finish run record", zap.Error(err))
	}
	r.metrics.RecordRun(string(run.Status), run.Duration())
	r.publish(run, "finished", run.Error)
	if err := r.notifier.RunFinished(run); err != nil {
		log.Warn("run notification failed", zap.Error(err))
	}
	return run
}

// stages runs scrape, evaluate, apply, export in order.
func (r *Runner) stages(ctx context.Context, run *domain.Run, log *logging.Logger) error {
	newJobs, err := r.scrapeAll(ctx, run, log)
	if err != nil {
		return err
	}
	r.publish(*run, "scraped", "")

	matched := r.evaluateAll(ctx, run, newJobs, log)
	if ctx.Err() != nil {
		return faults.Wrap(faults.KindTimeout, "pipeline.run", ctx.Err())
	}
	r.publish(*run, "evaluated", "")

	apps := r.applicator.Apply(ctx, matched)
	for _, app := range apps {
		if app.Status == domain.AppApplied {
			run.Counters.Applied++
		} else if app.Status == domain.AppFailed {
			run.Counters.Failed++
		}
		r.metrics.RecordApplication(app.Source, string(app.Status))

		if _, err := r.store.InsertApplication(ctx, app); err != nil {
			log.Warn("failed to record application", zap.Error(err))
			continue
		}
		if app.JobID != 0 {
			status := domain.JobApplied
			if app.Status != domain.AppApplied {
				status = domain.JobFailed
			}
			if err := r.store.UpdateJobStatus(ctx, app.JobID, status); err != nil {
				log.Warn("failed to update job status", zap.Error(err))
			}
		}
		r.exportApp(ctx, app, log)
	}
	r.publish(*run, "applied", "")
	return nil
}

// scrapeAll runs every source; a failing source logs and contributes zero
// jobs. All sources failing is still not fatal — an empty run is a valid
// outcome.
func (r *Runner) scrapeAll(ctx context.Context, run *domain.Run, log *logging.Logger) ([]domain.Job, error) {
	var newJobs []domain.Job
	for _, src := range r.sources {
		if ctx.Err() != nil {
			return nil, faults.Wrap(faults.KindTimeout, "pipeline.scrape", ctx.Err())
		}

		started := time.Now()
		jobs, err := src.Scrape(ctx, r.cfg.MaxJobsPerSource)
		if err != nil {
			r.metrics.RecordScrape(src.Name(), 0, time.Since(started), string(faults.KindOf(err)))
			log.Warn("source failed", zap.String("source", src.Name()), zap.Error(err))
			if faults.IsKind(err, faults.KindCaptchaRequired) {
				if nerr := r.notifier.CaptchaStalled(src.Name(), ""); nerr != nil {
					log.Warn("captcha notification failed", zap.Error(nerr))
				}
			}
			continue
		}
		r.metrics.RecordScrape(src.Name(), len(jobs), time.Since(started), "")
		run.Counters.Scraped += len(jobs)

		for _, job := range jobs {
			stored, inserted, err := r.store.UpsertJob(ctx, job)
			if err != nil {
				log.Warn("failed to store job", zap.String("job", job.Title), zap.Error(err))
				run.Counters.Failed++
				continue
			}
			if inserted {
				run.Counters.New++
				newJobs = append(newJobs, stored)
			}
		}
	}
	return newJobs, nil
}

// evaluateAll scores the new jobs with a small worker pool and returns the
// ones clearing the threshold that have not been applied to before.
func (r *Runner) evaluateAll(ctx context.Context, run *domain.Run, jobs []domain.Job, log *logging.Logger) []domain.Job {
	type result struct {
		job  domain.Job
		eval domain.Evaluation
		err  error
	}

	in := make(chan domain.Job)
	out := make(chan result)

	var wg sync.WaitGroup
	for i := 0; i < r.cfg.EvalWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for job := range in {
				eval, err := r.evaluator.Evaluate(ctx, job, r.resume)
				out <- result{job: job, eval: eval, err: err}
			}
		}()
	}
	go func() {
		for _, job := range jobs {
			in <- job
		}
		close(in)
		wg.Wait()
		close(out)
	}()

	var matched []domain.Job
	for res := range out {
		if res.err != nil {
			run.Counters.Failed++
			log.Warn("evaluation failed", zap.String("job", res.job.Title), zap.Error(res.err))
			continue
		}
		run.Counters.Evaluated++
		r.metrics.RecordCache(res.eval.FromCache)
		if !res.eval.FromCache &&
			(res.eval.Provenance == domain.ProvenancePrimary ||
				res.eval.Provenance == domain.ProvenanceFallbackModel) {
			r.metrics.RecordLLMRequest(res.eval.Tier, true, res.eval.Cost)
		}

		status := domain.JobSkipped
		if res.eval.Matched(r.cfg.ScoreThreshold) {
			status = domain.JobMatched
		}
		if err := r.store.UpdateEvaluation(ctx, res.job.ID, res.eval, status); err != nil {
			log.Warn("failed to store evaluation", zap.String("job", res.job.Title), zap.Error(err))
		}

		if status != domain.JobMatched {
			continue
		}
		run.Counters.Matched++

		applied, err := r.store.HasApplied(ctx, res.job)
		if err != nil {
			log.Warn("applied check failed", zap.String("job", res.job.Title), zap.Error(err))
			continue
		}
		if applied {
			continue
		}

		res.job.Score = res.eval.Score
		res.job.ScoreReason = res.eval.Reason
		res.job.Provenance = res.eval.Provenance
		matched = append(matched, res.job)

		if err := r.notifier.Match(res.job, res.eval); err != nil {
			log.Warn("match notification failed", zap.Error(err))
		}
	}

	// Best matches first, so a per-run application cap spends its budget
	// on the highest-scored jobs.
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].Score > matched[j].Score
	})
	return matched
}

func (r *Runner) exportApp(ctx context.Context, app domain.Application, log *logging.Logger) {
	for _, sink := range r.sinks {
		if err := sink.Append(ctx, app); err != nil {
			log.Warn("export failed",
				zap.String("sink", sink.Name()), zap.Error(err))
		}
	}
}

func (r *Runner) publish(run domain.Run, stage, message string) {
	r.events.publish(Event{
		RunID:    run.ID,
		Stage:    stage,
		Message:  message,
		Counters: run.Counters,
		Time:     time.Now(),
	})
}
