// Package apply submits applications for matched jobs. Submission is the
// highest-risk stage of the pipeline: it acts on external sites, so it is
// capped per run, paced with jitter, and every attempt is recorded whether
// it lands or not.
package apply

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"go.uber.org/zap"

	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/logging"
)

// Submitter performs the site-specific submission for one board.
type Submitter interface {
	Source() string
	Submit(ctx context.Context, job domain.Job, message string) error
}

// Config bounds one run's submissions.
type Config struct {
	MaxPerRun int
	Delay     time.Duration // base pacing between submissions, jittered ±20%
}

// DefaultConfig returns the pacing the boards tolerate.
func DefaultConfig() Config {
	return Config{MaxPerRun: 10, Delay: 30 * time.Second}
}

// Applicator drives submissions for one run.
type Applicator struct {
	cfg        Config
	submitters map[string]Submitter
	writer     *MessageWriter
	log        *logging.Logger

	sleep  func(context.Context, time.Duration) error
	jitter func() float64
}

// New wires the applicator with per-source submitters.
func New(cfg Config, writer *MessageWriter, submitters []Submitter, log *logging.Logger) *Applicator {
	if cfg.MaxPerRun <= 0 {
		cfg.MaxPerRun = 10
	}
	bySource := make(map[string]Submitter, len(submitters))
	for _, s := range submitters {
		bySource[s.Source()] = s
	}
	return &Applicator{
		cfg:        cfg,
		submitters: bySource,
		writer:     writer,
		log:        log.Component("apply"),
		sleep:      sleepCtx,
		jitter:     func() float64 { return 0.8 + 0.4*rand.Float64() },
	}
}

// Apply works through the matched jobs in order, stopping at the per-run
// cap. One job failing never aborts the batch; context cancellation does.
func (a *Applicator) Apply(ctx context.Context, jobs []domain.Job) []domain.Application {
	var results []domain.Application
	submitted := 0

	for _, job := range jobs {
		if submitted >= a.cfg.MaxPerRun {
			a.log.Info("per-run application cap reached", zap.Int("cap", a.cfg.MaxPerRun))
			break
		}
		if ctx.Err() != nil {
			break
		}

		if submitted > 0 && a.cfg.Delay > 0 {
			pause := time.Duration(float64(a.cfg.Delay) * a.jitter())
			if err := a.sleep(ctx, pause); err != nil {
				break
			}
		}

		app := a.applyOne(ctx, job)
		results = append(results, app)
		if app.Status == domain.AppApplied {
			submitted++
		}
	}
	return results
}

func (a *Applicator) applyOne(ctx context.Context, job domain.Job) domain.Application {
	app := domain.Application{
		JobID:       job.ID,
		JobTitle:    job.Title,
		Company:     job.Company,
		Link:        job.Link,
		Source:      job.Source,
		Score:       job.Score,
		SubmittedAt: time.Now(),
	}

	sub, ok := a.submitters[job.Source]
	if !ok {
		app.Status = domain.AppSkipped
		app.Detail = "no submitter for source"
		return app
	}

	message, fromModel := a.writer.Compose(ctx, job)
	app.Message = message

	err := sub.Submit(ctx, job, message)
	switch {
	case err == nil:
		app.Status = domain.AppApplied
		a.log.Info("application submitted",
			zap.String("job", job.Title),
			zap.String("company", job.Company),
			zap.Bool("llm_message", fromModel))
	case faults.IsKind(err, faults.KindCaptchaRequired):
		app.Status = domain.AppNeedsCaptcha
		app.Detail = err.Error()
	case faults.IsKind(err, faults.KindNotImplemented):
		app.Status = domain.AppSkipped
		app.Detail = err.Error()
	case errors.Is(err, context.Canceled):
		app.Status = domain.AppFailed
		app.Detail = "canceled"
	default:
		app.Status = domain.AppFailed
		app.Detail = err.Error()
		a.log.Warn("application failed",
			zap.String("job", job.Title), zap.Error(err))
	}
	return app
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
