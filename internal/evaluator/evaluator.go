// Package evaluator scores jobs against a resume through the request
// governor: cache first, then tracker permission, then the breaker-wrapped
// primary model, then fallback tiers, then the local heuristic.
package evaluator

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/seekerworks/jobpilot/internal/cache"
	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/governor"
	"github.com/seekerworks/jobpilot/internal/llm"
	"github.com/seekerworks/jobpilot/internal/logging"
	"github.com/seekerworks/jobpilot/internal/resilience"
	"go.uber.org/zap"
)

// Completer abstracts the LLM client for tests.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Completion, error)
}

// Config names the primary tier and its fallbacks.
type Config struct {
	Model         string
	FallbackTiers []string
	MaxTokens     int
	Temperature   float64
	CacheTTL      time.Duration
}

// Evaluator owns the governed evaluation path for one resume.
type Evaluator struct {
	cfg       Config
	client    Completer
	tracker   *governor.Tracker
	breakers  *resilience.Registry
	cache     cache.Cache
	counters  *cache.Counters
	heuristic *Heuristic
	log       *logging.Logger
}

// New wires the evaluator. All collaborators are injected; nothing here is a
// process-global.
func New(cfg Config, client Completer, tracker *governor.Tracker, breakers *resilience.Registry, store cache.Cache, counters *cache.Counters, log *logging.Logger) *Evaluator {
	if cfg.MaxTokens <= 0 {
		cfg.MaxTokens = 150
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = cache.DefaultTTL
	}
	return &Evaluator{
		cfg:       cfg,
		client:    client,
		tracker:   tracker,
		breakers:  breakers,
		cache:     store,
		counters:  counters,
		heuristic: NewHeuristic(),
		log:       log,
	}
}

// Evaluate scores one job. It never returns an error for scoring itself —
// the chain bottoms out at the heuristic — only for context cancellation.
func (e *Evaluator) Evaluate(ctx context.Context, job domain.Job, resumeText string) (domain.Evaluation, error) {
	key := cache.Key(job, resumeText)
	if cached, err := e.cache.Get(ctx, key); err == nil {
		e.counters.Hit()
		cached.FromCache = true
		return cached, nil
	}
	e.counters.Miss()

	eval, err := e.evaluateRemote(ctx, job, resumeText)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return domain.Evaluation{}, err
		}
		// Remote path exhausted: the heuristic always answers.
		e.log.Info("using heuristic evaluator",
			zap.String("job", job.Title), zap.String("cause", err.Error()))
		eval = e.heuristic.Evaluate(job, resumeText)
	}

	if cacheErr := e.cache.Set(ctx, key, eval, e.cfg.CacheTTL); cacheErr != nil {
		e.log.Warn("failed to cache evaluation", zap.Error(cacheErr))
	}
	return eval, nil
}

// evaluateRemote runs the primary tier then each fallback tier, stopping at
// the first success.
func (e *Evaluator) evaluateRemote(ctx context.Context, job domain.Job, resumeText string) (domain.Evaluation, error) {
	prompt := buildPrompt(job, resumeText)

	eval, err := e.completeTier(ctx, e.cfg.Model, prompt, job)
	if err == nil {
		eval.Provenance = domain.ProvenancePrimary
		return eval, nil
	}
	if errors.Is(err, context.Canceled) {
		return domain.Evaluation{}, err
	}
	lastErr := err

	for _, tier := range e.cfg.FallbackTiers {
		if tier == e.cfg.Model {
			continue
		}
		eval, err = e.completeTier(ctx, tier, prompt, job)
		if err == nil {
			eval.Provenance = domain.ProvenanceFallbackModel
			return eval, nil
		}
		if errors.Is(err, context.Canceled) {
			return domain.Evaluation{}, err
		}
		lastErr = err
	}
	return domain.Evaluation{}, lastErr
}

// completeTier runs one model tier under the full governor: spend permission
// from the tracker, the call through the llm breaker, and the outcome
// recorded either way.
func (e *Evaluator) completeTier(ctx context.Context, tier, prompt string, job domain.Job) (domain.Evaluation, error) {
	inputTokens := llm.EstimateTokens(prompt)
	estimated := e.tracker.EstimateCost(tier, inputTokens, e.cfg.MaxTokens)

	ok, reason := e.tracker.Acquire(estimated)
	if !ok && governor.ClearsWithinMinute(reason) {
		// Short windows (spacing, per-minute, concurrency) clear on
		// their own; wait them out instead of burning a fallback tier.
		waitCtx, cancel := context.WithTimeout(ctx, 90*time.Second)
		_, waitErr := e.tracker.WaitUntilAllowed(waitCtx, estimated)
		cancel()
		if waitErr == nil {
			ok, reason = e.tracker.Acquire(estimated)
		}
	}
	if !ok {
		return domain.Evaluation{}, faults.New(faults.KindRateLimit, "evaluator", reason)
	}
	defer e.tracker.Release()

	var completion *llm.Completion
	err := e.breakers.Call(ctx, "llm", func(ctx context.Context) error {
		var callErr error
		completion, callErr = e.client.Complete(ctx, llm.Request{
			Model:       tier,
			Messages:    []llm.Message{{Role: "user", Content: prompt}},
			MaxTokens:   e.cfg.MaxTokens,
			Temperature: e.cfg.Temperature,
		})
		return callErr
	})
	if err != nil {
		e.tracker.Record(tier, inputTokens, 0, 0, false, faults.KindOf(err))
		return domain.Evaluation{}, err
	}

	cost := e.tracker.EstimateCost(tier, completion.PromptTokens, completion.OutputTokens)
	e.tracker.Record(tier, completion.PromptTokens, completion.OutputTokens, cost, true, "")

	score, reasonText, parseErr := ParseScore(completion.Content)
	if parseErr != nil {
		return domain.Evaluation{}, faults.Wrap(faults.KindValidation, "evaluator", parseErr)
	}

	return domain.Evaluation{
		Score:  score,
		Reason: reasonText,
		Tier:   tier,
		Cost:   cost,
	}, nil
}

func buildPrompt(job domain.Job, resumeText string) string {
	if len(resumeText) > 2000 {
		resumeText = resumeText[:2000]
	}

	var b strings.Builder
	b.WriteString("Resume Summary:\n")
	b.WriteString(resumeText)
	b.WriteString("\n\nJob Details:\n")
	fmt.Fprintf(&b, "- Title: %s\n", job.Title)
	fmt.Fprintf(&b, "- Company: %s\n", job.Company)
	fmt.Fprintf(&b, "- Location: %s\n", orDefault(job.Location, "Remote"))
	fmt.Fprintf(&b, "- Salary: %s\n", orDefault(job.Salary, "Not specified"))
	fmt.Fprintf(&b, "- Tags: %s\n", strings.Join(job.Tags, ", "))
	b.WriteString("\nRate this job match from 1-10 considering skills alignment, ")
	b.WriteString("experience level, company fit, and location.\n")
	b.WriteString(`Format your response as: "Score: X/10 - [brief explanation]"`)
	return b.String()
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}

var scorePattern = regexp.MustCompile(`(?i)score:\s*(\d+(?:\.\d+)?)\s*/\s*10\s*-?\s*(.*)`)

// ParseScore extracts the numeric score and justification from a
// "Score: X/10 - reason" response. Scores outside [1,10] are clamped.
func ParseScore(content string) (float64, string, error) {
	m := scorePattern.FindStringSubmatch(strings.TrimSpace(content))
	if m == nil {
		return 0, "", fmt.Errorf("unparseable score in %q", truncate(content, 80))
	}

	score, err := strconv.ParseFloat(m[1], 64)
	if err != nil {
		return 0, "", fmt.Errorf("bad score number %q", m[1])
	}
	if score < 1 {
		score = 1
	}
	if score > 10 {
		score = 10
	}

	reason := strings.TrimSpace(m[2])
	if reason == "" {
		reason = "no explanation given"
	}
	return score, reason, nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
