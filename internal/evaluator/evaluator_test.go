package evaluator

import (
	"context"
	"testing"
	"time"

	"github.com/seekerworks/jobpilot/internal/cache"
	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/governor"
	"github.com/seekerworks/jobpilot/internal/llm"
	"github.com/seekerworks/jobpilot/internal/logging"
	"github.com/seekerworks/jobpilot/internal/resilience"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeCompleter programs per-tier responses.
type fakeCompleter struct {
	responses map[string]string // tier -> content
	errs      map[string]error  // tier -> error
	calls     []string          // tiers in call order
}

func (f *fakeCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	f.calls = append(f.calls, req.Model)
	if err, ok := f.errs[req.Model]; ok {
		return nil, err
	}
	content, ok := f.responses[req.Model]
	if !ok {
		return nil, faults.New(faults.KindNetwork, "fake", "no response configured")
	}
	return &llm.Completion{Content: content, PromptTokens: 100, OutputTokens: 30}, nil
}

func testEvaluator(t *testing.T, client Completer) (*Evaluator, *governor.Tracker) {
	t.Helper()
	limits := governor.DefaultLimits()
	limits.MinInterval = 0
	tracker := governor.NewTracker(limits, logging.NewNop())
	breakers := resilience.NewRegistry(nil, logging.NewNop())

	mem := cache.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })

	ev := New(Config{
		Model:         "gpt-3.5-turbo",
		FallbackTiers: []string{"gpt-3.5-turbo", "gpt-3.5-turbo-16k", "gpt-4-turbo"},
		MaxTokens:     150,
		CacheTTL:      time.Hour,
	}, client, tracker, breakers, mem, &cache.Counters{}, logging.NewNop())
	return ev, tracker
}

func matchedJob() domain.Job {
	return domain.Job{Title: "Go Engineer", Company: "Acme", Link: "https://x/1", Description: "golang 3+ years"}
}

func TestEvaluatePrimarySuccess(t *testing.T) {
	client := &fakeCompleter{responses: map[string]string{
		"gpt-3.5-turbo": "Score: 8/10 - solid overlap",
	}}
	ev, tracker := testEvaluator(t, client)

	eval, err := ev.Evaluate(context.Background(), matchedJob(), "golang resume")
	require.NoError(t, err)

	assert.Equal(t, 8.0, eval.Score)
	assert.Equal(t, "solid overlap", eval.Reason)
	assert.Equal(t, domain.ProvenancePrimary, eval.Provenance)
	assert.Equal(t, "gpt-3.5-turbo", eval.Tier)
	assert.Greater(t, eval.Cost, 0.0)
	assert.Equal(t, 1, tracker.Stats().TotalRequests)
}

func TestEvaluateFallbackTier(t *testing.T) {
	client := &fakeCompleter{
		errs: map[string]error{
			"gpt-3.5-turbo": faults.New(faults.KindRateLimit, "fake", "rate limited"),
		},
		responses: map[string]string{
			"gpt-3.5-turbo-16k": "Score: 7/10 - decent",
		},
	}
	ev, _ := testEvaluator(t, client)

	eval, err := ev.Evaluate(context.Background(), matchedJob(), "resume")
	require.NoError(t, err)

	assert.Equal(t, domain.ProvenanceFallbackModel, eval.Provenance)
	assert.Equal(t, "gpt-3.5-turbo-16k", eval.Tier)
	// Primary tried once, then the next distinct tier.
	assert.Equal(t, []string{"gpt-3.5-turbo", "gpt-3.5-turbo-16k"}, client.calls)
}

func TestEvaluateHeuristicWhenAllTiersFail(t *testing.T) {
	client := &fakeCompleter{errs: map[string]error{
		"gpt-3.5-turbo":     faults.New(faults.KindNetwork, "fake", "down"),
		"gpt-3.5-turbo-16k": faults.New(faults.KindNetwork, "fake", "down"),
		"gpt-4-turbo":       faults.New(faults.KindNetwork, "fake", "down"),
	}}
	ev, _ := testEvaluator(t, client)

	eval, err := ev.Evaluate(context.Background(), matchedJob(), "golang resume, 4 years")
	require.NoError(t, err, "the chain must never surface a scoring error")

	assert.Equal(t, domain.ProvenanceHeuristic, eval.Provenance)
	assert.GreaterOrEqual(t, eval.Score, 1.0)
	assert.LessOrEqual(t, eval.Score, 10.0)
	assert.NotEmpty(t, eval.Reason)
}

func TestEvaluateCacheHit(t *testing.T) {
	client := &fakeCompleter{responses: map[string]string{
		"gpt-3.5-turbo": "Score: 9/10 - great",
	}}
	ev, _ := testEvaluator(t, client)
	job := matchedJob()

	first, err := ev.Evaluate(context.Background(), job, "resume")
	require.NoError(t, err)
	require.Equal(t, domain.ProvenancePrimary, first.Provenance)
	require.False(t, first.FromCache)

	second, err := ev.Evaluate(context.Background(), job, "resume")
	require.NoError(t, err)
	assert.True(t, second.FromCache)
	assert.Equal(t, domain.ProvenancePrimary, second.Provenance,
		"a replayed result keeps the tier that produced it")
	assert.Equal(t, first.Score, second.Score)
	assert.Len(t, client.calls, 1, "cache hit must not call the API again")
}

func TestEvaluateWaitsOutSpacingWindow(t *testing.T) {
	client := &fakeCompleter{responses: map[string]string{
		"gpt-3.5-turbo": "Score: 8/10 - solid",
	}}
	limits := governor.DefaultLimits()
	limits.MinInterval = 30 * time.Millisecond
	tracker := governor.NewTracker(limits, logging.NewNop())
	breakers := resilience.NewRegistry(nil, logging.NewNop())
	mem := cache.NewMemory()
	t.Cleanup(func() { _ = mem.Close() })

	ev := New(Config{
		Model:         "gpt-3.5-turbo",
		FallbackTiers: []string{"gpt-3.5-turbo"},
		MaxTokens:     150,
		CacheTTL:      time.Hour,
	}, client, tracker, breakers, mem, &cache.Counters{}, logging.NewNop())

	first, err := ev.Evaluate(context.Background(), matchedJob(), "resume")
	require.NoError(t, err)
	require.Equal(t, domain.ProvenancePrimary, first.Provenance)

	// Back-to-back calls land inside the spacing window. That window
	// clears on its own, so the evaluator waits it out rather than
	// degrading to the heuristic.
	other := matchedJob()
	other.Title = "Platform Engineer"
	second, err := ev.Evaluate(context.Background(), other, "resume")
	require.NoError(t, err)
	assert.Equal(t, domain.ProvenancePrimary, second.Provenance)
	assert.Len(t, client.calls, 2)
}

func TestEvaluateRecordsFailures(t *testing.T) {
	client := &fakeCompleter{errs: map[string]error{
		"gpt-3.5-turbo":     faults.New(faults.KindTimeout, "fake", "slow"),
		"gpt-3.5-turbo-16k": faults.New(faults.KindTimeout, "fake", "slow"),
		"gpt-4-turbo":       faults.New(faults.KindTimeout, "fake", "slow"),
	}}
	ev, tracker := testEvaluator(t, client)

	_, err := ev.Evaluate(context.Background(), matchedJob(), "resume")
	require.NoError(t, err)

	stats := tracker.Stats()
	assert.Equal(t, 3, stats.TotalRequests)
	assert.Equal(t, 0.0, stats.SuccessRateToday)
}

func TestParseScore(t *testing.T) {
	tests := []struct {
		in        string
		wantScore float64
		wantErr   bool
	}{
		{"Score: 8/10 - strong skills alignment", 8, false},
		{"score: 7/10 decent", 7, false},
		{"Score: 15/10 - enthusiastic", 10, false},
		{"Score: 0/10 - nope", 1, false},
		{"  Score: 6.5/10 - mixed ", 6.5, false},
		{"I think this is a great job", 0, true},
		{"", 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			score, reason, err := ParseScore(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantScore, score)
			assert.NotEmpty(t, reason)
		})
	}
}
