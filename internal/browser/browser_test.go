package browser

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekerworks/jobpilot/internal/faults"
	"github.com/seekerworks/jobpilot/internal/logging"
)

func TestRestartPolicy(t *testing.T) {
	p := restartPolicy{maxAge: 30 * time.Minute, maxOps: 100, maxErrors: 5}

	tests := []struct {
		name        string
		age         time.Duration
		ops         int
		consecutive int
		want        bool
	}{
		{"fresh", time.Minute, 1, 0, false},
		{"just under every limit", 29 * time.Minute, 99, 4, false},
		{"aged out", 30 * time.Minute, 10, 0, true},
		{"ops exhausted", time.Minute, 100, 0, true},
		{"error streak", time.Minute, 10, 5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, p.due(tt.age, tt.ops, tt.consecutive))
		})
	}
}

func TestRestartPolicyDisabled(t *testing.T) {
	p := restartPolicy{}
	assert.False(t, p.due(24*time.Hour, 1<<20, 1<<20))
}

func TestRecordErrorStreak(t *testing.T) {
	m := NewManager(DefaultConfig(), logging.NewNop())

	m.record(assert.AnError)
	m.record(assert.AnError)
	assert.Equal(t, 2, m.Stats().Consecutive)
	assert.Equal(t, 2, m.Stats().Ops)

	// Success resets the streak but not the op count.
	m.record(nil)
	assert.Equal(t, 0, m.Stats().Consecutive)
	assert.Equal(t, 3, m.Stats().Ops)
}

func TestEscalationBudget(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Escalations = 2
	m := NewManager(cfg, logging.NewNop())

	require.NoError(t, m.Escalate("indeed", "https://example.com/a"))
	require.NoError(t, m.Escalate("indeed", "https://example.com/b"))

	err := m.Escalate("indeed", "https://example.com/c")
	require.Error(t, err)
	assert.Equal(t, faults.KindCaptchaRequired, faults.KindOf(err))
	assert.Equal(t, 2, m.Stats().Escalations)
}

func TestEscalationBudgetResetsPerRun(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Escalations = 1
	m := NewManager(cfg, logging.NewNop())

	require.NoError(t, m.Escalate("indeed", "https://example.com/a"))
	require.Error(t, m.Escalate("indeed", "https://example.com/b"))

	// A new run restores the budget; exhaustion is not process-lifetime.
	m.ResetEscalations()
	assert.Equal(t, 0, m.Stats().Escalations)
	require.NoError(t, m.Escalate("indeed", "https://example.com/c"))
}

func TestSolveCaptchaNotImplemented(t *testing.T) {
	m := NewManager(DefaultConfig(), logging.NewNop())
	err := m.SolveCaptcha(nil)
	require.Error(t, err)
	assert.Equal(t, faults.KindNotImplemented, faults.KindOf(err))
}

func TestPageSlotsDefault(t *testing.T) {
	cfg := DefaultConfig()
	cfg.PageSlots = 0
	m := NewManager(cfg, logging.NewNop())
	assert.Equal(t, 1, cap(m.slots))
}
