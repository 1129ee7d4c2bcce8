package evaluator

import (
	"fmt"
	"testing"

	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/stretchr/testify/assert"
)

func TestHeuristicAlwaysInRange(t *testing.T) {
	h := NewHeuristic()

	jobs := []domain.Job{
		{},
		{Title: "Backend Engineer", Description: "golang kubernetes postgres 5+ years"},
		{Title: "Designer", Description: "figma photoshop"},
		{Title: "ML Engineer", Description: "python machine learning 10+ years required"},
	}
	resumes := []string{
		"",
		"golang kubernetes postgres docker 6 years of experience",
		"junior developer, 1 year python",
	}

	for i, job := range jobs {
		for j, resume := range resumes {
			t.Run(fmt.Sprintf("job%d_resume%d", i, j), func(t *testing.T) {
				eval := h.Evaluate(job, resume)
				assert.GreaterOrEqual(t, eval.Score, 1.0)
				assert.LessOrEqual(t, eval.Score, 10.0)
				assert.NotEmpty(t, eval.Reason)
				assert.Equal(t, domain.ProvenanceHeuristic, eval.Provenance)
			})
		}
	}
}

func TestHeuristicRewardsOverlap(t *testing.T) {
	h := NewHeuristic()

	job := domain.Job{
		Title:       "Backend Engineer",
		Description: "We need golang, postgresql, kubernetes, docker. 4+ years experience.",
	}

	strong := h.Evaluate(job, "Senior engineer, golang, postgresql, kubernetes, docker, 6 years of experience")
	weak := h.Evaluate(job, "Graphic designer with photoshop skills")

	assert.Greater(t, strong.Score, weak.Score)
}

func TestSkillMatchNeutralWithoutSignals(t *testing.T) {
	assert.Equal(t, 5.0, skillMatch("anything", "plain text with no tech words"))
}

func TestExperienceMatch(t *testing.T) {
	tests := []struct {
		name   string
		resume string
		job    string
		want   float64
	}{
		{"no requirement", "5 years", "great team", 5.0},
		{"meets requirement", "6 years of experience", "requires 5+ years", 8.0},
		{"half requirement", "3 years", "requires 6 years", 6.0},
		{"below half", "1 year", "requires 10+ years", 3.0},
		{"no resume signal", "experienced engineer", "requires 5 years", 3.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, experienceMatch(tt.resume, tt.job))
		})
	}
}

func TestExtractYears(t *testing.T) {
	years := extractYears("3-5 years experience, ideally 7+ years with go")
	assert.Contains(t, years, 3)
	assert.Contains(t, years, 5)
	assert.Contains(t, years, 7)
	assert.Empty(t, extractYears("no numbers here"))
}

func TestJustificationBands(t *testing.T) {
	assert.Contains(t, justification(9, "SRE"), "Strong match")
	assert.Contains(t, justification(6.5, "SRE"), "Good match")
	assert.Contains(t, justification(4.2, "SRE"), "Moderate match")
	assert.Contains(t, justification(2, "SRE"), "Weak match")
}
