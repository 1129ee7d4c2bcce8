//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/seekerworks/jobpilot/internal/logging"
)

// Run with: go test -tags integration ./internal/store -run Integration
// against a disposable Postgres pointed to by TEST_DATABASE_URL.
func connectIntegration(t *testing.T) *Store {
	t.Helper()
	dsn := os.Getenv("TEST_DATABASE_URL")
	if dsn == "" {
		t.Skip("TEST_DATABASE_URL not set")
	}
	s, err := Connect(context.Background(), dsn, logging.NewNop())
	require.NoError(t, err)
	t.Cleanup(s.Close)
	return s
}

func TestIntegrationUpsertJobIdempotent(t *testing.T) {
	s := connectIntegration(t)
	ctx := context.Background()

	job := domain.Job{
		Title:       "Go Engineer",
		Company:     "Acme " + uuid.NewString()[:8],
		Link:        "https://example.com/jobs/" + uuid.NewString(),
		Source:      "remoteok",
		Location:    "Remote",
		Description: "golang, postgres",
		Tags:        []string{"golang"},
	}

	first, inserted, err := s.UpsertJob(ctx, job)
	require.NoError(t, err)
	assert.True(t, inserted)
	assert.NotZero(t, first.ID)
	assert.Equal(t, domain.JobScraped, first.Status)

	// Same natural key again: the unique index resolves to the existing
	// row instead of a second insert.
	job.Description = "golang, postgres, kubernetes"
	second, inserted, err := s.UpsertJob(ctx, job)
	require.NoError(t, err)
	assert.False(t, inserted)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "golang, postgres, kubernetes", second.Description)
}

func TestIntegrationEvaluationAndApplication(t *testing.T) {
	s := connectIntegration(t)
	ctx := context.Background()

	job := domain.Job{
		Title:   "Platform Engineer",
		Company: "Acme " + uuid.NewString()[:8],
		Link:    "https://example.com/jobs/" + uuid.NewString(),
		Source:  "remoteok",
	}
	stored, _, err := s.UpsertJob(ctx, job)
	require.NoError(t, err)

	eval := domain.Evaluation{Score: 8.5, Reason: "strong overlap", Provenance: domain.ProvenancePrimary}
	require.NoError(t, s.UpdateEvaluation(ctx, stored.ID, eval, domain.JobMatched))

	applied, err := s.HasApplied(ctx, stored)
	require.NoError(t, err)
	assert.False(t, applied)

	_, err = s.InsertApplication(ctx, domain.Application{
		JobID:    stored.ID,
		JobTitle: stored.Title,
		Company:  stored.Company,
		Link:     stored.Link,
		Source:   stored.Source,
		Score:    8.5,
		Message:  "Hi, I build Go services.",
		Status:   domain.AppApplied,
	})
	require.NoError(t, err)

	applied, err = s.HasApplied(ctx, stored)
	require.NoError(t, err)
	assert.True(t, applied)
}
