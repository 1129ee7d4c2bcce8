package store

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/seekerworks/jobpilot/internal/domain"
)

func TestPlaceholder(t *testing.T) {
	assert.Equal(t, "$1", placeholder(1))
	assert.Equal(t, "$12", placeholder(12))
}

func TestNullableID(t *testing.T) {
	assert.Nil(t, nullableID(0))
	assert.Equal(t, int64(7), nullableID(7))
}

func TestScanRunFinishedAt(t *testing.T) {
	started := time.Date(2026, 8, 31, 9, 0, 0, 0, time.UTC)
	finished := started.Add(5 * time.Minute)

	// Rows from a completed run carry a non-null finished_at.
	r, err := scanRun(func(dest ...interface{}) error {
		require.Len(t, dest, 13)
		*dest[0].(*string) = "run-1"
		*dest[1].(*domain.RunStatus) = domain.RunCompleted
		*dest[2].(*string) = "api"
		*dest[3].(*int) = 10
		*dest[9].(*float64) = 0.25
		*dest[10].(*string) = ""
		*dest[11].(*time.Time) = started
		*dest[12].(**time.Time) = &finished
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, "run-1", r.ID)
	assert.Equal(t, finished, r.FinishedAt)
	assert.Equal(t, 5*time.Minute, r.Duration())

	// A running run has a null finished_at and a zero FinishedAt.
	r, err = scanRun(func(dest ...interface{}) error {
		*dest[11].(*time.Time) = started
		return nil
	})
	require.NoError(t, err)
	assert.True(t, r.FinishedAt.IsZero())
}
