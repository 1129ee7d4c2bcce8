package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/seekerworks/jobpilot/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleJob() domain.Job {
	return domain.Job{
		Title:       "Backend Engineer",
		Company:     "Acme",
		Link:        "https://example.com/jobs/1",
		Location:    "Remote",
		Tags:        []string{"go", "postgres"},
		Description: "Build services.",
	}
}

func sampleEval() domain.Evaluation {
	return domain.Evaluation{
		Score:      8,
		Reason:     "strong overlap",
		Provenance: domain.ProvenancePrimary,
		Tier:       "gpt-3.5-turbo",
		Cost:       0.002,
	}
}

func TestKeyDeterministic(t *testing.T) {
	job := sampleJob()
	k1 := Key(job, "resume text")
	k2 := Key(job, "resume text")
	assert.Equal(t, k1, k2)
	assert.Contains(t, k1, "eval:v1:")

	// Any input change produces a different key.
	assert.NotEqual(t, k1, Key(job, "other resume"))
	job.Description = "changed"
	assert.NotEqual(t, k1, Key(job, "resume text"))
}

func TestMemoryRoundTrip(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	key := Key(sampleJob(), "resume")
	require.NoError(t, m.Set(ctx, key, sampleEval(), time.Hour))

	got, err := m.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, sampleEval(), got)

	ok, err := m.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestMemoryTTLExpiry(t *testing.T) {
	m := NewMemory()
	defer m.Close()
	ctx := context.Background()

	clock := time.Date(2026, 8, 31, 12, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return clock }

	key := Key(sampleJob(), "resume")
	require.NoError(t, m.Set(ctx, key, sampleEval(), time.Hour))

	clock = clock.Add(2 * time.Hour)

	_, err := m.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)

	ok, err := m.Exists(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMemoryMissOnUnknownKey(t *testing.T) {
	m := NewMemory()
	defer m.Close()

	_, err := m.Get(context.Background(), "eval:v1:none")
	assert.ErrorIs(t, err, ErrMiss)
}

func TestRedisRoundTrip(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedis(ctx, RedisConfig{Addr: srv.Addr()})
	require.NoError(t, err)
	defer c.Close()

	key := Key(sampleJob(), "resume")
	require.NoError(t, c.Set(ctx, key, sampleEval(), time.Hour))

	got, err := c.Get(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, sampleEval(), got)

	ok, err := c.Exists(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestRedisTTLExpiry(t *testing.T) {
	srv := miniredis.RunT(t)
	ctx := context.Background()

	c, err := NewRedis(ctx, RedisConfig{Addr: srv.Addr()})
	require.NoError(t, err)
	defer c.Close()

	key := Key(sampleJob(), "resume")
	require.NoError(t, c.Set(ctx, key, sampleEval(), time.Minute))

	srv.FastForward(2 * time.Minute)

	_, err = c.Get(ctx, key)
	assert.ErrorIs(t, err, ErrMiss)
}

func TestCounters(t *testing.T) {
	var c Counters
	c.Hit()
	c.Hit()
	c.Miss()

	hits, misses := c.Snapshot()
	assert.Equal(t, int64(2), hits)
	assert.Equal(t, int64(1), misses)
}
