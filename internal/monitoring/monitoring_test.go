package monitoring

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSnapshotTracksOutcomes(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordHTTPRequest("GET", "/jobs", "200", 5*time.Millisecond)
	m.RecordHTTPRequest("POST", "/run", "409", time.Millisecond)
	m.RecordScrape("remoteok", 12, time.Second, "")
	m.RecordScrape("indeed", 0, time.Second, "captcha-required")
	m.RecordLLMRequest("gpt-4", true, 0.012)
	m.RecordCache(true)
	m.RecordCache(false)
	m.RecordApplication("remoteok", "applied")
	m.RecordRun("completed", time.Minute)
	m.RecordRun("failed", time.Second)

	snap := m.CurrentSnapshot()
	assert.Equal(t, int64(2), snap.TotalRequests)
	assert.Equal(t, int64(1), snap.TotalErrors)
	assert.Equal(t, int64(12), snap.JobsScraped, "failed scrapes must not count jobs")
	assert.Equal(t, int64(1), snap.LLMRequests)
	assert.InDelta(t, 0.012, snap.LLMCost, 1e-9)
	assert.Equal(t, int64(1), snap.CacheHits)
	assert.Equal(t, int64(1), snap.CacheMisses)
	assert.Equal(t, int64(1), snap.RunsCompleted)
	assert.Equal(t, int64(1), snap.RunsFailed)
}

func TestPrometheusCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg)

	m.RecordScrape("remoteok", 7, time.Second, "")
	m.RecordLLMRequest("gpt-4", false, 0)

	assert.Equal(t, 7.0, testutil.ToFloat64(m.JobsScraped.WithLabelValues("remoteok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LLMRequests.WithLabelValues("gpt-4", "failure")))
}

func TestDistribution(t *testing.T) {
	d := Distribution([]float64{6, 8, 7, 9, 5, 8, 7, 6, 8, 7})
	require.Equal(t, 10, d.Count)
	assert.InDelta(t, 7.1, d.Mean, 1e-9)
	assert.Greater(t, d.StdDev, 0.0)
	assert.LessOrEqual(t, d.P25, d.P50)
	assert.LessOrEqual(t, d.P50, d.P75)
	assert.LessOrEqual(t, d.P75, d.P90)
}

func TestDistributionEmpty(t *testing.T) {
	assert.Equal(t, ScoreDistribution{}, Distribution(nil))
}

func TestDistributionSingleSample(t *testing.T) {
	d := Distribution([]float64{8})
	assert.Equal(t, 1, d.Count)
	assert.Equal(t, 8.0, d.Mean)
	assert.Zero(t, d.StdDev)
}
