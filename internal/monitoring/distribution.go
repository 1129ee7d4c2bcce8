package monitoring

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// ScoreDistribution summarizes evaluation scores for the stats endpoint.
type ScoreDistribution struct {
	Count  int     `json:"count"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"std_dev"`
	P25    float64 `json:"p25"`
	P50    float64 `json:"p50"`
	P75    float64 `json:"p75"`
	P90    float64 `json:"p90"`
}

// Distribution computes summary statistics over the scores. Fewer than two
// samples yields a zero standard deviation.
func Distribution(scores []float64) ScoreDistribution {
	if len(scores) == 0 {
		return ScoreDistribution{}
	}

	sorted := make([]float64, len(scores))
	copy(sorted, scores)
	sort.Float64s(sorted)

	d := ScoreDistribution{
		Count: len(sorted),
		Mean:  stat.Mean(sorted, nil),
		P25:   stat.Quantile(0.25, stat.Empirical, sorted, nil),
		P50:   stat.Quantile(0.50, stat.Empirical, sorted, nil),
		P75:   stat.Quantile(0.75, stat.Empirical, sorted, nil),
		P90:   stat.Quantile(0.90, stat.Empirical, sorted, nil),
	}
	if len(sorted) > 1 {
		d.StdDev = stat.StdDev(sorted, nil)
	}
	return d
}
