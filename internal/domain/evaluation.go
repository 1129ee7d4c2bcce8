package domain

// Provenance identifies which tier produced an evaluation, so consumers can
// discount confidence accordingly.
const (
	ProvenancePrimary       = "primary"
	ProvenanceFallbackModel = "fallback-model"
	ProvenanceHeuristic     = "heuristic"
)

// Evaluation is the outcome of scoring one job against a resume.
type Evaluation struct {
	Score      float64 `json:"score"`
	Reason     string  `json:"reason"`
	Provenance string  `json:"provenance"`
	Tier       string  `json:"tier,omitempty"` // model identifier when an LLM produced it
	Cost       float64 `json:"cost,omitempty"`
	// FromCache marks a replayed result; Provenance still names the tier
	// that originally produced it.
	FromCache bool `json:"from_cache,omitempty"`
}

// Matched reports whether the score clears the inclusion threshold.
func (e Evaluation) Matched(threshold float64) bool {
	return e.Score >= threshold
}
