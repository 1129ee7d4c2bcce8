// Package governor meters spend against the LLM endpoint: it tracks request
// history, enforces rate and cost ceilings, and plans waits when a ceiling is
// hit. All limit checks and reservations happen under one mutex so concurrent
// callers can never jointly exceed a limit.
package governor

import "go.uber.org/zap"

// Pricing holds per-1K-unit input/output prices for a model tier.
type Pricing struct {
	Input  float64
	Output float64
}

// DefaultTier is the tier assumed when a caller names an unknown one.
const DefaultTier = "gpt-3.5-turbo"

// DefaultPricing returns the per-tier price table.
func DefaultPricing() map[string]Pricing {
	return map[string]Pricing{
		"gpt-4":             {Input: 0.03, Output: 0.06},
		"gpt-4-turbo":       {Input: 0.01, Output: 0.03},
		"gpt-3.5-turbo":     {Input: 0.0015, Output: 0.002},
		"gpt-3.5-turbo-16k": {Input: 0.003, Output: 0.004},
	}
}

// EstimateCost computes the cost of a request from the price table. Unknown
// tiers fall back to DefaultTier pricing; the tracker logs that fallback.
func (t *Tracker) EstimateCost(tier string, inputUnits, outputUnits int) float64 {
	p, ok := t.pricing[tier]
	if !ok {
		p = t.pricing[DefaultTier]
		if t.log != nil {
			t.log.Warn("unknown pricing tier, using default",
				zap.String("tier", tier), zap.String("default", DefaultTier))
		}
	}
	return float64(inputUnits)/1000.0*p.Input + float64(outputUnits)/1000.0*p.Output
}
