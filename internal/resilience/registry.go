package resilience

import (
	"context"
	"sync"
	"time"

	"github.com/seekerworks/jobpilot/internal/logging"
	"go.uber.org/zap"
)

// Registry owns one breaker per named dependency and hands out
// breaker-wrapped execution. Breakers are created lazily from the configured
// settings, falling back to Defaults for unknown names.
type Registry struct {
	mu       sync.RWMutex
	breakers map[string]*Breaker
	configs  map[string]Settings
	defaults Settings
	log      *logging.Logger
}

// DefaultConfigs returns the per-dependency breaker settings: scrapers trip
// fast and cool off long, the LLM tolerates more failures, the store trips
// fast with a short cooldown so a blip does not stall a whole run.
func DefaultConfigs() map[string]Settings {
	return map[string]Settings{
		"llm": {
			FailureThreshold: 5,
			SuccessThreshold: 2,
			RecoveryTimeout:  600 * time.Second,
			OpTimeout:        30 * time.Second,
		},
		"database": {
			FailureThreshold: 3,
			SuccessThreshold: 1,
			RecoveryTimeout:  120 * time.Second,
			OpTimeout:        10 * time.Second,
		},
		"exporter": {
			FailureThreshold: 3,
			SuccessThreshold: 1,
			RecoveryTimeout:  300 * time.Second,
			OpTimeout:        30 * time.Second,
		},
		"scraper": {
			FailureThreshold: 3,
			SuccessThreshold: 1,
			RecoveryTimeout:  300 * time.Second,
			OpTimeout:        60 * time.Second,
		},
	}
}

// NewRegistry creates a registry with the given per-name settings.
func NewRegistry(configs map[string]Settings, log *logging.Logger) *Registry {
	if configs == nil {
		configs = DefaultConfigs()
	}
	r := &Registry{
		breakers: make(map[string]*Breaker),
		configs:  configs,
		defaults: Settings{
			FailureThreshold: 5,
			SuccessThreshold: 1,
			RecoveryTimeout:  300 * time.Second,
			OpTimeout:        30 * time.Second,
		},
		log: log,
	}
	return r
}

// Get returns the breaker for name, creating it on first use. Scraper
// breakers are independent per source ("scraper:remoteok") but share the
// "scraper" settings.
func (r *Registry) Get(name string) *Breaker {
	r.mu.RLock()
	b, ok := r.breakers[name]
	r.mu.RUnlock()
	if ok {
		return b
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if b, ok := r.breakers[name]; ok {
		return b
	}

	settings, ok := r.configs[name]
	if !ok {
		if base, baseOK := r.configs[prefixOf(name)]; baseOK {
			settings = base
		} else {
			settings = r.defaults
		}
	}
	settings.OnStateChange = r.logTransition
	b = New(name, settings)
	r.breakers[name] = b
	return b
}

// Call executes op through the named breaker.
func (r *Registry) Call(ctx context.Context, name string, op func(context.Context) error) error {
	return r.Get(name).Execute(ctx, op)
}

// Snapshot returns metrics for every breaker created so far.
func (r *Registry) Snapshot() []Metrics {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]Metrics, 0, len(r.breakers))
	for _, b := range r.breakers {
		out = append(out, b.Metrics())
	}
	return out
}

// ResetAll returns every breaker to closed. Tests only.
func (r *Registry) ResetAll() {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, b := range r.breakers {
		b.Reset()
	}
}

func (r *Registry) logTransition(name string, from, to State) {
	if r.log == nil {
		return
	}
	r.log.Warn("circuit breaker state change",
		zap.String("dependency", name),
		zap.String("from", from.String()),
		zap.String("to", to.String()),
	)
}

func prefixOf(name string) string {
	for i := 0; i < len(name); i++ {
		if name[i] == ':' {
			return name[:i]
		}
	}
	return name
}
