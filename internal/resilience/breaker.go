// Package resilience guards calls to flaky external dependencies with
// per-dependency circuit breakers.
package resilience

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/seekerworks/jobpilot/internal/faults"
)

var (
	// ErrOpen is returned while the breaker is open and calls fail fast.
	ErrOpen = faults.New(faults.KindCircuitOpen, "breaker", "circuit breaker is open")
	// ErrTooManyCalls is returned in half-open state once the probe budget
	// for the current generation is spent.
	ErrTooManyCalls = faults.New(faults.KindCircuitOpen, "breaker", "too many calls in half-open state")
)

// State represents the circuit breaker state.
type State int

const (
	StateClosed State = iota
	StateHalfOpen
	StateOpen
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateHalfOpen:
		return "half-open"
	case StateOpen:
		return "open"
	default:
		return "unknown"
	}
}

// Settings configures breaker behavior for one dependency.
type Settings struct {
	// FailureThreshold is the number of consecutive failures in closed state
	// that opens the circuit.
	FailureThreshold uint32
	// SuccessThreshold is the number of consecutive half-open successes that
	// closes the circuit again.
	SuccessThreshold uint32
	// RecoveryTimeout is how long the circuit stays open before the next
	// call is allowed through as a half-open probe.
	RecoveryTimeout time.Duration
	// OpTimeout bounds each wrapped call; an expired deadline counts as a
	// failure. Zero disables the per-call deadline.
	OpTimeout time.Duration
	// MaxHalfOpenCalls bounds concurrent probes while half-open.
	MaxHalfOpenCalls uint32
	// OnStateChange is called whenever the state changes.
	OnStateChange func(name string, from State, to State)
}

func (s *Settings) withDefaults() {
	if s.FailureThreshold == 0 {
		s.FailureThreshold = 5
	}
	if s.SuccessThreshold == 0 {
		s.SuccessThreshold = 1
	}
	if s.RecoveryTimeout == 0 {
		s.RecoveryTimeout = 60 * time.Second
	}
	if s.MaxHalfOpenCalls == 0 {
		s.MaxHalfOpenCalls = s.SuccessThreshold
	}
}

// Counts holds the running statistics for the breaker.
type Counts struct {
	Requests             uint32
	TotalSuccesses       uint32
	TotalFailures        uint32
	ConsecutiveSuccesses uint32
	ConsecutiveFailures  uint32
}

// Metrics is a point-in-time view of one breaker for /stats and logs.
type Metrics struct {
	Name        string    `json:"name"`
	State       string    `json:"state"`
	Requests    uint32    `json:"requests"`
	Successes   uint32    `json:"successes"`
	Failures    uint32    `json:"failures"`
	Opens       uint64    `json:"opens"`
	Closes      uint64    `json:"closes"`
	LastFailure time.Time `json:"last_failure,omitempty"`
	LastSuccess time.Time `json:"last_success,omitempty"`
}

// Breaker implements the three-state circuit breaker pattern. A generation
// counter ties each call's outcome to the state cycle it started in, so a
// slow call finishing after a transition cannot corrupt the new cycle's
// counts.
type Breaker struct {
	name     string
	settings Settings

	mu          sync.Mutex
	state       State
	counts      Counts
	expiry      time.Time
	generation  uint64
	opens       uint64
	closes      uint64
	lastFailure time.Time
	lastSuccess time.Time
}

// New creates a circuit breaker with the given settings.
func New(name string, settings Settings) *Breaker {
	settings.withDefaults()
	return &Breaker{
		name:     name,
		settings: settings,
		state:    StateClosed,
	}
}

// Name returns the dependency name this breaker guards.
func (b *Breaker) Name() string {
	return b.name
}

// State returns the current state, applying any due open→half-open move.
func (b *Breaker) State() State {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, _ := b.currentState(time.Now())
	return state
}

// Counts returns a copy of the internal counts.
func (b *Breaker) Counts() Counts {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.counts
}

// Metrics returns a snapshot of the breaker's statistics.
func (b *Breaker) Metrics() Metrics {
	b.mu.Lock()
	defer b.mu.Unlock()

	state, _ := b.currentState(time.Now())
	return Metrics{
		Name:        b.name,
		State:       state.String(),
		Requests:    b.counts.Requests,
		Successes:   b.counts.TotalSuccesses,
		Failures:    b.counts.TotalFailures,
		Opens:       b.opens,
		Closes:      b.closes,
		LastFailure: b.lastFailure,
		LastSuccess: b.lastSuccess,
	}
}

// Reset returns the breaker to a fresh closed state. Tests only.
func (b *Breaker) Reset() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.state = StateClosed
	b.counts = Counts{}
	b.expiry = time.Time{}
	b.generation++
}

// Execute runs op if the breaker accepts the call. The op receives a context
// bounded by OpTimeout; a deadline expiry is recorded as a failure like any
// other error.
func (b *Breaker) Execute(ctx context.Context, op func(context.Context) error) error {
	generation, err := b.beforeRequest()
	if err != nil {
		return err
	}

	opCtx := ctx
	var cancel context.CancelFunc
	if b.settings.OpTimeout > 0 {
		opCtx, cancel = context.WithTimeout(ctx, b.settings.OpTimeout)
		defer cancel()
	}

	defer func() {
		if e := recover(); e != nil {
			b.afterRequest(generation, false)
			panic(e)
		}
	}()

	opErr := op(opCtx)
	if opErr != nil && errors.Is(opErr, context.DeadlineExceeded) && !faults.IsKind(opErr, faults.KindTimeout) {
		opErr = faults.Wrap(faults.KindTimeout, b.name, opErr)
	}
	b.afterRequest(generation, opErr == nil)
	return opErr
}

func (b *Breaker) beforeRequest() (uint64, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, generation := b.currentState(now)

	if state == StateOpen {
		return generation, ErrOpen
	}
	if state == StateHalfOpen && b.counts.Requests >= b.settings.MaxHalfOpenCalls {
		return generation, ErrTooManyCalls
	}

	b.counts.Requests++
	return generation, nil
}

func (b *Breaker) afterRequest(before uint64, success bool) {
	b.mu.Lock()
	defer b.mu.Unlock()

	now := time.Now()
	state, generation := b.currentState(now)
	if generation != before {
		return
	}

	if success {
		b.onSuccess(state, now)
	} else {
		b.onFailure(state, now)
	}
}

func (b *Breaker) onSuccess(state State, now time.Time) {
	b.lastSuccess = now
	switch state {
	case StateClosed:
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
	case StateHalfOpen:
		b.counts.TotalSuccesses++
		b.counts.ConsecutiveSuccesses++
		b.counts.ConsecutiveFailures = 0
		if b.counts.ConsecutiveSuccesses >= b.settings.SuccessThreshold {
			b.setState(StateClosed, now)
		}
	}
}

func (b *Breaker) onFailure(state State, now time.Time) {
	b.lastFailure = now
	switch state {
	case StateClosed:
		b.counts.TotalFailures++
		b.counts.ConsecutiveFailures++
		b.counts.ConsecutiveSuccesses = 0
		if b.counts.ConsecutiveFailures >= b.settings.FailureThreshold {
			b.setState(StateOpen, now)
		}
	case StateHalfOpen:
		b.counts.TotalFailures++
		b.setState(StateOpen, now)
	}
}

func (b *Breaker) currentState(now time.Time) (State, uint64) {
	if b.state == StateOpen && b.expiry.Before(now) {
		b.setState(StateHalfOpen, now)
	}
	return b.state, b.generation
}

func (b *Breaker) setState(state State, now time.Time) {
	if b.state == state {
		return
	}

	prev := b.state
	b.state = state
	b.counts = Counts{}
	b.generation++

	switch state {
	case StateOpen:
		b.opens++
		b.expiry = now.Add(b.settings.RecoveryTimeout)
	case StateClosed:
		b.closes++
		b.expiry = time.Time{}
	case StateHalfOpen:
		b.expiry = time.Time{}
	}

	if b.settings.OnStateChange != nil {
		b.settings.OnStateChange(b.name, prev, state)
	}
}
