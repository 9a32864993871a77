// Package health implements the source health monitor: per-source freshness
// checks, a circuit breaker per source, retry with exponential backoff, and
// priority-ordered self-healing of stale sources.
package health

import (
	"errors"
	"sync"
	"time"

	"citydigest/internal/core"
)

// ErrCircuitOpen is returned when a call is refused because the source's
// circuit is open and the reset timeout has not elapsed.
var ErrCircuitOpen = errors.New("circuit open")

// Breaker defaults.
const (
	DefaultFailureThreshold = 5
	DefaultResetTimeout     = 5 * time.Minute
)

// CircuitBreaker tracks per-source failure state for the lifetime of the
// process. The state map is shared across pipeline runs on purpose: a
// source failing repeatedly should stay open across successive digest runs
// until the reset timeout elapses.
type CircuitBreaker struct {
	mu               sync.Mutex
	failureThreshold int
	resetTimeout     time.Duration
	states           map[string]*core.CircuitState
	now              func() time.Time
}

// NewCircuitBreaker creates a breaker registry with the given thresholds.
func NewCircuitBreaker(failureThreshold int, resetTimeout time.Duration) *CircuitBreaker {
	return &CircuitBreaker{
		failureThreshold: failureThreshold,
		resetTimeout:     resetTimeout,
		states:           make(map[string]*core.CircuitState),
		now:              time.Now,
	}
}

// WithClock replaces the breaker's clock. Intended for tests.
func (b *CircuitBreaker) WithClock(now func() time.Time) *CircuitBreaker {
	b.now = now
	return b
}

func (b *CircuitBreaker) state(sourceID string) *core.CircuitState {
	st, ok := b.states[sourceID]
	if !ok {
		st = &core.CircuitState{State: core.CircuitClosed}
		b.states[sourceID] = st
	}
	return st
}

// Allow reports whether a call to the source may proceed. While open it
// returns ErrCircuitOpen until the reset timeout elapses, at which point
// the circuit transitions to half_open and one probe call is allowed.
func (b *CircuitBreaker) Allow(sourceID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.state(sourceID)
	switch st.State {
	case core.CircuitOpen:
		if b.now().Sub(st.OpenedAt) >= b.resetTimeout {
			st.State = core.CircuitHalfOpen
			return nil
		}
		return ErrCircuitOpen
	default:
		return nil
	}
}

// RecordSuccess resets the source's circuit to closed with zero failures.
func (b *CircuitBreaker) RecordSuccess(sourceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.state(sourceID)
	st.State = core.CircuitClosed
	st.Failures = 0
	st.OpenedAt = time.Time{}
}

// RecordFailure counts a failure against the source. Reaching the failure
// threshold opens the circuit; a failed half_open probe reopens it
// immediately.
func (b *CircuitBreaker) RecordFailure(sourceID string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	st := b.state(sourceID)
	st.Failures++
	st.LastFailure = b.now()

	if st.State == core.CircuitHalfOpen || st.Failures >= b.failureThreshold {
		st.State = core.CircuitOpen
		st.OpenedAt = b.now()
	}
}

// State returns a copy of the source's circuit state.
func (b *CircuitBreaker) State(sourceID string) core.CircuitState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return *b.state(sourceID)
}
