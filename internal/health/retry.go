package health

import (
	"context"
	"fmt"
	"time"
)

// Retry defaults.
const (
	DefaultMaxRetries = 3
	DefaultBaseDelay  = 1 * time.Second
	DefaultMaxDelay   = 30 * time.Second
	backoffMultiplier = 2
)

// RetryConfig controls the retry/backoff schedule.
type RetryConfig struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultRetryConfig returns the standard schedule: 3 attempts, 1s base
// delay doubling per attempt, capped at 30s.
func DefaultRetryConfig() RetryConfig {
	return RetryConfig{
		MaxRetries: DefaultMaxRetries,
		BaseDelay:  DefaultBaseDelay,
		MaxDelay:   DefaultMaxDelay,
	}
}

// RetryOutcome is the structured result of a retried operation. It is a
// value, never a panic or a raw error crossing a stage boundary.
type RetryOutcome struct {
	Success     bool
	Attempts    int  // Attempts actually made (0 when the circuit was open)
	CircuitOpen bool // True when the call was refused without any attempt
	Err         error
}

// WithRetry runs op under the source's circuit breaker with exponential
// backoff. An open circuit fails immediately with zero attempts. Any
// success closes the circuit; exhausting all attempts records exactly one
// circuit failure and returns the last error.
func WithRetry(ctx context.Context, breaker *CircuitBreaker, sourceID string, cfg RetryConfig, op func(context.Context) error) RetryOutcome {
	if err := breaker.Allow(sourceID); err != nil {
		return RetryOutcome{CircuitOpen: true, Err: err}
	}
	// A schedule with no attempts is a config mistake, not a source
	// failure; refuse it without touching the circuit.
	if cfg.MaxRetries < 1 {
		return RetryOutcome{Err: fmt.Errorf("retry config allows no attempts")}
	}

	delay := cfg.BaseDelay
	var lastErr error
	for attempt := 1; attempt <= cfg.MaxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return RetryOutcome{Attempts: attempt - 1, Err: err}
		}

		err := op(ctx)
		if err == nil {
			breaker.RecordSuccess(sourceID)
			return RetryOutcome{Success: true, Attempts: attempt}
		}
		lastErr = err

		if attempt < cfg.MaxRetries {
			if !sleep(ctx, delay) {
				return RetryOutcome{Attempts: attempt, Err: ctx.Err()}
			}
			delay *= backoffMultiplier
			if delay > cfg.MaxDelay {
				delay = cfg.MaxDelay
			}
		}
	}

	breaker.RecordFailure(sourceID)
	return RetryOutcome{Attempts: cfg.MaxRetries, Err: lastErr}
}

// sleep waits for d or until the context is cancelled, reporting whether
// the full delay elapsed.
func sleep(ctx context.Context, d time.Duration) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
