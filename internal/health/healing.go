package health

import (
	"fmt"
	"time"

	"citydigest/internal/sources"
)

// HealingAction is the audit record of one self-healing refresh attempt.
// Every attempt produces one, whether or not it succeeded.
type HealingAction struct {
	SourceID  string                `json:"source_id"`
	Executed  bool                  `json:"executed"` // False when no refresher is registered
	Success   bool                  `json:"success"`
	Result    sources.RefreshResult `json:"result"`
	Error     string                `json:"error,omitempty"`
	Attempts  int                   `json:"attempts"`
	Duration  time.Duration         `json:"duration"`
	Timestamp time.Time             `json:"timestamp"`
}

// summarize folds a retry outcome into the action's audit fields.
func (a *HealingAction) summarize(outcome RetryOutcome) {
	a.Attempts = outcome.Attempts
	a.Success = outcome.Success
	if outcome.Err != nil {
		a.Error = outcome.Err.Error()
	}
	if outcome.CircuitOpen {
		a.Error = fmt.Sprintf("refresh skipped: %v", outcome.Err)
	}
}
