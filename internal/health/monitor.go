package health

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"citydigest/internal/core"
	"citydigest/internal/logger"
	"citydigest/internal/sources"
)

// Healing defaults.
const (
	DefaultHealingThreshold = 50.0
	DefaultHealingDelay     = 500 * time.Millisecond
)

// Status classifies an overall health report.
type Status string

const (
	StatusHealthy  Status = "healthy"
	StatusDegraded Status = "degraded"
	StatusCritical Status = "critical"
)

// Report is the outcome of a full health check, including any self-healing
// performed.
type Report struct {
	Status            Status                    `json:"status"`
	OverallHealth     float64                   `json:"overall_health"`
	Freshness         []core.SourceFreshness    `json:"freshness"`
	HealingActions    []HealingAction           `json:"healing_actions,omitempty"`
	ReadyForNextStage bool                      `json:"ready_for_next_stage"`
	Errors            []core.OrchestrationError `json:"errors,omitempty"`
	CheckedAt         time.Time                 `json:"checked_at"`
}

// Monitor runs freshness checks, self-healing, and health classification
// over the registered sources.
type Monitor struct {
	registry         *sources.Registry
	store            FreshnessStore
	breaker          *CircuitBreaker
	retry            RetryConfig
	healingThreshold float64
	healingDelay     time.Duration
	log              *slog.Logger
	now              func() time.Time
}

// NewMonitor creates a monitor over the given registry and store. The
// breaker is injected so its state can outlive individual pipeline runs.
func NewMonitor(registry *sources.Registry, store FreshnessStore, breaker *CircuitBreaker) *Monitor {
	return &Monitor{
		registry:         registry,
		store:            store,
		breaker:          breaker,
		retry:            DefaultRetryConfig(),
		healingThreshold: DefaultHealingThreshold,
		healingDelay:     DefaultHealingDelay,
		log:              logger.Get(),
		now:              time.Now,
	}
}

// WithRetryConfig overrides the retry schedule used for refresh calls.
func (m *Monitor) WithRetryConfig(cfg RetryConfig) *Monitor {
	m.retry = cfg
	return m
}

// WithHealing overrides the auto-heal threshold and inter-source delay.
func (m *Monitor) WithHealing(threshold float64, delay time.Duration) *Monitor {
	m.healingThreshold = threshold
	m.healingDelay = delay
	return m
}

// WithClock replaces the monitor's clock. Intended for tests.
func (m *Monitor) WithClock(now func() time.Time) *Monitor {
	m.now = now
	return m
}

// Breaker exposes the monitor's circuit breaker registry.
func (m *Monitor) Breaker() *CircuitBreaker {
	return m.breaker
}

// Registry exposes the monitor's source registry.
func (m *Monitor) Registry() *sources.Registry {
	return m.registry
}

// CheckFreshness checks every registered source concurrently and returns
// the freshness records in registry order. Individual check failures mark
// the source stale rather than failing the whole check.
func (m *Monitor) CheckFreshness(ctx context.Context) ([]core.SourceFreshness, []core.OrchestrationError) {
	srcs := m.registry.Sources()
	freshness := make([]core.SourceFreshness, len(srcs))
	var (
		mu      sync.Mutex
		wg      sync.WaitGroup
		orchErr []core.OrchestrationError
	)

	now := m.now()
	for i, src := range srcs {
		wg.Add(1)
		go func(i int, src sources.Source) {
			defer wg.Done()
			f, err := CheckSourceFreshness(ctx, m.store, src, now)
			if err != nil {
				f.IsStale = true
				mu.Lock()
				orchErr = append(orchErr, core.OrchestrationError{
					Stage:       "health_check",
					Severity:    core.SeverityError,
					Message:     "freshness check failed: " + err.Error(),
					SourceID:    src.ID,
					Timestamp:   now,
					Recoverable: true,
				})
				mu.Unlock()
			}
			freshness[i] = f
		}(i, src)
	}
	wg.Wait()

	sort.SliceStable(orchErr, func(i, j int) bool { return orchErr[i].SourceID < orchErr[j].SourceID })
	return freshness, orchErr
}

// HealStaleData refreshes every stale source, most critical priority first,
// sequentially with a short delay between sources to avoid overwhelming
// upstream APIs. Every attempt is recorded as an auditable action. An
// all-fresh input returns an empty action list without invoking anything.
func (m *Monitor) HealStaleData(ctx context.Context, freshness []core.SourceFreshness) []HealingAction {
	staleByID := make(map[string]core.SourceFreshness)
	for _, f := range freshness {
		if f.IsStale {
			staleByID[f.SourceID] = f
		}
	}
	if len(staleByID) == 0 {
		return []HealingAction{}
	}

	actions := make([]HealingAction, 0, len(staleByID))
	first := true
	for _, src := range m.registry.ByPriority() {
		if _, stale := staleByID[src.ID]; !stale {
			continue
		}
		if !first && !sleep(ctx, m.healingDelay) {
			break
		}
		first = false

		action := HealingAction{SourceID: src.ID, Timestamp: m.now()}
		refresher, ok := m.registry.Refresher(src.ID)
		if !ok {
			action.Error = "no refresher registered"
			actions = append(actions, action)
			m.log.Warn("Cannot heal source without refresher", "source", src.ID)
			continue
		}

		action.Executed = true
		start := time.Now()
		outcome := WithRetry(ctx, m.breaker, src.ID, m.retry, func(ctx context.Context) error {
			result, err := refresher.Refresh(ctx)
			if err != nil {
				return err
			}
			action.Result = result
			return nil
		})
		action.Duration = time.Since(start)
		action.summarize(outcome)
		actions = append(actions, action)

		m.log.Info("Healing attempt finished",
			"source", src.ID, "success", action.Success,
			"attempts", action.Attempts, "created", action.Result.Created)
	}
	return actions
}

// ProduceHealthReport checks freshness, self-heals if enabled and overall
// health is below the healing threshold, re-checks after healing, and
// classifies the result.
func (m *Monitor) ProduceHealthReport(ctx context.Context, autoHeal bool) Report {
	freshness, orchErrs := m.CheckFreshness(ctx)

	byID := make(map[string]sources.Source)
	for _, s := range m.registry.Sources() {
		byID[s.ID] = s
	}

	healthScore := CalculateOverallHealth(freshness, byID)
	var actions []HealingAction
	if autoHeal && healthScore < m.healingThreshold {
		m.log.Info("Overall health below threshold, self-healing",
			"health", healthScore, "threshold", m.healingThreshold)
		actions = m.HealStaleData(ctx, freshness)

		var postErrs []core.OrchestrationError
		freshness, postErrs = m.CheckFreshness(ctx)
		orchErrs = append(orchErrs, postErrs...)
		healthScore = CalculateOverallHealth(freshness, byID)
	}

	report := Report{
		OverallHealth:  healthScore,
		Freshness:      freshness,
		HealingActions: actions,
		Errors:         orchErrs,
		CheckedAt:      m.now(),
	}

	requiredStale := false
	anyStale := false
	for _, f := range freshness {
		if !f.IsStale {
			continue
		}
		anyStale = true
		if byID[f.SourceID].RequiredForDigest {
			requiredStale = true
		}
	}

	switch {
	case requiredStale:
		report.Status = StatusCritical
	case anyStale || healthScore < 80:
		report.Status = StatusDegraded
	default:
		report.Status = StatusHealthy
	}

	// A single critical-source hiccup should not block the digest when the
	// primary source still has fresh content.
	report.ReadyForNextStage = !requiredStale || m.primaryFresh(freshness)
	return report
}

func (m *Monitor) primaryFresh(freshness []core.SourceFreshness) bool {
	primary, ok := m.registry.Primary()
	if !ok {
		return false
	}
	for _, f := range freshness {
		if f.SourceID == primary.ID {
			return !f.IsStale && f.ItemCount > 0
		}
	}
	return false
}
