// Package pipeline sequences the digest stages: source health, content
// selection, curation, personalization, and narrative subject generation.
// Each stage runs inside its own error boundary; optional stages degrade
// to pass-through, required stages can abort the run.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"citydigest/internal/core"
	"citydigest/internal/curation"
	"citydigest/internal/health"
	"citydigest/internal/logger"
	"citydigest/internal/narrative"
	"citydigest/internal/personalization"
	"citydigest/internal/selection"
)

// Stage names as they appear in metrics and error records.
const (
	StageHealth          = "health_check"
	StageSelection       = "content_selection"
	StageCuration        = "curation"
	StagePersonalization = "personalization"
	StageNarrative       = "narrative"
)

// Options controls one pipeline run.
type Options struct {
	Slot            string // morning or evening
	UserID          string // enables personalization when set
	Curate          bool
	Personalize     bool
	SkipNarrative   bool
	AutoHeal        bool
	AbortOnCritical bool
}

// StageMetric records one stage's outcome.
type StageMetric struct {
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	ItemsIn  int           `json:"items_in"`
	ItemsOut int           `json:"items_out"`
	Skipped  bool          `json:"skipped"`
	Failed   bool          `json:"failed"`
}

// Metrics aggregates per-stage outcomes for one run.
type Metrics struct {
	Stages   []StageMetric `json:"stages"`
	Duration time.Duration `json:"duration"`
}

// RunResult is the full outcome of a pipeline run. On abort the unreached
// stages contribute their zero values.
type RunResult struct {
	Digest    *core.Digest                  `json:"digest,omitempty"`
	Health    health.Report                 `json:"health"`
	Selection selection.Result              `json:"selection"`
	Dropped   []core.DroppedItem            `json:"dropped,omitempty"`
	Delivery  *personalization.DeliveryPlan `json:"delivery,omitempty"`
	Errors    []core.OrchestrationError     `json:"errors,omitempty"`
	Metrics   Metrics                       `json:"metrics"`
	Success   bool                          `json:"success"`
	Aborted   bool                          `json:"aborted"`
}

// DigestSaver persists the finished digest. Optional.
type DigestSaver interface {
	SaveDigest(ctx context.Context, digest core.Digest) error
}

// Orchestrator wires the stages together. Collaborators other than the
// monitor and selection stage may be nil, which disables their stage.
type Orchestrator struct {
	monitor  *health.Monitor
	selector *selection.Stage
	curator  *curation.Stage
	personal *personalization.Stage
	gen      narrative.Generator
	saver    DigestSaver
	log      *slog.Logger
	now      func() time.Time
}

// NewOrchestrator creates a pipeline over the required stages.
func NewOrchestrator(monitor *health.Monitor, selector *selection.Stage) *Orchestrator {
	return &Orchestrator{
		monitor:  monitor,
		selector: selector,
		log:      logger.Get(),
		now:      time.Now,
	}
}

// WithCuration enables the curation stage.
func (o *Orchestrator) WithCuration(curator *curation.Stage) *Orchestrator {
	o.curator = curator
	return o
}

// WithPersonalization enables the personalization stage.
func (o *Orchestrator) WithPersonalization(personal *personalization.Stage) *Orchestrator {
	o.personal = personal
	return o
}

// WithGenerator enables narrative subject generation.
func (o *Orchestrator) WithGenerator(gen narrative.Generator) *Orchestrator {
	o.gen = gen
	return o
}

// WithSaver persists finished digests.
func (o *Orchestrator) WithSaver(saver DigestSaver) *Orchestrator {
	o.saver = saver
	return o
}

// WithClock replaces the orchestrator's clock. Intended for tests.
func (o *Orchestrator) WithClock(now func() time.Time) *Orchestrator {
	o.now = now
	return o
}

// Run executes the pipeline for one digest slot. It never returns an
// error: every failure is classified into the result's error list.
func (o *Orchestrator) Run(ctx context.Context, opts Options) RunResult {
	started := o.now()
	var result RunResult

	// Health is a required stage. Not ready means the data underneath the
	// rest of the pipeline cannot be trusted.
	healthStart := o.now()
	result.Health = o.monitor.ProduceHealthReport(ctx, opts.AutoHeal)
	result.Errors = append(result.Errors, result.Health.Errors...)
	healthMetric := StageMetric{
		Name:     StageHealth,
		Duration: o.now().Sub(healthStart),
		ItemsOut: len(result.Health.Freshness),
		Failed:   !result.Health.ReadyForNextStage,
	}
	result.Metrics.Stages = append(result.Metrics.Stages, healthMetric)

	if !result.Health.ReadyForNextStage {
		result.Errors = append(result.Errors, core.OrchestrationError{
			Stage:     StageHealth,
			Severity:  core.SeverityCritical,
			Message:   "sources not ready for digest generation",
			Timestamp: o.now(),
		})
		if opts.AbortOnCritical {
			o.log.Error("Aborting pipeline, sources not ready", "status", result.Health.Status)
			return o.finish(result, started, opts, true)
		}
		o.log.Warn("Sources not ready, continuing with degraded data", "status", result.Health.Status)
	}

	// Content selection is the second required stage.
	selectionStart := o.now()
	result.Selection = o.selector.Run(ctx)
	result.Errors = append(result.Errors, result.Selection.Errors...)
	result.Dropped = append(result.Dropped, result.Selection.Dropped...)
	items := result.Selection.Items
	selectionFailed := len(items) == 0 && len(result.Selection.Errors) > 0
	result.Metrics.Stages = append(result.Metrics.Stages, StageMetric{
		Name:     StageSelection,
		Duration: o.now().Sub(selectionStart),
		ItemsIn:  result.Selection.Stats.TotalEvaluated,
		ItemsOut: len(items),
		Failed:   selectionFailed,
	})
	if selectionFailed {
		result.Errors = append(result.Errors, core.OrchestrationError{
			Stage:     StageSelection,
			Severity:  core.SeverityCritical,
			Message:   "content selection produced no items",
			Timestamp: o.now(),
		})
		if opts.AbortOnCritical {
			o.log.Error("Aborting pipeline, nothing selected")
			return o.finish(result, started, opts, true)
		}
	}

	items = o.runCuration(ctx, opts, items, &result)
	items = o.runPersonalization(ctx, opts, items, &result)

	digest := core.Digest{
		ID:          uuid.New().String(),
		Slot:        opts.Slot,
		Items:       items,
		GeneratedAt: o.now(),
	}
	digest.Subject = o.subject(ctx, opts, items, &result)
	result.Digest = &digest

	if o.saver != nil {
		if err := o.saver.SaveDigest(ctx, digest); err != nil {
			o.log.Warn("Failed to persist digest", "error", err)
			result.Errors = append(result.Errors, core.OrchestrationError{
				Stage:       StageNarrative,
				Severity:    core.SeverityWarning,
				Message:     fmt.Sprintf("failed to persist digest: %v", err),
				Timestamp:   o.now(),
				Recoverable: true,
			})
		}
	}

	return o.finish(result, started, opts, false)
}

func (o *Orchestrator) runCuration(ctx context.Context, opts Options, items []core.ScoredItem, result *RunResult) []core.ScoredItem {
	metric := StageMetric{Name: StageCuration, ItemsIn: len(items)}
	if !opts.Curate || o.curator == nil {
		metric.Skipped = true
		metric.ItemsOut = len(items)
		result.Metrics.Stages = append(result.Metrics.Stages, metric)
		return items
	}

	start := o.now()
	curated := o.curator.Run(ctx, items)
	metric.Duration = o.now().Sub(start)
	metric.ItemsOut = len(curated.Items)
	result.Metrics.Stages = append(result.Metrics.Stages, metric)
	result.Errors = append(result.Errors, curated.Errors...)
	result.Dropped = append(result.Dropped, curated.Dropped...)
	return curated.Items
}

func (o *Orchestrator) runPersonalization(ctx context.Context, opts Options, items []core.ScoredItem, result *RunResult) []core.ScoredItem {
	metric := StageMetric{Name: StagePersonalization, ItemsIn: len(items)}
	if !opts.Personalize || o.personal == nil || opts.UserID == "" {
		metric.Skipped = true
		metric.ItemsOut = len(items)
		result.Metrics.Stages = append(result.Metrics.Stages, metric)
		return items
	}

	start := o.now()
	personal, err := o.personal.Run(ctx, opts.UserID, items)
	metric.Duration = o.now().Sub(start)
	if err != nil {
		// Optional stage: the digest ships unpersonalized.
		metric.Failed = true
		metric.ItemsOut = len(items)
		result.Metrics.Stages = append(result.Metrics.Stages, metric)
		result.Errors = append(result.Errors, core.OrchestrationError{
			Stage:       StagePersonalization,
			Severity:    core.SeverityError,
			Message:     err.Error(),
			Timestamp:   o.now(),
			Recoverable: true,
		})
		o.log.Warn("Personalization failed, shipping unpersonalized digest", "user", opts.UserID, "error", err)
		return items
	}

	metric.ItemsOut = len(personal.Items)
	result.Metrics.Stages = append(result.Metrics.Stages, metric)
	result.Delivery = &personal.Delivery
	return personal.Items
}

// subject produces the digest subject line, falling back to a template on
// any generation failure.
func (o *Orchestrator) subject(ctx context.Context, opts Options, items []core.ScoredItem, result *RunResult) string {
	fallback := fmt.Sprintf("Your %s NYC digest", opts.Slot)
	metric := StageMetric{Name: StageNarrative, ItemsIn: len(items), ItemsOut: len(items)}

	if opts.SkipNarrative || o.gen == nil || len(items) == 0 {
		metric.Skipped = true
		result.Metrics.Stages = append(result.Metrics.Stages, metric)
		return fallback
	}

	start := o.now()
	subject, err := o.gen.Subject(ctx, items, opts.Slot)
	metric.Duration = o.now().Sub(start)
	if err != nil || subject == "" {
		metric.Failed = true
		result.Metrics.Stages = append(result.Metrics.Stages, metric)
		result.Errors = append(result.Errors, core.OrchestrationError{
			Stage:       StageNarrative,
			Severity:    core.SeverityWarning,
			Message:     fmt.Sprintf("subject generation failed, using template: %v", err),
			Timestamp:   o.now(),
			Recoverable: true,
		})
		return fallback
	}
	result.Metrics.Stages = append(result.Metrics.Stages, metric)
	return subject
}

func (o *Orchestrator) finish(result RunResult, started time.Time, opts Options, aborted bool) RunResult {
	result.Aborted = aborted
	result.Metrics.Duration = o.now().Sub(started)

	// A template-subject fallback still counts as produced narrative; only
	// never reaching the stage leaves it undone.
	narrativeDone := opts.SkipNarrative || o.gen == nil
	for _, m := range result.Metrics.Stages {
		if m.Name == StageNarrative {
			narrativeDone = true
		}
	}

	critical := false
	for _, e := range result.Errors {
		if e.Severity == core.SeverityCritical {
			critical = true
			break
		}
	}
	result.Success = !aborted && !critical && narrativeDone

	o.log.Info("Pipeline finished",
		"success", result.Success,
		"aborted", result.Aborted,
		"errors", len(result.Errors),
		"duration", result.Metrics.Duration)
	return result
}
