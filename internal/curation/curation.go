// Package curation assembles the final digest pool: it deduplicates across
// content types, balances coverage across categories, caps the digest, and
// attaches generated "why it matters" lines to the top items.
package curation

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"citydigest/internal/core"
	"citydigest/internal/dedup"
	"citydigest/internal/logger"
	"citydigest/internal/narrative"
)

// Config controls the curation stage.
type Config struct {
	MaxPerCategory int
	MaxTotal       int
	FuzzyThreshold float64
	NarrativeTopN  int
}

// DefaultConfig returns the standard curation configuration.
func DefaultConfig() Config {
	return Config{
		MaxPerCategory: 3,
		MaxTotal:       12,
		FuzzyThreshold: dedup.DefaultFuzzyThreshold,
		NarrativeTopN:  narrative.MaxNarrativeItems,
	}
}

// Result is the curated digest pool plus bookkeeping.
type Result struct {
	Items   []core.ScoredItem         `json:"items"`
	Dropped []core.DroppedItem        `json:"dropped"`
	Errors  []core.OrchestrationError `json:"errors,omitempty"`
}

// Stage runs digest curation. The narrative generator is optional; without
// one the stage produces the same item set with empty narrative lines.
type Stage struct {
	gen narrative.Generator
	cfg Config
	log *slog.Logger
	now func() time.Time
}

// NewStage creates a curation stage. gen may be nil to skip narratives.
func NewStage(gen narrative.Generator, cfg Config) *Stage {
	return &Stage{
		gen: gen,
		cfg: cfg,
		log: logger.Get(),
		now: time.Now,
	}
}

// Run curates the selected pool into the final digest ordering. Narrative
// failures are recorded as warnings, never as stage failures.
func (s *Stage) Run(ctx context.Context, items []core.ScoredItem) Result {
	var result Result

	kept, dropped := dedup.Exact(items)
	result.Dropped = append(result.Dropped, dropped...)
	kept, dropped = dedup.Fuzzy(kept, s.cfg.FuzzyThreshold)
	result.Dropped = append(result.Dropped, dropped...)

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Scores.Overall > kept[j].Scores.Overall
	})

	capped := make([]core.ScoredItem, 0, len(kept))
	perCategory := make(map[core.ContentCategory]int)
	for _, it := range kept {
		if s.cfg.MaxPerCategory > 0 && perCategory[it.Category] >= s.cfg.MaxPerCategory {
			result.Dropped = append(result.Dropped, core.DroppedItem{
				Item:   it.Item,
				Reason: "category limit reached",
			})
			continue
		}
		perCategory[it.Category]++
		capped = append(capped, it)
	}

	result.Items = balance(capped, s.cfg.MaxTotal)
	if over := overflow(capped, result.Items); len(over) > 0 {
		result.Dropped = append(result.Dropped, over...)
	}

	s.attachNarratives(ctx, &result)

	s.log.Info("Curation finished",
		"input", len(items),
		"curated", len(result.Items),
		"dropped", len(result.Dropped))
	return result
}

// balance picks the digest set: first the best item of each category in
// reader-priority order, then the highest scorers regardless of category,
// up to maxTotal. The returned order is the digest order.
func balance(items []core.ScoredItem, maxTotal int) []core.ScoredItem {
	if maxTotal <= 0 || len(items) == 0 {
		return nil
	}

	byCategory := make(map[core.ContentCategory][]core.ScoredItem)
	for _, it := range items {
		byCategory[it.Category] = append(byCategory[it.Category], it)
	}

	out := make([]core.ScoredItem, 0, maxTotal)
	taken := make(map[string]struct{})
	for _, category := range core.CategoryPriority {
		if len(out) >= maxTotal {
			break
		}
		list := byCategory[category]
		if len(list) == 0 {
			continue
		}
		out = append(out, list[0])
		taken[list[0].Item.ID] = struct{}{}
	}

	for _, it := range items {
		if len(out) >= maxTotal {
			break
		}
		if _, ok := taken[it.Item.ID]; ok {
			continue
		}
		out = append(out, it)
		taken[it.Item.ID] = struct{}{}
	}
	return out
}

func overflow(capped, chosen []core.ScoredItem) []core.DroppedItem {
	if len(chosen) >= len(capped) {
		return nil
	}
	taken := make(map[string]struct{}, len(chosen))
	for _, it := range chosen {
		taken[it.Item.ID] = struct{}{}
	}
	var dropped []core.DroppedItem
	for _, it := range capped {
		if _, ok := taken[it.Item.ID]; ok {
			continue
		}
		dropped = append(dropped, core.DroppedItem{Item: it.Item, Reason: "over digest capacity"})
	}
	return dropped
}

// attachNarratives fills WhyItMatters on the top items. A generation
// failure leaves the lines empty and records a warning.
func (s *Stage) attachNarratives(ctx context.Context, result *Result) {
	if s.gen == nil || len(result.Items) == 0 {
		return
	}

	// A non-positive top-N disables narratives outright; the knob exists
	// to bound generation cost, never to widen it.
	topN := s.cfg.NarrativeTopN
	if topN <= 0 {
		return
	}
	if topN > len(result.Items) {
		topN = len(result.Items)
	}

	lines, err := s.gen.WhyItMatters(ctx, result.Items[:topN])
	if err != nil {
		s.log.Warn("Narrative generation failed, digest ships without it", "error", err)
		result.Errors = append(result.Errors, core.OrchestrationError{
			Stage:       "curation",
			Severity:    core.SeverityWarning,
			Message:     fmt.Sprintf("narrative generation failed: %v", err),
			Timestamp:   s.now(),
			Recoverable: true,
		})
		return
	}
	for i := 0; i < topN && i < len(lines); i++ {
		result.Items[i].WhyItMatters = lines[i]
	}
}
