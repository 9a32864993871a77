// Package selection implements the content selection stage: it pulls
// candidates per content type, scores and categorizes them, filters by
// quality, deduplicates, and caps each type, producing the pool later
// stages consume.
package selection

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"citydigest/internal/clustering"
	"citydigest/internal/core"
	"citydigest/internal/dedup"
	"citydigest/internal/logger"
	"citydigest/internal/scoring"
)

// CandidateStore is the slice of the persistence collaborator selection
// reads candidates from.
type CandidateStore interface {
	CandidatesByType(ctx context.Context, contentType core.ContentType, since time.Time, limit int) ([]core.ContentItem, error)
}

// Config controls the selection stage.
type Config struct {
	MaxNews          int
	MaxAlerts        int
	MaxDeals         int
	MaxEvents        int
	MinQualityScore  int
	LookbackHours    int
	UseEmbeddings    bool
	ClusterThreshold float64
}

// DefaultConfig returns the standard selection configuration.
func DefaultConfig() Config {
	return Config{
		MaxNews:          5,
		MaxAlerts:        3,
		MaxDeals:         3,
		MaxEvents:        3,
		MinQualityScore:  40,
		LookbackHours:    48,
		UseEmbeddings:    false,
		ClusterThreshold: clustering.DefaultThreshold,
	}
}

func (c Config) capFor(contentType core.ContentType) int {
	switch contentType {
	case core.TypeNews:
		return c.MaxNews
	case core.TypeAlert:
		return c.MaxAlerts
	case core.TypeDeal:
		return c.MaxDeals
	case core.TypeEvent:
		return c.MaxEvents
	default:
		return 0
	}
}

// SourceCount is one entry of the top-sources statistic.
type SourceCount struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// Stats summarizes a selection run.
type Stats struct {
	TotalEvaluated    int                          `json:"total_evaluated"`
	TotalSelected     int                          `json:"total_selected"`
	AverageQuality    float64                      `json:"average_quality"`
	TopSources        []SourceCount                `json:"top_sources"`
	CategoryBreakdown map[core.ContentCategory]int `json:"category_breakdown"`
}

// Result is the stage output: the selected pool plus bookkeeping.
type Result struct {
	Items      []core.ScoredItem                          `json:"items"`
	ByCategory map[core.ContentCategory][]core.ScoredItem `json:"by_category"`
	Dropped    []core.DroppedItem                         `json:"dropped"`
	Stats      Stats                                      `json:"stats"`
	Errors     []core.OrchestrationError                  `json:"errors,omitempty"`
}

// Embedder produces vector embeddings for item text. Satisfied by the
// narrative client.
type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float64, error)
}

// Stage runs content selection.
type Stage struct {
	store CandidateStore
	embed Embedder
	cfg   Config
	log   *slog.Logger
	now   func() time.Time
}

// NewStage creates a selection stage over the candidate store.
func NewStage(store CandidateStore, cfg Config) *Stage {
	return &Stage{
		store: store,
		cfg:   cfg,
		log:   logger.Get(),
		now:   time.Now,
	}
}

// WithEmbedder supplies the embedder used when semantic clustering is
// enabled. Without one, items keep whatever embeddings they arrived with.
func (s *Stage) WithEmbedder(embed Embedder) *Stage {
	s.embed = embed
	return s
}

// WithClock replaces the stage's clock. Intended for tests.
func (s *Stage) WithClock(now func() time.Time) *Stage {
	s.now = now
	return s
}

var contentTypes = []core.ContentType{core.TypeNews, core.TypeAlert, core.TypeEvent, core.TypeDeal}

type typeResult struct {
	contentType core.ContentType
	selected    []core.ScoredItem
	dropped     []core.DroppedItem
	evaluated   int
	err         error
}

// Run executes selection across all content types. Types are fetched
// concurrently; a failure fetching one type contributes an empty list and
// an error record instead of aborting the stage.
func (s *Stage) Run(ctx context.Context) Result {
	now := s.now()
	results := make([]typeResult, len(contentTypes))
	var wg sync.WaitGroup

	for i, contentType := range contentTypes {
		wg.Add(1)
		go func(i int, contentType core.ContentType) {
			defer wg.Done()
			results[i] = s.selectForType(ctx, contentType, now)
		}(i, contentType)
	}
	wg.Wait()

	result := Result{
		ByCategory: make(map[core.ContentCategory][]core.ScoredItem),
		Stats:      Stats{CategoryBreakdown: make(map[core.ContentCategory]int)},
	}

	for _, tr := range results {
		if tr.err != nil {
			result.Errors = append(result.Errors, core.OrchestrationError{
				Stage:       "content_selection",
				Severity:    core.SeverityError,
				Message:     "failed to select " + string(tr.contentType) + ": " + tr.err.Error(),
				Timestamp:   now,
				Recoverable: true,
			})
			s.log.Warn("Content type selection failed", "type", tr.contentType, "error", tr.err)
			continue
		}
		result.Items = append(result.Items, tr.selected...)
		result.Dropped = append(result.Dropped, tr.dropped...)
		result.Stats.TotalEvaluated += tr.evaluated
	}

	// Highest quality first across all types, first-seen on ties.
	sort.SliceStable(result.Items, func(i, j int) bool {
		return result.Items[i].Scores.Overall > result.Items[j].Scores.Overall
	})

	var qualitySum int
	sourceCounts := make(map[string]int)
	for _, it := range result.Items {
		result.ByCategory[it.Category] = append(result.ByCategory[it.Category], it)
		result.Stats.CategoryBreakdown[it.Category]++
		qualitySum += it.Scores.Overall
		if it.Item.Source != "" {
			sourceCounts[it.Item.Source]++
		}
	}
	result.Stats.TotalSelected = len(result.Items)
	if len(result.Items) > 0 {
		result.Stats.AverageQuality = float64(qualitySum) / float64(len(result.Items))
	}
	result.Stats.TopSources = topSources(sourceCounts, 5)

	s.log.Info("Content selection finished",
		"evaluated", result.Stats.TotalEvaluated,
		"selected", result.Stats.TotalSelected,
		"average_quality", result.Stats.AverageQuality)
	return result
}

// selectForType fetches, scores, filters, dedups, and caps one content
// type. With embeddings enabled it picks one representative per top
// cluster and backfills from unclustered high scorers.
func (s *Stage) selectForType(ctx context.Context, contentType core.ContentType, now time.Time) typeResult {
	tr := typeResult{contentType: contentType}
	limit := s.cfg.capFor(contentType)
	if limit <= 0 {
		return tr
	}

	since := now.Add(-time.Duration(s.cfg.LookbackHours) * time.Hour)
	candidates, err := s.store.CandidatesByType(ctx, contentType, since, 3*limit)
	if err != nil {
		tr.err = err
		return tr
	}
	tr.evaluated = len(candidates)

	scored := make([]core.ScoredItem, 0, len(candidates))
	for _, item := range candidates {
		evaluated := scoring.Evaluate(item, now)
		if evaluated.Scores.Overall < s.cfg.MinQualityScore {
			continue
		}
		scored = append(scored, evaluated)
	}

	kept, dropped := dedup.Exact(scored)
	tr.dropped = dropped

	sort.SliceStable(kept, func(i, j int) bool {
		return kept[i].Scores.Overall > kept[j].Scores.Overall
	})

	if s.cfg.UseEmbeddings {
		s.fillEmbeddings(ctx, kept)
		tr.selected = selectWithClusters(kept, limit, s.cfg.ClusterThreshold)
	} else if len(kept) > limit {
		tr.selected = kept[:limit]
	} else {
		tr.selected = kept
	}
	return tr
}

// fillEmbeddings computes embeddings for items that arrived without one.
// An embedding failure leaves the item unembedded; clustering treats it as
// its own topic.
func (s *Stage) fillEmbeddings(ctx context.Context, items []core.ScoredItem) {
	if s.embed == nil {
		return
	}
	for i := range items {
		if len(items[i].Item.Embedding) > 0 {
			continue
		}
		vec, err := s.embed.GenerateEmbedding(ctx, items[i].Item.Title+" "+items[i].Item.Body)
		if err != nil {
			s.log.Warn("Embedding generation failed", "item", items[i].Item.ID, "error", err)
			continue
		}
		items[i].Item.Embedding = vec
	}
}

// selectWithClusters takes the highest-scored representative of each topic
// cluster, best clusters first, so near-duplicate coverage that keyword
// dedup missed cannot fill multiple slots. Items without embeddings
// backfill remaining capacity on raw score.
func selectWithClusters(kept []core.ScoredItem, limit int, threshold float64) []core.ScoredItem {
	clusters := clustering.Cluster(kept, threshold)
	reps := clustering.Representatives(clusters, kept)
	sort.SliceStable(reps, func(i, j int) bool {
		return reps[i].Scores.Overall > reps[j].Scores.Overall
	})

	selected := make([]core.ScoredItem, 0, limit)
	taken := make(map[string]struct{})
	for _, rep := range reps {
		if len(selected) >= limit {
			break
		}
		selected = append(selected, rep)
		taken[rep.Item.ID] = struct{}{}
	}

	if len(selected) < limit {
		clustered := make(map[string]struct{})
		for _, c := range clusters {
			for _, id := range c.ItemIDs {
				clustered[id] = struct{}{}
			}
		}
		for _, it := range kept {
			if len(selected) >= limit {
				break
			}
			if _, inCluster := clustered[it.Item.ID]; inCluster {
				continue
			}
			if _, dup := taken[it.Item.ID]; dup {
				continue
			}
			selected = append(selected, it)
			taken[it.Item.ID] = struct{}{}
		}
	}
	return selected
}

func topSources(counts map[string]int, n int) []SourceCount {
	out := make([]SourceCount, 0, len(counts))
	for source, count := range counts {
		out = append(out, SourceCount{Source: source, Count: count})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count != out[j].Count {
			return out[i].Count > out[j].Count
		}
		return out[i].Source < out[j].Source
	})
	if len(out) > n {
		out = out[:n]
	}
	return out
}
