package curation

import (
	"context"
	"errors"
	"testing"

	"citydigest/internal/core"
)

type fakeGen struct {
	lines   []string
	err     error
	subject string
	batch   int
}

func (f *fakeGen) WhyItMatters(ctx context.Context, items []core.ScoredItem) ([]string, error) {
	f.batch = len(items)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]string, len(items))
	copy(out, f.lines)
	return out, nil
}

func (f *fakeGen) Subject(ctx context.Context, items []core.ScoredItem, slot string) (string, error) {
	return f.subject, nil
}

func scored(id, title string, contentType core.ContentType, category core.ContentCategory, overall int) core.ScoredItem {
	return core.ScoredItem{
		Item: core.ContentItem{
			ID:    id,
			Type:  contentType,
			Title: title,
		},
		Category: category,
		Scores:   core.ContentScores{Overall: overall},
	}
}

func TestRun_CrossTypeFuzzyDedup(t *testing.T) {
	items := []core.ScoredItem{
		scored("alert", "A train delayed", core.TypeAlert, core.CategoryEssential, 90),
		scored("news", "A Train Delayed Again", core.TypeNews, core.CategoryEssential, 70),
	}

	result := NewStage(nil, DefaultConfig()).Run(context.Background(), items)

	if len(result.Items) != 1 {
		t.Fatalf("curated %d items, want 1", len(result.Items))
	}
	if result.Items[0].Item.ID != "alert" {
		t.Errorf("kept %s, want the higher-scored alert", result.Items[0].Item.ID)
	}
	if len(result.Dropped) != 1 || result.Dropped[0].Item.ID != "news" {
		t.Fatalf("dropped = %+v, want the news duplicate", result.Dropped)
	}
}

func TestRun_PerCategoryCap(t *testing.T) {
	items := []core.ScoredItem{
		scored("c1", "Gallery opening draws a crowd", core.TypeEvent, core.CategoryCulture, 90),
		scored("c2", "Jazz quartet books residency uptown", core.TypeEvent, core.CategoryCulture, 85),
		scored("c3", "Mural project wraps on the viaduct", core.TypeNews, core.CategoryCulture, 80),
		scored("c4", "Puppet theater announces winter season", core.TypeEvent, core.CategoryCulture, 75),
	}

	result := NewStage(nil, DefaultConfig()).Run(context.Background(), items)

	if len(result.Items) != 3 {
		t.Fatalf("curated %d items, want 3", len(result.Items))
	}
	if len(result.Dropped) != 1 || result.Dropped[0].Item.ID != "c4" {
		t.Fatalf("dropped = %+v, want the lowest-scored culture item", result.Dropped)
	}
	if result.Dropped[0].Reason != "category limit reached" {
		t.Errorf("drop reason = %q", result.Dropped[0].Reason)
	}
}

func TestRun_BalancedCategoryOrder(t *testing.T) {
	items := []core.ScoredItem{
		scored("l", "Ten coffee counters worth the detour", core.TypeNews, core.CategoryLifestyle, 95),
		scored("m", "Half price admission all weekend long", core.TypeDeal, core.CategoryMoney, 80),
		scored("b", "Gas leak shuts several blocks downtown", core.TypeAlert, core.CategoryBreaking, 60),
	}

	result := NewStage(nil, DefaultConfig()).Run(context.Background(), items)

	if len(result.Items) != 3 {
		t.Fatalf("curated %d items, want 3", len(result.Items))
	}
	// Category priority beats raw score for the leading slots.
	wantOrder := []string{"b", "m", "l"}
	for i, want := range wantOrder {
		if result.Items[i].Item.ID != want {
			t.Errorf("Items[%d] = %s, want %s", i, result.Items[i].Item.ID, want)
		}
	}
}

func TestRun_MaxTotal(t *testing.T) {
	cfg := DefaultConfig()
	cfg.MaxTotal = 2
	items := []core.ScoredItem{
		scored("b", "Gas leak shuts several blocks downtown", core.TypeAlert, core.CategoryBreaking, 60),
		scored("m", "Half price admission all weekend long", core.TypeDeal, core.CategoryMoney, 80),
		scored("l", "Ten coffee counters worth the detour", core.TypeNews, core.CategoryLifestyle, 95),
	}

	result := NewStage(nil, cfg).Run(context.Background(), items)

	if len(result.Items) != 2 {
		t.Fatalf("curated %d items, want 2", len(result.Items))
	}
	if result.Items[0].Item.ID != "b" || result.Items[1].Item.ID != "m" {
		t.Errorf("kept %s and %s, want b then m", result.Items[0].Item.ID, result.Items[1].Item.ID)
	}
	if len(result.Dropped) != 1 || result.Dropped[0].Reason != "over digest capacity" {
		t.Fatalf("dropped = %+v, want the lifestyle overflow", result.Dropped)
	}
}

func TestRun_NarrativeTopNOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NarrativeTopN = 2
	gen := &fakeGen{lines: []string{"Line one", "Line two"}}
	items := []core.ScoredItem{
		scored("b", "Gas leak shuts several blocks downtown", core.TypeAlert, core.CategoryBreaking, 90),
		scored("m", "Half price admission all weekend long", core.TypeDeal, core.CategoryMoney, 80),
		scored("l", "Ten coffee counters worth the detour", core.TypeNews, core.CategoryLifestyle, 70),
	}

	result := NewStage(gen, cfg).Run(context.Background(), items)

	if gen.batch != 2 {
		t.Errorf("generator saw %d items, want 2", gen.batch)
	}
	if result.Items[0].WhyItMatters != "Line one" || result.Items[1].WhyItMatters != "Line two" {
		t.Errorf("top items missing narratives: %q, %q", result.Items[0].WhyItMatters, result.Items[1].WhyItMatters)
	}
	if result.Items[2].WhyItMatters != "" {
		t.Errorf("item past top N should have no narrative, got %q", result.Items[2].WhyItMatters)
	}
}

func TestRun_NarrativeTopNZeroNarratesNothing(t *testing.T) {
	cfg := DefaultConfig()
	cfg.NarrativeTopN = 0
	gen := &fakeGen{lines: []string{"Line one"}}
	items := []core.ScoredItem{
		scored("b", "Gas leak shuts several blocks downtown", core.TypeAlert, core.CategoryBreaking, 90),
	}

	result := NewStage(gen, cfg).Run(context.Background(), items)

	if gen.batch != 0 {
		t.Errorf("generator saw %d items with top N disabled, want 0", gen.batch)
	}
	if result.Items[0].WhyItMatters != "" {
		t.Errorf("no narrative expected, got %q", result.Items[0].WhyItMatters)
	}
}

func TestRun_NarrativeFailureIsNonFatal(t *testing.T) {
	gen := &fakeGen{err: errors.New("model unavailable")}
	items := []core.ScoredItem{
		scored("b", "Gas leak shuts several blocks downtown", core.TypeAlert, core.CategoryBreaking, 90),
	}

	result := NewStage(gen, DefaultConfig()).Run(context.Background(), items)

	if len(result.Items) != 1 {
		t.Fatalf("curated %d items, want 1", len(result.Items))
	}
	if result.Items[0].WhyItMatters != "" {
		t.Errorf("WhyItMatters = %q, want empty on failure", result.Items[0].WhyItMatters)
	}
	if len(result.Errors) != 1 || result.Errors[0].Severity != core.SeverityWarning {
		t.Fatalf("errors = %+v, want one warning", result.Errors)
	}
}

func TestRun_NilGenerator(t *testing.T) {
	items := []core.ScoredItem{
		scored("b", "Gas leak shuts several blocks downtown", core.TypeAlert, core.CategoryBreaking, 90),
	}

	result := NewStage(nil, DefaultConfig()).Run(context.Background(), items)

	if len(result.Items) != 1 || len(result.Errors) != 0 {
		t.Fatalf("unexpected result: %+v", result)
	}
}
