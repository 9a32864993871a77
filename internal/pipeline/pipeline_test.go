package pipeline

import (
	"context"
	"errors"
	"testing"
	"time"

	"citydigest/internal/core"
	"citydigest/internal/curation"
	"citydigest/internal/health"
	"citydigest/internal/personalization"
	"citydigest/internal/selection"
	"citydigest/internal/sources"
)

var pipeNow = time.Date(2026, 8, 28, 12, 0, 0, 0, time.UTC)

type freshStore struct {
	latest time.Time
	count  int
}

func (f *freshStore) LatestTimestamp(ctx context.Context, sourceID string) (time.Time, error) {
	return f.latest, nil
}

func (f *freshStore) CountSince(ctx context.Context, sourceID string, since time.Time) (int, error) {
	return f.count, nil
}

type candidateStore struct {
	items map[core.ContentType][]core.ContentItem
	errs  map[core.ContentType]error
}

func (c *candidateStore) CandidatesByType(ctx context.Context, contentType core.ContentType, since time.Time, limit int) ([]core.ContentItem, error) {
	if err := c.errs[contentType]; err != nil {
		return nil, err
	}
	return c.items[contentType], nil
}

type fakeGen struct {
	subject string
	err     error
}

func (f *fakeGen) WhyItMatters(ctx context.Context, items []core.ScoredItem) ([]string, error) {
	lines := make([]string, len(items))
	for i := range lines {
		lines[i] = "Because it affects your block."
	}
	return lines, nil
}

func (f *fakeGen) Subject(ctx context.Context, items []core.ScoredItem, slot string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	return f.subject, nil
}

type fakeSaver struct {
	saved []core.Digest
	err   error
}

func (f *fakeSaver) SaveDigest(ctx context.Context, digest core.Digest) error {
	if f.err != nil {
		return f.err
	}
	f.saved = append(f.saved, digest)
	return nil
}

func testMonitor(t *testing.T, store health.FreshnessStore) *health.Monitor {
	t.Helper()
	registry, err := sources.NewRegistry([]sources.Source{{
		ID:                "news-main",
		Name:              "Citywide News",
		Type:              core.TypeNews,
		Priority:          1,
		Frequency:         sources.FrequencyDaily,
		RequiredForDigest: true,
		Primary:           true,
	}})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	breaker := health.NewCircuitBreaker(health.DefaultFailureThreshold, health.DefaultResetTimeout)
	return health.NewMonitor(registry, store, breaker).
		WithClock(func() time.Time { return pipeNow })
}

func testSelector(store selection.CandidateStore) *selection.Stage {
	cfg := selection.DefaultConfig()
	cfg.MinQualityScore = 0
	return selection.NewStage(store, cfg).WithClock(func() time.Time { return pipeNow })
}

func newsCandidates() map[core.ContentType][]core.ContentItem {
	return map[core.ContentType][]core.ContentItem{
		core.TypeNews: {{
			ID:          "n1",
			Type:        core.TypeNews,
			Title:       "Night market adds new vendors this month",
			Body:        "Two dozen stalls join the waterfront market starting this weekend.",
			Source:      "Gothamist",
			URL:         "https://example.com/n1",
			PublishedAt: pipeNow.Add(-2 * time.Hour),
		}},
	}
}

func TestRun_FullPipelineSuccess(t *testing.T) {
	monitor := testMonitor(t, &freshStore{latest: pipeNow.Add(-time.Hour), count: 3})
	selector := testSelector(&candidateStore{items: newsCandidates()})
	gen := &fakeGen{subject: "Night market grows, plus 1 more"}
	saver := &fakeSaver{}
	profiles := personalization.StaticProfiles{"u1": {UserID: "u1", PreferredSendHour: -1}}

	orch := NewOrchestrator(monitor, selector).
		WithCuration(curation.NewStage(gen, curation.DefaultConfig())).
		WithPersonalization(personalization.NewStage(profiles, personalization.DefaultConfig()).
			WithClock(func() time.Time { return pipeNow })).
		WithGenerator(gen).
		WithSaver(saver).
		WithClock(func() time.Time { return pipeNow })

	result := orch.Run(context.Background(), Options{
		Slot:        "morning",
		UserID:      "u1",
		Curate:      true,
		Personalize: true,
	})

	if !result.Success || result.Aborted {
		t.Fatalf("success = %v, aborted = %v, errors = %+v", result.Success, result.Aborted, result.Errors)
	}
	if result.Digest == nil {
		t.Fatal("expected a digest")
	}
	if result.Digest.Subject != "Night market grows, plus 1 more" {
		t.Errorf("subject = %q", result.Digest.Subject)
	}
	if len(result.Digest.Items) != 1 {
		t.Fatalf("digest has %d items, want 1", len(result.Digest.Items))
	}
	if result.Digest.Items[0].WhyItMatters == "" {
		t.Error("curation should have attached a narrative line")
	}
	if result.Delivery == nil || result.Delivery.Hour != 7 {
		t.Errorf("delivery = %+v, want standard 7am plan", result.Delivery)
	}
	if len(saver.saved) != 1 {
		t.Errorf("saved %d digests, want 1", len(saver.saved))
	}
	if got := len(result.Metrics.Stages); got != 5 {
		t.Errorf("recorded %d stage metrics, want 5", got)
	}
}

func TestRun_AbortsWhenSourcesNotReady(t *testing.T) {
	// Never-seen primary source: stale, required, no data to fall back on.
	monitor := testMonitor(t, &freshStore{})
	selector := testSelector(&candidateStore{items: newsCandidates()})

	orch := NewOrchestrator(monitor, selector).WithClock(func() time.Time { return pipeNow })
	result := orch.Run(context.Background(), Options{Slot: "morning", AbortOnCritical: true})

	if !result.Aborted || result.Success {
		t.Fatalf("aborted = %v, success = %v", result.Aborted, result.Success)
	}
	if result.Digest != nil {
		t.Error("aborted run must not produce a digest")
	}
	if len(result.Metrics.Stages) != 1 || result.Metrics.Stages[0].Name != StageHealth {
		t.Errorf("metrics = %+v, want only the health stage", result.Metrics.Stages)
	}
	var critical bool
	for _, e := range result.Errors {
		if e.Severity == core.SeverityCritical {
			critical = true
		}
	}
	if !critical {
		t.Error("expected a critical error record")
	}
}

func TestRun_NotReadyWithoutAbortContinues(t *testing.T) {
	monitor := testMonitor(t, &freshStore{})
	selector := testSelector(&candidateStore{items: newsCandidates()})

	orch := NewOrchestrator(monitor, selector).WithClock(func() time.Time { return pipeNow })
	result := orch.Run(context.Background(), Options{Slot: "morning"})

	if result.Aborted {
		t.Fatal("should not abort without AbortOnCritical")
	}
	if result.Digest == nil {
		t.Fatal("degraded run should still produce a digest")
	}
	if result.Success {
		t.Error("unrecovered critical error must fail the run")
	}
}

func TestRun_PersonalizationFailureIsSkippable(t *testing.T) {
	monitor := testMonitor(t, &freshStore{latest: pipeNow.Add(-time.Hour), count: 3})
	selector := testSelector(&candidateStore{items: newsCandidates()})

	orch := NewOrchestrator(monitor, selector).
		WithPersonalization(personalization.NewStage(personalization.StaticProfiles{}, personalization.DefaultConfig())).
		WithClock(func() time.Time { return pipeNow })

	result := orch.Run(context.Background(), Options{Slot: "morning", UserID: "ghost", Personalize: true})

	if !result.Success {
		t.Fatalf("optional stage failure must not fail the run: %+v", result.Errors)
	}
	if result.Delivery != nil {
		t.Error("failed personalization must not set a delivery plan")
	}
	var recorded bool
	for _, e := range result.Errors {
		if e.Stage == StagePersonalization && e.Severity == core.SeverityError && e.Recoverable {
			recorded = true
		}
	}
	if !recorded {
		t.Errorf("errors = %+v, want a recoverable personalization error", result.Errors)
	}
}

func TestRun_SubjectFallback(t *testing.T) {
	monitor := testMonitor(t, &freshStore{latest: pipeNow.Add(-time.Hour), count: 3})
	selector := testSelector(&candidateStore{items: newsCandidates()})
	gen := &fakeGen{err: errors.New("model unavailable")}

	orch := NewOrchestrator(monitor, selector).
		WithGenerator(gen).
		WithClock(func() time.Time { return pipeNow })

	result := orch.Run(context.Background(), Options{Slot: "evening"})

	if !result.Success {
		t.Fatalf("template fallback must not fail the run: %+v", result.Errors)
	}
	if result.Digest.Subject != "Your evening NYC digest" {
		t.Errorf("subject = %q, want the template fallback", result.Digest.Subject)
	}
	var warned bool
	for _, e := range result.Errors {
		if e.Stage == StageNarrative && e.Severity == core.SeverityWarning {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a warning for the subject fallback")
	}
}

func TestRun_SelectionFailureAborts(t *testing.T) {
	monitor := testMonitor(t, &freshStore{latest: pipeNow.Add(-time.Hour), count: 3})
	broken := &candidateStore{errs: map[core.ContentType]error{
		core.TypeNews:  errors.New("db locked"),
		core.TypeAlert: errors.New("db locked"),
		core.TypeEvent: errors.New("db locked"),
		core.TypeDeal:  errors.New("db locked"),
	}}

	orch := NewOrchestrator(monitor, testSelector(broken)).WithClock(func() time.Time { return pipeNow })
	result := orch.Run(context.Background(), Options{Slot: "morning", AbortOnCritical: true})

	if !result.Aborted || result.Success {
		t.Fatalf("aborted = %v, success = %v", result.Aborted, result.Success)
	}
	if result.Digest != nil {
		t.Error("aborted run must not produce a digest")
	}
}

func TestRun_SaverFailureIsWarning(t *testing.T) {
	monitor := testMonitor(t, &freshStore{latest: pipeNow.Add(-time.Hour), count: 3})
	selector := testSelector(&candidateStore{items: newsCandidates()})

	orch := NewOrchestrator(monitor, selector).
		WithSaver(&fakeSaver{err: errors.New("disk full")}).
		WithClock(func() time.Time { return pipeNow })

	result := orch.Run(context.Background(), Options{Slot: "morning"})

	if !result.Success {
		t.Fatalf("persistence failure must not fail the run: %+v", result.Errors)
	}
	var warned bool
	for _, e := range result.Errors {
		if e.Severity == core.SeverityWarning {
			warned = true
		}
	}
	if !warned {
		t.Error("expected a persistence warning")
	}
}
