package sources

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"citydigest/internal/core"
)

func validSources() []Source {
	return []Source{
		{ID: "news-main", Name: "Main News", Type: core.TypeNews, Priority: 1, Frequency: FrequencyHourly, Primary: true, RequiredForDigest: true},
		{ID: "alerts-transit", Name: "Transit Alerts", Type: core.TypeAlert, Priority: 1, Frequency: FrequencyRealtime, RequiredForDigest: true},
		{ID: "events-parks", Name: "Park Events", Type: core.TypeEvent, Priority: 3, Frequency: FrequencyWeekly},
		{ID: "deals-dining", Name: "Dining Deals", Type: core.TypeDeal, Priority: 2, Frequency: FrequencyDaily},
	}
}

func TestFrequencyThresholds(t *testing.T) {
	tests := []struct {
		freq Frequency
		want float64
	}{
		{FrequencyRealtime, 1},
		{FrequencyHourly, 2},
		{FrequencyDaily, 26},
		{FrequencyWeekly, 170},
		{Frequency("unknown"), 26},
	}
	for _, tt := range tests {
		if got := tt.freq.StalenessThresholdHours(); got != tt.want {
			t.Errorf("%s threshold = %v, want %v", tt.freq, got, tt.want)
		}
	}
}

func TestNewRegistry_Validation(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func([]Source) []Source
		wantErr bool
	}{
		{"valid", func(s []Source) []Source { return s }, false},
		{"duplicate id", func(s []Source) []Source {
			s[1].ID = s[0].ID
			return s
		}, true},
		{"priority out of range", func(s []Source) []Source {
			s[0].Priority = 0
			return s
		}, true},
		{"unknown frequency", func(s []Source) []Source {
			s[0].Frequency = "sometimes"
			return s
		}, true},
		{"no primary", func(s []Source) []Source {
			s[0].Primary = false
			return s
		}, true},
		{"two primaries", func(s []Source) []Source {
			s[1].Primary = true
			return s
		}, true},
		{"missing id", func(s []Source) []Source {
			s[2].ID = ""
			return s
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRegistry(tt.mutate(validSources()))
			if (err != nil) != tt.wantErr {
				t.Errorf("NewRegistry error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestLoadRegistry(t *testing.T) {
	yaml := `
sources:
  - id: news-main
    name: Main News
    type: news
    priority: 1
    frequency: hourly
    primary: true
    required_for_digest: true
    min_items_expected: 5
    ingest:
      kind: rss
      url: https://example.com/feed.xml
  - id: events-parks
    name: Park Events
    type: event
    priority: 3
    frequency: weekly
`
	path := filepath.Join(t.TempDir(), "sources.yaml")
	if err := os.WriteFile(path, []byte(yaml), 0644); err != nil {
		t.Fatal(err)
	}

	reg, err := LoadRegistry(path)
	if err != nil {
		t.Fatalf("LoadRegistry failed: %v", err)
	}

	if len(reg.Sources()) != 2 {
		t.Fatalf("got %d sources, want 2", len(reg.Sources()))
	}

	src, ok := reg.Get("news-main")
	if !ok {
		t.Fatal("news-main not found")
	}
	if src.Type != core.TypeNews || src.MinItemsExpected != 5 || src.Ingest.Kind != "rss" {
		t.Errorf("unexpected source: %+v", src)
	}

	primary, ok := reg.Primary()
	if !ok || primary.ID != "news-main" {
		t.Errorf("primary = %+v, want news-main", primary)
	}
}

func TestLoadRegistry_MissingFile(t *testing.T) {
	if _, err := LoadRegistry(filepath.Join(t.TempDir(), "absent.yaml")); err == nil {
		t.Error("expected error for missing registry file")
	}
}

func TestByPriority(t *testing.T) {
	reg, err := NewRegistry(validSources())
	if err != nil {
		t.Fatal(err)
	}

	ordered := reg.ByPriority()
	for i := 1; i < len(ordered); i++ {
		if ordered[i-1].Priority > ordered[i].Priority {
			t.Fatalf("not sorted by priority: %+v", ordered)
		}
	}
	// Stable within the same priority band.
	if ordered[0].ID != "news-main" || ordered[1].ID != "alerts-transit" {
		t.Errorf("sort not stable: %s, %s", ordered[0].ID, ordered[1].ID)
	}
}

func TestRegisterAndRefresher(t *testing.T) {
	reg, err := NewRegistry(validSources())
	if err != nil {
		t.Fatal(err)
	}

	called := false
	fn := RefresherFunc(func(ctx context.Context) (RefreshResult, error) {
		called = true
		return RefreshResult{Created: 3}, nil
	})

	if err := reg.Register("news-main", fn); err != nil {
		t.Fatalf("Register failed: %v", err)
	}
	if err := reg.Register("no-such-source", fn); err == nil {
		t.Error("expected error registering refresher for unknown source")
	}

	ref, ok := reg.Refresher("news-main")
	if !ok {
		t.Fatal("refresher not found")
	}
	result, err := ref.Refresh(context.Background())
	if err != nil || !called || result.Created != 3 {
		t.Errorf("refresh result = %+v, err = %v, called = %v", result, err, called)
	}
}
