package ingest

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"citydigest/internal/core"
	"citydigest/internal/sources"
)

type memWriter struct {
	items map[string]core.ContentItem
}

func newMemWriter() *memWriter {
	return &memWriter{items: make(map[string]core.ContentItem)}
}

func (w *memWriter) InsertItem(ctx context.Context, sourceID string, item core.ContentItem) (bool, error) {
	if _, ok := w.items[item.ID]; ok {
		return false, nil
	}
	w.items[item.ID] = item
	return true, nil
}

const feedXML = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Citywide News</title>
<item>
<title>Ferry &lt;b&gt;schedule&lt;/b&gt; expands</title>
<link>https://example.com/ferry</link>
<description>More crossings start &lt;i&gt;Monday&lt;/i&gt;.</description>
<pubDate>Fri, 28 Aug 2026 09:30:00 -0400</pubDate>
<guid>tag:example.com,2026:ferry</guid>
</item>
<item>
<title>Untitled entry</title>
<link></link>
<description>No guid or link on this one.</description>
</item>
</channel>
</rss>`

func rssSource(url string) sources.Source {
	return sources.Source{
		ID:        "news-main",
		Name:      "Citywide News",
		Type:      core.TypeNews,
		Priority:  1,
		Frequency: sources.FrequencyHourly,
		Ingest:    sources.IngestSpec{Kind: sources.IngestRSS, URL: url},
	}
}

func TestRSSRefresher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(feedXML))
	}))
	defer server.Close()

	writer := newMemWriter()
	refresher := NewRSSRefresher(rssSource(server.URL), writer)

	result, err := refresher.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.Created != 2 || result.Skipped != 0 {
		t.Fatalf("created %d skipped %d, want 2/0", result.Created, result.Skipped)
	}

	item, ok := writer.items["tag:example.com,2026:ferry"]
	if !ok {
		t.Fatal("item missing under its guid")
	}
	if item.Title != "Ferry schedule expands" {
		t.Errorf("title = %q, want tags stripped", item.Title)
	}
	if item.Body != "More crossings start Monday." {
		t.Errorf("body = %q, want tags stripped", item.Body)
	}
	if item.Type != core.TypeNews || item.Source != "Citywide News" {
		t.Errorf("item attribution = %s/%s", item.Type, item.Source)
	}
	want := time.Date(2026, 8, 28, 13, 30, 0, 0, time.UTC)
	if !item.PublishedAt.Equal(want) {
		t.Errorf("published = %v, want %v", item.PublishedAt, want)
	}

	// Second run re-reads the same feed; everything is already stored.
	result, err = refresher.Refresh(context.Background())
	if err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	if result.Created != 0 || result.Skipped != 2 {
		t.Errorf("created %d skipped %d on rerun, want 0/2", result.Created, result.Skipped)
	}
}

func TestRSSRefresher_BadStatus(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	refresher := NewRSSRefresher(rssSource(server.URL), newMemWriter())
	if _, err := refresher.Refresh(context.Background()); err == nil {
		t.Fatal("expected an error for a non-200 response")
	}
}

func TestParseRSSDate(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"Fri, 28 Aug 2026 09:30:00 -0400", time.Date(2026, 8, 28, 13, 30, 0, 0, time.UTC)},
		{"2026-08-28T09:30:00Z", time.Date(2026, 8, 28, 9, 30, 0, 0, time.UTC)},
		{"not a date", time.Time{}},
		{"", time.Time{}},
	}
	for _, tt := range tests {
		if got := parseRSSDate(tt.raw); !got.Equal(tt.want) {
			t.Errorf("parseRSSDate(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

const listingHTML = `<html><body>
<div class="event">
  <h3>Outdoor movie night</h3>
  <p>Free screening at dusk on the great lawn.</p>
  <a href="/events/movie-night">Details</a>
</div>
<div class="event">
  <h3></h3>
</div>
</body></html>`

func TestHTMLRefresher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingHTML))
	}))
	defer server.Close()

	src := sources.Source{
		ID:        "events-parks",
		Name:      "NYC Parks",
		Type:      core.TypeEvent,
		Priority:  3,
		Frequency: sources.FrequencyWeekly,
		Ingest:    sources.IngestSpec{Kind: sources.IngestHTML, URL: server.URL, Selector: "div.event"},
	}
	writer := newMemWriter()
	refresher := NewHTMLRefresher(src, writer)

	result, err := refresher.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.Created != 1 {
		t.Fatalf("created %d, want 1", result.Created)
	}
	if len(result.Errors) != 1 {
		t.Errorf("errors = %v, want one for the titleless element", result.Errors)
	}

	item, ok := writer.items[server.URL+"/events/movie-night"]
	if !ok {
		t.Fatalf("item missing under resolved link, have %v", writer.items)
	}
	if item.Title != "Outdoor movie night" {
		t.Errorf("title = %q", item.Title)
	}
	if item.Body != "Free screening at dusk on the great lawn." {
		t.Errorf("body = %q", item.Body)
	}
	if item.Type != core.TypeEvent {
		t.Errorf("type = %s, want event", item.Type)
	}
	if item.PublishedAt.IsZero() {
		t.Error("scraped items should carry the scrape time")
	}
}

func TestRegisterAll(t *testing.T) {
	registry, err := sources.NewRegistry([]sources.Source{
		rssSource("https://example.com/feed"),
		{
			ID: "events-parks", Name: "NYC Parks", Type: core.TypeEvent,
			Priority: 3, Frequency: sources.FrequencyWeekly, Primary: true,
			Ingest: sources.IngestSpec{Kind: sources.IngestHTML, URL: "https://example.com/events", Selector: "div.event"},
		},
		{
			ID: "manual-only", Name: "Manual", Type: core.TypeDeal,
			Priority: 2, Frequency: sources.FrequencyDaily,
		},
	})
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}

	if err := RegisterAll(registry, newMemWriter()); err != nil {
		t.Fatalf("RegisterAll: %v", err)
	}
	if _, ok := registry.Refresher("news-main"); !ok {
		t.Error("rss source not registered")
	}
	if _, ok := registry.Refresher("events-parks"); !ok {
		t.Error("html source not registered")
	}
	if _, ok := registry.Refresher("manual-only"); ok {
		t.Error("source without ingest spec must not be registered")
	}
}
