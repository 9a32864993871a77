package ingest

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"citydigest/internal/core"
	"citydigest/internal/sources"
)

// RSS is the subset of the RSS 2.0 structure we read.
type RSS struct {
	XMLName xml.Name `xml:"rss"`
	Channel Channel  `xml:"channel"`
}

// Channel is an RSS channel.
type Channel struct {
	Title string    `xml:"title"`
	Items []RSSItem `xml:"item"`
}

// RSSItem is a single RSS entry.
type RSSItem struct {
	Title       string `xml:"title"`
	Link        string `xml:"link"`
	Description string `xml:"description"`
	PubDate     string `xml:"pubDate"`
	GUID        string `xml:"guid"`
}

// rssDateFormats covers the timestamp variants seen across city feeds.
var rssDateFormats = []string{
	time.RFC1123Z,
	time.RFC1123,
	time.RFC822Z,
	time.RFC822,
	time.RFC3339,
	"2006-01-02T15:04:05Z",
	"Mon, 2 Jan 2006 15:04:05 -0700",
}

func parseRSSDate(raw string) time.Time {
	raw = strings.TrimSpace(raw)
	for _, format := range rssDateFormats {
		if t, err := time.Parse(format, raw); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}

// RSSRefresher fetches an RSS feed and writes its entries to the store.
// It implements sources.Refresher.
type RSSRefresher struct {
	source    sources.Source
	store     ItemWriter
	client    *http.Client
	sanitizer *bluemonday.Policy
}

// NewRSSRefresher creates a refresher for one RSS-backed source.
func NewRSSRefresher(source sources.Source, store ItemWriter) *RSSRefresher {
	return &RSSRefresher{
		source:    source,
		store:     store,
		client:    &http.Client{Timeout: 30 * time.Second},
		sanitizer: bluemonday.StrictPolicy(),
	}
}

// Refresh fetches the feed and inserts new items. Items the store already
// has are counted as skipped, not errors.
func (r *RSSRefresher) Refresh(ctx context.Context) (sources.RefreshResult, error) {
	var result sources.RefreshResult

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.source.Ingest.URL, nil)
	if err != nil {
		return result, fmt.Errorf("failed to build feed request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("failed to fetch feed %s: %w", r.source.Ingest.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("feed %s returned status %d", r.source.Ingest.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBytes))
	if err != nil {
		return result, fmt.Errorf("failed to read feed body: %w", err)
	}

	var feed RSS
	if err := xml.Unmarshal(body, &feed); err != nil {
		return result, fmt.Errorf("failed to parse feed %s: %w", r.source.Ingest.URL, err)
	}

	for _, entry := range feed.Channel.Items {
		item, err := r.toItem(entry)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		created, err := r.store.InsertItem(ctx, r.source.ID, item)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			continue
		}
		if created {
			result.Created++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

func (r *RSSRefresher) toItem(entry RSSItem) (core.ContentItem, error) {
	title := strings.TrimSpace(r.sanitizer.Sanitize(entry.Title))
	if title == "" {
		return core.ContentItem{}, fmt.Errorf("feed entry with empty title in %s", r.source.ID)
	}

	id := strings.TrimSpace(entry.GUID)
	if id == "" {
		id = strings.TrimSpace(entry.Link)
	}
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(r.source.ID+title)).String()
	}

	return core.ContentItem{
		ID:          id,
		Type:        r.source.Type,
		Title:       title,
		Body:        strings.TrimSpace(r.sanitizer.Sanitize(entry.Description)),
		Source:      r.source.Name,
		URL:         strings.TrimSpace(entry.Link),
		PublishedAt: parseRSSDate(entry.PubDate),
	}, nil
}
