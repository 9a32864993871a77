package ingest

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"citydigest/internal/core"
	"citydigest/internal/sources"
)

// HTMLRefresher scrapes a listing page with a CSS selector and writes one
// item per matched element. It implements sources.Refresher.
type HTMLRefresher struct {
	source    sources.Source
	store     ItemWriter
	client    *http.Client
	sanitizer *bluemonday.Policy
	now       func() time.Time
}

// NewHTMLRefresher creates a scraper for one HTML-backed source.
func NewHTMLRefresher(source sources.Source, store ItemWriter) *HTMLRefresher {
	return &HTMLRefresher{
		source:    source,
		store:     store,
		client:    &http.Client{Timeout: 30 * time.Second},
		sanitizer: bluemonday.StrictPolicy(),
		now:       time.Now,
	}
}

// Refresh fetches the page and inserts one item per selector match.
// Scraped pages rarely carry timestamps, so items get the scrape time.
func (r *HTMLRefresher) Refresh(ctx context.Context) (sources.RefreshResult, error) {
	var result sources.RefreshResult

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.source.Ingest.URL, nil)
	if err != nil {
		return result, fmt.Errorf("failed to build page request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := r.client.Do(req)
	if err != nil {
		return result, fmt.Errorf("failed to fetch page %s: %w", r.source.Ingest.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return result, fmt.Errorf("page %s returned status %d", r.source.Ingest.URL, resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return result, fmt.Errorf("failed to parse page %s: %w", r.source.Ingest.URL, err)
	}

	selector := r.source.Ingest.Selector
	if selector == "" {
		selector = "article"
	}

	doc.Find(selector).Each(func(i int, sel *goquery.Selection) {
		item, err := r.toItem(sel)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			return
		}
		created, err := r.store.InsertItem(ctx, r.source.ID, item)
		if err != nil {
			result.Errors = append(result.Errors, err.Error())
			return
		}
		if created {
			result.Created++
		} else {
			result.Skipped++
		}
	})
	return result, nil
}

func (r *HTMLRefresher) toItem(sel *goquery.Selection) (core.ContentItem, error) {
	title := firstText(sel, "h1, h2, h3, .title")
	if title == "" {
		title = strings.TrimSpace(sel.Find("a").First().Text())
	}
	title = strings.TrimSpace(r.sanitizer.Sanitize(title))
	if title == "" {
		return core.ContentItem{}, fmt.Errorf("scraped element with no title in %s", r.source.ID)
	}

	link, _ := sel.Find("a").First().Attr("href")
	link = r.absoluteURL(strings.TrimSpace(link))

	body := firstText(sel, "p, .description, .summary")
	body = strings.TrimSpace(r.sanitizer.Sanitize(body))

	id := link
	if id == "" {
		id = uuid.NewSHA1(uuid.NameSpaceURL, []byte(r.source.ID+title)).String()
	}

	return core.ContentItem{
		ID:          id,
		Type:        r.source.Type,
		Title:       title,
		Body:        body,
		Source:      r.source.Name,
		URL:         link,
		PublishedAt: r.now().UTC(),
	}, nil
}

func firstText(sel *goquery.Selection, selector string) string {
	return strings.TrimSpace(sel.Find(selector).First().Text())
}

// absoluteURL resolves relative scraped links against the page URL.
func (r *HTMLRefresher) absoluteURL(link string) string {
	if link == "" || strings.HasPrefix(link, "http://") || strings.HasPrefix(link, "https://") {
		return link
	}
	base, err := url.Parse(r.source.Ingest.URL)
	if err != nil {
		return link
	}
	ref, err := url.Parse(link)
	if err != nil {
		return link
	}
	return base.ResolveReference(ref).String()
}
