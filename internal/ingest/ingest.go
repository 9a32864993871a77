// Package ingest implements the per-source refreshers the health monitor
// invokes: an RSS reader and an HTML scraper, both writing normalized
// items through the store.
package ingest

import (
	"context"

	"citydigest/internal/core"
	"citydigest/internal/sources"
)

const (
	userAgent    = "citydigest/1.0 (+https://citydigest.example)"
	maxFeedBytes = 5 << 20
)

// ItemWriter is the slice of the store refreshers write through.
type ItemWriter interface {
	InsertItem(ctx context.Context, sourceID string, item core.ContentItem) (bool, error)
}

// RegisterAll builds a refresher for every source with an ingest spec and
// registers it with the registry. Sources without a spec are left for
// manual registration.
func RegisterAll(registry *sources.Registry, store ItemWriter) error {
	for _, src := range registry.Sources() {
		var refresher sources.Refresher
		switch src.Ingest.Kind {
		case sources.IngestRSS:
			refresher = NewRSSRefresher(src, store)
		case sources.IngestHTML:
			refresher = NewHTMLRefresher(src, store)
		default:
			continue
		}
		if err := registry.Register(src.ID, refresher); err != nil {
			return err
		}
	}
	return nil
}
