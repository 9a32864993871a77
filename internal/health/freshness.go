package health

import (
	"context"
	"time"

	"citydigest/internal/core"
	"citydigest/internal/sources"
)

// FreshnessStore is the slice of the persistence collaborator the monitor
// needs: high-water marks and volume counts per source.
type FreshnessStore interface {
	LatestTimestamp(ctx context.Context, sourceID string) (time.Time, error)
	CountSince(ctx context.Context, sourceID string, since time.Time) (int, error)
}

// CheckSourceFreshness computes the freshness record for one source at the
// given time. A source with no data ever recorded is always stale, and a
// source producing fewer items in the last 24h than it is expected to is
// stale on volume even when its latest record is recent.
func CheckSourceFreshness(ctx context.Context, store FreshnessStore, src sources.Source, now time.Time) (core.SourceFreshness, error) {
	freshness := core.SourceFreshness{
		SourceID:       src.ID,
		ThresholdHours: src.Frequency.StalenessThresholdHours(),
	}

	latest, err := store.LatestTimestamp(ctx, src.ID)
	if err != nil {
		return freshness, err
	}

	count, err := store.CountSince(ctx, src.ID, now.Add(-24*time.Hour))
	if err != nil {
		return freshness, err
	}
	freshness.ItemCount = count

	if latest.IsZero() {
		freshness.IsStale = true
		return freshness, nil
	}

	freshness.LastDataAt = latest
	freshness.HoursOld = now.Sub(latest).Hours()
	freshness.IsStale = freshness.HoursOld > freshness.ThresholdHours ||
		(src.MinItemsExpected > 0 && count < src.MinItemsExpected)
	return freshness, nil
}

// CalculateOverallHealth computes a 0-100 weighted health score where each
// source weighs 4−priority (priority 1 counts 3x, priority 3 counts 1x)
// and a source contributes only when it is not stale. No sources means 0.
func CalculateOverallHealth(freshness []core.SourceFreshness, byID map[string]sources.Source) float64 {
	if len(freshness) == 0 {
		return 0
	}

	var weightTotal, weightHealthy float64
	for _, f := range freshness {
		priority := 2
		if src, ok := byID[f.SourceID]; ok {
			priority = src.Priority
		}
		weight := float64(4 - priority)
		weightTotal += weight
		if !f.IsStale {
			weightHealthy += weight
		}
	}
	if weightTotal == 0 {
		return 0
	}
	return weightHealthy / weightTotal * 100
}
