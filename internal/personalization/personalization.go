// Package personalization re-ranks a selected pool for one user: it builds
// a lightweight profile, computes a personal relevance score per item,
// hard-filters muted content, blends the ordering with the original quality
// scores, and recommends a delivery time.
package personalization

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"
	"strings"
	"time"

	"citydigest/internal/core"
	"citydigest/internal/logger"
)

// ProfileSource supplies user profiles. Profiles are built on demand per
// run, never cached across runs.
type ProfileSource interface {
	Profile(ctx context.Context, userID string) (core.UserProfile, error)
}

// StaticProfiles is a ProfileSource backed by an in-memory map.
type StaticProfiles map[string]core.UserProfile

func (p StaticProfiles) Profile(ctx context.Context, userID string) (core.UserProfile, error) {
	profile, ok := p[userID]
	if !ok {
		return core.UserProfile{}, fmt.Errorf("unknown user %q", userID)
	}
	return profile, nil
}

// Config controls score blending.
type Config struct {
	BlendOriginal float64
	BlendPersonal float64
}

// DefaultConfig returns the standard blend: original quality dominates but
// personal relevance can reorder within a quality band.
func DefaultConfig() Config {
	return Config{BlendOriginal: 0.6, BlendPersonal: 0.4}
}

// SendWindow buckets a delivery recommendation.
type SendWindow string

const (
	SendEarly    SendWindow = "early"
	SendStandard SendWindow = "standard"
	SendLate     SendWindow = "late"
)

// DeliveryPlan is the recommended send time for one user.
type DeliveryPlan struct {
	Hour   int        `json:"hour"` // local hour 0-23
	Window SendWindow `json:"window"`
	Reason string     `json:"reason"`
}

// Result is the personalized pool plus the delivery recommendation.
type Result struct {
	Items    []core.ScoredItem `json:"items"`
	Filtered int               `json:"filtered"`
	Delivery DeliveryPlan      `json:"delivery"`
}

// Stage runs personalization.
type Stage struct {
	profiles ProfileSource
	cfg      Config
	log      *slog.Logger
	now      func() time.Time
}

// NewStage creates a personalization stage over the profile source.
func NewStage(profiles ProfileSource, cfg Config) *Stage {
	return &Stage{
		profiles: profiles,
		cfg:      cfg,
		log:      logger.Get(),
		now:      time.Now,
	}
}

// WithClock replaces the stage's clock. Intended for tests.
func (s *Stage) WithClock(now func() time.Time) *Stage {
	s.now = now
	return s
}

// Run personalizes the pool for userID. The input slice is not modified.
// An error here means the whole stage is unusable (no profile); callers
// treat that as a skippable optional-stage failure.
func (s *Stage) Run(ctx context.Context, userID string, items []core.ScoredItem) (Result, error) {
	profile, err := s.profiles.Profile(ctx, userID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to load profile: %w", err)
	}

	out := make([]core.ScoredItem, len(items))
	copy(out, items)

	var filtered int
	for i := range out {
		relevance, reason := PersonalRelevance(out[i], profile)
		out[i].PersonalRelevance = relevance
		if reason != "" {
			out[i].Filtered = true
			out[i].FilterReason = reason
			filtered++
		}
		out[i].FinalScore = s.cfg.BlendOriginal*float64(out[i].Scores.Overall) +
			s.cfg.BlendPersonal*float64(relevance)
	}

	// Filtered items always sink below every unfiltered item.
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Filtered != out[j].Filtered {
			return !out[i].Filtered
		}
		return out[i].FinalScore > out[j].FinalScore
	})

	plan := OptimalDeliveryTime(profile, s.now())
	s.log.Info("Personalization finished",
		"user", userID,
		"items", len(out),
		"filtered", filtered,
		"send_hour", plan.Hour)

	return Result{Items: out, Filtered: filtered, Delivery: plan}, nil
}

// PersonalRelevance scores one item 0-100 for a profile. A non-empty
// reason means the item is hard-muted and the score is 0.
func PersonalRelevance(item core.ScoredItem, profile core.UserProfile) (int, string) {
	if reason := muteReason(item, profile); reason != "" {
		return 0, reason
	}

	text := strings.ToLower(item.Item.Title + " " + item.Item.Body)
	score := 50.0

	if interest, ok := profile.CategoryInterest[item.Category]; ok {
		score += interest * 20
	}
	if matchesPlace(item, text, profile.Neighborhood) {
		score += 30
	} else if matchesPlace(item, text, profile.Borough) {
		score += 15
	}
	if mentionsCommute(text, profile) {
		score += 25
	}

	return clamp(int(math.Round(score)), 0, 100), ""
}

func muteReason(item core.ScoredItem, profile core.UserProfile) string {
	for _, category := range profile.MutedCategories {
		if item.Category == category {
			return "muted category: " + string(category)
		}
	}
	for _, source := range profile.MutedSources {
		if source != "" && strings.EqualFold(item.Item.Source, source) {
			return "muted source: " + source
		}
	}
	text := strings.ToLower(item.Item.Title + " " + item.Item.Body)
	for _, keyword := range profile.MutedKeywords {
		if keyword != "" && strings.Contains(text, strings.ToLower(keyword)) {
			return "muted keyword: " + keyword
		}
	}
	return ""
}

func matchesPlace(item core.ScoredItem, text, place string) bool {
	if place == "" {
		return false
	}
	lower := strings.ToLower(place)
	if strings.EqualFold(item.Item.Neighborhood, place) {
		return true
	}
	return strings.Contains(text, lower)
}

func mentionsCommute(text string, profile core.UserProfile) bool {
	for _, line := range profile.CommuteLines {
		if line == "" {
			continue
		}
		// Single-letter lines like "A" need word context to avoid matching
		// every article containing that letter.
		needle := strings.ToLower(line)
		if len(needle) == 1 {
			needle = needle + " train"
		}
		if strings.Contains(text, needle) {
			return true
		}
	}
	for _, station := range profile.CommuteStations {
		if station != "" && strings.Contains(text, strings.ToLower(station)) {
			return true
		}
	}
	return false
}

// OptimalDeliveryTime recommends a send hour. Explicit preference wins;
// otherwise historical open latency picks the window, and weekends shift
// the baseline later.
func OptimalDeliveryTime(profile core.UserProfile, now time.Time) DeliveryPlan {
	if profile.PreferredSendHour >= 0 && profile.PreferredSendHour <= 23 {
		return DeliveryPlan{
			Hour:   profile.PreferredSendHour,
			Window: SendStandard,
			Reason: "explicit preference",
		}
	}

	base := 7
	reason := "default weekday schedule"
	if weekday := now.Weekday(); weekday == time.Saturday || weekday == time.Sunday {
		base = 9
		reason = "weekend schedule"
	}

	switch latency := profile.AvgOpenLatencyMins; {
	case latency > 0 && latency < 15:
		return DeliveryPlan{Hour: max(base-1, 5), Window: SendEarly, Reason: "opens quickly after send"}
	case latency > 120:
		return DeliveryPlan{Hour: base + 2, Window: SendLate, Reason: "opens long after send"}
	default:
		return DeliveryPlan{Hour: base, Window: SendStandard, Reason: reason}
	}
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
