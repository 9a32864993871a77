package personalization

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"citydigest/internal/core"
)

// profileEntry mirrors core.UserProfile with a pointer send hour so an
// omitted hour reads as unset rather than midnight.
type profileEntry struct {
	UserID             string                           `yaml:"user_id"`
	Neighborhood       string                           `yaml:"neighborhood"`
	Borough            string                           `yaml:"borough"`
	CommuteLines       []string                         `yaml:"commute_lines"`
	CommuteStations    []string                         `yaml:"commute_stations"`
	CategoryInterest   map[core.ContentCategory]float64 `yaml:"category_interest"`
	MutedCategories    []core.ContentCategory           `yaml:"muted_categories"`
	MutedSources       []string                         `yaml:"muted_sources"`
	MutedKeywords      []string                         `yaml:"muted_keywords"`
	PreferredSendHour  *int                             `yaml:"preferred_send_hour"`
	AvgOpenLatencyMins float64                          `yaml:"avg_open_latency_mins"`
}

type profileFile struct {
	Users []profileEntry `yaml:"users"`
}

// LoadProfiles reads user profiles from a YAML file.
func LoadProfiles(path string) (StaticProfiles, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read profiles file %s: %w", path, err)
	}

	var file profileFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse profiles file %s: %w", path, err)
	}

	profiles := make(StaticProfiles, len(file.Users))
	for _, entry := range file.Users {
		profile := core.UserProfile{
			UserID:             entry.UserID,
			Neighborhood:       entry.Neighborhood,
			Borough:            entry.Borough,
			CommuteLines:       entry.CommuteLines,
			CommuteStations:    entry.CommuteStations,
			CategoryInterest:   entry.CategoryInterest,
			MutedCategories:    entry.MutedCategories,
			MutedSources:       entry.MutedSources,
			MutedKeywords:      entry.MutedKeywords,
			AvgOpenLatencyMins: entry.AvgOpenLatencyMins,
			PreferredSendHour:  -1,
		}
		if entry.PreferredSendHour != nil {
			profile.PreferredSendHour = *entry.PreferredSendHour
		}
		if profile.UserID == "" {
			return nil, fmt.Errorf("profile without user_id in %s", path)
		}
		if _, dup := profiles[profile.UserID]; dup {
			return nil, fmt.Errorf("duplicate profile for user %q in %s", profile.UserID, path)
		}
		profiles[profile.UserID] = profile
	}
	return profiles, nil
}
