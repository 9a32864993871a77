// Package sources defines the data source registry: the set of upstream
// feeds the digest draws from, their priorities and expected update
// frequencies, and the uniform refresh contract ingestion collaborators
// implement. The registry is loaded from a YAML file so sources can be
// added without a rebuild.
package sources

import (
	"context"
	"fmt"
	"os"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"citydigest/internal/core"
)

// Frequency is a source's expected update cadence.
type Frequency string

const (
	FrequencyRealtime Frequency = "realtime"
	FrequencyHourly   Frequency = "hourly"
	FrequencyDaily    Frequency = "daily"
	FrequencyWeekly   Frequency = "weekly"
)

// StalenessThresholdHours derives the freshness threshold from the expected
// cadence, with slack for upstream jitter (a daily feed is not stale at
// hour 25).
func (f Frequency) StalenessThresholdHours() float64 {
	switch f {
	case FrequencyRealtime:
		return 1
	case FrequencyHourly:
		return 2
	case FrequencyDaily:
		return 26
	case FrequencyWeekly:
		return 170
	default:
		return 26
	}
}

// Source describes one registered upstream feed.
type Source struct {
	ID                string           `yaml:"id"`
	Name              string           `yaml:"name"`
	Type              core.ContentType `yaml:"type"`
	Priority          int              `yaml:"priority"` // 1 most critical .. 3 least
	Frequency         Frequency        `yaml:"frequency"`
	MinItemsExpected  int              `yaml:"min_items_expected"`
	RequiredForDigest bool             `yaml:"required_for_digest"`
	Primary           bool             `yaml:"primary"` // The single most essential source
	Ingest            IngestSpec       `yaml:"ingest"`
}

// Ingest kinds understood by the ingestion layer.
const (
	IngestRSS  = "rss"
	IngestHTML = "html"
)

// IngestSpec tells the ingestion layer how to refresh a source.
type IngestSpec struct {
	Kind     string `yaml:"kind"` // rss or html
	URL      string `yaml:"url"`
	Selector string `yaml:"selector"` // CSS selector for html sources
}

// RefreshResult is the uniform outcome of a source refresh, regardless of
// source type.
type RefreshResult struct {
	Created int      `json:"created"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors,omitempty"`
}

// Refresher is the zero-argument refresh contract every ingestion
// collaborator exposes.
type Refresher interface {
	Refresh(ctx context.Context) (RefreshResult, error)
}

// RefresherFunc adapts a function to the Refresher interface.
type RefresherFunc func(ctx context.Context) (RefreshResult, error)

// Refresh calls the function.
func (f RefresherFunc) Refresh(ctx context.Context) (RefreshResult, error) {
	return f(ctx)
}

// Registry holds the configured sources and their registered refreshers.
type Registry struct {
	mu         sync.RWMutex
	sources    []Source
	refreshers map[string]Refresher
}

type registryFile struct {
	Sources []Source `yaml:"sources"`
}

// LoadRegistry reads and validates a source registry from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source registry %s: %w", path, err)
	}

	var file registryFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("failed to parse source registry %s: %w", path, err)
	}

	return NewRegistry(file.Sources)
}

// NewRegistry builds a validated registry from a source list.
func NewRegistry(srcs []Source) (*Registry, error) {
	seen := make(map[string]struct{}, len(srcs))
	primaries := 0
	for i, s := range srcs {
		if s.ID == "" {
			return nil, fmt.Errorf("source %d has no id", i)
		}
		if _, dup := seen[s.ID]; dup {
			return nil, fmt.Errorf("duplicate source id %q", s.ID)
		}
		seen[s.ID] = struct{}{}
		if s.Priority < 1 || s.Priority > 3 {
			return nil, fmt.Errorf("source %q priority must be 1-3, got %d", s.ID, s.Priority)
		}
		switch s.Frequency {
		case FrequencyRealtime, FrequencyHourly, FrequencyDaily, FrequencyWeekly:
		default:
			return nil, fmt.Errorf("source %q has unknown frequency %q", s.ID, s.Frequency)
		}
		if s.Primary {
			primaries++
		}
	}
	if len(srcs) > 0 && primaries != 1 {
		return nil, fmt.Errorf("exactly one source must be marked primary, found %d", primaries)
	}

	return &Registry{
		sources:    srcs,
		refreshers: make(map[string]Refresher),
	}, nil
}

// Sources returns all registered sources in registry order.
func (r *Registry) Sources() []Source {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Source, len(r.sources))
	copy(out, r.sources)
	return out
}

// Get returns the source with the given id.
func (r *Registry) Get(id string) (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sources {
		if s.ID == id {
			return s, true
		}
	}
	return Source{}, false
}

// Primary returns the source marked as the single most essential one.
func (r *Registry) Primary() (Source, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, s := range r.sources {
		if s.Primary {
			return s, true
		}
	}
	return Source{}, false
}

// ByPriority returns the sources sorted ascending by priority (most
// critical first), stable within a priority band.
func (r *Registry) ByPriority() []Source {
	out := r.Sources()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Priority < out[j].Priority
	})
	return out
}

// Register attaches a refresher to a source id. Registering for an unknown
// source is an error so wiring mistakes surface at startup.
func (r *Registry) Register(id string, refresher Refresher) error {
	if _, ok := r.Get(id); !ok {
		return fmt.Errorf("cannot register refresher for unknown source %q", id)
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.refreshers[id] = refresher
	return nil
}

// Refresher returns the refresher registered for a source id.
func (r *Registry) Refresher(id string) (Refresher, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ref, ok := r.refreshers[id]
	return ref, ok
}
