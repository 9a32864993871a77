package core

import "time"

// ContentType identifies which upstream variant a record came from.
type ContentType string

const (
	TypeNews  ContentType = "news"
	TypeAlert ContentType = "alert"
	TypeEvent ContentType = "event"
	TypeDeal  ContentType = "deal"
)

// ContentCategory is the closed set of digest categories. Exactly one is
// assigned per item by the scoring engine's ordered rule chain.
type ContentCategory string

const (
	CategoryBreaking  ContentCategory = "breaking"
	CategoryEssential ContentCategory = "essential"
	CategoryMoney     ContentCategory = "money"
	CategoryLocal     ContentCategory = "local"
	CategoryCivic     ContentCategory = "civic"
	CategoryCulture   ContentCategory = "culture"
	CategoryLifestyle ContentCategory = "lifestyle"
)

// CategoryPriority is the fixed order used when balancing a digest across
// categories: one slot per category in this order before score-based fill.
var CategoryPriority = []ContentCategory{
	CategoryBreaking,
	CategoryEssential,
	CategoryMoney,
	CategoryLocal,
	CategoryCulture,
	CategoryCivic,
	CategoryLifestyle,
}

// ContentItem is the normalized projection every variant reduces to before
// entering the pipeline. Items are immutable once fetched within a run.
type ContentItem struct {
	ID           string      `json:"id"`            // Unique identifier for the item
	Type         ContentType `json:"type"`          // Variant tag (news, alert, event, deal)
	Title        string      `json:"title"`         // Title or name
	Body         string      `json:"body"`          // Body, summary, or description text
	Source       string      `json:"source"`        // Source attribution (feed or publisher id)
	URL          string      `json:"url"`           // Optional canonical URL
	Neighborhood string      `json:"neighborhood"`  // Optional geographic tag
	PublishedAt  time.Time   `json:"published_at"`  // Publish or creation timestamp (zero if unknown)
	Embedding    []float64   `json:"embedding"`     // Optional vector embedding for clustering
}

// NewsArticle is a story from a news feed.
type NewsArticle struct {
	ID           string    `json:"id"`
	Headline     string    `json:"headline"`
	Summary      string    `json:"summary"`
	Outlet       string    `json:"outlet"`
	URL          string    `json:"url"`
	Neighborhood string    `json:"neighborhood"`
	PublishedAt  time.Time `json:"published_at"`
	Embedding    []float64 `json:"embedding"`
}

// Item projects the article onto the common scoreable shape.
func (a NewsArticle) Item() ContentItem {
	return ContentItem{
		ID: a.ID, Type: TypeNews, Title: a.Headline, Body: a.Summary,
		Source: a.Outlet, URL: a.URL, Neighborhood: a.Neighborhood,
		PublishedAt: a.PublishedAt, Embedding: a.Embedding,
	}
}

// AlertEvent is a transit or service alert.
type AlertEvent struct {
	ID          string    `json:"id"`
	Header      string    `json:"header"`
	Description string    `json:"description"`
	Agency      string    `json:"agency"`
	URL         string    `json:"url"`
	Lines       []string  `json:"lines"` // Affected transit lines, if any
	StartsAt    time.Time `json:"starts_at"`
	Embedding   []float64 `json:"embedding"`
}

// Item projects the alert onto the common scoreable shape.
func (a AlertEvent) Item() ContentItem {
	return ContentItem{
		ID: a.ID, Type: TypeAlert, Title: a.Header, Body: a.Description,
		Source: a.Agency, URL: a.URL, PublishedAt: a.StartsAt,
		Embedding: a.Embedding,
	}
}

// ParkEvent is an event in a public park or venue.
type ParkEvent struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Description  string    `json:"description"`
	Venue        string    `json:"venue"`
	URL          string    `json:"url"`
	Neighborhood string    `json:"neighborhood"`
	StartsAt     time.Time `json:"starts_at"`
	Embedding    []float64 `json:"embedding"`
}

// Item projects the event onto the common scoreable shape.
func (e ParkEvent) Item() ContentItem {
	return ContentItem{
		ID: e.ID, Type: TypeEvent, Title: e.Name, Body: e.Description,
		Source: e.Venue, URL: e.URL, Neighborhood: e.Neighborhood,
		PublishedAt: e.StartsAt, Embedding: e.Embedding,
	}
}

// DiningDeal is a restaurant or retail promotion.
type DiningDeal struct {
	ID           string    `json:"id"`
	Offer        string    `json:"offer"`
	Details      string    `json:"details"`
	Business     string    `json:"business"`
	URL          string    `json:"url"`
	Neighborhood string    `json:"neighborhood"`
	PostedAt     time.Time `json:"posted_at"`
	Embedding    []float64 `json:"embedding"`
}

// Item projects the deal onto the common scoreable shape.
func (d DiningDeal) Item() ContentItem {
	return ContentItem{
		ID: d.ID, Type: TypeDeal, Title: d.Offer, Body: d.Details,
		Source: d.Business, URL: d.URL, Neighborhood: d.Neighborhood,
		PublishedAt: d.PostedAt, Embedding: d.Embedding,
	}
}

// ContentScores holds the per-dimension scores for an item, each 0-100.
// Overall is the fixed weighted sum and is recomputed every run.
type ContentScores struct {
	Recency      int `json:"recency"`
	Relevance    int `json:"relevance"`
	Impact       int `json:"impact"`
	Completeness int `json:"completeness"`
	Overall      int `json:"overall"`
}

// ScoredItem pairs an item with its computed scores and category, plus the
// enrichment fields later stages may fill in.
type ScoredItem struct {
	Item              ContentItem     `json:"item"`
	Scores            ContentScores   `json:"scores"`
	Category          ContentCategory `json:"category"`
	WhyItMatters      string          `json:"why_it_matters"`      // Narrative enrichment, may be empty
	PersonalRelevance int             `json:"personal_relevance"`  // 0-100, set by personalization
	FinalScore        float64         `json:"final_score"`         // Blended ordering score
	Filtered          bool            `json:"filtered"`            // True if hard-muted for the user
	FilterReason      string          `json:"filter_reason"`       // Why the item was filtered
}

// DroppedItem records an item removed during deduplication with the reason.
type DroppedItem struct {
	Item   ContentItem `json:"item"`
	Reason string      `json:"reason"`
}

// TopicCluster groups items judged semantically equivalent by embedding
// cosine similarity. Built fresh per run.
type TopicCluster struct {
	ID             string   `json:"id"`
	ItemIDs        []string `json:"item_ids"`
	Representative string   `json:"representative"` // Highest-scored member, first-seen on ties
	Size           int      `json:"size"`
	AverageScore   float64  `json:"average_score"`
}

// SourceFreshness reports how stale a single source's data is.
type SourceFreshness struct {
	SourceID       string    `json:"source_id"`
	IsStale        bool      `json:"is_stale"`
	LastDataAt     time.Time `json:"last_data_at"` // Zero if the source has never produced data
	ThresholdHours float64   `json:"threshold_hours"`
	HoursOld       float64   `json:"hours_old"`
	ItemCount      int       `json:"item_count"` // Items recorded in the last 24h
}

// CircuitBreakerState is one of the three breaker states.
type CircuitBreakerState string

const (
	CircuitClosed   CircuitBreakerState = "closed"
	CircuitOpen     CircuitBreakerState = "open"
	CircuitHalfOpen CircuitBreakerState = "half_open"
)

// CircuitState is the per-source breaker record. It lives for the process
// lifetime and is never persisted.
type CircuitState struct {
	Failures    int                 `json:"failures"`
	LastFailure time.Time           `json:"last_failure"`
	State       CircuitBreakerState `json:"state"`
	OpenedAt    time.Time           `json:"opened_at"`
}

// ErrorSeverity classifies an orchestration error.
type ErrorSeverity string

const (
	SeverityWarning  ErrorSeverity = "warning"
	SeverityError    ErrorSeverity = "error"
	SeverityCritical ErrorSeverity = "critical"
)

// OrchestrationError is the uniform error record accumulated across stages.
// Stages convert their internal failures into these instead of propagating
// raw errors upward.
type OrchestrationError struct {
	Stage       string        `json:"stage"`
	Severity    ErrorSeverity `json:"severity"`
	Message     string        `json:"message"`
	SourceID    string        `json:"source_id,omitempty"`
	Timestamp   time.Time     `json:"timestamp"`
	Recoverable bool          `json:"recoverable"`
}

// UserProfile is the per-user personalization input, built on demand.
type UserProfile struct {
	UserID             string                      `json:"user_id" yaml:"user_id"`
	Neighborhood       string                      `json:"neighborhood" yaml:"neighborhood"`
	Borough            string                      `json:"borough" yaml:"borough"`
	CommuteLines       []string                    `json:"commute_lines" yaml:"commute_lines"`
	CommuteStations    []string                    `json:"commute_stations" yaml:"commute_stations"`
	CategoryInterest   map[ContentCategory]float64 `json:"category_interest" yaml:"category_interest"` // -1.0..1.0 per category
	MutedCategories    []ContentCategory           `json:"muted_categories" yaml:"muted_categories"`
	MutedSources       []string                    `json:"muted_sources" yaml:"muted_sources"`
	MutedKeywords      []string                    `json:"muted_keywords" yaml:"muted_keywords"`
	PreferredSendHour  int                         `json:"preferred_send_hour" yaml:"preferred_send_hour"` // -1 if unset
	AvgOpenLatencyMins float64                     `json:"avg_open_latency_mins" yaml:"avg_open_latency_mins"`
}

// Digest is the final curated package handed to rendering and delivery.
type Digest struct {
	ID          string       `json:"id"`
	Slot        string       `json:"slot"` // morning or evening
	Subject     string       `json:"subject"`
	Items       []ScoredItem `json:"items"`
	GeneratedAt time.Time    `json:"generated_at"`
}
