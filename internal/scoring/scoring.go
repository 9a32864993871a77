// Package scoring implements the multi-dimensional content scoring model:
// recency, relevance, impact, and completeness roll up into a weighted
// overall score, and an ordered rule chain assigns each item exactly one
// digest category. All functions are pure given the injected clock.
package scoring

import (
	"math"
	"net/url"
	"strings"
	"time"

	"citydigest/internal/core"
)

// Overall score weights. Must sum to 1.
const (
	weightRecency      = 0.25
	weightRelevance    = 0.30
	weightImpact       = 0.30
	weightCompleteness = 0.15
)

// ScoreRecency maps elapsed time since publication to a 0-100 step score.
// A missing timestamp scores 30; a future timestamp is scheduled content
// and scores 100.
func ScoreRecency(publishedAt, now time.Time) int {
	if publishedAt.IsZero() {
		return 30
	}
	elapsed := now.Sub(publishedAt)
	if elapsed < 0 {
		return 100
	}
	hours := elapsed.Hours()
	switch {
	case hours < 1:
		return 100
	case hours < 3:
		return 95
	case hours < 6:
		return 85
	case hours < 12:
		return 70
	case hours < 24:
		return 50
	case hours < 48:
		return 30
	case hours < 72:
		return 20
	default:
		return 10
	}
}

// ScoreRelevance scores how locally relevant the text is. Each signal class
// counts once regardless of how many of its terms appear.
func ScoreRelevance(text, source string) int {
	t := strings.ToLower(text)
	s := strings.ToLower(source)

	score := 40
	if containsAny(t, boroughTerms) {
		score += 15
	}
	if containsAny(t, neighborhoodTerms) {
		score += 20
	}
	if containsAny(t, transitTerms) {
		score += 15
	}
	if containsAny(t, landmarkTerms) {
		score += 10
	}
	if containsAny(t, governmentTerms) {
		score += 10
	}
	if containsAny(s, localSources) {
		score += 10
	}
	return clamp(score)
}

// ScoreImpact scores how consequential the text is. High-impact keywords
// credit up to three matches, medium-impact up to three, civic keywords once,
// then the content-type adjustment applies.
func ScoreImpact(text, typeTag string) int {
	t := strings.ToLower(text)

	score := 40
	score += 15 * min(countMatches(t, highImpactTerms), 3)
	score += 8 * min(countMatches(t, mediumImpactTerms), 3)
	if containsAny(t, civicImpactTerms) {
		score += 5
	}
	score += typeImpactAdjust[strings.ToLower(typeTag)]
	if score < 0 {
		return 0
	}
	return clamp(score)
}

// ScoreCompleteness credits structural quality of the record: title, body,
// URL, and source attribution.
func ScoreCompleteness(title, body, rawURL, source string) int {
	score := 0

	if title != "" {
		if len(title) >= 10 {
			score += 40
		} else {
			score += 25
		}
	}
	if body != "" {
		if len(body) >= 50 {
			score += 30
		} else {
			score += 15
		}
	}
	if rawURL != "" {
		if isValidURL(rawURL) {
			score += 15
		} else {
			score += 5
		}
	}
	if source != "" {
		score += 15
	}
	return clamp(score)
}

// Score computes the full score tuple for an item at the given time.
func Score(item core.ContentItem, now time.Time) core.ContentScores {
	text := item.Title + " " + item.Body
	scores := core.ContentScores{
		Recency:      ScoreRecency(item.PublishedAt, now),
		Relevance:    ScoreRelevance(text, item.Source),
		Impact:       ScoreImpact(text, string(item.Type)),
		Completeness: ScoreCompleteness(item.Title, item.Body, item.URL, item.Source),
	}
	scores.Overall = int(math.Round(
		weightRecency*float64(scores.Recency) +
			weightRelevance*float64(scores.Relevance) +
			weightImpact*float64(scores.Impact) +
			weightCompleteness*float64(scores.Completeness)))
	return scores
}

// Categorize assigns exactly one category via the ordered rule chain.
// The first matching rule wins; unmatched items default to local.
func Categorize(title, body, typeTag string) core.ContentCategory {
	t := strings.ToLower(title + " " + body)
	tag := strings.ToLower(typeTag)

	switch {
	case tag == "alert" || containsAny(t, breakingTerms):
		return core.CategoryBreaking
	case containsAny(t, essentialTerms):
		return core.CategoryEssential
	case tag == "deal" || containsAny(t, moneyTerms):
		return core.CategoryMoney
	case tag == "event" || containsAny(t, cultureTerms):
		return core.CategoryCulture
	case containsAny(t, civicTerms):
		return core.CategoryCivic
	case containsAny(t, lifestyleTerms):
		return core.CategoryLifestyle
	default:
		return core.CategoryLocal
	}
}

// Evaluate scores and categorizes an item in one pass.
func Evaluate(item core.ContentItem, now time.Time) core.ScoredItem {
	return core.ScoredItem{
		Item:     item,
		Scores:   Score(item, now),
		Category: Categorize(item.Title, item.Body, string(item.Type)),
	}
}

func containsAny(text string, terms []string) bool {
	for _, term := range terms {
		if strings.Contains(text, term) {
			return true
		}
	}
	return false
}

func countMatches(text string, terms []string) int {
	count := 0
	for _, term := range terms {
		if strings.Contains(text, term) {
			count++
		}
	}
	return count
}

func isValidURL(raw string) bool {
	u, err := url.ParseRequestURI(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

func clamp(score int) int {
	if score > 100 {
		return 100
	}
	return score
}
