// Package dedup implements the keyword layers of duplicate detection: exact
// dedup keys built from normalized title tokens, and fuzzy title similarity
// for paraphrased duplicates that land under different keys.
package dedup

import (
	"regexp"
	"sort"
	"strings"

	"citydigest/internal/core"
)

// DefaultFuzzyThreshold is the Jaccard similarity at or above which two
// titles are treated as duplicates.
const DefaultFuzzyThreshold = 0.75

var punctuation = regexp.MustCompile(`[^a-z0-9\s]+`)

// KeyTokens returns the significant tokens of a title: lowercased, stripped
// of punctuation, tokens longer than 3 characters, alphabetized.
func KeyTokens(title string) []string {
	cleaned := punctuation.ReplaceAllString(strings.ToLower(title), " ")
	fields := strings.Fields(cleaned)

	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		if len(f) > 3 {
			tokens = append(tokens, f)
		}
	}
	sort.Strings(tokens)
	return tokens
}

// Key derives the exact dedup key for an item: its type plus the first five
// of its significant title tokens in alphabetical order.
func Key(contentType core.ContentType, title string) string {
	tokens := KeyTokens(title)
	if len(tokens) > 5 {
		tokens = tokens[:5]
	}
	return string(contentType) + ":" + strings.Join(tokens, "-")
}

// TitlesSimilar reports whether two titles are fuzzy duplicates. A title
// whose significant tokens are wholly contained in the other's is a
// rephrasing ("A train delayed" vs "A train delayed again"); otherwise the
// Jaccard similarity of the token sets must meet the threshold. Symmetric
// in a and b.
func TitlesSimilar(a, b string, threshold float64) bool {
	ta, tb := KeyTokens(a), KeyTokens(b)
	if contained(ta, tb) || contained(tb, ta) {
		return true
	}
	return Jaccard(ta, tb) >= threshold
}

// contained reports whether every token of a appears in b. Empty sets are
// never contained.
func contained(a, b []string) bool {
	if len(a) == 0 || len(b) == 0 {
		return false
	}
	set := make(map[string]struct{}, len(b))
	for _, t := range b {
		set[t] = struct{}{}
	}
	for _, t := range a {
		if _, ok := set[t]; !ok {
			return false
		}
	}
	return true
}

// Jaccard computes |A∩B| / |A∪B| over two token slices. Two empty sets are
// not similar (0), matching the behavior of comparing two untitled items.
func Jaccard(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			intersection++
		}
	}
	union := len(setA) + len(setB) - intersection
	if union == 0 {
		return 0
	}
	return float64(intersection) / float64(union)
}

// Exact groups scored items by dedup key and keeps the highest-scoring item
// per group, first-seen winning ties. Survivors keep their input order;
// losers are returned with the drop reason. Idempotent on deduped input.
func Exact(items []core.ScoredItem) (kept []core.ScoredItem, dropped []core.DroppedItem) {
	best := make(map[string]int) // key -> index into items of current winner
	for i, it := range items {
		key := Key(it.Item.Type, it.Item.Title)
		if j, seen := best[key]; !seen || it.Scores.Overall > items[j].Scores.Overall {
			best[key] = i
		}
	}

	winners := make(map[int]struct{}, len(best))
	for _, i := range best {
		winners[i] = struct{}{}
	}
	for i, it := range items {
		if _, ok := winners[i]; ok {
			kept = append(kept, it)
		} else {
			dropped = append(dropped, core.DroppedItem{Item: it.Item, Reason: "duplicate (lower score)"})
		}
	}
	return kept, dropped
}

// Fuzzy runs a second pass over already exact-deduped items, collapsing
// pairs whose titles are similar despite different keys. The higher-scored
// item of a pair survives; ties keep the earlier item.
func Fuzzy(items []core.ScoredItem, threshold float64) (kept []core.ScoredItem, dropped []core.DroppedItem) {
	removed := make(map[int]string) // index -> reason
	for i := 0; i < len(items); i++ {
		if _, gone := removed[i]; gone {
			continue
		}
		for j := i + 1; j < len(items); j++ {
			if _, gone := removed[j]; gone {
				continue
			}
			if !TitlesSimilar(items[i].Item.Title, items[j].Item.Title, threshold) {
				continue
			}
			if items[j].Scores.Overall > items[i].Scores.Overall {
				removed[i] = "similar title (lower score)"
				break
			}
			removed[j] = "similar title (lower score)"
		}
	}

	for i, it := range items {
		if reason, gone := removed[i]; gone {
			dropped = append(dropped, core.DroppedItem{Item: it.Item, Reason: reason})
		} else {
			kept = append(kept, it)
		}
	}
	return kept, dropped
}
