// Package render writes a digest to a markdown file for preview and
// archival. The email package handles the HTML rendering for delivery.
package render

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"citydigest/internal/core"
)

// Category section headings in digest order.
var categoryHeadings = map[core.ContentCategory]string{
	core.CategoryBreaking:  "Breaking",
	core.CategoryEssential: "Your Commute & Weather",
	core.CategoryMoney:     "Deals & Money",
	core.CategoryLocal:     "Around the City",
	core.CategoryCulture:   "Culture & Events",
	core.CategoryCivic:     "Civic Life",
	core.CategoryLifestyle: "Eat, Drink, Do",
}

// MarkdownDigest renders the digest as markdown text.
func MarkdownDigest(digest core.Digest) string {
	var b strings.Builder

	dateStr := digest.GeneratedAt.Format("2006-01-02")
	fmt.Fprintf(&b, "# %s\n\n", digest.Subject)
	fmt.Fprintf(&b, "*%s %s digest*\n\n", dateStr, digest.Slot)

	if len(digest.Items) == 0 {
		b.WriteString("Nothing made the cut today.\n")
		return b.String()
	}

	byCategory := make(map[core.ContentCategory][]core.ScoredItem)
	for _, it := range digest.Items {
		if it.Filtered {
			continue
		}
		byCategory[it.Category] = append(byCategory[it.Category], it)
	}

	for _, category := range core.CategoryPriority {
		items := byCategory[category]
		if len(items) == 0 {
			continue
		}
		heading := categoryHeadings[category]
		if heading == "" {
			heading = string(category)
		}
		fmt.Fprintf(&b, "## %s\n\n", heading)
		for _, it := range items {
			writeItem(&b, it)
		}
	}
	return b.String()
}

func writeItem(b *strings.Builder, it core.ScoredItem) {
	if it.Item.URL != "" {
		fmt.Fprintf(b, "### [%s](%s)\n\n", it.Item.Title, it.Item.URL)
	} else {
		fmt.Fprintf(b, "### %s\n\n", it.Item.Title)
	}
	if it.WhyItMatters != "" {
		fmt.Fprintf(b, "**Why it matters:** %s\n\n", it.WhyItMatters)
	}
	if it.Item.Body != "" {
		body := it.Item.Body
		if len(body) > 400 {
			body = body[:400] + "…"
		}
		b.WriteString(body + "\n\n")
	}
	meta := []string{}
	if it.Item.Source != "" {
		meta = append(meta, it.Item.Source)
	}
	if it.Item.Neighborhood != "" {
		meta = append(meta, it.Item.Neighborhood)
	}
	if len(meta) > 0 {
		fmt.Fprintf(b, "*%s*\n\n", strings.Join(meta, " · "))
	}
	b.WriteString("---\n\n")
}

// WriteDigestFile renders the digest to outputDir and returns the path.
func WriteDigestFile(digest core.Digest, outputDir string) (string, error) {
	if outputDir == "" {
		outputDir = "digests"
	}
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory %s: %w", outputDir, err)
	}

	dateStr := digest.GeneratedAt.Format("2006-01-02")
	filename := fmt.Sprintf("digest_%s_%s.md", dateStr, digest.Slot)
	filePath := filepath.Join(outputDir, filename)

	if err := os.WriteFile(filePath, []byte(MarkdownDigest(digest)), 0644); err != nil {
		return "", fmt.Errorf("failed to write digest file %s: %w", filePath, err)
	}
	return filePath, nil
}
