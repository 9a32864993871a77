package narrative

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"citydigest/internal/core"
)

func whyItMattersPrompt(items []core.ScoredItem) string {
	var b strings.Builder
	b.WriteString("You write a daily New York City email digest. For each item below, ")
	b.WriteString("write one sentence (under 25 words) telling a busy reader why it matters to them today. ")
	b.WriteString("Be concrete and local. Reply with a numbered list, one line per item, nothing else.\n\n")
	for i, it := range items {
		fmt.Fprintf(&b, "%d. [%s] %s — %s\n", i+1, it.Category, it.Item.Title, truncate(it.Item.Body, 200))
	}
	return b.String()
}

// truncate caps s at n bytes without splitting a multi-byte rune.
func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

func subjectPrompt(items []core.ScoredItem, slot string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Write a subject line (under 60 characters) for a %s NYC digest email covering these stories. ", slot)
	b.WriteString("Lead with the most urgent item. Reply with the subject line only, no quotes.\n\n")
	for _, it := range items {
		fmt.Fprintf(&b, "- %s\n", it.Item.Title)
	}
	return b.String()
}
