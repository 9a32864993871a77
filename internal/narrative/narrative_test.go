package narrative

import (
	"fmt"
	"strings"
	"testing"
	"unicode/utf8"

	"citydigest/internal/core"
)

func TestParseNumberedLines(t *testing.T) {
	tests := []struct {
		name string
		text string
		n    int
		want []string
	}{
		{
			"clean list",
			"1. First reason\n2. Second reason\n3. Third reason",
			3,
			[]string{"First reason", "Second reason", "Third reason"},
		},
		{
			"prose and blanks around the list",
			"Here you go:\n\n1) First reason\n\n2) Second reason\n\nHope that helps!",
			2,
			[]string{"First reason", "Second reason"},
		},
		{
			"short response leaves blanks",
			"1. Only one line",
			3,
			[]string{"Only one line", "", ""},
		},
		{
			"extra lines ignored",
			"1. One\n2. Two\n3. Three",
			2,
			[]string{"One", "Two"},
		},
		{
			"no numbered lines",
			"The model rambled instead.",
			2,
			[]string{"", ""},
		},
		{
			"skipped number keeps later answers in place",
			"1. First reason\n3. Third reason",
			3,
			[]string{"First reason", "", "Third reason"},
		},
		{
			"out of order list",
			"2. Second reason\n1. First reason",
			2,
			[]string{"First reason", "Second reason"},
		},
		{
			"out of range numbers ignored",
			"0. Nothing\n1. First reason\n7. Nothing either",
			2,
			[]string{"First reason", ""},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseNumberedLines(tt.text, tt.n)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d lines, want %d", len(got), len(tt.want))
			}
			for i := range tt.want {
				if got[i] != tt.want[i] {
					t.Errorf("line %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestWhyItMattersPrompt_NumbersAllItems(t *testing.T) {
	items := []core.ScoredItem{
		{Item: core.ContentItem{Title: "A train delayed"}, Category: core.CategoryBreaking},
		{Item: core.ContentItem{Title: "Free kayaking in Red Hook"}, Category: core.CategoryCulture},
	}

	prompt := whyItMattersPrompt(items)
	for i, it := range items {
		if !strings.Contains(prompt, it.Item.Title) {
			t.Errorf("prompt missing title %q", it.Item.Title)
		}
		if !strings.Contains(prompt, fmt.Sprintf("%d. [", i+1)) {
			t.Errorf("prompt missing item number %d", i+1)
		}
	}
}

func TestWhyItMattersPrompt_TruncatesOnRuneBoundary(t *testing.T) {
	// The two-byte é occupies bytes 199-200 and straddles the cutoff.
	body := strings.Repeat("x", 199) + "é on Smith Street"
	items := []core.ScoredItem{{Item: core.ContentItem{Title: "New opening", Body: body}}}

	prompt := whyItMattersPrompt(items)
	if !utf8.ValidString(prompt) {
		t.Error("prompt contains invalid UTF-8 after truncation")
	}
	if strings.Contains(prompt, "é") {
		t.Error("the straddling rune should have been dropped whole")
	}
}

func TestTruncate(t *testing.T) {
	tests := []struct {
		s    string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"exactly10!", 10, "exactly10!"},
		{"0123456789ab", 10, "0123456789"},
		{"café", 4, "caf"}, // é is 2 bytes; cutting at 4 would split it
		{"café", 5, "café"},
	}
	for _, tt := range tests {
		if got := truncate(tt.s, tt.n); got != tt.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tt.s, tt.n, got, tt.want)
		}
	}
}

func TestSubjectPrompt_MentionsSlot(t *testing.T) {
	items := []core.ScoredItem{{Item: core.ContentItem{Title: "A train delayed"}}}
	prompt := subjectPrompt(items, "morning")
	if !strings.Contains(prompt, "morning") {
		t.Error("prompt should mention the slot")
	}
}
