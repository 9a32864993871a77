// Package email renders a digest into HTML and plain-text bodies for
// delivery. Sending is left to the operator's mail provider.
package email

import (
	"bytes"
	"fmt"
	"html/template"
	"strings"

	"citydigest/internal/core"
)

// Template configures the HTML rendering.
type Template struct {
	Name            string
	HeaderColor     string
	BackgroundColor string
	TextColor       string
	LinkColor       string
	BorderColor     string
	MaxWidth        string
	FontFamily      string
}

// DefaultTemplate returns the standard digest styling.
func DefaultTemplate() *Template {
	return &Template{
		Name:            "default",
		HeaderColor:     "#1d4ed8", // Blue-700
		BackgroundColor: "#f8fafc", // Slate-50
		TextColor:       "#1e293b", // Slate-800
		LinkColor:       "#2563eb", // Blue-600
		BorderColor:     "#e2e8f0", // Slate-200
		MaxWidth:        "600px",
		FontFamily:      "system-ui, -apple-system, 'Segoe UI', Roboto, sans-serif",
	}
}

// section is one category block in the rendered email.
type section struct {
	Heading string
	Items   []core.ScoredItem
}

type emailData struct {
	Subject  string
	Date     string
	Slot     string
	Sections []section
	Template *Template
}

var sectionHeadings = map[core.ContentCategory]string{
	core.CategoryBreaking:  "Breaking",
	core.CategoryEssential: "Your Commute & Weather",
	core.CategoryMoney:     "Deals & Money",
	core.CategoryLocal:     "Around the City",
	core.CategoryCulture:   "Culture & Events",
	core.CategoryCivic:     "Civic Life",
	core.CategoryLifestyle: "Eat, Drink, Do",
}

const htmlTemplate = `<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1.0">
<title>{{.Subject}}</title>
</head>
<body style="margin:0;padding:0;background-color:{{.Template.BackgroundColor}};font-family:{{.Template.FontFamily}};color:{{.Template.TextColor}};">
<div style="max-width:{{.Template.MaxWidth}};margin:0 auto;padding:16px;">
<div style="background-color:{{.Template.HeaderColor}};color:#ffffff;padding:24px;border-radius:8px 8px 0 0;">
<h1 style="margin:0;font-size:22px;">{{.Subject}}</h1>
<p style="margin:8px 0 0;opacity:0.85;">{{.Date}} · {{.Slot}} edition</p>
</div>
<div style="background-color:#ffffff;border:1px solid {{.Template.BorderColor}};border-top:none;border-radius:0 0 8px 8px;padding:8px 24px 24px;">
{{if not .Sections}}<p>Nothing made the cut today. Enjoy the quiet.</p>{{end}}
{{range .Sections}}
<h2 style="font-size:16px;text-transform:uppercase;letter-spacing:0.05em;color:{{$.Template.HeaderColor}};margin:24px 0 8px;">{{.Heading}}</h2>
{{range .Items}}
<div style="border-bottom:1px solid {{$.Template.BorderColor}};padding:12px 0;">
<h3 style="margin:0 0 6px;font-size:17px;">
{{if .Item.URL}}<a href="{{.Item.URL}}" style="color:{{$.Template.LinkColor}};text-decoration:none;">{{.Item.Title}}</a>{{else}}{{.Item.Title}}{{end}}
</h3>
{{if .WhyItMatters}}<p style="margin:0 0 6px;font-style:italic;">{{.WhyItMatters}}</p>{{end}}
{{if .Item.Body}}<p style="margin:0 0 6px;">{{.Item.Body}}</p>{{end}}
{{if .Item.Source}}<p style="margin:0;font-size:12px;color:#64748b;">{{.Item.Source}}{{if .Item.Neighborhood}} · {{.Item.Neighborhood}}{{end}}</p>{{end}}
</div>
{{end}}
{{end}}
</div>
<p style="text-align:center;font-size:12px;color:#94a3b8;margin-top:16px;">You're receiving this because you subscribed to the NYC daily digest.</p>
</div>
</body>
</html>`

// RenderHTML renders the digest as an HTML email body.
func RenderHTML(digest core.Digest, tmpl *Template) (string, error) {
	if tmpl == nil {
		tmpl = DefaultTemplate()
	}

	t, err := template.New("digest").Parse(htmlTemplate)
	if err != nil {
		return "", fmt.Errorf("failed to parse email template: %w", err)
	}

	data := emailData{
		Subject:  digest.Subject,
		Date:     digest.GeneratedAt.Format("Monday, January 2"),
		Slot:     digest.Slot,
		Sections: buildSections(digest.Items),
		Template: tmpl,
	}

	var buf bytes.Buffer
	if err := t.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to render email: %w", err)
	}
	return buf.String(), nil
}

// RenderPlainText renders the digest as a plain-text alternative body.
func RenderPlainText(digest core.Digest) string {
	var b strings.Builder

	b.WriteString(digest.Subject + "\n")
	fmt.Fprintf(&b, "%s · %s edition\n\n", digest.GeneratedAt.Format("Monday, January 2"), digest.Slot)

	sections := buildSections(digest.Items)
	if len(sections) == 0 {
		b.WriteString("Nothing made the cut today. Enjoy the quiet.\n")
		return b.String()
	}

	for _, s := range sections {
		b.WriteString(strings.ToUpper(s.Heading) + "\n")
		b.WriteString(strings.Repeat("-", len(s.Heading)) + "\n\n")
		for _, it := range s.Items {
			b.WriteString("* " + it.Item.Title + "\n")
			if it.WhyItMatters != "" {
				b.WriteString("  " + it.WhyItMatters + "\n")
			}
			if it.Item.URL != "" {
				b.WriteString("  " + it.Item.URL + "\n")
			}
			b.WriteString("\n")
		}
	}
	return b.String()
}

func buildSections(items []core.ScoredItem) []section {
	byCategory := make(map[core.ContentCategory][]core.ScoredItem)
	for _, it := range items {
		if it.Filtered {
			continue
		}
		byCategory[it.Category] = append(byCategory[it.Category], it)
	}

	var sections []section
	for _, category := range core.CategoryPriority {
		list := byCategory[category]
		if len(list) == 0 {
			continue
		}
		heading := sectionHeadings[category]
		if heading == "" {
			heading = string(category)
		}
		sections = append(sections, section{Heading: heading, Items: list})
	}
	return sections
}
