// Package tui is an interactive digest previewer: a two-pane terminal view
// with the item list on the left and the selected item's detail on the
// right.
package tui

import (
	"fmt"
	"os"
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"citydigest/internal/core"
)

type model struct {
	digest      core.Digest
	selectedIdx int
	width       int
	height      int
	quitting    bool
}

// InitialModel builds the previewer state for a digest.
func InitialModel(digest core.Digest) model {
	return model{digest: digest}
}

func (m model) Init() tea.Cmd {
	return nil
}

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.quitting = true
			return m, tea.Quit
		case "up", "k":
			if m.selectedIdx > 0 {
				m.selectedIdx--
			}
		case "down", "j":
			if m.selectedIdx < len(m.digest.Items)-1 {
				m.selectedIdx++
			}
		}
	}
	return m, nil
}

var (
	docStyle      = lipgloss.NewStyle().Margin(1, 2)
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("39"))
	categoryStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	filteredStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("240")).Strikethrough(true)
	whyStyle      = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("220"))
)

func (m model) View() string {
	if m.quitting {
		return "Bye.\n"
	}

	paneWidth := m.width/2 - 5
	if paneWidth < 20 {
		paneWidth = 20
	}
	listStyle := lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(1).Width(paneWidth)
	detailStyle := lipgloss.NewStyle().Border(lipgloss.NormalBorder(), true).Padding(1).Width(paneWidth)

	var list strings.Builder
	list.WriteString(titleStyle.Render(m.digest.Subject) + "\n\n")
	if len(m.digest.Items) == 0 {
		list.WriteString("Nothing made the cut today.")
	} else {
		for i, it := range m.digest.Items {
			cursor := " "
			if i == m.selectedIdx {
				cursor = ">"
			}
			line := fmt.Sprintf("%s [%s] %s", cursor, it.Category, it.Item.Title)
			if it.Filtered {
				line = filteredStyle.Render(line)
			}
			list.WriteString(line + "\n")
		}
	}

	var detail strings.Builder
	if len(m.digest.Items) > 0 && m.selectedIdx < len(m.digest.Items) {
		it := m.digest.Items[m.selectedIdx]
		detail.WriteString(titleStyle.Render(it.Item.Title) + "\n")
		detail.WriteString(categoryStyle.Render(fmt.Sprintf("%s · score %d", it.Category, it.Scores.Overall)) + "\n\n")
		if it.WhyItMatters != "" {
			detail.WriteString(whyStyle.Render(it.WhyItMatters) + "\n\n")
		}
		if it.Item.Body != "" {
			detail.WriteString(it.Item.Body + "\n\n")
		}
		if it.Filtered {
			detail.WriteString(filteredStyle.Render("filtered: "+it.FilterReason) + "\n")
		}
		if it.Item.URL != "" {
			detail.WriteString(categoryStyle.Render(it.Item.URL) + "\n")
		}
	} else {
		detail.WriteString("Nothing selected.")
	}

	leftPane := listStyle.Render(list.String())
	rightPane := detailStyle.Render(detail.String())
	mainContent := lipgloss.JoinHorizontal(lipgloss.Top, leftPane, rightPane)

	help := "\n\n[↑/k] Up | [↓/j] Down | [q] Quit"
	return docStyle.Render(mainContent + help)
}

// StartTUI runs the previewer for a digest.
func StartTUI(digest core.Digest) {
	p := tea.NewProgram(InitialModel(digest), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		fmt.Printf("Error running TUI: %v\n", err)
		os.Exit(1)
	}
}
