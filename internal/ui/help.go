package ui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

type helpSection struct {
	title string
	items []helpItem
}

type helpItem struct {
	key  string
	desc string
}

// helpSections lists the bindings shown in the help overlay.
func helpSections() []helpSection {
	return []helpSection{
		{
			title: "Views",
			items: []helpItem{
				{"tab", "Cycle views"},
				{"q/c/r", "Query/Chart/Region"},
				{"m/o/l", "Metrics/Collections/Log"},
			},
		},
		{
			title: "Requests",
			items: []helpItem{
				{"i", "Edit query form"},
				{"p", "Point phenometrics"},
				{"R", "Region phenometrics"},
				{"u", "Reload list"},
			},
		},
		{
			title: "Form",
			items: []helpItem{
				{"tab/↓", "Next field"},
				{"enter", "Next field / submit"},
				{"esc", "Stop editing"},
			},
		},
		{
			title: "Navigation",
			items: []helpItem{
				{"j/k", "Move / next pixel"},
				{"g/G", "Go to top/bottom"},
				{"ctrl+d/u", "Half page down/up"},
			},
		},
		{
			title: "Log",
			items: []helpItem{
				{"Space", "Toggle follow mode"},
				{"F", "Cycle minimum level"},
				{"/", "Search"},
				{"n/N", "Next/prev match"},
			},
		},
		{
			title: "General",
			items: []helpItem{
				{"T", "Cycle theme"},
				{"h/?", "Toggle help"},
				{"e/ctrl+c", "Quit"},
			},
		},
	}
}

// renderHelp renders the help overlay.
func (m Model) renderHelp() string {
	styles := m.theme.Styles()
	keyStyle := lipgloss.NewStyle().
		Foreground(lipgloss.Color(m.theme.Warning)).
		Width(12)

	var b strings.Builder
	b.WriteString(styles.Text.Bold(true).Render("Keyboard Shortcuts"))
	b.WriteString("\n")
	b.WriteString(styles.FaintText.Render(strings.Repeat("─", 30)))
	b.WriteString("\n\n")

	sections := helpSections()
	for i, section := range sections {
		b.WriteString(styles.AccentText.Bold(true).Render(section.title))
		b.WriteString("\n")
		for _, item := range section.items {
			b.WriteString(keyStyle.Render(item.key))
			b.WriteString(styles.Text.Render(item.desc))
			b.WriteString("\n")
		}
		if i < len(sections)-1 {
			b.WriteString("\n")
		}
	}

	modal := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color(m.theme.Accent)).
		Padding(1, 2).
		Width(40)

	return lipgloss.Place(
		m.width,
		m.height,
		lipgloss.Center,
		lipgloss.Center,
		modal.Render(b.String()),
		lipgloss.WithWhitespaceChars(" "),
		lipgloss.WithWhitespaceForeground(lipgloss.Color(m.theme.Background)),
	)
}
