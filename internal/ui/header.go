package ui

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/wcpms/internal/state"
	"github.com/five82/wcpms/internal/wcpms"
)

// renderHeader renders the status bar: service state, cube, last run.
func (m Model) renderHeader() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)
	compact := m.width < LayoutCompactWidth

	parts := []string{bg.Render("wcpms", styles.Logo)}

	switch {
	case m.snapshot.Busy():
		run := m.snapshot.InFlight
		elapsed := time.Since(run.Started).Round(100 * time.Millisecond)
		parts = append(parts,
			bg.Render("● RUNNING", styles.WarningText.Bold(true))+bg.Space()+
				bg.Render(fmt.Sprintf("%s %s", run.Kind, elapsed), styles.MutedText))
	case m.snapshot.IsOffline():
		parts = append(parts, bg.Render("● "+classifyServiceError(m.snapshot.LastError), styles.DangerText))
	default:
		parts = append(parts, bg.Render("● READY", styles.SuccessText))
	}

	if !compact {
		if host := serviceHost(m.config.URL); host != "" {
			parts = append(parts, bg.Render(truncateMiddle(host, 40), styles.FaintText))
		}
	}

	cube := m.snapshot.Cube
	if !m.snapshot.HasCube {
		cube, _ = m.form.cube()
	}
	if cube.Collection != "" {
		parts = append(parts,
			bg.Render("Cube:", styles.MutedText)+bg.Space()+
				bg.Render(truncate(cube.String(), 60), styles.Text))
	}

	if n := len(m.snapshot.History); n > 0 {
		last := m.snapshot.History[n-1]
		outcome := bg.Render("ok", styles.SuccessText)
		if last.Failed() {
			outcome = bg.Render("failed", styles.DangerText)
		}
		parts = append(parts,
			bg.Render("Last:", styles.MutedText)+bg.Space()+
				bg.Render(string(last.Kind), styles.Text)+bg.Space()+outcome+bg.Space()+
				bg.Render(last.Elapsed.Round(time.Millisecond).String(), styles.FaintText))
	}

	if ts := m.formatTimestamp(); ts != "" && !compact {
		parts = append(parts, bg.Render(ts, styles.MutedText))
	}

	return styles.Header.Width(m.width).Render(bg.Join(parts, "  "))
}

// formatTimestamp formats the time of the last completed run.
func (m Model) formatTimestamp() string {
	if m.snapshot.LastUpdated.IsZero() {
		return ""
	}
	since := time.Since(m.snapshot.LastUpdated)
	ts := m.snapshot.LastUpdated.Format("15:04:05")
	switch {
	case since < time.Minute:
		ts += " (now)"
	case since < time.Hour:
		ts += fmt.Sprintf(" (%dm ago)", int(since.Minutes()))
	case since < 24*time.Hour:
		ts += fmt.Sprintf(" (%dh ago)", int(since.Hours()))
	}
	return ts
}

// classifyServiceError returns a short label for the last failure.
func classifyServiceError(err error) string {
	if err == nil {
		return ""
	}
	var httpErr *wcpms.HTTPError
	if errors.As(err, &httpErr) {
		return fmt.Sprintf("HTTP %d", httpErr.StatusCode)
	}
	var decodeErr *wcpms.DecodeError
	if errors.As(err, &decodeErr) {
		return "BAD RESPONSE"
	}
	msg := err.Error()
	switch {
	case strings.Contains(msg, "connection refused"):
		return "OFFLINE"
	case strings.Contains(msg, "no such host"):
		return "HOST NOT FOUND"
	case strings.Contains(msg, "timeout"), strings.Contains(msg, "deadline exceeded"):
		return "TIMEOUT"
	default:
		return "ERROR"
	}
}

func serviceHost(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return ""
	}
	return u.Host + strings.TrimSuffix(u.Path, "/")
}

// renderCommandBar renders the key hints of the current view.
func (m Model) renderCommandBar() string {
	styles := m.theme.Styles().WithBackground(m.theme.Surface)
	bg := NewBgStyle(m.theme.Surface)

	type cmd struct{ key, desc string }
	var commands []cmd

	switch m.currentView {
	case ViewQuery:
		if m.form.editing {
			commands = []cmd{
				{"Tab", "Next field"},
				{"Enter", "Next / Submit"},
				{"Esc", "Done"},
			}
		} else {
			commands = []cmd{
				{"Enter", "Edit"},
				{"p", "Point"},
				{"R", "Region"},
				{"c", "Chart"},
				{"r", "Pixels"},
				{"m", "Metrics"},
				{"o", "Collections"},
				{"l", "Log"},
				{"?", "More"},
			}
		}
	case ViewChart:
		commands = []cmd{
			{"i", "Edit query"},
			{"p", "Re-run"},
			{"r", "Region"},
			{"Tab", "Next view"},
			{"?", "More"},
		}
	case ViewRegion:
		commands = []cmd{
			{"j/k", "Pixel"},
			{"g/G", "First/Last"},
			{"R", "Re-run"},
			{"i", "Edit query"},
			{"?", "More"},
		}
	case ViewMetrics:
		commands = []cmd{
			{"j/k", "Scroll"},
			{"u", "Reload"},
			{"Tab", "Next view"},
			{"?", "More"},
		}
	case ViewCollections:
		commands = []cmd{
			{"j/k", "Navigate"},
			{"Enter", "Use collection"},
			{"u", "Reload"},
			{"?", "More"},
		}
	case ViewLogs:
		followLabel := "Pause"
		if !m.logState.follow {
			followLabel = "Follow"
		}
		commands = []cmd{
			{"Space", followLabel},
			{"/", "Search"},
			{"n/N", "Next/Prev"},
			{"F", "Level " + levelLabel(m.logState.minLevel)},
			{"?", "More"},
		}
	}

	colon := bg.Sep(":")
	sep := bg.Spaces(2)

	segments := make([]string, 0, len(commands)+2)
	for _, c := range commands {
		segments = append(segments,
			bg.Render(c.key, styles.AccentText)+colon+bg.Render(c.desc, styles.MutedText))
	}

	if m.currentView == ViewLogs && m.logState.searchQuery != "" {
		segments = append(segments, bg.Render("/"+truncate(m.logState.searchQuery, 18), styles.AccentText))
	}

	segments = append(segments,
		bg.Render("T", styles.AccentText)+colon+bg.Render(m.theme.Name, styles.FaintText))

	return styles.Header.Width(m.width).Render(strings.Join(segments, sep))
}

// renderStatusLine renders the line below the content box: the latest
// notice, or the last error when there is no notice.
func (m Model) renderStatusLine() string {
	styles := m.theme.Styles().WithBackground(m.theme.Background)
	bg := NewBgStyle(m.theme.Background)

	if m.currentView == ViewLogs {
		return bg.FillLine(m.renderLogStatus(styles, bg), m.width)
	}

	var line string
	switch {
	case m.notice != "":
		style := styles.MutedText
		if strings.Contains(m.notice, "failed") || strings.HasPrefix(m.notice, "Invalid") {
			style = styles.DangerText
		}
		line = bg.Render(truncate(m.notice, m.width-2), style)
	case m.snapshot.LastError != nil:
		line = bg.Render("ERROR", styles.DangerText) + bg.Space() +
			bg.Render(truncate(firstLine(m.snapshot.LastError.Error()), m.width-8), styles.DangerText)
	}
	return bg.FillLine(line, m.width)
}

// formatRun renders one history entry.
func (m Model) formatRun(run state.Run, width int, styles Styles, bg BgStyle) string {
	badge := styles.KindBadge(run.Kind).Render(fmt.Sprintf("%-11s", run.Kind))
	outcome := bg.Render("✓", styles.SuccessText)
	if run.Failed() {
		outcome = bg.Render("✗", styles.DangerText)
	}
	head := badge + bg.Space() + outcome + bg.Space() +
		bg.Render(run.Started.Format("15:04:05"), styles.FaintText) + bg.Space() +
		bg.Render(run.ShortID(), styles.FaintText) + bg.Space() +
		bg.Render(fmt.Sprintf("%6s", run.Elapsed.Round(time.Millisecond)), styles.MutedText)

	detail := run.Target
	if run.Failed() {
		detail = firstLine(run.Err.Error())
	}
	room := width - lipgloss.Width(head) - 1
	if detail == "" || room < 8 {
		return head
	}
	style := styles.Text
	if run.Failed() {
		style = styles.DangerText
	}
	return head + bg.Space() + bg.Render(truncate(detail, room), style)
}

// renderTitledBox draws a bordered box with the title set into the top
// border. Content lines beyond the box height are cut.
func (m Model) renderTitledBox(title, content string, width, height int, focused bool) string {
	borderColor, bgColor := m.theme.Border, m.theme.SurfaceAlt
	if focused {
		borderColor, bgColor = m.theme.BorderFocus, m.theme.FocusBg
	}
	bg := NewBgStyle(bgColor)
	borderStyle := lipgloss.NewStyle().Foreground(lipgloss.Color(borderColor))
	titleStyle := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color(m.theme.Text))

	innerWidth := max(width-2, 1)
	title = truncate(title, max(innerWidth-4, 1))
	titleLen := lipgloss.Width(title)
	leftPad := max((innerWidth-titleLen-2)/2, 0)
	rightPad := max(innerWidth-titleLen-2-leftPad, 0)

	top := bg.Render("┌", borderStyle) +
		bg.Render(strings.Repeat("─", leftPad), borderStyle) +
		bg.Render(" "+title+" ", titleStyle) +
		bg.Render(strings.Repeat("─", rightPad), borderStyle) +
		bg.Render("┐", borderStyle)
	bottom := bg.Render("└", borderStyle) +
		bg.Render(strings.Repeat("─", innerWidth), borderStyle) +
		bg.Render("┘", borderStyle)

	contentStyle := lipgloss.NewStyle().
		Width(innerWidth).
		MaxWidth(innerWidth).
		Background(lipgloss.Color(bgColor))
	lines := strings.Split(content, "\n")
	rows := make([]string, 0, height)
	for i := 0; i < height-2; i++ {
		var line string
		if i < len(lines) {
			line = lines[i]
		}
		rows = append(rows, bg.Render("│", borderStyle)+contentStyle.Render(line)+bg.Render("│", borderStyle))
	}
	return top + "\n" + strings.Join(rows, "\n") + "\n" + bottom
}

// truncate shortens s to limit runes, ending with an ellipsis.
func truncate(s string, limit int) string {
	s = strings.TrimSpace(s)
	if limit <= 0 {
		return ""
	}
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	if limit <= 3 {
		return string(runes[:limit])
	}
	return string(runes[:limit-3]) + "..."
}

// truncateMiddle shortens s by cutting its middle, keeping more of the end.
func truncateMiddle(s string, limit int) string {
	runes := []rune(strings.TrimSpace(s))
	if limit <= 0 {
		return ""
	}
	if len(runes) <= limit {
		return string(runes)
	}
	if limit <= 5 {
		return string(runes[:limit])
	}
	endLen := (limit - 1) * 2 / 3
	startLen := limit - 1 - endLen
	return string(runes[:startLen]) + "…" + string(runes[len(runes)-endLen:])
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}
