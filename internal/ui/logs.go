package ui

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/wcpms/internal/logtail"
)

// logState holds all log-related state.
type logState struct {
	entries     []logtail.Entry // parsed tail of the file
	visible     []logtail.Entry // entries at or above minLevel
	minLevel    logtail.Level
	follow      bool
	lastRefresh time.Time
	readErr     error

	// Search
	searchActive   bool
	searchQuery    string
	searchRegex    *regexp.Regexp
	searchInput    textinput.Model
	searchMatches  []int // indices into visible
	searchMatchIdx int

	// Content caching - skip re-render when unchanged
	contentVersion uint64
	lastRendered   uint64
}

func newLogState() logState {
	ti := textinput.New()
	ti.Placeholder = "Search logs..."
	ti.CharLimit = 100
	return logState{follow: true, searchInput: ti}
}

// logLinesMsg carries the lines read from the log file.
type logLinesMsg struct {
	lines []string
	err   error
}

func readLogCmd(path string) tea.Cmd {
	return func() tea.Msg {
		lines, err := logtail.Read(path, LogTailLines)
		return logLinesMsg{lines: lines, err: err}
	}
}

// refreshLogs reads the log file again unless it was read very recently.
func (m *Model) refreshLogs() tea.Cmd {
	if m.config.LogPath == "" {
		return nil
	}
	if time.Since(m.logState.lastRefresh) < LogRefreshInterval {
		return nil
	}
	m.logState.lastRefresh = time.Now()
	return readLogCmd(m.config.LogPath)
}

func (m *Model) handleLogLines(msg logLinesMsg) {
	m.logState.readErr = msg.err
	if msg.err != nil {
		return
	}
	m.logState.entries = logtail.ParseLines(msg.lines)
	m.applyLogFilter()
}

// applyLogFilter recomputes the visible entries and search matches.
func (m *Model) applyLogFilter() {
	m.logState.visible = logtail.Filter(m.logState.entries, m.logState.minLevel)
	m.findSearchMatches()
	m.logState.contentVersion++
	m.updateLogViewport()
}

func (m *Model) initLogViewport() {
	m.logViewport = viewport.New(m.width-4, m.height-5)
	m.logViewport.Style = lipgloss.NewStyle()
}

// updateLogViewport updates the log viewport with current content.
func (m *Model) updateLogViewport() {
	if m.width == 0 {
		return
	}
	if m.logViewport.Width == 0 {
		m.initLogViewport()
	}

	// Box height = m.height - 3 (header, cmdbar, status line below)
	// Box inner = box height - 2 (top and bottom borders)
	m.logViewport.Width = m.width - 2
	m.logViewport.Height = m.height - 5
	m.logViewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))

	if m.logState.lastRendered == 0 || m.logState.contentVersion != m.logState.lastRendered {
		m.logViewport.SetContent(m.renderLogContent())
		m.logState.lastRendered = max(m.logState.contentVersion, 1)
	}

	if m.logState.follow {
		m.logViewport.GotoBottom()
	}
}

func (m Model) renderLogs() string {
	title := "Log"
	if m.config.LogPath != "" {
		title = "Log  " + truncateMiddle(m.config.LogPath, max(m.width/2, 10))
	}
	return m.renderTitledBox(title, m.logViewport.View(), m.width, m.contentHeight(), true)
}

// renderLogStatus renders the line below the log box.
func (m Model) renderLogStatus(styles Styles, bg BgStyle) string {
	if m.logState.searchActive {
		return bg.Render("/", styles.AccentText) + m.logState.searchInput.View()
	}
	if m.logState.searchRegex != nil {
		if len(m.logState.searchMatches) == 0 {
			return bg.Render("Pattern not found: "+m.logState.searchQuery, styles.DangerText)
		}
		return bg.Render("/"+m.logState.searchQuery, styles.AccentText) +
			bg.Render(" - ", styles.FaintText) +
			bg.Render(fmt.Sprintf("%d/%d", m.logState.searchMatchIdx+1, len(m.logState.searchMatches)), styles.WarningText) +
			bg.Render(" - n/N to move, Esc to clear", styles.FaintText)
	}
	if m.logState.readErr != nil {
		return bg.Render("Cannot read log: "+m.logState.readErr.Error(), styles.DangerText)
	}

	autoTail := "off"
	if m.logState.follow {
		autoTail = "on"
	}
	status := fmt.Sprintf("%d of %d lines  level %s  auto-tail %s",
		len(m.logState.visible), len(m.logState.entries), levelLabel(m.logState.minLevel), autoTail)
	return bg.Render(status, styles.FaintText)
}

func levelLabel(l logtail.Level) string {
	if l == logtail.LevelUnknown {
		return "ALL"
	}
	return l.String() + "+"
}

// renderLogContent renders every visible entry as one colored line.
func (m *Model) renderLogContent() string {
	bg := NewBgStyle(m.theme.FocusBg)
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	width := m.logViewport.Width

	if len(m.logState.visible) == 0 {
		msg := "No log entries"
		if m.config.LogPath == "" {
			msg = "Logging to a file is disabled"
		}
		return bg.FillLine(bg.Render(msg, styles.MutedText), width)
	}

	matchSet := make(map[int]bool, len(m.logState.searchMatches))
	for _, idx := range m.logState.searchMatches {
		matchSet[idx] = true
	}
	active := -1
	if m.logState.searchMatchIdx < len(m.logState.searchMatches) {
		active = m.logState.searchMatches[m.logState.searchMatchIdx]
	}

	lines := make([]string, 0, len(m.logState.visible))
	for i, entry := range m.logState.visible {
		var line string
		switch {
		case i == active:
			line = lipgloss.NewStyle().
				Background(lipgloss.Color(m.theme.Warning)).
				Foreground(lipgloss.Color(m.theme.Background)).
				Render(entry.Raw)
		case matchSet[i]:
			line = bg.Render(entry.Raw, styles.AccentText)
		default:
			line = m.colorizeEntry(entry, styles, bg)
		}
		lines = append(lines, bg.FillLine(line, width))
	}
	return strings.Join(lines, "\n")
}

// colorizeEntry renders "15:04:05 LEVEL message key=value ...".
func (m *Model) colorizeEntry(e logtail.Entry, styles Styles, bg BgStyle) string {
	if e.Level == logtail.LevelUnknown && e.Time == "" {
		return bg.Render(e.Message, styles.Text)
	}

	var b strings.Builder
	if ts := shortTime(e.Time); ts != "" {
		b.WriteString(bg.Render(ts, styles.FaintText))
		b.WriteString(bg.Space())
	}
	b.WriteString(bg.Render(fmt.Sprintf("%-5s", e.Level), styles.LevelStyle(e.Level).Bold(true)))
	b.WriteString(bg.Space())
	b.WriteString(bg.Render(e.Message, styles.Text))
	for _, a := range e.Attrs {
		b.WriteString(bg.Spaces(2))
		b.WriteString(bg.Render(a.Key+"=", styles.FaintText))
		b.WriteString(bg.Render(a.Value, styles.MutedText))
	}
	return b.String()
}

// shortTime keeps the clock part of an RFC 3339 timestamp.
func shortTime(ts string) string {
	t, err := time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return ts
	}
	return t.Local().Format("15:04:05")
}

func (m *Model) cycleLogLevel() {
	if m.logState.minLevel >= logtail.LevelError {
		m.logState.minLevel = logtail.LevelUnknown
	} else {
		m.logState.minLevel++
	}
	m.applyLogFilter()
}

// handleLogsKey processes keyboard input for logs view.
func (m Model) handleLogsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.ToggleFollow):
		m.logState.follow = !m.logState.follow
		m.updateLogViewport()

	case key.Matches(msg, m.keys.CycleLevel):
		m.cycleLogLevel()

	case key.Matches(msg, m.keys.Search):
		m.logState.searchActive = true
		m.logState.searchInput.SetValue("")
		cmd := m.logState.searchInput.Focus()
		return m, cmd

	case key.Matches(msg, m.keys.NextMatch):
		m.stepSearchMatch(1)

	case key.Matches(msg, m.keys.PrevMatch):
		m.stepSearchMatch(-1)

	case key.Matches(msg, m.keys.Escape):
		if m.logState.searchRegex != nil {
			m.clearLogSearch()
			m.updateLogViewport()
		}

	case key.Matches(msg, m.keys.Top):
		m.logViewport.GotoTop()
		m.logState.follow = false

	case key.Matches(msg, m.keys.Bottom):
		m.logViewport.GotoBottom()
		m.logState.follow = true

	case key.Matches(msg, m.keys.Down):
		m.logViewport.ScrollDown(1)
		m.logState.follow = false

	case key.Matches(msg, m.keys.Up):
		m.logViewport.ScrollUp(1)
		m.logState.follow = false

	case key.Matches(msg, m.keys.HalfPageDown):
		m.logViewport.HalfPageDown()
		m.logState.follow = false

	case key.Matches(msg, m.keys.HalfPageUp):
		m.logViewport.HalfPageUp()
		m.logState.follow = false

	case key.Matches(msg, m.keys.PageDown):
		m.logViewport.PageDown()
		m.logState.follow = false

	case key.Matches(msg, m.keys.PageUp):
		m.logViewport.PageUp()
		m.logState.follow = false
	}

	return m, nil
}

// handleLogSearchInput handles keyboard input during log search.
func (m Model) handleLogSearchInput(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Confirm):
		query := m.logState.searchInput.Value()
		m.logState.searchActive = false
		m.logState.searchInput.Blur()
		if query == "" {
			return m, nil
		}
		re, err := regexp.Compile("(?i)" + query)
		if err != nil {
			m.notice = "Invalid search pattern: " + err.Error()
			return m, nil
		}
		m.logState.searchRegex = re
		m.logState.searchQuery = query
		m.findSearchMatches()
		m.logState.searchMatchIdx = 0
		m.updateLogViewport()
		m.scrollToSearchMatch()
		return m, nil

	case key.Matches(msg, m.keys.Escape):
		m.logState.searchActive = false
		m.logState.searchInput.Blur()
		m.logState.searchInput.SetValue("")
		return m, nil
	}

	var cmd tea.Cmd
	m.logState.searchInput, cmd = m.logState.searchInput.Update(msg)
	return m, cmd
}

func (m *Model) clearLogSearch() {
	m.logState.searchRegex = nil
	m.logState.searchQuery = ""
	m.logState.searchMatches = nil
	m.logState.searchMatchIdx = 0
	m.logState.contentVersion++
}

func (m *Model) findSearchMatches() {
	m.logState.searchMatches = nil
	if m.logState.searchRegex == nil {
		return
	}
	for i, e := range m.logState.visible {
		if m.logState.searchRegex.MatchString(e.Raw) {
			m.logState.searchMatches = append(m.logState.searchMatches, i)
		}
	}
	if m.logState.searchMatchIdx >= len(m.logState.searchMatches) {
		m.logState.searchMatchIdx = 0
	}
	m.logState.contentVersion++
}

func (m *Model) stepSearchMatch(delta int) {
	n := len(m.logState.searchMatches)
	if n == 0 {
		return
	}
	m.logState.searchMatchIdx = (m.logState.searchMatchIdx + delta + n) % n
	m.logState.contentVersion++
	m.scrollToSearchMatch()
	m.updateLogViewport()
}

// scrollToSearchMatch centres the current match in the viewport.
func (m *Model) scrollToSearchMatch() {
	if m.logState.searchMatchIdx >= len(m.logState.searchMatches) {
		return
	}
	target := m.logState.searchMatches[m.logState.searchMatchIdx]
	m.logState.follow = false
	m.logViewport.SetYOffset(max(target-m.logViewport.Height/2, 0))
}
