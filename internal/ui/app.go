package ui

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/wcpms/internal/config"
	"github.com/five82/wcpms/internal/prefs"
	"github.com/five82/wcpms/internal/state"
)

// View represents the current active view.
type View int

const (
	ViewQuery View = iota
	ViewChart
	ViewRegion
	ViewMetrics
	ViewCollections
	ViewLogs
)

var viewOrder = []View{ViewQuery, ViewChart, ViewRegion, ViewMetrics, ViewCollections, ViewLogs}

// String returns the title of the view.
func (v View) String() string {
	switch v {
	case ViewChart:
		return "Point Chart"
	case ViewRegion:
		return "Region"
	case ViewMetrics:
		return "Metrics"
	case ViewCollections:
		return "Collections"
	case ViewLogs:
		return "Log"
	default:
		return "Query"
	}
}

// Options configures the UI.
type Options struct {
	Context   context.Context
	Session   *state.Session
	Config    config.Config
	ThemeName string
	PrefsPath string
	LastQuery prefs.LastQuery
}

// Model is the root application state for Bubble Tea.
type Model struct {
	ctx       context.Context
	session   *state.Session
	config    config.Config
	prefsPath string
	keys      keyMap

	theme       Theme
	currentView View
	width       int
	height      int
	ready       bool

	snapshot    state.Snapshot
	lastUpdated time.Time
	notice      string

	form queryForm

	region regionState

	metricsViewport     viewport.Model
	collectionsSelected int

	logViewport viewport.Model
	logState    logState

	showHelp bool
}

// New creates a new Bubble Tea model.
func New(opts Options) Model {
	ctx := opts.Context
	if ctx == nil {
		ctx = context.Background()
	}

	themeName := opts.ThemeName
	if themeName == "" {
		themeName = "Nightfox"
	}

	prefsPath := opts.PrefsPath
	if prefsPath == "" {
		prefsPath = prefs.DefaultPath()
	}

	return Model{
		ctx:         ctx,
		session:     opts.Session,
		config:      opts.Config,
		prefsPath:   prefsPath,
		keys:        DefaultKeyMap(),
		theme:       GetTheme(themeName),
		currentView: ViewQuery,
		form:        newQueryForm(opts.Config.Cube, opts.LastQuery),
		region:      regionState{selected: -1},
		logState:    newLogState(),
	}
}

// Init implements tea.Model.
func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tea.EnterAltScreen,
		tickCmd(DefaultUIInterval),
	}
	if m.session != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.session.Store()))
	}
	return tea.Batch(cmds...)
}

// Update implements tea.Model.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)

	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.ready = true
		m.form.setWidth(m.width)
		m.updateMetricsViewport()
		m.updateLogViewport()
		return m, nil

	case tickMsg:
		return m.handleTick()

	case snapshotMsg:
		m.applySnapshot(state.Snapshot(msg))
		return m, nil

	case queryDoneMsg:
		return m.handleQueryDone(msg)

	case logLinesMsg:
		m.handleLogLines(msg)
		return m, nil
	}

	return m, nil
}

// View implements tea.Model.
func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	if m.showHelp {
		return m.renderHelp()
	}
	return m.renderMain()
}

// handleKey processes keyboard input.
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if m.showHelp {
		m.showHelp = false
		return m, nil
	}

	// The form and the log search own the keyboard while they have focus.
	if m.currentView == ViewQuery && m.form.editing {
		return m.handleFormKey(msg)
	}
	if m.currentView == ViewLogs && m.logState.searchActive {
		return m.handleLogSearchInput(msg)
	}

	switch {
	case key.Matches(msg, m.keys.Quit):
		return m, tea.Quit

	case key.Matches(msg, m.keys.Help):
		m.showHelp = true
		return m, nil

	case key.Matches(msg, m.keys.CycleTheme):
		m.theme = GetTheme(NextTheme(m.theme.Name))
		m.savePrefs()
		m.updateMetricsViewport()
		m.logState.contentVersion++
		m.updateLogViewport()
		return m, nil

	case key.Matches(msg, m.keys.Tab):
		return m.switchView(m.stepView(1))

	case key.Matches(msg, m.keys.ShiftTab):
		return m.switchView(m.stepView(-1))

	case key.Matches(msg, m.keys.ViewQuery):
		return m.switchView(ViewQuery)

	case key.Matches(msg, m.keys.ViewChart):
		return m.switchView(ViewChart)

	case key.Matches(msg, m.keys.ViewRegion):
		return m.switchView(ViewRegion)

	case key.Matches(msg, m.keys.ViewMetrics):
		return m.switchView(ViewMetrics)

	case key.Matches(msg, m.keys.ViewCollections):
		return m.switchView(ViewCollections)

	case key.Matches(msg, m.keys.ViewLogs):
		return m.switchView(ViewLogs)

	case key.Matches(msg, m.keys.Edit):
		m.currentView = ViewQuery
		cmd := m.form.focus(m.form.focused)
		return m, cmd

	case key.Matches(msg, m.keys.RunPoint):
		return m.startPointQuery()

	case key.Matches(msg, m.keys.RunRegion):
		return m.startRegionQuery()
	}

	switch m.currentView {
	case ViewQuery:
		return m.handleQueryKey(msg)
	case ViewRegion:
		return m.handleRegionKey(msg)
	case ViewMetrics:
		return m.handleMetricsKey(msg)
	case ViewCollections:
		return m.handleCollectionsKey(msg)
	case ViewLogs:
		return m.handleLogsKey(msg)
	}

	return m, nil
}

// stepView returns the view delta steps away in the tab order.
func (m Model) stepView(delta int) View {
	for i, v := range viewOrder {
		if v == m.currentView {
			return viewOrder[(i+delta+len(viewOrder))%len(viewOrder)]
		}
	}
	return ViewQuery
}

// switchView activates v and loads whatever it shows that is not there yet.
func (m Model) switchView(v View) (tea.Model, tea.Cmd) {
	m.currentView = v
	switch v {
	case ViewLogs:
		m.logState.lastRefresh = time.Time{}
		cmd := m.refreshLogs()
		return m, cmd
	case ViewMetrics:
		if len(m.snapshot.Descriptions) == 0 && !m.snapshot.Busy() {
			return m.startListQuery(state.KindDescribe)
		}
	case ViewCollections:
		if len(m.snapshot.Collections) == 0 && !m.snapshot.Busy() {
			return m.startListQuery(state.KindCollections)
		}
	}
	return m, nil
}

// handleTick processes the refresh tick.
func (m Model) handleTick() (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	if m.session != nil {
		cmds = append(cmds, fetchSnapshotCmd(m.session.Store()))
	}
	if m.currentView == ViewLogs && m.logState.follow {
		if cmd := m.refreshLogs(); cmd != nil {
			cmds = append(cmds, cmd)
		}
	}

	cmds = append(cmds, tickCmd(DefaultUIInterval))
	return m, tea.Batch(cmds...)
}

func (m *Model) applySnapshot(snap state.Snapshot) {
	regionChanged := len(snap.RegionResults) != len(m.snapshot.RegionResults) ||
		!snap.LastUpdated.Equal(m.snapshot.LastUpdated)
	descChanged := len(snap.Descriptions) != len(m.snapshot.Descriptions)

	m.snapshot = snap
	m.lastUpdated = time.Now()

	if m.collectionsSelected >= len(snap.Collections) {
		m.collectionsSelected = max(len(snap.Collections)-1, 0)
	}
	if regionChanged {
		m.refreshPixelChart()
	}
	if descChanged {
		m.updateMetricsViewport()
	}
}

// handleQueryDone reports the outcome of a request and follows up with a
// fresh snapshot.
func (m Model) handleQueryDone(msg queryDoneMsg) (tea.Model, tea.Cmd) {
	switch {
	case errors.Is(msg.err, state.ErrBusy):
		m.notice = "A request is already running"
	case msg.err != nil:
		m.notice = msg.kind.Title() + " failed: " + firstLine(msg.err.Error())
	default:
		m.notice = msg.kind.Title() + " finished"
		switch msg.kind {
		case state.KindPoint:
			m.currentView = ViewChart
		case state.KindRegion:
			m.currentView = ViewRegion
			m.region.selected = 0
		}
	}
	if m.session == nil {
		return m, nil
	}
	return m, fetchSnapshotCmd(m.session.Store())
}

// savePrefs persists the theme and the form. Errors are ignored: losing
// preferences must not interrupt the session.
func (m Model) savePrefs() {
	if m.prefsPath == "" {
		return
	}
	_ = prefs.Save(m.prefsPath, prefs.Prefs{Theme: m.theme.Name, LastQuery: m.form.lastQuery()})
}

// renderMain renders the full UI.
func (m Model) renderMain() string {
	var b strings.Builder

	b.WriteString(m.renderHeader())
	b.WriteString("\n")
	b.WriteString(m.renderCommandBar())
	b.WriteString("\n")
	b.WriteString(m.renderContent())

	return b.String()
}

// contentHeight is the height of the boxed area below the header, command
// bar and above the status line.
func (m Model) contentHeight() int {
	return max(m.height-3, 3)
}

// renderContent renders the main content area based on current view.
func (m Model) renderContent() string {
	var box string
	switch m.currentView {
	case ViewChart:
		box = m.renderChartView()
	case ViewRegion:
		box = m.renderRegionView()
	case ViewMetrics:
		box = m.renderMetricsView()
	case ViewCollections:
		box = m.renderCollectionsView()
	case ViewLogs:
		box = m.renderLogs()
	default:
		box = m.renderQueryView()
	}
	return box + "\n" + m.renderStatusLine()
}

// Messages

type tickMsg time.Time

type snapshotMsg state.Snapshot

// Commands

func tickCmd(d time.Duration) tea.Cmd {
	return tea.Tick(d, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func fetchSnapshotCmd(store *state.Store) tea.Cmd {
	return func() tea.Msg {
		return snapshotMsg(store.Snapshot())
	}
}

// Run starts the Bubble Tea program.
func Run(opts Options) error {
	m := New(opts)
	p := tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(m.ctx))
	_, err := p.Run()
	if errors.Is(err, tea.ErrProgramKilled) && m.ctx.Err() != nil {
		return nil
	}
	return err
}
