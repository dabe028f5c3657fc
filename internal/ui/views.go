package ui

import (
	"fmt"
	"math"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/wcpms/internal/chart"
	"github.com/five82/wcpms/internal/state"
	"github.com/five82/wcpms/internal/wcpms"
)

// regionState holds the pixel selection of the region view.
type regionState struct {
	selected int
	plot     chart.RegionPlot
	chart    chart.Annotations
	chartErr error
}

// --- Point chart ---

func (m Model) renderChartView() string {
	height := m.contentHeight()
	snap := m.snapshot
	if snap.Point == nil {
		return m.renderTitledBox("Point Chart", m.placeholder("No point query yet. Fill in the form and press p."), m.width, height, false)
	}

	title := fmt.Sprintf("Point Chart  %.5f, %.5f", snap.Lat, snap.Lon)
	summary := m.metricSummary(snap.Point.Phenometrics, m.width-2)
	body := m.chartBody(snap.Annotations, snap.AnnotationErr, m.width-2, height-2, summary)
	return m.renderTitledBox(title, body, m.width, height, true)
}

// chartBody lays out a chart above its legend and the metric summary.
func (m Model) chartBody(ann chart.Annotations, annErr error, width, height int, summary []string) string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	bg := NewBgStyle(m.theme.FocusBg)

	var lines []string
	if annErr != nil {
		lines = append(lines,
			bg.Render("Chart unavailable: ", styles.WarningText)+bg.Render(firstLine(annErr.Error()), styles.Text), "")
	} else {
		plotHeight := height - len(summary) - 1
		if plot := RenderChart(ann, width, plotHeight, m.theme); plot != "" {
			lines = append(lines, plot, m.legend(ann, styles, bg))
		}
	}
	lines = append(lines, summary...)
	return strings.Join(lines, "\n")
}

// legend names every layer drawn by RenderChart in its own color.
func (m Model) legend(ann chart.Annotations, styles Styles, bg BgStyle) string {
	colored := func(glyph, label, color string) string {
		return bg.Render(glyph, lipgloss.NewStyle().Foreground(lipgloss.Color(color))) + bg.Space() +
			bg.Render(label, styles.MutedText)
	}
	guides := "LOS/AOS"
	if ann.LOS.From == ann.LOS.To {
		guides = "AOS"
	}
	parts := []string{
		colored(string(glyphSample), "raw", chart.ColorRaw),
		colored(string(glyphSmooth), "smoothed", chart.ColorSmooth),
		colored(string(glyphFill), "LIOS", m.theme.ChartFill),
		colored("-·", guides, m.theme.ChartGuide),
	}
	for _, mk := range ann.Markers {
		parts = append(parts, colored(mk.Label[:1], mk.Label, mk.Color))
	}
	if len(ann.Bands) > 0 {
		parts = append(parts, colored(string(glyphBand), "uncertainty", m.theme.ChartBand))
	}
	return bg.Join(parts, "  ")
}

// metricSummary packs "SOS 2021-01-17 7649.00" cells into lines of width.
func (m Model) metricSummary(rec wcpms.PhenometricsRecord, width int) []string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	bg := NewBgStyle(m.theme.FocusBg)

	var cells []string
	for _, code := range rec.Codes() {
		metric, _ := rec.Get(code)
		text := strings.ToUpper(code)
		value := "-"
		if metric.HasValue && !math.IsNaN(metric.Value) {
			value = formatMetricValue(metric.Value)
		}
		cell := bg.Render(text, styles.AccentText)
		if metric.HasTime {
			cell += bg.Space() + bg.Render(metric.Time.Format("2006-01-02"), styles.MutedText)
		}
		cell += bg.Space() + bg.Render(value, styles.Text)
		cells = append(cells, cell)
	}

	var lines []string
	var line string
	for _, cell := range cells {
		switch {
		case line == "":
			line = cell
		case lipgloss.Width(line)+3+lipgloss.Width(cell) > width:
			lines = append(lines, line)
			line = cell
		default:
			line += bg.Spaces(3) + cell
		}
	}
	if line != "" {
		lines = append(lines, line)
	}
	return lines
}

func formatMetricValue(v float64) string {
	if v == math.Trunc(v) && math.Abs(v) < 1e9 {
		return fmt.Sprintf("%.0f", v)
	}
	return fmt.Sprintf("%.4g", v)
}

func (m Model) placeholder(text string) string {
	styles := m.theme.Styles().WithBackground(m.theme.SurfaceAlt)
	bg := NewBgStyle(m.theme.SurfaceAlt)
	return bg.Render(text, styles.MutedText)
}

// --- Region ---

// refreshPixelChart rebuilds the region plot and the chart of the selected
// pixel from the current snapshot.
func (m *Model) refreshPixelChart() {
	snap := m.snapshot
	points := chart.ResultPoints(snap.RegionResults)
	if len(points) == 0 {
		points = chart.SeriesPoints(snap.RegionSeries)
	}
	m.region.plot = chart.NewRegionPlot(snap.Geometry, points)

	n := len(snap.RegionResults)
	if n == 0 {
		m.region.selected = -1
		m.region.chart, m.region.chartErr = chart.Annotations{}, nil
		return
	}
	m.region.selected = min(max(m.region.selected, 0), n-1)
	if m.session == nil {
		return
	}
	m.region.chart, m.region.chartErr = m.session.PixelAnnotations(m.region.selected)
}

func (m Model) handleRegionKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.snapshot.RegionResults)
	if n == 0 {
		return m, nil
	}
	prev := m.region.selected
	switch {
	case key.Matches(msg, m.keys.Down):
		m.region.selected = min(m.region.selected+1, n-1)
	case key.Matches(msg, m.keys.Up):
		m.region.selected = max(m.region.selected-1, 0)
	case key.Matches(msg, m.keys.Top):
		m.region.selected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.region.selected = n - 1
	case key.Matches(msg, m.keys.PageDown), key.Matches(msg, m.keys.HalfPageDown):
		m.region.selected = min(m.region.selected+10, n-1)
	case key.Matches(msg, m.keys.PageUp), key.Matches(msg, m.keys.HalfPageUp):
		m.region.selected = max(m.region.selected-10, 0)
	}
	if m.region.selected != prev {
		m.refreshPixelChart()
	}
	return m, nil
}

func (m Model) renderRegionView() string {
	height := m.contentHeight()
	snap := m.snapshot
	if snap.Geometry.IsZero() {
		return m.renderTitledBox("Region", m.placeholder("No region query yet. Set a GeoJSON path and press R."), m.width, height, false)
	}

	plot := m.region.plot
	mapTitle := fmt.Sprintf("Region  %d pixels  %.2f km²", len(plot.Points), snap.Geometry.AreaKm2())
	if out := plot.Outside(); out > 0 {
		mapTitle += fmt.Sprintf("  %d outside", out)
	}

	if m.width >= LayoutSplitWidth {
		mapWidth := m.width * 2 / 5
		chartWidth := m.width - mapWidth
		left := m.renderTitledBox(mapTitle, RenderRegion(plot, mapWidth-2, height-2, m.region.selected, m.theme), mapWidth, height, false)
		right := m.renderPixelBox(chartWidth, height)
		return lipgloss.JoinHorizontal(lipgloss.Top, left, right)
	}

	mapHeight := max(height/3, 5)
	top := m.renderTitledBox(mapTitle, RenderRegion(plot, m.width-2, mapHeight-2, m.region.selected, m.theme), m.width, mapHeight, false)
	return top + "\n" + m.renderPixelBox(m.width, height-mapHeight)
}

func (m Model) renderPixelBox(width, height int) string {
	snap := m.snapshot
	n := len(snap.RegionResults)
	if n == 0 || m.region.selected < 0 {
		msg := "Waiting for region phenometrics."
		if len(snap.RegionSeries) > 0 && snap.LastError != nil {
			msg = fmt.Sprintf("%d pixel series fetched, phenometrics failed.", len(snap.RegionSeries))
		}
		return m.renderTitledBox("Pixel", m.placeholder(msg), width, height, false)
	}

	res := snap.RegionResults[m.region.selected]
	title := fmt.Sprintf("Pixel %d/%d", m.region.selected+1, n)
	if res.Point != nil {
		title += fmt.Sprintf("  %.5f, %.5f", res.Point.Lat, res.Point.Lon)
	}
	summary := m.metricSummary(res.Phenometrics, width-2)
	body := m.chartBody(m.region.chart, m.region.chartErr, width-2, height-2, summary)
	return m.renderTitledBox(title, body, width, height, true)
}

// --- Metric descriptions ---

func (m *Model) updateMetricsViewport() {
	if m.width == 0 {
		return
	}
	width, height := m.width-2, m.contentHeight()-2
	if m.metricsViewport.Width == 0 {
		m.metricsViewport = viewport.New(width, height)
	}
	m.metricsViewport.Width = width
	m.metricsViewport.Height = height
	m.metricsViewport.Style = lipgloss.NewStyle().Background(lipgloss.Color(m.theme.FocusBg))
	m.metricsViewport.SetContent(m.renderDescriptions(width))
}

func (m Model) renderDescriptions(width int) string {
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	bg := NewBgStyle(m.theme.FocusBg)
	if len(m.snapshot.Descriptions) == 0 {
		return bg.Render("No metric descriptions loaded. Press u to load them.", styles.MutedText)
	}

	wrap := lipgloss.NewStyle().Width(max(width-4, 10))
	var lines []string
	for i, d := range m.snapshot.Descriptions {
		if i > 0 {
			lines = append(lines, "")
		}
		lines = append(lines, bg.Render(d.Code, styles.AccentText.Bold(true))+bg.Spaces(2)+bg.Render(d.Name, styles.Text))
		if d.Description != "" {
			for _, l := range strings.Split(wrap.Render(d.Description), "\n") {
				lines = append(lines, bg.Spaces(4)+bg.Render(strings.TrimRight(l, " "), styles.Text))
			}
		}
		field := func(label, value string) {
			if value != "" {
				lines = append(lines, bg.Spaces(4)+bg.Render(label, styles.FaintText)+bg.Space()+bg.Render(value, styles.MutedText))
			}
		}
		field("Method:", d.Method)
		field("Value:", string(d.Value))
		field("Time:", string(d.Time))
	}
	return strings.Join(lines, "\n")
}

func (m Model) handleMetricsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.RefreshLists):
		return m.startListQuery(state.KindDescribe)
	case key.Matches(msg, m.keys.Down):
		m.metricsViewport.ScrollDown(1)
	case key.Matches(msg, m.keys.Up):
		m.metricsViewport.ScrollUp(1)
	case key.Matches(msg, m.keys.Top):
		m.metricsViewport.GotoTop()
	case key.Matches(msg, m.keys.Bottom):
		m.metricsViewport.GotoBottom()
	case key.Matches(msg, m.keys.HalfPageDown):
		m.metricsViewport.HalfPageDown()
	case key.Matches(msg, m.keys.HalfPageUp):
		m.metricsViewport.HalfPageUp()
	case key.Matches(msg, m.keys.PageDown):
		m.metricsViewport.PageDown()
	case key.Matches(msg, m.keys.PageUp):
		m.metricsViewport.PageUp()
	}
	return m, nil
}

func (m Model) renderMetricsView() string {
	title := fmt.Sprintf("Metrics (%d)", len(m.snapshot.Descriptions))
	return m.renderTitledBox(title, m.metricsViewport.View(), m.width, m.contentHeight(), true)
}

// --- Collections ---

func (m Model) handleCollectionsKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.snapshot.Collections)
	switch {
	case key.Matches(msg, m.keys.RefreshLists):
		return m.startListQuery(state.KindCollections)
	case n == 0:
		return m, nil
	case key.Matches(msg, m.keys.Down):
		m.collectionsSelected = min(m.collectionsSelected+1, n-1)
	case key.Matches(msg, m.keys.Up):
		m.collectionsSelected = max(m.collectionsSelected-1, 0)
	case key.Matches(msg, m.keys.Top):
		m.collectionsSelected = 0
	case key.Matches(msg, m.keys.Bottom):
		m.collectionsSelected = n - 1
	case key.Matches(msg, m.keys.Confirm):
		name := m.snapshot.Collections[m.collectionsSelected]
		m.form.setValue(fieldCollection, name)
		m.savePrefs()
		m.notice = "Collection set to " + name
		m.currentView = ViewQuery
	}
	return m, nil
}

func (m Model) renderCollectionsView() string {
	height := m.contentHeight()
	styles := m.theme.Styles().WithBackground(m.theme.FocusBg)
	bg := NewBgStyle(m.theme.FocusBg)
	innerWidth := m.width - 2

	cols := m.snapshot.Collections
	if len(cols) == 0 {
		return m.renderTitledBox("Collections", m.placeholder("No collections loaded. Press u to load them."), m.width, height, false)
	}

	current := m.form.value(fieldCollection)
	rows := height - 2
	start := 0
	if m.collectionsSelected >= rows {
		start = m.collectionsSelected - rows + 1
	}

	var lines []string
	for i := start; i < len(cols) && len(lines) < rows; i++ {
		name := cols[i]
		mark := "  "
		if name == current {
			mark = "● "
		}
		if i == m.collectionsSelected {
			lines = append(lines, styles.Selected.Width(innerWidth).Render(mark+name))
			continue
		}
		lines = append(lines, bg.Render(mark, styles.SuccessText)+bg.Render(name, styles.Text))
	}
	title := fmt.Sprintf("Collections (%d)", len(cols))
	return m.renderTitledBox(title, strings.Join(lines, "\n"), m.width, height, true)
}
