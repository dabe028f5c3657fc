package ui

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/wcpms/internal/config"
	"github.com/five82/wcpms/internal/prefs"
	"github.com/five82/wcpms/internal/wcpms"
)

// Query form fields, in display order.
const (
	fieldCollection = iota
	fieldBand
	fieldStart
	fieldEnd
	fieldFreq
	fieldLat
	fieldLon
	fieldGeometry
	fieldCount
)

var fieldLabels = [fieldCount]string{
	"Collection",
	"Band",
	"Start date",
	"End date",
	"Frequency",
	"Latitude",
	"Longitude",
	"Geometry",
}

var fieldPlaceholders = [fieldCount]string{
	"e.g. S2-16D-2",
	"e.g. NDVI",
	"YYYY-MM-DD",
	"YYYY-MM-DD",
	"e.g. 16D",
	"e.g. -29.202633",
	"e.g. -55.944376",
	"path to a GeoJSON polygon",
}

const formLabelWidth = 12

// queryForm holds the cube, location and region inputs.
type queryForm struct {
	inputs  [fieldCount]textinput.Model
	focused int
	editing bool
}

func newQueryForm(cube config.CubeConfig, last prefs.LastQuery) queryForm {
	values := [fieldCount]string{
		pick(last.Collection, cube.Collection),
		pick(last.Band, cube.Band),
		pick(last.StartDate, cube.StartDate),
		pick(last.EndDate, cube.EndDate),
		pick(last.Freq, cube.Freq),
		last.Latitude,
		last.Longitude,
		last.GeometryPath,
	}

	var f queryForm
	for i := range f.inputs {
		ti := textinput.New()
		ti.Prompt = ""
		ti.Placeholder = fieldPlaceholders[i]
		ti.CharLimit = 256
		ti.Width = 40
		ti.SetValue(values[i])
		f.inputs[i] = ti
	}
	return f
}

func pick(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func (f *queryForm) setWidth(width int) {
	w := max(width-formLabelWidth-8, 10)
	for i := range f.inputs {
		f.inputs[i].Width = w
	}
}

// focus puts field i into edit mode.
func (f *queryForm) focus(i int) tea.Cmd {
	f.inputs[f.focused].Blur()
	f.focused = (i + fieldCount) % fieldCount
	f.editing = true
	return f.inputs[f.focused].Focus()
}

func (f *queryForm) blur() {
	f.inputs[f.focused].Blur()
	f.editing = false
}

func (f *queryForm) move(delta int) {
	f.focused = (f.focused + delta + fieldCount) % fieldCount
}

func (f queryForm) value(i int) string {
	return strings.TrimSpace(f.inputs[i].Value())
}

func (f *queryForm) setValue(i int, v string) {
	f.inputs[i].SetValue(v)
}

// cube builds the descriptor from the cube fields.
func (f queryForm) cube() (wcpms.CubeDescriptor, error) {
	return wcpms.NewCube(
		f.value(fieldCollection),
		f.value(fieldBand),
		f.value(fieldStart),
		f.value(fieldEnd),
		f.value(fieldFreq),
	)
}

// location parses the latitude and longitude fields.
func (f queryForm) location() (lat, lon float64, err error) {
	lat, err = parseCoordinate("latitude", f.value(fieldLat))
	if err != nil {
		return 0, 0, err
	}
	lon, err = parseCoordinate("longitude", f.value(fieldLon))
	if err != nil {
		return 0, 0, err
	}
	return lat, lon, nil
}

func parseCoordinate(name, s string) (float64, error) {
	if s == "" {
		return 0, fmt.Errorf("%s is empty", name)
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0, fmt.Errorf("%s %q is not a number", name, s)
	}
	return v, nil
}

// geometryPath returns the expanded geometry file path.
func (f queryForm) geometryPath() (string, error) {
	raw := f.value(fieldGeometry)
	if raw == "" {
		return "", errors.New("geometry path is empty")
	}
	return config.ResolvePath(raw)
}

func (f queryForm) lastQuery() prefs.LastQuery {
	return prefs.LastQuery{
		Collection:   f.value(fieldCollection),
		Band:         f.value(fieldBand),
		StartDate:    f.value(fieldStart),
		EndDate:      f.value(fieldEnd),
		Freq:         f.value(fieldFreq),
		Latitude:     f.value(fieldLat),
		Longitude:    f.value(fieldLon),
		GeometryPath: f.value(fieldGeometry),
	}
}

// handleFormKey handles keyboard input while a field is being edited.
// Enter on a coordinate submits a point query, on the geometry field a
// region query, and moves to the next field elsewhere.
func (m Model) handleFormKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case msg.String() == "ctrl+c":
		return m, tea.Quit

	case key.Matches(msg, m.keys.Escape):
		m.form.blur()
		m.savePrefs()
		return m, nil

	case msg.Type == tea.KeyTab, msg.Type == tea.KeyDown:
		cmd := m.form.focus(m.form.focused + 1)
		return m, cmd

	case msg.Type == tea.KeyShiftTab, msg.Type == tea.KeyUp:
		cmd := m.form.focus(m.form.focused - 1)
		return m, cmd

	case key.Matches(msg, m.keys.Confirm):
		switch m.form.focused {
		case fieldLat, fieldLon:
			m.form.blur()
			return m.startPointQuery()
		case fieldGeometry:
			m.form.blur()
			return m.startRegionQuery()
		}
		cmd := m.form.focus(m.form.focused + 1)
		return m, cmd
	}

	var cmd tea.Cmd
	m.form.inputs[m.form.focused], cmd = m.form.inputs[m.form.focused].Update(msg)
	return m, cmd
}

// handleQueryKey handles navigation of the form when no field is edited.
func (m Model) handleQueryKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch {
	case key.Matches(msg, m.keys.Down):
		m.form.move(1)
	case key.Matches(msg, m.keys.Up):
		m.form.move(-1)
	case key.Matches(msg, m.keys.Top):
		m.form.focused = 0
	case key.Matches(msg, m.keys.Bottom):
		m.form.focused = fieldCount - 1
	case key.Matches(msg, m.keys.Confirm):
		cmd := m.form.focus(m.form.focused)
		return m, cmd
	}
	return m, nil
}

// renderQueryView renders the form above the run history.
func (m Model) renderQueryView() string {
	focused := m.form.editing
	bgColor := m.theme.SurfaceAlt
	if focused {
		bgColor = m.theme.FocusBg
	}
	styles := m.theme.Styles().WithBackground(bgColor)
	bg := NewBgStyle(bgColor)
	innerWidth := m.width - 4

	var lines []string
	section := func(title string) {
		lines = append(lines, bg.Render(title, styles.AccentText.Bold(true)))
	}

	section("Cube")
	for i := 0; i < fieldCount; i++ {
		if i == fieldLat {
			lines = append(lines, "")
			section("Point")
		}
		if i == fieldGeometry {
			lines = append(lines, "")
			section("Region")
		}
		label := lipgloss.NewStyle().Width(formLabelWidth).Render(fieldLabels[i])
		labelStyle := styles.MutedText
		marker := "  "
		if i == m.form.focused {
			labelStyle = styles.AccentText
			marker = "› "
		}
		lines = append(lines, bg.Render(marker, styles.AccentText)+
			bg.Render(label, labelStyle)+
			m.form.inputs[i].View())
	}

	lines = append(lines, "")
	section("Recent runs")
	if len(m.snapshot.History) == 0 {
		lines = append(lines, bg.Render("  No queries yet", styles.FaintText))
	}
	room := m.contentHeight() - 2 - len(lines)
	for i := len(m.snapshot.History) - 1; i >= 0 && room > 0; i-- {
		lines = append(lines, "  "+m.formatRun(m.snapshot.History[i], innerWidth-2, styles, bg))
		room--
	}

	return m.renderTitledBox("Query", strings.Join(lines, "\n"), m.width, m.contentHeight(), focused)
}
