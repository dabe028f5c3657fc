package ui

import (
	"context"
	"errors"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/five82/wcpms/internal/geo"
	"github.com/five82/wcpms/internal/state"
	"github.com/five82/wcpms/internal/wcpms"
)

// queryDoneMsg reports the end of one request.
type queryDoneMsg struct {
	kind state.Kind
	err  error
}

// errNoSession is reported when the model was built without a session.
var errNoSession = errors.New("no service session")

// startPointQuery validates the form and issues the point request.
func (m Model) startPointQuery() (tea.Model, tea.Cmd) {
	cube, err := m.form.cube()
	if err != nil {
		m.notice = "Invalid cube: " + err.Error()
		return m, nil
	}
	lat, lon, err := m.form.location()
	if err != nil {
		m.notice = "Invalid location: " + err.Error()
		return m, nil
	}
	if m.snapshot.Busy() {
		m.notice = "A request is already running"
		return m, nil
	}
	m.savePrefs()
	m.notice = "Querying phenometrics..."
	return m, pointQueryCmd(m.ctx, m.session, cube, lat, lon)
}

// startRegionQuery validates the form and issues the two region requests.
func (m Model) startRegionQuery() (tea.Model, tea.Cmd) {
	cube, err := m.form.cube()
	if err != nil {
		m.notice = "Invalid cube: " + err.Error()
		return m, nil
	}
	path, err := m.form.geometryPath()
	if err != nil {
		m.notice = "Invalid geometry: " + err.Error()
		return m, nil
	}
	if m.snapshot.Busy() {
		m.notice = "A request is already running"
		return m, nil
	}
	m.savePrefs()
	m.notice = "Querying region time series..."
	return m, regionQueryCmd(m.ctx, m.session, cube, path)
}

// startListQuery issues a collections or describe request.
func (m Model) startListQuery(kind state.Kind) (tea.Model, tea.Cmd) {
	if m.snapshot.Busy() {
		m.notice = "A request is already running"
		return m, nil
	}
	m.notice = "Loading " + string(kind) + "..."
	return m, listQueryCmd(m.ctx, m.session, kind)
}

func pointQueryCmd(ctx context.Context, s *state.Session, cube wcpms.CubeDescriptor, lat, lon float64) tea.Cmd {
	return func() tea.Msg {
		if s == nil {
			return queryDoneMsg{kind: state.KindPoint, err: errNoSession}
		}
		_, err := s.QueryPoint(ctx, cube, lat, lon)
		return queryDoneMsg{kind: state.KindPoint, err: err}
	}
}

func regionQueryCmd(ctx context.Context, s *state.Session, cube wcpms.CubeDescriptor, path string) tea.Cmd {
	return func() tea.Msg {
		if s == nil {
			return queryDoneMsg{kind: state.KindRegion, err: errNoSession}
		}
		geom, err := geo.ReadFile(path)
		if err != nil {
			return queryDoneMsg{kind: state.KindRegion, err: err}
		}
		_, err = s.QueryRegion(ctx, cube, geom)
		return queryDoneMsg{kind: state.KindRegion, err: err}
	}
}

func listQueryCmd(ctx context.Context, s *state.Session, kind state.Kind) tea.Cmd {
	return func() tea.Msg {
		if s == nil {
			return queryDoneMsg{kind: kind, err: errNoSession}
		}
		var err error
		switch kind {
		case state.KindCollections:
			_, err = s.Collections(ctx)
		default:
			_, err = s.Describe(ctx)
		}
		return queryDoneMsg{kind: kind, err: err}
	}
}
