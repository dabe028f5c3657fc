package state

import (
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/five82/wcpms/internal/chart"
	"github.com/five82/wcpms/internal/geo"
	"github.com/five82/wcpms/internal/wcpms"
)

// ErrBusy is returned by Begin while another request is in flight.
var ErrBusy = errors.New("a request is already in flight")

// DefaultMaxHistory bounds the run history when Store.MaxHistory is zero.
const DefaultMaxHistory = 50

// Kind identifies the operation behind a run.
type Kind string

const (
	KindPoint       Kind = "point"
	KindRegion      Kind = "region"
	KindCollections Kind = "collections"
	KindDescribe    Kind = "describe"
)

// Title returns the kind for display, e.g. "Point query".
func (k Kind) Title() string {
	switch k {
	case KindPoint:
		return "Point query"
	case KindRegion:
		return "Region query"
	case KindCollections:
		return "Collection list"
	case KindDescribe:
		return "Metric description"
	}
	return string(k)
}

// Run records one query against the service.
type Run struct {
	ID      uuid.UUID
	Kind    Kind
	Cube    wcpms.CubeDescriptor
	Target  string
	Started time.Time
	Elapsed time.Duration
	Err     error
}

// Failed reports whether the run ended with an error.
func (r Run) Failed() bool {
	return r.Err != nil
}

// ShortID returns the first block of the run id, for display.
func (r Run) ShortID() string {
	return r.ID.String()[:8]
}

// Snapshot represents the latest data available to the UI.
type Snapshot struct {
	Cube    wcpms.CubeDescriptor
	HasCube bool

	Lat, Lon       float64
	Point          *wcpms.PhenometricsResult
	Annotations    chart.Annotations
	HasAnnotations bool
	AnnotationErr  error

	Geometry      geo.Geometry
	RegionSeries  []wcpms.RegionSeries
	RegionResults []wcpms.PhenometricsResult

	Collections  []string
	Descriptions []wcpms.MetricDescription

	History  []Run
	InFlight *Run

	LastUpdated         time.Time
	LastError           error
	ConsecutiveFailures int
}

// IsOffline returns true when the last requests failed to reach the service.
func (s Snapshot) IsOffline() bool {
	var transport *wcpms.TransportError
	return s.ConsecutiveFailures >= 2 && errors.As(s.LastError, &transport)
}

// Busy reports whether a request is in flight.
func (s Snapshot) Busy() bool {
	return s.InFlight != nil
}

// Store coordinates updates from request commands with UI reads.
type Store struct {
	// MaxHistory bounds History; zero means DefaultMaxHistory.
	MaxHistory int

	mu       sync.RWMutex
	snapshot Snapshot
}

// Begin marks a run as in flight. Only one run may be in flight at a time.
func (s *Store) Begin(kind Kind, cube wcpms.CubeDescriptor, target string) (Run, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.snapshot.InFlight != nil {
		return Run{}, fmt.Errorf("%w: %s", ErrBusy, s.snapshot.InFlight.Kind)
	}
	run := Run{
		ID:      uuid.New(),
		Kind:    kind,
		Cube:    cube,
		Target:  target,
		Started: time.Now(),
	}
	s.snapshot.InFlight = &run
	return run, nil
}

// Finish records the outcome of a run started with Begin. When err is non-nil
// the previous data is kept but the error is recorded for visibility.
func (s *Store) Finish(run Run, err error) Run {
	s.mu.Lock()
	defer s.mu.Unlock()

	run.Elapsed = time.Since(run.Started)
	run.Err = err
	if s.snapshot.InFlight != nil && s.snapshot.InFlight.ID == run.ID {
		s.snapshot.InFlight = nil
	}

	limit := s.MaxHistory
	if limit <= 0 {
		limit = DefaultMaxHistory
	}
	s.snapshot.History = append(s.snapshot.History, run)
	if over := len(s.snapshot.History) - limit; over > 0 {
		s.snapshot.History = slices.Delete(s.snapshot.History, 0, over)
	}

	s.snapshot.LastUpdated = time.Now()
	if err != nil {
		s.snapshot.LastError = err
		s.snapshot.ConsecutiveFailures++
		return run
	}
	s.snapshot.LastError = nil
	s.snapshot.ConsecutiveFailures = 0
	return run
}

// SetPoint stores a point result with its annotations, or the reason none
// could be built.
func (s *Store) SetPoint(cube wcpms.CubeDescriptor, lat, lon float64, res *wcpms.PhenometricsResult, ann chart.Annotations, annErr error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Cube, s.snapshot.HasCube = cube, true
	s.snapshot.Lat, s.snapshot.Lon = lat, lon
	s.snapshot.Point = cloneResult(res)
	s.snapshot.AnnotationErr = annErr
	s.snapshot.HasAnnotations = annErr == nil && res != nil
	if s.snapshot.HasAnnotations {
		s.snapshot.Annotations = cloneAnnotations(ann)
	} else {
		s.snapshot.Annotations = chart.Annotations{}
	}
}

// SetRegionSeries stores the series of a region and clears older results.
func (s *Store) SetRegionSeries(cube wcpms.CubeDescriptor, geom geo.Geometry, series []wcpms.RegionSeries) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Cube, s.snapshot.HasCube = cube, true
	s.snapshot.Geometry = geom
	s.snapshot.RegionSeries = slices.Clone(series)
	s.snapshot.RegionResults = nil
}

// SetRegionResults stores the metrics computed for the region series.
func (s *Store) SetRegionResults(results []wcpms.PhenometricsResult) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.RegionResults = cloneResults(results)
}

// SetCollections stores the collection list.
func (s *Store) SetCollections(collections []string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Collections = slices.Clone(collections)
}

// SetDescriptions stores the metric documentation.
func (s *Store) SetDescriptions(desc []wcpms.MetricDescription) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.snapshot.Descriptions = slices.Clone(desc)
}

// Snapshot returns a copy of the current snapshot.
func (s *Store) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	snap := s.snapshot
	snap.Point = cloneResult(s.snapshot.Point)
	snap.Annotations = cloneAnnotations(s.snapshot.Annotations)
	snap.RegionSeries = slices.Clone(s.snapshot.RegionSeries)
	snap.RegionResults = cloneResults(s.snapshot.RegionResults)
	snap.Collections = slices.Clone(s.snapshot.Collections)
	snap.Descriptions = slices.Clone(s.snapshot.Descriptions)
	snap.History = slices.Clone(s.snapshot.History)
	if s.snapshot.InFlight != nil {
		run := *s.snapshot.InFlight
		snap.InFlight = &run
	}
	if s.snapshot.LastError != nil {
		snap.LastError = fmt.Errorf("%w", s.snapshot.LastError)
	}
	return snap
}

func cloneResult(res *wcpms.PhenometricsResult) *wcpms.PhenometricsResult {
	if res == nil {
		return nil
	}
	dup := *res
	if res.Point != nil {
		p := *res.Point
		dup.Point = &p
	}
	dup.Phenometrics.Other = maps.Clone(res.Phenometrics.Other)
	dup.Timeseries.Timeline = slices.Clone(res.Timeseries.Timeline)
	dup.Timeseries.Values = slices.Clone(res.Timeseries.Values)
	return &dup
}

func cloneResults(results []wcpms.PhenometricsResult) []wcpms.PhenometricsResult {
	if len(results) == 0 {
		return nil
	}
	dup := make([]wcpms.PhenometricsResult, len(results))
	for i := range results {
		dup[i] = *cloneResult(&results[i])
	}
	return dup
}

func cloneAnnotations(a chart.Annotations) chart.Annotations {
	a.Raw = slices.Clone(a.Raw)
	a.Smooth = slices.Clone(a.Smooth)
	a.LIOS = slices.Clone(a.LIOS)
	a.Markers = slices.Clone(a.Markers)
	a.Bands = slices.Clone(a.Bands)
	return a
}
