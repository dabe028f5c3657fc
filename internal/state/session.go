package state

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/five82/wcpms/internal/chart"
	"github.com/five82/wcpms/internal/geo"
	"github.com/five82/wcpms/internal/wcpms"
)

// Session runs queries one at a time and records their results in a Store.
type Session struct {
	client   wcpms.PhenologyClient
	store    *Store
	logger   *slog.Logger
	point    chart.Options
	advanced chart.Options
}

// NewSession wires a client to a store. point and advanced are the chart
// options of the point chart and the per-pixel region chart.
func NewSession(client wcpms.PhenologyClient, store *Store, logger *slog.Logger, point, advanced chart.Options) *Session {
	if store == nil {
		store = &Store{}
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Session{client: client, store: store, logger: logger, point: point, advanced: advanced}
}

// Store returns the backing store.
func (s *Session) Store() *Store {
	return s.store
}

// QueryPoint fetches the metrics of one location and builds its chart.
// A result whose chart cannot be built is still stored; the reason is kept
// in Snapshot.AnnotationErr.
func (s *Session) QueryPoint(ctx context.Context, cube wcpms.CubeDescriptor, lat, lon float64) (*wcpms.PhenometricsResult, error) {
	run, err := s.store.Begin(KindPoint, cube, fmt.Sprintf("%.5f, %.5f", lat, lon))
	if err != nil {
		return nil, err
	}
	res, err := s.client.FetchPointPhenometrics(ctx, cube, lat, lon)
	if err != nil {
		s.finish(run, err)
		return nil, err
	}

	ann, annErr := chart.Build(res.Timeseries, res.Phenometrics, s.point)
	if annErr != nil {
		s.logger.Warn("chart annotations unavailable",
			"run", run.ID,
			"lat", lat,
			"lon", lon,
			"observations", res.Timeseries.Len(),
			"error", annErr,
		)
	}
	s.store.SetPoint(cube, lat, lon, res, ann, annErr)
	s.finish(run, nil)
	return res, nil
}

// QueryRegion fetches the series of every pixel inside geom and then their
// metrics. The series are stored even when the second request fails.
func (s *Session) QueryRegion(ctx context.Context, cube wcpms.CubeDescriptor, geom geo.Geometry) ([]wcpms.PhenometricsResult, error) {
	lat, lon := geom.Centroid()
	run, err := s.store.Begin(KindRegion, cube, fmt.Sprintf("%s near %.4f, %.4f", geom.Type, lat, lon))
	if err != nil {
		return nil, err
	}
	series, err := s.client.FetchRegionTimeseries(ctx, cube, geom)
	if err != nil {
		s.finish(run, err)
		return nil, err
	}
	s.store.SetRegionSeries(cube, geom, series)
	if len(series) == 0 {
		err := errors.New("no pixels inside the region")
		s.finish(run, err)
		return nil, err
	}

	results, err := s.client.FetchRegionPhenometrics(ctx, cube, series)
	if err != nil {
		s.finish(run, err)
		return nil, err
	}
	s.store.SetRegionResults(results)
	s.logger.Info("region query complete",
		"run", run.ID,
		"pixels", len(series),
		"results", len(results),
		"area_km2", geom.AreaKm2(),
	)
	s.finish(run, nil)
	return results, nil
}

// PixelAnnotations builds the per-pixel chart of the i-th region result.
// When the result carries no series, the series fetched for the same pixel
// is used instead.
func (s *Session) PixelAnnotations(i int) (chart.Annotations, error) {
	snap := s.store.Snapshot()
	if i < 0 || i >= len(snap.RegionResults) {
		return chart.Annotations{}, fmt.Errorf("pixel %d out of range [0, %d)", i, len(snap.RegionResults))
	}
	res := snap.RegionResults[i]
	series := res.Timeseries
	if series.Len() == 0 && i < len(snap.RegionSeries) {
		series = snap.RegionSeries[i].Series
	}
	return chart.Build(series, res.Phenometrics, s.advanced)
}

// Collections lists the data cubes the service can query.
func (s *Session) Collections(ctx context.Context) ([]string, error) {
	run, err := s.store.Begin(KindCollections, wcpms.CubeDescriptor{}, "")
	if err != nil {
		return nil, err
	}
	collections, err := s.client.ListCollections(ctx)
	if err == nil {
		s.store.SetCollections(collections)
	}
	s.finish(run, err)
	return collections, err
}

// Describe lists the metric documentation.
func (s *Session) Describe(ctx context.Context) ([]wcpms.MetricDescription, error) {
	run, err := s.store.Begin(KindDescribe, wcpms.CubeDescriptor{}, "")
	if err != nil {
		return nil, err
	}
	desc, err := s.client.DescribeMetrics(ctx)
	if err == nil {
		s.store.SetDescriptions(desc)
	}
	s.finish(run, err)
	return desc, err
}

func (s *Session) finish(run Run, err error) {
	run = s.store.Finish(run, err)
	if err != nil {
		s.logger.Error("query failed",
			"run", run.ID,
			"kind", run.Kind,
			"target", run.Target,
			"elapsed", run.Elapsed,
			"error", err,
		)
		return
	}
	s.logger.Info("query finished",
		"run", run.ID,
		"kind", run.Kind,
		"target", run.Target,
		"elapsed", run.Elapsed,
	)
}
