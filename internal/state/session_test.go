package state

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/five82/wcpms/internal/chart"
	"github.com/five82/wcpms/internal/geo"
	"github.com/five82/wcpms/internal/wcpms"
)

type fakeClient struct {
	point       *wcpms.PhenometricsResult
	series      []wcpms.RegionSeries
	results     []wcpms.PhenometricsResult
	collections []string
	err         error
	regionErr   error
	calls       int
}

func (f *fakeClient) FetchPointPhenometrics(context.Context, wcpms.CubeDescriptor, float64, float64) (*wcpms.PhenometricsResult, error) {
	f.calls++
	return f.point, f.err
}

func (f *fakeClient) FetchRegionTimeseries(context.Context, wcpms.CubeDescriptor, geo.Geometry) ([]wcpms.RegionSeries, error) {
	f.calls++
	return f.series, f.err
}

func (f *fakeClient) FetchRegionPhenometrics(context.Context, wcpms.CubeDescriptor, []wcpms.RegionSeries) ([]wcpms.PhenometricsResult, error) {
	f.calls++
	return f.results, f.regionErr
}

func (f *fakeClient) ListCollections(context.Context) ([]string, error) {
	f.calls++
	return f.collections, f.err
}

func (f *fakeClient) DescribeMetrics(context.Context) ([]wcpms.MetricDescription, error) {
	f.calls++
	return []wcpms.MetricDescription{{Code: "SOS"}}, f.err
}

func dated(day int, v float64) wcpms.Metric {
	return wcpms.Metric{
		Value:    v,
		Time:     time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, day),
		HasValue: true,
		HasTime:  true,
	}
}

func sampleResult(n int) wcpms.PhenometricsResult {
	var res wcpms.PhenometricsResult
	res.Phenometrics.SOS = dated(1, 7649)
	res.Phenometrics.POS = dated(90, 9000)
	res.Phenometrics.EOS = dated(193, 5489)
	res.Phenometrics.VOS = dated(353, 4817)
	for i := 0; i < n; i++ {
		res.Timeseries.Timeline = append(res.Timeseries.Timeline, time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC).AddDate(0, 0, 16*i))
		res.Timeseries.Values = append(res.Timeseries.Values, float64(5000+100*i))
	}
	return res
}

func testCube(t *testing.T) wcpms.CubeDescriptor {
	t.Helper()
	cube, err := wcpms.NewCube("S2-16D-2", "NDVI", "2021-01-01", "2021-12-31", "16D")
	if err != nil {
		t.Fatalf("NewCube: %v", err)
	}
	return cube
}

func TestSession_QueryPointBuildsAnnotations(t *testing.T) {
	res := sampleResult(23)
	client := &fakeClient{point: &res}
	s := NewSession(client, nil, nil, chart.DefaultOptions(), chart.AdvancedOptions(21))

	got, err := s.QueryPoint(context.Background(), testCube(t), -29.2, -55.95)
	if err != nil {
		t.Fatalf("QueryPoint returned error: %v", err)
	}
	if got.Phenometrics.SOS.Value != 7649 {
		t.Fatalf("sos_v = %v, want 7649", got.Phenometrics.SOS.Value)
	}
	snap := s.Store().Snapshot()
	if !snap.HasAnnotations || len(snap.Annotations.LIOS) != 5 {
		t.Fatalf("annotations = %#v, want LIOS polygon", snap.Annotations)
	}
	if snap.Lat != -29.2 || snap.Lon != -55.95 || !snap.HasCube {
		t.Fatalf("snapshot location = %v,%v", snap.Lat, snap.Lon)
	}
	if len(snap.History) != 1 || snap.History[0].Kind != KindPoint || snap.History[0].Failed() {
		t.Fatalf("History = %#v", snap.History)
	}
}

func TestSession_QueryPointKeepsResultWhenChartFails(t *testing.T) {
	res := sampleResult(2)
	s := NewSession(&fakeClient{point: &res}, nil, nil, chart.DefaultOptions(), chart.AdvancedOptions(21))

	if _, err := s.QueryPoint(context.Background(), testCube(t), 0, 0); err != nil {
		t.Fatalf("QueryPoint returned error: %v", err)
	}
	snap := s.Store().Snapshot()
	if snap.Point == nil || snap.HasAnnotations {
		t.Fatalf("snapshot = %#v, want result without annotations", snap)
	}
	if !errors.Is(snap.AnnotationErr, chart.ErrSeriesTooShort) {
		t.Fatalf("AnnotationErr = %v, want ErrSeriesTooShort", snap.AnnotationErr)
	}
}

func TestSession_QueryPointPropagatesClientError(t *testing.T) {
	want := &wcpms.HTTPError{Method: "GET", Route: wcpms.RoutePhenometrics, StatusCode: 502}
	s := NewSession(&fakeClient{err: want}, nil, nil, chart.DefaultOptions(), chart.AdvancedOptions(21))

	_, err := s.QueryPoint(context.Background(), testCube(t), 0, 0)
	var httpErr *wcpms.HTTPError
	if !errors.As(err, &httpErr) {
		t.Fatalf("error = %v, want *wcpms.HTTPError", err)
	}
	snap := s.Store().Snapshot()
	if snap.Point != nil || snap.LastError == nil || snap.Busy() {
		t.Fatalf("snapshot after failure = %#v", snap)
	}
}

func TestSession_QueryRegion(t *testing.T) {
	pixel := sampleResult(23)
	pixel.Point = &wcpms.Point{Lon: 0.5, Lat: 0.5}
	noSeries := sampleResult(0)
	series := []wcpms.RegionSeries{
		{Point: &wcpms.Point{Lon: 0.5, Lat: 0.5}, Series: pixel.Timeseries},
		{Point: &wcpms.Point{Lon: 0.6, Lat: 0.5}, Series: sampleResult(23).Timeseries},
	}
	client := &fakeClient{series: series, results: []wcpms.PhenometricsResult{pixel, noSeries}}
	s := NewSession(client, nil, nil, chart.DefaultOptions(), chart.AdvancedOptions(21))

	geom := geo.NewPolygon(geo.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}})
	results, err := s.QueryRegion(context.Background(), testCube(t), geom)
	if err != nil {
		t.Fatalf("QueryRegion returned error: %v", err)
	}
	if len(results) != 2 || client.calls != 2 {
		t.Fatalf("results = %d, calls = %d, want 2 and 2", len(results), client.calls)
	}
	snap := s.Store().Snapshot()
	if len(snap.RegionSeries) != 2 || len(snap.RegionResults) != 2 || snap.Geometry.Type != "Polygon" {
		t.Fatalf("region snapshot = %#v", snap)
	}

	ann, err := s.PixelAnnotations(0)
	if err != nil {
		t.Fatalf("PixelAnnotations(0) returned error: %v", err)
	}
	if len(ann.Raw) != 21 || len(ann.Bands) != 2 {
		t.Fatalf("pixel chart raw=%d bands=%d, want 21 and 2", len(ann.Raw), len(ann.Bands))
	}
	ann, err = s.PixelAnnotations(1)
	if err != nil {
		t.Fatalf("PixelAnnotations(1) returned error: %v", err)
	}
	if len(ann.Raw) != 21 {
		t.Fatalf("fallback series not used: raw=%d", len(ann.Raw))
	}
	if _, err := s.PixelAnnotations(2); err == nil {
		t.Fatalf("PixelAnnotations(2) returned nil error")
	}
}

func TestSession_QueryRegionKeepsSeriesOnSecondFailure(t *testing.T) {
	client := &fakeClient{
		series:    []wcpms.RegionSeries{{Series: sampleResult(3).Timeseries}},
		regionErr: errors.New("phenometrics failed"),
	}
	s := NewSession(client, nil, nil, chart.DefaultOptions(), chart.AdvancedOptions(21))
	geom := geo.NewPolygon(geo.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}})

	if _, err := s.QueryRegion(context.Background(), testCube(t), geom); err == nil {
		t.Fatalf("QueryRegion returned nil error")
	}
	snap := s.Store().Snapshot()
	if len(snap.RegionSeries) != 1 || len(snap.RegionResults) != 0 {
		t.Fatalf("series/results = %d/%d, want 1/0", len(snap.RegionSeries), len(snap.RegionResults))
	}

	client.series = nil
	if _, err := s.QueryRegion(context.Background(), testCube(t), geom); err == nil {
		t.Fatalf("QueryRegion with no pixels returned nil error")
	}
}

func TestSession_CollectionsAndDescribe(t *testing.T) {
	client := &fakeClient{collections: []string{"S2-16D-2"}}
	s := NewSession(client, nil, nil, chart.DefaultOptions(), chart.AdvancedOptions(21))

	if _, err := s.Collections(context.Background()); err != nil {
		t.Fatalf("Collections returned error: %v", err)
	}
	if _, err := s.Describe(context.Background()); err != nil {
		t.Fatalf("Describe returned error: %v", err)
	}
	snap := s.Store().Snapshot()
	if len(snap.Collections) != 1 || len(snap.Descriptions) != 1 || len(snap.History) != 2 {
		t.Fatalf("snapshot = %#v", snap)
	}
}

func TestSession_RefusesWhileBusy(t *testing.T) {
	client := &fakeClient{}
	store := &Store{}
	s := NewSession(client, store, nil, chart.DefaultOptions(), chart.AdvancedOptions(21))

	run, err := store.Begin(KindPoint, wcpms.CubeDescriptor{}, "")
	if err != nil {
		t.Fatalf("Begin returned error: %v", err)
	}
	if _, err := s.Collections(context.Background()); !errors.Is(err, ErrBusy) {
		t.Fatalf("Collections error = %v, want ErrBusy", err)
	}
	if client.calls != 0 {
		t.Fatalf("client called %d times while busy", client.calls)
	}
	store.Finish(run, nil)
}
