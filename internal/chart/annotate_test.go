package chart

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/five82/wcpms/internal/geo"
	"github.com/five82/wcpms/internal/wcpms"
)

const referenceRecord = `{
	"aos_v": 2975.66650390625,
	"bse_v": 6233.1669921875,
	"eos_t": "2021-07-13T00:00:00",
	"eos_v": 5489.0,
	"pos_t": "2021-04-01T00:00:00",
	"pos_v": 9000.0,
	"sos_t": "2021-01-02T00:00:00",
	"sos_v": 7649.0,
	"vos_t": "2021-12-20T00:00:00",
	"vos_v": 4817.33349609375
}`

func day(s string) time.Time {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		panic(err)
	}
	return t
}

func referenceInputs(t *testing.T, n int) (wcpms.TimeSeries, wcpms.PhenometricsRecord) {
	t.Helper()
	var rec wcpms.PhenometricsRecord
	if err := json.Unmarshal([]byte(referenceRecord), &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	var ts wcpms.TimeSeries
	start := day("2021-01-01")
	for i := 0; i < n; i++ {
		ts.Timeline = append(ts.Timeline, start.AddDate(0, 0, 16*i))
		ts.Values = append(ts.Values, 5000+float64((i*733)%4000))
	}
	return ts, rec
}

func TestBuild_LIOSPolygon(t *testing.T) {
	ts, rec := referenceInputs(t, 23)
	ann, err := Build(ts, rec, DefaultOptions())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(ann.LIOS) != 5 {
		t.Fatalf("LIOS has %d vertices, want 5", len(ann.LIOS))
	}
	first, last := ann.LIOS[0], ann.LIOS[4]
	if first.V != 0 || last.V != 0 {
		t.Fatalf("LIOS ends = %v, %v, want y = 0", first.V, last.V)
	}
	if !first.T.Equal(day("2021-01-02")) || !last.T.Equal(day("2021-07-13")) {
		t.Fatalf("LIOS ends at %v..%v, want sos_t..eos_t", first.T, last.T)
	}
	if ann.LIOS[1].V != 7649 || ann.LIOS[2].V != 9000 || ann.LIOS[3].V != 5489 {
		t.Fatalf("LIOS values = %v, want sos/pos/eos", ann.LIOS)
	}
}

func TestBuild_GuidesAndMarkers(t *testing.T) {
	ts, rec := referenceInputs(t, 23)
	ann, err := Build(ts, rec, DefaultOptions())
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if ann.LOS.From.V != 7649 || ann.LOS.To.V != 5489 {
		t.Fatalf("LOS = %#v, want sos->eos", ann.LOS)
	}
	if !ann.AOS.From.T.Equal(ann.AOS.To.T) || ann.AOS.From.V != 9000 || ann.AOS.To.V != 0 {
		t.Fatalf("AOS = %#v, want vertical at pos_t from pos_v to 0", ann.AOS)
	}
	wantColors := []string{"#008c00", "#0009e3", "#8a6100", "#e35400"}
	if len(ann.Markers) != 4 {
		t.Fatalf("markers = %d, want 4", len(ann.Markers))
	}
	for i, m := range ann.Markers {
		if m.Color != wantColors[i] {
			t.Fatalf("marker %s color = %s, want %s", m.Code, m.Color, wantColors[i])
		}
		if m.Label != strings.ToUpper(m.Code) {
			t.Fatalf("marker label = %q", m.Label)
		}
	}
	if MarkerColor("VOS") != "#e35400" || MarkerColor("los") != "" {
		t.Fatalf("MarkerColor lookup mismatch")
	}
	if len(ann.Bands) != 0 {
		t.Fatalf("default options produced %d bands, want none", len(ann.Bands))
	}
	if len(ann.Raw) != 23 || len(ann.Smooth) != 23 {
		t.Fatalf("raw/smooth lengths = %d/%d, want 23", len(ann.Raw), len(ann.Smooth))
	}
}

func TestBuild_AdvancedWindowAndBands(t *testing.T) {
	ts, rec := referenceInputs(t, 23)
	ann, err := Build(ts, rec, AdvancedOptions(21))
	if err != nil {
		t.Fatalf("Build returned error: %v", err)
	}
	if len(ann.Raw) != 21 || len(ann.Smooth) != 21 {
		t.Fatalf("raw/smooth lengths = %d/%d, want 21", len(ann.Raw), len(ann.Smooth))
	}
	// The window cuts an already smoothed series, so its last point is an
	// interior average and not an edge fit.
	v := ts.Values
	if want := (v[19] + v[20] + v[21]) / 3; !almostEqual(ann.Smooth[20].V, want) {
		t.Fatalf("Smooth[20] = %v, want %v", ann.Smooth[20].V, want)
	}
	if (ann.LOS != Segment{}) {
		t.Fatalf("LOS = %#v, want none for the per-pixel chart", ann.LOS)
	}
	if ann.AOS.From.V != 9000 {
		t.Fatalf("AOS = %#v, want drawn from POS", ann.AOS)
	}
	if len(ann.Bands) != 2 {
		t.Fatalf("bands = %d, want 2", len(ann.Bands))
	}
	sos := ann.Bands[0]
	if sos.Code != wcpms.CodeSOS || !sos.Start.Equal(day("2020-12-17")) || !sos.End.Equal(day("2021-01-18")) {
		t.Fatalf("SOS band = %#v, want 2020-12-17..2021-01-18", sos)
	}
	if !sos.Contains(day("2021-01-02")) || sos.Contains(day("2021-01-19")) {
		t.Fatalf("SOS band containment mismatch")
	}
	eos := ann.Bands[1]
	if eos.Code != wcpms.CodeEOS || eos.End.Sub(eos.Start) != 2*DefaultUncertainty {
		t.Fatalf("EOS band = %#v, want 32 days wide", eos)
	}

	lo, hi := ann.TimeRange()
	if !lo.Equal(day("2020-12-17")) || !hi.Equal(day("2021-12-20")) {
		t.Fatalf("TimeRange = %v..%v", lo, hi)
	}

	if got := AdvancedOptions(0).Window; got != DefaultAdvancedWindow {
		t.Fatalf("AdvancedOptions(0).Window = %d, want %d", got, DefaultAdvancedWindow)
	}
}

func TestBuild_Preconditions(t *testing.T) {
	ts, rec := referenceInputs(t, 2)
	if _, err := Build(ts, rec, DefaultOptions()); !errors.Is(err, ErrSeriesTooShort) {
		t.Fatalf("Build(short series) error = %v, want ErrSeriesTooShort", err)
	}

	ts, rec = referenceInputs(t, 10)
	rec.Set(wcpms.CodeVOS, wcpms.Metric{Value: 1, HasValue: true})
	if _, err := Build(ts, rec, DefaultOptions()); err == nil || !strings.Contains(err.Error(), "vos") {
		t.Fatalf("Build(undated vos) error = %v, want missing vos", err)
	}

	ts.Values = ts.Values[:5]
	if _, err := Build(ts, rec, Options{}); err == nil {
		t.Fatalf("Build(mismatched series) returned nil error")
	}
}

func TestNewRegionPlot(t *testing.T) {
	geom := geo.NewPolygon(geo.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}})
	plot := NewRegionPlot(geom, []PixelPoint{
		{Index: 0, Point: wcpms.Point{Lon: 0.5, Lat: 0.5}},
		{Index: 1, Point: wcpms.Point{Lon: 2, Lat: 0.5}},
	})
	if len(plot.Points) != 2 || !plot.Points[0].Inside || plot.Points[1].Inside {
		t.Fatalf("points = %#v, want first inside, second outside", plot.Points)
	}
	if plot.Outside() != 1 {
		t.Fatalf("Outside = %d, want 1", plot.Outside())
	}
	if plot.Bounds.MaxLon != 2 || plot.Bounds.MinLat != 0 {
		t.Fatalf("Bounds = %#v, want extended to lon 2", plot.Bounds)
	}
	if len(plot.Outline) != 1 {
		t.Fatalf("Outline rings = %d, want 1", len(plot.Outline))
	}
}

func TestResultAndSeriesPoints(t *testing.T) {
	results := []wcpms.PhenometricsResult{{Point: &wcpms.Point{Lon: 1, Lat: 2}}, {}}
	if got := ResultPoints(results); len(got) != 1 || got[0].Lat != 2 || got[0].Index != 0 {
		t.Fatalf("ResultPoints = %v", got)
	}
	series := []wcpms.RegionSeries{{}, {Point: &wcpms.Point{Lon: 3, Lat: 4}}}
	if got := SeriesPoints(series); len(got) != 1 || got[0].Lon != 3 || got[0].Index != 1 {
		t.Fatalf("SeriesPoints = %v", got)
	}
}

func TestNewRegionPlot_KeepsResultIndexPastMissingPoint(t *testing.T) {
	geom := geo.NewPolygon(geo.Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}, {0, 0}})
	results := []wcpms.PhenometricsResult{
		{Point: &wcpms.Point{Lon: 0.2, Lat: 0.2}},
		{},
		{Point: &wcpms.Point{Lon: 0.8, Lat: 0.8}},
	}
	plot := NewRegionPlot(geom, ResultPoints(results))
	if len(plot.Points) != 2 {
		t.Fatalf("points = %d, want 2", len(plot.Points))
	}
	if got := plot.Points[1]; got.Index != 2 || got.Lon != 0.8 {
		t.Fatalf("second point = %#v, want index 2 at lon 0.8", got)
	}
}
