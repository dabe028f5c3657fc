package chart

import (
	"fmt"
	"strings"
	"time"

	"github.com/five82/wcpms/internal/wcpms"
)

// Colours of the reference phenology plot.
const (
	ColorRaw         = "#17BECF"
	ColorSmooth      = "#ff0000"
	ColorLIOSFill    = "rgba(153,247,254,0.4)"
	ColorGuide       = "#000000"
	ColorUncertainty = "green"
	DashGuide        = "dashdot"
)

// DefaultUncertainty is the half-width of the bands drawn around SOS and EOS.
const DefaultUncertainty = 16 * 24 * time.Hour

// DefaultAdvancedWindow is the number of leading observations kept by
// AdvancedOptions when no window is configured.
const DefaultAdvancedWindow = 21

var markerColors = map[string]string{
	wcpms.CodeSOS: "#008c00",
	wcpms.CodePOS: "#0009e3",
	wcpms.CodeEOS: "#8a6100",
	wcpms.CodeVOS: "#e35400",
}

// MarkerCodes are the metrics drawn as markers, in drawing order.
var MarkerCodes = []string{wcpms.CodeSOS, wcpms.CodePOS, wcpms.CodeEOS, wcpms.CodeVOS}

// MarkerColor returns the marker colour of a metric code, or "" when the code
// has no marker.
func MarkerColor(code string) string {
	return markerColors[strings.ToLower(code)]
}

// Point is one (time, value) vertex.
type Point struct {
	T time.Time
	V float64
}

// Segment is a straight guide line.
type Segment struct {
	From Point
	To   Point
}

// Marker highlights a dated metric.
type Marker struct {
	Code  string
	Label string
	At    Point
	Color string
}

// Band is a shaded time interval centred on a metric date.
type Band struct {
	Code   string
	Center time.Time
	Start  time.Time
	End    time.Time
}

// Contains reports whether t falls inside the band.
func (b Band) Contains(t time.Time) bool {
	return !t.Before(b.Start) && !t.After(b.End)
}

// Annotations is the renderer-neutral description of a phenology chart.
type Annotations struct {
	Raw    []Point
	Smooth []Point
	// LIOS outlines the integral of the season, closed at y = 0.
	LIOS    []Point
	LOS     Segment
	AOS     Segment
	Markers []Marker
	Bands   []Band
}

// Options controls Build.
type Options struct {
	SmoothWindow int
	SmoothOrder  int
	// Window keeps only the first N observations of the smoothed series;
	// 0 keeps all.
	Window int
	// NoLOS leaves the length-of-season segment out.
	NoLOS bool
	// Uncertainty adds bands around SOS and EOS.
	Uncertainty          bool
	UncertaintyHalfWidth time.Duration
}

// DefaultOptions returns the plain point-chart settings.
func DefaultOptions() Options {
	return Options{
		SmoothWindow:         DefaultWindow,
		SmoothOrder:          DefaultOrder,
		UncertaintyHalfWidth: DefaultUncertainty,
	}
}

// AdvancedOptions returns the per-pixel chart settings. The full series is
// smoothed and then cut to its first window observations, uncertainty bands
// are drawn and the LOS segment is omitted.
func AdvancedOptions(window int) Options {
	opts := DefaultOptions()
	if window <= 0 {
		window = DefaultAdvancedWindow
	}
	opts.Window = window
	opts.Uncertainty = true
	opts.NoLOS = true
	return opts
}

func (o Options) normalized() Options {
	if o.SmoothWindow == 0 {
		o.SmoothWindow, o.SmoothOrder = DefaultWindow, DefaultOrder
	}
	if o.UncertaintyHalfWidth <= 0 {
		o.UncertaintyHalfWidth = DefaultUncertainty
	}
	return o
}

// Build derives the chart annotations for one location. SOS, POS, EOS and VOS
// must all carry a date and a value.
func Build(series wcpms.TimeSeries, rec wcpms.PhenometricsRecord, opts Options) (Annotations, error) {
	opts = opts.normalized()
	if err := series.Validate(); err != nil {
		return Annotations{}, fmt.Errorf("series: %w", err)
	}
	if err := rec.RequireDated(MarkerCodes...); err != nil {
		return Annotations{}, err
	}

	smooth, err := SavitzkyGolay(series.Values, opts.SmoothWindow, opts.SmoothOrder)
	if err != nil {
		return Annotations{}, fmt.Errorf("smooth series: %w", err)
	}
	timeline, values := series.Timeline, series.Values
	if opts.Window > 0 && opts.Window < len(values) {
		timeline, values, smooth = timeline[:opts.Window], values[:opts.Window], smooth[:opts.Window]
	}

	sos, pos, eos := at(rec.SOS), at(rec.POS), at(rec.EOS)
	ann := Annotations{
		Raw:    points(timeline, values),
		Smooth: points(timeline, smooth),
		LIOS: []Point{
			{T: sos.T},
			sos,
			pos,
			eos,
			{T: eos.T},
		},
		AOS: Segment{From: pos, To: Point{T: pos.T}},
	}
	if !opts.NoLOS {
		ann.LOS = Segment{From: sos, To: eos}
	}
	for _, code := range MarkerCodes {
		m, _ := rec.Get(code)
		ann.Markers = append(ann.Markers, Marker{
			Code:  code,
			Label: strings.ToUpper(code),
			At:    at(m),
			Color: markerColors[code],
		})
	}
	if opts.Uncertainty {
		for _, m := range []struct {
			code string
			t    time.Time
		}{{wcpms.CodeSOS, sos.T}, {wcpms.CodeEOS, eos.T}} {
			ann.Bands = append(ann.Bands, Band{
				Code:   m.code,
				Center: m.t,
				Start:  m.t.Add(-opts.UncertaintyHalfWidth),
				End:    m.t.Add(opts.UncertaintyHalfWidth),
			})
		}
	}
	return ann, nil
}

// TimeRange returns the earliest and latest instants any annotation touches.
func (a Annotations) TimeRange() (time.Time, time.Time) {
	var lo, hi time.Time
	visit := func(t time.Time) {
		if t.IsZero() {
			return
		}
		if lo.IsZero() || t.Before(lo) {
			lo = t
		}
		if hi.IsZero() || t.After(hi) {
			hi = t
		}
	}
	for _, p := range a.Raw {
		visit(p.T)
	}
	for _, p := range a.LIOS {
		visit(p.T)
	}
	for _, m := range a.Markers {
		visit(m.At.T)
	}
	for _, b := range a.Bands {
		visit(b.Start)
		visit(b.End)
	}
	return lo, hi
}

func at(m wcpms.Metric) Point {
	return Point{T: m.Time, V: m.Value}
}

func points(timeline []time.Time, values []float64) []Point {
	out := make([]Point, len(values))
	for i := range values {
		out[i] = Point{T: timeline[i], V: values[i]}
	}
	return out
}
