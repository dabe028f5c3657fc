package chart

import (
	"github.com/five82/wcpms/internal/geo"
	"github.com/five82/wcpms/internal/wcpms"
)

// RegionPoint is a pixel centre placed against the region outline.
type RegionPoint struct {
	Index  int
	Lat    float64
	Lon    float64
	Inside bool
}

// RegionPlot is the scatter of pixel centres over a region polygon.
type RegionPlot struct {
	Outline []geo.Ring
	Points  []RegionPoint
	Bounds  geo.Bounds
}

// PixelPoint is a pixel centre tagged with its position in the region
// results it came from.
type PixelPoint struct {
	Index int
	wcpms.Point
}

// NewRegionPlot places each pixel centre and flags whether the polygon
// contains it.
func NewRegionPlot(geom geo.Geometry, points []PixelPoint) RegionPlot {
	plot := RegionPlot{
		Outline: geom.Outline(),
		Bounds:  geom.Bounds(),
		Points:  make([]RegionPoint, 0, len(points)),
	}
	for _, p := range points {
		plot.Points = append(plot.Points, RegionPoint{
			Index:  p.Index,
			Lat:    p.Lat,
			Lon:    p.Lon,
			Inside: geom.Contains(p.Lat, p.Lon),
		})
		plot.Bounds = plot.Bounds.Extend(p.Lon, p.Lat)
	}
	return plot
}

// Outside counts pixel centres the polygon does not contain.
func (p RegionPlot) Outside() int {
	n := 0
	for _, pt := range p.Points {
		if !pt.Inside {
			n++
		}
	}
	return n
}

// ResultPoints collects the pixel centres of region phenometrics results.
// Entries without a point are skipped; Index keeps the result position.
func ResultPoints(results []wcpms.PhenometricsResult) []PixelPoint {
	out := make([]PixelPoint, 0, len(results))
	for i, r := range results {
		if r.Point != nil {
			out = append(out, PixelPoint{Index: i, Point: *r.Point})
		}
	}
	return out
}

// SeriesPoints collects the pixel centres of region time series.
func SeriesPoints(series []wcpms.RegionSeries) []PixelPoint {
	out := make([]PixelPoint, 0, len(series))
	for i, s := range series {
		if s.Point != nil {
			out = append(out, PixelPoint{Index: i, Point: *s.Point})
		}
	}
	return out
}
