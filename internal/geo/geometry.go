package geo

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"

	"github.com/golang/geo/r3"
	"github.com/golang/geo/s2"
)

// EarthRadiusKm is the mean Earth radius used for area conversion.
const EarthRadiusKm = 6371.0

// Position is a GeoJSON position in EPSG:4326 order: longitude, latitude.
type Position [2]float64

// Lon returns the longitude component.
func (p Position) Lon() float64 { return p[0] }

// Lat returns the latitude component.
func (p Position) Lat() float64 { return p[1] }

// Ring is a closed linear ring. The first and last positions are equal.
type Ring []Position

// Polygon is an exterior ring followed by zero or more holes.
type Polygon []Ring

// Bounds is a lon/lat bounding box.
type Bounds struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Geometry is a GeoJSON Polygon or MultiPolygon. The original JSON is kept so
// that it can be forwarded to the service byte for byte.
type Geometry struct {
	Type     string
	Polygons []Polygon
	raw      json.RawMessage
}

type rawObject struct {
	Type        string            `json:"type"`
	Coordinates json.RawMessage   `json:"coordinates"`
	Geometry    json.RawMessage   `json:"geometry"`
	Features    []json.RawMessage `json:"features"`
}

// ReadFile loads a GeoJSON document from disk. See Parse for accepted shapes.
func ReadFile(path string) (Geometry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Geometry{}, fmt.Errorf("read geometry: %w", err)
	}
	g, err := Parse(data)
	if err != nil {
		return Geometry{}, fmt.Errorf("parse geometry %s: %w", path, err)
	}
	return g, nil
}

// Parse decodes a bare geometry, a Feature or a FeatureCollection. For a
// collection the first feature's geometry is used.
func Parse(data []byte) (Geometry, error) {
	var obj rawObject
	if err := json.Unmarshal(data, &obj); err != nil {
		return Geometry{}, err
	}

	switch obj.Type {
	case "FeatureCollection":
		if len(obj.Features) == 0 {
			return Geometry{}, errors.New("feature collection is empty")
		}
		return Parse(obj.Features[0])
	case "Feature":
		if len(obj.Geometry) == 0 || bytes.Equal(bytes.TrimSpace(obj.Geometry), []byte("null")) {
			return Geometry{}, errors.New("feature has no geometry")
		}
		return Parse(obj.Geometry)
	case "Polygon":
		var p Polygon
		if err := json.Unmarshal(obj.Coordinates, &p); err != nil {
			return Geometry{}, fmt.Errorf("polygon coordinates: %w", err)
		}
		return Geometry{Type: obj.Type, Polygons: []Polygon{p}, raw: compact(data)}, nil
	case "MultiPolygon":
		var mp []Polygon
		if err := json.Unmarshal(obj.Coordinates, &mp); err != nil {
			return Geometry{}, fmt.Errorf("multipolygon coordinates: %w", err)
		}
		return Geometry{Type: obj.Type, Polygons: mp, raw: compact(data)}, nil
	case "":
		return Geometry{}, errors.New("missing geometry type")
	default:
		return Geometry{}, fmt.Errorf("unsupported geometry type %q", obj.Type)
	}
}

func compact(data []byte) json.RawMessage {
	var buf bytes.Buffer
	if err := json.Compact(&buf, data); err != nil {
		return append(json.RawMessage(nil), data...)
	}
	return json.RawMessage(buf.Bytes())
}

// NewPolygon builds a single polygon geometry from rings.
func NewPolygon(rings ...Ring) Geometry {
	return Geometry{Type: "Polygon", Polygons: []Polygon{rings}}
}

// IsZero reports whether g holds no geometry.
func (g Geometry) IsZero() bool {
	return g.Type == "" && len(g.Polygons) == 0
}

// Raw returns the GeoJSON encoding of the geometry.
func (g Geometry) Raw() (json.RawMessage, error) {
	if len(g.raw) > 0 {
		return g.raw, nil
	}
	var coords any
	switch g.Type {
	case "Polygon":
		if len(g.Polygons) != 1 {
			return nil, fmt.Errorf("polygon geometry holds %d polygons", len(g.Polygons))
		}
		coords = g.Polygons[0]
	case "MultiPolygon":
		coords = g.Polygons
	default:
		return nil, fmt.Errorf("unsupported geometry type %q", g.Type)
	}
	return json.Marshal(struct {
		Type        string `json:"type"`
		Coordinates any    `json:"coordinates"`
	}{g.Type, coords})
}

// MarshalJSON implements json.Marshaler.
func (g Geometry) MarshalJSON() ([]byte, error) {
	return g.Raw()
}

// UnmarshalJSON implements json.Unmarshaler.
func (g *Geometry) UnmarshalJSON(data []byte) error {
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	*g = parsed
	return nil
}

// Validate checks ring closure, ring length and coordinate ranges.
func (g Geometry) Validate() error {
	if g.Type != "Polygon" && g.Type != "MultiPolygon" {
		return fmt.Errorf("geometry type %q is not a polygon", g.Type)
	}
	if len(g.Polygons) == 0 {
		return errors.New("geometry has no polygons")
	}
	for pi, poly := range g.Polygons {
		if len(poly) == 0 {
			return fmt.Errorf("polygon %d has no rings", pi)
		}
		for ri, ring := range poly {
			if err := ring.validate(); err != nil {
				return fmt.Errorf("polygon %d ring %d: %w", pi, ri, err)
			}
		}
	}
	return nil
}

func (r Ring) validate() error {
	if len(r) < 4 {
		return fmt.Errorf("ring has %d positions, need at least 4", len(r))
	}
	if r[0] != r[len(r)-1] {
		return errors.New("ring is not closed")
	}
	for _, p := range r {
		if math.IsNaN(p.Lon()) || math.IsNaN(p.Lat()) {
			return errors.New("ring contains NaN coordinates")
		}
		if p.Lon() < -180 || p.Lon() > 180 || p.Lat() < -90 || p.Lat() > 90 {
			return fmt.Errorf("position [%g, %g] is outside EPSG:4326 range", p.Lon(), p.Lat())
		}
	}
	distinct := map[Position]struct{}{}
	for _, p := range r[:len(r)-1] {
		distinct[p] = struct{}{}
	}
	if len(distinct) < 3 {
		return errors.New("ring has fewer than 3 distinct positions")
	}
	return nil
}

// loop converts a closed ring into a normalized s2 loop.
func (r Ring) loop() *s2.Loop {
	pts := make([]s2.Point, 0, len(r))
	for _, p := range r[:len(r)-1] {
		pts = append(pts, s2.PointFromLatLng(s2.LatLngFromDegrees(p.Lat(), p.Lon())))
	}
	l := s2.LoopFromPoints(pts)
	l.Normalize()
	return l
}

// Contains reports whether the point lies inside any polygon and outside its holes.
func (g Geometry) Contains(lat, lon float64) bool {
	pt := s2.PointFromLatLng(s2.LatLngFromDegrees(lat, lon))
	for _, poly := range g.Polygons {
		if len(poly) == 0 || len(poly[0]) < 4 {
			continue
		}
		if !poly[0].loop().ContainsPoint(pt) {
			continue
		}
		inHole := false
		for _, hole := range poly[1:] {
			if len(hole) >= 4 && hole.loop().ContainsPoint(pt) {
				inHole = true
				break
			}
		}
		if !inHole {
			return true
		}
	}
	return false
}

// AreaKm2 returns the spherical area covered by the geometry.
func (g Geometry) AreaKm2() float64 {
	var steradians float64
	g.eachLoop(func(l *s2.Loop, hole bool) {
		if hole {
			steradians -= l.Area()
			return
		}
		steradians += l.Area()
	})
	return steradians * EarthRadiusKm * EarthRadiusKm
}

// Centroid returns the area-weighted centroid as latitude, longitude.
func (g Geometry) Centroid() (lat, lon float64) {
	var sum r3.Vector
	g.eachLoop(func(l *s2.Loop, hole bool) {
		c := l.Centroid().Vector
		if hole {
			sum = sum.Sub(c)
			return
		}
		sum = sum.Add(c)
	})
	if sum.Norm() == 0 {
		return 0, 0
	}
	ll := s2.LatLngFromPoint(s2.Point{Vector: sum})
	return ll.Lat.Degrees(), ll.Lng.Degrees()
}

func (g Geometry) eachLoop(fn func(l *s2.Loop, hole bool)) {
	for _, poly := range g.Polygons {
		for i, ring := range poly {
			if len(ring) < 4 {
				continue
			}
			fn(ring.loop(), i > 0)
		}
	}
}

// Bounds returns the planar bounding box of all exterior rings.
func (g Geometry) Bounds() Bounds {
	b := Bounds{MinLon: math.Inf(1), MinLat: math.Inf(1), MaxLon: math.Inf(-1), MaxLat: math.Inf(-1)}
	for _, ring := range g.Outline() {
		for _, p := range ring {
			b.MinLon = math.Min(b.MinLon, p.Lon())
			b.MaxLon = math.Max(b.MaxLon, p.Lon())
			b.MinLat = math.Min(b.MinLat, p.Lat())
			b.MaxLat = math.Max(b.MaxLat, p.Lat())
		}
	}
	if math.IsInf(b.MinLon, 1) {
		return Bounds{}
	}
	return b
}

// Extend grows the box to include the position.
func (b Bounds) Extend(lon, lat float64) Bounds {
	if b == (Bounds{}) {
		return Bounds{MinLon: lon, MaxLon: lon, MinLat: lat, MaxLat: lat}
	}
	b.MinLon = math.Min(b.MinLon, lon)
	b.MaxLon = math.Max(b.MaxLon, lon)
	b.MinLat = math.Min(b.MinLat, lat)
	b.MaxLat = math.Max(b.MaxLat, lat)
	return b
}

// Outline returns every exterior ring, for drawing.
func (g Geometry) Outline() []Ring {
	var rings []Ring
	for _, poly := range g.Polygons {
		if len(poly) > 0 {
			rings = append(rings, poly[0])
		}
	}
	return rings
}
