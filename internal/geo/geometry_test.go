package geo

import (
	"encoding/json"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const square = `{"type":"Polygon","coordinates":[[[-56,-29.3],[-55.9,-29.3],[-55.9,-29.1],[-56,-29.1],[-56,-29.3]]]}`

func TestParse_AcceptsGeometryFeatureAndCollection(t *testing.T) {
	docs := map[string]string{
		"geometry":   square,
		"feature":    `{"type":"Feature","properties":{"name":"field"},"geometry":` + square + `}`,
		"collection": `{"type":"FeatureCollection","features":[{"type":"Feature","properties":{},"geometry":` + square + `}]}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			g, err := Parse([]byte(doc))
			if err != nil {
				t.Fatalf("Parse returned error: %v", err)
			}
			if g.Type != "Polygon" || len(g.Polygons) != 1 || len(g.Polygons[0][0]) != 5 {
				t.Fatalf("Parse = %#v, want one 5-position polygon", g)
			}
			raw, err := g.Raw()
			if err != nil {
				t.Fatalf("Raw returned error: %v", err)
			}
			if string(raw) != square {
				t.Fatalf("Raw = %s, want the bare geometry %s", raw, square)
			}
		})
	}
}

func TestParse_Rejections(t *testing.T) {
	cases := map[string]string{
		"empty collection": `{"type":"FeatureCollection","features":[]}`,
		"null geometry":    `{"type":"Feature","geometry":null}`,
		"point":            `{"type":"Point","coordinates":[1,2]}`,
		"no type":          `{"coordinates":[]}`,
		"not json":         `{nope`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			if _, err := Parse([]byte(doc)); err == nil {
				t.Fatalf("Parse(%s) returned nil error", doc)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	g, err := Parse([]byte(square))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate returned error: %v", err)
	}

	open := NewPolygon(Ring{{0, 0}, {1, 0}, {1, 1}, {0, 1}})
	if err := open.Validate(); err == nil || !strings.Contains(err.Error(), "not closed") {
		t.Fatalf("Validate(open ring) = %v, want not closed error", err)
	}

	short := NewPolygon(Ring{{0, 0}, {1, 0}, {0, 0}})
	if err := short.Validate(); err == nil {
		t.Fatalf("Validate(short ring) returned nil error")
	}

	outOfRange := NewPolygon(Ring{{0, 0}, {200, 0}, {1, 1}, {0, 0}})
	if err := outOfRange.Validate(); err == nil || !strings.Contains(err.Error(), "range") {
		t.Fatalf("Validate(out of range) = %v, want range error", err)
	}

	degenerate := NewPolygon(Ring{{0, 0}, {1, 1}, {1, 1}, {0, 0}})
	if err := degenerate.Validate(); err == nil {
		t.Fatalf("Validate(degenerate) returned nil error")
	}

	if err := (Geometry{}).Validate(); err == nil {
		t.Fatalf("Validate(zero) returned nil error")
	}
}

func TestContainsRespectsHoles(t *testing.T) {
	outer := Ring{{0, 0}, {10, 0}, {10, 10}, {0, 10}, {0, 0}}
	hole := Ring{{4, 4}, {6, 4}, {6, 6}, {4, 6}, {4, 4}}
	g := NewPolygon(outer, hole)

	if !g.Contains(2, 2) {
		t.Fatalf("Contains(2,2) = false, want true")
	}
	if g.Contains(5, 5) {
		t.Fatalf("Contains(5,5) = true, want false (inside hole)")
	}
	if g.Contains(20, 20) {
		t.Fatalf("Contains(20,20) = true, want false")
	}
}

func TestContains_ClockwiseRing(t *testing.T) {
	cw := NewPolygon(Ring{{0, 0}, {0, 10}, {10, 10}, {10, 0}, {0, 0}})
	if !cw.Contains(5, 5) {
		t.Fatalf("Contains on clockwise ring = false, want true")
	}
	if cw.Contains(-5, -5) {
		t.Fatalf("Contains outside clockwise ring = true, want false")
	}
}

func TestCentroidAndArea(t *testing.T) {
	g, err := Parse([]byte(square))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	lat, lon := g.Centroid()
	if math.Abs(lat-(-29.2)) > 0.01 || math.Abs(lon-(-55.95)) > 0.01 {
		t.Fatalf("Centroid = (%v, %v), want about (-29.2, -55.95)", lat, lon)
	}
	// 0.1° x 0.2° near 29°S is roughly 9.7 km x 22.2 km.
	if area := g.AreaKm2(); area < 200 || area > 230 {
		t.Fatalf("AreaKm2 = %v, want about 216", area)
	}
}

func TestBounds(t *testing.T) {
	g, err := Parse([]byte(square))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	b := g.Bounds()
	if b.MinLon != -56 || b.MaxLon != -55.9 || b.MinLat != -29.3 || b.MaxLat != -29.1 {
		t.Fatalf("Bounds = %#v", b)
	}
	if got := (Geometry{}).Bounds(); got != (Bounds{}) {
		t.Fatalf("Bounds(zero) = %#v, want zero", got)
	}
	ext := b.Extend(-57, -28)
	if ext.MinLon != -57 || ext.MaxLat != -28 {
		t.Fatalf("Extend = %#v", ext)
	}
}

func TestReadFileAndJSONRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "field.geojson")
	if err := os.WriteFile(path, []byte(`{"type":"Feature","geometry":`+square+`}`), 0o600); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	g, err := ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile returned error: %v", err)
	}

	body, err := json.Marshal(struct {
		Geom Geometry `json:"geom"`
	}{g})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(body), `"geom":`+square) {
		t.Fatalf("body = %s, want raw geometry embedded", body)
	}

	if _, err := ReadFile(filepath.Join(t.TempDir(), "missing.geojson")); err == nil {
		t.Fatalf("ReadFile(missing) returned nil error")
	}
}

func TestRawFromBuiltPolygon(t *testing.T) {
	g := NewPolygon(Ring{{0, 0}, {1, 0}, {1, 1}, {0, 0}})
	raw, err := g.Raw()
	if err != nil {
		t.Fatalf("Raw returned error: %v", err)
	}
	want := `{"type":"Polygon","coordinates":[[[0,0],[1,0],[1,1],[0,0]]]}`
	if string(raw) != want {
		t.Fatalf("Raw = %s, want %s", raw, want)
	}
}
