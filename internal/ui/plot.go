package ui

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/wcpms/internal/chart"
)

// Glyphs used on the chart canvas.
const (
	glyphBand   = '░'
	glyphFill   = '·'
	glyphRaw    = '∙'
	glyphSample = 'o'
	glyphSmooth = '•'
	glyphPixel  = 'o'
	glyphPicked = '@'
	glyphEdge   = '·'
)

// canvas is a grid of glyphs with one foreground color per cell.
type canvas struct {
	width  int
	height int
	cells  [][]rune
	colors [][]string
}

func newCanvas(width, height int) *canvas {
	c := &canvas{width: width, height: height}
	c.cells = make([][]rune, height)
	c.colors = make([][]string, height)
	for y := range c.cells {
		c.cells[y] = []rune(strings.Repeat(" ", width))
		c.colors[y] = make([]string, width)
	}
	return c
}

func (c *canvas) set(x, y int, r rune, color string) {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return
	}
	c.cells[y][x] = r
	c.colors[y][x] = color
}

func (c *canvas) at(x, y int) rune {
	if x < 0 || y < 0 || x >= c.width || y >= c.height {
		return 0
	}
	return c.cells[y][x]
}

// text writes s left to right from (x, y).
func (c *canvas) text(x, y int, s, color string) {
	for i, r := range []rune(s) {
		c.set(x+i, y, r, color)
	}
}

// line draws a straight segment with Bresenham's algorithm. pattern is
// repeated along the segment; a space in the pattern leaves the cell as is.
func (c *canvas) line(x0, y0, x1, y1 int, pattern []rune, color string) {
	dx := abs(x1 - x0)
	dy := -abs(y1 - y0)
	sx, sy := 1, 1
	if x0 > x1 {
		sx = -1
	}
	if y0 > y1 {
		sy = -1
	}
	e := dx + dy
	for step := 0; ; step++ {
		if r := pattern[step%len(pattern)]; r != ' ' {
			c.set(x0, y0, r, color)
		}
		if x0 == x1 && y0 == y1 {
			return
		}
		e2 := 2 * e
		if e2 >= dy {
			e += dy
			x0 += sx
		}
		if e2 <= dx {
			e += dx
			y0 += sy
		}
	}
}

// String returns the canvas without colors, one line per row.
func (c *canvas) String() string {
	lines := make([]string, c.height)
	for y, row := range c.cells {
		lines[y] = string(row)
	}
	return strings.Join(lines, "\n")
}

// Render colors every run of equal color on the bg background.
func (c *canvas) Render(bg string) string {
	base := lipgloss.NewStyle().Background(lipgloss.Color(bg))
	lines := make([]string, c.height)
	for y, row := range c.cells {
		var b strings.Builder
		start := 0
		for x := 1; x <= c.width; x++ {
			if x < c.width && c.colors[y][x] == c.colors[y][start] {
				continue
			}
			style := base
			if color := c.colors[y][start]; color != "" {
				style = style.Foreground(lipgloss.Color(color))
			}
			b.WriteString(style.Render(string(row[start:x])))
			start = x
		}
		lines[y] = b.String()
	}
	return strings.Join(lines, "\n")
}

// chartLayout maps times and values onto the plot area of a canvas. The
// plot area starts after the value axis and ends above the date axis.
type chartLayout struct {
	left, width, height int
	t0, t1              time.Time
	v0, v1              float64
}

const valueAxisWidth = 8

func newChartLayout(ann chart.Annotations, width, height int) chartLayout {
	t0, t1 := ann.TimeRange()
	if !t1.After(t0) {
		t1 = t0.Add(24 * time.Hour)
	}
	v0, v1 := 0.0, math.Inf(-1)
	visit := func(v float64) {
		if math.IsNaN(v) {
			return
		}
		v0 = math.Min(v0, v)
		v1 = math.Max(v1, v)
	}
	for _, p := range ann.Raw {
		visit(p.V)
	}
	for _, p := range ann.Smooth {
		visit(p.V)
	}
	for _, p := range ann.LIOS {
		visit(p.V)
	}
	for _, m := range ann.Markers {
		visit(m.At.V)
	}
	if math.IsInf(v1, -1) || v1 <= v0 {
		v1 = v0 + 1
	}
	v1 += (v1 - v0) * 0.05
	return chartLayout{
		left:   valueAxisWidth,
		width:  width - valueAxisWidth,
		height: height - 1,
		t0:     t0,
		t1:     t1,
		v0:     v0,
		v1:     v1,
	}
}

func (l chartLayout) x(t time.Time) int {
	frac := float64(t.Sub(l.t0)) / float64(l.t1.Sub(l.t0))
	return l.left + int(math.Round(frac*float64(l.width-1)))
}

func (l chartLayout) y(v float64) int {
	frac := (l.v1 - v) / (l.v1 - l.v0)
	return int(math.Round(frac * float64(l.height-1)))
}

func (l chartLayout) xy(p chart.Point) (int, int) {
	return l.x(p.T), l.y(p.V)
}

// RenderChart draws annotations as a character chart of width x height
// cells: uncertainty bands, LIOS shading, LOS/AOS guides, the raw and
// smoothed series, then the SOS/POS/EOS/VOS markers on top.
func RenderChart(ann chart.Annotations, width, height int, theme Theme) string {
	c := plotChart(ann, width, height, theme)
	if c == nil {
		return ""
	}
	return c.Render(theme.FocusBg)
}

func plotChart(ann chart.Annotations, width, height int, theme Theme) *canvas {
	if width <= valueAxisWidth+10 || height < 6 || len(ann.Raw) == 0 {
		return nil
	}
	c := newCanvas(width, height)
	l := newChartLayout(ann, width, height)

	for _, band := range ann.Bands {
		for x := l.x(band.Start); x <= l.x(band.End); x++ {
			for y := 0; y < l.height; y++ {
				c.set(x, y, glyphBand, theme.ChartBand)
			}
		}
	}

	fillPolygonBelow(c, l, ann.LIOS, theme.ChartFill)

	guide := []rune("-·")
	if ann.LOS.From != ann.LOS.To {
		x0, y0 := l.xy(ann.LOS.From)
		x1, y1 := l.xy(ann.LOS.To)
		c.line(x0, y0, x1, y1, guide, theme.ChartGuide)
	}
	if ann.AOS.From != ann.AOS.To {
		x0, y0 := l.xy(ann.AOS.From)
		x1, y1 := l.xy(ann.AOS.To)
		c.line(x0, y0, x1, y1, []rune("¦ "), theme.ChartGuide)
	}

	drawSeries(c, l, ann.Raw, glyphRaw, chart.ColorRaw)
	for _, p := range ann.Raw {
		if !math.IsNaN(p.V) {
			x, y := l.xy(p)
			c.set(x, y, glyphSample, chart.ColorRaw)
		}
	}
	drawSeries(c, l, ann.Smooth, glyphSmooth, chart.ColorSmooth)

	for _, m := range ann.Markers {
		x, y := l.xy(m.At)
		label := []rune(m.Label)
		if len(label) == 0 {
			continue
		}
		c.set(x, y, label[0], m.Color)
	}

	drawAxes(c, l, theme)
	return c
}

func drawSeries(c *canvas, l chartLayout, pts []chart.Point, glyph rune, color string) {
	for i := 1; i < len(pts); i++ {
		a, b := pts[i-1], pts[i]
		if math.IsNaN(a.V) || math.IsNaN(b.V) {
			continue
		}
		x0, y0 := l.xy(a)
		x1, y1 := l.xy(b)
		c.line(x0, y0, x1, y1, []rune{glyph}, color)
	}
}

// fillPolygonBelow shades the columns under the polyline formed by the
// vertices with a non-zero value, down to the baseline.
func fillPolygonBelow(c *canvas, l chartLayout, poly []chart.Point, color string) {
	var top []chart.Point
	for _, p := range poly {
		if p.V != 0 && !math.IsNaN(p.V) {
			top = append(top, p)
		}
	}
	if len(top) < 2 {
		return
	}
	base := l.y(0)
	for i := 1; i < len(top); i++ {
		a, b := top[i-1], top[i]
		xa, ya := l.xy(a)
		xb, yb := l.xy(b)
		for x := xa; x <= xb; x++ {
			y := ya
			if xb != xa {
				y = ya + int(math.Round(float64((x-xa)*(yb-ya))/float64(xb-xa)))
			}
			for row := y + 1; row <= base && row < l.height; row++ {
				c.set(x, row, glyphFill, color)
			}
		}
	}
}

func drawAxes(c *canvas, l chartLayout, theme Theme) {
	for y := 0; y < l.height; y++ {
		c.set(l.left-1, y, '│', theme.Faint)
	}
	c.set(l.left-1, l.height, '└', theme.Faint)
	for x := l.left; x < c.width; x++ {
		c.set(x, l.height, '─', theme.Faint)
	}

	for _, v := range []float64{l.v1, (l.v0 + l.v1) / 2, l.v0} {
		label := formatAxisValue(v)
		if len(label) > valueAxisWidth-1 {
			label = label[:valueAxisWidth-1]
		}
		c.text(valueAxisWidth-1-len(label), l.y(v), label, theme.Muted)
	}

	const layout = "2006-01-02"
	first := l.t0.Format(layout)
	last := l.t1.Format(layout)
	c.text(l.left, l.height, first, theme.Muted)
	c.text(c.width-len(last), l.height, last, theme.Muted)
	if l.width > 3*len(layout)+4 {
		mid := l.t0.Add(l.t1.Sub(l.t0) / 2).Format(layout)
		c.text(l.left+l.width/2-len(mid)/2, l.height, mid, theme.Muted)
	}
}

func formatAxisValue(v float64) string {
	switch a := math.Abs(v); {
	case a >= 1000:
		return fmt.Sprintf("%.0f", v)
	case a >= 10:
		return fmt.Sprintf("%.1f", v)
	default:
		return fmt.Sprintf("%.2f", v)
	}
}

// RenderRegion draws the region outline and pixel centres. Pixels inside
// the polygon use the success color, pixels outside the danger color and
// the selected pixel (an index into plot.Points, -1 for none) the warning
// color.
func RenderRegion(plot chart.RegionPlot, width, height, selected int, theme Theme) string {
	c := plotRegion(plot, width, height, selected, theme)
	if c == nil {
		return ""
	}
	return c.Render(theme.FocusBg)
}

func plotRegion(plot chart.RegionPlot, width, height, selected int, theme Theme) *canvas {
	if width < 4 || height < 3 {
		return nil
	}
	c := newCanvas(width, height)
	b := plot.Bounds
	spanLon := b.MaxLon - b.MinLon
	spanLat := b.MaxLat - b.MinLat
	if spanLon <= 0 {
		spanLon = 1e-9
	}
	if spanLat <= 0 {
		spanLat = 1e-9
	}
	x := func(lon float64) int {
		return int(math.Round((lon - b.MinLon) / spanLon * float64(width-1)))
	}
	y := func(lat float64) int {
		return int(math.Round((b.MaxLat - lat) / spanLat * float64(height-1)))
	}

	for _, ring := range plot.Outline {
		for i := 1; i < len(ring); i++ {
			c.line(x(ring[i-1].Lon()), y(ring[i-1].Lat()), x(ring[i].Lon()), y(ring[i].Lat()), []rune{glyphEdge}, theme.Accent)
		}
	}
	for _, p := range plot.Points {
		color := theme.Success
		if !p.Inside {
			color = theme.Danger
		}
		c.set(x(p.Lon), y(p.Lat), glyphPixel, color)
	}
	for _, p := range plot.Points {
		if p.Index == selected {
			c.set(x(p.Lon), y(p.Lat), glyphPicked, theme.Warning)
		}
	}
	return c
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
