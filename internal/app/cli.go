package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"

	"github.com/five82/wcpms/internal/chart"
	"github.com/five82/wcpms/internal/config"
	"github.com/five82/wcpms/internal/geo"
	"github.com/five82/wcpms/internal/prefs"
	"github.com/five82/wcpms/internal/state"
	"github.com/five82/wcpms/internal/ui"
	"github.com/five82/wcpms/internal/wcpms"
)

const (
	defaultChartWidth  = 100
	defaultChartHeight = 24
	dateLayout         = "2006-01-02"
)

// cli holds what every one-shot command needs.
type cli struct {
	opts    Options
	cfg     config.Config
	logger  *slog.Logger
	session *state.Session
	theme   ui.Theme
	out     io.Writer
}

func newCLI(opts Options) (*cli, error) {
	cfg, err := loadConfig(opts)
	if err != nil {
		return nil, err
	}
	logger := newLogger(opts.stderr(), opts.Verbose)
	client, err := newClient(cfg, logger, nil)
	if err != nil {
		return nil, err
	}
	userPrefs, _ := prefs.Load(opts.PrefsPath)
	return &cli{
		opts:    opts,
		cfg:     cfg,
		logger:  logger,
		session: state.NewSession(client, &state.Store{}, logger, cfg.ChartOptions(), cfg.AdvancedChartOptions()),
		theme:   ui.GetTheme(userPrefs.Theme),
		out:     opts.stdout(),
	}, nil
}

// Collections prints the data cubes the service can query.
func Collections(ctx context.Context, opts Options) error {
	c, err := newCLI(opts)
	if err != nil {
		return err
	}
	collections, err := c.session.Collections(ctx)
	if err != nil {
		return err
	}
	if opts.JSON {
		return c.writeJSON(collections)
	}
	for _, name := range collections {
		fmt.Fprintln(c.out, name)
	}
	return nil
}

// Describe prints the metric documentation.
func Describe(ctx context.Context, opts Options) error {
	c, err := newCLI(opts)
	if err != nil {
		return err
	}
	desc, err := c.session.Describe(ctx)
	if err != nil {
		return err
	}
	if opts.JSON {
		return c.writeJSON(desc)
	}

	t := newTable("Code", "Name", "Method", "Value", "Time", "Description")
	for _, d := range desc {
		t.Row(d.Code, d.Name, d.Method, string(d.Value), string(d.Time), d.Description)
	}
	fmt.Fprintln(c.out, t.Render())
	return nil
}

// Point fetches the metrics of one location and prints them, followed by the
// annotated chart when opts.Chart is set.
func Point(ctx context.Context, opts Options, lat, lon float64) error {
	c, err := newCLI(opts)
	if err != nil {
		return err
	}
	cube, err := c.cfg.DefaultCube()
	if err != nil {
		return err
	}
	res, err := c.session.QueryPoint(ctx, cube, lat, lon)
	if err != nil {
		return err
	}
	if opts.JSON {
		return c.writeJSON(res)
	}

	fmt.Fprintf(c.out, "%s at %.6f, %.6f\n", cube, lat, lon)
	fmt.Fprintln(c.out, metricTable(res.Phenometrics).Render())
	if opts.Chart {
		snap := c.session.Store().Snapshot()
		c.printChart(snap.Annotations, snap.AnnotationErr)
	}
	return nil
}

// Region fetches the pixel series and metrics inside the polygon stored at
// path and prints one row per pixel. With opts.Chart the pixel map and the
// chart of pixel opts.Pixel follow.
func Region(ctx context.Context, opts Options, path string) error {
	c, err := newCLI(opts)
	if err != nil {
		return err
	}
	cube, err := c.cfg.DefaultCube()
	if err != nil {
		return err
	}
	resolved, err := config.ResolvePath(path)
	if err != nil {
		return fmt.Errorf("geometry path: %w", err)
	}
	geom, err := geo.ReadFile(resolved)
	if err != nil {
		return err
	}

	results, err := c.session.QueryRegion(ctx, cube, geom)
	if err != nil {
		if n := len(c.session.Store().Snapshot().RegionSeries); n > 0 {
			c.logger.Warn("region metrics failed after fetching series", "pixels", n)
		}
		return err
	}
	if opts.JSON {
		return c.writeJSON(results)
	}

	plot := chart.NewRegionPlot(geom, chart.ResultPoints(results))
	fmt.Fprintf(c.out, "%s  %s  %.2f km²  %d pixels", cube, geom.Type, geom.AreaKm2(), len(results))
	if out := plot.Outside(); out > 0 {
		fmt.Fprintf(c.out, "  %d outside", out)
	}
	fmt.Fprintln(c.out)
	fmt.Fprintln(c.out, pixelTable(geom, results).Render())

	if opts.Chart {
		width, height := c.chartSize()
		fmt.Fprintln(c.out, ui.RenderRegion(plot, width, max(height/2, 3), opts.Pixel, c.theme))
		ann, err := c.session.PixelAnnotations(opts.Pixel)
		c.printChart(ann, err)
	}
	return nil
}

func (c *cli) chartSize() (int, int) {
	width, height := c.opts.Width, c.opts.Height
	if width <= 0 {
		width = defaultChartWidth
	}
	if height <= 0 {
		height = defaultChartHeight
	}
	return width, height
}

// printChart writes the chart, or logs why there is none. A chart failure
// does not fail the command: the metrics were already printed.
func (c *cli) printChart(ann chart.Annotations, annErr error) {
	if annErr != nil {
		c.logger.Warn("chart unavailable", "err", annErr)
		return
	}
	width, height := c.chartSize()
	plot := ui.RenderChart(ann, width, height, c.theme)
	if plot == "" {
		c.logger.Warn("chart too small", "width", width, "height", height)
		return
	}
	fmt.Fprintln(c.out, plot)
}

func (c *cli) writeJSON(v any) error {
	enc := json.NewEncoder(c.out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}

func newTable(headers ...string) *table.Table {
	return table.New().
		Border(lipgloss.NormalBorder()).
		BorderRow(false).
		Headers(headers...)
}

func metricTable(rec wcpms.PhenometricsRecord) *table.Table {
	t := newTable("Metric", "Date", "Value")
	for _, code := range rec.Codes() {
		m, _ := rec.Get(code)
		t.Row(strings.ToUpper(code), metricDate(m), metricValue(m))
	}
	return t
}

func pixelTable(geom geo.Geometry, results []wcpms.PhenometricsResult) *table.Table {
	headers := []string{"#", "Lon", "Lat", "Inside"}
	for _, code := range chart.MarkerCodes {
		headers = append(headers, strings.ToUpper(code))
	}
	t := newTable(headers...)
	for i, res := range results {
		row := []string{strconv.Itoa(i), "-", "-", "-"}
		if p := res.Point; p != nil {
			row[1] = strconv.FormatFloat(p.Lon, 'f', 6, 64)
			row[2] = strconv.FormatFloat(p.Lat, 'f', 6, 64)
			row[3] = strconv.FormatBool(geom.Contains(p.Lat, p.Lon))
		}
		for _, code := range chart.MarkerCodes {
			m, _ := res.Phenometrics.Get(code)
			row = append(row, metricDate(m))
		}
		t.Row(row...)
	}
	return t
}

func metricDate(m wcpms.Metric) string {
	if !m.HasTime {
		return "-"
	}
	return m.Time.Format(dateLayout)
}

func metricValue(m wcpms.Metric) string {
	if !m.HasValue {
		return "-"
	}
	return strconv.FormatFloat(m.Value, 'f', 2, 64)
}
