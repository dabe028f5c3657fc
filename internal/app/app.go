package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/five82/wcpms/internal/config"
	"github.com/five82/wcpms/internal/prefs"
	"github.com/five82/wcpms/internal/state"
	"github.com/five82/wcpms/internal/ui"
	"github.com/five82/wcpms/internal/wcpms"
)

// Options configure a wcpms run.
type Options struct {
	ConfigPath string
	PrefsPath  string // empty uses default ~/.config/wcpms/prefs.toml

	// Cube overrides the configured default cube field by field.
	Cube config.CubeConfig

	// Command line output.
	JSON    bool
	Chart   bool
	Width   int // chart columns; zero uses 100
	Height  int // chart rows; zero uses 24
	Pixel   int // region pixel charted with Chart
	Verbose bool
	Stdout  io.Writer
	Stderr  io.Writer
}

func (o Options) stdout() io.Writer {
	if o.Stdout != nil {
		return o.Stdout
	}
	return os.Stdout
}

func (o Options) stderr() io.Writer {
	if o.Stderr != nil {
		return o.Stderr
	}
	return os.Stderr
}

// Run boots the terminal UI until the context is cancelled or the user
// quits.
func Run(ctx context.Context, opts Options) error {
	cfg, err := loadConfig(opts)
	if err != nil {
		return err
	}

	logger, closeLog, err := openLogFile(cfg.LogPath, opts.Verbose)
	if err != nil {
		return err
	}
	defer closeLog()

	reg := prometheus.NewRegistry()
	metrics, err := wcpms.NewMetrics(reg)
	if err != nil {
		return err
	}
	if cfg.MetricsAddr != "" {
		addr, stop, err := serveMetrics(cfg.MetricsAddr, reg, logger)
		if err != nil {
			return err
		}
		defer stop()
		logger.Info("serving metrics", "addr", addr)
	}

	client, err := newClient(cfg, logger, metrics)
	if err != nil {
		return err
	}
	session := state.NewSession(client, &state.Store{}, logger, cfg.ChartOptions(), cfg.AdvancedChartOptions())

	userPrefs, _ := prefs.Load(opts.PrefsPath)
	last := overrideLastQuery(userPrefs.LastQuery, opts.Cube)

	logger.Info("wcpms starting", "url", cfg.URL, "cube", cubeLabel(cfg.Cube))
	defer logger.Info("wcpms stopped")

	return ui.Run(ui.Options{
		Context:   ctx,
		Session:   session,
		Config:    cfg,
		ThemeName: userPrefs.Theme,
		PrefsPath: opts.PrefsPath,
		LastQuery: last,
	})
}

// loadConfig reads the config file and applies the cube overrides.
func loadConfig(opts Options) (config.Config, error) {
	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg.Cube = mergeCube(cfg.Cube, opts.Cube)
	if _, err := cfg.DefaultCube(); err != nil {
		return config.Config{}, fmt.Errorf("cube: %w", err)
	}
	return cfg, nil
}

func newClient(cfg config.Config, logger *slog.Logger, metrics *wcpms.Metrics) (*wcpms.Client, error) {
	client, err := wcpms.NewClient(cfg.URL,
		wcpms.WithAccessToken(cfg.AccessToken),
		wcpms.WithLogger(logger),
		wcpms.WithMetrics(metrics),
	)
	if err != nil {
		return nil, fmt.Errorf("init wcpms client: %w", err)
	}
	return client, nil
}

func mergeCube(base, override config.CubeConfig) config.CubeConfig {
	set := func(dst *string, v string) {
		if v = strings.TrimSpace(v); v != "" {
			*dst = v
		}
	}
	set(&base.Collection, override.Collection)
	set(&base.Band, override.Band)
	set(&base.StartDate, override.StartDate)
	set(&base.EndDate, override.EndDate)
	set(&base.Freq, override.Freq)
	return base
}

// overrideLastQuery lets cube flags win over the form saved in prefs.
func overrideLastQuery(last prefs.LastQuery, cube config.CubeConfig) prefs.LastQuery {
	merged := mergeCube(config.CubeConfig{
		Collection: last.Collection,
		Band:       last.Band,
		StartDate:  last.StartDate,
		EndDate:    last.EndDate,
		Freq:       last.Freq,
	}, cube)
	last.Collection = merged.Collection
	last.Band = merged.Band
	last.StartDate = merged.StartDate
	last.EndDate = merged.EndDate
	last.Freq = merged.Freq
	return last
}

func cubeLabel(c config.CubeConfig) string {
	return fmt.Sprintf("%s/%s %s..%s %s", c.Collection, c.Band, c.StartDate, c.EndDate, c.Freq)
}
