package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"

	"github.com/five82/wcpms/internal/chart"
	"github.com/five82/wcpms/internal/wcpms"
)

// Config holds the service endpoint, default cube and chart settings.
type Config struct {
	URL         string
	AccessToken string
	LogPath     string
	MetricsAddr string
	Cube        CubeConfig
	Chart       ChartConfig
}

// CubeConfig is the default data cube of new queries.
type CubeConfig struct {
	Collection string `toml:"collection"`
	Band       string `toml:"band"`
	StartDate  string `toml:"start_date"`
	EndDate    string `toml:"end_date"`
	Freq       string `toml:"freq"`
}

// ChartConfig tunes smoothing and the per-pixel chart.
type ChartConfig struct {
	SmoothWindow    int `toml:"smooth_window"`
	SmoothOrder     int `toml:"smooth_order"`
	AdvancedWindow  int `toml:"advanced_window"`
	UncertaintyDays int `toml:"uncertainty_days"`
}

const (
	defaultConfigPath = "~/.config/wcpms/config.toml"
	defaultLogPath    = "~/.local/state/wcpms/wcpms.log"

	defaultCollection = "S2-16D-2"
	defaultBand       = "NDVI"
	defaultStartDate  = "2021-01-01"
	defaultEndDate    = "2021-12-31"
	defaultFreq       = "16D"

	defaultUncertaintyDays = 16
)

// Default returns the configuration used when no file exists.
func Default() Config {
	return Config{
		URL:     wcpms.DefaultBaseURL,
		LogPath: mustExpand(defaultLogPath),
		Cube: CubeConfig{
			Collection: defaultCollection,
			Band:       defaultBand,
			StartDate:  defaultStartDate,
			EndDate:    defaultEndDate,
			Freq:       defaultFreq,
		},
		Chart: ChartConfig{
			SmoothWindow:    chart.DefaultWindow,
			SmoothOrder:     chart.DefaultOrder,
			AdvancedWindow:  chart.DefaultAdvancedWindow,
			UncertaintyDays: defaultUncertaintyDays,
		},
	}
}

// Load reads the config file, falling back to defaults when it is missing.
func Load(path string) (Config, error) {
	resolved, err := resolvePath(path)
	if err != nil {
		return Config{}, err
	}

	cfg := Default()

	file, err := os.Open(resolved)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return cfg, nil
		}
		return Config{}, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	bytes, err := io.ReadAll(file)
	if err != nil {
		return Config{}, fmt.Errorf("read config: %w", err)
	}

	var raw struct {
		URL         string     `toml:"url"`
		AccessToken string     `toml:"access_token"`
		LogPath     string     `toml:"log_path"`
		MetricsAddr string     `toml:"metrics_addr"`
		Cube        CubeConfig `toml:"cube"`
		Chart       struct {
			SmoothWindow    int  `toml:"smooth_window"`
			SmoothOrder     *int `toml:"smooth_order"`
			AdvancedWindow  int  `toml:"advanced_window"`
			UncertaintyDays int  `toml:"uncertainty_days"`
		} `toml:"chart"`
	}
	if err := toml.Unmarshal(bytes, &raw); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}

	cfg.URL = orDefault(raw.URL, cfg.URL)
	cfg.AccessToken = strings.TrimSpace(raw.AccessToken)
	cfg.MetricsAddr = strings.TrimSpace(raw.MetricsAddr)
	if logPath := strings.TrimSpace(raw.LogPath); logPath != "" {
		cfg.LogPath = mustExpand(logPath)
	}

	cfg.Cube.Collection = orDefault(raw.Cube.Collection, cfg.Cube.Collection)
	cfg.Cube.Band = orDefault(raw.Cube.Band, cfg.Cube.Band)
	cfg.Cube.StartDate = orDefault(raw.Cube.StartDate, cfg.Cube.StartDate)
	cfg.Cube.EndDate = orDefault(raw.Cube.EndDate, cfg.Cube.EndDate)
	cfg.Cube.Freq = orDefault(raw.Cube.Freq, cfg.Cube.Freq)

	if raw.Chart.SmoothWindow > 0 {
		cfg.Chart.SmoothWindow = raw.Chart.SmoothWindow
	}
	if raw.Chart.SmoothOrder != nil {
		cfg.Chart.SmoothOrder = *raw.Chart.SmoothOrder
	}
	if raw.Chart.AdvancedWindow > 0 {
		cfg.Chart.AdvancedWindow = raw.Chart.AdvancedWindow
	}
	if raw.Chart.UncertaintyDays > 0 {
		cfg.Chart.UncertaintyDays = raw.Chart.UncertaintyDays
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings that would otherwise fail on first use.
func (c Config) Validate() error {
	if _, err := c.DefaultCube(); err != nil {
		return fmt.Errorf("config cube: %w", err)
	}
	if c.Chart.SmoothWindow <= 0 || c.Chart.SmoothWindow%2 == 0 {
		return fmt.Errorf("config chart: smooth_window %d must be a positive odd number", c.Chart.SmoothWindow)
	}
	if c.Chart.SmoothOrder < 0 || c.Chart.SmoothOrder >= c.Chart.SmoothWindow {
		return fmt.Errorf("config chart: smooth_order %d must be below smooth_window", c.Chart.SmoothOrder)
	}
	return nil
}

// DefaultCube builds the validated cube descriptor from the [cube] table.
func (c Config) DefaultCube() (wcpms.CubeDescriptor, error) {
	return wcpms.NewCube(c.Cube.Collection, c.Cube.Band, c.Cube.StartDate, c.Cube.EndDate, c.Cube.Freq)
}

// ChartOptions returns the point-chart options.
func (c Config) ChartOptions() chart.Options {
	opts := chart.DefaultOptions()
	if c.Chart.SmoothWindow > 0 {
		opts.SmoothWindow = c.Chart.SmoothWindow
		opts.SmoothOrder = c.Chart.SmoothOrder
	}
	if c.Chart.UncertaintyDays > 0 {
		opts.UncertaintyHalfWidth = time.Duration(c.Chart.UncertaintyDays) * 24 * time.Hour
	}
	return opts
}

// AdvancedChartOptions returns the per-pixel chart options.
func (c Config) AdvancedChartOptions() chart.Options {
	opts := c.ChartOptions()
	adv := chart.AdvancedOptions(c.Chart.AdvancedWindow)
	opts.Window = adv.Window
	opts.Uncertainty = adv.Uncertainty
	opts.NoLOS = adv.NoLOS
	return opts
}

// ResolvePath expands a user-supplied path the way config paths are expanded.
func ResolvePath(path string) (string, error) {
	return expandPath(path)
}

func orDefault(value, fallback string) string {
	if trimmed := strings.TrimSpace(value); trimmed != "" {
		return trimmed
	}
	return fallback
}

func resolvePath(path string) (string, error) {
	if strings.TrimSpace(path) == "" {
		return expandPath(defaultConfigPath)
	}
	return expandPath(path)
}

func mustExpand(path string) string {
	expanded, err := expandPath(path)
	if err != nil {
		return path
	}
	return expanded
}

func expandPath(path string) (string, error) {
	trimmed := strings.TrimSpace(path)
	if trimmed == "" {
		return "", fmt.Errorf("path is empty")
	}
	if strings.HasPrefix(trimmed, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home dir: %w", err)
		}
		trimmed = filepath.Join(home, strings.TrimPrefix(trimmed, "~"))
	}
	return filepath.Abs(trimmed)
}
