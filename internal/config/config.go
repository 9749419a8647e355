// Package config defines the chart configuration and how it is loaded.
//
// Conventions:
// - Durations are stored in the unit their key names and converted by accessors.
// - Errors are wrapped with this package's sentinels.
package config

import (
	"context"
	"fmt"
	"slices"
	"time"

	"github.com/mrcode/nightscout-chart/internal/geometry"
	"github.com/mrcode/nightscout-chart/internal/models"
	"github.com/mrcode/nightscout-chart/internal/scene"
	"github.com/mrcode/nightscout-chart/internal/viewport"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// Width and Height are the size of the rendered chart in pixels.
	Width  int `koanf:"width"`
	Height int `koanf:"height"`

	// FocusHours is the history shown in the focus pane.
	FocusHours float64 `koanf:"focus_hours"`

	// ContextHours is the history shown in the context pane.
	ContextHours float64 `koanf:"context_hours"`

	// LookaheadMinutes is the future shown after now.
	LookaheadMinutes int `koanf:"lookahead_minutes"`

	// ReferenceWindowMinutes and FocusDamping tune dot sizes as the window changes.
	ReferenceWindowMinutes int     `koanf:"reference_window_minutes"`
	FocusDamping           float64 `koanf:"focus_damping"`

	// ForecastMinutes is how far the basal pane and the glucose forecast run past now.
	ForecastMinutes int `koanf:"forecast_minutes"`

	// BasalStepSeconds is the resampling step of the basal pane.
	BasalStepSeconds int `koanf:"basal_step_seconds"`

	// ShowLabels draws the carb and insulin labels of treatment glyphs.
	ShowLabels bool `koanf:"show_labels"`

	// Notifications enables desktop notifications for fresh treatments.
	Notifications bool `koanf:"notifications"`

	// MetricsAddr serves /metrics when set, e.g. ":9090".
	MetricsAddr string `koanf:"metrics_addr"`

	// Units, thresholds and colors.
	models.Settings `koanf:",squash"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:               "info",
		Width:                  1024,
		Height:                 600,
		FocusHours:             3,
		ContextHours:           24,
		LookaheadMinutes:       30,
		ReferenceWindowMinutes: 180,
		FocusDamping:           8,
		ForecastMinutes:        int(scene.DefaultForecastTime / time.Minute),
		BasalStepSeconds:       60,
		ShowLabels:             true,
		Notifications:          false,
		Settings:               models.DefaultSettings(),
	}
}

var logLevels = []string{"debug", "info", "warn", "error"}

// Validate reports the first invalid setting, wrapped in ErrInvalidConfig.
func (c *Config) Validate(_ context.Context) error {
	switch {
	case !slices.Contains(logLevels, c.LogLevel):
		return fmt.Errorf("%w: log_level %q", ErrInvalidConfig, c.LogLevel)
	case c.Unit != models.UnitMgdl && c.Unit != models.UnitMmol:
		return fmt.Errorf("%w: units %q", ErrInvalidConfig, c.Unit)
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: size %dx%d", ErrInvalidConfig, c.Width, c.Height)
	case c.FocusHours <= 0:
		return fmt.Errorf("%w: focus_hours must be positive", ErrInvalidConfig)
	case c.ContextHours < c.FocusHours:
		return fmt.Errorf("%w: context_hours must cover focus_hours", ErrInvalidConfig)
	case c.LookaheadMinutes < 0 || c.ForecastMinutes < 0:
		return fmt.Errorf("%w: lookahead and forecast must not be negative", ErrInvalidConfig)
	case c.ReferenceWindowMinutes <= 0:
		return fmt.Errorf("%w: reference_window_minutes must be positive", ErrInvalidConfig)
	case c.FocusDamping <= 1:
		return fmt.Errorf("%w: focus_damping must be greater than 1", ErrInvalidConfig)
	case c.BasalStepSeconds <= 0:
		return fmt.Errorf("%w: basal_step_seconds must be positive", ErrInvalidConfig)
	case c.UrgentLow >= c.TargetLow || c.TargetLow >= c.TargetHigh || c.TargetHigh >= c.UrgentHigh:
		return fmt.Errorf("%w: thresholds must satisfy urgent_low < target_low < target_high < urgent_high", ErrInvalidConfig)
	}
	return nil
}

// Focus returns the focus window
func (c *Config) Focus() time.Duration {
	return time.Duration(c.FocusHours * float64(time.Hour))
}

// ForecastTime returns how far the chart runs past now
func (c *Config) ForecastTime() time.Duration {
	return time.Duration(c.ForecastMinutes) * time.Minute
}

// Chart returns the chart tuning
func (c *Config) Chart() scene.Config {
	cfg := scene.DefaultConfig()
	cfg.Settings = c.Settings
	cfg.Focus = geometry.FocusConfig{
		ReferenceWindow: time.Duration(c.ReferenceWindowMinutes) * time.Minute,
		Damping:         c.FocusDamping,
	}
	cfg.ShowLabels = c.ShowLabels
	cfg.ForecastTime = c.ForecastTime()
	cfg.BasalStep = time.Duration(c.BasalStepSeconds) * time.Second
	return cfg
}

// Viewport returns the layout options of a chart drawn at now
func (c *Config) Viewport(now int64) viewport.Options {
	return viewport.Options{
		Width:     float64(c.Width),
		Height:    float64(c.Height),
		Now:       now,
		Focus:     c.Focus(),
		Lookahead: time.Duration(c.LookaheadMinutes) * time.Minute,
		Context:   time.Duration(c.ContextHours * float64(time.Hour)),
		Units:     c.Unit,
	}
}
