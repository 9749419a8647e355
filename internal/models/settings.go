// Package models contains data structures used throughout the application
package models

import "math"

// Glucose status names
const (
	StatusUrgentLow  = "urgent_low"
	StatusLow        = "low"
	StatusNormal     = "normal"
	StatusHigh       = "high"
	StatusUrgentHigh = "urgent_high"
)

// Settings contains the display settings the chart derives colors from
type Settings struct {
	// Display settings
	Unit string `koanf:"units"` // "mg/dL" or "mmol/L"

	// Glucose thresholds (in mg/dL, converted for display)
	TargetLow  int `koanf:"target_low"`
	TargetHigh int `koanf:"target_high"`
	UrgentLow  int `koanf:"urgent_low"`
	UrgentHigh int `koanf:"urgent_high"`

	// Chart colors
	ColorInRange  string `koanf:"color_in_range"` // Hex color
	ColorHigh     string `koanf:"color_high"`
	ColorLow      string `koanf:"color_low"`
	ColorUrgent   string `koanf:"color_urgent"`
	ColorMBG      string `koanf:"color_mbg"`
	ColorRaw      string `koanf:"color_raw"`
	ColorForecast string `koanf:"color_forecast"`
}

// DefaultSettings returns settings with default values
func DefaultSettings() Settings {
	return Settings{
		Unit: UnitMgdl,

		TargetLow:  70,
		TargetHigh: 180,
		UrgentLow:  55,
		UrgentHigh: 250,

		ColorInRange:  "#4ade80", // Green
		ColorHigh:     "#facc15", // Yellow
		ColorLow:      "#f97316", // Orange
		ColorUrgent:   "#ef4444", // Red
		ColorMBG:      "#ef4444",
		ColorRaw:      "#ffffff",
		ColorForecast: "#00ffff", // Cyan
	}
}

// GetGlucoseStatus returns the status string for a glucose value
func (s *Settings) GetGlucoseStatus(mgdl int) string {
	switch {
	case mgdl <= s.UrgentLow:
		return StatusUrgentLow
	case mgdl <= s.TargetLow:
		return StatusLow
	case mgdl >= s.UrgentHigh:
		return StatusUrgentHigh
	case mgdl >= s.TargetHigh:
		return StatusHigh
	default:
		return StatusNormal
	}
}

// ColorFor returns the display color of a reading. Colors carried by the
// record win; otherwise the kind and the thresholds decide.
func (s *Settings) ColorFor(r *Reading) string {
	if r.Color != "" {
		return r.Color
	}
	switch r.Kind {
	case KindMBG:
		return s.ColorMBG
	case KindRawBG:
		return s.ColorRaw
	case KindForecast:
		return s.ColorForecast
	}
	if !r.HasValue() {
		return s.ColorUrgent
	}

	switch s.GetGlucoseStatus(int(math.Round(r.Value))) {
	case StatusUrgentLow, StatusUrgentHigh:
		return s.ColorUrgent
	case StatusLow:
		return s.ColorLow
	case StatusHigh:
		return s.ColorHigh
	default:
		return s.ColorInRange
	}
}
