// Package geometry maps a record's kind and the current viewport to radii,
// opacities and bubble sizes. All functions are pure.
package geometry

import (
	"strings"
	"time"

	"github.com/mrcode/nightscout-chart/internal/models"
)

// Width breakpoints, in pixels
const (
	WidthSmallDots = 420
	WidthBigDots   = 800
)

// Stroke colors for focus dots
const (
	StrokeDeviceFamily = "white"
	StrokeDefault      = "#0099ff"
)

// OutsideBrushOpacity is the opacity of context points outside the brush
const OutsideBrushOpacity = 0.5

// DeviceFamilyPrefix identifies the sensor family drawn with a white outline
const DeviceFamilyPrefix = "dexcom"

// FocusConfig holds the tuning constants of the focus-range adjustment
type FocusConfig struct {
	// ReferenceWindow is the visible window at which no adjustment happens
	ReferenceWindow time.Duration
	// Damping slows down how fast sizes change away from the reference window
	Damping float64
}

// DefaultFocusConfig returns the 3 hour / 8 tuning
func DefaultFocusConfig() FocusConfig {
	return FocusConfig{
		ReferenceWindow: 3 * time.Hour,
		Damping:         8,
	}
}

// MinAdjustment bounds Adjustment below so sizes stay finite and positive
// when a narrow window meets weak damping.
const MinAdjustment = 0.25

// Adjustment returns the divisor applied to dot sizes for the visible window.
// It is 1 at the reference window and grows linearly as the window widens.
func (c FocusConfig) Adjustment(focusRange time.Duration) float64 {
	if focusRange == c.ReferenceWindow || c.ReferenceWindow <= 0 || c.Damping <= 0 {
		return 1
	}
	ref := float64(c.ReferenceWindow)
	return max(MinAdjustment, 1+(float64(focusRange)-ref)/ref/c.Damping)
}

// baseRadius is the 3-level step on viewport width
func baseRadius(width float64) float64 {
	switch {
	case width <= WidthSmallDots:
		return 2
	case width >= WidthBigDots:
		return 4
	default:
		return 3
	}
}

// DotRadius returns the focus pane radius for a reading of the given kind
func DotRadius(kind models.Kind, width float64, focusRange time.Duration, cfg FocusConfig) float64 {
	radius := baseRadius(width)
	switch kind {
	case models.KindMBG:
		radius *= 2
	case models.KindForecast:
		radius = min(3, radius-1)
	case models.KindRawBG:
		radius = min(2, radius-1)
	}
	return radius / cfg.Adjustment(focusRange)
}

// BubbleScale returns the divisor used for treatment glyph sizes. A higher
// value produces smaller bubbles; it is not a radius.
func BubbleScale(width float64, focusRange time.Duration, cfg FocusConfig) float64 {
	var scale float64
	switch {
	case width <= WidthSmallDots:
		scale = 4
	case width >= WidthBigDots:
		scale = 2
	default:
		scale = 3
	}
	return scale * cfg.Adjustment(focusRange)
}

// BrushOpacity returns the context pane opacity of a record. Records inside
// the brush selection fade like the focus pane does; the rest are dimmed.
func BrushOpacity(mills, brushFrom, brushTo, latest int64, futureOpacity func(deltaMs int64) float64) float64 {
	if mills >= brushFrom && mills <= brushTo {
		return futureOpacity(mills - latest)
	}
	return OutsideBrushOpacity
}

// IsDeviceFamily reports whether the device string belongs to the sensor family
func IsDeviceFamily(device string) bool {
	return strings.HasPrefix(strings.ToLower(device), DeviceFamilyPrefix)
}

// FocusStroke returns the outline color of a focus pane reading
func FocusStroke(r *models.Reading) string {
	switch {
	case IsDeviceFamily(r.Device):
		return StrokeDeviceFamily
	case r.Kind == models.KindForecast:
		return r.Color
	default:
		return StrokeDefault
	}
}

// FocusStrokeWidth returns the outline width of a focus pane reading
func FocusStrokeWidth(kind models.Kind) float64 {
	switch kind {
	case models.KindMBG:
		return 2
	case models.KindForecast:
		return 1
	default:
		return 0
	}
}

// ContextRadius returns the context pane radius for a reading
func ContextRadius(kind models.Kind) float64 {
	if kind == models.KindMBG {
		return 4
	}
	return 2
}
