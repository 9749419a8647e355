package geometry

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/mrcode/nightscout-chart/internal/models"
)

func TestDotRadius_WidthSteps(t *testing.T) {
	cfg := DefaultFocusConfig()

	tests := []struct {
		width    float64
		expected float64
	}{
		{300, 2},
		{420, 2},
		{421, 3},
		{799, 3},
		{800, 4},
		{801, 4},
	}

	for _, tt := range tests {
		got := DotRadius(models.KindSGV, tt.width, cfg.ReferenceWindow, cfg)
		assert.Equal(t, tt.expected, got, "width %v", tt.width)
	}
}

func TestDotRadius_Kinds(t *testing.T) {
	cfg := DefaultFocusConfig()
	ref := cfg.ReferenceWindow

	tests := []struct {
		name     string
		kind     models.Kind
		width    float64
		expected float64
	}{
		{"sgv large", models.KindSGV, 1000, 4},
		{"mbg doubles", models.KindMBG, 1000, 8},
		{"mbg small", models.KindMBG, 300, 4},
		{"forecast capped", models.KindForecast, 1000, 3},
		{"forecast medium", models.KindForecast, 600, 2},
		{"rawbg capped", models.KindRawBG, 1000, 2},
		{"rawbg small", models.KindRawBG, 300, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, DotRadius(tt.kind, tt.width, ref, cfg))
		})
	}
}

func TestDotRadius_NonIncreasingInWindow(t *testing.T) {
	cfg := DefaultFocusConfig()
	kinds := []models.Kind{models.KindSGV, models.KindMBG, models.KindRawBG, models.KindForecast}
	widths := []float64{300, 420, 600, 800, 1200}

	for _, kind := range kinds {
		for _, width := range widths {
			prev := DotRadius(kind, width, 0, cfg)
			for window := 30 * time.Minute; window <= 48*time.Hour; window += 30 * time.Minute {
				got := DotRadius(kind, width, window, cfg)
				assert.LessOrEqual(t, got, prev, "kind %s width %v window %v", kind, width, window)
				prev = got
			}
		}
	}
}

func TestFocusConfig_Adjustment(t *testing.T) {
	cfg := DefaultFocusConfig()

	assert.Equal(t, 1.0, cfg.Adjustment(3*time.Hour))
	assert.InDelta(t, 1.125, cfg.Adjustment(6*time.Hour), 1e-9)
	assert.InDelta(t, 2.0, cfg.Adjustment(27*time.Hour), 1e-9)
	assert.InDelta(t, 0.9583333, cfg.Adjustment(2*time.Hour), 1e-6)

	custom := FocusConfig{ReferenceWindow: time.Hour, Damping: 2}
	assert.InDelta(t, 1.5, custom.Adjustment(2*time.Hour), 1e-9)

	assert.Equal(t, 1.0, FocusConfig{}.Adjustment(time.Hour), "zero config must not divide by zero")
}

func TestFocusConfig_WeakDampingStaysPositive(t *testing.T) {
	for _, damping := range []float64{0.5, 2.0 / 3} {
		cfg := FocusConfig{ReferenceWindow: 3 * time.Hour, Damping: damping}

		assert.Equal(t, MinAdjustment, cfg.Adjustment(time.Hour), "damping %v", damping)
		assert.Equal(t, MinAdjustment, cfg.Adjustment(0), "damping %v", damping)

		radius := DotRadius(models.KindSGV, 1024, time.Hour, cfg)
		bubble := BubbleScale(1024, time.Hour, cfg)
		assert.False(t, math.IsInf(radius, 0) || math.IsNaN(radius), "damping %v", damping)
		assert.Equal(t, 16.0, radius, "damping %v", damping)
		assert.Equal(t, 0.5, bubble, "damping %v", damping)
	}
}

func TestBubbleScale(t *testing.T) {
	cfg := DefaultFocusConfig()
	ref := cfg.ReferenceWindow

	assert.Equal(t, 4.0, BubbleScale(300, ref, cfg))
	assert.Equal(t, 3.0, BubbleScale(600, ref, cfg))
	assert.Equal(t, 2.0, BubbleScale(1024, ref, cfg))
	assert.InDelta(t, 2.25, BubbleScale(1024, 6*time.Hour, cfg), 1e-9)
}

func TestBrushOpacity(t *testing.T) {
	future := func(delta int64) float64 {
		if delta > 0 {
			return 0.2
		}
		return 1
	}

	assert.Equal(t, 1.0, BrushOpacity(100, 0, 200, 150, future))
	assert.Equal(t, 0.2, BrushOpacity(180, 0, 200, 150, future))
	assert.Equal(t, 1.0, BrushOpacity(200, 0, 200, 300, future), "brush end is inclusive")
	assert.Equal(t, OutsideBrushOpacity, BrushOpacity(201, 0, 200, 150, future))
	assert.Equal(t, OutsideBrushOpacity, BrushOpacity(-1, 0, 200, 150, future))
}

func TestFocusStroke(t *testing.T) {
	tests := []struct {
		name     string
		reading  models.Reading
		expected string
	}{
		{"device family", models.Reading{Kind: models.KindSGV, Device: "Dexcom G6"}, StrokeDeviceFamily},
		{"device family lower case", models.Reading{Kind: models.KindMBG, Device: "dexcom-share"}, StrokeDeviceFamily},
		{"prefix only", models.Reading{Kind: models.KindSGV, Device: "xDrip-Dexcom"}, StrokeDefault},
		{"forecast uses own color", models.Reading{Kind: models.KindForecast, Color: "cyan"}, "cyan"},
		{"other", models.Reading{Kind: models.KindSGV, Device: "Libre"}, StrokeDefault},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, FocusStroke(&tt.reading))
		})
	}
}
