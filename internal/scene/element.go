package scene

import (
	"math"

	"github.com/mrcode/nightscout-chart/internal/arcs"
	"github.com/mrcode/nightscout-chart/internal/basal"
)

// Layer names one group of elements sharing a key space
type Layer string

// Chart layers, in drawing order
const (
	LayerContext         Layer = "context-readings"
	LayerDurationBands   Layer = "duration-bands"
	LayerFocus           Layer = "focus-readings"
	LayerTreatmentDots   Layer = "treatment-dots"
	LayerTreatmentGlyphs Layer = "treatment-glyphs"
)

// Layers lists every layer in drawing order
var Layers = []Layer{
	LayerContext,
	LayerDurationBands,
	LayerFocus,
	LayerTreatmentDots,
	LayerTreatmentGlyphs,
}

// Shape is the primitive an element is drawn with
type Shape string

// Shapes
const (
	ShapeCircle Shape = "circle"
	ShapeBand   Shape = "band"
	ShapeGlyph  Shape = "glyph"
)

// Pane is the clipping region an element belongs to
type Pane string

// Panes
const (
	PaneFocus   Pane = "focus"
	PaneContext Pane = "context"
	PaneBasal   Pane = "basal"
)

// Text is a string drawn relative to the element origin
type Text struct {
	Value    string
	X, Y     float64
	FontSize float64
	Color    string
}

// Attrs is the full visual state of an element. Circles are centered on
// (X, Y); bands and glyphs are translated to it.
type Attrs struct {
	Shape       Shape
	Pane        Pane
	X, Y        float64
	R           float64 // Circle radius, or outer radius of a glyph
	Width       float64 // Band width
	Height      float64 // Band height
	CornerR     float64 // Band corner radius
	Fill        string
	Stroke      string
	StrokeWidth float64
	Opacity     float64
	Text        *Text
	Sectors     []arcs.Sector
	Labels      []arcs.Label
}

// Finite reports whether no coordinate, size or opacity is NaN or infinite
func (a *Attrs) Finite() bool {
	values := []float64{a.X, a.Y, a.R, a.Width, a.Height, a.CornerR, a.StrokeWidth, a.Opacity}
	if a.Text != nil {
		values = append(values, a.Text.X, a.Text.Y, a.Text.FontSize)
	}
	for _, s := range a.Sectors {
		values = append(values, s.StartAngle, s.EndAngle, s.InnerRadius, s.OuterRadius)
	}
	for _, l := range a.Labels {
		values = append(values, l.X, l.Y, l.FontSize)
	}
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Element is the target state of one visual element for the current pass
type Element struct {
	Key     string
	Layer   Layer
	Attrs   Attrs
	Tooltip string
}

// LayerUpdate is the work list for one layer
type LayerUpdate struct {
	Layer      Layer
	Enter      []Element
	Update     []Element
	Exit       []string
	Duplicates []string
}

// Len returns the number of elements the layer holds after the update
func (u *LayerUpdate) Len() int {
	return len(u.Enter) + len(u.Update)
}

// Vertex is one point of a basal path in pixels
type Vertex struct {
	X, Y float64
}

// Basal styling
const (
	BasalColor            = "#0099ff"
	BasalLineWidth        = 2.0
	ScheduledLineWidth    = 1.0
	ScheduledAreaOpacity  = 0.1
	OverrideAreaOpacity   = 0.6
	BasalLabelFontSize    = 15.0
	BasalLabelY           = 10.0
	BasalLabelColor       = BasalColor
	ScheduledLineDashSize = 3.0
)

// BasalPaths is the basal pane of one pass. The pane is redrawn from
// scratch every pass rather than reconciled.
type BasalPaths struct {
	Series *basal.Series

	Line          []Vertex // Delivered rate, step-after
	Scheduled     []Vertex // Scheduled rate, dashed
	ScheduledArea []Vertex
	OverrideArea  []Vertex
	Baseline      float64 // Pixel Y of a zero rate, closes the areas
	Labels        []Text
}

// DiagnosticKind classifies a recoverable data problem
type DiagnosticKind string

// Diagnostic kinds
const (
	MalformedRecord   DiagnosticKind = "malformed_record"
	NumericDegeneracy DiagnosticKind = "numeric_degeneracy"
)

// Diagnostic reports a record that was drawn with a fallback or skipped
type Diagnostic struct {
	Kind   DiagnosticKind
	Layer  Layer
	Key    string
	Reason string
}

// Frame is the result of one reconciliation pass
type Frame struct {
	ID          string
	Layers      []LayerUpdate // In drawing order
	Basal       *BasalPaths   // Nil when no profile is loaded
	Diagnostics []Diagnostic
}

// Layer returns the work list of the given layer
func (f *Frame) Layer(l Layer) *LayerUpdate {
	for i := range f.Layers {
		if f.Layers[i].Layer == l {
			return &f.Layers[i]
		}
	}
	return nil
}

// Counts returns the number of entering, continuing and exiting elements
// across all layers
func (f *Frame) Counts() (entering, continuing, exiting int) {
	for _, u := range f.Layers {
		entering += len(u.Enter)
		continuing += len(u.Update)
		exiting += len(u.Exit)
	}
	return entering, continuing, exiting
}
