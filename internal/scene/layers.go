package scene

import (
	"errors"
	"math"
	"sort"

	"github.com/mrcode/nightscout-chart/internal/arcs"
	"github.com/mrcode/nightscout-chart/internal/geometry"
	"github.com/mrcode/nightscout-chart/internal/models"
)

// Treatment styling
const (
	AnnouncementColor = "orange"
	GlucoseFillColor  = "red"
	GlucoseStroke     = "grey"
	PlainStroke       = "white"
	PlainFill         = "grey"
	ExerciseColor     = "Violet"
	NoteColor         = "Salmon"
	BandHeight        = 20.0
	BandCornerRadius  = 5.0
	BandOpacity       = 0.2
	BandFontSize      = 15.0
	BandTextY         = 10.0
	BandTextColor     = "white"
	ContextStroke     = "white"
	TreatmentStroke   = 2.0
	ForecastFill      = "none"
)

// pass carries the inputs of one Render call
type pass struct {
	cfg      Config
	vp       Viewport
	tooltips Tooltips
	latest   int64            // Time of the latest sensor reading
	entries  []models.Reading // Valued readings by time, to place treatments without glucose
	frame    *Frame
}

func (p *pass) diagnose(kind DiagnosticKind, layer Layer, key, reason string) {
	p.frame.Diagnostics = append(p.frame.Diagnostics, Diagnostic{
		Kind:   kind,
		Layer:  layer,
		Key:    key,
		Reason: reason,
	})
}

// scaled converts a mg/dL value to display units
func (p *pass) scaled(mgdl float64) float64 {
	return models.ScaleMgdl(p.cfg.Settings.Unit, mgdl)
}

// readingAttrs computes the attributes of one reading; ok is false when
// the reading must be skipped
type readingAttrs func(r *models.Reading, layer Layer) (Attrs, bool)

type treatmentAttrs func(t *models.Treatment, layer Layer) (Attrs, bool)

func (p *pass) readings(layer Layer, readings []models.Reading, attrs readingAttrs) []Element {
	out := make([]Element, 0, len(readings))
	for i := range readings {
		r := &readings[i]
		a, ok := attrs(r, layer)
		if !ok {
			continue
		}
		if !p.settle(layer, r.Key(), &a) {
			continue
		}
		e := Element{Key: r.Key(), Layer: layer, Attrs: a}
		if p.tooltips != nil {
			e.Tooltip = p.tooltips.Reading(r)
		}
		out = append(out, e)
	}
	return out
}

func (p *pass) treatments(layer Layer, treatments []models.Treatment, attrs treatmentAttrs) []Element {
	out := make([]Element, 0, len(treatments))
	for i := range treatments {
		t := &treatments[i]
		a, ok := attrs(t, layer)
		if !ok {
			continue
		}
		if !p.settle(layer, t.Key(), &a) {
			continue
		}
		e := Element{Key: t.Key(), Layer: layer, Attrs: a}
		if p.tooltips != nil {
			e.Tooltip = p.tooltips.Treatment(t)
		}
		out = append(out, e)
	}
	return out
}

// position returns the record's coordinates, substituting the time origin
// for a missing timestamp and the off-scale value for a missing glucose
// settle replaces non-finite attributes of circles and bands with sentinel
// values so their keys stay bound. A degenerate glyph is dropped.
func (p *pass) settle(layer Layer, key string, a *Attrs) bool {
	if a.Finite() {
		return true
	}
	p.diagnose(NumericDegeneracy, layer, key, "non-finite attribute")
	if a.Shape == ShapeGlyph {
		return false
	}

	x, y := p.vp.X, p.vp.Y
	if a.Pane == PaneContext {
		x, y = p.vp.X2, p.vp.Y2
	}
	a.X = finiteOr(a.X, x(0))
	a.Y = finiteOr(a.Y, y(p.scaled(p.cfg.OffScaleMgdl)))
	a.R = finiteOr(a.R, 0)
	a.Width = finiteOr(a.Width, 0)
	a.Height = finiteOr(a.Height, 0)
	a.CornerR = finiteOr(a.CornerR, 0)
	a.StrokeWidth = finiteOr(a.StrokeWidth, 0)
	a.Opacity = finiteOr(a.Opacity, 0)
	if a.Text != nil {
		a.Text.X = finiteOr(a.Text.X, 0)
		a.Text.Y = finiteOr(a.Text.Y, 0)
		a.Text.FontSize = finiteOr(a.Text.FontSize, 0)
	}
	return true
}

func finiteOr(v, fallback float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fallback
	}
	return v
}

func (p *pass) position(layer Layer, key string, mills int64, mgdl float64,
	x func(int64) float64, y func(float64) float64) (float64, float64) {
	px := x(mills)
	if mills == 0 {
		px = x(0)
		p.diagnose(MalformedRecord, layer, key, "missing timestamp")
	}

	py := math.NaN()
	if !math.IsNaN(mgdl) && !math.IsInf(mgdl, 0) {
		py = y(p.scaled(mgdl))
	}
	if math.IsNaN(py) {
		py = y(p.scaled(p.cfg.OffScaleMgdl))
		p.diagnose(MalformedRecord, layer, key, "missing glucose value")
	}
	return px, py
}

func (p *pass) focusCircle(r *models.Reading, layer Layer) (Attrs, bool) {
	x, y := p.position(layer, r.Key(), r.Mills, r.Value, p.vp.X, p.vp.Y)
	color := p.cfg.Settings.ColorFor(r)

	fill := color
	if r.Kind == models.KindForecast {
		fill = ForecastFill
	}
	stroke := geometry.FocusStroke(r)
	if r.Kind == models.KindForecast && !geometry.IsDeviceFamily(r.Device) {
		stroke = color
	}

	return Attrs{
		Shape:       ShapeCircle,
		Pane:        PaneFocus,
		X:           x,
		Y:           y,
		R:           geometry.DotRadius(r.Kind, p.vp.Width(), p.vp.FocusRange(), p.cfg.Focus),
		Fill:        fill,
		Stroke:      stroke,
		StrokeWidth: geometry.FocusStrokeWidth(r.Kind),
		Opacity:     p.vp.FutureOpacity(r.Mills - p.latest),
	}, true
}

func (p *pass) contextCircle(r *models.Reading, layer Layer) (Attrs, bool) {
	x, y := p.position(layer, r.Key(), r.Mills, r.Value, p.vp.X2, p.vp.Y2)
	brushFrom, brushTo := p.vp.BrushExtent()

	var strokeWidth float64
	if r.Kind == models.KindMBG {
		strokeWidth = 2
	}

	return Attrs{
		Shape:       ShapeCircle,
		Pane:        PaneContext,
		X:           x,
		Y:           y,
		R:           geometry.ContextRadius(r.Kind),
		Fill:        p.cfg.Settings.ColorFor(r),
		Stroke:      ContextStroke,
		StrokeWidth: strokeWidth,
		Opacity:     geometry.BrushOpacity(r.Mills, brushFrom, brushTo, p.latest, p.vp.FutureOpacity),
	}, true
}

func (p *pass) treatmentDot(t *models.Treatment, layer Layer) (Attrs, bool) {
	x, y := p.position(layer, t.Key(), t.Mills, p.treatmentGlucose(t), p.vp.X, p.vp.Y)

	stroke, fill := PlainStroke, PlainFill
	switch {
	case t.IsAnnouncement:
		stroke, fill = AnnouncementColor, AnnouncementColor
	case t.GlucoseMgdl() > 0:
		stroke, fill = GlucoseStroke, GlucoseFillColor
	}

	return Attrs{
		Shape:       ShapeCircle,
		Pane:        PaneFocus,
		X:           x,
		Y:           y,
		R:           geometry.DotRadius(models.KindMBG, p.vp.Width(), p.vp.FocusRange(), p.cfg.Focus),
		Fill:        fill,
		Stroke:      stroke,
		StrokeWidth: TreatmentStroke,
		Opacity:     1,
	}, true
}

func (p *pass) durationBand(t *models.Treatment, layer Layer) (Attrs, bool) {
	x, y := p.position(layer, t.Key(), t.Mills, p.cfg.BandMgdl, p.vp.X, p.vp.Y)
	end := t.Mills + int64(t.Duration*60_000)
	width := p.vp.X(end) - p.vp.X(t.Mills)

	fill := PlainFill
	switch t.EventType {
	case models.TreatmentEventTypes.Exercise:
		fill = ExerciseColor
	case models.TreatmentEventTypes.Note:
		fill = NoteColor
	}

	a := Attrs{
		Shape:   ShapeBand,
		Pane:    PaneFocus,
		X:       x,
		Y:       y,
		Width:   width,
		Height:  BandHeight,
		CornerR: BandCornerRadius,
		Fill:    fill,
		Opacity: BandOpacity,
	}
	if t.Notes != "" {
		a.Text = &Text{
			Value:    t.Notes,
			X:        width / 2,
			Y:        BandTextY,
			FontSize: BandFontSize,
			Color:    BandTextColor,
		}
	}
	return a, true
}

func (p *pass) treatmentGlyph(t *models.Treatment, layer Layer) (Attrs, bool) {
	// Glyphs far outside the focus pane are not built at all
	width := p.vp.Width()
	if x := p.vp.X(t.Mills); x < -width || x > 2*width {
		return Attrs{}, false
	}

	scale := geometry.BubbleScale(width, p.vp.FocusRange(), p.cfg.Focus)
	g, err := arcs.Build(t, arcs.Options{Scale: scale, ShowLabels: p.cfg.ShowLabels})
	if err != nil {
		kind := MalformedRecord
		if errors.Is(err, arcs.ErrNumericDegeneracy) {
			kind = NumericDegeneracy
		}
		p.diagnose(kind, layer, t.Key(), err.Error())
		return Attrs{}, false
	}

	x, y := p.position(layer, t.Key(), t.Mills, p.treatmentGlucose(t), p.vp.X, p.vp.Y)
	return Attrs{
		Shape:   ShapeGlyph,
		Pane:    PaneFocus,
		X:       x,
		Y:       y,
		R:       g.Radius(),
		Opacity: 1,
		Sectors: g.Sectors[:],
		Labels:  g.Labels,
	}, true
}

// treatmentGlucose returns the entered glucose of a treatment or, when none
// was entered, the value of the closest reading in time. NaN when neither
// exists.
func (p *pass) treatmentGlucose(t *models.Treatment) float64 {
	if g := t.GlucoseMgdl(); g > 0 {
		return g
	}
	return nearestValue(p.entries, t.Mills)
}

// placeable returns the readings treatments can be placed against, oldest first
func placeable(readings []models.Reading) []models.Reading {
	out := make([]models.Reading, 0, len(readings))
	for _, r := range readings {
		if r.HasValue() && (r.Kind == models.KindSGV || r.Kind == models.KindMBG) {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mills < out[j].Mills })
	return out
}

// nearestValue expects readings sorted by time
func nearestValue(readings []models.Reading, mills int64) float64 {
	if len(readings) == 0 {
		return math.NaN()
	}

	i := sort.Search(len(readings), func(i int) bool { return readings[i].Mills >= mills })
	switch {
	case i == 0:
		return readings[0].Value
	case i == len(readings):
		return readings[len(readings)-1].Value
	case mills-readings[i-1].Mills <= readings[i].Mills-mills:
		return readings[i-1].Value
	default:
		return readings[i].Value
	}
}
