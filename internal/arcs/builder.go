// Package arcs builds the dual-arc glyph drawn for carb and insulin treatments.
//
// A glyph is two half discs: the carb side spans [-π/2, π/2] and the insulin
// side spans [π/2, 3π/2]. Each side has a wedge sized by the smaller of the two
// normalized quantities and a thin ring sized by the larger one, so the
// dominating side is readable without the wedges overlapping.
package arcs

import (
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/mrcode/nightscout-chart/internal/models"
)

// Glyph constants
const (
	DefaultCarbRatio = 20
	DefaultInsulin   = 1
	RingWidth        = 8 // Ring thickness before scaling
	PixelsPerRadius  = 5 // Radius multiplier applied when drawing
	LabelFontSize    = 40
	labelDistance    = 2.1
)

// Side colors
const (
	CarbColor    = "white"
	InsulinColor = "#0099ff"
)

// Sector indices within Glyph.Sectors
const (
	CarbWedge = iota
	CarbRing
	InsulinWedge
	InsulinRing
)

// ErrNumericDegeneracy is returned when a glyph radius is not a finite number
var ErrNumericDegeneracy = errors.New("glyph radius is not a number")

// Options control glyph sizing
type Options struct {
	Scale      float64 // Bubble scale; higher values draw smaller glyphs
	ShowLabels bool
}

// Radii are the unscaled glyph radii
type Radii struct {
	R1 float64 // Outer radius of the wedges
	R2 float64 // Inner radius of the rings
	R3 float64 // Outer radius of the rings
}

// Sector is an annular sector in pixels, relative to the glyph center
type Sector struct {
	StartAngle  float64
	EndAngle    float64
	InnerRadius float64
	OuterRadius float64
	Color       string
	Label       string
	OutlineOnly bool
}

// Fill returns the fill color of the sector
func (s *Sector) Fill() string {
	if s.OutlineOnly {
		return "transparent"
	}
	return s.Color
}

// StrokeWidth returns the outline width of the sector
func (s *Sector) StrokeWidth() float64 {
	if s.OutlineOnly {
		return 1
	}
	return 0
}

// Centroid returns the midpoint of the sector in pixels
func (s *Sector) Centroid() (x, y float64) {
	r := (s.InnerRadius + s.OuterRadius) / 2
	a := (s.StartAngle+s.EndAngle)/2 - math.Pi/2
	return r * math.Cos(a), r * math.Sin(a)
}

// Label is a quantity label placed next to a ring
type Label struct {
	Text     string
	X, Y     float64 // Offset from the glyph center
	FontSize float64
}

// Glyph is the complete description of one treatment marker
type Glyph struct {
	Radii   Radii
	Sectors [4]Sector
	Labels  []Label
}

// Radius returns the outermost pixel radius of the glyph
func (g *Glyph) Radius() float64 {
	return g.Radii.R3 * PixelsPerRadius
}

// CalcRadii computes the glyph radii for a treatment. Absent quantities fall
// back to a typical value so a carb-only or insulin-only entry still draws
// a balanced glyph.
func CalcRadii(t *models.Treatment, scale float64) Radii {
	cr := t.CR
	if cr == 0 {
		cr = DefaultCarbRatio
	}
	carbs := cr
	if t.Carbs != nil {
		carbs = *t.Carbs
	}
	insulin := float64(DefaultInsulin)
	if t.Insulin != nil {
		insulin = *t.Insulin
	}

	r1 := math.Sqrt(math.Min(carbs, insulin*cr)) / scale
	r2 := math.Sqrt(math.Max(carbs, insulin*cr)) / scale
	return Radii{
		R1: r1,
		R2: r2,
		R3: r2 + RingWidth/scale,
	}
}

func (r Radii) valid() bool {
	for _, v := range []float64{r.R1, r.R2, r.R3} {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// Build computes the glyph of a carb and/or insulin treatment
func Build(t *models.Treatment, opts Options) (Glyph, error) {
	radii := CalcRadii(t, opts.Scale)
	if !radii.valid() {
		return Glyph{}, fmt.Errorf("treatment %s: R1=%v R2=%v R3=%v: %w",
			t.Key(), radii.R1, radii.R2, radii.R3, ErrNumericDegeneracy)
	}

	wedge := radii.R1 * PixelsPerRadius
	ringIn := radii.R2 * PixelsPerRadius
	ringOut := radii.R3 * PixelsPerRadius

	carbOutline := !t.HasCarbs()
	insulinOutline := !t.HasInsulin()

	g := Glyph{Radii: radii}
	g.Sectors[CarbWedge] = Sector{
		StartAngle: -math.Pi / 2, EndAngle: math.Pi / 2,
		OuterRadius: wedge, Color: CarbColor, OutlineOnly: carbOutline,
	}
	g.Sectors[CarbRing] = Sector{
		StartAngle: -math.Pi / 2, EndAngle: math.Pi / 2,
		InnerRadius: ringIn, OuterRadius: ringOut, Color: CarbColor, OutlineOnly: carbOutline,
	}
	g.Sectors[InsulinWedge] = Sector{
		StartAngle: math.Pi / 2, EndAngle: 3 * math.Pi / 2,
		OuterRadius: wedge, Color: InsulinColor, OutlineOnly: insulinOutline,
	}
	g.Sectors[InsulinRing] = Sector{
		StartAngle: math.Pi / 2, EndAngle: 3 * math.Pi / 2,
		InnerRadius: ringIn, OuterRadius: ringOut, Color: InsulinColor, OutlineOnly: insulinOutline,
	}

	if t.Carbs != nil && *t.Carbs > 0 {
		g.Sectors[CarbRing].Label = FormatCarbs(*t.Carbs)
	}
	if t.Insulin != nil && *t.Insulin > 0 {
		g.Sectors[InsulinRing].Label = FormatInsulin(*t.Insulin)
	}

	if opts.ShowLabels {
		for _, idx := range []int{CarbRing, InsulinRing} {
			s := g.Sectors[idx]
			if s.Label == "" {
				continue
			}
			x, y := s.Centroid()
			g.Labels = append(g.Labels, Label{
				Text:     s.Label,
				X:        x * labelDistance,
				Y:        y * labelDistance,
				FontSize: LabelFontSize / opts.Scale,
			})
		}
	}

	return g, nil
}

// FormatCarbs renders a carb amount as "N g"
func FormatCarbs(carbs float64) string {
	return strconv.FormatFloat(math.Round(carbs), 'f', 0, 64) + " g"
}

// FormatInsulin renders an insulin amount rounded to two decimals as "N.NN U"
func FormatInsulin(insulin float64) string {
	return strconv.FormatFloat(math.Round(insulin*100)/100, 'f', -1, 64) + " U"
}
