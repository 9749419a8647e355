package render

import (
	"fmt"
	"image"
	"image/png"
	"io"
	"math"
	"sync"

	"github.com/fogleman/gg"
	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/mrcode/nightscout-chart/internal/arcs"
	"github.com/mrcode/nightscout-chart/internal/scene"
	"github.com/mrcode/nightscout-chart/internal/viewport"
)

// Layout tells the surface how large the image is and where each pane sits
type Layout interface {
	Size() (width, height float64)
	PaneRect(p scene.Pane) viewport.Rect
}

// fontCache parses the embedded font once and keeps one face per size
type fontCache struct {
	once  sync.Once
	font  *truetype.Font
	err   error
	mu    sync.Mutex
	faces map[float64]font.Face
}

func newFontCache() *fontCache {
	return &fontCache{faces: make(map[float64]font.Face)}
}

func (c *fontCache) face(size float64) (font.Face, error) {
	c.once.Do(func() {
		c.font, c.err = truetype.Parse(goregular.TTF)
	})
	if c.err != nil {
		return nil, fmt.Errorf("parsing font: %w", c.err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if f, ok := c.faces[size]; ok {
		return f, nil
	}
	f := truetype.NewFace(c.font, &truetype.Options{Size: size})
	c.faces[size] = f
	return f, nil
}

// Draw rasterizes the retained elements
func (s *Surface) Draw(layout Layout) (image.Image, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	w, h := layout.Size()
	dc := gg.NewContext(int(math.Ceil(w)), int(math.Ceil(h)))

	if bg, ok := parseColor(s.background); ok {
		dc.SetColor(bg)
		dc.Clear()
	}

	if s.basal != nil {
		if err := s.drawBasal(dc, layout.PaneRect(scene.PaneBasal)); err != nil {
			return nil, err
		}
	}

	for _, l := range scene.Layers {
		ls := s.layers[l]
		for _, k := range ls.order {
			e := ls.elements[k]
			clip(dc, layout.PaneRect(e.Attrs.Pane))
			if err := s.drawElement(dc, &e.Attrs); err != nil {
				return nil, err
			}
			dc.ResetClip()
		}
	}

	return dc.Image(), nil
}

// EncodePNG draws the surface and writes it as a PNG image
func (s *Surface) EncodePNG(w io.Writer, layout Layout) error {
	img, err := s.Draw(layout)
	if err != nil {
		return err
	}
	if err := png.Encode(w, img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}

func clip(dc *gg.Context, r viewport.Rect) {
	dc.DrawRectangle(r.X, r.Y, r.W, r.H)
	dc.Clip()
}

func setColor(dc *gg.Context, c string, opacity float64) bool {
	rgba, ok := parseColor(c)
	if !ok {
		return false
	}
	dc.SetRGBA(float64(rgba.R)/255, float64(rgba.G)/255, float64(rgba.B)/255, opacity)
	return true
}

func (s *Surface) drawElement(dc *gg.Context, a *scene.Attrs) error {
	switch a.Shape {
	case scene.ShapeCircle:
		drawCircle(dc, a)
	case scene.ShapeBand:
		return s.drawBand(dc, a)
	case scene.ShapeGlyph:
		return s.drawGlyph(dc, a)
	}
	return nil
}

func drawCircle(dc *gg.Context, a *scene.Attrs) {
	dc.DrawCircle(a.X, a.Y, a.R)
	if setColor(dc, a.Fill, a.Opacity) {
		dc.FillPreserve()
	}
	if a.StrokeWidth > 0 && setColor(dc, a.Stroke, a.Opacity) {
		dc.SetLineWidth(a.StrokeWidth)
		dc.StrokePreserve()
	}
	dc.ClearPath()
}

func (s *Surface) drawBand(dc *gg.Context, a *scene.Attrs) error {
	dc.Push()
	defer dc.Pop()
	dc.Translate(a.X, a.Y)

	dc.DrawRoundedRectangle(0, 0, a.Width, a.Height, a.CornerR)
	if setColor(dc, a.Fill, a.Opacity) {
		dc.Fill()
	}
	dc.ClearPath()

	if a.Text != nil {
		return s.drawText(dc, a.Text)
	}
	return nil
}

func (s *Surface) drawText(dc *gg.Context, t *scene.Text) error {
	if t.Value == "" || t.FontSize <= 0 {
		return nil
	}
	face, err := s.fonts.face(t.FontSize)
	if err != nil {
		return err
	}
	dc.SetFontFace(face)
	color := t.Color
	if color == "" {
		color = "white"
	}
	if setColor(dc, color, 1) {
		dc.DrawStringAnchored(t.Value, t.X, t.Y, 0.5, 0.5)
	}
	return nil
}

func (s *Surface) drawGlyph(dc *gg.Context, a *scene.Attrs) error {
	dc.Push()
	defer dc.Pop()
	dc.Translate(a.X, a.Y)

	for i := range a.Sectors {
		drawSector(dc, &a.Sectors[i], a.Opacity)
	}
	for _, l := range a.Labels {
		if err := s.drawText(dc, &scene.Text{Value: l.Text, X: l.X, Y: l.Y, FontSize: l.FontSize}); err != nil {
			return err
		}
	}
	return nil
}

// drawSector traces an annular sector. Sector angles start at 12 o'clock
// and run clockwise; gg angles start at 3 o'clock.
func drawSector(dc *gg.Context, sec *arcs.Sector, opacity float64) {
	if sec.OuterRadius <= 0 {
		return
	}
	a0 := sec.StartAngle - math.Pi/2
	a1 := sec.EndAngle - math.Pi/2

	dc.NewSubPath()
	if sec.InnerRadius <= 0 {
		dc.MoveTo(0, 0)
		dc.DrawArc(0, 0, sec.OuterRadius, a0, a1)
	} else {
		dc.DrawArc(0, 0, sec.OuterRadius, a0, a1)
		dc.DrawArc(0, 0, sec.InnerRadius, a1, a0)
	}
	dc.ClosePath()

	if setColor(dc, sec.Fill(), opacity) {
		dc.FillPreserve()
	}
	if sw := sec.StrokeWidth(); sw > 0 && setColor(dc, sec.Color, opacity) {
		dc.SetLineWidth(sw)
		dc.StrokePreserve()
	}
	dc.ClearPath()
}

func (s *Surface) drawBasal(dc *gg.Context, pane viewport.Rect) error {
	b := s.basal
	clip(dc, pane)
	defer dc.ResetClip()

	fillArea(dc, b.ScheduledArea, b.Baseline, scene.ScheduledAreaOpacity)
	fillArea(dc, b.OverrideArea, b.Baseline, scene.OverrideAreaOpacity)

	if setColor(dc, scene.BasalColor, 1) {
		dc.SetDash(scene.ScheduledLineDashSize, scene.ScheduledLineDashSize)
		dc.SetLineWidth(scene.ScheduledLineWidth)
		stepPath(dc, b.Scheduled)
		dc.Stroke()

		dc.SetDash()
		dc.SetLineWidth(scene.BasalLineWidth)
		stepPath(dc, b.Line)
		dc.Stroke()
	}

	for i := range b.Labels {
		if err := s.drawText(dc, &b.Labels[i]); err != nil {
			return err
		}
	}
	return nil
}

// stepPath traces a step-after line through the vertices
func stepPath(dc *gg.Context, vs []scene.Vertex) {
	dc.NewSubPath()
	for i, v := range vs {
		if i == 0 {
			dc.MoveTo(v.X, v.Y)
			continue
		}
		dc.LineTo(v.X, vs[i-1].Y)
		dc.LineTo(v.X, v.Y)
	}
}

func fillArea(dc *gg.Context, vs []scene.Vertex, baseline, opacity float64) {
	if len(vs) == 0 || !setColor(dc, scene.BasalColor, opacity) {
		return
	}
	dc.NewSubPath()
	dc.MoveTo(vs[0].X, baseline)
	for i, v := range vs {
		if i > 0 {
			dc.LineTo(v.X, vs[i-1].Y)
		}
		dc.LineTo(v.X, v.Y)
	}
	dc.LineTo(vs[len(vs)-1].X, baseline)
	dc.ClosePath()
	dc.Fill()
}
