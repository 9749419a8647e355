package scene

import (
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/mrcode/nightscout-chart/internal/basal"
	"github.com/mrcode/nightscout-chart/internal/geometry"
	"github.com/mrcode/nightscout-chart/internal/models"
)

// Default chart configuration
const (
	DefaultOffScaleMgdl = 450
	DefaultBandMgdl     = 50
	DefaultForecastTime = 30 * time.Minute
)

// Viewport maps data space to pixels for the current frame. Implementations
// are rebuilt by the caller whenever the window or the brush changes.
type Viewport interface {
	// X and Y place records on the focus pane; Y takes display units
	X(mills int64) float64
	Y(value float64) float64
	// X2 and Y2 place records on the context pane
	X2(mills int64) float64
	Y2(value float64) float64
	// XBasal and YBasal place the basal pane; maxRate is the highest rate of the pass
	XBasal(mills int64) float64
	YBasal(rate, maxRate float64) float64

	Width() float64
	BrushExtent() (from, to int64)
	FocusRange() time.Duration
	FutureOpacity(deltaMs int64) float64
}

// KeySet reports the keys currently bound to each layer of a surface
type KeySet interface {
	Keys(layer Layer) []string
}

// Tooltips builds the hover payloads of elements
type Tooltips interface {
	Reading(r *models.Reading) string
	Treatment(t *models.Treatment) string
}

// Observer is notified after every pass
type Observer interface {
	ObservePass(frame *Frame, elapsed time.Duration)
}

// Config holds the chart tuning
type Config struct {
	Settings     models.Settings // Units and reading colors
	Focus        geometry.FocusConfig
	ShowLabels   bool
	ForecastTime time.Duration // Basal is drawn this far past now
	BasalStep    time.Duration
	OffScaleMgdl float64 // Where readings without a value are drawn
	BandMgdl     float64 // Where duration bands are drawn
}

// DefaultConfig returns the chart defaults
func DefaultConfig() Config {
	return Config{
		Settings:     models.DefaultSettings(),
		Focus:        geometry.DefaultFocusConfig(),
		ForecastTime: DefaultForecastTime,
		BasalStep:    basal.DefaultStep,
		OffScaleMgdl: DefaultOffScaleMgdl,
		BandMgdl:     DefaultBandMgdl,
	}
}

// Dataset is everything one pass draws
type Dataset struct {
	Readings   []models.Reading // sgv, mbg and rawbg entries
	Forecast   []models.Reading // Appended to the focus pane only
	Treatments []models.Treatment
	TempBasals []models.TempBasal
	Profile    basal.Profile // Nil skips the basal pane
	Now        int64
}

// Option applies a configuration option to the Chart.
type Option func(*Chart)

// WithTooltips sets the tooltip formatter.
func WithTooltips(t Tooltips) Option {
	return func(c *Chart) {
		if t != nil {
			c.tooltips = t
		}
	}
}

// WithLogger sets the logger diagnostics are reported to.
func WithLogger(l *slog.Logger) Option {
	return func(c *Chart) {
		if l != nil {
			c.log = l
		}
	}
}

// WithObserver registers a pass observer.
func WithObserver(o Observer) Option {
	return func(c *Chart) {
		if o != nil {
			c.observers = append(c.observers, o)
		}
	}
}

// Chart computes frames. It holds no per-pass state, so identical inputs
// always produce identical element attributes.
type Chart struct {
	cfg       Config
	tooltips  Tooltips
	log       *slog.Logger
	observers []Observer
}

// NewChart creates a chart with the given configuration
func NewChart(cfg Config, opts ...Option) *Chart {
	if cfg.OffScaleMgdl == 0 {
		cfg.OffScaleMgdl = DefaultOffScaleMgdl
	}
	if cfg.BandMgdl == 0 {
		cfg.BandMgdl = DefaultBandMgdl
	}
	if cfg.BasalStep == 0 {
		cfg.BasalStep = basal.DefaultStep
	}
	c := &Chart{
		cfg: cfg,
		log: slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Config returns the chart configuration
func (c *Chart) Config() Config {
	return c.cfg
}

// Render runs one pass: it recomputes every element of the dataset, diffs
// each layer against the keys the surface holds and resamples the basal
// pane. Bad records become diagnostics on the frame; only configuration
// errors fail the pass.
func (c *Chart) Render(vp Viewport, keys KeySet, data Dataset) (*Frame, error) {
	start := time.Now()
	p := &pass{
		cfg:      c.cfg,
		vp:       vp,
		tooltips: c.tooltips,
		latest:   latestReading(data.Readings, data.Now),
		entries:  placeable(data.Readings),
		frame:    &Frame{ID: uuid.NewString()},
	}

	focus := make([]models.Reading, 0, len(data.Readings)+len(data.Forecast))
	focus = append(focus, data.Readings...)
	focus = append(focus, data.Forecast...)

	treatments := lo.Reject(data.Treatments, func(t models.Treatment, _ int) bool {
		return t.IsTempBasal()
	})
	glyphs, rest := lo.FilterReject(treatments, func(t models.Treatment, _ int) bool {
		return t.HasCarbs() || t.HasInsulin()
	})
	bands, dots := lo.FilterReject(rest, func(t models.Treatment, _ int) bool {
		return t.Duration > 0
	})

	elements := map[Layer][]Element{
		LayerContext:         p.readings(LayerContext, data.Readings, p.contextCircle),
		LayerDurationBands:   p.treatments(LayerDurationBands, bands, p.durationBand),
		LayerFocus:           p.readings(LayerFocus, focus, p.focusCircle),
		LayerTreatmentDots:   p.treatments(LayerTreatmentDots, dots, p.treatmentDot),
		LayerTreatmentGlyphs: p.treatments(LayerTreatmentGlyphs, glyphs, p.treatmentGlyph),
	}
	for _, layer := range Layers {
		p.frame.Layers = append(p.frame.Layers, p.reconcile(layer, keys, elements[layer]))
	}

	if data.Profile != nil {
		paths, err := p.basal(data)
		if err != nil {
			return nil, err
		}
		p.frame.Basal = paths
	}

	for _, d := range p.frame.Diagnostics {
		c.log.Warn("bad data",
			slog.String("frame", p.frame.ID),
			slog.String("kind", string(d.Kind)),
			slog.String("layer", string(d.Layer)),
			slog.String("key", d.Key),
			slog.String("reason", d.Reason))
	}

	elapsed := time.Since(start)
	for _, o := range c.observers {
		o.ObservePass(p.frame, elapsed)
	}
	return p.frame, nil
}

// reconcile diffs the target elements of a layer against the bound keys
func (p *pass) reconcile(layer Layer, keys KeySet, elements []Element) LayerUpdate {
	var old []string
	if keys != nil {
		old = keys.Keys(layer)
	}
	diff := Reconcile(old, elements, func(e Element) string { return e.Key })

	for _, dup := range diff.Duplicates {
		p.diagnose(MalformedRecord, layer, dup.Key, "duplicate key")
	}
	return LayerUpdate{
		Layer:      layer,
		Enter:      diff.Entering,
		Update:     diff.Continuing,
		Exit:       diff.Exiting,
		Duplicates: lo.Map(diff.Duplicates, func(e Element, _ int) string { return e.Key }),
	}
}

func (p *pass) basal(data Dataset) (*BasalPaths, error) {
	brushFrom, brushTo := p.vp.BrushExtent()
	to := max(brushTo, data.Now) + p.cfg.ForecastTime.Milliseconds()

	series, err := basal.Resample(data.Profile, data.TempBasals, brushFrom, to, p.cfg.BasalStep)
	if err != nil {
		return nil, fmt.Errorf("resampling basal: %w", err)
	}

	maxRate := series.MaxRate()
	vertices := func(points []basal.Point) []Vertex {
		return lo.Map(points, func(pt basal.Point, _ int) Vertex {
			return Vertex{X: p.vp.XBasal(pt.Mills), Y: p.vp.YBasal(pt.Rate, maxRate)}
		})
	}

	return &BasalPaths{
		Series:        series,
		Line:          vertices(series.Committed),
		Scheduled:     vertices(series.Scheduled),
		ScheduledArea: vertices(series.ScheduledArea),
		OverrideArea:  vertices(series.OverrideArea),
		Baseline:      p.vp.YBasal(0, maxRate),
		Labels: lo.Map(series.Labels, func(l basal.Label, _ int) Text {
			return Text{
				Value:    l.Text,
				X:        p.vp.XBasal(l.Mills),
				Y:        BasalLabelY,
				FontSize: BasalLabelFontSize,
				Color:    BasalLabelColor,
			}
		}),
	}, nil
}

// latestReading returns the time of the latest sgv, falling back to the
// latest reading of any kind and then to now
func latestReading(readings []models.Reading, now int64) int64 {
	var latestSGV, latest int64
	for _, r := range readings {
		if r.Kind == models.KindSGV {
			latestSGV = max(latestSGV, r.Mills)
		}
		latest = max(latest, r.Mills)
	}
	switch {
	case latestSGV > 0:
		return latestSGV
	case latest > 0:
		return latest
	}
	return now
}
