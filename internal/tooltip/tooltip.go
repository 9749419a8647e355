// Package tooltip formats the hover payloads of chart elements as small HTML
// fragments, translating every label.
package tooltip

import (
	"html"
	"strconv"
	"strings"
	"time"

	"github.com/mrcode/nightscout-chart/internal/geometry"
	"github.com/mrcode/nightscout-chart/internal/models"
)

// DefaultTimeFormat is the clock format used in tooltips
const DefaultTimeFormat = "15:04"

// Translator resolves a display label
type Translator interface {
	Translate(key string) string
}

// Dictionary is a map-backed translator. Unknown keys are returned as-is.
type Dictionary map[string]string

// Translate returns the translation of key, or key itself
func (d Dictionary) Translate(key string) string {
	if v, ok := d[key]; ok && v != "" {
		return v
	}
	return key
}

// noiseLabels maps CGM noise codes to labels
var noiseLabels = map[int]string{
	1: "Clean",
	2: "Light",
	3: "Medium",
	4: "Heavy",
}

// Formatter builds tooltips for readings and treatments
type Formatter struct {
	tr         Translator
	unit       string
	loc        *time.Location
	timeFormat string
}

// Option applies a configuration option to the Formatter.
type Option func(*Formatter)

// WithTranslator sets the translator.
func WithTranslator(tr Translator) Option {
	return func(f *Formatter) {
		if tr != nil {
			f.tr = tr
		}
	}
}

// WithLocation sets the time zone times are shown in.
func WithLocation(loc *time.Location) Option {
	return func(f *Formatter) {
		if loc != nil {
			f.loc = loc
		}
	}
}

// WithTimeFormat sets the clock format.
func WithTimeFormat(layout string) Option {
	return func(f *Formatter) {
		if layout != "" {
			f.timeFormat = layout
		}
	}
}

// NewFormatter creates a formatter for the given display unit
func NewFormatter(unit string, opts ...Option) *Formatter {
	f := &Formatter{
		tr:         Dictionary{},
		unit:       unit,
		loc:        time.Local,
		timeFormat: DefaultTimeFormat,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// builder accumulates "<strong>Label:</strong> value" lines
type builder struct {
	f     *Formatter
	lines []string
}

func (b *builder) field(label, value string) {
	b.lines = append(b.lines, "<strong>"+html.EscapeString(b.f.tr.Translate(label))+":</strong> "+html.EscapeString(value))
}

func (b *builder) heading(label string) {
	b.lines = append(b.lines, "<strong>"+html.EscapeString(b.f.tr.Translate(label))+"</strong>")
}

func (b *builder) String() string {
	return strings.Join(b.lines, "<br/>")
}

func (f *Formatter) clock(mills int64) string {
	return time.UnixMilli(mills).In(f.loc).Format(f.timeFormat)
}

// glucose renders a mg/dL value in the display unit
func (f *Formatter) glucose(mgdl float64) string {
	if f.unit == models.UnitMmol {
		return strconv.FormatFloat(models.ToMmol(mgdl), 'f', 1, 64)
	}
	return strconv.FormatFloat(mgdl, 'f', 0, 64)
}

// Reading returns the tooltip of a sensor or meter reading. Other kinds
// have no tooltip.
func (f *Formatter) Reading(r *models.Reading) string {
	if r.Kind != models.KindSGV && r.Kind != models.KindMBG {
		return ""
	}

	var source string
	switch {
	case r.Kind == models.KindSGV:
		source = "CGM"
	case geometry.IsDeviceFamily(r.Device):
		source = "Calibration"
	default:
		source = "Meter"
	}

	value := "?"
	if r.HasValue() {
		value = f.glucose(r.Value)
	}

	b := &builder{f: f}
	b.lines = append(b.lines, "<strong>"+html.EscapeString(f.tr.Translate(source)+" "+f.tr.Translate("BG"))+":</strong> "+value)
	if r.Kind == models.KindMBG && r.Device != "" {
		b.field("Device", r.Device)
	}
	if label, ok := noiseLabels[r.Noise]; ok && r.Kind == models.KindSGV {
		b.field("Noise", f.tr.Translate(label))
	}
	b.field("Time", f.clock(r.Mills))
	return b.String()
}

// Treatment returns the tooltip of a treatment or announcement
func (f *Formatter) Treatment(t *models.Treatment) string {
	b := &builder{f: f}
	b.field("Time", f.clock(t.Mills))

	if t.IsAnnouncement {
		b.heading("Announcement")
		if len(t.Notes) > 1 {
			b.field("Message", t.Notes)
		}
		if t.EnteredBy != "" {
			b.field("Entered By", t.EnteredBy)
		}
		return b.String()
	}

	if t.EventType != "" {
		b.field("Treatment type", f.tr.Translate(t.EventType))
	}
	if t.HasCarbs() {
		b.field("Carbs", strconv.FormatFloat(*t.Carbs, 'f', -1, 64))
	}
	if t.HasInsulin() {
		b.field("Insulin", strconv.FormatFloat(*t.Insulin, 'f', -1, 64))
	}
	if g := t.GlucoseMgdl(); g > 0 {
		value := f.glucose(g)
		if t.GlucoseType != "" {
			value += " (" + f.tr.Translate(t.GlucoseType) + ")"
		}
		b.field("BG", value)
	}
	if t.EnteredBy != "" {
		b.field("Entered By", t.EnteredBy)
	}
	if t.Notes != "" {
		b.field("Notes", t.Notes)
	}
	if t.Duration > 0 {
		b.field("Duration", strconv.FormatFloat(t.Duration, 'f', -1, 64)+" "+f.tr.Translate("mins"))
	}
	return b.String()
}
