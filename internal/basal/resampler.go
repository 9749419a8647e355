package basal

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/samber/lo"

	"github.com/mrcode/nightscout-chart/internal/models"
)

// DefaultStep is the resampling resolution
const DefaultStep = time.Minute

// Configuration errors
var (
	ErrInvalidWindow = errors.New("basal window starts after it ends")
	ErrInvalidStep   = errors.New("basal step must be positive")
)

// Point is one vertex of a step-after series
type Point struct {
	Mills int64
	Rate  float64
}

// Sample is the basal state at a detected change point
type Sample struct {
	Mills            int64
	ScheduledRate    float64
	EffectiveRate    float64
	IsOverrideActive bool
}

// Label marks an override at the midpoint of its interval
type Label struct {
	Mills int64
	Text  string
}

// Series is the resampled basal profile over one window
type Series struct {
	From, To int64

	Committed     []Point // Delivered rate line
	Scheduled     []Point // Scheduled rate line
	ScheduledArea []Point // Non-zero while the schedule applies
	OverrideArea  []Point // Non-zero while an override applies

	Samples []Sample
	Labels  []Label
}

// MaxRate returns the highest delivered rate, used for the basal pane domain
func (s *Series) MaxRate() float64 {
	if len(s.Committed) == 0 {
		return 0
	}
	return lo.MaxBy(s.Committed, func(a, b Point) bool { return a.Rate > b.Rate }).Rate
}

func (s *Series) emit(mills int64, eff Effective) {
	s.Committed = append(s.Committed, Point{mills, eff.TempBasal})
	s.Scheduled = append(s.Scheduled, Point{mills, eff.Basal})
	if eff.Override != nil {
		s.OverrideArea = append(s.OverrideArea, Point{mills, eff.TempBasal})
		s.ScheduledArea = append(s.ScheduledArea, Point{mills, 0})
	} else {
		s.ScheduledArea = append(s.ScheduledArea, Point{mills, eff.TempBasal})
		s.OverrideArea = append(s.OverrideArea, Point{mills, 0})
	}
	s.Samples = append(s.Samples, Sample{
		Mills:            mills,
		ScheduledRate:    eff.Basal,
		EffectiveRate:    eff.TempBasal,
		IsOverrideActive: eff.Override != nil,
	})
}

// Resample walks [from, to] at the given step and emits a vertex into every
// series only where the basal state changes. A closing vertex at to is
// always emitted so the series span the whole window.
func Resample(profile Profile, overrides []models.TempBasal, from, to int64, step time.Duration) (*Series, error) {
	if from > to {
		return nil, fmt.Errorf("from %d, to %d: %w", from, to, ErrInvalidWindow)
	}
	if step <= 0 {
		return nil, fmt.Errorf("step %v: %w", step, ErrInvalidStep)
	}
	stepMs := step.Milliseconds()
	if stepMs == 0 {
		stepMs = 1
	}

	s := &Series{From: from, To: to}

	var last *Effective
	for at := from; at <= to; at += stepMs {
		eff := profile.TempBasal(at, overrides)
		if last == nil || !last.Equal(eff) {
			s.emit(at, eff)
		}
		last = &eff
	}
	s.emit(to, profile.TempBasal(to, overrides))

	for _, o := range overrides {
		if o.Mills > to || o.End() <= from {
			continue
		}
		s.Labels = append(s.Labels, Label{
			Mills: o.Mills + (o.End()-o.Mills)/2,
			Text:  OverrideText(o),
		})
	}

	return s, nil
}

// OverrideText renders an override as "+N%", "NU" or both
func OverrideText(o models.TempBasal) string {
	var text string
	if o.Percent != nil && *o.Percent != 0 {
		if *o.Percent > 0 {
			text = "+"
		}
		text += strconv.FormatFloat(*o.Percent, 'f', -1, 64) + "%"
	}
	if o.Absolute != nil {
		text += strconv.FormatFloat(*o.Absolute, 'f', -1, 64) + "U"
	}
	return text
}
