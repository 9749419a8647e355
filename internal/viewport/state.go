// Package viewport provides the linear scales that place chart records on
// the focus, context and basal panes.
package viewport

import (
	"errors"
	"fmt"
	"time"

	"github.com/mrcode/nightscout-chart/internal/models"
	"github.com/mrcode/nightscout-chart/internal/scene"
)

// ErrInvalidLayout is returned for layouts that cannot hold the panes
var ErrInvalidLayout = errors.New("invalid viewport layout")

// Future opacity ramp
const (
	fadeStart      = 25 * time.Minute
	fadeEnd        = 60 * time.Minute
	opacityAtStart = 0.8
	opacityAtEnd   = 0.1
	minOpacity     = 0.1
	maxOpacity     = 1
)

// Default glucose domain in mg/dL
const (
	DefaultMinMgdl = 30
	DefaultMaxMgdl = 400
)

// Pane shares of the total height
const (
	focusShare   = 0.7
	contextTop   = 0.75
	basalShare   = 0.2 // Of the focus pane
	basalHeadway = 1.2 // Headroom above the highest basal rate
)

// Rect is a pane rectangle in pixels
type Rect struct {
	X, Y, W, H float64
}

// Contains reports whether the point lies inside the rectangle
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x <= r.X+r.W && y >= r.Y && y <= r.Y+r.H
}

// Options describe one viewport
type Options struct {
	Width, Height float64
	Now           int64         // Unix milliseconds
	Focus         time.Duration // History shown in the focus pane
	Lookahead     time.Duration // Future shown after now
	Context       time.Duration // History shown in the context pane
	Units         string
	MinMgdl       float64 // Bottom of the glucose domain, default 30
	MaxMgdl       float64 // Top of the glucose domain, default 400
}

// State is a linear viewport. It is immutable; a new one is built whenever
// the window or the brush changes.
type State struct {
	width, height float64

	brushFrom, brushTo     int64
	contextFrom, contextTo int64
	yMin, yMax             float64 // Display units

	focus, context, basal Rect
}

// New builds a viewport from its options
func New(opts Options) (*State, error) {
	if opts.Width <= 0 || opts.Height <= 0 {
		return nil, fmt.Errorf("size %vx%v: %w", opts.Width, opts.Height, ErrInvalidLayout)
	}
	if opts.Focus <= 0 {
		return nil, fmt.Errorf("focus %v: %w", opts.Focus, ErrInvalidLayout)
	}
	if opts.Context < opts.Focus {
		opts.Context = opts.Focus
	}
	if opts.MinMgdl == 0 {
		opts.MinMgdl = DefaultMinMgdl
	}
	if opts.MaxMgdl == 0 {
		opts.MaxMgdl = DefaultMaxMgdl
	}
	if opts.MaxMgdl <= opts.MinMgdl {
		return nil, fmt.Errorf("glucose domain [%v, %v]: %w", opts.MinMgdl, opts.MaxMgdl, ErrInvalidLayout)
	}

	focusH := opts.Height * focusShare
	ctxY := opts.Height * contextTop

	return &State{
		width:       opts.Width,
		height:      opts.Height,
		brushFrom:   opts.Now - opts.Focus.Milliseconds(),
		brushTo:     opts.Now + opts.Lookahead.Milliseconds(),
		contextFrom: opts.Now - opts.Context.Milliseconds(),
		contextTo:   opts.Now + opts.Lookahead.Milliseconds(),
		yMin:        models.ScaleMgdl(opts.Units, opts.MinMgdl),
		yMax:        models.ScaleMgdl(opts.Units, opts.MaxMgdl),
		focus:       Rect{0, 0, opts.Width, focusH},
		context:     Rect{0, ctxY, opts.Width, opts.Height - ctxY},
		basal:       Rect{0, 0, opts.Width, focusH * basalShare},
	}, nil
}

func linear(v, d0, d1, r0, r1 float64) float64 {
	return r0 + (v-d0)/(d1-d0)*(r1-r0)
}

// X places a time on the focus pane
func (s *State) X(mills int64) float64 {
	return linear(float64(mills), float64(s.brushFrom), float64(s.brushTo), s.focus.X, s.focus.X+s.focus.W)
}

// Y places a display-unit value on the focus pane
func (s *State) Y(value float64) float64 {
	return linear(value, s.yMin, s.yMax, s.focus.Y+s.focus.H, s.focus.Y)
}

// X2 places a time on the context pane
func (s *State) X2(mills int64) float64 {
	return linear(float64(mills), float64(s.contextFrom), float64(s.contextTo), s.context.X, s.context.X+s.context.W)
}

// Y2 places a display-unit value on the context pane
func (s *State) Y2(value float64) float64 {
	return linear(value, s.yMin, s.yMax, s.context.Y+s.context.H, s.context.Y)
}

// XBasal places a time on the basal pane, which shares the focus time axis
func (s *State) XBasal(mills int64) float64 {
	return s.X(mills)
}

// YBasal places a rate on the basal pane. The pane hangs from the top of
// the focus pane, so higher rates reach further down.
func (s *State) YBasal(rate, maxRate float64) float64 {
	if maxRate <= 0 {
		return s.basal.Y
	}
	return linear(rate, 0, maxRate*basalHeadway, s.basal.Y, s.basal.Y+s.basal.H)
}

// Width returns the focus pane width
func (s *State) Width() float64 {
	return s.focus.W
}

// BrushExtent returns the time span selected on the context pane
func (s *State) BrushExtent() (from, to int64) {
	return s.brushFrom, s.brushTo
}

// FocusRange returns the width of the brush
func (s *State) FocusRange() time.Duration {
	return time.Duration(s.brushTo-s.brushFrom) * time.Millisecond
}

// FutureOpacity fades records the further they lie after the latest reading.
// The ramp runs from 0.8 at 25 minutes to 0.1 at 60 minutes and the result
// is clamped to [0.1, 1].
func (s *State) FutureOpacity(deltaMs int64) float64 {
	o := linear(float64(deltaMs),
		float64(fadeStart.Milliseconds()), float64(fadeEnd.Milliseconds()),
		opacityAtStart, opacityAtEnd)
	return min(max(o, minOpacity), maxOpacity)
}

// Size returns the surface size in pixels
func (s *State) Size() (width, height float64) {
	return s.width, s.height
}

// PaneRect returns the clipping rectangle of a pane
func (s *State) PaneRect(p scene.Pane) Rect {
	switch p {
	case scene.PaneContext:
		return s.context
	case scene.PaneBasal:
		return s.basal
	default:
		return s.focus
	}
}

// Time returns the focus pane time under a pixel column
func (s *State) Time(x float64) int64 {
	return int64(linear(x, s.focus.X, s.focus.X+s.focus.W, float64(s.brushFrom), float64(s.brushTo)))
}
