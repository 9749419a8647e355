// Package render is an offscreen rendering surface for chart frames. It
// retains the elements of every layer between passes, applies the work lists
// produced by the scene package and rasterizes the result with gg.
package render

import (
	"math"
	"sync"

	"github.com/mrcode/nightscout-chart/internal/scene"
)

// minHoverRadius keeps tiny dots reachable with a pointer
const minHoverRadius = 4

// layerState holds the elements of one layer in drawing order
type layerState struct {
	order    []string
	elements map[string]scene.Element
}

// Surface is the retained element set. Apply is the only writer.
type Surface struct {
	mu     sync.RWMutex
	layers map[scene.Layer]*layerState
	basal  *scene.BasalPaths
	frame  string

	background string
	fonts      *fontCache
}

// Option applies a configuration option to the Surface.
type Option func(*Surface)

// WithBackground sets the background color.
func WithBackground(c string) Option {
	return func(s *Surface) {
		if c != "" {
			s.background = c
		}
	}
}

// NewSurface creates an empty surface
func NewSurface(opts ...Option) *Surface {
	s := &Surface{
		layers:     make(map[scene.Layer]*layerState, len(scene.Layers)),
		background: "black",
		fonts:      newFontCache(),
	}
	for _, l := range scene.Layers {
		s.layers[l] = &layerState{elements: make(map[string]scene.Element)}
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Keys returns the keys bound to a layer, in drawing order
func (s *Surface) Keys(layer scene.Layer) []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ls, ok := s.layers[layer]
	if !ok {
		return nil
	}
	return append([]string(nil), ls.order...)
}

// Element returns the current state of one element
func (s *Surface) Element(layer scene.Layer, key string) (scene.Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ls, ok := s.layers[layer]
	if !ok {
		return scene.Element{}, false
	}
	e, ok := ls.elements[key]
	return e, ok
}

// Len returns the number of elements bound to a layer
func (s *Surface) Len(layer scene.Layer) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if ls, ok := s.layers[layer]; ok {
		return len(ls.order)
	}
	return 0
}

// FrameID returns the ID of the last applied frame
func (s *Surface) FrameID() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.frame
}

// Apply executes the work lists of a frame: exiting elements are removed,
// continuing elements take their new attributes in place and entering
// elements are appended. The basal pane is replaced wholesale.
func (s *Surface) Apply(frame *scene.Frame) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range frame.Layers {
		ls, ok := s.layers[u.Layer]
		if !ok {
			ls = &layerState{elements: make(map[string]scene.Element)}
			s.layers[u.Layer] = ls
		}

		if len(u.Exit) > 0 {
			exiting := make(map[string]struct{}, len(u.Exit))
			for _, k := range u.Exit {
				exiting[k] = struct{}{}
				delete(ls.elements, k)
			}
			kept := ls.order[:0]
			for _, k := range ls.order {
				if _, gone := exiting[k]; !gone {
					kept = append(kept, k)
				}
			}
			ls.order = kept
		}

		for _, e := range u.Update {
			if _, ok := ls.elements[e.Key]; !ok {
				ls.order = append(ls.order, e.Key)
			}
			ls.elements[e.Key] = e
		}
		for _, e := range u.Enter {
			if _, ok := ls.elements[e.Key]; !ok {
				ls.order = append(ls.order, e.Key)
			}
			ls.elements[e.Key] = e
		}
	}

	s.basal = frame.Basal
	s.frame = frame.ID
}

// HoverAt returns the topmost element with a tooltip under the given pixel
func (s *Surface) HoverAt(x, y float64) (scene.Element, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i := len(scene.Layers) - 1; i >= 0; i-- {
		ls := s.layers[scene.Layers[i]]
		for j := len(ls.order) - 1; j >= 0; j-- {
			e := ls.elements[ls.order[j]]
			if e.Tooltip != "" && hit(&e.Attrs, x, y) {
				return e, true
			}
		}
	}
	return scene.Element{}, false
}

func hit(a *scene.Attrs, x, y float64) bool {
	switch a.Shape {
	case scene.ShapeBand:
		return x >= a.X && x <= a.X+a.Width && y >= a.Y && y <= a.Y+a.Height
	default:
		return math.Hypot(x-a.X, y-a.Y) <= max(a.R, minHoverRadius)
	}
}
