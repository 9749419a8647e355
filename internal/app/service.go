// Package app wires snapshots, the chart, the render surface and the
// notifiers into one update loop.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/mrcode/nightscout-chart/internal/basal"
	"github.com/mrcode/nightscout-chart/internal/config"
	"github.com/mrcode/nightscout-chart/internal/forecast"
	"github.com/mrcode/nightscout-chart/internal/metrics"
	"github.com/mrcode/nightscout-chart/internal/models"
	"github.com/mrcode/nightscout-chart/internal/notifications"
	"github.com/mrcode/nightscout-chart/internal/render"
	"github.com/mrcode/nightscout-chart/internal/scene"
	"github.com/mrcode/nightscout-chart/internal/tooltip"
	"github.com/mrcode/nightscout-chart/internal/viewport"
)

// ErrNoFrame is returned when drawing before the first successful update
var ErrNoFrame = errors.New("no frame rendered yet")

// Service keeps one render surface up to date with the latest snapshot
type Service struct {
	cfg        *config.Config
	chart      *scene.Chart
	surface    *render.Surface
	forecaster *forecast.Forecaster
	notifier   *notifications.TreatmentNotifier
	recorder   *metrics.Recorder
	log        *slog.Logger
	clock      func() time.Time

	mu                sync.Mutex
	layout            *viewport.State
	consecutiveErrors int
	lastSuccessTime   time.Time
}

// Option applies a configuration option to the Service.
type Option func(*Service)

// WithNotifications announces fresh treatments on sink.
func WithNotifications(sink notifications.Sink) Option {
	return func(s *Service) {
		if sink != nil {
			s.notifier = notifications.NewTreatmentNotifier(sink, s.cfg.Unit)
		}
	}
}

// WithRecorder records every pass.
func WithRecorder(r *metrics.Recorder) Option {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.log = l
		}
	}
}

// WithClock sets the time used for snapshots without their own.
func WithClock(now func() time.Time) Option {
	return func(s *Service) {
		if now != nil {
			s.clock = now
		}
	}
}

// New creates a service for cfg
func New(cfg *config.Config, opts ...Option) *Service {
	s := &Service{
		cfg:        cfg,
		surface:    render.NewSurface(),
		forecaster: forecast.New(forecast.DefaultParameters()),
		log:        slog.New(slog.NewTextHandler(io.Discard, nil)),
		clock:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}

	chartOpts := []scene.Option{
		scene.WithTooltips(tooltip.NewFormatter(cfg.Unit)),
		scene.WithLogger(s.log),
	}
	if s.recorder != nil {
		chartOpts = append(chartOpts, scene.WithObserver(s.recorder))
	}
	s.chart = scene.NewChart(cfg.Chart(), chartOpts...)
	return s
}

// Surface returns the surface frames are applied to
func (s *Service) Surface() *render.Surface {
	return s.surface
}

// Update runs one pass over snap and applies it to the surface
func (s *Service) Update(snap *models.Snapshot) (*scene.Frame, error) {
	frame, layout, err := s.pass(snap)
	if err != nil {
		s.mu.Lock()
		s.consecutiveErrors++
		errorCount := s.consecutiveErrors
		s.mu.Unlock()

		if s.recorder != nil {
			s.recorder.RenderFailed()
		}
		s.log.Error("chart update failed", "attempt", errorCount, "error", err)
		return nil, err
	}

	s.surface.Apply(frame)

	s.mu.Lock()
	s.layout = layout
	s.consecutiveErrors = 0
	s.lastSuccessTime = s.clock()
	s.mu.Unlock()

	entering, continuing, exiting := frame.Counts()
	s.log.Debug("chart updated",
		"frame", frame.ID,
		"entering", entering,
		"continuing", continuing,
		"exiting", exiting,
		"diagnostics", len(frame.Diagnostics))

	if s.notifier != nil {
		s.notifier.Check(snap.MBGs(), snap.Treatments, snapshotTime(snap, s.clock))
	}
	return frame, nil
}

func (s *Service) pass(snap *models.Snapshot) (*scene.Frame, *viewport.State, error) {
	at := snapshotTime(snap, s.clock)

	layout, err := viewport.New(s.cfg.Viewport(at))
	if err != nil {
		return nil, nil, fmt.Errorf("building viewport: %w", err)
	}

	// A nil schedule must stay a nil interface
	var profile basal.Profile
	if len(snap.Profile.Basal) > 0 {
		schedule, err := basal.NewSchedule(snap.Profile)
		if err != nil {
			return nil, nil, fmt.Errorf("loading profile: %w", err)
		}
		profile = schedule
	}

	data := scene.Dataset{
		Readings:   snap.Entries,
		Forecast:   s.forecaster.Predict(snap.Entries, snap.Treatments, s.cfg.ForecastTime(), forecast.DefaultInterval),
		Treatments: snap.ChartTreatments(),
		TempBasals: snap.TempBasals(),
		Profile:    profile,
		Now:        at,
	}
	frame, err := s.chart.Render(layout, s.surface, data)
	if err != nil {
		return nil, nil, err
	}
	return frame, layout, nil
}

// UpdateFile loads the snapshot at path and updates from it
func (s *Service) UpdateFile(path string) (*scene.Frame, error) {
	snap, err := models.LoadSnapshot(path)
	if err != nil {
		s.log.Warn("loading snapshot failed", "path", path, "error", err)
		return nil, err
	}
	return s.Update(snap)
}

// EncodePNG writes the surface as laid out by the latest update
func (s *Service) EncodePNG(w io.Writer) error {
	s.mu.Lock()
	layout := s.layout
	s.mu.Unlock()

	if layout == nil {
		return ErrNoFrame
	}
	return s.surface.EncodePNG(w, layout)
}

// WritePNG writes the surface to a file
func (s *Service) WritePNG(path string) error {
	f, err := os.Create(path) //nolint:gosec // Path is supplied by the operator
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	if err := s.EncodePNG(f); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

// Hover returns the tooltip under the pixel (x, y) and the time there
func (s *Service) Hover(x, y float64) (tip string, at time.Time, ok bool) {
	s.mu.Lock()
	layout := s.layout
	s.mu.Unlock()

	e, found := s.surface.HoverAt(x, y)
	if !found || layout == nil {
		return "", time.Time{}, false
	}
	return e.Tooltip, time.UnixMilli(layout.Time(x)), true
}

// Status reports consecutive failures and the time of the last success
func (s *Service) Status() (consecutiveErrors int, lastSuccess time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.consecutiveErrors, s.lastSuccessTime
}

// Watch updates from path now and again every time the file is written,
// calling onFrame after each successful pass. All passes run on the calling
// goroutine. It returns when ctx is done.
func (s *Service) Watch(ctx context.Context, path string, onFrame func(*scene.Frame)) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed creating file watcher: %w", err)
	}
	defer func() { _ = watcher.Close() }()

	// Editors replace files, so the directory is watched
	abs, err := filepath.Abs(path)
	if err != nil {
		return fmt.Errorf("resolving %s: %w", path, err)
	}
	if err := watcher.Add(filepath.Dir(abs)); err != nil {
		return fmt.Errorf("watching %s: %w", path, err)
	}

	update := func() {
		frame, err := s.UpdateFile(abs)
		if err != nil {
			return
		}
		if onFrame != nil {
			onFrame(frame)
		}
	}
	update()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(ev.Name) != abs || !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) {
				continue
			}
			update()
		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			s.log.Warn("file watcher error", "error", err)
		}
	}
}

func snapshotTime(snap *models.Snapshot, clock func() time.Time) int64 {
	if snap.Now > 0 {
		return snap.Now
	}
	return clock().UnixMilli()
}
