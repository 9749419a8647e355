// Package metrics provides Prometheus metrics for chart passes.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/mrcode/nightscout-chart/internal/scene"
)

// Change labels of the element counter
const (
	changeEnter  = "enter"
	changeUpdate = "update"
	changeExit   = "exit"
)

// Pass latencies are usually well below a millisecond
var defaultBuckets = []float64{.0001, .00025, .0005, .001, .0025, .005, .01, .025, .05, .1}

// Recorder records chart passes. It implements scene.Observer.
type Recorder struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	registry         *prometheus.Registry

	passes        prometheus.Counter
	passDuration  prometheus.Histogram
	renderErrors  prometheus.Counter
	changes       *prometheus.CounterVec
	bound         *prometheus.GaugeVec
	diagnostics   *prometheus.CounterVec
	basalSamples  prometheus.Gauge
	lastPassEpoch prometheus.Gauge
}

// NewRecorder creates a recorder. Without WithPrometheusRegistry the
// metrics go to a fresh registry, see Registry.
func NewRecorder(opts ...Option) *Recorder {
	r := &Recorder{
		namespace:        "nightscout",
		subsystem:        "chart",
		histogramBuckets: defaultBuckets,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.registry == nil {
		r.registry = prometheus.NewRegistry()
	}
	r.initializeMetrics()
	return r
}

// Registry returns the registry the metrics are registered on
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}

// Handler serves the registry in the Prometheus exposition format
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

func (r *Recorder) initializeMetrics() {
	auto := promauto.With(r.registry)

	r.passes = auto.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "passes_total",
		Help:      "Total number of reconciliation passes",
	})
	r.passDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "pass_duration_seconds",
		Help:      "Time spent computing one pass",
		Buckets:   r.histogramBuckets,
	})
	r.renderErrors = auto.NewCounter(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "render_errors_total",
		Help:      "Total number of passes that failed",
	})
	r.changes = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "element_changes_total",
		Help:      "Elements entering, updating and exiting per layer",
	}, []string{"layer", "change"})
	r.bound = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "elements",
		Help:      "Elements bound to each layer after the latest pass",
	}, []string{"layer"})
	r.diagnostics = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "diagnostics_total",
		Help:      "Records drawn with a fallback or skipped",
	}, []string{"kind"})
	r.basalSamples = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "basal_samples",
		Help:      "Samples of the latest basal series",
	})
	r.lastPassEpoch = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: r.namespace,
		Subsystem: r.subsystem,
		Name:      "last_pass_timestamp_seconds",
		Help:      "Unix time of the latest pass",
	})
}

// ObservePass records one finished pass
func (r *Recorder) ObservePass(frame *scene.Frame, elapsed time.Duration) {
	r.passes.Inc()
	r.passDuration.Observe(elapsed.Seconds())
	r.lastPassEpoch.SetToCurrentTime()

	for _, u := range frame.Layers {
		layer := string(u.Layer)
		r.changes.WithLabelValues(layer, changeEnter).Add(float64(len(u.Enter)))
		r.changes.WithLabelValues(layer, changeUpdate).Add(float64(len(u.Update)))
		r.changes.WithLabelValues(layer, changeExit).Add(float64(len(u.Exit)))
		r.bound.WithLabelValues(layer).Set(float64(u.Len()))
	}
	for _, d := range frame.Diagnostics {
		r.diagnostics.WithLabelValues(string(d.Kind)).Inc()
	}
	if frame.Basal != nil && frame.Basal.Series != nil {
		r.basalSamples.Set(float64(len(frame.Basal.Series.Samples)))
	}
}

// RenderFailed records a pass that returned an error
func (r *Recorder) RenderFailed() {
	r.renderErrors.Inc()
}
