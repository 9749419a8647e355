package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/nightscout-chart/internal/basal"
	"github.com/mrcode/nightscout-chart/internal/scene"
)

var _ scene.Observer = (*Recorder)(nil)

func testFrame() *scene.Frame {
	return &scene.Frame{
		ID: "f1",
		Layers: []scene.LayerUpdate{
			{
				Layer:  scene.LayerFocus,
				Enter:  []scene.Element{{Key: "sgv:1"}, {Key: "sgv:2"}},
				Update: []scene.Element{{Key: "sgv:0"}},
				Exit:   []string{"sgv:-1"},
			},
			{Layer: scene.LayerTreatmentDots},
		},
		Basal: &scene.BasalPaths{Series: &basal.Series{Samples: make([]basal.Sample, 4)}},
		Diagnostics: []scene.Diagnostic{
			{Kind: scene.MalformedRecord, Key: "sgv:0", Reason: "missing timestamp"},
			{Kind: scene.MalformedRecord, Key: "sgv:3", Reason: "duplicate key"},
			{Kind: scene.NumericDegeneracy, Key: "t1"},
		},
	}
}

func TestRecorder_ObservePass(t *testing.T) {
	r := NewRecorder(WithPrometheusRegistry(prometheus.NewRegistry()))

	r.ObservePass(testFrame(), 2*time.Millisecond)
	r.ObservePass(testFrame(), time.Millisecond)

	focus := string(scene.LayerFocus)
	assert.Equal(t, 2.0, testutil.ToFloat64(r.passes))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.changes.WithLabelValues(focus, changeEnter)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.changes.WithLabelValues(focus, changeUpdate)))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.changes.WithLabelValues(focus, changeExit)))
	assert.Equal(t, 3.0, testutil.ToFloat64(r.bound.WithLabelValues(focus)))
	assert.Equal(t, 0.0, testutil.ToFloat64(r.bound.WithLabelValues(string(scene.LayerTreatmentDots))))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.diagnostics.WithLabelValues(string(scene.MalformedRecord))))
	assert.Equal(t, 2.0, testutil.ToFloat64(r.diagnostics.WithLabelValues(string(scene.NumericDegeneracy))))
	assert.Equal(t, 4.0, testutil.ToFloat64(r.basalSamples))
	assert.Equal(t, 1, testutil.CollectAndCount(r.passDuration))
}

func TestRecorder_RenderFailed(t *testing.T) {
	r := NewRecorder(WithNamespace("test"), WithSubsystem("render"))

	r.RenderFailed()

	expected := `
# HELP test_render_render_errors_total Total number of passes that failed
# TYPE test_render_render_errors_total counter
test_render_render_errors_total 1
`
	require.NoError(t, testutil.GatherAndCompare(r.Registry(), strings.NewReader(expected), "test_render_render_errors_total"))
}

func TestRecorder_Handler(t *testing.T) {
	r := NewRecorder(WithHistogramBuckets([]float64{.001, .01}))
	r.ObservePass(testFrame(), 5*time.Millisecond)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "nightscout_chart_passes_total 1")
	assert.Contains(t, body, `nightscout_chart_pass_duration_seconds_bucket{le="0.01"} 1`)
}
