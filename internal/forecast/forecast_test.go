package forecast

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/nightscout-chart/internal/models"
)

var (
	now    = time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC).UnixMilli()
	minute = time.Minute.Milliseconds()
)

func series(values ...float64) []models.Reading {
	out := make([]models.Reading, len(values))
	for i, v := range values {
		out[i] = models.Reading{
			Mills: now - int64(len(values)-1-i)*5*minute,
			Value: v,
			Kind:  models.KindSGV,
		}
	}
	return out
}

func TestCalculateTrend(t *testing.T) {
	tests := []struct {
		name     string
		readings []models.Reading
		expected float64
	}{
		{"flat", series(120, 120, 120, 120), 0},
		{"rising", series(100, 105, 110, 115, 120), 5},
		{"falling", series(200, 190, 180), -10},
		{"single", series(120), 0},
		{"empty", nil, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, CalculateTrend(tt.readings), 1e-9)
		})
	}
}

func TestPredict_FlatWithoutTreatments(t *testing.T) {
	f := New(DefaultParameters())

	points := f.Predict(series(120, 120, 120), nil, DefaultHorizon, DefaultInterval)
	require.Len(t, points, 6)

	for i, p := range points {
		assert.Equal(t, models.KindForecast, p.Kind)
		assert.Equal(t, now+int64(i+1)*5*minute, p.Mills)
		assert.Equal(t, 120.0, p.Value)
	}
}

func TestPredict_FollowsTrend(t *testing.T) {
	f := New(DefaultParameters())

	points := f.Predict(series(100, 105, 110, 115, 120), nil, DefaultHorizon, DefaultInterval)
	require.Len(t, points, 6)
	assert.InDelta(t, 125, points[0].Value, 0.05)
	assert.InDelta(t, 150, points[5].Value, 0.05)
}

func TestPredict_InsulinLowersAndCarbsRaise(t *testing.T) {
	f := New(DefaultParameters())
	readings := series(150, 150, 150)
	horizon := time.Hour

	base := f.Predict(readings, nil, horizon, DefaultInterval)
	withInsulin := f.Predict(readings, []models.Treatment{
		{Mills: now - 90*minute, Insulin: models.Float(3)},
	}, horizon, DefaultInterval)
	withCarbs := f.Predict(readings, []models.Treatment{
		{Mills: now - 30*minute, Carbs: models.Float(40)},
	}, horizon, DefaultInterval)

	last := len(base) - 1
	assert.Less(t, withInsulin[last].Value, base[last].Value)
	assert.Greater(t, withCarbs[last].Value, base[last].Value)
}

func TestPredict_Clamped(t *testing.T) {
	f := New(DefaultParameters())

	points := f.Predict(series(300, 200, 100, 40), nil, time.Hour, DefaultInterval)
	for _, p := range points {
		assert.GreaterOrEqual(t, p.Value, float64(minGlucose))
	}
}

func TestPredict_NoSensorData(t *testing.T) {
	f := New(Parameters{})

	assert.Empty(t, f.Predict(nil, nil, DefaultHorizon, DefaultInterval))
	assert.Empty(t, f.Predict([]models.Reading{{Mills: now, Value: 100, Kind: models.KindMBG}}, nil, DefaultHorizon, DefaultInterval))
	assert.Empty(t, f.Predict(series(120), nil, DefaultHorizon, 0))
}

func TestIOBAndCOB(t *testing.T) {
	f := New(DefaultParameters())
	treatments := []models.Treatment{
		{Mills: now, Insulin: models.Float(2), Carbs: models.Float(30)},
		{Mills: now - 5*time.Hour.Milliseconds(), Insulin: models.Float(4)},
	}

	assert.Equal(t, 2.0, f.IOB(treatments, now))
	assert.Equal(t, 30.0, f.COB(treatments, now))

	assert.Less(t, f.IOB(treatments, now+2*time.Hour.Milliseconds()), 2.0)
	assert.Equal(t, 0.0, f.IOB(treatments, now+4*time.Hour.Milliseconds()))
	assert.Equal(t, 0.0, f.COB(treatments, now+3*time.Hour.Milliseconds()))
}
