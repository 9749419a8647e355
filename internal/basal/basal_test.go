package basal

import (
	"testing"
	"time"
	_ "time/tzdata"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mrcode/nightscout-chart/internal/models"
)

var (
	t0     = time.Date(2024, 3, 10, 8, 0, 0, 0, time.UTC).UnixMilli()
	minute = time.Minute.Milliseconds()
)

func TestResample_ConstantRateCompresses(t *testing.T) {
	s, err := Resample(FlatSchedule(0.8), nil, t0, t0+6*60*minute, DefaultStep)
	require.NoError(t, err)

	require.Len(t, s.Samples, 2)
	assert.Equal(t, t0, s.Samples[0].Mills)
	assert.Equal(t, t0+6*60*minute, s.Samples[1].Mills)
	for _, sample := range s.Samples {
		assert.Equal(t, 0.8, sample.EffectiveRate)
		assert.Equal(t, 0.8, sample.ScheduledRate)
		assert.False(t, sample.IsOverrideActive)
	}

	assert.Len(t, s.Committed, 2)
	assert.Len(t, s.Scheduled, 2)
	assert.Equal(t, []Point{{t0, 0}, {t0 + 6*60*minute, 0}}, s.OverrideArea)
	assert.Empty(t, s.Labels)
}

func TestResample_SingleOverride(t *testing.T) {
	overrides := []models.TempBasal{{Mills: t0 + 10*minute, Duration: 30, Absolute: models.Float(1.5)}}

	s, err := Resample(FlatSchedule(0.8), overrides, t0, t0+60*minute, DefaultStep)
	require.NoError(t, err)

	require.Len(t, s.Samples, 4)
	assert.Equal(t, Sample{t0, 0.8, 0.8, false}, s.Samples[0])
	assert.Equal(t, Sample{t0 + 10*minute, 0.8, 1.5, true}, s.Samples[1])
	assert.Equal(t, Sample{t0 + 40*minute, 0.8, 0.8, false}, s.Samples[2])
	assert.Equal(t, Sample{t0 + 60*minute, 0.8, 0.8, false}, s.Samples[3])

	assert.Equal(t, []Point{{t0, 0.8}, {t0 + 10*minute, 1.5}, {t0 + 40*minute, 0.8}, {t0 + 60*minute, 0.8}}, s.Committed)
	assert.Equal(t, []Point{{t0, 0.8}, {t0 + 10*minute, 0.8}, {t0 + 40*minute, 0.8}, {t0 + 60*minute, 0.8}}, s.Scheduled)

	require.Len(t, s.Labels, 1)
	assert.Equal(t, t0+25*minute, s.Labels[0].Mills)
	assert.Equal(t, "1.5U", s.Labels[0].Text)
	assert.Equal(t, 1.5, s.MaxRate())
}

func TestResample_OverrideEndingAtWindowStart(t *testing.T) {
	overrides := []models.TempBasal{{Mills: t0 - 30*minute, Duration: 30, Absolute: models.Float(1.5)}}

	s, err := Resample(FlatSchedule(0.8), overrides, t0, t0+60*minute, DefaultStep)
	require.NoError(t, err)

	assert.Empty(t, s.Labels)
	for _, sample := range s.Samples {
		assert.False(t, sample.IsOverrideActive)
	}
}

func TestResample_AreasAreExclusive(t *testing.T) {
	overrides := []models.TempBasal{
		{Mills: t0 + 5*minute, Duration: 20, Percent: models.Float(-50)},
		{Mills: t0 + 50*minute, Duration: 15, Percent: models.Float(30)},
	}

	s, err := Resample(FlatSchedule(1), overrides, t0, t0+90*minute, DefaultStep)
	require.NoError(t, err)
	require.Equal(t, len(s.ScheduledArea), len(s.OverrideArea))

	for i := range s.ScheduledArea {
		sched, over := s.ScheduledArea[i], s.OverrideArea[i]
		assert.Equal(t, sched.Mills, over.Mills)
		assert.True(t, sched.Rate == 0 || over.Rate == 0, "both areas non-zero at %d", sched.Mills)
		assert.Equal(t, s.Committed[i].Rate, sched.Rate+over.Rate)
	}

	assert.Equal(t, []string{"-50%", "+30%"}, []string{s.Labels[0].Text, s.Labels[1].Text})
	assert.InDelta(t, 0.5, s.Samples[1].EffectiveRate, 1e-9)
	assert.InDelta(t, 1.3, s.Samples[3].EffectiveRate, 1e-9)
}

func TestResample_PartialOverlap(t *testing.T) {
	overrides := []models.TempBasal{
		{Mills: t0 - 20*minute, Duration: 30, Absolute: models.Float(2)},
		{Mills: t0 + 50*minute, Duration: 60, Absolute: models.Float(0)},
		{Mills: t0 - 120*minute, Duration: 30, Absolute: models.Float(3)},
	}

	s, err := Resample(FlatSchedule(1), overrides, t0, t0+60*minute, DefaultStep)
	require.NoError(t, err)

	assert.Equal(t, Sample{t0, 1, 2, true}, s.Samples[0])
	assert.Equal(t, Sample{t0 + 10*minute, 1, 1, false}, s.Samples[1])
	assert.Equal(t, Sample{t0 + 50*minute, 1, 0, true}, s.Samples[2])
	assert.Equal(t, Sample{t0 + 60*minute, 1, 0, true}, s.Samples[3])

	require.Len(t, s.Labels, 2, "only overrides intersecting the window get labels")
	assert.Equal(t, "2U", s.Labels[0].Text)
	assert.Equal(t, "0U", s.Labels[1].Text)
}

func TestResample_ConfigurationErrors(t *testing.T) {
	_, err := Resample(FlatSchedule(1), nil, t0+minute, t0, DefaultStep)
	assert.ErrorIs(t, err, ErrInvalidWindow)

	_, err = Resample(FlatSchedule(1), nil, t0, t0+minute, 0)
	assert.ErrorIs(t, err, ErrInvalidStep)
}

func TestResample_EmptyWindow(t *testing.T) {
	s, err := Resample(FlatSchedule(1), nil, t0, t0, DefaultStep)
	require.NoError(t, err)
	assert.Len(t, s.Samples, 2)
}

func TestSchedule_Rate(t *testing.T) {
	sched, err := NewSchedule(models.Profile{
		Timezone: "UTC",
		Basal: []models.BasalEntry{
			{Time: "06:00", Value: 1.2},
			{Time: "00:00", Value: 0.7},
			{Time: "22:30", Value: 0.9},
		},
	})
	require.NoError(t, err)

	day := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	tests := []struct {
		name     string
		at       time.Time
		expected float64
	}{
		{"midnight", day, 0.7},
		{"before six", day.Add(5*time.Hour + 59*time.Minute), 0.7},
		{"six", day.Add(6 * time.Hour), 1.2},
		{"evening", day.Add(22*time.Hour + 29*time.Minute), 1.2},
		{"late", day.Add(23 * time.Hour), 0.9},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sched.Rate(tt.at.UnixMilli()))
		})
	}
}

func TestSchedule_RateAcrossDST(t *testing.T) {
	sched, err := NewSchedule(models.Profile{
		Timezone: "Europe/Berlin",
		Basal: []models.BasalEntry{
			{Time: "00:00", Value: 0.5},
			{Time: "03:00", Value: 1.0},
		},
	})
	require.NoError(t, err)

	tests := []struct {
		name     string
		at       time.Time
		expected float64
	}{
		{"spring forward 01:30 CET", time.Date(2024, 3, 31, 0, 30, 0, 0, time.UTC), 0.5},
		{"spring forward 03:00 CEST", time.Date(2024, 3, 31, 1, 0, 0, 0, time.UTC), 1.0},
		{"spring forward 03:30 CEST", time.Date(2024, 3, 31, 1, 30, 0, 0, time.UTC), 1.0},
		{"fall back 02:30 CEST", time.Date(2024, 10, 27, 0, 30, 0, 0, time.UTC), 0.5},
		{"fall back 02:30 CET", time.Date(2024, 10, 27, 1, 30, 0, 0, time.UTC), 0.5},
		{"fall back 03:30 CET", time.Date(2024, 10, 27, 2, 30, 0, 0, time.UTC), 1.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, sched.Rate(tt.at.UnixMilli()))
		})
	}
}

func TestSchedule_WrapsWithoutMidnightEntry(t *testing.T) {
	sched, err := NewSchedule(models.Profile{Basal: []models.BasalEntry{
		{Time: "06:00", Value: 1.2},
		{Time: "20:00", Value: 0.4},
	}})
	require.NoError(t, err)

	at := time.Date(2024, 3, 10, 2, 0, 0, 0, time.UTC).UnixMilli()
	assert.Equal(t, 0.4, sched.Rate(at))
}

func TestNewSchedule_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		profile models.Profile
	}{
		{"empty", models.Profile{}},
		{"bad time", models.Profile{Basal: []models.BasalEntry{{Time: "6am", Value: 1}}}},
		{"bad hour", models.Profile{Basal: []models.BasalEntry{{Time: "25:00", Value: 1}}}},
		{"negative", models.Profile{Basal: []models.BasalEntry{{Time: "00:00", Value: -1}}}},
		{"bad zone", models.Profile{Timezone: "Nowhere/Land", Basal: []models.BasalEntry{{Time: "00:00", Value: 1}}}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewSchedule(tt.profile)
			assert.ErrorIs(t, err, ErrInvalidSchedule)
		})
	}
}

func TestSchedule_LatestOverrideWins(t *testing.T) {
	overrides := []models.TempBasal{
		{Mills: t0, Duration: 60, Absolute: models.Float(2)},
		{Mills: t0 + 10*minute, Duration: 10, Absolute: models.Float(0.1)},
	}
	sched := FlatSchedule(1)

	assert.Equal(t, 2.0, sched.TempBasal(t0+5*minute, overrides).TempBasal)
	assert.Equal(t, 0.1, sched.TempBasal(t0+15*minute, overrides).TempBasal)
	assert.Equal(t, 2.0, sched.TempBasal(t0+25*minute, overrides).TempBasal)
}

func TestEffective_Equal(t *testing.T) {
	a := models.TempBasal{Mills: 1, Duration: 30}
	b := models.TempBasal{Mills: 1, Duration: 30}
	c := models.TempBasal{Mills: 2, Duration: 30}

	assert.True(t, Effective{1, 1, nil}.Equal(Effective{1, 1, nil}))
	assert.True(t, Effective{1, 2, &a}.Equal(Effective{1, 2, &b}))
	assert.False(t, Effective{1, 2, &a}.Equal(Effective{1, 2, &c}))
	assert.False(t, Effective{1, 1, nil}.Equal(Effective{1, 1, &a}))
	assert.False(t, Effective{1, 1, nil}.Equal(Effective{1, 2, nil}))
}
