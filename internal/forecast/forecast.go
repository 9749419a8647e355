// Package forecast predicts near-future glucose values from the recent trend
// and the insulin and carbs still acting. The predictions are drawn as
// forecast points after the latest sensor reading.
package forecast

import (
	"math"
	"sort"
	"time"

	"github.com/mrcode/nightscout-chart/internal/models"
)

// Physiological bounds of a predicted value, in mg/dL
const (
	minGlucose = 20
	maxGlucose = 500
)

// Default forecast shape
const (
	DefaultHorizon  = 30 * time.Minute
	DefaultInterval = 5 * time.Minute
)

// Parameters are the diabetes parameters the prediction uses
type Parameters struct {
	ISF            float64       // mg/dL drop per unit of insulin
	CarbRatio      float64       // Grams covered by one unit
	DIA            time.Duration // Duration of insulin action
	CarbAbsorption time.Duration // Time until a meal is fully absorbed
	InsulinPeak    time.Duration
}

// DefaultParameters returns typical adult parameters
func DefaultParameters() Parameters {
	return Parameters{
		ISF:            50,
		CarbRatio:      10,
		DIA:            4 * time.Hour,
		CarbAbsorption: 3 * time.Hour,
		InsulinPeak:    75 * time.Minute,
	}
}

// Forecaster predicts glucose values
type Forecaster struct {
	params Parameters
}

// New creates a forecaster; zero parameters fall back to the defaults
func New(params Parameters) *Forecaster {
	def := DefaultParameters()
	if params.ISF <= 0 {
		params.ISF = def.ISF
	}
	if params.CarbRatio <= 0 {
		params.CarbRatio = def.CarbRatio
	}
	if params.DIA <= 0 {
		params.DIA = def.DIA
	}
	if params.CarbAbsorption <= 0 {
		params.CarbAbsorption = def.CarbAbsorption
	}
	if params.InsulinPeak <= 0 || params.InsulinPeak >= params.DIA {
		params.InsulinPeak = min(def.InsulinPeak, params.DIA/2)
	}
	return &Forecaster{params: params}
}

// Predict returns forecast readings every interval after the latest sensor
// reading, up to horizon. It returns nothing when there is no usable sensor
// reading to start from.
func (f *Forecaster) Predict(entries []models.Reading, treatments []models.Treatment, horizon, interval time.Duration) []models.Reading {
	sgvs := sensorReadings(entries)
	if len(sgvs) == 0 || interval <= 0 || horizon <= 0 {
		return nil
	}
	latest := sgvs[len(sgvs)-1]
	trend := CalculateTrend(sgvs)
	start := latest.Mills

	steps := int(horizon / interval)
	out := make([]models.Reading, 0, steps)
	for i := 1; i <= steps; i++ {
		at := start + (time.Duration(i) * interval).Milliseconds()
		minutesOut := (time.Duration(i) * interval).Minutes()

		value := latest.Value +
			f.insulinEffect(treatments, start, at) +
			f.carbEffect(treatments, start, at) +
			trendEffect(trend, minutesOut)
		value = min(max(value, minGlucose), maxGlucose)

		out = append(out, models.Reading{
			Mills:  at,
			Value:  math.Round(value*10) / 10,
			Kind:   models.KindForecast,
			Device: latest.Device,
		})
	}
	return out
}

// IOB returns the insulin still active at the given time
func (f *Forecaster) IOB(treatments []models.Treatment, at int64) float64 {
	var total float64
	for i := range treatments {
		t := &treatments[i]
		if !t.HasInsulin() || t.Mills > at {
			continue
		}
		total += *t.Insulin * f.insulinRemaining(minutesBetween(t.Mills, at))
	}
	return math.Round(total*100) / 100
}

// COB returns the carbs not yet absorbed at the given time
func (f *Forecaster) COB(treatments []models.Treatment, at int64) float64 {
	absorption := f.params.CarbAbsorption.Minutes()
	var total float64
	for i := range treatments {
		t := &treatments[i]
		if !t.HasCarbs() || t.Mills > at {
			continue
		}
		total += *t.Carbs - carbsAbsorbed(*t.Carbs, minutesBetween(t.Mills, at), absorption)
	}
	return math.Round(total*10) / 10
}

// insulinEffect is the glucose drop caused by insulin acting between start and at
func (f *Forecaster) insulinEffect(treatments []models.Treatment, start, at int64) float64 {
	var effect float64
	for i := range treatments {
		t := &treatments[i]
		if !t.HasInsulin() || t.Mills > start {
			continue
		}
		used := f.insulinRemaining(minutesBetween(t.Mills, start)) - f.insulinRemaining(minutesBetween(t.Mills, at))
		if used > 0 {
			effect -= *t.Insulin * used * f.params.ISF
		}
	}
	return effect
}

// carbEffect is the glucose rise caused by carbs absorbed between start and at
func (f *Forecaster) carbEffect(treatments []models.Treatment, start, at int64) float64 {
	csf := f.params.ISF / f.params.CarbRatio // mg/dL per gram
	absorption := f.params.CarbAbsorption.Minutes()

	var effect float64
	for i := range treatments {
		t := &treatments[i]
		if !t.HasCarbs() || t.Mills > at {
			continue
		}
		absorbed := carbsAbsorbed(*t.Carbs, minutesBetween(t.Mills, at), absorption) -
			carbsAbsorbed(*t.Carbs, minutesBetween(t.Mills, start), absorption)
		if absorbed > 0 {
			effect += absorbed * csf
		}
	}
	return effect
}

// insulinRemaining returns the fraction of a dose still active. A small
// share is used while activity ramps up to the peak; the rest decays
// linearly until the end of the action time.
func (f *Forecaster) insulinRemaining(minutes float64) float64 {
	if minutes <= 0 {
		return 1
	}
	dia := f.params.DIA.Minutes()
	if minutes >= dia {
		return 0
	}

	peak := f.params.InsulinPeak.Minutes()
	if minutes < peak {
		return 1 - (minutes/peak)*0.1
	}
	return 0.9 * (dia - minutes) / (dia - peak)
}

// carbsAbsorbed follows a logistic curve: slow start, fast middle, slow end
func carbsAbsorbed(total, minutes, absorption float64) float64 {
	if minutes <= 0 {
		return 0
	}
	if minutes >= absorption {
		return total
	}
	progress := minutes / absorption
	return total / (1 + math.Exp(-10*(progress-0.5)))
}

// trendEffect carries the current trend fully for 30 minutes and lets it
// decay afterwards
func trendEffect(trendPer5Min, minutesOut float64) float64 {
	if minutesOut <= 30 {
		return trendPer5Min * (minutesOut / 5)
	}
	extra := minutesOut - 30
	return trendPer5Min*6 + trendPer5Min*(extra/5)*math.Exp(-0.02*extra)
}

// CalculateTrend returns the glucose trend in mg/dL per 5 minutes from a
// linear regression over the five most recent sensor readings
func CalculateTrend(readings []models.Reading) float64 {
	sorted := sensorReadings(readings)
	if len(sorted) < 2 {
		return 0
	}
	// Most recent first
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Mills > sorted[j].Mills })

	n := min(5, len(sorted))
	var sumX, sumY, sumXY, sumX2 float64
	base := sorted[0].Mills
	for i := 0; i < n; i++ {
		x := minutesBetween(sorted[i].Mills, base) // Minutes ago
		y := sorted[i].Value
		sumX += x
		sumY += y
		sumXY += x * y
		sumX2 += x * x
	}

	nf := float64(n)
	denominator := nf*sumX2 - sumX*sumX
	if denominator == 0 {
		return 0
	}
	slope := (nf*sumXY - sumX*sumY) / denominator

	// Slope is per minute into the past
	return -slope * 5
}

// sensorReadings returns the valued sgv readings, oldest first
func sensorReadings(readings []models.Reading) []models.Reading {
	out := make([]models.Reading, 0, len(readings))
	for _, r := range readings {
		if r.Kind == models.KindSGV && r.HasValue() && r.Mills > 0 {
			out = append(out, r)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Mills < out[j].Mills })
	return out
}

func minutesBetween(from, to int64) float64 {
	return float64(to-from) / float64(time.Minute.Milliseconds())
}
