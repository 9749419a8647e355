package notifications

import (
	"math"
	"strconv"
	"time"

	"github.com/mrcode/nightscout-chart/internal/models"
)

// RecentWindow is how long a calibration or treatment counts as just entered
const RecentWindow = 10 * time.Minute

// TreatmentNotifier announces freshly entered calibrations and treatments and
// snoozes urgent alarms while they take effect
type TreatmentNotifier struct {
	sink Sink
	unit string
}

// NewTreatmentNotifier creates a notifier reporting glucose in unit
func NewTreatmentNotifier(sink Sink, unit string) *TreatmentNotifier {
	return &TreatmentNotifier{sink: sink, unit: unit}
}

// Check inspects the latest meter reading and treatment at now (Unix
// milliseconds). Both slices are expected oldest first.
func (n *TreatmentNotifier) Check(mbgs []models.Reading, treatments []models.Treatment, now int64) {
	var lastMBG *models.Reading
	var lastTreatment *models.Treatment
	var mbgTime, treatmentTime int64

	if len(mbgs) > 0 {
		lastMBG = &mbgs[len(mbgs)-1]
		mbgTime = lastMBG.Mills
	}
	if len(treatments) > 0 {
		lastTreatment = &treatments[len(treatments)-1]
		treatmentTime = treatmentMills(lastTreatment)
	}

	mbgCurrent := recent(mbgTime, now)
	treatmentCurrent := recent(treatmentTime, now)
	if !mbgCurrent && !treatmentCurrent {
		return
	}

	n.sink.RequestSnooze(Snooze{
		Level: LevelUrgent,
		Until: max(mbgTime, treatmentTime) + RecentWindow.Milliseconds(),
	})
	if mbgCurrent {
		n.sink.RequestNotify(n.calibration(lastMBG))
	}
	if treatmentCurrent {
		n.sink.RequestNotify(n.treatment(lastTreatment))
	}
}

// All meter readings are treated as calibrations
func (n *TreatmentNotifier) calibration(r *models.Reading) Notification {
	return Notification{
		Level:   LevelInfo,
		Title:   "Calibration",
		Message: "\nMeter BG: " + n.scaleBg(r.Value) + " " + n.unit,
		Sound:   "magic",
	}
}

func (n *TreatmentNotifier) treatment(t *models.Treatment) Notification {
	var msg string
	if t.Glucose != 0 {
		msg += "BG: " + number(t.Glucose) + " (" + t.GlucoseType + ")"
	}
	if t.HasCarbs() {
		msg += "\nCarbs: " + number(*t.Carbs) + "g"
	}
	if t.HasInsulin() {
		msg += "\nInsulin: " + number(math.Round(*t.Insulin*100)/100) + "U"
	}
	if t.EnteredBy != "" {
		msg += "\nEntered By: " + t.EnteredBy
	}
	if t.Notes != "" {
		msg += "\nNotes: " + t.Notes
	}
	return Notification{Level: LevelInfo, Title: t.EventType, Message: msg}
}

func (n *TreatmentNotifier) scaleBg(mgdl float64) string {
	if n.unit == models.UnitMmol {
		return strconv.FormatFloat(models.ToMmol(mgdl), 'f', 1, 64)
	}
	return strconv.FormatFloat(math.Round(mgdl), 'f', 0, 64)
}

func treatmentMills(t *models.Treatment) int64 {
	if ts := t.Time(); !ts.IsZero() {
		return ts.UnixMilli()
	}
	return 0
}

func recent(at, now int64) bool {
	return at > 0 && at < now && now-at < RecentWindow.Milliseconds()
}

func number(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
