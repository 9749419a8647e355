// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Treatment represents a treatment entry from Nightscout (insulin, carbs, etc.)
type Treatment struct {
	ID          string   `json:"_id,omitempty"`
	EventType   string   `json:"eventType"`
	Mills       int64    `json:"mills"`                 // Unix timestamp in milliseconds
	CreatedAt   string   `json:"created_at,omitempty"`  // RFC3339, fallback when mills is unset
	Insulin     *float64 `json:"insulin,omitempty"`     // Units of insulin
	Carbs       *float64 `json:"carbs,omitempty"`       // Grams of carbohydrates
	CR          float64  `json:"CR,omitempty"`          // Carb ratio (grams per unit)
	Duration    float64  `json:"duration,omitempty"`    // Duration in minutes
	Glucose     float64  `json:"glucose,omitempty"`     // Blood glucose value if recorded
	GlucoseType string   `json:"glucoseType,omitempty"` // "Sensor", "Finger", "Manual"
	Units       string   `json:"units,omitempty"`       // "mg/dl" or "mmol"
	Notes       string   `json:"notes,omitempty"`
	EnteredBy   string   `json:"enteredBy,omitempty"`

	IsAnnouncement bool `json:"isAnnouncement,omitempty"`

	// For basal changes
	Percent  *float64 `json:"percent,omitempty"`  // Basal change in percent
	Absolute *float64 `json:"absolute,omitempty"` // Basal change in absolute value
}

// UnmarshalJSON resolves the timestamp from mills, date or created_at and
// tolerates glucose values sent as strings
func (t *Treatment) UnmarshalJSON(data []byte) error {
	type alias Treatment
	var raw struct {
		alias
		Date    int64           `json:"date"`
		Glucose json.RawMessage `json:"glucose"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing treatment: %w", err)
	}

	*t = Treatment(raw.alias)
	if t.Mills == 0 {
		t.Mills = raw.Date
	}
	if t.Mills == 0 && t.CreatedAt != "" {
		if parsed, err := time.Parse(time.RFC3339, t.CreatedAt); err == nil {
			t.Mills = parsed.UnixMilli()
		}
	}
	if v, ok := parseNumber(raw.Glucose); ok {
		t.Glucose = v
	}
	return nil
}

// Key returns the identity of the treatment within one reconciliation pass
func (t *Treatment) Key() string {
	if t.ID != "" {
		return t.ID
	}
	return strconv.FormatInt(t.Mills, 10) + ":" + t.EventType
}

// Time returns the time of the treatment
func (t *Treatment) Time() time.Time {
	if t.Mills > 0 {
		return time.UnixMilli(t.Mills)
	}
	// Fallback to created_at
	parsed, err := time.Parse(time.RFC3339, t.CreatedAt)
	if err != nil {
		return time.Time{}
	}
	return parsed
}

// HasInsulin returns true if this treatment carries a non-zero insulin amount
func (t *Treatment) HasInsulin() bool {
	return t.Insulin != nil && *t.Insulin != 0
}

// HasCarbs returns true if this treatment carries a non-zero carb amount
func (t *Treatment) HasCarbs() bool {
	return t.Carbs != nil && *t.Carbs != 0
}

// IsTempBasal returns true for temporary basal overrides
func (t *Treatment) IsTempBasal() bool {
	return strings.Contains(t.EventType, TreatmentEventTypes.TempBasal)
}

// GlucoseMgdl returns the recorded glucose in mg/dL, 0 when none was entered
func (t *Treatment) GlucoseMgdl() float64 {
	if t.Glucose <= 0 {
		return 0
	}
	if strings.HasPrefix(strings.ToLower(t.Units), "mmol") {
		return ToMgdl(t.Glucose)
	}
	return t.Glucose
}

// TempBasal returns the override view of a temp basal treatment
func (t *Treatment) TempBasal() TempBasal {
	return TempBasal{
		Mills:    t.Mills,
		Duration: t.Duration,
		Percent:  t.Percent,
		Absolute: t.Absolute,
	}
}

// TempBasal is a time-bounded replacement of the scheduled basal rate,
// active over [Mills, Mills+Duration)
type TempBasal struct {
	Mills    int64    `json:"mills"`
	Duration float64  `json:"duration"` // minutes
	Percent  *float64 `json:"percent,omitempty"`
	Absolute *float64 `json:"absolute,omitempty"`
}

// End returns the exclusive end of the override in milliseconds
func (tb *TempBasal) End() int64 {
	return tb.Mills + int64(tb.Duration*float64(time.Minute/time.Millisecond))
}

// ActiveAt reports whether the override is in effect at the given time
func (tb *TempBasal) ActiveAt(mills int64) bool {
	return mills >= tb.Mills && mills < tb.End()
}

// Float returns a pointer to v, for optional treatment quantities
func Float(v float64) *float64 {
	return &v
}

// TreatmentEventTypes contains common Nightscout event types
var TreatmentEventTypes = struct {
	BGCheck         string
	SnackBolus      string
	MealBolus       string
	CorrectionBolus string
	CarbCorrection  string
	Announcement    string
	Note            string
	Exercise        string
	SiteChange      string
	SensorStart     string
	TempBasal       string
	ProfileSwitch   string
}{
	BGCheck:         "BG Check",
	SnackBolus:      "Snack Bolus",
	MealBolus:       "Meal Bolus",
	CorrectionBolus: "Correction Bolus",
	CarbCorrection:  "Carb Correction",
	Announcement:    "Announcement",
	Note:            "Note",
	Exercise:        "Exercise",
	SiteChange:      "Site Change",
	SensorStart:     "Sensor Start",
	TempBasal:       "Temp Basal",
	ProfileSwitch:   "Profile Switch",
}
