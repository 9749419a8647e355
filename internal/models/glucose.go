// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// Kind is the semantic kind of a glucose reading
type Kind string

// Reading kinds as reported by Nightscout
const (
	KindSGV      Kind = "sgv"      // Sensor glucose value
	KindMBG      Kind = "mbg"      // Meter glucose (calibration)
	KindRawBG    Kind = "rawbg"    // Unfiltered sensor value
	KindForecast Kind = "forecast" // Predicted value
)

// Display units
const (
	UnitMgdl = "mg/dL"
	UnitMmol = "mmol/L"
)

const mgdlPerMmol = 18.0182

// Reading represents a single glucose point on the chart
type Reading struct {
	Mills  int64   `json:"mills"`  // Unix timestamp in milliseconds
	Value  float64 `json:"mgdl"`   // Glucose in mg/dL, NaN when the source value was unusable
	Kind   Kind    `json:"type"`   // sgv, mbg, rawbg or forecast
	Device string  `json:"device"` // Uploading device
	Color  string  `json:"color"`  // Display color, derived from thresholds when empty
	Noise  int     `json:"noise,omitempty"`
}

// Key returns the identity of the reading within one reconciliation pass
func (r *Reading) Key() string {
	return string(r.Kind) + ":" + strconv.FormatInt(r.Mills, 10)
}

// Time returns the time of the reading
func (r *Reading) Time() time.Time {
	return time.UnixMilli(r.Mills)
}

// HasValue reports whether the reading carries a usable glucose value
func (r *Reading) HasValue() bool {
	return !math.IsNaN(r.Value) && !math.IsInf(r.Value, 0)
}

// UnmarshalJSON accepts Nightscout entry documents. The timestamp falls back
// from mills to date, the value from mgdl to sgv to mbg; a value that is
// missing or not numeric decodes to NaN instead of failing the whole document.
func (r *Reading) UnmarshalJSON(data []byte) error {
	var raw struct {
		Mills  int64           `json:"mills"`
		Date   int64           `json:"date"`
		MGDL   json.RawMessage `json:"mgdl"`
		SGV    json.RawMessage `json:"sgv"`
		MBG    json.RawMessage `json:"mbg"`
		Type   string          `json:"type"`
		Device string          `json:"device"`
		Color  string          `json:"color"`
		Noise  int             `json:"noise"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("parsing reading: %w", err)
	}

	r.Mills = raw.Mills
	if r.Mills == 0 {
		r.Mills = raw.Date
	}
	r.Kind = Kind(raw.Type)
	if r.Kind == "" {
		r.Kind = KindSGV
	}
	r.Device = raw.Device
	r.Color = raw.Color
	r.Noise = raw.Noise

	r.Value = math.NaN()
	for _, candidate := range []json.RawMessage{raw.MGDL, raw.SGV, raw.MBG} {
		if v, ok := parseNumber(candidate); ok {
			r.Value = v
			break
		}
	}
	return nil
}

// MarshalJSON writes NaN values as null so snapshots stay valid JSON
func (r Reading) MarshalJSON() ([]byte, error) {
	var value any
	if r.HasValue() {
		value = r.Value
	}
	return json.Marshal(struct {
		Mills  int64  `json:"mills"`
		Value  any    `json:"mgdl"`
		Kind   Kind   `json:"type"`
		Device string `json:"device,omitempty"`
		Color  string `json:"color,omitempty"`
		Noise  int    `json:"noise,omitempty"`
	}{r.Mills, value, r.Kind, r.Device, r.Color, r.Noise})
}

// parseNumber decodes a JSON number or numeric string
func parseNumber(raw json.RawMessage) (float64, bool) {
	if len(raw) == 0 || string(raw) == "null" {
		return 0, false
	}
	var f float64
	if err := json.Unmarshal(raw, &f); err == nil {
		return f, true
	}
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		return 0, false
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// ScaleMgdl converts a mg/dL value into the given display unit
func ScaleMgdl(unit string, mgdl float64) float64 {
	if unit == UnitMmol {
		return ToMmol(mgdl)
	}
	return mgdl
}

// ToMmol converts a mg/dL value to mmol/L
func ToMmol(mgdl float64) float64 {
	return mgdl / mgdlPerMmol
}

// ToMgdl converts a mmol/L value to mg/dL
func ToMgdl(mmol float64) float64 {
	return mmol * mgdlPerMmol
}
