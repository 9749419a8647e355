package models

import (
	"encoding/json"
	"math"
	"testing"
)

func TestReading_UnmarshalJSON(t *testing.T) {
	tests := []struct {
		name      string
		input     string
		wantMills int64
		wantValue float64
		wantKind  Kind
		wantNaN   bool
	}{
		{"mgdl number", `{"mills":1000,"mgdl":120,"type":"sgv"}`, 1000, 120, KindSGV, false},
		{"sgv fallback", `{"date":2000,"sgv":95}`, 2000, 95, KindSGV, false},
		{"mbg fallback", `{"mills":3000,"mbg":"143","type":"mbg"}`, 3000, 143, KindMBG, false},
		{"numeric string", `{"mills":4000,"sgv":" 101 "}`, 4000, 101, KindSGV, false},
		{"unparseable value", `{"mills":5000,"sgv":"LOW"}`, 5000, 0, KindSGV, true},
		{"missing value", `{"mills":6000,"type":"rawbg"}`, 6000, 0, KindRawBG, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var r Reading
			if err := json.Unmarshal([]byte(tt.input), &r); err != nil {
				t.Fatalf("Unmarshal() error = %v", err)
			}
			if r.Mills != tt.wantMills {
				t.Errorf("Mills = %d, want %d", r.Mills, tt.wantMills)
			}
			if r.Kind != tt.wantKind {
				t.Errorf("Kind = %s, want %s", r.Kind, tt.wantKind)
			}
			if tt.wantNaN {
				if !math.IsNaN(r.Value) {
					t.Errorf("Value = %f, want NaN", r.Value)
				}
				return
			}
			if r.Value != tt.wantValue {
				t.Errorf("Value = %f, want %f", r.Value, tt.wantValue)
			}
		})
	}
}

func TestReading_MarshalJSON_NaN(t *testing.T) {
	r := Reading{Mills: 1, Value: math.NaN(), Kind: KindSGV}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	var back Reading
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if back.HasValue() {
		t.Errorf("HasValue() = true after round trip of NaN reading, got %f", back.Value)
	}
}

func TestReading_Key(t *testing.T) {
	sgv := Reading{Mills: 1000, Kind: KindSGV}
	mbg := Reading{Mills: 1000, Kind: KindMBG}

	if sgv.Key() == mbg.Key() {
		t.Errorf("readings of different kinds at the same time share key %q", sgv.Key())
	}
	if sgv.Key() != "sgv:1000" {
		t.Errorf("Key() = %q, want sgv:1000", sgv.Key())
	}
}

func TestScaleMgdl(t *testing.T) {
	tests := []struct {
		name     string
		unit     string
		mgdl     float64
		expected float64
	}{
		{"100 mg/dL", UnitMgdl, 100, 100},
		{"100 mg/dL in mmol", UnitMmol, 100, 5.55},
		{"180 mg/dL in mmol", UnitMmol, 180, 9.99},
		{"70 mg/dL in mmol", UnitMmol, 70, 3.89},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			result := ScaleMgdl(tt.unit, tt.mgdl)
			if result < tt.expected-0.1 || result > tt.expected+0.1 {
				t.Errorf("ScaleMgdl() = %f, want approximately %f", result, tt.expected)
			}
		})
	}
}
