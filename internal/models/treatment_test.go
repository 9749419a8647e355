package models

import (
	"testing"
	"time"
)

func TestTreatment_UnmarshalJSON(t *testing.T) {
	data := []byte(`{
		"snapshot": true,
		"entries": [
			{"mills": 2000, "sgv": 110},
			{"mills": 1000, "sgv": 100},
			{"mills": 1500, "mbg": 98, "type": "mbg"}
		],
		"treatments": [
			{"eventType": "Meal Bolus", "created_at": "2024-01-01T12:00:00Z", "carbs": 40, "insulin": 0},
			{"eventType": "BG Check", "date": 500, "glucose": "5.5", "units": "mmol"},
			{"eventType": "Temp Basal", "mills": 700, "duration": 30, "absolute": 1.5}
		]
	}`)

	snap, err := ParseSnapshot(data)
	if err != nil {
		t.Fatalf("ParseSnapshot() error = %v", err)
	}

	if snap.Entries[0].Mills != 1000 || snap.Entries[2].Mills != 2000 {
		t.Errorf("entries not sorted by time: %+v", snap.Entries)
	}

	meal := snap.Treatments[2]
	wantMills := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC).UnixMilli()
	if meal.Mills != wantMills {
		t.Errorf("Mills from created_at = %d, want %d", meal.Mills, wantMills)
	}
	if !meal.HasCarbs() {
		t.Error("meal should have carbs")
	}
	if meal.Insulin == nil || meal.HasInsulin() {
		t.Error("explicit zero insulin should be present but not count as insulin")
	}

	check := snap.Treatments[0]
	if check.Mills != 500 {
		t.Errorf("Mills from date = %d, want 500", check.Mills)
	}
	if got := check.GlucoseMgdl(); got < 98 || got > 100 {
		t.Errorf("GlucoseMgdl() = %f, want about 99", got)
	}

	if len(snap.ChartTreatments()) != 2 {
		t.Errorf("ChartTreatments() = %d, want 2", len(snap.ChartTreatments()))
	}
	basals := snap.TempBasals()
	if len(basals) != 1 || *basals[0].Absolute != 1.5 {
		t.Errorf("TempBasals() = %+v", basals)
	}
	if len(snap.MBGs()) != 1 {
		t.Errorf("MBGs() = %d, want 1", len(snap.MBGs()))
	}
	latest, ok := snap.LatestSGV()
	if !ok || latest.Mills != 2000 {
		t.Errorf("LatestSGV() = %+v, %v", latest, ok)
	}
}

func TestTreatment_Key(t *testing.T) {
	withID := Treatment{ID: "abc", Mills: 1, EventType: "Note"}
	withoutID := Treatment{Mills: 1, EventType: "Note"}

	if withID.Key() != "abc" {
		t.Errorf("Key() = %q, want abc", withID.Key())
	}
	if withoutID.Key() != "1:Note" {
		t.Errorf("Key() = %q, want 1:Note", withoutID.Key())
	}
}

func TestTempBasal_ActiveAt(t *testing.T) {
	tb := TempBasal{Mills: 0, Duration: 30}
	minute := int64(time.Minute / time.Millisecond)

	tests := []struct {
		name     string
		at       int64
		expected bool
	}{
		{"Before", -1, false},
		{"Start", 0, true},
		{"Inside", 29 * minute, true},
		{"End is exclusive", 30 * minute, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tb.ActiveAt(tt.at); got != tt.expected {
				t.Errorf("ActiveAt(%d) = %v, want %v", tt.at, got, tt.expected)
			}
		})
	}
}
