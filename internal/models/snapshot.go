// Package models contains data structures used throughout the application
package models

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

// BasalEntry is one step of a scheduled basal profile
type BasalEntry struct {
	Time  string  `json:"time"`  // "HH:MM" local time of day
	Value float64 `json:"value"` // U/h
}

// Profile is the basal part of a Nightscout profile document
type Profile struct {
	Timezone string       `json:"timezone"`
	Basal    []BasalEntry `json:"basal"`
}

// Snapshot is the in-memory dataset one chart pass is computed from
type Snapshot struct {
	Now        int64       `json:"now"` // Unix milliseconds; 0 means the time of loading
	Entries    []Reading   `json:"entries"`
	Treatments []Treatment `json:"treatments"`
	Profile    Profile     `json:"profile"`
}

// LoadSnapshot reads a snapshot document from disk
func LoadSnapshot(path string) (*Snapshot, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Path is supplied by the operator
	if err != nil {
		return nil, fmt.Errorf("reading snapshot: %w", err)
	}
	return ParseSnapshot(data)
}

// ParseSnapshot decodes a snapshot document and orders its records by time
func ParseSnapshot(data []byte) (*Snapshot, error) {
	var snap Snapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("parsing snapshot: %w", err)
	}

	sort.SliceStable(snap.Entries, func(i, j int) bool {
		return snap.Entries[i].Mills < snap.Entries[j].Mills
	})
	sort.SliceStable(snap.Treatments, func(i, j int) bool {
		return snap.Treatments[i].Mills < snap.Treatments[j].Mills
	})
	return &snap, nil
}

// ChartTreatments returns the treatments that are drawn as dots, bands or glyphs
func (s *Snapshot) ChartTreatments() []Treatment {
	out := make([]Treatment, 0, len(s.Treatments))
	for _, t := range s.Treatments {
		if !t.IsTempBasal() {
			out = append(out, t)
		}
	}
	return out
}

// TempBasals returns the basal overrides contained in the treatments
func (s *Snapshot) TempBasals() []TempBasal {
	var out []TempBasal
	for _, t := range s.Treatments {
		if t.IsTempBasal() {
			out = append(out, t.TempBasal())
		}
	}
	return out
}

// MBGs returns the meter readings, oldest first
func (s *Snapshot) MBGs() []Reading {
	var out []Reading
	for _, r := range s.Entries {
		if r.Kind == KindMBG {
			out = append(out, r)
		}
	}
	return out
}

// LatestSGV returns the most recent sensor reading, if any
func (s *Snapshot) LatestSGV() (Reading, bool) {
	for i := len(s.Entries) - 1; i >= 0; i-- {
		if s.Entries[i].Kind == KindSGV {
			return s.Entries[i], true
		}
	}
	return Reading{}, false
}
