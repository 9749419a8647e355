// Package basal resolves the effective basal rate from a scheduled profile and
// temporary overrides, and resamples it into drawable step functions.
package basal

import (
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/mrcode/nightscout-chart/internal/models"
)

// ErrInvalidSchedule is returned for malformed profile documents
var ErrInvalidSchedule = errors.New("invalid basal schedule")

// Effective is the basal state at one instant
type Effective struct {
	Basal     float64           // Scheduled rate
	TempBasal float64           // Rate actually delivered
	Override  *models.TempBasal // Active override, nil when the schedule applies
}

// Equal reports whether two states describe the same delivery
func (e Effective) Equal(o Effective) bool {
	if e.Basal != o.Basal || e.TempBasal != o.TempBasal {
		return false
	}
	if e.Override == nil || o.Override == nil {
		return e.Override == o.Override
	}
	return e.Override.Mills == o.Override.Mills && e.Override.Duration == o.Override.Duration
}

// Profile resolves the basal state at a point in time
type Profile interface {
	TempBasal(mills int64, overrides []models.TempBasal) Effective
}

type step struct {
	offset time.Duration // From local midnight
	rate   float64
}

// Schedule is a daily piecewise-constant basal profile
type Schedule struct {
	steps []step
	loc   *time.Location
}

// NewSchedule builds a schedule from profile entries. Entries are sorted by
// time of day; a schedule without an entry at midnight wraps the last rate
// of the previous day.
func NewSchedule(p models.Profile) (*Schedule, error) {
	loc := time.UTC
	if p.Timezone != "" {
		l, err := time.LoadLocation(p.Timezone)
		if err != nil {
			return nil, fmt.Errorf("timezone %q: %w", p.Timezone, ErrInvalidSchedule)
		}
		loc = l
	}
	if len(p.Basal) == 0 {
		return nil, fmt.Errorf("no basal entries: %w", ErrInvalidSchedule)
	}

	steps := make([]step, 0, len(p.Basal))
	for _, e := range p.Basal {
		offset, err := parseTimeOfDay(e.Time)
		if err != nil {
			return nil, err
		}
		if e.Value < 0 {
			return nil, fmt.Errorf("negative rate %v at %s: %w", e.Value, e.Time, ErrInvalidSchedule)
		}
		steps = append(steps, step{offset: offset, rate: e.Value})
	}
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].offset < steps[j].offset })

	return &Schedule{steps: steps, loc: loc}, nil
}

// FlatSchedule returns a schedule delivering one rate all day
func FlatSchedule(rate float64) *Schedule {
	return &Schedule{steps: []step{{rate: rate}}, loc: time.UTC}
}

func parseTimeOfDay(s string) (time.Duration, error) {
	hh, mm, ok := strings.Cut(s, ":")
	if !ok {
		return 0, fmt.Errorf("time %q: %w", s, ErrInvalidSchedule)
	}
	h, err := strconv.Atoi(hh)
	if err != nil || h < 0 || h > 23 {
		return 0, fmt.Errorf("hour in %q: %w", s, ErrInvalidSchedule)
	}
	m, err := strconv.Atoi(mm)
	if err != nil || m < 0 || m > 59 {
		return 0, fmt.Errorf("minute in %q: %w", s, ErrInvalidSchedule)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute, nil
}

// Rate returns the scheduled rate at the given time
func (s *Schedule) Rate(mills int64) float64 {
	// Steps are keyed by wall clock, so DST days keep their HH:MM
	t := time.UnixMilli(mills).In(s.loc)
	offset := time.Duration(t.Hour())*time.Hour +
		time.Duration(t.Minute())*time.Minute +
		time.Duration(t.Second())*time.Second

	rate := s.steps[len(s.steps)-1].rate
	for _, st := range s.steps {
		if st.offset > offset {
			break
		}
		rate = st.rate
	}
	return rate
}

// TempBasal resolves the scheduled rate and the latest-started active override
func (s *Schedule) TempBasal(mills int64, overrides []models.TempBasal) Effective {
	basal := s.Rate(mills)
	eff := Effective{Basal: basal, TempBasal: basal}

	var active *models.TempBasal
	for i := range overrides {
		o := &overrides[i]
		if !o.ActiveAt(mills) {
			continue
		}
		if active == nil || o.Mills > active.Mills {
			active = o
		}
	}
	if active == nil {
		return eff
	}

	eff.Override = active
	if active.Percent != nil {
		eff.TempBasal = basal * (100 + *active.Percent) / 100
	}
	if active.Absolute != nil {
		eff.TempBasal = *active.Absolute
	}
	return eff
}
