// Package annual maps between sun-up-hour series and full-year hourly series
// and builds the occupancy schedule used by the daylight metrics.
//
// An annual series holds HoursPerYear*timestep values. A sun-up hour is an
// hour-of-year (possibly fractional, e.g. 12.5) and lands at index
// floor(hoy*timestep) of the annual series.
package annual

import (
	"fmt"
	"math"
	"time"
)

// HoursPerYear is the length of a non-leap annual series at timestep 1.
const HoursPerYear = 8760

// firstWeekday is the weekday of January 1st of the reference year (2017).
const firstWeekday = time.Sunday

// Schedule describes a daily occupancy window. Hours are [StartHour, EndHour).
type Schedule struct {
	StartHour    int
	EndHour      int
	WeekdaysOnly bool
}

// DefaultSchedule returns the 8am-6pm weekday schedule.
func DefaultSchedule() Schedule {
	return Schedule{StartHour: 8, EndHour: 18, WeekdaysOnly: true}
}

// Occupied reports whether the hour-of-year falls inside the schedule.
func (s Schedule) Occupied(hoy float64) bool {
	hour := int(math.Floor(hoy))
	if hour < 0 || hour >= HoursPerYear {
		return false
	}
	hod := hour % 24
	if hod < s.StartHour || hod >= s.EndHour {
		return false
	}
	if s.WeekdaysOnly {
		wd := time.Weekday((int(firstWeekday) + hour/24) % 7)
		if wd == time.Saturday || wd == time.Sunday {
			return false
		}
	}
	return true
}

// Values returns the annual occupancy pattern at the given timestep.
func (s Schedule) Values(timestep int) []bool {
	if timestep < 1 {
		timestep = 1
	}
	out := make([]bool, HoursPerYear*timestep)
	for i := range out {
		out[i] = s.Occupied(float64(i) / float64(timestep))
	}
	return out
}

// HourIndex returns the annual series index of a sun-up hour.
func HourIndex(hoy float64, timestep int) int {
	return int(math.Floor(hoy * float64(timestep)))
}

// Occupancy is the occupancy of one simulation's sun-up hours. It is built
// once per run and read-only afterwards.
type Occupancy struct {
	SunUpHours []float64
	Timestep   int
	// Mask is true for sun-up hours inside the schedule.
	Mask []bool
	// Hoys are the occupied sun-up hours, in sun-up order.
	Hoys []float64
	// Total is the number of occupied hours of the year, sun up or not.
	Total int
}

// NewOccupancy filters sunUpHours by the schedule.
func NewOccupancy(sunUpHours []float64, timestep int, s Schedule) (*Occupancy, error) {
	if timestep < 1 {
		return nil, fmt.Errorf("annual: invalid timestep %d", timestep)
	}
	if s.EndHour <= s.StartHour {
		return nil, fmt.Errorf("annual: empty occupancy window %d-%d", s.StartHour, s.EndHour)
	}
	pattern := s.Values(timestep)
	total := 0
	for _, v := range pattern {
		if v {
			total++
		}
	}
	occ := &Occupancy{
		SunUpHours: sunUpHours,
		Timestep:   timestep,
		Mask:       make([]bool, len(sunUpHours)),
		Total:      total,
	}
	for i, hoy := range sunUpHours {
		idx := HourIndex(hoy, timestep)
		if idx < 0 || idx >= len(pattern) {
			return nil, fmt.Errorf("annual: sun-up hour %v outside the year", hoy)
		}
		if pattern[idx] {
			occ.Mask[i] = true
			occ.Hoys = append(occ.Hoys, hoy)
		}
	}
	return occ, nil
}

// Count returns the number of occupied sun-up hours.
func (o *Occupancy) Count() int { return len(o.Hoys) }

// Indices returns the sun-up column index of every occupied hour.
func (o *Occupancy) Indices() []int {
	idx := make([]int, 0, len(o.Hoys))
	for i, ok := range o.Mask {
		if ok {
			idx = append(idx, i)
		}
	}
	return idx
}

// ToAnnual expands one value per occupied sun-up hour to an annual series.
func (o *Occupancy) ToAnnual(values []float64, base float64) ([]float64, error) {
	return ValuesToAnnual(o.Hoys, values, o.Timestep, base)
}

// ValuesToAnnual places values at the annual index of each hour and fills
// every other entry with base.
func ValuesToAnnual(hoys, values []float64, timestep int, base float64) ([]float64, error) {
	if len(hoys) != len(values) {
		return nil, fmt.Errorf("annual: %d hours but %d values", len(hoys), len(values))
	}
	if timestep < 1 {
		timestep = 1
	}
	out := make([]float64, HoursPerYear*timestep)
	for i := range out {
		out[i] = base
	}
	for i, hoy := range hoys {
		idx := HourIndex(hoy, timestep)
		if idx < 0 || idx >= len(out) {
			return nil, fmt.Errorf("annual: hour %v outside the year", hoy)
		}
		out[idx] = values[i]
	}
	return out, nil
}
