package shading

import (
	"fmt"
	"maps"
	"slices"

	"leedcheck/internal/annual"
)

// BuildingSchedule is the building-wide schedule of every aperture group.
type BuildingSchedule struct {
	Mode Mode
	// Groups lists aperture groups in order of first appearance.
	Groups []string
	// Settings holds one setting per occupied hour for every group.
	Settings map[string][]float64
	// Failures maps grid names to the hours of the year with no complying
	// configuration.
	Failures map[string][]int
	// Transmittances holds the shaded multiplier of every aperture group in
	// transmittance mode.
	Transmittances map[string]float64
}

// Reduce folds per-grid schedules into one building schedule. Groups
// controlled by several grids are combined hour by hour with s.Merge.
func Reduce(s Strategy, parts []*GridSchedule) (*BuildingSchedule, error) {
	b := &BuildingSchedule{
		Mode:     s.Mode(),
		Settings: make(map[string][]float64),
		Failures: make(map[string][]int),
	}
	if s.Mode() == ModeTransmittance {
		b.Transmittances = make(map[string]float64)
	}
	for _, part := range parts {
		if part == nil {
			continue
		}
		if err := b.fold(s, part); err != nil {
			return nil, err
		}
	}
	return b, nil
}

func (b *BuildingSchedule) fold(s Strategy, part *GridSchedule) error {
	for _, group := range part.Groups {
		values := part.Settings[group]
		cur, ok := b.Settings[group]
		if !ok {
			b.Groups = append(b.Groups, group)
			b.Settings[group] = slices.Clone(values)
			continue
		}
		if len(cur) != len(values) {
			return fmt.Errorf("shading: group %s has %d hours in one grid and %d in grid %s", group, len(cur), len(values), part.Grid)
		}
		merged := make([]float64, len(cur))
		for h := range cur {
			merged[h] = s.Merge(cur[h], values[h])
		}
		b.Settings[group] = merged
	}
	if len(part.Failures) > 0 {
		hours := append(b.Failures[part.Grid], part.Failures...)
		slices.Sort(hours)
		b.Failures[part.Grid] = slices.Compact(hours)
	}
	if b.Transmittances != nil {
		maps.Copy(b.Transmittances, part.Transmittances)
	}
	return nil
}

// Failed reports whether any grid has an hour without a complying
// configuration.
func (b *BuildingSchedule) Failed() bool { return len(b.Failures) > 0 }

// FailedGrids returns the names of grids with failures, sorted.
func (b *BuildingSchedule) FailedGrids() []string {
	return slices.Sorted(maps.Keys(b.Failures))
}

// Annual expands every group to an annual series, with base at hours that
// are unoccupied or have the sun down.
func (b *BuildingSchedule) Annual(occ *annual.Occupancy, base float64) (map[string][]float64, error) {
	out := make(map[string][]float64, len(b.Groups))
	for _, group := range b.Groups {
		series, err := occ.ToAnnual(b.Settings[group], base)
		if err != nil {
			return nil, fmt.Errorf("group %s: %w", group, err)
		}
		out[group] = series
	}
	return out, nil
}

// Setting returns the setting of a group at occupied hour h, or open when
// the group is not scheduled.
func (b *BuildingSchedule) Setting(group string, h int, open float64) float64 {
	values, ok := b.Settings[group]
	if !ok || h >= len(values) {
		return open
	}
	return values[h]
}
