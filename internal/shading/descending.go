package shading

import (
	"context"
	"sort"
)

// Descending is the heuristic search used when a grid has too many light
// paths to enumerate.
//
// Every occupied hour starts fully open. Light paths are then shaded one
// step at a time, in descending order of their unshaded direct contribution
// to the grid at that hour, until the hour complies. An hour that does not
// comply with every light path fully shaded is recorded as a failure and
// left fully open, as Exhaustive does.
type Descending struct{}

func (Descending) Name() string { return "descending" }

func (Descending) Search(ctx context.Context, in SearchInput) (*GridSchedule, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	cols, err := loadColumns(in)
	if err != nil {
		return nil, err
	}
	occIdx := in.Occupancy.Indices()
	w := newWeigher(in)
	limit := in.maxOverlit()
	n := in.Grid.Count

	gs := newGridSchedule(in, len(occIdx))
	sums := make([]float64, n)
	level := make([]int, len(in.LightPaths))
	settings := make([]float64, len(in.LightPaths))
	order := make([]int, len(in.LightPaths))
	contrib := make([]float64, len(in.LightPaths))

	for h, j := range occIdx {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range sums {
			sums[i] = 0
		}
		for p := range in.LightPaths {
			level[p] = 0
			order[p] = p
			contrib[p] = 0
			for i := 0; i < n; i++ {
				v := cols[p][0].at(i, j)
				sums[i] += v
				contrib[p] += v
			}
		}
		gs.Evaluated++
		complies := w.fraction(sums) <= limit

		if !complies {
			sort.SliceStable(order, func(a, b int) bool {
				return contrib[order[a]] > contrib[order[b]]
			})
		search:
			for _, p := range order {
				for level[p]+1 < len(in.Candidates[p]) {
					prev := cols[p][level[p]]
					level[p]++
					next := cols[p][level[p]]
					for i := 0; i < n; i++ {
						sums[i] += next.at(i, j) - prev.at(i, j)
					}
					gs.Evaluated++
					if w.fraction(sums) <= limit {
						complies = true
						break search
					}
				}
			}
		}
		if !complies {
			gs.Failures = append(gs.Failures, hourOfYear(in.Occupancy.Hoys[h]))
			for p := range level {
				level[p] = 0
			}
		}
		for p, k := range level {
			settings[p] = in.Candidates[p][k]
		}
		gs.appendHour(in.LightPaths, settings)
	}
	return gs, nil
}
