package shading

import (
	"context"
	"math"
)

// Exhaustive evaluates every combination of light path settings.
//
// Per occupied hour it keeps the complying combination (overlit fraction at
// most MaxOverlit) with the largest overlit fraction, i.e. the one admitting
// the most sun while still complying. Ties go to the earliest combination in
// enumeration order (see Combinations).
// TODO(product): confirm the enumeration order tie-break with the LEED
// reviewer; any other rule changes the exported schedule.
// When no combination complies the hour is recorded as a failure and left
// fully open (combination 0).
type Exhaustive struct{}

func (Exhaustive) Name() string { return "exhaustive" }

func (Exhaustive) Search(ctx context.Context, in SearchInput) (*GridSchedule, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	cols, err := loadColumns(in)
	if err != nil {
		return nil, err
	}
	occIdx := in.Occupancy.Indices()
	combos := Combinations(in.Candidates)
	w := newWeigher(in)
	limit := in.maxOverlit()

	// valid[c][h] is the overlit fraction of combination c at occupied hour
	// h, or -Inf when it does not comply.
	valid := make([][]float64, len(combos))
	sums := make([]float64, in.Grid.Count)
	for c, combo := range combos {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		valid[c] = make([]float64, len(occIdx))
		for h, j := range occIdx {
			for i := range sums {
				sums[i] = 0
				for p, k := range combo {
					sums[i] += cols[p][k].at(i, j)
				}
			}
			f := w.fraction(sums)
			if f > limit {
				valid[c][h] = math.Inf(-1)
			} else {
				valid[c][h] = f
			}
		}
	}

	gs := newGridSchedule(in, len(occIdx))
	gs.Evaluated = len(combos) * len(occIdx)
	settings := make([]float64, len(in.LightPaths))
	for h := range occIdx {
		best := pickMax(valid, h)
		if best < 0 {
			gs.Failures = append(gs.Failures, hourOfYear(in.Occupancy.Hoys[h]))
			best = 0
		}
		for p, k := range combos[best] {
			settings[p] = in.Candidates[p][k]
		}
		gs.appendHour(in.LightPaths, settings)
	}
	return gs, nil
}

// pickMax returns the first combination with the largest finite value at
// hour h, or -1 when every value is -Inf.
func pickMax(values [][]float64, h int) int {
	best := -1
	for c := range values {
		v := values[c][h]
		if math.IsInf(v, -1) {
			continue
		}
		if best < 0 || v > values[best][h] {
			best = c
		}
	}
	return best
}

// Combinations enumerates the cartesian product of candidate indices. The
// last light path varies fastest, so the order is stable for a given light
// path order.
func Combinations(candidates [][]float64) [][]int {
	total := 1
	for _, c := range candidates {
		total *= len(c)
	}
	if total == 0 {
		return nil
	}
	out := make([][]int, 0, total)
	cur := make([]int, len(candidates))
	for {
		out = append(out, append([]int(nil), cur...))
		p := len(cur) - 1
		for ; p >= 0; p-- {
			cur[p]++
			if cur[p] < len(candidates[p]) {
				break
			}
			cur[p] = 0
		}
		if p < 0 {
			return out
		}
	}
}
