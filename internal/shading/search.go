package shading

import (
	"context"
	"fmt"
	"math"

	"leedcheck/internal/annual"
	"leedcheck/internal/results"
)

// Searcher finds the schedule of one grid. Implementations share one
// contract so the exhaustive and heuristic searches are interchangeable.
type Searcher interface {
	Name() string
	Search(ctx context.Context, in SearchInput) (*GridSchedule, error)
}

// SearchInput is everything a Searcher needs for one grid.
type SearchInput struct {
	Grid       results.Grid
	LightPaths []string
	// Candidates holds the settings of each light path, most open first.
	Candidates [][]float64
	Occupancy  *annual.Occupancy
	// Areas weights sensors by floor area; nil weights every sensor as 1.
	Areas      []float64
	Strategy   Strategy
	Threshold  float64
	MaxOverlit float64
}

// GridSchedule is the schedule one grid needs. It is never modified after
// the search returns.
type GridSchedule struct {
	Grid string
	// Groups lists the controlled aperture groups in light path order.
	Groups []string
	// Settings holds one setting per occupied hour for every group.
	Settings map[string][]float64
	// Failures holds the hours of the year with no complying configuration.
	Failures []int
	// Transmittances holds the shaded multiplier of each light path.
	Transmittances map[string]float64
	// Evaluated counts the configuration evaluations of the search.
	Evaluated int
}

func (in SearchInput) validate() error {
	if len(in.Candidates) != len(in.LightPaths) {
		return fmt.Errorf("shading: %d candidate lists for %d light paths", len(in.Candidates), len(in.LightPaths))
	}
	for i, c := range in.Candidates {
		if len(c) == 0 {
			return fmt.Errorf("shading: light path %s has no candidates", in.LightPaths[i])
		}
	}
	if in.Areas != nil && len(in.Areas) != in.Grid.Count {
		return fmt.Errorf("shading: grid %s has %d areas for %d sensors", in.Grid.FullID, len(in.Areas), in.Grid.Count)
	}
	return nil
}

func (in SearchInput) maxOverlit() float64 {
	if in.MaxOverlit > 0 {
		return in.MaxOverlit
	}
	return MaxOverlitFraction
}

func (in SearchInput) threshold() float64 {
	if in.Threshold > 0 {
		return in.Threshold
	}
	return DefaultDirectThreshold
}

// column is a read-only view of the direct illuminance of one light path
// under one setting.
type column struct {
	data   []float64
	stride int
}

func (c column) at(i, j int) float64 { return c.data[i*c.stride+j] }

// loadColumns fetches the direct matrix of every light path and candidate.
func loadColumns(in SearchInput) ([][]column, error) {
	out := make([][]column, len(in.LightPaths))
	for p, lp := range in.LightPaths {
		out[p] = make([]column, len(in.Candidates[p]))
		for k, v := range in.Candidates[p] {
			m, err := in.Strategy.Matrix(in.Grid, lp, v, results.Direct)
			if err != nil {
				return nil, err
			}
			raw := m.RawMatrix()
			out[p][k] = column{data: raw.Data, stride: raw.Stride}
		}
	}
	return out, nil
}

// weigher turns per-sensor illuminance into an overlit fraction.
type weigher struct {
	weights   []float64
	total     float64
	threshold float64
}

func newWeigher(in SearchInput) weigher {
	w := weigher{weights: in.Areas, threshold: in.threshold()}
	if w.weights == nil {
		w.total = float64(in.Grid.Count)
		return w
	}
	for _, a := range w.weights {
		w.total += a
	}
	return w
}

func (w weigher) fraction(sums []float64) float64 {
	if w.total == 0 {
		return 0
	}
	var over float64
	for i, s := range sums {
		if s < w.threshold {
			continue
		}
		if w.weights != nil {
			over += w.weights[i]
		} else {
			over++
		}
	}
	return over / w.total
}

// newGridSchedule prepares an empty schedule for the controlled groups.
func newGridSchedule(in SearchInput, hours int) *GridSchedule {
	gs := &GridSchedule{Grid: in.Grid.Name, Settings: make(map[string][]float64)}
	for _, lp := range in.LightPaths {
		if lp == results.StaticApertures {
			continue
		}
		if _, ok := gs.Settings[lp]; ok {
			continue
		}
		gs.Groups = append(gs.Groups, lp)
		gs.Settings[lp] = make([]float64, 0, hours)
	}
	return gs
}

func (gs *GridSchedule) appendHour(lightPaths []string, settings []float64) {
	for p, lp := range lightPaths {
		if lp == results.StaticApertures {
			continue
		}
		gs.Settings[lp] = append(gs.Settings[lp], settings[p])
	}
}

func hourOfYear(hoy float64) int { return int(math.Floor(hoy)) }
