package leed

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
	"gonum.org/v1/gonum/mat"

	"leedcheck/internal/annual"
	"leedcheck/internal/metrics"
	"leedcheck/internal/results"
	"leedcheck/internal/shading"
)

// ASEResult is the annual sunlight exposure of one grid.
type ASEResult struct {
	// ASE is the percentage of sensors above the direct threshold for more
	// than OccHours hours.
	ASE float64
	// HoursAbove is, per sensor, the occupied hours above the direct
	// threshold.
	HoursAbove []float64
	PassASE    []bool
	// HourlyPercentage is the annual series of the share of the grid (by
	// sensor count or floor area) above the direct threshold.
	HourlyPercentage []float64
}

// SDAResult is the daylight autonomy of one grid under the derived schedule
// and under the always open and always closed baselines.
type SDAResult struct {
	DA            []float64
	DAOpen        []float64
	DAClosed      []float64
	PassSDA       []bool
	PassSDAOpen   []bool
	PassSDAClosed []bool
}

// GridMetrics is every metric of one grid.
type GridMetrics struct {
	Grid results.Grid
	ASEResult
	SDAResult
}

// Engine computes the per-grid metrics. Matrices are borrowed from the
// Provider; the caller releases them by result type once a metric is done.
type Engine struct {
	Provider        results.Provider
	Strategy        shading.Strategy
	Schedule        *shading.BuildingSchedule
	Occupancy       *annual.Occupancy
	Threshold       float64
	DirectThreshold float64
	OccHours        int
	TargetTime      float64
	Workers         int
}

// ASE computes the annual sunlight exposure of every grid on the unshaded
// direct illuminance. areas is nil or holds the sensor areas of each grid.
func (e *Engine) ASE(ctx context.Context, grids []results.Grid, areas [][]float64) ([]ASEResult, error) {
	out := make([]ASEResult, len(grids))
	err := e.forEachGrid(ctx, grids, func(i int, g results.Grid) error {
		var gridAreas []float64
		if areas != nil {
			gridAreas = areas[i]
		}
		r, err := e.gridASE(g, gridAreas)
		if err != nil {
			return fmt.Errorf("ase of grid %s: %w", g.FullID, err)
		}
		out[i] = r
		return nil
	})
	return out, err
}

func (e *Engine) gridASE(g results.Grid, areas []float64) (ASEResult, error) {
	cols := e.Occupancy.Indices()
	if len(cols) == 0 {
		hourly, err := e.Occupancy.ToAnnual(nil, 0)
		return ASEResult{
			HoursAbove:       make([]float64, g.Count),
			PassASE:          filled(g.Count, true),
			HourlyPercentage: hourly,
		}, err
	}
	sum := mat.NewDense(g.Count, len(cols), nil)
	for _, lp := range g.LightPaths() {
		m, err := e.Provider.Matrix(g, lp, results.DefaultState, results.Direct)
		if err != nil {
			return ASEResult{}, err
		}
		addColumns(sum, m, cols, nil)
	}
	ase, above := metrics.AnnualSunlightExposure(sum, e.OccHours, e.DirectThreshold)
	pass := make([]bool, len(above))
	for i, h := range above {
		pass[i] = h < float64(e.OccHours)
	}
	hourly, err := e.Occupancy.ToAnnual(metrics.HourlyOverlitPercentage(sum, e.DirectThreshold, areas), 0)
	if err != nil {
		return ASEResult{}, err
	}
	return ASEResult{ASE: ase, HoursAbove: above, PassASE: pass, HourlyPercentage: hourly}, nil
}

// SDA computes the daylight autonomy of every grid on the total illuminance
// under the building schedule.
func (e *Engine) SDA(ctx context.Context, grids []results.Grid) ([]SDAResult, error) {
	out := make([]SDAResult, len(grids))
	err := e.forEachGrid(ctx, grids, func(i int, g results.Grid) error {
		r, err := e.gridSDA(g)
		if err != nil {
			return fmt.Errorf("sda of grid %s: %w", g.FullID, err)
		}
		out[i] = r
		return nil
	})
	return out, err
}

func (e *Engine) gridSDA(g results.Grid) (SDAResult, error) {
	cols := e.Occupancy.Indices()
	if len(cols) == 0 {
		zero := make([]float64, g.Count)
		fail := filled(g.Count, false)
		return SDAResult{DA: zero, DAOpen: zero, DAClosed: zero, PassSDA: fail, PassSDAOpen: fail, PassSDAClosed: fail}, nil
	}
	scheduled := mat.NewDense(g.Count, len(cols), nil)
	open := mat.NewDense(g.Count, len(cols), nil)
	closed := mat.NewDense(g.Count, len(cols), nil)
	s := e.Strategy

	for _, lp := range g.LightPaths() {
		base, err := s.Matrix(g, lp, s.Open(), results.Total)
		if err != nil {
			return SDAResult{}, err
		}
		addColumns(open, base, cols, nil)
		if lp == results.StaticApertures {
			addColumns(scheduled, base, cols, nil)
			addColumns(closed, base, cols, nil)
			continue
		}

		shut, err := s.Matrix(g, lp, s.Closed(lp), results.Total)
		if err != nil {
			return SDAResult{}, err
		}
		addColumns(closed, shut, cols, nil)

		// One matrix per distinct setting of the group, picked hour by hour.
		bySetting := map[float64]*mat.Dense{s.Open(): base}
		pick := make([]*mat.Dense, len(cols))
		for h := range cols {
			v := e.Schedule.Setting(lp, h, s.Open())
			m, ok := bySetting[v]
			if !ok {
				m, err = s.Matrix(g, lp, v, results.Total)
				if err != nil {
					return SDAResult{}, err
				}
				bySetting[v] = m
			}
			pick[h] = m
		}
		addColumns(scheduled, nil, cols, pick)
	}

	r := SDAResult{
		DA:       metrics.DaylightAutonomy(scheduled, e.Occupancy.Total, e.Threshold),
		DAOpen:   metrics.DaylightAutonomy(open, e.Occupancy.Total, e.Threshold),
		DAClosed: metrics.DaylightAutonomy(closed, e.Occupancy.Total, e.Threshold),
	}
	r.PassSDA = e.passing(r.DA)
	r.PassSDAOpen = e.passing(r.DAOpen)
	r.PassSDAClosed = e.passing(r.DAClosed)
	return r, nil
}

func (e *Engine) passing(da []float64) []bool {
	out := make([]bool, len(da))
	for i, v := range da {
		out[i] = v >= e.TargetTime
	}
	return out
}

func filled(n int, v bool) []bool {
	out := make([]bool, n)
	for i := range out {
		out[i] = v
	}
	return out
}

func (e *Engine) forEachGrid(ctx context.Context, grids []results.Grid, fn func(int, results.Grid) error) error {
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(e.Workers, 1))
	for i, grid := range grids {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			return fn(i, grid)
		})
	}
	return g.Wait()
}

// addColumns adds the occupied columns of src to dst. When pick is non-nil
// column h is read from pick[h] instead of src.
func addColumns(dst, src *mat.Dense, cols []int, pick []*mat.Dense) {
	r, _ := dst.Dims()
	for h, j := range cols {
		from := src
		if pick != nil {
			from = pick[h]
		}
		for i := 0; i < r; i++ {
			dst.Set(i, h, dst.At(i, h)+from.At(i, j))
		}
	}
}
