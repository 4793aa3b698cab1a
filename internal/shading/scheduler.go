package shading

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"leedcheck/internal/annual"
	"leedcheck/internal/results"
)

// Observer receives one event per scheduled grid.
type Observer interface {
	GridScheduled(grid, searcher string, evaluated, failedHours int)
}

// Scheduler runs a Searcher per grid and reduces the results.
type Scheduler struct {
	Strategy Strategy
	// Exhaustive searches grids with at most Limit light paths; Large
	// searches the rest. They default to Exhaustive and Descending.
	Exhaustive Searcher
	Large      Searcher
	Limit      int
	Threshold  float64
	MaxOverlit float64
	// Workers bounds the grids searched concurrently; 0 means one.
	Workers  int
	Logger   *slog.Logger
	Observer Observer
}

func (s *Scheduler) searcherFor(lightPaths int) Searcher {
	limit := s.Limit
	if limit <= 0 {
		limit = ExhaustiveLimit
	}
	if lightPaths > limit {
		if s.Large != nil {
			return s.Large
		}
		return Descending{}
	}
	if s.Exhaustive != nil {
		return s.Exhaustive
	}
	return Exhaustive{}
}

func (s *Scheduler) logger() *slog.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return slog.Default()
}

// Run schedules every grid. areas is nil or holds the sensor areas of each
// grid, in grid order.
func (s *Scheduler) Run(ctx context.Context, grids []results.Grid, occ *annual.Occupancy, areas [][]float64) (*BuildingSchedule, error) {
	if areas != nil && len(areas) != len(grids) {
		return nil, fmt.Errorf("shading: %d area lists for %d grids", len(areas), len(grids))
	}
	workers := s.Workers
	if workers < 1 {
		workers = 1
	}
	parts := make([]*GridSchedule, len(grids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, grid := range grids {
		var gridAreas []float64
		if areas != nil {
			gridAreas = areas[i]
		}
		g.Go(func() error {
			part, err := s.scheduleGrid(gctx, grid, occ, gridAreas)
			if err != nil {
				return fmt.Errorf("schedule grid %s: %w", grid.FullID, err)
			}
			parts[i] = part
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return Reduce(s.Strategy, parts)
}

func (s *Scheduler) scheduleGrid(ctx context.Context, grid results.Grid, occ *annual.Occupancy, areas []float64) (*GridSchedule, error) {
	lightPaths := grid.LightPaths()
	candidates, trans, err := s.Strategy.Candidates(grid, lightPaths)
	if err != nil {
		return nil, err
	}
	searcher := s.searcherFor(len(lightPaths))
	part, err := searcher.Search(ctx, SearchInput{
		Grid:       grid,
		LightPaths: lightPaths,
		Candidates: candidates,
		Occupancy:  occ,
		Areas:      areas,
		Strategy:   s.Strategy,
		Threshold:  s.Threshold,
		MaxOverlit: s.MaxOverlit,
	})
	if err != nil {
		return nil, err
	}
	part.Transmittances = trans

	log := s.logger().With("grid", grid.Name, "searcher", searcher.Name())
	log.Debug("grid scheduled", "light_paths", len(lightPaths), "evaluated", part.Evaluated)
	if len(part.Failures) > 0 {
		log.Warn("no complying shading configuration", "hours", len(part.Failures))
	}
	if s.Observer != nil {
		s.Observer.GridScheduled(grid.Name, searcher.Name(), part.Evaluated, len(part.Failures))
	}
	return part, nil
}
