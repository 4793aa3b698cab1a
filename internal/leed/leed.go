// Package leed evaluates LEED v4.1 Daylight Option 1 for a set of annual
// daylight results.
//
// OptionOne runs three phases in order: the shading schedule (package
// shading), the per-grid metrics (Engine) and the summary with the credit
// decision (Summarize). Each phase returns fresh values; nothing produced by
// one phase is modified by the next.
package leed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"leedcheck/internal/annual"
	"leedcheck/internal/results"
	"leedcheck/internal/shading"
)

const (
	// DefaultThreshold is the total illuminance (lux) counted as daylit.
	DefaultThreshold = 300.0
	// DefaultOccHours is the number of occupied hours a sensor may spend
	// above the direct threshold before it fails ASE.
	DefaultOccHours = 250
	// DefaultTargetTime is the percentage of occupied hours a sensor must be
	// daylit to pass sDA.
	DefaultTargetTime = 50.0
)

// ErrCustomSchedule is returned when a precomputed states schedule is
// supplied. Only derived schedules are supported.
var ErrCustomSchedule = errors.New("leed: custom states schedules are not supported")

// Phase names reported to an Observer.
const (
	PhaseSchedule = "schedule"
	PhaseASE      = "ase"
	PhaseSDA      = "sda"
	PhaseSummary  = "summary"
)

// Observer receives scheduling events and phase timings. The telemetry
// recorder implements it.
type Observer interface {
	shading.Observer
	PhaseCompleted(phase string, elapsed time.Duration)
}

// Options configures a run. The zero value uses the LEED defaults.
type Options struct {
	GridsFilter string
	// UseStates evaluates shading with the simulated states instead of a
	// transmittance multiplier.
	UseStates     bool
	Transmittance shading.Transmittance
	// CustomSchedule is a precomputed states schedule keyed by aperture
	// group. Not supported; a non-nil value fails the run.
	CustomSchedule  map[string][]int
	Threshold       float64
	DirectThreshold float64
	OccHours        int
	TargetTime      float64
	// Workers bounds the grids processed concurrently; 0 means one.
	Workers  int
	Logger   *slog.Logger
	Observer Observer
}

func (o Options) withDefaults() Options {
	if o.Threshold <= 0 {
		o.Threshold = DefaultThreshold
	}
	if o.DirectThreshold <= 0 {
		o.DirectThreshold = shading.DefaultDirectThreshold
	}
	if o.OccHours <= 0 {
		o.OccHours = DefaultOccHours
	}
	if o.TargetTime <= 0 {
		o.TargetTime = DefaultTargetTime
	}
	if o.Workers < 1 {
		o.Workers = 1
	}
	if o.Transmittance.Groups == nil && o.Transmittance.Value == 0 {
		o.Transmittance = shading.Uniform(shading.DefaultShadeTransmittance)
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// Strategy returns the shading strategy selected by the options.
func (o Options) Strategy(p results.Provider) shading.Strategy {
	if o.UseStates {
		return &shading.StateStrategy{Provider: p}
	}
	return &shading.TransmittanceStrategy{Provider: p, Transmittance: o.Transmittance}
}

// ScheduleResult is the output of the scheduling phase.
type ScheduleResult struct {
	Grids     []results.Grid
	Occupancy *annual.Occupancy
	// Areas holds the sensor areas of every grid, or nil when any grid has
	// none and the run is count weighted.
	Areas    [][]float64
	Schedule *shading.BuildingSchedule
	Strategy shading.Strategy
}

// AreaWeighted reports whether the run is weighted by floor area.
func (r *ScheduleResult) AreaWeighted() bool { return r.Areas != nil }

// Result is the outcome of a full run.
type Result struct {
	*ScheduleResult
	Metrics []GridMetrics
	Summary Summary
	// GridSummaries is in grid order.
	GridSummaries []GridSummary
}

// Schedule selects the grids and derives the building shading schedule.
func Schedule(ctx context.Context, p results.Provider, opts Options) (*ScheduleResult, error) {
	opts = opts.withDefaults()
	if opts.CustomSchedule != nil {
		return nil, ErrCustomSchedule
	}
	if err := opts.Transmittance.Validate(); err != nil && !opts.UseStates {
		return nil, err
	}
	log := opts.Logger

	grids, err := p.Grids(opts.GridsFilter)
	if err != nil {
		return nil, fmt.Errorf("list grids: %w", err)
	}
	if len(grids) == 0 {
		return nil, fmt.Errorf("%w: no grid matches %q", results.ErrGridNotFound, opts.GridsFilter)
	}
	occ := p.Occupancy()

	var areas [][]float64
	if src, ok := p.(results.AreaSource); ok {
		areas, err = src.Areas(grids)
		if err != nil {
			return nil, fmt.Errorf("read sensor areas: %w", err)
		}
	}
	if areas == nil {
		log.Info("no sensor areas for every grid, weighting by sensor count")
	}

	start := time.Now()
	strategy := opts.Strategy(p)
	sched := &shading.Scheduler{
		Strategy:  strategy,
		Threshold: opts.DirectThreshold,
		Workers:   opts.Workers,
		Logger:    log,
		Observer:  opts.Observer,
	}
	log.Info("scheduling shades", "grids", len(grids), "mode", strategy.Mode(), "occupied_hours", occ.Count())
	building, err := sched.Run(ctx, grids, occ, areas)
	if err != nil {
		return nil, err
	}
	if building.Failed() {
		log.Warn("grids without a complying shading configuration", "grids", building.FailedGrids())
	}
	observe(opts.Observer, PhaseSchedule, start)

	return &ScheduleResult{
		Grids:     grids,
		Occupancy: occ,
		Areas:     areas,
		Schedule:  building,
		Strategy:  strategy,
	}, nil
}

// OptionOne runs the full evaluation: schedule, metrics and credits.
func OptionOne(ctx context.Context, p results.Provider, opts Options) (*Result, error) {
	opts = opts.withDefaults()
	sr, err := Schedule(ctx, p, opts)
	if err != nil {
		return nil, err
	}
	log := opts.Logger

	engine := &Engine{
		Provider:        p,
		Strategy:        sr.Strategy,
		Schedule:        sr.Schedule,
		Occupancy:       sr.Occupancy,
		Threshold:       opts.Threshold,
		DirectThreshold: opts.DirectThreshold,
		OccHours:        opts.OccHours,
		TargetTime:      opts.TargetTime,
		Workers:         opts.Workers,
	}

	start := time.Now()
	log.Info("computing annual sunlight exposure")
	ase, err := engine.ASE(ctx, sr.Grids, sr.Areas)
	if err != nil {
		return nil, err
	}
	p.Release(results.Direct)
	log.Info("released cached matrices", "type", results.Direct)
	observe(opts.Observer, PhaseASE, start)

	start = time.Now()
	log.Info("computing spatial daylight autonomy")
	sda, err := engine.SDA(ctx, sr.Grids)
	if err != nil {
		return nil, err
	}
	p.Release(results.Total)
	log.Info("released cached matrices", "type", results.Total)
	observe(opts.Observer, PhaseSDA, start)

	start = time.Now()
	metrics := make([]GridMetrics, len(sr.Grids))
	for i, g := range sr.Grids {
		metrics[i] = GridMetrics{Grid: g, ASEResult: ase[i], SDAResult: sda[i]}
	}
	summary, grids := Summarize(metrics, sr.Areas, sr.Schedule.FailedGrids())
	observe(opts.Observer, PhaseSummary, start)
	log.Info("evaluation complete", "sda", round2(summary.SDA), "ase", round2(summary.ASE), "credits", summary.Credits)

	return &Result{
		ScheduleResult: sr,
		Metrics:        metrics,
		Summary:        summary,
		GridSummaries:  grids,
	}, nil
}

func observe(o Observer, phase string, start time.Time) {
	if o != nil {
		o.PhaseCompleted(phase, time.Since(start))
	}
}
