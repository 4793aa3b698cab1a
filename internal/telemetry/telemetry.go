// Package telemetry records run metrics of an evaluation in Prometheus
// collectors and writes them in the text exposition format.
//
// A Recorder has its own registry. Every method is safe on a nil receiver
// so callers can pass a nil *Recorder when metrics are off.
package telemetry

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"leedcheck/internal/results"
)

const namespace = "leedcheck"

// TextFile is the name of the metrics file written to the output folder.
const TextFile = "metrics.prom"

// Recorder implements results.Observer and leed.Observer.
type Recorder struct {
	registry *prometheus.Registry

	// GridsScheduled counts scheduled grids. Labels: searcher.
	GridsScheduled *prometheus.CounterVec
	// Evaluations counts shading configuration evaluations. Labels: searcher.
	Evaluations *prometheus.CounterVec
	// FailedHours counts occupied hours without a complying configuration.
	// Labels: grid.
	FailedHours *prometheus.CounterVec
	// MatricesLoaded counts illuminance matrices read. Labels: type.
	MatricesLoaded *prometheus.CounterVec
	// Released counts cached matrices dropped. Labels: type.
	Released *prometheus.CounterVec
	// PhaseSeconds is the duration of the last run of each phase.
	// Labels: phase.
	PhaseSeconds *prometheus.GaugeVec
}

// NewRecorder creates a Recorder with registered collectors.
func NewRecorder() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		GridsScheduled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "grids_scheduled_total",
			Help:      "Sensor grids with a derived shading schedule.",
		}, []string{"searcher"}),
		Evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "shading_evaluations_total",
			Help:      "Shading configurations evaluated per occupied hour.",
		}, []string{"searcher"}),
		FailedHours: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failed_hours_total",
			Help:      "Occupied hours without a shading configuration keeping 2% of the grid below the direct threshold.",
		}, []string{"grid"}),
		MatricesLoaded: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matrices_loaded_total",
			Help:      "Illuminance matrices read from the results folder.",
		}, []string{"type"}),
		Released: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "matrices_released_total",
			Help:      "Cached illuminance matrices released.",
		}, []string{"type"}),
		PhaseSeconds: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Wall time of the last run of each evaluation phase.",
		}, []string{"phase"}),
	}
	r.registry.MustRegister(
		r.GridsScheduled,
		r.Evaluations,
		r.FailedHours,
		r.MatricesLoaded,
		r.Released,
		r.PhaseSeconds,
	)
	return r
}

// Registry returns the registry holding the collectors.
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

func (r *Recorder) GridScheduled(grid, searcher string, evaluated, failedHours int) {
	if r == nil {
		return
	}
	r.GridsScheduled.WithLabelValues(searcher).Inc()
	r.Evaluations.WithLabelValues(searcher).Add(float64(evaluated))
	if failedHours > 0 {
		r.FailedHours.WithLabelValues(grid).Add(float64(failedHours))
	}
}

func (r *Recorder) PhaseCompleted(phase string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.PhaseSeconds.WithLabelValues(phase).Set(elapsed.Seconds())
}

func (r *Recorder) MatrixLoaded(res results.ResType) {
	if r == nil {
		return
	}
	r.MatricesLoaded.WithLabelValues(string(res)).Inc()
}

func (r *Recorder) MatricesReleased(res results.ResType, n int) {
	if r == nil {
		return
	}
	r.Released.WithLabelValues(string(res)).Add(float64(n))
}

// WriteTextfile writes every collector to path.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil {
		return nil
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics %s: %w", path, err)
	}
	return nil
}
