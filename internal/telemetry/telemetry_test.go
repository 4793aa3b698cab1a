package telemetry

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"leedcheck/internal/leed"
	"leedcheck/internal/results"
)

// The CLI hands one Recorder to both the results folder and the pipeline.
var (
	_ results.Observer = (*Recorder)(nil)
	_ leed.Observer    = (*Recorder)(nil)
)

func TestRecorderCounts(t *testing.T) {
	r := NewRecorder()
	r.GridScheduled("office", "exhaustive", 520, 0)
	r.GridScheduled("lobby", "exhaustive", 80, 3)
	r.GridScheduled("hall", "descending", 40, 0)
	r.MatrixLoaded(results.Direct)
	r.MatrixLoaded(results.Direct)
	r.MatricesReleased(results.Direct, 2)
	r.PhaseCompleted("ase", 1500*time.Millisecond)

	if got := testutil.ToFloat64(r.GridsScheduled.WithLabelValues("exhaustive")); got != 2 {
		t.Errorf("grids scheduled = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.Evaluations.WithLabelValues("exhaustive")); got != 600 {
		t.Errorf("evaluations = %v, want 600", got)
	}
	if got := testutil.ToFloat64(r.FailedHours.WithLabelValues("lobby")); got != 3 {
		t.Errorf("failed hours = %v, want 3", got)
	}
	if got := testutil.CollectAndCount(r.FailedHours); got != 1 {
		t.Errorf("failed hour series = %d, want only grids with failures", got)
	}
	if got := testutil.ToFloat64(r.MatricesLoaded.WithLabelValues("direct")); got != 2 {
		t.Errorf("matrices loaded = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.Released.WithLabelValues("direct")); got != 2 {
		t.Errorf("matrices released = %v, want 2", got)
	}
	if got := testutil.ToFloat64(r.PhaseSeconds.WithLabelValues("ase")); got != 1.5 {
		t.Errorf("phase seconds = %v, want 1.5", got)
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.GridScheduled("office", "exhaustive", 1, 1)
	r.MatrixLoaded(results.Total)
	r.MatricesReleased(results.Total, 1)
	r.PhaseCompleted("sda", time.Second)
	if err := r.WriteTextfile(filepath.Join(t.TempDir(), TextFile)); err != nil {
		t.Fatalf("WriteTextfile on nil recorder: %v", err)
	}
	if r.Registry() != nil {
		t.Error("nil recorder has a registry")
	}
}

func TestWriteTextfile(t *testing.T) {
	r := NewRecorder()
	r.GridScheduled("office", "exhaustive", 10, 0)
	path := filepath.Join(t.TempDir(), TextFile)
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `leedcheck_grids_scheduled_total{searcher="exhaustive"} 1`) {
		t.Errorf("metrics file missing counter:\n%s", data)
	}
}

func TestReleasedThroughObserver(t *testing.T) {
	r := NewRecorder()
	var obs results.Observer = r
	obs.MatrixLoaded(results.Total)
	obs.MatricesReleased(results.Total, 3)
	path := filepath.Join(t.TempDir(), TextFile)
	if err := r.WriteTextfile(path); err != nil {
		t.Fatalf("WriteTextfile: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), `leedcheck_matrices_released_total{type="total"} 3`) {
		t.Errorf("metrics file missing released counter:\n%s", data)
	}
}
