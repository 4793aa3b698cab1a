package shading

import (
	"gonum.org/v1/gonum/mat"

	"leedcheck/internal/results"
)

// Mode names a shading evaluation strategy.
type Mode string

const (
	// ModeTransmittance scales the unshaded matrices by a multiplier.
	ModeTransmittance Mode = "transmittance"
	// ModeStates looks up the simulated matrix of each discrete state.
	ModeStates Mode = "states"
)

// Strategy is the shading model a schedule is searched and evaluated with.
// A setting is a multiplier in transmittance mode and a state index in
// states mode.
type Strategy interface {
	Mode() Mode
	// Candidates returns the settings of every light path, most open first,
	// and the shaded transmittance of each light path (nil in states mode).
	Candidates(g results.Grid, lightPaths []string) ([][]float64, map[string]float64, error)
	// Matrix returns the illuminance of a light path under one setting.
	Matrix(g results.Grid, lightPath string, setting float64, res results.ResType) (*mat.Dense, error)
	// Open returns the unshaded setting.
	Open() float64
	// Closed returns the fully shaded setting of a light path.
	Closed(lightPath string) float64
	// Shaded reports whether setting attenuates the light path.
	Shaded(setting float64) bool
	// Merge combines the settings two grids chose for one aperture group at
	// one hour. It is associative and commutative.
	Merge(a, b float64) float64
}

// TransmittanceStrategy models shades as a constant multiplier on the
// unshaded illuminance.
type TransmittanceStrategy struct {
	Provider      results.Provider
	Transmittance Transmittance
}

func (s *TransmittanceStrategy) Mode() Mode { return ModeTransmittance }

func (s *TransmittanceStrategy) Candidates(g results.Grid, lightPaths []string) ([][]float64, map[string]float64, error) {
	perPath, trans, err := ResolveTransmittance(lightPaths, s.Transmittance, nil)
	if err != nil {
		return nil, nil, err
	}
	delete(trans, results.StaticApertures)
	out := make([][]float64, len(lightPaths))
	for i, lp := range lightPaths {
		if lp == results.StaticApertures {
			out[i] = []float64{1}
			continue
		}
		out[i] = perPath[lp]
	}
	return out, trans, nil
}

func (s *TransmittanceStrategy) Matrix(g results.Grid, lightPath string, setting float64, res results.ResType) (*mat.Dense, error) {
	base, err := s.Provider.Matrix(g, lightPath, results.DefaultState, res)
	if err != nil {
		return nil, err
	}
	if setting == 1 {
		return base, nil
	}
	var scaled mat.Dense
	scaled.Scale(setting, base)
	return &scaled, nil
}

func (s *TransmittanceStrategy) Open() float64 { return 1 }

func (s *TransmittanceStrategy) Closed(lightPath string) float64 {
	return s.Transmittance.For(lightPath)
}

func (s *TransmittanceStrategy) Shaded(setting float64) bool { return setting != 1 }

// Merge keeps the most attenuating multiplier.
func (s *TransmittanceStrategy) Merge(a, b float64) float64 { return min(a, b) }

// StateStrategy models shades with simulated discrete states. State 0 is
// unshaded and state 1 fully shaded.
type StateStrategy struct {
	Provider results.Provider
}

func (s *StateStrategy) Mode() Mode { return ModeStates }

func (s *StateStrategy) Candidates(g results.Grid, lightPaths []string) ([][]float64, map[string]float64, error) {
	out := make([][]float64, len(lightPaths))
	for i, lp := range lightPaths {
		if lp == results.StaticApertures {
			out[i] = []float64{results.DefaultState}
			continue
		}
		states, err := s.Provider.States(g, lp)
		if err != nil {
			return nil, nil, err
		}
		vals := make([]float64, len(states))
		for k, st := range states {
			vals[k] = float64(st)
		}
		out[i] = vals
	}
	return out, nil, nil
}

func (s *StateStrategy) Matrix(g results.Grid, lightPath string, setting float64, res results.ResType) (*mat.Dense, error) {
	return s.Provider.Matrix(g, lightPath, int(setting), res)
}

func (s *StateStrategy) Open() float64 { return results.DefaultState }

func (s *StateStrategy) Closed(lightPath string) float64 {
	if lightPath == results.StaticApertures {
		return results.DefaultState
	}
	return 1
}

func (s *StateStrategy) Shaded(setting float64) bool { return setting != results.DefaultState }

// Merge shades the group when any grid shades it.
func (s *StateStrategy) Merge(a, b float64) float64 {
	if a != 0 || b != 0 {
		return 1
	}
	return 0
}
