// Package shading derives the annual operation schedule of dynamic shading
// for every aperture group of a building.
//
// For each sensor grid and each occupied hour the scheduler picks the least
// restrictive shading configuration that keeps at most MaxOverlitFraction of
// the grid (by sensor count or floor area) at or above the direct
// illuminance threshold. Per-grid schedules are then reduced into one
// building-wide schedule per aperture group.
package shading

import (
	"errors"
	"fmt"
	"maps"

	"leedcheck/internal/results"
)

const (
	// DefaultShadeTransmittance applies to aperture groups without an
	// explicit transmittance.
	DefaultShadeTransmittance = 0.05
	// MaxOverlitFraction is the largest overlit share of a grid allowed in
	// any occupied hour.
	MaxOverlitFraction = 0.02
	// DefaultDirectThreshold is the direct illuminance (lux) considered
	// overlit.
	DefaultDirectThreshold = 1000.0
	// ExhaustiveLimit is the largest light path count searched exhaustively.
	ExhaustiveLimit = 6
)

// ErrInvalidTransmittance is returned for a transmittance outside (0, 1).
var ErrInvalidTransmittance = errors.New("shading: shade transmittance must be greater than 0 and less than 1")

// Transmittance is the shade transmittance input: a single value for every
// aperture group, or per aperture group values when Groups is non-nil.
type Transmittance struct {
	Value  float64
	Groups map[string]float64
}

// Uniform returns a Transmittance applying v to every aperture group.
func Uniform(v float64) Transmittance { return Transmittance{Value: v} }

// Validate checks every explicit value.
func (t Transmittance) Validate() error {
	if t.Groups == nil {
		return checkTransmittance("all aperture groups", t.Value)
	}
	for group, v := range t.Groups {
		if err := checkTransmittance(group, v); err != nil {
			return err
		}
	}
	return nil
}

func checkTransmittance(group string, v float64) error {
	if !(v > 0 && v < 1) {
		return fmt.Errorf("%w: %s = %v", ErrInvalidTransmittance, group, v)
	}
	return nil
}

// For returns the shaded multiplier of one aperture group.
func (t Transmittance) For(group string) float64 {
	if group == results.StaticApertures {
		return 1
	}
	if t.Groups == nil {
		return t.Value
	}
	if v, ok := t.Groups[group]; ok {
		return v
	}
	return DefaultShadeTransmittance
}

// ResolveTransmittance returns, per light path, the candidate multipliers
// [1, shaded] and a copy of global extended with the shaded multiplier of
// every light path. global is not modified.
func ResolveTransmittance(lightPaths []string, in Transmittance, global map[string]float64) (map[string][]float64, map[string]float64, error) {
	if err := in.Validate(); err != nil {
		return nil, nil, err
	}
	perPath := make(map[string][]float64, len(lightPaths))
	merged := make(map[string]float64, len(global)+len(lightPaths))
	maps.Copy(merged, global)
	for _, lp := range lightPaths {
		v := in.For(lp)
		perPath[lp] = []float64{1, v}
		merged[lp] = v
	}
	return perPath, merged, nil
}
