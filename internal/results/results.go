// Package results provides access to pre-computed annual illuminance results
// for sensor grids: grid descriptors, per light path illuminance matrices
// (rows = sensors, columns = sun-up hours) and the run's occupancy.
package results

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/mat"

	"leedcheck/internal/annual"
)

// StaticApertures identifies apertures without dynamic shading.
const StaticApertures = "__static_apertures__"

// DefaultState is the unshaded state of every light path.
const DefaultState = 0

// ResType selects the illuminance component of a matrix.
type ResType string

const (
	Direct ResType = "direct"
	Total  ResType = "total"
)

var (
	ErrGridNotFound = errors.New("results: grid not found")
	ErrShape        = errors.New("results: matrix shape mismatch")
)

// Grid describes one sensor grid.
type Grid struct {
	Name      string     `json:"name"`
	FullID    string     `json:"full_id"`
	Count     int        `json:"count"`
	LightPath [][]string `json:"light_path"`
}

// LightPaths flattens the grid's light path groups. The static aperture
// identifier is kept only when it forms a group of its own.
func (g Grid) LightPaths() []string {
	var out []string
	for _, group := range g.LightPath {
		for _, lp := range group {
			if lp == StaticApertures && len(group) > 1 {
				continue
			}
			out = append(out, lp)
		}
	}
	return out
}

// Provider is the read side of an annual daylight results store.
//
// Matrix may cache what it returns; Release drops every cached matrix of a
// result type. Callers must treat returned matrices as read-only.
type Provider interface {
	Grids(filter string) ([]Grid, error)
	Matrix(g Grid, lightPath string, state int, res ResType) (*mat.Dense, error)
	States(g Grid, lightPath string) ([]int, error)
	Occupancy() *annual.Occupancy
	Release(res ResType)
}

// AreaSource supplies per-sensor floor areas. Areas returns nil when no
// geometry is available for every grid.
type AreaSource interface {
	Areas(grids []Grid) ([][]float64, error)
}

// Observer receives cache events from a Provider.
type Observer interface {
	MatrixLoaded(res ResType)
	MatricesReleased(res ResType, n int)
}

func checkShape(m *mat.Dense, g Grid, cols int) error {
	r, c := m.Dims()
	if r != g.Count || c != cols {
		return fmt.Errorf("%w: grid %s has %dx%d, want %dx%d", ErrShape, g.FullID, r, c, g.Count, cols)
	}
	return nil
}
