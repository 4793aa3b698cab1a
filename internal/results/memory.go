package results

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	"leedcheck/internal/annual"
)

// Memory is an in-memory Provider. Matrices are owned by the caller and are
// never dropped; Release only records the call.
type Memory struct {
	GridList []Grid
	Occ      *annual.Occupancy
	// AreaMap holds optional sensor areas keyed by grid full id.
	AreaMap map[string][]float64

	mu       sync.Mutex
	data     map[cacheKey]*mat.Dense
	released []ResType
}

// NewMemory returns an empty provider for the given occupancy.
func NewMemory(occ *annual.Occupancy, grids ...Grid) *Memory {
	return &Memory{
		GridList: grids,
		Occ:      occ,
		data:     make(map[cacheKey]*mat.Dense),
	}
}

// Set stores the matrix of one grid, light path, state and result type.
func (m *Memory) Set(gridID, lightPath string, state int, res ResType, d *mat.Dense) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[cacheKey{grid: gridID, lightPath: lightPath, state: state, res: res}] = d
}

func (m *Memory) Grids(filter string) ([]Grid, error) {
	return FilterGrids(m.GridList, filter), nil
}

func (m *Memory) Occupancy() *annual.Occupancy { return m.Occ }

func (m *Memory) Matrix(g Grid, lightPath string, state int, res ResType) (*mat.Dense, error) {
	m.mu.Lock()
	d, ok := m.data[cacheKey{grid: g.FullID, lightPath: lightPath, state: state, res: res}]
	m.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s/%s/%d/%s", ErrGridNotFound, g.FullID, lightPath, state, res)
	}
	if err := checkShape(d, g, len(m.Occ.SunUpHours)); err != nil {
		return nil, err
	}
	return d, nil
}

func (m *Memory) States(g Grid, lightPath string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	seen := map[int]bool{}
	for k := range m.data {
		if k.grid == g.FullID && k.lightPath == lightPath && k.res == Direct {
			seen[k.state] = true
		}
	}
	if len(seen) == 0 {
		return nil, fmt.Errorf("%w: no states for %s/%s", ErrGridNotFound, g.FullID, lightPath)
	}
	states := make([]int, 0, len(seen))
	for s := range seen {
		states = append(states, s)
	}
	sort.Ints(states)
	return states, nil
}

func (m *Memory) Release(res ResType) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, res)
}

// Released returns the result types released so far, in call order.
func (m *Memory) Released() []ResType {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]ResType(nil), m.released...)
}

func (m *Memory) Areas(grids []Grid) ([][]float64, error) {
	if m.AreaMap == nil {
		return nil, nil
	}
	return areasFor(m.AreaMap, grids)
}
