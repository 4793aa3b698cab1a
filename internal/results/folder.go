package results

// folder.go - results provider backed by a results folder.
//
// Folder layout:
//
//	<root>/
//	    grids_info.json                              # []Grid
//	    sun-up-hours.txt                             # one hour-of-year per line
//	    timestep.txt                                 # optional, defaults to 1
//	    <light_path>/<state>/<direct|total>/<id>.ill # sensors x sun-up hours
//	<root>/../grid_areas.json                        # optional sensor areas

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"gonum.org/v1/gonum/mat"

	"leedcheck/internal/annual"
)

// AreasFile is the geometry file looked up next to the results folder.
const AreasFile = "grid_areas.json"

type cacheKey struct {
	grid      string
	lightPath string
	state     int
	res       ResType
}

// Folder reads results from disk and caches loaded matrices by result type.
// It is safe for concurrent use.
type Folder struct {
	Root     string
	Observer Observer

	grids []Grid
	occ   *annual.Occupancy

	mu    sync.Mutex
	cache map[cacheKey]*mat.Dense
}

// OpenFolder reads the grid descriptors and sun-up hours of root and builds
// the occupancy for schedule s.
func OpenFolder(root string, s annual.Schedule) (*Folder, error) {
	data, err := os.ReadFile(filepath.Join(root, "grids_info.json"))
	if err != nil {
		return nil, fmt.Errorf("read grids info: %w", err)
	}
	var grids []Grid
	if err := json.Unmarshal(data, &grids); err != nil {
		return nil, fmt.Errorf("parse grids info: %w", err)
	}
	for _, g := range grids {
		if g.Count <= 0 {
			return nil, fmt.Errorf("grid %q: sensor count must be positive", g.FullID)
		}
		if g.FullID == "" {
			return nil, fmt.Errorf("grid %q: missing full_id", g.Name)
		}
	}

	sunUp, err := readSunUpHours(filepath.Join(root, "sun-up-hours.txt"))
	if err != nil {
		return nil, err
	}
	timestep, err := readTimestep(filepath.Join(root, "timestep.txt"))
	if err != nil {
		return nil, err
	}
	occ, err := annual.NewOccupancy(sunUp, timestep, s)
	if err != nil {
		return nil, err
	}
	return &Folder{
		Root:  root,
		grids: grids,
		occ:   occ,
		cache: make(map[cacheKey]*mat.Dense),
	}, nil
}

func readSunUpHours(path string) ([]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("read sun-up hours: %w", err)
	}
	defer f.Close()

	var hours []float64
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		v, err := strconv.ParseFloat(line, 64)
		if err != nil {
			return nil, fmt.Errorf("parse sun-up hour %q: %w", line, err)
		}
		hours = append(hours, v)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read sun-up hours: %w", err)
	}
	return hours, nil
}

func readTimestep(path string) (int, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return 1, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read timestep: %w", err)
	}
	ts, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil || ts < 1 {
		return 0, fmt.Errorf("invalid timestep %q", strings.TrimSpace(string(data)))
	}
	return ts, nil
}

// Grids returns the grid descriptors matching filter.
func (f *Folder) Grids(filter string) ([]Grid, error) {
	return FilterGrids(f.grids, filter), nil
}

// Occupancy returns the occupancy built at open time.
func (f *Folder) Occupancy() *annual.Occupancy { return f.occ }

func (f *Folder) matrixPath(g Grid, lightPath string, state int, res ResType) string {
	return filepath.Join(f.Root, lightPath, strconv.Itoa(state), string(res), g.FullID+".ill")
}

// Matrix loads (or returns the cached) illuminance matrix.
func (f *Folder) Matrix(g Grid, lightPath string, state int, res ResType) (*mat.Dense, error) {
	key := cacheKey{grid: g.FullID, lightPath: lightPath, state: state, res: res}
	f.mu.Lock()
	if m, ok := f.cache[key]; ok {
		f.mu.Unlock()
		return m, nil
	}
	f.mu.Unlock()

	m, err := readMatrix(f.matrixPath(g, lightPath, state, res))
	if err != nil {
		return nil, fmt.Errorf("grid %s light path %s: %w", g.FullID, lightPath, err)
	}
	if err := checkShape(m, g, len(f.occ.SunUpHours)); err != nil {
		return nil, err
	}

	f.mu.Lock()
	f.cache[key] = m
	f.mu.Unlock()
	if f.Observer != nil {
		f.Observer.MatrixLoaded(res)
	}
	return m, nil
}

// States lists the simulated states of a light path, ascending.
func (f *Folder) States(g Grid, lightPath string) ([]int, error) {
	entries, err := os.ReadDir(filepath.Join(f.Root, lightPath))
	if err != nil {
		return nil, fmt.Errorf("list states of %s: %w", lightPath, err)
	}
	var states []int
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		s, err := strconv.Atoi(e.Name())
		if err != nil {
			continue
		}
		states = append(states, s)
	}
	if len(states) == 0 {
		return nil, fmt.Errorf("light path %s has no states", lightPath)
	}
	sort.Ints(states)
	return states, nil
}

// Release drops every cached matrix of type res.
func (f *Folder) Release(res ResType) {
	f.mu.Lock()
	n := 0
	for k := range f.cache {
		if k.res == res {
			delete(f.cache, k)
			n++
		}
	}
	f.mu.Unlock()
	if f.Observer != nil {
		f.Observer.MatricesReleased(res, n)
	}
}

// Cached returns the number of cached matrices of type res.
func (f *Folder) Cached(res ResType) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for k := range f.cache {
		if k.res == res {
			n++
		}
	}
	return n
}

// Areas reads grid_areas.json next to the results folder.
func (f *Folder) Areas(grids []Grid) ([][]float64, error) {
	return LoadAreas(filepath.Join(filepath.Dir(filepath.Clean(f.Root)), AreasFile), grids)
}

// readMatrix parses a whitespace separated matrix, one row per line.
func readMatrix(path string) (*mat.Dense, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open matrix: %w", err)
	}
	defer file.Close()

	var data []float64
	rows, cols := 0, -1
	sc := bufio.NewScanner(file)
	sc.Buffer(make([]byte, 0, 1<<20), 1<<26)
	for sc.Scan() {
		fields := strings.Fields(sc.Text())
		if len(fields) == 0 {
			continue
		}
		if cols >= 0 && len(fields) != cols {
			return nil, fmt.Errorf("%w: %s row %d has %d values, want %d", ErrShape, path, rows+1, len(fields), cols)
		}
		cols = len(fields)
		for _, fld := range fields {
			v, err := strconv.ParseFloat(fld, 64)
			if err != nil {
				return nil, fmt.Errorf("parse %s row %d: %w", path, rows+1, err)
			}
			data = append(data, v)
		}
		rows++
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("read matrix %s: %w", path, err)
	}
	if rows == 0 || cols == 0 {
		return nil, fmt.Errorf("%w: %s is empty", ErrShape, path)
	}
	return mat.NewDense(rows, cols, data), nil
}

// WriteMatrix writes m in the format read by Folder.
func WriteMatrix(path string, m mat.Matrix) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	r, c := m.Dims()
	var b strings.Builder
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			if j > 0 {
				b.WriteByte('\t')
			}
			b.WriteString(strconv.FormatFloat(m.At(i, j), 'g', -1, 64))
		}
		b.WriteByte('\n')
	}
	if err := os.WriteFile(path, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
