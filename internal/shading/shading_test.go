package shading

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"leedcheck/internal/annual"
	"leedcheck/internal/results"
)

// ---------------------------------------------------------------------------
// Helpers
// ---------------------------------------------------------------------------

// mondayHours returns the ten occupied sun-up hours of Monday January 2nd
// plus one unoccupied evening hour at the end.
func mondayHours() []float64 {
	hours := make([]float64, 0, 11)
	for h := 8; h < 18; h++ {
		hours = append(hours, float64(24+h)+0.5)
	}
	return append(hours, 24+20.5)
}

func newOccupancy(t *testing.T, hours []float64, s annual.Schedule) *annual.Occupancy {
	t.Helper()
	occ, err := annual.NewOccupancy(hours, 1, s)
	require.NoError(t, err)
	return occ
}

func fill(rows, cols int, f func(i, j int) float64) *mat.Dense {
	m := mat.NewDense(rows, cols, nil)
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			m.Set(i, j, f(i, j))
		}
	}
	return m
}

func grid(name string, count int, lightPaths ...string) results.Grid {
	g := results.Grid{Name: name, FullID: name, Count: count}
	for _, lp := range lightPaths {
		g.LightPath = append(g.LightPath, []string{lp})
	}
	return g
}

// overlit recomputes the overlit fraction of a grid for given settings.
func overlit(t *testing.T, s Strategy, g results.Grid, settings map[string]float64, col int) float64 {
	t.Helper()
	sums := make([]float64, g.Count)
	for _, lp := range g.LightPaths() {
		v, ok := settings[lp]
		if !ok {
			v = s.Open()
		}
		m, err := s.Matrix(g, lp, v, results.Direct)
		require.NoError(t, err)
		for i := range sums {
			sums[i] += m.At(i, col)
		}
	}
	n := 0
	for _, v := range sums {
		if v >= DefaultDirectThreshold {
			n++
		}
	}
	return float64(n) / float64(g.Count)
}

// ---------------------------------------------------------------------------
// Transmittance resolver
// ---------------------------------------------------------------------------

func TestResolveTransmittanceScalar(t *testing.T) {
	global := map[string]float64{"east": 0.2}
	perPath, merged, err := ResolveTransmittance(
		[]string{results.StaticApertures, "south"}, Uniform(0.1), global)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 1}, perPath[results.StaticApertures])
	assert.Equal(t, []float64{1, 0.1}, perPath["south"])
	assert.Equal(t, map[string]float64{"east": 0.2, "south": 0.1, results.StaticApertures: 1}, merged)
	assert.Equal(t, map[string]float64{"east": 0.2}, global, "global must not be modified")

	again, _, err := ResolveTransmittance([]string{results.StaticApertures, "south"}, Uniform(0.1), merged)
	require.NoError(t, err)
	assert.Equal(t, perPath, again)
}

func TestResolveTransmittanceGroups(t *testing.T) {
	in := Transmittance{Groups: map[string]float64{"south": 0.3}}
	perPath, merged, err := ResolveTransmittance([]string{"south", "north", results.StaticApertures}, in, nil)
	require.NoError(t, err)
	assert.Equal(t, []float64{1, 0.3}, perPath["south"])
	assert.Equal(t, []float64{1, DefaultShadeTransmittance}, perPath["north"])
	assert.Equal(t, []float64{1, 1}, perPath[results.StaticApertures])
	assert.Equal(t, 0.05, merged["north"])
}

func TestResolveTransmittanceInvalid(t *testing.T) {
	for _, in := range []Transmittance{
		Uniform(0),
		Uniform(1),
		Uniform(-0.5),
		{Groups: map[string]float64{"south": 1.2}},
	} {
		_, _, err := ResolveTransmittance([]string{"south"}, in, nil)
		assert.ErrorIs(t, err, ErrInvalidTransmittance, "input %+v", in)
	}
}

// ---------------------------------------------------------------------------
// Combinations
// ---------------------------------------------------------------------------

func TestCombinationsOrder(t *testing.T) {
	got := Combinations([][]float64{{1, 0.05}, {1, 0.5, 0.1}})
	want := [][]int{{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}}
	assert.Equal(t, want, got)
	assert.Len(t, Combinations(nil), 1, "no light paths is one empty configuration")
}

// ---------------------------------------------------------------------------
// Exhaustive search
// ---------------------------------------------------------------------------

// One of four sensors is overlit at every hour: the fully open
// configuration breaks the 2% rule, so every occupied hour is shaded.
func TestExhaustiveShadesOverlitHours(t *testing.T) {
	hours := mondayHours()
	occ := newOccupancy(t, hours, annual.DefaultSchedule())
	g := grid("office", 4, "south")
	p := results.NewMemory(occ, g)
	p.Set("office", "south", 0, results.Direct, fill(4, len(hours), func(i, j int) float64 {
		if i == 0 {
			return 5000
		}
		return 100
	}))
	s := &TransmittanceStrategy{Provider: p, Transmittance: Uniform(0.05)}
	sched := &Scheduler{Strategy: s}

	b, err := sched.Run(context.Background(), []results.Grid{g}, occ, nil)
	require.NoError(t, err)
	assert.False(t, b.Failed())
	require.Len(t, b.Settings["south"], occ.Count())
	for h, v := range b.Settings["south"] {
		assert.Equal(t, 0.05, v, "hour %d", h)
	}
	assert.Equal(t, 0.05, b.Transmittances["south"])
}

func TestExhaustiveRecordsFailures(t *testing.T) {
	hours := []float64{14.5, 15.5, 16.5}
	allDays := annual.Schedule{StartHour: 8, EndHour: 18}
	occ := newOccupancy(t, hours, allDays)
	g := grid("office", 4, "south")
	p := results.NewMemory(occ, g)
	p.Set("office", "south", 0, results.Direct, fill(4, 3, func(i, j int) float64 {
		switch {
		case i == 0 && j == 1:
			return 100000
		case i == 1 && j == 1:
			return 5000
		}
		return 0
	}))
	s := &TransmittanceStrategy{Provider: p, Transmittance: Uniform(0.05)}

	b, err := (&Scheduler{Strategy: s}).Run(context.Background(), []results.Grid{g}, occ, nil)
	require.NoError(t, err)
	assert.Equal(t, map[string][]int{"office": {15}}, b.Failures)
	// The failing hour is left fully open even though shading would lower
	// the overlit share.
	assert.Equal(t, []float64{1, 1, 1}, b.Settings["south"])
}

func TestExhaustiveKeepsLeastRestrictive(t *testing.T) {
	hours := mondayHours()
	occ := newOccupancy(t, hours, annual.DefaultSchedule())
	// 50 sensors: one overlit sensor is exactly 2%.
	g := grid("open-plan", 50, "east", "west")
	p := results.NewMemory(occ, g)
	p.Set("open-plan", "east", 0, results.Direct, fill(50, len(hours), func(i, j int) float64 {
		if i == 0 {
			return 1500
		}
		return 0
	}))
	p.Set("open-plan", "west", 0, results.Direct, fill(50, len(hours), func(i, j int) float64 {
		if i == 1 || i == 2 {
			return 3000
		}
		return 0
	}))
	s := &TransmittanceStrategy{Provider: p, Transmittance: Uniform(0.1)}

	for _, searcher := range []Searcher{Exhaustive{}, Descending{}} {
		t.Run(searcher.Name(), func(t *testing.T) {
			gs, err := searcher.Search(context.Background(), SearchInput{
				Grid:       g,
				LightPaths: g.LightPaths(),
				Candidates: [][]float64{{1, 0.1}, {1, 0.1}},
				Occupancy:  occ,
				Strategy:   s,
			})
			require.NoError(t, err)
			assert.Empty(t, gs.Failures)
			assert.Equal(t, []string{"east", "west"}, gs.Groups)
			for h := range occ.Hoys {
				assert.Equal(t, 1.0, gs.Settings["east"][h])
				assert.Equal(t, 0.1, gs.Settings["west"][h])
			}
		})
	}
}

// With no sun every configuration has a 0% overlit fraction; the tie goes
// to the first combination, which is fully open.
func TestExhaustiveTieBreakPrefersOpen(t *testing.T) {
	hours := mondayHours()
	occ := newOccupancy(t, hours, annual.DefaultSchedule())
	g := grid("dark", 3, "east", "west")
	p := results.NewMemory(occ, g)
	zero := mat.NewDense(3, len(hours), nil)
	p.Set("dark", "east", 0, results.Direct, zero)
	p.Set("dark", "west", 0, results.Direct, zero)
	s := &TransmittanceStrategy{Provider: p, Transmittance: Uniform(0.5)}

	gs, err := Exhaustive{}.Search(context.Background(), SearchInput{
		Grid: g, LightPaths: g.LightPaths(), Candidates: [][]float64{{1, 0.5}, {1, 0.5}},
		Occupancy: occ, Strategy: s,
	})
	require.NoError(t, err)
	for _, group := range gs.Groups {
		for _, v := range gs.Settings[group] {
			assert.Equal(t, 1.0, v)
		}
	}
}

// Shading a alone and shading b and c together both bring the grid to 0%.
// The earlier combination in enumeration order wins, even though it shades
// more light paths.
func TestExhaustiveTieBreakEnumerationOrder(t *testing.T) {
	hours := mondayHours()
	occ := newOccupancy(t, hours, annual.DefaultSchedule())
	g := grid("atrium", 50, "a", "b", "c")
	p := results.NewMemory(occ, g)
	lit := func(v float64) *mat.Dense {
		return fill(50, len(hours), func(i, j int) float64 {
			if i < 10 {
				return v
			}
			return 0
		})
	}
	p.Set("atrium", "a", 0, results.Direct, lit(900))
	p.Set("atrium", "b", 0, results.Direct, lit(450))
	p.Set("atrium", "c", 0, results.Direct, lit(450))
	s := &TransmittanceStrategy{Provider: p, Transmittance: Uniform(0.05)}

	gs, err := Exhaustive{}.Search(context.Background(), SearchInput{
		Grid: g, LightPaths: g.LightPaths(), Candidates: [][]float64{{1, 0.05}, {1, 0.05}, {1, 0.05}},
		Occupancy: occ, Strategy: s,
	})
	require.NoError(t, err)
	assert.Empty(t, gs.Failures)
	for h := range occ.Hoys {
		got := []float64{gs.Settings["a"][h], gs.Settings["b"][h], gs.Settings["c"][h]}
		assert.Equal(t, []float64{1, 0.05, 0.05}, got, "hour %d", h)
	}
}

// Every selected hour outside the failure record keeps the grid within the
// 2% limit; every hour inside it has no complying configuration at all.
func TestScheduleCompliesOutsideFailures(t *testing.T) {
	hours := mondayHours()
	occ := newOccupancy(t, hours, annual.DefaultSchedule())
	g := grid("mixed", 50, results.StaticApertures, "south", "north")
	p := results.NewMemory(occ, g)
	p.Set("mixed", results.StaticApertures, 0, results.Direct, fill(50, len(hours), func(i, j int) float64 {
		if i < 2 && j == 3 {
			return 1200
		}
		return 10
	}))
	p.Set("mixed", "south", 0, results.Direct, fill(50, len(hours), func(i, j int) float64 {
		return float64((i*37+j*11)%9) * 250
	}))
	p.Set("mixed", "north", 0, results.Direct, fill(50, len(hours), func(i, j int) float64 {
		return float64((i*13+j*7)%5) * 300
	}))
	s := &TransmittanceStrategy{Provider: p, Transmittance: Uniform(0.2)}

	b, err := (&Scheduler{Strategy: s}).Run(context.Background(), []results.Grid{g}, occ, nil)
	require.NoError(t, err)
	failed := map[int]bool{}
	for _, hoy := range b.Failures["mixed"] {
		failed[hoy] = true
	}
	assert.True(t, failed[24+11], "two static sensors overlit at hour 3 cannot be shaded")

	occIdx := occ.Indices()
	for h, col := range occIdx {
		settings := map[string]float64{
			"south": b.Settings["south"][h],
			"north": b.Settings["north"][h],
		}
		if failed[int(occ.Hoys[h])] {
			for _, c := range Combinations([][]float64{{1}, {1, 0.2}, {1, 0.2}}) {
				// c[0] is the static light path, which is never shaded.
				cand := map[string]float64{"south": []float64{1, 0.2}[c[1]], "north": []float64{1, 0.2}[c[2]]}
				assert.Greater(t, overlit(t, s, g, cand, col), MaxOverlitFraction)
			}
			continue
		}
		assert.LessOrEqual(t, overlit(t, s, g, settings, col), MaxOverlitFraction, "hour %d", h)
	}
}

// ---------------------------------------------------------------------------
// Area weighting
// ---------------------------------------------------------------------------

func TestAreaWeightedScheduling(t *testing.T) {
	hours := mondayHours()
	occ := newOccupancy(t, hours, annual.DefaultSchedule())
	g := grid("atrium", 2, "roof")
	p := results.NewMemory(occ, g)
	p.Set("atrium", "roof", 0, results.Direct, fill(2, len(hours), func(i, j int) float64 {
		if i == 1 {
			return 2000
		}
		return 0
	}))
	s := &TransmittanceStrategy{Provider: p, Transmittance: Uniform(0.1)}
	sched := &Scheduler{Strategy: s}

	byCount, err := sched.Run(context.Background(), []results.Grid{g}, occ, nil)
	require.NoError(t, err)
	assert.Equal(t, 0.1, byCount.Settings["roof"][0])

	byArea, err := sched.Run(context.Background(), []results.Grid{g}, occ, [][]float64{{99, 1}})
	require.NoError(t, err)
	assert.Equal(t, 1.0, byArea.Settings["roof"][0], "1% of the floor area is within the limit")
}

// ---------------------------------------------------------------------------
// States mode
// ---------------------------------------------------------------------------

func TestStateStrategySchedule(t *testing.T) {
	hours := mondayHours()
	occ := newOccupancy(t, hours, annual.DefaultSchedule())
	g := grid("office", 4, results.StaticApertures, "south")
	p := results.NewMemory(occ, g)
	p.Set("office", results.StaticApertures, 0, results.Direct, mat.NewDense(4, len(hours), nil))
	p.Set("office", "south", 0, results.Direct, fill(4, len(hours), func(i, j int) float64 {
		if i == 0 && j%2 == 0 {
			return 4000
		}
		return 50
	}))
	p.Set("office", "south", 1, results.Direct, fill(4, len(hours), func(i, j int) float64 { return 20 }))
	s := &StateStrategy{Provider: p}

	b, err := (&Scheduler{Strategy: s}).Run(context.Background(), []results.Grid{g}, occ, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"south"}, b.Groups, "static apertures are not scheduled")
	assert.Nil(t, b.Transmittances)
	for h, col := range occ.Indices() {
		want := 0.0
		if col%2 == 0 {
			want = 1
		}
		assert.Equal(t, want, b.Settings["south"][h], "hour %d", h)
	}
}

// ---------------------------------------------------------------------------
// Reduction
// ---------------------------------------------------------------------------

func TestReduceMergeIsOrderIndependent(t *testing.T) {
	a := &GridSchedule{Grid: "a", Groups: []string{"south"}, Settings: map[string][]float64{"south": {1, 0.05, 1, 0.05}}}
	b := &GridSchedule{Grid: "b", Groups: []string{"south", "east"}, Settings: map[string][]float64{
		"south": {1, 1, 0.05, 0.05},
		"east":  {0.05, 1, 1, 1},
	}, Failures: []int{40, 33}}
	c := &GridSchedule{Grid: "c", Groups: []string{"east"}, Settings: map[string][]float64{"east": {1, 1, 0.05, 1}}}

	trans := &TransmittanceStrategy{Transmittance: Uniform(0.05)}
	ab, err := Reduce(trans, []*GridSchedule{a, b, c})
	require.NoError(t, err)
	ba, err := Reduce(trans, []*GridSchedule{c, b, a})
	require.NoError(t, err)
	assert.Equal(t, ab.Settings, ba.Settings)
	assert.Equal(t, []float64{1, 0.05, 0.05, 0.05}, ab.Settings["south"])
	assert.Equal(t, []float64{0.05, 1, 0.05, 1}, ab.Settings["east"])
	assert.Equal(t, map[string][]int{"b": {33, 40}}, ab.Failures)
	assert.Equal(t, []string{"b"}, ab.FailedGrids())

	states := &StateStrategy{}
	sa := &GridSchedule{Grid: "a", Groups: []string{"south"}, Settings: map[string][]float64{"south": {0, 1, 0, 1}}}
	sb := &GridSchedule{Grid: "b", Groups: []string{"south"}, Settings: map[string][]float64{"south": {0, 0, 1, 1}}}
	x, err := Reduce(states, []*GridSchedule{sa, sb})
	require.NoError(t, err)
	y, err := Reduce(states, []*GridSchedule{sb, sa})
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 1, 1, 1}, x.Settings["south"])
	assert.Equal(t, x.Settings, y.Settings)

	// Inputs are not modified by the reduction.
	assert.Equal(t, []float64{1, 0.05, 1, 0.05}, a.Settings["south"])
}

func TestReduceLengthMismatch(t *testing.T) {
	a := &GridSchedule{Grid: "a", Groups: []string{"south"}, Settings: map[string][]float64{"south": {1, 1}}}
	b := &GridSchedule{Grid: "b", Groups: []string{"south"}, Settings: map[string][]float64{"south": {1}}}
	_, err := Reduce(&StateStrategy{}, []*GridSchedule{a, b})
	assert.Error(t, err)
}

func TestBuildingScheduleAnnual(t *testing.T) {
	hours := mondayHours()
	occ := newOccupancy(t, hours, annual.DefaultSchedule())
	values := make([]float64, occ.Count())
	for i := range values {
		values[i] = 0.05
	}
	b := &BuildingSchedule{Groups: []string{"south"}, Settings: map[string][]float64{"south": values}}
	series, err := b.Annual(occ, 1)
	require.NoError(t, err)
	require.Len(t, series["south"], annual.HoursPerYear)
	assert.Equal(t, 0.05, series["south"][32])
	assert.Equal(t, 1.0, series["south"][44], "unoccupied hour keeps the open value")
	assert.Equal(t, 1.0, series["south"][0])
}

// ---------------------------------------------------------------------------
// Scheduler
// ---------------------------------------------------------------------------

type recordingObserver struct {
	mu        sync.Mutex
	searchers map[string]string
}

func (o *recordingObserver) GridScheduled(grid, searcher string, evaluated, failed int) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.searchers[grid] = searcher
}

func TestSchedulerMergesSharedGroupsAcrossGrids(t *testing.T) {
	hours := mondayHours()
	occ := newOccupancy(t, hours, annual.DefaultSchedule())
	g1 := grid("east-office", 4, "south")
	g2 := grid("west-office", 4, "south")
	p := results.NewMemory(occ, g1, g2)
	p.Set("east-office", "south", 0, results.Direct, fill(4, len(hours), func(i, j int) float64 {
		if i == 0 && j < 5 {
			return 5000
		}
		return 0
	}))
	p.Set("west-office", "south", 0, results.Direct, fill(4, len(hours), func(i, j int) float64 {
		if i == 0 && j >= 5 {
			return 5000
		}
		return 0
	}))
	obs := &recordingObserver{searchers: map[string]string{}}
	s := &Scheduler{
		Strategy: &TransmittanceStrategy{Provider: p, Transmittance: Uniform(0.05)},
		Workers:  2,
		Observer: obs,
	}
	b, err := s.Run(context.Background(), []results.Grid{g1, g2}, occ, nil)
	require.NoError(t, err)
	for h, v := range b.Settings["south"] {
		assert.Equal(t, 0.05, v, "hour %d is shaded by one of the grids", h)
	}
	assert.Equal(t, "exhaustive", obs.searchers["east-office"])
}

func TestSchedulerUsesLargeSearcher(t *testing.T) {
	hours := mondayHours()
	occ := newOccupancy(t, hours, annual.DefaultSchedule())
	paths := []string{"a", "b", "c", "d", "e", "f", "g"}
	g := grid("hall", 2, paths...)
	p := results.NewMemory(occ, g)
	for _, lp := range paths {
		p.Set("hall", lp, 0, results.Direct, mat.NewDense(2, len(hours), nil))
	}
	obs := &recordingObserver{searchers: map[string]string{}}
	s := &Scheduler{Strategy: &TransmittanceStrategy{Provider: p, Transmittance: Uniform(0.05)}, Observer: obs}
	b, err := s.Run(context.Background(), []results.Grid{g}, occ, nil)
	require.NoError(t, err)
	assert.Equal(t, "descending", obs.searchers["hall"])
	assert.Len(t, b.Groups, len(paths))
}

func TestSchedulerInvalidTransmittance(t *testing.T) {
	occ := newOccupancy(t, mondayHours(), annual.DefaultSchedule())
	g := grid("office", 1, "south")
	s := &Scheduler{Strategy: &TransmittanceStrategy{Provider: results.NewMemory(occ, g), Transmittance: Uniform(1.5)}}
	_, err := s.Run(context.Background(), []results.Grid{g}, occ, nil)
	assert.ErrorIs(t, err, ErrInvalidTransmittance)
}

func TestDescendingRecordsFailures(t *testing.T) {
	hours := mondayHours()
	occ := newOccupancy(t, hours, annual.DefaultSchedule())
	g := grid("hall", 2, "a", "b")
	p := results.NewMemory(occ, g)
	p.Set("hall", "a", 0, results.Direct, fill(2, len(hours), func(i, j int) float64 {
		if j == 0 {
			return 1e6
		}
		return 0
	}))
	p.Set("hall", "b", 0, results.Direct, mat.NewDense(2, len(hours), nil))
	s := &TransmittanceStrategy{Provider: p, Transmittance: Uniform(0.05)}
	gs, err := Descending{}.Search(context.Background(), SearchInput{
		Grid: g, LightPaths: g.LightPaths(), Candidates: [][]float64{{1, 0.05}, {1, 0.05}},
		Occupancy: occ, Strategy: s,
	})
	require.NoError(t, err)
	assert.Equal(t, []int{32}, gs.Failures)
	// Like Exhaustive, the failing hour is left fully open.
	assert.Equal(t, 1.0, gs.Settings["a"][0])
	assert.Equal(t, 1.0, gs.Settings["b"][0])
	assert.Equal(t, 1.0, gs.Settings["a"][1])
}
