package export

// export.go - converts an evaluation result into its output folder.
//
// Folder layout:
//   summary.json                          building summary and credits
//   summary_grid.json                     one summary per grid, by full id
//   states_schedule.json                  annual schedule per aperture group
//   states_schedule_err.json              grid name -> failed hours of the year
//   grids_info.json                       grid descriptors
//   results/da/<id>.da                    daylight autonomy per sensor
//   results/ase_hours_above/<id>.res      direct hours above threshold per sensor
//   datacollections/ase_percentage_above/<id>.json
//                                         hourly overlit percentage
//   pass_fail/{DA,ASE}/<id>.pf            1/0 per sensor
//   report.md                             compliance report with frontmatter
//
// Every results folder also carries a copy of grids_info.json.

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"leedcheck/internal/annual"
	"leedcheck/internal/leed"
	"leedcheck/internal/results"
	"leedcheck/internal/shading"
)

// Bundle holds generated file contents by slash separated relative path.
type Bundle struct {
	files map[string][]byte
}

// Paths returns every path in the bundle, sorted.
func (b *Bundle) Paths() []string {
	paths := make([]string, 0, len(b.files))
	for p := range b.files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// File returns the content of one path.
func (b *Bundle) File(path string) ([]byte, bool) {
	data, ok := b.files[path]
	return data, ok
}

// Options carries run metadata written into the report.
type Options struct {
	RunID       string
	GeneratedAt time.Time
	// OccHours sets the upper bound of the hours above legend.
	OccHours        int
	DirectThreshold float64
}

func (o Options) withDefaults() Options {
	if o.OccHours <= 0 {
		o.OccHours = leed.DefaultOccHours
	}
	if o.DirectThreshold <= 0 {
		o.DirectThreshold = shading.DefaultDirectThreshold
	}
	return o
}

// GenerateSchedule builds the artifacts of the scheduling phase only.
func GenerateSchedule(sr *leed.ScheduleResult) (*Bundle, error) {
	b := &Bundle{files: make(map[string][]byte)}
	if err := b.addSchedule(sr); err != nil {
		return nil, err
	}
	return b, nil
}

// Generate builds every artifact of a full run. No files are written.
func Generate(res *leed.Result, opts Options) (*Bundle, error) {
	opts = opts.withDefaults()
	b := &Bundle{files: make(map[string][]byte)}
	if err := b.addSchedule(res.ScheduleResult); err != nil {
		return nil, err
	}
	if err := b.addJSON("summary.json", res.Summary, true); err != nil {
		return nil, err
	}
	byID := make(map[string]leed.GridSummary, len(res.GridSummaries))
	for _, gs := range res.GridSummaries {
		byID[gs.FullID] = gs
	}
	if err := b.addJSON("summary_grid.json", byID, true); err != nil {
		return nil, err
	}

	gridsInfo := b.files["grids_info.json"]
	for _, dir := range []string{
		"results/da",
		"results/ase_hours_above",
		"datacollections/ase_percentage_above",
		"pass_fail/DA",
		"pass_fail/ASE",
	} {
		b.files[dir+"/grids_info.json"] = gridsInfo
	}
	if err := b.addJSON("results/da/vis_metadata.json", daVisMetadata(), true); err != nil {
		return nil, err
	}
	if err := b.addJSON("results/ase_hours_above/vis_metadata.json", aseVisMetadata(opts.OccHours), true); err != nil {
		return nil, err
	}

	dataType := fmt.Sprintf("Percentage above %g direct lux", opts.DirectThreshold)
	for _, m := range res.Metrics {
		id := m.Grid.FullID
		b.files["results/da/"+id+".da"] = column(m.DA, "%.2f")
		b.files["results/ase_hours_above/"+id+".res"] = column(m.HoursAbove, "%.0f")
		b.files["pass_fail/DA/"+id+".pf"] = flags(m.PassSDA)
		b.files["pass_fail/ASE/"+id+".pf"] = flags(m.PassASE)
		hourly := annual.NewHourlyCollection(dataType, "%", res.Occupancy.Timestep, m.HourlyPercentage,
			map[string]any{"SensorGrid": m.Grid.Name})
		if err := b.addJSON("datacollections/ase_percentage_above/"+id+".json", hourly, false); err != nil {
			return nil, err
		}
	}

	report, err := buildReport(res, opts)
	if err != nil {
		return nil, err
	}
	b.files["report.md"] = report
	return b, nil
}

func (b *Bundle) addSchedule(sr *leed.ScheduleResult) error {
	sched, err := scheduleCollections(sr)
	if err != nil {
		return err
	}
	if err := b.addJSON("states_schedule.json", sched, false); err != nil {
		return err
	}
	failures := sr.Schedule.Failures
	if failures == nil {
		failures = map[string][]int{}
	}
	if err := b.addJSON("states_schedule_err.json", failures, false); err != nil {
		return err
	}
	grids := sr.Grids
	if grids == nil {
		grids = []results.Grid{}
	}
	return b.addJSON("grids_info.json", grids, true)
}

// scheduleCollections expands the building schedule to one annual data
// collection per aperture group. In transmittance mode values become 0 for
// open and 1 for shaded, with the multiplier kept in the header.
func scheduleCollections(sr *leed.ScheduleResult) (map[string]annual.HourlyCollection, error) {
	s := sr.Schedule
	series, err := s.Annual(sr.Occupancy, sr.Strategy.Open())
	if err != nil {
		return nil, fmt.Errorf("expand schedule: %w", err)
	}
	out := make(map[string]annual.HourlyCollection, len(series))
	for _, group := range s.Groups {
		values := series[group]
		var meta map[string]any
		if s.Mode == shading.ModeTransmittance {
			trans := s.Transmittances[group]
			flagged := make([]float64, len(values))
			for i, v := range values {
				if sr.Strategy.Shaded(v) {
					flagged[i] = 1
				}
			}
			values = flagged
			meta = map[string]any{"Shade Transmittance": trans}
		}
		out[group] = annual.NewHourlyCollection(group, "", sr.Occupancy.Timestep, values, meta)
	}
	return out, nil
}

func (b *Bundle) addJSON(path string, v any, indent bool) error {
	var (
		data []byte
		err  error
	)
	if indent {
		data, err = json.MarshalIndent(v, "", "  ")
	} else {
		data, err = json.Marshal(v)
	}
	if err != nil {
		return fmt.Errorf("marshal %s: %w", path, err)
	}
	b.files[path] = data
	return nil
}

// column formats one value per line.
func column(values []float64, format string) []byte {
	var sb strings.Builder
	for _, v := range values {
		fmt.Fprintf(&sb, format+"\n", v)
	}
	return []byte(sb.String())
}

func flags(pass []bool) []byte {
	var sb strings.Builder
	for _, ok := range pass {
		if ok {
			sb.WriteString("1\n")
		} else {
			sb.WriteString("0\n")
		}
	}
	return []byte(sb.String())
}

// Write writes every file of bundle under dir, in sorted path order.
func Write(bundle *Bundle, dir string) error {
	for _, p := range bundle.Paths() {
		if err := writeFile(filepath.Join(dir, filepath.FromSlash(p)), bundle.files[p]); err != nil {
			return err
		}
	}
	return nil
}

// writeFile writes data to path, creating parent directories as needed.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
