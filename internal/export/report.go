package export

import (
	"fmt"
	"os"
	"strings"
	"time"

	"leedcheck/internal/frontmatter"
	"leedcheck/internal/leed"
	"leedcheck/internal/shading"
)

// ReportFile is the name of the compliance report.
const ReportFile = "report.md"

// ReportMeta is the frontmatter of the compliance report.
type ReportMeta struct {
	RunID         string       `yaml:"run_id"`
	Generated     string       `yaml:"generated"`
	Mode          shading.Mode `yaml:"mode"`
	Weighting     string       `yaml:"weighting"`
	Grids         int          `yaml:"grids"`
	OccupiedHours int          `yaml:"occupied_hours"`
	FailedGrids   []string     `yaml:"failed_grids,omitempty"`
	Summary       leed.Summary `yaml:"summary"`
}

func buildReport(res *leed.Result, opts Options) ([]byte, error) {
	meta := ReportMeta{
		RunID:         opts.RunID,
		Mode:          res.Schedule.Mode,
		Weighting:     "sensor count",
		Grids:         len(res.Grids),
		OccupiedHours: res.Occupancy.Total,
		FailedGrids:   res.Schedule.FailedGrids(),
		Summary:       res.Summary,
	}
	if !opts.GeneratedAt.IsZero() {
		meta.Generated = opts.GeneratedAt.UTC().Format(time.RFC3339)
	}
	if res.AreaWeighted() {
		meta.Weighting = "floor area"
	}

	var b strings.Builder
	b.WriteString("# LEED Daylight Option 1\n\n")
	fmt.Fprintf(&b, "- **Credits**: %s\n", res.Summary.Credits)
	fmt.Fprintf(&b, "- **sDA**: %.2f %%\n", res.Summary.SDA)
	fmt.Fprintf(&b, "- **ASE**: %.2f %%\n", res.Summary.ASE)
	fmt.Fprintf(&b, "- **Weighting**: %s\n", meta.Weighting)
	if res.Summary.Note != "" {
		fmt.Fprintf(&b, "\n> %s\n", res.Summary.Note)
	}

	b.WriteString("\n## Sensor Grids\n\n")
	b.WriteString("| Grid | sDA % | sDA open % | sDA shaded % | ASE % |\n")
	b.WriteString("|------|-------|------------|--------------|-------|\n")
	for _, g := range res.GridSummaries {
		fmt.Fprintf(&b, "| %s | %.2f | %.2f | %.2f | %.2f |\n", g.Name, g.SDA, g.SDAOpen, g.SDAClosed, g.ASE)
	}

	var notes []string
	for _, g := range res.GridSummaries {
		if g.ASENote != "" {
			notes = append(notes, g.ASENote)
		}
	}
	if len(notes) > 0 {
		b.WriteString("\n## Glare\n\n")
		for _, n := range notes {
			b.WriteString("- " + n + "\n")
		}
	}

	if res.Schedule.Failed() {
		b.WriteString("\n## Shading Failures\n\n")
		b.WriteString("| Grid | Hours |\n")
		b.WriteString("|------|-------|\n")
		for _, name := range meta.FailedGrids {
			fmt.Fprintf(&b, "| %s | %d |\n", name, len(res.Schedule.Failures[name]))
		}
	}

	return frontmatter.Write(meta, b.String())
}

// ReadReport reads the frontmatter and body of a compliance report.
func ReadReport(path string) (ReportMeta, string, error) {
	var meta ReportMeta
	data, err := os.ReadFile(path)
	if err != nil {
		return meta, "", fmt.Errorf("read %s: %w", path, err)
	}
	body, err := frontmatter.Decode(data, &meta)
	if err != nil {
		return meta, "", fmt.Errorf("%s: %w", path, err)
	}
	return meta, string(body), nil
}

// VisMetadata describes how a results folder is displayed.
type VisMetadata struct {
	Type     string   `json:"type"`
	DataType DataType `json:"data_type"`
	Unit     string   `json:"unit"`
	Legend   Legend   `json:"legend_parameters"`
}

type DataType struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

type Legend struct {
	Type string  `json:"type"`
	Min  float64 `json:"min"`
	Max  float64 `json:"max"`
}

func daVisMetadata() VisMetadata {
	return VisMetadata{
		Type:     "VisualizationMetaData",
		DataType: DataType{Type: "Fraction", Name: "Daylight Autonomy"},
		Unit:     "%",
		Legend:   Legend{Type: "LegendParameters", Min: 0, Max: 100},
	}
}

func aseVisMetadata(occHours int) VisMetadata {
	return VisMetadata{
		Type:     "VisualizationMetaData",
		DataType: DataType{Type: "Time", Name: "Hours above direct threshold"},
		Unit:     "hr",
		Legend:   Legend{Type: "LegendParameters", Min: 0, Max: float64(occHours)},
	}
}
