package leed

// summary.go - per-grid and building summaries and the credit rule.
//
// Aggregation is area weighted when every grid has sensor areas and count
// weighted otherwise, for the whole run. Values keep full precision; they
// are rounded to two decimals only when marshaled.

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// ASENoteLimit is the grid ASE (%) above which glare must be addressed
	// in writing.
	ASENoteLimit = 10.0
	// BonusGridSDA is the sDA (%) every grid must reach for the bonus credit.
	BonusGridSDA = 55.0

	exemplaryLabel = "Exemplary performance"
)

// creditTiers maps building sDA (%) to points, highest first.
var creditTiers = []struct {
	sda    float64
	points int
}{
	{75, 3},
	{55, 2},
	{40, 1},
}

// Credits is the credit outcome: a number of points, or exemplary
// performance when the bonus applies to a result already at three points.
type Credits struct {
	Points    int
	Exemplary bool
}

func (c Credits) String() string {
	if c.Exemplary {
		return exemplaryLabel
	}
	return strconv.Itoa(c.Points)
}

func (c Credits) MarshalJSON() ([]byte, error) {
	if c.Exemplary {
		return json.Marshal(exemplaryLabel)
	}
	return json.Marshal(c.Points)
}

func (c *Credits) UnmarshalJSON(b []byte) error {
	var label string
	if err := json.Unmarshal(b, &label); err == nil {
		return c.parse(label)
	}
	*c = Credits{}
	return json.Unmarshal(b, &c.Points)
}

func (c Credits) MarshalYAML() (any, error) {
	if c.Exemplary {
		return exemplaryLabel, nil
	}
	return c.Points, nil
}

func (c *Credits) UnmarshalYAML(n *yaml.Node) error {
	return c.parse(n.Value)
}

func (c *Credits) parse(s string) error {
	if s == exemplaryLabel {
		*c = Credits{Points: 3, Exemplary: true}
		return nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fmt.Errorf("leed: invalid credits %q", s)
	}
	*c = Credits{Points: n}
	return nil
}

// Coverage is the passing share of a grid or building, in floor area when
// Area is set and in sensors otherwise.
type Coverage struct {
	Area       bool
	PassingASE float64
	PassingSDA float64
	Total      float64
}

// GridSummary summarizes one grid.
type GridSummary struct {
	Name   string
	FullID string
	ASE    float64
	SDA    float64
	// SDAOpen and SDAClosed are the sDA with every aperture group always
	// open and always shaded.
	SDAOpen   float64
	SDAClosed float64
	Coverage
	// ASENote is set when ASE exceeds ASENoteLimit.
	ASENote string
}

// Summary summarizes the building and carries the credit decision.
type Summary struct {
	ASE float64
	SDA float64
	Coverage
	Credits Credits
	Note    string
}

// Summarize aggregates grid metrics. areas is nil for a count weighted run.
// failed lists the grids with hours that have no complying shading
// configuration; any entry forces zero credits.
func Summarize(grids []GridMetrics, areas [][]float64, failed []string) (Summary, []GridSummary) {
	area := areas != nil
	out := make([]GridSummary, len(grids))
	total := Coverage{Area: area}
	for i, m := range grids {
		var w []float64
		if area {
			w = areas[i]
		}
		gs := GridSummary{
			Name:     m.Grid.Name,
			FullID:   m.Grid.FullID,
			Coverage: Coverage{Area: area, Total: weightSum(w, len(m.PassASE))},
		}
		gs.PassingASE = weighted(m.PassASE, w)
		gs.PassingSDA = weighted(m.PassSDA, w)
		gs.ASE = percent(gs.Total-gs.PassingASE, gs.Total)
		gs.SDA = percent(gs.PassingSDA, gs.Total)
		gs.SDAOpen = percent(weighted(m.PassSDAOpen, w), gs.Total)
		gs.SDAClosed = percent(weighted(m.PassSDAClosed, w), gs.Total)
		if gs.ASE > ASENoteLimit {
			gs.ASENote = fmt.Sprintf("The Annual Sunlight Exposure is greater than 10%% for space: %s. "+
				"Identify in writing how the space is designed to address glare.", gs.Name)
		}
		out[i] = gs

		total.PassingASE += gs.PassingASE
		total.PassingSDA += gs.PassingSDA
		total.Total += gs.Total
	}

	s := Summary{Coverage: total}
	s.ASE = percent(total.Total-total.PassingASE, total.Total)
	s.SDA = percent(total.PassingSDA, total.Total)
	s.Credits, s.Note = Award(s.SDA, out, failed)
	return s, out
}

// Award applies the credit rule to a building sDA.
func Award(sda float64, grids []GridSummary, failed []string) (Credits, string) {
	if len(failed) > 0 {
		return Credits{}, fmt.Sprintf("0 credits have been awarded. The following sensor grids have at least "+
			"one hour where 2%% of the floor area receives direct illuminance of 1000 lux or more: %s.",
			strings.Join(failed, ", "))
	}
	var c Credits
	for _, t := range creditTiers {
		if sda >= t.sda {
			c.Points = t.points
			break
		}
	}
	for _, g := range grids {
		if g.SDA < BonusGridSDA {
			return c, ""
		}
	}
	if c.Points <= 2 {
		c.Points++
	} else {
		c.Exemplary = true
	}
	return c, ""
}

func weighted(pass []bool, w []float64) float64 {
	var s float64
	for i, ok := range pass {
		if !ok {
			continue
		}
		if w == nil {
			s++
		} else {
			s += w[i]
		}
	}
	return s
}

func weightSum(w []float64, n int) float64 {
	if w == nil {
		return float64(n)
	}
	var s float64
	for _, v := range w {
		s += v
	}
	return s
}

func percent(part, total float64) float64 {
	if total == 0 {
		return 0
	}
	return part / total * 100
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }

// ---------------------------------------------------------------------------
// Serialization
// ---------------------------------------------------------------------------

// summaryJSON is the exported layout shared by building and grid summaries.
type summaryJSON struct {
	Name                  string   `json:"name,omitempty" yaml:"name,omitempty"`
	FullID                string   `json:"full_id,omitempty" yaml:"full_id,omitempty"`
	ASE                   float64  `json:"ase" yaml:"ase"`
	SDA                   float64  `json:"sda" yaml:"sda"`
	SDAOpen               *float64 `json:"sda_blinds_up,omitempty" yaml:"sda_blinds_up,omitempty"`
	SDAClosed             *float64 `json:"sda_blinds_down,omitempty" yaml:"sda_blinds_down,omitempty"`
	FloorAreaPassingASE   *float64 `json:"floor_area_passing_ase,omitempty" yaml:"floor_area_passing_ase,omitempty"`
	FloorAreaPassingSDA   *float64 `json:"floor_area_passing_sda,omitempty" yaml:"floor_area_passing_sda,omitempty"`
	TotalFloorArea        *float64 `json:"total_floor_area,omitempty" yaml:"total_floor_area,omitempty"`
	SensorCountPassingASE *int     `json:"sensor_count_passing_ase,omitempty" yaml:"sensor_count_passing_ase,omitempty"`
	SensorCountPassingSDA *int     `json:"sensor_count_passing_sda,omitempty" yaml:"sensor_count_passing_sda,omitempty"`
	TotalSensorCount      *int     `json:"total_sensor_count,omitempty" yaml:"total_sensor_count,omitempty"`
	Credits               *Credits `json:"credits,omitempty" yaml:"credits,omitempty"`
	Note                  string   `json:"note,omitempty" yaml:"note,omitempty"`
	ASENote               string   `json:"ase_note,omitempty" yaml:"ase_note,omitempty"`
}

func ptr[T any](v T) *T { return &v }

func (c Coverage) fill(w *summaryJSON) {
	if c.Area {
		w.FloorAreaPassingASE = ptr(round2(c.PassingASE))
		w.FloorAreaPassingSDA = ptr(round2(c.PassingSDA))
		w.TotalFloorArea = ptr(round2(c.Total))
		return
	}
	w.SensorCountPassingASE = ptr(int(c.PassingASE))
	w.SensorCountPassingSDA = ptr(int(c.PassingSDA))
	w.TotalSensorCount = ptr(int(c.Total))
}

func (w summaryJSON) coverage() Coverage {
	if w.TotalFloorArea != nil {
		c := Coverage{Area: true, Total: *w.TotalFloorArea}
		if w.FloorAreaPassingASE != nil {
			c.PassingASE = *w.FloorAreaPassingASE
		}
		if w.FloorAreaPassingSDA != nil {
			c.PassingSDA = *w.FloorAreaPassingSDA
		}
		return c
	}
	var c Coverage
	if w.TotalSensorCount != nil {
		c.Total = float64(*w.TotalSensorCount)
	}
	if w.SensorCountPassingASE != nil {
		c.PassingASE = float64(*w.SensorCountPassingASE)
	}
	if w.SensorCountPassingSDA != nil {
		c.PassingSDA = float64(*w.SensorCountPassingSDA)
	}
	return c
}

func (g GridSummary) wire() summaryJSON {
	w := summaryJSON{
		Name:      g.Name,
		FullID:    g.FullID,
		ASE:       round2(g.ASE),
		SDA:       round2(g.SDA),
		SDAOpen:   ptr(round2(g.SDAOpen)),
		SDAClosed: ptr(round2(g.SDAClosed)),
		ASENote:   g.ASENote,
	}
	g.Coverage.fill(&w)
	return w
}

func (g GridSummary) MarshalJSON() ([]byte, error) { return json.Marshal(g.wire()) }

func (g *GridSummary) UnmarshalJSON(b []byte) error {
	var w summaryJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*g = GridSummary{
		Name:     w.Name,
		FullID:   w.FullID,
		ASE:      w.ASE,
		SDA:      w.SDA,
		Coverage: w.coverage(),
		ASENote:  w.ASENote,
	}
	if w.SDAOpen != nil {
		g.SDAOpen = *w.SDAOpen
	}
	if w.SDAClosed != nil {
		g.SDAClosed = *w.SDAClosed
	}
	return nil
}

func (s Summary) wire() summaryJSON {
	w := summaryJSON{
		ASE:     round2(s.ASE),
		SDA:     round2(s.SDA),
		Credits: ptr(s.Credits),
		Note:    s.Note,
	}
	s.Coverage.fill(&w)
	return w
}

func (s Summary) MarshalJSON() ([]byte, error) { return json.Marshal(s.wire()) }

func (s Summary) MarshalYAML() (any, error) { return s.wire(), nil }

func (s *Summary) UnmarshalJSON(b []byte) error {
	var w summaryJSON
	if err := json.Unmarshal(b, &w); err != nil {
		return err
	}
	*s = Summary{ASE: w.ASE, SDA: w.SDA, Coverage: w.coverage(), Note: w.Note}
	if w.Credits != nil {
		s.Credits = *w.Credits
	}
	return nil
}

func (s *Summary) UnmarshalYAML(n *yaml.Node) error {
	var w summaryJSON
	if err := n.Decode(&w); err != nil {
		return err
	}
	*s = Summary{ASE: w.ASE, SDA: w.SDA, Coverage: w.coverage(), Note: w.Note}
	if w.Credits != nil {
		s.Credits = *w.Credits
	}
	return nil
}
