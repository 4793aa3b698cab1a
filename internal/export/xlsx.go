package export

import (
	"fmt"
	"math"

	"github.com/xuri/excelize/v2"

	"leedcheck/internal/leed"
)

// WorkbookFile is the name of the summary workbook.
const WorkbookFile = "leed_summary.xlsx"

const (
	summarySheet = "Summary"
	gridsSheet   = "Grids"
)

var gridHeaders = []any{
	"Grid", "Full ID", "sDA %", "sDA open %", "sDA shaded %", "ASE %",
	"Passing sDA", "Passing ASE", "Total", "ASE note",
}

// Workbook builds the summary workbook: building values on one sheet and
// one row per grid on another.
// The file is closed when an error is returned.
func Workbook(res *leed.Result, opts Options) (_ *excelize.File, err error) {
	wb := excelize.NewFile()
	defer func() {
		if err != nil {
			wb.Close()
		}
	}()
	if err := wb.SetSheetName(wb.GetSheetName(0), summarySheet); err != nil {
		return nil, err
	}
	if _, err := wb.NewSheet(gridsSheet); err != nil {
		return nil, err
	}

	unit := "Sensors"
	if res.AreaWeighted() {
		unit = "Floor area"
	}
	s := res.Summary
	rows := [][]any{
		{"Run", opts.RunID},
		{"Credits", s.Credits.String()},
		{"sDA %", round2(s.SDA)},
		{"ASE %", round2(s.ASE)},
		{"Weighting", unit},
		{"Passing sDA", round2(s.PassingSDA)},
		{"Passing ASE", round2(s.PassingASE)},
		{"Total", round2(s.Total)},
		{"Note", s.Note},
	}
	for i, row := range rows {
		if err := setRow(wb, summarySheet, i+1, row); err != nil {
			return nil, err
		}
	}

	if err := setRow(wb, gridsSheet, 1, gridHeaders); err != nil {
		return nil, err
	}
	for i, g := range res.GridSummaries {
		row := []any{
			g.Name, g.FullID,
			round2(g.SDA), round2(g.SDAOpen), round2(g.SDAClosed), round2(g.ASE),
			round2(g.PassingSDA), round2(g.PassingASE), round2(g.Total),
			g.ASENote,
		}
		if err := setRow(wb, gridsSheet, i+2, row); err != nil {
			return nil, err
		}
	}
	return wb, nil
}

// WriteWorkbook saves the summary workbook to path.
func WriteWorkbook(res *leed.Result, opts Options, path string) error {
	wb, err := Workbook(res, opts)
	if err != nil {
		return fmt.Errorf("build workbook: %w", err)
	}
	defer wb.Close()
	if err := wb.SaveAs(path); err != nil {
		return fmt.Errorf("save %s: %w", path, err)
	}
	return nil
}

func setRow(wb *excelize.File, sheet string, row int, values []any) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	if err := wb.SetSheetRow(sheet, cell, &values); err != nil {
		return fmt.Errorf("sheet %s row %d: %w", sheet, row, err)
	}
	return nil
}

func round2(v float64) float64 { return math.Round(v*100) / 100 }
