package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/table"
	tea "github.com/charmbracelet/bubbletea"

	"leedcheck/internal/export"
	"leedcheck/internal/leed"
	"leedcheck/internal/results"
)

var quitKeys = key.NewBinding(
	key.WithKeys("q", "esc", "ctrl+c"),
	key.WithHelp("q", "quit"),
)

// viewModel is a bubbletea model listing the grid results of one run.
type viewModel struct {
	meta  export.ReportMeta
	grids []leed.GridSummary
	table table.Model
}

func newViewModel(meta export.ReportMeta, grids []leed.GridSummary) viewModel {
	columns := []table.Column{
		{Title: "Grid", Width: 24},
		{Title: "sDA %", Width: 8},
		{Title: "Open %", Width: 8},
		{Title: "Shaded %", Width: 9},
		{Title: "ASE %", Width: 8},
	}
	rows := make([]table.Row, len(grids))
	for i, g := range grids {
		rows[i] = table.Row{
			g.Name,
			fmt.Sprintf("%.2f", g.SDA),
			fmt.Sprintf("%.2f", g.SDAOpen),
			fmt.Sprintf("%.2f", g.SDAClosed),
			fmt.Sprintf("%.2f", g.ASE),
		}
	}
	height := len(rows) + 1
	if height > 15 {
		height = 15
	}
	t := table.New(
		table.WithColumns(columns),
		table.WithRows(rows),
		table.WithFocused(true),
		table.WithHeight(height),
	)
	return viewModel{meta: meta, grids: grids, table: t}
}

func (m viewModel) Init() tea.Cmd { return nil }

func (m viewModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if msg, ok := msg.(tea.KeyMsg); ok && key.Matches(msg, quitKeys) {
		return m, tea.Quit
	}
	var cmd tea.Cmd
	m.table, cmd = m.table.Update(msg)
	return m, cmd
}

func (m viewModel) View() string {
	var b strings.Builder
	s := m.meta.Summary
	fmt.Fprintf(&b, "credits: %s   sDA %.2f %%   ASE %.2f %%   (%s)\n\n", s.Credits, s.SDA, s.ASE, m.meta.Weighting)
	b.WriteString(m.table.View())
	b.WriteString("\n")
	if i := m.table.Cursor(); i >= 0 && i < len(m.grids) {
		g := m.grids[i]
		fmt.Fprintf(&b, "\n%s (%s): %.0f of %.0f passing sDA, %.0f of %.0f passing ASE\n",
			g.Name, g.FullID, g.PassingSDA, g.Total, g.PassingASE, g.Total)
		if g.ASENote != "" {
			b.WriteString(g.ASENote + "\n")
		}
	}
	if s.Note != "" {
		b.WriteString("\n" + s.Note + "\n")
	}
	fmt.Fprintf(&b, "\n%s %s\n", quitKeys.Help().Key, quitKeys.Help().Desc)
	return b.String()
}

// loadView reads the report, the grid summaries and the grid order of an
// output folder.
func loadView(dir string) (viewModel, error) {
	meta, _, err := export.ReadReport(filepath.Join(dir, export.ReportFile))
	if err != nil {
		return viewModel{}, err
	}
	var byID map[string]leed.GridSummary
	if err := readJSON(filepath.Join(dir, "summary_grid.json"), &byID); err != nil {
		return viewModel{}, err
	}
	var info []results.Grid
	if err := readJSON(filepath.Join(dir, "grids_info.json"), &info); err != nil {
		return viewModel{}, err
	}
	grids := make([]leed.GridSummary, 0, len(info))
	for _, g := range info {
		if gs, ok := byID[g.FullID]; ok {
			grids = append(grids, gs)
		}
	}
	return newViewModel(meta, grids), nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

func runView(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: leedcheck view <output>")
	}
	m, err := loadView(args[0])
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m).Run()
	return err
}
