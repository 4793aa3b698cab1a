package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"leedcheck/internal/config"
	"leedcheck/internal/export"
	"leedcheck/internal/leed"
	"leedcheck/internal/results"
	"leedcheck/internal/telemetry"
)

// command describes a CLI subcommand.
type command struct {
	name  string
	short string
	usage string
	long  string
	run   func(args []string) error
}

var commands = []command{
	{
		name:  "init",
		short: "Create a run file with the LEED defaults",
		usage: "leedcheck init [file]",
		long: `Write a run file with the LEED v4.1 Daylight Option 1 defaults.

The file defaults to leedcheck.yaml; a .toml extension writes TOML.
Errors if the file already exists.
`,
		run: runInit,
	},
	{
		name:  "schedule",
		short: "Compute the shading schedule only",
		usage: "leedcheck schedule <file>",
		long: `Compute the hourly shading schedule of every aperture group.

Writes states_schedule.json, states_schedule_err.json and grids_info.json
to the output folder of the run file and reports the grids where no
shading combination keeps direct sunlight under 2% of the floor.
`,
		run: runSchedule,
	},
	{
		name:  "run",
		short: "Evaluate sDA, ASE and the LEED credits",
		usage: "leedcheck run <file>",
		long: `Run the full evaluation: shading schedule, ASE, sDA and credits.

Prints the building summary. When the run file sets an output folder, all
result files and report.md are written there, plus leed_summary.xlsx when
xlsx is set and metrics.prom when metrics is set.
`,
		run: runRun,
	},
	{
		name:  "view",
		short: "Browse the results of a run",
		usage: "leedcheck view <output>",
		long: `Open an interactive table of the grid results in an output folder.

Use the arrow keys to move between grids and q to quit.
`,
		run: runView,
	},
}

func printUsage(w io.Writer) {
	fmt.Fprintf(w, "leedcheck - LEED daylight option 1 evaluation\n\n")
	fmt.Fprintf(w, "Usage:\n  leedcheck <command> [arguments]\n\n")
	fmt.Fprintf(w, "Commands:\n")
	for _, cmd := range commands {
		fmt.Fprintf(w, "  %-10s %s\n", cmd.name, cmd.short)
	}
	fmt.Fprintf(w, "\nRun 'leedcheck help <command>' for details on a specific command.\n")
}

func printCommandHelp(w io.Writer, name string) {
	for _, cmd := range commands {
		if cmd.name == name {
			fmt.Fprintf(w, "Usage: %s\n\n%s", cmd.usage, cmd.long)
			return
		}
	}
	fmt.Fprintf(w, "leedcheck: unknown command %q\n\nRun 'leedcheck help' for usage.\n", name)
}

func dispatch(args []string) error {
	if len(args) == 0 || args[0] == "--help" || args[0] == "-h" {
		printUsage(os.Stdout)
		return nil
	}
	if args[0] == "help" {
		if len(args) >= 2 {
			printCommandHelp(os.Stdout, args[1])
		} else {
			printUsage(os.Stdout)
		}
		return nil
	}
	for _, cmd := range commands {
		if cmd.name == args[0] {
			return cmd.run(args[1:])
		}
	}
	return fmt.Errorf("unknown command %q\n\nRun 'leedcheck help' for usage.", args[0])
}

func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

func options(cfg *config.Config, logger *slog.Logger) leed.Options {
	return leed.Options{
		GridsFilter:     cfg.GridsFilter,
		UseStates:       cfg.UseStates,
		Transmittance:   cfg.Transmittance(),
		Threshold:       cfg.Threshold,
		DirectThreshold: cfg.DirectThreshold,
		OccHours:        cfg.OccHours,
		TargetTime:      cfg.TargetTime,
		Workers:         cfg.Workers,
		Logger:          logger,
	}
}

// ---------------------------------------------------------------------------
// init
// ---------------------------------------------------------------------------

func runInit(args []string) error {
	path := config.DefaultFile
	if len(args) > 0 {
		path = args[0]
	}
	if err := config.Write(path, config.Default()); err != nil {
		return err
	}
	fmt.Printf("created run file %s\n", path)
	return nil
}

// ---------------------------------------------------------------------------
// schedule
// ---------------------------------------------------------------------------

func runSchedule(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: leedcheck schedule <file>")
	}
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Level())
	folder, err := results.OpenFolder(cfg.Results, cfg.Schedule())
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	sr, err := leed.Schedule(ctx, folder, options(cfg, logger))
	if err != nil {
		return err
	}

	fmt.Printf("scheduled %d grids over %d occupied hours\n", len(sr.Grids), sr.Occupancy.Total)
	for _, name := range sr.Schedule.FailedGrids() {
		fmt.Printf("  %s: %d hours without a complying configuration\n", name, len(sr.Schedule.Failures[name]))
	}
	if cfg.Output == "" {
		return nil
	}
	bundle, err := export.GenerateSchedule(sr)
	if err != nil {
		return err
	}
	if err := export.Write(bundle, cfg.Output); err != nil {
		return err
	}
	fmt.Printf("  done → %s\n", cfg.Output)
	return nil
}

// ---------------------------------------------------------------------------
// run
// ---------------------------------------------------------------------------

func runRun(args []string) error {
	if len(args) < 1 {
		return fmt.Errorf("usage: leedcheck run <file>")
	}
	cfg, err := config.Load(args[0])
	if err != nil {
		return err
	}
	logger := newLogger(cfg.Level())
	folder, err := results.OpenFolder(cfg.Results, cfg.Schedule())
	if err != nil {
		return err
	}

	opts := options(cfg, logger)
	var rec *telemetry.Recorder
	if cfg.Metrics {
		rec = telemetry.NewRecorder()
		folder.Observer = rec
		opts.Observer = rec
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	res, err := leed.OptionOne(ctx, folder, opts)
	if err != nil {
		return err
	}
	printSummary(os.Stdout, res)

	if cfg.Output == "" {
		if cfg.XLSX || cfg.Metrics {
			logger.Warn("no output folder set; skipping workbook and metrics")
		}
		return nil
	}
	eo := export.Options{
		RunID:           uuid.NewString(),
		GeneratedAt:     time.Now(),
		OccHours:        cfg.OccHours,
		DirectThreshold: cfg.DirectThreshold,
	}
	bundle, err := export.Generate(res, eo)
	if err != nil {
		return err
	}
	if err := export.Write(bundle, cfg.Output); err != nil {
		return err
	}
	if cfg.XLSX {
		if err := export.WriteWorkbook(res, eo, filepath.Join(cfg.Output, export.WorkbookFile)); err != nil {
			return err
		}
	}
	if rec != nil {
		if err := rec.WriteTextfile(filepath.Join(cfg.Output, telemetry.TextFile)); err != nil {
			return err
		}
	}
	fmt.Printf("  done → %s\n", cfg.Output)
	return nil
}

func printSummary(w io.Writer, res *leed.Result) {
	s := res.Summary
	fmt.Fprintf(w, "credits: %s\n", s.Credits)
	fmt.Fprintf(w, "sDA:     %.2f %%\n", s.SDA)
	fmt.Fprintf(w, "ASE:     %.2f %%\n", s.ASE)
	for _, g := range res.GridSummaries {
		fmt.Fprintf(w, "  %-24s sDA %6.2f %%  ASE %6.2f %%\n", g.Name, g.SDA, g.ASE)
	}
	if s.Note != "" {
		fmt.Fprintf(w, "\n%s\n", s.Note)
	}
}

func main() {
	if err := dispatch(os.Args[1:]); err != nil {
		log.Fatal(err)
	}
}
