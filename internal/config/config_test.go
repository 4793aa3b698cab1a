package config_test

import (
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"leedcheck/internal/config"
	"leedcheck/internal/shading"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
}

func TestLoadYAMLKeepsDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leedcheck.yaml")
	writeFile(t, path, "results: sim/annual\noutput: out\nthreshold: 250\nworkers: 4\n")

	c, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Results != filepath.Join(dir, "sim/annual") {
		t.Errorf("Results = %q, want it resolved against %s", c.Results, dir)
	}
	if c.Output != filepath.Join(dir, "out") {
		t.Errorf("Output = %q", c.Output)
	}
	if c.Threshold != 250 || c.Workers != 4 {
		t.Errorf("Threshold/Workers = %v/%v", c.Threshold, c.Workers)
	}
	if c.DirectThreshold != 1000 || c.OccHours != 250 || c.TargetTime != 50 {
		t.Errorf("defaults not kept: %+v", c)
	}
	if s := c.Schedule(); s.StartHour != 8 || s.EndHour != 18 || !s.WeekdaysOnly {
		t.Errorf("Schedule = %+v", s)
	}
	if got := c.Transmittance(); got.Groups != nil || got.Value != shading.DefaultShadeTransmittance {
		t.Errorf("Transmittance = %+v", got)
	}
}

func TestLoadTOML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "leedcheck.toml")
	writeFile(t, path, `
results = "/data/annual"
use_states = true
log_level = "debug"

[shade_transmittances]
south = 0.2
east = 0.1

[occupancy]
start_hour = 9
end_hour = 17
weekdays_only = false
`)
	c, err := config.Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if c.Results != "/data/annual" {
		t.Errorf("absolute Results changed: %q", c.Results)
	}
	if !c.UseStates || c.Level() != slog.LevelDebug {
		t.Errorf("UseStates/Level = %v/%v", c.UseStates, c.Level())
	}
	tr := c.Transmittance()
	if tr.Groups["south"] != 0.2 || tr.Groups["east"] != 0.1 {
		t.Errorf("Transmittance groups = %v", tr.Groups)
	}
	if s := c.Schedule(); s.StartHour != 9 || s.EndHour != 17 || s.WeekdaysOnly {
		t.Errorf("Schedule = %+v", s)
	}
}

func TestLoadInvalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"transmittance of one", "shade_transmittance: 1\n"},
		{"zero transmittance", "shade_transmittance: 0\n"},
		{"group transmittance", "shade_transmittances:\n  south: 1.5\n"},
		{"target above 100", "target_time: 120\n"},
		{"empty occupancy window", "occupancy:\n  start_hour: 18\n  end_hour: 8\n"},
		{"no workers", "workers: 0\n"},
		{"unknown log level", "log_level: verbose\n"},
		{"empty results", "results: \"\"\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "leedcheck.yaml")
			writeFile(t, path, tt.content)
			_, err := config.Load(path)
			if !errors.Is(err, config.ErrInvalid) {
				t.Fatalf("Load error = %v, want ErrInvalid", err)
			}
		})
	}
}

func TestLoadMissingFile(t *testing.T) {
	_, err := config.Load(filepath.Join(t.TempDir(), "nope.yaml"))
	if err == nil || errors.Is(err, config.ErrInvalid) {
		t.Fatalf("Load error = %v, want a read error", err)
	}
}

func TestWrite(t *testing.T) {
	dir := t.TempDir()
	for _, name := range []string{config.DefaultFile, "leedcheck.toml"} {
		path := filepath.Join(dir, name)
		if err := config.Write(path, config.Default()); err != nil {
			t.Fatalf("Write %s: %v", name, err)
		}
		c, err := config.Load(path)
		if err != nil {
			t.Fatalf("Load %s: %v", name, err)
		}
		if c.Threshold != 300 || c.Occupancy.EndHour != 18 || c.GridsFilter != "*" {
			t.Errorf("%s: unexpected values %+v", name, c)
		}
		if err := config.Write(path, config.Default()); err == nil {
			t.Errorf("%s: second Write should refuse to overwrite", name)
		}
	}
}

func TestLevelFallback(t *testing.T) {
	c := config.Default()
	c.LogLevel = "loud"
	if c.Level() != slog.LevelInfo {
		t.Errorf("Level = %v, want info", c.Level())
	}
	c.LogLevel = "warn"
	if c.Level() != slog.LevelWarn {
		t.Errorf("Level = %v, want warn", c.Level())
	}
}
