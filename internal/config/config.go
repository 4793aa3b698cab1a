// Package config loads the run configuration of leedcheck.
//
// A run file is YAML (leedcheck.yaml) or TOML (leedcheck.toml), chosen by
// extension. Values missing from the file keep their defaults. Relative
// paths are resolved against the directory of the run file.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"leedcheck/internal/annual"
	"leedcheck/internal/shading"
)

// DefaultFile is the run file created by `leedcheck init`.
const DefaultFile = "leedcheck.yaml"

// ErrInvalid is returned when a run file fails validation.
var ErrInvalid = errors.New("config: invalid configuration")

var validate = validator.New()

// Config is one run of the daylight evaluation.
type Config struct {
	// Results is the annual daylight results folder.
	Results     string `yaml:"results" toml:"results" validate:"required"`
	GridsFilter string `yaml:"grids_filter" toml:"grids_filter"`
	// Output is the folder for exported artifacts; empty keeps results in
	// memory and prints the summary only.
	Output    string `yaml:"output" toml:"output"`
	UseStates bool   `yaml:"use_states" toml:"use_states"`
	// ShadeTransmittance applies to every aperture group unless
	// ShadeTransmittances is set.
	ShadeTransmittance  float64            `yaml:"shade_transmittance" toml:"shade_transmittance" validate:"gt=0,lt=1"`
	ShadeTransmittances map[string]float64 `yaml:"shade_transmittances,omitempty" toml:"shade_transmittances,omitempty" validate:"omitempty,dive,gt=0,lt=1"`
	Threshold           float64            `yaml:"threshold" toml:"threshold" validate:"gt=0"`
	DirectThreshold     float64            `yaml:"direct_threshold" toml:"direct_threshold" validate:"gt=0"`
	OccHours            int                `yaml:"occ_hours" toml:"occ_hours" validate:"gt=0"`
	TargetTime          float64            `yaml:"target_time" toml:"target_time" validate:"gt=0,lte=100"`
	Occupancy           Occupancy          `yaml:"occupancy" toml:"occupancy"`
	Workers             int                `yaml:"workers" toml:"workers" validate:"gte=1,lte=256"`
	LogLevel            string             `yaml:"log_level" toml:"log_level" validate:"oneof=debug info warn error"`
	// XLSX also writes the summary workbook to Output.
	XLSX bool `yaml:"xlsx" toml:"xlsx"`
	// Metrics writes run metrics in the Prometheus text format to Output.
	Metrics bool `yaml:"metrics" toml:"metrics"`
}

// Occupancy is the daily occupancy window.
type Occupancy struct {
	StartHour    int  `yaml:"start_hour" toml:"start_hour" validate:"gte=0,lte=23"`
	EndHour      int  `yaml:"end_hour" toml:"end_hour" validate:"gtfield=StartHour,lte=24"`
	WeekdaysOnly bool `yaml:"weekdays_only" toml:"weekdays_only"`
}

// Default returns the LEED v4.1 defaults.
func Default() *Config {
	s := annual.DefaultSchedule()
	return &Config{
		Results:            "results",
		GridsFilter:        "*",
		ShadeTransmittance: shading.DefaultShadeTransmittance,
		Threshold:          300,
		DirectThreshold:    shading.DefaultDirectThreshold,
		OccHours:           250,
		TargetTime:         50,
		Occupancy: Occupancy{
			StartHour:    s.StartHour,
			EndHour:      s.EndHour,
			WeekdaysOnly: s.WeekdaysOnly,
		},
		Workers:  1,
		LogLevel: "info",
	}
}

func isTOML(path string) bool {
	return strings.EqualFold(filepath.Ext(path), ".toml")
}

// Load reads and validates a run file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	c := Default()
	if isTOML(path) {
		err = toml.Unmarshal(data, c)
	} else {
		err = yaml.Unmarshal(data, c)
	}
	if err != nil {
		return nil, fmt.Errorf("unmarshal %s: %w", path, err)
	}
	if err := c.Validate(); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	c.resolve(filepath.Dir(path))
	return c, nil
}

func (c *Config) resolve(dir string) {
	if c.Results != "" && !filepath.IsAbs(c.Results) {
		c.Results = filepath.Join(dir, c.Results)
	}
	if c.Output != "" && !filepath.IsAbs(c.Output) {
		c.Output = filepath.Join(dir, c.Output)
	}
}

// Validate checks every field against its constraints.
func (c *Config) Validate() error {
	err := validate.Struct(c)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	msgs := make([]string, 0, len(verrs))
	for _, fe := range verrs {
		msgs = append(msgs, fmt.Sprintf("%s fails %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(msgs, "; "))
}

// Write creates a run file with c's values. It refuses to overwrite.
func Write(path string, c *Config) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("%s already exists", path)
	}
	var (
		data []byte
		err  error
	)
	if isTOML(path) {
		data, err = toml.Marshal(c)
	} else {
		data, err = yaml.Marshal(c)
	}
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create %s: %w", dir, err)
		}
	}
	return os.WriteFile(path, data, 0o644)
}

// Transmittance returns the shade transmittance input of the run.
func (c *Config) Transmittance() shading.Transmittance {
	if len(c.ShadeTransmittances) > 0 {
		return shading.Transmittance{Groups: c.ShadeTransmittances}
	}
	return shading.Uniform(c.ShadeTransmittance)
}

// Schedule returns the occupancy schedule of the run.
func (c *Config) Schedule() annual.Schedule {
	return annual.Schedule{
		StartHour:    c.Occupancy.StartHour,
		EndHour:      c.Occupancy.EndHour,
		WeekdaysOnly: c.Occupancy.WeekdaysOnly,
	}
}

// Level returns the slog level named by LogLevel.
func (c *Config) Level() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.LogLevel)); err != nil {
		return slog.LevelInfo
	}
	return l
}
