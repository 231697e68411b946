// Package config loads scoregrid settings from YAML.
package config

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"

	"github.com/james-see/scoregrid/pkg/diag"
	"github.com/james-see/scoregrid/pkg/grid"
	"github.com/james-see/scoregrid/pkg/layout"
)

// ErrInvalid is returned for a configuration that fails validation.
var ErrInvalid = fmt.Errorf("invalid config: %w", diag.ErrConfig)

// Config is the whole configuration file.
type Config struct {
	Logging Logging `yaml:"logging"`
	Grid    Grid    `yaml:"grid"`
	Layout  Layout  `yaml:"layout"`
	Server  Server  `yaml:"server"`
}

// Logging selects the diagnostic channel.
type Logging struct {
	Level  string `yaml:"level"`  // debug, info, warn or error
	Format string `yaml:"format"` // text or json
}

// Grid controls Humdrum output.
type Grid struct {
	RecipSpine       bool `yaml:"recip_spine"`        // prepend a **recip spine
	SourceBarNumbers bool `yaml:"source_bar_numbers"` // number barlines from the source
	StaffIndications bool `yaml:"staff_indications"`  // emit *staffN and *partN lines
}

// Layout is the page geometry, in staff-space based units.
type Layout struct {
	SystemWidth          float64 `yaml:"system_width"`
	StaffHeight          float64 `yaml:"staff_height"`
	StaffGap             float64 `yaml:"staff_gap"`
	SystemGap            float64 `yaml:"system_gap"`
	SpacingLinear        float64 `yaml:"spacing_linear"`
	SpacingNonLinear     float64 `yaml:"spacing_non_linear"`
	ColumnMargin         float64 `yaml:"column_margin"`
	HoldBarlineGaps      bool    `yaml:"hold_barline_gaps"`
	MinLastJustification float64 `yaml:"min_last_justification"`
	Workers              int     `yaml:"workers"`
}

// Server configures the HTTP API.
type Server struct {
	Port int `yaml:"port"`
}

// Default returns the built-in configuration.
func Default() *Config {
	l := layout.DefaultOptions()
	return &Config{
		Logging: Logging{Level: "info", Format: "text"},
		Layout: Layout{
			SystemWidth:          l.SystemWidth,
			StaffHeight:          l.StaffHeight,
			StaffGap:             l.StaffGap,
			SystemGap:            l.SystemGap,
			SpacingLinear:        l.SpacingLinear,
			SpacingNonLinear:     l.SpacingNonLinear,
			ColumnMargin:         l.ColumnMargin,
			MinLastJustification: l.MinLastJustification,
			Workers:              l.Workers,
		},
		Server: Server{Port: 8080},
	}
}

// Load reads path over the defaults. An empty path returns the defaults.
func Load(path string) (*Config, error) {
	if path == "" {
		return Default(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "reading config")
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "config %s", path)
	}
	return cfg, nil
}

// Parse decodes YAML over the defaults. Unknown keys are errors.
func Parse(data []byte) (*Config, error) {
	cfg := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil && err != io.EOF {
		return nil, errors.Wrapf(ErrInvalid, "%v", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section.
func (c *Config) Validate() error {
	switch c.Logging.Level {
	case "debug", "info", "warn", "error":
	default:
		return errors.Wrapf(ErrInvalid, "logging.level %q", c.Logging.Level)
	}
	switch c.Logging.Format {
	case "text", "json":
	default:
		return errors.Wrapf(ErrInvalid, "logging.format %q", c.Logging.Format)
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return errors.Wrapf(ErrInvalid, "server.port %d", c.Server.Port)
	}
	if c.Layout.Workers < 1 {
		return errors.Wrapf(ErrInvalid, "layout.workers %d", c.Layout.Workers)
	}
	if err := c.LayoutOptions(nil).Validate(); err != nil {
		return errors.Wrapf(ErrInvalid, "layout: %v", err)
	}
	return nil
}

// GridOptions converts the grid section.
func (c *Config) GridOptions(log logrus.FieldLogger) grid.Options {
	return grid.Options{
		RecipSpine:       c.Grid.RecipSpine,
		SourceBarNumbers: c.Grid.SourceBarNumbers,
		StaffIndications: c.Grid.StaffIndications,
		Logger:           log,
	}
}

// LayoutOptions converts the layout section.
func (c *Config) LayoutOptions(log logrus.FieldLogger) layout.Options {
	l := c.Layout
	return layout.Options{
		SystemWidth:          l.SystemWidth,
		StaffHeight:          l.StaffHeight,
		StaffGap:             l.StaffGap,
		SystemGap:            l.SystemGap,
		SpacingLinear:        l.SpacingLinear,
		SpacingNonLinear:     l.SpacingNonLinear,
		ColumnMargin:         l.ColumnMargin,
		HoldBarlineGaps:      l.HoldBarlineGaps,
		MinLastJustification: l.MinLastJustification,
		Workers:              l.Workers,
		Logger:               log,
	}
}

// Logger builds the configured logger writing to w.
func (c *Config) Logger(w io.Writer) (*logrus.Logger, error) {
	return diag.NewLogger(c.Logging.Level, c.Logging.Format, w)
}
