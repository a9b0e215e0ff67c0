// Package config provides configuration management for the outbreak CLI.
//
// The CLI configuration is a scenario (see internal/config) plus the few
// settings that only matter to the command line: verbosity, output format,
// log level and output files.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	intconfig "github.com/SIR-SEE/final-project-team-15/internal/config"
)

// Config holds all CLI configuration options.
type Config struct {
	intconfig.Scenario `koanf:",squash"`

	Verbose      bool   `koanf:"verbose"`
	OutputFormat string `koanf:"output"`
	LogLevel     string `koanf:"log_level"`
	// PlotFile receives a PNG of the trajectory when set.
	PlotFile string `koanf:"plot_file"`
	// MetricsFile receives run metrics in the Prometheus text format.
	MetricsFile string `koanf:"metrics_file"`
}

// Default configuration values.
const (
	DefaultOutput   = "auto" // Auto-detect: TTY=text, non-TTY=markdown
	DefaultLogLevel = "warn"
	EnvPrefix       = "OUTBREAK_"
)

// OutputFormats lists the accepted values of the output setting.
var OutputFormats = []string{"auto", "text", "markdown", "json"}

// LogLevels lists the accepted values of the log_level setting.
var LogLevels = []string{"debug", "info", "warn", "error"}

// Validate checks the scenario and the CLI settings.
func (c *Config) Validate() error {
	var errs []error
	if err := c.Scenario.Validate(); err != nil {
		errs = append(errs, err)
	}
	if c.OutputFormat != "" && !slices.Contains(OutputFormats, c.OutputFormat) {
		errs = append(errs, fmt.Errorf("output must be one of %s, got %q", strings.Join(OutputFormats, ", "), c.OutputFormat))
	}
	if _, err := ParseLogLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ParseLogLevel maps a level name to a slog.Level. Empty means warn.
func ParseLogLevel(s string) (slog.Level, error) {
	if s == "" {
		s = DefaultLogLevel
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil || !slices.Contains(LogLevels, strings.ToLower(s)) {
		return 0, fmt.Errorf("log_level must be one of %s, got %q", strings.Join(LogLevels, ", "), s)
	}
	return level, nil
}
