package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	intconfig "github.com/SIR-SEE/final-project-team-15/internal/config"
)

// loggerKey is used to store logger in context.
type loggerKey struct{}

// Package-level koanf instance and config file tracking
var (
	k              = koanf.New(".")
	configFileUsed string
	currentConfig  *Config // Stores the loaded config for access by commands
)

// flagKeys maps CLI flag names to config keys. Flags not listed here are
// command options and never reach the config tree.
var flagKeys = map[string]string{
	"verbose":          "verbose",
	"output":           "output",
	"log-level":        "log_level",
	"plot":             "plot_file",
	"metrics-file":     "metrics_file",
	"name":             "name",
	"population":       "population",
	"lockdown-day":     "lockdown.day",
	"r0-before":        "lockdown.r0_before",
	"r0-after":         "lockdown.r0_after",
	"policy":           "policy.script",
	"vaccination-day":  "vaccination.day",
	"vaccination-rate": "vaccination.rate",
	"inflow":           "vaccination.inflow",
	"days":             "grid.end",
	"points":           "grid.points",
	"method":           "solver.method",
	"rtol":             "solver.rtol",
	"atol":             "solver.atol",
	"max-steps":        "solver.max_steps",
	"max-step":         "solver.max_step",
}

// pathFlags are resolved against the working directory rather than the
// scenario file's directory.
var pathFlags = map[string]bool{"policy": true, "plot": true, "metrics-file": true}

// findConfigFile finds the config file to use.
// Priority: explicit path > outbreak.yaml or outbreak.yml in the nearest
// enclosing directory.
func findConfigFile(explicit string) string {
	if explicit != "" {
		return explicit
	}
	cwd, err := os.Getwd()
	if err != nil {
		return ""
	}
	root := intconfig.FindProjectRoot(cwd)
	if root == "" {
		return ""
	}
	return intconfig.FindScenarioFile(root)
}

// ResetConfig resets the koanf instance. Used for testing.
func ResetConfig() {
	k = koanf.New(".")
	configFileUsed = ""
	currentConfig = nil
}

// LoadConfig loads configuration from file, environment variables, and flags.
// Precedence (highest to lowest): flags > env vars > config file > defaults
func LoadConfig(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	k = koanf.New(".")

	// 1. Load defaults
	defaults := intconfig.DefaultsMap()
	defaults["verbose"] = false
	defaults["output"] = DefaultOutput
	defaults["log_level"] = DefaultLogLevel
	if err := k.Load(confmap.Provider(defaults, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Find and load config file
	configFileUsed = findConfigFile(cfgFile)
	if configFileUsed != "" {
		if err := k.Load(file.Provider(configFileUsed), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("error reading config file %s: %w", configFileUsed, err)
		}
	}

	// 3. Load environment variables (OUTBREAK_ prefix)
	// Transform: OUTBREAK_LOCKDOWN__DAY -> lockdown.day
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Load flags (highest priority - overrides env vars and config file)
	if flags != nil {
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, interface{}) {
			// Only load flags that were explicitly set
			if !f.Changed {
				return "", nil
			}
			if f.Name == "no-vaccination" {
				if off, _ := flags.GetBool(f.Name); off {
					return "vaccination.enabled", false
				}
				return "", nil
			}
			key, ok := flagKeys[f.Name]
			if !ok {
				return "", nil
			}
			if pathFlags[f.Name] && f.Value.String() != "" {
				if abs, err := filepath.Abs(f.Value.String()); err == nil {
					return key, abs
				}
			}
			return key, posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	// 5. Unmarshal into Config struct
	var cfg Config
	if err := intconfig.Unmarshal(k, "", &cfg); err != nil {
		return nil, err
	}

	// 6. Anchor relative paths at the scenario file, or the working directory
	// when there is none.
	cfg.Dir, _ = os.Getwd()
	if configFileUsed != "" {
		if abs, err := filepath.Abs(configFileUsed); err == nil {
			cfg.Dir = filepath.Dir(abs)
		}
	}

	if err := cfg.Validate(); err != nil {
		if configFileUsed != "" {
			return nil, fmt.Errorf("invalid configuration (%s): %w", configFileUsed, err)
		}
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	// Store config for access by commands
	currentConfig = &cfg

	return &cfg, nil
}

// envKey turns OUTBREAK_SOLVER__MAX_STEPS into solver.max_steps.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// GetConfigFileUsed returns the path to the config file being used, if any.
func GetConfigFileUsed() string {
	return configFileUsed
}

// GetCurrentConfig returns the currently loaded configuration.
// This is available after LoadConfig is called.
func GetCurrentConfig() *Config {
	return currentConfig
}

// LoggerKey returns the context key used for storing the logger.
// This allows the commands package to retrieve the logger from context
// without creating an import cycle with the cli package.
func LoggerKey() interface{} {
	return loggerKey{}
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if ctx != nil {
		if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
			return l
		}
	}
	// Return discard logger as safe fallback
	return slog.New(slog.DiscardHandler)
}
