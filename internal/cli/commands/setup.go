package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/SIR-SEE/final-project-team-15/internal/cli/config"
	"github.com/SIR-SEE/final-project-team-15/internal/cli/output"
	"github.com/SIR-SEE/final-project-team-15/internal/engine"
	"github.com/SIR-SEE/final-project-team-15/internal/metrics"
)

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext collects the loaded config, the logger and a renderer
// for cmd.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	cfg := config.GetCurrentConfig()
	if cfg == nil {
		return nil, fmt.Errorf("configuration not loaded")
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(cmd.Context()),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), output.Mode(cfg.OutputFormat)),
	}, nil
}

// NewEngine creates an engine for the configured scenario.
func (c *CommandContext) NewEngine() (*engine.Engine, error) {
	return engine.New(engine.Config{Scenario: c.Cfg.Scenario, Logger: c.Logger})
}

// WriteMetrics records summaries to the configured metrics file, if any.
func (c *CommandContext) WriteMetrics(summaries ...engine.Summary) error {
	if c.Cfg.MetricsFile == "" {
		return nil
	}
	rec := metrics.NewRecorder()
	for _, s := range summaries {
		rec.Observe(s)
	}
	if err := rec.WriteFile(c.Cfg.MetricsFile); err != nil {
		return err
	}
	c.Logger.Debug("metrics written", "path", c.Cfg.MetricsFile)
	return nil
}

// addOutputFileFlags registers the --plot and --metrics-file flags, which
// the config loader maps to plot_file and metrics_file.
func addOutputFileFlags(cmd *cobra.Command, plotHelp string) {
	cmd.Flags().String("plot", "", plotHelp)
	cmd.Flags().String("metrics-file", "", "Write run metrics in Prometheus text format to this file")
}
