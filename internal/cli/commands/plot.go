package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SIR-SEE/final-project-team-15/internal/cli/output"
	"github.com/SIR-SEE/final-project-team-15/internal/report"
)

// NewPlotCommand creates the plot command.
func NewPlotCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "plot [file]",
		Short: "Run the scenario and plot all compartments",
		Long: `Run the configured scenario and draw the six compartments against time:
susceptible (blue), exposed (yellow), infected (red), recovered (green),
dead (black) and vaccinated (magenta).

The file defaults to plot_file from the configuration, then Plot.png. Its
extension selects the format: .png, .svg or .pdf.`,
		Example: `  outbreak plot
  outbreak plot late-lockdown.svg --lockdown-day 80`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := ""
			if len(args) == 1 {
				path = args[0]
			}
			return runPlot(cmd, path)
		},
	}
	cmd.Flags().String("metrics-file", "", "Write run metrics in Prometheus text format to this file")
	return cmd
}

func runPlot(cmd *cobra.Command, path string) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	if path == "" {
		path = cmdCtx.Cfg.PlotFile
	}
	if path == "" {
		path = report.DefaultPlotFile
	}

	eng, err := cmdCtx.NewEngine()
	if err != nil {
		return err
	}
	run, runErr := eng.Run(cmd.Context())
	if run == nil {
		return runErr
	}
	if err := cmdCtx.WriteMetrics(run.Summary); err != nil {
		return err
	}

	if err := report.SavePlot(run.Trajectory, path, report.PlotOptions{Title: cmdCtx.Cfg.Name}); err != nil {
		return err
	}
	if runErr != nil {
		cmdCtx.Renderer.Warning(fmt.Sprintf("plot shows the partial run up to %s", output.Day(run.Summary.EndDay)))
		return runErr
	}
	cmdCtx.Renderer.Success(fmt.Sprintf("Plot written to %s", path))
	return nil
}
