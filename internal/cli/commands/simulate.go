package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/SIR-SEE/final-project-team-15/internal/cli/output"
	"github.com/SIR-SEE/final-project-team-15/internal/engine"
	"github.com/SIR-SEE/final-project-team-15/internal/report"
	"github.com/SIR-SEE/final-project-team-15/pkg/epi"
)

// SimulateOptions holds options for the simulate command.
type SimulateOptions struct {
	// Trajectory selects a trajectory export (csv or json) written to
	// stdout in place of the summary.
	Trajectory string
}

// NewSimulateCommand creates the simulate command.
func NewSimulateCommand() *cobra.Command {
	opts := &SimulateOptions{}

	cmd := &cobra.Command{
		Use:   "simulate",
		Short: "Run the outbreak scenario and summarize it",
		Long: `Integrate the SEIRDV model for the configured scenario and print a summary:
the infection peak, deaths, vaccinations, the final population and the work
the solver did.

The scenario comes from outbreak.yaml (searched upward from the working
directory), OUTBREAK_* environment variables and the model flags, in
increasing order of precedence.`,
		Example: `  # Run the reference scenario
  outbreak simulate

  # Lock down ten days later and save the plot
  outbreak simulate --lockdown-day 70 --plot Plot.png

  # Export every grid point as CSV
  outbreak simulate --trajectory csv > trajectory.csv`,
		Aliases: []string{"run"},
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runSimulate(cmd, opts)
		},
	}

	cmd.Flags().StringVar(&opts.Trajectory, "trajectory", "", "Write the trajectory to stdout instead of the summary (csv|json)")
	addOutputFileFlags(cmd, "Save a plot of the trajectory to this file (.png, .svg, .pdf)")

	_ = cmd.RegisterFlagCompletionFunc("trajectory", func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
		return []string{report.FormatCSV, report.FormatJSON}, cobra.ShellCompDirectiveNoFileComp
	})

	return cmd
}

func runSimulate(cmd *cobra.Command, opts *SimulateOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer

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
	if path := cmdCtx.Cfg.PlotFile; path != "" {
		title := cmdCtx.Cfg.Name
		if err := report.SavePlot(run.Trajectory, path, report.PlotOptions{Title: title}); err != nil {
			return err
		}
		if opts.Trajectory == "" {
			r.Success(fmt.Sprintf("Plot written to %s", path))
		}
	}

	if opts.Trajectory != "" {
		if err := report.WriteTrajectory(r.Writer(), run.Trajectory, opts.Trajectory); err != nil {
			return err
		}
	} else if err := renderSummary(r, run.Summary); err != nil {
		return err
	}

	if !run.Summary.Conserved() && runErr == nil {
		msg := fmt.Sprintf("population drifted by up to %s of N (final %s)",
			output.Percent(run.Summary.MaxDrift), output.People(run.Summary.FinalPopulation))
		if f, _ := epi.ParseInflow(cmdCtx.Cfg.Vaccination.Inflow); f == epi.InflowLiving && cmdCtx.Cfg.Vaccination.Enabled {
			msg += "; vaccination.inflow: balanced conserves N"
		}
		r.Warning(msg)
	}
	return runErr
}

// renderSummary prints a run summary in the renderer's mode.
func renderSummary(r *output.Renderer, s engine.Summary) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(s)
	}

	title := "Simulation"
	if s.Scenario != "" {
		title += ": " + s.Scenario
	}
	r.Header(title)

	pairs := []output.KeyValue{
		{Key: "Run", Value: s.RunID},
		{Key: "Samples", Value: fmt.Sprintf("%s (to %s)", output.Count(s.Samples), output.Day(s.EndDay))},
		{Key: "Peak infected", Value: fmt.Sprintf("%s on %s", output.People(s.PeakInfected), output.Day(s.PeakDay))},
		{Key: "Deaths", Value: output.People(s.TotalDeaths)},
		{Key: "Vaccinated", Value: output.People(s.TotalVaccinated)},
		{Key: "Final population", Value: output.People(s.FinalPopulation)},
		{Key: "Max drift", Value: fmt.Sprintf("%.3g", s.MaxDrift)},
		{Key: "Solver", Value: fmt.Sprintf("%s steps, %s rejected, %s evaluations, %d switches",
			output.Count(s.Stats.Steps), output.Count(s.Stats.Rejected), output.Count(s.Stats.Evaluations), s.Stats.Switches)},
		{Key: "Duration", Value: fmt.Sprintf("%d ms", s.DurationMS)},
	}
	if s.Partial {
		pairs = append(pairs, output.KeyValue{Key: "Stopped", Value: s.Error})
	}
	r.KeyValues(pairs)

	rows := make([][]string, 0, epi.NumCompartments)
	for _, c := range epi.Compartments() {
		rows = append(rows, []string{output.Title(c.String()), output.People(s.Final[c.String()])})
	}
	r.Table([]string{"Compartment", "Final"}, rows)
	return nil
}
