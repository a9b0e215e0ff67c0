package commands

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SIR-SEE/final-project-team-15/internal/cli/output"
	intconfig "github.com/SIR-SEE/final-project-team-15/internal/config"
	"github.com/SIR-SEE/final-project-team-15/internal/engine"
)

// maxSweepPoints bounds --range expansions.
const maxSweepPoints = 10_000

// SweepOptions holds options for the sweep command.
type SweepOptions struct {
	Range   string
	Workers int
}

// NewSweepCommand creates the sweep command.
func NewSweepCommand() *cobra.Command {
	opts := &SweepOptions{}

	cmd := &cobra.Command{
		Use:   "sweep <parameter> [value...]",
		Short: "Run the scenario for several values of one parameter",
		Long: `Run the configured scenario once per value of a single parameter, in
parallel, and tabulate the peak, deaths and vaccinations of each run.

Parameters: ` + strings.Join(intconfig.Parameters(), ", ") + `.`,
		Example: `  # Compare lockdown days
  outbreak sweep lockdown_day 40 50 60 70 80

  # Campaign start from day 100 to 300 in steps of 25
  outbreak sweep vaccination_day --range 100:300:25 --workers 4`,
		Args: cobra.MinimumNArgs(1),
		ValidArgsFunction: func(_ *cobra.Command, args []string, _ string) ([]string, cobra.ShellCompDirective) {
			if len(args) == 0 {
				return intconfig.Parameters(), cobra.ShellCompDirectiveNoFileComp
			}
			return nil, cobra.ShellCompDirectiveNoFileComp
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSweep(cmd, args[0], args[1:], opts)
		},
	}

	cmd.Flags().StringVar(&opts.Range, "range", "", "Values as start:end:step, appended to any listed values")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "Concurrent runs (default: number of CPUs)")
	cmd.Flags().String("metrics-file", "", "Write run metrics in Prometheus text format to this file")

	return cmd
}

func runSweep(cmd *cobra.Command, param string, args []string, opts *SweepOptions) error {
	values, err := sweepValues(args, opts.Range)
	if err != nil {
		return err
	}
	if len(values) == 0 {
		return fmt.Errorf("no values to sweep: list them or use --range")
	}

	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	eng, err := cmdCtx.NewEngine()
	if err != nil {
		return err
	}

	results, err := eng.Sweep(cmd.Context(), param, values, engine.SweepOptions{Workers: opts.Workers})
	if err != nil {
		return err
	}

	summaries := make([]engine.Summary, 0, len(results))
	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
		if res.Summary.RunID != "" {
			summaries = append(summaries, res.Summary)
		}
	}
	if err := cmdCtx.WriteMetrics(summaries...); err != nil {
		return err
	}

	if err := renderSweep(cmdCtx.Renderer, param, results); err != nil {
		return err
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sweep points failed", failed, len(results))
	}
	return nil
}

// sweepValues parses listed values and an optional start:end:step range.
func sweepValues(args []string, spec string) ([]float64, error) {
	values := make([]float64, 0, len(args))
	for _, a := range args {
		v, err := strconv.ParseFloat(a, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value %q: %w", a, err)
		}
		values = append(values, v)
	}
	if spec == "" {
		return values, nil
	}

	parts := strings.Split(spec, ":")
	if len(parts) != 3 {
		return nil, fmt.Errorf("invalid --range %q: want start:end:step", spec)
	}
	var bounds [3]float64
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid --range %q: %w", spec, err)
		}
		bounds[i] = v
	}
	start, end, step := bounds[0], bounds[1], bounds[2]
	if step <= 0 || end < start {
		return nil, fmt.Errorf("invalid --range %q: need end >= start and step > 0", spec)
	}
	n := int(math.Floor((end-start)/step+1e-9)) + 1
	if n > maxSweepPoints {
		return nil, fmt.Errorf("invalid --range %q: %d points, limit is %d", spec, n, maxSweepPoints)
	}
	for i := 0; i < n; i++ {
		values = append(values, start+float64(i)*step)
	}
	return values, nil
}

func renderSweep(r *output.Renderer, param string, results []engine.SweepResult) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(results)
	}

	r.Header("Sweep: " + param)
	rows := make([][]string, 0, len(results))
	for _, res := range results {
		s := res.Summary
		status := "ok"
		if res.Error != "" {
			status = res.Error
		}
		if s.Samples == 0 {
			rows = append(rows, []string{strconv.FormatFloat(res.Value, 'g', -1, 64), "-", "-", "-", "-", status})
			continue
		}
		rows = append(rows, []string{
			strconv.FormatFloat(res.Value, 'g', -1, 64),
			output.People(s.PeakInfected),
			output.Day(s.PeakDay),
			output.People(s.TotalDeaths),
			output.People(s.TotalVaccinated),
			status,
		})
	}
	r.Table([]string{output.Title(param), "Peak infected", "Peak day", "Deaths", "Vaccinated", "Status"}, rows)
	return nil
}
