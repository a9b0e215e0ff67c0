package commands

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SIR-SEE/final-project-team-15/internal/cli/output"
	"github.com/SIR-SEE/final-project-team-15/internal/engine"
	"github.com/SIR-SEE/final-project-team-15/internal/rundb"
)

// QueryOptions holds options for the query command.
type QueryOptions struct {
	File    string
	Vary    string
	Workers int
}

// NewQueryCommand creates the query command.
func NewQueryCommand() *cobra.Command {
	opts := &QueryOptions{}

	cmd := &cobra.Command{
		Use:   "query [sql]",
		Short: "Run the scenario and query the result with SQL",
		Long: `Run the configured scenario, load the result into an in-memory SQLite
database and run a SQL query against it. Without a query, list the tables
and their columns.

Tables:
  runs        one row per run: id, scenario, parameter, value, status,
              peak_infected, peak_day, total_deaths, total_vaccinated, ...
  trajectory  one row per run and grid point: run_id, step, day,
              susceptible, exposed, infected, recovered, dead, vaccinated, total

With --vary, the scenario is run once per value of one parameter and every
run is loaded, with the parameter and value recorded in runs.`,
		Example: `  # Infections around the lockdown
  outbreak query "SELECT day, infected FROM trajectory WHERE day BETWEEN 55 AND 65"

  # First day with more vaccinated than susceptible
  outbreak query "SELECT MIN(day) FROM trajectory WHERE vaccinated > susceptible"

  # Deaths by lockdown day
  outbreak query --vary lockdown_day=40:80:10 "SELECT value, total_deaths FROM runs ORDER BY value"`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			q, err := querySource(cmd.InOrStdin(), args, opts.File)
			if err != nil {
				return err
			}
			return runQuery(cmd, q, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", `Read the query from a file ("-" for stdin)`)
	cmd.Flags().StringVar(&opts.Vary, "vary", "", "Run once per value: parameter=v1,v2,... or parameter=start:end:step")
	cmd.Flags().IntVarP(&opts.Workers, "workers", "w", 0, "Concurrent runs with --vary (default: number of CPUs)")
	_ = cmd.MarkFlagFilename("file", "sql")

	return cmd
}

func runQuery(cmd *cobra.Command, q string, opts *QueryOptions) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	r := cmdCtx.Renderer
	ctx := cmd.Context()

	eng, err := cmdCtx.NewEngine()
	if err != nil {
		return err
	}

	// a failed run still loads what it produced; its error is returned last
	inputs, runErr := queryInputs(cmd, eng, opts)
	if inputs == nil {
		return runErr
	}

	db, err := rundb.Open(cmdCtx.Logger)
	if err != nil {
		return err
	}
	defer func() { _ = db.Close() }()

	if err := db.Load(ctx, inputs...); err != nil {
		return err
	}

	if q == "" {
		cols, err := db.Tables(ctx)
		if err != nil {
			return err
		}
		if err := renderTables(r, cols); err != nil {
			return err
		}
		return runErr
	}

	res, err := db.Query(ctx, q)
	if err != nil {
		return err
	}
	if err := renderResult(r, res); err != nil {
		return err
	}
	return runErr
}

// queryInputs runs the scenario, or one run per --vary value. A failed run
// still yields its partial trajectory along with the error.
func queryInputs(cmd *cobra.Command, eng *engine.Engine, opts *QueryOptions) ([]rundb.Input, error) {
	if opts.Vary == "" {
		run, err := eng.Run(cmd.Context())
		if run == nil {
			return nil, err
		}
		return []rundb.Input{{Run: run}}, err
	}

	param, values, err := parseVary(opts.Vary)
	if err != nil {
		return nil, err
	}
	results, err := eng.Sweep(cmd.Context(), param, values, engine.SweepOptions{
		Workers:          opts.Workers,
		KeepTrajectories: true,
	})
	if err != nil {
		return nil, err
	}

	inputs := make([]rundb.Input, 0, len(results))
	failed := 0
	for _, res := range results {
		if res.Error != "" {
			failed++
		}
		if res.Run != nil {
			inputs = append(inputs, rundb.Input{Run: res.Run, Parameter: param, Value: res.Value})
		}
	}
	if failed > 0 {
		err = fmt.Errorf("%d of %d runs failed", failed, len(results))
	}
	return inputs, err
}

// parseVary splits "parameter=values" into the parameter and its values.
func parseVary(spec string) (string, []float64, error) {
	param, list, ok := strings.Cut(spec, "=")
	param = strings.TrimSpace(param)
	if !ok || param == "" || strings.TrimSpace(list) == "" {
		return "", nil, fmt.Errorf("invalid --vary %q: want parameter=values", spec)
	}

	var values []float64
	var err error
	if strings.Contains(list, ":") {
		values, err = sweepValues(nil, list)
	} else {
		items := strings.Split(list, ",")
		for i := range items {
			items[i] = strings.TrimSpace(items[i])
		}
		values, err = sweepValues(items, "")
	}
	if err != nil {
		return "", nil, fmt.Errorf("invalid --vary %q: %w", spec, err)
	}
	return param, values, nil
}

// querySource returns the query from the argument or --file, or "" for none.
func querySource(stdin io.Reader, args []string, file string) (string, error) {
	if file == "" {
		if len(args) == 0 {
			return "", nil
		}
		return args[0], nil
	}
	if len(args) > 0 {
		return "", fmt.Errorf("give the query as an argument or with --file, not both")
	}

	var (
		b   []byte
		err error
	)
	if file == "-" {
		b, err = io.ReadAll(stdin)
	} else {
		b, err = os.ReadFile(file)
	}
	if err != nil {
		return "", fmt.Errorf("failed to read query: %w", err)
	}
	return strings.TrimSpace(string(b)), nil
}

func renderTables(r *output.Renderer, cols []rundb.Column) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(cols)
	}

	r.Header("Tables")
	rows := make([][]string, 0, len(cols))
	for _, c := range cols {
		rows = append(rows, []string{c.Table, c.Name, c.Type})
	}
	r.Table([]string{"Table", "Column", "Type"}, rows)
	return nil
}

func renderResult(r *output.Renderer, res *rundb.Result) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(res.Records())
	}
	if len(res.Rows) == 0 {
		r.Println(r.Muted("No rows."))
		return nil
	}

	rows := make([][]string, 0, len(res.Rows))
	for _, row := range res.Rows {
		cells := make([]string, len(row))
		for i, v := range row {
			cells[i] = formatCell(v)
		}
		rows = append(rows, cells)
	}
	r.Table(res.Columns, rows)
	return nil
}

func formatCell(v any) string {
	switch v := v.(type) {
	case nil:
		return "NULL"
	case float64:
		return strconv.FormatFloat(v, 'g', 10, 64)
	default:
		return fmt.Sprint(v)
	}
}
