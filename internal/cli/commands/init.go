package commands

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/SIR-SEE/final-project-team-15/internal/cli/output"
	intconfig "github.com/SIR-SEE/final-project-team-15/internal/config"
)

// ExamplePolicyFile is the script written by init --example, relative to
// the project directory.
const ExamplePolicyFile = "policies/lockdowns.star"

const examplePolicy = `# Two lockdowns with a gradual reopening in between.
#
# r0(t) returns the basic reproduction number on day t. The days where it
# jumps are listed in breakpoints so the solver restarts there.

breakpoints = [params.lockdown_day, 150, 240]

def r0(t):
    if t < params.lockdown_day:
        return params.r0_before
    if t < 150:
        return params.r0_after
    if t < 240:
        return ramp(t, 150, 200, params.r0_after, 6)
    return params.r0_after
`

const scenarioHeader = `# Outbreak scenario. Durations are in days.
# Every key can be overridden with OUTBREAK_<KEY> (nested keys joined by
# "__", e.g. OUTBREAK_LOCKDOWN__DAY=80) or the matching command-line flag.

`

// NewInitCommand creates the init command.
func NewInitCommand() *cobra.Command {
	var force bool
	var example bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a reference outbreak.yaml",
		Long: `Write outbreak.yaml holding the reference scenario: seven million people,
R0 of 12 dropping to 2 at the day-60 lockdown and vaccination from day 200.

Use --example to also write a Starlark policy with two lockdowns and point
the scenario at it.`,
		Example: `  # Initialize in current directory
  outbreak init

  # Initialize a new directory with an example policy script
  outbreak init my-scenario --example

  # Force overwrite existing scenario
  outbreak init --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}
			mode := output.ModeAuto
			if f := cmd.Flag("output"); f != nil {
				mode = output.Mode(f.Value.String())
			}
			r := output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode)
			return runInit(r, dir, force, example)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite existing files")
	cmd.Flags().BoolVar(&example, "example", false, "Also write an example Starlark policy")

	return cmd
}

func runInit(r *output.Renderer, dir string, force, example bool) error {
	if dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", dir, err)
		}
	}

	configPath := filepath.Join(dir, intconfig.FileName)
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists. Use --force to overwrite", configPath)
	}

	scenario := intconfig.DefaultScenario()
	var created []string
	if example {
		policyPath := filepath.Join(dir, ExamplePolicyFile)
		if _, err := os.Stat(policyPath); err == nil && !force {
			return fmt.Errorf("%s already exists. Use --force to overwrite", policyPath)
		}
		if err := os.MkdirAll(filepath.Dir(policyPath), 0o750); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
		if err := os.WriteFile(policyPath, []byte(examplePolicy), 0o600); err != nil {
			return fmt.Errorf("failed to write %s: %w", policyPath, err)
		}
		scenario.Name = "two lockdowns"
		scenario.Policy.Script = ExamplePolicyFile
		created = append(created, ExamplePolicyFile)
	}

	content, err := marshalScenario(scenario)
	if err != nil {
		return err
	}
	if err := os.WriteFile(configPath, content, 0o600); err != nil {
		return fmt.Errorf("failed to write %s: %w", configPath, err)
	}
	created = append([]string{intconfig.FileName}, created...)

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(map[string]any{"directory": dir, "files": created})
	}
	for _, f := range created {
		r.Success(f)
	}
	r.Println("")
	r.Println("Next steps:")
	r.Println("  outbreak params      Show the derived rates and policy")
	r.Println("  outbreak simulate    Run the scenario and print a summary")
	r.Println("  outbreak plot        Draw the compartments to Plot.png")
	r.Println("  outbreak query       Explore the trajectory with SQL")
	return nil
}

func marshalScenario(s intconfig.Scenario) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(scenarioHeader)
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(s); err != nil {
		return nil, fmt.Errorf("failed to encode scenario: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode scenario: %w", err)
	}
	return buf.Bytes(), nil
}
