// Package cli provides the command-line interface for the outbreak simulator.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/SIR-SEE/final-project-team-15/internal/cli/commands"
	"github.com/SIR-SEE/final-project-team-15/internal/cli/config"
	"github.com/SIR-SEE/final-project-team-15/pkg/epi"
	"github.com/SIR-SEE/final-project-team-15/pkg/ode"
)

// Version information (set at build time).
var (
	Version   = "0.1.0"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

// skipConfig lists commands that run without a scenario.
var skipConfig = map[string]bool{
	"help":       true,
	"completion": true,
	"__complete": true,
	"version":    true,
	"init":       true,
}

// NewRootCmd creates and returns the root command.
func NewRootCmd() *cobra.Command {
	var cfgFile string

	rootCmd := &cobra.Command{
		Use:   "outbreak",
		Short: "SEIRDV outbreak simulator",
		Long: `outbreak integrates a six-compartment epidemic model (susceptible, exposed,
infected, recovered, dead, vaccinated) through a lockdown and a vaccination
campaign, then summarizes, plots or exports the result.

Scenarios are read from outbreak.yaml; run 'outbreak init' to write one.`,
		Version: Version,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if skipConfig[cmd.Name()] {
				return nil
			}

			cfg, err := config.LoadConfig(cfgFile, cmd.Flags())
			if err != nil {
				return err
			}

			level, err := config.ParseLogLevel(cfg.LogLevel)
			if err != nil {
				return err
			}
			if cfg.Verbose {
				level = slog.LevelDebug
			}
			logger := slog.New(slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level}))

			ctx := cmd.Context()
			if ctx == nil {
				ctx = context.Background()
			}
			cmd.SetContext(context.WithValue(ctx, config.LoggerKey(), logger))

			if file := config.GetConfigFileUsed(); file != "" {
				logger.Debug("using config file", "path", file)
			}
			return nil
		},
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.SetVersionTemplate(`{{.Name}} {{.Version}}
SEIRDV outbreak simulator
`)

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&cfgFile, "config", "", "scenario file (default: outbreak.yaml in this or a parent directory)")
	pf.BoolP("verbose", "v", false, "Verbose output (debug logging)")
	pf.StringP("output", "o", "", "Output format (auto|text|markdown|json)")
	pf.String("log-level", "", "Log level (debug|info|warn|error)")

	// Scenario overrides
	pf.String("name", "", "Scenario name")
	pf.Float64("population", 0, "Population size N")
	pf.Float64("lockdown-day", 0, "Day the lockdown starts")
	pf.Float64("r0-before", 0, "Basic reproduction number before the lockdown")
	pf.Float64("r0-after", 0, "Basic reproduction number from the lockdown on")
	pf.String("policy", "", "Starlark script defining r0(t), replacing the lockdown")
	pf.Float64("vaccination-day", 0, "Day the vaccination campaign opens")
	pf.Float64("vaccination-rate", 0, "Vaccinations per day")
	pf.String("inflow", "", "Vaccination inflow (living|balanced)")
	pf.Bool("no-vaccination", false, "Disable the vaccination campaign")
	pf.Float64("days", 0, "Last day of the output grid")
	pf.Int("points", 0, "Number of output grid points")
	pf.String("method", "", "Integration method (auto|dopri5|bdf)")
	pf.Float64("rtol", 0, "Relative tolerance")
	pf.Float64("atol", 0, "Absolute tolerance")
	pf.Int("max-steps", 0, "Maximum solver steps per run")
	pf.Float64("max-step", 0, "Maximum step size in days (0: unbounded)")

	completions := map[string][]string{
		"output":    config.OutputFormats,
		"log-level": config.LogLevels,
		"inflow":    {epi.InflowLiving.String(), epi.InflowBalanced.String()},
		"method":    {string(ode.MethodAuto), string(ode.MethodDOPRI5), string(ode.MethodBDF)},
	}
	for name, values := range completions {
		_ = rootCmd.RegisterFlagCompletionFunc(name, func(_ *cobra.Command, _ []string, _ string) ([]string, cobra.ShellCompDirective) {
			return values, cobra.ShellCompDirectiveNoFileComp
		})
	}
	_ = rootCmd.MarkPersistentFlagFilename("config", "yaml", "yml")
	_ = rootCmd.MarkPersistentFlagFilename("policy", "star")

	rootCmd.AddCommand(commands.NewSimulateCommand())
	rootCmd.AddCommand(commands.NewSweepCommand())
	rootCmd.AddCommand(commands.NewPlotCommand())
	rootCmd.AddCommand(commands.NewParamsCommand())
	rootCmd.AddCommand(commands.NewWatchCommand())
	rootCmd.AddCommand(commands.NewQueryCommand())
	rootCmd.AddCommand(commands.NewInitCommand())
	rootCmd.AddCommand(commands.NewVersionCommand(Version))
	rootCmd.AddCommand(NewCompletionCommand())

	return rootCmd
}

// Execute runs the root command.
func Execute() error {
	rootCmd := NewRootCmd()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return err
	}
	return nil
}

// NewCompletionCommand creates the completion command.
func NewCompletionCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "completion [bash|zsh|fish|powershell]",
		Short: "Generate shell completion scripts",
		Long: `Generate shell completion scripts for outbreak.

Bash:
  $ source <(outbreak completion bash)

Zsh:
  $ outbreak completion zsh > "${fpath[1]}/_outbreak"

Fish:
  $ outbreak completion fish > ~/.config/fish/completions/outbreak.fish

PowerShell:
  PS> outbreak completion powershell | Out-String | Invoke-Expression
`,
		DisableFlagsInUseLine: true,
		ValidArgs:             []string{"bash", "zsh", "fish", "powershell"},
		Args:                  cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch args[0] {
			case "bash":
				return cmd.Root().GenBashCompletion(out)
			case "zsh":
				return cmd.Root().GenZshCompletion(out)
			case "fish":
				return cmd.Root().GenFishCompletion(out, true)
			case "powershell":
				return cmd.Root().GenPowerShellCompletionWithDesc(out)
			}
			return nil
		},
	}
	return cmd
}
