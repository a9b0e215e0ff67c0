package cli

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SIR-SEE/final-project-team-15/internal/cli/commands"
	"github.com/SIR-SEE/final-project-team-15/internal/cli/config"
	"github.com/SIR-SEE/final-project-team-15/internal/cli/testutil"
	"github.com/SIR-SEE/final-project-team-15/internal/engine"
)

func runRoot(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	cmd := NewRootCmd()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestRootCmd_Subcommands(t *testing.T) {
	root := NewRootCmd()
	for _, name := range []string{"simulate", "sweep", "plot", "params", "watch", "query", "init", "version", "completion"} {
		cmd, _, err := root.Find([]string{name})
		require.NoError(t, err, name)
		assert.Equal(t, name, cmd.Name())
	}
	for _, flag := range []string{"config", "verbose", "output", "log-level", "lockdown-day", "policy", "no-vaccination", "method"} {
		assert.NotNil(t, root.PersistentFlags().Lookup(flag), "flag %q should exist", flag)
	}
}

func TestRootCmd_SkipsConfigForUtilityCommands(t *testing.T) {
	dir := t.TempDir()
	t.Chdir(dir)
	t.Setenv("OUTBREAK_POPULATION", "-5")

	out, _, err := runRoot(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, "outbreak v"+Version)

	out, _, err = runRoot(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, out, "outbreak")
}

func TestRootCmd_SimulateWithFlags(t *testing.T) {
	t.Chdir(testutil.SetupTestProject(t))

	out, _, err := runRoot(t, "simulate", "-o", "json", "--name", "late", "--lockdown-day", "80", "--no-vaccination")
	require.NoError(t, err)

	var s engine.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "late", s.Scenario)
	assert.Zero(t, s.TotalVaccinated)
	assert.True(t, s.Conserved(), "max drift %g", s.MaxDrift)

	cfg := config.GetCurrentConfig()
	require.NotNil(t, cfg)
	assert.Equal(t, 80.0, cfg.Lockdown.Day)
	assert.False(t, cfg.Vaccination.Enabled)
}

func TestRootCmd_ExplicitConfigFile(t *testing.T) {
	dir := testutil.SetupTestProject(t)
	t.Chdir(t.TempDir())

	out, _, err := runRoot(t, "params", "--config", dir+"/outbreak.yaml", "--policy", dir+"/policies/reopen.star", "-o", "json")
	require.NoError(t, err)

	var p commands.ParamsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "test scenario", p.Scenario)
	assert.Equal(t, []float64{60, 100}, p.Breakpoints)
}

func TestRootCmd_VerboseLogsToStderr(t *testing.T) {
	t.Chdir(testutil.SetupTestProject(t))

	out, errOut, err := runRoot(t, "simulate", "-v", "-o", "json", "--inflow", "balanced")
	require.NoError(t, err)
	assert.Contains(t, errOut, "level=DEBUG")
	assert.Contains(t, errOut, "run completed")
	assert.NotContains(t, out, "level=")
}

func TestRootCmd_Errors(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"invalid scenario", []string{"simulate", "--population", "-1"}, "population"},
		{"bad method", []string{"simulate", "--method", "euler"}, "solver.method"},
		{"bad output", []string{"params", "-o", "yaml"}, "output must be one of"},
		{"bad log level", []string{"params", "--log-level", "loud"}, "log_level must be one of"},
		{"missing policy", []string{"simulate", "--policy", "missing.star"}, "missing.star"},
		{"missing config", []string{"params", "--config", "nope.yaml"}, "nope.yaml"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Chdir(testutil.SetupTestProject(t))
			_, _, err := runRoot(t, tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}
