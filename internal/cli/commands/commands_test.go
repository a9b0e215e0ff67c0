package commands

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SIR-SEE/final-project-team-15/internal/cli/config"
	"github.com/SIR-SEE/final-project-team-15/internal/cli/testutil"
	"github.com/SIR-SEE/final-project-team-15/internal/engine"
)

// loadProject writes the test project, moves into it and loads its
// configuration the way the root command does before running a command.
func loadProject(t *testing.T, env map[string]string) string {
	t.Helper()
	dir := testutil.SetupTestProject(t)
	t.Chdir(dir)
	for k, v := range env {
		t.Setenv(k, v)
	}
	config.ResetConfig()
	t.Cleanup(config.ResetConfig)

	_, err := config.LoadConfig("", nil)
	require.NoError(t, err)
	return dir
}

func execute(t *testing.T, cmd *cobra.Command, args ...string) (string, string, error) {
	t.Helper()
	out, errOut := new(bytes.Buffer), new(bytes.Buffer)
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

func TestCommandMetadata(t *testing.T) {
	tests := []struct {
		cmd   *cobra.Command
		use   string
		flags []string
	}{
		{NewSimulateCommand(), "simulate", []string{"trajectory", "plot", "metrics-file"}},
		{NewSweepCommand(), "sweep <parameter> [value...]", []string{"range", "workers", "metrics-file"}},
		{NewPlotCommand(), "plot [file]", []string{"metrics-file"}},
		{NewParamsCommand(), "params", nil},
		{NewWatchCommand(), "watch", []string{"plot", "metrics-file"}},
		{NewQueryCommand(), "query [sql]", []string{"file", "vary", "workers"}},
		{NewInitCommand(), "init [directory]", []string{"force", "example"}},
	}
	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short, "Short should not be empty")
			assert.NotEmpty(t, tt.cmd.Long, "Long should not be empty")
			for _, flag := range tt.flags {
				assert.NotNil(t, tt.cmd.Flags().Lookup(flag), "flag %q should exist", flag)
			}
		})
	}

	assert.Equal(t, []string{"run"}, NewSimulateCommand().Aliases)
}

func TestNewCommandContext_RequiresConfig(t *testing.T) {
	config.ResetConfig()
	_, err := NewCommandContext(NewSimulateCommand())
	assert.ErrorContains(t, err, "configuration not loaded")
}

func TestSimulate_JSON(t *testing.T) {
	loadProject(t, map[string]string{"OUTBREAK_OUTPUT": "json"})

	out, _, err := execute(t, NewSimulateCommand())
	require.NoError(t, err)

	var s engine.Summary
	require.NoError(t, json.Unmarshal([]byte(out), &s))
	assert.Equal(t, "test scenario", s.Scenario)
	assert.Equal(t, 121, s.Samples)
	assert.Equal(t, 120.0, s.EndDay)
	assert.Greater(t, s.PeakInfected, 0.0)
	assert.Greater(t, s.TotalVaccinated, 0.0)
	assert.NotEmpty(t, s.RunID)
}

func TestSimulate_Markdown(t *testing.T) {
	loadProject(t, nil)

	out, errOut, err := execute(t, NewSimulateCommand())
	require.NoError(t, err)

	assert.Contains(t, out, "## Simulation: test scenario")
	assert.Contains(t, out, "- **Peak infected:**")
	assert.Contains(t, out, "| Compartment | Final |")
	testutil.AssertValidMarkdown(t, out)
	testutil.AssertNoANSI(t, out)

	// the living inflow grows the population once the campaign opens
	assert.Contains(t, errOut, "population drifted")
	assert.Contains(t, errOut, "balanced conserves N")
}

func TestSimulate_BalancedInflowHasNoDriftWarning(t *testing.T) {
	loadProject(t, map[string]string{"OUTBREAK_VACCINATION__INFLOW": "balanced"})

	_, errOut, err := execute(t, NewSimulateCommand())
	require.NoError(t, err)
	assert.Empty(t, errOut)
}

func TestSimulate_TrajectoryCSV(t *testing.T) {
	loadProject(t, nil)

	out, _, err := execute(t, NewSimulateCommand(), "--trajectory", "csv")
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(out), "\n")
	require.Len(t, lines, 122)
	assert.Equal(t, "day,susceptible,exposed,infected,recovered,dead,vaccinated", lines[0])
	assert.True(t, strings.HasPrefix(lines[1], "0,"), "first row: %s", lines[1])
	assert.True(t, strings.HasPrefix(lines[121], "120,"), "last row: %s", lines[121])
}

func TestSimulate_UnknownTrajectoryFormat(t *testing.T) {
	loadProject(t, nil)

	_, _, err := execute(t, NewSimulateCommand(), "--trajectory", "xml")
	assert.Error(t, err)
}

func TestSimulate_WritesPlotAndMetrics(t *testing.T) {
	dir := t.TempDir()
	plotPath := filepath.Join(dir, "run.png")
	metricsPath := filepath.Join(dir, "run.prom")
	loadProject(t, map[string]string{
		"OUTBREAK_PLOT_FILE":    plotPath,
		"OUTBREAK_METRICS_FILE": metricsPath,
	})

	out, _, err := execute(t, NewSimulateCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "Plot written to "+plotPath)

	assert.FileExists(t, plotPath)
	metrics, err := os.ReadFile(metricsPath)
	require.NoError(t, err)
	assert.Contains(t, string(metrics), "outbreak_runs_total")
}

func TestSweep_JSON(t *testing.T) {
	loadProject(t, map[string]string{"OUTBREAK_OUTPUT": "json"})

	out, _, err := execute(t, NewSweepCommand(), "lockdown_day", "70", "--range", "40:50:10")
	require.NoError(t, err)

	var results []engine.SweepResult
	require.NoError(t, json.Unmarshal([]byte(out), &results))
	require.Len(t, results, 3)
	for i, want := range []float64{70, 40, 50} {
		assert.Equal(t, "lockdown_day", results[i].Parameter)
		assert.Equal(t, want, results[i].Value)
		assert.Empty(t, results[i].Error)
	}
	assert.Less(t, results[1].Summary.PeakInfected, results[0].Summary.PeakInfected)
}

func TestSweep_Errors(t *testing.T) {
	loadProject(t, nil)

	tests := []struct {
		name    string
		args    []string
		wantMsg string
	}{
		{"unknown parameter", []string{"incubation", "1"}, "incubation"},
		{"no values", []string{"lockdown_day"}, "no values to sweep"},
		{"bad value", []string{"lockdown_day", "soon"}, `invalid value "soon"`},
		{"failed point", []string{"vaccination_rate", "0.001", "--", "-1"}, "1 of 2 sweep points failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, _, err := execute(t, NewSweepCommand(), tt.args...)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantMsg)
		})
	}
}

func TestSweepValues(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		spec    string
		want    []float64
		wantErr string
	}{
		{name: "listed", args: []string{"1", "2.5"}, want: []float64{1, 2.5}},
		{name: "range", spec: "0:1:0.25", want: []float64{0, 0.25, 0.5, 0.75, 1}},
		{name: "range after listed", args: []string{"9"}, spec: "1:3:1", want: []float64{9, 1, 2, 3}},
		{name: "range not reaching end", spec: "0:10:4", want: []float64{0, 4, 8}},
		{name: "bad value", args: []string{"x"}, wantErr: "invalid value"},
		{name: "two parts", spec: "1:2", wantErr: "want start:end:step"},
		{name: "zero step", spec: "1:2:0", wantErr: "step > 0"},
		{name: "reversed", spec: "5:1:1", wantErr: "end >= start"},
		{name: "too many", spec: "0:1e6:1", wantErr: "limit is"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := sweepValues(tt.args, tt.spec)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.InDeltaSlice(t, tt.want, got, 1e-12)
		})
	}
}

func TestPlot_WritesFile(t *testing.T) {
	loadProject(t, nil)
	path := filepath.Join(t.TempDir(), "curves.png")

	out, _, err := execute(t, NewPlotCommand(), path)
	require.NoError(t, err)
	assert.Contains(t, out, "Plot written to "+path)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")))
}

func TestPlot_DefaultFile(t *testing.T) {
	dir := loadProject(t, nil)

	_, _, err := execute(t, NewPlotCommand())
	require.NoError(t, err)
	assert.FileExists(t, filepath.Join(dir, "Plot.png"))
}

func TestParams_Lockdown(t *testing.T) {
	loadProject(t, map[string]string{"OUTBREAK_OUTPUT": "json"})

	out, _, err := execute(t, NewParamsCommand())
	require.NoError(t, err)

	var p ParamsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Equal(t, "test scenario", p.Scenario)
	assert.Equal(t, "lockdown: R0 12 until day 60, then 2", p.Policy)
	assert.Equal(t, []float64{60}, p.Breakpoints)
	// the campaign window is a solver stop but not a policy breakpoint
	assert.Equal(t, []float64{60, 90, 290}, p.SolverStops)
	require.Len(t, p.Beta, 2)
	assert.InDelta(t, 1.5, p.Beta[0].Beta, 1e-12)
	assert.Equal(t, 60.0, p.Beta[1].Day)
	assert.InDelta(t, 0.25, p.Beta[1].Beta, 1e-12)
	require.NotNil(t, p.Vaccination)
	assert.Equal(t, 90.0, p.Vaccination.Start)
	assert.Equal(t, "living", p.Vaccination.Inflow)
	assert.True(t, strings.HasSuffix(p.ConfigFile, "outbreak.yaml"))
}

func TestParams_ScriptPolicy(t *testing.T) {
	loadProject(t, map[string]string{
		"OUTBREAK_OUTPUT":         "json",
		"OUTBREAK_POLICY__SCRIPT": "policies/reopen.star",
	})

	out, _, err := execute(t, NewParamsCommand())
	require.NoError(t, err)

	var p ParamsOutput
	require.NoError(t, json.Unmarshal([]byte(out), &p))
	assert.Contains(t, p.Policy, "reopen.star")
	assert.Equal(t, []float64{60, 100}, p.Breakpoints)
	assert.Equal(t, []float64{60, 90, 100, 290}, p.SolverStops)

	days := make([]float64, len(p.Beta))
	betas := make([]float64, len(p.Beta))
	for i, b := range p.Beta {
		days[i], betas[i] = b.Day, b.Beta
	}
	assert.Equal(t, []float64{0, 60, 100}, days)
	assert.InDeltaSlice(t, []float64{1.5, 0.25, 0.5}, betas, 1e-12)
}

func TestParams_Text(t *testing.T) {
	loadProject(t, map[string]string{"OUTBREAK_VACCINATION__ENABLED": "false"})

	out, _, err := execute(t, NewParamsCommand())
	require.NoError(t, err)
	assert.Contains(t, out, "## Parameters: test scenario")
	assert.Contains(t, out, "- **Vaccination:** disabled")
	assert.Contains(t, out, "- **Beta from day 60:** 0.25/day")
}

func TestNewInitCommand(t *testing.T) {
	tests := []struct {
		name      string
		setupDir  func(t *testing.T, dir string)
		args      []string
		wantErr   string
		wantFiles []string
	}{
		{
			name:      "init empty directory",
			wantFiles: []string{"outbreak.yaml"},
		},
		{
			name:      "init with example policy",
			args:      []string{"--example"},
			wantFiles: []string{"outbreak.yaml", ExamplePolicyFile},
		},
		{
			name:      "init into new directory",
			args:      []string{"nested/scenario"},
			wantFiles: []string{"nested/scenario/outbreak.yaml"},
		},
		{
			name: "existing scenario without force",
			setupDir: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "outbreak.yaml"), []byte("existing"), 0o600))
			},
			wantErr: "already exists",
		},
		{
			name: "existing scenario with force",
			setupDir: func(t *testing.T, dir string) {
				require.NoError(t, os.WriteFile(filepath.Join(dir, "outbreak.yaml"), []byte("existing"), 0o600))
			},
			args:      []string{"--force"},
			wantFiles: []string{"outbreak.yaml"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			t.Chdir(tmpDir)
			if tt.setupDir != nil {
				tt.setupDir(t, tmpDir)
			}

			out, _, err := execute(t, NewInitCommand(), tt.args...)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, out, "outbreak simulate")
			for _, f := range tt.wantFiles {
				assert.FileExists(t, filepath.Join(tmpDir, f))
			}
		})
	}
}

// init must write a scenario the loader accepts unchanged.
func TestInit_RoundTripsThroughLoader(t *testing.T) {
	for _, example := range []bool{false, true} {
		t.Run(map[bool]string{false: "reference", true: "example"}[example], func(t *testing.T) {
			dir := t.TempDir()
			t.Chdir(dir)
			args := []string{}
			if example {
				args = append(args, "--example")
			}
			_, _, err := execute(t, NewInitCommand(), args...)
			require.NoError(t, err)

			config.ResetConfig()
			t.Cleanup(config.ResetConfig)
			cfg, err := config.LoadConfig("", nil)
			require.NoError(t, err)
			assert.Equal(t, 7e6, cfg.Population)
			assert.Equal(t, 60.0, cfg.Lockdown.Day)
			if !example {
				assert.Equal(t, "reference", cfg.Name)
				return
			}
			assert.Equal(t, ExamplePolicyFile, cfg.Policy.Script)

			policy, err := cfg.BuildPolicy(nil)
			require.NoError(t, err)
			assert.Equal(t, 12.0, policy.R0(10))
			assert.Equal(t, 2.0, policy.R0(100))
			assert.InDelta(t, 4.0, policy.R0(175), 1e-12)
			assert.Equal(t, 2.0, policy.R0(300))
		})
	}
}

func TestNewVersionCommand(t *testing.T) {
	tests := []struct {
		name    string
		version string
		wantOut []string
	}{
		{name: "default version", version: "0.1.0", wantOut: []string{"outbreak v0.1.0", "SEIRDV"}},
		{name: "dev version", version: "dev", wantOut: []string{"outbreak vdev"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, _, err := execute(t, NewVersionCommand(tt.version))
			require.NoError(t, err)
			for _, want := range tt.wantOut {
				assert.Contains(t, out, want)
			}
		})
	}
}
