package commands

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/SIR-SEE/final-project-team-15/internal/cli/config"
	"github.com/SIR-SEE/final-project-team-15/internal/cli/output"
	"github.com/SIR-SEE/final-project-team-15/pkg/epi"
)

// ParamsOutput is the JSON output for the params command.
type ParamsOutput struct {
	Scenario    string     `json:"scenario"`
	ConfigFile  string     `json:"config_file,omitempty"`
	Params      epi.Params `json:"params"`
	Policy      string     `json:"policy"`
	Breakpoints []float64  `json:"breakpoints"`
	// SolverStops are the policy breakpoints merged with the campaign
	// instants; the integrator never steps across one.
	SolverStops []float64 `json:"solver_stops"`
	// Beta is the transmission rate R0*gamma from the start of the grid and
	// from each breakpoint on.
	Beta        []BetaPoint `json:"beta"`
	Vaccination *Window     `json:"vaccination,omitempty"`
	GridStart   float64     `json:"grid_start"`
	GridEnd     float64     `json:"grid_end"`
	GridPoints  int         `json:"grid_points"`
	Method      string      `json:"method"`
	RelTol      float64     `json:"rtol"`
	AbsTol      float64     `json:"atol"`
}

// BetaPoint is the transmission rate in force from Day on.
type BetaPoint struct {
	Day  float64 `json:"day"`
	Beta float64 `json:"beta"`
}

// Window is the open interval in which the campaign vaccinates.
type Window struct {
	Start  float64 `json:"start"`
	End    float64 `json:"end"`
	Inflow string  `json:"inflow"`
}

// NewParamsCommand creates the params command.
func NewParamsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "params",
		Short: "Show the resolved scenario parameters",
		Long: `Show the parameters a run would use after merging defaults, outbreak.yaml,
environment variables and flags, along with derived quantities: transmission
rates, the R0 policy and its breakpoints, and the vaccination window.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runParams(cmd)
		},
	}
}

func runParams(cmd *cobra.Command) error {
	cmdCtx, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	s := &cmdCtx.Cfg.Scenario

	m, err := s.BuildModel(cmdCtx.Logger)
	if err != nil {
		return err
	}

	out := ParamsOutput{
		Scenario:    s.Name,
		ConfigFile:  config.GetConfigFileUsed(),
		Params:      m.Params,
		Policy:      describePolicy(m.Policy, s.ScriptPath()),
		Breakpoints: policyBreakpoints(m.Policy),
		SolverStops: m.Breakpoints(),
		GridStart:   s.Grid.Start,
		GridEnd:     s.Grid.End,
		GridPoints:  s.Grid.Points,
		Method:      s.Solver.Method,
		RelTol:      s.Solver.RelTol,
		AbsTol:      s.Solver.AbsTol,
	}
	for _, day := range append([]float64{s.Grid.Start}, policyBreakpoints(m.Policy)...) {
		if day < s.Grid.Start || day > s.Grid.End || (len(out.Beta) > 0 && out.Beta[len(out.Beta)-1].Day == day) {
			continue
		}
		out.Beta = append(out.Beta, BetaPoint{Day: day, Beta: epi.TransmissionRate(m.Policy, m.Params.RecoveryRate, day)})
	}
	if m.Campaign != nil {
		out.Vaccination = &Window{Start: m.Campaign.Start, End: m.Campaign.End(), Inflow: m.Campaign.Inflow.String()}
	}

	r := cmdCtx.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(out)
	}

	p := out.Params
	r.Header("Parameters: " + out.Scenario)
	pairs := []output.KeyValue{
		{Key: "Population", Value: output.People(p.Population)},
		{Key: "Incubation", Value: fmt.Sprintf("%s days (delta %.4g/day)", num(1/p.IncubationRate), p.IncubationRate)},
		{Key: "Infectious", Value: fmt.Sprintf("%s days (gamma %.4g/day)", num(1/p.RecoveryRate), p.RecoveryRate)},
		{Key: "Death fraction", Value: fmt.Sprintf("%.4g/day", p.DeathFraction)},
		{Key: "Immunity", Value: fmt.Sprintf("%s days (mu %.4g/day)", num(1/p.ImmunityLossRate), p.ImmunityLossRate)},
		{Key: "Policy", Value: out.Policy},
		{Key: "Breakpoints", Value: joinNums(out.Breakpoints)},
		{Key: "Solver stops", Value: joinNums(out.SolverStops)},
	}
	for _, b := range out.Beta {
		pairs = append(pairs, output.KeyValue{Key: "Beta from day " + num(b.Day), Value: fmt.Sprintf("%.4g/day", b.Beta)})
	}
	if out.Vaccination != nil {
		pairs = append(pairs, output.KeyValue{Key: "Vaccination", Value: fmt.Sprintf("%.4g of N per day, open on (%s, %s), %s inflow",
			p.VaccinationRate, num(out.Vaccination.Start), num(out.Vaccination.End), out.Vaccination.Inflow)})
	} else {
		pairs = append(pairs, output.KeyValue{Key: "Vaccination", Value: "disabled"})
	}
	pairs = append(pairs,
		output.KeyValue{Key: "Grid", Value: fmt.Sprintf("%s points on [%s, %s]", output.Count(out.GridPoints), num(out.GridStart), num(out.GridEnd))},
		output.KeyValue{Key: "Solver", Value: fmt.Sprintf("%s, rtol %g, atol %g", out.Method, out.RelTol, out.AbsTol)},
	)
	if out.ConfigFile != "" {
		pairs = append(pairs, output.KeyValue{Key: "Config file", Value: out.ConfigFile})
	}
	r.KeyValues(pairs)
	return nil
}

func describePolicy(p epi.Policy, script string) string {
	switch p := p.(type) {
	case epi.Lockdown:
		return fmt.Sprintf("lockdown: R0 %s until day %s, then %s", num(p.Before), num(p.Day), num(p.After))
	case epi.Schedule:
		parts := []string{"R0 " + num(p.Initial)}
		for _, st := range p.Steps {
			parts = append(parts, fmt.Sprintf("%s from day %s", num(st.R0), num(st.Day)))
		}
		return "schedule: " + strings.Join(parts, ", ")
	default:
		return "script: " + script
	}
}

func policyBreakpoints(p epi.Policy) []float64 {
	if b, ok := p.(epi.Breakpointer); ok {
		return b.Breakpoints()
	}
	return nil
}

func num(v float64) string {
	return strconv.FormatFloat(v, 'g', 6, 64)
}

func joinNums(vs []float64) string {
	if len(vs) == 0 {
		return "none"
	}
	parts := make([]string, len(vs))
	for i, v := range vs {
		parts[i] = num(v)
	}
	return strings.Join(parts, ", ")
}
