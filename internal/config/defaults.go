package config

import (
	"github.com/SIR-SEE/final-project-team-15/pkg/epi"
	"github.com/SIR-SEE/final-project-team-15/pkg/ode"
)

// Default grid and file names.
const (
	DefaultGridEnd    = 365
	DefaultGridPoints = 700
	FileName          = "outbreak.yaml"
	FileNameAlt       = "outbreak.yml"
)

// DefaultScenario returns the reference scenario: seven million people,
// eight days of incubation and infection, lockdown on day 60 and a
// vaccination campaign opening on day 200, sampled 700 times over a year.
func DefaultScenario() Scenario {
	p := epi.DefaultParams()
	return Scenario{
		Name:           "reference",
		Population:     p.Population,
		IncubationDays: 1 / p.IncubationRate,
		InfectiousDays: 1 / p.RecoveryRate,
		DeathFraction:  p.DeathFraction,
		ImmunityDays:   1 / p.ImmunityLossRate,
		Lockdown: LockdownConfig{
			Day:      p.LockdownDay,
			R0Before: epi.DefaultR0Before,
			R0After:  epi.DefaultR0After,
		},
		Vaccination: VaccinationConfig{
			Enabled: true,
			Day:     p.VaccinationDay,
			Rate:    p.VaccinationRate,
			Inflow:  epi.InflowLiving.String(),
		},
		Grid: GridConfig{
			Start:  0,
			End:    DefaultGridEnd,
			Points: DefaultGridPoints,
		},
		Solver: SolverConfig{
			Method:   string(ode.MethodAuto),
			RelTol:   ode.DefaultRelTol,
			AbsTol:   ode.DefaultAbsTol,
			MaxSteps: ode.DefaultMaxSteps,
		},
	}
}

// DefaultsMap returns DefaultScenario as dotted koanf keys, the lowest layer
// of every load.
func DefaultsMap() map[string]any {
	d := DefaultScenario()
	return map[string]any{
		"name":                d.Name,
		"population":          d.Population,
		"incubation_days":     d.IncubationDays,
		"infectious_days":     d.InfectiousDays,
		"death_fraction":      d.DeathFraction,
		"immunity_days":       d.ImmunityDays,
		"lockdown.day":        d.Lockdown.Day,
		"lockdown.r0_before":  d.Lockdown.R0Before,
		"lockdown.r0_after":   d.Lockdown.R0After,
		"vaccination.enabled": d.Vaccination.Enabled,
		"vaccination.day":     d.Vaccination.Day,
		"vaccination.rate":    d.Vaccination.Rate,
		"vaccination.inflow":  d.Vaccination.Inflow,
		"grid.start":          d.Grid.Start,
		"grid.end":            d.Grid.End,
		"grid.points":         d.Grid.Points,
		"solver.method":       d.Solver.Method,
		"solver.rtol":         d.Solver.RelTol,
		"solver.atol":         d.Solver.AbsTol,
		"solver.max_steps":    d.Solver.MaxSteps,
	}
}
