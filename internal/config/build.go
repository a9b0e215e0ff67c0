package config

import (
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"reflect"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/SIR-SEE/final-project-team-15/internal/starlark"
	"github.com/SIR-SEE/final-project-team-15/pkg/epi"
	"github.com/SIR-SEE/final-project-team-15/pkg/ode"
)

var (
	validateOnce sync.Once
	validate     *validator.Validate
)

func scenarioValidator() *validator.Validate {
	validateOnce.Do(func() {
		v := validator.New(validator.WithRequiredStructEnabled())
		v.RegisterTagNameFunc(func(fld reflect.StructField) string {
			name := fld.Tag.Get("koanf")
			if name == "" || name == "-" {
				return fld.Name
			}
			return name
		})
		validate = v
	})
	return validate
}

// Validate checks the scenario's own fields. Model-level checks (initial
// state, grid shape) run again when the model is integrated.
func (s *Scenario) Validate() error {
	err := scenarioValidator().Struct(s)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return fmt.Errorf("validating scenario: %w", err)
	}
	errs := make([]error, 0, len(verrs))
	for _, fe := range verrs {
		errs = append(errs, &epi.ConfigError{Field: fieldPath(fe), Reason: describe(fe)})
	}
	return errors.Join(errs...)
}

// fieldPath turns "Scenario.lockdown.day" into "lockdown.day".
func fieldPath(fe validator.FieldError) string {
	_, path, found := strings.Cut(fe.Namespace(), ".")
	if !found {
		return fe.Field()
	}
	return path
}

func describe(fe validator.FieldError) string {
	switch fe.Tag() {
	case "gt":
		return fmt.Sprintf("must be greater than %s, got %v", fe.Param(), fe.Value())
	case "gte":
		return fmt.Sprintf("must be at least %s, got %v", fe.Param(), fe.Value())
	case "lt":
		return fmt.Sprintf("must be less than %s, got %v", fe.Param(), fe.Value())
	case "gtfield":
		return fmt.Sprintf("must be greater than grid.start, got %v", fe.Value())
	case "oneof":
		return fmt.Sprintf("must be one of [%s], got %q", fe.Param(), fe.Value())
	default:
		return fmt.Sprintf("failed %q check, got %v", fe.Tag(), fe.Value())
	}
}

// Params converts the scenario to model constants.
func (s *Scenario) Params() epi.Params {
	return epi.Params{
		Population:       s.Population,
		IncubationRate:   1 / s.IncubationDays,
		RecoveryRate:     1 / s.InfectiousDays,
		DeathFraction:    s.DeathFraction,
		ImmunityLossRate: 1 / s.ImmunityDays,
		VaccinationRate:  s.Vaccination.Rate,
		LockdownDay:      s.Lockdown.Day,
		VaccinationDay:   s.Vaccination.Day,
	}
}

// Times returns the output grid.
func (s *Scenario) Times() []float64 {
	return ode.Linspace(s.Grid.Start, s.Grid.End, s.Grid.Points)
}

// InitialState returns the configured initial state, or one exposed person
// in an otherwise susceptible population.
func (s *Scenario) InitialState() epi.State {
	if s.Initial == nil {
		return epi.InitialState(s.Population)
	}
	in := s.Initial
	return epi.State{in.Susceptible, in.Exposed, in.Infected, in.Recovered, in.Dead, in.Vaccinated}
}

// SolverConfig returns the integrator settings.
func (s *Scenario) SolverConfig(logger *slog.Logger) (ode.Config, error) {
	method, err := ode.ParseMethod(s.Solver.Method)
	if err != nil {
		return ode.Config{}, &epi.ConfigError{Field: "solver.method", Reason: fmt.Sprintf("unknown method %q", s.Solver.Method)}
	}
	return ode.Config{
		Method:   method,
		RelTol:   s.Solver.RelTol,
		AbsTol:   s.Solver.AbsTol,
		MaxStep:  s.Solver.MaxStep,
		MaxSteps: s.Solver.MaxSteps,
		Logger:   logger,
	}, nil
}

// ScriptPath resolves the policy script against Dir.
func (s *Scenario) ScriptPath() string {
	if s.Policy.Script == "" || filepath.IsAbs(s.Policy.Script) || s.Dir == "" {
		return s.Policy.Script
	}
	return filepath.Join(s.Dir, s.Policy.Script)
}

// BuildPolicy returns the R0 policy: the script if one is set, else the
// schedule if it has steps, else the lockdown.
func (s *Scenario) BuildPolicy(logger *slog.Logger) (epi.Policy, error) {
	switch {
	case s.Policy.Script != "":
		p, err := starlark.LoadPolicy(s.ScriptPath(), starlark.ParamsInfo{
			Population:     s.Population,
			LockdownDay:    s.Lockdown.Day,
			R0Before:       s.Lockdown.R0Before,
			R0After:        s.Lockdown.R0After,
			VaccinationDay: s.Vaccination.Day,
			Extra:          s.Policy.Vars,
		}, logger)
		if err != nil {
			return nil, err
		}
		return p, nil

	case len(s.Policy.Schedule) > 0:
		steps := make([]epi.Step, len(s.Policy.Schedule))
		for i, st := range s.Policy.Schedule {
			steps[i] = epi.Step{Day: st.Day, R0: st.R0}
		}
		sched, err := epi.NewSchedule(s.Lockdown.R0Before, steps)
		if err != nil {
			return nil, err
		}
		return sched, nil

	default:
		return epi.Lockdown{Day: s.Lockdown.Day, Before: s.Lockdown.R0Before, After: s.Lockdown.R0After}, nil
	}
}

// BuildModel assembles the model the scenario describes.
func (s *Scenario) BuildModel(logger *slog.Logger) (*epi.Model, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	policy, err := s.BuildPolicy(logger)
	if err != nil {
		return nil, err
	}

	m := epi.NewModel(s.Params())
	m.Policy = policy
	if !s.Vaccination.Enabled {
		m.Campaign = nil
		return m, nil
	}
	inflow, err := epi.ParseInflow(s.Vaccination.Inflow)
	if err != nil {
		return nil, err
	}
	m.Campaign.Inflow = inflow
	return m, nil
}

// parameterSetters are the scalar knobs a sweep can vary.
var parameterSetters = map[string]func(*Scenario, float64){
	"population":       func(s *Scenario, v float64) { s.Population = v },
	"death_fraction":   func(s *Scenario, v float64) { s.DeathFraction = v },
	"lockdown_day":     func(s *Scenario, v float64) { s.Lockdown.Day = v },
	"r0_before":        func(s *Scenario, v float64) { s.Lockdown.R0Before = v },
	"r0_after":         func(s *Scenario, v float64) { s.Lockdown.R0After = v },
	"vaccination_day":  func(s *Scenario, v float64) { s.Vaccination.Day = v },
	"vaccination_rate": func(s *Scenario, v float64) { s.Vaccination.Rate = v },
}

// Parameters lists the names accepted by SetParameter.
func Parameters() []string {
	names := make([]string, 0, len(parameterSetters))
	for name := range parameterSetters {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// SetParameter sets one named scalar.
func (s *Scenario) SetParameter(name string, v float64) error {
	set, ok := parameterSetters[name]
	if !ok {
		return &epi.ConfigError{Field: "parameter", Reason: fmt.Sprintf("unknown parameter %q (want one of %s)", name, strings.Join(Parameters(), ", "))}
	}
	set(s, v)
	return nil
}

// Clone returns a deep copy, safe to modify independently.
func (s *Scenario) Clone() Scenario {
	c := *s
	if s.Initial != nil {
		in := *s.Initial
		c.Initial = &in
	}
	c.Policy.Schedule = append([]StepConfig(nil), s.Policy.Schedule...)
	if s.Policy.Vars != nil {
		c.Policy.Vars = make(map[string]any, len(s.Policy.Vars))
		for k, v := range s.Policy.Vars {
			c.Policy.Vars[k] = v
		}
	}
	return c
}
