// Package config describes outbreak scenarios: the model constants, policy,
// vaccination campaign, output grid and solver settings of one run, as read
// from outbreak.yaml.
//
// Durations are given in days and converted to the per-day rates of
// epi.Params by Scenario.Params.
package config

// Scenario is one complete, self-describing run.
type Scenario struct {
	Name string `koanf:"name" yaml:"name,omitempty"`

	Population     float64 `koanf:"population" yaml:"population" validate:"gt=0"`
	IncubationDays float64 `koanf:"incubation_days" yaml:"incubation_days" validate:"gt=0"`
	InfectiousDays float64 `koanf:"infectious_days" yaml:"infectious_days" validate:"gt=0"`
	DeathFraction  float64 `koanf:"death_fraction" yaml:"death_fraction" validate:"gt=0,lt=1"`
	ImmunityDays   float64 `koanf:"immunity_days" yaml:"immunity_days" validate:"gt=0"`

	Lockdown    LockdownConfig    `koanf:"lockdown" yaml:"lockdown"`
	Policy      PolicyConfig      `koanf:"policy" yaml:"policy,omitempty"`
	Vaccination VaccinationConfig `koanf:"vaccination" yaml:"vaccination"`
	Initial     *InitialConfig    `koanf:"initial" yaml:"initial,omitempty"`
	Grid        GridConfig        `koanf:"grid" yaml:"grid"`
	Solver      SolverConfig      `koanf:"solver" yaml:"solver"`

	// Dir anchors relative paths (the policy script). The loader sets it to
	// the scenario file's directory.
	Dir string `koanf:"-" yaml:"-"`
}

// LockdownConfig is the single reference lockdown.
type LockdownConfig struct {
	Day      float64 `koanf:"day" yaml:"day" validate:"gte=0"`
	R0Before float64 `koanf:"r0_before" yaml:"r0_before" validate:"gte=0"`
	R0After  float64 `koanf:"r0_after" yaml:"r0_after" validate:"gte=0"`
}

// PolicyConfig replaces the lockdown with a schedule or a Starlark script.
// A script takes precedence over a schedule.
type PolicyConfig struct {
	// Script is a Starlark file defining r0(t).
	Script string `koanf:"script" yaml:"script,omitempty"`
	// Vars are exposed to the script as extra fields of params.
	Vars map[string]any `koanf:"vars" yaml:"vars,omitempty"`
	// Schedule switches R0 on the listed days, starting from
	// lockdown.r0_before.
	Schedule []StepConfig `koanf:"schedule" yaml:"schedule,omitempty" validate:"dive"`
}

// StepConfig sets R0 from Day on.
type StepConfig struct {
	Day float64 `koanf:"day" yaml:"day" validate:"gte=0"`
	R0  float64 `koanf:"r0" yaml:"r0" validate:"gte=0"`
}

// VaccinationConfig is the constant-rate campaign.
type VaccinationConfig struct {
	Enabled bool    `koanf:"enabled" yaml:"enabled"`
	Day     float64 `koanf:"day" yaml:"day" validate:"gte=0"`
	Rate    float64 `koanf:"rate" yaml:"rate" validate:"gt=0"`
	// Inflow is "living" or "balanced", see epi.Inflow.
	Inflow string `koanf:"inflow" yaml:"inflow,omitempty" validate:"omitempty,oneof=living balanced"`
}

// InitialConfig overrides the default initial state of one exposed person.
type InitialConfig struct {
	Susceptible float64 `koanf:"susceptible" yaml:"susceptible"`
	Exposed     float64 `koanf:"exposed" yaml:"exposed"`
	Infected    float64 `koanf:"infected" yaml:"infected"`
	Recovered   float64 `koanf:"recovered" yaml:"recovered"`
	Dead        float64 `koanf:"dead" yaml:"dead"`
	Vaccinated  float64 `koanf:"vaccinated" yaml:"vaccinated"`
}

// GridConfig is the evenly spaced output grid.
type GridConfig struct {
	Start  float64 `koanf:"start" yaml:"start" validate:"gte=0"`
	End    float64 `koanf:"end" yaml:"end" validate:"gtfield=Start"`
	Points int     `koanf:"points" yaml:"points" validate:"gte=2"`
}

// SolverConfig tunes the integrator.
type SolverConfig struct {
	Method   string  `koanf:"method" yaml:"method" validate:"omitempty,oneof=auto dopri5 bdf"`
	RelTol   float64 `koanf:"rtol" yaml:"rtol" validate:"gt=0"`
	AbsTol   float64 `koanf:"atol" yaml:"atol" validate:"gt=0"`
	MaxSteps int     `koanf:"max_steps" yaml:"max_steps" validate:"gte=0"`
	MaxStep  float64 `koanf:"max_step" yaml:"max_step,omitempty" validate:"gte=0"`
}
