package epi

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/SIR-SEE/final-project-team-15/pkg/ode"
)

// Trajectory is the sampled solution of one run: States[i] is the state at
// Times[i].
type Trajectory struct {
	Times  []float64
	States []State
	// Stats describes the solver work behind the trajectory.
	Stats ode.Statistics
}

// Len returns the number of samples.
func (tr *Trajectory) Len() int {
	return len(tr.Times)
}

// Final returns the last sampled state.
func (tr *Trajectory) Final() State {
	if len(tr.States) == 0 {
		return State{}
	}
	return tr.States[len(tr.States)-1]
}

// Column returns the series of one compartment.
func (tr *Trajectory) Column(c Compartment) []float64 {
	out := make([]float64, len(tr.States))
	for i, s := range tr.States {
		out[i] = s[c]
	}
	return out
}

// Peak returns the sample time and value at which compartment c is largest.
// Ties resolve to the earliest sample.
func (tr *Trajectory) Peak(c Compartment) (t, v float64) {
	v = math.Inf(-1)
	for i, s := range tr.States {
		if s[c] > v {
			t, v = tr.Times[i], s[c]
		}
	}
	return t, v
}

// MaxDrift returns the largest relative deviation of the compartment sum
// from population over all samples.
func (tr *Trajectory) MaxDrift(population float64) float64 {
	var worst float64
	for _, s := range tr.States {
		if d := math.Abs(s.Sum()-population) / population; d > worst {
			worst = d
		}
	}
	return worst
}

// IntegrationError reports a run that stopped before the end of the grid.
// Partial holds the samples reached.
type IntegrationError struct {
	Partial *Trajectory
	Err     error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("epi: run stopped after %d samples: %v", e.Partial.Len(), e.Err)
}

func (e *IntegrationError) Unwrap() error {
	return e.Err
}

// policyErrorer is implemented by policies that record evaluation failures
// instead of panicking inside the solver.
type policyErrorer interface {
	Err() error
}

// Integrate solves the model from y0 over grid and returns one state per
// grid point, the first being y0.
//
// Invalid inputs are reported as *ConfigError (matching ErrConfiguration)
// before any integration happens. A solver failure is reported as
// *IntegrationError, which also matches ode.ErrIntegration.
func Integrate(ctx context.Context, m *Model, y0 State, grid []float64, cfg ode.Config) (*Trajectory, error) {
	if err := validateRun(m, y0, grid, cfg); err != nil {
		return nil, err
	}

	sol, err := ode.Solve(ctx, ode.Problem{
		F:           m.Derivative,
		Y0:          y0.Slice(),
		Times:       grid,
		Breakpoints: m.Breakpoints(),
	}, cfg)
	if err != nil {
		var ierr *ode.IntegrationError
		if !errors.As(err, &ierr) {
			return nil, err
		}
		partial := &Trajectory{
			Times:  ierr.Times,
			States: toStates(ierr.States),
			Stats:  ierr.Stats,
		}
		if pe, ok := m.Policy.(policyErrorer); ok && pe.Err() != nil {
			err = fmt.Errorf("%w: %w", pe.Err(), err)
		}
		return nil, &IntegrationError{Partial: partial, Err: err}
	}

	return &Trajectory{
		Times:  sol.Times,
		States: toStates(sol.States),
		Stats:  sol.Stats,
	}, nil
}

func validateRun(m *Model, y0 State, grid []float64, cfg ode.Config) error {
	if m == nil {
		return configErrorf("model", "is required")
	}
	var errs []error
	if err := m.Validate(); err != nil {
		errs = append(errs, err)
	}
	if err := m.Params.ValidateInitial(y0); err != nil {
		errs = append(errs, err)
	}
	if err := ode.ValidateGrid(grid); err != nil {
		errs = append(errs, configErrorf("grid", "%s", trimPrefix(err)))
	}
	if err := cfg.Validate(); err != nil {
		errs = append(errs, configErrorf("solver", "%s", trimPrefix(err)))
	}
	return errors.Join(errs...)
}

// trimPrefix drops the sentinel text from an ode validation error.
func trimPrefix(err error) string {
	return strings.TrimPrefix(err.Error(), ode.ErrInvalidProblem.Error()+": ")
}

func toStates(rows [][]float64) []State {
	out := make([]State, len(rows))
	for i, r := range rows {
		out[i] = StateFromSlice(r)
	}
	return out
}
