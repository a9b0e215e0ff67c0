package ode

import (
	"errors"
	"fmt"
)

// Sentinel errors.
var (
	// ErrIntegration is matched by every *IntegrationError.
	ErrIntegration = errors.New("ode: integration failed")

	// ErrInvalidProblem indicates a malformed problem or configuration.
	ErrInvalidProblem = errors.New("ode: invalid problem")

	// ErrStepTooSmall indicates the step size was reduced below the minimum
	// without meeting the error tolerance.
	ErrStepTooSmall = errors.New("ode: step size below minimum")

	// ErrMaxSteps indicates the step budget ran out before the end of the grid.
	ErrMaxSteps = errors.New("ode: step budget exhausted")

	// ErrNonFinite indicates the right-hand side returned NaN or Inf.
	ErrNonFinite = errors.New("ode: non-finite derivative")
)

// IntegrationError reports a run that could not reach the end of the grid.
// Times and States hold the grid points completed before the failure.
type IntegrationError struct {
	Time    float64
	Step    float64
	Times   []float64
	States  [][]float64
	Stats   Statistics
	Wrapped error
}

func (e *IntegrationError) Error() string {
	return fmt.Sprintf("ode: integration failed at t=%g (h=%g): %v", e.Time, e.Step, e.Wrapped)
}

func (e *IntegrationError) Unwrap() error {
	return e.Wrapped
}

// Is makes errors.Is(err, ErrIntegration) hold.
func (e *IntegrationError) Is(target error) bool {
	return target == ErrIntegration
}
