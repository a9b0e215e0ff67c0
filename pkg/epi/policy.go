package epi

import (
	"errors"
	"math"
	"sort"
)

// Reproduction numbers of the reference lockdown policy.
const (
	DefaultR0Before = 12.0
	DefaultR0After  = 2.0
)

// Policy yields the basic reproduction number at simulation time t. It must
// be total over finite t: the solver probes arbitrary times between grid
// points.
type Policy interface {
	R0(t float64) float64
}

// Breakpointer is implemented by policies whose R0 jumps at known times. The
// integrator lands exactly on every breakpoint instead of stepping across it.
type Breakpointer interface {
	Breakpoints() []float64
}

// PolicyFunc adapts a plain function to Policy.
type PolicyFunc func(t float64) float64

// R0 calls f(t).
func (f PolicyFunc) R0(t float64) float64 { return f(t) }

// TransmissionRate returns beta(t) = R0(t) * gamma.
func TransmissionRate(p Policy, gamma, t float64) float64 {
	return p.R0(t) * gamma
}

// Lockdown switches R0 from Before to After at Day. There is no smoothing:
// R0(t) is Before for t < Day and After from Day on.
type Lockdown struct {
	Day    float64 `json:"day"`
	Before float64 `json:"r0_before"`
	After  float64 `json:"r0_after"`
}

// NewLockdown returns the reference lockdown (R0 12 -> 2) starting at day.
func NewLockdown(day float64) Lockdown {
	return Lockdown{Day: day, Before: DefaultR0Before, After: DefaultR0After}
}

// R0 implements Policy.
func (l Lockdown) R0(t float64) float64 {
	if t < l.Day {
		return l.Before
	}
	return l.After
}

// Breakpoints implements Breakpointer.
func (l Lockdown) Breakpoints() []float64 {
	return []float64{l.Day}
}

// Validate checks the lockdown's values.
func (l Lockdown) Validate() error {
	var errs []error
	if !isNonNegative(l.Day) {
		errs = append(errs, configErrorf("lockdown_day", "must be a non-negative number, got %v", l.Day))
	}
	if !isNonNegative(l.Before) {
		errs = append(errs, configErrorf("r0_before", "must be a non-negative number, got %v", l.Before))
	}
	if !isNonNegative(l.After) {
		errs = append(errs, configErrorf("r0_after", "must be a non-negative number, got %v", l.After))
	}
	return errors.Join(errs...)
}

// Step sets R0 from Day onwards.
type Step struct {
	Day float64 `json:"day"`
	R0  float64 `json:"r0"`
}

// Schedule is a piecewise-constant R0: Initial until the first step, then
// each step's value from its day on. It expresses repeated lockdowns and
// staged reopenings.
type Schedule struct {
	Initial float64
	Steps   []Step
}

// NewSchedule builds a schedule, sorting steps by day. Days must be distinct
// and all values non-negative.
func NewSchedule(initial float64, steps []Step) (Schedule, error) {
	if !isNonNegative(initial) {
		return Schedule{}, configErrorf("schedule.initial", "must be a non-negative number, got %v", initial)
	}
	sorted := make([]Step, len(steps))
	copy(sorted, steps)
	sort.SliceStable(sorted, func(i, j int) bool { return sorted[i].Day < sorted[j].Day })

	for i, s := range sorted {
		if !isNonNegative(s.Day) {
			return Schedule{}, configErrorf("schedule.day", "must be a non-negative number, got %v", s.Day)
		}
		if !isNonNegative(s.R0) {
			return Schedule{}, configErrorf("schedule.r0", "must be a non-negative number, got %v", s.R0)
		}
		if i > 0 && sorted[i-1].Day == s.Day {
			return Schedule{}, configErrorf("schedule.day", "duplicate step on day %v", s.Day)
		}
	}
	return Schedule{Initial: initial, Steps: sorted}, nil
}

// R0 implements Policy.
func (s Schedule) R0(t float64) float64 {
	r := s.Initial
	for _, step := range s.Steps {
		if t < step.Day {
			break
		}
		r = step.R0
	}
	return r
}

// Breakpoints implements Breakpointer.
func (s Schedule) Breakpoints() []float64 {
	out := make([]float64, len(s.Steps))
	for i, step := range s.Steps {
		out[i] = step.Day
	}
	return out
}

func isNonNegative(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0) && v >= 0
}
