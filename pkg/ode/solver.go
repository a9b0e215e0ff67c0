package ode

import (
	"context"
	"fmt"
	"math"
	"slices"
)

const (
	// stops closer than this many ulps are treated as one
	stopMergeUlps = 4
	// a step that would end this close (relative) to a stop lands on it instead
	landingSlack = 0.01
	// accepted steps between context checks inside one segment
	ctxCheckInterval = 256
)

// stop is a time the integrator must land on exactly.
type stop struct {
	t          float64
	grid       int // index into the output grid, or -1
	breakpoint bool
}

// stepper identifies the active stepping strategy.
type stepper int

const (
	explicitStepper stepper = iota
	implicitStepper
)

func (s stepper) String() string {
	if s == implicitStepper {
		return "bdf"
	}
	return "dopri5"
}

// Solve integrates p and samples the solution at every entry of p.Times.
//
// On failure the returned error is an *IntegrationError carrying the grid
// points reached so far; invalid input yields an error wrapping
// ErrInvalidProblem instead.
func Solve(ctx context.Context, p Problem, cfg Config) (*Solution, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	s := newSolver(p, cfg)
	return s.run(ctx)
}

func (p Problem) validate() error {
	if p.F == nil {
		return fmt.Errorf("%w: nil right-hand side", ErrInvalidProblem)
	}
	if len(p.Y0) == 0 {
		return fmt.Errorf("%w: empty initial state", ErrInvalidProblem)
	}
	if !isFinite(p.Y0) {
		return fmt.Errorf("%w: initial state is not finite", ErrInvalidProblem)
	}
	if err := ValidateGrid(p.Times); err != nil {
		return err
	}
	for _, b := range p.Breakpoints {
		if math.IsNaN(b) || math.IsInf(b, 0) {
			return fmt.Errorf("%w: breakpoint %g is not finite", ErrInvalidProblem, b)
		}
	}
	return nil
}

type solver struct {
	cfg   Config
	prob  Problem
	n     int
	tol   tolerance
	stats Statistics
	rhs   *rhs

	dp   *dopri
	bd   *bdf
	mode stepper

	t    float64
	h    float64
	y    []float64
	ynew []float64

	sol      *Solution
	recorded int
}

func newSolver(p Problem, cfg Config) *solver {
	n := len(p.Y0)
	s := &solver{
		cfg:  cfg,
		prob: p,
		n:    n,
		tol:  tolerance{rtol: cfg.RelTol, atol: cfg.AbsTol},
		t:    p.Times[0],
		y:    slices.Clone(p.Y0),
		ynew: make([]float64, n),
	}
	s.rhs = &rhs{f: p.F, win: window{lo: math.Inf(-1), hi: math.Inf(1)}, stats: &s.stats}
	s.dp = newDopri(s.rhs, n)
	s.bd = newBDF(s.rhs, n)
	if cfg.Method == MethodBDF {
		s.mode = implicitStepper
	}

	s.sol = &Solution{
		Times:  slices.Clone(p.Times),
		States: make([][]float64, len(p.Times)),
	}
	s.sol.States[0] = slices.Clone(p.Y0)
	s.recorded = 1
	return s
}

// stops merges the grid and the breakpoints inside (t0, tEnd] into one
// increasing list.
func (s *solver) stops() []stop {
	times := s.prob.Times
	t0, tEnd := times[0], times[len(times)-1]

	out := make([]stop, 0, len(times)+len(s.prob.Breakpoints))
	for i := 1; i < len(times); i++ {
		out = append(out, stop{t: times[i], grid: i})
	}
	for _, b := range s.prob.Breakpoints {
		if b > t0 && b < tEnd {
			out = append(out, stop{t: b, grid: -1, breakpoint: true})
		}
	}
	slices.SortStableFunc(out, func(a, b stop) int {
		switch {
		case a.t < b.t:
			return -1
		case a.t > b.t:
			return 1
		}
		return 0
	})

	merged := out[:0]
	for _, st := range out {
		if k := len(merged); k > 0 && nearlyEqual(merged[k-1].t, st.t) {
			last := &merged[k-1]
			last.breakpoint = last.breakpoint || st.breakpoint
			if last.grid < 0 {
				last.grid = st.grid
				last.t = st.t
			}
			continue
		}
		merged = append(merged, st)
	}
	return merged
}

func nearlyEqual(a, b float64) bool {
	return math.Abs(a-b) <= stopMergeUlps*epsilon*math.Max(1, math.Max(math.Abs(a), math.Abs(b)))
}

const epsilon = 2.220446049250313e-16

func (s *solver) minStep() float64 {
	if s.cfg.MinStep > 0 {
		return s.cfg.MinStep
	}
	return 16 * epsilon * math.Max(1, math.Abs(s.t))
}

func (s *solver) run(ctx context.Context) (*Solution, error) {
	stops := s.stops()

	// a breakpoint at t0 means the first piece starts just after it
	if slices.Contains(s.prob.Breakpoints, s.t) {
		s.rhs.win.lo = math.Nextafter(s.t, math.Inf(1))
	}
	s.rhs.win.hi = s.nextWindowEnd(stops, 0)

	h, err := s.initialStep(stops[len(stops)-1].t - s.t)
	if err != nil {
		return nil, s.fail(err)
	}
	s.h = h
	if s.mode == implicitStepper {
		s.bd.reset(s.t, s.y)
	}

	// the implicit stepper may step past grid points up to the next
	// breakpoint or the end of the grid
	hard := make([]float64, len(stops))
	bound := stops[len(stops)-1].t
	for i := len(stops) - 1; i >= 0; i-- {
		if stops[i].breakpoint {
			bound = stops[i].t
		}
		hard[i] = bound
	}

	for i, st := range stops {
		if err := ctx.Err(); err != nil {
			return nil, s.fail(err)
		}
		if err := s.advance(ctx, st.t, hard[i]); err != nil {
			return nil, s.fail(err)
		}
		if st.grid >= 0 {
			s.sol.States[st.grid] = s.sample(st.t)
			s.recorded = st.grid + 1
		}
		if st.breakpoint {
			s.rhs.win.lo = math.Nextafter(st.t, math.Inf(1))
			s.rhs.win.hi = s.nextWindowEnd(stops, i+1)
			s.dp.reset()
			s.bd.reset(s.t, s.y)
		}
	}

	s.stats.CurrentTime = s.t
	s.sol.Stats = s.stats
	s.cfg.Logger.Debug("integration finished",
		"steps", s.stats.Steps,
		"rejected", s.stats.Rejected,
		"evaluations", s.stats.Evaluations,
		"switches", s.stats.Switches)
	return s.sol, nil
}

// nextWindowEnd returns the evaluation bound for the piece starting at
// stops[from]: just below the next breakpoint, or +Inf.
func (s *solver) nextWindowEnd(stops []stop, from int) float64 {
	for _, st := range stops[from:] {
		if st.breakpoint {
			return math.Nextafter(st.t, math.Inf(-1))
		}
	}
	return math.Inf(1)
}

// sample returns the state at t, which is s.t or, after the implicit
// stepper went past it, a point inside the last step.
func (s *solver) sample(t float64) []float64 {
	if t == s.t {
		return slices.Clone(s.y)
	}
	out := make([]float64, s.n)
	s.bd.interpolate(t, out)
	return out
}

// advance steps from s.t until it reaches target. The explicit stepper
// lands on target exactly; the implicit one only lands on bound.
func (s *solver) advance(ctx context.Context, target, bound float64) error {
	for s.t < target {
		if s.stats.Steps >= s.cfg.MaxSteps {
			return fmt.Errorf("%w: %d steps", ErrMaxSteps, s.cfg.MaxSteps)
		}
		if s.stats.Steps%ctxCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		h := s.h
		if s.cfg.MaxStep > 0 && h > s.cfg.MaxStep {
			h = s.cfg.MaxStep
		}
		end := target
		if s.mode == implicitStepper {
			end = bound
		}
		clipped := false
		tNew := s.t + h
		if tNew >= end-landingSlack*h {
			h = end - s.t
			tNew = end
			clipped = true
		}
		if tNew <= s.t {
			return fmt.Errorf("%w: h=%g no longer advances t=%g", ErrStepTooSmall, h, s.t)
		}

		var (
			errNorm float64
			err     error
		)
		converged := true
		switch s.mode {
		case explicitStepper:
			errNorm, err = s.dp.attempt(s.t, s.y, h, s.ynew, s.tol)
		case implicitStepper:
			errNorm, converged, err = s.bd.attempt(h, s.ynew, s.tol)
		}
		if err != nil {
			return err
		}
		if math.IsNaN(errNorm) || (converged && (!isFinite(s.ynew) || exploded(s.y, s.ynew))) {
			errNorm = math.Inf(1)
		}

		if !converged {
			s.stats.Rejected++
			s.h = h * bdfNewtonShrink
			if s.h < s.minStep() {
				return fmt.Errorf("%w: Newton iteration failed with h=%g", ErrStepTooSmall, s.h)
			}
			continue
		}

		if errNorm > 1 {
			s.stats.Rejected++
			s.h = h * s.factor(errNorm)
			if s.h < s.minStep() {
				return fmt.Errorf("%w: error test failed with h=%g", ErrStepTooSmall, s.h)
			}
			continue
		}

		s.accept(tNew, h, errNorm, clipped)
	}
	return nil
}

func (s *solver) factor(errNorm float64) float64 {
	if s.mode == implicitStepper {
		return s.bd.factor(errNorm)
	}
	return s.dp.factor(errNorm)
}

// exploded reports whether some component grew by more than 1/epsilon in
// one step, which only happens when a step runs into a singularity.
func exploded(y, ynew []float64) bool {
	for i, v := range ynew {
		if math.Abs(v) > (math.Abs(y[i])+1)/epsilon {
			return true
		}
	}
	return false
}

func (s *solver) accept(tNew, h, errNorm float64, clipped bool) {
	s.stats.Steps++
	s.stats.LastStep = h

	var next float64
	switch s.mode {
	case explicitStepper:
		next = h * s.dp.factor(errNorm)
		stiff := s.dp.accept(h, s.ynew)
		// a shortened landing step says nothing about the natural step size
		if clipped && s.h > h {
			next = math.Max(next, s.h)
		}
		s.t = tNew
		copy(s.y, s.ynew)
		if stiff && s.cfg.Method == MethodAuto {
			s.switchTo(implicitStepper)
		}
	case implicitStepper:
		s.stats.StiffSteps++
		var nonstiff bool
		next, nonstiff = s.bd.accept(tNew, h, s.ynew, s.tol)
		s.t = tNew
		copy(s.y, s.ynew)
		if nonstiff && s.cfg.Method == MethodAuto {
			s.switchTo(explicitStepper)
		}
	}
	s.h = next
}

func (s *solver) switchTo(m stepper) {
	s.cfg.Logger.Debug("switching stepper",
		"from", s.mode.String(),
		"to", m.String(),
		"t", s.t,
		"h", s.h)
	s.stats.Switches++
	s.mode = m
	switch m {
	case explicitStepper:
		s.dp.reset()
	case implicitStepper:
		s.bd.reset(s.t, s.y)
	}
}

// initialStep estimates a first step following Hairer, Nørsett & Wanner
// (II.4), unless the configuration fixes one.
func (s *solver) initialStep(span float64) (float64, error) {
	f0 := make([]float64, s.n)
	s.rhs.eval(s.t, s.y, f0)
	if !isFinite(f0) {
		return 0, ErrNonFinite
	}

	limit := span
	if s.cfg.MaxStep > 0 {
		limit = math.Min(limit, s.cfg.MaxStep)
	}
	if s.cfg.InitialStep > 0 {
		return math.Min(s.cfg.InitialStep, limit), nil
	}

	order := float64(dpOrder)
	if s.mode == implicitStepper {
		order = 1
	}

	d0 := s.tol.norm(s.y, s.y, s.y)
	d1 := s.tol.norm(f0, s.y, s.y)
	h0 := 1e-6
	if d0 > 1e-5 && d1 > 1e-5 {
		h0 = 0.01 * d0 / d1
	}
	h0 = math.Min(h0, limit)

	y1 := make([]float64, s.n)
	for i := range y1 {
		y1[i] = s.y[i] + h0*f0[i]
	}
	f1 := make([]float64, s.n)
	s.rhs.eval(s.t+h0, y1, f1)
	for i := range f1 {
		f1[i] -= f0[i]
	}
	d2 := s.tol.norm(f1, s.y, s.y) / h0

	var h1 float64
	if m := math.Max(d1, d2); m <= 1e-15 || math.IsNaN(m) {
		h1 = math.Max(1e-6, h0*1e-3)
	} else {
		h1 = math.Pow(0.01/m, 1/(order+1))
	}
	return math.Min(math.Min(100*h0, h1), limit), nil
}

func (s *solver) fail(err error) error {
	s.stats.CurrentTime = s.t
	s.cfg.Logger.Debug("integration failed",
		"t", s.t,
		"h", s.h,
		"stepper", s.mode.String(),
		"err", err)
	return &IntegrationError{
		Time:    s.t,
		Step:    s.h,
		Times:   slices.Clone(s.sol.Times[:s.recorded]),
		States:  s.sol.States[:s.recorded],
		Stats:   s.stats,
		Wrapped: err,
	}
}
