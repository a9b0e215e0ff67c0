package ode

import "math"

// Dormand–Prince 5(4) tableau.
const (
	dpC2 = 1.0 / 5
	dpC3 = 3.0 / 10
	dpC4 = 4.0 / 5
	dpC5 = 8.0 / 9

	dpA21 = 1.0 / 5

	dpA31 = 3.0 / 40
	dpA32 = 9.0 / 40

	dpA41 = 44.0 / 45
	dpA42 = -56.0 / 15
	dpA43 = 32.0 / 9

	dpA51 = 19372.0 / 6561
	dpA52 = -25360.0 / 2187
	dpA53 = 64448.0 / 6561
	dpA54 = -212.0 / 729

	dpA61 = 9017.0 / 3168
	dpA62 = -355.0 / 33
	dpA63 = 46732.0 / 5247
	dpA64 = 49.0 / 176
	dpA65 = -5103.0 / 18656

	dpA71 = 35.0 / 384
	dpA73 = 500.0 / 1113
	dpA74 = 125.0 / 192
	dpA75 = -2187.0 / 6784
	dpA76 = 11.0 / 84

	// difference between the 5th and embedded 4th order weights
	dpE1 = 71.0 / 57600
	dpE3 = -71.0 / 16695
	dpE4 = 71.0 / 1920
	dpE5 = -17253.0 / 339200
	dpE6 = 22.0 / 525
	dpE7 = -1.0 / 40
)

// Stiffness detection thresholds (Hairer & Wanner, DOPRI5).
const (
	dpStiffHLambda   = 3.25
	dpStiffCount     = 15
	dpNonStiffCount  = 6
	dpOrder          = 5
	dpMaxGrowth      = 5.0
	dpMinShrink      = 0.2
	stepSafetyFactor = 0.9
)

// dopri is the explicit Dormand–Prince 5(4) stepper with FSAL reuse.
type dopri struct {
	rhs *rhs
	n   int
	k   [7][]float64
	// ystage is the argument of the sixth stage, kept for stiffness detection
	ystage []float64
	ytmp   []float64
	errv   []float64
	// k[0] holds f(t, y) for the current state
	fsal bool

	stiff    int
	nonstiff int
}

func newDopri(r *rhs, n int) *dopri {
	d := &dopri{
		rhs:    r,
		n:      n,
		ystage: make([]float64, n),
		ytmp:   make([]float64, n),
		errv:   make([]float64, n),
	}
	for i := range d.k {
		d.k[i] = make([]float64, n)
	}
	return d
}

func (d *dopri) reset() {
	d.fsal = false
	d.stiff = 0
	d.nonstiff = 0
}

// attempt computes a trial step of size h from (t, y) into ynew and returns
// the scaled error estimate. A non-nil error means f(t, y) itself is not
// finite and no step size can help.
func (d *dopri) attempt(t float64, y []float64, h float64, ynew []float64, tol tolerance) (float64, error) {
	k := d.k
	if !d.fsal {
		d.rhs.eval(t, y, k[0])
		if !isFinite(k[0]) {
			return math.Inf(1), ErrNonFinite
		}
		d.fsal = true
	}

	for i := 0; i < d.n; i++ {
		d.ytmp[i] = y[i] + h*dpA21*k[0][i]
	}
	d.rhs.eval(t+dpC2*h, d.ytmp, k[1])

	for i := 0; i < d.n; i++ {
		d.ytmp[i] = y[i] + h*(dpA31*k[0][i]+dpA32*k[1][i])
	}
	d.rhs.eval(t+dpC3*h, d.ytmp, k[2])

	for i := 0; i < d.n; i++ {
		d.ytmp[i] = y[i] + h*(dpA41*k[0][i]+dpA42*k[1][i]+dpA43*k[2][i])
	}
	d.rhs.eval(t+dpC4*h, d.ytmp, k[3])

	for i := 0; i < d.n; i++ {
		d.ytmp[i] = y[i] + h*(dpA51*k[0][i]+dpA52*k[1][i]+dpA53*k[2][i]+dpA54*k[3][i])
	}
	d.rhs.eval(t+dpC5*h, d.ytmp, k[4])

	for i := 0; i < d.n; i++ {
		d.ystage[i] = y[i] + h*(dpA61*k[0][i]+dpA62*k[1][i]+dpA63*k[2][i]+dpA64*k[3][i]+dpA65*k[4][i])
	}
	d.rhs.eval(t+h, d.ystage, k[5])

	for i := 0; i < d.n; i++ {
		ynew[i] = y[i] + h*(dpA71*k[0][i]+dpA73*k[2][i]+dpA74*k[3][i]+dpA75*k[4][i]+dpA76*k[5][i])
	}
	d.rhs.eval(t+h, ynew, k[6])

	if !isFinite(ynew) || !isFinite(k[6]) {
		return math.Inf(1), nil
	}

	for i := 0; i < d.n; i++ {
		d.errv[i] = h * (dpE1*k[0][i] + dpE3*k[2][i] + dpE4*k[3][i] + dpE5*k[4][i] + dpE6*k[5][i] + dpE7*k[6][i])
	}
	return tol.norm(d.errv, y, ynew), nil
}

// accept commits the last trial step. It reports true once the step size
// has been limited by stability rather than accuracy for long enough to
// call the problem stiff.
func (d *dopri) accept(h float64, ynew []float64) bool {
	var num, den float64
	for i := 0; i < d.n; i++ {
		dk := d.k[6][i] - d.k[5][i]
		dy := ynew[i] - d.ystage[i]
		num += dk * dk
		den += dy * dy
	}
	stiff := false
	if den > 0 {
		if h*math.Sqrt(num/den) > dpStiffHLambda {
			d.nonstiff = 0
			d.stiff++
			stiff = d.stiff >= dpStiffCount
		} else {
			d.nonstiff++
			if d.nonstiff >= dpNonStiffCount {
				d.stiff = 0
			}
		}
	}

	d.k[0], d.k[6] = d.k[6], d.k[0]
	d.fsal = true
	return stiff
}

// factor returns the step-size multiplier for the given error norm.
func (d *dopri) factor(errNorm float64) float64 {
	if errNorm == 0 {
		return dpMaxGrowth
	}
	f := stepSafetyFactor * math.Pow(errNorm, -1.0/dpOrder)
	return math.Min(dpMaxGrowth, math.Max(dpMinShrink, f))
}
