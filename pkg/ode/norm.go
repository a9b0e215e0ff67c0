package ode

import (
	"math"

	"gonum.org/v1/gonum/floats"
)

// tolerance weights errors component-wise by atol + rtol*max(|y|, |ynew|).
type tolerance struct {
	rtol, atol float64
}

// norm returns the root-mean-square of v scaled by the error weights. A
// result <= 1 means v is within tolerance.
func (tol tolerance) norm(v, y, ynew []float64) float64 {
	var sum float64
	for i, vi := range v {
		sc := tol.atol + tol.rtol*math.Max(math.Abs(y[i]), math.Abs(ynew[i]))
		r := vi / sc
		sum += r * r
	}
	return math.Sqrt(sum / float64(len(v)))
}

// window bounds the times at which the right-hand side is evaluated while
// integrating one smooth piece of the problem.
type window struct {
	lo, hi float64
}

func (w window) clamp(t float64) float64 {
	if t < w.lo {
		return w.lo
	}
	if t > w.hi {
		return w.hi
	}
	return t
}

// rhs wraps the user function with evaluation counting and one-sided
// evaluation at breakpoints.
type rhs struct {
	f     Func
	win   window
	stats *Statistics
}

func (r *rhs) eval(t float64, y, dy []float64) {
	r.stats.Evaluations++
	r.f(r.win.clamp(t), y, dy)
}

func isFinite(v []float64) bool {
	if floats.HasNaN(v) {
		return false
	}
	for _, x := range v {
		if math.IsInf(x, 0) {
			return false
		}
	}
	return true
}
