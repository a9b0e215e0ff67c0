package ode

import (
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

const (
	bdfMaxOrder     = 5
	bdfNewtonIters  = 4
	bdfMinFactor    = 0.2
	bdfMaxFactor    = 10.0
	bdfNewtonShrink = 0.5
	// steps with h*||J|| below this are cheap enough for the explicit pair
	bdfNonStiffHJ    = 1.0
	bdfNonStiffCount = 20
)

// Klopfenstein–Shampine NDF coefficients. kappa[0] is unused and kappa[5]
// is zero, making order 5 plain BDF.
var bdfKappa = [bdfMaxOrder + 1]float64{0, -0.1850, -1.0 / 9, -0.0823, -0.0415, 0}

// gamma[k] = 1 + 1/2 + ... + 1/k, alpha[k] is the leading coefficient of
// the order-k formula and errorConst[k] relates the corrector update to
// the local error.
var bdfGamma, bdfAlpha, bdfErrorConst = bdfCoefficients()

func bdfCoefficients() (gamma, alpha, errc [bdfMaxOrder + 1]float64) {
	for k := 1; k <= bdfMaxOrder; k++ {
		gamma[k] = gamma[k-1] + 1/float64(k)
	}
	for k := 0; k <= bdfMaxOrder; k++ {
		alpha[k] = (1 - bdfKappa[k]) * gamma[k]
		errc[k] = bdfKappa[k]*gamma[k] + 1/float64(k+1)
	}
	return gamma, alpha, errc
}

// bdf is a variable-step, variable-order (1–5) NDF stepper in backward
// difference form. d[0] is the current state and d[j] its j-th backward
// difference at spacing h. The Jacobian is reused across steps until
// Newton fails to converge with it, and the Newton matrix is refactored
// only when h or the order change.
//
// The stepper owns a polynomial through its recent points, so it can
// sample anywhere inside the last step without landing there.
type bdf struct {
	rhs *rhs
	n   int

	t     float64
	h     float64
	d     [bdfMaxOrder + 3][]float64
	order int
	// accepted steps since the last change of h or order
	equal int
	// d[1] is filled on the first attempt after a reset
	fresh bool

	jac        *mat.Dense
	jacNorm    float64
	jacValid   bool
	jacCurrent bool

	newton  *mat.Dense
	lu      mat.LU
	luValid bool
	luC     float64

	ypred, psi, y, dsum, dy, g, f, ypert []float64
	tmp                                  [bdfMaxOrder + 1][]float64

	// results of the last converged attempt
	errNorm float64
	safety  float64

	nonstiff int
}

func newBDF(r *rhs, n int) *bdf {
	b := &bdf{
		rhs:    r,
		n:      n,
		jac:    mat.NewDense(n, n, nil),
		newton: mat.NewDense(n, n, nil),
		ypred:  make([]float64, n),
		psi:    make([]float64, n),
		y:      make([]float64, n),
		dsum:   make([]float64, n),
		dy:     make([]float64, n),
		g:      make([]float64, n),
		f:      make([]float64, n),
		ypert:  make([]float64, n),
		order:  1,
	}
	for i := range b.d {
		b.d[i] = make([]float64, n)
	}
	for i := range b.tmp {
		b.tmp[i] = make([]float64, n)
	}
	return b
}

// reset starts a fresh history at (t, y) with order 1.
func (b *bdf) reset(t float64, y []float64) {
	b.t = t
	copy(b.d[0], y)
	for i := 1; i < len(b.d); i++ {
		zero(b.d[i])
	}
	b.order = 1
	b.equal = 0
	b.fresh = true
	b.jacValid = false
	b.luValid = false
	b.nonstiff = 0
}

// attempt tries a step of size h from the current point. It returns the
// scaled local error estimate and whether the Newton iteration converged.
// A non-nil error means f at the current point is not finite.
func (b *bdf) attempt(h float64, ynew []float64, tol tolerance) (float64, bool, error) {
	switch {
	case b.fresh:
		b.rhs.eval(b.t, b.d[0], b.f)
		if !isFinite(b.f) {
			return math.Inf(1), false, ErrNonFinite
		}
		floats.ScaleTo(b.d[1], h, b.f)
		b.h = h
		b.fresh = false
	case h != b.h:
		b.rescale(h / b.h)
		b.h = h
		b.equal = 0
	}
	if !b.jacValid {
		if err := b.jacobian(tol); err != nil {
			return math.Inf(1), false, err
		}
	}

	order := b.order
	tn := b.t + h
	copy(b.ypred, b.d[0])
	zero(b.psi)
	for j := 1; j <= order; j++ {
		floats.Add(b.ypred, b.d[j])
		floats.AddScaled(b.psi, bdfGamma[j], b.d[j])
	}
	floats.Scale(1/bdfAlpha[order], b.psi)
	c := h / bdfAlpha[order]

	iters := 0
	for {
		if !b.luValid || b.luC != c {
			b.factorize(c)
		}
		var ok bool
		ok, iters = b.solve(tn, c, tol)
		if ok {
			break
		}
		if b.jacCurrent {
			return math.Inf(1), false, nil
		}
		if err := b.jacobian(tol); err != nil {
			return math.Inf(1), false, err
		}
	}

	copy(ynew, b.y)
	b.safety = stepSafetyFactor * (2*bdfNewtonIters + 1) / float64(2*bdfNewtonIters+iters)
	b.errNorm = bdfErrorConst[order] * tol.norm(b.dsum, ynew, ynew)
	return b.errNorm, true, nil
}

// solve runs the simplified Newton iteration for the state at tn. It
// leaves the iterate in b.y and its distance from the predictor in b.dsum.
func (b *bdf) solve(tn, c float64, tol tolerance) (bool, int) {
	newtonTol := math.Max(10*epsilon/tol.rtol, math.Min(0.03, math.Sqrt(tol.rtol)))

	copy(b.y, b.ypred)
	zero(b.dsum)
	gv := mat.NewVecDense(b.n, b.g)
	dv := mat.NewVecDense(b.n, b.dy)

	var prev float64
	for k := 0; k < bdfNewtonIters; k++ {
		b.rhs.eval(tn, b.y, b.f)
		if !isFinite(b.f) {
			return false, k + 1
		}
		for i := 0; i < b.n; i++ {
			b.g[i] = c*b.f[i] - b.psi[i] - b.dsum[i]
		}
		if err := b.lu.SolveVecTo(dv, false, gv); err != nil {
			return false, k + 1
		}

		dn := tol.norm(b.dy, b.ypred, b.ypred)
		rate := -1.0
		if k > 0 {
			rate = dn / prev
			if rate >= 1 || math.Pow(rate, float64(bdfNewtonIters-k))/(1-rate)*dn > newtonTol {
				return false, k + 1
			}
		}

		floats.Add(b.y, b.dy)
		floats.Add(b.dsum, b.dy)

		if dn == 0 || (rate >= 0 && rate/(1-rate)*dn < newtonTol) {
			return isFinite(b.y), k + 1
		}
		prev = dn
	}
	return false, bdfNewtonIters
}

// factorize builds and factors the Newton matrix I - c*J.
func (b *bdf) factorize(c float64) {
	b.newton.Scale(-c, b.jac)
	for i := 0; i < b.n; i++ {
		b.newton.Set(i, i, b.newton.At(i, i)+1)
	}
	b.lu.Factorize(b.newton)
	b.rhs.stats.Factorizations++
	b.luValid = true
	b.luC = c
}

// jacobian builds a forward-difference Jacobian of f at the current point.
func (b *bdf) jacobian(tol tolerance) error {
	const sqrtEps = 1.4901161193847656e-08
	y0 := b.d[0]
	b.rhs.eval(b.t, y0, b.f)
	if !isFinite(b.f) {
		return ErrNonFinite
	}
	b.rhs.stats.Jacobians++

	copy(b.ypert, y0)
	for j := 0; j < b.n; j++ {
		yj := y0[j]
		d := sqrtEps * math.Max(math.Abs(yj), tol.atol/math.Max(tol.rtol, sqrtEps))
		if d == 0 {
			d = sqrtEps
		}
		b.ypert[j] = yj + d
		d = b.ypert[j] - yj
		b.rhs.eval(b.t, b.ypert, b.g)
		for i := 0; i < b.n; i++ {
			b.jac.Set(i, j, (b.g[i]-b.f[i])/d)
		}
		b.ypert[j] = yj
	}
	b.jacNorm = mat.Norm(b.jac, math.Inf(1))
	b.jacValid = true
	b.jacCurrent = true
	b.luValid = false
	return nil
}

// accept commits the last converged attempt, which ended at tNew with step
// h. It returns the size proposed for the next step and reports true once
// recent steps were small enough relative to the Jacobian for the explicit
// pair to be stable.
func (b *bdf) accept(tNew, h float64, ynew []float64, tol tolerance) (float64, bool) {
	order := b.order
	b.t = tNew
	b.equal++
	b.jacCurrent = false

	floats.SubTo(b.d[order+2], b.dsum, b.d[order+1])
	copy(b.d[order+1], b.dsum)
	for i := order; i >= 0; i-- {
		floats.Add(b.d[i], b.d[i+1])
	}

	if h*b.jacNorm < bdfNonStiffHJ {
		b.nonstiff++
	} else {
		b.nonstiff = 0
	}
	nonstiff := b.nonstiff >= bdfNonStiffCount

	if b.equal < order+1 {
		return h, nonstiff
	}

	// compare the best step sizes one order down, at this order and one up
	errDown, errUp := math.Inf(1), math.Inf(1)
	if order > 1 {
		errDown = bdfErrorConst[order-1] * tol.norm(b.d[order], ynew, ynew)
	}
	if order < bdfMaxOrder {
		errUp = bdfErrorConst[order+1] * tol.norm(b.d[order+2], ynew, ynew)
	}
	best, delta := math.Pow(errDown, -1/float64(order)), -1
	if f := math.Pow(b.errNorm, -1/float64(order+1)); f > best {
		best, delta = f, 0
	}
	if f := math.Pow(errUp, -1/float64(order+2)); f > best {
		best, delta = f, 1
	}

	factor := math.Min(bdfMaxFactor, b.safety*best)
	b.order += delta
	b.rescale(factor)
	b.h = h * factor
	b.equal = 0
	return b.h, nonstiff
}

// factor returns the step-size multiplier after a failed error test.
func (b *bdf) factor(errNorm float64) float64 {
	return math.Max(bdfMinFactor, b.safety*math.Pow(errNorm, -1/float64(b.order+1)))
}

// interpolate evaluates the history polynomial at t, which should lie
// within the last accepted step.
func (b *bdf) interpolate(t float64, out []float64) {
	copy(out, b.d[0])
	p := 1.0
	for j := 0; j < b.order; j++ {
		p *= (t - (b.t - b.h*float64(j))) / (b.h * float64(j+1))
		floats.AddScaled(out, p, b.d[j+1])
	}
}

// rescale changes the spacing of the differences d[0..order] to factor*h.
func (b *bdf) rescale(factor float64) {
	n := b.order + 1
	var ru mat.Dense
	ru.Mul(bdfStepMatrix(b.order, factor), bdfStepMatrix(b.order, 1))

	for i := 0; i < n; i++ {
		zero(b.tmp[i])
		for k := 0; k < n; k++ {
			floats.AddScaled(b.tmp[i], ru.At(k, i), b.d[k])
		}
	}
	for i := 0; i < n; i++ {
		copy(b.d[i], b.tmp[i])
	}
	b.luValid = false
}

// bdfStepMatrix returns the (order+1)x(order+1) matrix R with
// R[i][j] = prod_{m=1..i} (m - 1 - factor*j) / m for j >= 1, R[0][j] = 1
// and R[i][0] = 0 for i >= 1.
func bdfStepMatrix(order int, factor float64) *mat.Dense {
	n := order + 1
	r := mat.NewDense(n, n, nil)
	for j := 0; j < n; j++ {
		r.Set(0, j, 1)
	}
	for i := 1; i < n; i++ {
		for j := 1; j < n; j++ {
			m := (float64(i) - 1 - factor*float64(j)) / float64(i)
			r.Set(i, j, r.At(i-1, j)*m)
		}
	}
	return r
}

func zero(v []float64) {
	for i := range v {
		v[i] = 0
	}
}
