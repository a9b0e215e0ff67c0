package ode

import (
	"fmt"
	"math"
)

// Linspace returns n evenly spaced points from start to end inclusive. The
// last point is exactly end.
func Linspace(start, end float64, n int) []float64 {
	if n <= 0 {
		return nil
	}
	if n == 1 {
		return []float64{start}
	}
	out := make([]float64, n)
	step := (end - start) / float64(n-1)
	for i := range out {
		out[i] = start + float64(i)*step
	}
	out[n-1] = end
	return out
}

// ValidateGrid checks that times has at least two finite, strictly
// increasing entries.
func ValidateGrid(times []float64) error {
	if len(times) < 2 {
		return fmt.Errorf("%w: grid needs at least 2 points, got %d", ErrInvalidProblem, len(times))
	}
	for i, t := range times {
		if math.IsNaN(t) || math.IsInf(t, 0) {
			return fmt.Errorf("%w: grid point %d is not finite", ErrInvalidProblem, i)
		}
		if i > 0 && !(t > times[i-1]) {
			return fmt.Errorf("%w: grid is not strictly increasing at index %d (%g after %g)", ErrInvalidProblem, i, t, times[i-1])
		}
	}
	return nil
}
