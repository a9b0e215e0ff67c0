package ode

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLinspace(t *testing.T) {
	tests := []struct {
		name       string
		start, end float64
		n          int
		want       []float64
	}{
		{"empty", 0, 1, 0, nil},
		{"negative count", 0, 1, -3, nil},
		{"single point", 2, 5, 1, []float64{2}},
		{"two points", 0, 1, 2, []float64{0, 1}},
		{"quarters", 0, 1, 5, []float64{0, 0.25, 0.5, 0.75, 1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Linspace(tt.start, tt.end, tt.n))
		})
	}
}

func TestLinspace_EndIsExact(t *testing.T) {
	g := Linspace(0, 365, 700)
	require.Len(t, g, 700)
	assert.Equal(t, 0.0, g[0])
	assert.Equal(t, 365.0, g[699])
	require.NoError(t, ValidateGrid(g))
}

func TestValidateGrid(t *testing.T) {
	tests := []struct {
		name    string
		times   []float64
		wantErr bool
	}{
		{"ok", []float64{0, 1, 2}, false},
		{"too short", []float64{0}, true},
		{"nil", nil, true},
		{"repeated", []float64{0, 1, 1}, true},
		{"decreasing", []float64{0, 2, 1}, true},
		{"NaN", []float64{0, math.NaN()}, true},
		{"infinite", []float64{0, math.Inf(1)}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGrid(tt.times)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProblem)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestParseMethod(t *testing.T) {
	tests := []struct {
		in      string
		want    Method
		wantErr bool
	}{
		{"", MethodAuto, false},
		{"auto", MethodAuto, false},
		{" DOPRI5 ", MethodDOPRI5, false},
		{"bdf", MethodBDF, false},
		{"lsoda", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMethod(tt.in)
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidProblem)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSolverStops(t *testing.T) {
	s := newSolver(Problem{
		F:           decay,
		Y0:          []float64{1},
		Times:       []float64{0, 1, 2, 3},
		Breakpoints: []float64{2, 1.5, 0, 3, 2 + 1e-17},
	}, DefaultConfig().withDefaults())

	got := s.stops()
	require.Len(t, got, 4)
	assert.Equal(t, stop{t: 1, grid: 1}, got[0])
	assert.Equal(t, stop{t: 1.5, grid: -1, breakpoint: true}, got[1])
	assert.Equal(t, stop{t: 2, grid: 2, breakpoint: true}, got[2])
	assert.Equal(t, stop{t: 3, grid: 3}, got[3])
}
