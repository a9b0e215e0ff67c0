// Package epi implements the SEIRDV compartmental outbreak model: the
// lockdown-dependent transmission rate, the time-gated vaccination campaign,
// and the derivative function that combines them.
//
// All model inputs are explicit values. A Model carries its parameters,
// reproduction-number policy and vaccination campaign, and is safe to share
// between goroutines as long as its Policy is.
package epi

import "math"

// Compartment indexes into a State.
type Compartment int

// Compartments in state-vector order.
const (
	S Compartment = iota // Susceptible
	E                    // Exposed
	I                    // Infected
	R                    // Recovered
	D                    // Dead
	V                    // Vaccinated

	NumCompartments = 6
)

var compartmentNames = [NumCompartments]string{
	"susceptible", "exposed", "infected", "recovered", "dead", "vaccinated",
}

// String returns the lower-case compartment name.
func (c Compartment) String() string {
	if c < 0 || int(c) >= NumCompartments {
		return "unknown"
	}
	return compartmentNames[c]
}

// Short returns the single-letter symbol of the compartment.
func (c Compartment) Short() string {
	if c < 0 || int(c) >= NumCompartments {
		return "?"
	}
	return "SEIRDV"[c : c+1]
}

// Compartments returns all compartments in state-vector order.
func Compartments() []Compartment {
	return []Compartment{S, E, I, R, D, V}
}

// State is the compartment vector (S, E, I, R, D, V) at one instant.
type State [NumCompartments]float64

// Sum returns the total population represented by the state.
func (s State) Sum() float64 {
	var total float64
	for _, v := range s {
		total += v
	}
	return total
}

// Living returns S+E+I+R+V, the population that has not died.
func (s State) Living() float64 {
	return s.Sum() - s[D]
}

// Slice returns a copy of the state as a slice.
func (s State) Slice() []float64 {
	out := make([]float64, NumCompartments)
	copy(out, s[:])
	return out
}

// StateFromSlice copies the first six entries of v into a State.
func StateFromSlice(v []float64) State {
	var s State
	copy(s[:], v)
	return s
}

// IsFinite reports whether every compartment is a finite number.
func (s State) IsFinite() bool {
	for _, v := range s {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// InitialState returns the reference initial condition: a single exposed
// individual in an otherwise fully susceptible population.
func InitialState(population float64) State {
	return State{population - 1, 1, 0, 0, 0, 0}
}
