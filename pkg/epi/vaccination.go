package epi

import (
	"fmt"
	"strings"
)

// Inflow selects how the vaccinated compartment is fed while a campaign runs.
type Inflow int

const (
	// InflowLiving feeds V at kappa*(N-D): the living population, whatever
	// compartment it sits in. S, E, I and R still each lose kappa times
	// their own size, so the total grows at kappa*V while the campaign runs.
	InflowLiving Inflow = iota
	// InflowBalanced feeds V at exactly the sum of the S, E, I and R
	// outflows, which keeps the total constant.
	InflowBalanced
)

func (f Inflow) String() string {
	switch f {
	case InflowLiving:
		return "living"
	case InflowBalanced:
		return "balanced"
	default:
		return fmt.Sprintf("Inflow(%d)", int(f))
	}
}

// ParseInflow maps "living" (or "") and "balanced" to an Inflow.
func ParseInflow(s string) (Inflow, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "living":
		return InflowLiving, nil
	case "balanced":
		return InflowBalanced, nil
	default:
		return 0, configErrorf("vaccination_inflow", "unknown mode %q (want living or balanced)", s)
	}
}

// Campaign is a constant-rate vaccination campaign. It opens strictly after
// Start and closes strictly before Start + 1/Rate, the time needed at Rate to
// nominally cover the whole population. Both boundary instants are off.
type Campaign struct {
	Start  float64 `json:"start"`
	Rate   float64 `json:"rate"`
	Inflow Inflow  `json:"-"`
}

// NewCampaign returns the campaign described by p.
func NewCampaign(p Params) *Campaign {
	return &Campaign{Start: p.VaccinationDay, Rate: p.VaccinationRate}
}

// End returns the instant the campaign closes.
func (c *Campaign) End() float64 {
	return c.Start + 1/c.Rate
}

// Active reports whether vaccination is running at t. A nil campaign is
// never active.
func (c *Campaign) Active(t float64) bool {
	if c == nil || c.Rate <= 0 {
		return false
	}
	return c.Start < t && t < c.End()
}

// Indicator returns 1 while the campaign is active and 0 otherwise.
func (c *Campaign) Indicator(t float64) float64 {
	if c.Active(t) {
		return 1
	}
	return 0
}

// Breakpoints returns the opening and closing instants.
func (c *Campaign) Breakpoints() []float64 {
	if c == nil || c.Rate <= 0 {
		return nil
	}
	return []float64{c.Start, c.End()}
}

func (c *Campaign) balanced() bool {
	return c != nil && c.Inflow == InflowBalanced
}
