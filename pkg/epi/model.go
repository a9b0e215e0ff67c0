package epi

import (
	"errors"
	"sort"
)

// Model bundles everything the derivative needs. A Model is read-only once
// built; derivative evaluations never modify it.
type Model struct {
	Params Params
	// Policy supplies R0(t). Defaults to the lockdown in Params.
	Policy Policy
	// Campaign is the vaccination gate. Nil disables vaccination entirely,
	// reducing the system to SEIRD.
	Campaign *Campaign
}

// NewModel returns the reference model for p: a single lockdown at
// p.LockdownDay and a campaign opening at p.VaccinationDay.
func NewModel(p Params) *Model {
	return &Model{
		Params:   p,
		Policy:   NewLockdown(p.LockdownDay),
		Campaign: NewCampaign(p),
	}
}

// Validate checks parameters and policy before a run.
func (m *Model) Validate() error {
	var errs []error
	if err := m.Params.Validate(); err != nil {
		errs = append(errs, err)
	}
	switch p := m.Policy.(type) {
	case nil:
		errs = append(errs, configErrorf("policy", "is required"))
	case Lockdown:
		if err := p.Validate(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Derivative returns dy/dt of the SEIRDV system at (y, t).
//
// Vaccination inflow is driven by the living population N-D while S, E, I
// and R each lose kappa*k of their own size: vaccination hits the four
// living non-vaccinated compartments in proportion to their size. Summing
// the equations gives
//
//	d(S+E+I+R+D+V)/dt = kappa*k*(N - S - E - I - R - D)
//
// which is kappa*k*V on a conserved state, so the total grows while the
// campaign runs and V > 0. A campaign with InflowBalanced feeds V from the
// outflows instead and conserves the total exactly.
func Derivative(y State, t float64, p Params, policy Policy, campaign *Campaign) State {
	var (
		s, e, i, r, d = y[S], y[E], y[I], y[R], y[D]
		n             = p.Population
		delta         = p.IncubationRate
		gamma         = p.RecoveryRate
		alpha         = p.DeathFraction
		mu            = p.ImmunityLossRate
		kappa         = p.VaccinationRate
	)

	k := campaign.Indicator(t)
	beta := TransmissionRate(policy, gamma, t)
	infection := beta * i * s / n
	vacc := kappa * k

	var dy State
	dy[S] = -infection + mu*r - s*vacc
	dy[V] = (n - d) * vacc
	if campaign.balanced() {
		dy[V] = (s + e + i + r) * vacc
	}
	dy[E] = infection - delta*e - e*vacc
	dy[I] = delta*e - (1-alpha)*gamma*i - alpha*i - i*vacc
	dy[R] = (1-alpha)*gamma*i - mu*r - r*vacc
	dy[D] = alpha * i
	return dy
}

// Derivative evaluates the model at (t, y) into dy. It has the shape the ode
// package expects; y and dy must have length NumCompartments.
func (m *Model) Derivative(t float64, y, dy []float64) {
	out := Derivative(StateFromSlice(y), t, m.Params, m.Policy, m.Campaign)
	copy(dy, out[:])
}

// Breakpoints returns the sorted, de-duplicated instants at which the
// right-hand side is discontinuous: policy switches and the campaign window.
func (m *Model) Breakpoints() []float64 {
	var pts []float64
	if bp, ok := m.Policy.(Breakpointer); ok {
		pts = append(pts, bp.Breakpoints()...)
	}
	pts = append(pts, m.Campaign.Breakpoints()...)

	sort.Float64s(pts)
	out := pts[:0]
	for _, v := range pts {
		if len(out) == 0 || v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}
