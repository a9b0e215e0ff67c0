package epi

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SIR-SEE/final-project-team-15/internal/testutil"
	"github.com/SIR-SEE/final-project-team-15/pkg/ode"
)

func referenceRun(t *testing.T, m *Model, cfg ode.Config) *Trajectory {
	t.Helper()
	cfg.Logger = testutil.NewTestLogger(t)
	tr, err := Integrate(context.Background(), m, InitialState(m.Params.Population), ode.Linspace(0, 365, 700), cfg)
	require.NoError(t, err)
	require.Equal(t, 700, tr.Len())
	return tr
}

func TestIntegrate_ReferenceScenario(t *testing.T) {
	p := DefaultParams()
	tr := referenceRun(t, NewModel(p), ode.DefaultConfig())

	first := tr.States[0]
	assert.Equal(t, p.Population-1, first[S])
	assert.Equal(t, 1.0, first[E])
	assert.Equal(t, 0.0, tr.Times[0])
	assert.Equal(t, 365.0, tr.Times[699])

	// New infections and the exposed pool peak before the lockdown; I lags
	// them by roughly one incubation period.
	var incidencePeakDay, incidencePeak float64
	for i, s := range tr.States {
		inc := TransmissionRate(NewLockdown(p.LockdownDay), p.RecoveryRate, tr.Times[i]) * s[I] * s[S] / p.Population
		if inc > incidencePeak {
			incidencePeakDay, incidencePeak = tr.Times[i], inc
		}
	}
	assert.Less(t, incidencePeakDay, p.LockdownDay)
	exposedPeakDay, _ := tr.Peak(E)
	assert.Less(t, exposedPeakDay, p.LockdownDay)

	peakDay, peak := tr.Peak(I)
	assert.InDelta(t, p.LockdownDay, peakDay, 10)
	assert.Greater(t, peak, 0.2*p.Population)

	// by day 80 the epidemic is in clear decline
	i80 := 80 * 699 / 365
	assert.Less(t, tr.States[i80][I], peak/2)

	for i, tt := range tr.Times {
		if tt > p.VaccinationDay {
			break
		}
		sum := tr.States[i].Sum()
		assert.InDelta(t, p.Population, sum, ConservationTolerance*p.Population, "t=%g", tt)
		assert.Zero(t, tr.States[i][V], "no vaccination before day %g", p.VaccinationDay)
	}
	assert.Positive(t, tr.Final()[V])
}

func TestIntegrate_LivingInflowGrowsTotal(t *testing.T) {
	p := DefaultParams()
	tr := referenceRun(t, NewModel(p), ode.DefaultConfig())

	// the total grows at kappa*V while the campaign runs
	final := tr.Final().Sum()
	assert.Greater(t, final, p.Population*(1+1e-3))
	assert.Greater(t, tr.MaxDrift(p.Population), ConservationTolerance)
}

func TestIntegrate_BalancedInflowConserves(t *testing.T) {
	p := DefaultParams()
	m := NewModel(p)
	m.Campaign.Inflow = InflowBalanced
	tr := referenceRun(t, m, ode.DefaultConfig())

	assert.LessOrEqual(t, tr.MaxDrift(p.Population), ConservationTolerance)
	assert.InDelta(t, p.Population, tr.Final().Sum(), ConservationTolerance*p.Population)
	assert.Positive(t, tr.Final()[V])
}

func TestIntegrate_ZeroVaccinationReducesToSEIRD(t *testing.T) {
	p := DefaultParams()

	seird := NewModel(p)
	seird.Campaign = nil
	off := referenceRun(t, seird, ode.DefaultConfig())

	for i, s := range off.States {
		assert.Zero(t, s[V], "t=%g", off.Times[i])
		assert.InDelta(t, p.Population, s.Sum(), ConservationTolerance*p.Population, "t=%g", off.Times[i])
	}

	// a campaign that never opens within the grid gives the same run
	late := p
	late.VaccinationDay = 1000
	never := referenceRun(t, NewModel(late), ode.DefaultConfig())
	for i := range off.States {
		for _, c := range Compartments() {
			assert.InDelta(t, off.States[i][c], never.States[i][c], 1e-6*p.Population)
		}
	}
}

func TestIntegrate_MonotonicDeath(t *testing.T) {
	p := DefaultParams()
	tr := referenceRun(t, NewModel(p), ode.DefaultConfig())

	deaths := tr.Column(D)
	for i := 1; i < len(deaths); i++ {
		assert.GreaterOrEqual(t, deaths[i], deaths[i-1]-1e-9*p.Population, "t=%g", tr.Times[i])
	}
	assert.Positive(t, deaths[len(deaths)-1])
}

func TestIntegrate_MethodsAgree(t *testing.T) {
	p := DefaultParams()
	cfg := ode.DefaultConfig()
	cfg.RelTol = 1e-6

	var peaks []float64
	for _, method := range ode.Methods() {
		cfg.Method = method
		tr := referenceRun(t, NewModel(p), cfg)
		_, peak := tr.Peak(I)
		peaks = append(peaks, peak)
	}
	for _, pk := range peaks[1:] {
		assert.InEpsilon(t, peaks[0], pk, 0.01)
	}
}

func TestIntegrate_BDFTracksReference(t *testing.T) {
	p := DefaultParams()

	tight := ode.DefaultConfig()
	tight.Method = ode.MethodDOPRI5
	tight.RelTol = 1e-12
	ref := referenceRun(t, NewModel(p), tight)

	for _, method := range ode.Methods() {
		t.Run(string(method), func(t *testing.T) {
			cfg := ode.DefaultConfig()
			cfg.Method = method
			tr := referenceRun(t, NewModel(p), cfg)

			var worst float64
			for i := range tr.States {
				for _, c := range Compartments() {
					worst = math.Max(worst, math.Abs(tr.States[i][c]-ref.States[i][c]))
				}
			}
			assert.Less(t, worst/p.Population, 1e3*cfg.RelTol)
		})
	}
}

func TestIntegrate_Schedule(t *testing.T) {
	p := DefaultParams()
	sched, err := NewSchedule(12, []Step{{Day: 40, R0: 1.5}, {Day: 120, R0: 6}})
	require.NoError(t, err)

	m := NewModel(p)
	m.Policy = sched
	assert.Equal(t, []float64{40, 120, 200, 400}, m.Breakpoints())

	// reopening at R0 6 brings a second, larger wave
	tr := referenceRun(t, m, ode.DefaultConfig())
	peakDay, _ := tr.Peak(I)
	assert.Greater(t, peakDay, 120.0)
}

func TestIntegrate_ConfigErrors(t *testing.T) {
	p := DefaultParams()
	grid := ode.Linspace(0, 365, 700)

	tests := []struct {
		name  string
		m     *Model
		y0    State
		grid  []float64
		cfg   ode.Config
		field string
	}{
		{"nil model", nil, InitialState(p.Population), grid, ode.DefaultConfig(), "model"},
		{"bad grid", NewModel(p), InitialState(p.Population), []float64{0}, ode.DefaultConfig(), "grid"},
		{"decreasing grid", NewModel(p), InitialState(p.Population), []float64{0, 2, 1}, ode.DefaultConfig(), "grid"},
		{"initial does not sum to N", NewModel(p), State{1, 1}, grid, ode.DefaultConfig(), "initial"},
		{"bad method", NewModel(p), InitialState(p.Population), grid, ode.Config{Method: "euler"}, "solver"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Integrate(context.Background(), tt.m, tt.y0, tt.grid, tt.cfg)
			require.Error(t, err)
			assert.ErrorIs(t, err, ErrConfiguration)
			assert.NotErrorIs(t, err, ode.ErrIntegration)

			var cerr *ConfigError
			require.ErrorAs(t, err, &cerr)
			assert.Equal(t, tt.field, cerr.Field)
		})
	}
}

type failingPolicy struct {
	after float64
	err   error
}

func (f *failingPolicy) R0(t float64) float64 {
	if t > f.after {
		if f.err == nil {
			f.err = errors.New("R0 unavailable")
		}
		return math.NaN()
	}
	return 12
}

func (f *failingPolicy) Err() error { return f.err }

func TestIntegrate_FailureKeepsPartialTrajectory(t *testing.T) {
	p := DefaultParams()
	m := NewModel(p)
	policy := &failingPolicy{after: 30}
	m.Policy = policy

	_, err := Integrate(context.Background(), m, InitialState(p.Population), ode.Linspace(0, 365, 700), ode.DefaultConfig())
	require.Error(t, err)
	assert.ErrorIs(t, err, ode.ErrIntegration)
	assert.ErrorIs(t, err, policy.err)
	assert.NotErrorIs(t, err, ErrConfiguration)

	var ierr *IntegrationError
	require.ErrorAs(t, err, &ierr)
	require.NotNil(t, ierr.Partial)
	assert.Positive(t, ierr.Partial.Len())
	assert.LessOrEqual(t, ierr.Partial.Times[ierr.Partial.Len()-1], 30.0)
	assert.Equal(t, p.Population-1, ierr.Partial.States[0][S])
}
