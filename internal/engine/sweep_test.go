package engine

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	intconfig "github.com/SIR-SEE/final-project-team-15/internal/config"
)

func TestEngine_SweepLockdownDay(t *testing.T) {
	e := newEngine(t, shortScenario())

	values := []float64{80, 40, 60}
	results, err := e.Sweep(context.Background(), "lockdown_day", values, SweepOptions{Workers: 2})
	require.NoError(t, err)
	require.Len(t, results, len(values))

	byDay := map[float64]SweepResult{}
	for i, r := range results {
		assert.Equal(t, values[i], r.Value, "results keep input order")
		assert.Equal(t, "lockdown_day", r.Parameter)
		assert.Empty(t, r.Error)
		require.NotNil(t, r.Run)
		assert.Equal(t, r.Value, r.Run.Scenario.Lockdown.Day)
		assert.Equal(t, r.Summary.RunID, r.Run.ID)
		assert.Nil(t, r.Run.Trajectory, "sweeps drop trajectories")
		byDay[r.Value] = r
	}

	// a later lockdown lets the epidemic grow for longer
	assert.Less(t, byDay[40].Summary.PeakInfected, byDay[60].Summary.PeakInfected)
	assert.Less(t, byDay[60].Summary.PeakInfected, byDay[80].Summary.PeakInfected)
	assert.Less(t, byDay[40].Summary.TotalDeaths, byDay[80].Summary.TotalDeaths)

	// distinct runs get distinct IDs
	assert.NotEqual(t, results[0].Summary.RunID, results[1].Summary.RunID)

	// the engine's own scenario is untouched
	assert.Equal(t, 60.0, e.Scenario().Lockdown.Day)
}

func TestEngine_SweepKeepTrajectories(t *testing.T) {
	s := shortScenario()
	e := newEngine(t, s)

	results, err := e.Sweep(context.Background(), "r0_after", []float64{1, 3}, SweepOptions{KeepTrajectories: true})
	require.NoError(t, err)
	for _, r := range results {
		require.NotNil(t, r.Run)
		require.NotNil(t, r.Run.Trajectory)
		assert.Equal(t, s.Grid.Points, r.Run.Trajectory.Len())
	}
}

func TestEngine_SweepRecordsInvalidValues(t *testing.T) {
	e := newEngine(t, shortScenario())

	results, err := e.Sweep(context.Background(), "vaccination_rate", []float64{0.01, -1}, SweepOptions{})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Empty(t, results[0].Error)
	assert.Contains(t, results[1].Error, "vaccination.rate")
	assert.Zero(t, results[1].Summary.Samples)
	assert.Nil(t, results[1].Run)
}

func TestEngine_SweepOneRecordsSetterError(t *testing.T) {
	e := newEngine(t, shortScenario())

	res := e.sweepOne(context.Background(), "gravity", 1, false)
	assert.Equal(t, "gravity", res.Parameter)
	assert.Contains(t, res.Error, `unknown parameter "gravity"`)
	assert.Nil(t, res.Run)
	assert.Zero(t, res.Summary.Samples)
}

func TestEngine_SweepErrors(t *testing.T) {
	e := newEngine(t, intconfig.DefaultScenario())

	_, err := e.Sweep(context.Background(), "gravity", []float64{1}, SweepOptions{})
	assert.ErrorContains(t, err, "unknown parameter")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = e.Sweep(ctx, "lockdown_day", []float64{10, 20}, SweepOptions{Workers: 1})
	assert.ErrorIs(t, err, context.Canceled)
}
