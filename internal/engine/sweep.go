package engine

import (
	"context"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// SweepResult is one point of a parameter sweep.
type SweepResult struct {
	Parameter string  `json:"parameter"`
	Value     float64 `json:"value"`
	Summary   Summary `json:"summary"`
	// Error is set when this value could not be run to the end. Summary then
	// describes the partial trajectory, if there was one.
	Error string `json:"error,omitempty"`
	// Run is the run behind Summary, or nil when the value was rejected
	// before running. Its trajectory is dropped unless
	// SweepOptions.KeepTrajectories is set.
	Run *Run `json:"-"`
}

// SweepOptions tunes Sweep.
type SweepOptions struct {
	// Workers bounds the number of concurrent runs. Zero means GOMAXPROCS.
	Workers int
	// KeepTrajectories retains each run's trajectory in its result.
	KeepTrajectories bool
}

// Sweep runs the scenario once per value of the named parameter, in
// parallel. Results come back in the order of values.
//
// A failing value does not stop the sweep; its error is recorded in its
// result. Sweep itself fails only for an unknown parameter or a canceled
// context.
func (e *Engine) Sweep(ctx context.Context, param string, values []float64, opts SweepOptions) ([]SweepResult, error) {
	check := e.scenario.Clone()
	if err := check.SetParameter(param, 0); err != nil {
		return nil, err
	}

	workers := opts.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	e.logger.Info("starting sweep", "parameter", param, "values", len(values), "workers", workers)

	results := make([]SweepResult, len(values))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, v := range values {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = e.sweepOne(gctx, param, v, opts.KeepTrajectories)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	e.logger.Info("sweep completed", "parameter", param)
	return results, nil
}

func (e *Engine) sweepOne(ctx context.Context, param string, v float64, keep bool) SweepResult {
	res := SweepResult{Parameter: param, Value: v}

	s := e.scenario.Clone()
	if err := s.SetParameter(param, v); err != nil {
		res.Error = err.Error()
		return res
	}
	if err := s.Validate(); err != nil {
		res.Error = err.Error()
		return res
	}

	run, err := e.run(ctx, &s)
	if run != nil {
		if !keep {
			run.Trajectory = nil
		}
		res.Summary = run.Summary
		res.Run = run
	}
	if err != nil {
		res.Error = err.Error()
		e.logger.Debug("sweep point failed", "parameter", param, "value", v, "error", err)
	}
	return res
}
