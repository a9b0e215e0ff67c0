// Package engine runs outbreak scenarios.
// It builds the model a scenario describes, integrates it, and condenses the
// trajectory into a summary.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	intconfig "github.com/SIR-SEE/final-project-team-15/internal/config"
	"github.com/SIR-SEE/final-project-team-15/pkg/epi"
)

// Engine runs one scenario, possibly many times with varied parameters.
type Engine struct {
	scenario intconfig.Scenario

	// Structured logger
	logger *slog.Logger
}

// Config holds engine configuration.
type Config struct {
	// Scenario is the run to perform.
	Scenario intconfig.Scenario
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// New creates an engine for a validated scenario.
func New(cfg Config) (*Engine, error) {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if err := cfg.Scenario.Validate(); err != nil {
		return nil, err
	}
	return &Engine{
		scenario: cfg.Scenario.Clone(),
		logger:   logger,
	}, nil
}

// Scenario returns a copy of the engine's scenario.
func (e *Engine) Scenario() intconfig.Scenario {
	return e.scenario.Clone()
}

// Run is the outcome of one integration.
type Run struct {
	ID        string
	StartedAt time.Time
	Duration  time.Duration
	// Scenario is the scenario as run, after any sweep override.
	Scenario   intconfig.Scenario
	Trajectory *epi.Trajectory
	Summary    Summary
}

// Run integrates the engine's scenario.
//
// A run that fails part-way returns both the Run, holding the partial
// trajectory and its summary, and the error.
func (e *Engine) Run(ctx context.Context) (*Run, error) {
	return e.run(ctx, &e.scenario)
}

func (e *Engine) run(ctx context.Context, s *intconfig.Scenario) (*Run, error) {
	run := &Run{ID: uuid.NewString(), StartedAt: time.Now(), Scenario: s.Clone()}
	logger := e.logger.With("run_id", run.ID)
	logger.Info("starting run", "scenario", s.Name)

	m, err := s.BuildModel(logger)
	if err != nil {
		return nil, err
	}
	solverCfg, err := s.SolverConfig(logger)
	if err != nil {
		return nil, err
	}

	tr, runErr := epi.Integrate(ctx, m, s.InitialState(), s.Times(), solverCfg)
	run.Duration = time.Since(run.StartedAt)

	var ierr *epi.IntegrationError
	switch {
	case runErr == nil:
	case errors.As(runErr, &ierr):
		tr = ierr.Partial
	default:
		return nil, runErr
	}

	run.Trajectory = tr
	run.Summary = Summarize(tr, s.Population)
	run.Summary.RunID = run.ID
	run.Summary.Scenario = s.Name
	run.Summary.DurationMS = run.Duration.Milliseconds()

	if runErr != nil {
		run.Summary.Partial = true
		run.Summary.Error = runErr.Error()
		logger.Error("run failed", "samples", tr.Len(), "error", runErr)
		return run, fmt.Errorf("run %s: %w", run.ID, runErr)
	}

	logger.Info("run completed",
		"steps", tr.Stats.Steps,
		"rejected", tr.Stats.Rejected,
		"switches", tr.Stats.Switches,
		"duration", run.Duration)
	if run.Summary.MaxDrift > DriftTolerance {
		logger.Warn("population not conserved", "max_drift", run.Summary.MaxDrift)
	}
	return run, nil
}
