// Package metrics records run and solver figures in the Prometheus text
// exposition format, for node_exporter's textfile collector or a CI
// artifact.
package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/SIR-SEE/final-project-team-15/internal/engine"
)

const namespace = "outbreak"

// Recorder accumulates metrics for the runs of one invocation.
type Recorder struct {
	reg *prometheus.Registry

	runs        *prometheus.CounterVec
	steps       prometheus.Counter
	rejected    prometheus.Counter
	evaluations prometheus.Counter
	jacobians   prometheus.Counter
	switches    prometheus.Counter
	duration    prometheus.Histogram

	peak      *prometheus.GaugeVec
	peakDay   *prometheus.GaugeVec
	deaths    *prometheus.GaugeVec
	drift     *prometheus.GaugeVec
	finalSize *prometheus.GaugeVec
}

// NewRecorder creates a recorder with its own registry.
func NewRecorder() *Recorder {
	scenario := []string{"scenario"}
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		runs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "runs_total",
			Help: "Runs by outcome.",
		}, []string{"status"}),
		steps: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "solver", Name: "steps_total",
			Help: "Accepted integrator steps.",
		}),
		rejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "solver", Name: "rejected_steps_total",
			Help: "Rejected integrator step attempts.",
		}),
		evaluations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "solver", Name: "evaluations_total",
			Help: "Derivative evaluations.",
		}),
		jacobians: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "solver", Name: "jacobians_total",
			Help: "Finite-difference Jacobian builds.",
		}),
		switches: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "solver", Name: "method_switches_total",
			Help: "Switches between the explicit and implicit steppers.",
		}),
		duration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Name: "run_duration_seconds",
			Help:    "Wall time per run.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 8),
		}),
		peak: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "peak_infected",
			Help: "Largest sampled infected count of the last run.",
		}, scenario),
		peakDay: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "peak_day",
			Help: "Day of the infected peak of the last run.",
		}, scenario),
		deaths: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "deaths",
			Help: "Dead at the last sample of the last run.",
		}, scenario),
		drift: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "conservation_drift_ratio",
			Help: "Largest relative deviation of the compartment sum from the population.",
		}, scenario),
		finalSize: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "final_population",
			Help: "Compartment sum at the last sample of the last run.",
		}, scenario),
	}
	r.reg.MustRegister(
		r.runs, r.steps, r.rejected, r.evaluations, r.jacobians, r.switches,
		r.duration, r.peak, r.peakDay, r.deaths, r.drift, r.finalSize,
	)
	return r
}

// Registry exposes the underlying registry.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.reg
}

// Observe records one run summary.
func (r *Recorder) Observe(s engine.Summary) {
	status := "completed"
	if s.Partial || s.Error != "" {
		status = "failed"
	}
	r.runs.WithLabelValues(status).Inc()
	r.steps.Add(float64(s.Stats.Steps))
	r.rejected.Add(float64(s.Stats.Rejected))
	r.evaluations.Add(float64(s.Stats.Evaluations))
	r.jacobians.Add(float64(s.Stats.Jacobians))
	r.switches.Add(float64(s.Stats.Switches))
	r.duration.Observe(float64(s.DurationMS) / 1000)

	if s.Samples == 0 {
		return
	}
	name := s.Scenario
	r.peak.WithLabelValues(name).Set(s.PeakInfected)
	r.peakDay.WithLabelValues(name).Set(s.PeakDay)
	r.deaths.WithLabelValues(name).Set(s.TotalDeaths)
	r.drift.WithLabelValues(name).Set(s.MaxDrift)
	r.finalSize.WithLabelValues(name).Set(s.FinalPopulation)
}

// WriteFile writes the metrics to path atomically.
func (r *Recorder) WriteFile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
