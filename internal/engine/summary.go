package engine

import (
	"github.com/SIR-SEE/final-project-team-15/pkg/epi"
	"github.com/SIR-SEE/final-project-team-15/pkg/ode"
)

// DriftTolerance is the relative conservation drift above which a run is
// flagged.
const DriftTolerance = 1e-6

// Summary condenses a trajectory into the figures a reader asks for first.
type Summary struct {
	RunID    string `json:"run_id"`
	Scenario string `json:"scenario,omitempty"`

	Samples int     `json:"samples"`
	EndDay  float64 `json:"end_day"`

	PeakInfected    float64 `json:"peak_infected"`
	PeakDay         float64 `json:"peak_day"`
	TotalDeaths     float64 `json:"total_deaths"`
	TotalVaccinated float64 `json:"total_vaccinated"`
	// FinalPopulation is the compartment sum at the last sample.
	FinalPopulation float64 `json:"final_population"`
	// MaxDrift is the largest relative deviation of the compartment sum
	// from the population.
	MaxDrift float64 `json:"max_drift"`

	Final map[string]float64 `json:"final"`
	Stats ode.Statistics     `json:"solver"`

	DurationMS int64  `json:"duration_ms"`
	Partial    bool   `json:"partial,omitempty"`
	Error      string `json:"error,omitempty"`
}

// Summarize computes the summary of tr for a population of size pop.
func Summarize(tr *epi.Trajectory, pop float64) Summary {
	s := Summary{
		Samples: tr.Len(),
		Final:   make(map[string]float64, epi.NumCompartments),
		Stats:   tr.Stats,
	}
	if tr.Len() == 0 {
		return s
	}

	final := tr.Final()
	s.EndDay = tr.Times[tr.Len()-1]
	s.PeakDay, s.PeakInfected = tr.Peak(epi.I)
	s.TotalDeaths = final[epi.D]
	s.TotalVaccinated = final[epi.V]
	s.FinalPopulation = final.Sum()
	s.MaxDrift = tr.MaxDrift(pop)
	for _, c := range epi.Compartments() {
		s.Final[c.String()] = final[c]
	}
	return s
}

// Conserved reports whether the run kept its population within
// DriftTolerance.
func (s Summary) Conserved() bool {
	return s.MaxDrift <= DriftTolerance
}
