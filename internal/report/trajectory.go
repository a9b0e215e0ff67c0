package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/SIR-SEE/final-project-team-15/pkg/epi"
)

// Trajectory export formats.
const (
	FormatCSV  = "csv"
	FormatJSON = "json"
)

// WriteTrajectory writes tr to w in the named format.
func WriteTrajectory(w io.Writer, tr *epi.Trajectory, format string) error {
	switch strings.ToLower(format) {
	case FormatCSV:
		return WriteCSV(w, tr)
	case FormatJSON:
		return WriteJSON(w, tr)
	default:
		return fmt.Errorf("report: unknown trajectory format %q (want %s or %s)", format, FormatCSV, FormatJSON)
	}
}

func header() []string {
	cols := []string{"day"}
	for _, c := range epi.Compartments() {
		cols = append(cols, c.String())
	}
	return cols
}

// WriteCSV writes one row per sample: the day followed by the six
// compartments.
func WriteCSV(w io.Writer, tr *epi.Trajectory) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header()); err != nil {
		return err
	}
	row := make([]string, 1+epi.NumCompartments)
	for i, s := range tr.States {
		row[0] = strconv.FormatFloat(tr.Times[i], 'g', -1, 64)
		for j, v := range s {
			row[1+j] = strconv.FormatFloat(v, 'g', -1, 64)
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// Sample is one JSON trajectory record.
type Sample struct {
	Day         float64 `json:"day"`
	Susceptible float64 `json:"susceptible"`
	Exposed     float64 `json:"exposed"`
	Infected    float64 `json:"infected"`
	Recovered   float64 `json:"recovered"`
	Dead        float64 `json:"dead"`
	Vaccinated  float64 `json:"vaccinated"`
}

// WriteJSON writes the samples as a JSON array.
func WriteJSON(w io.Writer, tr *epi.Trajectory) error {
	samples := make([]Sample, tr.Len())
	for i, s := range tr.States {
		samples[i] = Sample{
			Day:         tr.Times[i],
			Susceptible: s[epi.S],
			Exposed:     s[epi.E],
			Infected:    s[epi.I],
			Recovered:   s[epi.R],
			Dead:        s[epi.D],
			Vaccinated:  s[epi.V],
		}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(samples)
}
