package report

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SIR-SEE/final-project-team-15/pkg/epi"
)

func sampleTrajectory() *epi.Trajectory {
	return &epi.Trajectory{
		Times: []float64{0, 0.5, 1},
		States: []epi.State{
			{99, 1, 0, 0, 0, 0},
			{98, 1.5, 0.5, 0, 0, 0},
			{97, 1.5, 1.25, 0.2, 0.05, 0},
		},
	}
}

func TestWriteCSV(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTrajectory(&buf, sampleTrajectory(), "CSV"))

	rows, err := csv.NewReader(&buf).ReadAll()
	require.NoError(t, err)
	require.Len(t, rows, 4)
	assert.Equal(t, []string{"day", "susceptible", "exposed", "infected", "recovered", "dead", "vaccinated"}, rows[0])
	assert.Equal(t, []string{"0.5", "98", "1.5", "0.5", "0", "0", "0"}, rows[2])
	assert.Equal(t, "1.25", rows[3][3])
}

func TestWriteJSON(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, WriteTrajectory(&buf, sampleTrajectory(), FormatJSON))

	var samples []Sample
	require.NoError(t, json.Unmarshal(buf.Bytes(), &samples))
	require.Len(t, samples, 3)
	assert.Equal(t, Sample{Day: 1, Susceptible: 97, Exposed: 1.5, Infected: 1.25, Recovered: 0.2, Dead: 0.05}, samples[2])
}

func TestWriteTrajectory_UnknownFormat(t *testing.T) {
	err := WriteTrajectory(&bytes.Buffer{}, sampleTrajectory(), "xlsx")
	assert.ErrorContains(t, err, "unknown trajectory format")
}

func TestNewPlot(t *testing.T) {
	p, err := NewPlot(sampleTrajectory(), PlotOptions{Title: "test"})
	require.NoError(t, err)
	assert.Equal(t, "Time (days)", p.X.Label.Text)
	assert.Equal(t, "test", p.Title.Text)

	_, err = NewPlot(&epi.Trajectory{}, PlotOptions{})
	assert.Error(t, err)
}

func TestLegendLabel(t *testing.T) {
	var labels []string
	for _, c := range epi.Compartments() {
		labels = append(labels, legendLabel(c))
	}
	assert.Equal(t, []string{"Susceptible", "Exposed", "Infected", "Recovered", "Dead", "Vaccinated"}, labels)
}

func TestSavePlot(t *testing.T) {
	path := filepath.Join(t.TempDir(), DefaultPlotFile)
	require.NoError(t, SavePlot(sampleTrajectory(), path, PlotOptions{}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(data, []byte("\x89PNG")), "file is a PNG")

	var buf bytes.Buffer
	require.NoError(t, WritePlot(&buf, sampleTrajectory(), PlotOptions{}))
	assert.True(t, bytes.HasPrefix(buf.Bytes(), []byte("\x89PNG")))
}
