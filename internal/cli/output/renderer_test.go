package output_test

import (
	"bytes"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SIR-SEE/final-project-team-15/internal/cli/output"
	"github.com/SIR-SEE/final-project-team-15/internal/cli/testutil"
)

func TestMode(t *testing.T) {
	tests := []struct {
		in   string
		want output.OutputMode
	}{
		{"", output.ModeAuto},
		{"auto", output.ModeAuto},
		{"TEXT", output.ModeText},
		{" markdown ", output.ModeMarkdown},
		{"json", output.ModeJSON},
		{"html", output.ModeAuto},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, output.Mode(tt.in))
		})
	}
}

func TestRenderer_EffectiveMode(t *testing.T) {
	assert.Equal(t, output.ModeText, testutil.NewTestRenderer(output.ModeAuto, true).EffectiveMode())
	assert.Equal(t, output.ModeMarkdown, testutil.NewTestRenderer(output.ModeAuto, false).EffectiveMode())
	assert.Equal(t, output.ModeJSON, testutil.NewTestRenderer(output.ModeJSON, true).EffectiveMode())

	// a bytes.Buffer is never a terminal
	r := output.NewRenderer(&bytes.Buffer{}, &bytes.Buffer{}, output.ModeAuto)
	assert.False(t, r.IsTTY())
}

func TestRenderer_Markdown(t *testing.T) {
	tr := testutil.NewTestRenderer(output.ModeMarkdown, false)
	tr.Header("Summary")
	tr.KeyValues([]output.KeyValue{{Key: "Peak", Value: "day 62.0"}})
	tr.Table([]string{"Day", "Infected"}, [][]string{{"0", "0"}, {"60", "1,234"}})
	tr.Success("done")

	out := tr.Output()
	testutil.AssertNoANSI(t, out)
	testutil.AssertValidMarkdown(t, out)
	assert.Contains(t, out, "## Summary")
	assert.Contains(t, out, "- **Peak:** day 62.0")
	assert.Contains(t, out, "| Day | Infected |")
	assert.Contains(t, out, "| 60 | 1,234 |")
	assert.Contains(t, out, "done")
}

func TestRenderer_TextWithoutTTYHasNoANSI(t *testing.T) {
	tr := testutil.NewTestRenderer(output.ModeText, false)
	tr.Header("Summary")
	tr.KeyValues([]output.KeyValue{{Key: "Deaths", Value: "12"}, {Key: "Vaccinated", Value: "3"}})
	tr.Table([]string{"A"}, [][]string{{"1"}})
	tr.Warning("careful")

	testutil.AssertNoANSI(t, tr.Output())
	assert.Contains(t, tr.Output(), "Deaths:")
	assert.Contains(t, tr.Output(), "╭")
	assert.Contains(t, tr.ErrorOutput(), "careful")
	assert.NotContains(t, tr.Output(), "careful")
}

func TestRenderer_JSON(t *testing.T) {
	tr := testutil.NewTestRenderer(output.ModeJSON, false)
	tr.Header("ignored")
	tr.Success("ignored")
	require.NoError(t, tr.JSON(map[string]float64{"peak": 1.5}))

	var got map[string]float64
	require.NoError(t, json.Unmarshal(tr.Out.Bytes(), &got))
	assert.Equal(t, 1.5, got["peak"])
	assert.False(t, strings.Contains(tr.Output(), "ignored"))
}

func TestFormatters(t *testing.T) {
	assert.Equal(t, "1,234,568", output.People(1234567.6))
	assert.Equal(t, "12.50%", output.Percent(0.125))
	assert.Equal(t, "day 62.5", output.Day(62.5))
	assert.Equal(t, "day 60", output.Day(60))
	assert.Equal(t, "500,000", output.Count(500000))
	assert.Equal(t, "Time To Peak", output.Title("time_to_peak"))
	assert.Equal(t, "### x", output.FormatHeader(3, "x"))
	assert.Equal(t, "```yaml\na: 1\n```", output.FormatCodeBlock("yaml", "a: 1\n"))
}
