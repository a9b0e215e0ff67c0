// Package report turns trajectories into files: PNG plots and CSV or JSON
// exports.
package report

import (
	"fmt"
	"image/color"
	"io"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/SIR-SEE/final-project-team-15/pkg/epi"
)

// DefaultPlotFile is where plots go when no path is given.
const DefaultPlotFile = "Plot.png"

// Line colors in compartment order S, E, I, R, D, V.
var compartmentColors = [epi.NumCompartments]color.RGBA{
	{B: 255, A: 255},         // blue
	{R: 230, G: 200, A: 255}, // yellow
	{R: 255, A: 255},         // red
	{G: 160, A: 255},         // green
	{A: 255},                 // black
	{R: 255, B: 255, A: 255}, // magenta
}

// legendLabel names a compartment in full, as in "Susceptible".
func legendLabel(c epi.Compartment) string {
	return cases.Title(language.English).String(c.String())
}

// PlotOptions tunes NewPlot.
type PlotOptions struct {
	Title  string
	Width  vg.Length
	Height vg.Length
}

func (o PlotOptions) withDefaults() PlotOptions {
	if o.Width <= 0 {
		o.Width = 8 * vg.Inch
	}
	if o.Height <= 0 {
		o.Height = 5 * vg.Inch
	}
	return o
}

// NewPlot draws every compartment of tr against time.
func NewPlot(tr *epi.Trajectory, opts PlotOptions) (*plot.Plot, error) {
	if tr == nil || tr.Len() == 0 {
		return nil, fmt.Errorf("report: nothing to plot")
	}

	p := plot.New()
	p.Title.Text = opts.Title
	p.X.Label.Text = "Time (days)"
	p.Y.Label.Text = "People"
	p.Legend.Top = true
	p.Add(plotter.NewGrid())

	for _, c := range epi.Compartments() {
		pts := make(plotter.XYs, tr.Len())
		for i, s := range tr.States {
			pts[i].X = tr.Times[i]
			pts[i].Y = s[c]
		}
		line, err := plotter.NewLine(pts)
		if err != nil {
			return nil, fmt.Errorf("report: %s line: %w", c, err)
		}
		line.Color = compartmentColors[c]
		line.Width = vg.Points(1.5)
		p.Add(line)
		p.Legend.Add(legendLabel(c), line)
	}
	return p, nil
}

// SavePlot writes the plot of tr to path. The extension picks the format
// (.png, .svg, .pdf).
func SavePlot(tr *epi.Trajectory, path string, opts PlotOptions) error {
	opts = opts.withDefaults()
	p, err := NewPlot(tr, opts)
	if err != nil {
		return err
	}
	if err := p.Save(opts.Width, opts.Height, path); err != nil {
		return fmt.Errorf("report: saving plot: %w", err)
	}
	return nil
}

// WritePlot writes the plot of tr as a PNG image to w.
func WritePlot(w io.Writer, tr *epi.Trajectory, opts PlotOptions) error {
	opts = opts.withDefaults()
	p, err := NewPlot(tr, opts)
	if err != nil {
		return err
	}
	wt, err := p.WriterTo(opts.Width, opts.Height, "png")
	if err != nil {
		return fmt.Errorf("report: rendering plot: %w", err)
	}
	_, err = wt.WriteTo(w)
	return err
}
