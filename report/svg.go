package report

import (
	"image/color"
	"io"
	"math"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/YuminosukeSato/tabflow/artifact"
	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

var (
	actualColor    = color.RGBA{R: 50, G: 50, B: 255, A: 255}
	predictedColor = color.RGBA{R: 255, G: 120, A: 255}
)

// WriteSVG draws the holdout of a as SVG: predicted against actual values
// for regression runs, per-class counts for classification runs.
func WriteSVG(w io.Writer, a *artifact.RunArtifact) error {
	h, err := newHoldout(a)
	if err != nil {
		return err
	}

	p := plot.New()
	p.Title.Text = h.title + " (" + h.subtitle + ")"
	if h.task == model.Classification {
		err = classificationPlot(p, h)
	} else {
		err = regressionPlot(p, h)
	}
	if err != nil {
		return err
	}

	wt, err := p.WriterTo(6*vg.Inch, 4*vg.Inch, "svg")
	if err != nil {
		return errors.Wrap(err, "create svg canvas")
	}
	if _, err := wt.WriteTo(w); err != nil {
		return errors.Wrap(err, "write svg")
	}
	return nil
}

func regressionPlot(p *plot.Plot, h *holdout) error {
	p.X.Label.Text = "Actual"
	p.Y.Label.Text = "Predicted"

	pts := make(plotter.XYs, len(h.actual))
	lo, hi := math.Inf(1), math.Inf(-1)
	for i := range h.actual {
		pts[i].X = h.actual[i]
		pts[i].Y = h.predicted[i]
		lo = math.Min(lo, math.Min(h.actual[i], h.predicted[i]))
		hi = math.Max(hi, math.Max(h.actual[i], h.predicted[i]))
	}
	s, err := plotter.NewScatter(pts)
	if err != nil {
		return errors.Wrap(err, "holdout scatter")
	}
	s.Color = actualColor
	p.Add(s)

	// perfect predictions lie on y = x
	l, err := plotter.NewLine(plotter.XYs{{X: lo, Y: lo}, {X: hi, Y: hi}})
	if err != nil {
		return errors.Wrap(err, "identity line")
	}
	l.Color = predictedColor
	l.LineStyle.Width = vg.Points(1.5)
	p.Add(l, plotter.NewGrid())
	p.Legend.Add("holdout", s)
	p.Legend.Add("y = x", l)
	return nil
}

func classificationPlot(p *plot.Plot, h *holdout) error {
	p.Y.Label.Text = "Holdout rows"
	width := vg.Points(14)

	actual, err := plotter.NewBarChart(plotter.Values(h.classCounts(h.actual)), width)
	if err != nil {
		return errors.Wrap(err, "actual bars")
	}
	actual.Color = actualColor
	actual.Offset = -width / 2

	predicted, err := plotter.NewBarChart(plotter.Values(h.classCounts(h.predicted)), width)
	if err != nil {
		return errors.Wrap(err, "predicted bars")
	}
	predicted.Color = predictedColor
	predicted.Offset = width / 2

	p.Add(actual, predicted)
	p.Legend.Add("actual", actual)
	p.Legend.Add("predicted", predicted)
	p.Legend.Top = true
	p.NominalX(h.classes...)
	return nil
}
