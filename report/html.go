package report

import (
	"io"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"

	"github.com/YuminosukeSato/tabflow/artifact"
	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

// Page builds the interactive report of a: actual and predicted values per
// holdout row, plus residuals (regression) or per-class counts
// (classification).
func Page(a *artifact.RunArtifact) (*components.Page, error) {
	h, err := newHoldout(a)
	if err != nil {
		return nil, err
	}
	page := components.NewPage()
	page.AddCharts(holdoutLine(h))
	if h.task == model.Classification {
		page.AddCharts(classBars(h))
	} else {
		page.AddCharts(residualLine(h))
	}
	return page, nil
}

// WriteHTML renders Page(a) to w.
func WriteHTML(w io.Writer, a *artifact.RunArtifact) error {
	page, err := Page(a)
	if err != nil {
		return err
	}
	if err := page.Render(w); err != nil {
		return errors.Wrap(err, "render report page")
	}
	return nil
}

func rowAxis(n int) []string {
	x := make([]string, n)
	for i := range x {
		x[i] = strconv.Itoa(i)
	}
	return x
}

func lineData(v []float64) []opts.LineData {
	out := make([]opts.LineData, 0, len(v))
	for _, x := range v {
		out = append(out, opts.LineData{Value: x})
	}
	return out
}

func holdoutLine(h *holdout) *charts.Line {
	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: h.title}),
		charts.WithTitleOpts(opts.Title{
			Title:    h.title,
			Subtitle: h.subtitle,
		}),
		charts.WithTooltipOpts(opts.Tooltip{Trigger: "axis"}),
	)
	line.SetXAxis(rowAxis(len(h.actual))).
		AddSeries("Actual", lineData(h.actual)).
		AddSeries("Predicted", lineData(h.predicted))
	return line
}

func residualLine(h *holdout) *charts.Line {
	residuals := make([]float64, len(h.actual))
	for i := range residuals {
		residuals[i] = h.actual[i] - h.predicted[i]
	}
	line := charts.NewLine()
	line.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Holdout residual"}))
	line.SetXAxis(rowAxis(len(residuals))).AddSeries("Residual", lineData(residuals))
	return line
}

func classBars(h *holdout) *charts.Bar {
	barData := func(v []float64) []opts.BarData {
		out := make([]opts.BarData, 0, len(v))
		for _, x := range v {
			out = append(out, opts.BarData{Value: x})
		}
		return out
	}
	bar := charts.NewBar()
	bar.SetGlobalOptions(charts.WithTitleOpts(opts.Title{Title: "Holdout class counts"}))
	bar.SetXAxis(h.classes).
		AddSeries("Actual", barData(h.classCounts(h.actual))).
		AddSeries("Predicted", barData(h.classCounts(h.predicted)))
	return bar
}
