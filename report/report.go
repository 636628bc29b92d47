// Package report renders the holdout results of a run: a static SVG chart
// (gonum/plot) and an interactive HTML page (go-echarts).
package report

import (
	"github.com/YuminosukeSato/tabflow/artifact"
	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

// holdout is the data every chart is drawn from.
type holdout struct {
	title     string
	subtitle  string
	task      model.Task
	actual    []float64
	predicted []float64
	classes   []string
}

func newHoldout(a *artifact.RunArtifact) (*holdout, error) {
	if a == nil {
		return nil, errors.NewValidationError("artifact", "must not be nil", nil)
	}
	m := a.Metric
	if len(m.Actual) == 0 || len(m.Actual) != len(m.Predicted) {
		return nil, errors.NewValueError("report", "run has no holdout predictions")
	}
	h := &holdout{
		title:     "Run " + a.ID,
		subtitle:  a.Strategy + " on " + a.Target + ": " + m.String(),
		task:      a.Task,
		actual:    m.Actual,
		predicted: m.Predicted,
	}
	if a.Task == model.Classification {
		n := len(m.Confusion)
		if a.Mapping != nil && a.Mapping.Len() > n {
			n = a.Mapping.Len()
		}
		for _, v := range append(append([]float64(nil), m.Actual...), m.Predicted...) {
			if int(v)+1 > n {
				n = int(v) + 1
			}
		}
		h.classes = make([]string, n)
		for k := range h.classes {
			h.classes[k] = a.Mapping.Display(k)
		}
	}
	return h, nil
}

// classCounts returns how often each class occurs in v.
func (h *holdout) classCounts(v []float64) []float64 {
	out := make([]float64, len(h.classes))
	for _, x := range v {
		if k := int(x); k >= 0 && k < len(out) {
			out[k]++
		}
	}
	return out
}
