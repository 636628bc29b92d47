// Package evaluate scores a fitted model on holdout data.
package evaluate

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/metrics"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

const (
	// Accuracy is the headline metric of classification runs.
	Accuracy = "accuracy"
	// R2 is the headline metric of regression runs.
	R2 = "r2"
)

// Metric is the result of Evaluate: the headline score plus the holdout
// targets and predictions it was computed from.
type Metric struct {
	Name  string     `json:"name"`
	Value float64    `json:"value"`
	Task  model.Task `json:"task"`

	// Details holds secondary scores: mse, rmse and mae for regression,
	// error_rate for classification.
	Details map[string]float64 `json:"details,omitempty"`
	// Confusion is the confusion matrix of classification runs, rows are
	// true classes.
	Confusion [][]int `json:"confusion,omitempty"`

	Actual    []float64 `json:"actual"`
	Predicted []float64 `json:"predicted"`
}

// String formats the headline score, e.g. "accuracy=0.9500".
func (m Metric) String() string {
	return fmt.Sprintf("%s=%.4f", m.Name, m.Value)
}

// Evaluate predicts X with m and compares the result with y. Accuracy is used
// for classification and R² for regression. X and y are not modified.
func Evaluate(m model.Predictor, X, y mat.Matrix, task model.Task) (Metric, error) {
	if m == nil {
		return Metric{}, errors.NewValidationError("model", "must not be nil", nil)
	}
	pred, err := m.Predict(X)
	if err != nil {
		return Metric{}, errors.Wrap(err, "evaluate: predict holdout")
	}
	yTrue, err := metrics.ColumnVec("Evaluate", y)
	if err != nil {
		return Metric{}, err
	}
	yPred, err := metrics.ColumnVec("Evaluate", pred)
	if err != nil {
		return Metric{}, err
	}

	out := Metric{
		Task:      task,
		Actual:    vecData(yTrue),
		Predicted: vecData(yPred),
		Details:   map[string]float64{},
	}

	switch task {
	case model.Classification:
		err = classification(&out, yTrue, yPred)
	case model.Regression:
		err = regression(&out, yTrue, yPred)
	default:
		err = errors.NewValidationError("task", "unknown task", task)
	}
	if err != nil {
		return Metric{}, err
	}
	return out, nil
}

func classification(out *Metric, yTrue, yPred *mat.VecDense) error {
	acc, err := metrics.AccuracyScore(yTrue, yPred)
	if err != nil {
		return err
	}
	out.Name = Accuracy
	out.Value = acc
	out.Details["error_rate"] = 1 - acc

	nClasses := int(mat.Max(yTrue))
	if p := int(mat.Max(yPred)); p > nClasses {
		nClasses = p
	}
	cm, err := metrics.ConfusionMatrix(yTrue, yPred, nClasses+1)
	if err != nil {
		return err
	}
	r, c := cm.Dims()
	out.Confusion = make([][]int, r)
	for i := 0; i < r; i++ {
		out.Confusion[i] = make([]int, c)
		for j := 0; j < c; j++ {
			out.Confusion[i][j] = int(cm.At(i, j))
		}
	}
	return nil
}

func regression(out *Metric, yTrue, yPred *mat.VecDense) error {
	r2, err := metrics.R2Score(yTrue, yPred)
	if err != nil {
		return err
	}
	out.Name = R2
	out.Value = r2

	for name, f := range map[string]func(a, b *mat.VecDense) (float64, error){
		"mse":  metrics.MSE,
		"rmse": metrics.RMSE,
		"mae":  metrics.MAE,
	} {
		v, err := f(yTrue, yPred)
		if err != nil {
			return err
		}
		out.Details[name] = v
	}
	return nil
}

func vecData(v *mat.VecDense) []float64 {
	out := make([]float64, v.Len())
	for i := range out {
		out[i] = v.AtVec(i)
	}
	return out
}
