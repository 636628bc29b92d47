package tree

import (
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/metrics"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

func init() {
	gob.Register(&DecisionTreeClassifier{})
	gob.Register(&DecisionTreeRegressor{})
}

// DecisionTreeClassifier is a CART classifier. Labels are integer class codes
// in [0, NClasses).
type DecisionTreeClassifier struct {
	Params
	State    *model.StateManager
	Tree     *Tree
	NClasses int
}

// NewDecisionTreeClassifier returns a classifier using the gini criterion
// and no depth limit unless overridden.
func NewDecisionTreeClassifier(opts ...Option) *DecisionTreeClassifier {
	p := defaultParams("gini")
	for _, o := range opts {
		o(&p)
	}
	return &DecisionTreeClassifier{Params: p, State: model.NewStateManager()}
}

// Fit grows the tree on X and class codes y.
func (dt *DecisionTreeClassifier) Fit(X, y mat.Matrix) error {
	r, _, err := checkFitInput("DecisionTreeClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	labels := make([]float64, r)
	mat.Col(labels, 0, y)
	nClasses, err := CountClasses("DecisionTreeClassifier.Fit", labels)
	if err != nil {
		return err
	}
	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	return dt.FitIndices(NewColumns(X), labels, idx, nClasses)
}

// FitIndices grows the tree on the samples listed in idx, which may repeat
// (bootstrap samples). nClasses fixes the width of the class distribution so
// that trees fitted on subsets stay aligned.
func (dt *DecisionTreeClassifier) FitIndices(cols Columns, y []float64, idx []int, nClasses int) error {
	if dt.Criterion != "gini" && dt.Criterion != "entropy" {
		return errors.NewValidationError("criterion", "must be gini or entropy", dt.Criterion)
	}
	if err := dt.Params.validate(); err != nil {
		return err
	}
	t, err := build(dt.Params, cols, y, idx, nClasses)
	if err != nil {
		return err
	}
	dt.Tree = t
	dt.NClasses = nClasses
	if dt.State == nil {
		dt.State = model.NewStateManager()
	}
	dt.State.SetDimensions(len(cols), len(idx))
	dt.State.SetFitted()
	return nil
}

// CountClasses checks that labels are non-negative integer codes and returns
// the number of classes (largest code + 1).
func CountClasses(op string, labels []float64) (int, error) {
	maxCode := -1
	for _, v := range labels {
		if v < 0 || v != math.Trunc(v) {
			return 0, errors.NewValueError(op, fmt.Sprintf("class label %v is not a non-negative integer code", v))
		}
		if int(v) > maxCode {
			maxCode = int(v)
		}
	}
	return maxCode + 1, nil
}

func (dt *DecisionTreeClassifier) checkPredict(method string, X mat.Matrix) error {
	if dt.State == nil || dt.Tree == nil {
		return errors.NewNotFittedError("DecisionTreeClassifier", method)
	}
	if err := dt.State.RequireFitted("DecisionTreeClassifier", method); err != nil {
		return err
	}
	if _, c := X.Dims(); c != dt.Tree.NFeatures {
		return errors.NewDimensionError("DecisionTreeClassifier."+method, dt.Tree.NFeatures, c, 1)
	}
	return nil
}

// PredictProba returns an n×NClasses matrix of leaf class frequencies.
func (dt *DecisionTreeClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict("PredictProba", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, dt.NClasses, nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, dt.Tree.Leaf(X, i).Value)
	}
	return out, nil
}

// Predict returns the most frequent class of each sample's leaf. Ties go to
// the lower code.
func (dt *DecisionTreeClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := dt.checkPredict("Predict", X); err != nil {
		return nil, err
	}
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, float64(Argmax(dt.Tree.Leaf(X, i).Value)))
	}
	return out, nil
}

// Argmax returns the index of the largest value, preferring the first on ties.
func Argmax(v []float64) int {
	best := 0
	for k := 1; k < len(v); k++ {
		if v[k] > v[best] {
			best = k
		}
	}
	return best
}

// Score returns the accuracy on X, y.
func (dt *DecisionTreeClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVec("DecisionTreeClassifier.Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVec("DecisionTreeClassifier.Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyScore(yTrue, yPred)
}

// Classes returns the class codes the tree can predict.
func (dt *DecisionTreeClassifier) Classes() []int {
	out := make([]int, dt.NClasses)
	for i := range out {
		out[i] = i
	}
	return out
}

// GetFeatureImportances returns the normalized total impurity decrease per feature.
func (dt *DecisionTreeClassifier) GetFeatureImportances() []float64 {
	if dt.Tree == nil {
		return nil
	}
	return append([]float64(nil), dt.Tree.Importances...)
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeClassifier) GetDepth() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.Depth()
}

// GetNLeaves returns the number of leaves of the fitted tree.
func (dt *DecisionTreeClassifier) GetNLeaves() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.NLeaves()
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeClassifier) GetParams() map[string]interface{} {
	return dt.Params.getParams()
}

// SetParams updates hyperparameters by name.
func (dt *DecisionTreeClassifier) SetParams(params map[string]interface{}) error {
	return dt.Params.setParams(params)
}

func errInvalidParam(key string, v interface{}) error {
	return errors.NewValidationError(key, "invalid value", v)
}

func errUnknownParam(key string) error {
	return errors.NewValidationError(key, "unknown parameter", nil)
}
