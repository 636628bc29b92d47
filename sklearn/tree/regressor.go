package tree

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/metrics"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

// DecisionTreeRegressor is a CART regressor minimizing squared error.
type DecisionTreeRegressor struct {
	Params
	State *model.StateManager
	Tree  *Tree
}

// NewDecisionTreeRegressor returns a regressor with the squared_error criterion.
func NewDecisionTreeRegressor(opts ...Option) *DecisionTreeRegressor {
	p := defaultParams("squared_error")
	for _, o := range opts {
		o(&p)
	}
	return &DecisionTreeRegressor{Params: p, State: model.NewStateManager()}
}

// Fit grows the tree on X and targets y.
func (dt *DecisionTreeRegressor) Fit(X, y mat.Matrix) error {
	r, _, err := checkFitInput("DecisionTreeRegressor.Fit", X, y)
	if err != nil {
		return err
	}
	if err := errors.CheckMatrix("DecisionTreeRegressor.Fit", y); err != nil {
		return err
	}
	targets := make([]float64, r)
	mat.Col(targets, 0, y)
	idx := make([]int, r)
	for i := range idx {
		idx[i] = i
	}
	return dt.FitIndices(NewColumns(X), targets, idx)
}

// FitIndices grows the tree on the (possibly repeated) samples in idx.
func (dt *DecisionTreeRegressor) FitIndices(cols Columns, y []float64, idx []int) error {
	if dt.Criterion != "squared_error" {
		return errors.NewValidationError("criterion", "must be squared_error", dt.Criterion)
	}
	if err := dt.Params.validate(); err != nil {
		return err
	}
	t, err := build(dt.Params, cols, y, idx, 0)
	if err != nil {
		return err
	}
	dt.Tree = t
	if dt.State == nil {
		dt.State = model.NewStateManager()
	}
	dt.State.SetDimensions(len(cols), len(idx))
	dt.State.SetFitted()
	return nil
}

// Predict returns the mean target of each sample's leaf.
func (dt *DecisionTreeRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if dt.State == nil || dt.Tree == nil {
		return nil, errors.NewNotFittedError("DecisionTreeRegressor", "Predict")
	}
	if err := dt.State.RequireFitted("DecisionTreeRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if c != dt.Tree.NFeatures {
		return nil, errors.NewDimensionError("DecisionTreeRegressor.Predict", dt.Tree.NFeatures, c, 1)
	}
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, dt.Tree.Leaf(X, i).Value[0])
	}
	return out, nil
}

// Score returns R² on X, y.
func (dt *DecisionTreeRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := dt.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVec("DecisionTreeRegressor.Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVec("DecisionTreeRegressor.Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, yPred)
}

// GetFeatureImportances returns the normalized total variance reduction per feature.
func (dt *DecisionTreeRegressor) GetFeatureImportances() []float64 {
	if dt.Tree == nil {
		return nil
	}
	return append([]float64(nil), dt.Tree.Importances...)
}

// GetDepth returns the depth of the fitted tree.
func (dt *DecisionTreeRegressor) GetDepth() int {
	if dt.Tree == nil {
		return 0
	}
	return dt.Tree.Depth()
}

// GetParams returns the hyperparameters.
func (dt *DecisionTreeRegressor) GetParams() map[string]interface{} {
	return dt.Params.getParams()
}

// SetParams updates hyperparameters by name.
func (dt *DecisionTreeRegressor) SetParams(params map[string]interface{}) error {
	return dt.Params.setParams(params)
}
