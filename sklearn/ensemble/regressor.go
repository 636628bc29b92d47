package ensemble

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/core/parallel"
	"github.com/YuminosukeSato/tabflow/metrics"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/sklearn/tree"
)

// RandomForestRegressor averages the predictions of bootstrapped CART
// regressors.
type RandomForestRegressor struct {
	ForestParams
	State      *model.StateManager
	Estimators []*tree.DecisionTreeRegressor
	NFeatures  int
}

// NewRandomForestRegressor returns a forest of 100 squared-error trees
// seeded with 42.
func NewRandomForestRegressor(opts ...Option) *RandomForestRegressor {
	p := defaultForestParams("squared_error")
	for _, o := range opts {
		o(&p)
	}
	return &RandomForestRegressor{ForestParams: p, State: model.NewStateManager()}
}

// Fit grows the forest on X and targets y.
func (rf *RandomForestRegressor) Fit(X, y mat.Matrix) error {
	if err := rf.validate(); err != nil {
		return err
	}
	targets, err := checkFitInput("RandomForestRegressor.Fit", X, y)
	if err != nil {
		return err
	}

	r, c := X.Dims()
	cols := tree.NewColumns(X)
	estimators := make([]*tree.DecisionTreeRegressor, rf.NEstimators)
	err = rf.grow(func(i int) error {
		t := tree.NewDecisionTreeRegressor(rf.treeOptions(i, rf.MaxFeatures)...)
		if err := t.FitIndices(cols, targets, rf.sample(i, r)); err != nil {
			return err
		}
		estimators[i] = t
		return nil
	})
	if err != nil {
		return err
	}

	rf.Estimators = estimators
	rf.NFeatures = c
	if rf.State == nil {
		rf.State = model.NewStateManager()
	}
	rf.State.SetDimensions(c, r)
	rf.State.SetFitted()
	return nil
}

// Predict returns the mean tree prediction for each row.
func (rf *RandomForestRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if rf.State == nil || len(rf.Estimators) == 0 {
		return nil, errors.NewNotFittedError("RandomForestRegressor", "Predict")
	}
	if err := rf.State.RequireFitted("RandomForestRegressor", "Predict"); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	if c != rf.NFeatures {
		return nil, errors.NewDimensionError("RandomForestRegressor.Predict", rf.NFeatures, c, 1)
	}
	out := mat.NewDense(r, 1, nil)
	n := float64(len(rf.Estimators))
	parallel.ParallelizeWithThreshold(r, 1000, func(start, end int) {
		for i := start; i < end; i++ {
			sum := 0.0
			for _, est := range rf.Estimators {
				sum += est.Tree.Leaf(X, i).Value[0]
			}
			out.Set(i, 0, sum/n)
		}
	})
	return out, nil
}

// Score returns R² on X, y.
func (rf *RandomForestRegressor) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVec("RandomForestRegressor.Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVec("RandomForestRegressor.Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.R2Score(yTrue, yPred)
}

// GetFeatureImportances returns the mean variance reduction per feature.
func (rf *RandomForestRegressor) GetFeatureImportances() []float64 {
	return meanImportances(len(rf.Estimators), func(i int) []float64 {
		return rf.Estimators[i].GetFeatureImportances()
	}, rf.NFeatures)
}
