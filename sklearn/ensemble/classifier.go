package ensemble

import (
	"encoding/gob"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/core/parallel"
	"github.com/YuminosukeSato/tabflow/metrics"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/sklearn/tree"
)

func init() {
	gob.Register(&RandomForestClassifier{})
	gob.Register(&RandomForestRegressor{})
}

// RandomForestClassifier averages the class distributions of bootstrapped
// CART classifiers.
type RandomForestClassifier struct {
	ForestParams
	State      *model.StateManager
	Estimators []*tree.DecisionTreeClassifier
	NClasses   int
	NFeatures  int
}

// NewRandomForestClassifier returns a forest of 100 gini trees seeded with 42.
func NewRandomForestClassifier(opts ...Option) *RandomForestClassifier {
	p := defaultForestParams("gini")
	for _, o := range opts {
		o(&p)
	}
	return &RandomForestClassifier{ForestParams: p, State: model.NewStateManager()}
}

// Fit grows the forest on X and class codes y.
func (rf *RandomForestClassifier) Fit(X, y mat.Matrix) error {
	if err := rf.validate(); err != nil {
		return err
	}
	labels, err := checkFitInput("RandomForestClassifier.Fit", X, y)
	if err != nil {
		return err
	}
	nClasses, err := tree.CountClasses("RandomForestClassifier.Fit", labels)
	if err != nil {
		return err
	}

	r, c := X.Dims()
	maxFeatures := rf.MaxFeatures
	if maxFeatures == 0 {
		maxFeatures = int(math.Max(1, math.Floor(math.Sqrt(float64(c)))))
	}
	cols := tree.NewColumns(X)
	estimators := make([]*tree.DecisionTreeClassifier, rf.NEstimators)
	err = rf.grow(func(i int) error {
		t := tree.NewDecisionTreeClassifier(rf.treeOptions(i, maxFeatures)...)
		if err := t.FitIndices(cols, labels, rf.sample(i, r), nClasses); err != nil {
			return err
		}
		estimators[i] = t
		return nil
	})
	if err != nil {
		return err
	}

	rf.Estimators = estimators
	rf.NClasses = nClasses
	rf.NFeatures = c
	if rf.State == nil {
		rf.State = model.NewStateManager()
	}
	rf.State.SetDimensions(c, r)
	rf.State.SetFitted()
	return nil
}

func (rf *RandomForestClassifier) checkPredict(method string, X mat.Matrix) error {
	if rf.State == nil || len(rf.Estimators) == 0 {
		return errors.NewNotFittedError("RandomForestClassifier", method)
	}
	if err := rf.State.RequireFitted("RandomForestClassifier", method); err != nil {
		return err
	}
	if _, c := X.Dims(); c != rf.NFeatures {
		return errors.NewDimensionError("RandomForestClassifier."+method, rf.NFeatures, c, 1)
	}
	return nil
}

// PredictProba returns the mean class distribution over all trees.
func (rf *RandomForestClassifier) PredictProba(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.checkPredict("PredictProba", X); err != nil {
		return nil, err
	}
	return rf.proba(X), nil
}

func (rf *RandomForestClassifier) proba(X mat.Matrix) *mat.Dense {
	r, _ := X.Dims()
	out := mat.NewDense(r, rf.NClasses, nil)
	scale := 1 / float64(len(rf.Estimators))
	parallel.ParallelizeWithThreshold(r, 1000, func(start, end int) {
		for i := start; i < end; i++ {
			row := out.RawRowView(i)
			for _, est := range rf.Estimators {
				for k, v := range est.Tree.Leaf(X, i).Value {
					row[k] += v * scale
				}
			}
		}
	})
	return out
}

// Predict returns the class with the highest mean probability. Ties go to
// the lower code.
func (rf *RandomForestClassifier) Predict(X mat.Matrix) (mat.Matrix, error) {
	if err := rf.checkPredict("Predict", X); err != nil {
		return nil, err
	}
	proba := rf.proba(X)
	r, _ := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, float64(tree.Argmax(proba.RawRowView(i))))
	}
	return out, nil
}

// Score returns the accuracy on X, y.
func (rf *RandomForestClassifier) Score(X, y mat.Matrix) (float64, error) {
	pred, err := rf.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVec("RandomForestClassifier.Score", y)
	if err != nil {
		return 0, err
	}
	yPred, err := metrics.ColumnVec("RandomForestClassifier.Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyScore(yTrue, yPred)
}

// Classes returns the class codes the forest can predict.
func (rf *RandomForestClassifier) Classes() []int {
	out := make([]int, rf.NClasses)
	for i := range out {
		out[i] = i
	}
	return out
}

// GetFeatureImportances returns the mean impurity decrease per feature.
func (rf *RandomForestClassifier) GetFeatureImportances() []float64 {
	return meanImportances(len(rf.Estimators), func(i int) []float64 {
		return rf.Estimators[i].GetFeatureImportances()
	}, rf.NFeatures)
}
