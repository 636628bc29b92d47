package tree

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

func separable() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0, 0,
		0, 1,
		1, 0,
		1, 1,
		3, 3,
		3, 4,
		4, 3,
		4, 4,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

// TestDecisionTreeClassifier_FitPredict_Binary tests binary classification
func TestDecisionTreeClassifier_FitPredict_Binary(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier(WithCriterion("gini"), WithMaxDepth(5))
	require.NoError(t, dt.Fit(X, y))

	predictions, err := dt.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		assert.Equal(t, y.At(i, 0), predictions.At(i, 0), "sample %d", i)
	}

	XTest := mat.NewDense(2, 2, []float64{
		0.5, 0.5,
		3.5, 3.5,
	})
	testPreds, err := dt.Predict(XTest)
	require.NoError(t, err)
	assert.Equal(t, 0.0, testPreds.At(0, 0))
	assert.Equal(t, 1.0, testPreds.At(1, 0))

	// a single split separates the two groups
	assert.Equal(t, 1, dt.GetDepth())
	assert.Equal(t, 2, dt.GetNLeaves())
	assert.Equal(t, []int{0, 1}, dt.Classes())
}

// TestDecisionTreeClassifier_PredictProba tests probability predictions
func TestDecisionTreeClassifier_PredictProba(t *testing.T) {
	X := mat.NewDense(6, 1, []float64{0, 0, 0, 5, 5, 5})
	y := mat.NewDense(6, 1, []float64{0, 0, 1, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	proba, err := dt.PredictProba(mat.NewDense(2, 1, []float64{0, 5}))
	require.NoError(t, err)
	r, c := proba.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)

	// identical x values cannot be separated, so the left leaf stays mixed
	assert.InDelta(t, 2.0/3.0, proba.At(0, 0), 1e-12)
	assert.InDelta(t, 1.0/3.0, proba.At(0, 1), 1e-12)
	assert.InDelta(t, 0.0, proba.At(1, 0), 1e-12)
	assert.InDelta(t, 1.0, proba.At(1, 1), 1e-12)
}

// TestDecisionTreeClassifier_Score tests accuracy scoring
func TestDecisionTreeClassifier_Score(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	score, err := dt.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	flipped := mat.NewDense(8, 1, []float64{1, 1, 1, 1, 1, 1, 1, 1})
	score, err = dt.Score(X, flipped)
	require.NoError(t, err)
	assert.Equal(t, 0.5, score)
}

// TestDecisionTreeClassifier_Multiclass tests three well separated clusters
func TestDecisionTreeClassifier_Multiclass(t *testing.T) {
	X := mat.NewDense(9, 2, []float64{
		0, 0, 0, 1, 1, 0,
		5, 5, 5, 6, 6, 5,
		10, 0, 10, 1, 11, 0,
	})
	y := mat.NewDense(9, 1, []float64{0, 0, 0, 1, 1, 1, 2, 2, 2})

	for _, criterion := range []string{"gini", "entropy"} {
		t.Run(criterion, func(t *testing.T) {
			dt := NewDecisionTreeClassifier(WithCriterion(criterion))
			require.NoError(t, dt.Fit(X, y))
			assert.Equal(t, 3, dt.NClasses)

			pred, err := dt.Predict(X)
			require.NoError(t, err)
			for i := 0; i < 9; i++ {
				assert.Equal(t, y.At(i, 0), pred.At(i, 0))
			}

			proba, err := dt.PredictProba(X)
			require.NoError(t, err)
			for i := 0; i < 9; i++ {
				sum := 0.0
				for k := 0; k < 3; k++ {
					sum += proba.At(i, k)
				}
				assert.InDelta(t, 1.0, sum, 1e-12)
			}
		})
	}
}

// TestDecisionTreeClassifier_FeatureImportance checks that a constant
// column gets no importance
func TestDecisionTreeClassifier_FeatureImportance(t *testing.T) {
	X := mat.NewDense(6, 2, []float64{
		1, 7,
		2, 7,
		3, 7,
		4, 7,
		5, 7,
		6, 7,
	})
	y := mat.NewDense(6, 1, []float64{0, 0, 0, 1, 1, 1})

	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.Fit(X, y))

	imp := dt.GetFeatureImportances()
	require.Len(t, imp, 2)
	assert.InDelta(t, 1.0, imp[0], 1e-12)
	assert.Equal(t, 0.0, imp[1])
}

// TestDecisionTreeClassifier_MaxDepth tests depth limiting
func TestDecisionTreeClassifier_MaxDepth(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	y := mat.NewDense(8, 1, []float64{0, 1, 0, 1, 0, 1, 0, 1})

	unlimited := NewDecisionTreeClassifier()
	require.NoError(t, unlimited.Fit(X, y))
	score, err := unlimited.Score(X, y)
	require.NoError(t, err)
	assert.Equal(t, 1.0, score)

	for _, depth := range []int{1, 2} {
		dt := NewDecisionTreeClassifier(WithMaxDepth(depth))
		require.NoError(t, dt.Fit(X, y))
		assert.LessOrEqual(t, dt.GetDepth(), depth)
		assert.LessOrEqual(t, dt.GetNLeaves(), 1<<depth)
	}
}

// TestDecisionTreeClassifier_MinSamples tests leaf size constraints
func TestDecisionTreeClassifier_MinSamples(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	y := mat.NewDense(8, 1, []float64{0, 1, 0, 1, 0, 1, 0, 1})

	dt := NewDecisionTreeClassifier(WithMinSamplesLeaf(3))
	require.NoError(t, dt.Fit(X, y))
	for _, n := range dt.Tree.Nodes {
		if n.IsLeaf() {
			assert.GreaterOrEqual(t, n.NSamples, 3)
		}
	}

	// the root cannot be split when min_samples_split exceeds the data size
	dt = NewDecisionTreeClassifier(WithMinSamplesSplit(9))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1, dt.GetNLeaves())
}

func TestDecisionTreeClassifier_MinImpurityDecrease(t *testing.T) {
	X := mat.NewDense(8, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7})
	y := mat.NewDense(8, 1, []float64{0, 1, 0, 1, 0, 1, 0, 1})

	dt := NewDecisionTreeClassifier(WithMinImpurityDecrease(0.4))
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1, dt.GetNLeaves())
}

// TestDecisionTreeClassifier_GetSetParams tests parameter management
func TestDecisionTreeClassifier_GetSetParams(t *testing.T) {
	dt := NewDecisionTreeClassifier()

	params := dt.GetParams()
	assert.Equal(t, "gini", params["criterion"])
	assert.Equal(t, 2, params["min_samples_split"])
	assert.Equal(t, 0, params["max_depth"])

	err := dt.SetParams(map[string]interface{}{
		"criterion":         "entropy",
		"max_depth":         5,
		"min_samples_split": 4,
		"min_samples_leaf":  float64(2),
		"random_state":      int64(7),
	})
	require.NoError(t, err)
	assert.Equal(t, "entropy", dt.Criterion)
	assert.Equal(t, 5, dt.MaxDepth)
	assert.Equal(t, 4, dt.MinSamplesSplit)
	assert.Equal(t, 2, dt.MinSamplesLeaf)
	assert.Equal(t, int64(7), dt.RandomState)

	var verr *errors.ValidationError
	err = dt.SetParams(map[string]interface{}{"n_estimators": 3})
	assert.True(t, errors.As(err, &verr))
	err = dt.SetParams(map[string]interface{}{"max_depth": 1.5})
	assert.True(t, errors.As(err, &verr))
	err = dt.SetParams(map[string]interface{}{"min_samples_leaf": 0})
	assert.True(t, errors.As(err, &verr))
}

// TestDecisionTreeClassifier_NotFitted tests error when predicting without fitting
func TestDecisionTreeClassifier_NotFitted(t *testing.T) {
	dt := NewDecisionTreeClassifier()
	X := mat.NewDense(2, 2, []float64{1, 2, 3, 4})

	var nf *errors.NotFittedError
	_, err := dt.Predict(X)
	assert.True(t, errors.As(err, &nf))
	_, err = dt.PredictProba(X)
	assert.True(t, errors.As(err, &nf))
}

func TestDecisionTreeClassifier_InvalidInput(t *testing.T) {
	X, y := separable()
	dt := NewDecisionTreeClassifier()

	var dim *errors.DimensionError
	err := dt.Fit(X, mat.NewDense(3, 1, nil))
	assert.True(t, errors.As(err, &dim))

	var verr *errors.ValueError
	err = dt.Fit(X, mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1.5}))
	assert.True(t, errors.As(err, &verr))

	require.NoError(t, dt.Fit(X, y))
	_, err = dt.Predict(mat.NewDense(1, 3, nil))
	assert.True(t, errors.As(err, &dim))

	bad := NewDecisionTreeClassifier(WithCriterion("squared_error"))
	var val *errors.ValidationError
	assert.True(t, errors.As(bad.Fit(X, y), &val))
}

func TestCountClasses(t *testing.T) {
	n, err := CountClasses("test", []float64{0, 2, 1, 2})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	_, err = CountClasses("test", []float64{0, -1})
	assert.Error(t, err)
	_, err = CountClasses("test", []float64{math.NaN()})
	assert.Error(t, err)
}

func TestArgmax(t *testing.T) {
	assert.Equal(t, 0, Argmax([]float64{0.5, 0.5}))
	assert.Equal(t, 2, Argmax([]float64{0.1, 0.2, 0.7}))
	assert.Equal(t, 1, Argmax([]float64{0.2, 0.4, 0.4}))
}

func TestDecisionTreeClassifier_FitIndices(t *testing.T) {
	X, y := separable()
	labels := make([]float64, 8)
	mat.Col(labels, 0, y)

	// bootstrap style sample with repeats and only class 0 present
	dt := NewDecisionTreeClassifier()
	require.NoError(t, dt.FitIndices(NewColumns(X), labels, []int{0, 0, 1, 2}, 3))
	assert.Equal(t, 3, dt.NClasses)
	assert.Equal(t, 1, dt.GetNLeaves())

	proba, err := dt.PredictProba(X)
	require.NoError(t, err)
	_, c := proba.Dims()
	assert.Equal(t, 3, c)
	assert.Equal(t, 1.0, proba.At(7, 0))
	assert.Equal(t, 4, dt.Tree.Nodes[0].NSamples)
}

func TestDecisionTreeClassifier_RandomStateReproducible(t *testing.T) {
	X := mat.NewDense(10, 3, []float64{
		1, 5, 2,
		2, 4, 8,
		3, 3, 1,
		4, 2, 9,
		5, 1, 3,
		6, 0, 7,
		7, 9, 2,
		8, 8, 6,
		9, 7, 4,
		10, 6, 5,
	})
	y := mat.NewDense(10, 1, []float64{0, 1, 0, 1, 0, 1, 1, 0, 1, 0})

	a := NewDecisionTreeClassifier(WithMaxFeatures(1), WithRandomState(3))
	b := NewDecisionTreeClassifier(WithMaxFeatures(1), WithRandomState(3))
	require.NoError(t, a.Fit(X, y))
	require.NoError(t, b.Fit(X, y))
	assert.Equal(t, a.Tree.Nodes, b.Tree.Nodes)
}

func TestDecisionTreeRegressor_StepFunction(t *testing.T) {
	X := mat.NewDense(10, 1, []float64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9})
	y := mat.NewDense(10, 1, []float64{1, 1, 1, 1, 1, 10, 10, 10, 10, 10})

	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 1, dt.GetDepth())
	assert.InDelta(t, 4.5, dt.Tree.Nodes[0].Threshold, 1e-12)

	pred, err := dt.Predict(mat.NewDense(2, 1, []float64{2.5, 7.5}))
	require.NoError(t, err)
	assert.InDelta(t, 1.0, pred.At(0, 0), 1e-12)
	assert.InDelta(t, 10.0, pred.At(1, 0), 1e-12)

	score, err := dt.Score(X, y)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, score, 1e-12)
	assert.Equal(t, []float64{1}, dt.GetFeatureImportances())
}

func TestDecisionTreeRegressor_ConstantTarget(t *testing.T) {
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{3, 3, 3, 3})

	dt := NewDecisionTreeRegressor()
	require.NoError(t, dt.Fit(X, y))
	assert.Equal(t, 0, dt.GetDepth())

	pred, err := dt.Predict(X)
	require.NoError(t, err)
	assert.Equal(t, 3.0, pred.At(2, 0))
	assert.Equal(t, []float64{0}, dt.GetFeatureImportances())
}

func TestDecisionTreeRegressor_Errors(t *testing.T) {
	dt := NewDecisionTreeRegressor()
	var nf *errors.NotFittedError
	_, err := dt.Predict(mat.NewDense(1, 1, nil))
	assert.True(t, errors.As(err, &nf))

	bad := NewDecisionTreeRegressor(WithCriterion("gini"))
	err = bad.Fit(mat.NewDense(2, 1, []float64{1, 2}), mat.NewDense(2, 1, []float64{1, 2}))
	var val *errors.ValidationError
	assert.True(t, errors.As(err, &val))
	assert.Equal(t, "squared_error", NewDecisionTreeRegressor().GetParams()["criterion"])
}

func TestDecisionTree_Persistence(t *testing.T) {
	X, y := separable()
	clf := NewDecisionTreeClassifier()
	require.NoError(t, clf.Fit(X, y))

	var buf bytes.Buffer
	require.NoError(t, model.SavePredictor(clf, &buf))
	loaded, err := model.LoadPredictor(&buf)
	require.NoError(t, err)

	restored, ok := loaded.(*DecisionTreeClassifier)
	require.True(t, ok)
	assert.Equal(t, 2, restored.NClasses)

	want, err := clf.Predict(X)
	require.NoError(t, err)
	got, err := restored.Predict(X)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want, got))
}
