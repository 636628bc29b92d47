package trainer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
	"gopkg.in/yaml.v3"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/linear"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/preprocessing"
	"github.com/YuminosukeSato/tabflow/sklearn/ensemble"
	"github.com/YuminosukeSato/tabflow/sklearn/tree"
)

func classificationData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(8, 2, []float64{
		0, 0, 0, 1, 1, 0, 1, 1,
		5, 5, 5, 6, 6, 5, 6, 6,
	})
	y := mat.NewDense(8, 1, []float64{0, 0, 0, 0, 1, 1, 1, 1})
	return X, y
}

func regressionData() (*mat.Dense, *mat.Dense) {
	X := mat.NewDense(6, 2, []float64{
		1, 0,
		2, 1,
		3, 0,
		4, 1,
		5, 0,
		6, 1,
	})
	y := mat.NewDense(6, 1, nil)
	for i := 0; i < 6; i++ {
		y.Set(i, 0, 2*X.At(i, 0)-3*X.At(i, 1)+1)
	}
	return X, y
}

func TestNewSelectsStrategyByName(t *testing.T) {
	tests := []struct {
		name string
		task model.Task
		want interface{}
	}{
		{RandomForestName, model.Classification, &ensemble.RandomForestClassifier{}},
		{RandomForestName, model.Regression, &ensemble.RandomForestRegressor{}},
		{DecisionTreeName, model.Classification, &tree.DecisionTreeClassifier{}},
		{DecisionTreeName, model.Regression, &tree.DecisionTreeRegressor{}},
		{LinearRegressionName, model.Regression, &linear.LinearRegression{}},
		{LogisticRegressionName, model.Classification, &preprocessing.Standardized{}},
	}

	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.task.String(), func(t *testing.T) {
			s, err := New(tt.name, Params{Task: tt.task, Values: map[string]interface{}{}})
			require.NoError(t, err)
			assert.Equal(t, tt.name, NameOf(s))

			X, y := classificationData()
			if tt.task == model.Regression {
				X, y = regressionData()
			}
			m, err := Train(s, X, y)
			require.NoError(t, err)
			assert.IsType(t, tt.want, m)

			pred, err := m.Predict(X)
			require.NoError(t, err)
			r, c := pred.Dims()
			assert.Equal(t, 1, c)
			xr, _ := X.Dims()
			assert.Equal(t, xr, r)
		})
	}
}

func TestNewUnknownStrategy(t *testing.T) {
	_, err := New("gradient_boosting", Params{})
	var val *errors.ValidationError
	require.True(t, errors.As(err, &val))
	assert.Equal(t, "strategy", val.ParamName)
}

func TestNewRejectsBadParams(t *testing.T) {
	var val *errors.ValidationError

	_, err := New(RandomForestName, Params{Task: model.Classification, Values: map[string]interface{}{"n_estimators": 0}})
	assert.True(t, errors.As(err, &val))

	_, err = New(DecisionTreeName, Params{Values: map[string]interface{}{"depth": 3}})
	assert.True(t, errors.As(err, &val))

	_, err = New(LinearRegressionName, Params{Task: model.Classification})
	assert.True(t, errors.As(err, &val))

	_, err = New(LinearRegressionName, Params{Values: map[string]interface{}{"fit_intercept": "no"}})
	assert.True(t, errors.As(err, &val))

	_, err = New(LogisticRegressionName, Params{Task: model.Regression})
	assert.True(t, errors.As(err, &val))

	_, err = New(LogisticRegressionName, Params{Task: model.Classification, Values: map[string]interface{}{"C": -1.0}})
	assert.True(t, errors.As(err, &val))
}

func TestLogisticRegressionStrategy(t *testing.T) {
	s, err := New(LogisticRegressionName, Params{
		Task:   model.Classification,
		Values: map[string]interface{}{"max_iter": 200},
	})
	require.NoError(t, err)

	X, y := classificationData()
	m, err := Train(s, X, y)
	require.NoError(t, err)
	st := m.(*preprocessing.Standardized)
	lr := st.Model.(*linear.LogisticRegression)
	assert.Equal(t, 200, lr.MaxIter)

	pred, err := m.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 8; i++ {
		assert.Equal(t, y.At(i, 0), pred.At(i, 0))
	}
}

func TestRandomForestUsesParams(t *testing.T) {
	s, err := New(RandomForestName, Params{
		Task:   model.Classification,
		Values: map[string]interface{}{"n_estimators": 4, "random_state": 1},
	})
	require.NoError(t, err)

	X, y := classificationData()
	m, err := Train(s, X, y)
	require.NoError(t, err)
	rf := m.(*ensemble.RandomForestClassifier)
	assert.Len(t, rf.Estimators, 4)
	assert.Equal(t, int64(1), rf.RandomState)
}

func TestLinearRegressionStandardize(t *testing.T) {
	s, err := New(LinearRegressionName, Params{Values: map[string]interface{}{"standardize": true}})
	require.NoError(t, err)

	X, y := regressionData()
	m, err := Train(s, X, y)
	require.NoError(t, err)
	require.IsType(t, &preprocessing.Standardized{}, m)

	pred, err := m.Predict(X)
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		assert.InDelta(t, y.At(i, 0), pred.At(i, 0), 1e-8)
	}
}

// Whole numbers in YAML decode as int, so every numeric parameter must
// accept int as well as float64.
func TestNewAcceptsYAMLDecodedParams(t *testing.T) {
	tests := []struct {
		name string
		task model.Task
		yaml string
	}{
		{LinearRegressionName, model.Regression, "rcond: 0\nfit_intercept: true"},
		{LinearRegressionName, model.Regression, "rcond: 1.0e-10"},
		{LogisticRegressionName, model.Classification, "C: 2\nmax_iter: 50\ntol: 0"},
		{RandomForestName, model.Classification, "n_estimators: 3\nmax_depth: 4\nrandom_state: 7"},
		{DecisionTreeName, model.Regression, "max_depth: 3\nmin_impurity_decrease: 0"},
	}
	for _, tt := range tests {
		t.Run(tt.name+"/"+tt.yaml, func(t *testing.T) {
			var values map[string]interface{}
			require.NoError(t, yaml.Unmarshal([]byte(tt.yaml), &values))

			s, err := New(tt.name, Params{Task: tt.task, Values: values})
			require.NoError(t, err)

			X, y := regressionData()
			if tt.task == model.Classification {
				X, y = classificationData()
			}
			_, err = Train(s, X, y)
			require.NoError(t, err)
		})
	}

	_, err := New(LinearRegressionName, Params{Values: map[string]interface{}{"rcond": -1}})
	var ve *errors.ValidationError
	require.True(t, errors.As(err, &ve))
	assert.Equal(t, "rcond", ve.ParamName)
}

func TestTrainSingleClass(t *testing.T) {
	s, err := New(RandomForestName, Params{Task: model.Classification, Values: map[string]interface{}{"n_estimators": 2}})
	require.NoError(t, err)

	X, _ := classificationData()
	y := mat.NewDense(8, 1, nil)
	_, err = Train(s, X, y)

	var te *errors.TrainingError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, RandomForestName, te.Strategy)
	assert.Equal(t, 8, te.Rows)
	assert.Equal(t, 2, te.Cols)
	assert.True(t, errors.Is(err, errors.ErrSingleClass))
}

func TestTrainZeroRows(t *testing.T) {
	s, err := New(DecisionTreeName, Params{Task: model.Classification})
	require.NoError(t, err)

	_, err = Train(s, &mat.Dense{}, &mat.Dense{})
	var te *errors.TrainingError
	require.True(t, errors.As(err, &te))
	assert.True(t, errors.Is(err, errors.ErrEmptyData))
}

func TestTrainFitErrorIsWrapped(t *testing.T) {
	s, err := New(LinearRegressionName, Params{})
	require.NoError(t, err)

	X, _ := regressionData()
	_, err = Train(s, X, mat.NewDense(3, 1, nil))
	var te *errors.TrainingError
	require.True(t, errors.As(err, &te))
	var dim *errors.DimensionError
	assert.True(t, errors.As(err, &dim))
}

type panicking struct{}

func (panicking) Fit(X, y mat.Matrix) (model.Predictor, error) {
	panic("index out of range")
}

type nothing struct{}

func (nothing) Name() string { return "nothing" }

func (nothing) Fit(X, y mat.Matrix) (model.Predictor, error) { return nil, nil }

func TestTrainRecoversPanics(t *testing.T) {
	X, y := classificationData()
	_, err := Train(panicking{}, X, y)

	var te *errors.TrainingError
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "trainer.panicking", te.Strategy)
	var pe *errors.PanicError
	assert.True(t, errors.As(err, &pe))

	_, err = Train(nothing{}, X, y)
	require.True(t, errors.As(err, &te))
	assert.Equal(t, "nothing", te.Strategy)
}

func TestRegister(t *testing.T) {
	require.NoError(t, Register("test_nothing", func(Params) (Strategy, error) { return nothing{}, nil }))
	assert.Contains(t, Names(), "test_nothing")

	s, err := New("test_nothing", Params{})
	require.NoError(t, err)
	assert.Equal(t, "nothing", NameOf(s))

	var val *errors.ValidationError
	assert.True(t, errors.As(Register("test_nothing", nil), &val))
	assert.True(t, errors.As(Register(RandomForestName, newRandomForest), &val))
}
