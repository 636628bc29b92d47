package trainer

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/linear"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/preprocessing"
	"github.com/YuminosukeSato/tabflow/sklearn/ensemble"
	"github.com/YuminosukeSato/tabflow/sklearn/tree"
)

// RandomForest fits a RandomForestClassifier or RandomForestRegressor
// depending on the task.
type RandomForest struct {
	Task   model.Task
	Values map[string]interface{}
}

func newRandomForest(p Params) (Strategy, error) {
	s := &RandomForest{Task: p.Task, Values: p.Values}
	// apply once so bad hyperparameters surface at construction
	if _, err := s.estimator(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *RandomForest) Name() string { return RandomForestName }

type estimator interface {
	model.Fitter
	model.Predictor
}

func (s *RandomForest) estimator() (estimator, error) {
	if s.Task == model.Classification {
		rf := ensemble.NewRandomForestClassifier()
		return rf, rf.SetParams(s.Values)
	}
	rf := ensemble.NewRandomForestRegressor()
	return rf, rf.SetParams(s.Values)
}

// Fit grows a new forest on X, y.
func (s *RandomForest) Fit(X, y mat.Matrix) (model.Predictor, error) {
	return fitEstimator(s.Task, s.estimator, X, y)
}

// DecisionTree fits a single CART tree.
type DecisionTree struct {
	Task   model.Task
	Values map[string]interface{}
}

func newDecisionTree(p Params) (Strategy, error) {
	s := &DecisionTree{Task: p.Task, Values: p.Values}
	if _, err := s.estimator(); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *DecisionTree) Name() string { return DecisionTreeName }

func (s *DecisionTree) estimator() (estimator, error) {
	if s.Task == model.Classification {
		dt := tree.NewDecisionTreeClassifier()
		return dt, dt.SetParams(s.Values)
	}
	dt := tree.NewDecisionTreeRegressor()
	return dt, dt.SetParams(s.Values)
}

// Fit grows a new tree on X, y.
func (s *DecisionTree) Fit(X, y mat.Matrix) (model.Predictor, error) {
	return fitEstimator(s.Task, s.estimator, X, y)
}

func fitEstimator(task model.Task, build func() (estimator, error), X, y mat.Matrix) (model.Predictor, error) {
	if task == model.Classification {
		if err := requireClasses(y); err != nil {
			return nil, err
		}
	}
	est, err := build()
	if err != nil {
		return nil, err
	}
	if err := est.Fit(X, y); err != nil {
		return nil, err
	}
	return est, nil
}

// requireClasses fails when y holds fewer than two distinct labels.
func requireClasses(y mat.Matrix) error {
	r, _ := y.Dims()
	if r == 0 {
		return nil
	}
	first := y.At(0, 0)
	for i := 1; i < r; i++ {
		if y.At(i, 0) != first {
			return nil
		}
	}
	return errors.WithStack(errors.ErrSingleClass)
}

// LinearRegression fits ordinary least squares, optionally on standardized
// features. Only regression is supported.
type LinearRegression struct {
	FitIntercept bool
	Rcond        float64
	Standardize  bool
}

func newLinearRegression(p Params) (Strategy, error) {
	if p.Task != model.Regression {
		return nil, errors.NewValidationError("strategy", "linear_regression supports regression targets only", p.Task.String())
	}
	defaults := linear.NewLinearRegression()
	s := &LinearRegression{FitIntercept: defaults.FitIntercept, Rcond: defaults.Rcond}
	for k, v := range p.Values {
		switch k {
		case "fit_intercept":
			b, ok := v.(bool)
			if !ok {
				return nil, errors.NewValidationError(k, "must be a boolean", v)
			}
			s.FitIntercept = b
		case "standardize":
			b, ok := v.(bool)
			if !ok {
				return nil, errors.NewValidationError(k, "must be a boolean", v)
			}
			s.Standardize = b
		case "rcond":
			f, ok := model.ParamFloat(v)
			if !ok || f < 0 || math.IsNaN(f) {
				return nil, errors.NewValidationError(k, "must be a non-negative number", v)
			}
			s.Rcond = f
		default:
			return nil, errors.NewValidationError(k, "unknown parameter", v)
		}
	}
	return s, nil
}

func (s *LinearRegression) Name() string { return LinearRegressionName }

// Fit solves the least squares problem on X, y.
func (s *LinearRegression) Fit(X, y mat.Matrix) (model.Predictor, error) {
	lr := linear.NewLinearRegression(linear.WithFitIntercept(s.FitIntercept), linear.WithRcond(s.Rcond))
	if !s.Standardize {
		if err := lr.Fit(X, y); err != nil {
			return nil, err
		}
		return lr, nil
	}

	scaler := preprocessing.NewStandardScaler(true, true)
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		return nil, err
	}
	if err := lr.Fit(scaled, y); err != nil {
		return nil, err
	}
	return &preprocessing.Standardized{Scaler: scaler, Model: lr}, nil
}

// LogisticRegression fits an L2 regularized logistic classifier, on
// standardized features unless "standardize" is false. Only classification
// is supported.
type LogisticRegression struct {
	Values      map[string]interface{}
	Standardize bool
}

func newLogisticRegression(p Params) (Strategy, error) {
	if p.Task != model.Classification {
		return nil, errors.NewValidationError("strategy", "logistic_regression supports classification targets only", p.Task.String())
	}
	s := &LogisticRegression{Values: map[string]interface{}{}, Standardize: true}
	for k, v := range p.Values {
		if k == "standardize" {
			b, ok := v.(bool)
			if !ok {
				return nil, errors.NewValidationError(k, "must be a boolean", v)
			}
			s.Standardize = b
			continue
		}
		s.Values[k] = v
	}
	if err := linear.NewLogisticRegression().SetParams(s.Values); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *LogisticRegression) Name() string { return LogisticRegressionName }

// Fit runs gradient descent on X, y.
func (s *LogisticRegression) Fit(X, y mat.Matrix) (model.Predictor, error) {
	if err := requireClasses(y); err != nil {
		return nil, err
	}
	lr := linear.NewLogisticRegression()
	if err := lr.SetParams(s.Values); err != nil {
		return nil, err
	}
	if !s.Standardize {
		if err := lr.Fit(X, y); err != nil {
			return nil, err
		}
		return lr, nil
	}

	scaler := preprocessing.NewStandardScaler(true, true)
	scaled, err := scaler.FitTransform(X)
	if err != nil {
		return nil, err
	}
	if err := lr.Fit(scaled, y); err != nil {
		return nil, err
	}
	return &preprocessing.Standardized{Scaler: scaler, Model: lr}, nil
}
