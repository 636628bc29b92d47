// Package ensemble implements random forests on top of sklearn/tree.
//
// Every tree draws its bootstrap sample and feature subsets from its own
// source seeded with RandomState+i, so a forest is reproducible regardless of
// how the trees are scheduled across goroutines.
package ensemble

import (
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/core/parallel"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/sklearn/tree"
)

const (
	// DefaultNEstimators is the number of trees grown when not configured.
	DefaultNEstimators = 100
	// DefaultRandomState seeds the forest when not configured.
	DefaultRandomState int64 = 42
)

// ForestParams holds the hyperparameters of both forests.
type ForestParams struct {
	NEstimators     int
	Criterion       string
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxFeatures is the number of features tried at each split. 0 selects
	// sqrt(n_features) for classifiers and every feature for regressors.
	MaxFeatures int
	Bootstrap   bool
	RandomState int64
}

// Option configures a forest.
type Option func(*ForestParams)

func WithNEstimators(n int) Option { return func(p *ForestParams) { p.NEstimators = n } }
func WithCriterion(c string) Option { return func(p *ForestParams) { p.Criterion = c } }
func WithMaxDepth(d int) Option { return func(p *ForestParams) { p.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option { return func(p *ForestParams) { p.MinSamplesSplit = n } }
func WithMinSamplesLeaf(n int) Option { return func(p *ForestParams) { p.MinSamplesLeaf = n } }
func WithMaxFeatures(k int) Option { return func(p *ForestParams) { p.MaxFeatures = k } }
func WithBootstrap(b bool) Option { return func(p *ForestParams) { p.Bootstrap = b } }
func WithRandomState(seed int64) Option { return func(p *ForestParams) { p.RandomState = seed } }

func defaultForestParams(criterion string) ForestParams {
	return ForestParams{
		NEstimators:     DefaultNEstimators,
		Criterion:       criterion,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
		Bootstrap:       true,
		RandomState:     DefaultRandomState,
	}
}

// GetParams returns the hyperparameters keyed by their configuration names.
func (p *ForestParams) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"n_estimators":      p.NEstimators,
		"criterion":         p.Criterion,
		"max_depth":         p.MaxDepth,
		"min_samples_split": p.MinSamplesSplit,
		"min_samples_leaf":  p.MinSamplesLeaf,
		"max_features":      p.MaxFeatures,
		"bootstrap":         p.Bootstrap,
		"random_state":      p.RandomState,
	}
}

// SetParams updates hyperparameters by name. Numbers may arrive as int,
// int64 or float64 (decoded YAML/JSON).
func (p *ForestParams) SetParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "n_estimators":
			p.NEstimators, err = model.ParamInt(k, v)
		case "criterion":
			s, ok := v.(string)
			if !ok {
				return errors.NewValidationError(k, "must be a string", v)
			}
			p.Criterion = s
		case "max_depth":
			p.MaxDepth, err = model.ParamInt(k, v)
		case "min_samples_split":
			p.MinSamplesSplit, err = model.ParamInt(k, v)
		case "min_samples_leaf":
			p.MinSamplesLeaf, err = model.ParamInt(k, v)
		case "max_features":
			p.MaxFeatures, err = model.ParamInt(k, v)
		case "bootstrap":
			b, ok := v.(bool)
			if !ok {
				return errors.NewValidationError(k, "must be a boolean", v)
			}
			p.Bootstrap = b
		case "random_state":
			var n int
			n, err = model.ParamInt(k, v)
			p.RandomState = int64(n)
		default:
			return errors.NewValidationError(k, "unknown parameter", v)
		}
		if err != nil {
			return err
		}
	}
	return p.validate()
}

func (p *ForestParams) validate() error {
	if p.NEstimators < 1 {
		return errors.NewValidationError("n_estimators", "must be at least 1", p.NEstimators)
	}
	if p.MaxFeatures < 0 {
		return errors.NewValidationError("max_features", "must not be negative", p.MaxFeatures)
	}
	return nil
}

func (p *ForestParams) treeOptions(i, maxFeatures int) []tree.Option {
	return []tree.Option{
		tree.WithCriterion(p.Criterion),
		tree.WithMaxDepth(p.MaxDepth),
		tree.WithMinSamplesSplit(p.MinSamplesSplit),
		tree.WithMinSamplesLeaf(p.MinSamplesLeaf),
		tree.WithMaxFeatures(maxFeatures),
		tree.WithRandomState(p.seed(i)),
	}
}

func (p *ForestParams) seed(i int) int64 { return p.RandomState + int64(i) }

// sample returns the row indices tree i is grown on.
func (p *ForestParams) sample(i, n int) []int {
	idx := make([]int, n)
	if !p.Bootstrap {
		for j := range idx {
			idx[j] = j
		}
		return idx
	}
	rng := rand.New(rand.NewSource(p.seed(i)))
	for j := range idx {
		idx[j] = rng.Intn(n)
	}
	return idx
}

// grow fits NEstimators trees in parallel and returns the error of the first
// failing tree.
func (p *ForestParams) grow(fit func(i int) error) error {
	return parallel.ForEach("RandomForest.Fit", p.NEstimators, fit)
}

func checkFitInput(op string, X, y mat.Matrix) ([]float64, error) {
	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return nil, errors.NewModelError(op, "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return nil, errors.NewDimensionError(op, r, ry, 0)
	}
	if cy != 1 {
		return nil, errors.NewValueError(op, "y must be a column vector")
	}
	if err := errors.CheckMatrix(op, X); err != nil {
		return nil, err
	}
	if err := errors.CheckMatrix(op, y); err != nil {
		return nil, err
	}
	labels := make([]float64, r)
	mat.Col(labels, 0, y)
	return labels, nil
}

func meanImportances(n int, each func(i int) []float64, nFeatures int) []float64 {
	out := make([]float64, nFeatures)
	for i := 0; i < n; i++ {
		for j, v := range each(i) {
			out[j] += v
		}
	}
	total := 0.0
	for _, v := range out {
		total += v
	}
	if total > 0 {
		for j := range out {
			out[j] /= total
		}
	}
	return out
}
