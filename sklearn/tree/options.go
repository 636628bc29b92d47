package tree

import "github.com/YuminosukeSato/tabflow/core/model"

// Params holds the hyperparameters shared by the classifier and the regressor.
type Params struct {
	// Criterion is "gini" or "entropy" for classification and
	// "squared_error" for regression.
	Criterion string
	// MaxDepth limits the depth of the tree (root depth = 0). 0 means no limit.
	MaxDepth        int
	MinSamplesSplit int
	MinSamplesLeaf  int
	// MaxFeatures is the number of features sampled at each split.
	// 0 uses every feature.
	MaxFeatures         int
	MinImpurityDecrease float64
	// RandomState seeds feature sampling.
	RandomState int64
}

// Option configures a tree.
type Option func(*Params)

func WithCriterion(c string) Option { return func(p *Params) { p.Criterion = c } }
func WithMaxDepth(d int) Option     { return func(p *Params) { p.MaxDepth = d } }
func WithMinSamplesSplit(n int) Option {
	return func(p *Params) { p.MinSamplesSplit = n }
}
func WithMinSamplesLeaf(n int) Option {
	return func(p *Params) { p.MinSamplesLeaf = n }
}
func WithMaxFeatures(k int) Option { return func(p *Params) { p.MaxFeatures = k } }
func WithMinImpurityDecrease(v float64) Option {
	return func(p *Params) { p.MinImpurityDecrease = v }
}
func WithRandomState(seed int64) Option { return func(p *Params) { p.RandomState = seed } }

func defaultParams(criterion string) Params {
	return Params{
		Criterion:       criterion,
		MinSamplesSplit: 2,
		MinSamplesLeaf:  1,
	}
}

func (p *Params) getParams() map[string]interface{} {
	return map[string]interface{}{
		"criterion":             p.Criterion,
		"max_depth":             p.MaxDepth,
		"min_samples_split":     p.MinSamplesSplit,
		"min_samples_leaf":      p.MinSamplesLeaf,
		"max_features":          p.MaxFeatures,
		"min_impurity_decrease": p.MinImpurityDecrease,
		"random_state":          p.RandomState,
	}
}

// setParams accepts the keys of getParams. Integers may arrive as int,
// int64 or float64 (decoded JSON/YAML).
func (p *Params) setParams(params map[string]interface{}) error {
	for k, v := range params {
		var err error
		switch k {
		case "criterion":
			s, ok := v.(string)
			if !ok {
				return errInvalidParam(k, v)
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
		case "min_impurity_decrease":
			f, ok := model.ParamFloat(v)
			if !ok {
				return errInvalidParam(k, v)
			}
			p.MinImpurityDecrease = f
		case "random_state":
			var n int
			n, err = model.ParamInt(k, v)
			p.RandomState = int64(n)
		default:
			return errUnknownParam(k)
		}
		if err != nil {
			return err
		}
	}
	return p.validate()
}

func (p *Params) validate() error {
	if p.MaxDepth < 0 {
		return errInvalidParam("max_depth", p.MaxDepth)
	}
	if p.MinSamplesSplit < 2 {
		return errInvalidParam("min_samples_split", p.MinSamplesSplit)
	}
	if p.MinSamplesLeaf < 1 {
		return errInvalidParam("min_samples_leaf", p.MinSamplesLeaf)
	}
	if p.MaxFeatures < 0 {
		return errInvalidParam("max_features", p.MaxFeatures)
	}
	return nil
}
