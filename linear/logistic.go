package linear

import (
	"encoding/gob"
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/core/parallel"
	"github.com/YuminosukeSato/tabflow/metrics"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

func init() {
	gob.Register(&LogisticRegression{})
}

// LogisticRegression は L2 正則化付きロジスティック回帰分類器
// 2 クラスでは 1 本、それ以上では one-vs-rest でクラスごとに重みを持つ。
// ラベルは 0..k-1 のクラスコードであること
type LogisticRegression struct {
	State *model.StateManager

	C            float64 // 正則化の強さの逆数
	FitIntercept bool
	MaxIter      int
	Tol          float64 // 勾配の最大絶対値がこれを下回ったら停止

	Coef      [][]float64
	Intercept []float64
	NClasses  int
	NIter     []int
}

// LogisticOption configures a LogisticRegression.
type LogisticOption func(*LogisticRegression)

// WithC sets the inverse regularization strength. Default 1.
func WithC(c float64) LogisticOption {
	return func(lr *LogisticRegression) {
		lr.C = c
	}
}

// WithMaxIter sets the number of gradient descent iterations. Default 100.
func WithMaxIter(n int) LogisticOption {
	return func(lr *LogisticRegression) {
		lr.MaxIter = n
	}
}

// WithTol sets the gradient tolerance for early stopping. Default 1e-4.
func WithTol(tol float64) LogisticOption {
	return func(lr *LogisticRegression) {
		lr.Tol = tol
	}
}

// WithLogisticFitIntercept sets whether to fit the intercept. Default true.
func WithLogisticFitIntercept(fit bool) LogisticOption {
	return func(lr *LogisticRegression) {
		lr.FitIntercept = fit
	}
}

// NewLogisticRegression は新しいロジスティック回帰モデルを作成する
func NewLogisticRegression(opts ...LogisticOption) *LogisticRegression {
	lr := &LogisticRegression{
		State:        model.NewStateManager(),
		C:            1.0,
		FitIntercept: true,
		MaxIter:      100,
		Tol:          1e-4,
	}
	for _, o := range opts {
		o(lr)
	}
	return lr
}

func (lr *LogisticRegression) validate() error {
	if !(lr.C > 0) || math.IsInf(lr.C, 1) {
		return errors.NewValidationError("C", "must be positive and finite", lr.C)
	}
	if lr.MaxIter < 1 {
		return errors.NewValidationError("max_iter", "must be at least 1", lr.MaxIter)
	}
	if lr.Tol < 0 {
		return errors.NewValidationError("tol", "must be non-negative", lr.Tol)
	}
	return nil
}

// Fit はクラスコード y に対して勾配降下法で重みを学習する
// 重みはゼロから始めるので結果は決定的
func (lr *LogisticRegression) Fit(X, y mat.Matrix) error {
	if err := lr.validate(); err != nil {
		return err
	}
	r, c := X.Dims()
	ry, cy := y.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("LogisticRegression.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("LogisticRegression.Fit", r, ry, 0)
	}
	if cy != 1 {
		return errors.NewValueError("LogisticRegression.Fit", "y must be a column vector")
	}
	if err := errors.CheckMatrix("LogisticRegression.Fit", X); err != nil {
		return err
	}

	nClasses := 0
	for i := 0; i < r; i++ {
		v := y.At(i, 0)
		if v < 0 || v != math.Trunc(v) {
			return errors.NewValidationError("y", "labels must be non-negative class codes", v)
		}
		if int(v)+1 > nClasses {
			nClasses = int(v) + 1
		}
	}
	if nClasses < 2 {
		return errors.WithStack(errors.ErrSingleClass)
	}

	nModels := nClasses
	if nClasses == 2 {
		nModels = 1
	}
	lr.NClasses = nClasses
	lr.Coef = make([][]float64, nModels)
	lr.Intercept = make([]float64, nModels)
	lr.NIter = make([]int, nModels)

	// one-vs-rest は各クラス独立なので並列に学習する
	parallel.Parallelize(nModels, func(start, end int) {
		for k := start; k < end; k++ {
			positive := float64(k)
			if nModels == 1 {
				positive = 1
			}
			target := make([]float64, r)
			for i := 0; i < r; i++ {
				if y.At(i, 0) == positive {
					target[i] = 1
				}
			}
			lr.Coef[k], lr.Intercept[k], lr.NIter[k] = lr.fitBinary(X, target)
		}
	})

	lr.State.SetDimensions(c, r)
	lr.State.SetFitted()
	return nil
}

// fitBinary は学習率 1/(1+0.1*iter) の勾配降下で 1 本の重みを求める
func (lr *LogisticRegression) fitBinary(X mat.Matrix, target []float64) ([]float64, float64, int) {
	r, c := X.Dims()
	weights := make([]float64, c)
	intercept := 0.0
	lambda := 1.0 / lr.C
	grad := make([]float64, c)

	iter := 0
	for iter < lr.MaxIter {
		for j := range grad {
			grad[j] = 0
		}
		gradIntercept := 0.0
		for i := 0; i < r; i++ {
			z := intercept
			for j := 0; j < c; j++ {
				z += X.At(i, j) * weights[j]
			}
			diff := sigmoid(z) - target[i]
			gradIntercept += diff
			for j := 0; j < c; j++ {
				grad[j] += diff * X.At(i, j)
			}
		}

		maxGrad := 0.0
		gradIntercept /= float64(r)
		if lr.FitIntercept {
			maxGrad = math.Abs(gradIntercept)
		}
		for j := range grad {
			grad[j] = grad[j]/float64(r) + lambda*weights[j]
			maxGrad = math.Max(maxGrad, math.Abs(grad[j]))
		}

		rate := 1.0 / (1.0 + 0.1*float64(iter))
		for j := range weights {
			weights[j] -= rate * grad[j]
		}
		if lr.FitIntercept {
			intercept -= rate * gradIntercept
		}
		iter++
		if maxGrad < lr.Tol {
			break
		}
	}
	return weights, intercept, iter
}

func (lr *LogisticRegression) checkPredictInput(method string, X mat.Matrix) error {
	if err := lr.State.RequireFitted("LogisticRegression", method); err != nil {
		return err
	}
	nFeatures, _ := lr.State.GetDimensions()
	if _, c := X.Dims(); c != nFeatures {
		return errors.NewDimensionError("LogisticRegression."+method, nFeatures, c, 1)
	}
	return nil
}

// PredictProba はクラスごとの確率を返す (n_samples × n_classes)
// 多クラスでは one-vs-rest のスコアを softmax で正規化する
func (lr *LogisticRegression) PredictProba(X mat.Matrix) (*mat.Dense, error) {
	if err := lr.checkPredictInput("PredictProba", X); err != nil {
		return nil, err
	}
	r, c := X.Dims()
	out := mat.NewDense(r, lr.NClasses, nil)
	scores := make([]float64, len(lr.Coef))
	for i := 0; i < r; i++ {
		for k, w := range lr.Coef {
			s := lr.Intercept[k]
			for j := 0; j < c; j++ {
				s += X.At(i, j) * w[j]
			}
			scores[k] = s
		}
		if len(lr.Coef) == 1 {
			p := sigmoid(scores[0])
			out.Set(i, 0, 1-p)
			out.Set(i, 1, p)
			continue
		}
		maxScore := math.Inf(-1)
		for _, s := range scores {
			maxScore = math.Max(maxScore, s)
		}
		sum := 0.0
		for k, s := range scores {
			scores[k] = math.Exp(s - maxScore)
			sum += scores[k]
		}
		for k := range scores {
			out.Set(i, k, scores[k]/sum)
		}
	}
	return out, nil
}

// Predict は最も確率の高いクラスコードを返す。同率なら小さいコード
func (lr *LogisticRegression) Predict(X mat.Matrix) (mat.Matrix, error) {
	proba, err := lr.PredictProba(X)
	if err != nil {
		return nil, err
	}
	r, k := proba.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		best := 0
		for j := 1; j < k; j++ {
			if proba.At(i, j) > proba.At(i, best) {
				best = j
			}
		}
		out.Set(i, 0, float64(best))
	}
	return out, nil
}

// Score は正解率を返す
func (lr *LogisticRegression) Score(X, y mat.Matrix) (float64, error) {
	pred, err := lr.Predict(X)
	if err != nil {
		return 0, err
	}
	yTrue, err := metrics.ColumnVec("LogisticRegression.Score", y)
	if err != nil {
		return 0, err
	}
	yHat, err := metrics.ColumnVec("LogisticRegression.Score", pred)
	if err != nil {
		return 0, err
	}
	return metrics.AccuracyScore(yTrue, yHat)
}

// GetParams はハイパーパラメータを返す
func (lr *LogisticRegression) GetParams() map[string]interface{} {
	return map[string]interface{}{
		"C":             lr.C,
		"fit_intercept": lr.FitIntercept,
		"max_iter":      lr.MaxIter,
		"tol":           lr.Tol,
	}
}

// SetParams はハイパーパラメータを設定する。数値は YAML や JSON 由来の
// int と float64 のどちらでも受け付ける
func (lr *LogisticRegression) SetParams(params map[string]interface{}) error {
	for key, value := range params {
		switch key {
		case "C":
			f, ok := model.ParamFloat(value)
			if !ok {
				return errors.NewValidationError(key, "must be a number", value)
			}
			lr.C = f
		case "tol":
			f, ok := model.ParamFloat(value)
			if !ok {
				return errors.NewValidationError(key, "must be a number", value)
			}
			lr.Tol = f
		case "max_iter":
			f, ok := model.ParamFloat(value)
			if !ok || f != math.Trunc(f) {
				return errors.NewValidationError(key, "must be an integer", value)
			}
			lr.MaxIter = int(f)
		case "fit_intercept":
			b, ok := value.(bool)
			if !ok {
				return errors.NewValidationError(key, "must be a boolean", value)
			}
			lr.FitIntercept = b
		default:
			return errors.NewValidationError(key, "unknown parameter", value)
		}
	}
	return lr.validate()
}

func (lr *LogisticRegression) String() string {
	return fmt.Sprintf("LogisticRegression(C=%g, max_iter=%d, n_classes=%d)", lr.C, lr.MaxIter, lr.NClasses)
}

func sigmoid(z float64) float64 {
	return 1.0 / (1.0 + math.Exp(-z))
}
