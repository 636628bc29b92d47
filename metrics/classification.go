package metrics

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

// AccuracyScore は正解率（予測が一致した割合）を計算する
// 戻り値は常に[0, 1]の範囲
func AccuracyScore(yTrue, yPred *mat.VecDense) (float64, error) {
	n, err := checkPair("AccuracyScore", yTrue, yPred)
	if err != nil {
		return 0, err
	}

	correct := 0
	for i := 0; i < n; i++ {
		if yTrue.AtVec(i) == yPred.AtVec(i) {
			correct++
		}
	}
	return float64(correct) / float64(n), nil
}

// ClassificationError は誤分類率（1 - 正解率）を計算する
func ClassificationError(yTrue, yPred *mat.VecDense) (float64, error) {
	acc, err := AccuracyScore(yTrue, yPred)
	if err != nil {
		return 0, err
	}
	return 1 - acc, nil
}

// ConfusionMatrix は混同行列を計算する
// 行が正解クラス、列が予測クラス。ラベルは[0, nClasses)の整数コードであること
func ConfusionMatrix(yTrue, yPred *mat.VecDense, nClasses int) (*mat.Dense, error) {
	n, err := checkPair("ConfusionMatrix", yTrue, yPred)
	if err != nil {
		return nil, err
	}
	if nClasses <= 0 {
		return nil, errors.NewValidationError("nClasses", "must be positive", nClasses)
	}

	cm := mat.NewDense(nClasses, nClasses, nil)
	for i := 0; i < n; i++ {
		t, err := classCode("ConfusionMatrix", yTrue.AtVec(i), nClasses)
		if err != nil {
			return nil, err
		}
		p, err := classCode("ConfusionMatrix", yPred.AtVec(i), nClasses)
		if err != nil {
			return nil, err
		}
		cm.Set(t, p, cm.At(t, p)+1)
	}
	return cm, nil
}

func classCode(op string, v float64, nClasses int) (int, error) {
	if v != math.Trunc(v) || v < 0 || int(v) >= nClasses {
		return 0, errors.NewValueError(op, "label is not a class code in range")
	}
	return int(v), nil
}
