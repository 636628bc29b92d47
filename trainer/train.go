package trainer

import (
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

// Train fits s on X, y. Every failure, including a panic inside the
// strategy, is returned as a TrainingError carrying the strategy name and
// the shape of X.
func Train(s Strategy, X, y mat.Matrix) (m model.Predictor, err error) {
	if s == nil {
		return nil, errors.NewValidationError("strategy", "must not be nil", nil)
	}
	name := NameOf(s)
	var rows, cols int
	if X != nil {
		rows, cols = X.Dims()
	}
	if rows == 0 || cols == 0 || y == nil {
		return nil, errors.NewTrainingError(name, rows, cols, errors.ErrEmptyData)
	}

	err = errors.SafeExecute("trainer."+name+".Fit", func() error {
		var fitErr error
		m, fitErr = s.Fit(X, y)
		return fitErr
	})
	if err == nil && m == nil {
		err = errors.Newf("strategy %s returned no model", name)
	}
	if err != nil {
		return nil, errors.NewTrainingError(name, rows, cols, err)
	}
	return m, nil
}
