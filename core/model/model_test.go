package model

import (
	"bytes"
	"encoding/gob"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	tferrors "github.com/YuminosukeSato/tabflow/pkg/errors"
)

type constPredictor struct {
	BaseEstimator
	Value float64
}

func (c *constPredictor) Predict(X mat.Matrix) (mat.Matrix, error) {
	r, _ := X.Dims()
	out := mat.NewDense(r, 1, nil)
	for i := 0; i < r; i++ {
		out.Set(i, 0, c.Value)
	}
	return out, nil
}

func init() {
	gob.Register(&constPredictor{})
}

func TestSaveLoadPredictor(t *testing.T) {
	p := &constPredictor{Value: 3.5}
	p.SetFitted()

	var buf bytes.Buffer
	require.NoError(t, SavePredictor(p, &buf))

	loaded, err := LoadPredictor(&buf)
	require.NoError(t, err)
	restored, ok := loaded.(*constPredictor)
	require.True(t, ok)
	assert.True(t, restored.IsFitted())
	assert.Equal(t, 3.5, restored.Value)

	pred, err := loaded.Predict(mat.NewDense(2, 1, []float64{0, 0}))
	require.NoError(t, err)
	assert.Equal(t, 3.5, pred.At(1, 0))
}

func TestSavePredictorNil(t *testing.T) {
	var buf bytes.Buffer
	assert.Error(t, SavePredictor(nil, &buf))
}

func TestLoadPredictorGarbage(t *testing.T) {
	_, err := LoadPredictor(bytes.NewBufferString("not gob"))
	assert.Error(t, err)
}

func TestBaseEstimator(t *testing.T) {
	var e BaseEstimator
	assert.False(t, e.IsFitted())
	e.SetFitted()
	assert.True(t, e.IsFitted())
	e.Reset()
	assert.False(t, e.IsFitted())
}

func TestStateManager(t *testing.T) {
	s := NewStateManager()
	err := s.RequireFitted("RandomForestClassifier", "Predict")
	require.Error(t, err)
	var nf *tferrors.NotFittedError
	assert.True(t, tferrors.As(err, &nf))

	s.SetDimensions(4, 100)
	s.SetFitted()
	assert.NoError(t, s.RequireFitted("RandomForestClassifier", "Predict"))
	nFeatures, nSamples := s.GetDimensions()
	assert.Equal(t, 4, nFeatures)
	assert.Equal(t, 100, nSamples)

	s.Reset()
	assert.False(t, s.IsFitted())
}

func TestTaskText(t *testing.T) {
	tests := []struct {
		in   string
		want Task
		ok   bool
	}{
		{"classification", Classification, true},
		{"Regression", Regression, true},
		{"clustering", Regression, false},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var task Task
			err := task.UnmarshalText([]byte(tt.in))
			if !tt.ok {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, task)
			text, err := task.MarshalText()
			require.NoError(t, err)
			assert.Equal(t, tt.want.String(), string(text))
		})
	}
}
