package errors

import (
	"bytes"
	"fmt"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewModelError(t *testing.T) {
	tests := []struct {
		name    string
		op      string
		kind    string
		err     error
		wantMsg string
	}{
		{
			name:    "with original error",
			op:      "Fit",
			kind:    "invalid input",
			err:     fmt.Errorf("test error"),
			wantMsg: "tabflow: Fit: invalid input: test error",
		},
		{
			name:    "without original error",
			op:      "Predict",
			kind:    "not fitted",
			err:     nil,
			wantMsg: "tabflow: Predict: not fitted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := NewModelError(tt.op, tt.kind, tt.err)

			assert.Equal(t, tt.wantMsg, err.Error())

			// スタックトレースの存在確認
			formatted := fmt.Sprintf("%+v", err)
			assert.Contains(t, formatted, "errors_test.go")

			var modelErr *ModelError
			assert.True(t, As(err, &modelErr))
		})
	}
}

func TestNewDimensionError(t *testing.T) {
	err := NewDimensionError("Predict", 10, 3, 1)

	want := "tabflow: Predict: dimension mismatch on axis 1 (features). Expected 10, got 3"
	assert.Equal(t, want, err.Error())

	var dimErr *DimensionError
	require.True(t, As(err, &dimErr))
	assert.Equal(t, 10, dimErr.Expected)
}

func TestPipelineErrorTaxonomy(t *testing.T) {
	cause := New("boom")

	tests := []struct {
		name    string
		err     error
		target  interface{}
		contain string
	}{
		{"unsupported format", NewUnsupportedFormatError("data.parquet", ".parquet", []string{".csv", ".zip"}), new(*UnsupportedFormatError), `".parquet"`},
		{"no data", NewNoDataFoundError("data.zip", "archive contains no .csv file"), new(*NoDataFoundError), "no .csv file"},
		{"missing column", NewMissingColumnError("disease", []string{"fever", "cough"}), new(*MissingColumnError), `"disease"`},
		{"training", NewTrainingError("random_forest", 0, 5, cause), new(*TrainingError), "0 rows x 5 columns"},
		{"schema by count", NewSchemaMismatchError([]string{"a", "b"}, nil, 3), new(*SchemaMismatchError), "3 values, model expects 2"},
		{"schema by name", NewSchemaMismatchError([]string{"a", "b"}, []string{"b", "a"}, 2), new(*SchemaMismatchError), "[b, a]"},
		{"artifact not found", NewArtifactNotFoundError("latest"), new(*ArtifactNotFoundError), `"latest"`},
		{"artifact exists", NewArtifactExistsError("run-1"), new(*ArtifactExistsError), "already exists"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Contains(t, tt.err.Error(), tt.contain)
			assert.True(t, As(tt.err, tt.target))
		})
	}
}

func TestTrainingErrorUnwrap(t *testing.T) {
	err := NewTrainingError("linear_regression", 10, 2, ErrSingularMatrix)
	assert.True(t, Is(err, ErrSingularMatrix))
}

func TestMarshalZerologObject(t *testing.T) {
	var buf bytes.Buffer
	logger := zerolog.New(&buf)

	var schemaErr *SchemaMismatchError
	require.True(t, As(NewSchemaMismatchError([]string{"x"}, nil, 2), &schemaErr))
	logger.Error().EmbedObject(schemaErr).Msg("rejected")

	out := buf.String()
	assert.Contains(t, out, `"type":"SchemaMismatchError"`)
	assert.Contains(t, out, `"got_count":2`)
}

func TestWarn(t *testing.T) {
	var got []string
	SetWarningHandler(func(w error) { got = append(got, w.Error()) })
	defer SetWarningHandler(func(w error) {})

	Warn(NewUndefinedMetricWarning("r2", "constant targets", 0))
	require.Len(t, got, 1)
	assert.True(t, strings.Contains(got[0], "'r2' is ill-defined"))

	var viaZerolog int
	SetZerologWarnFunc(func(error) { viaZerolog++ })
	defer SetZerologWarnFunc(nil)
	Warn(NewDataConversionWarning("string", "float64", "categorical feature dropped"))
	assert.Equal(t, 1, viaZerolog)
	assert.Len(t, got, 1)
}

func TestCheckMatrix(t *testing.T) {
	type grid [][]float64
	ok := matrixOf(grid{{1, 2}, {3, 4}})
	assert.NoError(t, CheckMatrix("fit", ok))

	bad := matrixOf(grid{{1, 2}, {3, nan()}})
	err := CheckMatrix("fit", bad)
	var numErr *NumericalInstabilityError
	require.True(t, As(err, &numErr))
	assert.Equal(t, 1, numErr.Row)
	assert.Equal(t, 1, numErr.Col)
}

type sliceMatrix [][]float64

func (m sliceMatrix) At(i, j int) float64 { return m[i][j] }
func (m sliceMatrix) Dims() (int, int)    { return len(m), len(m[0]) }

func matrixOf(rows [][]float64) sliceMatrix { return sliceMatrix(rows) }

func nan() float64 {
	zero := 0.0
	return zero / zero
}
