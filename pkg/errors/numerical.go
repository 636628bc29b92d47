package errors

import (
	"fmt"
	"math"
)

// NumericalInstabilityError is returned when a matrix handed to an estimator
// contains NaN or Inf values.
type NumericalInstabilityError struct {
	Operation string
	Row, Col  int
	Value     float64
}

func (e *NumericalInstabilityError) Error() string {
	return fmt.Sprintf("tabflow: numerical instability detected in %s at (%d, %d): %g",
		e.Operation, e.Row, e.Col, e.Value)
}

// CheckMatrix checks all values in a matrix and reports the first NaN or Inf.
func CheckMatrix(operation string, matrix interface {
	At(int, int) float64
	Dims() (int, int)
}) error {
	rows, cols := matrix.Dims()
	for i := 0; i < rows; i++ {
		for j := 0; j < cols; j++ {
			v := matrix.At(i, j)
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return WithStack(&NumericalInstabilityError{Operation: operation, Row: i, Col: j, Value: v})
			}
		}
	}
	return nil
}

// SafeDivide performs division with protection against division by zero.
// Returns 0 if denominator is zero or close to zero.
func SafeDivide(numerator, denominator float64) float64 {
	if math.Abs(denominator) < 1e-10 {
		return 0
	}
	return numerator / denominator
}
