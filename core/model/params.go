package model

import (
	"math"

	tferrors "github.com/YuminosukeSato/tabflow/pkg/errors"
)

// ParamFloat converts a hyperparameter decoded from YAML or JSON to float64.
// yaml.v3 yields int for whole numbers and encoding/json yields float64, so
// int, int64 and float64 are all accepted.
func ParamFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, true
	}
	return 0, false
}

// ParamInt converts a decoded hyperparameter to int. Floats must be whole.
func ParamInt(key string, v interface{}) (int, error) {
	f, ok := ParamFloat(v)
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, tferrors.NewValidationError(key, "must be an integer", v)
	}
	return int(f), nil
}
