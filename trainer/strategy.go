// Package trainer turns a feature matrix and label vector into a fitted
// model.Predictor. Algorithms are plugged in as Strategy values selected by
// name from configuration.
package trainer

import (
	"fmt"
	"sort"
	"sync"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
)

// Strategy builds a fitted model from training data. Fit must not mutate X
// or y and must not perform I/O.
type Strategy interface {
	Fit(X, y mat.Matrix) (model.Predictor, error)
}

// Named is implemented by strategies that report a configuration name.
type Named interface {
	Name() string
}

// Params configures a strategy: the learning task and algorithm specific
// hyperparameters keyed by their configuration names.
type Params struct {
	Task   model.Task
	Values map[string]interface{}
}

// Factory constructs a strategy from params. It should reject invalid
// hyperparameters with a ValidationError.
type Factory func(p Params) (Strategy, error)

const (
	RandomForestName       = "random_forest"
	DecisionTreeName       = "decision_tree"
	LinearRegressionName   = "linear_regression"
	LogisticRegressionName = "logistic_regression"
)

var (
	registryMu sync.RWMutex
	registry   = map[string]Factory{
		RandomForestName:       newRandomForest,
		DecisionTreeName:       newDecisionTree,
		LinearRegressionName:   newLinearRegression,
		LogisticRegressionName: newLogisticRegression,
	}
)

// Register makes a strategy available to New under name.
func Register(name string, f Factory) error {
	if name == "" || f == nil {
		return errors.NewValidationError("name", "strategy name and factory are required", name)
	}
	registryMu.Lock()
	defer registryMu.Unlock()
	if _, dup := registry[name]; dup {
		return errors.NewValidationError("name", "strategy already registered", name)
	}
	registry[name] = f
	return nil
}

// Names returns the registered strategy names in sorted order.
func Names() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	names := make([]string, 0, len(registry))
	for n := range registry {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// New returns the strategy registered under name.
func New(name string, p Params) (Strategy, error) {
	registryMu.RLock()
	f, ok := registry[name]
	registryMu.RUnlock()
	if !ok {
		return nil, errors.NewValidationError("strategy", fmt.Sprintf("unknown strategy, expected one of %v", Names()), name)
	}
	return f(p)
}

// NameOf returns the configuration name of s, or its type when s is not Named.
func NameOf(s Strategy) string {
	if n, ok := s.(Named); ok {
		return n.Name()
	}
	return fmt.Sprintf("%T", s)
}
