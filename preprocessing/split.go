package preprocessing

import (
	"math"
	"math/rand"
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/dataset"
	tferrors "github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/pkg/log"
)

// Split is the output of Prepare: a train/test partition of the feature matrix
// and label vector, with the schema needed to reproduce it.
type Split struct {
	TrainX *mat.Dense
	TestX  *mat.Dense
	// TrainY and TestY are n×1 column vectors. Classification labels are codes
	// of Mapping.
	TrainY *mat.Dense
	TestY  *mat.Dense

	// Mapping is nil for regression.
	Mapping  *LabelMapping
	Features []string
	Target   string
	Task     model.Task

	// TrainRows and TestRows are dataset row indices in matrix order.
	TrainRows []int
	TestRows  []int
	Seed      int64
	TestRatio float64
}

type prepareConfig struct {
	task   *model.Task
	logger log.Logger
}

// PrepareOption configures Prepare.
type PrepareOption func(*prepareConfig)

// WithTask forces the task instead of inferring it from the target column.
// Classification on a numeric target builds a mapping over its values.
func WithTask(task model.Task) PrepareOption {
	return func(c *prepareConfig) {
		c.task = &task
	}
}

// WithPrepareLogger sets the logger used for excluded column warnings.
func WithPrepareLogger(l log.Logger) PrepareOption {
	return func(c *prepareConfig) {
		c.logger = l
	}
}

// TestSize returns the holdout row count for n rows: ceil(ratio*n) clamped
// to [1, n-1].
func TestSize(n int, ratio float64) int {
	nTest := int(math.Ceil(ratio*float64(n) - 1e-9))
	if nTest < 1 {
		nTest = 1
	}
	if nTest > n-1 {
		nTest = n - 1
	}
	return nTest
}

// Prepare separates target from features, encodes class labels and splits the
// rows into train and test sets. The same dataset, ratio and seed always yield
// the same partition.
func Prepare(ds *dataset.Dataset, target string, testRatio float64, seed int64, opts ...PrepareOption) (*Split, error) {
	cfg := &prepareConfig{}
	for _, o := range opts {
		o(cfg)
	}
	if cfg.logger == nil {
		cfg.logger = log.GetLoggerWithName("preprocessing")
	}
	logger := cfg.logger.With(log.OperationKey, log.OperationPrepare, log.TargetKey, target)

	ti := ds.Index(target)
	if ti < 0 {
		return nil, tferrors.NewMissingColumnError(target, ds.Columns())
	}
	if !(testRatio > 0 && testRatio < 1) {
		return nil, tferrors.NewValidationError("test_ratio", "must be in (0, 1)", testRatio)
	}
	n := ds.Len()
	if n < 2 {
		return nil, tferrors.NewValueError("Prepare", "need at least 2 rows to split")
	}

	// yes/no and true/false targets are class labels even though they
	// feed feature columns as 1/0
	task := model.Regression
	if !ds.IsNumericColumn(ti) || ds.IsBooleanColumn(ti) {
		task = model.Classification
	}
	if cfg.task != nil {
		if *cfg.task == model.Regression && !ds.IsNumericColumn(ti) {
			return nil, tferrors.NewValidationError("task", "regression needs a numeric target", target)
		}
		task = *cfg.task
	}

	columns := ds.Columns()
	var featureIdx []int
	var features, excluded []string
	for j, c := range columns {
		if j == ti {
			continue
		}
		if !ds.IsNumericColumn(j) {
			excluded = append(excluded, c)
			continue
		}
		featureIdx = append(featureIdx, j)
		features = append(features, c)
	}
	if len(excluded) > 0 {
		logger.Warn("Excluded non-numeric feature columns", "columns", strings.Join(excluded, ", "))
	}
	if len(features) == 0 {
		return nil, tferrors.NewValueError("Prepare", "no numeric feature columns besides target "+target)
	}

	var mapping *LabelMapping
	y := make([]float64, n)
	if task == model.Classification {
		raw := make([]string, n)
		for i := 0; i < n; i++ {
			raw[i] = ds.Row(i)[ti].String()
		}
		mapping = NewLabelMapping(raw)
		for i, r := range raw {
			code, _ := mapping.Encode(r)
			y[i] = float64(code)
		}
	} else {
		for i := 0; i < n; i++ {
			y[i], _ = ds.Row(i)[ti].Float()
		}
	}

	nTest := TestSize(n, testRatio)
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	testRows := append([]int(nil), perm[:nTest]...)
	trainRows := append([]int(nil), perm[nTest:]...)

	split := &Split{
		TrainX:    gather(ds, trainRows, featureIdx),
		TestX:     gather(ds, testRows, featureIdx),
		TrainY:    gatherY(y, trainRows),
		TestY:     gatherY(y, testRows),
		Mapping:   mapping,
		Features:  features,
		Target:    target,
		Task:      task,
		TrainRows: trainRows,
		TestRows:  testRows,
		Seed:      seed,
		TestRatio: testRatio,
	}

	fields := []any{
		log.TaskKey, task.String(),
		log.FeaturesKey, len(features),
		log.TrainSamplesKey, len(trainRows),
		log.TestSamplesKey, len(testRows),
		log.RandomSeedKey, seed,
		log.TestRatioKey, testRatio,
	}
	if mapping != nil {
		fields = append(fields, log.ClassesKey, mapping.Len())
	}
	logger.Info("Data prepared", fields...)
	return split, nil
}

func gather(ds *dataset.Dataset, rows, cols []int) *mat.Dense {
	out := mat.NewDense(len(rows), len(cols), nil)
	for i, r := range rows {
		row := ds.Row(r)
		for j, c := range cols {
			v, _ := row[c].Float()
			out.Set(i, j, v)
		}
	}
	return out
}

func gatherY(y []float64, rows []int) *mat.Dense {
	out := mat.NewDense(len(rows), 1, nil)
	for i, r := range rows {
		out.Set(i, 0, y[r])
	}
	return out
}
