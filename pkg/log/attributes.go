// Package log defines standard attribute keys for pipeline and prediction operations.
//
// The keys follow a hierarchical naming convention (e.g. "model.name",
// "data.samples") so that logs from every stage can be filtered the same way.

package log

// Model and Operation Context
const (
	// ModelNameKey identifies the type of machine learning model.
	// Examples: "RandomForestClassifier", "LinearRegression"
	ModelNameKey = "model.name"

	// StrategyKey identifies the training strategy selected by configuration.
	StrategyKey = "model.strategy"

	// OperationKey specifies the operation being performed.
	// Standard values: "fit", "predict", "score", "ingest", "prepare"
	OperationKey = "ml.operation"

	// ComponentKey identifies which component is logging.
	ComponentKey = "ml.component"

	// TaskKey is "classification" or "regression".
	TaskKey = "ml.task"
)

// Pipeline Context
const (
	// RunIDKey is the identifier of a pipeline run and its artifact.
	RunIDKey = "run.id"

	// StageKey is the pipeline state a record was emitted in.
	StageKey = "pipeline.stage"

	// FromStageKey is the state left on a transition.
	FromStageKey = "pipeline.from"
)

// Data Shape and Characteristics
const (
	// PathKey is the dataset or artifact path being read.
	PathKey = "data.path"

	// SamplesKey indicates the number of samples (rows) in the dataset.
	SamplesKey = "data.samples"

	// FeaturesKey indicates the number of features (columns) in the dataset.
	FeaturesKey = "data.features"

	// TargetKey is the name of the target column.
	TargetKey = "data.target"

	// DroppedRowsKey counts rows removed because of missing values.
	DroppedRowsKey = "data.dropped_rows"

	// ClassesKey is the number of distinct classes in a label mapping.
	ClassesKey = "data.classes"

	// TrainSamplesKey and TestSamplesKey describe a train/test split.
	TrainSamplesKey = "data.train_samples"
	TestSamplesKey  = "data.test_samples"
)

// Performance Metrics
const (
	// DurationMsKey records the execution time of an operation in milliseconds.
	DurationMsKey = "perf.duration_ms"

	// AccuracyKey records classification accuracy in [0, 1].
	AccuracyKey = "metrics.accuracy"

	// R2ScoreKey records R² coefficient of determination for regression.
	R2ScoreKey = "metrics.r2_score"

	// MetricKey and MetricValueKey record a metric by name.
	MetricKey      = "metrics.name"
	MetricValueKey = "metrics.value"
)

// Prediction Context
const (
	// PredsKey indicates the number of predictions made.
	PredsKey = "preds.count"

	// PredictionKey records the displayed prediction.
	PredictionKey = "preds.value"
)

// Error Context
const (
	// ErrorKey holds the error message.
	ErrorKey = "error"

	// ErrorTypeKey categorizes the type of error encountered.
	ErrorTypeKey = "error.type"

	// StacktraceKey contains stack trace information for debugging.
	StacktraceKey = "error.stacktrace"
)

// Configuration
const (
	// HyperParamsKey contains strategy hyperparameters.
	HyperParamsKey = "model.hyperparams"

	// RandomSeedKey records the random seed for reproducibility.
	RandomSeedKey = "config.random_seed"

	// TestRatioKey records the holdout fraction.
	TestRatioKey = "config.test_ratio"
)

// Standard attribute values.
const (
	OperationIngest  = "ingest"
	OperationPrepare = "prepare"
	OperationFit     = "fit"
	OperationPredict = "predict"
	OperationScore   = "score"

	PhaseTraining  = "training"
	PhaseInference = "inference"
)
