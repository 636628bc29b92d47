// Package predict serves single predictions from stored run artifacts.
//
// A Surface resolves the configured run (the newest one by default), checks
// submitted feature vectors against the run's schema and turns every failure
// into an Outcome the caller can show to a user. Submit never panics.
package predict

import (
	"context"
	"math"
	"sort"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/artifact"
	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/evaluate"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/pkg/log"
)

// FeatureVector is one input row. With Columns set the names must equal the
// model schema; without them only the count is checked.
type FeatureVector struct {
	Columns []string  `json:"columns,omitempty"`
	Values  []float64 `json:"values"`

	// unordered vectors come from keyed input and are reordered to the schema.
	unordered bool
}

// FromMap builds a vector from column/value pairs. Predict orders it by the
// model schema, so the key set must equal the schema's columns.
func FromMap(m map[string]float64) FeatureVector {
	cols := make([]string, 0, len(m))
	for c := range m {
		cols = append(cols, c)
	}
	sort.Strings(cols)
	vals := make([]float64, len(cols))
	for i, c := range cols {
		vals[i] = m[c]
	}
	return FeatureVector{Columns: cols, Values: vals, unordered: true}
}

func (v FeatureVector) align(schema []string) ([]float64, error) {
	if v.Columns == nil {
		if len(v.Values) != len(schema) {
			return nil, errors.NewSchemaMismatchError(schema, nil, len(v.Values))
		}
		return append([]float64(nil), v.Values...), nil
	}
	if len(v.Columns) != len(v.Values) {
		return nil, errors.NewValidationError("values", "must have one value per column", len(v.Values))
	}
	mismatch := errors.NewSchemaMismatchError(schema, v.Columns, len(v.Values))
	if len(v.Columns) != len(schema) {
		return nil, mismatch
	}
	if !v.unordered {
		for i, c := range schema {
			if v.Columns[i] != c {
				return nil, mismatch
			}
		}
		return append([]float64(nil), v.Values...), nil
	}
	byName := make(map[string]float64, len(v.Columns))
	for i, c := range v.Columns {
		byName[c] = v.Values[i]
	}
	out := make([]float64, len(schema))
	for i, c := range schema {
		x, ok := byName[c]
		if !ok {
			return nil, mismatch
		}
		out[i] = x
	}
	return out, nil
}

// Prediction is the decoded model output for one vector.
type Prediction struct {
	RunID string     `json:"run_id"`
	Task  model.Task `json:"task"`
	Value float64    `json:"value"`
	// Label is the decoded class of classification runs.
	Label   string `json:"label,omitempty"`
	Display string `json:"display"`
}

var pricePrinter = message.NewPrinter(language.English)

// FormatPrice formats v as a dollar amount, e.g. "$123,456.78".
func FormatPrice(v float64) string {
	sign := ""
	if v < 0 {
		sign = "-"
		v = -v
	}
	return sign + "$" + pricePrinter.Sprintf("%.2f", v)
}

// Predict runs the model of a on v. The vector must match the feature schema
// of the run, otherwise a SchemaMismatchError is returned.
func Predict(a *artifact.RunArtifact, v FeatureVector) (Prediction, error) {
	if a == nil || a.Model == nil {
		return Prediction{}, errors.NewValidationError("artifact", "must carry a model", nil)
	}
	row, err := v.align(a.Features)
	if err != nil {
		return Prediction{}, err
	}
	for i, x := range row {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return Prediction{}, errors.NewValidationError(a.Features[i], "must be finite", x)
		}
	}

	out, err := a.Model.Predict(mat.NewDense(1, len(row), row))
	if err != nil {
		return Prediction{}, errors.NewModelError("predict.Predict", "prediction", err)
	}
	value := out.At(0, 0)

	p := Prediction{RunID: a.ID, Task: a.Task, Value: value}
	if a.Task == model.Classification {
		p.Label = a.Mapping.Display(int(math.Round(value)))
		p.Display = p.Label
	} else {
		p.Display = FormatPrice(value)
	}
	return p, nil
}

// Availability describes whether a model can serve predictions.
type Availability struct {
	Available bool             `json:"available"`
	RunID     string           `json:"run_id,omitempty"`
	Strategy  string           `json:"strategy,omitempty"`
	Metric    *evaluate.Metric `json:"metric,omitempty"`
	Message   string           `json:"message"`
}

// Status of a submission.
type Status string

const (
	StatusOK          Status = "ok"
	StatusUnavailable Status = "unavailable"
	StatusRejected    Status = "rejected"
	StatusFailed      Status = "failed"
)

// Outcome is the user facing result of Submit.
type Outcome struct {
	Status     Status      `json:"status"`
	Message    string      `json:"message"`
	Prediction *Prediction `json:"prediction,omitempty"`
}

const (
	msgOffline    = "Model offline. No trained run is available; run the training pipeline first."
	msgFailed     = "Prediction failed. The error has been logged."
	msgStatusFail = "Model status unknown. The artifact store could not be read."
)

// SurfaceOption configures a Surface.
type SurfaceOption func(*Surface)

// WithRun selects the served run. Defaults to artifact.Latest.
func WithRun(id string) SurfaceOption {
	return func(s *Surface) {
		if id != "" {
			s.runID = id
		}
	}
}

// WithSurfaceLogger sets the logger for failed predictions.
func WithSurfaceLogger(l log.Logger) SurfaceOption {
	return func(s *Surface) {
		s.logger = l
	}
}

// Surface answers predictions for one configured run.
type Surface struct {
	store  artifact.Store
	runID  string
	logger log.Logger
}

// NewSurface returns a Surface reading from store.
func NewSurface(store artifact.Store, opts ...SurfaceOption) *Surface {
	s := &Surface{store: store, runID: artifact.Latest}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = log.GetLoggerWithName("predict")
	}
	return s
}

// RunID returns the configured run selector.
func (s *Surface) RunID() string { return s.runID }

// LoadLatestRun resolves the configured run. It returns an
// ArtifactNotFoundError when the run does not exist.
func (s *Surface) LoadLatestRun(ctx context.Context) (*artifact.RunArtifact, error) {
	return s.store.Get(ctx, s.runID)
}

// Status reports whether the configured run can be served.
func (s *Surface) Status(ctx context.Context) Availability {
	a, err := s.LoadLatestRun(ctx)
	if err != nil {
		var nf *errors.ArtifactNotFoundError
		if !errors.As(err, &nf) {
			s.logger.Error("Failed to read model status", err, log.RunIDKey, s.runID)
			return Availability{Message: msgStatusFail}
		}
		return Availability{Message: msgOffline}
	}
	m := a.Metric
	m.Actual, m.Predicted = nil, nil
	return Availability{
		Available: true,
		RunID:     a.ID,
		Strategy:  a.Strategy,
		Metric:    &m,
		Message:   "Model online.",
	}
}

// Submit predicts v with the configured run and classifies every failure:
// a missing run is Unavailable, bad input is Rejected and anything else,
// panics included, is Failed with the cause logged.
func (s *Surface) Submit(ctx context.Context, v FeatureVector) Outcome {
	var p Prediction
	err := errors.SafeExecute("predict.Submit", func() error {
		a, err := s.LoadLatestRun(ctx)
		if err != nil {
			return err
		}
		p, err = Predict(a, v)
		return err
	})
	if err == nil {
		s.logger.Info("Prediction served",
			log.OperationKey, log.OperationPredict,
			log.RunIDKey, p.RunID,
			log.PredictionKey, p.Display,
		)
		return Outcome{Status: StatusOK, Message: p.Display, Prediction: &p}
	}

	var (
		nf  *errors.ArtifactNotFoundError
		sm  *errors.SchemaMismatchError
		val *errors.ValidationError
	)
	switch {
	case errors.As(err, &nf):
		s.logger.Warn("Prediction requested without a model", log.RunIDKey, s.runID)
		return Outcome{Status: StatusUnavailable, Message: msgOffline}
	case errors.As(err, &sm):
		return Outcome{Status: StatusRejected, Message: sm.Error()}
	case errors.As(err, &val):
		return Outcome{Status: StatusRejected, Message: val.Error()}
	}
	s.logger.Error("Prediction failed", err, log.RunIDKey, s.runID)
	return Outcome{Status: StatusFailed, Message: msgFailed}
}
