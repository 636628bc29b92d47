// Package artifact persists the outcome of a pipeline run (model, metric,
// label mapping and feature schema) and reads it back by run id.
package artifact

import (
	"context"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/evaluate"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/preprocessing"

	// concrete predictor types must be gob-registered before a model is decoded
	_ "github.com/YuminosukeSato/tabflow/linear"
	_ "github.com/YuminosukeSato/tabflow/sklearn/ensemble"
	_ "github.com/YuminosukeSato/tabflow/sklearn/tree"
)

// Latest selects the most recently created run in Store.Get.
const Latest = "latest"

// RunArtifact is everything the prediction surface needs from a completed
// run. It is immutable once stored.
type RunArtifact struct {
	ID        string     `json:"id"`
	CreatedAt time.Time  `json:"created_at"`
	Task      model.Task `json:"task"`

	Strategy string                 `json:"strategy"`
	Params   map[string]interface{} `json:"params,omitempty"`

	Metric evaluate.Metric `json:"metric"`
	// Mapping is nil for regression runs.
	Mapping  *preprocessing.LabelMapping `json:"mapping,omitempty"`
	Features []string                    `json:"features"`
	Target   string                      `json:"target"`

	DataPath     string  `json:"data_path"`
	Seed         int64   `json:"seed"`
	TestRatio    float64 `json:"test_ratio"`
	TrainSamples int     `json:"train_samples"`
	TestSamples  int     `json:"test_samples"`

	Model model.Predictor `json:"-"`
}

// Store persists run artifacts. Put is atomic and write-once; Get accepts a
// run id or Latest.
type Store interface {
	Put(ctx context.Context, a *RunArtifact) error
	Get(ctx context.Context, id string) (*RunArtifact, error)
	// List returns run ids, newest first.
	List(ctx context.Context) ([]string, error)
	Close() error
}

// ValidateID rejects ids that cannot name a run: empty, Latest, or anything
// that could escape a store directory.
func ValidateID(id string) error {
	switch {
	case id == "":
		return errors.NewValidationError("run_id", "must not be empty", id)
	case id == Latest:
		return errors.NewValidationError("run_id", "is reserved", id)
	case strings.ContainsAny(id, `/\`) || strings.HasPrefix(id, ".") || strings.ContainsRune(id, 0):
		return errors.NewValidationError("run_id", "contains path characters", id)
	}
	return nil
}

func (a *RunArtifact) validate() error {
	if a == nil {
		return errors.NewValidationError("artifact", "must not be nil", nil)
	}
	if err := ValidateID(a.ID); err != nil {
		return err
	}
	if a.Model == nil {
		return errors.NewValidationError("model", "must not be nil", a.ID)
	}
	return nil
}

func encodeManifest(a *RunArtifact) ([]byte, error) {
	b, err := json.MarshalIndent(a, "", "  ")
	if err != nil {
		return nil, errors.Wrapf(err, "encode manifest of run %s", a.ID)
	}
	return b, nil
}

func decodeManifest(b []byte) (*RunArtifact, error) {
	var a RunArtifact
	if err := json.Unmarshal(b, &a); err != nil {
		return nil, errors.Wrap(err, "decode run manifest")
	}
	return &a, nil
}
