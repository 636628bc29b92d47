package pipeline

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/YuminosukeSato/tabflow/artifact"
	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/evaluate"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/pkg/log"
)

// writeMedicalCSV writes 100 rows of five yes/no symptoms and a disease
// label with three values.
func writeMedicalCSV(t *testing.T, dir string) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("fever,cough,fatigue,nausea,headache,disease\n")
	diseases := []string{"flu", "cold", "covid"}
	for i := 0; i < 100; i++ {
		k := i % 3
		yes := func(cond bool) string {
			if cond {
				return "yes"
			}
			return "no"
		}
		fmt.Fprintf(&b, "%s,%s,%s,%s,%s,%s\n",
			yes(k == 0), yes(k == 1), yes(k == 2), yes(i%2 == 0), yes(i%5 == 0), diseases[k])
	}
	path := filepath.Join(dir, "medical.csv")
	require.NoError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func testConfig(t *testing.T) Config {
	t.Helper()
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.DataPath = writeMedicalCSV(t, dir)
	cfg.Target = "disease"
	cfg.ArtifactDir = filepath.Join(dir, "artifacts")
	cfg.WorkDir = dir
	cfg.Params = map[string]interface{}{"n_estimators": 10}
	return cfg
}

func TestRunScenario(t *testing.T) {
	cfg := testConfig(t)
	store, err := artifact.NewFileStore(cfg.ArtifactDir)
	require.NoError(t, err)
	logger, _ := log.NewTestLogger(log.LevelDebug)

	var transitions []string
	p, err := New(cfg, store,
		WithLogger(logger),
		WithObserver(func(from, to State) { transitions = append(transitions, from.String()+">"+to.String()) }),
	)
	require.NoError(t, err)
	assert.Equal(t, Idle, p.State())

	res, err := p.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, Completed, p.State())
	assert.Equal(t, []string{
		"idle>ingesting",
		"ingesting>preparing",
		"preparing>training",
		"training>evaluating",
		"evaluating>completed",
	}, transitions)

	assert.NotEmpty(t, res.RunID)
	assert.Equal(t, evaluate.Accuracy, res.Metric.Name)
	assert.GreaterOrEqual(t, res.Metric.Value, 0.0)
	assert.LessOrEqual(t, res.Metric.Value, 1.0)
	assert.Len(t, res.Metric.Actual, 20)

	a := res.Artifact
	assert.Equal(t, 80, a.TrainSamples)
	assert.Equal(t, 20, a.TestSamples)
	assert.Equal(t, model.Classification, a.Task)
	require.NotNil(t, a.Mapping)
	assert.Equal(t, []string{"cold", "covid", "flu"}, a.Mapping.Labels)
	assert.Equal(t, []string{"fever", "cough", "fatigue", "nausea", "headache"}, a.Features)

	stored, err := store.Get(context.Background(), artifact.Latest)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, stored.ID)
	assert.Equal(t, res.Metric.Value, stored.Metric.Value)

	assert.True(t, logger.ContainsMessage("pipeline run completed"))
	assert.True(t, logger.ContainsField(log.RunIDKey, res.RunID))

	entries, err := logger.GetLogEntries()
	require.NoError(t, err)
	prepared := 0
	for _, e := range entries {
		if e[log.OperationKey] == log.OperationPrepare && e["level"] == "INFO" {
			prepared++
			assert.Equal(t, 0.2, e[log.TestRatioKey])
		}
	}
	assert.Equal(t, 1, prepared, "one prepare summary per run")
}

func TestRunYesNoTargetIsClassification(t *testing.T) {
	cfg := testConfig(t)
	var b strings.Builder
	b.WriteString("fever,cough,sick\n")
	for i := 0; i < 50; i++ {
		if i%2 == 0 {
			b.WriteString("yes,no,yes\n")
		} else {
			b.WriteString("no,yes,no\n")
		}
	}
	cfg.DataPath = filepath.Join(cfg.WorkDir, "sick.csv")
	require.NoError(t, os.WriteFile(cfg.DataPath, []byte(b.String()), 0o644))
	cfg.Target = "sick"

	store, err := artifact.NewFileStore(cfg.ArtifactDir)
	require.NoError(t, err)
	p, err := New(cfg, store)
	require.NoError(t, err)
	res, err := p.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, model.Classification, res.Artifact.Task)
	assert.Equal(t, evaluate.Accuracy, res.Metric.Name)
	require.NotNil(t, res.Artifact.Mapping)
	assert.Equal(t, []string{"no", "yes"}, res.Artifact.Mapping.Labels)
	assert.Equal(t, "yes", res.Artifact.Mapping.Display(1))
}

func TestRunIssuesFreshIDs(t *testing.T) {
	cfg := testConfig(t)
	store, err := artifact.NewFileStore(cfg.ArtifactDir)
	require.NoError(t, err)

	ids := map[string]bool{}
	for i := 0; i < 2; i++ {
		p, err := New(cfg, store)
		require.NoError(t, err)
		res, err := p.Run(context.Background())
		require.NoError(t, err)
		ids[res.RunID] = true
	}
	assert.Len(t, ids, 2)

	listed, err := store.List(context.Background())
	require.NoError(t, err)
	assert.Len(t, listed, 2)
}

func TestRunFailurePersistsNothing(t *testing.T) {
	tests := []struct {
		name      string
		mutate    func(*Config)
		lastStage string
		check     func(t *testing.T, err error)
	}{
		{
			name:      "missing target",
			mutate:    func(c *Config) { c.Target = "diagnosis" },
			lastStage: "preparing>failed",
			check: func(t *testing.T, err error) {
				var mc *errors.MissingColumnError
				assert.True(t, errors.As(err, &mc))
			},
		},
		{
			name:      "unsupported format",
			mutate:    func(c *Config) { c.DataPath = c.DataPath + ".parquet" },
			lastStage: "ingesting>failed",
			check: func(t *testing.T, err error) {
				var uf *errors.UnsupportedFormatError
				assert.True(t, errors.As(err, &uf))
			},
		},
		{
			name:      "linear model on categorical target",
			mutate:    func(c *Config) { c.Strategy = "linear_regression"; c.Params = nil },
			lastStage: "training>failed",
			check: func(t *testing.T, err error) {
				var val *errors.ValidationError
				assert.True(t, errors.As(err, &val))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(t)
			tt.mutate(&cfg)
			store, err := artifact.NewFileStore(cfg.ArtifactDir)
			require.NoError(t, err)

			var last string
			p, err := New(cfg, store, WithObserver(func(from, to State) { last = from.String() + ">" + to.String() }))
			require.NoError(t, err)
			res, err := p.Run(context.Background())
			require.Error(t, err)
			assert.Nil(t, res)
			tt.check(t, err)
			assert.Equal(t, Failed, p.State())
			assert.Equal(t, tt.lastStage, last)

			ids, err := store.List(context.Background())
			require.NoError(t, err)
			assert.Empty(t, ids)
		})
	}
}

func TestRunOnce(t *testing.T) {
	cfg := testConfig(t)
	store, err := artifact.NewFileStore(cfg.ArtifactDir)
	require.NoError(t, err)
	p, err := New(cfg, store)
	require.NoError(t, err)

	_, err = p.Run(context.Background())
	require.NoError(t, err)
	_, err = p.Run(context.Background())
	var ve *errors.ValueError
	assert.True(t, errors.As(err, &ve))
}

func TestRunCancelled(t *testing.T) {
	cfg := testConfig(t)
	store, err := artifact.NewFileStore(cfg.ArtifactDir)
	require.NoError(t, err)
	p, err := New(cfg, store)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = p.Run(ctx)
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, Failed, p.State())
}

func TestNewValidates(t *testing.T) {
	cfg := testConfig(t)
	store, err := artifact.NewFileStore(cfg.ArtifactDir)
	require.NoError(t, err)

	var val *errors.ValidationError
	_, err = New(cfg, nil)
	assert.True(t, errors.As(err, &val))

	bad := cfg
	bad.TestRatio = 1
	_, err = New(bad, store)
	assert.True(t, errors.As(err, &val))

	bad = cfg
	bad.Strategy = "svm"
	_, err = New(bad, store)
	assert.True(t, errors.As(err, &val))
}
