package artifact

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/evaluate"
	"github.com/YuminosukeSato/tabflow/linear"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/preprocessing"
)

var t0 = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

func newRun(t *testing.T, id string, created time.Time) *RunArtifact {
	t.Helper()
	lr := linear.NewLinearRegression()
	X := mat.NewDense(4, 1, []float64{1, 2, 3, 4})
	y := mat.NewDense(4, 1, []float64{3, 5, 7, 9})
	require.NoError(t, lr.Fit(X, y))

	return &RunArtifact{
		ID:        id,
		CreatedAt: created,
		Task:      model.Classification,
		Strategy:  "linear_regression",
		Params:    map[string]interface{}{"fit_intercept": true},
		Metric: evaluate.Metric{
			Name: evaluate.Accuracy, Value: 0.75, Task: model.Classification,
			Actual: []float64{0, 1}, Predicted: []float64{0, 0},
		},
		Mapping:      preprocessing.NewLabelMapping([]string{"flu", "cold"}),
		Features:     []string{"fever"},
		Target:       "disease",
		DataPath:     "data/medical.csv",
		Seed:         42,
		TestRatio:    0.2,
		TrainSamples: 3,
		TestSamples:  1,
		Model:        lr,
	}
}

func stores(t *testing.T) map[string]Store {
	t.Helper()
	fs, err := NewFileStore(filepath.Join(t.TempDir(), "runs"))
	require.NoError(t, err)
	sq, err := OpenSQLite(filepath.Join(t.TempDir(), "runs.db"))
	require.NoError(t, err)
	t.Cleanup(func() { sq.Close() })
	behind, err := NewFileStore(filepath.Join(t.TempDir(), "cached"))
	require.NoError(t, err)
	return map[string]Store{"file": fs, "sqlite": sq, "cached": NewCachedStore(behind)}
}

func TestStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			run := newRun(t, "run-1", t0)
			require.NoError(t, s.Put(ctx, run))

			got, err := s.Get(ctx, "run-1")
			require.NoError(t, err)
			assert.Equal(t, run.ID, got.ID)
			assert.True(t, run.CreatedAt.Equal(got.CreatedAt))
			assert.Equal(t, model.Classification, got.Task)
			assert.Equal(t, run.Metric.Value, got.Metric.Value)
			assert.Equal(t, model.Classification, got.Metric.Task)
			assert.Equal(t, []string{"cold", "flu"}, got.Mapping.Labels)
			assert.Equal(t, run.Features, got.Features)
			assert.Equal(t, int64(42), got.Seed)
			assert.Equal(t, 3, got.TrainSamples)

			pred, err := got.Model.Predict(mat.NewDense(1, 1, []float64{10}))
			require.NoError(t, err)
			assert.InDelta(t, 21.0, pred.At(0, 0), 1e-9)
		})
	}
}

func TestStoreLatest(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var nf *errors.ArtifactNotFoundError
			_, err := s.Get(ctx, Latest)
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, Latest, nf.RunID)

			require.NoError(t, s.Put(ctx, newRun(t, "b-old", t0)))
			require.NoError(t, s.Put(ctx, newRun(t, "a-new", t0.Add(time.Hour))))

			got, err := s.Get(ctx, Latest)
			require.NoError(t, err)
			assert.Equal(t, "a-new", got.ID)

			ids, err := s.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{"a-new", "b-old"}, ids)
		})
	}
}

func TestStoreWriteOnce(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			require.NoError(t, s.Put(ctx, newRun(t, "dup", t0)))

			second := newRun(t, "dup", t0.Add(time.Minute))
			second.Metric.Value = 0.1
			var exists *errors.ArtifactExistsError
			require.True(t, errors.As(s.Put(ctx, second), &exists))

			got, err := s.Get(ctx, "dup")
			require.NoError(t, err)
			assert.Equal(t, 0.75, got.Metric.Value)
		})
	}
}

func TestStoreErrors(t *testing.T) {
	ctx := context.Background()
	for name, s := range stores(t) {
		t.Run(name, func(t *testing.T) {
			var nf *errors.ArtifactNotFoundError
			_, err := s.Get(ctx, "missing")
			require.True(t, errors.As(err, &nf))
			assert.Equal(t, "missing", nf.RunID)

			var val *errors.ValidationError
			_, err = s.Get(ctx, "../etc")
			assert.True(t, errors.As(err, &val))

			noModel := newRun(t, "x", t0)
			noModel.Model = nil
			assert.True(t, errors.As(s.Put(ctx, noModel), &val))
			assert.True(t, errors.As(s.Put(ctx, newRun(t, Latest, t0)), &val))
			assert.True(t, errors.As(s.Put(ctx, nil), &val))
		})
	}
}

func TestFileStoreLayout(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewFileStore(root)
	require.NoError(t, err)
	require.NoError(t, s.Put(ctx, newRun(t, "run-1", t0)))

	assert.FileExists(t, filepath.Join(root, "run-1", "manifest.json"))
	assert.FileExists(t, filepath.Join(root, "run-1", "model.gob"))

	manifest, err := os.ReadFile(filepath.Join(root, "run-1", "manifest.json"))
	require.NoError(t, err)
	assert.Contains(t, string(manifest), `"task": "classification"`)
	assert.NotContains(t, string(manifest), "Model")

	entries, err := os.ReadDir(root)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "staging directory left behind")
}

func TestFileStoreSkipsIncompleteRuns(t *testing.T) {
	ctx := context.Background()
	root := t.TempDir()
	s, err := NewFileStore(root)
	require.NoError(t, err)

	require.NoError(t, os.MkdirAll(filepath.Join(root, "half-written"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(root, ".tmp-run-x-123"), 0o755))

	var nf *errors.ArtifactNotFoundError
	_, err = s.Get(ctx, Latest)
	require.True(t, errors.As(err, &nf))

	require.NoError(t, s.Put(ctx, newRun(t, "run-1", t0)))
	ids, err := s.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"run-1"}, ids)
}

// counting records calls to the wrapped store.
type counting struct {
	Store
	gets int
}

func (c *counting) Get(ctx context.Context, id string) (*RunArtifact, error) {
	c.gets++
	return c.Store.Get(ctx, id)
}

func TestCachedStore(t *testing.T) {
	ctx := context.Background()
	fs, err := NewFileStore(t.TempDir())
	require.NoError(t, err)
	inner := &counting{Store: fs}
	c := NewCachedStore(inner)

	require.NoError(t, c.Put(ctx, newRun(t, "run-1", t0)))
	for i := 0; i < 3; i++ {
		a, err := c.Get(ctx, Latest)
		require.NoError(t, err)
		assert.Equal(t, "run-1", a.ID)
	}
	assert.Equal(t, 1, inner.gets)

	_, err = c.Get(ctx, "run-1")
	require.NoError(t, err)
	assert.Equal(t, 1, inner.gets)

	require.NoError(t, c.Put(ctx, newRun(t, "run-2", t0.Add(time.Second))))
	a, err := c.Get(ctx, Latest)
	require.NoError(t, err)
	assert.Equal(t, "run-2", a.ID)
	assert.Equal(t, 2, inner.gets)

	// misses are not cached
	_, err = c.Get(ctx, "nope")
	assert.Error(t, err)
	_, err = c.Get(ctx, "nope")
	assert.Error(t, err)
	assert.Equal(t, 4, inner.gets)
}

func TestCachedStoreWatch(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	root := t.TempDir()
	fs, err := NewFileStore(root)
	require.NoError(t, err)
	c := NewCachedStore(fs)
	defer c.Close()
	require.NoError(t, c.Watch(ctx, root))

	require.NoError(t, fs.Put(ctx, newRun(t, "run-1", t0)))
	assert.Eventually(t, func() bool {
		a, err := c.Get(ctx, Latest)
		return err == nil && a.ID == "run-1"
	}, 5*time.Second, 20*time.Millisecond)

	// written behind the cache's back, e.g. by a training process
	require.NoError(t, fs.Put(ctx, newRun(t, "run-2", t0.Add(time.Hour))))
	assert.Eventually(t, func() bool {
		a, err := c.Get(ctx, Latest)
		return err == nil && a.ID == "run-2"
	}, 5*time.Second, 20*time.Millisecond)
}

func TestOpen(t *testing.T) {
	dir := t.TempDir()

	s, err := Open(KindFile, filepath.Join(dir, "files"))
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	s, err = Open(KindSQLite, filepath.Join(dir, "db"))
	require.NoError(t, err)
	assert.IsType(t, &SQLiteStore{}, s)
	require.NoError(t, s.Close())
	assert.FileExists(t, filepath.Join(dir, "db", "runs.db"))

	var val *errors.ValidationError
	_, err = Open("s3", dir)
	assert.True(t, errors.As(err, &val))
}
