package handlers_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/YuminosukeSato/tabflow/artifact"
	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/evaluate"
	"github.com/YuminosukeSato/tabflow/pkg/log"
	"github.com/YuminosukeSato/tabflow/predict"
	"github.com/YuminosukeSato/tabflow/predict/handlers"
	"github.com/YuminosukeSato/tabflow/preprocessing"
	"github.com/YuminosukeSato/tabflow/sklearn/tree"
)

// medicalRun fits a tree where fever means flu (2), cough means cold (0)
// and anything else covid (1).
func medicalRun(t *testing.T) *artifact.RunArtifact {
	t.Helper()
	rows := [][]float64{
		{1, 0, 0, 0, 0}, {1, 0, 1, 0, 0}, {1, 0, 0, 1, 1},
		{0, 1, 0, 0, 0}, {0, 1, 1, 0, 0}, {0, 1, 0, 0, 1},
		{0, 0, 1, 0, 0}, {0, 0, 0, 1, 0}, {0, 0, 1, 1, 1},
	}
	labels := []float64{2, 2, 2, 0, 0, 0, 1, 1, 1}
	X := mat.NewDense(len(rows), 5, nil)
	for i, r := range rows {
		X.SetRow(i, r)
	}
	y := mat.NewDense(len(labels), 1, labels)
	clf := tree.NewDecisionTreeClassifier()
	require.NoError(t, clf.Fit(X, y))

	return &artifact.RunArtifact{
		ID:        "run-1",
		CreatedAt: time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC),
		Task:      model.Classification,
		Strategy:  "decision_tree",
		Metric: evaluate.Metric{
			Name: evaluate.Accuracy, Value: 1, Task: model.Classification,
			Actual: []float64{2, 0, 1}, Predicted: []float64{2, 0, 1},
		},
		Mapping:  &preprocessing.LabelMapping{Labels: []string{"cold", "covid", "flu"}},
		Features: []string{"fever", "cough", "fatigue", "nausea", "headache"},
		Target:   "disease",
		Model:    clf,
	}
}

func newServer(t *testing.T, form string, runs ...*artifact.RunArtifact) *echo.Echo {
	t.Helper()
	store, err := artifact.NewFileStore(t.TempDir())
	require.NoError(t, err)
	for _, a := range runs {
		require.NoError(t, store.Put(context.Background(), a))
	}
	logger, _ := log.NewTestLogger(log.LevelDebug)
	s := predict.NewSurface(store, predict.WithSurfaceLogger(logger))
	e, err := handlers.BuildServer(s, store, form, "off", logger)
	require.NoError(t, err)
	return e
}

func do(e *echo.Echo, method, target, contentType, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if contentType != "" {
		req.Header.Set(echo.HeaderContentType, contentType)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	return rec
}

func decodeOutcome(t *testing.T, rec *httptest.ResponseRecorder) predict.Outcome {
	t.Helper()
	var out predict.Outcome
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out))
	return out
}

func TestServerWithoutModel(t *testing.T) {
	e := newServer(t, predict.FormMedical)

	rec := do(e, http.MethodGet, "/", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Model offline")
	assert.Contains(t, rec.Body.String(), `name="fever"`)
	assert.Contains(t, rec.Body.String(), `<button type="submit" disabled>`)

	rec = do(e, http.MethodGet, "/api/status", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	var status predict.Availability
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &status))
	assert.False(t, status.Available)

	rec = do(e, http.MethodPost, "/api/predict", echo.MIMEApplicationJSON, `{"values":[1,0,0,0,0]}`)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, predict.StatusUnavailable, decodeOutcome(t, rec).Status)

	rec = do(e, http.MethodPost, "/predict", echo.MIMEApplicationForm, "fever=on")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "Model offline")

	rec = do(e, http.MethodGet, "/runs/latest/report", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestPredictForm(t *testing.T) {
	e := newServer(t, predict.FormMedical, medicalRun(t))

	rec := do(e, http.MethodGet, "/", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "Model online")
	assert.Contains(t, rec.Body.String(), "run-1")
	assert.Contains(t, rec.Body.String(), `<button type="submit">`)

	form := url.Values{"fever": {"on"}}
	rec = do(e, http.MethodPost, "/predict", echo.MIMEApplicationForm, form.Encode())
	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "Predicted Condition: flu")
	assert.Contains(t, body, "educational purposes")
}

func TestPredictAPI(t *testing.T) {
	e := newServer(t, predict.FormGeneric, medicalRun(t))

	tests := []struct {
		name    string
		body    string
		code    int
		status  predict.Status
		display string
	}{
		{"values", `{"values":[0,1,0,0,0]}`, http.StatusOK, predict.StatusOK, "cold"},
		{"keyed features", `{"features":{"headache":0,"nausea":0,"fatigue":1,"cough":0,"fever":0}}`, http.StatusOK, predict.StatusOK, "covid"},
		{"wrong count", `{"values":[1,0,0]}`, http.StatusUnprocessableEntity, predict.StatusRejected, ""},
		{"wrong columns", `{"columns":["a","b","c","d","e"],"values":[1,0,0,0,0]}`, http.StatusUnprocessableEntity, predict.StatusRejected, ""},
		{"empty body", `{}`, http.StatusBadRequest, predict.StatusRejected, ""},
		{"not json", `fever=1`, http.StatusBadRequest, predict.StatusRejected, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(e, http.MethodPost, "/api/predict", echo.MIMEApplicationJSON, tt.body)
			assert.Equal(t, tt.code, rec.Code)
			out := decodeOutcome(t, rec)
			assert.Equal(t, tt.status, out.Status)
			if tt.display != "" {
				require.NotNil(t, out.Prediction)
				assert.Equal(t, tt.display, out.Prediction.Display)
			} else {
				assert.Nil(t, out.Prediction)
			}
		})
	}
}

func TestReports(t *testing.T) {
	e := newServer(t, predict.FormGeneric, medicalRun(t))

	rec := do(e, http.MethodGet, "/runs/run-1/report", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get(echo.HeaderContentType), "text/html")
	assert.Contains(t, rec.Body.String(), "echarts")

	rec = do(e, http.MethodGet, "/runs/latest/report.svg", "", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "image/svg+xml", rec.Header().Get(echo.HeaderContentType))
	assert.Contains(t, rec.Body.String(), "<svg")

	rec = do(e, http.MethodGet, "/runs/run-404/report.svg", "", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = do(e, http.MethodGet, "/runs/.hidden/report", "", "")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuildServerUnknownForm(t *testing.T) {
	store, err := artifact.NewFileStore(t.TempDir())
	require.NoError(t, err)
	_, err = handlers.BuildServer(predict.NewSurface(store), store, "pets", "info", nil)
	assert.Error(t, err)
}
