// Package handlers exposes a predict.Surface over HTTP with echo.
package handlers

import (
	"bytes"
	"embed"
	"html/template"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/goccy/go-json"
	"github.com/labstack/echo/v4"

	"github.com/YuminosukeSato/tabflow/artifact"
	"github.com/YuminosukeSato/tabflow/core/model"
	"github.com/YuminosukeSato/tabflow/pkg/errors"
	"github.com/YuminosukeSato/tabflow/predict"
	"github.com/YuminosukeSato/tabflow/report"
)

//go:embed templates/*.html
var templateFS embed.FS

type renderer struct {
	t *template.Template
}

func newRenderer() (*renderer, error) {
	t, err := template.ParseFS(templateFS, "templates/*.html")
	if err != nil {
		return nil, errors.Wrap(err, "parse templates")
	}
	return &renderer{t: t}, nil
}

func (r *renderer) Render(w io.Writer, name string, data interface{}, _ echo.Context) error {
	return r.t.ExecuteTemplate(w, name, data)
}

type page struct {
	Form    *predict.Form
	Status  predict.Availability
	Outcome *predict.Outcome
	Task    model.Task
	Values  url.Values
}

// Value returns the submitted value of f, or its default.
func (p page) Value(f predict.Field) string {
	if v := p.Values.Get(f.Name); v != "" {
		return v
	}
	return strconv.FormatFloat(f.Default, 'f', -1, 64)
}

// Checked reports whether checkbox f was ticked in the last submission.
func (p page) Checked(f predict.Field) bool {
	switch p.Values.Get(f.Name) {
	case "on", "true", "1", "yes":
		return true
	}
	return false
}

func (p page) ResultTitle() string {
	if p.Task == model.Classification {
		return "Predicted Condition:"
	}
	if p.Form.Name == predict.FormHouse {
		return "Predicted House Price:"
	}
	return "Prediction:"
}

// FormFunc resolves the form to render for the served run.
type FormFunc func(features []string) (*predict.Form, error)

func newPage(c echo.Context, s *predict.Surface, forms FormFunc) (page, error) {
	ctx := c.Request().Context()
	var features []string
	var task model.Task
	if a, err := s.LoadLatestRun(ctx); err == nil {
		features, task = a.Features, a.Task
	}
	form, err := forms(features)
	if err != nil {
		return page{}, err
	}
	return page{Form: form, Status: s.Status(ctx), Task: task}, nil
}

// IndexHandler renders the input form and the model status.
func IndexHandler(s *predict.Surface, forms FormFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := newPage(c, s, forms)
		if err != nil {
			return err
		}
		return c.Render(http.StatusOK, "index", p)
	}
}

// PredictFormHandler handles a form submission and renders the result on the
// input page.
func PredictFormHandler(s *predict.Surface, forms FormFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		p, err := newPage(c, s, forms)
		if err != nil {
			return err
		}
		values, err := c.FormParams()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "malformed form").SetInternal(err)
		}
		p.Values = values

		var out predict.Outcome
		if v, err := p.Form.Parse(values); err != nil {
			out = predict.Outcome{Status: predict.StatusRejected, Message: err.Error()}
		} else {
			out = s.Submit(c.Request().Context(), v)
		}
		p.Outcome = &out
		return c.Render(statusCode(out.Status), "index", p)
	}
}

// StatusHandler reports model availability as JSON.
func StatusHandler(s *predict.Surface) echo.HandlerFunc {
	return func(c echo.Context) error {
		return writeJSON(c, http.StatusOK, s.Status(c.Request().Context()))
	}
}

// PredictRequest is the body of POST /api/predict. Features is keyed by
// column; otherwise Values is taken in schema order, checked against Columns
// when given.
type PredictRequest struct {
	Features map[string]float64 `json:"features,omitempty"`
	Columns  []string           `json:"columns,omitempty"`
	Values   []float64          `json:"values,omitempty"`
}

// PredictAPIHandler answers JSON predictions.
func PredictAPIHandler(s *predict.Surface) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req PredictRequest
		if err := json.NewDecoder(c.Request().Body).Decode(&req); err != nil {
			return writeJSON(c, http.StatusBadRequest, predict.Outcome{
				Status:  predict.StatusRejected,
				Message: "request body is not valid JSON",
			})
		}

		var v predict.FeatureVector
		switch {
		case req.Features != nil:
			v = predict.FromMap(req.Features)
		case req.Values != nil:
			v = predict.FeatureVector{Columns: req.Columns, Values: req.Values}
		default:
			return writeJSON(c, http.StatusBadRequest, predict.Outcome{
				Status:  predict.StatusRejected,
				Message: "request must carry features or values",
			})
		}

		out := s.Submit(c.Request().Context(), v)
		return writeJSON(c, statusCode(out.Status), out)
	}
}

// ReportHandler renders the holdout report of a run, as echarts HTML or, with
// svg set, as a gonum/plot image.
func ReportHandler(store artifact.Store, param string, svg bool) echo.HandlerFunc {
	return func(c echo.Context) error {
		a, err := store.Get(c.Request().Context(), c.Param(param))
		if err != nil {
			return httpError(err)
		}
		buf := new(bytes.Buffer)
		if svg {
			err = report.WriteSVG(buf, a)
		} else {
			err = report.WriteHTML(buf, a)
		}
		if err != nil {
			return httpError(err)
		}
		if svg {
			return c.Blob(http.StatusOK, "image/svg+xml", buf.Bytes())
		}
		return c.HTMLBlob(http.StatusOK, buf.Bytes())
	}
}

func statusCode(s predict.Status) int {
	switch s {
	case predict.StatusOK:
		return http.StatusOK
	case predict.StatusRejected:
		return http.StatusUnprocessableEntity
	case predict.StatusUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func httpError(err error) error {
	var (
		nf  *errors.ArtifactNotFoundError
		val *errors.ValidationError
		ve  *errors.ValueError
	)
	switch {
	case errors.As(err, &nf):
		return echo.NewHTTPError(http.StatusNotFound, nf.Error()).SetInternal(err)
	case errors.As(err, &val):
		return echo.NewHTTPError(http.StatusBadRequest, val.Error()).SetInternal(err)
	case errors.As(err, &ve):
		return echo.NewHTTPError(http.StatusUnprocessableEntity, ve.Error()).SetInternal(err)
	}
	return err
}

func writeJSON(c echo.Context, code int, v interface{}) error {
	b, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "encode response")
	}
	return c.JSONBlob(code, b)
}
