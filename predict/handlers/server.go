package handlers

import (
	"strings"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	glog "github.com/labstack/gommon/log"

	"github.com/YuminosukeSato/tabflow/artifact"
	"github.com/YuminosukeSato/tabflow/pkg/log"
	"github.com/YuminosukeSato/tabflow/predict"
)

// Route parameter naming the run of the report endpoints.
const RunIDParam = "id"

// SetLevel maps a tabflow log level onto echo's logger.
func SetLevel(e *echo.Echo, loglevel string) {
	switch strings.ToLower(loglevel) {
	case "debug":
		e.Logger.SetLevel(glog.DEBUG)
	case "info":
		e.Logger.SetLevel(glog.INFO)
	case "warn", "warning", "":
		e.Logger.SetLevel(glog.WARN)
	case "error":
		e.Logger.SetLevel(glog.ERROR)
	case "off":
		e.Logger.SetLevel(glog.OFF)
	default:
		e.Logger.SetLevel(glog.WARN)
		e.Logger.Warnf("unknown loglevel: %s . fall-backed to warn", loglevel)
	}
}

// requestLog records every request with its status and latency.
func requestLog(logger log.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			begin := time.Now()
			err := next(c)
			logger.Debug("Request served",
				"http.method", c.Request().Method,
				"http.path", c.Request().URL.Path,
				"http.status", c.Response().Status,
				log.DurationMsKey, time.Since(begin).Milliseconds(),
			)
			return err
		}
	}
}

// BuildServer wires the prediction surface and the report endpoints. form
// names a built-in predict form.
func BuildServer(s *predict.Surface, store artifact.Store, form, loglevel string, logger log.Logger) (*echo.Echo, error) {
	if _, err := predict.LookupForm(form, nil); err != nil {
		return nil, err
	}
	forms := func(features []string) (*predict.Form, error) {
		return predict.LookupForm(form, features)
	}
	r, err := newRenderer()
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = log.GetLoggerWithName("http")
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Renderer = r
	SetLevel(e, loglevel)

	e.HTTPErrorHandler = func(err error, c echo.Context) {
		e.DefaultHTTPErrorHandler(err, c)
		if he, ok := err.(*echo.HTTPError); ok && he.Code < 500 {
			return
		}
		logger.Error("Request failed", err, "http.path", c.Request().URL.Path)
	}

	e.Use(middleware.Recover())
	e.Use(requestLog(logger))

	e.GET("/", IndexHandler(s, forms))
	e.POST("/predict", PredictFormHandler(s, forms))
	e.GET("/api/status", StatusHandler(s))
	e.POST("/api/predict", PredictAPIHandler(s))
	e.GET("/runs/:"+RunIDParam+"/report", ReportHandler(store, RunIDParam, false))
	e.GET("/runs/:"+RunIDParam+"/report.svg", ReportHandler(store, RunIDParam, true))
	return e, nil
}
