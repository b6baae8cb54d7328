package serving

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"

	"github.com/readmit/readmit/internal/encounter"
	"github.com/readmit/readmit/internal/platform/middleware"
	"github.com/readmit/readmit/internal/schema"
)

var errBadRequest = errors.New("malformed request body")

// statusClientClosedRequest marks a request abandoned by the client.
const statusClientClosedRequest = 499

// Recorder observes prediction outcomes.
type Recorder interface {
	ObservePrediction(label int, probability float64)
	ObserveFailure()
}

type nopRecorder struct{}

func (nopRecorder) ObservePrediction(int, float64) {}
func (nopRecorder) ObserveFailure()                {}

type Handler struct {
	holder   *Holder
	static   fs.FS
	recorder Recorder
	logger   zerolog.Logger
}

// NewHandler creates a Handler. A nil static uses the embedded page.
func NewHandler(holder *Holder, static fs.FS, logger zerolog.Logger) *Handler {
	if static == nil {
		static = Static()
	}
	return &Handler{holder: holder, static: static, recorder: nopRecorder{}, logger: logger}
}

// WithRecorder sets the prediction recorder and returns h.
func (h *Handler) WithRecorder(r Recorder) *Handler {
	if r != nil {
		h.recorder = r
	}
	return h
}

func (h *Handler) RegisterRoutes(e *echo.Echo, predict ...echo.MiddlewareFunc) {
	e.GET("/", h.Index)
	e.GET("/static/*", echo.WrapHandler(http.StripPrefix("/static/", http.FileServer(http.FS(h.static)))))
	e.GET("/health", h.Health)
	e.GET("/schema", h.Schema)
	e.POST("/predict", h.Predict, predict...)
	e.POST("/predict/vector", h.PredictVector, predict...)
}

func (h *Handler) Index(c echo.Context) error {
	page, err := fs.ReadFile(h.static, "index.html")
	if err != nil {
		return echo.NewHTTPError(http.StatusNotFound, "index page not found")
	}
	return c.HTMLBlob(http.StatusOK, page)
}

func (h *Handler) Health(c echo.Context) error {
	resp := map[string]interface{}{
		"status":       "ok",
		"model_loaded": h.holder.Loaded(),
	}
	if a, err := h.holder.Artifact(); err == nil {
		resp["model_id"] = a.ID.String()
	}
	return c.JSON(http.StatusOK, resp)
}

// Schema lists the feature columns the loaded model expects.
func (h *Handler) Schema(c echo.Context) error {
	a, err := h.holder.Artifact()
	if err != nil {
		return echo.NewHTTPError(http.StatusServiceUnavailable, err.Error())
	}
	s := a.Schema
	return c.JSON(http.StatusOK, map[string]interface{}{
		"id":          s.ID,
		"fingerprint": s.Fingerprint,
		"columns":     s.Columns,
		"width":       s.Width(),
		"captured_at": s.CapturedAt,
	})
}

func (h *Handler) Predict(c echo.Context) error {
	raw, err := decodeRaw(c.Request().Body)
	if err != nil {
		return badRequest(err)
	}
	pred, err := h.holder.Predict(c.Request().Context(), raw)
	return h.respond(c, pred, err)
}

// PredictVector scores a body of already encoded feature columns.
func (h *Handler) PredictVector(c echo.Context) error {
	values, err := decodeObject(c.Request().Body)
	if err != nil {
		return badRequest(err)
	}
	pred, err := h.holder.PredictVector(c.Request().Context(), values)
	if errors.Is(err, schema.ErrNotNumeric) {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return h.respond(c, pred, err)
}

func (h *Handler) respond(c echo.Context, pred Prediction, err error) error {
	switch {
	case errors.Is(err, ErrModelUnavailable):
		return echo.NewHTTPError(http.StatusServiceUnavailable, "model not loaded")
	case errors.Is(err, context.Canceled):
		h.logger.Debug().Str("request_id", middleware.GetRequestID(c)).Msg("prediction canceled by client")
		return echo.NewHTTPError(statusClientClosedRequest, "request canceled").SetInternal(err)
	case err != nil:
		h.recorder.ObserveFailure()
		h.logger.Error().Err(err).Str("request_id", middleware.GetRequestID(c)).Msg("prediction failed")
		return echo.NewHTTPError(http.StatusInternalServerError, fmt.Sprintf("prediction error: %v", err)).SetInternal(err)
	}
	h.recorder.ObservePrediction(pred.Label, pred.Probability)
	return c.JSON(http.StatusOK, pred)
}

func badRequest(err error) error {
	var he *echo.HTTPError
	if errors.As(err, &he) {
		return he
	}
	return echo.NewHTTPError(http.StatusBadRequest, err.Error())
}

// decodeObject reads exactly one JSON object, keeping numbers as json.Number.
func decodeObject(body io.Reader) (map[string]interface{}, error) {
	dec := json.NewDecoder(body)
	dec.UseNumber()

	var fields map[string]interface{}
	if err := dec.Decode(&fields); err != nil {
		var he *echo.HTTPError
		if errors.As(err, &he) {
			return nil, he
		}
		return nil, fmt.Errorf("%w: %v", errBadRequest, err)
	}
	if fields == nil {
		return nil, fmt.Errorf("%w: expected a JSON object", errBadRequest)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after object", errBadRequest)
	}
	return fields, nil
}

// decodeRaw reads a JSON object of raw encounter fields. Strings and numbers
// are taken as cell text and null means missing; any other value is rejected.
func decodeRaw(body io.Reader) (encounter.Raw, error) {
	fields, err := decodeObject(body)
	if err != nil {
		return nil, err
	}

	raw := make(encounter.Raw, len(fields))
	for name, v := range fields {
		switch val := v.(type) {
		case nil:
		case string:
			raw[name] = strings.TrimSpace(val)
		case json.Number:
			raw[name] = val.String()
		default:
			return nil, fmt.Errorf("%w: field %q must be a string, number or null", errBadRequest, name)
		}
	}
	return raw, nil
}
