// Package serving exposes a trained model over HTTP.
package serving

import (
	"context"
	"errors"
	"fmt"
	"sync/atomic"

	"github.com/rs/zerolog"

	"github.com/readmit/readmit/internal/encounter"
	"github.com/readmit/readmit/internal/model"
	"github.com/readmit/readmit/internal/schema"
)

var ErrModelUnavailable = errors.New("model is not loaded")

// Prediction is the response of a single scoring request.
type Prediction struct {
	Label       int     `json:"readmission_prediction"`
	Probability float64 `json:"probability"`
	ModelID     string  `json:"model_id"`
}

// Holder owns the loaded artifact. The artifact is never mutated after load,
// so any number of requests may score against it concurrently.
type Holder struct {
	artifact atomic.Pointer[model.Artifact]
	loadErr  error
}

// Open loads the artifact at path. A load failure is recorded rather than
// returned so the server can still start and answer 503.
func Open(path string, logger zerolog.Logger) *Holder {
	h := &Holder{}
	a, err := model.LoadArtifact(path)
	if err != nil {
		h.loadErr = err
		logger.Error().Err(err).Str("path", path).Msg("model artifact not loaded")
		return h
	}
	h.artifact.Store(a)
	logger.Info().
		Str("path", path).
		Str("model_id", a.ID.String()).
		Int("columns", a.Schema.Width()).
		Int("trees", len(a.Booster.Trees)).
		Msg("model artifact loaded")
	return h
}

// NewHolder wraps an already loaded artifact.
func NewHolder(a *model.Artifact) *Holder {
	h := &Holder{}
	h.artifact.Store(a)
	return h
}

// Artifact returns the loaded artifact or an error wrapping
// ErrModelUnavailable.
func (h *Holder) Artifact() (*model.Artifact, error) {
	a := h.artifact.Load()
	if a == nil {
		if h.loadErr != nil {
			return nil, fmt.Errorf("%w: %v", ErrModelUnavailable, h.loadErr)
		}
		return nil, ErrModelUnavailable
	}
	return a, nil
}

// Loaded reports whether a model is available.
func (h *Holder) Loaded() bool {
	return h.artifact.Load() != nil
}

// Predict runs one raw encounter through the persisted schema and scores it.
func (h *Holder) Predict(ctx context.Context, raw encounter.Raw) (Prediction, error) {
	a, err := h.Artifact()
	if err != nil {
		return Prediction{}, err
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	f := a.Schema.Transform([]encounter.Raw{raw})
	return score(a, f.Rows[0])
}

// PredictVector scores an already encoded feature mapping. Columns the schema
// does not know are ignored and missing ones are zero.
func (h *Holder) PredictVector(ctx context.Context, values map[string]any) (Prediction, error) {
	a, err := h.Artifact()
	if err != nil {
		return Prediction{}, err
	}
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}

	x, err := schema.AlignValues(values, a.Schema)
	if err != nil {
		return Prediction{}, err
	}
	return score(a, x)
}

func score(a *model.Artifact, x []float64) (Prediction, error) {
	label, prob, err := a.Predict(x)
	if err != nil {
		return Prediction{}, fmt.Errorf("predict: %w", err)
	}
	return Prediction{Label: label, Probability: prob, ModelID: a.ID.String()}, nil
}

// Close releases the artifact. Later calls report ErrModelUnavailable.
func (h *Holder) Close() error {
	h.artifact.Store(nil)
	return nil
}
