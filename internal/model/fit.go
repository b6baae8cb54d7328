package model

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/readmit/readmit/internal/features"
	"github.com/readmit/readmit/internal/schema"
)

// Trainer runs a full training job: holdout split, boosting, evaluation.
type Trainer struct {
	params       Params
	testFraction float64
	logger       zerolog.Logger
}

// NewTrainer creates a Trainer. testFraction is the held-out share of rows.
func NewTrainer(params Params, testFraction float64, logger zerolog.Logger) *Trainer {
	return &Trainer{params: params, testFraction: testFraction, logger: logger}
}

// Fit trains on f, which must already follow s, and returns the artifact
// bound to s.
func (t *Trainer) Fit(ctx context.Context, f features.Frame, s schema.Schema) (*Artifact, error) {
	if f.Width() != s.Width() {
		return nil, fmt.Errorf("%w: frame %d, schema %d", schema.ErrWidthMismatch, f.Width(), s.Width())
	}
	if len(f.Labels) != f.Len() {
		return nil, ErrMissingLabels
	}

	trainIdx, testIdx, err := TrainTestSplit(f.Len(), t.testFraction, t.params.Seed)
	if err != nil {
		return nil, err
	}
	trainSet, testSet := f.Subset(trainIdx), f.Subset(testIdx)

	t.logger.Info().
		Int("train_rows", trainSet.Len()).
		Int("test_rows", testSet.Len()).
		Int("columns", f.Width()).
		Int("estimators", t.params.Estimators).
		Msg("training started")

	start := time.Now()
	booster, err := Train(ctx, trainSet, t.params)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	metrics := Evaluate(booster, testSet)

	t.logger.Info().
		Dur("elapsed", time.Since(start)).
		Float64("accuracy", metrics.Accuracy).
		Float64("log_loss", metrics.LogLoss).
		Float64("auc", metrics.AUC).
		Msg("training finished")

	return &Artifact{
		Version:   ArtifactVersion,
		ID:        uuid.New(),
		Booster:   booster,
		Schema:    s,
		Params:    t.params,
		Metrics:   metrics,
		TrainedAt: time.Now().UTC(),
	}, nil
}
