// Package pipeline runs the batch stages: clean the raw extract, build the
// feature matrix and capture its schema, then train and persist the model.
// Each stage reads the previous stage's file so stages can run separately.
package pipeline

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"

	"github.com/readmit/readmit/internal/encounter"
	"github.com/readmit/readmit/internal/features"
	"github.com/readmit/readmit/internal/model"
	"github.com/readmit/readmit/internal/schema"
)

// Paths locates every stage's input and output.
type Paths struct {
	Raw      string
	Cleaned  string
	Features string
	Schema   string
	Model    string
}

// FillPath is the sidecar holding the fill values the cleaned file was
// produced with.
func (p Paths) FillPath() string {
	return p.Cleaned + ".fill.json"
}

// Registry mirrors schemas and artifacts into an external store.
type Registry interface {
	Save(ctx context.Context, s schema.Schema) error
	RecordArtifact(ctx context.Context, a schema.ArtifactRecord) error
}

type Runner struct {
	paths        Paths
	params       model.Params
	testFraction float64
	schemas      schema.Store
	registry     Registry
	logger       zerolog.Logger
}

// NewRunner creates a Runner. registry may be nil.
func NewRunner(paths Paths, params model.Params, testFraction float64, registry Registry, logger zerolog.Logger) *Runner {
	return &Runner{
		paths:        paths,
		params:       params,
		testFraction: testFraction,
		schemas:      schema.NewFileStore(paths.Schema),
		registry:     registry,
		logger:       logger,
	}
}

// Clean reads the raw CSV, imputes and groups it, and writes the cleaned
// parquet file plus its fill values.
func (r *Runner) Clean(ctx context.Context) error {
	start := time.Now()
	raw, err := encounter.ReadCSV(r.paths.Raw)
	if err != nil {
		return fmt.Errorf("read raw data: %w", err)
	}
	if len(raw) == 0 {
		return fmt.Errorf("%s: %w", r.paths.Raw, model.ErrEmptyData)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	cleaned, imp := features.Clean(raw)
	if err := ensureDir(r.paths.Cleaned); err != nil {
		return err
	}
	if err := encounter.WriteCleaned(r.paths.Cleaned, cleaned); err != nil {
		return err
	}
	if err := writeJSON(r.paths.FillPath(), imp); err != nil {
		return fmt.Errorf("write fill values: %w", err)
	}

	evt := r.logger.Info().
		Int("rows", len(cleaned)).
		Str("output", r.paths.Cleaned).
		Dur("elapsed", time.Since(start))
	for field, v := range imp.Modes {
		evt = evt.Str("mode_"+field, v)
	}
	for _, field := range encounter.DiagnosisFields {
		evt = evt.Float64("median_"+field, imp.Medians[field])
	}
	evt.Msg("cleaned raw encounters")
	return nil
}

// Featurize encodes the cleaned file, captures the schema and writes the
// feature file.
func (r *Runner) Featurize(ctx context.Context) (schema.Schema, error) {
	cleaned, err := encounter.ReadCleaned(r.paths.Cleaned)
	if err != nil {
		return schema.Schema{}, err
	}
	if len(cleaned) == 0 {
		return schema.Schema{}, fmt.Errorf("%s: %w", r.paths.Cleaned, model.ErrEmptyData)
	}
	var imp features.Imputation
	if err := readJSON(r.paths.FillPath(), &imp); err != nil {
		return schema.Schema{}, fmt.Errorf("read fill values: %w", err)
	}

	f := features.Encode(cleaned)
	s := schema.Capture(f.Columns, imp)

	if err := ensureDir(r.paths.Features); err != nil {
		return schema.Schema{}, err
	}
	if err := features.WriteFrame(r.paths.Features, f); err != nil {
		return schema.Schema{}, err
	}
	if err := r.schemas.Save(ctx, s); err != nil {
		return schema.Schema{}, err
	}
	if r.registry != nil {
		if err := r.registry.Save(ctx, s); err != nil {
			return schema.Schema{}, fmt.Errorf("mirror schema: %w", err)
		}
	}

	r.logger.Info().
		Int("rows", f.Len()).
		Int("columns", f.Width()).
		Str("fingerprint", s.Fingerprint).
		Str("output", r.paths.Features).
		Msg("built feature matrix")
	return s, nil
}

// Train fits the model on the feature file and writes the artifact.
func (r *Runner) Train(ctx context.Context) (*model.Artifact, error) {
	s, err := r.schemas.Load(ctx)
	if err != nil {
		return nil, err
	}
	f, err := features.ReadFrame(r.paths.Features, s.Columns)
	if err != nil {
		return nil, err
	}

	a, err := model.NewTrainer(r.params, r.testFraction, r.logger).Fit(ctx, f, s)
	if err != nil {
		return nil, err
	}
	if err := model.SaveArtifact(r.paths.Model, a); err != nil {
		return nil, err
	}
	if r.registry != nil {
		err := r.registry.RecordArtifact(ctx, schema.ArtifactRecord{
			ID:                a.ID,
			SchemaFingerprint: s.Fingerprint,
			Path:              r.paths.Model,
			Metrics:           a.Metrics.Map(),
			TrainedAt:         a.TrainedAt,
		})
		if err != nil {
			return nil, fmt.Errorf("record artifact: %w", err)
		}
	}

	r.logger.Info().
		Str("model_id", a.ID.String()).
		Str("output", r.paths.Model).
		Msg("saved model artifact")
	return a, nil
}

// Run executes every stage in order.
func (r *Runner) Run(ctx context.Context) (*model.Artifact, error) {
	if err := r.Clean(ctx); err != nil {
		return nil, fmt.Errorf("clean: %w", err)
	}
	if _, err := r.Featurize(ctx); err != nil {
		return nil, fmt.Errorf("featurize: %w", err)
	}
	a, err := r.Train(ctx)
	if err != nil {
		return nil, fmt.Errorf("train: %w", err)
	}
	return a, nil
}

func ensureDir(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}
	return nil
}

func writeJSON(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func readJSON(path string, v interface{}) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}
