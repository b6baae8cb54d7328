package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/klauspost/compress/zstd"

	"github.com/readmit/readmit/internal/schema"
)

// ArtifactVersion is bumped whenever the encoded layout changes.
const ArtifactVersion = 1

var (
	ErrArtifactNotFound = errors.New("model artifact not found")
	ErrArtifactVersion  = errors.New("unsupported model artifact version")
)

// Artifact is the persisted result of a training run: the ensemble and the
// schema its input vectors must follow.
type Artifact struct {
	Version   int           `json:"version"`
	ID        uuid.UUID     `json:"id"`
	Booster   *Booster      `json:"booster"`
	Schema    schema.Schema `json:"schema"`
	Params    Params        `json:"params"`
	Metrics   Metrics       `json:"metrics"`
	TrainedAt time.Time     `json:"trained_at"`
}

// Predict scores one aligned vector.
func (a *Artifact) Predict(x []float64) (label int, prob float64, err error) {
	if len(x) != a.Schema.Width() {
		return 0, 0, fmt.Errorf("%w: got %d, want %d", schema.ErrWidthMismatch, len(x), a.Schema.Width())
	}
	if a.Booster == nil || a.Booster.Width != len(x) {
		return 0, 0, fmt.Errorf("%w: booster does not match schema", schema.ErrWidthMismatch)
	}
	prob = a.Booster.PredictProba(x)
	if prob >= 0.5 {
		label = 1
	}
	return label, prob, nil
}

func (a *Artifact) validate() error {
	if a.Version != ArtifactVersion {
		return fmt.Errorf("%w: %d", ErrArtifactVersion, a.Version)
	}
	if a.Booster == nil {
		return errors.New("model artifact has no booster")
	}
	if err := a.Schema.Verify(); err != nil {
		return err
	}
	if a.Booster.Width != a.Schema.Width() {
		return fmt.Errorf("%w: booster %d, schema %d", schema.ErrWidthMismatch, a.Booster.Width, a.Schema.Width())
	}
	return nil
}

// SaveArtifact writes a as zstd-compressed JSON, replacing path atomically.
func SaveArtifact(path string, a *Artifact) error {
	if err := a.validate(); err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".model-*.zst")
	if err != nil {
		return fmt.Errorf("create temp artifact: %w", err)
	}
	defer os.Remove(tmp.Name())

	enc, err := zstd.NewWriter(tmp)
	if err != nil {
		tmp.Close()
		return fmt.Errorf("create zstd writer: %w", err)
	}
	if err := json.NewEncoder(enc).Encode(a); err != nil {
		enc.Close()
		tmp.Close()
		return fmt.Errorf("encode artifact: %w", err)
	}
	if err := enc.Close(); err != nil {
		tmp.Close()
		return fmt.Errorf("flush artifact: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename artifact: %w", err)
	}
	return nil
}

// LoadArtifact reads and validates an artifact written by SaveArtifact.
func LoadArtifact(path string) (*Artifact, error) {
	file, err := os.Open(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%s: %w", path, ErrArtifactNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("open artifact: %w", err)
	}
	defer file.Close()

	dec, err := zstd.NewReader(file)
	if err != nil {
		return nil, fmt.Errorf("create zstd reader: %w", err)
	}
	defer dec.Close()

	var a Artifact
	if err := json.NewDecoder(dec).Decode(&a); err != nil {
		return nil, fmt.Errorf("decode artifact %s: %w", path, err)
	}
	if err := a.validate(); err != nil {
		return nil, fmt.Errorf("artifact %s: %w", path, err)
	}
	return &a, nil
}
