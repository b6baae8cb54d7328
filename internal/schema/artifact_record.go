package schema

import (
	"time"

	"github.com/google/uuid"
)

// ArtifactRecord is the registry row describing one trained model.
type ArtifactRecord struct {
	ID                uuid.UUID
	SchemaFingerprint string
	Path              string
	Metrics           map[string]float64
	TrainedAt         time.Time
}
