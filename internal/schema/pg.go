package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGStore mirrors captured schemas into the feature_schemas table. Load
// returns the most recently captured schema.
type PGStore struct {
	pool *pgxpool.Pool
}

func NewPGStore(pool *pgxpool.Pool) *PGStore {
	return &PGStore{pool: pool}
}

const schemaCols = `id, columns, fingerprint, imputation, captured_at`

// Save inserts s. Re-capturing an identical column list is a no-op.
func (r *PGStore) Save(ctx context.Context, s Schema) error {
	cols, err := json.Marshal(s.Columns)
	if err != nil {
		return fmt.Errorf("marshal columns: %w", err)
	}
	imp, err := json.Marshal(s.Imputation)
	if err != nil {
		return fmt.Errorf("marshal imputation: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO feature_schemas (fingerprint, id, columns, imputation, width, captured_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (fingerprint) DO NOTHING`,
		s.Fingerprint, s.ID, cols, imp, len(s.Columns), s.CapturedAt,
	)
	if err != nil {
		return fmt.Errorf("insert feature schema: %w", err)
	}
	return nil
}

func (r *PGStore) Load(ctx context.Context) (Schema, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+schemaCols+` FROM feature_schemas ORDER BY captured_at DESC LIMIT 1`)
	return scanSchema(row)
}

// Get returns the schema with the given fingerprint.
func (r *PGStore) Get(ctx context.Context, fingerprint string) (Schema, error) {
	row := r.pool.QueryRow(ctx, `SELECT `+schemaCols+` FROM feature_schemas WHERE fingerprint = $1`, fingerprint)
	return scanSchema(row)
}

// List returns every stored schema, newest first.
func (r *PGStore) List(ctx context.Context) ([]Schema, error) {
	rows, err := r.pool.Query(ctx, `SELECT `+schemaCols+` FROM feature_schemas ORDER BY captured_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("list feature schemas: %w", err)
	}
	defer rows.Close()

	var out []Schema
	for rows.Next() {
		s, err := scanSchema(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate feature schemas: %w", err)
	}
	return out, nil
}

// RecordArtifact links a trained artifact to its schema.
func (r *PGStore) RecordArtifact(ctx context.Context, a ArtifactRecord) error {
	metrics, err := json.Marshal(a.Metrics)
	if err != nil {
		return fmt.Errorf("marshal metrics: %w", err)
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO model_artifacts (id, schema_fingerprint, path, metrics, trained_at)
		VALUES ($1, $2, $3, $4, $5)`,
		a.ID, a.SchemaFingerprint, a.Path, metrics, a.TrainedAt,
	)
	if err != nil {
		return fmt.Errorf("insert model artifact: %w", err)
	}
	return nil
}

func scanSchema(row pgx.Row) (Schema, error) {
	var (
		s          Schema
		cols, imps []byte
	)
	err := row.Scan(&s.ID, &cols, &s.Fingerprint, &imps, &s.CapturedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Schema{}, ErrSchemaNotFound
	}
	if err != nil {
		return Schema{}, fmt.Errorf("scan feature schema: %w", err)
	}
	if err := json.Unmarshal(cols, &s.Columns); err != nil {
		return Schema{}, fmt.Errorf("decode columns: %w", err)
	}
	if err := json.Unmarshal(imps, &s.Imputation); err != nil {
		return Schema{}, fmt.Errorf("decode imputation: %w", err)
	}
	if err := s.Verify(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

var _ Store = (*PGStore)(nil)
