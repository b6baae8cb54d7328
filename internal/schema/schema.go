// Package schema binds training-time and serving-time feature vectors to one
// ordered column list. A Schema is captured once after training-time
// encoding and every later vector is aligned onto it.
package schema

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/readmit/readmit/internal/encounter"
	"github.com/readmit/readmit/internal/features"
)

var (
	ErrSchemaNotFound = errors.New("feature schema not found")
	ErrSchemaCorrupt  = errors.New("feature schema fingerprint mismatch")
	ErrDuplicateCol   = errors.New("duplicate feature column")
	ErrNotNumeric     = errors.New("feature value is not numeric")
	ErrWidthMismatch  = errors.New("feature vector width does not match schema")
)

// Schema is the ordered feature column list a model was trained on, together
// with the fill values the training batch was cleaned with.
type Schema struct {
	ID          uuid.UUID           `json:"id"`
	Columns     []string            `json:"columns"`
	Fingerprint string              `json:"fingerprint"`
	Imputation  features.Imputation `json:"imputation"`
	CapturedAt  time.Time           `json:"captured_at"`
}

// Capture freezes the columns produced by a training-time encode.
func Capture(columns []string, imp features.Imputation) Schema {
	cols := append([]string{}, columns...)
	return Schema{
		ID:          uuid.New(),
		Columns:     cols,
		Fingerprint: Fingerprint(cols),
		Imputation:  imp,
		CapturedAt:  time.Now().UTC(),
	}
}

// Fingerprint is the hex SHA-256 of the newline-joined column names. Two
// schemas with the same fingerprint accept the same vectors.
func Fingerprint(columns []string) string {
	sum := sha256.Sum256([]byte(strings.Join(columns, "\n")))
	return hex.EncodeToString(sum[:])
}

// Width returns the number of columns.
func (s Schema) Width() int { return len(s.Columns) }

// Verify checks the fingerprint and that no column repeats.
func (s Schema) Verify() error {
	if Fingerprint(s.Columns) != s.Fingerprint {
		return ErrSchemaCorrupt
	}
	seen := make(map[string]bool, len(s.Columns))
	for _, c := range s.Columns {
		if seen[c] {
			return fmt.Errorf("%w: %s", ErrDuplicateCol, c)
		}
		seen[c] = true
	}
	return nil
}

// Align projects a frame onto the schema's columns: shared columns are
// copied, schema columns the frame lacks are zero, and frame columns the
// schema lacks are dropped. Labels are carried through unchanged.
func Align(f features.Frame, s Schema) features.Frame {
	src := make([]int, len(s.Columns))
	index := make(map[string]int, len(f.Columns))
	for j, c := range f.Columns {
		index[c] = j
	}
	for k, c := range s.Columns {
		if j, ok := index[c]; ok {
			src[k] = j
		} else {
			src[k] = -1
		}
	}

	out := features.Frame{
		Columns: append([]string{}, s.Columns...),
		Rows:    make([][]float64, len(f.Rows)),
		Labels:  f.Labels,
	}
	for i, row := range f.Rows {
		aligned := make([]float64, len(s.Columns))
		for k, j := range src {
			if j >= 0 && j < len(row) {
				aligned[k] = row[j]
			}
		}
		out.Rows[i] = aligned
	}
	return out
}

// AlignValues projects a single name→value mapping onto the schema. Missing
// names become zero and unknown names are ignored; it fails only when a
// value cannot be read as a number.
func AlignValues(values map[string]any, s Schema) ([]float64, error) {
	out := make([]float64, len(s.Columns))
	for k, c := range s.Columns {
		v, ok := values[c]
		if !ok {
			continue
		}
		n, err := toFloat(v)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", c, err)
		}
		out[k] = n
	}
	for name, v := range values {
		if _, err := toFloat(v); err != nil {
			return nil, fmt.Errorf("column %s: %w", name, err)
		}
	}
	return out, nil
}

func toFloat(v any) (float64, error) {
	switch n := v.(type) {
	case nil:
		return 0, nil
	case float64:
		return n, nil
	case float32:
		return float64(n), nil
	case int:
		return float64(n), nil
	case int32:
		return float64(n), nil
	case int64:
		return float64(n), nil
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, fmt.Errorf("%w: %q", ErrNotNumeric, n.String())
		}
		return f, nil
	case bool:
		if n {
			return 1, nil
		}
		return 0, nil
	}
	return 0, fmt.Errorf("%w: %T", ErrNotNumeric, v)
}

// Transform runs raw encounters through the serving path: clean with the
// persisted fill values, encode every observed level, then align onto the
// schema. The result always has exactly the schema's columns.
func (s Schema) Transform(batch []encounter.Raw) features.Frame {
	cleaned := features.CleanWith(batch, s.Imputation)
	return Align(features.EncodeAll(cleaned), s)
}
