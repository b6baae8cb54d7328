package features

import (
	"errors"
	"fmt"
)

// ErrRaggedFrame is returned when a row's width differs from the column count.
var ErrRaggedFrame = errors.New("row width does not match column count")

// Frame is a dense numeric matrix with named columns. Labels is index-aligned
// with Rows and may be nil when outcomes are unknown.
type Frame struct {
	Columns []string
	Rows    [][]float64
	Labels  []float64
}

// Len returns the number of rows.
func (f Frame) Len() int { return len(f.Rows) }

// Width returns the number of columns.
func (f Frame) Width() int { return len(f.Columns) }

// ColumnIndex returns the position of a named column.
func (f Frame) ColumnIndex(name string) (int, bool) {
	for i, c := range f.Columns {
		if c == name {
			return i, true
		}
	}
	return 0, false
}

// Value returns row i of the named column, or 0 when the column is absent.
func (f Frame) Value(i int, name string) float64 {
	j, ok := f.ColumnIndex(name)
	if !ok {
		return 0
	}
	return f.Rows[i][j]
}

// Subset returns a frame holding only the given rows, sharing row storage.
func (f Frame) Subset(idx []int) Frame {
	out := Frame{Columns: f.Columns, Rows: make([][]float64, len(idx))}
	if f.Labels != nil {
		out.Labels = make([]float64, len(idx))
	}
	for k, i := range idx {
		out.Rows[k] = f.Rows[i]
		if f.Labels != nil {
			out.Labels[k] = f.Labels[i]
		}
	}
	return out
}

// Validate checks that every row matches the column count and labels, when
// present, match the row count.
func (f Frame) Validate() error {
	for i, r := range f.Rows {
		if len(r) != len(f.Columns) {
			return fmt.Errorf("row %d has %d values for %d columns: %w", i, len(r), len(f.Columns), ErrRaggedFrame)
		}
	}
	if f.Labels != nil && len(f.Labels) != len(f.Rows) {
		return fmt.Errorf("%d labels for %d rows: %w", len(f.Labels), len(f.Rows), ErrRaggedFrame)
	}
	return nil
}
