package encounter

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
)

const flushInterval = 100_000

// CleanedWriter writes cleaned encounters to a parquet file.
type CleanedWriter struct {
	file   *os.File
	writer *parquet.GenericWriter[Cleaned]
	count  int
}

// NewCleanedWriter creates path and prepares a Snappy-compressed writer.
func NewCleanedWriter(path string) (*CleanedWriter, error) {
	file, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("create cleaned parquet: %w", err)
	}
	writer := parquet.NewGenericWriter[Cleaned](file,
		parquet.Compression(&parquet.Snappy),
	)
	return &CleanedWriter{file: file, writer: writer}, nil
}

// Write appends rows, flushing every flushInterval rows.
func (w *CleanedWriter) Write(rows []Cleaned) error {
	for start := 0; start < len(rows); start += flushInterval {
		end := min(start+flushInterval, len(rows))
		if _, err := w.writer.Write(rows[start:end]); err != nil {
			return fmt.Errorf("write cleaned rows: %w", err)
		}
		w.count += end - start
		if err := w.writer.Flush(); err != nil {
			return fmt.Errorf("flush cleaned rows: %w", err)
		}
	}
	return nil
}

// Close flushes and closes the writer.
func (w *CleanedWriter) Close() error {
	if err := w.writer.Close(); err != nil {
		w.file.Close()
		return fmt.Errorf("close cleaned writer: %w", err)
	}
	return w.file.Close()
}

// Count returns the number of rows written.
func (w *CleanedWriter) Count() int { return w.count }

// WriteCleaned writes a whole batch to path.
func WriteCleaned(path string, rows []Cleaned) error {
	w, err := NewCleanedWriter(path)
	if err != nil {
		return err
	}
	if err := w.Write(rows); err != nil {
		w.Close()
		return err
	}
	return w.Close()
}

// ReadCleaned loads a cleaned parquet file written by WriteCleaned.
func ReadCleaned(path string) ([]Cleaned, error) {
	rows, err := parquet.ReadFile[Cleaned](path)
	if err != nil {
		return nil, fmt.Errorf("read cleaned parquet %s: %w", path, err)
	}
	return rows, nil
}
