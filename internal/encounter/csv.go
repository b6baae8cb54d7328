package encounter

import (
	"bufio"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
)

// ErrNoHeader is returned when the CSV input has no header row.
var ErrNoHeader = errors.New("csv has no header row")

// CSVReader streams raw encounters from a CSV file with a single header row.
type CSVReader struct {
	closer  io.Closer
	csv     *csv.Reader
	headers []string
	rowNum  int64
}

// OpenCSV opens path and reads its header row.
func OpenCSV(path string) (*CSVReader, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	r, err := NewCSVReader(file)
	if err != nil {
		file.Close()
		return nil, err
	}
	r.closer = file
	return r, nil
}

// NewCSVReader wraps an already open stream. The caller keeps ownership of src.
func NewCSVReader(src io.Reader) (*CSVReader, error) {
	bufReader := bufio.NewReaderSize(src, 256*1024)

	// Skip UTF-8 BOM if present
	bom, err := bufReader.Peek(3)
	if err == nil && len(bom) >= 3 && bom[0] == 0xEF && bom[1] == 0xBB && bom[2] == 0xBF {
		bufReader.Discard(3)
	}

	reader := csv.NewReader(bufReader)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	r := &CSVReader{csv: reader}

	headers, err := reader.Read()
	if err == io.EOF {
		return nil, ErrNoHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read header row: %w", err)
	}
	r.rowNum++
	for i, h := range headers {
		headers[i] = strings.TrimSpace(h)
	}
	r.headers = headers
	return r, nil
}

// Headers returns the header row.
func (r *CSVReader) Headers() []string { return r.headers }

// Next returns the next encounter, or io.EOF when the input is exhausted.
// Short rows leave the trailing fields missing; extra cells are ignored.
func (r *CSVReader) Next() (Raw, error) {
	record, err := r.csv.Read()
	if err == io.EOF {
		return nil, io.EOF
	}
	r.rowNum++
	if err != nil {
		return nil, fmt.Errorf("row %d: %w", r.rowNum, err)
	}

	raw := make(Raw, len(r.headers))
	for i, h := range r.headers {
		if i >= len(record) {
			break
		}
		raw[h] = record[i]
	}
	return raw, nil
}

// ReadAll drains the reader.
func (r *CSVReader) ReadAll() ([]Raw, error) {
	var out []Raw
	for {
		raw, err := r.Next()
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, err
		}
		out = append(out, raw)
	}
}

// Close releases the underlying file when the reader opened it.
func (r *CSVReader) Close() error {
	if r.closer == nil {
		return nil
	}
	return r.closer.Close()
}

// ReadCSV loads every encounter in path.
func ReadCSV(path string) ([]Raw, error) {
	r, err := OpenCSV(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.ReadAll()
}
