package features

import (
	"fmt"
	"os"

	"github.com/parquet-go/parquet-go"
	"github.com/parquet-go/parquet-go/compress/zstd"
)

// FeatureRow is the parquet row of the feature intermediate file. Column
// names are not stored in the file; they live in the captured schema.
type FeatureRow struct {
	Label  float64   `parquet:"label"`
	Values []float64 `parquet:"values,list"`
}

// WriteFrame persists a frame's rows and labels to path.
func WriteFrame(path string, f Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}

	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create feature parquet: %w", err)
	}
	writer := parquet.NewGenericWriter[FeatureRow](file,
		parquet.Compression(&zstd.Codec{Level: zstd.SpeedDefault}),
		parquet.CreatedBy("readmit", "1.0", ""),
	)

	rows := make([]FeatureRow, len(f.Rows))
	for i, r := range f.Rows {
		rows[i].Values = r
		if f.Labels != nil {
			rows[i].Label = f.Labels[i]
		}
	}
	if _, err := writer.Write(rows); err != nil {
		writer.Close()
		file.Close()
		return fmt.Errorf("write feature rows: %w", err)
	}
	if err := writer.Close(); err != nil {
		file.Close()
		return fmt.Errorf("close feature writer: %w", err)
	}
	return file.Close()
}

// ReadFrame loads a feature file and names its columns. The file's width must
// match columns exactly.
func ReadFrame(path string, columns []string) (Frame, error) {
	rows, err := parquet.ReadFile[FeatureRow](path)
	if err != nil {
		return Frame{}, fmt.Errorf("read feature parquet %s: %w", path, err)
	}

	f := Frame{
		Columns: columns,
		Rows:    make([][]float64, len(rows)),
		Labels:  make([]float64, len(rows)),
	}
	for i, r := range rows {
		f.Rows[i] = r.Values
		f.Labels[i] = r.Label
	}
	if err := f.Validate(); err != nil {
		return Frame{}, fmt.Errorf("feature file %s does not match schema: %w", path, err)
	}
	return f, nil
}
