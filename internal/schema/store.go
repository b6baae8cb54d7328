package schema

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// Store persists captured schemas.
type Store interface {
	Save(ctx context.Context, s Schema) error
	Load(ctx context.Context) (Schema, error)
}

// FileStore keeps a single schema as indented JSON at Path.
type FileStore struct {
	Path string
}

// NewFileStore returns a store writing to path.
func NewFileStore(path string) *FileStore {
	return &FileStore{Path: path}
}

// Save writes s atomically: a temp file in the same directory is renamed
// over Path.
func (st *FileStore) Save(_ context.Context, s Schema) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}

	dir := filepath.Dir(st.Path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create schema dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".schema-*.json")
	if err != nil {
		return fmt.Errorf("create temp schema: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("write schema: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close schema: %w", err)
	}
	if err := os.Rename(tmp.Name(), st.Path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("rename schema: %w", err)
	}
	return nil
}

// Load reads and verifies the schema at Path.
func (st *FileStore) Load(_ context.Context) (Schema, error) {
	data, err := os.ReadFile(st.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Schema{}, fmt.Errorf("%s: %w", st.Path, ErrSchemaNotFound)
	}
	if err != nil {
		return Schema{}, fmt.Errorf("read schema: %w", err)
	}
	return Decode(data)
}

// Decode parses and verifies a JSON encoded schema.
func Decode(data []byte) (Schema, error) {
	var s Schema
	if err := json.Unmarshal(data, &s); err != nil {
		return Schema{}, fmt.Errorf("decode schema: %w", err)
	}
	if err := s.Verify(); err != nil {
		return Schema{}, err
	}
	return s, nil
}

var _ Store = (*FileStore)(nil)
