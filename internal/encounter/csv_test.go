package encounter

import (
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestCSVReader_ReadsRows(t *testing.T) {
	data := "encounter_id,race,gender,diag_1\n1,Caucasian,Female,428\n2,?,Male,V45\n"
	r, err := NewCSVReader(strings.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	rows, err := r.ReadAll()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Get(FieldRace) != "Caucasian" {
		t.Errorf("expected Caucasian, got %s", rows[0].Get(FieldRace))
	}
	if !rows[1].Missing(FieldRace) {
		t.Error("expected ? to be treated as missing")
	}
	if rows[1].Get(FieldDiag1) != "V45" {
		t.Errorf("expected V45, got %s", rows[1].Get(FieldDiag1))
	}
}

func TestCSVReader_SkipsBOM(t *testing.T) {
	data := "\xEF\xBB\xBFrace,gender\nAsian,Female\n"
	r, err := NewCSVReader(strings.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if r.Headers()[0] != "race" {
		t.Errorf("expected header race, got %q", r.Headers()[0])
	}
	raw, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if raw.Get(FieldRace) != "Asian" {
		t.Errorf("expected Asian, got %s", raw.Get(FieldRace))
	}
	if _, err := r.Next(); err != io.EOF {
		t.Errorf("expected io.EOF, got %v", err)
	}
}

func TestCSVReader_ShortRowLeavesFieldsMissing(t *testing.T) {
	data := "race,gender,age\nAsian\n"
	r, err := NewCSVReader(strings.NewReader(data))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	raw, err := r.Next()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !raw.Missing(FieldAge) {
		t.Error("expected age to be missing on a short row")
	}
}

func TestCSVReader_EmptyInput(t *testing.T) {
	if _, err := NewCSVReader(strings.NewReader("")); err != ErrNoHeader {
		t.Errorf("expected ErrNoHeader, got %v", err)
	}
}

func TestReadCSV_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "raw.csv")
	if err := os.WriteFile(path, []byte("race,age\nAsian,[70-80)\nOther,[50-60)\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	rows, err := ReadCSV(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(rows) != 2 {
		t.Errorf("expected 2 rows, got %d", len(rows))
	}
}

func TestReadCSV_MissingFile(t *testing.T) {
	if _, err := ReadCSV(filepath.Join(t.TempDir(), "nope.csv")); err == nil {
		t.Error("expected error for missing file")
	}
}
