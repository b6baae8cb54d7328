package features

import (
	"sort"

	"github.com/readmit/readmit/internal/diagnosis"
	"github.com/readmit/readmit/internal/encounter"
)

// RetainedNumeric are the count columns copied into the feature matrix, in
// column order. Lab procedure and procedure counts are deliberately absent.
var RetainedNumeric = []string{
	encounter.FieldTimeInHospital,
	encounter.FieldNumMedications,
	encounter.FieldNumberOutpatient,
	encounter.FieldNumberEmergency,
	encounter.FieldNumberInpatient,
	encounter.FieldNumberDiagnoses,
}

// CategoricalFields are expanded into indicator columns, in column order.
var CategoricalFields = append([]string{
	encounter.FieldMedicalSpecialty,
	encounter.FieldRace,
	encounter.FieldGender,
	encounter.FieldAge,
	encounter.FieldDiagGroup1,
	encounter.FieldDiagGroup2,
	encounter.FieldDiagGroup3,
	encounter.FieldDiabetesMed,
}, encounter.EncodedMedications...)

var (
	ageLevels = []string{
		"[0-10)", "[10-20)", "[20-30)", "[30-40)", "[40-50)",
		"[50-60)", "[60-70)", "[70-80)", "[80-90)", "[90-100)",
	}
	genderLevels     = []string{"Female", "Male", "Unknown/Invalid"}
	yesNoLevels      = []string{"No", "Yes"}
	medicationLevels = []string{"No", "Steady", "Up", "Down"}
)

// diagnosisLevels puts Other first so the residual category is the reference.
func diagnosisLevels() []string {
	levels := []string{diagnosis.Other.String()}
	for _, c := range diagnosis.Categories() {
		if c != diagnosis.Other {
			levels = append(levels, c.String())
		}
	}
	return levels
}

// Levels returns the declared level order of a categorical field, or nil when
// the field is ordered lexically.
func Levels(field string) []string {
	switch field {
	case encounter.FieldAge:
		return ageLevels
	case encounter.FieldGender:
		return genderLevels
	case encounter.FieldDiabetesMed:
		return yesNoLevels
	case encounter.FieldDiagGroup1, encounter.FieldDiagGroup2, encounter.FieldDiagGroup3:
		return diagnosisLevels()
	}
	for _, m := range encounter.EncodedMedications {
		if m == field {
			return medicationLevels
		}
	}
	return nil
}

// SortLevels orders values for field: declared levels first in declaration
// order, then anything undeclared lexically. The first element is the
// field's reference level.
func SortLevels(field string, values []string) {
	declared := Levels(field)
	rank := make(map[string]int, len(declared))
	for i, l := range declared {
		rank[l] = i
	}
	sort.SliceStable(values, func(i, j int) bool {
		ri, iok := rank[values[i]]
		rj, jok := rank[values[j]]
		switch {
		case iok && jok:
			return ri < rj
		case iok:
			return true
		case jok:
			return false
		}
		return values[i] < values[j]
	})
}

// ColumnName is the indicator column name for a field level.
func ColumnName(field, level string) string {
	return field + "_" + level
}

// Encode expands a cleaned batch into a feature frame, omitting each field's
// reference level. The frame's Columns are the schema produced by this call.
func Encode(batch []encounter.Cleaned) Frame {
	return encode(batch, true)
}

// EncodeAll expands every observed level, reference included. Serving uses it
// so a request whose only level is a training-time reference is not lost
// before the frame is aligned to the persisted schema.
func EncodeAll(batch []encounter.Cleaned) Frame {
	return encode(batch, false)
}

func encode(batch []encounter.Cleaned, dropReference bool) Frame {
	columns := append([]string{}, RetainedNumeric...)

	for _, field := range CategoricalFields {
		seen := make(map[string]bool)
		var levels []string
		for i := range batch {
			v := batch[i].Categorical(field)
			if !seen[v] {
				seen[v] = true
				levels = append(levels, v)
			}
		}
		SortLevels(field, levels)
		if dropReference && len(levels) > 0 {
			levels = levels[1:]
		}
		for _, l := range levels {
			columns = append(columns, ColumnName(field, l))
		}
	}

	index := make(map[string]int, len(columns))
	for i, c := range columns {
		index[c] = i
	}

	frame := Frame{
		Columns: columns,
		Rows:    make([][]float64, len(batch)),
		Labels:  make([]float64, len(batch)),
	}
	for i := range batch {
		rec := &batch[i]
		row := make([]float64, len(columns))
		for j, field := range RetainedNumeric {
			row[j], _ = rec.Numeric(field)
		}
		for _, field := range CategoricalFields {
			if j, ok := index[ColumnName(field, rec.Categorical(field))]; ok {
				row[j] = 1
			}
		}
		frame.Rows[i] = row
		frame.Labels[i] = float64(rec.Readmitted)
	}
	return frame
}
