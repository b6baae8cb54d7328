// Package features turns raw encounters into the numeric feature matrix the
// classifier consumes. Cleaning imputes and groups, encoding expands
// categorical fields into indicator columns.
package features

import (
	"github.com/readmit/readmit/internal/diagnosis"
	"github.com/readmit/readmit/internal/encounter"
)

// FallbackCategory fills a mode-imputed field when no value is observed and
// no persisted imputation is available.
const FallbackCategory = "Missing"

// ModeFields are the categorical fields whose missing values are replaced by
// the most frequent value.
var ModeFields = []string{encounter.FieldRace, encounter.FieldMedicalSpecialty}

// passthroughFields are categorical fields copied as-is; an empty cell keeps
// the dataset's "?" sentinel so it encodes as its own level.
var passthroughFields = []string{
	encounter.FieldGender,
	encounter.FieldAge,
	encounter.FieldAdmissionTypeID,
	encounter.FieldDischargeDispositionID,
	encounter.FieldAdmissionSourceID,
	encounter.FieldChange,
	encounter.FieldDiabetesMed,
}

// Imputation holds the fill values used by a cleaning pass: medians for the
// diagnosis and count columns, modes for race and medical specialty.
type Imputation struct {
	Medians map[string]float64 `json:"medians"`
	Modes   map[string]string  `json:"modes"`
}

// Median returns the fill value for a numeric field.
func (imp Imputation) Median(field string) (float64, bool) {
	v, ok := imp.Medians[field]
	return v, ok
}

// Mode returns the fill value for a categorical field.
func (imp Imputation) Mode(field string) (string, bool) {
	v, ok := imp.Modes[field]
	return v, ok
}

func medianFields() []string {
	fields := make([]string, 0, len(encounter.DiagnosisFields)+len(encounter.NumericFields))
	fields = append(fields, encounter.DiagnosisFields[:]...)
	return append(fields, encounter.NumericFields...)
}

// ComputeImputation derives fill values from a batch. Columns with no usable
// value take the fallback's entry when present, else 0 or FallbackCategory.
func ComputeImputation(batch []encounter.Raw, fallback Imputation) Imputation {
	imp := Imputation{
		Medians: make(map[string]float64),
		Modes:   make(map[string]string),
	}

	for _, field := range medianFields() {
		values := make([]float64, 0, len(batch))
		for _, r := range batch {
			if v, ok := diagnosis.Parse(r.Get(field)); ok {
				values = append(values, v)
			}
		}
		if m, ok := Median(values); ok {
			imp.Medians[field] = m
		} else if m, ok := fallback.Median(field); ok {
			imp.Medians[field] = m
		} else {
			imp.Medians[field] = 0
		}
	}

	for _, field := range ModeFields {
		values := make([]string, 0, len(batch))
		for _, r := range batch {
			if !r.Missing(field) {
				values = append(values, r.Get(field))
			}
		}
		if m, ok := Mode(values); ok {
			imp.Modes[field] = m
		} else if m, ok := fallback.Mode(field); ok {
			imp.Modes[field] = m
		} else {
			imp.Modes[field] = FallbackCategory
		}
	}
	return imp
}

// Clean imputes a training batch from its own statistics. The returned
// Imputation is what should be persisted with the schema.
func Clean(batch []encounter.Raw) ([]encounter.Cleaned, Imputation) {
	imp := ComputeImputation(batch, Imputation{})
	return apply(batch, imp), imp
}

// CleanWith imputes a batch from fixed fill values, as done at serving time
// where a single request cannot supply meaningful statistics. Fields missing
// from imp fall back to the batch's own statistics.
func CleanWith(batch []encounter.Raw, imp Imputation) []encounter.Cleaned {
	return apply(batch, ComputeImputation(batch, imp).overriddenBy(imp))
}

func apply(batch []encounter.Raw, imp Imputation) []encounter.Cleaned {
	out := make([]encounter.Cleaned, len(batch))
	for i, r := range batch {
		out[i] = cleanOne(r, imp)
	}
	return out
}

// overriddenBy returns imp with every entry present in o replacing its own.
func (imp Imputation) overriddenBy(o Imputation) Imputation {
	for k, v := range o.Medians {
		imp.Medians[k] = v
	}
	for k, v := range o.Modes {
		imp.Modes[k] = v
	}
	return imp
}

func cleanOne(r encounter.Raw, imp Imputation) encounter.Cleaned {
	var c encounter.Cleaned

	c.Race = modeFilled(r, encounter.FieldRace, imp)
	c.MedicalSpecialty = modeFilled(r, encounter.FieldMedicalSpecialty, imp)

	pass := make(map[string]string, len(passthroughFields))
	for _, field := range passthroughFields {
		pass[field] = sentinelFilled(r, field)
	}
	c.Gender = pass[encounter.FieldGender]
	c.Age = pass[encounter.FieldAge]
	c.AdmissionTypeID = pass[encounter.FieldAdmissionTypeID]
	c.DischargeDispositionID = pass[encounter.FieldDischargeDispositionID]
	c.AdmissionSourceID = pass[encounter.FieldAdmissionSourceID]
	c.Change = pass[encounter.FieldChange]
	c.DiabetesMed = pass[encounter.FieldDiabetesMed]

	c.Medications = make([]string, len(encounter.MedicationFields))
	for i, field := range encounter.MedicationFields {
		c.Medications[i] = sentinelFilled(r, field)
	}

	for _, field := range encounter.NumericFields {
		v, ok := diagnosis.Parse(r.Get(field))
		if !ok {
			v = imp.Medians[field]
		}
		c.SetNumeric(field, v)
	}

	for i, field := range encounter.DiagnosisFields {
		raw := r.Get(field)
		v, ok := diagnosis.Parse(raw)
		group := diagnosis.GroupValue(v)
		if !ok {
			v = imp.Medians[field]
			if raw == "" {
				group = diagnosis.GroupValue(v)
			} else {
				group = diagnosis.Unknown
			}
		}
		c.SetNumeric(field, v)
		c.SetDiagnosisGroup(i, group.String())
	}

	c.Readmitted = Label(r.Get(encounter.FieldReadmitted))
	return c
}

// Label collapses the three-way readmission outcome to 1 for any
// readmission ("<30" or ">30") and 0 otherwise.
func Label(readmitted string) int32 {
	switch readmitted {
	case "<30", ">30":
		return 1
	}
	return 0
}

func modeFilled(r encounter.Raw, field string, imp Imputation) string {
	if r.Missing(field) {
		return imp.Modes[field]
	}
	return r.Get(field)
}

func sentinelFilled(r encounter.Raw, field string) string {
	if v := r.Get(field); v != "" {
		return v
	}
	return encounter.MissingSentinel
}
