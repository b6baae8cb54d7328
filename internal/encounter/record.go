// Package encounter defines the raw and cleaned encounter records that flow
// through the readmission pipeline, plus the CSV and parquet readers and
// writers that persist them between stages.
package encounter

import (
	"strings"
)

// Raw field names, matching the header of the source dataset.
const (
	FieldEncounterID            = "encounter_id"
	FieldPatientNbr             = "patient_nbr"
	FieldRace                   = "race"
	FieldGender                 = "gender"
	FieldAge                    = "age"
	FieldWeight                 = "weight"
	FieldAdmissionTypeID        = "admission_type_id"
	FieldDischargeDispositionID = "discharge_disposition_id"
	FieldAdmissionSourceID      = "admission_source_id"
	FieldTimeInHospital         = "time_in_hospital"
	FieldPayerCode              = "payer_code"
	FieldMedicalSpecialty       = "medical_specialty"
	FieldNumLabProcedures       = "num_lab_procedures"
	FieldNumProcedures          = "num_procedures"
	FieldNumMedications         = "num_medications"
	FieldNumberOutpatient       = "number_outpatient"
	FieldNumberEmergency        = "number_emergency"
	FieldNumberInpatient        = "number_inpatient"
	FieldDiag1                  = "diag_1"
	FieldDiag2                  = "diag_2"
	FieldDiag3                  = "diag_3"
	FieldNumberDiagnoses        = "number_diagnoses"
	FieldMaxGluSerum            = "max_glu_serum"
	FieldA1CResult              = "A1Cresult"
	FieldChange                 = "change"
	FieldDiabetesMed            = "diabetesMed"
	FieldReadmitted             = "readmitted"

	FieldDiagGroup1 = "diag_group_1"
	FieldDiagGroup2 = "diag_group_2"
	FieldDiagGroup3 = "diag_group_3"
)

// MissingSentinel is the placeholder the source dataset uses for unknown values.
const MissingSentinel = "?"

// DiagnosisFields lists the three diagnosis code fields in order.
var DiagnosisFields = [3]string{FieldDiag1, FieldDiag2, FieldDiag3}

// DiagnosisGroupFields lists the derived category fields, index-aligned with
// DiagnosisFields.
var DiagnosisGroupFields = [3]string{FieldDiagGroup1, FieldDiagGroup2, FieldDiagGroup3}

// EncodedMedications are the medication fields expanded into indicator columns.
var EncodedMedications = []string{
	"metformin", "repaglinide", "nateglinide", "chlorpropamide",
	"glimepiride", "acetohexamide", "glipizide", "glyburide", "tolbutamide",
	"pioglitazone", "rosiglitazone", "acarbose", "miglitol", "troglitazone",
	"tolazamide", "examide", "citoglipton", "insulin",
	"glyburide-metformin", "glipizide-metformin", "glimepiride-pioglitazone",
}

// MedicationFields is every medication column carried by a cleaned record, in
// storage order: the encoded medications followed by the two combination
// drugs that are kept but never encoded.
var MedicationFields = append(append([]string{}, EncodedMedications...),
	"metformin-rosiglitazone", "metformin-pioglitazone",
)

// NumericFields are the count columns coerced to numbers during cleaning.
var NumericFields = []string{
	FieldTimeInHospital,
	FieldNumLabProcedures,
	FieldNumProcedures,
	FieldNumMedications,
	FieldNumberOutpatient,
	FieldNumberEmergency,
	FieldNumberInpatient,
	FieldNumberDiagnoses,
}

// DroppedFields are removed during cleaning and never reach the encoder.
var DroppedFields = []string{
	FieldEncounterID,
	FieldPatientNbr,
	FieldWeight,
	FieldPayerCode,
	FieldMaxGluSerum,
	FieldA1CResult,
}

// Raw is one encounter as read from the source: field name to cell text. An
// absent key and an empty string both mean the value is missing.
type Raw map[string]string

// Get returns the trimmed value of a field.
func (r Raw) Get(field string) string {
	return strings.TrimSpace(r[field])
}

// Missing reports whether a field is absent, empty or the "?" sentinel.
func (r Raw) Missing(field string) bool {
	v := r.Get(field)
	return v == "" || v == MissingSentinel
}

// Cleaned is an encounter after imputation and code grouping. It doubles as
// the parquet row of the cleaned intermediate file.
type Cleaned struct {
	Race                   string   `parquet:"race" json:"race"`
	Gender                 string   `parquet:"gender" json:"gender"`
	Age                    string   `parquet:"age" json:"age"`
	AdmissionTypeID        string   `parquet:"admission_type_id" json:"admission_type_id"`
	DischargeDispositionID string   `parquet:"discharge_disposition_id" json:"discharge_disposition_id"`
	AdmissionSourceID      string   `parquet:"admission_source_id" json:"admission_source_id"`
	TimeInHospital         float64  `parquet:"time_in_hospital" json:"time_in_hospital"`
	MedicalSpecialty       string   `parquet:"medical_specialty" json:"medical_specialty"`
	NumLabProcedures       float64  `parquet:"num_lab_procedures" json:"num_lab_procedures"`
	NumProcedures          float64  `parquet:"num_procedures" json:"num_procedures"`
	NumMedications         float64  `parquet:"num_medications" json:"num_medications"`
	NumberOutpatient       float64  `parquet:"number_outpatient" json:"number_outpatient"`
	NumberEmergency        float64  `parquet:"number_emergency" json:"number_emergency"`
	NumberInpatient        float64  `parquet:"number_inpatient" json:"number_inpatient"`
	Diag1                  float64  `parquet:"diag_1" json:"diag_1"`
	Diag2                  float64  `parquet:"diag_2" json:"diag_2"`
	Diag3                  float64  `parquet:"diag_3" json:"diag_3"`
	DiagGroup1             string   `parquet:"diag_group_1" json:"diag_group_1"`
	DiagGroup2             string   `parquet:"diag_group_2" json:"diag_group_2"`
	DiagGroup3             string   `parquet:"diag_group_3" json:"diag_group_3"`
	NumberDiagnoses        float64  `parquet:"number_diagnoses" json:"number_diagnoses"`
	Medications            []string `parquet:"medications,list" json:"medications"`
	Change                 string   `parquet:"change" json:"change"`
	DiabetesMed            string   `parquet:"diabetesMed" json:"diabetesMed"`
	Readmitted             int32    `parquet:"readmitted" json:"readmitted"`
}

// Categorical returns the value of a categorical field by its raw name. Unknown
// field names return the empty string.
func (c *Cleaned) Categorical(field string) string {
	switch field {
	case FieldRace:
		return c.Race
	case FieldGender:
		return c.Gender
	case FieldAge:
		return c.Age
	case FieldMedicalSpecialty:
		return c.MedicalSpecialty
	case FieldAdmissionTypeID:
		return c.AdmissionTypeID
	case FieldDischargeDispositionID:
		return c.DischargeDispositionID
	case FieldAdmissionSourceID:
		return c.AdmissionSourceID
	case FieldDiagGroup1:
		return c.DiagGroup1
	case FieldDiagGroup2:
		return c.DiagGroup2
	case FieldDiagGroup3:
		return c.DiagGroup3
	case FieldChange:
		return c.Change
	case FieldDiabetesMed:
		return c.DiabetesMed
	}
	if i := medicationIndex(field); i >= 0 && i < len(c.Medications) {
		return c.Medications[i]
	}
	return ""
}

// Numeric returns the value of a numeric field by its raw name.
func (c *Cleaned) Numeric(field string) (float64, bool) {
	switch field {
	case FieldTimeInHospital:
		return c.TimeInHospital, true
	case FieldNumLabProcedures:
		return c.NumLabProcedures, true
	case FieldNumProcedures:
		return c.NumProcedures, true
	case FieldNumMedications:
		return c.NumMedications, true
	case FieldNumberOutpatient:
		return c.NumberOutpatient, true
	case FieldNumberEmergency:
		return c.NumberEmergency, true
	case FieldNumberInpatient:
		return c.NumberInpatient, true
	case FieldNumberDiagnoses:
		return c.NumberDiagnoses, true
	case FieldDiag1:
		return c.Diag1, true
	case FieldDiag2:
		return c.Diag2, true
	case FieldDiag3:
		return c.Diag3, true
	}
	return 0, false
}

// SetNumeric assigns a numeric field by name. Unknown names are ignored.
func (c *Cleaned) SetNumeric(field string, v float64) {
	switch field {
	case FieldTimeInHospital:
		c.TimeInHospital = v
	case FieldNumLabProcedures:
		c.NumLabProcedures = v
	case FieldNumProcedures:
		c.NumProcedures = v
	case FieldNumMedications:
		c.NumMedications = v
	case FieldNumberOutpatient:
		c.NumberOutpatient = v
	case FieldNumberEmergency:
		c.NumberEmergency = v
	case FieldNumberInpatient:
		c.NumberInpatient = v
	case FieldNumberDiagnoses:
		c.NumberDiagnoses = v
	case FieldDiag1:
		c.Diag1 = v
	case FieldDiag2:
		c.Diag2 = v
	case FieldDiag3:
		c.Diag3 = v
	}
}

// SetDiagnosisGroup assigns the i-th (0-based) diagnosis category.
func (c *Cleaned) SetDiagnosisGroup(i int, group string) {
	switch i {
	case 0:
		c.DiagGroup1 = group
	case 1:
		c.DiagGroup2 = group
	case 2:
		c.DiagGroup3 = group
	}
}

func medicationIndex(field string) int {
	for i, m := range MedicationFields {
		if m == field {
			return i
		}
	}
	return -1
}
