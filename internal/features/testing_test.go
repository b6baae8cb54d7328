package features

import (
	"github.com/readmit/readmit/internal/encounter"
)

// rawEncounter builds a complete raw record with every medication "No".
// Overrides replace or, with an empty string, blank out fields.
func rawEncounter(overrides map[string]string) encounter.Raw {
	r := encounter.Raw{
		encounter.FieldEncounterID:            "2278392",
		encounter.FieldPatientNbr:             "8222157",
		encounter.FieldRace:                   "Caucasian",
		encounter.FieldGender:                 "Female",
		encounter.FieldAge:                    "[50-60)",
		encounter.FieldWeight:                 "?",
		encounter.FieldAdmissionTypeID:        "1",
		encounter.FieldDischargeDispositionID: "1",
		encounter.FieldAdmissionSourceID:      "7",
		encounter.FieldTimeInHospital:         "3",
		encounter.FieldPayerCode:              "MC",
		encounter.FieldMedicalSpecialty:       "InternalMedicine",
		encounter.FieldNumLabProcedures:       "41",
		encounter.FieldNumProcedures:          "0",
		encounter.FieldNumMedications:         "11",
		encounter.FieldNumberOutpatient:       "0",
		encounter.FieldNumberEmergency:        "0",
		encounter.FieldNumberInpatient:        "1",
		encounter.FieldDiag1:                  "250.83",
		encounter.FieldDiag2:                  "401",
		encounter.FieldDiag3:                  "599",
		encounter.FieldNumberDiagnoses:        "9",
		encounter.FieldMaxGluSerum:            "None",
		encounter.FieldA1CResult:              ">7",
		encounter.FieldChange:                 "No",
		encounter.FieldDiabetesMed:            "No",
		encounter.FieldReadmitted:             "NO",
	}
	for _, m := range encounter.MedicationFields {
		r[m] = "No"
	}
	for k, v := range overrides {
		r[k] = v
	}
	return r
}
