package features

import (
	"testing"

	"github.com/readmit/readmit/internal/diagnosis"
	"github.com/readmit/readmit/internal/encounter"
)

func TestClean_PreservesRowCountAndOrder(t *testing.T) {
	batch := []encounter.Raw{
		rawEncounter(map[string]string{encounter.FieldTimeInHospital: "1"}),
		rawEncounter(map[string]string{encounter.FieldTimeInHospital: "2"}),
		rawEncounter(map[string]string{encounter.FieldTimeInHospital: "3"}),
	}
	out, _ := Clean(batch)
	if len(out) != len(batch) {
		t.Fatalf("expected %d rows, got %d", len(batch), len(out))
	}
	for i, c := range out {
		if c.TimeInHospital != float64(i+1) {
			t.Errorf("row %d: expected time_in_hospital %d, got %v", i, i+1, c.TimeInHospital)
		}
	}
}

func TestClean_RaceModeFillsSentinel(t *testing.T) {
	batch := []encounter.Raw{
		rawEncounter(map[string]string{encounter.FieldRace: "?"}),
		rawEncounter(map[string]string{encounter.FieldRace: "Caucasian"}),
		rawEncounter(map[string]string{encounter.FieldRace: "Caucasian"}),
	}
	out, imp := Clean(batch)
	if out[0].Race != "Caucasian" {
		t.Errorf("expected sentinel row filled with Caucasian, got %q", out[0].Race)
	}
	if imp.Modes[encounter.FieldRace] != "Caucasian" {
		t.Errorf("expected race mode Caucasian, got %q", imp.Modes[encounter.FieldRace])
	}
}

func TestClean_MedicalSpecialtyModeIgnoresMissing(t *testing.T) {
	batch := []encounter.Raw{
		rawEncounter(map[string]string{encounter.FieldMedicalSpecialty: "?"}),
		rawEncounter(map[string]string{encounter.FieldMedicalSpecialty: "?"}),
		rawEncounter(map[string]string{encounter.FieldMedicalSpecialty: "Cardiology"}),
		rawEncounter(map[string]string{encounter.FieldMedicalSpecialty: ""}),
	}
	out, _ := Clean(batch)
	for i, c := range out {
		if c.MedicalSpecialty != "Cardiology" {
			t.Errorf("row %d: expected Cardiology, got %q", i, c.MedicalSpecialty)
		}
	}
}

func TestClean_DiagnosisMedianFill(t *testing.T) {
	batch := []encounter.Raw{
		rawEncounter(map[string]string{encounter.FieldDiag1: "400"}),
		rawEncounter(map[string]string{encounter.FieldDiag1: "500"}),
		rawEncounter(map[string]string{encounter.FieldDiag1: "600"}),
		rawEncounter(map[string]string{encounter.FieldDiag1: ""}),
		rawEncounter(map[string]string{encounter.FieldDiag1: "V57"}),
	}
	out, imp := Clean(batch)

	if imp.Medians[encounter.FieldDiag1] != 500 {
		t.Fatalf("expected diag_1 median 500, got %v", imp.Medians[encounter.FieldDiag1])
	}
	// Missing cell: filled then grouped from the filled value.
	if out[3].Diag1 != 500 || out[3].DiagGroup1 != string(diagnosis.Respiratory) {
		t.Errorf("missing diag: expected 500/Respiratory, got %v/%s", out[3].Diag1, out[3].DiagGroup1)
	}
	// Unparsable cell: filled numerically but grouped Unknown.
	if out[4].Diag1 != 500 || out[4].DiagGroup1 != string(diagnosis.Unknown) {
		t.Errorf("unparsable diag: expected 500/Unknown, got %v/%s", out[4].Diag1, out[4].DiagGroup1)
	}
	if out[0].DiagGroup1 != string(diagnosis.Circulatory) {
		t.Errorf("expected Circulatory for 400, got %s", out[0].DiagGroup1)
	}
}

func TestClean_NoMissingAfterCleaning(t *testing.T) {
	batch := []encounter.Raw{
		{},
		rawEncounter(map[string]string{encounter.FieldRace: "", encounter.FieldDiag2: "?", encounter.FieldGender: ""}),
		rawEncounter(map[string]string{encounter.FieldNumMedications: "lots"}),
	}
	out, _ := Clean(batch)

	for i, c := range out {
		for _, field := range CategoricalFields {
			if c.Categorical(field) == "" {
				t.Errorf("row %d: categorical %s is empty after cleaning", i, field)
			}
		}
		for _, g := range []string{c.DiagGroup1, c.DiagGroup2, c.DiagGroup3} {
			if !diagnosis.Category(g).Valid() {
				t.Errorf("row %d: invalid diagnosis group %q", i, g)
			}
		}
	}
	if out[2].NumMedications != 11 {
		t.Errorf("expected unparsable num_medications filled with median 11, got %v", out[2].NumMedications)
	}
}

func TestClean_EmptyColumnFallsBack(t *testing.T) {
	batch := []encounter.Raw{{encounter.FieldRace: "?"}}
	out, imp := Clean(batch)
	if out[0].Race != FallbackCategory {
		t.Errorf("expected %q, got %q", FallbackCategory, out[0].Race)
	}
	if imp.Medians[encounter.FieldDiag1] != 0 {
		t.Errorf("expected 0 median fallback, got %v", imp.Medians[encounter.FieldDiag1])
	}
	if out[0].DiagGroup1 != string(diagnosis.Other) {
		t.Errorf("expected Other for zero-filled diagnosis, got %s", out[0].DiagGroup1)
	}
}

func TestCleanWith_UsesPersistedFillValues(t *testing.T) {
	imp := Imputation{
		Medians: map[string]float64{encounter.FieldDiag2: 428},
		Modes:   map[string]string{encounter.FieldRace: "AfricanAmerican"},
	}
	batch := []encounter.Raw{
		rawEncounter(map[string]string{encounter.FieldDiag2: "", encounter.FieldRace: "?"}),
	}
	out := CleanWith(batch, imp)
	if out[0].Diag2 != 428 || out[0].DiagGroup2 != string(diagnosis.Circulatory) {
		t.Errorf("expected 428/Circulatory, got %v/%s", out[0].Diag2, out[0].DiagGroup2)
	}
	if out[0].Race != "AfricanAmerican" {
		t.Errorf("expected persisted race mode, got %q", out[0].Race)
	}
}

func TestClean_Idempotent(t *testing.T) {
	batch := []encounter.Raw{
		rawEncounter(map[string]string{encounter.FieldDiag3: "?"}),
		rawEncounter(nil),
	}
	a, impA := Clean(batch)
	b, impB := Clean(batch)
	for i := range a {
		if a[i].Diag3 != b[i].Diag3 || a[i].DiagGroup3 != b[i].DiagGroup3 || a[i].Race != b[i].Race {
			t.Errorf("row %d differs between runs", i)
		}
	}
	if impA.Medians[encounter.FieldDiag3] != impB.Medians[encounter.FieldDiag3] {
		t.Error("expected identical medians between runs")
	}
}

func TestLabel(t *testing.T) {
	tests := map[string]int32{"<30": 1, ">30": 1, "NO": 0, "": 0, "garbage": 0}
	for in, want := range tests {
		if got := Label(in); got != want {
			t.Errorf("Label(%q) = %d, want %d", in, got, want)
		}
	}
}

func TestClean_HexDiagnosisIsUnparsable(t *testing.T) {
	batch := []encounter.Raw{
		rawEncounter(map[string]string{encounter.FieldDiag1: "428"}),
		rawEncounter(map[string]string{encounter.FieldDiag1: "0x1p8"}),
	}
	out, imp := Clean(batch)

	if imp.Medians[encounter.FieldDiag1] != 428 {
		t.Fatalf("hex cell must not enter the median, got %v", imp.Medians[encounter.FieldDiag1])
	}
	if out[1].Diag1 != 428 || out[1].DiagGroup1 != string(diagnosis.Unknown) {
		t.Errorf("hex diag: expected 428/Unknown, got %v/%s", out[1].Diag1, out[1].DiagGroup1)
	}
}
