package features

import (
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/readmit/readmit/internal/encounter"
)

func cleanedBatch(t *testing.T) []encounter.Cleaned {
	t.Helper()
	batch := []encounter.Raw{
		rawEncounter(map[string]string{encounter.FieldGender: "Male", encounter.FieldAge: "[70-80)", "insulin": "Up", encounter.FieldReadmitted: "<30"}),
		rawEncounter(map[string]string{encounter.FieldGender: "Female", encounter.FieldRace: "AfricanAmerican", "insulin": "Steady"}),
		rawEncounter(map[string]string{encounter.FieldDiag1: "410", encounter.FieldDiabetesMed: "Yes", encounter.FieldReadmitted: ">30"}),
	}
	out, _ := Clean(batch)
	return out
}

func TestEncode_DropsReferenceLevel(t *testing.T) {
	f := Encode(cleanedBatch(t))

	mustHave := []string{
		"gender_Male",
		"age_[70-80)",
		"race_Caucasian",
		"insulin_Steady",
		"insulin_Up",
		"diabetesMed_Yes",
		"diag_group_1_Diabetes",
	}
	for _, c := range mustHave {
		if _, ok := f.ColumnIndex(c); !ok {
			t.Errorf("expected column %s in %v", c, f.Columns)
		}
	}

	mustNotHave := []string{
		"gender_Female",            // declared first
		"age_[50-60)",              // lowest observed age bucket
		"race_AfricanAmerican",     // lexically first race
		"insulin_No",               // declared first medication level
		"diabetesMed_No",           // declared first
		"diag_group_1_Circulatory", // first observed level when Other is absent
		"metformin_No",             // single-level field contributes nothing
		"medical_specialty_InternalMedicine",
		encounter.FieldNumLabProcedures,
		encounter.FieldNumProcedures,
		encounter.FieldDiag1,
	}
	for _, c := range mustNotHave {
		if _, ok := f.ColumnIndex(c); ok {
			t.Errorf("did not expect column %s", c)
		}
	}
}

func TestEncode_NumericColumnsFirst(t *testing.T) {
	f := Encode(cleanedBatch(t))
	if diff := cmp.Diff(RetainedNumeric, f.Columns[:len(RetainedNumeric)]); diff != "" {
		t.Errorf("numeric prefix mismatch (-want +got):\n%s", diff)
	}
	if v := f.Value(0, encounter.FieldTimeInHospital); v != 3 {
		t.Errorf("expected time_in_hospital 3, got %v", v)
	}
}

func TestEncode_IndicatorValues(t *testing.T) {
	f := Encode(cleanedBatch(t))

	if f.Value(0, "gender_Male") != 1 || f.Value(1, "gender_Male") != 0 {
		t.Error("gender_Male indicator wrong")
	}
	if f.Value(0, "insulin_Up") != 1 || f.Value(0, "insulin_Steady") != 0 {
		t.Error("insulin indicators wrong for row 0")
	}
	// Row 2 is at the reference level for insulin: every sibling is zero.
	for _, c := range f.Columns {
		if strings.HasPrefix(c, "insulin_") && f.Value(2, c) != 0 {
			t.Errorf("row 2: expected %s = 0 at reference level", c)
		}
	}
	if diff := cmp.Diff([]float64{1, 0, 1}, f.Labels); diff != "" {
		t.Errorf("labels mismatch (-want +got):\n%s", diff)
	}
}

func TestEncode_Deterministic(t *testing.T) {
	batch := cleanedBatch(t)
	a := Encode(batch)
	b := Encode(batch)
	if diff := cmp.Diff(a, b); diff != "" {
		t.Errorf("encoding not deterministic (-first +second):\n%s", diff)
	}

	// Reordering rows must not change the column schema.
	reversed := []encounter.Cleaned{batch[2], batch[1], batch[0]}
	c := Encode(reversed)
	if diff := cmp.Diff(a.Columns, c.Columns); diff != "" {
		t.Errorf("columns depend on row order (-want +got):\n%s", diff)
	}
}

func TestEncodeAll_KeepsReference(t *testing.T) {
	single := cleanedBatch(t)[:1]
	f := EncodeAll(single)
	if f.Value(0, "gender_Male") != 1 {
		t.Error("expected gender_Male kept for single record")
	}
	if f.Value(0, "metformin_No") != 1 {
		t.Error("expected metformin_No kept for single record")
	}

	dropped := Encode(single)
	if len(dropped.Columns) != len(RetainedNumeric) {
		t.Errorf("expected only numeric columns for single-record drop-first, got %v", dropped.Columns)
	}
}

func TestSortLevels(t *testing.T) {
	tests := []struct {
		field string
		in    []string
		want  []string
	}{
		{encounter.FieldAge, []string{"[90-100)", "[10-20)", "[0-10)"}, []string{"[0-10)", "[10-20)", "[90-100)"}},
		{"insulin", []string{"Up", "Down", "No", "Steady"}, []string{"No", "Steady", "Up", "Down"}},
		{encounter.FieldDiagGroup3, []string{"Unknown", "Circulatory", "Other"}, []string{"Other", "Circulatory", "Unknown"}},
		{encounter.FieldGender, []string{"?", "Male", "Female"}, []string{"Female", "Male", "?"}},
		{encounter.FieldRace, []string{"Other", "Asian", "Caucasian"}, []string{"Asian", "Caucasian", "Other"}},
	}
	for _, tt := range tests {
		got := append([]string{}, tt.in...)
		SortLevels(tt.field, got)
		if diff := cmp.Diff(tt.want, got); diff != "" {
			t.Errorf("SortLevels(%s) mismatch (-want +got):\n%s", tt.field, diff)
		}
	}
}

func TestFrameParquet_RoundTrip(t *testing.T) {
	f := Encode(cleanedBatch(t))
	path := filepath.Join(t.TempDir(), "features.parquet")

	if err := WriteFrame(path, f); err != nil {
		t.Fatalf("write: %v", err)
	}
	got, err := ReadFrame(path, f.Columns)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if diff := cmp.Diff(f, got); diff != "" {
		t.Errorf("round trip mismatch (-want +got):\n%s", diff)
	}

	if _, err := ReadFrame(path, f.Columns[:3]); err == nil {
		t.Error("expected error for schema width mismatch")
	}
}

func TestFrame_Subset(t *testing.T) {
	f := Encode(cleanedBatch(t))
	s := f.Subset([]int{2, 0})
	if s.Len() != 2 || s.Labels[0] != 1 || s.Labels[1] != 1 {
		t.Errorf("unexpected subset: len=%d labels=%v", s.Len(), s.Labels)
	}
	if err := (Frame{Columns: []string{"a"}, Rows: [][]float64{{1, 2}}}).Validate(); err == nil {
		t.Error("expected ragged frame error")
	}
}
