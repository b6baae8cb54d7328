package diagnosis

import (
	"math"
	"testing"
)

func TestGroup_Ranges(t *testing.T) {
	tests := []struct {
		code string
		want Category
	}{
		{"410", Circulatory},
		{"390", Circulatory},
		{"459", Circulatory},
		{"785", Circulatory},
		{"428", Circulatory},
		{"486", Respiratory},
		{"786", Respiratory},
		{"577", Digestive},
		{"787", Digestive},
		{"250", Diabetes},
		{"250.83", Diabetes},
		{"251", Other},
		{"996", Injury},
		{"715", Musculoskeletal},
		{"599", Genitourinary},
		{"788", Genitourinary},
		{"276", Other},
		{"0", Other},
		{" 414.01 ", Circulatory},
		{"?", Unknown},
		{"", Unknown},
		{"V45", Unknown},
		{"E849", Unknown},
		{"NaN", Unknown},
		{"Inf", Unknown},
	}

	for _, tt := range tests {
		if got := Group(tt.code); got != tt.want {
			t.Errorf("Group(%q) = %s, want %s", tt.code, got, tt.want)
		}
	}
}

func TestGroup_Totality(t *testing.T) {
	inputs := []string{"", "?", "abc", "-1", "1e309", "999.9999", "250.999", "0x1F", "  ", "12,5"}
	for _, in := range inputs {
		if got := Group(in); !got.Valid() {
			t.Errorf("Group(%q) returned %q, not a known category", in, got)
		}
	}
	for v := -10.0; v < 1100; v += 0.5 {
		if got := GroupValue(v); !got.Valid() {
			t.Fatalf("GroupValue(%v) returned %q, not a known category", v, got)
		}
	}
	if got := GroupValue(math.NaN()); got != Unknown {
		t.Errorf("GroupValue(NaN) = %s, want Unknown", got)
	}
}

func TestCategories_ClosedSet(t *testing.T) {
	cats := Categories()
	if len(cats) != 9 {
		t.Fatalf("expected 9 categories, got %d", len(cats))
	}
	cats[0] = "mutated"
	if Categories()[0] != Circulatory {
		t.Error("Categories must return a copy")
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		in     string
		want   float64
		wantOK bool
	}{
		{"428", 428, true},
		{" 250.83 ", 250.83, true},
		{"-1", -1, true},
		{"1e2", 100, true},
		{"0x1p8", 0, false},
		{"-0X1F", 0, false},
		{"+0x10", 0, false},
		{"V57", 0, false},
		{"NaN", 0, false},
		{"Inf", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := Parse(tt.in)
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("Parse(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
	if got := Group("0x1p8"); got != Unknown {
		t.Errorf("Group(0x1p8) = %s, want Unknown", got)
	}
}
