package features

import "testing"

func TestMedian(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   float64
		ok     bool
	}{
		{"empty", nil, 0, false},
		{"single", []float64{428}, 428, true},
		{"odd", []float64{3, 1, 2}, 2, true},
		{"even", []float64{4, 1, 3, 2}, 2.5, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := Median(tt.values)
			if ok != tt.ok || got != tt.want {
				t.Errorf("Median(%v) = %v, %v; want %v, %v", tt.values, got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestMedian_DoesNotMutateInput(t *testing.T) {
	in := []float64{3, 1, 2}
	Median(in)
	if in[0] != 3 || in[1] != 1 || in[2] != 2 {
		t.Errorf("expected input untouched, got %v", in)
	}
}

func TestMode_TieBreaksLexically(t *testing.T) {
	got, ok := Mode([]string{"Hispanic", "Asian", "Hispanic", "Asian", "Other"})
	if !ok || got != "Asian" {
		t.Errorf("expected Asian on tie, got %q (ok=%v)", got, ok)
	}
	// Same multiset in a different order must give the same answer.
	got, _ = Mode([]string{"Other", "Hispanic", "Asian", "Asian", "Hispanic"})
	if got != "Asian" {
		t.Errorf("expected Asian regardless of order, got %q", got)
	}
}

func TestMode_Empty(t *testing.T) {
	if _, ok := Mode(nil); ok {
		t.Error("expected no mode for empty input")
	}
}
