// Package diagnosis maps ICD-9 style diagnosis codes onto the coarse clinical
// categories used as model features.
package diagnosis

import (
	"math"
	"strconv"
	"strings"
)

// Category is the clinical grouping of a diagnosis code.
type Category string

const (
	Circulatory     Category = "Circulatory"
	Respiratory     Category = "Respiratory"
	Digestive       Category = "Digestive"
	Diabetes        Category = "Diabetes"
	Injury          Category = "Injury"
	Musculoskeletal Category = "Musculoskeletal"
	Genitourinary   Category = "Genitourinary"
	Other           Category = "Other"
	Unknown         Category = "Unknown"
)

var categories = []Category{
	Circulatory, Respiratory, Digestive, Diabetes, Injury,
	Musculoskeletal, Genitourinary, Other, Unknown,
}

// Categories returns the closed set of categories in declaration order.
func Categories() []Category {
	out := make([]Category, len(categories))
	copy(out, categories)
	return out
}

// Valid reports whether c is one of the nine known categories.
func (c Category) Valid() bool {
	for _, k := range categories {
		if c == k {
			return true
		}
	}
	return false
}

func (c Category) String() string { return string(c) }

// Group classifies a raw diagnosis code. Codes that do not parse as a finite
// number (empty, "?", V/E supplementary codes) are Unknown.
func Group(code string) Category {
	v, ok := Parse(code)
	if !ok {
		return Unknown
	}
	return GroupValue(v)
}

// Parse converts a raw code or numeric cell to a number. It reports false for
// anything that is not a finite decimal; hex floats are rejected.
func Parse(code string) (float64, bool) {
	code = strings.TrimSpace(code)
	if code == "" {
		return 0, false
	}
	digits := strings.TrimLeft(code, "+-")
	if strings.HasPrefix(digits, "0x") || strings.HasPrefix(digits, "0X") {
		return 0, false
	}
	v, err := strconv.ParseFloat(code, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// GroupValue classifies an already numeric code. Range checks are applied in
// order and the first match wins.
func GroupValue(v float64) Category {
	switch {
	case math.IsNaN(v) || math.IsInf(v, 0):
		return Unknown
	case (v >= 390 && v <= 459) || v == 785:
		return Circulatory
	case (v >= 460 && v <= 519) || v == 786:
		return Respiratory
	case (v >= 520 && v <= 579) || v == 787:
		return Digestive
	case v >= 250 && v < 251:
		return Diabetes
	case v >= 800 && v <= 999:
		return Injury
	case v >= 710 && v <= 739:
		return Musculoskeletal
	case (v >= 580 && v <= 629) || v == 788:
		return Genitourinary
	default:
		return Other
	}
}
