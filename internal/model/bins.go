package model

import "sort"

// binner quantizes each column into at most maxBin buckets. cuts[j] holds
// ascending thresholds; a value falls in bucket k when exactly k cuts are
// less than or equal to it, so "bucket <= k" is the same test as
// "value < cuts[j][k]".
type binner struct {
	cuts [][]float64
}

func newBinner(rows [][]float64, width, maxBin int) binner {
	b := binner{cuts: make([][]float64, width)}
	col := make([]float64, len(rows))
	for j := 0; j < width; j++ {
		for i, r := range rows {
			col[i] = r[j]
		}
		b.cuts[j] = columnCuts(col, maxBin)
	}
	return b
}

func columnCuts(col []float64, maxBin int) []float64 {
	sorted := append([]float64{}, col...)
	sort.Float64s(sorted)

	var uniq []float64
	for i, v := range sorted {
		if i == 0 || v != sorted[i-1] {
			uniq = append(uniq, v)
		}
	}
	if len(uniq) <= 1 {
		return nil
	}
	if len(uniq) <= maxBin {
		return uniq[1:]
	}

	var cuts []float64
	for q := 1; q < maxBin; q++ {
		v := sorted[q*len(sorted)/maxBin]
		if v == sorted[0] {
			continue
		}
		if len(cuts) == 0 || v > cuts[len(cuts)-1] {
			cuts = append(cuts, v)
		}
	}
	return cuts
}

func (b binner) bin(j int, v float64) uint16 {
	cuts := b.cuts[j]
	return uint16(sort.Search(len(cuts), func(k int) bool { return cuts[k] > v }))
}

// quantize returns the column-major bucket matrix.
func (b binner) quantize(rows [][]float64) [][]uint16 {
	out := make([][]uint16, len(b.cuts))
	for j := range b.cuts {
		out[j] = make([]uint16, len(rows))
		for i, r := range rows {
			out[j][i] = b.bin(j, r[j])
		}
	}
	return out
}
