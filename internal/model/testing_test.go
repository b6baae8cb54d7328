package model

import "github.com/readmit/readmit/internal/features"

// separableFrame has one informative column (the label itself) and one
// column of noise.
func separableFrame(n int) features.Frame {
	f := features.Frame{
		Columns: []string{"signal", "noise"},
		Rows:    make([][]float64, n),
		Labels:  make([]float64, n),
	}
	for i := 0; i < n; i++ {
		y := float64(i % 2)
		f.Rows[i] = []float64{y, float64((i * 7) % 5)}
		f.Labels[i] = y
	}
	return f
}

func quickParams() Params {
	p := DefaultParams()
	p.Estimators = 20
	p.MaxDepth = 2
	p.ColSample = 1
	return p
}
