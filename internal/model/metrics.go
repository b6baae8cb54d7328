package model

import (
	"math"
	"sort"

	"github.com/readmit/readmit/internal/features"
)

// Metrics summarises a booster on a labelled frame.
type Metrics struct {
	Rows     int     `json:"rows"`
	Accuracy float64 `json:"accuracy"`
	LogLoss  float64 `json:"log_loss"`
	AUC      float64 `json:"auc"`
}

// Map flattens m for storage.
func (m Metrics) Map() map[string]float64 {
	return map[string]float64{
		"rows":     float64(m.Rows),
		"accuracy": m.Accuracy,
		"log_loss": m.LogLoss,
		"auc":      m.AUC,
	}
}

// Evaluate scores b against f's labels.
func Evaluate(b *Booster, f features.Frame) Metrics {
	probs := make([]float64, f.Len())
	for i, r := range f.Rows {
		probs[i] = b.PredictProba(r)
	}
	return Metrics{
		Rows:     f.Len(),
		Accuracy: Accuracy(f.Labels, probs),
		LogLoss:  LogLoss(f.Labels, probs),
		AUC:      AUC(f.Labels, probs),
	}
}

// Accuracy is the share of rows whose thresholded probability matches the label.
func Accuracy(labels, probs []float64) float64 {
	if len(labels) == 0 {
		return 0
	}
	var hit int
	for i, y := range labels {
		pred := 0.0
		if probs[i] >= 0.5 {
			pred = 1
		}
		if pred == y {
			hit++
		}
	}
	return float64(hit) / float64(len(labels))
}

const logLossEps = 1e-15

func LogLoss(labels, probs []float64) float64 {
	if len(labels) == 0 {
		return 0
	}
	var sum float64
	for i, y := range labels {
		p := math.Min(math.Max(probs[i], logLossEps), 1-logLossEps)
		sum -= y*math.Log(p) + (1-y)*math.Log(1-p)
	}
	return sum / float64(len(labels))
}

// AUC is the area under the ROC curve computed from average ranks. With only
// one class present it is 0.5.
func AUC(labels, probs []float64) float64 {
	idx := make([]int, len(probs))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return probs[idx[a]] < probs[idx[b]] })

	ranks := make([]float64, len(probs))
	for i := 0; i < len(idx); {
		j := i
		for j+1 < len(idx) && probs[idx[j+1]] == probs[idx[i]] {
			j++
		}
		avg := float64(i+j)/2 + 1
		for k := i; k <= j; k++ {
			ranks[idx[k]] = avg
		}
		i = j + 1
	}

	var pos, neg, rankSum float64
	for i, y := range labels {
		if y == 1 {
			pos++
			rankSum += ranks[i]
		} else {
			neg++
		}
	}
	if pos == 0 || neg == 0 {
		return 0.5
	}
	return (rankSum - pos*(pos+1)/2) / (pos * neg)
}
