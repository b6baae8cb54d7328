package model

import (
	"context"
	"fmt"
	"math"
	"math/rand"
	"runtime"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/readmit/readmit/internal/features"
)

// Booster is a trained ensemble. The margin of a vector is BaseMargin plus
// the sum of every tree's leaf value; the probability is its logistic.
type Booster struct {
	Width      int     `json:"width"`
	BaseMargin float64 `json:"base_margin"`
	Trees      []Tree  `json:"trees"`
}

// Margin returns the raw log-odds score of x.
func (b *Booster) Margin(x []float64) float64 {
	m := b.BaseMargin
	for _, t := range b.Trees {
		m += t.predict(x)
	}
	return m
}

// PredictProba returns the probability of the positive class.
func (b *Booster) PredictProba(x []float64) float64 {
	return sigmoid(b.Margin(x))
}

func sigmoid(m float64) float64 {
	return 1 / (1 + math.Exp(-m))
}

const hessianFloor = 1e-16

// Train fits a booster to f. Labels must be 0 or 1. The result depends only
// on f and p: column sampling draws from p.Seed and the per-feature split
// search, which runs concurrently, is reduced in column order.
func Train(ctx context.Context, f features.Frame, p Params) (*Booster, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	if f.Len() == 0 {
		return nil, ErrEmptyData
	}
	if len(f.Labels) != f.Len() {
		return nil, ErrMissingLabels
	}

	n, width := f.Len(), f.Width()
	bins := newBinner(f.Rows, width, p.Bins)
	t := &trainer{
		params: p,
		bins:   bins,
		binned: bins.quantize(f.Rows),
		grad:   make([]float64, n),
		hess:   make([]float64, n),
	}

	b := &Booster{Width: width, BaseMargin: priorMargin(f.Labels)}
	margin := make([]float64, n)
	for i := range margin {
		margin[i] = b.BaseMargin
	}

	rng := rand.New(rand.NewSource(p.Seed))
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}

	for round := 0; round < p.Estimators; round++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for i := range margin {
			prob := sigmoid(margin[i])
			t.grad[i] = prob - f.Labels[i]
			t.hess[i] = math.Max(prob*(1-prob), hessianFloor)
		}

		rows := all
		if p.Subsample < 1 {
			rows = sampleRows(rng, n, p.Subsample)
		}
		cols := sampleCols(rng, width, p.ColSample)

		tree, err := t.grow(ctx, rows, cols)
		if err != nil {
			return nil, fmt.Errorf("round %d: %w", round, err)
		}
		b.Trees = append(b.Trees, tree)
		for i, r := range f.Rows {
			margin[i] += tree.predict(r)
		}
	}
	return b, nil
}

// priorMargin is the log-odds of the positive rate, clamped away from the
// degenerate all-one and all-zero cases.
func priorMargin(labels []float64) float64 {
	var pos float64
	for _, y := range labels {
		pos += y
	}
	rate := pos / float64(len(labels))
	rate = math.Min(math.Max(rate, 1e-6), 1-1e-6)
	return math.Log(rate / (1 - rate))
}

func sampleRows(rng *rand.Rand, n int, frac float64) []int {
	k := max(1, int(frac*float64(n)))
	rows := rng.Perm(n)[:k]
	sort.Ints(rows)
	return rows
}

func sampleCols(rng *rand.Rand, width int, frac float64) []int {
	k := max(1, int(frac*float64(width)))
	cols := rng.Perm(width)[:k]
	sort.Ints(cols)
	return cols
}

type trainer struct {
	params Params
	bins   binner
	binned [][]uint16
	grad   []float64
	hess   []float64
}

type split struct {
	gain    float64
	feature int
	bucket  int
	ok      bool
}

func (t *trainer) grow(ctx context.Context, rows, cols []int) (Tree, error) {
	var tree Tree
	if _, err := t.node(ctx, &tree, rows, cols, 0); err != nil {
		return Tree{}, err
	}
	return tree, nil
}

// node appends the subtree for rows to tree and returns its index.
func (t *trainer) node(ctx context.Context, tree *Tree, rows, cols []int, depth int) (int, error) {
	var g, h float64
	for _, i := range rows {
		g += t.grad[i]
		h += t.hess[i]
	}

	idx := len(tree.Nodes)
	tree.Nodes = append(tree.Nodes, Node{Leaf: true, Value: t.leafValue(g, h)})
	if depth >= t.params.MaxDepth || len(rows) < 2 {
		return idx, nil
	}

	best, err := t.bestSplit(ctx, rows, cols, g, h)
	if err != nil {
		return 0, err
	}
	if !best.ok {
		return idx, nil
	}

	var left, right []int
	col := t.binned[best.feature]
	for _, i := range rows {
		if int(col[i]) <= best.bucket {
			left = append(left, i)
		} else {
			right = append(right, i)
		}
	}

	l, err := t.node(ctx, tree, left, cols, depth+1)
	if err != nil {
		return 0, err
	}
	r, err := t.node(ctx, tree, right, cols, depth+1)
	if err != nil {
		return 0, err
	}
	tree.Nodes[idx] = Node{
		Feature:   best.feature,
		Threshold: t.bins.cuts[best.feature][best.bucket],
		Left:      l,
		Right:     r,
	}
	return idx, nil
}

func (t *trainer) leafValue(g, h float64) float64 {
	return -t.params.LearningRate * g / (h + t.params.Lambda)
}

func (t *trainer) score(g, h float64) float64 {
	return g * g / (h + t.params.Lambda)
}

// bestSplit searches every sampled column concurrently and keeps the first
// column, in order, with the highest gain.
func (t *trainer) bestSplit(ctx context.Context, rows, cols []int, g, h float64) (split, error) {
	results := make([]split, len(cols))
	eg, ctx := errgroup.WithContext(ctx)
	eg.SetLimit(runtime.GOMAXPROCS(0))
	for k, j := range cols {
		eg.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			results[k] = t.searchColumn(j, rows, g, h)
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		return split{}, err
	}

	var best split
	for _, s := range results {
		if s.ok && (!best.ok || s.gain > best.gain) {
			best = s
		}
	}
	return best, nil
}

func (t *trainer) searchColumn(j int, rows []int, g, h float64) split {
	cuts := t.bins.cuts[j]
	if len(cuts) == 0 {
		return split{}
	}
	gh := make([]float64, len(cuts)+1)
	hh := make([]float64, len(cuts)+1)
	col := t.binned[j]
	for _, i := range rows {
		gh[col[i]] += t.grad[i]
		hh[col[i]] += t.hess[i]
	}

	parent := t.score(g, h)
	best := split{feature: j}
	var gl, hl float64
	for k := 0; k < len(cuts); k++ {
		gl += gh[k]
		hl += hh[k]
		gr, hr := g-gl, h-hl
		if hl < t.params.MinChildWeight || hr < t.params.MinChildWeight {
			continue
		}
		gain := 0.5*(t.score(gl, hl)+t.score(gr, hr)-parent) - t.params.Gamma
		if gain > 0 && (!best.ok || gain > best.gain) {
			best.gain, best.bucket, best.ok = gain, k, true
		}
	}
	return best
}
