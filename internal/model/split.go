package model

import (
	"fmt"
	"math"
	"math/rand"
)

// TrainTestSplit shuffles 0..n-1 with seed and holds out
// ceil(n*testFraction) indices for testing.
func TrainTestSplit(n int, testFraction float64, seed int64) (train, test []int, err error) {
	if testFraction <= 0 || testFraction >= 1 {
		return nil, nil, fmt.Errorf("%w: test fraction must be in (0, 1)", ErrInvalidParams)
	}
	nTest := int(math.Ceil(float64(n) * testFraction))
	if n-nTest < 1 {
		return nil, nil, fmt.Errorf("%w: %d rows leave nothing to train on", ErrEmptyData, n)
	}
	perm := rand.New(rand.NewSource(seed)).Perm(n)
	return perm[nTest:], perm[:nTest], nil
}
