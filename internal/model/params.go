// Package model trains and applies the readmission classifier: an ensemble
// of depth-limited regression trees fitted by second-order gradient boosting
// on the logistic loss.
package model

import (
	"errors"
	"fmt"
)

var (
	ErrEmptyData     = errors.New("no training rows")
	ErrInvalidParams = errors.New("invalid training parameters")
	ErrMissingLabels = errors.New("training frame has no labels")
)

// Params controls training. Field names follow the usual boosting
// vocabulary so artifacts stay readable.
type Params struct {
	Estimators     int     `json:"n_estimators"`
	MaxDepth       int     `json:"max_depth"`
	LearningRate   float64 `json:"learning_rate"`
	Gamma          float64 `json:"gamma"`
	ColSample      float64 `json:"colsample_bytree"`
	Subsample      float64 `json:"subsample"`
	Lambda         float64 `json:"reg_lambda"`
	MinChildWeight float64 `json:"min_child_weight"`
	Seed           int64   `json:"seed"`
	Bins           int     `json:"max_bin"`
}

func DefaultParams() Params {
	return Params{
		Estimators:     200,
		MaxDepth:       5,
		LearningRate:   0.1,
		Gamma:          0.1,
		ColSample:      0.6,
		Subsample:      1.0,
		Lambda:         1,
		MinChildWeight: 1,
		Seed:           42,
		Bins:           64,
	}
}

// Validate checks parameter ranges.
func (p Params) Validate() error {
	switch {
	case p.Estimators < 1:
		return fmt.Errorf("%w: n_estimators must be at least 1", ErrInvalidParams)
	case p.MaxDepth < 1:
		return fmt.Errorf("%w: max_depth must be at least 1", ErrInvalidParams)
	case p.LearningRate <= 0 || p.LearningRate > 1:
		return fmt.Errorf("%w: learning_rate must be in (0, 1]", ErrInvalidParams)
	case p.Gamma < 0:
		return fmt.Errorf("%w: gamma must be non-negative", ErrInvalidParams)
	case p.ColSample <= 0 || p.ColSample > 1:
		return fmt.Errorf("%w: colsample_bytree must be in (0, 1]", ErrInvalidParams)
	case p.Subsample <= 0 || p.Subsample > 1:
		return fmt.Errorf("%w: subsample must be in (0, 1]", ErrInvalidParams)
	case p.Lambda < 0:
		return fmt.Errorf("%w: reg_lambda must be non-negative", ErrInvalidParams)
	case p.MinChildWeight < 0:
		return fmt.Errorf("%w: min_child_weight must be non-negative", ErrInvalidParams)
	case p.Bins < 2 || p.Bins > 65535:
		return fmt.Errorf("%w: max_bin must be in [2, 65535]", ErrInvalidParams)
	}
	return nil
}
