package domain

import (
	"errors"
	"fmt"
	"math"
)

// Parameters are the user-tunable inputs of the estimator.
type Parameters struct {
	USDAmount  float64 `json:"usd_amount"`
	FeeTier    FeeTier `json:"fee_tier"`
	Volatility float64 `json:"volatility"`
}

// Validate checks that the amount is positive, the tier is known and the
// volatility seed is non-negative.
func (p Parameters) Validate() error {
	var errs []error
	if !(p.USDAmount > 0) || math.IsInf(p.USDAmount, 0) {
		errs = append(errs, fmt.Errorf("usd_amount must be > 0, got %v", p.USDAmount))
	}
	if !p.FeeTier.Valid() {
		errs = append(errs, fmt.Errorf("unknown fee_tier %q", p.FeeTier))
	}
	if !(p.Volatility >= 0) || math.IsInf(p.Volatility, 0) {
		errs = append(errs, fmt.Errorf("volatility must be >= 0, got %v", p.Volatility))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", ErrInvalidParameters, errors.Join(errs...))
	}
	return nil
}

// ParameterUpdate is a partial change to Parameters. Nil fields are left
// unchanged.
type ParameterUpdate struct {
	USDAmount  *float64 `json:"usd_amount,omitempty"`
	FeeTier    *FeeTier `json:"fee_tier,omitempty"`
	Volatility *float64 `json:"volatility,omitempty"`
}

// Empty reports whether the update changes nothing.
func (u ParameterUpdate) Empty() bool {
	return u.USDAmount == nil && u.FeeTier == nil && u.Volatility == nil
}

// Apply returns p with the non-nil fields of u substituted.
func (u ParameterUpdate) Apply(p Parameters) Parameters {
	if u.USDAmount != nil {
		p.USDAmount = *u.USDAmount
	}
	if u.FeeTier != nil {
		p.FeeTier = *u.FeeTier
	}
	if u.Volatility != nil {
		p.Volatility = *u.Volatility
	}
	return p
}
