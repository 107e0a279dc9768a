package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// FeePolicy is a closed set of fee configurations. The concrete types are
// NoFee, FlatFee and PercentFee; CalculateFee switches over them.
type FeePolicy interface {
	feePolicy()
}

// NoFee charges nothing.
type NoFee struct{}

// FlatFee charges a fixed amount regardless of the transaction size.
type FlatFee struct {
	Amount Money
}

// PercentFee charges Rate * amount, rounded to Scale and optionally
// clamped to Cap.
type PercentFee struct {
	Rate decimal.Decimal
	Cap  *Money
}

func (NoFee) feePolicy()      {}
func (FlatFee) feePolicy()    {}
func (PercentFee) feePolicy() {}

// CalculateFee computes the fee for an amount under a policy.
// Pure and deterministic; negative amounts are rejected with ErrInvalidAmount.
func CalculateFee(amount Money, policy FeePolicy) (Money, error) {
	if amount.IsNegative() {
		return Zero(), fmt.Errorf("%w: %s", ErrInvalidAmount, amount)
	}

	switch p := policy.(type) {
	case NoFee:
		return Zero(), nil
	case FlatFee:
		return p.Amount, nil
	case PercentFee:
		fee := amount.MulRate(p.Rate)
		if p.Cap != nil {
			fee = Min(fee, *p.Cap)
		}
		return fee, nil
	default:
		return Zero(), fmt.Errorf("unknown fee policy %T", policy)
	}
}
