package service

import "github.com/shopspring/decimal"

const (
	DefaultPointValue     = 100
	DefaultRedemptionStep = 50
)

// RedemptionInput describes a cart at the moment the buyer asks to redeem.
// Zero PointValue or Step fall back to the defaults.
type RedemptionInput struct {
	Balance               int64
	Subtotal              decimal.Decimal
	ExistingDiscount      decimal.Decimal
	AppliedPointsDiscount decimal.Decimal
	PointValue            int64
	Step                  int64
}

// MaxRedeemable is the largest multiple of Step points that fits both the
// balance and the still-payable part of the cart.
func MaxRedeemable(in RedemptionInput) int64 {
	pointValue := in.PointValue
	if pointValue <= 0 {
		pointValue = DefaultPointValue
	}
	step := in.Step
	if step <= 0 {
		step = DefaultRedemptionStep
	}
	if in.Balance <= 0 {
		return 0
	}

	remaining := in.Subtotal.Sub(in.ExistingDiscount).Sub(in.AppliedPointsDiscount)
	if remaining.IsNegative() {
		remaining = decimal.Zero
	}
	maxBySpend := remaining.Div(decimal.NewFromInt(pointValue)).Floor().IntPart()

	hardCap := min(in.Balance, maxBySpend)
	return hardCap / step * step
}
