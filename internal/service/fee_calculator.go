package service

import "qris-gateway/internal/core/domain"

// FeeRounding is the one rounding rule applied to percentage fees:
// half up, once, on the basis-point product.
const FeeRounding = "half_up"

const basisPointsPerUnit = 10_000

// FeeCalculator implements ports.FeeCalculator.
type FeeCalculator struct{}

// NewFeeCalculator creates a fee calculator.
func NewFeeCalculator() *FeeCalculator {
	return &FeeCalculator{}
}

// Calculate returns fee = roundHalfUp(amount * bps / 10000) + flat and
// net = amount - fee, so fee + net == amount for every input.
func (FeeCalculator) Calculate(amount int64, schedule domain.FeeSchedule) (int64, int64) {
	fee := CalculateFee(amount, schedule)
	return fee, amount - fee
}

// CalculateFee is the pure fee function.
func CalculateFee(amount int64, schedule domain.FeeSchedule) int64 {
	pct := (amount*schedule.BasisPoints + basisPointsPerUnit/2) / basisPointsPerUnit
	return pct + schedule.Flat
}
