package services

import (
	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// DefaultCommissionPercentage applies when no percentage is configured
var DefaultCommissionPercentage = decimal.NewFromInt(5)

// CommissionCalculator computes commissions as a percentage of an amount,
// rounded half-up to 2 decimal places.
type CommissionCalculator struct {
	percentage decimal.Decimal
}

// NewCommissionCalculator creates a calculator using pct as the default percentage
func NewCommissionCalculator(pct decimal.Decimal) *CommissionCalculator {
	return &CommissionCalculator{percentage: pct}
}

// Percentage returns the configured percentage
func (c *CommissionCalculator) Percentage() decimal.Decimal {
	return c.percentage
}

// CalculatePersonalCommission returns the commission on a self purchase
func (c *CommissionCalculator) CalculatePersonalCommission(saleAmount, pct decimal.Decimal) (decimal.Decimal, error) {
	return commission(saleAmount, pct)
}

// CalculateMatchingCommission returns the commission on a matched leg amount
func (c *CommissionCalculator) CalculateMatchingCommission(balancedAmount, pct decimal.Decimal) (decimal.Decimal, error) {
	return commission(balancedAmount, pct)
}

// Personal applies the configured percentage to a self purchase
func (c *CommissionCalculator) Personal(saleAmount decimal.Decimal) (decimal.Decimal, error) {
	return c.CalculatePersonalCommission(saleAmount, c.percentage)
}

// Matching applies the configured percentage to a matched amount
func (c *CommissionCalculator) Matching(balancedAmount decimal.Decimal) (decimal.Decimal, error) {
	return c.CalculateMatchingCommission(balancedAmount, c.percentage)
}

func commission(amount, pct decimal.Decimal) (decimal.Decimal, error) {
	if amount.IsNegative() {
		return decimal.Zero, ErrInvalidAmount
	}
	if pct.IsNegative() || pct.GreaterThan(hundred) {
		return decimal.Zero, ErrInvalidPercentage
	}
	// Round is half away from zero, which is half-up for non-negative values
	return amount.Mul(pct).Div(hundred).Round(2), nil
}
