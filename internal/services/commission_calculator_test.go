package services

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCommissionCalculator_Amounts(t *testing.T) {
	calc := NewCommissionCalculator(decimal.NewFromInt(5))

	tests := []struct {
		name     string
		amount   string
		pct      string
		expected string
	}{
		{"matched amount", "150000", "5", "7500.00"},
		{"personal purchase", "500000", "5", "25000.00"},
		{"half cent rounds up", "10.10", "5", "0.51"},
		{"sub cent rounds up", "0.10", "5", "0.01"},
		{"below half cent rounds down", "0.09", "5", "0.00"},
		{"zero amount", "0", "5", "0.00"},
		{"fractional percentage", "1000", "2.5", "25.00"},
		{"zero percentage", "1000", "0", "0.00"},
		{"full percentage", "1234.56", "100", "1234.56"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := calc.CalculateMatchingCommission(d(tt.amount), d(tt.pct))
			require.NoError(t, err)
			assert.Equal(t, tt.expected, got.StringFixed(2))

			personal, err := calc.CalculatePersonalCommission(d(tt.amount), d(tt.pct))
			require.NoError(t, err)
			assert.True(t, got.Equal(personal), "personal and matching use the same formula")
		})
	}
}

func TestCommissionCalculator_ConfiguredPercentage(t *testing.T) {
	calc := NewCommissionCalculator(decimal.NewFromInt(5))

	got, err := calc.Matching(d("50000"))
	require.NoError(t, err)
	assert.Equal(t, "2500.00", got.StringFixed(2))

	got, err = calc.Personal(d("500000"))
	require.NoError(t, err)
	assert.Equal(t, "25000.00", got.StringFixed(2))
	assert.Equal(t, "5", calc.Percentage().String())
}

func TestCommissionCalculator_Rejects(t *testing.T) {
	calc := NewCommissionCalculator(decimal.NewFromInt(5))

	_, err := calc.CalculatePersonalCommission(d("-1"), d("5"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = calc.CalculateMatchingCommission(d("100"), d("100.01"))
	assert.ErrorIs(t, err, ErrInvalidPercentage)

	_, err = calc.CalculateMatchingCommission(d("100"), d("-5"))
	assert.ErrorIs(t, err, ErrInvalidPercentage)
}
