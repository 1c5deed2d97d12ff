package services

import (
	"math/rand"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEngine() *MatchingEngine {
	engine := NewMatchingEngine(NewCommissionCalculator(decimal.NewFromInt(5)), 3)
	engine.Now = func() time.Time { return testNow }
	return engine
}

func creditedBalance(t *testing.T, left, right string) *models.LegBalance {
	t.Helper()
	b := models.NewLegBalance(1)
	require.NoError(t, b.Credit(models.LegLeft, d(left)))
	require.NoError(t, b.Credit(models.LegRight, d(right)))
	return b
}

func TestMatchingEngine_MatchesWeakerLeg(t *testing.T) {
	engine := newTestEngine()
	balance := creditedBalance(t, "200000", "150000")

	result, err := engine.Match(balance, nil)
	require.NoError(t, err)
	require.True(t, result.HasMatch())

	income := result.Income
	assert.Equal(t, models.IncomeTypeMatchingBonus, income.IncomeType)
	assert.Equal(t, "150000.00", income.BalancedAmount.StringFixed(2))
	assert.Equal(t, "7500.00", income.IncomeAmount.StringFixed(2))
	assert.Equal(t, models.IncomeStatusPending, income.Status)
	assert.Equal(t, uint(1), income.UserID)

	assert.Equal(t, "50000.00", balance.LeftAvailable.StringFixed(2))
	assert.True(t, balance.RightAvailable.IsZero())
	assert.Equal(t, models.LegLeft, result.CarryForward.Leg)
	assert.Equal(t, "50000.00", result.CarryForward.Amount)

	assert.Equal(t, "150000.00", balance.TotalMatchedAmount.StringFixed(2))
	assert.Equal(t, 1, balance.MatchingCount)
	require.NotNil(t, balance.LastMatchedAt)

	// totals are never reduced by matching
	assert.Equal(t, "200000.00", balance.LeftTotalSales.StringFixed(2))
	assert.Equal(t, "150000.00", balance.RightTotalSales.StringFixed(2))

	pairing := income.PairedWith()
	require.NotNil(t, pairing)
	assert.Equal(t, "200000", pairing.LeftAvailableBefore.String())
	assert.Equal(t, "150000", pairing.RightAvailableBefore.String())
	assert.Equal(t, models.LegRight, pairing.TriggerLeg)
}

func TestMatchingEngine_CarryForwardMatchesNextSale(t *testing.T) {
	engine := newTestEngine()
	balance := creditedBalance(t, "200000", "150000")
	_, err := engine.Match(balance, nil)
	require.NoError(t, err)

	trigger := &models.Sale{ID: 42, SaleAmount: d("60000"), SaleDate: testNow.AddDate(0, 0, -1), LegType: models.LegRight}
	require.NoError(t, balance.Credit(models.LegRight, trigger.SaleAmount))

	result, err := engine.Match(balance, trigger)
	require.NoError(t, err)
	require.True(t, result.HasMatch())

	assert.Equal(t, "50000.00", result.Income.BalancedAmount.StringFixed(2))
	assert.Equal(t, "2500.00", result.Income.IncomeAmount.StringFixed(2))
	assert.Equal(t, "60000.00", result.Income.SaleAmount.StringFixed(2))
	assert.Equal(t, models.LegRight, result.Income.LegType)
	assert.True(t, result.Income.SaleDate.Equal(trigger.SaleDate))
	assert.True(t, result.Income.EligibleForApprovalDate.Equal(trigger.SaleDate.AddDate(0, 3, 0)))
	require.NotNil(t, result.Income.SaleID)
	assert.Equal(t, uint(42), *result.Income.SaleID)

	assert.True(t, balance.LeftAvailable.IsZero())
	assert.Equal(t, "10000.00", balance.RightAvailable.StringFixed(2))
	assert.Equal(t, models.LegRight, result.CarryForward.Leg)
	assert.Equal(t, "10000.00", result.CarryForward.Amount)
	assert.Equal(t, "200000.00", balance.TotalMatchedAmount.StringFixed(2))
	assert.Equal(t, 2, balance.MatchingCount)
}

func TestMatchingEngine_EqualLegsLeaveNoCarryForward(t *testing.T) {
	engine := newTestEngine()
	balance := creditedBalance(t, "75000", "75000")

	result, err := engine.Match(balance, nil)
	require.NoError(t, err)
	require.True(t, result.HasMatch())

	assert.Equal(t, "3750.00", result.Income.IncomeAmount.StringFixed(2))
	assert.True(t, balance.LeftAvailable.IsZero())
	assert.True(t, balance.RightAvailable.IsZero())
	assert.Equal(t, models.LegNone, result.CarryForward.Leg)
	assert.Equal(t, "0.00", result.CarryForward.Amount)
}

func TestMatchingEngine_NoOpWhenOneLegEmpty(t *testing.T) {
	engine := newTestEngine()
	balance := models.NewLegBalance(1)
	require.NoError(t, balance.Credit(models.LegLeft, d("90000")))

	result, err := engine.Match(balance, nil)
	require.NoError(t, err)
	assert.False(t, result.HasMatch())
	assert.True(t, result.Matched.IsZero())

	assert.Equal(t, "90000.00", balance.LeftAvailable.StringFixed(2))
	assert.Equal(t, 0, balance.MatchingCount)
	assert.Nil(t, balance.LastMatchedAt)
	assert.Equal(t, models.LegLeft, result.CarryForward.Leg)
	assert.Equal(t, "90000.00", result.CarryForward.Amount)
}

func TestMatchingEngine_RandomSequencesKeepInvariants(t *testing.T) {
	engine := newTestEngine()
	rng := rand.New(rand.NewSource(7))

	for run := 0; run < 50; run++ {
		balance := models.NewLegBalance(uint(run + 1))
		leftTotal, rightTotal, bonusTotal := decimal.Zero, decimal.Zero, decimal.Zero

		for i := 0; i < 40; i++ {
			leg := models.LegLeft
			if rng.Intn(2) == 1 {
				leg = models.LegRight
			}
			amount := decimal.NewFromInt(int64(rng.Intn(500000) + 1)).Div(decimal.NewFromInt(100))
			require.NoError(t, balance.Credit(leg, amount))
			if leg == models.LegLeft {
				leftTotal = leftTotal.Add(amount)
			} else {
				rightTotal = rightTotal.Add(amount)
			}

			before := balance.Matchable()
			result, err := engine.Match(balance, nil)
			require.NoError(t, err)
			assert.True(t, result.Matched.Equal(before))
			assert.True(t, balance.Matchable().IsZero(), "a pass leaves one leg empty")
			require.NoError(t, balance.CheckInvariants())

			if result.HasMatch() {
				bonusTotal = bonusTotal.Add(result.Income.BalancedAmount)
			}
		}

		// consumed amounts equal on both legs and equal the sum of bonuses
		leftConsumed := leftTotal.Sub(balance.LeftAvailable)
		rightConsumed := rightTotal.Sub(balance.RightAvailable)
		assert.True(t, leftConsumed.Equal(rightConsumed))
		assert.True(t, leftConsumed.Equal(balance.TotalMatchedAmount))
		assert.True(t, bonusTotal.Equal(balance.TotalMatchedAmount))
		assert.True(t, balance.TotalMatchedAmount.Equal(decimal.Min(leftTotal, rightTotal)))
	}
}
