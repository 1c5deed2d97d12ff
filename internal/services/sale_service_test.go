package services

import (
	"context"
	"sync"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// binaryTeam builds seller with one member on each leg and one grandchild per leg
type binaryTeam struct {
	seller, left, right, leftLeft, rightRight *models.User
}

func newBinaryTeam(t *testing.T, env *testEnv) binaryTeam {
	t.Helper()
	seller := env.addMember(t, "Seller", 0, "")
	left := env.addMember(t, "Left", seller.ID, models.LegLeft)
	right := env.addMember(t, "Right", seller.ID, models.LegRight)
	return binaryTeam{
		seller:     seller,
		left:       left,
		right:      right,
		leftLeft:   env.addMember(t, "LeftLeft", left.ID, models.LegLeft),
		rightRight: env.addMember(t, "RightRight", right.ID, models.LegRight),
	}
}

func saleInput(buyer, seller *models.User, amount string) RecordSaleInput {
	return RecordSaleInput{
		BuyerID:    buyer.ID,
		SellerID:   seller.ID,
		PlotID:     "PLOT-1",
		SaleAmount: d(amount),
	}
}

func TestSaleService_AssignLeg(t *testing.T) {
	env := newTestEnv(t)
	team := newBinaryTeam(t, env)
	ctx := context.Background()

	tests := []struct {
		name   string
		buyer  *models.User
		seller *models.User
		want   models.Leg
	}{
		{"self purchase", team.seller, team.seller, models.LegPersonal},
		{"direct left child", team.left, team.seller, models.LegLeft},
		{"direct right child", team.right, team.seller, models.LegRight},
		{"deep left member", team.leftLeft, team.seller, models.LegLeft},
		{"deep right member", team.rightRight, team.seller, models.LegRight},
		{"relative to intermediate upline", team.leftLeft, team.left, models.LegLeft},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			leg, err := env.sales.AssignLeg(ctx, tt.buyer.ID, tt.seller.ID)
			require.NoError(t, err)
			assert.Equal(t, tt.want, leg)
		})
	}

	t.Run("buyer outside downline", func(t *testing.T) {
		_, err := env.sales.AssignLeg(ctx, team.left.ID, team.right.ID)
		assert.ErrorIs(t, err, ErrNotInDownline)

		_, err = env.sales.AssignLeg(ctx, team.seller.ID, team.left.ID)
		assert.ErrorIs(t, err, ErrNotInDownline)
	})

	t.Run("child without placement position", func(t *testing.T) {
		unplaced := env.addMember(t, "Unplaced", team.right.ID, "")
		_, err := env.sales.AssignLeg(ctx, unplaced.ID, team.right.ID)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestSaleService_LegSalesMatchAndCarryForward(t *testing.T) {
	env := newTestEnv(t)
	team := newBinaryTeam(t, env)
	ctx := context.Background()
	admin := Actor{ID: 99}

	first, err := env.sales.RecordSale(ctx, admin, saleInput(team.left, team.seller, "200000"))
	require.NoError(t, err)
	assert.Equal(t, models.LegLeft, first.Sale.LegType)
	assert.Nil(t, first.Income, "one leg alone never matches")
	require.NotNil(t, first.Sale.RecordedBy)
	assert.Equal(t, uint(99), *first.Sale.RecordedBy)

	second, err := env.sales.RecordSale(ctx, admin, saleInput(team.right, team.seller, "150000"))
	require.NoError(t, err)
	require.NotNil(t, second.Income)
	assert.Equal(t, models.IncomeTypeMatchingBonus, second.Income.IncomeType)
	assert.Equal(t, team.seller.ID, second.Income.UserID)
	assert.Equal(t, "150000.00", second.Income.BalancedAmount.StringFixed(2))
	assert.Equal(t, "7500.00", second.Income.IncomeAmount.StringFixed(2))
	assert.NotEmpty(t, second.Income.GUID)

	balance, err := env.balances.GetBalance(ctx, team.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, "50000.00", balance.LeftAvailable.StringFixed(2))
	assert.True(t, balance.RightAvailable.IsZero())
	assert.Equal(t, models.LegLeft, balance.CarryForwardLeg)

	third, err := env.sales.RecordSale(ctx, admin, saleInput(team.rightRight, team.seller, "60000"))
	require.NoError(t, err)
	assert.Equal(t, models.LegRight, third.Sale.LegType)
	require.NotNil(t, third.Income)
	assert.Equal(t, "50000.00", third.Income.BalancedAmount.StringFixed(2))
	assert.Equal(t, "2500.00", third.Income.IncomeAmount.StringFixed(2))

	balance, err = env.balances.GetBalance(ctx, team.seller.ID)
	require.NoError(t, err)
	assert.True(t, balance.LeftAvailable.IsZero())
	assert.Equal(t, "10000.00", balance.RightAvailable.StringFixed(2))
	assert.Equal(t, models.LegRight, balance.CarryForwardLeg)
	assert.Equal(t, "10000.00", balance.CarryForwardAmount.StringFixed(2))
	assert.Equal(t, 2, balance.MatchingCount)

	// the seller was notified once per bonus and every sale and match was audited
	assert.Len(t, env.notificationsFor(team.seller.ID), 2)
	assert.Equal(t, []string{models.AuditActionCreate}, env.auditActions(models.AuditEntitySale, third.Sale.ID))
	assert.Equal(t, []string{models.AuditActionMatch}, env.auditActions(models.AuditEntityIncome, third.Income.ID))
}

func TestSaleService_PersonalPurchase(t *testing.T) {
	env := newTestEnv(t)
	team := newBinaryTeam(t, env)
	ctx := context.Background()

	input := saleInput(team.seller, team.seller, "500000")
	input.SaleDate = testNow.AddDate(0, 0, -10)

	result, err := env.sales.RecordSale(ctx, SystemActor, input)
	require.NoError(t, err)
	assert.Equal(t, models.LegPersonal, result.Sale.LegType)
	assert.Nil(t, result.Match)

	income := result.Income
	require.NotNil(t, income)
	assert.Equal(t, models.IncomeTypePersonalSale, income.IncomeType)
	assert.Equal(t, "25000.00", income.IncomeAmount.StringFixed(2))
	assert.Equal(t, models.IncomeStatusPending, income.Status)
	assert.True(t, income.EligibleForApprovalDate.Equal(input.SaleDate.AddDate(0, 3, 0)))
	assert.Equal(t, models.LegPersonal, income.LegType)
	assert.Nil(t, income.PairedWith())
	require.NotNil(t, income.SaleID)
	assert.Equal(t, result.Sale.ID, *income.SaleID)

	// personal purchases never touch leg balances
	balance, err := env.balances.GetBalance(ctx, team.seller.ID)
	require.NoError(t, err)
	assert.True(t, balance.LeftTotalSales.IsZero())
	assert.True(t, balance.RightTotalSales.IsZero())
}

func TestSaleService_RecordSaleValidation(t *testing.T) {
	env := newTestEnv(t)
	team := newBinaryTeam(t, env)
	ctx := context.Background()

	_, err := env.sales.RecordSale(ctx, SystemActor, saleInput(team.left, team.seller, "0"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	_, err = env.sales.RecordSale(ctx, SystemActor, saleInput(team.left, team.seller, "-10"))
	assert.ErrorIs(t, err, ErrInvalidAmount)

	input := saleInput(team.left, team.seller, "100")
	input.PlotID = "  "
	_, err = env.sales.RecordSale(ctx, SystemActor, input)
	assert.ErrorIs(t, err, ErrInvalidInput)

	input = saleInput(team.left, team.seller, "100")
	input.BuyerID = 4040
	_, err = env.sales.RecordSale(ctx, SystemActor, input)
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = env.sales.RecordSale(ctx, SystemActor, saleInput(team.left, team.right, "100"))
	assert.ErrorIs(t, err, ErrNotInDownline)

	env.store.mu.Lock()
	assert.Empty(t, env.store.sales, "rejected sales are never stored")
	env.store.mu.Unlock()
}

func TestSaleService_ConcurrentSalesForOneSeller(t *testing.T) {
	env := newTestEnv(t)
	team := newBinaryTeam(t, env)
	ctx := context.Background()

	const perLeg = 25
	var wg sync.WaitGroup
	errs := make(chan error, perLeg*2)
	for i := 0; i < perLeg; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := env.sales.RecordSale(ctx, SystemActor, saleInput(team.leftLeft, team.seller, "1000.50"))
			errs <- err
		}()
		go func() {
			defer wg.Done()
			_, err := env.sales.RecordSale(ctx, SystemActor, saleInput(team.right, team.seller, "700.25"))
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}

	balance, err := env.balances.GetBalance(ctx, team.seller.ID)
	require.NoError(t, err)
	require.NoError(t, balance.CheckInvariants())

	leftTotal := d("1000.50").Mul(decimal.NewFromInt(perLeg))
	rightTotal := d("700.25").Mul(decimal.NewFromInt(perLeg))
	assert.True(t, balance.LeftTotalSales.Equal(leftTotal))
	assert.True(t, balance.RightTotalSales.Equal(rightTotal))
	assert.True(t, balance.Matchable().IsZero())
	assert.True(t, balance.TotalMatchedAmount.Equal(rightTotal))
	assert.True(t, balance.LeftAvailable.Equal(leftTotal.Sub(rightTotal)))

	matched := decimal.Zero
	count := 0
	env.store.mu.Lock()
	for _, rec := range env.store.incomes {
		if rec.UserID == team.seller.ID && rec.IncomeType == models.IncomeTypeMatchingBonus {
			matched = matched.Add(rec.BalancedAmount)
			count++
		}
	}
	env.store.mu.Unlock()
	assert.True(t, matched.Equal(balance.TotalMatchedAmount), "bonuses cover exactly the matched volume")
	assert.Equal(t, balance.MatchingCount, count)
}

func TestSaleService_SweepMatches(t *testing.T) {
	env := newTestEnv(t)
	team := newBinaryTeam(t, env)
	ctx := context.Background()

	// credit both legs without running a pass
	require.NoError(t, env.balances.RecordSale(ctx, team.seller.ID, models.LegLeft, d("100000")))
	require.NoError(t, env.balances.RecordSale(ctx, team.seller.ID, models.LegRight, d("80000")))
	require.NoError(t, env.balances.RecordSale(ctx, team.left.ID, models.LegLeft, d("5000")))

	matched, err := env.sales.SweepMatches(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, matched)

	balance, err := env.balances.GetBalance(ctx, team.seller.ID)
	require.NoError(t, err)
	assert.Equal(t, "20000.00", balance.LeftAvailable.StringFixed(2))
	assert.True(t, balance.RightAvailable.IsZero())

	var bonus *models.IncomeRecord
	env.store.mu.Lock()
	for _, rec := range env.store.incomes {
		if rec.UserID == team.seller.ID {
			bonus = rec
		}
	}
	env.store.mu.Unlock()
	require.NotNil(t, bonus)
	assert.Equal(t, "80000.00", bonus.BalancedAmount.StringFixed(2))
	assert.Equal(t, "4000.00", bonus.IncomeAmount.StringFixed(2))
	assert.Equal(t, models.LegRight, bonus.LegType)
	assert.True(t, bonus.SaleDate.Equal(testNow))
	assert.Nil(t, bonus.SaleID)

	// nothing left to match
	matched, err = env.sales.SweepMatches(ctx, 100)
	require.NoError(t, err)
	assert.Zero(t, matched)
}
