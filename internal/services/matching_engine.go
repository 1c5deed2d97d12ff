package services

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-matching-api/internal/models"
)

// MatchResult is the outcome of one matching pass
type MatchResult struct {
	Matched      decimal.Decimal
	LeftBefore   decimal.Decimal
	RightBefore  decimal.Decimal
	CarryForward models.CarryForwardSnapshot
	// Income is the matching bonus to persist, nil when nothing matched
	Income *models.IncomeRecord
}

// HasMatch returns true when the pass paired a non-zero amount
func (r *MatchResult) HasMatch() bool {
	return r.Income != nil
}

// MatchingEngine pairs the available balances of a member's two legs
type MatchingEngine struct {
	calc              *CommissionCalculator
	eligibilityMonths int
	Now               func() time.Time
}

// NewMatchingEngine creates a matching engine
func NewMatchingEngine(calc *CommissionCalculator, eligibilityMonths int) *MatchingEngine {
	return &MatchingEngine{
		calc:              calc,
		eligibilityMonths: eligibilityMonths,
		Now:               time.Now,
	}
}

// Match runs one pass over balance, which the caller must hold locked.
// It consumes min(left, right) from both legs and returns the matching bonus
// for that amount. trigger is the leg sale that caused the pass; sweeps pass
// nil and date the bonus at the time of the pass.
func (e *MatchingEngine) Match(balance *models.LegBalance, trigger *models.Sale) (*MatchResult, error) {
	left, right := balance.LeftAvailable, balance.RightAvailable
	matched := decimal.Min(left, right)

	result := &MatchResult{
		Matched:     matched,
		LeftBefore:  left,
		RightBefore: right,
	}

	if !matched.IsPositive() {
		balance.RefreshCarryForward()
		result.Matched = decimal.Zero
		result.CarryForward = carryForwardOf(balance)
		return result, nil
	}

	if matched.GreaterThan(left) || matched.GreaterThan(right) {
		return nil, fmt.Errorf("%w: matched %s exceeds available legs", ErrBalanceInvariant, matched)
	}

	income, err := e.calc.Matching(matched)
	if err != nil {
		return nil, err
	}

	if err := balance.Consume(models.LegLeft, matched); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBalanceInvariant, err)
	}
	if err := balance.Consume(models.LegRight, matched); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBalanceInvariant, err)
	}
	if balance.Matchable().IsPositive() {
		return nil, fmt.Errorf("%w: both legs still available after pass", ErrBalanceInvariant)
	}
	if err := balance.CheckInvariants(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBalanceInvariant, err)
	}

	now := e.Now()
	balance.TotalMatchedAmount = balance.TotalMatchedAmount.Add(matched)
	balance.MatchingCount++
	balance.LastMatchedAt = &now

	pairing := models.Pairing{
		LeftAvailableBefore:  left,
		RightAvailableBefore: right,
	}
	saleAmount := matched
	saleDate := now
	leg := weakerLeg(left, right)
	if trigger != nil {
		pairing.TriggerSaleID = &trigger.ID
		pairing.TriggerLeg = trigger.LegType
		pairing.OppositeLeg = trigger.LegType.Opposite()
		saleAmount = trigger.SaleAmount
		saleDate = trigger.SaleDate
		leg = trigger.LegType
	} else {
		pairing.TriggerLeg = leg
		pairing.OppositeLeg = leg.Opposite()
	}

	result.Income = models.NewMatchingBonusIncome(
		balance.MemberID, saleAmount, matched, e.calc.Percentage(), income,
		saleDate, leg, pairing, e.eligibilityMonths,
	)
	result.CarryForward = carryForwardOf(balance)
	return result, nil
}

// weakerLeg returns the leg that a pass fully consumes, right on ties
func weakerLeg(left, right decimal.Decimal) models.Leg {
	if left.LessThan(right) {
		return models.LegLeft
	}
	return models.LegRight
}

func carryForwardOf(b *models.LegBalance) models.CarryForwardSnapshot {
	return models.CarryForwardSnapshot{
		Leg:    b.CarryForwardLeg,
		Amount: b.CarryForwardAmount.StringFixed(2),
	}
}
