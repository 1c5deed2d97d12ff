package services

import (
	"context"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/internal/repository"
	"github.com/sjperalta/fintera-matching-api/pkg/logger"
)

// unmatchedSalesLimit caps how many leg sales are scanned to attribute a residual
const unmatchedSalesLimit = 500

// LegBalanceService tracks per-member leg totals and available balances
type LegBalanceService struct {
	ledgerRepo repository.LedgerRepository
	userRepo   repository.UserRepository
	incomeRepo repository.IncomeRepository
	Now        func() time.Time
}

// NewLegBalanceService creates a new leg balance service
func NewLegBalanceService(ledgerRepo repository.LedgerRepository, userRepo repository.UserRepository, incomeRepo repository.IncomeRepository) *LegBalanceService {
	return &LegBalanceService{
		ledgerRepo: ledgerRepo,
		userRepo:   userRepo,
		incomeRepo: incomeRepo,
		Now:        time.Now,
	}
}

// RecordSale credits amount to a binary leg of memberID. Personal sales never
// touch leg balances and are accepted as a no-op.
func (s *LegBalanceService) RecordSale(ctx context.Context, memberID uint, leg models.Leg, amount decimal.Decimal) error {
	if leg == models.LegPersonal {
		return nil
	}
	if !leg.IsBinary() {
		return ErrInvalidLeg
	}
	if !amount.IsPositive() {
		return ErrInvalidAmount
	}
	return s.ledgerRepo.WithLockedBalance(ctx, memberID, func(_ repository.LedgerTx, balance *models.LegBalance) error {
		return balance.Credit(leg, amount)
	})
}

// GetAvailableBalance returns the unconsumed balance of one leg
func (s *LegBalanceService) GetAvailableBalance(ctx context.Context, memberID uint, leg models.Leg) (decimal.Decimal, error) {
	balance, err := s.ledgerRepo.FindBalance(ctx, memberID)
	if err != nil {
		return decimal.Zero, err
	}
	return balance.Available(leg)
}

// Consume removes amount from a leg under the member's balance lock
func (s *LegBalanceService) Consume(ctx context.Context, memberID uint, leg models.Leg, amount decimal.Decimal) error {
	return s.ledgerRepo.WithLockedBalance(ctx, memberID, func(_ repository.LedgerTx, balance *models.LegBalance) error {
		return balance.Consume(leg, amount)
	})
}

// GetBalance returns the member's balance snapshot
func (s *LegBalanceService) GetBalance(ctx context.Context, memberID uint) (*models.LegBalance, error) {
	if _, err := s.userRepo.FindByID(ctx, memberID); err != nil {
		return nil, notFound(err)
	}
	return s.ledgerRepo.FindBalance(ctx, memberID)
}

// LegBalanceSummary combines the balance with downline and income figures
type LegBalanceSummary struct {
	models.LegBalanceResponse
	MatchableAmount     string `json:"matchableAmount"`
	LeftMembers         int64  `json:"leftMembers"`
	RightMembers        int64  `json:"rightMembers"`
	MatchingBonusIncome string `json:"matchingBonusIncome"`
	PersonalSaleIncome  string `json:"personalSaleIncome"`
}

// GetSummary returns the balance together with leg member counts and earned income
func (s *LegBalanceService) GetSummary(ctx context.Context, memberID uint) (*LegBalanceSummary, error) {
	balance, err := s.GetBalance(ctx, memberID)
	if err != nil {
		return nil, err
	}

	summary := &LegBalanceSummary{
		LegBalanceResponse: balance.ToResponse(),
		MatchableAmount:    balance.Matchable().StringFixed(2),
	}

	for _, leg := range []models.Leg{models.LegLeft, models.LegRight} {
		count, err := s.legMemberCount(ctx, memberID, leg)
		if err != nil {
			return nil, err
		}
		if leg == models.LegLeft {
			summary.LeftMembers = count
		} else {
			summary.RightMembers = count
		}
	}

	filter := repository.NewIncomeFilter(s.Now())
	filter.UserIDs = []uint{memberID}
	totals, err := s.incomeRepo.Summarize(ctx, filter)
	if err != nil {
		return nil, err
	}
	summary.MatchingBonusIncome = totals.Matching.StringFixed(2)
	summary.PersonalSaleIncome = totals.Personal.StringFixed(2)

	return summary, nil
}

// legMemberCount counts the members under the direct child on leg, the child included
func (s *LegBalanceService) legMemberCount(ctx context.Context, memberID uint, leg models.Leg) (int64, error) {
	child, err := s.userRepo.FindChild(ctx, memberID, leg)
	if err != nil {
		if isNotFound(err) {
			return 0, nil
		}
		return 0, err
	}
	total, _, err := s.userRepo.CountDownline(ctx, child.ID)
	if err != nil {
		return 0, err
	}
	return total + 1, nil
}

// UnmatchedSale is a leg sale that still backs part of the available balance
type UnmatchedSale struct {
	SaleID          uint      `json:"saleId"`
	PlotID          string    `json:"plotId"`
	BuyerID         uint      `json:"buyerId"`
	SaleAmount      string    `json:"saleAmount"`
	UnmatchedAmount string    `json:"unmatchedAmount"`
	SaleDate        time.Time `json:"saleDate"`
}

// UnmatchedLeg is the residual of one leg and the sales it is attributed to
type UnmatchedLeg struct {
	Leg              models.Leg      `json:"leg"`
	AvailableBalance string          `json:"availableBalance"`
	Sales            []UnmatchedSale `json:"sales"`
}

// UnmatchedView lists the unmatched residuals of a member
type UnmatchedView struct {
	MemberID     uint                        `json:"memberId"`
	CarryForward models.CarryForwardSnapshot `json:"carryForward"`
	Legs         []UnmatchedLeg              `json:"legs"`
}

// GetUnmatched returns the unmatched balance of leg ("left", "right" or "both").
// Consumption is first-in first-out, so the residual is attributed to the
// newest sales of the leg.
func (s *LegBalanceService) GetUnmatched(ctx context.Context, memberID uint, leg string) (*UnmatchedView, error) {
	var legs []models.Leg
	switch leg {
	case "", "both":
		legs = []models.Leg{models.LegLeft, models.LegRight}
	case string(models.LegLeft), string(models.LegRight):
		legs = []models.Leg{models.Leg(leg)}
	default:
		return nil, fmt.Errorf("%w: leg must be left, right or both", ErrInvalidLeg)
	}

	balance, err := s.GetBalance(ctx, memberID)
	if err != nil {
		return nil, err
	}

	view := &UnmatchedView{
		MemberID:     memberID,
		CarryForward: carryForwardOf(balance),
		Legs:         make([]UnmatchedLeg, 0, len(legs)),
	}

	for _, l := range legs {
		available, _ := balance.Available(l)
		entry := UnmatchedLeg{
			Leg:              l,
			AvailableBalance: available.StringFixed(2),
			Sales:            []UnmatchedSale{},
		}
		if available.IsPositive() {
			sales, err := s.ledgerRepo.FindLegSales(ctx, memberID, l, unmatchedSalesLimit)
			if err != nil {
				return nil, err
			}
			entry.Sales = attributeResidual(available, sales)
		}
		view.Legs = append(view.Legs, entry)
	}

	return view, nil
}

// attributeResidual walks sales newest first until residual is covered
func attributeResidual(residual decimal.Decimal, sales []models.Sale) []UnmatchedSale {
	out := []UnmatchedSale{}
	remaining := residual
	for _, sale := range sales {
		if !remaining.IsPositive() {
			break
		}
		portion := decimal.Min(sale.SaleAmount, remaining)
		out = append(out, UnmatchedSale{
			SaleID:          sale.ID,
			PlotID:          sale.PlotID,
			BuyerID:         sale.BuyerID,
			SaleAmount:      sale.SaleAmount.StringFixed(2),
			UnmatchedAmount: portion.StringFixed(2),
			SaleDate:        sale.SaleDate,
		})
		remaining = remaining.Sub(portion)
	}
	if remaining.IsPositive() {
		logger.Warn("unmatched residual not fully attributed to sales", "residual", residual.String(), "unattributed", remaining.String())
	}
	return out
}
