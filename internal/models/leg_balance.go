package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// LegBalance is the per-member aggregate of left and right leg sales.
// Available holds the unconsumed part of each leg; the carry-forward is the
// available residual of the stronger leg, not a separate pool.
type LegBalance struct {
	ID                 uint            `gorm:"primaryKey" json:"id"`
	MemberID           uint            `gorm:"uniqueIndex;not null" json:"member_id"`
	LeftTotalSales     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"left_total_sales"`
	LeftAvailable      decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"left_available"`
	RightTotalSales    decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"right_total_sales"`
	RightAvailable     decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"right_available"`
	CarryForwardLeg    Leg             `gorm:"size:10;not null;default:none" json:"carry_forward_leg"`
	CarryForwardAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"carry_forward_amount"`
	TotalMatchedAmount decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"total_matched_amount"`
	MatchingCount      int             `gorm:"not null;default:0" json:"matching_count"`
	LastMatchedAt      *time.Time      `json:"last_matched_at"`
	CreatedAt          time.Time       `json:"created_at"`
	UpdatedAt          time.Time       `json:"updated_at"`
}

// TableName specifies the table name for LegBalance
func (LegBalance) TableName() string {
	return "leg_balances"
}

// NewLegBalance returns the zeroed balance a member starts with
func NewLegBalance(memberID uint) *LegBalance {
	return &LegBalance{
		MemberID:        memberID,
		CarryForwardLeg: LegNone,
	}
}

// Available returns the unconsumed balance of a leg
func (b *LegBalance) Available(leg Leg) (decimal.Decimal, error) {
	switch leg {
	case LegLeft:
		return b.LeftAvailable, nil
	case LegRight:
		return b.RightAvailable, nil
	}
	return decimal.Zero, ErrInvalidLeg
}

// TotalSales returns the cumulative sales of a leg
func (b *LegBalance) TotalSales(leg Leg) (decimal.Decimal, error) {
	switch leg {
	case LegLeft:
		return b.LeftTotalSales, nil
	case LegRight:
		return b.RightTotalSales, nil
	}
	return decimal.Zero, ErrInvalidLeg
}

// Credit adds a sale amount to both the total and the available balance of a leg
func (b *LegBalance) Credit(leg Leg, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	switch leg {
	case LegLeft:
		b.LeftTotalSales = b.LeftTotalSales.Add(amount)
		b.LeftAvailable = b.LeftAvailable.Add(amount)
	case LegRight:
		b.RightTotalSales = b.RightTotalSales.Add(amount)
		b.RightAvailable = b.RightAvailable.Add(amount)
	default:
		return ErrInvalidLeg
	}
	b.RefreshCarryForward()
	return nil
}

// Consume removes amount from a leg's available balance. Totals are never reduced.
func (b *LegBalance) Consume(leg Leg, amount decimal.Decimal) error {
	if amount.IsNegative() {
		return ErrInvalidAmount
	}
	available, err := b.Available(leg)
	if err != nil {
		return err
	}
	if amount.GreaterThan(available) {
		return fmt.Errorf("%w: %s leg has %s, requested %s", ErrInsufficientBalance, leg, available.StringFixed(2), amount.StringFixed(2))
	}
	if leg == LegLeft {
		b.LeftAvailable = available.Sub(amount)
	} else {
		b.RightAvailable = available.Sub(amount)
	}
	b.RefreshCarryForward()
	return nil
}

// RefreshCarryForward tags the carry-forward with the stronger leg and its excess
func (b *LegBalance) RefreshCarryForward() {
	switch b.LeftAvailable.Cmp(b.RightAvailable) {
	case 1:
		b.CarryForwardLeg = LegLeft
		b.CarryForwardAmount = b.LeftAvailable.Sub(b.RightAvailable)
	case -1:
		b.CarryForwardLeg = LegRight
		b.CarryForwardAmount = b.RightAvailable.Sub(b.LeftAvailable)
	default:
		b.CarryForwardLeg = LegNone
		b.CarryForwardAmount = decimal.Zero
	}
}

// Matchable returns the amount a matching pass would pair right now
func (b *LegBalance) Matchable() decimal.Decimal {
	return decimal.Min(b.LeftAvailable, b.RightAvailable)
}

// CheckInvariants verifies that no leg is negative or exceeds its totals
func (b *LegBalance) CheckInvariants() error {
	if b.LeftAvailable.IsNegative() || b.RightAvailable.IsNegative() {
		return fmt.Errorf("member %d: negative available balance", b.MemberID)
	}
	if b.LeftAvailable.GreaterThan(b.LeftTotalSales) {
		return fmt.Errorf("member %d: left available %s exceeds total %s", b.MemberID, b.LeftAvailable, b.LeftTotalSales)
	}
	if b.RightAvailable.GreaterThan(b.RightTotalSales) {
		return fmt.Errorf("member %d: right available %s exceeds total %s", b.MemberID, b.RightAvailable, b.RightTotalSales)
	}
	return nil
}

// LegSnapshot is the JSON view of one leg
type LegSnapshot struct {
	TotalSales       string `json:"totalSales"`
	AvailableBalance string `json:"availableBalance"`
	MatchedAmount    string `json:"matchedAmount"`
}

// CarryForwardSnapshot is the JSON view of the carry-forward
type CarryForwardSnapshot struct {
	Leg    Leg    `json:"leg"`
	Amount string `json:"amount"`
}

// LegBalanceResponse is the JSON response format for a member's leg balance
type LegBalanceResponse struct {
	MemberID           uint                 `json:"memberId"`
	LeftLeg            LegSnapshot          `json:"leftLeg"`
	RightLeg           LegSnapshot          `json:"rightLeg"`
	CarryForward       CarryForwardSnapshot `json:"carryForward"`
	TotalMatchedAmount string               `json:"totalMatchedAmount"`
	MatchingCount      int                  `json:"matchingCount"`
	LastMatchedAt      *time.Time           `json:"lastMatchedAt"`
	UpdatedAt          time.Time            `json:"updatedAt"`
}

// ToResponse converts LegBalance to LegBalanceResponse
func (b *LegBalance) ToResponse() LegBalanceResponse {
	return LegBalanceResponse{
		MemberID: b.MemberID,
		LeftLeg: LegSnapshot{
			TotalSales:       b.LeftTotalSales.StringFixed(2),
			AvailableBalance: b.LeftAvailable.StringFixed(2),
			MatchedAmount:    b.LeftTotalSales.Sub(b.LeftAvailable).StringFixed(2),
		},
		RightLeg: LegSnapshot{
			TotalSales:       b.RightTotalSales.StringFixed(2),
			AvailableBalance: b.RightAvailable.StringFixed(2),
			MatchedAmount:    b.RightTotalSales.Sub(b.RightAvailable).StringFixed(2),
		},
		CarryForward: CarryForwardSnapshot{
			Leg:    b.CarryForwardLeg,
			Amount: b.CarryForwardAmount.StringFixed(2),
		},
		TotalMatchedAmount: b.TotalMatchedAmount.StringFixed(2),
		MatchingCount:      b.MatchingCount,
		LastMatchedAt:      b.LastMatchedAt,
		UpdatedAt:          b.UpdatedAt,
	}
}
