package models

import (
	"math"
	"time"

	"github.com/shopspring/decimal"
)

// IncomeType distinguishes the two commission variants
type IncomeType string

const (
	IncomeTypePersonalSale  IncomeType = "personal_sale"
	IncomeTypeMatchingBonus IncomeType = "matching_bonus"
)

// IncomeStatus is the lifecycle state of an income record.
// IncomeStatusEligible is never stored: it is derived from a pending record
// whose eligibility date has passed.
type IncomeStatus string

const (
	IncomeStatusPending  IncomeStatus = "pending"
	IncomeStatusEligible IncomeStatus = "eligible"
	IncomeStatusApproved IncomeStatus = "approved"
	IncomeStatusRejected IncomeStatus = "rejected"
	IncomeStatusCredited IncomeStatus = "credited"
	IncomeStatusPaid     IncomeStatus = "paid"
)

// ParseIncomeStatus validates a status filter or transition target
func ParseIncomeStatus(s string) (IncomeStatus, bool) {
	switch IncomeStatus(s) {
	case IncomeStatusPending, IncomeStatusEligible, IncomeStatusApproved,
		IncomeStatusRejected, IncomeStatusCredited, IncomeStatusPaid:
		return IncomeStatus(s), true
	}
	return "", false
}

// Pairing records what a matching bonus was paired against. Only matching
// bonuses carry one.
type Pairing struct {
	TriggerSaleID        *uint           `gorm:"index" json:"triggerSaleId"`
	TriggerLeg           Leg             `gorm:"size:10" json:"triggerLeg"`
	OppositeLeg          Leg             `gorm:"size:10" json:"oppositeLeg"`
	LeftAvailableBefore  decimal.Decimal `gorm:"type:decimal(18,2);default:0" json:"leftAvailableBefore"`
	RightAvailableBefore decimal.Decimal `gorm:"type:decimal(18,2);default:0" json:"rightAvailableBefore"`
}

// PaymentDetails is stamped when a credited income is paid out
type PaymentDetails struct {
	PaidAmount    decimal.Decimal `gorm:"type:decimal(18,2);default:0" json:"paidAmount"`
	PaidDate      *time.Time      `json:"paidDate"`
	TransactionID *string         `gorm:"size:64" json:"transactionId"`
	PaymentMode   *string         `gorm:"size:32" json:"paymentMode"`
}

// IncomeRecord is one commission entitlement of a member
type IncomeRecord struct {
	ID                      uint            `gorm:"primaryKey" json:"id"`
	GUID                    string          `gorm:"uniqueIndex;size:36;not null" json:"guid"`
	UserID                  uint            `gorm:"not null;index" json:"user_id"`
	SaleID                  *uint           `gorm:"index" json:"sale_id"`
	IncomeType              IncomeType      `gorm:"size:20;not null;index" json:"income_type"`
	SaleAmount              decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"sale_amount"`
	BalancedAmount          decimal.Decimal `gorm:"type:decimal(18,2);not null;default:0" json:"balanced_amount"`
	IncomeAmount            decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"income_amount"`
	CommissionPercentage    decimal.Decimal `gorm:"type:decimal(5,2);not null;default:5" json:"commission_percentage"`
	Status                  IncomeStatus    `gorm:"size:20;not null;default:pending;index" json:"status"`
	SaleDate                time.Time       `gorm:"not null;index" json:"sale_date"`
	EligibleForApprovalDate time.Time       `gorm:"not null;index" json:"eligible_for_approval_date"`
	LegType                 Leg             `gorm:"size:10;not null;index" json:"leg_type"`
	Pairing                 Pairing         `gorm:"embedded;embeddedPrefix:paired_" json:"-"`
	ApprovedBy              *uint           `gorm:"index" json:"approved_by"`
	ApprovedAt              *time.Time      `json:"approved_at"`
	RejectedBy              *uint           `json:"rejected_by"`
	RejectedAt              *time.Time      `json:"rejected_at"`
	RejectionReason         *string         `gorm:"type:text" json:"rejection_reason"`
	CreditedAt              *time.Time      `json:"credited_at"`
	EligibilityNotifiedAt   *time.Time      `gorm:"index" json:"eligibility_notified_at"`
	Payout                  PaymentDetails  `gorm:"embedded;embeddedPrefix:payment_" json:"-"`
	Notes                   *string         `gorm:"type:text" json:"notes"`
	AdminNotes              *string         `gorm:"type:text" json:"admin_notes"`
	CreatedAt               time.Time       `gorm:"index" json:"created_at"`
	UpdatedAt               time.Time       `json:"updated_at"`

	// Associations
	User User `gorm:"foreignKey:UserID" json:"-"`
}

// TableName specifies the table name for IncomeRecord
func (IncomeRecord) TableName() string {
	return "income_records"
}

// EligibilityDate returns the first instant an income from a sale on saleDate
// may be approved. Month arithmetic follows time.AddDate normalisation.
func EligibilityDate(saleDate time.Time, months int) time.Time {
	return saleDate.AddDate(0, months, 0)
}

// NewPersonalSaleIncome builds the pending commission for a self purchase
func NewPersonalSaleIncome(sale *Sale, pct, income decimal.Decimal, eligibilityMonths int) *IncomeRecord {
	return &IncomeRecord{
		UserID:                  sale.BuyerID,
		SaleID:                  &sale.ID,
		IncomeType:              IncomeTypePersonalSale,
		SaleAmount:              sale.SaleAmount,
		IncomeAmount:            income,
		CommissionPercentage:    pct,
		Status:                  IncomeStatusPending,
		SaleDate:                sale.SaleDate,
		EligibleForApprovalDate: EligibilityDate(sale.SaleDate, eligibilityMonths),
		LegType:                 LegPersonal,
	}
}

// NewMatchingBonusIncome builds the pending commission for a matching pass.
// saleAmount is the amount of the sale that triggered the pass, or the matched
// amount when the pass came from a sweep.
func NewMatchingBonusIncome(memberID uint, saleAmount, matched, pct, income decimal.Decimal, saleDate time.Time, leg Leg, pairing Pairing, eligibilityMonths int) *IncomeRecord {
	return &IncomeRecord{
		UserID:                  memberID,
		SaleID:                  pairing.TriggerSaleID,
		IncomeType:              IncomeTypeMatchingBonus,
		SaleAmount:              saleAmount,
		BalancedAmount:          matched,
		IncomeAmount:            income,
		CommissionPercentage:    pct,
		Status:                  IncomeStatusPending,
		SaleDate:                saleDate,
		EligibleForApprovalDate: EligibilityDate(saleDate, eligibilityMonths),
		LegType:                 leg,
		Pairing:                 pairing,
	}
}

// PairedWith returns the pairing of a matching bonus, nil for personal sales
func (r *IncomeRecord) PairedWith() *Pairing {
	if r.IncomeType != IncomeTypeMatchingBonus {
		return nil
	}
	p := r.Pairing
	return &p
}

// PaymentDetails returns the payout details, nil until the record is paid
func (r *IncomeRecord) PaymentDetails() *PaymentDetails {
	if r.Status != IncomeStatusPaid {
		return nil
	}
	p := r.Payout
	return &p
}

// IsEligible reports whether the approval lock has expired at now
func (r *IncomeRecord) IsEligible(now time.Time) bool {
	return !now.Before(r.EligibleForApprovalDate)
}

// EffectiveStatus projects the stored status onto the client-facing one
func (r *IncomeRecord) EffectiveStatus(now time.Time) IncomeStatus {
	if r.Status == IncomeStatusPending && r.IsEligible(now) {
		return IncomeStatusEligible
	}
	return r.Status
}

// IsDecided returns true once an admin approved or rejected the record
func (r *IncomeRecord) IsDecided() bool {
	switch r.Status {
	case IncomeStatusApproved, IncomeStatusRejected, IncomeStatusCredited, IncomeStatusPaid:
		return true
	}
	return false
}

// MayApprove returns true if the record can be approved at now
func (r *IncomeRecord) MayApprove(now time.Time) bool {
	return r.Status == IncomeStatusPending && r.IsEligible(now)
}

// MayReject returns true if the record can be rejected at now
func (r *IncomeRecord) MayReject(now time.Time) bool {
	return r.Status == IncomeStatusPending && r.IsEligible(now)
}

// MayCredit returns true if the record can be credited
func (r *IncomeRecord) MayCredit() bool {
	return r.Status == IncomeStatusApproved
}

// MayPay returns true if the record can be marked paid
func (r *IncomeRecord) MayPay() bool {
	return r.Status == IncomeStatusCredited
}

// DaysUntilEligible returns the whole days left on the approval lock
func (r *IncomeRecord) DaysUntilEligible(now time.Time) int {
	if r.IsEligible(now) {
		return 0
	}
	return int(math.Ceil(r.EligibleForApprovalDate.Sub(now).Hours() / 24))
}

// IncomeRecordResponse is the JSON response format for income records
type IncomeRecordResponse struct {
	ID                      uint            `json:"recordId"`
	GUID                    string          `json:"guid"`
	UserID                  uint            `json:"userId"`
	UserName                string          `json:"userName,omitempty"`
	UserEmail               string          `json:"userEmail,omitempty"`
	SaleID                  *uint           `json:"saleId"`
	IncomeType              IncomeType      `json:"incomeType"`
	SaleAmount              string          `json:"saleAmount"`
	BalancedAmount          *string         `json:"balancedAmount,omitempty"`
	IncomeAmount            string          `json:"incomeAmount"`
	CommissionPercentage    string          `json:"commissionPercentage"`
	Status                  IncomeStatus    `json:"status"`
	IsEligibleForApproval   bool            `json:"isEligibleForApproval"`
	DaysUntilEligible       int             `json:"daysUntilEligible"`
	SaleDate                time.Time       `json:"saleDate"`
	EligibleForApprovalDate time.Time       `json:"eligibleForApprovalDate"`
	LegType                 Leg             `json:"legType"`
	PairedWith              *Pairing        `json:"pairedWith,omitempty"`
	ApprovedBy              *uint           `json:"approvedBy"`
	ApprovedAt              *time.Time      `json:"approvedAt"`
	RejectedBy              *uint           `json:"rejectedBy,omitempty"`
	RejectedAt              *time.Time      `json:"rejectedAt,omitempty"`
	RejectionReason         *string         `json:"rejectionReason,omitempty"`
	CreditedAt              *time.Time      `json:"creditedAt,omitempty"`
	PaymentDetails          *PaymentDetails `json:"paymentDetails,omitempty"`
	Notes                   *string         `json:"notes"`
	AdminNotes              *string         `json:"adminNotes"`
	CreatedAt               time.Time       `json:"createdAt"`
	UpdatedAt               time.Time       `json:"updatedAt"`
}

// ToResponse converts IncomeRecord to IncomeRecordResponse, projecting the status at now
func (r *IncomeRecord) ToResponse(now time.Time) IncomeRecordResponse {
	resp := IncomeRecordResponse{
		ID:                      r.ID,
		GUID:                    r.GUID,
		UserID:                  r.UserID,
		SaleID:                  r.SaleID,
		IncomeType:              r.IncomeType,
		SaleAmount:              r.SaleAmount.StringFixed(2),
		IncomeAmount:            r.IncomeAmount.StringFixed(2),
		CommissionPercentage:    r.CommissionPercentage.String(),
		Status:                  r.EffectiveStatus(now),
		IsEligibleForApproval:   r.MayApprove(now),
		DaysUntilEligible:       r.DaysUntilEligible(now),
		SaleDate:                r.SaleDate,
		EligibleForApprovalDate: r.EligibleForApprovalDate,
		LegType:                 r.LegType,
		PairedWith:              r.PairedWith(),
		ApprovedBy:              r.ApprovedBy,
		ApprovedAt:              r.ApprovedAt,
		RejectedBy:              r.RejectedBy,
		RejectedAt:              r.RejectedAt,
		RejectionReason:         r.RejectionReason,
		CreditedAt:              r.CreditedAt,
		PaymentDetails:          r.PaymentDetails(),
		Notes:                   r.Notes,
		AdminNotes:              r.AdminNotes,
		CreatedAt:               r.CreatedAt,
		UpdatedAt:               r.UpdatedAt,
	}

	if r.IncomeType == IncomeTypeMatchingBonus {
		balanced := r.BalancedAmount.StringFixed(2)
		resp.BalancedAmount = &balanced
	}

	if r.User.ID != 0 {
		resp.UserName = r.User.FullName
		resp.UserEmail = r.User.Email
	}

	return resp
}

// IncomeSummary aggregates a filtered set of income records
type IncomeSummary struct {
	TotalRecords   int64  `json:"totalRecords"`
	TotalIncome    string `json:"totalIncome"`
	PendingIncome  string `json:"pendingIncome"`
	EligibleIncome string `json:"eligibleIncome"`
	ApprovedIncome string `json:"approvedIncome"`
	CreditedIncome string `json:"creditedIncome"`
	PaidIncome     string `json:"paidIncome"`
	RejectedIncome string `json:"rejectedIncome"`
	PersonalIncome string `json:"personalSaleIncome"`
	MatchingIncome string `json:"matchingBonusIncome"`
}

// TeamSummary extends the income summary with downline figures
type TeamSummary struct {
	IncomeSummary
	TotalTeamMembers int64  `json:"totalTeamMembers"`
	ActiveMembers    int64  `json:"activeMembers"`
	TotalTeamIncome  string `json:"totalTeamIncome"`
}

// StatBucket is a count and an amount
type StatBucket struct {
	Count  int64  `json:"count"`
	Amount string `json:"amount"`
}

// IncomeStats is the admin dashboard aggregate
type IncomeStats struct {
	EligibleForApproval StatBucket            `json:"eligibleForApproval"`
	CurrentMonth        StatBucket            `json:"currentMonth"`
	Overall             StatBucket            `json:"overall"`
	ByStatus            map[string]StatBucket `json:"byStatus"`
	UniqueUsers         int64                 `json:"uniqueUsers"`
	GeneratedAt         time.Time             `json:"generatedAt"`
}
