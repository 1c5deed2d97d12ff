package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/internal/repository"
	"github.com/sjperalta/fintera-matching-api/internal/statemachine"
	"github.com/sjperalta/fintera-matching-api/pkg/logger"
)

// MaxBulkApprove bounds the number of records per bulk approval
const MaxBulkApprove = 200

// PaymentInput carries the payout of a credited income
type PaymentInput struct {
	PaidAmount    decimal.Decimal
	PaidDate      *time.Time
	TransactionID string
	PaymentMode   string
}

// BulkApproveItem is the outcome for one record of a bulk approval
type BulkApproveItem struct {
	RecordID uint                `json:"recordId"`
	Success  bool                `json:"success"`
	Status   models.IncomeStatus `json:"status,omitempty"`
	Error    string              `json:"error,omitempty"`
	err      error
}

// Err returns the error that failed the item
func (i BulkApproveItem) Err() error {
	return i.err
}

// BulkApproveResult aggregates a bulk approval
type BulkApproveResult struct {
	Approved int               `json:"approved"`
	Failed   int               `json:"failed"`
	Results  []BulkApproveItem `json:"results"`
}

// IncomeService drives income records through their lifecycle and serves income queries
type IncomeService struct {
	incomeRepo      repository.IncomeRepository
	userRepo        repository.UserRepository
	notificationSvc *NotificationService
	emailSvc        *EmailService
	auditSvc        *AuditService
	statsCache      *StatsCache
	dispatcher      Dispatcher
	Now             func() time.Time
}

func NewIncomeService(
	incomeRepo repository.IncomeRepository,
	userRepo repository.UserRepository,
	notificationSvc *NotificationService,
	emailSvc *EmailService,
	auditSvc *AuditService,
	statsCache *StatsCache,
	dispatcher Dispatcher,
) *IncomeService {
	return &IncomeService{
		incomeRepo:      incomeRepo,
		userRepo:        userRepo,
		notificationSvc: notificationSvc,
		emailSvc:        emailSvc,
		auditSvc:        auditSvc,
		statsCache:      statsCache,
		dispatcher:      dispatcher,
		Now:             time.Now,
	}
}

// FindByID returns one income record
func (s *IncomeService) FindByID(ctx context.Context, id uint) (*models.IncomeRecord, error) {
	record, err := s.incomeRepo.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return record, nil
}

// transition locks the record, applies fn and runs the post-commit side effects
func (s *IncomeService) transition(ctx context.Context, id uint, actor Actor, action string, fn func(record *models.IncomeRecord, now time.Time) error) (*models.IncomeRecord, error) {
	var updated *models.IncomeRecord
	err := s.incomeRepo.WithLockedRecord(ctx, id, func(record *models.IncomeRecord) error {
		if err := fn(record, s.Now()); err != nil {
			return err
		}
		updated = record
		return nil
	})
	if err != nil {
		return nil, notFound(err)
	}

	logger.Info("income record transitioned", "record_id", updated.ID, "status", updated.Status, "actor_id", actor.ID)
	s.afterTransition(ctx, actor, action, updated)
	return updated, nil
}

// Approve moves an eligible record to approved
func (s *IncomeService) Approve(ctx context.Context, id uint, actor Actor, notes string) (*models.IncomeRecord, error) {
	return s.transition(ctx, id, actor, models.AuditActionApprove, func(record *models.IncomeRecord, now time.Time) error {
		if record.IsDecided() {
			return ErrAlreadyDecided
		}
		if !record.IsEligible(now) {
			return fmt.Errorf("%w: eligible on %s", ErrNotEligible, record.EligibleForApprovalDate.Format("2006-01-02"))
		}
		if err := statemachine.NewIncomeFSM(record).Approve(ctx, now); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		record.ApprovedBy = &actor.ID
		record.ApprovedAt = &now
		if notes = strings.TrimSpace(notes); notes != "" {
			record.AdminNotes = &notes
		}
		return nil
	})
}

// Reject moves an eligible record to the terminal rejected state
func (s *IncomeService) Reject(ctx context.Context, id uint, actor Actor, reason string) (*models.IncomeRecord, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, ErrMissingReason
	}
	return s.transition(ctx, id, actor, models.AuditActionReject, func(record *models.IncomeRecord, now time.Time) error {
		if record.IsDecided() {
			return ErrAlreadyDecided
		}
		if !record.IsEligible(now) {
			return fmt.Errorf("%w: eligible on %s", ErrNotEligible, record.EligibleForApprovalDate.Format("2006-01-02"))
		}
		if err := statemachine.NewIncomeFSM(record).Reject(ctx, now); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
		}
		record.RejectedBy = &actor.ID
		record.RejectedAt = &now
		record.RejectionReason = &reason
		return nil
	})
}

// UpdateStatus credits an approved record or pays a credited one
func (s *IncomeService) UpdateStatus(ctx context.Context, id uint, actor Actor, status models.IncomeStatus, payment *PaymentInput) (*models.IncomeRecord, error) {
	switch status {
	case models.IncomeStatusCredited:
		return s.transition(ctx, id, actor, models.AuditActionCredit, func(record *models.IncomeRecord, now time.Time) error {
			if err := statemachine.NewIncomeFSM(record).Credit(ctx); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
			}
			record.CreditedAt = &now
			return nil
		})
	case models.IncomeStatusPaid:
		if payment == nil || !payment.PaidAmount.IsPositive() {
			return nil, ErrInvalidPayment
		}
		return s.transition(ctx, id, actor, models.AuditActionPay, func(record *models.IncomeRecord, now time.Time) error {
			if err := statemachine.NewIncomeFSM(record).Pay(ctx); err != nil {
				return fmt.Errorf("%w: %v", ErrInvalidTransition, err)
			}
			record.Payout = buildPayout(payment, now)
			return nil
		})
	default:
		return nil, fmt.Errorf("%w: cannot set status %q", ErrInvalidTransition, status)
	}
}

func buildPayout(payment *PaymentInput, now time.Time) models.PaymentDetails {
	paidDate := now
	if payment.PaidDate != nil && !payment.PaidDate.IsZero() {
		paidDate = *payment.PaidDate
	}
	txID := strings.TrimSpace(payment.TransactionID)
	if txID == "" {
		txID = uuid.New().String()
	}
	details := models.PaymentDetails{
		PaidAmount:    payment.PaidAmount.Round(2),
		PaidDate:      &paidDate,
		TransactionID: &txID,
	}
	if mode := strings.TrimSpace(payment.PaymentMode); mode != "" {
		details.PaymentMode = &mode
	}
	return details
}

// BulkApprove approves each record in its own transaction. Business failures
// are reported per record and never abort the batch.
func (s *IncomeService) BulkApprove(ctx context.Context, ids []uint, actor Actor, notes string) (*BulkApproveResult, error) {
	if len(ids) == 0 {
		return nil, fmt.Errorf("%w: recordIds is empty", ErrInvalidInput)
	}
	if len(ids) > MaxBulkApprove {
		return nil, fmt.Errorf("%w: at most %d records per request", ErrInvalidInput, MaxBulkApprove)
	}

	result := &BulkApproveResult{Results: make([]BulkApproveItem, 0, len(ids))}
	seen := make(map[uint]bool, len(ids))
	for _, id := range ids {
		item := BulkApproveItem{RecordID: id}
		if seen[id] {
			item.err = fmt.Errorf("%w: duplicate record id in request", ErrInvalidInput)
		} else {
			seen[id] = true
			record, err := s.Approve(ctx, id, actor, notes)
			if err != nil {
				item.err = err
			} else {
				item.Success = true
				item.Status = record.Status
			}
		}

		if item.Success {
			result.Approved++
		} else {
			result.Failed++
			item.Error = item.err.Error()
		}
		result.Results = append(result.Results, item)
	}

	logger.Info("bulk approve finished", "actor_id", actor.ID, "approved", result.Approved, "failed", result.Failed)
	return result, nil
}

func (s *IncomeService) afterTransition(ctx context.Context, actor Actor, action string, record *models.IncomeRecord) {
	details := fmt.Sprintf("Income %d (%s, %s) now %s", record.ID, record.IncomeType, record.IncomeAmount.StringFixed(2), record.Status)
	switch record.Status {
	case models.IncomeStatusRejected:
		details += ". Reason: " + getStringValue(record.RejectionReason)
	case models.IncomeStatusPaid:
		details += fmt.Sprintf(". Paid %s, transaction %s", record.Payout.PaidAmount.StringFixed(2), getStringValue(record.Payout.TransactionID))
	}
	s.auditSvc.Record(ctx, actor, action, models.AuditEntityIncome, record.ID, details)
	s.statsCache.Invalidate(ctx)

	snapshot := *record
	s.dispatcher.EnqueueAsync(func(ctx context.Context) error {
		title, notifType := statusNotification(snapshot.Status)
		message := fmt.Sprintf("Your %s income #%d of %s is now %s.",
			incomeTypeLabel(snapshot.IncomeType), snapshot.ID, snapshot.IncomeAmount.StringFixed(2), snapshot.Status)
		if err := s.notificationSvc.NotifyUser(ctx, snapshot.UserID, title, message, notifType); err != nil {
			return err
		}

		user, err := s.userRepo.FindByID(ctx, snapshot.UserID)
		if err != nil {
			return err
		}
		return s.emailSvc.SendIncomeStatusChanged(ctx, user, &snapshot)
	})
}

func statusNotification(status models.IncomeStatus) (string, string) {
	switch status {
	case models.IncomeStatusApproved:
		return "Income approved", models.NotificationTypeIncomeApproved
	case models.IncomeStatusRejected:
		return "Income rejected", models.NotificationTypeIncomeRejected
	case models.IncomeStatusCredited:
		return "Income credited", models.NotificationTypeIncomeCredited
	case models.IncomeStatusPaid:
		return "Income paid", models.NotificationTypeIncomePaid
	}
	return "Income updated", models.NotificationTypeIncomeCreated
}

// ListForUser returns the filtered records of one beneficiary and their summary
func (s *IncomeService) ListForUser(ctx context.Context, userID uint, filter *repository.IncomeFilter) ([]models.IncomeRecord, int64, *models.IncomeSummary, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, 0, nil, notFound(err)
	}
	filter.UserIDs = []uint{userID}
	return s.list(ctx, filter)
}

// ListAll returns records across all members
func (s *IncomeService) ListAll(ctx context.Context, filter *repository.IncomeFilter) ([]models.IncomeRecord, int64, *models.IncomeSummary, error) {
	return s.list(ctx, filter)
}

func (s *IncomeService) list(ctx context.Context, filter *repository.IncomeFilter) ([]models.IncomeRecord, int64, *models.IncomeSummary, error) {
	if filter.Now.IsZero() {
		filter.Now = s.Now()
	}
	records, total, err := s.incomeRepo.List(ctx, filter)
	if err != nil {
		return nil, 0, nil, err
	}
	totals, err := s.incomeRepo.Summarize(ctx, filter)
	if err != nil {
		return nil, 0, nil, err
	}
	summary := summaryOf(totals)
	return records, total, &summary, nil
}

// ListForTeam returns records earned by userID's downline. memberID narrows
// the listing to one downline member.
func (s *IncomeService) ListForTeam(ctx context.Context, userID uint, memberID *uint, filter *repository.IncomeFilter) ([]models.IncomeRecord, int64, *models.TeamSummary, error) {
	if _, err := s.userRepo.FindByID(ctx, userID); err != nil {
		return nil, 0, nil, notFound(err)
	}
	if filter.Now.IsZero() {
		filter.Now = s.Now()
	}

	downline, err := s.userRepo.DownlineIDs(ctx, userID)
	if err != nil {
		return nil, 0, nil, err
	}
	totalMembers, activeMembers, err := s.userRepo.CountDownline(ctx, userID)
	if err != nil {
		return nil, 0, nil, err
	}

	team := &models.TeamSummary{
		TotalTeamMembers: totalMembers,
		ActiveMembers:    activeMembers,
	}

	// Team income covers the whole downline regardless of the member filter
	teamFilter := repository.NewIncomeFilter(filter.Now)
	teamFilter.UserIDs = downline

	if memberID != nil {
		if !containsID(downline, *memberID) {
			return nil, 0, nil, ErrNotInDownline
		}
		filter.UserIDs = []uint{*memberID}
	} else {
		filter.UserIDs = downline
	}

	if len(downline) == 0 {
		team.IncomeSummary = summaryOf(&repository.IncomeTotals{})
		team.TotalTeamIncome = decimal.Zero.StringFixed(2)
		return []models.IncomeRecord{}, 0, team, nil
	}

	records, total, summary, err := s.list(ctx, filter)
	if err != nil {
		return nil, 0, nil, err
	}
	team.IncomeSummary = *summary

	teamTotals, err := s.incomeRepo.Summarize(ctx, teamFilter)
	if err != nil {
		return nil, 0, nil, err
	}
	team.TotalTeamIncome = teamTotals.Total.StringFixed(2)

	return records, total, team, nil
}

func containsID(ids []uint, id uint) bool {
	for _, v := range ids {
		if v == id {
			return true
		}
	}
	return false
}

func summaryOf(t *repository.IncomeTotals) models.IncomeSummary {
	return models.IncomeSummary{
		TotalRecords:   t.TotalRecords,
		TotalIncome:    t.Total.StringFixed(2),
		PendingIncome:  t.Pending.StringFixed(2),
		EligibleIncome: t.Eligible.StringFixed(2),
		ApprovedIncome: t.Approved.StringFixed(2),
		CreditedIncome: t.Credited.StringFixed(2),
		PaidIncome:     t.Paid.StringFixed(2),
		RejectedIncome: t.Rejected.StringFixed(2),
		PersonalIncome: t.Personal.StringFixed(2),
		MatchingIncome: t.Matching.StringFixed(2),
	}
}

// Stats returns the admin dashboard aggregate, served from cache when fresh
func (s *IncomeService) Stats(ctx context.Context) (*models.IncomeStats, error) {
	if cached, ok := s.statsCache.Get(ctx); ok {
		return cached, nil
	}
	return s.RefreshStats(ctx)
}

// RefreshStats recomputes the admin aggregate and stores it in the cache
func (s *IncomeService) RefreshStats(ctx context.Context) (*models.IncomeStats, error) {
	now := s.Now()
	monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, now.Location())

	totals, err := s.incomeRepo.Stats(ctx, now, monthStart)
	if err != nil {
		return nil, err
	}

	stats := &models.IncomeStats{
		EligibleForApproval: models.StatBucket{Count: totals.EligibleCount, Amount: totals.EligibleAmount.StringFixed(2)},
		CurrentMonth:        models.StatBucket{Count: totals.MonthCount, Amount: totals.MonthAmount.StringFixed(2)},
		Overall:             models.StatBucket{Count: totals.OverallCount, Amount: totals.OverallAmount.StringFixed(2)},
		ByStatus:            make(map[string]models.StatBucket, len(totals.ByStatus)),
		UniqueUsers:         totals.UniqueUsers,
		GeneratedAt:         now,
	}
	for _, st := range totals.ByStatus {
		stats.ByStatus[string(st.Status)] = models.StatBucket{Count: st.Count, Amount: st.Amount.StringFixed(2)}
	}

	s.statsCache.Set(ctx, stats)
	return stats, nil
}

// eligibilityNotifyBatch caps the records announced per run; the rest wait
// for the next run
const eligibilityNotifyBatch = 1000

// NotifyNewlyEligible tells beneficiaries and admins about pending records
// whose approval lock has expired and that were never announced, however long
// ago the lock expired. Announced records are stamped so each is announced
// once. It returns the record count.
func (s *IncomeService) NotifyNewlyEligible(ctx context.Context) (int, error) {
	now := s.Now()
	records, err := s.incomeRepo.FindUnannouncedEligible(ctx, now, eligibilityNotifyBatch)
	if err != nil {
		return 0, err
	}
	if len(records) == 0 {
		return 0, nil
	}

	byUser := make(map[uint][]models.IncomeRecord)
	for _, r := range records {
		byUser[r.UserID] = append(byUser[r.UserID], r)
	}

	var errs []error
	announced := make([]uint, 0, len(records))
	for userID, list := range byUser {
		message := fmt.Sprintf("%d income record(s) are now eligible for approval.", len(list))
		if err := s.notificationSvc.NotifyUser(ctx, userID, "Income eligible for approval", message, models.NotificationTypeIncomeEligible); err != nil {
			errs = append(errs, err)
			continue
		}
		for _, r := range list {
			announced = append(announced, r.ID)
		}
		user, err := s.userRepo.FindByID(ctx, userID)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if err := s.emailSvc.SendIncomeEligible(ctx, user, list); err != nil {
			logger.Warn("eligibility email not sent", "user_id", userID, "error", err)
		}
	}

	if err := s.notificationSvc.NotifyAdmins(ctx, "Income awaiting approval",
		fmt.Sprintf("%d income record(s) became eligible for approval.", len(records)),
		models.NotificationTypeIncomeEligible); err != nil {
		errs = append(errs, err)
	}
	if err := s.incomeRepo.MarkEligibilityNotified(ctx, announced, now); err != nil {
		errs = append(errs, fmt.Errorf("mark eligibility notified: %w", err))
	}
	s.statsCache.Invalidate(ctx)

	logger.Info("eligibility notifications sent", "records", len(records), "announced", len(announced), "members", len(byUser))
	return len(records), errors.Join(errs...)
}
