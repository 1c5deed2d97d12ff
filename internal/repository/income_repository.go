package repository

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// IncomeTotals are the summed amounts of a filtered set of income records.
// Total excludes rejected records.
type IncomeTotals struct {
	TotalRecords int64
	Total        decimal.Decimal
	Pending      decimal.Decimal
	Eligible     decimal.Decimal
	Approved     decimal.Decimal
	Credited     decimal.Decimal
	Paid         decimal.Decimal
	Rejected     decimal.Decimal
	Personal     decimal.Decimal
	Matching     decimal.Decimal
}

// StatusTotal is the count and amount of records in one effective status
type StatusTotal struct {
	Status models.IncomeStatus
	Count  int64
	Amount decimal.Decimal
}

// IncomeStatsTotals backs the admin dashboard
type IncomeStatsTotals struct {
	EligibleCount  int64
	EligibleAmount decimal.Decimal
	MonthCount     int64
	MonthAmount    decimal.Decimal
	OverallCount   int64
	OverallAmount  decimal.Decimal
	UniqueUsers    int64
	ByStatus       []StatusTotal
}

// IncomeRepository defines the interface for income record data access
type IncomeRepository interface {
	FindByID(ctx context.Context, id uint) (*models.IncomeRecord, error)
	List(ctx context.Context, filter *IncomeFilter) ([]models.IncomeRecord, int64, error)
	ListAll(ctx context.Context, filter *IncomeFilter, limit int) ([]models.IncomeRecord, error)
	Summarize(ctx context.Context, filter *IncomeFilter) (*IncomeTotals, error)
	Stats(ctx context.Context, now, monthStart time.Time) (*IncomeStatsTotals, error)
	WithLockedRecord(ctx context.Context, id uint, fn func(record *models.IncomeRecord) error) error
	FindUnannouncedEligible(ctx context.Context, now time.Time, limit int) ([]models.IncomeRecord, error)
	MarkEligibilityNotified(ctx context.Context, ids []uint, at time.Time) error
}

type incomeRepository struct {
	db *gorm.DB
}

// NewIncomeRepository creates a new income record repository
func NewIncomeRepository(db *gorm.DB) IncomeRepository {
	return &incomeRepository{db: db}
}

func (r *incomeRepository) FindByID(ctx context.Context, id uint) (*models.IncomeRecord, error) {
	var record models.IncomeRecord
	err := r.db.WithContext(ctx).Preload("User").First(&record, id).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// apply narrows db by every set field of filter. The eligible status is
// evaluated against filter.Now.
func (r *incomeRepository) apply(db *gorm.DB, f *IncomeFilter) *gorm.DB {
	if len(f.UserIDs) > 0 {
		db = db.Where("income_records.user_id IN ?", f.UserIDs)
	}
	if f.IncomeType != "" {
		db = db.Where("income_records.income_type = ?", f.IncomeType)
	}
	if f.LegType != "" {
		db = db.Where("income_records.leg_type = ?", f.LegType)
	}
	switch f.Status {
	case "":
	case models.IncomeStatusEligible:
		db = db.Where("income_records.status = ? AND income_records.eligible_for_approval_date <= ?", models.IncomeStatusPending, f.Now)
	case models.IncomeStatusPending:
		db = db.Where("income_records.status = ? AND income_records.eligible_for_approval_date > ?", models.IncomeStatusPending, f.Now)
	default:
		db = db.Where("income_records.status = ?", f.Status)
	}
	if f.EligibleOnly {
		db = db.Where("income_records.status = ? AND income_records.eligible_for_approval_date <= ?", models.IncomeStatusPending, f.Now)
	}
	if f.StartDate != nil {
		db = db.Where("income_records.sale_date >= ?", *f.StartDate)
	}
	if f.EndDate != nil {
		db = db.Where("income_records.sale_date <= ?", *f.EndDate)
	}
	if f.Search != "" {
		search := "%" + f.Search + "%"
		db = db.Joins("JOIN users ON users.id = income_records.user_id").
			Where("users.full_name ILIKE ? OR users.email ILIKE ? OR income_records.guid ILIKE ?", search, search, search)
	}
	return db
}

func (r *incomeRepository) List(ctx context.Context, filter *IncomeFilter) ([]models.IncomeRecord, int64, error) {
	var records []models.IncomeRecord
	var total int64

	db := r.apply(r.db.WithContext(ctx).Model(&models.IncomeRecord{}), filter)

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	db = db.Order("income_records." + filter.OrderClause())
	if filter.PerPage > 0 {
		db = db.Offset(filter.Offset()).Limit(filter.PerPage)
	}

	err := db.Preload("User").Find(&records).Error
	return records, total, err
}

// ListAll returns up to limit filtered records without paging, for exports
func (r *incomeRepository) ListAll(ctx context.Context, filter *IncomeFilter, limit int) ([]models.IncomeRecord, error) {
	var records []models.IncomeRecord
	db := r.apply(r.db.WithContext(ctx).Model(&models.IncomeRecord{}), filter).
		Order("income_records." + filter.OrderClause())
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Preload("User").Find(&records).Error
	return records, err
}

func (r *incomeRepository) Summarize(ctx context.Context, filter *IncomeFilter) (*IncomeTotals, error) {
	var totals IncomeTotals
	pending := models.IncomeStatusPending
	err := r.apply(r.db.WithContext(ctx).Model(&models.IncomeRecord{}), filter).
		Select(`COUNT(*) AS total_records,
			COALESCE(SUM(CASE WHEN income_records.status <> ? THEN income_records.income_amount ELSE 0 END), 0) AS total,
			COALESCE(SUM(CASE WHEN income_records.status = ? AND income_records.eligible_for_approval_date > ? THEN income_records.income_amount ELSE 0 END), 0) AS pending,
			COALESCE(SUM(CASE WHEN income_records.status = ? AND income_records.eligible_for_approval_date <= ? THEN income_records.income_amount ELSE 0 END), 0) AS eligible,
			COALESCE(SUM(CASE WHEN income_records.status = ? THEN income_records.income_amount ELSE 0 END), 0) AS approved,
			COALESCE(SUM(CASE WHEN income_records.status = ? THEN income_records.income_amount ELSE 0 END), 0) AS credited,
			COALESCE(SUM(CASE WHEN income_records.status = ? THEN income_records.income_amount ELSE 0 END), 0) AS paid,
			COALESCE(SUM(CASE WHEN income_records.status = ? THEN income_records.income_amount ELSE 0 END), 0) AS rejected,
			COALESCE(SUM(CASE WHEN income_records.income_type = ? AND income_records.status <> ? THEN income_records.income_amount ELSE 0 END), 0) AS personal,
			COALESCE(SUM(CASE WHEN income_records.income_type = ? AND income_records.status <> ? THEN income_records.income_amount ELSE 0 END), 0) AS matching`,
			models.IncomeStatusRejected,
			pending, filter.Now,
			pending, filter.Now,
			models.IncomeStatusApproved,
			models.IncomeStatusCredited,
			models.IncomeStatusPaid,
			models.IncomeStatusRejected,
			models.IncomeTypePersonalSale, models.IncomeStatusRejected,
			models.IncomeTypeMatchingBonus, models.IncomeStatusRejected,
		).
		Scan(&totals).Error
	if err != nil {
		return nil, err
	}
	return &totals, nil
}

func (r *incomeRepository) Stats(ctx context.Context, now, monthStart time.Time) (*IncomeStatsTotals, error) {
	var stats IncomeStatsTotals
	db := r.db.WithContext(ctx).Model(&models.IncomeRecord{})

	err := db.Select(`COUNT(*) FILTER (WHERE status = ? AND eligible_for_approval_date <= ?) AS eligible_count,
			COALESCE(SUM(income_amount) FILTER (WHERE status = ? AND eligible_for_approval_date <= ?), 0) AS eligible_amount,
			COUNT(*) FILTER (WHERE created_at >= ?) AS month_count,
			COALESCE(SUM(income_amount) FILTER (WHERE created_at >= ?), 0) AS month_amount,
			COUNT(*) AS overall_count,
			COALESCE(SUM(income_amount), 0) AS overall_amount,
			COUNT(DISTINCT user_id) AS unique_users`,
		models.IncomeStatusPending, now,
		models.IncomeStatusPending, now,
		monthStart,
		monthStart,
	).Scan(&stats).Error
	if err != nil {
		return nil, err
	}

	err = r.db.WithContext(ctx).Model(&models.IncomeRecord{}).
		Select(`CASE WHEN status = ? AND eligible_for_approval_date <= ? THEN ? ELSE status END AS status,
			COUNT(*) AS count,
			COALESCE(SUM(income_amount), 0) AS amount`,
			models.IncomeStatusPending, now, models.IncomeStatusEligible).
		Group("1").
		Scan(&stats.ByStatus).Error
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// WithLockedRecord locks the record row for the duration of fn and saves the record if fn succeeds
func (r *incomeRepository) WithLockedRecord(ctx context.Context, id uint, fn func(record *models.IncomeRecord) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var record models.IncomeRecord
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).First(&record, id).Error; err != nil {
			return err
		}
		if err := fn(&record); err != nil {
			return err
		}
		return tx.Omit(clause.Associations).Save(&record).Error
	})
}

// FindUnannouncedEligible returns pending records whose approval lock has
// expired by now and that no eligibility notification covered yet, oldest first
func (r *incomeRepository) FindUnannouncedEligible(ctx context.Context, now time.Time, limit int) ([]models.IncomeRecord, error) {
	var records []models.IncomeRecord
	err := r.db.WithContext(ctx).
		Where("status = ? AND eligible_for_approval_date <= ? AND eligibility_notified_at IS NULL",
			models.IncomeStatusPending, now).
		Order("eligible_for_approval_date ASC, id ASC").
		Limit(limit).
		Find(&records).Error
	return records, err
}

// MarkEligibilityNotified stamps the records as announced. Records stamped by
// an earlier run keep their first timestamp.
func (r *incomeRepository) MarkEligibilityNotified(ctx context.Context, ids []uint, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).
		Model(&models.IncomeRecord{}).
		Where("id IN ? AND eligibility_notified_at IS NULL", ids).
		Update("eligibility_notified_at", at).Error
}
