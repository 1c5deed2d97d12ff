package repository

import (
	"context"
	"errors"

	"github.com/sjperalta/fintera-matching-api/internal/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// LedgerTx is the write surface available inside a ledger transaction
type LedgerTx interface {
	CreateSale(sale *models.Sale) error
	CreateIncome(record *models.IncomeRecord) error
}

// LedgerRepository defines the interface for sales and leg balance data access.
// All balance mutations go through WithLockedBalance so that writes to one
// member's balance are serialized by its row lock.
type LedgerRepository interface {
	WithLockedBalance(ctx context.Context, memberID uint, fn func(tx LedgerTx, balance *models.LegBalance) error) error
	WithTransaction(ctx context.Context, fn func(tx LedgerTx) error) error
	FindBalance(ctx context.Context, memberID uint) (*models.LegBalance, error)
	FindMatchableMemberIDs(ctx context.Context, limit int) ([]uint, error)
	FindSaleByID(ctx context.Context, id uint) (*models.Sale, error)
	ListSales(ctx context.Context, query *ListQuery) ([]models.Sale, int64, error)
	FindLegSales(ctx context.Context, sellerID uint, leg models.Leg, limit int) ([]models.Sale, error)
}

// ledgerRepository handles database operations for sales and leg balances
type ledgerRepository struct {
	db *gorm.DB
}

// NewLedgerRepository creates a new ledger repository
func NewLedgerRepository(db *gorm.DB) LedgerRepository {
	return &ledgerRepository{db: db}
}

type ledgerTx struct {
	tx *gorm.DB
}

func (t *ledgerTx) CreateSale(sale *models.Sale) error {
	return t.tx.Create(sale).Error
}

func (t *ledgerTx) CreateIncome(record *models.IncomeRecord) error {
	return t.tx.Create(record).Error
}

// WithLockedBalance locks memberID's balance row (creating it on first use),
// runs fn and saves the balance if fn succeeds. Everything commits or rolls back together.
func (r *ledgerRepository) WithLockedBalance(ctx context.Context, memberID uint, fn func(tx LedgerTx, balance *models.LegBalance) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		seed := models.NewLegBalance(memberID)
		if err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "member_id"}},
			DoNothing: true,
		}).Create(seed).Error; err != nil {
			return err
		}

		var balance models.LegBalance
		if err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("member_id = ?", memberID).
			First(&balance).Error; err != nil {
			return err
		}

		if err := fn(&ledgerTx{tx: tx}, &balance); err != nil {
			return err
		}
		return tx.Save(&balance).Error
	})
}

func (r *ledgerRepository) WithTransaction(ctx context.Context, fn func(tx LedgerTx) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&ledgerTx{tx: tx})
	})
}

// FindBalance returns the member's balance, or a zeroed one if the member never had a leg sale
func (r *ledgerRepository) FindBalance(ctx context.Context, memberID uint) (*models.LegBalance, error) {
	var balance models.LegBalance
	err := r.db.WithContext(ctx).Where("member_id = ?", memberID).First(&balance).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return models.NewLegBalance(memberID), nil
	}
	if err != nil {
		return nil, err
	}
	return &balance, nil
}

// FindMatchableMemberIDs returns members whose both legs hold an available balance
func (r *ledgerRepository) FindMatchableMemberIDs(ctx context.Context, limit int) ([]uint, error) {
	var ids []uint
	err := r.db.WithContext(ctx).
		Model(&models.LegBalance{}).
		Where("left_available > 0 AND right_available > 0").
		Order("member_id ASC").
		Limit(limit).
		Pluck("member_id", &ids).Error
	return ids, err
}

func (r *ledgerRepository) FindSaleByID(ctx context.Context, id uint) (*models.Sale, error) {
	var sale models.Sale
	err := r.db.WithContext(ctx).
		Preload("Buyer").
		Preload("Seller").
		First(&sale, id).Error
	if err != nil {
		return nil, err
	}
	return &sale, nil
}

func (r *ledgerRepository) ListSales(ctx context.Context, query *ListQuery) ([]models.Sale, int64, error) {
	var sales []models.Sale
	var total int64

	db := r.db.WithContext(ctx).Model(&models.Sale{})

	if query.Filters["user_id"] != "" {
		db = db.Where("buyer_id = ? OR seller_id = ?", query.Filters["user_id"], query.Filters["user_id"])
	}
	if query.Filters["seller_id"] != "" {
		db = db.Where("seller_id = ?", query.Filters["seller_id"])
	}
	if query.Filters["buyer_id"] != "" {
		db = db.Where("buyer_id = ?", query.Filters["buyer_id"])
	}
	if query.Filters["leg_type"] != "" {
		db = db.Where("leg_type = ?", query.Filters["leg_type"])
	}
	if query.Search != "" {
		db = db.Where("plot_id ILIKE ?", "%"+query.Search+"%")
	}

	if err := db.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	order := "sale_date DESC, id DESC"
	if query.SortDir == "asc" {
		order = "sale_date ASC, id ASC"
	}
	db = db.Order(order)

	if query.PerPage > 0 {
		db = db.Offset(query.Offset()).Limit(query.PerPage)
	}

	err := db.Preload("Buyer").Preload("Seller").Find(&sales).Error
	return sales, total, err
}

// FindLegSales returns the seller's sales on leg, newest first
func (r *ledgerRepository) FindLegSales(ctx context.Context, sellerID uint, leg models.Leg, limit int) ([]models.Sale, error) {
	var sales []models.Sale
	db := r.db.WithContext(ctx).
		Where("seller_id = ? AND leg_type = ?", sellerID, leg).
		Order("sale_date DESC, id DESC")
	if limit > 0 {
		db = db.Limit(limit)
	}
	err := db.Find(&sales).Error
	return sales, err
}
