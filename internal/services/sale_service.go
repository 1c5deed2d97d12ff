package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/internal/repository"
	"github.com/sjperalta/fintera-matching-api/pkg/logger"
)

// RecordSaleInput is a confirmed purchase to ingest
type RecordSaleInput struct {
	BuyerID    uint
	SellerID   uint
	PlotID     string
	SaleAmount decimal.Decimal
	// SaleDate defaults to now when zero
	SaleDate time.Time
}

// SaleResult is what one ingestion produced
type SaleResult struct {
	Sale   *models.Sale
	Income *models.IncomeRecord
	Match  *MatchResult
}

// SaleService ingests sales, assigns them to legs and runs matching
type SaleService struct {
	ledgerRepo        repository.LedgerRepository
	userRepo          repository.UserRepository
	calc              *CommissionCalculator
	engine            *MatchingEngine
	eligibilityMonths int
	notificationSvc   *NotificationService
	auditSvc          *AuditService
	statsCache        *StatsCache
	dispatcher        Dispatcher
	Now               func() time.Time
}

func NewSaleService(
	ledgerRepo repository.LedgerRepository,
	userRepo repository.UserRepository,
	calc *CommissionCalculator,
	engine *MatchingEngine,
	eligibilityMonths int,
	notificationSvc *NotificationService,
	auditSvc *AuditService,
	statsCache *StatsCache,
	dispatcher Dispatcher,
) *SaleService {
	return &SaleService{
		ledgerRepo:        ledgerRepo,
		userRepo:          userRepo,
		calc:              calc,
		engine:            engine,
		eligibilityMonths: eligibilityMonths,
		notificationSvc:   notificationSvc,
		auditSvc:          auditSvc,
		statsCache:        statsCache,
		dispatcher:        dispatcher,
		Now:               time.Now,
	}
}

// AssignLeg determines the leg of sellerID's tree a purchase by buyerID lands on.
// A self purchase is personal; otherwise the seller's direct child on the
// placement path from the buyer decides the leg.
func (s *SaleService) AssignLeg(ctx context.Context, buyerID, sellerID uint) (models.Leg, error) {
	if buyerID == sellerID {
		return models.LegPersonal, nil
	}

	path, err := s.userRepo.FindPlacementPath(ctx, buyerID)
	if err != nil {
		return "", err
	}

	for i := 1; i < len(path); i++ {
		if path[i].ID != sellerID {
			continue
		}
		leg := path[i-1].PlacementLeg()
		if !leg.IsBinary() {
			return "", fmt.Errorf("%w: member %d has no placement position under %d", ErrInvalidInput, path[i-1].ID, sellerID)
		}
		return leg, nil
	}
	return "", ErrNotInDownline
}

// RecordSale ingests a sale. Personal sales create a personal_sale income;
// leg sales are credited to the seller's balance and matched in the same
// transaction, under the seller's balance lock.
func (s *SaleService) RecordSale(ctx context.Context, actor Actor, input RecordSaleInput) (*SaleResult, error) {
	if !input.SaleAmount.IsPositive() {
		return nil, ErrInvalidAmount
	}
	input.PlotID = strings.TrimSpace(input.PlotID)
	if input.PlotID == "" {
		return nil, fmt.Errorf("%w: plot id is required", ErrInvalidInput)
	}
	if input.SaleDate.IsZero() {
		input.SaleDate = s.Now()
	}

	buyer, err := s.userRepo.FindByID(ctx, input.BuyerID)
	if err != nil {
		return nil, fmt.Errorf("buyer %d: %w", input.BuyerID, notFound(err))
	}
	seller, err := s.userRepo.FindByID(ctx, input.SellerID)
	if err != nil {
		return nil, fmt.Errorf("seller %d: %w", input.SellerID, notFound(err))
	}

	leg, err := s.AssignLeg(ctx, buyer.ID, seller.ID)
	if err != nil {
		return nil, err
	}

	sale := &models.Sale{
		GUID:       uuid.New().String(),
		BuyerID:    buyer.ID,
		SellerID:   seller.ID,
		PlotID:     input.PlotID,
		SaleAmount: input.SaleAmount,
		SaleDate:   input.SaleDate,
		LegType:    leg,
	}
	if actor.ID != 0 {
		sale.RecordedBy = &actor.ID
	}

	result := &SaleResult{Sale: sale}
	if leg == models.LegPersonal {
		err = s.recordPersonal(ctx, result)
	} else {
		err = s.recordLegSale(ctx, result)
	}
	if err != nil {
		return nil, err
	}

	logger.Info("sale recorded",
		"sale_id", sale.ID, "buyer_id", sale.BuyerID, "seller_id", sale.SellerID,
		"leg", sale.LegType, "amount", sale.SaleAmount.StringFixed(2))

	s.afterIngest(ctx, actor, result)
	return result, nil
}

func (s *SaleService) recordPersonal(ctx context.Context, result *SaleResult) error {
	sale := result.Sale
	income, err := s.calc.Personal(sale.SaleAmount)
	if err != nil {
		return err
	}

	return s.ledgerRepo.WithTransaction(ctx, func(tx repository.LedgerTx) error {
		if err := tx.CreateSale(sale); err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}
		record := models.NewPersonalSaleIncome(sale, s.calc.Percentage(), income, s.eligibilityMonths)
		record.GUID = uuid.New().String()
		if err := tx.CreateIncome(record); err != nil {
			return fmt.Errorf("failed to create personal income: %w", err)
		}
		result.Income = record
		return nil
	})
}

func (s *SaleService) recordLegSale(ctx context.Context, result *SaleResult) error {
	sale := result.Sale
	return s.ledgerRepo.WithLockedBalance(ctx, sale.SellerID, func(tx repository.LedgerTx, balance *models.LegBalance) error {
		if err := tx.CreateSale(sale); err != nil {
			return fmt.Errorf("failed to create sale: %w", err)
		}
		if err := balance.Credit(sale.LegType, sale.SaleAmount); err != nil {
			return err
		}

		match, err := s.engine.Match(balance, sale)
		if err != nil {
			return err
		}
		result.Match = match

		if match.HasMatch() {
			match.Income.GUID = uuid.New().String()
			if err := tx.CreateIncome(match.Income); err != nil {
				return fmt.Errorf("failed to create matching bonus: %w", err)
			}
			result.Income = match.Income
		}
		return nil
	})
}

func (s *SaleService) afterIngest(ctx context.Context, actor Actor, result *SaleResult) {
	sale := result.Sale
	s.auditSvc.Record(ctx, actor, models.AuditActionCreate, models.AuditEntitySale, sale.ID,
		fmt.Sprintf("Sale of %s on plot %s, leg %s, seller %d, buyer %d",
			sale.SaleAmount.StringFixed(2), sale.PlotID, sale.LegType, sale.SellerID, sale.BuyerID))

	if result.Income != nil {
		s.afterIncome(ctx, actor, result.Income, result.Match)
	}
}

// afterIncome audits a new income record and notifies its beneficiary
func (s *SaleService) afterIncome(ctx context.Context, actor Actor, record *models.IncomeRecord, match *MatchResult) {
	if match != nil && match.HasMatch() {
		s.auditSvc.Record(ctx, actor, models.AuditActionMatch, models.AuditEntityIncome, record.ID,
			fmt.Sprintf("Matched %s for member %d, carry forward %s %s",
				record.BalancedAmount.StringFixed(2), record.UserID,
				match.CarryForward.Leg, match.CarryForward.Amount))
	}
	s.statsCache.Invalidate(ctx)

	userID := record.UserID
	message := fmt.Sprintf("A %s income of %s was recorded. It becomes eligible for approval on %s.",
		incomeTypeLabel(record.IncomeType), record.IncomeAmount.StringFixed(2),
		record.EligibleForApprovalDate.Format("2006-01-02"))
	s.dispatcher.EnqueueAsync(func(ctx context.Context) error {
		return s.notificationSvc.NotifyUser(ctx, userID, "New income recorded", message, models.NotificationTypeIncomeCreated)
	})
}

// SweepMatches runs a matching pass for up to batchSize members whose both
// legs hold an available balance. It returns how many passes produced a bonus.
func (s *SaleService) SweepMatches(ctx context.Context, batchSize int) (int, error) {
	ids, err := s.ledgerRepo.FindMatchableMemberIDs(ctx, batchSize)
	if err != nil {
		return 0, err
	}

	matched := 0
	for _, memberID := range ids {
		if err := ctx.Err(); err != nil {
			return matched, err
		}

		var result *MatchResult
		err := s.ledgerRepo.WithLockedBalance(ctx, memberID, func(tx repository.LedgerTx, balance *models.LegBalance) error {
			match, err := s.engine.Match(balance, nil)
			if err != nil {
				return err
			}
			if match.HasMatch() {
				match.Income.GUID = uuid.New().String()
				if err := tx.CreateIncome(match.Income); err != nil {
					return err
				}
			}
			result = match
			return nil
		})
		if err != nil {
			logger.Error("matching sweep failed for member", "member_id", memberID, "error", err)
			continue
		}
		if result.HasMatch() {
			matched++
			s.afterIncome(ctx, SystemActor, result.Income, result)
		}
	}

	if matched > 0 {
		logger.Info("matching sweep completed", "members_scanned", len(ids), "matched", matched)
	}
	return matched, nil
}

// FindByID returns a sale with buyer and seller
func (s *SaleService) FindByID(ctx context.Context, id uint) (*models.Sale, error) {
	sale, err := s.ledgerRepo.FindSaleByID(ctx, id)
	if err != nil {
		return nil, notFound(err)
	}
	return sale, nil
}

// List returns sales matching query
func (s *SaleService) List(ctx context.Context, query *repository.ListQuery) ([]models.Sale, int64, error) {
	return s.ledgerRepo.ListSales(ctx, query)
}
