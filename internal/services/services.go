package services

import (
	"github.com/redis/go-redis/v9"
	"github.com/sjperalta/fintera-matching-api/internal/config"
	"github.com/sjperalta/fintera-matching-api/internal/jobs"
	"github.com/sjperalta/fintera-matching-api/internal/repository"
)

// Dispatcher runs side effects such as notifications and emails off the request path.
// *jobs.Worker satisfies it.
type Dispatcher interface {
	EnqueueAsync(job jobs.Job)
}

// Services holds all service instances
type Services struct {
	Auth         *AuthService
	Member       *MemberService
	Sale         *SaleService
	LegBalance   *LegBalanceService
	Income       *IncomeService
	Notification *NotificationService
	Audit        *AuditService
	Email        *EmailService
	Export       *ExportService
	Job          *JobService
	Calculator   *CommissionCalculator
	Matching     *MatchingEngine
	StatsCache   *StatsCache
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, redisClient *redis.Client, cfg *config.Config) *Services {
	notificationSvc := NewNotificationService(repos.Notification, repos.User)
	emailSvc := NewEmailService(cfg)
	auditSvc := NewAuditService(repos.Audit)
	statsCache := NewStatsCache(redisClient, cfg.StatsCacheTTL)

	calc := NewCommissionCalculator(cfg.CommissionPercentage)
	engine := NewMatchingEngine(calc, cfg.EligibilityMonths)

	memberSvc := NewMemberService(repos.User, notificationSvc, emailSvc, auditSvc, worker)
	saleSvc := NewSaleService(repos.Ledger, repos.User, calc, engine, cfg.EligibilityMonths, notificationSvc, auditSvc, statsCache, worker)
	incomeSvc := NewIncomeService(repos.Income, repos.User, notificationSvc, emailSvc, auditSvc, statsCache, worker)

	return &Services{
		Auth:         NewAuthService(repos.User, memberSvc, auditSvc, cfg),
		Member:       memberSvc,
		Sale:         saleSvc,
		LegBalance:   NewLegBalanceService(repos.Ledger, repos.User, repos.Income),
		Income:       incomeSvc,
		Notification: notificationSvc,
		Audit:        auditSvc,
		Email:        emailSvc,
		Export:       NewExportService(repos.Income),
		Job:          NewJobService(worker, saleSvc, incomeSvc),
		Calculator:   calc,
		Matching:     engine,
		StatsCache:   statsCache,
	}
}
