package handlers

import (
	"github.com/sjperalta/fintera-matching-api/internal/services"
)

// Handlers holds all handler instances
type Handlers struct {
	Health         *HealthHandler
	Auth           *AuthHandler
	MatchingIncome *MatchingIncomeHandler
	LegBalance     *LegBalanceHandler
	Sale           *SaleHandler
	Member         *MemberHandler
	Notification   *NotificationHandler
	Audit          *AuditHandler
	Job            *JobHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services) *Handlers {
	RegisterValidators()

	return &Handlers{
		Health:         NewHealthHandler(),
		Auth:           NewAuthHandler(svcs.Auth),
		MatchingIncome: NewMatchingIncomeHandler(svcs.Income, svcs.Export),
		LegBalance:     NewLegBalanceHandler(svcs.LegBalance),
		Sale:           NewSaleHandler(svcs.Sale, svcs.Income),
		Member:         NewMemberHandler(svcs.Member),
		Notification:   NewNotificationHandler(svcs.Notification),
		Audit:          NewAuditHandler(svcs.Audit),
		Job:            NewJobHandler(svcs.Job),
	}
}
