package services

import (
	"context"

	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/internal/repository"
	"github.com/sjperalta/fintera-matching-api/pkg/logger"
)

// Actor identifies who performs an operation and from where
type Actor struct {
	ID        uint
	IP        string
	UserAgent string
}

// SystemActor is used for entries written by background jobs
var SystemActor = Actor{UserAgent: "system"}

type AuditService struct {
	repo repository.AuditRepository
}

func NewAuditService(repo repository.AuditRepository) *AuditService {
	return &AuditService{repo: repo}
}

// Log records an audit entry
func (s *AuditService) Log(ctx context.Context, userID uint, action, entity string, entityID uint, details, ip, userAgent string) error {
	logEntry := &models.AuditLog{
		UserID:    userID,
		Action:    action,
		Entity:    entity,
		EntityID:  entityID,
		Details:   details,
		IPAddress: ip,
		UserAgent: userAgent,
	}
	return s.repo.Create(ctx, logEntry)
}

// Record logs an entry on behalf of actor. Failures are logged and swallowed
// since the audited operation has already committed.
func (s *AuditService) Record(ctx context.Context, actor Actor, action, entity string, entityID uint, details string) {
	if err := s.Log(ctx, actor.ID, action, entity, entityID, details, actor.IP, actor.UserAgent); err != nil {
		logger.Error("failed to write audit log", "action", action, "entity", entity, "entity_id", entityID, "error", err)
	}
}

// List retrieves audit logs with filters
func (s *AuditService) List(ctx context.Context, query *repository.ListQuery) ([]models.AuditLog, int64, error) {
	return s.repo.List(ctx, query)
}
