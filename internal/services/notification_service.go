package services

import (
	"context"

	"github.com/sjperalta/fintera-matching-api/internal/models"
	"github.com/sjperalta/fintera-matching-api/internal/repository"
	"github.com/sjperalta/fintera-matching-api/pkg/logger"
)

type NotificationService struct {
	repo     repository.NotificationRepository
	userRepo repository.UserRepository
}

func NewNotificationService(repo repository.NotificationRepository, userRepo repository.UserRepository) *NotificationService {
	return &NotificationService{repo: repo, userRepo: userRepo}
}

func (s *NotificationService) FindByUser(ctx context.Context, userID uint, query *repository.ListQuery) ([]models.Notification, int64, error) {
	return s.repo.FindByUser(ctx, userID, query)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkAsRead marks one of the user's notifications as read
func (s *NotificationService) MarkAsRead(ctx context.Context, id, userID uint) error {
	notification, err := s.repo.FindByIDForUser(ctx, id, userID)
	if err != nil {
		return notFound(err)
	}
	if notification.IsRead() {
		return nil
	}
	notification.MarkAsRead()
	return s.repo.Update(ctx, notification)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *NotificationService) NotifyUser(ctx context.Context, userID uint, title, message, notifType string) error {
	notification := &models.Notification{
		UserID:           userID,
		Title:            title,
		Message:          message,
		NotificationType: &notifType,
	}
	return s.repo.Create(ctx, notification)
}

// NotifyUsers sends the same notification to every user in userIDs
func (s *NotificationService) NotifyUsers(ctx context.Context, userIDs []uint, title, message, notifType string) error {
	notifications := make([]models.Notification, 0, len(userIDs))
	for _, id := range userIDs {
		t := notifType
		notifications = append(notifications, models.Notification{
			UserID:           id,
			Title:            title,
			Message:          message,
			NotificationType: &t,
		})
	}
	return s.repo.CreateBatch(ctx, notifications)
}

func (s *NotificationService) NotifyAdmins(ctx context.Context, title, message, notifType string) error {
	admins, err := s.userRepo.FindAdmins(ctx)
	if err != nil {
		return err
	}
	ids := make([]uint, 0, len(admins))
	for _, admin := range admins {
		ids = append(ids, admin.ID)
	}
	if err := s.NotifyUsers(ctx, ids, title, message, notifType); err != nil {
		logger.Error("failed to notify admins", "title", title, "error", err)
		return err
	}
	return nil
}
