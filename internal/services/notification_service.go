package services

import (
	"context"
	"fmt"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
)

// NotificationService writes outbox rows for the external dispatcher
type NotificationService struct {
	repo      repository.NotificationRepository
	masterIDs []uint
}

func NewNotificationService(repo repository.NotificationRepository, masterIDs []uint) *NotificationService {
	return &NotificationService{repo: repo, masterIDs: masterIDs}
}

// Outbox returns a copy bound to the given transaction so rows commit with the change that caused them
func (s *NotificationService) Outbox(tx *repository.Repositories) *NotificationService {
	return &NotificationService{repo: tx.Notification, masterIDs: s.masterIDs}
}

func (s *NotificationService) FindByUser(ctx context.Context, userID uint, query *repository.ListQuery) ([]models.Notification, int64, error) {
	return s.repo.FindByUser(ctx, userID, query)
}

func (s *NotificationService) CountUnread(ctx context.Context, userID uint) (int64, error) {
	return s.repo.CountUnread(ctx, userID)
}

// MarkAsRead marks one of the caller's notifications as read
func (s *NotificationService) MarkAsRead(ctx context.Context, userID, id uint) error {
	notification, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return notFound(err, "notificación", id)
	}
	if notification.UserID != userID {
		return notFound(ErrNotFound, "notificación", id)
	}
	notification.MarkAsRead()
	return s.repo.Update(ctx, notification)
}

func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) error {
	return s.repo.MarkAllAsRead(ctx, userID)
}

func (s *NotificationService) NotifyUser(ctx context.Context, userID uint, title, message, notifType string, entityID *uint) error {
	notification := &models.Notification{
		UserID:           userID,
		Title:            title,
		Message:          message,
		NotificationType: &notifType,
		EntityID:         entityID,
	}
	return s.repo.Create(ctx, notification)
}

// NotifyMasters writes one row per configured master user
func (s *NotificationService) NotifyMasters(ctx context.Context, title, message, notifType string, entityID *uint) error {
	batch := make([]models.Notification, 0, len(s.masterIDs))
	for _, id := range s.masterIDs {
		batch = append(batch, models.Notification{
			UserID:           id,
			Title:            title,
			Message:          message,
			NotificationType: &notifType,
			EntityID:         entityID,
		})
	}
	if err := s.repo.CreateBatch(ctx, batch); err != nil {
		return fmt.Errorf("notify masters: %w", err)
	}
	return nil
}

// NotifyBroker skips brokers that have no linked user account
func (s *NotificationService) NotifyBroker(ctx context.Context, broker *models.Broker, title, message, notifType string, entityID *uint) error {
	if broker == nil || broker.UserID == nil {
		return nil
	}
	return s.NotifyUser(ctx, *broker.UserID, title, message, notifType, entityID)
}
