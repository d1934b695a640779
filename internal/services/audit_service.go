package services

import (
	"context"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/lissa/commissions-api/pkg/logger"
)

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

// Record logs an entry after a committed change. A failed audit write never undoes the change.
func (s *AuditService) Record(ctx context.Context, actor Actor, action, entity string, entityID uint, details string) {
	if err := s.Log(ctx, actor.UserID, action, entity, entityID, details, "", ""); err != nil {
		logger.Error("[AuditService] failed to record entry", "action", action, "entity", entity, "entity_id", entityID, "error", err)
	}
}

// List retrieves audit logs newest first
func (s *AuditService) List(ctx context.Context, limit, offset int) ([]models.AuditLog, int64, error) {
	return s.repo.List(ctx, limit, offset)
}

// History returns the trail for one entity
func (s *AuditService) History(ctx context.Context, entity string, entityID uint) ([]models.AuditLog, error) {
	return s.repo.FindByEntity(ctx, entity, entityID)
}
