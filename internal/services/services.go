package services

import (
	"github.com/lissa/commissions-api/internal/config"
	"github.com/lissa/commissions-api/internal/jobs"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/lissa/commissions-api/internal/storage"
)

// Services holds all service instances
type Services struct {
	Broker       *BrokerService
	Fortnight    *FortnightService
	Import       *ImportService
	Classifier   *ClassifierService
	Advance      *AdvanceService
	Recurrence   *RecurrenceService
	Discount     *DiscountService
	Adjustment   *AdjustmentService
	Retention    *RetentionService
	Export       *ExportService
	Notification *NotificationService
	Audit        *AuditService
	Job          *JobService
}

// NewServices creates all service instances
func NewServices(repos *repository.Repositories, worker *jobs.Worker, storage *storage.LocalStorage, cfg *config.Config) *Services {
	notificationSvc := NewNotificationService(repos.Notification, cfg.MasterUserIDs)
	auditSvc := NewAuditService(repos.Audit)

	fortnightSvc := NewFortnightService(repos, notificationSvc, auditSvc)
	classifierSvc := NewClassifierService(repos, notificationSvc, auditSvc)

	return &Services{
		Broker:       NewBrokerService(repos, auditSvc),
		Fortnight:    fortnightSvc,
		Import:       NewImportService(repos, auditSvc),
		Classifier:   classifierSvc,
		Advance:      NewAdvanceService(repos, auditSvc),
		Recurrence:   NewRecurrenceService(repos, auditSvc),
		Discount:     NewDiscountService(repos, auditSvc),
		Adjustment:   NewAdjustmentService(repos, notificationSvc, auditSvc),
		Retention:    NewRetentionService(repos, notificationSvc, auditSvc),
		Export:       NewExportService(repos, fortnightSvc, storage),
		Notification: notificationSvc,
		Audit:        auditSvc,
		Job:          NewJobService(worker, fortnightSvc, classifierSvc),
	}
}
