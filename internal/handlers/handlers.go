package handlers

import (
	"github.com/lissa/commissions-api/internal/services"
	"github.com/lissa/commissions-api/internal/storage"
)

// Handlers holds all handler instances
type Handlers struct {
	Health       *HealthHandler
	Broker       *BrokerHandler
	Fortnight    *FortnightHandler
	Classifier   *ClassifierHandler
	Advance      *AdvanceHandler
	Adjustment   *AdjustmentHandler
	Settlement   *SettlementHandler
	Notification *NotificationHandler
	Audit        *AuditHandler
	Job          *JobHandler
}

// NewHandlers creates all handler instances
func NewHandlers(svcs *services.Services, storage *storage.LocalStorage) *Handlers {
	return &Handlers{
		Health:       NewHealthHandler(),
		Broker:       NewBrokerHandler(svcs.Broker),
		Fortnight:    NewFortnightHandler(svcs.Fortnight, svcs.Discount, svcs.Job),
		Classifier:   NewClassifierHandler(svcs.Import, svcs.Classifier),
		Advance:      NewAdvanceHandler(svcs.Advance, svcs.Recurrence),
		Adjustment:   NewAdjustmentHandler(svcs.Adjustment),
		Settlement:   NewSettlementHandler(svcs.Retention, svcs.Export, storage),
		Notification: NewNotificationHandler(svcs.Notification),
		Audit:        NewAuditHandler(svcs.Audit),
		Job:          NewJobHandler(svcs.Job),
	}
}
