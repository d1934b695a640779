package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/lissa/commissions-api/internal/statemachine"
	"github.com/lissa/commissions-api/pkg/logger"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// SubmitAdjustmentInput is a broker's claim over pool items
type SubmitAdjustmentInput struct {
	BrokerID uint   `json:"broker_id" validate:"required"`
	ItemIDs  []uint `json:"item_ids" validate:"required,min=1,dive,required"`
	Notes    string `json:"notes" validate:"max=2000"`
}

// ApproveAdjustmentInput carries the master's decision on when to pay
type ApproveAdjustmentInput struct {
	PaymentTiming string `json:"payment_timing" validate:"required,oneof=now next_fortnight"`
	Notes         string `json:"notes" validate:"max=2000"`
}

// AdjustmentPayout is the result of paying a batch of reports
type AdjustmentPayout struct {
	BatchID      string                `json:"batch_id"`
	Reports      []uint                `json:"reports"`
	Instructions []*PaymentInstruction `json:"instructions"`
}

// AdjustmentService runs the claim workflow for unattributed items
type AdjustmentService struct {
	repos         *repository.Repositories
	notifications *NotificationService
	audit         *AuditService
	now           func() time.Time
}

func NewAdjustmentService(repos *repository.Repositories, notifications *NotificationService, audit *AuditService) *AdjustmentService {
	return &AdjustmentService{repos: repos, notifications: notifications, audit: audit, now: time.Now}
}

// Submit files a report claiming pool items for a broker
func (s *AdjustmentService) Submit(ctx context.Context, actor Actor, in SubmitAdjustmentInput) (*models.AdjustmentReport, error) {
	if !actor.IsMaster() && !actor.OwnsBroker(in.BrokerID) {
		return nil, forbiddenError("solo puede reportar partidas a su propio nombre")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	ids := dedupe(in.ItemIDs)

	var report *models.AdjustmentReport
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		broker, err := tx.Broker.FindByID(ctx, in.BrokerID)
		if err != nil {
			return notFound(err, "corredor", in.BrokerID)
		}
		items, err := tx.Commission.FindItemsByIDsForUpdate(ctx, ids)
		if err != nil {
			return err
		}
		if len(items) != len(ids) {
			return &DomainError{Kind: KindNotFound, Message: "una o más partidas no existen"}
		}
		claimed, err := tx.Adjustment.CountActiveClaims(ctx, ids)
		if err != nil {
			return err
		}
		if claimed > 0 {
			return conflictError("una o más partidas ya están reclamadas en otro reporte")
		}

		report = &models.AdjustmentReport{
			BrokerID:    broker.ID,
			Status:      models.AdjustmentStatusPending,
			SubmittedBy: actor.UserID,
			Items:       make([]models.AdjustmentReportItem, 0, len(items)),
		}
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			report.BrokerNotes = &notes
		}
		total := decimal.Zero
		for i := range items {
			it := &items[i]
			if !it.MayClaim() {
				return conflictError("la partida %d no está disponible para reclamo (estado %s)", it.ID, it.Status)
			}
			share := broker.PercentDefault.Apply(it.GrossAmount.Abs()).Round(2)
			report.Items = append(report.Items, models.AdjustmentReportItem{
				ItemID:       it.ID,
				RawAmount:    it.GrossAmount,
				BrokerAmount: share,
			})
			total = total.Add(share)

			it.Status = models.ItemStatusInReview
			if err := tx.Commission.UpdateItem(ctx, it); err != nil {
				return err
			}
		}
		report.TotalAmount = total
		if err := tx.Adjustment.Create(ctx, report); err != nil {
			return fmt.Errorf("create adjustment report: %w", err)
		}

		return s.notifications.Outbox(tx).NotifyMasters(ctx, "Nuevo reporte de ajuste",
			fmt.Sprintf("%s reclamó %d partidas por %s", broker.Name, len(items), money(total)),
			models.NotificationTypeAdjustmentSubmit, &report.ID)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, models.AuditCreate, "AdjustmentReport", report.ID,
		fmt.Sprintf("Reporte de ajuste por %s con %d partidas", money(report.TotalAmount), len(report.Items)))
	return report, nil
}

// Approve accepts a pending report. Its items become assigned to the broker.
// With next_fortnight timing the amount joins the open draft, or the next one created.
func (s *AdjustmentService) Approve(ctx context.Context, actor Actor, reportID uint, in ApproveAdjustmentInput) (*models.AdjustmentReport, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var report *models.AdjustmentReport
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		report, err = tx.Adjustment.FindByIDForUpdate(ctx, reportID)
		if err != nil {
			return notFound(err, "reporte de ajuste", reportID)
		}
		if err := statemachine.NewAdjustmentFSM(report).Approve(ctx); err != nil {
			return conflictError("el reporte %d no puede aprobarse en estado %s", report.ID, report.Status)
		}

		now := s.now()
		timing := in.PaymentTiming
		report.PaymentTiming = &timing
		report.ReviewedBy = &actor.UserID
		report.ReviewedAt = &now
		if notes := strings.TrimSpace(in.Notes); notes != "" {
			report.AdminNotes = &notes
		}

		if err := s.moveItems(ctx, tx, report, func(it *models.CommissionItem) {
			brokerID := report.BrokerID
			it.BrokerID = &brokerID
			it.Status = models.ItemStatusAssigned
			it.AssignedAt = &now
		}); err != nil {
			return err
		}

		if timing == models.PaymentTimingNextFortnight {
			draft, err := tx.Fortnight.FindDraft(ctx)
			switch {
			case err == nil:
				report.FortnightID = &draft.ID
			case !errors.Is(err, gorm.ErrRecordNotFound):
				return err
			}
		}
		if err := tx.Adjustment.Update(ctx, report); err != nil {
			return err
		}

		return s.notifyBroker(ctx, tx, report.BrokerID, "Reporte de ajuste aprobado",
			fmt.Sprintf("Tu reporte %d por %s fue aprobado", report.ID, money(report.TotalAmount)),
			models.NotificationTypeAdjustmentApproved, report.ID)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, models.AuditApprove, "AdjustmentReport", report.ID,
		fmt.Sprintf("Aprobado con pago %s", in.PaymentTiming))
	return report, nil
}

// Reject archives a pending report and returns its items to the pool
func (s *AdjustmentService) Reject(ctx context.Context, actor Actor, reportID uint, reason string) (*models.AdjustmentReport, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("el motivo del rechazo es obligatorio")
	}

	var report *models.AdjustmentReport
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		report, err = tx.Adjustment.FindByIDForUpdate(ctx, reportID)
		if err != nil {
			return notFound(err, "reporte de ajuste", reportID)
		}
		if err := statemachine.NewAdjustmentFSM(report).Reject(ctx); err != nil {
			return conflictError("el reporte %d no puede rechazarse en estado %s", report.ID, report.Status)
		}
		now := s.now()
		report.RejectionReason = &reason
		report.ReviewedBy = &actor.UserID
		report.ReviewedAt = &now

		if err := s.moveItems(ctx, tx, report, func(it *models.CommissionItem) {
			it.BrokerID = nil
			it.Status = models.ItemStatusPending
		}); err != nil {
			return err
		}
		if err := tx.Adjustment.Update(ctx, report); err != nil {
			return err
		}

		return s.notifyBroker(ctx, tx, report.BrokerID, "Reporte de ajuste rechazado",
			fmt.Sprintf("Tu reporte %d fue rechazado: %s", report.ID, reason),
			models.NotificationTypeAdjustmentRejected, report.ID)
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, models.AuditReject, "AdjustmentReport", report.ID, reason)
	return report, nil
}

// MarkPaid pays approved reports with immediate timing as one batch.
// Any report that is not payable now fails the whole batch.
func (s *AdjustmentService) MarkPaid(ctx context.Context, actor Actor, reportIDs []uint) (*AdjustmentPayout, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	ids := dedupe(reportIDs)
	if len(ids) == 0 {
		return nil, validationError("debe indicar al menos un reporte")
	}

	payout := &AdjustmentPayout{BatchID: uuid.NewString(), Reports: ids}
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		now := s.now()
		outbox := s.notifications.Outbox(tx)
		for _, id := range ids {
			report, err := tx.Adjustment.FindByIDForUpdate(ctx, id)
			if err != nil {
				return notFound(err, "reporte de ajuste", id)
			}
			if !report.MayMarkPaid() {
				if report.Status == models.AdjustmentStatusApproved {
					return conflictError("el reporte %d se paga con la próxima quincena", report.ID)
				}
				return conflictError("el reporte %d no puede pagarse en estado %s", report.ID, report.Status)
			}
			if err := statemachine.NewAdjustmentFSM(report).Pay(ctx); err != nil {
				return conflictError("%v", err)
			}
			report.PaidAt = &now
			report.PaymentBatchID = &payout.BatchID
			if err := tx.Adjustment.Update(ctx, report); err != nil {
				return err
			}

			broker, err := tx.Broker.FindByID(ctx, report.BrokerID)
			if err != nil {
				return notFound(err, "corredor", report.BrokerID)
			}
			payout.Instructions = append(payout.Instructions, instructionFor(broker, report.TotalAmount, payout.BatchID,
				fmt.Sprintf("Ajuste %d", report.ID), SourceAdjustment, report.ID))

			if err := outbox.NotifyBroker(ctx, broker, "Ajuste pagado",
				fmt.Sprintf("Tu ajuste %d por %s fue pagado", report.ID, money(report.TotalAmount)),
				models.NotificationTypeAdjustmentPaid, &report.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logger.Info("[AdjustmentService] adjustment batch paid", "batch_id", payout.BatchID, "reports", len(ids))
	for _, id := range ids {
		s.audit.Record(ctx, actor, models.AuditPay, "AdjustmentReport", id, "Lote "+payout.BatchID)
	}
	return payout, nil
}

// Get returns a report; brokers can only read their own
func (s *AdjustmentService) Get(ctx context.Context, actor Actor, reportID uint) (*models.AdjustmentReport, error) {
	report, err := s.repos.Adjustment.FindByID(ctx, reportID)
	if err != nil {
		return nil, notFound(err, "reporte de ajuste", reportID)
	}
	if !actor.IsMaster() && !actor.OwnsBroker(report.BrokerID) {
		return nil, forbiddenError("el reporte %d pertenece a otro corredor", report.ID)
	}
	return report, nil
}

// List returns reports, optionally by status. Brokers only see their own.
func (s *AdjustmentService) List(ctx context.Context, actor Actor, status string) ([]models.AdjustmentReport, error) {
	filter := repository.AdjustmentFilter{Status: status}
	if !actor.IsMaster() {
		if actor.BrokerID == nil {
			return nil, forbiddenError("el usuario no está vinculado a un corredor")
		}
		filter.BrokerID = actor.BrokerID
	}
	return s.repos.Adjustment.List(ctx, filter)
}

// PendingItems returns the unclaimed pool brokers can build reports from
func (s *AdjustmentService) PendingItems(ctx context.Context, actor Actor) ([]models.CommissionItem, error) {
	if !actor.IsMaster() && actor.BrokerID == nil {
		return nil, forbiddenError("el usuario no está vinculado a un corredor")
	}
	return s.repos.Commission.FindItems(ctx, repository.ItemFilter{
		Statuses:     []string{models.ItemStatusPending},
		Unattributed: true,
	})
}

func (s *AdjustmentService) moveItems(ctx context.Context, tx *repository.Repositories, report *models.AdjustmentReport, apply func(*models.CommissionItem)) error {
	ids := make([]uint, 0, len(report.Items))
	for _, ri := range report.Items {
		ids = append(ids, ri.ItemID)
	}
	items, err := tx.Commission.FindItemsByIDsForUpdate(ctx, ids)
	if err != nil {
		return err
	}
	for i := range items {
		apply(&items[i])
		if err := tx.Commission.UpdateItem(ctx, &items[i]); err != nil {
			return err
		}
	}
	return nil
}

func (s *AdjustmentService) notifyBroker(ctx context.Context, tx *repository.Repositories, brokerID uint, title, msg, notifType string, reportID uint) error {
	broker, err := tx.Broker.FindByID(ctx, brokerID)
	if err != nil {
		return notFound(err, "corredor", brokerID)
	}
	return s.notifications.Outbox(tx).NotifyBroker(ctx, broker, title, msg, notifType, &reportID)
}

func dedupe(ids []uint) []uint {
	seen := make(map[uint]bool, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}
