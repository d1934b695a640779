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
	"gorm.io/gorm"
)

// RetainedEntry is a withheld payment with the context operators need to release it
type RetainedEntry struct {
	models.BrokerFortnightTotal
	BrokerName string `json:"broker_name"`
	PeriodKey  string `json:"period_key"`
}

// RetentionService withholds and releases broker payments of paid fortnights
type RetentionService struct {
	repos         *repository.Repositories
	notifications *NotificationService
	audit         *AuditService
	now           func() time.Time
}

func NewRetentionService(repos *repository.Repositories, notifications *NotificationService, audit *AuditService) *RetentionService {
	return &RetentionService{repos: repos, notifications: notifications, audit: audit, now: time.Now}
}

// Retain withholds a broker's payment from a paid fortnight
func (s *RetentionService) Retain(ctx context.Context, actor Actor, fortnightID, brokerID uint, reason string) (*models.BrokerFortnightTotal, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, validationError("el motivo de la retención es obligatorio")
	}

	var row *models.BrokerFortnightTotal
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		f, err := tx.Fortnight.FindByID(ctx, fortnightID)
		if err != nil {
			return notFound(err, "quincena", fortnightID)
		}
		if f.IsDraft() {
			return conflictError("solo se pueden retener pagos de quincenas pagadas")
		}
		row, err = tx.BrokerTotal.FindOneForUpdate(ctx, fortnightID, brokerID)
		if err != nil {
			return notFound(err, "total del corredor", brokerID)
		}
		if !row.IsRetained && !row.NetAmount.IsPositive() {
			return conflictError("el neto de %s del corredor %d en la quincena %s no es un pago que pueda retenerse",
				money(row.NetAmount), brokerID, f.PeriodKey())
		}
		if !row.MayRetain() {
			return conflictError("el pago del corredor %d en la quincena %s no puede retenerse", brokerID, f.PeriodKey())
		}
		now := s.now()
		row.IsRetained = true
		row.RetainedAt = &now
		row.RetainReason = &reason
		if err := tx.BrokerTotal.Update(ctx, row); err != nil {
			return err
		}

		broker, err := tx.Broker.FindByID(ctx, brokerID)
		if err != nil {
			return notFound(err, "corredor", brokerID)
		}
		return s.notifications.Outbox(tx).NotifyBroker(ctx, broker, "Pago retenido",
			fmt.Sprintf("Tu pago de %s de la quincena %s fue retenido: %s", money(row.NetAmount), f.PeriodKey(), reason),
			models.NotificationTypePaymentRetained, &f.ID)
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, models.AuditRetain, "BrokerFortnightTotal", row.ID, reason)
	return row, nil
}

// Release pays out a retained total. With mode now it returns the payment instruction;
// with mode next_fortnight the net joins the open draft's gross and nil is returned.
func (s *RetentionService) Release(ctx context.Context, actor Actor, fortnightID, brokerID uint, mode string) (*PaymentInstruction, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	if mode != models.ReleaseModeNow && mode != models.ReleaseModeNextFortnight {
		return nil, validationError("modo de liberación inválido: %s", mode)
	}

	var instruction *PaymentInstruction
	var rowID uint
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		f, err := tx.Fortnight.FindByID(ctx, fortnightID)
		if err != nil {
			return notFound(err, "quincena", fortnightID)
		}
		row, err := tx.BrokerTotal.FindOneForUpdate(ctx, fortnightID, brokerID)
		if err != nil {
			return notFound(err, "total del corredor", brokerID)
		}
		if !row.MayRelease() {
			return conflictError("el pago del corredor %d en la quincena %s no está retenido", brokerID, f.PeriodKey())
		}
		broker, err := tx.Broker.FindByID(ctx, brokerID)
		if err != nil {
			return notFound(err, "corredor", brokerID)
		}
		rowID = row.ID

		now := s.now()
		row.IsRetained = false
		row.ReleasedAt = &now
		row.ReleaseMode = &mode

		switch mode {
		case models.ReleaseModeNow:
			if !row.NetAmount.IsPositive() {
				return conflictError("no se puede pagar un neto de %s al corredor %d", money(row.NetAmount), brokerID)
			}
			batch := uuid.NewString()
			row.ReleaseBatchID = &batch
			instruction = instructionFor(broker, row.NetAmount, batch,
				fmt.Sprintf("Pago retenido quincena %s", f.PeriodKey()), SourceRetention, row.ID)
		case models.ReleaseModeNextFortnight:
			draft, err := tx.Fortnight.FindDraft(ctx)
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return conflictError("no hay quincena en borrador para recibir el pago retenido")
			}
			if err != nil {
				return err
			}
			if _, err := lockDraft(ctx, tx, draft.ID); err != nil {
				return err
			}
			row.ReleaseFortnightID = &draft.ID
		}
		if err := tx.BrokerTotal.Update(ctx, row); err != nil {
			return err
		}
		return s.notifications.Outbox(tx).NotifyBroker(ctx, broker, "Pago liberado",
			fmt.Sprintf("Tu pago retenido de %s de la quincena %s fue liberado", money(row.NetAmount), f.PeriodKey()),
			models.NotificationTypePaymentReleased, &f.ID)
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, models.AuditRelease, "BrokerFortnightTotal", rowID, "Liberado: "+mode)
	return instruction, nil
}

// ListRetained returns every withheld payment across all fortnights
func (s *RetentionService) ListRetained(ctx context.Context) ([]RetainedEntry, error) {
	rows, err := s.repos.BrokerTotal.FindRetained(ctx)
	if err != nil {
		return nil, err
	}
	brokers, err := brokerIndex(ctx, s.repos)
	if err != nil {
		return nil, err
	}
	periods := make(map[uint]string)
	out := make([]RetainedEntry, 0, len(rows))
	for _, row := range rows {
		key, ok := periods[row.FortnightID]
		if !ok {
			f, err := s.repos.Fortnight.FindByID(ctx, row.FortnightID)
			if err != nil {
				return nil, notFound(err, "quincena", row.FortnightID)
			}
			key = f.PeriodKey()
			periods[row.FortnightID] = key
		}
		entry := RetainedEntry{BrokerFortnightTotal: row, PeriodKey: key}
		if b, ok := brokers[row.BrokerID]; ok {
			entry.BrokerName = b.Name
		}
		out = append(out, entry)
	}
	return out, nil
}
