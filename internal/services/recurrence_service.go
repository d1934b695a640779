package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// CreateRecurrenceInput describes a repeating advance schedule
type CreateRecurrenceInput struct {
	BrokerID      uint            `json:"broker_id" validate:"required"`
	Amount        decimal.Decimal `json:"amount" validate:"gt=0"`
	Reason        string          `json:"reason" validate:"required,max=500"`
	FortnightType string          `json:"fortnight_type" validate:"required,oneof=Q1 Q2 BOTH"`
	StartDate     time.Time       `json:"start_date" validate:"required"`
	EndDate       *time.Time      `json:"end_date"`
}

// UpdateRecurrenceInput changes future generations only
type UpdateRecurrenceInput struct {
	Amount   *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
	Reason   *string          `json:"reason" validate:"omitempty,max=500"`
	EndDate  *time.Time       `json:"end_date"`
	IsActive *bool            `json:"is_active"`
}

type RecurrenceService struct {
	repos *repository.Repositories
	audit *AuditService
	now   func() time.Time
}

func NewRecurrenceService(repos *repository.Repositories, audit *AuditService) *RecurrenceService {
	return &RecurrenceService{repos: repos, audit: audit, now: time.Now}
}

// Create registers the schedule and immediately generates the advances for the start month:
// one for Q1 or Q2, two for BOTH. A half that ends before the start date is skipped.
func (s *RecurrenceService) Create(ctx context.Context, actor Actor, in CreateRecurrenceInput) (*models.AdvanceRecurrence, []models.Advance, error) {
	if err := requireMaster(actor); err != nil {
		return nil, nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, nil, err
	}
	if in.EndDate != nil && in.EndDate.Before(in.StartDate) {
		return nil, nil, validationError("la fecha final no puede ser anterior a la fecha de inicio")
	}

	rec := &models.AdvanceRecurrence{
		BrokerID:      in.BrokerID,
		Amount:        in.Amount,
		Reason:        in.Reason,
		FortnightType: in.FortnightType,
		StartDate:     in.StartDate,
		EndDate:       in.EndDate,
		IsActive:      true,
		CreatedBy:     actor.UserID,
	}

	var generated []models.Advance
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Broker.FindByID(ctx, in.BrokerID); err != nil {
			return notFound(err, "corredor", in.BrokerID)
		}
		if err := tx.Recurrence.Create(ctx, rec); err != nil {
			return fmt.Errorf("create recurrence: %w", err)
		}
		for _, half := range rec.Halves() {
			start, end := models.HalfBounds(rec.StartDate, half)
			if !rec.AppliesTo(half, start, end) {
				continue
			}
			adv, err := generateForPeriod(ctx, tx, rec, models.PeriodKeyFor(rec.StartDate, half), actor.UserID, s.now())
			if err != nil {
				return err
			}
			if adv != nil {
				generated = append(generated, *adv)
			}
		}
		return nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.audit.Record(ctx, actor, models.AuditCreate, "AdvanceRecurrence", rec.ID,
		fmt.Sprintf("Recurrencia %s de %s para corredor %d (%d adelantos generados)", rec.FortnightType, money(rec.Amount), rec.BrokerID, len(generated)))
	return rec, generated, nil
}

func (s *RecurrenceService) Update(ctx context.Context, actor Actor, id uint, in UpdateRecurrenceInput) (*models.AdvanceRecurrence, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	rec, err := s.repos.Recurrence.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "recurrencia", id)
	}
	if in.Amount != nil {
		rec.Amount = *in.Amount
	}
	if in.Reason != nil {
		rec.Reason = *in.Reason
	}
	if in.EndDate != nil {
		if in.EndDate.Before(rec.StartDate) {
			return nil, validationError("la fecha final no puede ser anterior a la fecha de inicio")
		}
		rec.EndDate = in.EndDate
	}
	if in.IsActive != nil {
		rec.IsActive = *in.IsActive
	}
	if err := s.repos.Recurrence.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("update recurrence: %w", err)
	}
	s.audit.Record(ctx, actor, models.AuditUpdate, "AdvanceRecurrence", rec.ID, "Recurrencia actualizada")
	return rec, nil
}

func (s *RecurrenceService) Get(ctx context.Context, id uint) (*models.AdvanceRecurrence, error) {
	rec, err := s.repos.Recurrence.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "recurrencia", id)
	}
	return rec, nil
}

func (s *RecurrenceService) List(ctx context.Context, brokerID *uint) ([]models.AdvanceRecurrence, error) {
	return s.repos.Recurrence.List(ctx, brokerID)
}

// generateRecurringAdvances creates the advances owed for the fortnight's period by every active recurrence
func generateRecurringAdvances(ctx context.Context, tx *repository.Repositories, f *models.Fortnight, actorID uint, now time.Time) ([]models.Advance, error) {
	recs, err := tx.Recurrence.FindActive(ctx)
	if err != nil {
		return nil, fmt.Errorf("load recurrences: %w", err)
	}
	half := f.Half()
	key := f.PeriodKey()
	var generated []models.Advance
	for i := range recs {
		rec := &recs[i]
		if !rec.AppliesTo(half, f.PeriodStart, f.PeriodEnd) {
			continue
		}
		adv, err := generateForPeriod(ctx, tx, rec, key, actorID, now)
		if err != nil {
			return nil, err
		}
		if adv != nil {
			generated = append(generated, *adv)
		}
	}
	return generated, nil
}

// generateForPeriod creates the recurrence's advance for periodKey unless one already exists.
// It returns nil when nothing was generated.
func generateForPeriod(ctx context.Context, tx *repository.Repositories, rec *models.AdvanceRecurrence, periodKey string, actorID uint, now time.Time) (*models.Advance, error) {
	_, err := tx.Advance.FindByRecurrencePeriod(ctx, rec.ID, periodKey)
	if err == nil {
		return nil, nil
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("check recurrence %d for %s: %w", rec.ID, periodKey, err)
	}

	recID := rec.ID
	key := periodKey
	adv := &models.Advance{
		BrokerID:     rec.BrokerID,
		Amount:       rec.Amount,
		Reason:       fmt.Sprintf("%s (%s)", rec.Reason, periodKey),
		Status:       models.AdvanceStatusPending,
		IsRecurring:  true,
		RecurrenceID: &recID,
		PeriodKey:    &key,
		CreatedBy:    actorID,
	}
	if err := tx.Advance.Create(ctx, adv); err != nil {
		return nil, fmt.Errorf("generate advance for recurrence %d: %w", rec.ID, err)
	}

	rec.RecurrenceCount++
	rec.LastGeneratedAt = &now
	if err := tx.Recurrence.Update(ctx, rec); err != nil {
		return nil, fmt.Errorf("update recurrence %d: %w", rec.ID, err)
	}
	return adv, nil
}
