package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StageDiscountInput deducts part of an advance from a broker's draft net
type StageDiscountInput struct {
	FortnightID uint            `json:"fortnight_id" validate:"required"`
	BrokerID    uint            `json:"broker_id" validate:"required"`
	AdvanceID   uint            `json:"advance_id" validate:"required"`
	Amount      decimal.Decimal `json:"amount" validate:"gt=0"`
}

type DiscountService struct {
	repos *repository.Repositories
	audit *AuditService
}

func NewDiscountService(repos *repository.Repositories, audit *AuditService) *DiscountService {
	return &DiscountService{repos: repos, audit: audit}
}

// Stage creates or replaces the staged discount for (fortnight, broker, advance)
func (s *DiscountService) Stage(ctx context.Context, actor Actor, in StageDiscountInput) (*models.TemporaryDiscount, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, validationError("el monto del descuento debe ser mayor a cero")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var discount *models.TemporaryDiscount
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		f, err := lockDraft(ctx, tx, in.FortnightID)
		if err != nil {
			return err
		}
		adv, err := tx.Advance.FindByIDForUpdate(ctx, in.AdvanceID)
		if err != nil {
			return notFound(err, "adelanto", in.AdvanceID)
		}
		if adv.BrokerID != in.BrokerID {
			return validationError("el adelanto %d no pertenece al corredor %d", adv.ID, in.BrokerID)
		}
		paid, err := tx.Advance.SumPaid(ctx, adv.ID)
		if err != nil {
			return err
		}
		if remaining := adv.RemainingAfter(paid); in.Amount.GreaterThan(remaining) {
			return conflictError("el descuento de %s excede el saldo pendiente de %s del adelanto %d",
				money(in.Amount), money(remaining), adv.ID)
		}

		totals, err := computeDraft(ctx, tx, f)
		if err != nil {
			return err
		}
		line, _ := totals.Line(in.BrokerID)
		staged, err := tx.Discount.FindByBroker(ctx, f.ID, in.BrokerID)
		if err != nil {
			return err
		}
		// everything discounted for the broker except the row being replaced
		others := line.Discounts
		for _, d := range staged {
			if d.AdvanceID == in.AdvanceID {
				others = others.Sub(d.Amount)
			}
		}
		if others.Add(in.Amount).GreaterThan(line.Gross) {
			return conflictError("los descuentos de %s exceden el bruto de %s del corredor %d",
				money(others.Add(in.Amount)), money(line.Gross), in.BrokerID)
		}

		discount, err = tx.Discount.Find(ctx, f.ID, in.BrokerID, in.AdvanceID)
		switch {
		case err == nil:
			discount.Amount = in.Amount
			return tx.Discount.Update(ctx, discount)
		case errors.Is(err, gorm.ErrRecordNotFound):
			discount = &models.TemporaryDiscount{
				FortnightID: f.ID,
				BrokerID:    in.BrokerID,
				AdvanceID:   in.AdvanceID,
				Amount:      in.Amount,
				CreatedBy:   actor.UserID,
			}
			return tx.Discount.Create(ctx, discount)
		default:
			return err
		}
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, models.AuditCreate, "TemporaryDiscount", discount.ID,
		fmt.Sprintf("Descuento de %s del adelanto %d en quincena %d", money(in.Amount), in.AdvanceID, in.FortnightID))
	return discount, nil
}

// Unstage removes a staged discount from the draft
func (s *DiscountService) Unstage(ctx context.Context, actor Actor, fortnightID, brokerID, advanceID uint) error {
	if err := requireMaster(actor); err != nil {
		return err
	}
	var id uint
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := lockDraft(ctx, tx, fortnightID); err != nil {
			return err
		}
		discount, err := tx.Discount.Find(ctx, fortnightID, brokerID, advanceID)
		if err != nil {
			return notFound(err, "descuento del adelanto", advanceID)
		}
		id = discount.ID
		return tx.Discount.Delete(ctx, discount.ID)
	})
	if err != nil {
		return err
	}
	s.audit.Record(ctx, actor, models.AuditDelete, "TemporaryDiscount", id,
		fmt.Sprintf("Descuento del adelanto %d retirado de la quincena %d", advanceID, fortnightID))
	return nil
}

// ListStaged returns the staged discounts of a fortnight, optionally for one broker
func (s *DiscountService) ListStaged(ctx context.Context, fortnightID uint, brokerID *uint) ([]models.TemporaryDiscount, error) {
	if _, err := s.repos.Fortnight.FindByID(ctx, fortnightID); err != nil {
		return nil, notFound(err, "quincena", fortnightID)
	}
	if brokerID != nil {
		return s.repos.Discount.FindByBroker(ctx, fortnightID, *brokerID)
	}
	return s.repos.Discount.FindByFortnight(ctx, fortnightID)
}

// lockDraft loads the fortnight for update and refuses anything but a draft
func lockDraft(ctx context.Context, tx *repository.Repositories, fortnightID uint) (*models.Fortnight, error) {
	f, err := tx.Fortnight.FindByIDForUpdate(ctx, fortnightID)
	if err != nil {
		return nil, notFound(err, "quincena", fortnightID)
	}
	if !f.IsDraft() {
		return nil, conflictError("la quincena %d ya está pagada y no admite cambios", f.ID)
	}
	return f, nil
}

// checkOvercommit re-validates every staged discount against persisted balances:
// per broker every discount of the draft stays within gross, per advance staging stays within the remaining balance.
func checkOvercommit(ctx context.Context, tx *repository.Repositories, totals *FortnightTotals, discounts []models.TemporaryDiscount) error {
	byAdvance := make(map[uint]decimal.Decimal)
	advanceIDs := make([]uint, 0, len(discounts))
	for _, d := range discounts {
		if _, seen := byAdvance[d.AdvanceID]; !seen {
			advanceIDs = append(advanceIDs, d.AdvanceID)
		}
		byAdvance[d.AdvanceID] = byAdvance[d.AdvanceID].Add(d.Amount)
	}

	// line discounts include fortnight_discount payments already applied to the draft
	lines := totals.Brokers
	if totals.House != nil {
		lines = append(append([]BrokerLine(nil), lines...), *totals.House)
	}
	for _, line := range lines {
		if line.Discounts.IsPositive() && line.Discounts.GreaterThan(line.Gross) {
			return conflictError("los descuentos de %s exceden el bruto de %s del corredor %d",
				money(line.Discounts), money(line.Gross), line.BrokerID)
		}
	}

	paid, err := tx.Advance.SumPaidByAdvance(ctx, advanceIDs)
	if err != nil {
		return err
	}
	for _, id := range advanceIDs {
		adv, err := tx.Advance.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "adelanto", id)
		}
		if remaining := adv.RemainingAfter(paid[id]); byAdvance[id].GreaterThan(remaining) {
			return conflictError("el descuento de %s excede el saldo pendiente de %s del adelanto %d",
				money(byAdvance[id]), money(remaining), id)
		}
	}
	return nil
}
