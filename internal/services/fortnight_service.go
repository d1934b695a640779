package services

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync/atomic"
	"time"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/lissa/commissions-api/internal/statemachine"
	"github.com/lissa/commissions-api/pkg/logger"
	"gorm.io/gorm"
)

// CreateDraftInput opens a new pay period
type CreateDraftInput struct {
	PeriodStart   time.Time `json:"period_start" validate:"required"`
	PeriodEnd     time.Time `json:"period_end" validate:"required"`
	NotifyBrokers bool      `json:"notify_brokers"`
}

// DraftResult is a new draft with the work done while opening it
type DraftResult struct {
	Fortnight         *models.Fortnight `json:"fortnight"`
	GeneratedAdvances []models.Advance  `json:"generated_advances"`
	FoldedReports     []uint            `json:"folded_reports"`
}

type FortnightService struct {
	repos         *repository.Repositories
	notifications *NotificationService
	audit         *AuditService
	live          atomic.Pointer[FortnightTotals]
	now           func() time.Time
}

func NewFortnightService(repos *repository.Repositories, notifications *NotificationService, audit *AuditService) *FortnightService {
	return &FortnightService{
		repos:         repos,
		notifications: notifications,
		audit:         audit,
		now:           time.Now,
	}
}

// CreateDraft opens the single editable fortnight. Recurring advances owed for the period are
// generated and approved next-fortnight adjustments are linked in the same transaction.
func (s *FortnightService) CreateDraft(ctx context.Context, actor Actor, in CreateDraftInput) (*DraftResult, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.PeriodEnd.Before(in.PeriodStart) {
		return nil, validationError("la fecha final de la quincena no puede ser anterior a la inicial")
	}

	result := &DraftResult{}
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		existing, err := tx.Fortnight.FindDraft(ctx)
		if err == nil {
			return conflictError("ya existe una quincena en borrador (%d); debe pagarse o descartarse primero", existing.ID)
		}
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("check open draft: %w", err)
		}

		f := &models.Fortnight{
			PeriodStart:   in.PeriodStart,
			PeriodEnd:     in.PeriodEnd,
			Status:        models.FortnightStatusDraft,
			NotifyBrokers: in.NotifyBrokers,
			CreatedBy:     actor.UserID,
		}
		if err := tx.Fortnight.Create(ctx, f); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return conflictError("ya existe una quincena en borrador")
			}
			return fmt.Errorf("create fortnight: %w", err)
		}
		result.Fortnight = f

		result.GeneratedAdvances, err = generateRecurringAdvances(ctx, tx, f, actor.UserID, s.now())
		if err != nil {
			return err
		}

		foldable, err := tx.Adjustment.FindFoldable(ctx)
		if err != nil {
			return fmt.Errorf("load approved adjustments: %w", err)
		}
		for _, r := range foldable {
			result.FoldedReports = append(result.FoldedReports, r.ID)
		}
		return tx.Adjustment.LinkToFortnight(ctx, result.FoldedReports, f.ID)
	})
	if err != nil {
		return nil, err
	}

	s.live.Store(nil)
	s.audit.Record(ctx, actor, models.AuditCreate, "Fortnight", result.Fortnight.ID,
		fmt.Sprintf("Quincena %s abierta: %d adelantos recurrentes, %d ajustes incorporados",
			result.Fortnight.PeriodKey(), len(result.GeneratedAdvances), len(result.FoldedReports)))
	return result, nil
}

func (s *FortnightService) Get(ctx context.Context, id uint) (*models.Fortnight, error) {
	f, err := s.repos.Fortnight.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "quincena", id)
	}
	return f, nil
}

// GetDraft returns the open fortnight
func (s *FortnightService) GetDraft(ctx context.Context) (*models.Fortnight, error) {
	f, err := s.repos.Fortnight.FindDraft(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, &DomainError{Kind: KindNotFound, Message: "no hay quincena en borrador", Err: err}
	}
	return f, err
}

func (s *FortnightService) List(ctx context.Context, year int) ([]models.Fortnight, error) {
	return s.repos.Fortnight.List(ctx, year)
}

// SetNotify toggles broker notifications for the close of a draft
func (s *FortnightService) SetNotify(ctx context.Context, actor Actor, id uint, on bool) (*models.Fortnight, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	var f *models.Fortnight
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		if f, err = lockDraft(ctx, tx, id); err != nil {
			return err
		}
		f.NotifyBrokers = on
		return tx.Fortnight.Update(ctx, f)
	})
	if err != nil {
		return nil, err
	}
	return f, nil
}

// Recalculate derives the fortnight's totals without writing anything.
// Drafts are computed from the ledger, paid fortnights return their frozen snapshot.
func (s *FortnightService) Recalculate(ctx context.Context, id uint) (*FortnightTotals, error) {
	var totals *FortnightTotals
	err := s.repos.Snapshot(ctx, func(tx *repository.Repositories) error {
		f, err := tx.Fortnight.FindByID(ctx, id)
		if err != nil {
			return notFound(err, "quincena", id)
		}
		if f.IsDraft() {
			totals, err = computeDraft(ctx, tx, f)
		} else {
			totals, err = snapshotTotals(ctx, tx, f)
		}
		return err
	})
	if err != nil {
		return nil, err
	}
	return totals, nil
}

// RefreshLive recomputes the open draft's projection, retrying transient store errors
func (s *FortnightService) RefreshLive(ctx context.Context) error {
	draft, err := s.repos.Fortnight.FindDraft(ctx)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s.live.Store(nil)
		return nil
	}
	if err != nil {
		return err
	}

	const attempts = 3
	for attempt := 1; ; attempt++ {
		totals, err := s.Recalculate(ctx, draft.ID)
		if err == nil {
			s.publishLive(totals)
			return nil
		}
		var derr *DomainError
		if errors.As(err, &derr) || attempt == attempts {
			return err
		}
		logger.Warn("[FortnightService] recalculation failed, retrying", "fortnight_id", draft.ID, "attempt", attempt, "error", err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * 100 * time.Millisecond):
		}
	}
}

// publishLive stores a draft projection. A fortnight closed since its lookup clears the cache instead.
func (s *FortnightService) publishLive(totals *FortnightTotals) {
	if totals.Status != models.FortnightStatusDraft {
		s.live.Store(nil)
		return
	}
	s.live.Store(totals)
}

// LiveProjection returns the last published draft projection, or nil when none is cached
func (s *FortnightService) LiveProjection() *FortnightTotals {
	return s.live.Load()
}

// Close settles the draft in one transaction: staged discounts become payment logs,
// broker totals are frozen, items are finalized and the fortnight becomes paid.
// Any failure leaves the draft untouched.
func (s *FortnightService) Close(ctx context.Context, actor Actor, id uint) (*FortnightTotals, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}

	var totals *FortnightTotals
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		f, err := tx.Fortnight.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "quincena", id)
		}
		if !f.MayPay() {
			return conflictError("la quincena %d ya está pagada", f.ID)
		}

		totals, err = computeDraft(ctx, tx, f)
		if err != nil {
			return err
		}
		discounts, err := tx.Discount.FindByFortnight(ctx, f.ID)
		if err != nil {
			return err
		}
		if err := checkOvercommit(ctx, tx, totals, discounts); err != nil {
			return err
		}
		if err := s.applyDiscounts(ctx, tx, f, discounts, actor.UserID); err != nil {
			return err
		}
		if err := freezeTotals(ctx, tx, f, totals); err != nil {
			return err
		}
		if _, err := tx.Commission.UpdateItemsStatus(ctx, f.ID, models.ItemStatusProvisional, models.ItemStatusIdentified); err != nil {
			return fmt.Errorf("finalize identified items: %w", err)
		}
		if _, err := tx.Commission.UpdateItemsStatus(ctx, f.ID, models.ItemStatusUnidentified, models.ItemStatusPending); err != nil {
			return fmt.Errorf("move unidentified items to the adjustment pool: %w", err)
		}
		if err := s.payFoldedReports(ctx, tx, f); err != nil {
			return err
		}

		if err := statemachine.NewFortnightFSM(f).Pay(ctx); err != nil {
			return conflictError("%v", err)
		}
		now := s.now()
		f.PaidAt = &now
		f.PaidBy = &actor.UserID
		if err := tx.Fortnight.Update(ctx, f); err != nil {
			return fmt.Errorf("update fortnight: %w", err)
		}
		totals.Status = f.Status

		if f.NotifyBrokers {
			return s.notifyPaid(ctx, tx, f, totals)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.live.Store(nil)
	s.audit.Record(ctx, actor, models.AuditClose, "Fortnight", id,
		fmt.Sprintf("Quincena %s pagada: bruto %s, descuentos %s, neto %s", totals.PeriodKey, money(totals.Gross), money(totals.Discounts), money(totals.Net)))
	return totals, nil
}

// applyDiscounts turns each staged discount into a fortnight_discount payment log and removes the staging rows
func (s *FortnightService) applyDiscounts(ctx context.Context, tx *repository.Repositories, f *models.Fortnight, discounts []models.TemporaryDiscount, actorID uint) error {
	sort.Slice(discounts, func(i, j int) bool { return discounts[i].AdvanceID < discounts[j].AdvanceID })
	fortnightID := f.ID
	ref := f.PeriodKey()
	for _, d := range discounts {
		adv, err := tx.Advance.FindByIDForUpdate(ctx, d.AdvanceID)
		if err != nil {
			return notFound(err, "adelanto", d.AdvanceID)
		}
		log := &models.AdvancePaymentLog{
			AdvanceID:   adv.ID,
			Amount:      d.Amount,
			PaymentType: models.PaymentTypeFortnightDiscount,
			Reference:   &ref,
			FortnightID: &fortnightID,
			AppliedBy:   actorID,
		}
		if err := recordRecovery(ctx, tx, adv, log); err != nil {
			return err
		}
	}
	return tx.Discount.DeleteByFortnight(ctx, f.ID)
}

func freezeTotals(ctx context.Context, tx *repository.Repositories, f *models.Fortnight, totals *FortnightTotals) error {
	lines := append([]BrokerLine(nil), totals.Brokers...)
	if totals.House != nil {
		lines = append(lines, *totals.House)
	}
	rows := make([]models.BrokerFortnightTotal, 0, len(lines))
	for _, l := range lines {
		rows = append(rows, models.BrokerFortnightTotal{
			FortnightID:      f.ID,
			BrokerID:         l.BrokerID,
			CommissionAmount: l.Commission,
			AdjustmentAmount: l.Adjustments,
			CarriedAmount:    l.Carried,
			GrossAmount:      l.Gross,
			DiscountAmount:   l.Discounts,
			NetAmount:        l.Net,
			ItemCount:        l.ItemCount,
			IsHouse:          l.IsHouse,
			BankAccountNo:    l.BankAccountNo,
		})
	}
	if err := tx.BrokerTotal.CreateBatch(ctx, rows); err != nil {
		return fmt.Errorf("freeze broker totals: %w", err)
	}
	return nil
}

// payFoldedReports settles the next-fortnight adjustments that were part of this fortnight's gross
func (s *FortnightService) payFoldedReports(ctx context.Context, tx *repository.Repositories, f *models.Fortnight) error {
	reports, err := tx.Adjustment.FindByFortnight(ctx, f.ID)
	if err != nil {
		return err
	}
	now := s.now()
	for i := range reports {
		r := &reports[i]
		if r.Status != models.AdjustmentStatusApproved {
			continue
		}
		if err := statemachine.NewAdjustmentFSM(r).Pay(ctx); err != nil {
			return conflictError("%v", err)
		}
		r.PaidAt = &now
		if err := tx.Adjustment.Update(ctx, r); err != nil {
			return fmt.Errorf("pay adjustment report %d: %w", r.ID, err)
		}
	}
	return nil
}

func (s *FortnightService) notifyPaid(ctx context.Context, tx *repository.Repositories, f *models.Fortnight, totals *FortnightTotals) error {
	outbox := s.notifications.Outbox(tx)
	for _, l := range totals.Brokers {
		broker, err := tx.Broker.FindByID(ctx, l.BrokerID)
		if err != nil {
			return notFound(err, "corredor", l.BrokerID)
		}
		msg := fmt.Sprintf("Tu pago de la quincena %s fue procesado: bruto %s, descuentos %s, neto %s.",
			totals.PeriodKey, money(l.Gross), money(l.Discounts), money(l.Net))
		if err := outbox.NotifyBroker(ctx, broker, "Quincena pagada", msg, models.NotificationTypeFortnightPaid, &f.ID); err != nil {
			return fmt.Errorf("notify broker %d: %w", l.BrokerID, err)
		}
	}
	return nil
}

// Discard deletes an unpaid draft with its imports, items and staged discounts.
// Advances generated by recurrences stay because they are broker obligations.
func (s *FortnightService) Discard(ctx context.Context, actor Actor, id uint) error {
	if err := requireMaster(actor); err != nil {
		return err
	}
	var key string
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		f, err := tx.Fortnight.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "quincena", id)
		}
		if !f.MayDiscard() {
			return conflictError("la quincena %d ya está pagada y no puede descartarse", f.ID)
		}
		key = f.PeriodKey()

		if err := tx.Discount.DeleteByFortnight(ctx, f.ID); err != nil {
			return err
		}
		if err := reverseAppliedDiscounts(ctx, tx, f.ID); err != nil {
			return err
		}
		if err := tx.Commission.DeleteItemsByFortnight(ctx, f.ID); err != nil {
			return err
		}
		if err := tx.Commission.DeleteImportsByFortnight(ctx, f.ID); err != nil {
			return err
		}
		if err := tx.Adjustment.UnlinkFortnight(ctx, f.ID); err != nil {
			return err
		}
		carried, err := tx.BrokerTotal.FindReleasedInto(ctx, f.ID)
		if err != nil {
			return err
		}
		for i := range carried {
			row := &carried[i]
			row.IsRetained = true
			row.ReleasedAt = nil
			row.ReleaseMode = nil
			row.ReleaseFortnightID = nil
			if err := tx.BrokerTotal.Update(ctx, row); err != nil {
				return err
			}
		}
		return tx.Fortnight.Delete(ctx, f.ID)
	})
	if err != nil {
		return err
	}

	s.live.Store(nil)
	s.audit.Record(ctx, actor, models.AuditDelete, "Fortnight", id, fmt.Sprintf("Quincena %s descartada", key))
	return nil
}

// reverseAppliedDiscounts drops the fortnight_discount payments charged to a discarded draft
// and moves their advances back to the status their remaining logs justify
func reverseAppliedDiscounts(ctx context.Context, tx *repository.Repositories, fortnightID uint) error {
	logs, err := tx.Advance.FindLogsByFortnight(ctx, fortnightID)
	if err != nil {
		return err
	}
	if len(logs) == 0 {
		return nil
	}
	if err := tx.Advance.DeleteLogsByFortnight(ctx, fortnightID); err != nil {
		return fmt.Errorf("delete payment logs of fortnight %d: %w", fortnightID, err)
	}
	seen := make(map[uint]bool)
	for _, l := range logs {
		if seen[l.AdvanceID] {
			continue
		}
		seen[l.AdvanceID] = true
		adv, err := tx.Advance.FindByIDForUpdate(ctx, l.AdvanceID)
		if err != nil {
			return notFound(err, "adelanto", l.AdvanceID)
		}
		paid, err := tx.Advance.SumPaid(ctx, adv.ID)
		if err != nil {
			return err
		}
		if err := statemachine.NewAdvanceFSM(adv).Reconcile(ctx, paid); err != nil {
			return conflictError("%v", err)
		}
		if err := tx.Advance.Update(ctx, adv); err != nil {
			return err
		}
	}
	return nil
}
