package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/lissa/commissions-api/internal/repository"
	"github.com/lissa/commissions-api/internal/statemachine"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// AdvanceBalance is an advance with its derived balance
type AdvanceBalance struct {
	models.Advance
	Paid      decimal.Decimal `json:"paid"`
	Remaining decimal.Decimal `json:"remaining_balance"`
}

// CreateAdvanceInput describes a one-off advance
type CreateAdvanceInput struct {
	BrokerID uint            `json:"broker_id" validate:"required"`
	Amount   decimal.Decimal `json:"amount" validate:"gt=0"`
	Reason   string          `json:"reason" validate:"required,max=500"`
}

// ApplyPaymentInput records a recovery against an advance. A fortnight_discount may name
// the draft whose broker gross it comes out of.
type ApplyPaymentInput struct {
	AdvanceID      uint            `json:"advance_id" validate:"required"`
	Amount         decimal.Decimal `json:"amount" validate:"gt=0"`
	PaymentType    string          `json:"payment_type" validate:"required,oneof=fortnight_discount external_cash external_transfer"`
	Reference      string          `json:"reference" validate:"max=128"`
	BankTransferID *uint           `json:"bank_transfer_id"`
	FortnightID    *uint           `json:"fortnight_id"`
}

// EditAdvanceInput changes an advance's amount or reason
type EditAdvanceInput struct {
	Amount *decimal.Decimal `json:"amount" validate:"omitempty,gt=0"`
	Reason *string          `json:"reason" validate:"omitempty,max=500"`
}

type AdvanceService struct {
	repos *repository.Repositories
	audit *AuditService
}

func NewAdvanceService(repos *repository.Repositories, audit *AuditService) *AdvanceService {
	return &AdvanceService{repos: repos, audit: audit}
}

// Create registers a new pending advance
func (s *AdvanceService) Create(ctx context.Context, actor Actor, in CreateAdvanceInput) (*models.Advance, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, validationError("el monto del adelanto debe ser mayor a cero")
	}
	if _, err := s.repos.Broker.FindByID(ctx, in.BrokerID); err != nil {
		return nil, notFound(err, "corredor", in.BrokerID)
	}

	adv := &models.Advance{
		BrokerID:  in.BrokerID,
		Amount:    in.Amount,
		Reason:    strings.TrimSpace(in.Reason),
		Status:    models.AdvanceStatusPending,
		CreatedBy: actor.UserID,
	}
	if err := s.repos.Advance.Create(ctx, adv); err != nil {
		return nil, fmt.Errorf("create advance: %w", err)
	}
	s.audit.Record(ctx, actor, models.AuditCreate, "Advance", adv.ID,
		fmt.Sprintf("Adelanto de %s para corredor %d", money(adv.Amount), adv.BrokerID))
	return adv, nil
}

// Get returns the advance with its current balance
func (s *AdvanceService) Get(ctx context.Context, id uint) (*AdvanceBalance, error) {
	adv, err := s.repos.Advance.FindByID(ctx, id)
	if err != nil {
		return nil, notFound(err, "adelanto", id)
	}
	paid, err := s.repos.Advance.SumPaid(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("sum advance %d payments: %w", id, err)
	}
	return &AdvanceBalance{Advance: *adv, Paid: paid, Remaining: adv.RemainingAfter(paid)}, nil
}

// List returns advances with balances. Brokers only see their own.
func (s *AdvanceService) List(ctx context.Context, actor Actor, filter repository.AdvanceFilter) ([]AdvanceBalance, error) {
	if !actor.IsMaster() {
		if actor.BrokerID == nil {
			return nil, forbiddenError("el usuario no está vinculado a un corredor")
		}
		filter.BrokerID = actor.BrokerID
	}
	advances, err := s.repos.Advance.List(ctx, filter)
	if err != nil {
		return nil, err
	}
	ids := make([]uint, len(advances))
	for i := range advances {
		ids[i] = advances[i].ID
	}
	paid, err := s.repos.Advance.SumPaidByAdvance(ctx, ids)
	if err != nil {
		return nil, err
	}
	out := make([]AdvanceBalance, len(advances))
	for i, adv := range advances {
		p := paid[adv.ID]
		out[i] = AdvanceBalance{Advance: adv, Paid: p, Remaining: adv.RemainingAfter(p)}
	}
	return out, nil
}

// History returns the payment logs of an advance, oldest first
func (s *AdvanceService) History(ctx context.Context, id uint) ([]models.AdvancePaymentLog, error) {
	if _, err := s.repos.Advance.FindByID(ctx, id); err != nil {
		return nil, notFound(err, "adelanto", id)
	}
	return s.repos.Advance.FindLogs(ctx, id)
}

// ApplyPayment records a recovery against an advance with the advance row locked.
// A fortnight_discount tied to a draft must fit in the broker's gross left after staged discounts.
func (s *AdvanceService) ApplyPayment(ctx context.Context, actor Actor, in ApplyPaymentInput) (*models.AdvancePaymentLog, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	if !in.Amount.IsPositive() {
		return nil, validationError("el monto del pago debe ser mayor a cero")
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}
	if in.PaymentType == models.PaymentTypeExternalTransfer && in.BankTransferID == nil && strings.TrimSpace(in.Reference) == "" {
		return nil, mismatchError("un pago por transferencia requiere la referencia bancaria")
	}
	if in.FortnightID != nil && in.PaymentType != models.PaymentTypeFortnightDiscount {
		return nil, validationError("solo un descuento de quincena puede asociarse a una quincena")
	}

	var log *models.AdvancePaymentLog
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		// the draft is locked before the advance, as staging does
		var draft *models.Fortnight
		if in.FortnightID != nil {
			f, err := lockDraft(ctx, tx, *in.FortnightID)
			if err != nil {
				return err
			}
			draft = f
		}
		adv, err := tx.Advance.FindByIDForUpdate(ctx, in.AdvanceID)
		if err != nil {
			return notFound(err, "adelanto", in.AdvanceID)
		}
		if !adv.MayReceivePayment() {
			return conflictError("el adelanto %d ya está saldado", adv.ID)
		}
		log = &models.AdvancePaymentLog{
			AdvanceID:   adv.ID,
			Amount:      in.Amount,
			PaymentType: in.PaymentType,
			AppliedBy:   actor.UserID,
		}
		if ref := strings.TrimSpace(in.Reference); ref != "" {
			log.Reference = &ref
		}

		if draft != nil {
			if err := checkDraftRoom(ctx, tx, draft, adv.BrokerID, in.Amount); err != nil {
				return err
			}
			log.FortnightID = &draft.ID
			if log.Reference == nil {
				ref := draft.PeriodKey()
				log.Reference = &ref
			}
		}

		var transfer *models.BankTransfer
		if in.PaymentType == models.PaymentTypeExternalTransfer {
			transfer, err = lockTransfer(ctx, tx, in)
			if err != nil {
				return err
			}
			if transfer.Remaining().LessThan(in.Amount) {
				return mismatchError("la transferencia %s solo tiene %s disponible y el pago es de %s",
					transfer.Reference, money(transfer.Remaining()), money(in.Amount))
			}
			log.BankTransferID = &transfer.ID
			if log.Reference == nil {
				ref := transfer.Reference
				log.Reference = &ref
			}
		}

		if err := recordRecovery(ctx, tx, adv, log); err != nil {
			return err
		}

		if transfer != nil {
			if err := consumeTransfer(ctx, tx, transfer, log); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.audit.Record(ctx, actor, models.AuditPay, "Advance", in.AdvanceID,
		fmt.Sprintf("Abono %s de %s", in.PaymentType, money(in.Amount)))
	return log, nil
}

// recordRecovery appends a payment log and moves the advance to its new status.
// The advance must already be locked by the caller's transaction.
func recordRecovery(ctx context.Context, tx *repository.Repositories, adv *models.Advance, log *models.AdvancePaymentLog) error {
	paid, err := tx.Advance.SumPaid(ctx, adv.ID)
	if err != nil {
		return fmt.Errorf("sum advance %d payments: %w", adv.ID, err)
	}
	remaining := adv.RemainingAfter(paid)
	if log.Amount.GreaterThan(remaining) {
		return conflictError("el pago de %s excede el saldo pendiente de %s del adelanto %d",
			money(log.Amount), money(remaining), adv.ID)
	}
	if err := tx.Advance.CreateLog(ctx, log); err != nil {
		return fmt.Errorf("create payment log: %w", err)
	}
	if err := statemachine.NewAdvanceFSM(adv).Reconcile(ctx, paid.Add(log.Amount)); err != nil {
		return conflictError("%v", err)
	}
	return tx.Advance.Update(ctx, adv)
}

// checkDraftRoom refuses a direct fortnight discount larger than the broker's gross
// minus what is already discounted in the draft
func checkDraftRoom(ctx context.Context, tx *repository.Repositories, f *models.Fortnight, brokerID uint, amount decimal.Decimal) error {
	totals, err := computeDraft(ctx, tx, f)
	if err != nil {
		return err
	}
	line, _ := totals.Line(brokerID)
	if available := line.Gross.Sub(line.Discounts); amount.GreaterThan(available) {
		return conflictError("el descuento de %s excede el bruto disponible de %s del corredor %d en la quincena %s",
			money(amount), money(available), brokerID, f.PeriodKey())
	}
	return nil
}

func lockTransfer(ctx context.Context, tx *repository.Repositories, in ApplyPaymentInput) (*models.BankTransfer, error) {
	if in.BankTransferID != nil {
		transfer, err := tx.BankTransfer.FindByIDForUpdate(ctx, *in.BankTransferID)
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, mismatchError("la transferencia bancaria %d no existe en el registro", *in.BankTransferID)
		}
		if err != nil {
			return nil, err
		}
		if ref := strings.TrimSpace(in.Reference); ref != "" && ref != transfer.Reference {
			return nil, mismatchError("la referencia %s no corresponde a la transferencia %d", ref, transfer.ID)
		}
		return transfer, nil
	}
	transfer, err := tx.BankTransfer.FindByReference(ctx, strings.TrimSpace(in.Reference))
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, mismatchError("la referencia bancaria %s no existe en el registro", in.Reference)
	}
	if err != nil {
		return nil, err
	}
	return tx.BankTransfer.FindByIDForUpdate(ctx, transfer.ID)
}

func consumeTransfer(ctx context.Context, tx *repository.Repositories, transfer *models.BankTransfer, log *models.AdvancePaymentLog) error {
	transfer.UsedAmount = transfer.UsedAmount.Add(log.Amount)
	switch {
	case transfer.Remaining().IsZero():
		transfer.Status = models.BankTransferStatusUsed
	default:
		transfer.Status = models.BankTransferStatusPartial
	}
	if err := tx.BankTransfer.Update(ctx, transfer); err != nil {
		return fmt.Errorf("update bank transfer %d: %w", transfer.ID, err)
	}
	usage := &models.BankTransferUsage{
		BankTransferID:      transfer.ID,
		AdvancePaymentLogID: log.ID,
		Amount:              log.Amount,
	}
	if err := tx.BankTransfer.CreateUsage(ctx, usage); err != nil {
		return fmt.Errorf("record bank transfer usage: %w", err)
	}
	return nil
}

// Edit changes the amount or reason. The amount can never drop below what was already recovered.
func (s *AdvanceService) Edit(ctx context.Context, actor Actor, id uint, in EditAdvanceInput) (*models.Advance, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}
	if err := validateInput(in); err != nil {
		return nil, err
	}

	var adv *models.Advance
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		adv, err = tx.Advance.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "adelanto", id)
		}
		if in.Reason != nil {
			adv.Reason = strings.TrimSpace(*in.Reason)
		}
		if in.Amount != nil {
			paid, err := tx.Advance.SumPaid(ctx, id)
			if err != nil {
				return err
			}
			if in.Amount.LessThan(paid) {
				return conflictError("el nuevo monto %s es menor a lo ya abonado (%s)", money(*in.Amount), money(paid))
			}
			staged, err := tx.Discount.FindByAdvance(ctx, id)
			if err != nil {
				return err
			}
			stagedTotal := decimal.Zero
			for _, d := range staged {
				stagedTotal = stagedTotal.Add(d.Amount)
			}
			if in.Amount.Sub(paid).LessThan(stagedTotal) {
				return conflictError("el nuevo monto deja un saldo de %s, menor a los descuentos preparados (%s)",
					money(in.Amount.Sub(paid)), money(stagedTotal))
			}
			adv.Amount = *in.Amount
			if err := statemachine.NewAdvanceFSM(adv).Reconcile(ctx, paid); err != nil {
				return conflictError("%v", err)
			}
		}
		return tx.Advance.Update(ctx, adv)
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, models.AuditUpdate, "Advance", id, fmt.Sprintf("Adelanto actualizado: %s", money(adv.Amount)))
	return adv, nil
}

// Reassign moves an untouched advance to another broker
func (s *AdvanceService) Reassign(ctx context.Context, actor Actor, id, brokerID uint) (*models.Advance, error) {
	if err := requireMaster(actor); err != nil {
		return nil, err
	}

	var adv *models.Advance
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		var err error
		adv, err = tx.Advance.FindByIDForUpdate(ctx, id)
		if err != nil {
			return notFound(err, "adelanto", id)
		}
		if _, err := tx.Broker.FindByID(ctx, brokerID); err != nil {
			return notFound(err, "corredor", brokerID)
		}
		logs, err := tx.Advance.FindLogs(ctx, id)
		if err != nil {
			return err
		}
		if len(logs) > 0 {
			return conflictError("el adelanto %d ya tiene abonos y no puede reasignarse", id)
		}
		staged, err := tx.Discount.FindByAdvance(ctx, id)
		if err != nil {
			return err
		}
		if len(staged) > 0 {
			return conflictError("el adelanto %d tiene descuentos preparados en la quincena abierta", id)
		}
		adv.BrokerID = brokerID
		return tx.Advance.Update(ctx, adv)
	})
	if err != nil {
		return nil, err
	}
	s.audit.Record(ctx, actor, models.AuditUpdate, "Advance", id, fmt.Sprintf("Adelanto reasignado al corredor %d", brokerID))
	return adv, nil
}

// Delete removes an advance with its staged discounts and logs.
// Advances already recovered through a paid fortnight are part of the closed record and stay.
func (s *AdvanceService) Delete(ctx context.Context, actor Actor, id uint) error {
	if err := requireMaster(actor); err != nil {
		return err
	}
	err := s.repos.Transaction(ctx, func(tx *repository.Repositories) error {
		if _, err := tx.Advance.FindByIDForUpdate(ctx, id); err != nil {
			return notFound(err, "adelanto", id)
		}
		closed, err := tx.Advance.CountLogsInPaidFortnights(ctx, id)
		if err != nil {
			return err
		}
		if closed > 0 {
			return conflictError("el adelanto %d tiene descuentos en quincenas pagadas y no puede eliminarse", id)
		}
		if err := tx.Discount.DeleteByAdvance(ctx, id); err != nil {
			return err
		}
		if err := releaseTransferUsage(ctx, tx, id); err != nil {
			return err
		}
		if err := tx.Advance.DeleteLogs(ctx, id); err != nil {
			return err
		}
		return tx.Advance.Delete(ctx, id)
	})
	if err != nil {
		return err
	}
	s.audit.Record(ctx, actor, models.AuditDelete, "Advance", id, "Adelanto eliminado")
	return nil
}

// releaseTransferUsage gives back to each bank transfer what the advance's logs had consumed
func releaseTransferUsage(ctx context.Context, tx *repository.Repositories, advanceID uint) error {
	logs, err := tx.Advance.FindLogs(ctx, advanceID)
	if err != nil {
		return err
	}
	ids := make([]uint, 0, len(logs))
	for _, l := range logs {
		if l.BankTransferID != nil {
			ids = append(ids, l.ID)
		}
	}
	usages, err := tx.BankTransfer.FindUsagesByLogs(ctx, ids)
	if err != nil {
		return err
	}
	for _, u := range usages {
		transfer, err := tx.BankTransfer.FindByIDForUpdate(ctx, u.BankTransferID)
		if err != nil {
			return fmt.Errorf("load bank transfer %d: %w", u.BankTransferID, err)
		}
		transfer.UsedAmount = transfer.UsedAmount.Sub(u.Amount)
		transfer.Status = models.BankTransferStatusPartial
		if !transfer.UsedAmount.IsPositive() {
			transfer.UsedAmount = decimal.Zero
			transfer.Status = models.BankTransferStatusAvailable
		}
		if err := tx.BankTransfer.Update(ctx, transfer); err != nil {
			return err
		}
		if err := tx.BankTransfer.DeleteUsage(ctx, u.ID); err != nil {
			return err
		}
	}
	return nil
}
