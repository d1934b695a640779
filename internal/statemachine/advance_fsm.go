package statemachine

import (
	"context"
	"fmt"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/looplab/fsm"
	"github.com/shopspring/decimal"
)

// AdvanceFSM wraps an advance with its state machine
type AdvanceFSM struct {
	advance *models.Advance
	fsm     *fsm.FSM
}

// NewAdvanceFSM creates a new advance state machine
func NewAdvanceFSM(advance *models.Advance) *AdvanceFSM {
	afsm := &AdvanceFSM{
		advance: advance,
	}

	afsm.fsm = fsm.NewFSM(
		advance.Status,
		fsm.Events{
			// some of the balance recovered; paid advances reopen when their amount is raised
			{Name: "recover_partial", Src: []string{models.AdvanceStatusPending, models.AdvanceStatusPaid}, Dst: models.AdvanceStatusPartial},

			// balance fully recovered
			{Name: "settle", Src: []string{models.AdvanceStatusPending, models.AdvanceStatusPartial}, Dst: models.AdvanceStatusPaid},

			// nothing recovered
			{Name: "reset", Src: []string{models.AdvanceStatusPartial, models.AdvanceStatusPaid}, Dst: models.AdvanceStatusPending},
		},
		fsm.Callbacks{},
	)

	return afsm
}

// Reconcile moves the advance to the status implied by the amount recovered so far
func (a *AdvanceFSM) Reconcile(ctx context.Context, paid decimal.Decimal) error {
	remaining := a.advance.RemainingAfter(paid)
	if remaining.IsNegative() {
		return fmt.Errorf("advance %d would be overpaid by %s", a.advance.ID, remaining.Neg().StringFixed(2))
	}

	event := "recover_partial"
	target := models.AdvanceStatusPartial
	switch {
	case remaining.IsZero():
		event, target = "settle", models.AdvanceStatusPaid
	case paid.IsZero():
		event, target = "reset", models.AdvanceStatusPending
	}

	if a.fsm.Current() == target {
		return nil
	}

	if err := a.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("failed to update advance status: %w", err)
	}

	a.advance.Status = a.fsm.Current()
	return nil
}

// Current returns the current state
func (a *AdvanceFSM) Current() string {
	return a.fsm.Current()
}
