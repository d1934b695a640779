package statemachine

import (
	"context"
	"fmt"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/looplab/fsm"
)

// FortnightFSM wraps a fortnight with its state machine
type FortnightFSM struct {
	fortnight *models.Fortnight
	fsm       *fsm.FSM
}

// NewFortnightFSM creates a new fortnight state machine
func NewFortnightFSM(fortnight *models.Fortnight) *FortnightFSM {
	ffsm := &FortnightFSM{
		fortnight: fortnight,
	}

	ffsm.fsm = fsm.NewFSM(
		fortnight.Status,
		fsm.Events{
			// draft → paid, one way
			{Name: "pay", Src: []string{models.FortnightStatusDraft}, Dst: models.FortnightStatusPaid},
		},
		fsm.Callbacks{},
	)

	return ffsm
}

// Pay transitions the fortnight to paid
func (f *FortnightFSM) Pay(ctx context.Context) error {
	if !f.fortnight.MayPay() {
		return fmt.Errorf("fortnight cannot be paid in current state: %s", f.fortnight.Status)
	}

	if err := f.fsm.Event(ctx, "pay"); err != nil {
		return fmt.Errorf("failed to pay fortnight: %w", err)
	}

	f.fortnight.Status = f.fsm.Current()
	return nil
}

// Current returns the current state
func (f *FortnightFSM) Current() string {
	return f.fsm.Current()
}
