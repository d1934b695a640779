package statemachine

import (
	"context"
	"fmt"

	"github.com/lissa/commissions-api/internal/models"
	"github.com/looplab/fsm"
)

// AdjustmentFSM wraps an adjustment report with its state machine
type AdjustmentFSM struct {
	report *models.AdjustmentReport
	fsm    *fsm.FSM
}

// NewAdjustmentFSM creates a new adjustment report state machine
func NewAdjustmentFSM(report *models.AdjustmentReport) *AdjustmentFSM {
	afsm := &AdjustmentFSM{
		report: report,
	}

	afsm.fsm = fsm.NewFSM(
		report.Status,
		fsm.Events{
			// pending → approved
			{Name: "approve", Src: []string{models.AdjustmentStatusPending}, Dst: models.AdjustmentStatusApproved},

			// pending → rejected (terminal)
			{Name: "reject", Src: []string{models.AdjustmentStatusPending}, Dst: models.AdjustmentStatusRejected},

			// approved → paid
			{Name: "pay", Src: []string{models.AdjustmentStatusApproved}, Dst: models.AdjustmentStatusPaid},
		},
		fsm.Callbacks{},
	)

	return afsm
}

// Approve transitions the report to approved
func (a *AdjustmentFSM) Approve(ctx context.Context) error {
	if !a.report.MayApprove() {
		return fmt.Errorf("adjustment report cannot be approved in current state: %s", a.report.Status)
	}

	if err := a.fsm.Event(ctx, "approve"); err != nil {
		return fmt.Errorf("failed to approve adjustment report: %w", err)
	}

	a.report.Status = a.fsm.Current()
	return nil
}

// Reject transitions the report to rejected
func (a *AdjustmentFSM) Reject(ctx context.Context) error {
	if !a.report.MayReject() {
		return fmt.Errorf("adjustment report cannot be rejected in current state: %s", a.report.Status)
	}

	if err := a.fsm.Event(ctx, "reject"); err != nil {
		return fmt.Errorf("failed to reject adjustment report: %w", err)
	}

	a.report.Status = a.fsm.Current()
	return nil
}

// Pay transitions an approved report to paid. Timing rules are enforced by the caller
// because the fortnight close pays next-fortnight reports through this same event.
func (a *AdjustmentFSM) Pay(ctx context.Context) error {
	if err := a.fsm.Event(ctx, "pay"); err != nil {
		return fmt.Errorf("failed to pay adjustment report: %w", err)
	}

	a.report.Status = a.fsm.Current()
	return nil
}

// Current returns the current state
func (a *AdjustmentFSM) Current() string {
	return a.fsm.Current()
}

// Can checks if a transition is possible
func (a *AdjustmentFSM) Can(event string) bool {
	return a.fsm.Can(event)
}
