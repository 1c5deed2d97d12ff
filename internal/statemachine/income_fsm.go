package statemachine

import (
	"context"
	"fmt"
	"time"

	"github.com/looplab/fsm"
	"github.com/sjperalta/fintera-matching-api/internal/models"
)

// Income lifecycle events
const (
	EventApprove = "approve"
	EventReject  = "reject"
	EventCredit  = "credit"
	EventPay     = "pay"
)

// IncomeFSM wraps an income record with its state machine.
// The eligible state is derived from time and never stored, so the machine
// works on stored statuses and the eligibility gate is checked by the wrapper.
type IncomeFSM struct {
	record *models.IncomeRecord
	fsm    *fsm.FSM
}

// NewIncomeFSM creates a new income state machine
func NewIncomeFSM(record *models.IncomeRecord) *IncomeFSM {
	ifsm := &IncomeFSM{
		record: record,
	}

	ifsm.fsm = fsm.NewFSM(
		string(record.Status),
		fsm.Events{
			// pending (eligible) → approved
			{Name: EventApprove, Src: []string{string(models.IncomeStatusPending)}, Dst: string(models.IncomeStatusApproved)},

			// pending (eligible) → rejected, terminal
			{Name: EventReject, Src: []string{string(models.IncomeStatusPending)}, Dst: string(models.IncomeStatusRejected)},

			// approved → credited
			{Name: EventCredit, Src: []string{string(models.IncomeStatusApproved)}, Dst: string(models.IncomeStatusCredited)},

			// credited → paid
			{Name: EventPay, Src: []string{string(models.IncomeStatusCredited)}, Dst: string(models.IncomeStatusPaid)},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				ifsm.record.Status = models.IncomeStatus(e.Dst)
			},
		},
	)

	return ifsm
}

// Approve transitions an eligible record to approved
func (f *IncomeFSM) Approve(ctx context.Context, now time.Time) error {
	if !f.record.MayApprove(now) {
		return fmt.Errorf("income record cannot be approved in current state: %s", f.record.EffectiveStatus(now))
	}
	return f.fire(ctx, EventApprove)
}

// Reject transitions an eligible record to rejected
func (f *IncomeFSM) Reject(ctx context.Context, now time.Time) error {
	if !f.record.MayReject(now) {
		return fmt.Errorf("income record cannot be rejected in current state: %s", f.record.EffectiveStatus(now))
	}
	return f.fire(ctx, EventReject)
}

// Credit transitions an approved record to credited
func (f *IncomeFSM) Credit(ctx context.Context) error {
	if !f.record.MayCredit() {
		return fmt.Errorf("income record cannot be credited in current state: %s", f.record.Status)
	}
	return f.fire(ctx, EventCredit)
}

// Pay transitions a credited record to paid
func (f *IncomeFSM) Pay(ctx context.Context) error {
	if !f.record.MayPay() {
		return fmt.Errorf("income record cannot be paid in current state: %s", f.record.Status)
	}
	return f.fire(ctx, EventPay)
}

func (f *IncomeFSM) fire(ctx context.Context, event string) error {
	if err := f.fsm.Event(ctx, event); err != nil {
		return fmt.Errorf("failed to %s income record: %w", event, err)
	}
	return nil
}

// Can checks if a transition is possible
func (f *IncomeFSM) Can(event string) bool {
	return f.fsm.Can(event)
}

// AvailableTransitions lists the events allowed from the current state
func (f *IncomeFSM) AvailableTransitions() []string {
	return f.fsm.AvailableTransitions()
}
