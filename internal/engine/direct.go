package engine

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/aoba-lab/daiko/internal/shift"
)

// UI-driven entry points. Button and command front-ends identify the target
// shift directly, so the slot extraction stage is skipped and only the
// reconciliation semantics apply.

// RequestShift offers part or all of the caller's shift for substitution.
// A nil rng offers the whole interval.
func (e *Engine) RequestShift(ctx context.Context, callerID string, shiftID uuid.UUID, rng *shift.TimeRange, way UseWay) (shift.Plan, error) {
	original, err := e.cal.ShiftByID(ctx, shiftID)
	if err != nil {
		return shift.Plan{}, fmt.Errorf("load shift %s: %w", shiftID, err)
	}
	if original.SlackID != callerID {
		return shift.Plan{}, fmt.Errorf("shift %s does not belong to %s", shiftID, callerID)
	}
	if original.Requested {
		return shift.Plan{}, fmt.Errorf("shift %s is already offered", shiftID)
	}
	return e.applyDirect(ctx, callerID, original, rng, shift.Request, way)
}

// ContractShift accepts part or all of an open offer on behalf of callerID.
func (e *Engine) ContractShift(ctx context.Context, callerID string, shiftID uuid.UUID, rng *shift.TimeRange, way UseWay) (shift.Plan, error) {
	original, err := e.cal.ShiftByID(ctx, shiftID)
	if err != nil {
		return shift.Plan{}, fmt.Errorf("load shift %s: %w", shiftID, err)
	}
	if !original.Requested {
		return shift.Plan{}, fmt.Errorf("shift %s is not an open offer", shiftID)
	}
	return e.applyDirect(ctx, callerID, original, rng, shift.Contract, way)
}

func (e *Engine) applyDirect(ctx context.Context, callerID string, original shift.Shift, rng *shift.TimeRange, action shift.Action, way UseWay) (shift.Plan, error) {
	var window shift.TimeRange
	if rng != nil {
		window = *rng
	}
	rs, re := window.Resolve(original)

	owner := shift.NewOwner{StaffName: original.StaffName, SlackID: original.SlackID}
	if action == shift.Contract {
		name, err := e.members.DisplayName(ctx, callerID)
		if err != nil {
			return shift.Plan{}, fmt.Errorf("resolve contractor name: %w", err)
		}
		owner = shift.NewOwner{StaffName: name, SlackID: callerID}
	}

	plan, err := shift.Reconcile(ctx, e.cal, original, rs, re, owner, action)
	if err != nil {
		return shift.Plan{}, err
	}

	if err := e.notifier.NotifyChannel(ctx, msgNotice(action, callerID, original, plan, "")); err != nil {
		e.logger.Warn("failed to deliver notice", "error", err)
	}
	e.publishPlan(action, plan)
	if err := e.usage.RecordUsage(ctx, callerID, way, action); err != nil {
		e.logger.Warn("failed to record usage", "user", callerID, "error", err)
	}
	return plan, nil
}
