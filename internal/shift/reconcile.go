package shift

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Relation is the position of a requested sub-interval within the original
// shift's interval.
type Relation int

const (
	RelMatch   Relation = iota // consumes the whole shift
	RelFront                   // shares the start boundary
	RelBack                    // shares the end boundary
	RelInclude                 // strictly inside
)

func (r Relation) String() string {
	switch r {
	case RelMatch:
		return "match"
	case RelFront:
		return "front"
	case RelBack:
		return "back"
	case RelInclude:
		return "include"
	default:
		return "invalid"
	}
}

// ErrRangeNotContained is fatal: the requested window escapes the original
// interval, which means stale data or a logic defect upstream.
type ErrRangeNotContained struct {
	Original Shift
	ReqStart time.Time
	ReqEnd   time.Time
}

func (e *ErrRangeNotContained) Error() string {
	return fmt.Sprintf("range %s~%s not contained in shift %s (%s~%s)",
		e.ReqStart.Format("15:04"), e.ReqEnd.Format("15:04"),
		e.Original.ID,
		e.Original.Start.Format("15:04"), e.Original.End.Format("15:04"))
}

// Classify determines the relation of [rs,re) to the original interval.
// Precondition: original.Start <= rs < re <= original.End.
func Classify(original Shift, rs, re time.Time) (Relation, error) {
	if !rs.Before(re) || rs.Before(original.Start) || original.End.Before(re) {
		return 0, &ErrRangeNotContained{Original: original, ReqStart: rs, ReqEnd: re}
	}
	startsAt := rs.Equal(original.Start)
	endsAt := re.Equal(original.End)
	switch {
	case startsAt && endsAt:
		return RelMatch, nil
	case startsAt:
		return RelFront, nil
	case endsAt:
		return RelBack, nil
	default:
		return RelInclude, nil
	}
}

// Mutator is the slice of the calendar collaborator the reconciler needs.
type Mutator interface {
	InsertShift(ctx context.Context, s Shift) (uuid.UUID, error)
	UpdateShift(ctx context.Context, s Shift) error
	DeleteShift(ctx context.Context, id uuid.UUID) error
}

// Plan records what a reconciliation did, for notices and event publishing.
type Plan struct {
	Relation Relation
	New      Shift   // the interval handed to the new owner (or offered)
	Remnants []Shift // what is left of the original, in time order
}

// NewOwner identifies who the reconciled interval belongs to afterwards.
// For Request it is the original owner (the interval becomes an open offer);
// for Contract it is the accepting user.
type NewOwner struct {
	StaffName string
	SlackID   string
}

// Reconcile applies the substitution [rs,re) to original. The new interval
// is inserted under owner with Requested true for Request and false
// otherwise; the original is shrunk, split or deleted so that the union of
// all resulting intervals equals the original interval with no gap and no
// overlap.
func Reconcile(ctx context.Context, cal Mutator, original Shift, rs, re time.Time, owner NewOwner, action Action) (Plan, error) {
	rel, err := Classify(original, rs, re)
	if err != nil {
		return Plan{}, err
	}

	newShift := Shift{
		StaffName: owner.StaffName,
		SlackID:   owner.SlackID,
		Start:     rs,
		End:       re,
		Requested: action == Request,
	}
	id, err := cal.InsertShift(ctx, newShift)
	if err != nil {
		return Plan{}, fmt.Errorf("insert substituted interval: %w", err)
	}
	newShift.ID = id

	plan := Plan{Relation: rel, New: newShift}

	switch rel {
	case RelMatch:
		if err := cal.DeleteShift(ctx, original.ID); err != nil {
			return Plan{}, fmt.Errorf("delete consumed shift: %w", err)
		}

	case RelFront:
		rest := original
		rest.Start = re
		if err := cal.UpdateShift(ctx, rest); err != nil {
			return Plan{}, fmt.Errorf("shrink shift to back remnant: %w", err)
		}
		plan.Remnants = []Shift{rest}

	case RelBack:
		rest := original
		rest.End = rs
		if err := cal.UpdateShift(ctx, rest); err != nil {
			return Plan{}, fmt.Errorf("shrink shift to front remnant: %w", err)
		}
		plan.Remnants = []Shift{rest}

	case RelInclude:
		front := original
		front.End = rs
		if err := cal.UpdateShift(ctx, front); err != nil {
			return Plan{}, fmt.Errorf("shrink shift to front remnant: %w", err)
		}
		back := Shift{
			StaffName: original.StaffName,
			SlackID:   original.SlackID,
			Start:     re,
			End:       original.End,
			Requested: original.Requested,
		}
		backID, err := cal.InsertShift(ctx, back)
		if err != nil {
			return Plan{}, fmt.Errorf("insert back remnant: %w", err)
		}
		back.ID = backID
		plan.Remnants = []Shift{front, back}
	}

	return plan, nil
}
