package engine

import "github.com/aoba-lab/daiko/internal/shift"

// Kind is the coarse result of a turn.
type Kind int

const (
	KindCompleted Kind = iota
	KindNeedsClarification
	KindFatal
)

func (k Kind) String() string {
	switch k {
	case KindCompleted:
		return "completed"
	case KindNeedsClarification:
		return "needs_clarification"
	case KindFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Reason names why a turn did not complete.
type Reason string

const (
	ReasonActionNotFound    Reason = "action_not_found"
	ReasonInvalidTimeFormat Reason = "invalid_time_format"
	ReasonShiftNotFound     Reason = "shift_not_found"
	ReasonAmbiguousMatch    Reason = "ambiguous_match"
	ReasonRangeNotContained Reason = "range_not_contained"
	ReasonCollaborator      Reason = "collaborator_failure"
)

// Outcome is the tagged result of ResolveTurn. Recoverable failures carry
// the prompt already delivered to the user; fatal ones carry the error.
type Outcome struct {
	Kind   Kind
	Reason Reason
	Prompt string

	Action shift.Action
	Shifts []shift.Shift
	Range  *shift.TimeRange
	Plan   *shift.Plan
	Err    error
}
