// Package engine turns one incoming chat message into a concrete calendar
// change: classify tokens, resolve slots, match the target shift and
// reconcile the requested interval against it.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/aoba-lab/daiko/internal/conversation"
	"github.com/aoba-lab/daiko/internal/extract"
	"github.com/aoba-lab/daiko/internal/match"
	"github.com/aoba-lab/daiko/internal/shift"
	"github.com/aoba-lab/daiko/internal/token"
)

// Calendar is the engine's view of the shift storage collaborator.
type Calendar interface {
	match.Finder
	shift.Mutator
	ShiftByID(ctx context.Context, id uuid.UUID) (shift.Shift, error)
}

// Directory resolves a slack id to a display name.
type Directory interface {
	DisplayName(ctx context.Context, slackID string) (string, error)
}

// Notifier delivers prompts and confirmations. Failures are logged, not
// propagated: delivery is fire-and-forget from the engine's perspective.
type Notifier interface {
	NotifyUser(ctx context.Context, slackID, text string) error
	NotifyChannel(ctx context.Context, text string) error
}

// UseWay is which front-end surface a completed action came through.
type UseWay string

const (
	UseChat    UseWay = "chat"
	UseButtons UseWay = "buttons"
	UseCommand UseWay = "command"
)

// UsageRecorder appends the completed-action audit trail.
type UsageRecorder interface {
	RecordUsage(ctx context.Context, slackID string, way UseWay, action shift.Action) error
}

// Publisher emits completion events onto the bus. Optional.
type Publisher interface {
	Publish(subject string, data any) error
}

const (
	SubjectShiftRequested  = "daiko.shift.requested"
	SubjectShiftContracted = "daiko.shift.contracted"
)

// ShiftEvent is the bus payload for a completed request or contract.
type ShiftEvent struct {
	ShiftID   string `json:"shift_id"`
	StaffName string `json:"staff_name"`
	SlackID   string `json:"slack_id"`
	Start     string `json:"start"`
	End       string `json:"end"`
	Relation  string `json:"relation"`
}

type Engine struct {
	classifier token.Classifier
	conv       conversation.Store
	cal        Calendar
	matcher    *match.Matcher
	members    Directory
	notifier   Notifier
	usage      UsageRecorder
	events     Publisher
	logger     *slog.Logger
	now        func() time.Time
}

func New(classifier token.Classifier, conv conversation.Store, cal Calendar, members Directory, notifier Notifier, usage UsageRecorder, logger *slog.Logger) *Engine {
	return &Engine{
		classifier: classifier,
		conv:       conv,
		cal:        cal,
		matcher:    match.New(cal, logger),
		members:    members,
		notifier:   notifier,
		usage:      usage,
		logger:     logger,
		now:        time.Now,
	}
}

// WithEvents attaches a bus publisher for completion events.
func (e *Engine) WithEvents(p Publisher) *Engine {
	e.events = p
	return e
}

// WithClock pins the engine's clock. Test hook.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// ResolveTurn handles one chat message from userID. Every path delivers its
// own user-visible reply through the notifier; the returned Outcome tells
// the transport what happened.
func (e *Engine) ResolveTurn(ctx context.Context, userID, rawText string) Outcome {
	now := e.now()

	bag, err := e.classifier.Classify(rawText)
	if err != nil {
		return e.fatal(ctx, userID, ReasonCollaborator, fmt.Errorf("classify message: %w", err))
	}

	prior, err := e.conv.GetConversation(ctx, userID)
	if err != nil {
		return e.fatal(ctx, userID, ReasonCollaborator, fmt.Errorf("read conversation state: %w", err))
	}

	ext := extract.NewAt(e.now, e.logger)
	slots, err := ext.Resolve(bag, prior)
	switch {
	case errors.Is(err, extract.ErrActionNotFound):
		// Nothing to carry over: reset the user's state entirely.
		if perr := e.conv.PutConversation(ctx, userID, conversation.State{}); perr != nil {
			e.logger.Error("failed to reset conversation", "user", userID, "error", perr)
		}
		return e.clarify(ctx, userID, ReasonActionNotFound, msgActionNotFound)
	case errors.Is(err, extract.ErrInvalidTimeFormat):
		e.persistPartial(ctx, userID, conversation.State{
			LastTurnAt: now,
			Action:     slots.Action,
			Dates:      slots.Dates,
			RawText:    rawText,
		})
		return e.clarify(ctx, userID, ReasonInvalidTimeFormat, msgInvalidTime)
	case err != nil:
		return e.fatal(ctx, userID, ReasonCollaborator, fmt.Errorf("extract slots: %w", err))
	}

	matched, err := e.matcher.Match(ctx, slots.Action, slots.Dates, slots.Range, userID)
	if err != nil {
		var nf *match.NotFoundError
		var amb *match.AmbiguousError
		switch {
		case errors.As(err, &nf):
			e.persistPartial(ctx, userID, conversation.State{
				LastTurnAt: now,
				Action:     slots.Action,
				Dates:      slots.Dates,
				Range:      slots.Range,
				RawText:    rawText,
			})
			return e.clarify(ctx, userID, ReasonShiftNotFound, msgShiftNotFound(slots.Dates, slots.Range))
		case errors.As(err, &amb):
			e.persistPartial(ctx, userID, conversation.State{
				LastTurnAt: now,
				Action:     slots.Action,
				Dates:      slots.Dates,
				Range:      slots.Range,
				ShiftIDs:   shiftIDs(amb.Candidates),
				RawText:    rawText,
			})
			return e.clarify(ctx, userID, ReasonAmbiguousMatch, msgAmbiguous(slots.Dates, slots.Range))
		default:
			return e.fatal(ctx, userID, ReasonCollaborator, err)
		}
	}

	if slots.Action == shift.ShowShift {
		return e.completeShowShift(ctx, userID, slots, matched)
	}
	return e.completeSubstitution(ctx, userID, rawText, slots, matched[0])
}

// completeShowShift replies with the day's schedule as text.
func (e *Engine) completeShowShift(ctx context.Context, userID string, slots extract.Slots, shifts []shift.Shift) Outcome {
	text := msgShowShift(slots.Dates[0], shifts)
	if err := e.notifier.NotifyUser(ctx, userID, text); err != nil {
		e.logger.Warn("failed to deliver schedule", "user", userID, "error", err)
	}
	e.finishTurn(ctx, userID, shift.ShowShift)
	return Outcome{Kind: KindCompleted, Action: shift.ShowShift, Shifts: shifts, Range: slots.Range}
}

// completeSubstitution reconciles the requested window against the matched
// shift and announces the result.
func (e *Engine) completeSubstitution(ctx context.Context, userID, rawText string, slots extract.Slots, original shift.Shift) Outcome {
	var rng shift.TimeRange
	if slots.Range != nil {
		rng = *slots.Range
	}
	rs, re := rng.Resolve(original)

	owner := shift.NewOwner{StaffName: original.StaffName, SlackID: original.SlackID}
	if slots.Action == shift.Contract {
		name, err := e.members.DisplayName(ctx, userID)
		if err != nil {
			return e.fatal(ctx, userID, ReasonCollaborator, fmt.Errorf("resolve contractor name: %w", err))
		}
		owner = shift.NewOwner{StaffName: name, SlackID: userID}
	}

	plan, err := shift.Reconcile(ctx, e.cal, original, rs, re, owner, slots.Action)
	if err != nil {
		var rnc *shift.ErrRangeNotContained
		if errors.As(err, &rnc) {
			// Stale data or a logic defect; surface verbatim, persist nothing.
			return e.fatal(ctx, userID, ReasonRangeNotContained, err)
		}
		return e.fatal(ctx, userID, ReasonCollaborator, err)
	}

	notice := msgNotice(slots.Action, userID, original, plan, rawText)
	if err := e.notifier.NotifyChannel(ctx, notice); err != nil {
		e.logger.Warn("failed to deliver notice", "error", err)
	}
	e.publishPlan(slots.Action, plan)
	e.finishTurn(ctx, userID, slots.Action)

	e.logger.Info("substitution applied",
		"user", userID,
		"action", slots.Action.String(),
		"relation", plan.Relation.String(),
		"shift", plan.New.ID.String(),
	)
	return Outcome{Kind: KindCompleted, Action: slots.Action, Shifts: []shift.Shift{plan.New}, Range: slots.Range, Plan: &plan}
}

// finishTurn clears the conversation and appends the usage record. Both are
// best-effort once the calendar mutation committed.
func (e *Engine) finishTurn(ctx context.Context, userID string, action shift.Action) {
	if err := e.conv.PutConversation(ctx, userID, conversation.State{}); err != nil {
		e.logger.Error("failed to clear conversation", "user", userID, "error", err)
	}
	if err := e.usage.RecordUsage(ctx, userID, UseChat, action); err != nil {
		e.logger.Warn("failed to record usage", "user", userID, "error", err)
	}
}

func (e *Engine) publishPlan(action shift.Action, plan shift.Plan) {
	if e.events == nil {
		return
	}
	subject := SubjectShiftRequested
	if action == shift.Contract {
		subject = SubjectShiftContracted
	}
	evt := ShiftEvent{
		ShiftID:   plan.New.ID.String(),
		StaffName: plan.New.StaffName,
		SlackID:   plan.New.SlackID,
		Start:     plan.New.Start.Format(time.RFC3339),
		End:       plan.New.End.Format(time.RFC3339),
		Relation:  plan.Relation.String(),
	}
	if err := e.events.Publish(subject, evt); err != nil {
		e.logger.Warn("failed to publish shift event", "subject", subject, "error", err)
	}
}

func (e *Engine) persistPartial(ctx context.Context, userID string, st conversation.State) {
	if err := e.conv.PutConversation(ctx, userID, st); err != nil {
		e.logger.Error("failed to persist conversation", "user", userID, "error", err)
	}
}

// clarify sends the prompt and reports a recoverable outcome.
func (e *Engine) clarify(ctx context.Context, userID string, reason Reason, prompt string) Outcome {
	if err := e.notifier.NotifyUser(ctx, userID, prompt); err != nil {
		e.logger.Warn("failed to deliver prompt", "user", userID, "error", err)
	}
	return Outcome{Kind: KindNeedsClarification, Reason: reason, Prompt: prompt}
}

// fatal ends the turn without touching any state beyond logs. The error text
// goes to the user verbatim.
func (e *Engine) fatal(ctx context.Context, userID string, reason Reason, err error) Outcome {
	e.logger.Error("turn failed", "user", userID, "reason", string(reason), "error", err)
	if nerr := e.notifier.NotifyUser(ctx, userID, msgFatal(err)); nerr != nil {
		e.logger.Warn("failed to deliver failure notice", "user", userID, "error", nerr)
	}
	return Outcome{Kind: KindFatal, Reason: reason, Err: err}
}

func shiftIDs(shifts []shift.Shift) []uuid.UUID {
	ids := make([]uuid.UUID, len(shifts))
	for i, s := range shifts {
		ids[i] = s.ID
	}
	return ids
}
