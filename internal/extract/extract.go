// Package extract resolves the three slots of a turn (action, dates and
// time range) from classified tokens, carrying unresolved slots over from
// the previous turn when the conversation is still in sequence.
package extract

import (
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/aoba-lab/daiko/internal/conversation"
	"github.com/aoba-lab/daiko/internal/shift"
	"github.com/aoba-lab/daiko/internal/token"
)

// ErrActionNotFound means neither the message nor the in-sequence state
// yields an action. The caller prompts the user and resets their state.
var ErrActionNotFound = errors.New("no action found in message")

// ErrInvalidTimeFormat means time-related tokens were present but did not
// form any recognized combination.
var ErrInvalidTimeFormat = errors.New("time tokens do not form a valid range")

// MaxBareHour is the largest bare number accepted as an hour. Numbers above
// it are noise (room numbers, counts) and are dropped before the combination
// table is consulted.
const MaxBareHour = 19

// Slots is the fully resolved output of one extraction.
type Slots struct {
	Action shift.Action
	Dates  []time.Time
	Range  *shift.TimeRange // nil when no time range was requested
}

// Extractor resolves slots against a clock, so tests can pin "today".
type Extractor struct {
	now    func() time.Time
	logger *slog.Logger
}

func New(logger *slog.Logger) *Extractor {
	return &Extractor{now: time.Now, logger: logger}
}

// NewAt builds an extractor with a fixed clock.
func NewAt(now func() time.Time, logger *slog.Logger) *Extractor {
	return &Extractor{now: now, logger: logger}
}

// Resolve extracts all three slots. On ErrInvalidTimeFormat the returned
// Slots still carries the resolved Action and Dates so the caller can
// persist them before prompting; on ErrActionNotFound the Slots is empty.
func (e *Extractor) Resolve(bag *token.Bag, prior conversation.State) (Slots, error) {
	now := e.now()
	inSeq := prior.InSequence(now)

	action, err := resolveAction(bag, prior, inSeq)
	if err != nil {
		return Slots{}, err
	}

	dates := resolveDates(bag, prior, inSeq, today(now))

	rng, err := resolveTimeRange(bag, prior, inSeq)
	if err != nil {
		return Slots{Action: action, Dates: dates}, err
	}

	e.logger.Debug("slots resolved",
		"action", action.String(),
		"dates", len(dates),
		"has_range", rng != nil,
	)
	return Slots{Action: action, Dates: dates, Range: rng}, nil
}

func today(now time.Time) time.Time {
	return time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
}

// resolveAction picks the action by trigger priority. A request trigger
// wins outright when a confirm trigger backs it up; a request and contract
// trigger together leave the message ambiguous and fall through to the
// recorded action.
func resolveAction(bag *token.Bag, prior conversation.State, inSeq bool) (shift.Action, error) {
	if bag.Has(token.Keyword) {
		switch {
		case bag.Has(token.TriggerRequest):
			if bag.Has(token.TriggerConfirm) {
				return shift.Request, nil
			}
			if !bag.Has(token.TriggerContract) {
				return shift.Request, nil
			}
			// request and contract in one message: ambiguous, fall through
		case bag.Has(token.TriggerContract):
			return shift.Contract, nil
		case bag.Has(token.TriggerConfirm):
			return shift.ShowShift, nil
		}
	}

	if inSeq && prior.Action != shift.ActionUnknown {
		return prior.Action, nil
	}
	return shift.ActionUnknown, ErrActionNotFound
}

// resolveDates walks the fallback chain; the first rule producing at least
// one date wins. Token order is preserved within a rule.
func resolveDates(bag *token.Bag, prior conversation.State, inSeq bool, today time.Time) []time.Time {
	if dates := datesFromExplicit(bag.Tokens(token.Date), today); len(dates) > 0 {
		return dates
	}
	if dates := datesFromDayOnly(bag.Tokens(token.DateDay), today); len(dates) > 0 {
		return dates
	}
	if dates := datesFromWeekdays(bag, today); len(dates) > 0 {
		return dates
	}
	if dates := datesFromVague(bag.Tokens(token.DateVague), today); len(dates) > 0 {
		return dates
	}
	if inSeq && len(prior.Dates) > 0 {
		return prior.Dates
	}
	return []time.Time{today}
}

// datesFromExplicit parses MM/DD values. A date already past denotes next
// year's occurrence.
func datesFromExplicit(toks []token.Token, today time.Time) []time.Time {
	var dates []time.Time
	for _, t := range toks {
		var month, day int
		if _, err := fmt.Sscanf(t.Value, "%d/%d", &month, &day); err != nil {
			continue
		}
		d := time.Date(today.Year(), time.Month(month), day, 0, 0, 0, 0, today.Location())
		if d.Before(today) {
			d = d.AddDate(1, 0, 0)
		}
		dates = append(dates, d)
	}
	return dates
}

// datesFromDayOnly combines a bare day-of-month with the current month,
// rolling to the next month when the day already passed.
func datesFromDayOnly(toks []token.Token, today time.Time) []time.Time {
	var dates []time.Time
	for _, t := range toks {
		day, err := strconv.Atoi(t.Value)
		if err != nil {
			continue
		}
		d := time.Date(today.Year(), today.Month(), day, 0, 0, 0, 0, today.Location())
		if d.Before(today) {
			d = time.Date(today.Year(), today.Month()+1, day, 0, 0, 0, 0, today.Location())
		}
		dates = append(dates, d)
	}
	return dates
}

// datesFromWeekdays maps each weekday token to its next occurrence on or
// after today. A "next" modifier pushes every result one week out.
func datesFromWeekdays(bag *token.Bag, today time.Time) []time.Time {
	toks := bag.Tokens(token.DateWeekday)
	if len(toks) == 0 {
		return nil
	}
	nextWeek := false
	for _, m := range bag.Tokens(token.DateModifier) {
		if m.Value == "next" {
			nextWeek = true
		}
	}
	var dates []time.Time
	for _, t := range toks {
		wd, err := strconv.Atoi(t.Value)
		if err != nil || wd < 0 || wd > 6 {
			continue
		}
		diff := (wd - int(today.Weekday()) + 7) % 7
		if nextWeek {
			diff += 7
		}
		dates = append(dates, today.AddDate(0, 0, diff))
	}
	return dates
}

func datesFromVague(toks []token.Token, today time.Time) []time.Time {
	var dates []time.Time
	for _, t := range toks {
		switch t.Value {
		case "today":
			dates = append(dates, today)
		case "tomorrow":
			dates = append(dates, today.AddDate(0, 0, 1))
		}
	}
	return dates
}

// resolveTimeRange classifies the message by its counts of time tokens (T),
// time modifiers (M) and in-range bare numbers (N) and builds the range the
// matching combination describes. nil means no range was requested, which
// is not an error.
func resolveTimeRange(bag *token.Bag, prior conversation.State, inSeq bool) (*shift.TimeRange, error) {
	times := bag.Tokens(token.Time)
	mods := bag.Tokens(token.TimeModifier)
	nums := hourNumbers(bag.Tokens(token.Number))

	rng, err := buildTimeRange(bag, times, mods, nums)
	if err != nil {
		if inSeq && prior.Range != nil {
			return prior.Range, nil
		}
		return nil, err
	}
	return rng, nil
}

// hourNumbers keeps only bare numbers plausible as hours.
func hourNumbers(toks []token.Token) []token.Token {
	var kept []token.Token
	for _, t := range toks {
		n, err := strconv.Atoi(t.Value)
		if err == nil && n >= 0 && n <= MaxBareHour {
			kept = append(kept, t)
		}
	}
	return kept
}

func buildTimeRange(bag *token.Bag, times, mods, nums []token.Token) (*shift.TimeRange, error) {
	t, m, n := len(times), len(mods), len(nums)
	switch {
	case t == 2 && m == 0 && n == 0:
		// Two explicit times, kept in text order rather than sorted.
		start, err := shift.ParseClockTime(times[0].Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTimeFormat, err)
		}
		end, err := shift.ParseClockTime(times[1].Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTimeFormat, err)
		}
		return orderedRange(start, end)

	case t == 1 && m == 1 && n == 0:
		ct, err := shift.ParseClockTime(times[0].Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTimeFormat, err)
		}
		return halfRange(ct, mods[0].Value)

	case t == 1 && m == 0 && n == 1:
		ct, err := shift.ParseClockTime(times[0].Value)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidTimeFormat, err)
		}
		nct, err := numberAsClock(nums[0])
		if err != nil {
			return nil, err
		}
		// Whichever appeared first in the message is the start.
		if bag.SurfaceIndex(times[0].Surface) <= bag.SurfaceIndex(nums[0].Surface) {
			return orderedRange(ct, nct)
		}
		return orderedRange(nct, ct)

	case t == 0 && m == 1 && n == 1:
		nct, err := numberAsClock(nums[0])
		if err != nil {
			return nil, err
		}
		return halfRange(nct, mods[0].Value)

	case t == 0 && m == 0 && n == 2:
		start, err := numberAsClock(nums[0])
		if err != nil {
			return nil, err
		}
		end, err := numberAsClock(nums[1])
		if err != nil {
			return nil, err
		}
		return orderedRange(start, end)

	case t == 0 && m == 0 && n == 0:
		return nil, nil

	default:
		return nil, fmt.Errorf("%w: times=%d modifiers=%d numbers=%d", ErrInvalidTimeFormat, t, m, n)
	}
}

func numberAsClock(t token.Token) (shift.ClockTime, error) {
	hour, err := strconv.Atoi(t.Value)
	if err != nil {
		return shift.ClockTime{}, fmt.Errorf("%w: bare number %q", ErrInvalidTimeFormat, t.Value)
	}
	return shift.ClockTime{Hour: hour}, nil
}

// orderedRange builds a two-sided range, rejecting an empty or inverted
// window.
func orderedRange(start, end shift.ClockTime) (*shift.TimeRange, error) {
	if !start.Before(end) {
		return nil, fmt.Errorf("%w: start %s is not before end %s", ErrInvalidTimeFormat, start, end)
	}
	return &shift.TimeRange{Start: &start, End: &end}, nil
}

func halfRange(ct shift.ClockTime, modifier string) (*shift.TimeRange, error) {
	switch modifier {
	case "from":
		return &shift.TimeRange{Start: &ct}, nil
	case "until":
		return &shift.TimeRange{End: &ct}, nil
	default:
		return nil, fmt.Errorf("%w: unknown time modifier %q", ErrInvalidTimeFormat, modifier)
	}
}
