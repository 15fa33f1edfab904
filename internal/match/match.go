// Package match reduces the resolved dates and time range of a turn to the
// single shift record the action applies to.
package match

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/aoba-lab/daiko/internal/shift"
)

// Finder is the read side of the calendar collaborator.
type Finder interface {
	// FindShifts returns the shifts overlapping the given day. ownerID
	// narrows to one staff member when non-empty; requested selects offers
	// (true) or confirmed assignments (false) when non-nil.
	FindShifts(ctx context.Context, day time.Time, ownerID string, requested *bool) ([]shift.Shift, error)
}

// NotFoundError is recoverable: nothing matched the resolved slots.
type NotFoundError struct {
	Dates []time.Time
	Range *shift.TimeRange
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("no shift on %s matches", FormatDates(e.Dates, "2006/01/02"))
}

// AmbiguousError is recoverable: more than one shift matched and the user
// must narrow by date or time.
type AmbiguousError struct {
	Dates      []time.Time
	Range      *shift.TimeRange
	Candidates []shift.Shift
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("%d shifts on %s match", len(e.Candidates), FormatDates(e.Dates, "2006/01/02"))
}

// FormatDates joins dates for user-visible prompts.
func FormatDates(dates []time.Time, layout string) string {
	parts := make([]string, len(dates))
	for i, d := range dates {
		parts[i] = d.Format(layout)
	}
	return strings.Join(parts, ",")
}

type Matcher struct {
	finder Finder
	logger *slog.Logger
}

func New(finder Finder, logger *slog.Logger) *Matcher {
	return &Matcher{finder: finder, logger: logger}
}

var (
	confirmedOnly = false
	requestedOnly = true
)

// Match fetches the candidates each date and action allow and reduces them
// to exactly one. ShowShift short-circuits: every shift of the day is
// returned untouched, with no single-match requirement.
func (m *Matcher) Match(ctx context.Context, action shift.Action, dates []time.Time, rng *shift.TimeRange, callerID string) ([]shift.Shift, error) {
	var candidates []shift.Shift
	for _, day := range dates {
		var (
			found []shift.Shift
			err   error
		)
		switch action {
		case shift.Request:
			// Only the caller's own confirmed shifts can be offered.
			found, err = m.finder.FindShifts(ctx, day, callerID, &confirmedOnly)
		case shift.Contract:
			// Any open offer, regardless of owner.
			found, err = m.finder.FindShifts(ctx, day, "", &requestedOnly)
		case shift.ShowShift:
			found, err = m.finder.FindShifts(ctx, day, "", nil)
		default:
			return nil, fmt.Errorf("match: unsupported action %s", action)
		}
		if err != nil {
			return nil, fmt.Errorf("find shifts on %s: %w", day.Format("2006/01/02"), err)
		}
		candidates = append(candidates, found...)
	}

	if action == shift.ShowShift {
		return candidates, nil
	}

	if rng != nil {
		candidates = filterByRange(candidates, *rng)
	}

	m.logger.Debug("candidates reduced",
		"action", action.String(),
		"dates", len(dates),
		"candidates", len(candidates),
	)

	switch len(candidates) {
	case 0:
		return nil, &NotFoundError{Dates: dates, Range: rng}
	case 1:
		return candidates, nil
	default:
		return nil, &AmbiguousError{Dates: dates, Range: rng, Candidates: candidates}
	}
}

// filterByRange keeps candidates whose own interval fully contains the
// requested window.
func filterByRange(candidates []shift.Shift, rng shift.TimeRange) []shift.Shift {
	kept := candidates[:0]
	for _, c := range candidates {
		if rng.Contains(c) {
			kept = append(kept, c)
		}
	}
	return kept
}
