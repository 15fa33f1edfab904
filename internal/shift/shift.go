// Package shift holds the shift data model and the interval algebra used to
// split, shrink or remove a shift when a substitution is confirmed.
package shift

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Action is what a resolved turn wants done.
type Action int

const (
	ActionUnknown Action = iota
	ShowShift
	Request
	Contract
)

func (a Action) String() string {
	switch a {
	case ShowShift:
		return "showshift"
	case Request:
		return "request"
	case Contract:
		return "contract"
	default:
		return "unknown"
	}
}

// ParseAction is the inverse of String. Unknown input yields ActionUnknown.
func ParseAction(s string) Action {
	switch s {
	case "showshift":
		return ShowShift
	case "request":
		return Request
	case "contract":
		return Contract
	default:
		return ActionUnknown
	}
}

// Shift is one contiguous work interval. Requested marks an open
// substitution offer rather than a confirmed assignment.
type Shift struct {
	ID        uuid.UUID
	StaffName string
	SlackID   string
	Start     time.Time
	End       time.Time
	Requested bool
}

// Validate checks the interval invariant and required fields.
func (s Shift) Validate() error {
	if s.StaffName == "" {
		return fmt.Errorf("shift %s: missing staff name", s.ID)
	}
	if s.Start.IsZero() || s.End.IsZero() {
		return fmt.Errorf("shift %s: missing start or end", s.ID)
	}
	if !s.Start.Before(s.End) {
		return fmt.Errorf("shift %s: start %s is not before end %s", s.ID, s.Start, s.End)
	}
	return nil
}

// ClockTime is a wall-clock time of day.
type ClockTime struct {
	Hour   int
	Minute int
}

// ParseClockTime parses "HH:MM".
func ParseClockTime(s string) (ClockTime, error) {
	var ct ClockTime
	if _, err := fmt.Sscanf(s, "%d:%d", &ct.Hour, &ct.Minute); err != nil {
		return ClockTime{}, fmt.Errorf("parse clock time %q: %w", s, err)
	}
	if ct.Hour < 0 || ct.Hour > 23 || ct.Minute < 0 || ct.Minute > 59 {
		return ClockTime{}, fmt.Errorf("clock time %q out of range", s)
	}
	return ct, nil
}

func (c ClockTime) String() string {
	return fmt.Sprintf("%02d:%02d", c.Hour, c.Minute)
}

// On places the clock time onto day's date, in day's location.
func (c ClockTime) On(day time.Time) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, day.Location())
}

// Before orders two clock times.
func (c ClockTime) Before(o ClockTime) bool {
	if c.Hour != o.Hour {
		return c.Hour < o.Hour
	}
	return c.Minute < o.Minute
}

// TimeRange is a possibly half-open requested window. A nil bound means
// "use the matched shift's own boundary".
type TimeRange struct {
	Start *ClockTime
	End   *ClockTime
}

// Empty reports whether neither bound was requested.
func (r TimeRange) Empty() bool {
	return r.Start == nil && r.End == nil
}

func (r TimeRange) String() string {
	start, end := "", ""
	if r.Start != nil {
		start = r.Start.String()
	}
	if r.End != nil {
		end = r.End.String()
	}
	return start + "~" + end
}

// Resolve turns the range into concrete instants on the shift's own day,
// substituting the shift's boundaries for absent bounds.
func (r TimeRange) Resolve(s Shift) (time.Time, time.Time) {
	start, end := s.Start, s.End
	if r.Start != nil {
		start = r.Start.On(s.Start)
	}
	if r.End != nil {
		end = r.End.On(s.Start)
	}
	return start, end
}

// Contains reports whether the candidate shift fully covers the requested
// window, absent bounds defaulting to the candidate's own boundaries.
func (r TimeRange) Contains(s Shift) bool {
	start, end := r.Resolve(s)
	return !start.Before(s.Start) && !s.End.Before(end)
}
