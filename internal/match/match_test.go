package match

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aoba-lab/daiko/internal/shift"
)

type findCall struct {
	day       time.Time
	ownerID   string
	requested *bool
}

// fakeFinder serves shifts keyed by day and records every query.
type fakeFinder struct {
	byDay map[string][]shift.Shift
	calls []findCall
	err   error
}

func (f *fakeFinder) FindShifts(ctx context.Context, day time.Time, ownerID string, requested *bool) ([]shift.Shift, error) {
	f.calls = append(f.calls, findCall{day: day, ownerID: ownerID, requested: requested})
	if f.err != nil {
		return nil, f.err
	}
	var out []shift.Shift
	for _, s := range f.byDay[day.Format("2006-01-02")] {
		if ownerID != "" && s.SlackID != ownerID {
			continue
		}
		if requested != nil && s.Requested != *requested {
			continue
		}
		out = append(out, s)
	}
	return out, nil
}

func testMatcher(f *fakeFinder) *Matcher {
	return New(f, slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func testDay(d int) time.Time {
	return time.Date(2026, 9, d, 0, 0, 0, 0, time.UTC)
}

func shiftOn(d, hStart, hEnd int, slackID string, requested bool) shift.Shift {
	return shift.Shift{
		ID:        uuid.New(),
		StaffName: "staff-" + slackID,
		SlackID:   slackID,
		Start:     time.Date(2026, 9, d, hStart, 0, 0, 0, time.UTC),
		End:       time.Date(2026, 9, d, hEnd, 0, 0, 0, time.UTC),
		Requested: requested,
	}
}

func TestMatch_SingleCandidate(t *testing.T) {
	mine := shiftOn(10, 9, 17, "U01", false)
	f := &fakeFinder{byDay: map[string][]shift.Shift{
		"2026-09-10": {mine, shiftOn(10, 9, 17, "U02", false)},
	}}

	got, err := testMatcher(f).Match(context.Background(), shift.Request, []time.Time{testDay(10)}, nil, "U01")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) != 1 || got[0].ID != mine.ID {
		t.Fatalf("got %d candidates, want exactly the caller's shift", len(got))
	}

	call := f.calls[0]
	if call.ownerID != "U01" {
		t.Errorf("request query ownerID = %q, want caller", call.ownerID)
	}
	if call.requested == nil || *call.requested {
		t.Error("request query must narrow to confirmed shifts")
	}
}

func TestMatch_ContractSeesAnyOffer(t *testing.T) {
	offer := shiftOn(10, 9, 17, "U02", true)
	f := &fakeFinder{byDay: map[string][]shift.Shift{
		"2026-09-10": {offer, shiftOn(10, 9, 17, "U03", false)},
	}}

	got, err := testMatcher(f).Match(context.Background(), shift.Contract, []time.Time{testDay(10)}, nil, "U01")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) != 1 || got[0].ID != offer.ID {
		t.Fatalf("want the open offer, got %v", got)
	}

	call := f.calls[0]
	if call.ownerID != "" {
		t.Errorf("contract query ownerID = %q, want any owner", call.ownerID)
	}
	if call.requested == nil || !*call.requested {
		t.Error("contract query must narrow to open offers")
	}
}

func TestMatch_ShowShiftReturnsAll(t *testing.T) {
	f := &fakeFinder{byDay: map[string][]shift.Shift{
		"2026-09-10": {
			shiftOn(10, 9, 12, "U01", false),
			shiftOn(10, 12, 17, "U02", true),
			shiftOn(10, 17, 21, "U03", false),
		},
	}}

	rng := &shift.TimeRange{Start: &shift.ClockTime{Hour: 18}}
	got, err := testMatcher(f).Match(context.Background(), shift.ShowShift, []time.Time{testDay(10)}, rng, "U01")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	// ShowShift ignores the range filter and the single-match rule.
	if len(got) != 3 {
		t.Fatalf("got %d shifts, want all 3", len(got))
	}
	if f.calls[0].requested != nil {
		t.Error("showshift query must not narrow by offer state")
	}
}

func TestMatch_RangeNarrowsAmbiguity(t *testing.T) {
	morning := shiftOn(10, 9, 12, "U01", false)
	evening := shiftOn(10, 17, 21, "U01", false)
	f := &fakeFinder{byDay: map[string][]shift.Shift{
		"2026-09-10": {morning, evening},
	}}

	rng := &shift.TimeRange{
		Start: &shift.ClockTime{Hour: 18},
		End:   &shift.ClockTime{Hour: 20},
	}
	got, err := testMatcher(f).Match(context.Background(), shift.Request, []time.Time{testDay(10)}, rng, "U01")
	if err != nil {
		t.Fatalf("Match: %v", err)
	}
	if len(got) != 1 || got[0].ID != evening.ID {
		t.Fatalf("want the evening shift, got %v", got)
	}
}

func TestMatch_NotFound(t *testing.T) {
	f := &fakeFinder{byDay: map[string][]shift.Shift{}}

	_, err := testMatcher(f).Match(context.Background(), shift.Request, []time.Time{testDay(10)}, nil, "U01")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if len(nf.Dates) != 1 || !nf.Dates[0].Equal(testDay(10)) {
		t.Errorf("NotFoundError dates = %v", nf.Dates)
	}
}

func TestMatch_RangeEliminatesEverything(t *testing.T) {
	f := &fakeFinder{byDay: map[string][]shift.Shift{
		"2026-09-10": {shiftOn(10, 9, 12, "U01", false)},
	}}

	rng := &shift.TimeRange{
		Start: &shift.ClockTime{Hour: 13},
		End:   &shift.ClockTime{Hour: 15},
	}
	_, err := testMatcher(f).Match(context.Background(), shift.Request, []time.Time{testDay(10)}, rng, "U01")
	var nf *NotFoundError
	if !errors.As(err, &nf) {
		t.Fatalf("expected NotFoundError, got %v", err)
	}
	if nf.Range == nil {
		t.Error("NotFoundError must carry the requested range for the prompt")
	}
}

func TestMatch_Ambiguous(t *testing.T) {
	f := &fakeFinder{byDay: map[string][]shift.Shift{
		"2026-09-10": {shiftOn(10, 9, 12, "U01", false), shiftOn(10, 13, 17, "U01", false)},
	}}

	_, err := testMatcher(f).Match(context.Background(), shift.Request, []time.Time{testDay(10)}, nil, "U01")
	var amb *AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("expected AmbiguousError, got %v", err)
	}
	if len(amb.Candidates) != 2 {
		t.Errorf("got %d candidates, want 2", len(amb.Candidates))
	}
}

func TestMatch_CollectsAcrossDates(t *testing.T) {
	f := &fakeFinder{byDay: map[string][]shift.Shift{
		"2026-09-10": {shiftOn(10, 9, 12, "U01", false)},
		"2026-09-11": {shiftOn(11, 9, 12, "U01", false)},
	}}

	_, err := testMatcher(f).Match(context.Background(), shift.Request, []time.Time{testDay(10), testDay(11)}, nil, "U01")
	var amb *AmbiguousError
	if !errors.As(err, &amb) {
		t.Fatalf("expected AmbiguousError across dates, got %v", err)
	}
	if len(f.calls) != 2 {
		t.Errorf("made %d finder calls, want one per date", len(f.calls))
	}
}

func TestMatch_FinderFailure(t *testing.T) {
	boom := errors.New("backend down")
	f := &fakeFinder{err: boom}

	_, err := testMatcher(f).Match(context.Background(), shift.Request, []time.Time{testDay(10)}, nil, "U01")
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped finder error, got %v", err)
	}
}

func TestFormatDates(t *testing.T) {
	got := FormatDates([]time.Time{testDay(10), testDay(11)}, "01/02")
	if got != "09/10,09/11" {
		t.Errorf("FormatDates = %q", got)
	}
}
