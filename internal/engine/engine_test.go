package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/aoba-lab/daiko/internal/conversation"
	"github.com/aoba-lab/daiko/internal/lexicon"
	"github.com/aoba-lab/daiko/internal/shift"
)

// fixedNow is a Tuesday.
var fixedNow = time.Date(2026, 9, 15, 12, 0, 0, 0, time.UTC)

type fakeCalendar struct {
	shifts map[uuid.UUID]shift.Shift
}

func newFakeCalendar(shifts ...shift.Shift) *fakeCalendar {
	c := &fakeCalendar{shifts: make(map[uuid.UUID]shift.Shift)}
	for _, s := range shifts {
		c.shifts[s.ID] = s
	}
	return c
}

func (c *fakeCalendar) FindShifts(ctx context.Context, day time.Time, ownerID string, requested *bool) ([]shift.Shift, error) {
	var out []shift.Shift
	for _, s := range c.shifts {
		if s.Start.Year() != day.Year() || s.Start.YearDay() != day.YearDay() {
			continue
		}
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

func (c *fakeCalendar) ShiftByID(ctx context.Context, id uuid.UUID) (shift.Shift, error) {
	s, ok := c.shifts[id]
	if !ok {
		return shift.Shift{}, errors.New("no such shift")
	}
	return s, nil
}

func (c *fakeCalendar) InsertShift(ctx context.Context, s shift.Shift) (uuid.UUID, error) {
	s.ID = uuid.New()
	c.shifts[s.ID] = s
	return s.ID, nil
}

func (c *fakeCalendar) UpdateShift(ctx context.Context, s shift.Shift) error {
	c.shifts[s.ID] = s
	return nil
}

func (c *fakeCalendar) DeleteShift(ctx context.Context, id uuid.UUID) error {
	delete(c.shifts, id)
	return nil
}

type fakeConvStore struct {
	states map[string]conversation.State
	puts   int
}

func newFakeConvStore() *fakeConvStore {
	return &fakeConvStore{states: make(map[string]conversation.State)}
}

func (s *fakeConvStore) GetConversation(ctx context.Context, slackID string) (conversation.State, error) {
	return s.states[slackID], nil
}

func (s *fakeConvStore) PutConversation(ctx context.Context, slackID string, st conversation.State) error {
	s.states[slackID] = st
	s.puts++
	return nil
}

type fakeNotifier struct {
	userMsgs    map[string][]string
	channelMsgs []string
}

func newFakeNotifier() *fakeNotifier {
	return &fakeNotifier{userMsgs: make(map[string][]string)}
}

func (n *fakeNotifier) NotifyUser(ctx context.Context, slackID, text string) error {
	n.userMsgs[slackID] = append(n.userMsgs[slackID], text)
	return nil
}

func (n *fakeNotifier) NotifyChannel(ctx context.Context, text string) error {
	n.channelMsgs = append(n.channelMsgs, text)
	return nil
}

type fakeDirectory map[string]string

func (d fakeDirectory) DisplayName(ctx context.Context, slackID string) (string, error) {
	return d[slackID], nil
}

type usageRecord struct {
	slackID string
	way     UseWay
	action  shift.Action
}

type fakeUsage struct{ records []usageRecord }

func (u *fakeUsage) RecordUsage(ctx context.Context, slackID string, way UseWay, action shift.Action) error {
	u.records = append(u.records, usageRecord{slackID, way, action})
	return nil
}

type publishedEvent struct {
	subject string
	data    any
}

type fakeBus struct{ events []publishedEvent }

func (b *fakeBus) Publish(subject string, data any) error {
	b.events = append(b.events, publishedEvent{subject, data})
	return nil
}

type world struct {
	engine   *Engine
	cal      *fakeCalendar
	conv     *fakeConvStore
	notifier *fakeNotifier
	usage    *fakeUsage
	bus      *fakeBus
}

func newWorld(t *testing.T, shifts ...shift.Shift) *world {
	t.Helper()
	w := &world{
		cal:      newFakeCalendar(shifts...),
		conv:     newFakeConvStore(),
		notifier: newFakeNotifier(),
		usage:    &fakeUsage{},
		bus:      &fakeBus{},
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	dir := fakeDirectory{"U01": "佐藤", "U02": "鈴木"}
	w.engine = New(lexicon.New(), w.conv, w.cal, dir, w.notifier, w.usage, logger).
		WithEvents(w.bus).
		WithClock(func() time.Time { return fixedNow })
	return w
}

func at(d, h, m int) time.Time {
	return time.Date(2026, 9, d, h, m, 0, 0, time.UTC)
}

func testShift(d, hStart, hEnd int, name, slackID string, requested bool) shift.Shift {
	return shift.Shift{
		ID:        uuid.New(),
		StaffName: name,
		SlackID:   slackID,
		Start:     at(d, hStart, 0),
		End:       at(d, hEnd, 0),
		Requested: requested,
	}
}

func TestResolveTurn_CompletedRequest(t *testing.T) {
	mine := testShift(16, 9, 17, "佐藤", "U01", false)
	w := newWorld(t, mine)

	out := w.engine.ResolveTurn(context.Background(), "U01", "明日の代行お願いします 13時から")
	if out.Kind != KindCompleted {
		t.Fatalf("kind = %s (%s): %v", out.Kind, out.Reason, out.Err)
	}
	if out.Action != shift.Request {
		t.Errorf("action = %s, want request", out.Action)
	}
	if out.Plan == nil || out.Plan.Relation != shift.RelBack {
		t.Fatalf("plan = %+v, want back relation", out.Plan)
	}
	if !out.Plan.New.Requested {
		t.Error("offered interval must be marked requested")
	}
	if !out.Plan.New.Start.Equal(at(16, 13, 0)) || !out.Plan.New.End.Equal(at(16, 17, 0)) {
		t.Errorf("offered interval = %s~%s", out.Plan.New.Start, out.Plan.New.End)
	}

	// The original shrank to the front remnant.
	remaining, ok := w.cal.shifts[mine.ID]
	if !ok {
		t.Fatal("original shift disappeared")
	}
	if !remaining.End.Equal(at(16, 13, 0)) {
		t.Errorf("remnant ends at %s, want 13:00", remaining.End)
	}

	if st := w.conv.states["U01"]; !st.LastTurnAt.IsZero() {
		t.Error("conversation state must be cleared after completion")
	}
	if len(w.usage.records) != 1 || w.usage.records[0] != (usageRecord{"U01", UseChat, shift.Request}) {
		t.Errorf("usage records = %+v", w.usage.records)
	}
	if len(w.notifier.channelMsgs) != 1 {
		t.Fatalf("channel messages = %v", w.notifier.channelMsgs)
	}
	if !strings.Contains(w.notifier.channelMsgs[0], "<@U01>") {
		t.Errorf("notice must mention the requester: %q", w.notifier.channelMsgs[0])
	}
	if len(w.bus.events) != 1 || w.bus.events[0].subject != SubjectShiftRequested {
		t.Errorf("bus events = %+v", w.bus.events)
	}
}

func TestResolveTurn_ContractTransfersOwnership(t *testing.T) {
	offer := testShift(15, 9, 17, "鈴木", "U02", true)
	w := newWorld(t, offer)

	out := w.engine.ResolveTurn(context.Background(), "U01", "今日の代行受けます")
	if out.Kind != KindCompleted {
		t.Fatalf("kind = %s (%s): %v", out.Kind, out.Reason, out.Err)
	}
	if out.Plan.Relation != shift.RelMatch {
		t.Errorf("relation = %s, want match", out.Plan.Relation)
	}
	if out.Plan.New.SlackID != "U01" || out.Plan.New.StaffName != "佐藤" {
		t.Errorf("new owner = %s (%s)", out.Plan.New.StaffName, out.Plan.New.SlackID)
	}
	if out.Plan.New.Requested {
		t.Error("contracted interval must not stay an open offer")
	}
	if _, ok := w.cal.shifts[offer.ID]; ok {
		t.Error("fully consumed offer must be deleted")
	}
	if len(w.bus.events) != 1 || w.bus.events[0].subject != SubjectShiftContracted {
		t.Errorf("bus events = %+v", w.bus.events)
	}
}

func TestResolveTurn_ActionNotFound(t *testing.T) {
	w := newWorld(t)
	w.conv.states["U01"] = conversation.State{
		LastTurnAt: fixedNow.Add(-15 * time.Minute),
		Action:     shift.Request,
	}

	out := w.engine.ResolveTurn(context.Background(), "U01", "今週の会議よろしく")
	if out.Kind != KindNeedsClarification || out.Reason != ReasonActionNotFound {
		t.Fatalf("outcome = %s/%s", out.Kind, out.Reason)
	}
	if st := w.conv.states["U01"]; !st.LastTurnAt.IsZero() || st.Action != shift.ActionUnknown {
		t.Errorf("state must be reset, got %+v", st)
	}
	if msgs := w.notifier.userMsgs["U01"]; len(msgs) != 1 || msgs[0] != out.Prompt {
		t.Errorf("user messages = %v", msgs)
	}
}

func TestResolveTurn_InvalidTimePersistsSlots(t *testing.T) {
	w := newWorld(t)

	// A lone clock time does not form any recognized combination.
	out := w.engine.ResolveTurn(context.Background(), "U01", "明日の代行お願いします 13時")
	if out.Kind != KindNeedsClarification || out.Reason != ReasonInvalidTimeFormat {
		t.Fatalf("outcome = %s/%s", out.Kind, out.Reason)
	}

	st := w.conv.states["U01"]
	if !st.LastTurnAt.Equal(fixedNow) {
		t.Errorf("LastTurnAt = %s, want now", st.LastTurnAt)
	}
	if st.Action != shift.Request {
		t.Errorf("persisted action = %s", st.Action)
	}
	if len(st.Dates) != 1 || !st.Dates[0].Equal(at(16, 0, 0)) {
		t.Errorf("persisted dates = %v", st.Dates)
	}
}

// A time-only follow-up inside the window inherits action and dates from the
// previous turn and completes.
func TestResolveTurn_FollowUpFillsTime(t *testing.T) {
	mine := testShift(16, 9, 17, "佐藤", "U01", false)
	w := newWorld(t, mine)
	w.conv.states["U01"] = conversation.State{
		LastTurnAt: fixedNow.Add(-2 * time.Minute),
		Action:     shift.Request,
		Dates:      []time.Time{at(16, 0, 0)},
	}

	out := w.engine.ResolveTurn(context.Background(), "U01", "13時から")
	if out.Kind != KindCompleted {
		t.Fatalf("kind = %s (%s): %v", out.Kind, out.Reason, out.Err)
	}
	if out.Plan.Relation != shift.RelBack {
		t.Errorf("relation = %s, want back", out.Plan.Relation)
	}
}

func TestResolveTurn_StaleFollowUpIsRejected(t *testing.T) {
	mine := testShift(16, 9, 17, "佐藤", "U01", false)
	w := newWorld(t, mine)
	w.conv.states["U01"] = conversation.State{
		LastTurnAt: fixedNow.Add(-15 * time.Minute),
		Action:     shift.Request,
		Dates:      []time.Time{at(16, 0, 0)},
	}

	out := w.engine.ResolveTurn(context.Background(), "U01", "13時から")
	if out.Kind != KindNeedsClarification || out.Reason != ReasonActionNotFound {
		t.Fatalf("outcome = %s/%s", out.Kind, out.Reason)
	}
}

func TestResolveTurn_ShiftNotFound(t *testing.T) {
	w := newWorld(t)

	out := w.engine.ResolveTurn(context.Background(), "U01", "明日の代行お願いします")
	if out.Kind != KindNeedsClarification || out.Reason != ReasonShiftNotFound {
		t.Fatalf("outcome = %s/%s", out.Kind, out.Reason)
	}
	st := w.conv.states["U01"]
	if st.Action != shift.Request || len(st.Dates) != 1 {
		t.Errorf("persisted state = %+v", st)
	}
}

func TestResolveTurn_AmbiguousPersistsCandidates(t *testing.T) {
	a := testShift(16, 9, 12, "佐藤", "U01", false)
	b := testShift(16, 13, 17, "佐藤", "U01", false)
	w := newWorld(t, a, b)

	out := w.engine.ResolveTurn(context.Background(), "U01", "明日の代行お願いします")
	if out.Kind != KindNeedsClarification || out.Reason != ReasonAmbiguousMatch {
		t.Fatalf("outcome = %s/%s", out.Kind, out.Reason)
	}
	if st := w.conv.states["U01"]; len(st.ShiftIDs) != 2 {
		t.Errorf("persisted candidate ids = %v", st.ShiftIDs)
	}
}

func TestResolveTurn_ShowShift(t *testing.T) {
	a := testShift(15, 9, 12, "佐藤", "U01", false)
	b := testShift(15, 13, 17, "鈴木", "U02", true)
	w := newWorld(t, a, b)

	out := w.engine.ResolveTurn(context.Background(), "U01", "今日のシフト見せて")
	if out.Kind != KindCompleted || out.Action != shift.ShowShift {
		t.Fatalf("outcome = %s action %s: %v", out.Kind, out.Action, out.Err)
	}
	if len(out.Shifts) != 2 {
		t.Errorf("got %d shifts, want 2", len(out.Shifts))
	}
	if len(w.cal.shifts) != 2 {
		t.Error("showshift must not mutate the calendar")
	}
	msgs := w.notifier.userMsgs["U01"]
	if len(msgs) != 1 || !strings.Contains(msgs[0], "佐藤") {
		t.Errorf("schedule reply = %v", msgs)
	}
	if len(w.usage.records) != 1 || w.usage.records[0].action != shift.ShowShift {
		t.Errorf("usage records = %+v", w.usage.records)
	}
}

func TestResolveTurn_RangeOutsideShiftIsFatal(t *testing.T) {
	mine := testShift(16, 9, 17, "佐藤", "U01", false)
	w := newWorld(t, mine)

	// 9:00~20:00 escapes the shift; the range filter rejects the only
	// candidate, so the turn asks for clarification instead of mutating.
	out := w.engine.ResolveTurn(context.Background(), "U01", "明日の代行お願いします 9時 20時")
	if out.Kind != KindNeedsClarification || out.Reason != ReasonShiftNotFound {
		t.Fatalf("outcome = %s/%s", out.Kind, out.Reason)
	}
	if len(w.cal.shifts) != 1 {
		t.Error("calendar must be untouched")
	}
}

func TestRequestShift_Direct(t *testing.T) {
	mine := testShift(16, 9, 17, "佐藤", "U01", false)
	w := newWorld(t, mine)

	rng := &shift.TimeRange{
		Start: &shift.ClockTime{Hour: 12},
		End:   &shift.ClockTime{Hour: 14},
	}
	plan, err := w.engine.RequestShift(context.Background(), "U01", mine.ID, rng, UseButtons)
	if err != nil {
		t.Fatalf("RequestShift: %v", err)
	}
	if plan.Relation != shift.RelInclude {
		t.Errorf("relation = %s, want include", plan.Relation)
	}
	if len(plan.Remnants) != 2 {
		t.Errorf("remnants = %v, want front and back", plan.Remnants)
	}
	if len(w.usage.records) != 1 || w.usage.records[0].way != UseButtons {
		t.Errorf("usage records = %+v", w.usage.records)
	}
}

func TestRequestShift_RejectsForeignShift(t *testing.T) {
	theirs := testShift(16, 9, 17, "鈴木", "U02", false)
	w := newWorld(t, theirs)

	if _, err := w.engine.RequestShift(context.Background(), "U01", theirs.ID, nil, UseButtons); err == nil {
		t.Fatal("expected ownership error")
	}
	if len(w.cal.shifts) != 1 {
		t.Error("calendar must be untouched")
	}
}

func TestRequestShift_RejectsDoubleOffer(t *testing.T) {
	mine := testShift(16, 9, 17, "佐藤", "U01", true)
	w := newWorld(t, mine)

	if _, err := w.engine.RequestShift(context.Background(), "U01", mine.ID, nil, UseButtons); err == nil {
		t.Fatal("expected already-offered error")
	}
}

func TestContractShift_RejectsUnoffered(t *testing.T) {
	theirs := testShift(16, 9, 17, "鈴木", "U02", false)
	w := newWorld(t, theirs)

	if _, err := w.engine.ContractShift(context.Background(), "U01", theirs.ID, nil, UseCommand); err == nil {
		t.Fatal("expected not-an-offer error")
	}
}

func TestContractShift_Direct(t *testing.T) {
	offer := testShift(16, 9, 17, "鈴木", "U02", true)
	w := newWorld(t, offer)

	plan, err := w.engine.ContractShift(context.Background(), "U01", offer.ID, nil, UseCommand)
	if err != nil {
		t.Fatalf("ContractShift: %v", err)
	}
	if plan.New.SlackID != "U01" {
		t.Errorf("new owner = %s, want the caller", plan.New.SlackID)
	}
	if len(w.bus.events) != 1 || w.bus.events[0].subject != SubjectShiftContracted {
		t.Errorf("bus events = %+v", w.bus.events)
	}
}
