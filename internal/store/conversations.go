package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aoba-lab/daiko/internal/conversation"
	"github.com/aoba-lab/daiko/internal/shift"
)

// GetConversation returns the recorded slots of the user's last turn, or the
// zero State when the user has never spoken.
func (s *Store) GetConversation(ctx context.Context, slackID string) (conversation.State, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT last_turn_at, action, dates, range_start, range_end, shift_ids, raw_text
		FROM conversations WHERE slack_id = $1`, slackID)

	var (
		st         conversation.State
		lastTurnAt *time.Time
		action     string
		dates      []time.Time
		rangeStart *string
		rangeEnd   *string
		shiftIDs   []uuid.UUID
	)
	err := row.Scan(&lastTurnAt, &action, &dates, &rangeStart, &rangeEnd, &shiftIDs, &st.RawText)
	if errors.Is(err, pgx.ErrNoRows) {
		return conversation.State{}, nil
	}
	if err != nil {
		return conversation.State{}, fmt.Errorf("scan conversation: %w", err)
	}

	if lastTurnAt != nil {
		st.LastTurnAt = *lastTurnAt
	}
	st.Action = shift.ParseAction(action)
	st.Dates = dates
	st.ShiftIDs = shiftIDs
	if rangeStart != nil || rangeEnd != nil {
		rng := &shift.TimeRange{}
		if rangeStart != nil {
			ct, err := shift.ParseClockTime(*rangeStart)
			if err != nil {
				return conversation.State{}, fmt.Errorf("recorded range start: %w", err)
			}
			rng.Start = &ct
		}
		if rangeEnd != nil {
			ct, err := shift.ParseClockTime(*rangeEnd)
			if err != nil {
				return conversation.State{}, fmt.Errorf("recorded range end: %w", err)
			}
			rng.End = &ct
		}
		st.Range = rng
	}
	return st, nil
}

// PutConversation overwrites the user's recorded turn. Writing the zero
// State clears it; stale rows simply age out of the in-sequence window and
// are never deleted.
func (s *Store) PutConversation(ctx context.Context, slackID string, st conversation.State) error {
	var (
		lastTurnAt *time.Time
		rangeStart *string
		rangeEnd   *string
	)
	if !st.LastTurnAt.IsZero() {
		lastTurnAt = &st.LastTurnAt
	}
	if st.Range != nil {
		if st.Range.Start != nil {
			v := st.Range.Start.String()
			rangeStart = &v
		}
		if st.Range.End != nil {
			v := st.Range.End.String()
			rangeEnd = &v
		}
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO conversations (slack_id, last_turn_at, action, dates, range_start, range_end, shift_ids, raw_text)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (slack_id) DO UPDATE
		SET last_turn_at = $2, action = $3, dates = $4, range_start = $5, range_end = $6, shift_ids = $7, raw_text = $8`,
		slackID, lastTurnAt, st.Action.String(), st.Dates, rangeStart, rangeEnd, st.ShiftIDs, st.RawText,
	)
	if err != nil {
		return fmt.Errorf("upsert conversation: %w", err)
	}
	return nil
}
