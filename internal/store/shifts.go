package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/aoba-lab/daiko/internal/shift"
)

// ErrShiftMissing is returned when an id does not resolve to a shift,
// typically because a concurrent turn already consumed it.
var ErrShiftMissing = errors.New("shift does not exist")

const shiftColumns = "id, staff_name, slack_id, start_at, end_at, requested"

// FindShifts returns the shifts whose interval starts on the given day,
// ordered by start time. ownerID narrows to one staff member when non-empty;
// requested selects open offers (true) or confirmed assignments (false)
// when non-nil.
func (s *Store) FindShifts(ctx context.Context, day time.Time, ownerID string, requested *bool) ([]shift.Shift, error) {
	dayStart := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, day.Location())
	dayEnd := dayStart.AddDate(0, 0, 1)

	query := `SELECT ` + shiftColumns + ` FROM shifts WHERE start_at >= $1 AND start_at < $2`
	args := []any{dayStart, dayEnd}
	if ownerID != "" {
		args = append(args, ownerID)
		query += fmt.Sprintf(" AND slack_id = $%d", len(args))
	}
	if requested != nil {
		args = append(args, *requested)
		query += fmt.Sprintf(" AND requested = $%d", len(args))
	}
	query += " ORDER BY start_at, end_at"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query shifts: %w", err)
	}
	defer rows.Close()

	var shifts []shift.Shift
	for rows.Next() {
		sh, err := scanShift(rows)
		if err != nil {
			return nil, err
		}
		shifts = append(shifts, sh)
	}
	return shifts, rows.Err()
}

func (s *Store) ShiftByID(ctx context.Context, id uuid.UUID) (shift.Shift, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+shiftColumns+` FROM shifts WHERE id = $1`, id)
	sh, err := scanShift(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return shift.Shift{}, fmt.Errorf("shift %s: %w", id, ErrShiftMissing)
	}
	return sh, err
}

func (s *Store) InsertShift(ctx context.Context, sh shift.Shift) (uuid.UUID, error) {
	if err := sh.Validate(); err != nil {
		return uuid.Nil, fmt.Errorf("insert shift: %w", err)
	}
	id := uuid.New()
	_, err := s.pool.Exec(ctx, `
		INSERT INTO shifts (id, staff_name, slack_id, start_at, end_at, requested)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		id, sh.StaffName, sh.SlackID, sh.Start, sh.End, sh.Requested,
	)
	if err != nil {
		return uuid.Nil, fmt.Errorf("insert shift: %w", err)
	}
	return id, nil
}

func (s *Store) UpdateShift(ctx context.Context, sh shift.Shift) error {
	if err := sh.Validate(); err != nil {
		return fmt.Errorf("update shift: %w", err)
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE shifts
		SET staff_name = $2, slack_id = $3, start_at = $4, end_at = $5, requested = $6
		WHERE id = $1`,
		sh.ID, sh.StaffName, sh.SlackID, sh.Start, sh.End, sh.Requested,
	)
	if err != nil {
		return fmt.Errorf("update shift: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shift %s: %w", sh.ID, ErrShiftMissing)
	}
	return nil
}

func (s *Store) DeleteShift(ctx context.Context, id uuid.UUID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM shifts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete shift: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("shift %s: %w", id, ErrShiftMissing)
	}
	return nil
}

func scanShift(row pgx.Row) (shift.Shift, error) {
	var sh shift.Shift
	if err := row.Scan(&sh.ID, &sh.StaffName, &sh.SlackID, &sh.Start, &sh.End, &sh.Requested); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return shift.Shift{}, err
		}
		return shift.Shift{}, fmt.Errorf("scan shift: %w", err)
	}
	// Calendar rows with broken intervals are rejected, not repaired.
	if err := sh.Validate(); err != nil {
		return shift.Shift{}, fmt.Errorf("malformed calendar row: %w", err)
	}
	return sh, nil
}
