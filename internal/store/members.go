package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// ErrMemberMissing is returned for slack ids without a directory entry.
var ErrMemberMissing = errors.New("member is not registered")

// DisplayName resolves a slack id to the staff display name.
func (s *Store) DisplayName(ctx context.Context, slackID string) (string, error) {
	var name string
	err := s.pool.QueryRow(ctx,
		`SELECT display_name FROM members WHERE slack_id = $1`, slackID,
	).Scan(&name)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", fmt.Errorf("member %s: %w", slackID, ErrMemberMissing)
	}
	if err != nil {
		return "", fmt.Errorf("query member: %w", err)
	}
	return name, nil
}

// Members returns the whole directory as slack id -> display name.
func (s *Store) Members(ctx context.Context) (map[string]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT slack_id, display_name FROM members ORDER BY display_name`)
	if err != nil {
		return nil, fmt.Errorf("query members: %w", err)
	}
	defer rows.Close()

	members := make(map[string]string)
	for rows.Next() {
		var id, name string
		if err := rows.Scan(&id, &name); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		members[id] = name
	}
	return members, rows.Err()
}

// UpsertMember registers or renames a staff member.
func (s *Store) UpsertMember(ctx context.Context, slackID, displayName string) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO members (slack_id, display_name) VALUES ($1, $2)
		ON CONFLICT (slack_id) DO UPDATE SET display_name = $2`,
		slackID, displayName,
	)
	if err != nil {
		return fmt.Errorf("upsert member: %w", err)
	}
	return nil
}
